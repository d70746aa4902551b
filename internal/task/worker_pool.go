package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// WorkerPool runs tasks from a queue on a fixed number of goroutines.
type WorkerPool struct {
	taskQueue   TaskQueueReader
	workerCount int
	wg          sync.WaitGroup

	// ctx is handed to every task; Stop cancels it once the drain deadline passes.
	ctx    context.Context
	cancel context.CancelFunc

	logger *slog.Logger

	mu           sync.RWMutex
	errorHandler func(task Task, err error)
}

// WorkerPoolConfig holds configuration options for the worker pool.
type WorkerPoolConfig struct {
	// WorkerCount determines how many concurrent worker goroutines to start.
	// If zero or negative, defaults to 1.
	WorkerCount int
}

// DefaultWorkerPoolConfig returns a WorkerPoolConfig with reasonable defaults.
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		WorkerCount: 2,
	}
}

// NewWorkerPool creates a new worker pool with the specified configuration.
func NewWorkerPool(taskQueue TaskQueueReader, config WorkerPoolConfig, logger *slog.Logger) *WorkerPool {
	workerCount := config.WorkerCount
	if workerCount <= 0 {
		workerCount = 1
		logger.Warn("invalid worker count specified, using default",
			"specified_count", config.WorkerCount,
			"default_count", 1)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		taskQueue:   taskQueue,
		workerCount: workerCount,
		ctx:         ctx,
		cancel:      cancel,
		logger:      logger.With("component", "worker_pool"),
	}
}

// SetErrorHandler sets a handler called when a task fails or panics.
// Without one, failures are only logged.
func (p *WorkerPool) SetErrorHandler(handler func(task Task, err error)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errorHandler = handler
}

// Start launches the workers. They run until the queue is closed and
// drained, or until Stop gives up waiting.
func (p *WorkerPool) Start() {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.logger.Info("worker pool started", "worker_count", p.workerCount)
}

// Stop waits for the workers to drain the closed queue. If ctx ends first,
// in-flight tasks are cancelled and Stop returns ctx.Err() after they exit.
func (p *WorkerPool) Stop(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		p.logger.Info("worker pool stopped")
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		p.logger.Warn("worker pool stopped before queue drained", "error", ctx.Err())
		return ctx.Err()
	}
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	p.logger.Debug("starting worker", "worker_id", id)
	for {
		select {
		case <-p.ctx.Done():
			p.logger.Debug("stopping worker", "worker_id", id)
			return
		case t, ok := <-p.taskQueue.GetChannel():
			if !ok {
				p.logger.Debug("task channel closed, stopping worker", "worker_id", id)
				return
			}
			p.process(t, id)
		}
	}
}

func (p *WorkerPool) process(t Task, workerID int) {
	log := p.logger.With(
		"task_id", t.ID(),
		"task_type", t.Type(),
		"worker_id", workerID,
	)

	err := p.execute(t)
	if err == nil {
		log.Debug("task completed")
		return
	}

	p.mu.RLock()
	handler := p.errorHandler
	p.mu.RUnlock()

	if handler != nil {
		handler(t, err)
		return
	}
	log.Error("task execution failed", "error", err)
}

// execute runs t, converting a panic into an error.
func (p *WorkerPool) execute(t Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return t.Execute(p.ctx)
}
