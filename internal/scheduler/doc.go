// Package scheduler keeps the in-memory countdowns for pending reminders and
// hands them to the delivery worker pool when they fall due.
//
// A Scheduler owns a single priority queue keyed by fire time and one timer
// goroutine draining it. Submit and Cancel are the only ways to change the
// queue. RecoveryRunner rebuilds the queue from storage after a restart.
package scheduler
