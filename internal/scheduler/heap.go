package scheduler

import (
	"container/heap"

	"github.com/phrazzld/miniminder/internal/domain"
)

// entry is one armed countdown.
type entry struct {
	reminder domain.Reminder
	index    int
}

// reminderHeap orders entries by fire time, then schedule id.
type reminderHeap []*entry

var _ heap.Interface = (*reminderHeap)(nil)

func (h reminderHeap) Len() int { return len(h) }

func (h reminderHeap) Less(i, j int) bool {
	a, b := h[i].reminder, h[j].reminder
	if a.FireAt.Equal(b.FireAt) {
		return a.ScheduleID < b.ScheduleID
	}
	return a.FireAt.Before(b.FireAt)
}

func (h reminderHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *reminderHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *reminderHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

func (h reminderHeap) peek() *entry {
	if len(h) == 0 {
		return nil
	}
	return h[0]
}
