package rpctracker

import "container/heap"

type timerEntry struct {
	seq     uint32
	fireAt  int64 // UnixNano
	index   int
	removed bool
}

// timerHeap is a container/heap-based priority queue keyed by deadline —
// the idiomatic Go stand-in for the tokio DelayQueue the original source
// uses (spec.md §4.6's single-task-owns-the-wheel invariant carries over
// unchanged; only the underlying data structure changes).
type timerHeap []*timerEntry

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].fireAt < h[j].fireAt }
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	e := x.(*timerEntry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

var _ heap.Interface = (*timerHeap)(nil)
