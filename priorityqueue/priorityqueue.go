// Package priorityqueue implements the min-heap over unsigned integer keys
// used to order pending deposits by arrival nonce and exits by their packed
// priority.
package priorityqueue

import (
	"container/heap"

	"plasma-rootchain/common"
)

type keyHeap []uint64

func (h keyHeap) Len() int           { return len(h) }
func (h keyHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h keyHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *keyHeap) Push(x interface{}) {
	key, ok := x.(uint64)
	if !ok {
		return
	}
	*h = append(*h, key)
}

func (h *keyHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}

// Queue is a binary min-heap of uint64 keys. Duplicate keys are tolerated;
// ties between equal keys break arbitrarily. The Keys field is exported only
// so that the whole queue can be deep copied by reflection for the state
// snapshot; callers must go through the methods.
type Queue struct {
	Keys keyHeap
}

// New returns an empty queue
func New() *Queue {
	return &Queue{Keys: make(keyHeap, 0)}
}

// Insert adds a key to the queue
func (q *Queue) Insert(key uint64) {
	heap.Push(&q.Keys, key)
}

// GetMin returns the minimum key without removing it. Fails on an empty
// queue.
func (q *Queue) GetMin() (uint64, error) {
	if len(q.Keys) == 0 {
		return 0, common.Wrap(common.ErrQueueEmpty)
	}
	return q.Keys[0], nil
}

// DelMin removes and returns the minimum key. Fails on an empty queue.
func (q *Queue) DelMin() (uint64, error) {
	if len(q.Keys) == 0 {
		return 0, common.Wrap(common.ErrQueueEmpty)
	}
	return heap.Pop(&q.Keys).(uint64), nil
}

// CurrentSize returns the number of keys in the queue
func (q *Queue) CurrentSize() int {
	return len(q.Keys)
}
