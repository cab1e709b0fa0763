// Package queue provides the min-priority queue used by the path searches.
//
// Nodes are interned to dense integer indices on first push, and heap order
// is decided only by (priority, insertion sequence). Payload contents such as
// paths never take part in comparisons.
package queue

import (
	"container/heap"
	"errors"

	"github.com/ritzau/arb-finder/pkg/graph"
)

// ErrEmptyQueue is returned by Pop and Peek on an empty queue
var ErrEmptyQueue = errors.New("pop from empty priority queue")

// Item is a search state waiting for expansion
type Item struct {
	Priority float64
	Cost     float64
	Node     graph.NodeID
	Path     []graph.NodeID
	Depth    int

	index int    // interned node index
	seq   uint64 // insertion sequence, breaks priority ties FIFO
}

// Index returns the interned index assigned to the item's node
func (it Item) Index() int {
	return it.index
}

// Queue is a min-heap of search states. The zero value is not usable; use New.
type Queue struct {
	items   itemHeap
	indices map[graph.NodeID]int
	seq     uint64
}

// New creates an empty queue
func New() *Queue {
	return &Queue{
		indices: make(map[graph.NodeID]int),
	}
}

// Push adds a state. The node is interned on first sight.
func (q *Queue) Push(item Item) {
	idx, ok := q.indices[item.Node]
	if !ok {
		idx = len(q.indices)
		q.indices[item.Node] = idx
	}
	item.index = idx
	item.seq = q.seq
	q.seq++
	heap.Push(&q.items, item)
}

// Pop removes and returns the state with the lowest priority
func (q *Queue) Pop() (Item, error) {
	if len(q.items) == 0 {
		return Item{}, ErrEmptyQueue
	}
	return heap.Pop(&q.items).(Item), nil
}

// Peek returns the state with the lowest priority without removing it
func (q *Queue) Peek() (Item, error) {
	if len(q.items) == 0 {
		return Item{}, ErrEmptyQueue
	}
	return q.items[0], nil
}

// Empty reports whether the queue has no pending states
func (q *Queue) Empty() bool {
	return len(q.items) == 0
}

// Len returns the number of pending states
func (q *Queue) Len() int {
	return len(q.items)
}

// Interned returns the number of distinct nodes seen since the last Clear
func (q *Queue) Interned() int {
	return len(q.indices)
}

// Clear drops all states and forgets interned indices
func (q *Queue) Clear() {
	q.items = q.items[:0]
	q.indices = make(map[graph.NodeID]int)
	q.seq = 0
}

type itemHeap []Item

func (h itemHeap) Len() int { return len(h) }

func (h itemHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority < h[j].Priority
	}
	return h[i].seq < h[j].seq
}

func (h itemHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *itemHeap) Push(x any) {
	*h = append(*h, x.(Item))
}

func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = Item{}
	*h = old[:n-1]
	return item
}
