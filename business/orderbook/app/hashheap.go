// Package app contains the application services for the orderbook context.
package app

import (
	"sort"

	marketdata "github.com/fd1az/book-aggregator/business/marketdata/domain"
)

// levelKey is the uniqueness key for retained levels. A venue contributes
// at most one level per price; an amount change at the same price is an
// update, not a new row.
type levelKey struct {
	venue marketdata.Venue
	price float64
}

// hashHeap keeps the capacity best levels of one book side. The heap root
// is the worst retained level, so an insert beyond capacity evicts in
// O(log N). The index map enforces (venue, price) uniqueness.
type hashHeap[T any] struct {
	capacity int
	better   func(a, b T) bool
	key      func(T) levelKey
	items    []T
	index    map[levelKey]int
}

func newHashHeap[T any](capacity int, better func(a, b T) bool, key func(T) levelKey) *hashHeap[T] {
	return &hashHeap[T]{
		capacity: capacity,
		better:   better,
		key:      key,
		items:    make([]T, 0, capacity+1),
		index:    make(map[levelKey]int, capacity+1),
	}
}

// Len returns the number of retained levels.
func (h *hashHeap[T]) Len() int {
	return len(h.items)
}

// Insert adds item, updating in place when its key is already retained.
// The ordering depends only on the key fields, so an in-place update
// never disturbs the heap property. When capacity is exceeded the worst
// level is evicted, which may be the item just inserted.
func (h *hashHeap[T]) Insert(item T) {
	k := h.key(item)
	if i, ok := h.index[k]; ok {
		h.items[i] = item
		return
	}

	h.items = append(h.items, item)
	h.index[k] = len(h.items) - 1
	h.siftUp(len(h.items) - 1)

	if len(h.items) > h.capacity {
		h.popWorst()
	}
}

// SortedBestFirst returns the retained levels, best first.
func (h *hashHeap[T]) SortedBestFirst() []T {
	out := make([]T, len(h.items))
	copy(out, h.items)
	sort.Slice(out, func(i, j int) bool {
		return h.better(out[i], out[j])
	})
	return out
}

func (h *hashHeap[T]) popWorst() {
	last := len(h.items) - 1
	h.swap(0, last)
	delete(h.index, h.key(h.items[last]))
	h.items = h.items[:last]
	if len(h.items) > 0 {
		h.siftDown(0)
	}
}

func (h *hashHeap[T]) swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.index[h.key(h.items[i])] = i
	h.index[h.key(h.items[j])] = j
}

// siftUp moves a worse item toward the root.
func (h *hashHeap[T]) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !h.better(h.items[parent], h.items[i]) {
			break
		}
		h.swap(parent, i)
		i = parent
	}
}

// siftDown restores the root-is-worst property.
func (h *hashHeap[T]) siftDown(i int) {
	n := len(h.items)
	for {
		worst := i
		left, right := 2*i+1, 2*i+2
		if left < n && h.better(h.items[worst], h.items[left]) {
			worst = left
		}
		if right < n && h.better(h.items[worst], h.items[right]) {
			worst = right
		}
		if worst == i {
			return
		}
		h.swap(i, worst)
		i = worst
	}
}
