package particles

import "container/heap"

// freeHeap is a min-heap of free slot indices; the smallest index pops first.
type freeHeap []int

func (h freeHeap) Len() int           { return len(h) }
func (h freeHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h freeHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *freeHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *freeHeap) Pop() any {
	old := *h
	n := len(old)
	idx := old[n-1]
	*h = old[:n-1]
	return idx
}

// allocatedSet holds allocated indices ordered so the maximum is at the root.
// pos maps an index to its heap position (-1 when absent), so membership is O(1)
// and removal of an arbitrary index is O(log n).
type allocatedSet struct {
	items []int
	pos   []int
}

func newAllocatedSet(capacity int) *allocatedSet {
	s := &allocatedSet{
		items: make([]int, 0, capacity),
		pos:   make([]int, capacity),
	}
	for i := range s.pos {
		s.pos[i] = -1
	}
	return s
}

func (s *allocatedSet) Len() int           { return len(s.items) }
func (s *allocatedSet) Less(i, j int) bool { return s.items[i] > s.items[j] }
func (s *allocatedSet) Swap(i, j int) {
	s.items[i], s.items[j] = s.items[j], s.items[i]
	s.pos[s.items[i]] = i
	s.pos[s.items[j]] = j
}
func (s *allocatedSet) Push(x any) {
	idx := x.(int)
	s.pos[idx] = len(s.items)
	s.items = append(s.items, idx)
}
func (s *allocatedSet) Pop() any {
	n := len(s.items)
	idx := s.items[n-1]
	s.items = s.items[:n-1]
	s.pos[idx] = -1
	return idx
}

func (s *allocatedSet) insert(idx int) {
	if s.contains(idx) {
		return
	}
	heap.Push(s, idx)
}

func (s *allocatedSet) remove(idx int) bool {
	if !s.contains(idx) {
		return false
	}
	heap.Remove(s, s.pos[idx])
	return true
}

func (s *allocatedSet) contains(idx int) bool {
	return idx >= 0 && idx < len(s.pos) && s.pos[idx] >= 0
}

// max returns the highest allocated index, or -1 when empty.
func (s *allocatedSet) max() int {
	if len(s.items) == 0 {
		return -1
	}
	return s.items[0]
}

// sorted returns the allocated indices in ascending order.
func (s *allocatedSet) sorted() []int {
	out := make([]int, 0, len(s.items))
	for idx, p := range s.pos {
		if p >= 0 {
			out = append(out, idx)
		}
	}
	return out
}
