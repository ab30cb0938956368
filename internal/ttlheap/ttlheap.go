// Package ttlheap implements an indexed binary min-heap over absolute
// expiration deadlines. Every slot swap updates the owner's back-index, so
// Remove and Update can locate their target in O(1) instead of scanning —
// forgetting to maintain that back-index on every single swap is the
// canonical bug this structure exists to avoid (spec §4.4/§9).
package ttlheap

// NoIndex is the sentinel an Indexed owner reports when it holds no slot.
const NoIndex = -1

// Indexed is implemented by whatever a Heap tracks (typically *Entry). The
// heap never allocates a separate index structure; it writes directly back
// into the owner on every move.
type Indexed interface {
	HeapIndex() int
	SetHeapIndex(int)
}

type slot[T Indexed] struct {
	deadline uint64
	owner    T
}

// Heap is an indexed min-heap on deadline.
type Heap[T Indexed] struct {
	slots []slot[T]
}

// Len returns the number of tracked entries.
func (h *Heap[T]) Len() int { return len(h.slots) }

func (h *Heap[T]) less(i, j int) bool { return h.slots[i].deadline < h.slots[j].deadline }

func (h *Heap[T]) swap(i, j int) {
	h.slots[i], h.slots[j] = h.slots[j], h.slots[i]
	h.slots[i].owner.SetHeapIndex(i)
	h.slots[j].owner.SetHeapIndex(j)
}

func (h *Heap[T]) siftUp(i int) int {
	for i > 0 {
		parent := (i - 1) / 2
		if !h.less(i, parent) {
			break
		}
		h.swap(i, parent)
		i = parent
	}
	return i
}

func (h *Heap[T]) siftDown(i int) int {
	n := len(h.slots)
	for {
		smallest := i
		if l := 2*i + 1; l < n && h.less(l, smallest) {
			smallest = l
		}
		if r := 2*i + 2; r < n && h.less(r, smallest) {
			smallest = r
		}
		if smallest == i {
			return i
		}
		h.swap(i, smallest)
		i = smallest
	}
}

// Update sets owner's deadline, inserting it if it has no slot yet
// (Indexed.HeapIndex() == NoIndex), or repositioning it in place otherwise.
func (h *Heap[T]) Update(owner T, deadline uint64) {
	idx := owner.HeapIndex()
	if idx == NoIndex {
		idx = len(h.slots)
		h.slots = append(h.slots, slot[T]{deadline: deadline, owner: owner})
		owner.SetHeapIndex(idx)
		h.siftUp(idx)
		return
	}

	h.slots[idx].deadline = deadline
	// The new deadline may have moved either direction; try both, one is
	// always a no-op.
	idx = h.siftUp(idx)
	h.siftDown(idx)
}

// Remove takes owner out of the heap. A no-op if owner holds no slot.
func (h *Heap[T]) Remove(owner T) {
	idx := owner.HeapIndex()
	if idx == NoIndex {
		return
	}

	last := len(h.slots) - 1
	if idx != last {
		h.swap(idx, last)
	}
	owner.SetHeapIndex(NoIndex)
	h.slots = h.slots[:last]

	if idx < len(h.slots) {
		idx = h.siftUp(idx)
		h.siftDown(idx)
	}
}

// PeekMin returns the entry with the smallest deadline without removing it.
func (h *Heap[T]) PeekMin() (deadline uint64, owner T, ok bool) {
	if len(h.slots) == 0 {
		var zero T
		return 0, zero, false
	}
	return h.slots[0].deadline, h.slots[0].owner, true
}
