// Package topheap implements the "top-k by count" facility used by the
// disease/country ranking queries (§4.1, §9, and the supplemental
// topkDiseases/topkCountries verbs in SPEC_FULL.md §6). The original
// source (original_source/src/heap.c) locates heap-insertion points by
// walking a linked binary tree according to the bit pattern of the
// node count, avoiding array storage. Design Note §9 explicitly sanctions
// substituting a flat, array-backed binary max-heap instead — "strictly
// simpler and equivalent" — which is what this package does, shaped to
// drop into container/heap if a caller wants that interface.
package topheap

// Entry pairs a name (a country or disease) with how many times it was
// seen, the unit of ranking for topkDiseases/topkCountries.
type Entry struct {
	Name  string
	Count int
}

// Heap is an array-backed binary max-heap keyed by Entry.Count.
type Heap struct {
	entries []Entry
}

// New returns an empty Heap.
func New() *Heap {
	return &Heap{}
}

// Len returns the number of entries currently in the heap.
func (h *Heap) Len() int { return len(h.entries) }

// Push inserts e and restores the heap invariant.
func (h *Heap) Push(e Entry) {
	h.entries = append(h.entries, e)
	h.siftUp(len(h.entries) - 1)
}

// Pop removes and returns the highest-count entry. It panics if the
// heap is empty; callers should check Len first.
func (h *Heap) Pop() Entry {
	top := h.entries[0]
	last := len(h.entries) - 1

	h.entries[0] = h.entries[last]
	h.entries = h.entries[:last]

	if len(h.entries) > 0 {
		h.siftDown(0)
	}
	return top
}

func (h *Heap) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if h.entries[i].Count <= h.entries[parent].Count {
			return
		}
		h.entries[i], h.entries[parent] = h.entries[parent], h.entries[i]
		i = parent
	}
}

func (h *Heap) siftDown(i int) {
	n := len(h.entries)
	for {
		left, right := 2*i+1, 2*i+2
		largest := i

		if left < n && h.entries[left].Count > h.entries[largest].Count {
			largest = left
		}
		if right < n && h.entries[right].Count > h.entries[largest].Count {
			largest = right
		}
		if largest == i {
			return
		}

		h.entries[i], h.entries[largest] = h.entries[largest], h.entries[i]
		i = largest
	}
}

// TopK pops up to k entries from counts (a name -> count map, as produced
// by a shard's range scan) and returns them ranked by count descending.
// Ties are broken by the order counts' keys are visited in, which is
// unspecified for a Go map — callers that need a deterministic tie-break
// should not rely on this. topkAgeRanges is exactly such a caller, which
// is why internal/shard ranks its four fixed buckets directly (see
// shard.rankAgeBuckets) instead of routing them through this facility.
func TopK(counts map[string]int, k int) []Entry {
	h := New()
	for name, count := range counts {
		h.Push(Entry{Name: name, Count: count})
	}

	if k > h.Len() {
		k = h.Len()
	}

	result := make([]Entry, 0, k)
	for i := 0; i < k; i++ {
		result = append(result, h.Pop())
	}
	return result
}
