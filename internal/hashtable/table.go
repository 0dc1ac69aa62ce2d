// Package hashtable implements the open-hashing table with overflow-chain
// bucket blocks described in §3 ("Workers' hash tables use open hashing
// with overflow chains of bucket blocks of a configured capacity"). It
// backs both the country index and the disease index of a shard.
//
// Grounded on original_source/src/hashtable.c and src/master/hashtable.c:
// the same djb2-style string hash and fixed-capacity overflow-block
// chaining, but iteration is an explicit, reentrant Iterator rather than
// the source's static get_next_entry cursor (Design Note §9).
package hashtable

import (
	"github.com/lpapadakos/epiquery/internal/avltree"
)

// Entry is one bucket slot: a canonical, interned name and the
// date-ordered tree of records filed under it. Entry.Name is the single
// canonical copy of the name string for this shard (§9); every Record
// referencing this name shares this exact string.
type Entry struct {
	Name string
	Tree *avltree.Node
}

// block is a fixed-capacity run of entries; a bucket that overflows its
// first block links to another, forming the "overflow chain" (§3).
type block struct {
	entries []Entry
	next    *block
}

// Table is an open-hashing table of name -> Entry, partitioned into
// numBuckets hash buckets, each an overflow chain of blocks holding up
// to blockCapacity entries per block.
type Table struct {
	buckets       []*block
	blockCapacity int
	size          int
}

// New returns a Table with numBuckets hash buckets and the given
// per-block capacity, matching ht_init's (disease_entries, country_entries,
// bucket_size) parameterization (one Table per index; bucket_size here is
// blockCapacity).
func New(numBuckets, blockCapacity int) *Table {
	if numBuckets < 1 {
		numBuckets = 1
	}
	if blockCapacity < 1 {
		blockCapacity = 1
	}
	return &Table{
		buckets:       make([]*block, numBuckets),
		blockCapacity: blockCapacity,
	}
}

// hash computes the djb2-style string hash used throughout the original
// source (hash*33 + c, seeded at 5381), reduced into a bucket index.
func hash(s string) uint32 {
	var h uint32 = 5381
	for i := 0; i < len(s); i++ {
		h = h*33 + uint32(s[i])
	}
	return h
}

func (t *Table) bucketIndex(name string) int {
	return int(hash(name) % uint32(len(t.buckets)))
}

// Find returns the Entry for name, or nil if it has never been seen.
func (t *Table) Find(name string) *Entry {
	idx := t.bucketIndex(name)
	for b := t.buckets[idx]; b != nil; b = b.next {
		for i := range b.entries {
			if b.entries[i].Name == name {
				return &b.entries[i]
			}
		}
	}
	return nil
}

// FindOrCreate returns the Entry for name, creating it (with a nil Tree)
// in the bucket's overflow chain if this is the first time name is seen.
// The returned Name is always the table's own canonical copy: callers
// that need an interned string for a Record should take it from here.
func (t *Table) FindOrCreate(name string) *Entry {
	if e := t.Find(name); e != nil {
		return e
	}

	idx := t.bucketIndex(name)
	head := t.buckets[idx]

	// Try to append into the last block with spare capacity.
	for b := head; b != nil; b = b.next {
		if len(b.entries) < t.blockCapacity {
			b.entries = append(b.entries, Entry{Name: name})
			t.size++
			return &b.entries[len(b.entries)-1]
		}
		if b.next == nil {
			break
		}
	}

	// Every existing block in the chain is full: allocate a new one.
	newBlock := &block{entries: make([]Entry, 0, t.blockCapacity)}
	newBlock.entries = append(newBlock.entries, Entry{Name: name})
	t.size++

	if head == nil {
		t.buckets[idx] = newBlock
	} else {
		b := head
		for b.next != nil {
			b = b.next
		}
		b.next = newBlock
	}

	return &newBlock.entries[0]
}

// Size returns the number of distinct names held in the table.
func (t *Table) Size() int {
	return t.size
}

// Iterator performs an explicit, restartable walk over every Entry in
// the table, tracking its own (bucket index, chain block, entry index)
// position rather than process-static state (Design Note §9). Traversal
// order across buckets is arbitrary, matching §3's invariant.
type Iterator struct {
	t          *Table
	bucketIdx  int
	curBlock   *block
	entryIdx   int
}

// NewIterator returns an Iterator positioned before the first Entry.
func NewIterator(t *Table) *Iterator {
	return &Iterator{t: t, bucketIdx: -1}
}

// Next returns the next Entry and true, or nil and false once every
// bucket's overflow chain has been exhausted.
func (it *Iterator) Next() (*Entry, bool) {
	for {
		if it.curBlock != nil && it.entryIdx < len(it.curBlock.entries) {
			e := &it.curBlock.entries[it.entryIdx]
			it.entryIdx++
			return e, true
		}

		if it.curBlock != nil && it.curBlock.next != nil {
			it.curBlock = it.curBlock.next
			it.entryIdx = 0
			continue
		}

		it.bucketIdx++
		if it.bucketIdx >= len(it.t.buckets) {
			return nil, false
		}
		it.curBlock = it.t.buckets[it.bucketIdx]
		it.entryIdx = 0
	}
}
