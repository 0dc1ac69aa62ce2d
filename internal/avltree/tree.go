// Package avltree implements the self-balancing, entry-date-ordered tree
// that backs each country/disease bucket in a shard's index (§3, §4.1).
// It is a direct generalization of original_source/src/tree.c: the same
// LL/LR/RL/RR rotation logic and find-gte range-scan entry point, but
// with iteration expressed as an explicit, reentrant Iterator object
// instead of a process-static cursor (Design Note §9) — multiple scans
// over the same tree may be in flight at once, each with its own stack.
package avltree

import (
	"github.com/lpapadakos/epiquery/internal/date"
	"github.com/lpapadakos/epiquery/internal/record"
)

// Node is one AVL tree node. Duplicate keys are permitted: records
// admitted on the same entry-date form a chain via next, preserving
// insertion order among ties (§4.1 "tie-breaking ... insertion order").
type Node struct {
	Record *record.Record
	next   *Node // same-key duplicates, in insertion order

	left, right *Node
	height      int
}

func height(n *Node) int {
	if n == nil {
		return 0
	}
	return n.height
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func balanceFactor(n *Node) int {
	if n == nil {
		return 0
	}
	return height(n.left) - height(n.right)
}

func updateHeight(n *Node) {
	n.height = 1 + max(height(n.left), height(n.right))
}

func rotateRight(y *Node) *Node {
	x := y.left
	t2 := x.right

	x.right = y
	y.left = t2

	updateHeight(y)
	updateHeight(x)

	return x
}

func rotateLeft(x *Node) *Node {
	y := x.right
	t2 := y.left

	y.left = x
	x.right = t2

	updateHeight(x)
	updateHeight(y)

	return y
}

// rebalance restores the |balance| <= 1 invariant at n after an insert
// below it, applying the standard LL/LR/RL/RR rotations.
func rebalance(n *Node) *Node {
	updateHeight(n)
	bf := balanceFactor(n)

	switch {
	case bf > 1 && balanceFactor(n.left) >= 0: // LL
		return rotateRight(n)
	case bf > 1: // LR
		n.left = rotateLeft(n.left)
		return rotateRight(n)
	case bf < -1 && balanceFactor(n.right) <= 0: // RR
		return rotateLeft(n)
	case bf < -1: // RL
		n.right = rotateRight(n.right)
		return rotateLeft(n)
	default:
		return n
	}
}

// Insert inserts rec into the tree rooted at root, keyed by
// rec.EntryDate, and returns the new root. Records with an
// already-present key are chained (not replacing the existing node),
// preserving the order they were inserted in.
func Insert(root *Node, rec *record.Record) *Node {
	if root == nil {
		return &Node{Record: rec, height: 1}
	}

	switch rec.Key().Compare(root.Record.Key()) {
	case 0:
		// Duplicate key: append to the tie chain, tree shape unchanged.
		tail := root
		for tail.next != nil {
			tail = tail.next
		}
		tail.next = &Node{Record: rec, height: 1}
		return root
	case -1:
		root.left = Insert(root.left, rec)
	default:
		root.right = Insert(root.right, rec)
	}

	return rebalance(root)
}

// FindGTE locates the leftmost node whose key is >= key, the entry
// point for every range scan in §4.1. It returns nil if no such node
// exists.
func FindGTE(root *Node, key date.Date) *Node {
	var best *Node
	for root != nil {
		if root.Record.Key().Compare(key) >= 0 {
			best = root
			root = root.left
		} else {
			root = root.right
		}
	}
	return best
}

// Iterator performs an explicit, restartable in-order traversal. Unlike
// the source's tree_get_next_record, an Iterator holds its own stack and
// never touches shared/static state — any number of Iterators may be
// active over the same tree concurrently, so long as the tree is not
// being mutated (shards are single-writer; see DESIGN.md).
type Iterator struct {
	stack []*Node
	chain *Node // remaining same-key duplicates of the node just visited
}

// NewIterator returns an Iterator that starts its in-order walk at the
// leftmost descendant of root (the whole tree, root to root).
func NewIterator(root *Node) *Iterator {
	it := &Iterator{}
	it.pushLeftSpine(root)
	return it
}

// NewRangeIterator returns an Iterator that starts at the leftmost node
// with key >= from, visiting records in ascending order from there. The
// caller is responsible for stopping once a key exceeds the range's
// upper bound (Next exposes the record so the caller can check).
func NewRangeIterator(root *Node, from date.Date) *Iterator {
	it := &Iterator{}
	it.pushLeftSpineFrom(root, from)
	return it
}

func (it *Iterator) pushLeftSpine(n *Node) {
	for n != nil {
		it.stack = append(it.stack, n)
		n = n.left
	}
}

// pushLeftSpineFrom pushes the ancestor chain leading to FindGTE(root, from),
// so that popping the stack resumes an in-order walk exactly at that point.
func (it *Iterator) pushLeftSpineFrom(n *Node, from date.Date) {
	for n != nil {
		if n.Record.Key().Compare(from) >= 0 {
			it.stack = append(it.stack, n)
			n = n.left
		} else {
			n = n.right
		}
	}
}

// Next returns the next record in ascending entry-date order, and true;
// or false once the traversal is exhausted.
func (it *Iterator) Next() (*record.Record, bool) {
	if it.chain != nil {
		rec := it.chain.Record
		it.chain = it.chain.next
		return rec, true
	}

	if len(it.stack) == 0 {
		return nil, false
	}

	n := it.stack[len(it.stack)-1]
	it.stack = it.stack[:len(it.stack)-1]
	it.pushLeftSpine(n.right)

	it.chain = n.next
	return n.Record, true
}

// Count returns the number of records in the tree rooted at root.
func Count(root *Node) int {
	n := 0
	it := NewIterator(root)
	for {
		_, ok := it.Next()
		if !ok {
			return n
		}
		n++
	}
}
