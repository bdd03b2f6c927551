package percentile

import (
	"math"
	"math/rand/v2"
)

// Window is a multiset of float64 values supporting order-statistic queries.
// Insert, Remove and Quantile all run in O(log n) expected time, backed by a
// treap keyed by value with subtree sizes. Duplicate values are stored as
// separate nodes.
//
// Window is not safe for concurrent use.
type Window struct {
	root *node
}

type node struct {
	value    float64
	priority uint64
	size     int
	left     *node
	right    *node
}

func (n *node) recount() {
	n.size = 1
	if n.left != nil {
		n.size += n.left.size
	}
	if n.right != nil {
		n.size += n.right.size
	}
}

func size(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

// NewWindow creates an empty window.
func NewWindow() *Window {
	return &Window{}
}

// Len returns the number of stored values.
func (w *Window) Len() int {
	return size(w.root)
}

// Insert adds a value to the window.
func (w *Window) Insert(v float64) {
	left, right := split(w.root, v)
	n := &node{value: v, priority: rand.Uint64(), size: 1}
	w.root = merge(merge(left, n), right)
}

// Remove deletes one occurrence of v. Returns false when v is not present.
func (w *Window) Remove(v float64) bool {
	root, removed := remove(w.root, v)
	w.root = root
	return removed
}

// Kth returns the k-th smallest value (0-based). k must be in [0, Len()).
func (w *Window) Kth(k int) float64 {
	n := w.root
	for {
		leftSize := size(n.left)
		switch {
		case k < leftSize:
			n = n.left
		case k == leftSize:
			return n.value
		default:
			k -= leftSize + 1
			n = n.right
		}
	}
}

// Quantile returns the continuous p-quantile over the stored values, with
// the same interpolation as Continuous. The window must be non-empty.
func (w *Window) Quantile(p float64) float64 {
	n := w.Len()
	if n == 1 {
		return w.Kth(0)
	}

	rank := p * float64(n-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	loVal := w.Kth(lo)
	if lo == hi {
		return loVal
	}
	hiVal := w.Kth(hi)
	frac := rank - float64(lo)
	return loVal + frac*(hiVal-loVal)
}

// split partitions t into values <= v and values > v.
func split(t *node, v float64) (*node, *node) {
	if t == nil {
		return nil, nil
	}
	if t.value <= v {
		left, right := split(t.right, v)
		t.right = left
		t.recount()
		return t, right
	}
	left, right := split(t.left, v)
	t.left = right
	t.recount()
	return left, t
}

func merge(a, b *node) *node {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if a.priority >= b.priority {
		a.right = merge(a.right, b)
		a.recount()
		return a
	}
	b.left = merge(a, b.left)
	b.recount()
	return b
}

func remove(t *node, v float64) (*node, bool) {
	if t == nil {
		return nil, false
	}
	if t.value == v {
		return merge(t.left, t.right), true
	}
	var removed bool
	if v < t.value {
		t.left, removed = remove(t.left, v)
	} else {
		t.right, removed = remove(t.right, v)
	}
	if removed {
		t.recount()
	}
	return t, removed
}
