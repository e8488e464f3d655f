// Package skiplist implements a tower-structured skip list: each key
// owns a vertical tower of nodes linked by prev/next within a level
// and under between levels, searched by a four-state descent that
// resolves the classic rightward-overshoot ambiguity.
package skiplist

import (
	"cmp"
	"iter"
	"math"
	"math/rand"
)

// node is one rung of a key's tower.
type node[K cmp.Ordered, V any] struct {
	key   K
	val   V
	level int
	next  *node[K, V]
	prev  *node[K, V]
	under *node[K, V]
}

func newNode[K cmp.Ordered, V any](key K, val V, level int) *node[K, V] {
	return &node[K, V]{key: key, val: val, level: level}
}

// setValue overwrites val at this rung and every rung beneath it in
// the same tower.
func (n *node[K, V]) setValue(val V) {
	for cur := n; cur != nil; cur = cur.under {
		cur.val = val
	}
}

// joinNew links new_ as a neighbor of n, on whichever side its key
// puts it.
func joinNew[K cmp.Ordered, V any](n, new_ *node[K, V]) {
	switch {
	case n.key < new_.key:
		setNext(n, new_)
	case n.key > new_.key:
		setPrev(n, new_)
	}
}

// setNext inserts next_ immediately after n, relinking n's old
// successor (if any) after next_.
func setNext[K cmp.Ordered, V any](n, next_ *node[K, V]) {
	old := n.next
	n.next = next_
	next_.prev = n
	if old != nil {
		next_.next = old
		old.prev = next_
	}
}

// setPrev inserts prev_ immediately before n, relinking n's old
// predecessor (if any) before prev_.
func setPrev[K cmp.Ordered, V any](n, prev_ *node[K, V]) {
	old := n.prev
	n.prev = prev_
	prev_.next = n
	if old != nil {
		prev_.prev = old
		old.next = prev_
	}
}

// unlinkLevel removes n from its level's prev/next chain and returns
// the rung directly under it.
func unlinkLevel[K cmp.Ordered, V any](n *node[K, V]) *node[K, V] {
	switch {
	case n.prev == nil && n.next == nil:
	case n.prev == nil:
		n.next.prev = nil
	case n.next == nil:
		n.prev.next = nil
	default:
		n.prev.next = n.next
		n.next.prev = n.prev
	}
	return n.under
}

// unlinkTower removes every rung of n's tower from its level.
func unlinkTower[K cmp.Ordered, V any](n *node[K, V]) {
	for cur, remaining := n, n.level; remaining > 0 && cur != nil; remaining-- {
		next := unlinkLevel(cur)
		cur = next
	}
}

// findFirst walks prev links to the leftmost node on n's level.
func findFirst[K cmp.Ordered, V any](n *node[K, V]) *node[K, V] {
	first := n
	for first.prev != nil {
		first = first.prev
	}
	return first
}

// newTower builds a fresh tower for (key, val) from level 1 up to
// totalLvl. curr, if non-nil, is the ground-level arrival point to
// join the new level-1 node to. path supplies, from the top down, one
// ancestor per level above 1 to join into.
func newTower[K cmp.Ordered, V any](key K, val V, totalLvl int, curr *node[K, V], path []*node[K, V]) *node[K, V] {
	low := newNode(key, val, 1)
	if curr != nil {
		joinNew(curr, low)
	}

	for lvl := 2; lvl <= totalLvl; lvl++ {
		up := newNode(key, val, lvl)
		up.under = low
		if len(path) > 0 {
			anchor := path[len(path)-1]
			path = path[:len(path)-1]
			joinNew(anchor, up)
		}
		low = up
	}
	return low
}

// prevSearchStep records the direction of the previous descent/move,
// resolving the rightward-overshoot ambiguity during search.
type prevSearchStep int

const (
	fromHead prevSearchStep = iota
	fromLeft
	fromRight
	fromAbove
)

// searchOutcome classifies the result of comparing the target key
// against one visited node.
type searchOutcome int

const (
	outForward searchOutcome = iota
	outBackward
	outDown
	outFound
	outNotFound
)

// compare implements the four-state descent rule against n for key,
// given the direction of arrival at n.
func compare[K cmp.Ordered, V any](n *node[K, V], key K, step prevSearchStep) (searchOutcome, *node[K, V]) {
	switch {
	case n.key == key:
		return outFound, n
	case n.key < key:
		if n.next != nil {
			return outForward, n.next
		}
		if n.under != nil {
			return outDown, n.under
		}
		return outNotFound, nil
	default: // n.key > key
		if n.prev != nil {
			if n.prev.under != nil && step == fromLeft {
				return outDown, n.prev.under
			}
			if step == fromAbove || step == fromRight {
				return outBackward, n.prev
			}
			return outNotFound, nil
		}
		if n.under != nil {
			return outDown, n.under
		}
		return outNotFound, nil
	}
}

// LevelGenerator samples tower heights from a geometric distribution
// with parameter p = 0.5, capped at totalLevels-1.
type LevelGenerator struct {
	p   float64
	rng *rand.Rand
}

// NewLevelGenerator builds a generator using rng for sampling.
func NewLevelGenerator(rng *rand.Rand) *LevelGenerator {
	return &LevelGenerator{p: 0.5, rng: rng}
}

// Random samples a height in [0, total).
func (g *LevelGenerator) Random(total int) int {
	height := 0
	temp := g.p
	level := 1.0 - g.rng.Float64()

	for temp > level && height+1 < total {
		height++
		temp *= g.p
	}
	return height
}

// SkipList is an ordered map keyed by K, backed by a tower structure
// of fixed maximum height.
type SkipList[K cmp.Ordered, V any] struct {
	head      *node[K, V]
	levels    int
	size      int
	generator *LevelGenerator
}

// New builds an empty skip list with a default expected capacity of
// 2^16 entries (16 levels).
func New[K cmp.Ordered, V any](rng *rand.Rand) *SkipList[K, V] {
	return WithCapacity[K, V](1 << 16, rng)
}

// WithCapacity builds an empty skip list sized for expCap entries:
// levels = floor(log2(expCap)).
func WithCapacity[K cmp.Ordered, V any](expCap int, rng *rand.Rand) *SkipList[K, V] {
	levels := int(math.Floor(math.Log2(float64(expCap))))
	if levels < 1 {
		levels = 1
	}
	return &SkipList[K, V]{
		levels:    levels,
		generator: NewLevelGenerator(rng),
	}
}

// Size returns the number of distinct keys currently stored.
func (s *SkipList[K, V]) Size() int { return s.size }

// Clear empties the list in O(1); prior towers become unreachable.
func (s *SkipList[K, V]) Clear() {
	s.head = nil
	s.size = 0
}

// tryUpdateHead replaces head with candidate only when candidate's
// key sorts before the current head's key AND candidate's tower is at
// least as tall as the current head's — a shorter tower with a
// smaller key does not dislodge a taller one.
func (s *SkipList[K, V]) tryUpdateHead(candidate *node[K, V]) {
	if s.head == nil {
		s.head = candidate
		return
	}
	if s.head.key > candidate.key && s.head.level <= candidate.level {
		s.head = candidate
	}
}

// Search returns the value stored for key, if present.
func (s *SkipList[K, V]) Search(key K) (V, bool) {
	var zero V
	if s.head == nil {
		return zero, false
	}
	return searchFrom(s.head, key)
}

func searchFrom[K cmp.Ordered, V any](start *node[K, V], key K) (V, bool) {
	var zero V
	cur := start
	step := fromHead
	for {
		outcome, next := compare(cur, key, step)
		switch outcome {
		case outFound:
			return next.val, true
		case outNotFound:
			return zero, false
		case outForward:
			cur, step = next, fromLeft
		case outBackward:
			cur, step = next, fromRight
		case outDown:
			cur, step = next, fromAbove
		}
	}
}

// Insert stores val under key, returning the previous value if key
// was already present (and overwriting it and its descendants).
func (s *SkipList[K, V]) Insert(key K, val V) (V, bool) {
	var zero V

	if s.head == nil {
		tower := newTower(key, val, s.levels, (*node[K, V])(nil), nil)
		s.tryUpdateHead(tower)
		s.size++
		return zero, false
	}

	cur := s.head
	step := fromHead
	var path []*node[K, V]

	for {
		outcome, next := compare(cur, key, step)
		switch outcome {
		case outBackward:
			cur, step = next, fromRight
		case outForward:
			cur, step = next, fromLeft
		case outDown:
			path = append(path, cur)
			cur, step = next, fromAbove
		case outFound:
			old := cur.val
			cur.setValue(val)
			return old, true
		case outNotFound:
			h := s.generator.Random(s.levels) + 1
			tower := newTower(key, val, h, cur, path)
			s.tryUpdateHead(tower)
			s.size++
			return zero, false
		}
	}
}

// Delete removes key's tower, returning its value if present.
func (s *SkipList[K, V]) Delete(key K) (V, bool) {
	var zero V
	if s.head == nil {
		return zero, false
	}

	first := s.head
	if first.key != key {
		return deleteElsewhere(s, key, first)
	}

	val := first.val
	s.size--

	if first.next == nil {
		s.promoteFromUnder(first)
		return val, true
	}

	s.head = first.next
	unlinkTower(first)
	return val, true
}

// promoteFromUnder handles deleting a head that has no successor on
// its own (top) level: it descends the head's tower to the first rung
// that still has a neighbor on its level, takes that neighbor (the
// predecessor if there is one, else the successor) as the new head, and
// synthesizes tower rungs above it up to s.levels. If no rung has a
// neighbor, the list becomes empty.
func (s *SkipList[K, V]) promoteFromUnder(target *node[K, V]) {
	under := target.under
	for under != nil {
		if under.prev == nil && under.next == nil {
			under = under.under
			continue
		}

		unlinkTower(target)

		var successor *node[K, V]
		if under.prev != nil {
			successor = under.prev
		} else {
			successor = under.next
		}

		key, val := successor.key, successor.val
		top := successor
		for lvl := successor.level + 1; lvl <= s.levels; lvl++ {
			promoted := newNode(key, val, lvl)
			promoted.under = top
			top = promoted
		}
		s.head = top
		return
	}

	unlinkTower(target)
	s.head = nil
}

func deleteElsewhere[K cmp.Ordered, V any](s *SkipList[K, V], key K, first *node[K, V]) (V, bool) {
	var zero V
	cur := first
	step := fromHead
	for {
		outcome, next := compare(cur, key, step)
		switch outcome {
		case outNotFound:
			return zero, false
		case outBackward:
			cur, step = next, fromRight
		case outForward:
			cur, step = next, fromLeft
		case outDown:
			cur, step = next, fromAbove
		case outFound:
			val := next.val
			unlinkTower(next)
			s.size--
			return val, true
		}
	}
}

// Iter yields (key, value) pairs left-to-right at the ground level
// only, in strictly ascending key order with no duplicates.
func (s *SkipList[K, V]) Iter() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		if s.head == nil {
			return
		}
		ground := s.head
		for ground.under != nil {
			ground = ground.under
		}
		for cur := findFirst(ground); cur != nil; cur = cur.next {
			if !yield(cur.key, cur.val) {
				return
			}
		}
	}
}

// IterAll yields every tower rung at every level, top-down and
// left-to-right within each level. Intended for diagnostics.
func (s *SkipList[K, V]) IterAll() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		if s.head == nil {
			return
		}
		for cur := findFirst(s.head); cur != nil; {
			if !yield(cur.key, cur.val) {
				return
			}
			if cur.next != nil {
				cur = cur.next
				continue
			}
			if cur.under != nil {
				cur = findFirst(cur.under)
				continue
			}
			cur = nil
		}
	}
}
