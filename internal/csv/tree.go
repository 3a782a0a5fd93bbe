package csv

import (
	"time"

	"github.com/shopspring/decimal"
)

type nodeKind uint8

const (
	nodeNull nodeKind = iota
	nodeBool
	nodeInt
	nodeFloat
	nodeDecimal
	nodeString
	nodeTime
	nodeArray
	nodeRow
)

// node is one cell of the intermediate tree a row is converted into
// before text rendering. Nodes are reused across Serialize calls: reset
// clears the content but keeps allocated capacity and identity.
type node struct {
	kind     nodeKind
	b        bool
	i        int64
	f        float64
	d        decimal.Decimal
	s        string
	t        time.Time
	children []*node
}

func (n *node) reset() {
	n.kind = nodeNull
	n.s = ""
	n.children = n.children[:0]
}

func (n *node) setBool(v bool)               { n.kind = nodeBool; n.b = v }
func (n *node) setInt(v int64)               { n.kind = nodeInt; n.i = v }
func (n *node) setFloat(v float64)           { n.kind = nodeFloat; n.f = v }
func (n *node) setDecimal(v decimal.Decimal) { n.kind = nodeDecimal; n.d = v }
func (n *node) setString(v string)           { n.kind = nodeString; n.s = v }
func (n *node) setTime(v time.Time)          { n.kind = nodeTime; n.t = v }

// arena hands out tree nodes with stable identity across Serialize
// calls. After the shape of the incoming rows stabilizes, alloc never
// allocates: reset rewinds the cursor and the same nodes are reused in
// the same order.
type arena struct {
	nodes []*node
	next  int
}

func (a *arena) alloc() *node {
	if a.next < len(a.nodes) {
		n := a.nodes[a.next]
		a.next++
		n.reset()
		return n
	}
	n := &node{}
	a.nodes = append(a.nodes, n)
	a.next++
	return n
}

func (a *arena) reset() {
	a.next = 0
}

// converterContext bundles the node allocator and the reusable tree root
// handed to the row converter. One context per serializer instance; it is
// single-writer mutable state and must never be shared.
type converterContext struct {
	arena *arena
	root  *node
}

func newConverterContext() *converterContext {
	ctx := &converterContext{
		arena: &arena{},
		root:  &node{},
	}
	ctx.root.kind = nodeRow
	return ctx
}

// reset rewinds the arena and clears the root's children without
// reallocating either.
func (c *converterContext) reset() {
	c.arena.reset()
	c.root.reset()
	c.root.kind = nodeRow
}
