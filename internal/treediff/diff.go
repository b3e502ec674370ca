// Package treediff matches two syntax trees, carries identity from the old
// tree onto the new one and reports the minimal set of node edits between
// them.
package treediff

import (
	"sort"
	"strconv"

	"github.com/google/uuid"

	"github.com/goliatone/go-mdsync/internal/syntax"
)

// Op is the kind of a node edit.
type Op string

const (
	OpInsert Op = "insert"
	OpDelete Op = "delete"
	OpUpdate Op = "update"
	OpMove   Op = "move"
)

// Edit is one node-level change. Path addresses the node in the new tree,
// except for deletes where it addresses the old tree. From is the old
// position of a moved node.
type Edit struct {
	Op   Op           `json:"op"`
	ID   uuid.UUID    `json:"id"`
	Path syntax.Path  `json:"path"`
	From syntax.Path  `json:"from,omitempty"`
	Node *syntax.Node `json:"node,omitempty"`
}

// Result is the outcome of Diff. Tree is the new tree with matched nodes
// carrying the IDs of their old counterparts.
type Result struct {
	Tree *syntax.Node
	// Mapping relates each matched old ID to the ID the node had in the new
	// tree before stitching.
	Mapping map[uuid.UUID]uuid.UUID
	Edits   []Edit

	dirty map[uuid.UUID]struct{}
}

// Empty reports whether the trees were structurally identical.
func (r Result) Empty() bool {
	return len(r.Edits) == 0
}

// Dirty returns the IDs of every edit target and every ancestor of one, in
// either tree. Nodes outside this set are unchanged.
func (r Result) Dirty() map[uuid.UUID]struct{} {
	return r.dirty
}

// IsDirty reports whether id belongs to the dirty set.
func (r Result) IsDirty(id uuid.UUID) bool {
	_, ok := r.dirty[id]
	return ok
}

type candidate struct {
	node *syntax.Node
	path syntax.Path
}

type differ struct {
	oldFP fingerprints
	newFP fingerprints

	oldIDs map[uuid.UUID]*syntax.Node
	newIDs map[uuid.UUID]struct{}

	// pairs maps a new node to its matched old node.
	pairs map[*syntax.Node]*syntax.Node
	// oldPaths remembers where each matched old node lived.
	oldPaths map[*syntax.Node]syntax.Path
	updated  map[*syntax.Node]bool
	moved    map[*syntax.Node]syntax.Path
	inserted map[*syntax.Node]bool

	deletes []candidate
	inserts []candidate
}

// Diff matches newTree against oldTree. Siblings are matched by identity when
// both trees share IDs, then by longest common subsequence over subtree
// fingerprints, then positionally by kind. Unmatched subtrees with equal
// fingerprints (or equal IDs) in different places become moves. Neither input
// is modified.
func Diff(oldTree, newTree *syntax.Node) Result {
	d := &differ{
		oldFP:    fingerprints{},
		newFP:    fingerprints{},
		oldIDs:   syntax.Index(oldTree),
		newIDs:   map[uuid.UUID]struct{}{},
		pairs:    map[*syntax.Node]*syntax.Node{},
		oldPaths: map[*syntax.Node]syntax.Path{},
		updated:  map[*syntax.Node]bool{},
		moved:    map[*syntax.Node]syntax.Path{},
		inserted: map[*syntax.Node]bool{},
	}
	syntax.Walk(newTree, func(n *syntax.Node, _ syntax.Path) bool {
		d.newIDs[n.ID] = struct{}{}
		return true
	})

	switch {
	case newTree == nil:
		if oldTree != nil {
			d.deletes = append(d.deletes, candidate{node: oldTree, path: syntax.Path{}})
		}
	case oldTree == nil:
		d.inserts = append(d.inserts, candidate{node: newTree, path: syntax.Path{}})
	case oldTree.Kind != newTree.Kind:
		d.deletes = append(d.deletes, candidate{node: oldTree, path: syntax.Path{}})
		d.inserts = append(d.inserts, candidate{node: newTree, path: syntax.Path{}})
	default:
		d.match(oldTree, newTree, syntax.Path{}, false)
	}

	d.detectMoves()

	result := Result{
		Mapping: make(map[uuid.UUID]uuid.UUID, len(d.pairs)),
		dirty:   map[uuid.UUID]struct{}{},
	}
	for n, o := range d.pairs {
		result.Mapping[o.ID] = n.ID
	}

	var edits []Edit
	result.Tree = d.stitch(newTree, syntax.Path{}, false, &edits)

	sort.SliceStable(d.deletes, func(i, j int) bool {
		return comparePaths(d.deletes[i].path, d.deletes[j].path) > 0
	})
	for _, del := range d.deletes {
		result.Edits = append(result.Edits, Edit{Op: OpDelete, ID: del.node.ID, Path: del.path.Clone(), Node: del.node})
		markAncestors(result.dirty, oldTree, del.path, false)
		result.dirty[del.node.ID] = struct{}{}
	}
	for _, e := range edits {
		result.Edits = append(result.Edits, e)
		markAncestors(result.dirty, result.Tree, e.Path, true)
		if e.Op == OpMove {
			markAncestors(result.dirty, oldTree, e.From, false)
		}
	}
	return result
}

// match pairs o and n and recurses into their children. When silent is set
// (inside a moved subtree) no edits are recorded.
func (d *differ) match(o, n *syntax.Node, path syntax.Path, silent bool) {
	d.pairs[n] = o
	if !silent && !syntax.SameAttributes(o, n) {
		d.updated[n] = true
	}

	oldChildren, newChildren := o.Children, n.Children
	matchedOld := make([]bool, len(oldChildren))
	matchedNew := make([]bool, len(newChildren))

	eq := func(i, j int) bool {
		oc, nc := oldChildren[i], newChildren[j]
		if d.keyedNew(nc) {
			return nc.ID == oc.ID
		}
		if d.keyedOld(oc) {
			return false
		}
		return d.oldFP.of(oc) == d.newFP.of(nc)
	}
	keys := func() ([]string, []string) {
		a := make([]string, len(oldChildren))
		for i, oc := range oldChildren {
			a[i] = d.key(oc, d.oldFP, d.keyedOld(oc))
		}
		b := make([]string, len(newChildren))
		for j, nc := range newChildren {
			b[j] = d.key(nc, d.newFP, d.keyedNew(nc))
		}
		return a, b
	}

	anchors := commonSubsequence(len(oldChildren), len(newChildren), eq, keys)
	for _, p := range anchors {
		matchedOld[p.old], matchedNew[p.new] = true, true
		d.oldPaths[oldChildren[p.old]] = path.Child(p.old)
		d.match(oldChildren[p.old], newChildren[p.new], path.Child(p.new), silent)
	}

	// Pair the gaps between anchors positionally by kind.
	prevOld, prevNew := 0, 0
	gaps := append(anchors, pair{len(oldChildren), len(newChildren)})
	for _, anchor := range gaps {
		cursor := prevOld
		for j := prevNew; j < anchor.new; j++ {
			nc := newChildren[j]
			if d.keyedNew(nc) {
				continue
			}
			i := d.pickPositional(oldChildren, matchedOld, cursor, anchor.old, nc)
			if i < 0 {
				continue
			}
			matchedOld[i], matchedNew[j] = true, true
			cursor = i + 1
			d.oldPaths[oldChildren[i]] = path.Child(i)
			d.match(oldChildren[i], nc, path.Child(j), silent)
		}
		prevOld, prevNew = anchor.old+1, anchor.new+1
	}

	if silent {
		return
	}
	for i, oc := range oldChildren {
		if !matchedOld[i] {
			d.deletes = append(d.deletes, candidate{node: oc, path: path.Child(i)})
		}
	}
	for j, nc := range newChildren {
		if !matchedNew[j] {
			d.inserts = append(d.inserts, candidate{node: nc, path: path.Child(j)})
		}
	}
}

// pickPositional finds the first unmatched old sibling in [from, to) with the
// same kind as n, preferring one whose own attributes are equal.
func (d *differ) pickPositional(old []*syntax.Node, matched []bool, from, to int, n *syntax.Node) int {
	fallback := -1
	for i := from; i < to; i++ {
		if matched[i] || d.keyedOld(old[i]) || old[i].Kind != n.Kind {
			continue
		}
		if syntax.SameAttributes(old[i], n) {
			return i
		}
		if fallback < 0 {
			fallback = i
			if !n.Kind.IsLiteral() {
				return i
			}
		}
	}
	return fallback
}

// detectMoves pairs unmatched new subtrees with unmatched old ones that carry
// the same ID or the same fingerprint.
func (d *differ) detectMoves() {
	if len(d.deletes) == 0 || len(d.inserts) == 0 {
		for _, ins := range d.inserts {
			d.inserted[ins.node] = true
		}
		return
	}

	usedDelete := make([]bool, len(d.deletes))
	byID := make(map[uuid.UUID]int, len(d.deletes))
	byFP := make(map[uint64][]int, len(d.deletes))
	for i, del := range d.deletes {
		byID[del.node.ID] = i
		fp := d.oldFP.of(del.node)
		byFP[fp] = append(byFP[fp], i)
	}

	for _, ins := range d.inserts {
		idx := -1
		if d.keyedNew(ins.node) {
			if i, ok := byID[ins.node.ID]; ok && !usedDelete[i] {
				idx = i
			}
		} else {
			for _, i := range byFP[d.newFP.of(ins.node)] {
				if !usedDelete[i] && !d.keyedOld(d.deletes[i].node) {
					idx = i
					break
				}
			}
		}
		if idx < 0 {
			d.inserted[ins.node] = true
			continue
		}
		usedDelete[idx] = true
		del := d.deletes[idx]
		d.moved[ins.node] = del.path
		d.match(del.node, ins.node, ins.path, true)
	}

	remaining := d.deletes[:0]
	for i, del := range d.deletes {
		if !usedDelete[i] {
			remaining = append(remaining, del)
		}
	}
	d.deletes = remaining
}

// stitch copies the new tree, assigning matched nodes the old IDs, and
// records insert, move and update edits in document order.
func (d *differ) stitch(n *syntax.Node, path syntax.Path, covered bool, edits *[]Edit) *syntax.Node {
	if n == nil {
		return nil
	}
	out := n.ShallowCopy()
	if o, ok := d.pairs[n]; ok {
		out.ID = o.ID
	}

	op := Op("")
	var from syntax.Path
	switch {
	case covered:
	case d.inserted[n]:
		op = OpInsert
	case d.moved[n] != nil:
		op, from = OpMove, d.moved[n]
	case d.updated[n]:
		op = OpUpdate
	}

	if op != "" {
		*edits = append(*edits, Edit{Op: op, ID: out.ID, Path: path.Clone(), From: from})
	}
	idx := len(*edits) - 1

	childCovered := covered || op == OpInsert || op == OpMove
	for i, child := range n.Children {
		out.Children[i] = d.stitch(child, path.Child(i), childCovered, edits)
	}
	if op != "" {
		(*edits)[idx].Node = out
	}
	return out
}

func (d *differ) keyedNew(n *syntax.Node) bool {
	_, ok := d.oldIDs[n.ID]
	return ok
}

func (d *differ) keyedOld(n *syntax.Node) bool {
	_, ok := d.newIDs[n.ID]
	return ok
}

func (d *differ) key(n *syntax.Node, fp fingerprints, keyed bool) string {
	if keyed {
		return "id:" + n.ID.String()
	}
	return "fp:" + strconv.FormatUint(fp.of(n), 16)
}

func markAncestors(dirty map[uuid.UUID]struct{}, root *syntax.Node, path syntax.Path, inclusive bool) {
	chain, ok := syntax.Ancestors(root, path)
	if !ok {
		return
	}
	if !inclusive {
		chain = chain[:len(chain)-1]
	}
	for _, n := range chain {
		dirty[n.ID] = struct{}{}
	}
}

func comparePaths(a, b syntax.Path) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return len(a) - len(b)
}
