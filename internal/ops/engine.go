// Package ops applies structured edits to immutable syntax trees. Every
// successful application returns a new root that shares untouched subtrees
// with the input, together with the operation that exactly reverts it.
package ops

import (
	"errors"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/goliatone/go-mdsync/internal/syntax"
)

// Result is the outcome of a successful Apply.
type Result struct {
	Tree    *syntax.Node
	Inverse Operation
}

// Engine applies operations. The zero value is ready to use.
type Engine struct{}

// NewEngine returns an operation engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Apply validates op against tree and returns the edited tree and the
// inverse operation. On error the input tree is untouched and no partial
// result is returned.
func (e *Engine) Apply(tree *syntax.Node, op Operation) (Result, error) {
	if tree == nil {
		return Result{}, invalid(op, "nil tree")
	}
	if op.Kind == KindBatch {
		return e.applyBatch(tree, op)
	}
	return e.applyOne(tree, op)
}

func (e *Engine) applyBatch(tree *syntax.Node, op Operation) (Result, error) {
	current := tree
	inverses := make([]Operation, 0, len(op.Ops))
	for i, inner := range op.Ops {
		res, err := e.Apply(current, inner)
		if err != nil {
			var opErr *Error
			if errors.As(err, &opErr) && opErr.Step < 0 {
				opErr.Step = i
			}
			return Result{}, err
		}
		current = res.Tree
		inverses = append(inverses, res.Inverse)
	}
	for i, j := 0, len(inverses)-1; i < j; i, j = i+1, j-1 {
		inverses[i], inverses[j] = inverses[j], inverses[i]
	}
	inverse := Batch(inverses...)
	inverse.BaseVersion = op.BaseVersion
	return Result{Tree: current, Inverse: inverse}, nil
}

func (e *Engine) applyOne(tree *syntax.Node, op Operation) (Result, error) {
	var (
		res Result
		err *Error
	)
	switch op.Kind {
	case KindInsert:
		res, err = applyInsert(tree, op)
	case KindDelete:
		res, err = applyDelete(tree, op)
	case KindReplace:
		res, err = applyReplace(tree, op)
	case KindMove:
		res, err = applyMove(tree, op)
	case KindTextEdit:
		res, err = applyTextEdit(tree, op)
	default:
		err = invalid(op, "unknown operation kind %q", op.Kind)
	}
	if err != nil {
		return Result{}, err
	}
	res.Inverse.BaseVersion = op.BaseVersion
	return res, nil
}

func applyInsert(tree *syntax.Node, op Operation) (Result, *Error) {
	chain, err := resolveParent(tree, op, op.Path, op.Target)
	if err != nil {
		return Result{}, err
	}
	parent := chain[len(chain)-1]
	if op.Index < 0 || op.Index > len(parent.Children) {
		return Result{}, positionError(op, "index %d out of range [0,%d]", op.Index, len(parent.Children))
	}
	node, err := admit(tree, chain, op)
	if err != nil {
		return Result{}, err
	}

	updated := parent.ShallowCopy()
	updated.Children = insertAt(parent.Children, op.Index, node)
	return Result{
		Tree:    setAt(tree, op.Path, updated),
		Inverse: Delete(op.Path, op.Index).Expect(node.ID),
	}, nil
}

func applyDelete(tree *syntax.Node, op Operation) (Result, *Error) {
	chain, err := resolveParent(tree, op, op.Path, uuid.Nil)
	if err != nil {
		return Result{}, err
	}
	parent := chain[len(chain)-1]
	child, err := childAt(parent, op)
	if err != nil {
		return Result{}, err
	}

	updated := parent.ShallowCopy()
	updated.Children = removeAt(parent.Children, op.Index)
	return Result{
		Tree:    setAt(tree, op.Path, updated),
		Inverse: Insert(op.Path, op.Index, child).Expect(parent.ID),
	}, nil
}

func applyReplace(tree *syntax.Node, op Operation) (Result, *Error) {
	chain, err := resolveParent(tree, op, op.Path, uuid.Nil)
	if err != nil {
		return Result{}, err
	}
	parent := chain[len(chain)-1]
	old, err := childAt(parent, op)
	if err != nil {
		return Result{}, err
	}
	// The replaced subtree leaves the tree, so its IDs may be reused.
	rest := removeAt(parent.Children, op.Index)
	without := parent.ShallowCopy()
	without.Children = rest
	node, err := admit(setAt(tree, op.Path, without), chain, op)
	if err != nil {
		return Result{}, err
	}

	updated := parent.ShallowCopy()
	updated.Children[op.Index] = node
	return Result{
		Tree:    setAt(tree, op.Path, updated),
		Inverse: Replace(op.Path, op.Index, old).Expect(node.ID),
	}, nil
}

func applyMove(tree *syntax.Node, op Operation) (Result, *Error) {
	chain, err := resolveParent(tree, op, op.Path, uuid.Nil)
	if err != nil {
		return Result{}, err
	}
	parent := chain[len(chain)-1]
	child, err := childAt(parent, op)
	if err != nil {
		return Result{}, err
	}

	without := parent.ShallowCopy()
	without.Children = removeAt(parent.Children, op.Index)
	detached := setAt(tree, op.Path, without)

	destChain, ok := syntax.Ancestors(detached, op.ToPath)
	if !ok {
		if op.ToTarget != uuid.Nil {
			return Result{}, stale(op, "destination %s no longer resolves", op.ToPath)
		}
		return Result{}, invalid(op, "destination %s does not resolve", op.ToPath)
	}
	dest := destChain[len(destChain)-1]
	if op.ToTarget != uuid.Nil && dest.ID != op.ToTarget {
		return Result{}, stale(op, "destination %s holds %s, expected %s", op.ToPath, dest.ID, op.ToTarget)
	}
	if op.ToIndex < 0 || op.ToIndex > len(dest.Children) {
		return Result{}, invalid(op, "destination index %d out of range [0,%d]", op.ToIndex, len(dest.Children))
	}
	if err := checkPlacement(op, destChain, child); err != nil {
		return Result{}, err
	}

	moved := dest.ShallowCopy()
	moved.Children = insertAt(dest.Children, op.ToIndex, child)
	inverse := Move(op.ToPath, op.ToIndex, op.Path, op.Index).Expect(child.ID)
	inverse.ToTarget = parent.ID
	return Result{
		Tree:    setAt(detached, op.ToPath, moved),
		Inverse: inverse,
	}, nil
}

func applyTextEdit(tree *syntax.Node, op Operation) (Result, *Error) {
	node, ok := syntax.Resolve(tree, op.Path)
	if !ok {
		if op.Target != uuid.Nil {
			return Result{}, stale(op, "path no longer resolves")
		}
		return Result{}, invalid(op, "path does not resolve")
	}
	if op.Target != uuid.Nil && node.ID != op.Target {
		return Result{}, stale(op, "node %s found, expected %s", node.ID, op.Target)
	}
	if !node.Kind.IsLiteral() {
		return Result{}, invalid(op, "%s does not carry a literal", node.Kind)
	}
	start, end := op.Range.Start, op.Range.End
	if start < 0 || end < start || end > len(node.Literal) {
		return Result{}, positionError(op, "range [%d,%d) outside literal of length %d", start, end, len(node.Literal))
	}
	if !onRuneBoundary(node.Literal, start) || !onRuneBoundary(node.Literal, end) {
		return Result{}, invalid(op, "range [%d,%d) splits a character", start, end)
	}
	if !utf8.ValidString(op.Text) {
		return Result{}, invalid(op, "replacement is not valid UTF-8")
	}

	removed := node.Literal[start:end]
	updated := node.ShallowCopy()
	updated.Literal = node.Literal[:start] + op.Text + node.Literal[end:]

	inverse := TextEdit(op.Path, start, start+len(op.Text), removed).Expect(node.ID)
	return Result{
		Tree:    setAt(tree, op.Path, updated),
		Inverse: inverse,
	}, nil
}

// resolveParent returns the ancestor chain ending at the node addressed by
// path, checking it against want when set.
func resolveParent(tree *syntax.Node, op Operation, path syntax.Path, want uuid.UUID) ([]*syntax.Node, *Error) {
	chain, ok := syntax.Ancestors(tree, path)
	if !ok {
		if op.Target != uuid.Nil {
			return nil, stale(op, "path no longer resolves")
		}
		return nil, invalid(op, "path does not resolve")
	}
	parent := chain[len(chain)-1]
	if want != uuid.Nil && parent.ID != want {
		return nil, stale(op, "node %s found, expected %s", parent.ID, want)
	}
	if !parent.Kind.IsContainer() {
		return nil, invalid(op, "%s cannot hold children", parent.Kind)
	}
	return chain, nil
}

func childAt(parent *syntax.Node, op Operation) (*syntax.Node, *Error) {
	if op.Index < 0 || op.Index >= len(parent.Children) {
		return nil, positionError(op, "index %d out of range [0,%d)", op.Index, len(parent.Children))
	}
	child := parent.Children[op.Index]
	if op.Target != uuid.Nil && child.ID != op.Target {
		return nil, stale(op, "child %s found, expected %s", child.ID, op.Target)
	}
	return child, nil
}

// positionError reports a bad position. Guarded operations were valid when
// they were issued, so a bad position means the tree moved under them.
func positionError(op Operation, detail string, args ...any) *Error {
	if op.Target != uuid.Nil {
		return stale(op, detail, args...)
	}
	return invalid(op, detail, args...)
}

// admit validates the node carried by an insert or replace and returns the
// copy that enters the tree, with missing IDs allocated.
func admit(tree *syntax.Node, chain []*syntax.Node, op Operation) (*syntax.Node, *Error) {
	if op.Node == nil {
		return nil, invalid(op, "missing node")
	}
	if op.Node.Kind == syntax.KindDocument {
		return nil, invalid(op, "document nodes cannot be inserted")
	}
	node := op.Node.Clone()
	if err := syntax.Validate(node); err != nil {
		return nil, invalid(op, "%v", err)
	}
	if err := checkPlacement(op, chain, node); err != nil {
		return nil, err
	}

	existing := syntax.Index(tree)
	seen := make(map[uuid.UUID]struct{})
	var dup uuid.UUID
	syntax.Walk(node, func(n *syntax.Node, _ syntax.Path) bool {
		if dup != uuid.Nil {
			return false
		}
		if n.ID == uuid.Nil {
			n.ID = syntax.NewID()
		}
		if _, ok := existing[n.ID]; ok {
			dup = n.ID
		}
		if _, ok := seen[n.ID]; ok {
			dup = n.ID
		}
		seen[n.ID] = struct{}{}
		return true
	})
	if dup != uuid.Nil {
		return nil, invalid(op, "node id %s already in use", dup)
	}
	return node, nil
}

// checkPlacement enforces the containment schema for node placed under the
// last element of chain.
func checkPlacement(op Operation, chain []*syntax.Node, node *syntax.Node) *Error {
	parent := chain[len(chain)-1]
	if !syntax.CanContain(parent.Kind, node.Kind) {
		return invalid(op, "%s cannot contain %s", parent.Kind, node.Kind)
	}
	if !hasLink(node) {
		return nil
	}
	for _, ancestor := range chain {
		if ancestor.Kind == syntax.KindLink {
			return invalid(op, "links cannot nest")
		}
	}
	return nil
}

func hasLink(n *syntax.Node) bool {
	found := false
	syntax.Walk(n, func(node *syntax.Node, _ syntax.Path) bool {
		if node.Kind == syntax.KindLink {
			found = true
		}
		return !found
	})
	return found
}

// setAt returns a copy of root where the node at path is replaced by repl.
// Only the nodes along path are copied.
func setAt(root *syntax.Node, path syntax.Path, repl *syntax.Node) *syntax.Node {
	if len(path) == 0 {
		return repl
	}
	cp := root.ShallowCopy()
	cp.Children[path[0]] = setAt(root.Children[path[0]], path[1:], repl)
	return cp
}

func insertAt(children []*syntax.Node, idx int, node *syntax.Node) []*syntax.Node {
	out := make([]*syntax.Node, 0, len(children)+1)
	out = append(out, children[:idx]...)
	out = append(out, node)
	return append(out, children[idx:]...)
}

func removeAt(children []*syntax.Node, idx int) []*syntax.Node {
	out := make([]*syntax.Node, 0, len(children)-1)
	out = append(out, children[:idx]...)
	return append(out, children[idx+1:]...)
}

func onRuneBoundary(s string, i int) bool {
	return i == 0 || i == len(s) || utf8.RuneStart(s[i])
}
