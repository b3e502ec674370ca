package syntax

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Path addresses a node by child indices from the root.
type Path []int

// String renders the path as "/0/2/1"; the root is "/".
func (p Path) String() string {
	if len(p) == 0 {
		return "/"
	}
	var b strings.Builder
	for _, idx := range p {
		b.WriteByte('/')
		b.WriteString(strconv.Itoa(idx))
	}
	return b.String()
}

// Child returns a new path extended with idx.
func (p Path) Child(idx int) Path {
	out := make(Path, len(p)+1)
	copy(out, p)
	out[len(p)] = idx
	return out
}

// Parent returns the parent path and the last index. ok is false for the root.
func (p Path) Parent() (parent Path, idx int, ok bool) {
	if len(p) == 0 {
		return nil, 0, false
	}
	return p[:len(p)-1 : len(p)-1], p[len(p)-1], true
}

// Clone returns an independent copy of p.
func (p Path) Clone() Path {
	if p == nil {
		return nil
	}
	out := make(Path, len(p))
	copy(out, p)
	return out
}

// HasPrefix reports whether prefix is an ancestor-or-self path of p.
func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix) > len(p) {
		return false
	}
	for i := range prefix {
		if p[i] != prefix[i] {
			return false
		}
	}
	return true
}

// Equal reports whether both paths address the same position.
func (p Path) Equal(other Path) bool {
	return len(p) == len(other) && p.HasPrefix(other)
}

// Resolve walks path from root. ok is false when any index is out of range.
func Resolve(root *Node, path Path) (*Node, bool) {
	node := root
	for _, idx := range path {
		if node == nil || idx < 0 || idx >= len(node.Children) {
			return nil, false
		}
		node = node.Children[idx]
	}
	return node, node != nil
}

// Ancestors returns the nodes visited from root to the node at path,
// inclusive. ok is false when the path does not resolve.
func Ancestors(root *Node, path Path) ([]*Node, bool) {
	if root == nil {
		return nil, false
	}
	chain := make([]*Node, 0, len(path)+1)
	node := root
	chain = append(chain, node)
	for _, idx := range path {
		if idx < 0 || idx >= len(node.Children) {
			return nil, false
		}
		node = node.Children[idx]
		chain = append(chain, node)
	}
	return chain, true
}

// Find locates the node with the given ID, returning it with its path.
func Find(root *Node, id uuid.UUID) (*Node, Path, bool) {
	var (
		found *Node
		at    Path
	)
	Walk(root, func(n *Node, p Path) bool {
		if found != nil {
			return false
		}
		if n.ID == id {
			found = n
			at = p.Clone()
			return false
		}
		return true
	})
	return found, at, found != nil
}

// Walk visits n and its descendants depth first. Returning false from fn
// skips the children of the visited node.
func Walk(n *Node, fn func(*Node, Path) bool) {
	walk(n, nil, fn)
}

func walk(n *Node, path Path, fn func(*Node, Path) bool) {
	if n == nil {
		return
	}
	if !fn(n, path) {
		return
	}
	for i, child := range n.Children {
		walk(child, path.Child(i), fn)
	}
}

// Index builds an ID lookup over the tree.
func Index(root *Node) map[uuid.UUID]*Node {
	out := make(map[uuid.UUID]*Node)
	Walk(root, func(n *Node, _ Path) bool {
		out[n.ID] = n
		return true
	})
	return out
}
