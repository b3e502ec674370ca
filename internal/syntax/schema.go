package syntax

import "fmt"

// CanContain reports whether a node of kind parent may hold a child of kind
// child. Links never nest.
func CanContain(parent, child Kind) bool {
	switch parent {
	case KindDocument, KindListItem:
		return child.IsBlock()
	case KindList:
		return child == KindListItem
	case KindHeading, KindParagraph, KindEmphasis, KindStrong:
		return child.IsInline()
	case KindLink:
		return child.IsInline() && child != KindLink
	default:
		return false
	}
}

// Validate checks that n and its descendants respect the containment schema
// and attribute ranges. A nil error means the subtree can be serialized.
func Validate(n *Node) error {
	var err error
	Walk(n, func(node *Node, path Path) bool {
		if err != nil {
			return false
		}
		if node.Kind == KindHeading && (node.Level < 1 || node.Level > 6) {
			err = fmt.Errorf("syntax: heading level %d out of range at %s", node.Level, path)
			return false
		}
		if node.Raw && node.Kind != KindParagraph && node.Kind != KindText {
			err = fmt.Errorf("syntax: %s at %s cannot be raw", node.Kind, path)
			return false
		}
		if !node.Kind.IsContainer() && len(node.Children) > 0 {
			err = fmt.Errorf("syntax: %s at %s cannot hold children", node.Kind, path)
			return false
		}
		for i, child := range node.Children {
			if child == nil {
				err = fmt.Errorf("syntax: nil child at %s", path.Child(i))
				return false
			}
			if node.Raw && child.Kind != KindText {
				err = fmt.Errorf("syntax: raw paragraph holds %s at %s", child.Kind, path.Child(i))
				return false
			}
			if !CanContain(node.Kind, child.Kind) {
				err = fmt.Errorf("syntax: %s cannot contain %s at %s", node.Kind, child.Kind, path.Child(i))
				return false
			}
			if node.Kind == KindLink && containsLink(child) {
				err = fmt.Errorf("syntax: nested link at %s", path.Child(i))
				return false
			}
		}
		return true
	})
	return err
}

func containsLink(n *Node) bool {
	found := false
	Walk(n, func(node *Node, _ Path) bool {
		if node.Kind == KindLink {
			found = true
		}
		return !found
	})
	return found
}
