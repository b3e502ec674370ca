package syntax

import "testing"

func sampleTree() *Node {
	return New(KindDocument,
		NewHeading(1, NewText("Title")),
		NewParagraph(NewText("Hello "), New(KindStrong, NewText("world"))),
	)
}

func TestResolveAndAncestors(t *testing.T) {
	root := sampleTree()

	node, ok := Resolve(root, Path{1, 1, 0})
	if !ok || node.Literal != "world" {
		t.Fatalf("expected to resolve world text, got %#v ok=%v", node, ok)
	}

	if _, ok := Resolve(root, Path{3}); ok {
		t.Fatal("expected out of range path to fail")
	}

	chain, ok := Ancestors(root, Path{1, 1})
	if !ok || len(chain) != 3 || chain[2].Kind != KindStrong {
		t.Fatalf("unexpected ancestor chain: %#v", chain)
	}
}

func TestFindReturnsPath(t *testing.T) {
	root := sampleTree()
	target := root.Children[1].Children[1]

	node, path, ok := Find(root, target.ID)
	if !ok || node != target {
		t.Fatalf("expected to find strong node")
	}
	if !path.Equal(Path{1, 1}) {
		t.Fatalf("expected path /1/1, got %s", path)
	}
}

func TestEqualIgnoresIdentity(t *testing.T) {
	a := sampleTree()
	b := a.Reidentify()

	if a.ID == b.ID {
		t.Fatal("expected reidentified tree to carry fresh ids")
	}
	if !Equal(a, b) {
		t.Fatal("expected structurally identical trees to compare equal")
	}

	b.Children[0].Level = 2
	if Equal(a, b) {
		t.Fatal("expected heading level change to break equality")
	}
}

func TestShallowCopySharesChildren(t *testing.T) {
	root := sampleTree()
	cp := root.ShallowCopy()
	cp.Children[0] = NewParagraph()

	if root.Children[0].Kind != KindHeading {
		t.Fatal("expected original children slice to stay untouched")
	}
	if cp.Children[1] != root.Children[1] {
		t.Fatal("expected untouched children to be shared")
	}
}

func TestValidateRejectsSchemaViolations(t *testing.T) {
	cases := []struct {
		name string
		node *Node
	}{
		{name: "paragraph in paragraph", node: NewParagraph(NewParagraph())},
		{name: "text in list", node: NewList(false, NewText("x"))},
		{name: "nested link", node: NewLink("a", "", New(KindEmphasis, NewLink("b", "")))},
		{name: "heading level", node: NewHeading(7)},
		{name: "leaf with children", node: &Node{Kind: KindText, Children: []*Node{NewText("x")}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := Validate(tc.node); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}

	if err := Validate(sampleTree()); err != nil {
		t.Fatalf("expected sample tree to validate: %v", err)
	}
}

func TestPathHelpers(t *testing.T) {
	p := Path{0, 2}
	if p.String() != "/0/2" {
		t.Fatalf("unexpected path rendering %s", p)
	}
	if (Path{}).String() != "/" {
		t.Fatal("expected root path to render as /")
	}
	child := p.Child(1)
	if !child.HasPrefix(p) || p.HasPrefix(child) {
		t.Fatal("unexpected prefix relation")
	}
	parent, idx, ok := child.Parent()
	if !ok || idx != 1 || !parent.Equal(p) {
		t.Fatalf("unexpected parent %s idx %d", parent, idx)
	}
}
