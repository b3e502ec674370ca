package textpatch

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestComputeRoundTrips(t *testing.T) {
	cases := []struct {
		name string
		old  string
		new  string
	}{
		{"identical", "same", "same"},
		{"append", "Hello", "Hello world"},
		{"prepend", "world", "Hello world"},
		{"middle", "a quick fox", "a slow fox"},
		{"delete all", "gone", ""},
		{"from empty", "", "# Title"},
		{"multiline", "# Title\n\none\n\ntwo\n\nthree", "# Title\n\nONE\n\ntwo\n\n- three"},
		{"insert block", "A\n\nC", "A\n\nB\n\nC"},
		{"utf8", "día uno\n\nnoche", "día dos\n\nnoches"},
		{"many regions", strings.Repeat("line\n", 40) + "x", strings.Repeat("line\n", 10) + "changed\n" + strings.Repeat("line\n", 29) + "y"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			patch := Compute(tc.old, tc.new)
			if err := patch.Validate(len(tc.old)); err != nil {
				t.Fatalf("invalid patch: %v", err)
			}
			got, err := Apply(tc.old, patch)
			if err != nil {
				t.Fatalf("apply: %v", err)
			}
			if got != tc.new {
				t.Fatalf("expected %q, got %q", tc.new, got)
			}
		})
	}
}

func TestComputeIsCharacterGranular(t *testing.T) {
	patch := Compute("Hello", "Hello world")
	want := Patch{{Start: 5, End: 5, Replacement: " world"}}
	if diff := cmp.Diff(want, patch); diff != "" {
		t.Fatalf("unexpected patch (-want +got):\n%s", diff)
	}

	patch = Compute("# Title\n\none\n\ntwo", "# Title\n\nonce\n\ntwo")
	want = Patch{{Start: 11, End: 11, Replacement: "c"}}
	if diff := cmp.Diff(want, patch); diff != "" {
		t.Fatalf("unexpected patch (-want +got):\n%s", diff)
	}
}

func TestComputeSeparatesDistantEdits(t *testing.T) {
	old := "alpha\nbeta\ngamma\ndelta\nepsilon"
	patch := Compute(old, "ALPHA\nbeta\ngamma\ndelta\nepsilon!")
	if len(patch) != 2 {
		t.Fatalf("expected two edits, got %+v", patch)
	}
	if patch.Size() >= len(old) {
		t.Fatalf("expected a patch smaller than the text, got size %d", patch.Size())
	}
}

func TestApplyRejectsInvalidPatches(t *testing.T) {
	cases := []Patch{
		{{Start: 2, End: 1}},
		{{Start: 0, End: 9}},
		{{Start: 3, End: 4}, {Start: 1, End: 2}},
		{{Start: 0, End: 3}, {Start: 2, End: 4}},
	}
	for _, patch := range cases {
		if _, err := Apply("abcd", patch); !errors.Is(err, ErrInvalidPatch) {
			t.Fatalf("expected invalid patch for %+v, got %v", patch, err)
		}
	}
}

func TestRebaseShiftsNonOverlappingEdits(t *testing.T) {
	base := "one two three"
	local := Compute(base, "ONE two three")
	remote := Compute(base, "one two three four")

	rebased, err := Rebase(remote, local)
	if err != nil {
		t.Fatalf("rebase: %v", err)
	}
	afterLocal, _ := Apply(base, local)
	got, err := Apply(afterLocal, rebased)
	if err != nil {
		t.Fatalf("apply rebased: %v", err)
	}
	if got != "ONE two three four" {
		t.Fatalf("unexpected merge %q", got)
	}

	remote = Compute(base, "zero one two three")
	local = Compute(base, "one two 3")
	rebased, err = Rebase(remote, local)
	if err != nil {
		t.Fatalf("rebase: %v", err)
	}
	afterLocal, _ = Apply(base, local)
	if got, _ := Apply(afterLocal, rebased); got != "zero one two 3" {
		t.Fatalf("unexpected merge %q", got)
	}
}

func TestRebaseOrdersSamePointInsertions(t *testing.T) {
	over := Patch{{Start: 3, End: 3, Replacement: "X"}}
	p := Patch{{Start: 3, End: 3, Replacement: "Y"}}

	rebased, err := Rebase(p, over)
	if err != nil {
		t.Fatalf("rebase: %v", err)
	}
	text, _ := Apply("abcdef", over)
	got, _ := Apply(text, rebased)
	if got != "abcXYdef" {
		t.Fatalf("expected over's insertion first, got %q", got)
	}
}

func TestRebaseDetectsConflicts(t *testing.T) {
	cases := []struct {
		name string
		p    Patch
		over Patch
	}{
		{"same range", Patch{{Start: 0, End: 3, Replacement: "x"}}, Patch{{Start: 0, End: 3, Replacement: "y"}}},
		{"partial overlap", Patch{{Start: 0, End: 3}}, Patch{{Start: 2, End: 5}}},
		{"insertion inside", Patch{{Start: 2, End: 2, Replacement: "x"}}, Patch{{Start: 1, End: 4}}},
		{"covers insertion", Patch{{Start: 1, End: 4}}, Patch{{Start: 2, End: 2, Replacement: "x"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Rebase(tc.p, tc.over); !errors.Is(err, ErrConflict) {
				t.Fatalf("expected conflict, got %v", err)
			}
		})
	}
}

func TestUnified(t *testing.T) {
	out := Unified("doc.md", "a\nb\n", "a\nc\n", 1)
	if !strings.Contains(out, "-b") || !strings.Contains(out, "+c") {
		t.Fatalf("unexpected unified diff %q", out)
	}
}
