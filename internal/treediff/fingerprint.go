package treediff

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"

	"github.com/goliatone/go-mdsync/internal/syntax"
)

// fingerprints memoises subtree hashes. Two subtrees share a fingerprint when
// they are structurally equal, ignoring IDs and spans.
type fingerprints map[*syntax.Node]uint64

func (f fingerprints) of(n *syntax.Node) uint64 {
	if n == nil {
		return 0
	}
	if sum, ok := f[n]; ok {
		return sum
	}

	d := xxhash.New()
	writeString(d, string(n.Kind))
	writeInt(d, int64(n.Level))
	writeInt(d, int64(n.Start))
	if n.Ordered {
		writeInt(d, 1)
	} else {
		writeInt(d, 0)
	}
	writeString(d, n.Target)
	writeString(d, n.Title)
	writeString(d, n.Alt)
	writeString(d, n.Language)
	writeString(d, n.Literal)
	if n.Raw {
		writeInt(d, 1)
	} else {
		writeInt(d, 0)
	}
	writeInt(d, int64(len(n.Children)))
	for _, child := range n.Children {
		writeInt(d, int64(f.of(child)))
	}

	sum := d.Sum64()
	f[n] = sum
	return sum
}

func writeString(d *xxhash.Digest, s string) {
	writeInt(d, int64(len(s)))
	_, _ = d.WriteString(s)
}

func writeInt(d *xxhash.Digest, v int64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(v))
	_, _ = d.Write(buf[:])
}
