package treediff

import (
	"github.com/pmezard/go-difflib/difflib"
)

// maxTable bounds the dynamic programming table; larger sibling lists fall
// back to difflib's matching blocks, which are not guaranteed minimal.
const maxTable = 1 << 20

// pair is one matched (old index, new index) position.
type pair struct {
	old int
	new int
}

// commonSubsequence returns matched index pairs in increasing order for two
// sequences of lengths n and m under eq. keys is only consulted for sequences
// too large for the exact table.
func commonSubsequence(n, m int, eq func(i, j int) bool, keys func() ([]string, []string)) []pair {
	var out []pair

	prefix := 0
	for prefix < n && prefix < m && eq(prefix, prefix) {
		out = append(out, pair{prefix, prefix})
		prefix++
	}
	suffix := 0
	for suffix < n-prefix && suffix < m-prefix && eq(n-1-suffix, m-1-suffix) {
		suffix++
	}

	oldLo, oldHi := prefix, n-suffix
	newLo, newHi := prefix, m-suffix
	if oldLo < oldHi && newLo < newHi {
		if (oldHi-oldLo)*(newHi-newLo) <= maxTable {
			out = append(out, exactLCS(oldLo, oldHi, newLo, newHi, eq)...)
		} else {
			out = append(out, approximateLCS(oldLo, oldHi, newLo, newHi, eq, keys)...)
		}
	}

	for k := suffix; k > 0; k-- {
		out = append(out, pair{n - k, m - k})
	}
	return out
}

func exactLCS(oldLo, oldHi, newLo, newHi int, eq func(i, j int) bool) []pair {
	rows, cols := oldHi-oldLo, newHi-newLo
	table := make([]int32, (rows+1)*(cols+1))
	at := func(i, j int) int { return i*(cols+1) + j }

	for i := rows - 1; i >= 0; i-- {
		for j := cols - 1; j >= 0; j-- {
			if eq(oldLo+i, newLo+j) {
				table[at(i, j)] = table[at(i+1, j+1)] + 1
			} else if table[at(i+1, j)] >= table[at(i, j+1)] {
				table[at(i, j)] = table[at(i+1, j)]
			} else {
				table[at(i, j)] = table[at(i, j+1)]
			}
		}
	}

	var out []pair
	i, j := 0, 0
	for i < rows && j < cols {
		switch {
		case eq(oldLo+i, newLo+j):
			out = append(out, pair{oldLo + i, newLo + j})
			i++
			j++
		case table[at(i+1, j)] >= table[at(i, j+1)]:
			i++
		default:
			j++
		}
	}
	return out
}

func approximateLCS(oldLo, oldHi, newLo, newHi int, eq func(i, j int) bool, keys func() ([]string, []string)) []pair {
	a, b := keys()
	matcher := difflib.NewMatcherWithJunk(a[oldLo:oldHi], b[newLo:newHi], false, nil)
	var out []pair
	for _, block := range matcher.GetMatchingBlocks() {
		for k := 0; k < block.Size; k++ {
			i, j := oldLo+block.A+k, newLo+block.B+k
			if eq(i, j) {
				out = append(out, pair{i, j})
			}
		}
	}
	return out
}
