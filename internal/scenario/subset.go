package scenario

import (
	"errors"
	"math/bits"
	"strconv"
	"strings"
)

// MaxCatalogSize bounds catalogs to what an IndexSet can address.
const MaxCatalogSize = 64

var ErrCatalogTooLarge = errors.New("scenario: catalog exceeds index set capacity")

// IndexSet is a set of catalog positions, bit i set when entry i is a member.
type IndexSet uint64

// NewIndexSet builds a set from catalog positions.
func NewIndexSet(indices ...int) IndexSet {
	var s IndexSet
	for _, i := range indices {
		s |= 1 << uint(i)
	}
	return s
}

func (s IndexSet) Has(i int) bool {
	if i < 0 || i >= MaxCatalogSize {
		return false
	}
	return s&(1<<uint(i)) != 0
}

func (s IndexSet) Len() int {
	return bits.OnesCount64(uint64(s))
}

// SubsetOf reports whether every member of s is also in o.
func (s IndexSet) SubsetOf(o IndexSet) bool {
	return s&^o == 0
}

// Indices returns members in ascending order.
func (s IndexSet) Indices() []int {
	out := make([]int, 0, s.Len())
	for v := uint64(s); v != 0; v &= v - 1 {
		out = append(out, bits.TrailingZeros64(v))
	}
	return out
}

func (s IndexSet) String() string {
	idx := s.Indices()
	parts := make([]string, len(idx))
	for i, v := range idx {
		parts[i] = strconv.Itoa(v)
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// PowerSet returns all 2^n subsets of {0..n-1}, largest cardinality first.
// Within one cardinality the order is the reverse of lexicographic
// combination order, so the empty set is always last.
func PowerSet(n int) []IndexSet {
	out := make([]IndexSet, 0, 1<<uint(n))
	for k := 0; k <= n; k++ {
		out = appendCombinations(out, n, k)
	}
	reverse(out)
	return out
}

// Prefixes returns the n+1 increasing prefixes {0..i-1}, longest first.
func Prefixes(n int) []IndexSet {
	out := make([]IndexSet, 0, n+1)
	for i := 0; i <= n; i++ {
		var s IndexSet
		for j := 0; j < i; j++ {
			s |= 1 << uint(j)
		}
		out = append(out, s)
	}
	reverse(out)
	return out
}

// appendCombinations appends the k-subsets of {0..n-1} in lexicographic order.
func appendCombinations(out []IndexSet, n, k int) []IndexSet {
	if k > n {
		return out
	}
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	for {
		out = append(out, NewIndexSet(idx...))

		i := k - 1
		for i >= 0 && idx[i] == n-k+i {
			i--
		}
		if i < 0 {
			return out
		}
		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}

func reverse(s []IndexSet) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// FieldSubset is a set of leaked secret fields.
type FieldSubset struct {
	Indices IndexSet
	Clauses string
}

// Name is informational; subsets of equal cardinality share it.
func (f FieldSubset) Name() string {
	return "fields-" + strconv.Itoa(f.Indices.Len())
}

// RoleSubset is a set of adversary-controlled roles.
type RoleSubset struct {
	Indices IndexSet
	Clauses string
}

// Name renders "mali-0" for the empty set and "mali-N,,,i,j" otherwise.
func (r RoleSubset) Name() string {
	n := r.Indices.Len()
	if n == 0 {
		return "mali-0"
	}
	var b strings.Builder
	b.WriteString("mali-")
	b.WriteString(strconv.Itoa(n))
	b.WriteString(",,")
	for _, i := range r.Indices.Indices() {
		b.WriteByte(',')
		b.WriteString(strconv.Itoa(i))
	}
	return b.String()
}

func joinClauses(catalog []string, set IndexSet) string {
	var b strings.Builder
	for _, i := range set.Indices() {
		b.WriteString(catalog[i])
	}
	return b.String()
}

func fieldSubsets(catalog []string, sets []IndexSet) []FieldSubset {
	out := make([]FieldSubset, 0, len(sets))
	for _, s := range sets {
		out = append(out, FieldSubset{Indices: s, Clauses: joinClauses(catalog, s)})
	}
	return out
}

func roleSubsets(catalog []string, sets []IndexSet) []RoleSubset {
	out := make([]RoleSubset, 0, len(sets))
	for _, s := range sets {
		out = append(out, RoleSubset{Indices: s, Clauses: joinClauses(catalog, s)})
	}
	return out
}
