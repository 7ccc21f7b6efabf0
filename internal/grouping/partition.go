package grouping

import (
	"slices"
	"strconv"
	"strings"

	apperrors "npastat/internal/errors"
)

// EquivalenceGroup is a sorted, duplicate-free set of category indices no
// two of which are significantly different.
type EquivalenceGroup []int

// Contains reports whether category i is a member
func (e EquivalenceGroup) Contains(i int) bool {
	_, found := slices.BinarySearch(e, i)
	return found
}

// Without returns a copy of the group with category i removed
func (e EquivalenceGroup) Without(i int) EquivalenceGroup {
	out := make(EquivalenceGroup, 0, len(e))
	for _, m := range e {
		if m != i {
			out = append(out, m)
		}
	}
	return out
}

// subsetOf reports whether every member of e is also in other
func (e EquivalenceGroup) subsetOf(other EquivalenceGroup) bool {
	if len(e) > len(other) {
		return false
	}
	for _, m := range e {
		if !other.Contains(m) {
			return false
		}
	}
	return true
}

func (e EquivalenceGroup) key() string {
	var b strings.Builder
	for i, m := range e {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(m))
	}
	return b.String()
}

// groupSet is a set of groups keyed by their canonical member string
type groupSet map[string]EquivalenceGroup

func (s groupSet) add(g EquivalenceGroup) {
	s[g.key()] = g
}

func (s groupSet) sorted() []EquivalenceGroup {
	out := make([]EquivalenceGroup, 0, len(s))
	for _, g := range s {
		out = append(out, g)
	}
	slices.SortFunc(out, func(a, b EquivalenceGroup) int {
		return slices.Compare(a, b)
	})
	return out
}

// Result is the outcome of partitioning a DifferenceMatrix
type Result struct {
	groups      []EquivalenceGroup
	groupLabels []string
	membership  [][]int
	labels      []string
}

// Partition computes the lettered equivalence groups of g.
func Partition(g *DifferenceMatrix) (*Result, error) {
	if g == nil {
		return nil, apperrors.NewInvalidInputError("difference matrix is nil")
	}
	return partition(g, g.Pairs()), nil
}

// GroupLabels returns only the per-category label strings of g's partition.
func GroupLabels(g *DifferenceMatrix) ([]string, error) {
	p, err := Partition(g)
	if err != nil {
		return nil, err
	}
	return p.Labels(), nil
}

// UniformLabels labels n categories as a single group
func UniformLabels(n int) []string {
	labels := make([]string, n)
	for i := range labels {
		labels[i] = letter(0)
	}
	return labels
}

// partition processes the significant pairs in the order given; callers
// may pass any permutation of g.Pairs().
func partition(g *DifferenceMatrix, pairs []Pair) *Result {
	n := g.Size()

	groups := make(groupSet, n)
	for i := 0; i < n; i++ {
		members := make(EquivalenceGroup, 0, n)
		for j := 0; j < n; j++ {
			if !g.Different(i, j) {
				members = append(members, j)
			}
		}
		groups.add(members)
	}

	for _, p := range pairs {
		split(groups, p.I, p.J)
	}

	return label(n, maximal(groups))
}

// split replaces every group holding both i and j with the group minus i
// and the group minus j. Changes are staged and applied after the scan.
func split(groups groupSet, i, j int) {
	var removed []string
	added := make(groupSet)

	for k, grp := range groups {
		if !grp.Contains(i) || !grp.Contains(j) {
			continue
		}
		removed = append(removed, k)
		if a := grp.Without(i); len(a) > 0 {
			added.add(a)
		}
		if b := grp.Without(j); len(b) > 0 {
			added.add(b)
		}
	}

	for _, k := range removed {
		delete(groups, k)
	}
	for _, grp := range added {
		groups.add(grp)
	}
}

// maximal drops groups that are strict subsets of another group
func maximal(groups groupSet) []EquivalenceGroup {
	all := groups.sorted()
	kept := make([]EquivalenceGroup, 0, len(all))
	for a, ga := range all {
		redundant := false
		for b, gb := range all {
			if a != b && len(ga) < len(gb) && ga.subsetOf(gb) {
				redundant = true
				break
			}
		}
		if !redundant {
			kept = append(kept, ga)
		}
	}
	return kept
}

func label(n int, groups []EquivalenceGroup) *Result {
	r := &Result{
		groups:      groups,
		groupLabels: make([]string, len(groups)),
		membership:  make([][]int, n),
		labels:      make([]string, n),
	}

	sep := ""
	if len(groups) > alphabet {
		sep = ","
	}

	for gi, grp := range groups {
		r.groupLabels[gi] = letter(gi)
		for _, m := range grp {
			r.membership[m] = append(r.membership[m], gi)
		}
	}

	for c, gis := range r.membership {
		parts := make([]string, len(gis))
		for k, gi := range gis {
			parts[k] = r.groupLabels[gi]
		}
		r.labels[c] = strings.Join(parts, sep)
	}

	return r
}

const alphabet = 26

// letter maps 0, 1, ... 25, 26, 27 to a, b, ... z, aa, ab
func letter(k int) string {
	var buf []byte
	for k++; k > 0; k /= alphabet {
		k--
		buf = append([]byte{byte('a' + k%alphabet)}, buf...)
	}
	return string(buf)
}

// Size returns the number of categories
func (r *Result) Size() int {
	return len(r.labels)
}

// Groups returns the surviving groups in label order
func (r *Result) Groups() []EquivalenceGroup {
	out := make([]EquivalenceGroup, len(r.groups))
	for i, g := range r.groups {
		out[i] = slices.Clone(g)
	}
	return out
}

// GroupLabel returns the letter assigned to the k-th group
func (r *Result) GroupLabel(k int) string {
	return r.groupLabels[k]
}

// Labels returns the label string of every category, indexed by category
func (r *Result) Labels() []string {
	return slices.Clone(r.labels)
}

// Label returns the label string of category i
func (r *Result) Label(i int) string {
	return r.labels[i]
}

// GroupLabels returns the individual letters of the groups containing
// category i, in group order.
func (r *Result) GroupLabels(i int) []string {
	out := make([]string, len(r.membership[i]))
	for k, gi := range r.membership[i] {
		out[k] = r.groupLabels[gi]
	}
	return out
}
