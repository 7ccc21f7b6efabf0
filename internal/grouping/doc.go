// Package grouping compresses the result of an all-pairs post-hoc test into
// compact group labels, the "a", "b", "ab" letters printed next to means in
// clinical tables.
//
// # Model
//
// The input is a DifferenceMatrix over N categories: cell (i, j) is true
// when categories i and j are significantly different. The output is a
// Result: a set of overlapping EquivalenceGroups, each labelled with a
// letter, such that
//
//   - two categories that are significantly different never share a label;
//   - two categories that are not significantly different always share at
//     least one label.
//
// # Algorithm
//
// Partition starts from one group per category (everything not different
// from it) and, for every significant pair (i, j), replaces each group that
// holds both i and j with the two groups obtained by dropping i and dropping
// j. Groups that are strict subsets of another group are then discarded,
// the survivors are sorted by member sequence and lettered a, b, c, ...
// A category's label is the concatenation of the letters of the groups that
// contain it.
//
// # Usage
//
//	g, err := grouping.NewDifferenceMatrix(4, [][]bool{
//	    {false, true, false, false},
//	    {true, false, false, false},
//	    {false, false, false, false},
//	    {false, false, false, false},
//	})
//	if err != nil {
//	    return err
//	}
//	p, err := grouping.Partition(g)
//	// p.Labels() == []string{"a", "b", "ab", "ab"}
//
// Malformed input (a matrix that is not N x N, NaN p-values) is reported as
// an INVALID_INPUT error from internal/errors; every well-formed matrix has a
// partition.
package grouping
