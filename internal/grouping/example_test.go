package grouping_test

import (
	"fmt"

	"npastat/internal/grouping"
)

func ExamplePartition() {
	g, err := grouping.NewDifferenceMatrix(4, [][]bool{
		{false, true, false, false},
		{true, false, false, false},
		{false, false, false, false},
		{false, false, false, false},
	})
	if err != nil {
		panic(err)
	}

	p, err := grouping.Partition(g)
	if err != nil {
		panic(err)
	}

	for k, grp := range p.Groups() {
		fmt.Printf("%s: %v\n", p.GroupLabel(k), grp)
	}
	fmt.Println(p.Labels())
	// Output:
	// a: [0 2 3]
	// b: [1 2 3]
	// [a b ab ab]
}
