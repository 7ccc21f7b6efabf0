package registry

import (
	"fmt"
	"math"
	"strings"
)

// Races are the self-reported race checkboxes prace___1 .. prace___7
var Races = []string{
	"American Indian or Alaska Native",
	"Asian",
	"Black or African American",
	"Native Hawaiian or Other Pacific Islander",
	"White",
	"Other",
	"Prefer not to answer",
}

const (
	RaceColumn   = "prace"
	racePosition = 6
	noRace       = "NA"
)

// ClassifyRace adds the prace column: the checked races in code order,
// joined by ", ", or "NA" when none is checked. Missing checkbox cells
// count as unchecked.
func ClassifyRace(f *Frame) error {
	boxes := make([]*Column, len(Races))
	for i := range Races {
		c, err := f.Column(fmt.Sprintf("prace___%d", i+1))
		if err != nil {
			return err
		}
		boxes[i] = c
	}

	text := make([]string, f.Len())
	for r := range text {
		var picked []string
		for i, c := range boxes {
			if v := c.Values[r]; !math.IsNaN(v) && v != 0 {
				picked = append(picked, Races[i])
			}
		}
		if len(picked) == 0 {
			text[r] = noRace
		} else {
			text[r] = strings.Join(picked, ", ")
		}
	}

	col := &Column{Name: RaceColumn, Values: nanColumn(f.Len()), Text: text}
	if f.Has(RaceColumn) {
		return f.SetColumn(col)
	}
	return f.InsertColumn(racePosition, col)
}

// RaceCounts tallies the prace values, for the prepare summary log
func RaceCounts(f *Frame) (map[string]int, error) {
	c, err := f.Column(RaceColumn)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for r := 0; r < c.Len(); r++ {
		counts[c.Cell(r)]++
	}
	return counts, nil
}
