package models

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

var stepCollator = collate.New(language.Und, collate.Numeric, collate.Loose)

// SortStepsNatural orders steps by locale-aware natural sort of their names,
// so "Step 2" precedes "Step 10". The sort is stable: steps with equal names
// keep their relative order across renders.
func SortStepsNatural(steps []CheckInStep) {
	sort.SliceStable(steps, func(i, j int) bool {
		return stepCollator.CompareString(steps[i].Name, steps[j].Name) < 0
	})
}

// CurrentStep returns the step at the user's index, or nil when the sequence
// is exhausted. An empty step list is exhausted immediately.
func CurrentStep(steps []CheckInStep, index int) *CheckInStep {
	if index < 0 || index >= len(steps) {
		return nil
	}
	return &steps[index]
}

// Advance moves the user to the next check-in step. When the next index
// reaches or passes the step count the user is marked fully completed; the
// index still advances so re-entry resumes in the terminal state.
func (u *User) Advance(stepCount int) {
	next := u.CurrentCheckInIndex + 1
	if next >= stepCount {
		u.AllChecksCompleted = true
	}
	u.CurrentCheckInIndex = next
}

// ProgressPercent reports completion as a percentage. An empty step list
// counts as fully complete rather than dividing by zero.
func ProgressPercent(index, stepCount int) float64 {
	if stepCount <= 0 {
		return 100
	}
	if index >= stepCount {
		return 100
	}
	if index < 0 {
		index = 0
	}
	return float64(index) / float64(stepCount) * 100
}
