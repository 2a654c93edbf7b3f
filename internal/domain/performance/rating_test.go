package performance

import (
	"math"
	"testing"
)

func rated(self float64, manager ...float64) RatedItem {
	item := RatedItem{SelfRating: self}
	if len(manager) > 0 {
		value := manager[0]
		item.ManagerRating = &value
	}
	return item
}

func TestAggregateEmptyIsZero(t *testing.T) {
	if got := Aggregate(nil); got != 0 {
		t.Fatalf("expected 0 for empty set, got %v", got)
	}
	if got := Aggregate([]RatedItem{}); got != 0 {
		t.Fatalf("expected 0 for empty slice, got %v", got)
	}
}

func TestAggregatePrefersManagerRating(t *testing.T) {
	got := Aggregate([]RatedItem{rated(5, 3), rated(2, 4)})
	if got != 3.5 {
		t.Fatalf("expected 3.5, got %v", got)
	}
}

func TestAggregateFallsBackToSelfRating(t *testing.T) {
	got := Aggregate([]RatedItem{rated(4), rated(2, 3)})
	if got != 3.5 {
		t.Fatalf("expected 3.5, got %v", got)
	}
}

func TestAggregateRoundsHalfUp(t *testing.T) {
	// (1 + 1.3) / 2 = 1.15
	got := Aggregate([]RatedItem{rated(0, 1), rated(0, 1.3)})
	if got != 1.2 {
		t.Fatalf("expected 1.2, got %v", got)
	}
	// (4 + 4 + 5) / 3 = 4.333...
	got = Aggregate([]RatedItem{rated(4), rated(4), rated(5)})
	if got != 4.3 {
		t.Fatalf("expected 4.3, got %v", got)
	}
}

func TestAggregateSkipsUnratedItems(t *testing.T) {
	got := Aggregate([]RatedItem{rated(0), rated(4)})
	if got != 4 {
		t.Fatalf("expected 4, got %v", got)
	}
	if got := Aggregate([]RatedItem{rated(0)}); got != 0 {
		t.Fatalf("expected 0 when nothing is rated, got %v", got)
	}
}

func TestAggregateStaysInRange(t *testing.T) {
	cases := [][]RatedItem{
		{rated(1, 1)},
		{rated(5, 5), rated(5, 5)},
		{rated(1, 1), rated(5, 5), rated(3, 2.5)},
		{rated(4.5, 1.1), rated(2, 4.9)},
	}
	for _, items := range cases {
		got := Aggregate(items)
		if got < MinRating || got > MaxRating {
			t.Fatalf("expected value in [1,5], got %v for %+v", got, items)
		}
		if math.Abs(got*10-math.Round(got*10)) > 1e-9 {
			t.Fatalf("expected one decimal, got %v", got)
		}
	}
}

func TestFlattenAssessmentTreatsItemsUniformly(t *testing.T) {
	assessment := SelfAssessment{
		Goals:    []Goal{{Title: "Ship", SelfRating: 4}},
		Projects: []Project{{Name: "Billing", SelfRating: 2}},
		Skills: []SkillCategory{{
			Category: "Communication",
			QuestionAnswers: []SkillQuestion{
				{Question: "Writing", SelfRating: 3},
				{Question: "Speaking", SelfRating: 5},
			},
		}},
	}
	items := FlattenAssessment(assessment)
	if len(items) != 4 {
		t.Fatalf("expected 4 items, got %d", len(items))
	}
	if items[2].Label != "Communication: Writing" {
		t.Fatalf("expected skill label, got %q", items[2].Label)
	}
	if got := CompositeRating(assessment); got != 3.5 {
		t.Fatalf("expected composite 3.5, got %v", got)
	}
}

func TestValidRatingGranularity(t *testing.T) {
	for _, value := range []float64{1, 2.5, 4.5, 3.7, 5} {
		if !validRating(value) {
			t.Fatalf("expected %v to be accepted", value)
		}
	}
	for _, value := range []float64{0, 0.9, 5.1, 3.25, 6} {
		if validRating(value) {
			t.Fatalf("expected %v to be rejected", value)
		}
	}
}
