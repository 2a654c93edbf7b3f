package performance

import (
	"fmt"
	"math"
)

// Aggregate returns the unweighted mean of the items' effective ratings, rounded half-up to one
// decimal. The manager rating wins over the self rating for each item; items with neither are
// skipped. An empty set aggregates to 0.
func Aggregate(items []RatedItem) float64 {
	var sum float64
	var count int
	for _, item := range items {
		rating, ok := effectiveRating(item)
		if !ok {
			continue
		}
		sum += rating
		count++
	}
	if count == 0 {
		return 0
	}
	return roundHalfUp(sum / float64(count))
}

func effectiveRating(item RatedItem) (float64, bool) {
	if item.ManagerRating != nil {
		return *item.ManagerRating, true
	}
	if item.SelfRating > 0 {
		return item.SelfRating, true
	}
	return 0, false
}

// roundHalfUp rounds to one decimal. The epsilon absorbs binary representation error so that
// 1.15 rounds to 1.2.
func roundHalfUp(value float64) float64 {
	return math.Floor(value*10+0.5+1e-9) / 10
}

// FlattenAssessment lists goals, projects and every skill question as rated items, unweighted.
func FlattenAssessment(a SelfAssessment) []RatedItem {
	items := make([]RatedItem, 0, len(a.Goals)+len(a.Projects))
	for _, goal := range a.Goals {
		items = append(items, RatedItem{
			Label:           goal.Title,
			SelfRating:      goal.SelfRating,
			ManagerRating:   copyFloat(goal.ManagerRating),
			ManagerComments: goal.ManagerComments,
		})
	}
	for _, project := range a.Projects {
		items = append(items, RatedItem{
			Label:           project.Name,
			SelfRating:      project.SelfRating,
			ManagerRating:   copyFloat(project.ManagerRating),
			ManagerComments: project.ManagerComments,
		})
	}
	for _, category := range a.Skills {
		for _, question := range category.QuestionAnswers {
			items = append(items, RatedItem{
				Label:           fmt.Sprintf("%s: %s", category.Category, question.Question),
				SelfRating:      question.SelfRating,
				ManagerRating:   copyFloat(question.ManagerRating),
				ManagerComments: question.ManagerComments,
			})
		}
	}
	return items
}

// CompositeRating is the aggregate of every rated item in the assessment.
func CompositeRating(a SelfAssessment) float64 {
	return Aggregate(FlattenAssessment(a))
}

// validRating accepts [1,5] at 0.1 granularity.
func validRating(value float64) bool {
	if value < MinRating || value > MaxRating {
		return false
	}
	scaled := value * 10
	return math.Abs(scaled-math.Round(scaled)) < 1e-6
}
