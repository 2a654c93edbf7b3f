package performance

import (
	"context"
	"fmt"
)

type CycleReport struct {
	CycleID             string         `json:"cycleId"`
	CycleName           string         `json:"cycleName"`
	Status              CycleStatus    `json:"status"`
	Participants        int            `json:"participants"`
	AssessmentsTotal    int            `json:"assessmentsTotal"`
	AssessmentsByStatus map[string]int `json:"assessmentsByStatus"`
	CompletionRate      float64        `json:"completionRate"`
	AverageRating       float64        `json:"averageRating"`
	RatingDistribution  map[string]int `json:"ratingDistribution"`
	Milestones          []Milestone    `json:"milestones"`
}

// CycleReport summarizes the assessments of a cycle for HR.
func (s *Service) CycleReport(ctx context.Context, actor ActorContext, cycleID string) (CycleReport, error) {
	if !actor.valid() || !actor.IsHROrAdmin() {
		return CycleReport{}, ErrForbidden
	}
	cycle, err := s.store.GetCycle(ctx, cycleID)
	if err != nil {
		return CycleReport{}, err
	}
	assessments, err := s.store.ListAssessmentsByCycle(ctx, cycleID)
	if err != nil {
		return CycleReport{}, err
	}
	return buildCycleReport(cycle, assessments), nil
}

func buildCycleReport(cycle ReviewCycle, assessments []SelfAssessment) CycleReport {
	report := CycleReport{
		CycleID:             cycle.ID,
		CycleName:           cycle.Name,
		Status:              cycle.Status,
		Participants:        len(cycle.Participants),
		AssessmentsTotal:    len(assessments),
		AssessmentsByStatus: map[string]int{},
		RatingDistribution:  map[string]int{},
		Milestones:          cycle.clone().Milestones,
	}
	approved, sum := 0, 0.0
	for _, assessment := range assessments {
		status := string(assessment.Status)
		if assessment.Status == AssessmentStatusDraft {
			status = "draft"
		}
		report.AssessmentsByStatus[status]++
		if assessment.Status != AssessmentStatusApproved || assessment.HikeDetails == nil {
			continue
		}
		approved++
		rating := assessment.HikeDetails.CompositeRating
		sum += rating
		key := fmt.Sprintf("%d", int(rating+0.5))
		report.RatingDistribution[key]++
	}

	expected := report.Participants
	if expected == 0 {
		expected = report.AssessmentsTotal
	}
	if expected > 0 {
		report.CompletionRate = roundHalfUp(float64(approved) / float64(expected) * 100)
	}
	if approved > 0 {
		report.AverageRating = roundHalfUp(sum / float64(approved))
	}
	return report
}
