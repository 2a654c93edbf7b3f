package performance

import (
	"fmt"
	"strings"
	"time"
)

// CycleInput carries the caller-supplied attributes of a new review cycle.
type CycleInput struct {
	Name         string
	Type         string
	Period       Period
	DueDate      time.Time
	Participants []string
}

// Instantiate creates a cycle from an approved schema with one milestone per canonical stage.
// The first milestone starts in progress.
func Instantiate(id string, schema FormSchema, actor ActorContext, in CycleInput) (ReviewCycle, error) {
	if err := requireAuthor(actor); err != nil {
		return ReviewCycle{}, err
	}

	issues := map[string]string{}
	if in.DueDate.Before(in.Period.End) {
		issues["dueDate"] = "due date must not be before the end of the period"
	}
	if in.Period.End.Before(in.Period.Start) {
		issues["period.end"] = "period end must not be before its start"
	}
	if strings.TrimSpace(id) == "" {
		issues["id"] = "id is required"
	}
	if strings.TrimSpace(in.Name) == "" {
		issues["name"] = "name is required"
	}
	if strings.TrimSpace(in.Type) == "" {
		issues["type"] = "type is required"
	}
	if len(issues) > 0 {
		return ReviewCycle{}, newValidationError(issues)
	}
	if schema.Status != SchemaStatusApproved {
		return ReviewCycle{}, violation("schema %s is %s, cycles need an approved schema", schema.ID, schema.Status)
	}

	cycle := ReviewCycle{
		ID:           id,
		Name:         strings.TrimSpace(in.Name),
		Type:         strings.TrimSpace(in.Type),
		SchemaID:     schema.ID,
		Period:       in.Period,
		DueDate:      in.DueDate,
		Participants: dedupe(in.Participants),
		Milestones:   make([]Milestone, 0, len(canonicalStages)),
	}
	for i, stage := range canonicalStages {
		status := MilestoneStatusPending
		if i == 0 {
			status = MilestoneStatusInProgress
		}
		cycle.Milestones = append(cycle.Milestones, Milestone{
			ID:      fmt.Sprintf("%s-%s", id, stage.Key),
			Key:     stage.Key,
			Title:   stage.Title,
			DueDate: stageDueDate(stage.Key, in.Period, in.DueDate),
			Status:  status,
		})
	}
	cycle.Status = DeriveStatus(cycle.Milestones)
	return cycle, nil
}

// stageDueDate spreads the stages between the end of the period and the cycle due date.
func stageDueDate(key MilestoneKey, period Period, due time.Time) time.Time {
	switch key {
	case MilestoneSelfEvaluation:
		return period.End
	case MilestoneManagerReview:
		return period.End.Add(due.Sub(period.End) / 2)
	}
	return due
}

// OnSubmissionEvent advances exactly the named milestone. A completed event finishes the
// in-progress milestone and starts the next one; rejected and needs_clarification events
// leave the milestones as they are.
func OnSubmissionEvent(cycle ReviewCycle, actor ActorContext, key MilestoneKey, event CycleEvent) (ReviewCycle, error) {
	if !canSignal(cycle, actor) {
		return ReviewCycle{}, ErrForbidden
	}
	index := -1
	for i, milestone := range cycle.Milestones {
		if milestone.Key == key {
			index = i
			break
		}
	}
	if index < 0 {
		return ReviewCycle{}, invalidField("key", fmt.Sprintf("cycle %s has no milestone %q", cycle.ID, key))
	}

	switch event.Kind {
	case EventRejected, EventNeedsClarification:
		return cycle.clone(), nil
	case EventCompleted:
	default:
		return ReviewCycle{}, invalidField("event", "event must be completed, rejected or needs_clarification")
	}

	if event.Rating != nil && (*event.Rating < 0 || *event.Rating > MaxRating) {
		return ReviewCycle{}, invalidField("rating", "rating must be between 0 and 5")
	}
	switch cycle.Milestones[index].Status {
	case MilestoneStatusCompleted:
		return ReviewCycle{}, violation("milestone %s is already completed", key)
	case MilestoneStatusPending:
		return ReviewCycle{}, &SequenceError{Expected: currentStage(cycle.Milestones), Got: index + 1}
	}

	out := cycle.clone()
	out.Milestones[index].Status = MilestoneStatusCompleted
	out.Milestones[index].Rating = copyFloat(event.Rating)
	if index+1 < len(out.Milestones) && out.Milestones[index+1].Status == MilestoneStatusPending {
		out.Milestones[index+1].Status = MilestoneStatusInProgress
	}
	out.Status = DeriveStatus(out.Milestones)
	return out, nil
}

func canSignal(cycle ReviewCycle, actor ActorContext) bool {
	if !actor.valid() {
		return false
	}
	switch actor.Role {
	case RoleSystem, RoleHR, RoleAdmin, RoleManager:
		return true
	}
	return len(cycle.Participants) == 0 || contains(cycle.Participants, actor.UserID)
}

// currentStage is the 1-based position of the first milestone not yet completed.
func currentStage(milestones []Milestone) int {
	for i, milestone := range milestones {
		if milestone.Status != MilestoneStatusCompleted {
			return i + 1
		}
	}
	return len(milestones)
}

// DeriveStatus computes the cycle status from its milestones only.
func DeriveStatus(milestones []Milestone) CycleStatus {
	if len(milestones) == 0 {
		return CycleStatusPending
	}
	completed, started := 0, 0
	for _, milestone := range milestones {
		switch milestone.Status {
		case MilestoneStatusCompleted:
			completed++
			started++
		case MilestoneStatusInProgress:
			started++
		}
	}
	switch {
	case completed == len(milestones):
		return CycleStatusCompleted
	case started > 0:
		return CycleStatusActive
	}
	return CycleStatusPending
}

// CurrentMilestone returns the milestone in progress, if any.
func CurrentMilestone(cycle ReviewCycle) (Milestone, bool) {
	for _, milestone := range cycle.Milestones {
		if milestone.Status == MilestoneStatusInProgress {
			return milestone, true
		}
	}
	return Milestone{}, false
}

// OverdueMilestones lists in-progress milestones whose due date is before now.
func OverdueMilestones(cycle ReviewCycle, now time.Time) []Milestone {
	var overdue []Milestone
	for _, milestone := range cycle.Milestones {
		if milestone.Status == MilestoneStatusInProgress && milestone.DueDate.Before(now) {
			overdue = append(overdue, milestone)
		}
	}
	return overdue
}

// StageReached reports whether an assessment has passed the stage of the named milestone.
// Manager Review is passed once the first level approved and HR Approval once the chain
// ended. A rejected assessment has passed every stage.
func StageReached(a SelfAssessment, c Chain, key MilestoneKey) bool {
	switch a.Status {
	case AssessmentStatusDraft:
		return false
	case AssessmentStatusApproved, AssessmentStatusRejected:
		return true
	}
	switch key {
	case MilestoneSelfEvaluation:
		return true
	case MilestoneManagerReview:
		for _, decision := range c.Decisions {
			if decision.Kind == DecisionApprove && IsFirstLevel(c, decision.Level) {
				return true
			}
		}
	}
	return false
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}
