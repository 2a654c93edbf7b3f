package performance

import (
	"errors"
	"testing"
	"time"
)

func approvedSchema(t *testing.T) FormSchema {
	t.Helper()
	published, err := Publish(threeLevelSchema(t), hrActor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	approved, err := ApproveSchema(published, adminActor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return approved
}

func cycleInput() CycleInput {
	return CycleInput{
		Name:         "Annual Review 2024",
		Type:         "annual",
		Period:       Period{Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), End: time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)},
		DueDate:      time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC),
		Participants: []string{"emp-1", "emp-2", "emp-1"},
	}
}

func TestInstantiateRejectsDueDateBeforePeriodEnd(t *testing.T) {
	in := cycleInput()
	in.DueDate = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	_, err := Instantiate("cycle-1", approvedSchema(t), hrActor, in)
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, ok := validation.Fields["dueDate"]; !ok {
		t.Fatalf("expected dueDate issue, got %+v", validation.Fields)
	}
}

func TestInstantiateCreatesCanonicalMilestones(t *testing.T) {
	in := cycleInput()
	cycle, err := Instantiate("cycle-1", approvedSchema(t), hrActor, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	titles := []string{"Self Evaluation", "Manager Review", "HR Approval", "Effective"}
	if len(cycle.Milestones) != len(titles) {
		t.Fatalf("expected %d milestones, got %d", len(titles), len(cycle.Milestones))
	}
	for i, milestone := range cycle.Milestones {
		if milestone.Title != titles[i] {
			t.Fatalf("expected %q at %d, got %q", titles[i], i, milestone.Title)
		}
		want := MilestoneStatusPending
		if i == 0 {
			want = MilestoneStatusInProgress
		}
		if milestone.Status != want {
			t.Fatalf("expected %s for %q, got %s", want, milestone.Title, milestone.Status)
		}
		if milestone.DueDate.Before(in.Period.Start) || milestone.DueDate.After(in.DueDate) {
			t.Fatalf("milestone %q due %v outside the cycle window", milestone.Title, milestone.DueDate)
		}
	}
	if cycle.Status != CycleStatusActive {
		t.Fatalf("expected active cycle, got %s", cycle.Status)
	}
	if len(cycle.Participants) != 2 {
		t.Fatalf("expected duplicate participants removed, got %v", cycle.Participants)
	}
}

func TestInstantiateNeedsApprovedSchemaAndAuthor(t *testing.T) {
	if _, err := Instantiate("cycle-1", threeLevelSchema(t), hrActor, cycleInput()); !errors.Is(err, ErrInvariant) {
		t.Fatalf("expected invariant violation for a draft schema, got %v", err)
	}
	if _, err := Instantiate("cycle-1", approvedSchema(t), employeeActor, cycleInput()); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden for an employee, got %v", err)
	}
}

func TestOnSubmissionEventAdvancesNamedMilestone(t *testing.T) {
	cycle, _ := Instantiate("cycle-1", approvedSchema(t), hrActor, cycleInput())

	next, err := OnSubmissionEvent(cycle, employeeActor, MilestoneSelfEvaluation, CycleEvent{Kind: EventCompleted})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.Milestones[0].Status != MilestoneStatusCompleted || next.Milestones[1].Status != MilestoneStatusInProgress {
		t.Fatalf("unexpected milestones: %+v", next.Milestones)
	}
	if cycle.Milestones[0].Status != MilestoneStatusInProgress {
		t.Fatal("expected caller snapshot untouched")
	}

	current, ok := CurrentMilestone(next)
	if !ok || current.Key != MilestoneManagerReview {
		t.Fatalf("expected manager review in progress, got %+v", current)
	}
}

func TestOnSubmissionEventIgnoresRejectionAndClarification(t *testing.T) {
	cycle, _ := Instantiate("cycle-1", approvedSchema(t), hrActor, cycleInput())
	cycle, _ = OnSubmissionEvent(cycle, employeeActor, MilestoneSelfEvaluation, CycleEvent{Kind: EventCompleted})

	for _, kind := range []EventKind{EventRejected, EventNeedsClarification} {
		next, err := OnSubmissionEvent(cycle, managerActor, MilestoneManagerReview, CycleEvent{Kind: kind})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if next.Milestones[1].Status != MilestoneStatusInProgress {
			t.Fatalf("expected manager review to stay in progress after %s, got %s", kind, next.Milestones[1].Status)
		}
	}
}

func TestOnSubmissionEventOrdering(t *testing.T) {
	cycle, _ := Instantiate("cycle-1", approvedSchema(t), hrActor, cycleInput())

	_, err := OnSubmissionEvent(cycle, hrActor, MilestoneHRApproval, CycleEvent{Kind: EventCompleted})
	var sequence *SequenceError
	if !errors.As(err, &sequence) {
		t.Fatalf("expected sequence error, got %v", err)
	}
	if sequence.Expected != 1 || sequence.Got != 3 {
		t.Fatalf("unexpected sequence error: %+v", sequence)
	}

	cycle, _ = OnSubmissionEvent(cycle, employeeActor, MilestoneSelfEvaluation, CycleEvent{Kind: EventCompleted})
	if _, err := OnSubmissionEvent(cycle, employeeActor, MilestoneSelfEvaluation, CycleEvent{Kind: EventCompleted}); !errors.Is(err, ErrInvariant) {
		t.Fatalf("expected invariant violation for a completed milestone, got %v", err)
	}
	outsider := ActorContext{UserID: "emp-9", Role: RoleEmployee}
	if _, err := OnSubmissionEvent(cycle, outsider, MilestoneManagerReview, CycleEvent{Kind: EventCompleted}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden for a non-participant, got %v", err)
	}
}

func TestCycleCompletesWhenAllMilestonesComplete(t *testing.T) {
	cycle, _ := Instantiate("cycle-1", approvedSchema(t), hrActor, cycleInput())
	var err error
	for _, key := range []MilestoneKey{MilestoneSelfEvaluation, MilestoneManagerReview, MilestoneHRApproval, MilestoneEffective} {
		if cycle.Status != CycleStatusActive {
			t.Fatalf("expected active before %s, got %s", key, cycle.Status)
		}
		cycle, err = OnSubmissionEvent(cycle, SystemActor, key, CycleEvent{Kind: EventCompleted, Rating: floatPtr(4)})
		if err != nil {
			t.Fatalf("unexpected error completing %s: %v", key, err)
		}
	}
	if cycle.Status != CycleStatusCompleted {
		t.Fatalf("expected completed, got %s", cycle.Status)
	}
}

func TestDeriveStatus(t *testing.T) {
	if got := DeriveStatus(nil); got != CycleStatusPending {
		t.Fatalf("expected pending for no milestones, got %s", got)
	}
	pending := []Milestone{{Status: MilestoneStatusPending}, {Status: MilestoneStatusPending}}
	if got := DeriveStatus(pending); got != CycleStatusPending {
		t.Fatalf("expected pending, got %s", got)
	}
	mixed := []Milestone{{Status: MilestoneStatusCompleted}, {Status: MilestoneStatusPending}}
	if got := DeriveStatus(mixed); got != CycleStatusActive {
		t.Fatalf("expected active, got %s", got)
	}
}

func TestOverdueMilestones(t *testing.T) {
	cycle, _ := Instantiate("cycle-1", approvedSchema(t), hrActor, cycleInput())
	if got := OverdueMilestones(cycle, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)); len(got) != 0 {
		t.Fatalf("expected nothing overdue, got %+v", got)
	}
	got := OverdueMilestones(cycle, time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC))
	if len(got) != 1 || got[0].Key != MilestoneSelfEvaluation {
		t.Fatalf("expected self evaluation overdue, got %+v", got)
	}
}
