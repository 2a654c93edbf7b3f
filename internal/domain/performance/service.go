package performance

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"reviewflow/internal/platform/catalog"
	"reviewflow/internal/platform/lock"
)

// Service wraps the pure engine with persistence. Every command loads a snapshot, applies the
// engine function and saves the result with a version check while holding the subject's lock.
type Service struct {
	store   StoreAPI
	locks   lock.Locker
	catalog *catalog.Catalog
	lockTTL time.Duration
	now     func() time.Time
	newID   func() string
}

func NewService(store StoreAPI, locks lock.Locker, cat *catalog.Catalog) *Service {
	if locks == nil {
		locks = lock.NewLocal()
	}
	return &Service{
		store:   store,
		locks:   locks,
		catalog: cat,
		lockTTL: 10 * time.Second,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// WithLockTTL sets how long a subject lock may be held before it expires.
func (s *Service) WithLockTTL(ttl time.Duration) *Service {
	if ttl > 0 {
		s.lockTTL = ttl
	}
	return s
}

func (s *Service) Catalog() *catalog.Catalog {
	return s.catalog
}

func (s *Service) withLock(ctx context.Context, key string, fn func() error) error {
	release, err := s.locks.Acquire(ctx, key, s.lockTTL)
	if err != nil {
		return err
	}
	defer release()
	return fn()
}

func schemaKey(id string) string     { return "schema:" + id }
func cycleKey(id string) string      { return "cycle:" + id }
func assessmentKey(id string) string { return "assessment:" + id }

func (s *Service) CreateSchema(ctx context.Context, actor ActorContext, title string) (FormSchema, error) {
	schema, err := NewSchema(s.newID(), title, actor)
	if err != nil {
		return FormSchema{}, err
	}
	return s.store.CreateSchema(ctx, schema)
}

func (s *Service) GetSchema(ctx context.Context, id string) (FormSchema, error) {
	return s.store.GetSchema(ctx, id)
}

func (s *Service) ListSchemas(ctx context.Context, status SchemaStatus) ([]FormSchema, error) {
	return s.store.ListSchemas(ctx, status)
}

func (s *Service) mutateSchema(ctx context.Context, id string, fn func(FormSchema) (FormSchema, error)) (FormSchema, error) {
	var out FormSchema
	err := s.withLock(ctx, schemaKey(id), func() error {
		schema, err := s.store.GetSchema(ctx, id)
		if err != nil {
			return err
		}
		next, err := fn(schema)
		if err != nil {
			return err
		}
		out, err = s.store.UpdateSchema(ctx, next)
		return err
	})
	return out, err
}

func (s *Service) AddField(ctx context.Context, actor ActorContext, schemaID string, field FormField) (FormSchema, error) {
	return s.mutateSchema(ctx, schemaID, func(schema FormSchema) (FormSchema, error) {
		return AddField(schema, actor, field)
	})
}

func (s *Service) AddApprovalLevel(ctx context.Context, actor ActorContext, schemaID string, level ApprovalLevel) (FormSchema, error) {
	return s.mutateSchema(ctx, schemaID, func(schema FormSchema) (FormSchema, error) {
		return AddApprovalLevel(schema, actor, level)
	})
}

func (s *Service) RemoveApprovalLevel(ctx context.Context, actor ActorContext, schemaID string, level int) (FormSchema, error) {
	return s.mutateSchema(ctx, schemaID, func(schema FormSchema) (FormSchema, error) {
		return RemoveApprovalLevel(schema, actor, level)
	})
}

// PublishSchema submits a draft form and opens its approval chain.
func (s *Service) PublishSchema(ctx context.Context, actor ActorContext, schemaID string) (FormSchema, Chain, error) {
	var schema FormSchema
	var chain Chain
	err := s.withLock(ctx, schemaKey(schemaID), func() error {
		current, err := s.store.GetSchema(ctx, schemaID)
		if err != nil {
			return err
		}
		published, err := Publish(current, actor)
		if err != nil {
			return err
		}
		opened, err := OpenChain(s.newID(), SubjectSchema, schemaID, schemaApprovalLevels())
		if err != nil {
			return err
		}
		submitted, err := SubmitChain(opened, actor)
		if err != nil {
			return err
		}
		return s.store.WithTx(ctx, func(tx StoreAPI) error {
			if schema, err = tx.UpdateSchema(ctx, published); err != nil {
				return err
			}
			chain, err = tx.CreateChain(ctx, submitted)
			return err
		})
	})
	return schema, chain, err
}

// DecideSchema records a decision on a published form. Approval makes the form usable for
// cycles; rejection is terminal; clarification waits for ResubmitSchema.
func (s *Service) DecideSchema(ctx context.Context, actor ActorContext, schemaID string, decision Decision) (FormSchema, Chain, error) {
	var schema FormSchema
	var chain Chain
	err := s.withLock(ctx, schemaKey(schemaID), func() error {
		current, err := s.store.GetSchema(ctx, schemaID)
		if err != nil {
			return err
		}
		currentChain, err := s.store.GetChainBySubject(ctx, SubjectSchema, schemaID)
		if err != nil {
			return err
		}
		decision.At = s.now()
		decision.Items = nil
		next, err := Advance(currentChain, actor, decision)
		if err != nil {
			return err
		}

		updated := current
		switch next.State {
		case ChainStateApproved:
			updated, err = ApproveSchema(current, actor)
		case ChainStateRejected:
			updated, err = RejectSchema(current, actor, decision.Reason)
		}
		if err != nil {
			return err
		}

		return s.store.WithTx(ctx, func(tx StoreAPI) error {
			if chain, err = tx.UpdateChain(ctx, next); err != nil {
				return err
			}
			if updated.Status == current.Status {
				schema = current
				return nil
			}
			schema, err = tx.UpdateSchema(ctx, updated)
			return err
		})
	})
	return schema, chain, err
}

// ResubmitSchema returns a form waiting on clarification to its approver.
func (s *Service) ResubmitSchema(ctx context.Context, actor ActorContext, schemaID string) (Chain, error) {
	var chain Chain
	err := s.withLock(ctx, schemaKey(schemaID), func() error {
		if err := requireAuthor(actor); err != nil {
			return err
		}
		current, err := s.store.GetChainBySubject(ctx, SubjectSchema, schemaID)
		if err != nil {
			return err
		}
		next, err := ResubmitChain(current, actor)
		if err != nil {
			return err
		}
		chain, err = s.store.UpdateChain(ctx, next)
		return err
	})
	return chain, err
}

func (s *Service) SchemaChain(ctx context.Context, schemaID string) (Chain, error) {
	return s.store.GetChainBySubject(ctx, SubjectSchema, schemaID)
}

func (s *Service) CloneSchema(ctx context.Context, actor ActorContext, schemaID string) (FormSchema, error) {
	source, err := s.store.GetSchema(ctx, schemaID)
	if err != nil {
		return FormSchema{}, err
	}
	clone, err := CloneSchema(source, actor, s.newID())
	if err != nil {
		return FormSchema{}, err
	}
	return s.store.CreateSchema(ctx, clone)
}

func (s *Service) CreateCycle(ctx context.Context, actor ActorContext, schemaID string, in CycleInput) (ReviewCycle, error) {
	schema, err := s.store.GetSchema(ctx, schemaID)
	if err != nil {
		return ReviewCycle{}, err
	}
	cycle, err := Instantiate(s.newID(), schema, actor, in)
	if err != nil {
		return ReviewCycle{}, err
	}
	if !s.catalog.HasCycleType(cycle.Type) {
		return ReviewCycle{}, invalidField("type", fmt.Sprintf("unknown cycle type %q", cycle.Type))
	}
	return s.store.CreateCycle(ctx, cycle)
}

func (s *Service) GetCycle(ctx context.Context, id string) (ReviewCycle, error) {
	return s.store.GetCycle(ctx, id)
}

func (s *Service) ListCycles(ctx context.Context, status CycleStatus) ([]ReviewCycle, error) {
	return s.store.ListCycles(ctx, status)
}

// SaveDraftAssessment creates or replaces the acting employee's draft for a cycle. A non-zero
// Version on the draft must match the stored one.
func (s *Service) SaveDraftAssessment(ctx context.Context, actor ActorContext, cycleID string, draft SelfAssessment) (SelfAssessment, error) {
	cycle, err := s.store.GetCycle(ctx, cycleID)
	if err != nil {
		return SelfAssessment{}, err
	}

	var out SelfAssessment
	err = s.withLock(ctx, assessmentKey(cycleID+":"+actor.UserID), func() error {
		existing, err := s.store.FindAssessment(ctx, cycleID, actor.UserID)
		switch {
		case errors.Is(err, ErrNotFound):
			created, err := NewAssessment(s.newID(), actor, cycle, s.skillTemplate())
			if err != nil {
				return err
			}
			if len(draft.Skills) == 0 {
				draft.Skills = created.Skills
			}
			created, err = UpdateDraft(created, actor, draft)
			if err != nil {
				return err
			}
			out, err = s.store.CreateAssessment(ctx, created)
			return err
		case err != nil:
			return err
		}

		if draft.Version != 0 && draft.Version != existing.Version {
			return ErrVersionConflict
		}
		if len(draft.Skills) == 0 {
			draft.Skills = existing.Skills
		}
		updated, err := UpdateDraft(existing, actor, draft)
		if err != nil {
			return err
		}
		out, err = s.store.UpdateAssessment(ctx, updated)
		return err
	})
	return out, err
}

func (s *Service) skillTemplate() []SkillCategory {
	if s.catalog == nil {
		return []SkillCategory{}
	}
	out := make([]SkillCategory, 0, len(s.catalog.Categories))
	for _, category := range s.catalog.Categories {
		questions := make([]SkillQuestion, 0, len(category.Questions))
		for _, question := range category.Questions {
			questions = append(questions, SkillQuestion{Question: question})
		}
		out = append(out, SkillCategory{Category: category.Name, QuestionAnswers: questions})
	}
	return out
}

// SubmitAssessment freezes the employee's draft, opens its approval chain from the cycle's
// form and completes the Self Evaluation milestone once every participant has submitted.
func (s *Service) SubmitAssessment(ctx context.Context, actor ActorContext, assessmentID string) (SelfAssessment, Chain, error) {
	var assessment SelfAssessment
	var chain Chain
	err := s.withLock(ctx, assessmentKey(assessmentID), func() error {
		current, err := s.store.GetAssessment(ctx, assessmentID)
		if err != nil {
			return err
		}
		submitted, err := SubmitAssessment(current, actor, s.now())
		if err = s.withCatalogIssues(current, err); err != nil {
			return err
		}

		schema, err := s.store.GetSchema(ctx, current.SchemaID)
		if err != nil {
			return err
		}
		opened, err := OpenChain(s.newID(), SubjectAssessment, current.ID, schema.ApprovalLevels)
		if err != nil {
			return err
		}
		opened.SubjectOwner = current.EmployeeID
		pending, err := SubmitChain(opened, actor)
		if err != nil {
			return err
		}

		return s.withLock(ctx, cycleKey(current.CycleID), func() error {
			cycle, err := s.store.GetCycle(ctx, current.CycleID)
			if err != nil {
				return err
			}
			if err := requireOpenCycle(cycle); err != nil {
				return err
			}
			behind, err := s.participantsBehind(ctx, cycle, MilestoneSelfEvaluation, &participantState{assessment: submitted, chain: pending})
			if err != nil {
				return err
			}
			advanced, changed := cycle, false
			if len(behind) == 0 {
				advanced, changed, err = signalCycle(cycle, actor, MilestoneSelfEvaluation, CycleEvent{Kind: EventCompleted})
				if err != nil {
					return err
				}
			}
			return s.store.WithTx(ctx, func(tx StoreAPI) error {
				if assessment, err = tx.UpdateAssessment(ctx, submitted); err != nil {
					return err
				}
				if chain, err = tx.CreateChain(ctx, pending); err != nil {
					return err
				}
				if changed {
					_, err = tx.UpdateCycle(ctx, advanced)
				}
				return err
			})
		})
	})
	return assessment, chain, err
}

// withCatalogIssues merges reviewer-directory and rating-scale problems into a submit result.
func (s *Service) withCatalogIssues(a SelfAssessment, err error) error {
	issues := s.catalogIssues(a)
	if len(issues) == 0 {
		return err
	}
	var validation *ValidationError
	if errors.As(err, &validation) {
		for path, message := range issues {
			if _, ok := validation.Fields[path]; !ok {
				validation.Fields[path] = message
			}
		}
		return validation
	}
	if err != nil {
		return err
	}
	return newValidationError(issues)
}

func (s *Service) catalogIssues(a SelfAssessment) map[string]string {
	issues := map[string]string{}
	for i, goal := range a.Goals {
		s.checkReviewer(issues, fmt.Sprintf("goals[%d].manager", i), goal.Manager)
		s.checkScale(issues, fmt.Sprintf("goals[%d].selfRating", i), goal.SelfRating)
	}
	for i, project := range a.Projects {
		s.checkReviewer(issues, fmt.Sprintf("projects[%d].manager", i), project.Manager)
		s.checkScale(issues, fmt.Sprintf("projects[%d].selfRating", i), project.SelfRating)
	}
	for i, category := range a.Skills {
		for j, question := range category.QuestionAnswers {
			s.checkScale(issues, fmt.Sprintf("skills[%d].questionAnswers[%d].selfRating", i, j), question.SelfRating)
		}
	}
	return issues
}

func (s *Service) checkReviewer(issues map[string]string, path, id string) {
	if id == "" {
		return
	}
	if _, ok := s.catalog.Reviewer(id); !ok {
		issues[path] = "unknown reviewer"
	}
}

func (s *Service) checkScale(issues map[string]string, path string, value float64) {
	if !validRating(value) {
		return
	}
	if low, high := s.catalog.Bounds(); value < low || value > high {
		issues[path] = fmt.Sprintf("rating must be between %g and %g", low, high)
		return
	}
	step := s.catalog.Step()
	if step <= 0 {
		return
	}
	ratio := value / step
	if math.Abs(ratio-math.Round(ratio)) > 1e-6 {
		issues[path] = fmt.Sprintf("rating must be entered in steps of %g", step)
	}
}

func (s *Service) ReviewAssessment(ctx context.Context, actor ActorContext, assessmentID string, review ManagerReview) (SelfAssessment, error) {
	issues := map[string]string{}
	for path, rating := range review.Ratings {
		s.checkScale(issues, path+".managerRating", rating)
	}
	if len(issues) > 0 {
		return SelfAssessment{}, newValidationError(issues)
	}

	var out SelfAssessment
	err := s.withLock(ctx, assessmentKey(assessmentID), func() error {
		current, err := s.store.GetAssessment(ctx, assessmentID)
		if err != nil {
			return err
		}
		reviewed, err := ApplyManagerReview(current, actor, review)
		if err != nil {
			return err
		}
		out, err = s.store.UpdateAssessment(ctx, reviewed)
		return err
	})
	return out, err
}

// DecideAssessment applies an approval decision. Manager Review completes once every
// participant is past the first level and HR Approval once every participant has a final
// decision.
func (s *Service) DecideAssessment(ctx context.Context, actor ActorContext, assessmentID string, decision Decision) (SelfAssessment, Chain, error) {
	var assessment SelfAssessment
	var chain Chain
	err := s.withLock(ctx, assessmentKey(assessmentID), func() error {
		current, err := s.store.GetAssessment(ctx, assessmentID)
		if err != nil {
			return err
		}
		currentChain, err := s.store.GetChainBySubject(ctx, SubjectAssessment, assessmentID)
		if err != nil {
			return err
		}
		decision.At = s.now()
		decision.Items = FlattenAssessment(current)
		next, err := Advance(currentChain, actor, decision)
		if err != nil {
			return err
		}
		synced, err := SyncWithChain(current, next)
		if err != nil {
			return err
		}

		return s.withLock(ctx, cycleKey(current.CycleID), func() error {
			cycle, err := s.store.GetCycle(ctx, current.CycleID)
			if err != nil {
				return err
			}
			reached := map[MilestoneKey]bool{}
			for _, key := range []MilestoneKey{MilestoneManagerReview, MilestoneHRApproval} {
				behind, err := s.participantsBehind(ctx, cycle, key, &participantState{assessment: synced, chain: next})
				if err != nil {
					return err
				}
				reached[key] = len(behind) == 0
			}
			advanced, changed, err := cycleAfterDecision(cycle, next, reached, CompositeRating(current))
			if err != nil {
				return err
			}
			return s.store.WithTx(ctx, func(tx StoreAPI) error {
				if chain, err = tx.UpdateChain(ctx, next); err != nil {
					return err
				}
				if assessment, err = tx.UpdateAssessment(ctx, synced); err != nil {
					return err
				}
				if changed {
					_, err = tx.UpdateCycle(ctx, advanced)
				}
				return err
			})
		})
	})
	return assessment, chain, err
}

// cycleAfterDecision translates a chain transition into milestone events. reached holds the
// stages every participant has passed. The service signals as the system actor because
// approvers may be listed by user id regardless of role.
func cycleAfterDecision(cycle ReviewCycle, after Chain, reached map[MilestoneKey]bool, composite float64) (ReviewCycle, bool, error) {
	switch after.State {
	case ChainStateRejected:
		if _, _, err := signalCycle(cycle, SystemActor, currentKey(cycle), CycleEvent{Kind: EventRejected}); err != nil {
			return ReviewCycle{}, false, err
		}
	case ChainStateNeedsClarification:
		return signalCycle(cycle, SystemActor, currentKey(cycle), CycleEvent{Kind: EventNeedsClarification})
	}

	var rating *float64
	if composite > 0 {
		rating = &composite
	}
	out, changed := cycle, false
	for _, key := range []MilestoneKey{MilestoneManagerReview, MilestoneHRApproval} {
		if !reached[key] {
			break
		}
		next, ok, err := signalCycle(out, SystemActor, key, CycleEvent{Kind: EventCompleted, Rating: rating})
		if err != nil {
			return ReviewCycle{}, false, err
		}
		out, changed = next, changed || ok
	}
	return out, changed, nil
}

type participantState struct {
	assessment SelfAssessment
	chain      Chain
}

// participantsBehind lists the participants whose assessment has not passed the milestone's
// stage. unsaved replaces the stored copy of an assessment updated in the same command.
func (s *Service) participantsBehind(ctx context.Context, cycle ReviewCycle, key MilestoneKey, unsaved *participantState) ([]string, error) {
	assessments, err := s.store.ListAssessmentsByCycle(ctx, cycle.ID)
	if err != nil {
		return nil, err
	}
	byEmployee := make(map[string]SelfAssessment, len(assessments))
	for _, a := range assessments {
		byEmployee[a.EmployeeID] = a
	}
	if unsaved != nil {
		byEmployee[unsaved.assessment.EmployeeID] = unsaved.assessment
	}

	participants := append([]string(nil), cycle.Participants...)
	if len(participants) == 0 {
		for employee := range byEmployee {
			participants = append(participants, employee)
		}
		sort.Strings(participants)
	}

	behind := []string{}
	for _, employee := range participants {
		a, ok := byEmployee[employee]
		if !ok || a.Status == AssessmentStatusDraft {
			behind = append(behind, employee)
			continue
		}
		var chain Chain
		switch {
		case unsaved != nil && a.ID == unsaved.assessment.ID:
			chain = unsaved.chain
		case key != MilestoneSelfEvaluation:
			chain, err = s.store.GetChainBySubject(ctx, SubjectAssessment, a.ID)
			if errors.Is(err, ErrNotFound) {
				behind = append(behind, employee)
				continue
			}
			if err != nil {
				return nil, err
			}
		}
		if !StageReached(a, chain, key) {
			behind = append(behind, employee)
		}
	}
	return behind, nil
}

func currentKey(cycle ReviewCycle) MilestoneKey {
	if milestone, ok := CurrentMilestone(cycle); ok {
		return milestone.Key
	}
	return MilestoneEffective
}

// signalCycle forwards an event to the cycle when the named milestone is the one in progress.
func signalCycle(cycle ReviewCycle, actor ActorContext, key MilestoneKey, event CycleEvent) (ReviewCycle, bool, error) {
	current, ok := CurrentMilestone(cycle)
	if !ok || current.Key != key {
		return cycle, false, nil
	}
	next, err := OnSubmissionEvent(cycle, actor, key, event)
	if err != nil {
		return ReviewCycle{}, false, err
	}
	return next, event.Kind == EventCompleted, nil
}

func (s *Service) ReviseAssessment(ctx context.Context, actor ActorContext, assessmentID string, edited SelfAssessment) (SelfAssessment, error) {
	var out SelfAssessment
	err := s.withLock(ctx, assessmentKey(assessmentID), func() error {
		current, err := s.store.GetAssessment(ctx, assessmentID)
		if err != nil {
			return err
		}
		if edited.Version != 0 && edited.Version != current.Version {
			return ErrVersionConflict
		}
		revised, err := ReviseAssessment(current, actor, edited)
		if err != nil {
			return err
		}
		out, err = s.store.UpdateAssessment(ctx, revised)
		return err
	})
	return out, err
}

// ResubmitAssessment closes a clarification round and returns the chain to the level that asked.
func (s *Service) ResubmitAssessment(ctx context.Context, actor ActorContext, assessmentID string) (SelfAssessment, Chain, error) {
	var assessment SelfAssessment
	var chain Chain
	err := s.withLock(ctx, assessmentKey(assessmentID), func() error {
		current, err := s.store.GetAssessment(ctx, assessmentID)
		if err != nil {
			return err
		}
		resubmitted, err := ResubmitAssessment(current, actor, s.now())
		if err = s.withCatalogIssues(current, err); err != nil {
			return err
		}
		currentChain, err := s.store.GetChainBySubject(ctx, SubjectAssessment, assessmentID)
		if err != nil {
			return err
		}
		next, err := ResubmitChain(currentChain, actor)
		if err != nil {
			return err
		}
		return s.store.WithTx(ctx, func(tx StoreAPI) error {
			if assessment, err = tx.UpdateAssessment(ctx, resubmitted); err != nil {
				return err
			}
			chain, err = tx.UpdateChain(ctx, next)
			return err
		})
	})
	return assessment, chain, err
}

// GetAssessment returns an assessment to its employee, to managers and to HR.
func (s *Service) GetAssessment(ctx context.Context, actor ActorContext, assessmentID string) (SelfAssessment, error) {
	assessment, err := s.store.GetAssessment(ctx, assessmentID)
	if err != nil {
		return SelfAssessment{}, err
	}
	if !canView(actor, assessment) {
		return SelfAssessment{}, ErrForbidden
	}
	return assessment, nil
}

func canView(actor ActorContext, a SelfAssessment) bool {
	return actor.UserID == a.EmployeeID || actor.IsHROrAdmin() || actor.Role == RoleManager
}

func (s *Service) AssessmentChain(ctx context.Context, actor ActorContext, assessmentID string) (Chain, error) {
	if _, err := s.GetAssessment(ctx, actor, assessmentID); err != nil {
		return Chain{}, err
	}
	return s.store.GetChainBySubject(ctx, SubjectAssessment, assessmentID)
}

func (s *Service) SummaryPDF(ctx context.Context, actor ActorContext, assessmentID string) ([]byte, error) {
	assessment, err := s.GetAssessment(ctx, actor, assessmentID)
	if err != nil {
		return nil, err
	}
	cycle, err := s.store.GetCycle(ctx, assessment.CycleID)
	if err != nil {
		return nil, err
	}
	return RenderSummaryPDF(assessment, cycle)
}

type OverdueMilestone struct {
	CycleID      string    `json:"cycleId"`
	CycleName    string    `json:"cycleName"`
	Milestone    Milestone `json:"milestone"`
	Participants []string  `json:"participants"`
}

type SweepResult struct {
	CyclesChecked int                `json:"cyclesChecked"`
	Overdue       []OverdueMilestone `json:"overdue"`
	Effective     []string           `json:"effective"`
}

// SweepMilestones reports overdue milestones and completes Effective milestones whose date has
// passed. Cycles that fail to update are skipped and reported in the returned error.
func (s *Service) SweepMilestones(ctx context.Context) (SweepResult, error) {
	result := SweepResult{Overdue: []OverdueMilestone{}, Effective: []string{}}
	cycles, err := s.store.ListCycles(ctx, CycleStatusActive)
	if err != nil {
		return result, err
	}
	now := s.now()
	var errs []error
	for _, cycle := range cycles {
		result.CyclesChecked++
		for _, milestone := range OverdueMilestones(cycle, now) {
			if milestone.Key == MilestoneEffective {
				if err := s.completeEffective(ctx, cycle.ID, now); err != nil {
					errs = append(errs, fmt.Errorf("cycle %s: %w", cycle.ID, err))
					continue
				}
				result.Effective = append(result.Effective, cycle.ID)
				continue
			}
			behind, err := s.participantsBehind(ctx, cycle, milestone.Key, nil)
			if err != nil {
				errs = append(errs, fmt.Errorf("cycle %s: %w", cycle.ID, err))
				continue
			}
			result.Overdue = append(result.Overdue, OverdueMilestone{
				CycleID:      cycle.ID,
				CycleName:    cycle.Name,
				Milestone:    milestone,
				Participants: behind,
			})
		}
	}
	return result, errors.Join(errs...)
}

func (s *Service) completeEffective(ctx context.Context, cycleID string, now time.Time) error {
	return s.withLock(ctx, cycleKey(cycleID), func() error {
		cycle, err := s.store.GetCycle(ctx, cycleID)
		if err != nil {
			return err
		}
		current, ok := CurrentMilestone(cycle)
		if !ok || current.Key != MilestoneEffective || !current.DueDate.Before(now) {
			return nil
		}
		next, err := OnSubmissionEvent(cycle, SystemActor, MilestoneEffective, CycleEvent{Kind: EventCompleted})
		if err != nil {
			return err
		}
		_, err = s.store.UpdateCycle(ctx, next)
		return err
	})
}
