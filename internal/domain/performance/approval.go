package performance

import (
	"sort"
	"strings"
)

// OpenChain builds a draft chain over a published set of approval levels.
func OpenChain(id string, kind SubjectKind, subjectID string, levels []ApprovalLevel) (Chain, error) {
	issues := map[string]string{}
	if strings.TrimSpace(id) == "" {
		issues["id"] = "id is required"
	}
	if strings.TrimSpace(subjectID) == "" {
		issues["subjectId"] = "subject id is required"
	}
	if kind != SubjectAssessment && kind != SubjectSchema {
		issues["subjectKind"] = "unknown subject kind"
	}
	if len(issues) > 0 {
		return Chain{}, newValidationError(issues)
	}
	if len(levels) == 0 {
		return Chain{}, violation("an approval chain needs at least one level")
	}
	if !hasFinalLevel(levels) {
		return Chain{}, violation("an approval chain needs a final approval level")
	}
	if err := checkLevelNumbering(levels); err != nil {
		return Chain{}, err
	}
	return Chain{
		ID:          id,
		SubjectKind: kind,
		SubjectID:   subjectID,
		Levels:      sortedLevels(levels),
		State:       ChainStateDraft,
		Decisions:   []DecisionRecord{},
	}, nil
}

// SubmitChain moves a draft chain to its first level.
func SubmitChain(c Chain, actor ActorContext) (Chain, error) {
	if !actor.valid() {
		return Chain{}, ErrForbidden
	}
	if c.State != ChainStateDraft {
		return Chain{}, violation("chain %s is %s, only drafts can be submitted", c.ID, c.State)
	}
	if len(c.Levels) == 0 {
		return Chain{}, violation("chain %s has no approval levels", c.ID)
	}
	out := c.clone()
	out.State = ChainStatePendingApproval
	out.Cursor = out.Levels[0].Level
	return out, nil
}

// Advance is the single entry point for approval decisions. Levels are consulted strictly in
// ascending order; approving a level flagged final ends the chain even if higher levels exist.
func Advance(c Chain, actor ActorContext, d Decision) (Chain, error) {
	switch c.State {
	case ChainStateApproved, ChainStateRejected:
		return Chain{}, violation("chain %s is %s and accepts no further decisions", c.ID, c.State)
	case ChainStateNeedsClarification:
		return Chain{}, violation("chain %s is waiting for resubmission", c.ID)
	case ChainStateDraft:
		return Chain{}, violation("chain %s has not been submitted", c.ID)
	}
	if d.Level != c.Cursor {
		return Chain{}, &SequenceError{Expected: c.Cursor, Got: d.Level}
	}
	level, ok := levelByNumber(c.Levels, c.Cursor)
	if !ok {
		return Chain{}, violation("chain %s cursor points at missing level %d", c.ID, c.Cursor)
	}
	if !actor.canDecide(level) {
		return Chain{}, ErrForbidden
	}
	if c.SubjectOwner != "" && actor.UserID == c.SubjectOwner {
		return Chain{}, ErrForbidden
	}

	reason := strings.TrimSpace(d.Reason)
	record := DecisionRecord{Level: level.Level, Kind: d.Kind, ActorID: actor.UserID, Reason: reason, DecidedAt: d.At}
	out := c.clone()

	switch d.Kind {
	case DecisionApprove:
		if level.IsFinalApproval {
			if d.HikePercentage < 0 {
				return Chain{}, invalidField("hikePercentage", "hike percentage must not be negative")
			}
			out.State = ChainStateApproved
			if c.SubjectKind == SubjectAssessment {
				out.HikeDetails = &HikeDetails{
					CompositeRating: Aggregate(d.Items),
					Percentage:      d.HikePercentage,
					EffectiveDate:   copyTime(d.EffectiveDate),
					ApprovedBy:      actor.UserID,
					ApprovedAt:      d.At,
				}
			}
		} else {
			next, ok := nextLevel(c.Levels, c.Cursor)
			if !ok {
				return Chain{}, violation("chain %s has no level after %d and level %d is not final", c.ID, c.Cursor, c.Cursor)
			}
			out.Cursor = next.Level
		}
	case DecisionReject:
		if reason == "" {
			return Chain{}, invalidField("reason", "a rejection reason is required")
		}
		out.State = ChainStateRejected
	case DecisionClarify:
		if reason == "" {
			return Chain{}, invalidField("reason", "clarification notes are required")
		}
		if c.SubjectKind == SubjectAssessment && len(d.Fields) == 0 {
			return Chain{}, invalidField("fields", "clarification must name the fields to revise")
		}
		out.State = ChainStateNeedsClarification
		out.ClarificationNotes = reason
		out.ClarifyFields = append([]string(nil), d.Fields...)
	default:
		return Chain{}, invalidField("kind", "decision must be approve, reject or clarify")
	}

	out.Decisions = append(out.Decisions, record)
	return out, nil
}

// ResubmitChain returns a chain waiting on clarification to the level that asked for it.
func ResubmitChain(c Chain, actor ActorContext) (Chain, error) {
	if !actor.valid() {
		return Chain{}, ErrForbidden
	}
	if c.State != ChainStateNeedsClarification {
		return Chain{}, violation("chain %s is %s, only chains needing clarification can be resubmitted", c.ID, c.State)
	}
	out := c.clone()
	out.State = ChainStatePendingApproval
	out.ClarificationNotes = ""
	out.ClarifyFields = nil
	return out, nil
}

// PendingLevel returns the level awaiting a decision.
func PendingLevel(c Chain) (ApprovalLevel, bool) {
	if c.State != ChainStatePendingApproval {
		return ApprovalLevel{}, false
	}
	return levelByNumber(c.Levels, c.Cursor)
}

func IsTerminal(c Chain) bool {
	return c.State == ChainStateApproved || c.State == ChainStateRejected
}

// IsFirstLevel reports whether level is the lowest level of the chain.
func IsFirstLevel(c Chain, level int) bool {
	return len(c.Levels) > 0 && sortedLevels(c.Levels)[0].Level == level
}

func levelByNumber(levels []ApprovalLevel, number int) (ApprovalLevel, bool) {
	for _, level := range levels {
		if level.Level == number {
			return level, true
		}
	}
	return ApprovalLevel{}, false
}

func nextLevel(levels []ApprovalLevel, after int) (ApprovalLevel, bool) {
	for _, level := range sortedLevels(levels) {
		if level.Level > after {
			return level, true
		}
	}
	return ApprovalLevel{}, false
}

func sortedLevels(levels []ApprovalLevel) []ApprovalLevel {
	out := cloneLevels(levels)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Level < out[j].Level })
	return out
}

// schemaApprovalLevels is the single level a published schema passes through.
func schemaApprovalLevels() []ApprovalLevel {
	return []ApprovalLevel{{
		Level:           1,
		Title:           "Form Approval",
		Approvers:       []string{RoleHR, RoleAdmin},
		IsFinalApproval: true,
	}}
}
