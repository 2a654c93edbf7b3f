package performance

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// NewAssessment drafts an empty self-assessment for the acting employee.
func NewAssessment(id string, actor ActorContext, cycle ReviewCycle, skills []SkillCategory) (SelfAssessment, error) {
	if !actor.valid() {
		return SelfAssessment{}, ErrForbidden
	}
	if len(cycle.Participants) > 0 && !contains(cycle.Participants, actor.UserID) {
		return SelfAssessment{}, ErrForbidden
	}
	if strings.TrimSpace(id) == "" {
		return SelfAssessment{}, invalidField("id", "id is required")
	}
	if err := requireOpenCycle(cycle); err != nil {
		return SelfAssessment{}, err
	}
	draft := SelfAssessment{
		ID:         id,
		EmployeeID: actor.UserID,
		CycleID:    cycle.ID,
		SchemaID:   cycle.SchemaID,
		Goals:      []Goal{},
		Projects:   []Project{},
		Skills:     skills,
	}
	return draft.clone(), nil
}

func requireOpenCycle(cycle ReviewCycle) error {
	if cycle.Status == CycleStatusCompleted {
		return violation("cycle %s is completed", cycle.ID)
	}
	return nil
}

// UpdateDraft replaces the content of an unsubmitted assessment.
func UpdateDraft(a SelfAssessment, actor ActorContext, edited SelfAssessment) (SelfAssessment, error) {
	if actor.UserID != a.EmployeeID || !actor.valid() {
		return SelfAssessment{}, ErrForbidden
	}
	if a.Status != AssessmentStatusDraft {
		return SelfAssessment{}, violation("assessment %s was submitted and can no longer be edited", a.ID)
	}
	out := a.clone()
	copyContent(&out, edited.clone())
	return out, nil
}

func copyContent(dst *SelfAssessment, src SelfAssessment) {
	dst.Goals = src.Goals
	dst.Projects = src.Projects
	dst.Skills = src.Skills
}

// ValidateAssessment returns every problem keyed by field path, or an empty map.
func ValidateAssessment(a SelfAssessment) map[string]string {
	issues := map[string]string{}
	for i, goal := range a.Goals {
		path := fmt.Sprintf("goals[%d]", i)
		required(issues, path+".title", goal.Title)
		required(issues, path+".description", goal.Description)
		required(issues, path+".achievement", goal.Achievement)
		reviewer(issues, path+".manager", goal.Manager)
		ratings(issues, path, goal.SelfRating, goal.ManagerRating)
	}
	for i, project := range a.Projects {
		path := fmt.Sprintf("projects[%d]", i)
		required(issues, path+".name", project.Name)
		required(issues, path+".description", project.Description)
		required(issues, path+".impact", project.Impact)
		required(issues, path+".role", project.Role)
		reviewer(issues, path+".manager", project.Manager)
		ratings(issues, path, project.SelfRating, project.ManagerRating)
	}
	for i, category := range a.Skills {
		for j, question := range category.QuestionAnswers {
			path := fmt.Sprintf("skills[%d].questionAnswers[%d]", i, j)
			if strings.TrimSpace(question.Answer) == "" {
				issues[path+".answer"] = "question must be answered"
			}
			ratings(issues, path, question.SelfRating, question.ManagerRating)
		}
	}
	return issues
}

func required(issues map[string]string, path, value string) {
	if strings.TrimSpace(value) == "" {
		issues[path] = "is required"
	}
}

func reviewer(issues map[string]string, path, value string) {
	if strings.TrimSpace(value) == "" {
		issues[path] = "a responsible reviewer must be chosen"
	}
}

func ratings(issues map[string]string, path string, self float64, manager *float64) {
	if !validRating(self) {
		issues[path+".selfRating"] = "rating must be between 1 and 5"
	}
	if manager != nil && !validRating(*manager) {
		issues[path+".managerRating"] = "rating must be between 1 and 5"
	}
}

// SubmitAssessment freezes a valid draft. On failure the draft's status stays unset.
func SubmitAssessment(a SelfAssessment, actor ActorContext, at time.Time) (SelfAssessment, error) {
	if actor.UserID != a.EmployeeID || !actor.valid() {
		return SelfAssessment{}, ErrForbidden
	}
	if a.Status != AssessmentStatusDraft {
		return SelfAssessment{}, violation("assessment %s was already submitted", a.ID)
	}
	if issues := ValidateAssessment(a); len(issues) > 0 {
		return SelfAssessment{}, newValidationError(issues)
	}
	out := a.clone()
	out.Status = AssessmentStatusPending
	submitted := at
	out.SubmittedDate = &submitted
	return out, nil
}

// ApplyManagerReview records manager ratings and comments on a pending assessment.
func ApplyManagerReview(a SelfAssessment, actor ActorContext, review ManagerReview) (SelfAssessment, error) {
	if !actor.valid() {
		return SelfAssessment{}, ErrForbidden
	}
	if a.Status != AssessmentStatusPending {
		return SelfAssessment{}, violation("assessment %s is not awaiting review", a.ID)
	}

	out := a.clone()
	issues := map[string]string{}
	paths := make([]string, 0, len(review.Ratings)+len(review.Comments))
	for path := range review.Ratings {
		paths = append(paths, path)
	}
	for path := range review.Comments {
		if _, ok := review.Ratings[path]; !ok {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)

	for _, path := range paths {
		item, ok := locateItem(&out, path)
		if !ok {
			issues[path] = "unknown item"
			continue
		}
		if !canReview(actor, a, item.manager) {
			return SelfAssessment{}, ErrForbidden
		}
		if rating, ok := review.Ratings[path]; ok {
			if !validRating(rating) {
				issues[path+".managerRating"] = "rating must be between 1 and 5"
				continue
			}
			value := rating
			*item.rating = &value
		}
		if comment, ok := review.Comments[path]; ok {
			*item.comments = strings.TrimSpace(comment)
		}
	}
	if len(issues) > 0 {
		return SelfAssessment{}, newValidationError(issues)
	}
	return out, nil
}

func canReview(actor ActorContext, a SelfAssessment, itemManager string) bool {
	if actor.IsHROrAdmin() {
		return true
	}
	if actor.UserID == a.EmployeeID {
		return false
	}
	if itemManager != "" {
		return itemManager == actor.UserID
	}
	for _, goal := range a.Goals {
		if goal.Manager == actor.UserID {
			return true
		}
	}
	for _, project := range a.Projects {
		if project.Manager == actor.UserID {
			return true
		}
	}
	return false
}

type itemRef struct {
	rating   **float64
	comments *string
	manager  string
}

var itemPath = regexp.MustCompile(`^(goals|projects)\[(\d+)\]$|^skills\[(\d+)\]\.questionAnswers\[(\d+)\]$`)

func locateItem(a *SelfAssessment, path string) (itemRef, bool) {
	match := itemPath.FindStringSubmatch(path)
	if match == nil {
		return itemRef{}, false
	}
	switch match[1] {
	case "goals":
		i, _ := strconv.Atoi(match[2])
		if i >= len(a.Goals) {
			return itemRef{}, false
		}
		goal := &a.Goals[i]
		return itemRef{rating: &goal.ManagerRating, comments: &goal.ManagerComments, manager: goal.Manager}, true
	case "projects":
		i, _ := strconv.Atoi(match[2])
		if i >= len(a.Projects) {
			return itemRef{}, false
		}
		project := &a.Projects[i]
		return itemRef{rating: &project.ManagerRating, comments: &project.ManagerComments, manager: project.Manager}, true
	}
	c, _ := strconv.Atoi(match[3])
	q, _ := strconv.Atoi(match[4])
	if c >= len(a.Skills) || q >= len(a.Skills[c].QuestionAnswers) {
		return itemRef{}, false
	}
	question := &a.Skills[c].QuestionAnswers[q]
	return itemRef{rating: &question.ManagerRating, comments: &question.ManagerComments}, true
}

// SyncWithChain mirrors the approval chain's state onto a submitted assessment. The chain is the
// only authority for post-submission status changes.
func SyncWithChain(a SelfAssessment, c Chain) (SelfAssessment, error) {
	if c.SubjectKind != SubjectAssessment || c.SubjectID != a.ID {
		return SelfAssessment{}, violation("chain %s does not belong to assessment %s", c.ID, a.ID)
	}
	if a.Status == AssessmentStatusDraft {
		return SelfAssessment{}, violation("assessment %s has not been submitted", a.ID)
	}
	out := a.clone()
	switch c.State {
	case ChainStatePendingApproval:
		out.Status = AssessmentStatusPending
	case ChainStateNeedsClarification:
		out.Status = AssessmentStatusClarifying
		out.ClarificationNotes = c.ClarificationNotes
		out.ReopenedFields = append([]string(nil), c.ClarifyFields...)
	case ChainStateApproved:
		out.Status = AssessmentStatusApproved
		out.HikeDetails = c.HikeDetails.clone()
	case ChainStateRejected:
		out.Status = AssessmentStatusRejected
	default:
		return SelfAssessment{}, violation("chain %s is %s", c.ID, c.State)
	}
	return out, nil
}

// ReviseAssessment applies employee edits while clarification is open. Only the field paths
// reopened by the clarification may change.
// Manager ratings and comments are never taken from the edit.
func ReviseAssessment(a SelfAssessment, actor ActorContext, edited SelfAssessment) (SelfAssessment, error) {
	if actor.UserID != a.EmployeeID || !actor.valid() {
		return SelfAssessment{}, ErrForbidden
	}
	if a.Status != AssessmentStatusClarifying {
		return SelfAssessment{}, violation("assessment %s is not open for clarification", a.ID)
	}

	before := fieldValues(a)
	after := fieldValues(edited)
	issues := map[string]string{}
	for path := range unionKeys(before, after) {
		if before[path] == after[path] {
			continue
		}
		if !pathReopened(path, a.ReopenedFields) {
			issues[path] = "field is not open for revision"
		}
	}
	if len(issues) > 0 {
		return SelfAssessment{}, newValidationError(issues)
	}

	out := a.clone()
	revised := edited.clone()
	keepManagerInput(&revised, a)
	copyContent(&out, revised)
	return out, nil
}

// ResubmitAssessment closes a clarification round after re-validating the assessment.
func ResubmitAssessment(a SelfAssessment, actor ActorContext, at time.Time) (SelfAssessment, error) {
	if actor.UserID != a.EmployeeID || !actor.valid() {
		return SelfAssessment{}, ErrForbidden
	}
	if a.Status != AssessmentStatusClarifying {
		return SelfAssessment{}, violation("assessment %s is not open for clarification", a.ID)
	}
	if issues := ValidateAssessment(a); len(issues) > 0 {
		return SelfAssessment{}, newValidationError(issues)
	}
	out := a.clone()
	out.Status = AssessmentStatusPending
	out.ClarificationNotes = ""
	out.ReopenedFields = nil
	submitted := at
	out.SubmittedDate = &submitted
	return out, nil
}

func keepManagerInput(dst *SelfAssessment, src SelfAssessment) {
	for i := range dst.Goals {
		if i < len(src.Goals) {
			dst.Goals[i].ManagerRating = copyFloat(src.Goals[i].ManagerRating)
			dst.Goals[i].ManagerComments = src.Goals[i].ManagerComments
		} else {
			dst.Goals[i].ManagerRating, dst.Goals[i].ManagerComments = nil, ""
		}
	}
	for i := range dst.Projects {
		if i < len(src.Projects) {
			dst.Projects[i].ManagerRating = copyFloat(src.Projects[i].ManagerRating)
			dst.Projects[i].ManagerComments = src.Projects[i].ManagerComments
		} else {
			dst.Projects[i].ManagerRating, dst.Projects[i].ManagerComments = nil, ""
		}
	}
	for i := range dst.Skills {
		for j := range dst.Skills[i].QuestionAnswers {
			question := &dst.Skills[i].QuestionAnswers[j]
			if i < len(src.Skills) && j < len(src.Skills[i].QuestionAnswers) {
				question.ManagerRating = copyFloat(src.Skills[i].QuestionAnswers[j].ManagerRating)
				question.ManagerComments = src.Skills[i].QuestionAnswers[j].ManagerComments
			} else {
				question.ManagerRating, question.ManagerComments = nil, ""
			}
		}
	}
}

// fieldValues flattens the employee-editable content of an assessment by field path.
func fieldValues(a SelfAssessment) map[string]string {
	values := map[string]string{}
	for i, goal := range a.Goals {
		path := fmt.Sprintf("goals[%d]", i)
		values[path+".title"] = goal.Title
		values[path+".description"] = goal.Description
		values[path+".achievement"] = goal.Achievement
		values[path+".manager"] = goal.Manager
		values[path+".selfRating"] = formatRating(goal.SelfRating)
	}
	for i, project := range a.Projects {
		path := fmt.Sprintf("projects[%d]", i)
		values[path+".name"] = project.Name
		values[path+".description"] = project.Description
		values[path+".impact"] = project.Impact
		values[path+".role"] = project.Role
		values[path+".manager"] = project.Manager
		values[path+".selfRating"] = formatRating(project.SelfRating)
	}
	for i, category := range a.Skills {
		values[fmt.Sprintf("skills[%d].category", i)] = category.Category
		for j, question := range category.QuestionAnswers {
			path := fmt.Sprintf("skills[%d].questionAnswers[%d]", i, j)
			values[path+".question"] = question.Question
			values[path+".answer"] = question.Answer
			values[path+".selfRating"] = formatRating(question.SelfRating)
		}
	}
	return values
}

func formatRating(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

func unionKeys(a, b map[string]string) map[string]struct{} {
	keys := make(map[string]struct{}, len(a)+len(b))
	for key := range a {
		keys[key] = struct{}{}
	}
	for key := range b {
		keys[key] = struct{}{}
	}
	return keys
}

func pathReopened(path string, reopened []string) bool {
	for _, prefix := range reopened {
		if path == prefix || strings.HasPrefix(path, prefix+".") || strings.HasPrefix(path, prefix+"[") {
			return true
		}
	}
	return false
}

func contains(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}
