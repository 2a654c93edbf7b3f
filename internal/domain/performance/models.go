package performance

import (
	"encoding/json"
	"fmt"
	"time"
)

type FormSchema struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	Fields          []FormField     `json:"fields"`
	ApprovalLevels  []ApprovalLevel `json:"approvalLevels"`
	Status          SchemaStatus    `json:"status"`
	RejectionReason string          `json:"rejectionReason,omitempty"`
	ClonedFrom      string          `json:"clonedFrom,omitempty"`
	CreatedBy       string          `json:"createdBy,omitempty"`
	Version         int             `json:"version"`
}

// FieldSpec is the closed set of field kinds a form may contain. Implementations live in this
// package only.
type FieldSpec interface {
	Type() FieldType
	check(path string, issues map[string]string)
}

type TextSpec struct{}

type TextareaSpec struct{}

type NumberSpec struct {
	Min *float64
	Max *float64
}

type SelectSpec struct {
	Options []string
}

type RatingSpec struct {
	Min *float64
	Max *float64
}

type DateSpec struct{}

type FileSpec struct{}

func (TextSpec) Type() FieldType     { return FieldTypeText }
func (TextareaSpec) Type() FieldType { return FieldTypeTextarea }
func (NumberSpec) Type() FieldType   { return FieldTypeNumber }
func (SelectSpec) Type() FieldType   { return FieldTypeSelect }
func (RatingSpec) Type() FieldType   { return FieldTypeRating }
func (DateSpec) Type() FieldType     { return FieldTypeDate }
func (FileSpec) Type() FieldType     { return FieldTypeFile }

func (TextSpec) check(string, map[string]string)     {}
func (TextareaSpec) check(string, map[string]string) {}
func (DateSpec) check(string, map[string]string)     {}
func (FileSpec) check(string, map[string]string)     {}

func (s NumberSpec) check(path string, issues map[string]string) {
	checkBounds(path, s.Min, s.Max, issues)
}

func (s RatingSpec) check(path string, issues map[string]string) {
	checkBounds(path, s.Min, s.Max, issues)
}

func (s SelectSpec) check(path string, issues map[string]string) {
	if len(s.Options) == 0 {
		issues[path+".options"] = "select fields require at least one option"
	}
}

func checkBounds(path string, min, max *float64, issues map[string]string) {
	if min != nil && max != nil && *min > *max {
		issues[path+".min"] = "min must not exceed max"
	}
}

type FormField struct {
	ID       string
	Label    string
	Required bool
	Position int
	Spec     FieldSpec
}

type fieldWire struct {
	ID       string    `json:"id"`
	Label    string    `json:"label"`
	Type     FieldType `json:"type"`
	Required bool      `json:"required"`
	Position int       `json:"position"`
	Min      *float64  `json:"min,omitempty"`
	Max      *float64  `json:"max,omitempty"`
	Options  []string  `json:"options,omitempty"`
}

func (f FormField) MarshalJSON() ([]byte, error) {
	if f.Spec == nil {
		return nil, fmt.Errorf("field %q has no type", f.ID)
	}
	wire := fieldWire{ID: f.ID, Label: f.Label, Type: f.Spec.Type(), Required: f.Required, Position: f.Position}
	switch spec := f.Spec.(type) {
	case NumberSpec:
		wire.Min, wire.Max = spec.Min, spec.Max
	case RatingSpec:
		wire.Min, wire.Max = spec.Min, spec.Max
	case SelectSpec:
		wire.Options = spec.Options
	}
	return json.Marshal(wire)
}

func (f *FormField) UnmarshalJSON(data []byte) error {
	var wire fieldWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	spec, err := SpecFor(wire.Type, wire.Min, wire.Max, wire.Options)
	if err != nil {
		return err
	}
	*f = FormField{ID: wire.ID, Label: wire.Label, Required: wire.Required, Position: wire.Position, Spec: spec}
	return nil
}

// SpecFor builds the field spec for a wire-level type name.
func SpecFor(fieldType FieldType, min, max *float64, options []string) (FieldSpec, error) {
	switch fieldType {
	case FieldTypeText:
		return TextSpec{}, nil
	case FieldTypeTextarea:
		return TextareaSpec{}, nil
	case FieldTypeNumber:
		return NumberSpec{Min: min, Max: max}, nil
	case FieldTypeRating:
		return RatingSpec{Min: min, Max: max}, nil
	case FieldTypeSelect:
		return SelectSpec{Options: append([]string(nil), options...)}, nil
	case FieldTypeDate:
		return DateSpec{}, nil
	case FieldTypeFile:
		return FileSpec{}, nil
	}
	return nil, fmt.Errorf("unknown field type %q", fieldType)
}

type ApprovalLevel struct {
	Level           int      `json:"level"`
	Title           string   `json:"title"`
	Approvers       []string `json:"approvers"`
	IsFinalApproval bool     `json:"isFinalApproval"`
}

type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type ReviewCycle struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Type         string      `json:"type"`
	SchemaID     string      `json:"schemaId"`
	Status       CycleStatus `json:"status"`
	Period       Period      `json:"period"`
	DueDate      time.Time   `json:"dueDate"`
	Participants []string    `json:"participants"`
	Milestones   []Milestone `json:"milestones"`
	Version      int         `json:"version"`
}

type Milestone struct {
	ID      string          `json:"id"`
	Key     MilestoneKey    `json:"key"`
	Title   string          `json:"title"`
	DueDate time.Time       `json:"dueDate"`
	Status  MilestoneStatus `json:"status"`
	Rating  *float64        `json:"rating,omitempty"`
}

type CycleEvent struct {
	Kind   EventKind `json:"kind"`
	Rating *float64  `json:"rating,omitempty"`
}

// RatedItem is the uniform view of a goal, project or skill question used for aggregation.
type RatedItem struct {
	Label           string   `json:"label"`
	SelfRating      float64  `json:"selfRating"`
	ManagerRating   *float64 `json:"managerRating,omitempty"`
	ManagerComments string   `json:"managerComments,omitempty"`
}

type Goal struct {
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Achievement     string   `json:"achievement"`
	Manager         string   `json:"manager"`
	SelfRating      float64  `json:"selfRating"`
	ManagerRating   *float64 `json:"managerRating,omitempty"`
	ManagerComments string   `json:"managerComments,omitempty"`
}

type Project struct {
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	Impact          string   `json:"impact"`
	Role            string   `json:"role"`
	Manager         string   `json:"manager"`
	SelfRating      float64  `json:"selfRating"`
	ManagerRating   *float64 `json:"managerRating,omitempty"`
	ManagerComments string   `json:"managerComments,omitempty"`
}

type SkillQuestion struct {
	Question        string   `json:"question"`
	Answer          string   `json:"answer"`
	SelfRating      float64  `json:"selfRating"`
	ManagerRating   *float64 `json:"managerRating,omitempty"`
	ManagerComments string   `json:"managerComments,omitempty"`
}

type SkillCategory struct {
	Category        string          `json:"category"`
	QuestionAnswers []SkillQuestion `json:"questionAnswers"`
}

type HikeDetails struct {
	CompositeRating float64    `json:"compositeRating"`
	Percentage      float64    `json:"percentage"`
	EffectiveDate   *time.Time `json:"effectiveDate,omitempty"`
	ApprovedBy      string     `json:"approvedBy"`
	ApprovedAt      time.Time  `json:"approvedAt"`
}

type SelfAssessment struct {
	ID                 string           `json:"id"`
	EmployeeID         string           `json:"employeeId"`
	CycleID            string           `json:"cycleId"`
	SchemaID           string           `json:"schemaId"`
	Goals              []Goal           `json:"goals"`
	Projects           []Project        `json:"projects"`
	Skills             []SkillCategory  `json:"skills"`
	SubmittedDate      *time.Time       `json:"submittedDate,omitempty"`
	Status             AssessmentStatus `json:"status"`
	ClarificationNotes string           `json:"clarificationNotes,omitempty"`
	ReopenedFields     []string         `json:"reopenedFields,omitempty"`
	HikeDetails        *HikeDetails     `json:"hikeDetails,omitempty"`
	Version            int              `json:"version"`
}

// ManagerReview carries manager ratings and comments keyed by item path, e.g. "goals[0]".
type ManagerReview struct {
	Ratings  map[string]float64 `json:"ratings"`
	Comments map[string]string  `json:"comments"`
}

type Decision struct {
	Kind           DecisionKind `json:"kind"`
	Level          int          `json:"level"`
	Reason         string       `json:"reason,omitempty"`
	Fields         []string     `json:"fields,omitempty"`
	HikePercentage float64      `json:"hikePercentage,omitempty"`
	EffectiveDate  *time.Time   `json:"effectiveDate,omitempty"`
	Items          []RatedItem  `json:"-"`
	At             time.Time    `json:"-"`
}

type DecisionRecord struct {
	Level     int          `json:"level"`
	Kind      DecisionKind `json:"kind"`
	ActorID   string       `json:"actorId"`
	Reason    string       `json:"reason,omitempty"`
	DecidedAt time.Time    `json:"decidedAt"`
}

type Chain struct {
	ID                 string           `json:"id"`
	SubjectKind        SubjectKind      `json:"subjectKind"`
	SubjectID          string           `json:"subjectId"`
	SubjectOwner       string           `json:"subjectOwner,omitempty"`
	Levels             []ApprovalLevel  `json:"levels"`
	State              ChainState       `json:"state"`
	Cursor             int              `json:"cursor"`
	Decisions          []DecisionRecord `json:"decisions"`
	ClarificationNotes string           `json:"clarificationNotes,omitempty"`
	ClarifyFields      []string         `json:"clarifyFields,omitempty"`
	HikeDetails        *HikeDetails     `json:"hikeDetails,omitempty"`
	Version            int              `json:"version"`
}

func (s FormSchema) clone() FormSchema {
	out := s
	out.Fields = make([]FormField, len(s.Fields))
	for i, field := range s.Fields {
		out.Fields[i] = field.clone()
	}
	out.ApprovalLevels = cloneLevels(s.ApprovalLevels)
	return out
}

func (f FormField) clone() FormField {
	out := f
	switch spec := f.Spec.(type) {
	case SelectSpec:
		out.Spec = SelectSpec{Options: append([]string(nil), spec.Options...)}
	case NumberSpec:
		out.Spec = NumberSpec{Min: copyFloat(spec.Min), Max: copyFloat(spec.Max)}
	case RatingSpec:
		out.Spec = RatingSpec{Min: copyFloat(spec.Min), Max: copyFloat(spec.Max)}
	}
	return out
}

func cloneLevels(levels []ApprovalLevel) []ApprovalLevel {
	out := make([]ApprovalLevel, len(levels))
	for i, level := range levels {
		out[i] = level
		out[i].Approvers = append([]string(nil), level.Approvers...)
	}
	return out
}

func (c ReviewCycle) clone() ReviewCycle {
	out := c
	out.Participants = append([]string(nil), c.Participants...)
	out.Milestones = make([]Milestone, len(c.Milestones))
	for i, milestone := range c.Milestones {
		out.Milestones[i] = milestone
		out.Milestones[i].Rating = copyFloat(milestone.Rating)
	}
	return out
}

func (a SelfAssessment) clone() SelfAssessment {
	out := a
	out.Goals = make([]Goal, len(a.Goals))
	for i, goal := range a.Goals {
		out.Goals[i] = goal
		out.Goals[i].ManagerRating = copyFloat(goal.ManagerRating)
	}
	out.Projects = make([]Project, len(a.Projects))
	for i, project := range a.Projects {
		out.Projects[i] = project
		out.Projects[i].ManagerRating = copyFloat(project.ManagerRating)
	}
	out.Skills = make([]SkillCategory, len(a.Skills))
	for i, category := range a.Skills {
		out.Skills[i] = category
		out.Skills[i].QuestionAnswers = make([]SkillQuestion, len(category.QuestionAnswers))
		for j, question := range category.QuestionAnswers {
			out.Skills[i].QuestionAnswers[j] = question
			out.Skills[i].QuestionAnswers[j].ManagerRating = copyFloat(question.ManagerRating)
		}
	}
	out.ReopenedFields = append([]string(nil), a.ReopenedFields...)
	out.SubmittedDate = copyTime(a.SubmittedDate)
	out.HikeDetails = a.HikeDetails.clone()
	return out
}

func (c Chain) clone() Chain {
	out := c
	out.Levels = cloneLevels(c.Levels)
	out.Decisions = append([]DecisionRecord(nil), c.Decisions...)
	out.ClarifyFields = append([]string(nil), c.ClarifyFields...)
	out.HikeDetails = c.HikeDetails.clone()
	return out
}

func (h *HikeDetails) clone() *HikeDetails {
	if h == nil {
		return nil
	}
	out := *h
	out.EffectiveDate = copyTime(h.EffectiveDate)
	return &out
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func copyTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
