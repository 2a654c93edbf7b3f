package performance

type SchemaStatus string

const (
	SchemaStatusDraft           SchemaStatus = "draft"
	SchemaStatusPendingApproval SchemaStatus = "pending_approval"
	SchemaStatusApproved        SchemaStatus = "approved"
	SchemaStatusRejected        SchemaStatus = "rejected"
)

type FieldType string

const (
	FieldTypeText     FieldType = "text"
	FieldTypeNumber   FieldType = "number"
	FieldTypeSelect   FieldType = "select"
	FieldTypeTextarea FieldType = "textarea"
	FieldTypeRating   FieldType = "rating"
	FieldTypeDate     FieldType = "date"
	FieldTypeFile     FieldType = "file"
)

type ChainState string

const (
	ChainStateDraft              ChainState = "draft"
	ChainStatePendingApproval    ChainState = "pending_approval"
	ChainStateApproved           ChainState = "approved"
	ChainStateRejected           ChainState = "rejected"
	ChainStateNeedsClarification ChainState = "needs_clarification"
)

type SubjectKind string

const (
	SubjectAssessment SubjectKind = "assessment"
	SubjectSchema     SubjectKind = "schema"
)

type DecisionKind string

const (
	DecisionApprove DecisionKind = "approve"
	DecisionReject  DecisionKind = "reject"
	DecisionClarify DecisionKind = "clarify"
)

type AssessmentStatus string

const (
	AssessmentStatusDraft      AssessmentStatus = ""
	AssessmentStatusPending    AssessmentStatus = "pending"
	AssessmentStatusApproved   AssessmentStatus = "approved"
	AssessmentStatusClarifying AssessmentStatus = "clarifying"
	AssessmentStatusRejected   AssessmentStatus = "rejected"
)

type CycleStatus string

const (
	CycleStatusPending   CycleStatus = "pending"
	CycleStatusActive    CycleStatus = "active"
	CycleStatusCompleted CycleStatus = "completed"
)

type MilestoneStatus string

const (
	MilestoneStatusPending    MilestoneStatus = "pending"
	MilestoneStatusInProgress MilestoneStatus = "in-progress"
	MilestoneStatusCompleted  MilestoneStatus = "completed"
)

type MilestoneKey string

const (
	MilestoneSelfEvaluation MilestoneKey = "self_evaluation"
	MilestoneManagerReview  MilestoneKey = "manager_review"
	MilestoneHRApproval     MilestoneKey = "hr_approval"
	MilestoneEffective      MilestoneKey = "effective"
)

// canonicalStages is the ordered milestone set every cycle is instantiated with.
var canonicalStages = []struct {
	Key   MilestoneKey
	Title string
}{
	{MilestoneSelfEvaluation, "Self Evaluation"},
	{MilestoneManagerReview, "Manager Review"},
	{MilestoneHRApproval, "HR Approval"},
	{MilestoneEffective, "Effective"},
}

type EventKind string

const (
	EventCompleted          EventKind = "completed"
	EventRejected           EventKind = "rejected"
	EventNeedsClarification EventKind = "needs_clarification"
)

const (
	RoleEmployee = "employee"
	RoleManager  = "manager"
	RoleHR       = "hr"
	RoleAdmin    = "admin"
	RoleSystem   = "system"
)

const (
	MinRating = 1.0
	MaxRating = 5.0
)
