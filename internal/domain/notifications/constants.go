package notifications

const (
	TypeFormPendingApproval   = "form_pending_approval"
	TypeFormDecided           = "form_decided"
	TypeAssessmentSubmitted   = "assessment_submitted"
	TypeAssessmentApproved    = "assessment_approved"
	TypeAssessmentRejected    = "assessment_rejected"
	TypeClarificationRequired = "clarification_required"
	TypeMilestoneOverdue      = "milestone_overdue"
)
