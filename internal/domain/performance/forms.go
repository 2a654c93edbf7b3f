package performance

import (
	"fmt"
	"strings"
)

// NewSchema starts an empty draft form.
func NewSchema(id, title string, actor ActorContext) (FormSchema, error) {
	if err := requireAuthor(actor); err != nil {
		return FormSchema{}, err
	}
	if strings.TrimSpace(id) == "" {
		return FormSchema{}, invalidField("id", "id is required")
	}
	if strings.TrimSpace(title) == "" {
		return FormSchema{}, invalidField("title", "title is required")
	}
	return FormSchema{
		ID:             id,
		Title:          strings.TrimSpace(title),
		Fields:         []FormField{},
		ApprovalLevels: []ApprovalLevel{},
		Status:         SchemaStatusDraft,
		CreatedBy:      actor.UserID,
	}, nil
}

func editableSchema(schema FormSchema, actor ActorContext) error {
	if err := requireAuthor(actor); err != nil {
		return err
	}
	if schema.Status != SchemaStatusDraft {
		return violation("schema %s is %s, only drafts can be edited", schema.ID, schema.Status)
	}
	return nil
}

// AddField appends a field and assigns its display position.
func AddField(schema FormSchema, actor ActorContext, field FormField) (FormSchema, error) {
	if err := editableSchema(schema, actor); err != nil {
		return FormSchema{}, err
	}

	issues := map[string]string{}
	if strings.TrimSpace(field.ID) == "" {
		issues["field.id"] = "id is required"
	}
	if strings.TrimSpace(field.Label) == "" {
		issues["field.label"] = "label is required"
	}
	if field.Spec == nil {
		issues["field.type"] = "type is required"
	} else {
		field.Spec.check("field", issues)
	}
	for _, existing := range schema.Fields {
		if existing.ID == field.ID && field.ID != "" {
			issues["field.id"] = "id already used in this form"
		}
	}
	if len(issues) > 0 {
		return FormSchema{}, newValidationError(issues)
	}

	out := schema.clone()
	added := field.clone()
	added.Label = strings.TrimSpace(added.Label)
	added.Position = len(out.Fields)
	out.Fields = append(out.Fields, added)
	return out, nil
}

// AddApprovalLevel appends a level numbered one past the current highest level.
func AddApprovalLevel(schema FormSchema, actor ActorContext, level ApprovalLevel) (FormSchema, error) {
	if err := editableSchema(schema, actor); err != nil {
		return FormSchema{}, err
	}

	issues := map[string]string{}
	if strings.TrimSpace(level.Title) == "" {
		issues["level.title"] = "title is required"
	}
	approvers := make([]string, 0, len(level.Approvers))
	for _, approver := range level.Approvers {
		if trimmed := strings.TrimSpace(approver); trimmed != "" {
			approvers = append(approvers, trimmed)
		}
	}
	if len(approvers) == 0 {
		issues["level.approvers"] = "at least one approver is required"
	}
	if len(issues) > 0 {
		return FormSchema{}, newValidationError(issues)
	}

	highest := 0
	for _, existing := range schema.ApprovalLevels {
		if existing.Level > highest {
			highest = existing.Level
		}
	}

	out := schema.clone()
	out.ApprovalLevels = append(out.ApprovalLevels, ApprovalLevel{
		Level:           highest + 1,
		Title:           strings.TrimSpace(level.Title),
		Approvers:       approvers,
		IsFinalApproval: level.IsFinalApproval,
	})
	return out, nil
}

// RemoveApprovalLevel drops a level and renumbers the rest 1..N in their existing order.
func RemoveApprovalLevel(schema FormSchema, actor ActorContext, levelNumber int) (FormSchema, error) {
	if err := editableSchema(schema, actor); err != nil {
		return FormSchema{}, err
	}

	index := -1
	for i, level := range schema.ApprovalLevels {
		if level.Level == levelNumber {
			index = i
			break
		}
	}
	if index < 0 {
		return FormSchema{}, invalidField("level", fmt.Sprintf("level %d does not exist", levelNumber))
	}
	if len(schema.ApprovalLevels) == 1 {
		return FormSchema{}, violation("a schema must keep at least one approval level")
	}

	out := schema.clone()
	remaining := append(out.ApprovalLevels[:index:index], out.ApprovalLevels[index+1:]...)
	out.ApprovalLevels = renumberLevels(remaining)
	return out, nil
}

func renumberLevels(levels []ApprovalLevel) []ApprovalLevel {
	ordered := sortedLevels(levels)
	for i := range ordered {
		ordered[i].Level = i + 1
	}
	return ordered
}

// Publish submits a complete draft for approval.
func Publish(schema FormSchema, actor ActorContext) (FormSchema, error) {
	if err := editableSchema(schema, actor); err != nil {
		return FormSchema{}, err
	}

	issues := map[string]string{}
	if len(schema.Fields) == 0 {
		issues["fields"] = "at least one field is required"
	}
	if len(schema.ApprovalLevels) == 0 {
		issues["approvalLevels"] = "at least one approval level is required"
	} else if !hasFinalLevel(schema.ApprovalLevels) {
		issues["approvalLevels"] = "one approval level must be marked final"
	}
	if len(issues) > 0 {
		return FormSchema{}, newValidationError(issues)
	}
	if err := checkLevelNumbering(schema.ApprovalLevels); err != nil {
		return FormSchema{}, err
	}

	out := schema.clone()
	out.Status = SchemaStatusPendingApproval
	return out, nil
}

func hasFinalLevel(levels []ApprovalLevel) bool {
	for _, level := range levels {
		if level.IsFinalApproval {
			return true
		}
	}
	return false
}

func checkLevelNumbering(levels []ApprovalLevel) error {
	for i, level := range sortedLevels(levels) {
		if level.Level != i+1 {
			return violation("approval levels must be numbered 1..%d without gaps", len(levels))
		}
	}
	return nil
}

// ApproveSchema makes a published schema available for review cycles.
func ApproveSchema(schema FormSchema, actor ActorContext) (FormSchema, error) {
	if err := requireAuthor(actor); err != nil {
		return FormSchema{}, err
	}
	if schema.Status != SchemaStatusPendingApproval {
		return FormSchema{}, violation("schema %s is %s, expected %s", schema.ID, schema.Status, SchemaStatusPendingApproval)
	}
	out := schema.clone()
	out.Status = SchemaStatusApproved
	return out, nil
}

// RejectSchema is terminal. A rejected schema can only be retried through CloneSchema.
func RejectSchema(schema FormSchema, actor ActorContext, reason string) (FormSchema, error) {
	if err := requireAuthor(actor); err != nil {
		return FormSchema{}, err
	}
	if strings.TrimSpace(reason) == "" {
		return FormSchema{}, invalidField("reason", "a rejection reason is required")
	}
	if schema.Status != SchemaStatusPendingApproval {
		return FormSchema{}, violation("schema %s is %s, expected %s", schema.ID, schema.Status, SchemaStatusPendingApproval)
	}
	out := schema.clone()
	out.Status = SchemaStatusRejected
	out.RejectionReason = strings.TrimSpace(reason)
	return out, nil
}

// CloneSchema copies fields and levels into a new draft with a fresh id.
func CloneSchema(schema FormSchema, actor ActorContext, newID string) (FormSchema, error) {
	if err := requireAuthor(actor); err != nil {
		return FormSchema{}, err
	}
	if strings.TrimSpace(newID) == "" || newID == schema.ID {
		return FormSchema{}, invalidField("id", "a new id is required")
	}
	out := schema.clone()
	out.ID = newID
	out.Status = SchemaStatusDraft
	out.RejectionReason = ""
	out.ClonedFrom = schema.ID
	out.CreatedBy = actor.UserID
	out.Version = 0
	return out, nil
}
