package performance

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

var (
	hrActor       = ActorContext{UserID: "hr-1", Role: RoleHR}
	adminActor    = ActorContext{UserID: "admin-1", Role: RoleAdmin}
	employeeActor = ActorContext{UserID: "emp-1", Role: RoleEmployee}
)

func floatPtr(v float64) *float64 { return &v }

func draftSchema(t *testing.T) FormSchema {
	t.Helper()
	schema, err := NewSchema("form-1", "Annual Review", hrActor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	schema, err = AddField(schema, hrActor, FormField{ID: "summary", Label: "Summary", Spec: TextareaSpec{}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return schema
}

func withLevels(t *testing.T, schema FormSchema, levels ...ApprovalLevel) FormSchema {
	t.Helper()
	var err error
	for _, level := range levels {
		schema, err = AddApprovalLevel(schema, hrActor, level)
		if err != nil {
			t.Fatalf("unexpected error adding level %q: %v", level.Title, err)
		}
	}
	return schema
}

func threeLevelSchema(t *testing.T) FormSchema {
	return withLevels(t, draftSchema(t),
		ApprovalLevel{Title: "Manager", Approvers: []string{RoleManager}},
		ApprovalLevel{Title: "Dept Head", Approvers: []string{"head-1"}},
		ApprovalLevel{Title: "HR", Approvers: []string{RoleHR}, IsFinalApproval: true},
	)
}

func TestAddFieldAssignsPositions(t *testing.T) {
	schema := draftSchema(t)
	schema, err := AddField(schema, hrActor, FormField{ID: "score", Label: "Score", Spec: RatingSpec{Min: floatPtr(1), Max: floatPtr(5)}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(schema.Fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(schema.Fields))
	}
	if schema.Fields[0].Position != 0 || schema.Fields[1].Position != 1 {
		t.Fatalf("expected positions 0 and 1, got %d and %d", schema.Fields[0].Position, schema.Fields[1].Position)
	}
}

func TestAddFieldRejectsSelectWithoutOptions(t *testing.T) {
	schema := draftSchema(t)
	_, err := AddField(schema, hrActor, FormField{ID: "band", Label: "Band", Spec: SelectSpec{}})
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, ok := validation.Fields["field.options"]; !ok {
		t.Fatalf("expected options issue, got %+v", validation.Fields)
	}
	if len(schema.Fields) != 1 {
		t.Fatalf("expected input schema untouched, got %d fields", len(schema.Fields))
	}
}

func TestAddFieldRejectsInvertedBounds(t *testing.T) {
	schema := draftSchema(t)
	_, err := AddField(schema, hrActor, FormField{ID: "n", Label: "N", Spec: NumberSpec{Min: floatPtr(10), Max: floatPtr(2)}})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAddFieldRejectsDuplicateID(t *testing.T) {
	schema := draftSchema(t)
	_, err := AddField(schema, hrActor, FormField{ID: "summary", Label: "Again", Spec: TextSpec{}})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAddFieldRequiresAuthor(t *testing.T) {
	schema := draftSchema(t)
	_, err := AddField(schema, employeeActor, FormField{ID: "x", Label: "X", Spec: TextSpec{}})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestAddApprovalLevelNumbersSequentially(t *testing.T) {
	schema := threeLevelSchema(t)
	for i, level := range schema.ApprovalLevels {
		if level.Level != i+1 {
			t.Fatalf("expected level %d, got %d", i+1, level.Level)
		}
	}
}

func TestAddApprovalLevelValidation(t *testing.T) {
	schema := draftSchema(t)
	_, err := AddApprovalLevel(schema, hrActor, ApprovalLevel{Title: "Manager", Approvers: []string{" "}})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for empty approvers, got %v", err)
	}
	_, err = AddApprovalLevel(schema, hrActor, ApprovalLevel{Title: "  ", Approvers: []string{"hr"}})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for blank title, got %v", err)
	}
}

func TestRemoveApprovalLevelRenumbers(t *testing.T) {
	schema := threeLevelSchema(t)
	schema, err := RemoveApprovalLevel(schema, hrActor, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(schema.ApprovalLevels) != 2 {
		t.Fatalf("expected 2 levels, got %d", len(schema.ApprovalLevels))
	}
	if schema.ApprovalLevels[0].Title != "Manager" || schema.ApprovalLevels[0].Level != 1 {
		t.Fatalf("unexpected first level: %+v", schema.ApprovalLevels[0])
	}
	if schema.ApprovalLevels[1].Title != "HR" || schema.ApprovalLevels[1].Level != 2 {
		t.Fatalf("unexpected second level: %+v", schema.ApprovalLevels[1])
	}
}

func TestRemoveLastApprovalLevelIsInvariantViolation(t *testing.T) {
	schema := withLevels(t, draftSchema(t), ApprovalLevel{Title: "HR", Approvers: []string{RoleHR}, IsFinalApproval: true})
	_, err := RemoveApprovalLevel(schema, hrActor, 1)
	if !errors.Is(err, ErrInvariant) {
		t.Fatalf("expected invariant violation, got %v", err)
	}
	_, err = RemoveApprovalLevel(schema, hrActor, 7)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for unknown level, got %v", err)
	}
}

func TestPublishRequiresFieldsLevelsAndFinal(t *testing.T) {
	empty, _ := NewSchema("form-2", "Empty", hrActor)
	if _, err := Publish(empty, hrActor); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for empty schema, got %v", err)
	}

	noLevels := draftSchema(t)
	if _, err := Publish(noLevels, hrActor); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error without levels, got %v", err)
	}

	noFinal := withLevels(t, draftSchema(t), ApprovalLevel{Title: "Manager", Approvers: []string{RoleManager}})
	if _, err := Publish(noFinal, hrActor); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error without a final level, got %v", err)
	}
}

func TestPublishOnlyOnce(t *testing.T) {
	schema := threeLevelSchema(t)
	published, err := Publish(schema, hrActor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if published.Status != SchemaStatusPendingApproval {
		t.Fatalf("expected pending_approval, got %s", published.Status)
	}
	if schema.Status != SchemaStatusDraft {
		t.Fatalf("expected caller snapshot to stay draft, got %s", schema.Status)
	}
	if _, err := Publish(published, hrActor); !errors.Is(err, ErrInvariant) {
		t.Fatalf("expected invariant violation on second publish, got %v", err)
	}
	if _, err := AddApprovalLevel(published, hrActor, ApprovalLevel{Title: "Extra", Approvers: []string{"x"}}); !errors.Is(err, ErrInvariant) {
		t.Fatalf("expected levels to be frozen after publish, got %v", err)
	}
}

func TestApproveAndRejectSchema(t *testing.T) {
	published, err := Publish(threeLevelSchema(t), hrActor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	approved, err := ApproveSchema(published, adminActor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if approved.Status != SchemaStatusApproved {
		t.Fatalf("expected approved, got %s", approved.Status)
	}

	if _, err := RejectSchema(published, adminActor, " "); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for blank reason, got %v", err)
	}
	rejected, err := RejectSchema(published, adminActor, "missing competencies")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rejected.Status != SchemaStatusRejected || rejected.RejectionReason != "missing competencies" {
		t.Fatalf("unexpected rejected schema: %+v", rejected)
	}
	if _, err := ApproveSchema(rejected, adminActor); !errors.Is(err, ErrInvariant) {
		t.Fatalf("expected rejected schema to be terminal, got %v", err)
	}
}

func TestCloneSchemaStartsNewDraft(t *testing.T) {
	published, _ := Publish(threeLevelSchema(t), hrActor)
	rejected, _ := RejectSchema(published, hrActor, "rework")

	clone, err := CloneSchema(rejected, adminActor, "form-9")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if clone.Status != SchemaStatusDraft || clone.ClonedFrom != "form-1" || clone.RejectionReason != "" {
		t.Fatalf("unexpected clone: %+v", clone)
	}
	if !reflect.DeepEqual(clone.ApprovalLevels, rejected.ApprovalLevels) {
		t.Fatalf("expected levels copied")
	}
	clone.ApprovalLevels[0].Approvers[0] = "changed"
	if rejected.ApprovalLevels[0].Approvers[0] == "changed" {
		t.Fatal("expected clone to be a deep copy")
	}
	if _, err := CloneSchema(rejected, adminActor, "form-1"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected a fresh id to be required, got %v", err)
	}
}

func TestFormFieldJSONRoundTrip(t *testing.T) {
	field := FormField{ID: "band", Label: "Band", Required: true, Position: 3, Spec: SelectSpec{Options: []string{"A", "B"}}}
	data, err := json.Marshal(field)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var decoded FormField
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(field, decoded) {
		t.Fatalf("expected %+v, got %+v", field, decoded)
	}

	if err := json.Unmarshal([]byte(`{"id":"x","label":"X","type":"signature"}`), &decoded); err == nil {
		t.Fatal("expected error for unknown field type")
	}
}
