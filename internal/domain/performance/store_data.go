package performance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Documents are stored as JSONB snapshots next to a version column. Updates compare and bump the
// version so concurrent writers of the same subject cannot silently overwrite each other.

func scanDoc[T any](row pgx.Row, out *T) (int, error) {
	var raw []byte
	var version int
	if err := row.Scan(&raw, &version); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return 0, fmt.Errorf("decode document: %w", err)
	}
	return version, nil
}

func collectDocs[T any](rows pgx.Rows, setVersion func(*T, int)) ([]T, error) {
	defer rows.Close()
	out := []T{}
	for rows.Next() {
		var item T
		version, err := scanDoc(rows, &item)
		if err != nil {
			return nil, err
		}
		setVersion(&item, version)
		out = append(out, item)
	}
	return out, rows.Err()
}

// uniqueViolation maps a duplicate insert to ErrVersionConflict: another writer created the
// same subject first.
func uniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrVersionConflict
	}
	return err
}

func (s *Store) updateDoc(ctx context.Context, sql string, args ...any) error {
	tag, err := s.DB.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	return nil
}

func (s *Store) CreateSchema(ctx context.Context, schema FormSchema) (FormSchema, error) {
	schema.Version = 1
	doc, err := json.Marshal(schema)
	if err != nil {
		return FormSchema{}, err
	}
	if _, err := s.DB.Exec(ctx, `
    INSERT INTO form_schemas (id, status, doc, version)
    VALUES ($1,$2,$3,$4)
  `, schema.ID, string(schema.Status), doc, schema.Version); err != nil {
		return FormSchema{}, err
	}
	return schema, nil
}

func (s *Store) UpdateSchema(ctx context.Context, schema FormSchema) (FormSchema, error) {
	expected := schema.Version
	schema.Version = expected + 1
	doc, err := json.Marshal(schema)
	if err != nil {
		return FormSchema{}, err
	}
	if err := s.updateDoc(ctx, `
    UPDATE form_schemas
    SET status = $1, doc = $2, version = $3, updated_at = now()
    WHERE id = $4 AND version = $5
  `, string(schema.Status), doc, schema.Version, schema.ID, expected); err != nil {
		return FormSchema{}, err
	}
	return schema, nil
}

func (s *Store) GetSchema(ctx context.Context, id string) (FormSchema, error) {
	var schema FormSchema
	version, err := scanDoc(s.DB.QueryRow(ctx, "SELECT doc, version FROM form_schemas WHERE id = $1", id), &schema)
	if err != nil {
		return FormSchema{}, err
	}
	schema.Version = version
	return schema, nil
}

func (s *Store) ListSchemas(ctx context.Context, status SchemaStatus) ([]FormSchema, error) {
	query := "SELECT doc, version FROM form_schemas"
	args := []any{}
	if status != "" {
		query += " WHERE status = $1"
		args = append(args, string(status))
	}
	query += " ORDER BY created_at DESC"
	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectDocs(rows, func(schema *FormSchema, version int) { schema.Version = version })
}

func (s *Store) CreateCycle(ctx context.Context, cycle ReviewCycle) (ReviewCycle, error) {
	cycle.Version = 1
	doc, err := json.Marshal(cycle)
	if err != nil {
		return ReviewCycle{}, err
	}
	if _, err := s.DB.Exec(ctx, `
    INSERT INTO review_cycles (id, schema_id, status, doc, version)
    VALUES ($1,$2,$3,$4,$5)
  `, cycle.ID, cycle.SchemaID, string(cycle.Status), doc, cycle.Version); err != nil {
		return ReviewCycle{}, err
	}
	return cycle, nil
}

func (s *Store) UpdateCycle(ctx context.Context, cycle ReviewCycle) (ReviewCycle, error) {
	expected := cycle.Version
	cycle.Version = expected + 1
	doc, err := json.Marshal(cycle)
	if err != nil {
		return ReviewCycle{}, err
	}
	if err := s.updateDoc(ctx, `
    UPDATE review_cycles
    SET status = $1, doc = $2, version = $3, updated_at = now()
    WHERE id = $4 AND version = $5
  `, string(cycle.Status), doc, cycle.Version, cycle.ID, expected); err != nil {
		return ReviewCycle{}, err
	}
	return cycle, nil
}

func (s *Store) GetCycle(ctx context.Context, id string) (ReviewCycle, error) {
	var cycle ReviewCycle
	version, err := scanDoc(s.DB.QueryRow(ctx, "SELECT doc, version FROM review_cycles WHERE id = $1", id), &cycle)
	if err != nil {
		return ReviewCycle{}, err
	}
	cycle.Version = version
	return cycle, nil
}

func (s *Store) ListCycles(ctx context.Context, status CycleStatus) ([]ReviewCycle, error) {
	query := "SELECT doc, version FROM review_cycles"
	args := []any{}
	if status != "" {
		query += " WHERE status = $1"
		args = append(args, string(status))
	}
	query += " ORDER BY created_at DESC"
	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectDocs(rows, func(cycle *ReviewCycle, version int) { cycle.Version = version })
}

func assessmentStatusColumn(status AssessmentStatus) string {
	if status == AssessmentStatusDraft {
		return "draft"
	}
	return string(status)
}

func (s *Store) CreateAssessment(ctx context.Context, assessment SelfAssessment) (SelfAssessment, error) {
	assessment.Version = 1
	doc, err := json.Marshal(assessment)
	if err != nil {
		return SelfAssessment{}, err
	}
	if _, err := s.DB.Exec(ctx, `
    INSERT INTO self_assessments (id, cycle_id, employee_id, status, doc, version)
    VALUES ($1,$2,$3,$4,$5,$6)
  `, assessment.ID, assessment.CycleID, assessment.EmployeeID, assessmentStatusColumn(assessment.Status), doc, assessment.Version); err != nil {
		return SelfAssessment{}, uniqueViolation(err)
	}
	return assessment, nil
}

func (s *Store) UpdateAssessment(ctx context.Context, assessment SelfAssessment) (SelfAssessment, error) {
	expected := assessment.Version
	assessment.Version = expected + 1
	doc, err := json.Marshal(assessment)
	if err != nil {
		return SelfAssessment{}, err
	}
	if err := s.updateDoc(ctx, `
    UPDATE self_assessments
    SET status = $1, doc = $2, version = $3, updated_at = now()
    WHERE id = $4 AND version = $5
  `, assessmentStatusColumn(assessment.Status), doc, assessment.Version, assessment.ID, expected); err != nil {
		return SelfAssessment{}, err
	}
	return assessment, nil
}

func (s *Store) GetAssessment(ctx context.Context, id string) (SelfAssessment, error) {
	var assessment SelfAssessment
	version, err := scanDoc(s.DB.QueryRow(ctx, "SELECT doc, version FROM self_assessments WHERE id = $1", id), &assessment)
	if err != nil {
		return SelfAssessment{}, err
	}
	assessment.Version = version
	return assessment, nil
}

func (s *Store) FindAssessment(ctx context.Context, cycleID, employeeID string) (SelfAssessment, error) {
	var assessment SelfAssessment
	version, err := scanDoc(s.DB.QueryRow(ctx, `
    SELECT doc, version FROM self_assessments
    WHERE cycle_id = $1 AND employee_id = $2
  `, cycleID, employeeID), &assessment)
	if err != nil {
		return SelfAssessment{}, err
	}
	assessment.Version = version
	return assessment, nil
}

func (s *Store) ListAssessmentsByCycle(ctx context.Context, cycleID string) ([]SelfAssessment, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT doc, version FROM self_assessments
    WHERE cycle_id = $1
    ORDER BY created_at
  `, cycleID)
	if err != nil {
		return nil, err
	}
	return collectDocs(rows, func(assessment *SelfAssessment, version int) { assessment.Version = version })
}

func (s *Store) CreateChain(ctx context.Context, chain Chain) (Chain, error) {
	chain.Version = 1
	doc, err := json.Marshal(chain)
	if err != nil {
		return Chain{}, err
	}
	if _, err := s.DB.Exec(ctx, `
    INSERT INTO approval_chains (id, subject_kind, subject_id, state, doc, version)
    VALUES ($1,$2,$3,$4,$5,$6)
  `, chain.ID, string(chain.SubjectKind), chain.SubjectID, string(chain.State), doc, chain.Version); err != nil {
		return Chain{}, uniqueViolation(err)
	}
	return chain, nil
}

func (s *Store) UpdateChain(ctx context.Context, chain Chain) (Chain, error) {
	expected := chain.Version
	chain.Version = expected + 1
	doc, err := json.Marshal(chain)
	if err != nil {
		return Chain{}, err
	}
	if err := s.updateDoc(ctx, `
    UPDATE approval_chains
    SET state = $1, doc = $2, version = $3, updated_at = now()
    WHERE id = $4 AND version = $5
  `, string(chain.State), doc, chain.Version, chain.ID, expected); err != nil {
		return Chain{}, err
	}
	return chain, nil
}

func (s *Store) GetChainBySubject(ctx context.Context, kind SubjectKind, subjectID string) (Chain, error) {
	var chain Chain
	version, err := scanDoc(s.DB.QueryRow(ctx, `
    SELECT doc, version FROM approval_chains
    WHERE subject_kind = $1 AND subject_id = $2
  `, string(kind), subjectID), &chain)
	if err != nil {
		return Chain{}, err
	}
	chain.Version = version
	return chain, nil
}
