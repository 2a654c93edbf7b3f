package performance

import (
	"context"
	"sync"
)

// MemoryStore is a StoreAPI kept in process memory. It applies the same version checks as
// the Postgres store and backs handler and service tests.
type MemoryStore struct {
	mu          sync.Mutex
	schemas     map[string]FormSchema
	cycles      map[string]ReviewCycle
	assessments map[string]SelfAssessment
	chains      map[string]Chain
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		schemas:     map[string]FormSchema{},
		cycles:      map[string]ReviewCycle{},
		assessments: map[string]SelfAssessment{},
		chains:      map[string]Chain{},
	}
}

func chainKey(kind SubjectKind, subjectID string) string {
	return string(kind) + ":" + subjectID
}

// WithTx runs fn against the store directly. Writes are not rolled back on error.
func (m *MemoryStore) WithTx(ctx context.Context, fn func(StoreAPI) error) error {
	return fn(m)
}

func (m *MemoryStore) CreateSchema(ctx context.Context, schema FormSchema) (FormSchema, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	schema.Version = 1
	m.schemas[schema.ID] = schema.clone()
	return schema, nil
}

func (m *MemoryStore) UpdateSchema(ctx context.Context, schema FormSchema) (FormSchema, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.schemas[schema.ID]
	if !ok {
		return FormSchema{}, ErrNotFound
	}
	if current.Version != schema.Version {
		return FormSchema{}, ErrVersionConflict
	}
	schema.Version++
	m.schemas[schema.ID] = schema.clone()
	return schema, nil
}

func (m *MemoryStore) GetSchema(ctx context.Context, id string) (FormSchema, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	schema, ok := m.schemas[id]
	if !ok {
		return FormSchema{}, ErrNotFound
	}
	return schema.clone(), nil
}

func (m *MemoryStore) ListSchemas(ctx context.Context, status SchemaStatus) ([]FormSchema, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []FormSchema{}
	for _, schema := range m.schemas {
		if status == "" || schema.Status == status {
			out = append(out, schema.clone())
		}
	}
	return out, nil
}

func (m *MemoryStore) CreateCycle(ctx context.Context, cycle ReviewCycle) (ReviewCycle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cycle.Version = 1
	m.cycles[cycle.ID] = cycle.clone()
	return cycle, nil
}

func (m *MemoryStore) UpdateCycle(ctx context.Context, cycle ReviewCycle) (ReviewCycle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.cycles[cycle.ID]
	if !ok {
		return ReviewCycle{}, ErrNotFound
	}
	if current.Version != cycle.Version {
		return ReviewCycle{}, ErrVersionConflict
	}
	cycle.Version++
	m.cycles[cycle.ID] = cycle.clone()
	return cycle, nil
}

func (m *MemoryStore) GetCycle(ctx context.Context, id string) (ReviewCycle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cycle, ok := m.cycles[id]
	if !ok {
		return ReviewCycle{}, ErrNotFound
	}
	return cycle.clone(), nil
}

func (m *MemoryStore) ListCycles(ctx context.Context, status CycleStatus) ([]ReviewCycle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []ReviewCycle{}
	for _, cycle := range m.cycles {
		if status == "" || cycle.Status == status {
			out = append(out, cycle.clone())
		}
	}
	return out, nil
}

func (m *MemoryStore) CreateAssessment(ctx context.Context, assessment SelfAssessment) (SelfAssessment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	assessment.Version = 1
	m.assessments[assessment.ID] = assessment.clone()
	return assessment, nil
}

func (m *MemoryStore) UpdateAssessment(ctx context.Context, assessment SelfAssessment) (SelfAssessment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.assessments[assessment.ID]
	if !ok {
		return SelfAssessment{}, ErrNotFound
	}
	if current.Version != assessment.Version {
		return SelfAssessment{}, ErrVersionConflict
	}
	assessment.Version++
	m.assessments[assessment.ID] = assessment.clone()
	return assessment, nil
}

func (m *MemoryStore) GetAssessment(ctx context.Context, id string) (SelfAssessment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	assessment, ok := m.assessments[id]
	if !ok {
		return SelfAssessment{}, ErrNotFound
	}
	return assessment.clone(), nil
}

func (m *MemoryStore) FindAssessment(ctx context.Context, cycleID, employeeID string) (SelfAssessment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, assessment := range m.assessments {
		if assessment.CycleID == cycleID && assessment.EmployeeID == employeeID {
			return assessment.clone(), nil
		}
	}
	return SelfAssessment{}, ErrNotFound
}

func (m *MemoryStore) ListAssessmentsByCycle(ctx context.Context, cycleID string) ([]SelfAssessment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []SelfAssessment{}
	for _, assessment := range m.assessments {
		if assessment.CycleID == cycleID {
			out = append(out, assessment.clone())
		}
	}
	return out, nil
}

func (m *MemoryStore) CreateChain(ctx context.Context, chain Chain) (Chain, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	chain.Version = 1
	m.chains[chainKey(chain.SubjectKind, chain.SubjectID)] = chain.clone()
	return chain, nil
}

func (m *MemoryStore) UpdateChain(ctx context.Context, chain Chain) (Chain, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := chainKey(chain.SubjectKind, chain.SubjectID)
	current, ok := m.chains[key]
	if !ok {
		return Chain{}, ErrNotFound
	}
	if current.Version != chain.Version {
		return Chain{}, ErrVersionConflict
	}
	chain.Version++
	m.chains[key] = chain.clone()
	return chain, nil
}

func (m *MemoryStore) GetChainBySubject(ctx context.Context, kind SubjectKind, subjectID string) (Chain, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	chain, ok := m.chains[chainKey(kind, subjectID)]
	if !ok {
		return Chain{}, ErrNotFound
	}
	return chain.clone(), nil
}
