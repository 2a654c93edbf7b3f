package performance

import "context"

type StoreAPI interface {
	WithTx(ctx context.Context, fn func(StoreAPI) error) error

	CreateSchema(ctx context.Context, schema FormSchema) (FormSchema, error)
	UpdateSchema(ctx context.Context, schema FormSchema) (FormSchema, error)
	GetSchema(ctx context.Context, id string) (FormSchema, error)
	ListSchemas(ctx context.Context, status SchemaStatus) ([]FormSchema, error)

	CreateCycle(ctx context.Context, cycle ReviewCycle) (ReviewCycle, error)
	UpdateCycle(ctx context.Context, cycle ReviewCycle) (ReviewCycle, error)
	GetCycle(ctx context.Context, id string) (ReviewCycle, error)
	ListCycles(ctx context.Context, status CycleStatus) ([]ReviewCycle, error)

	CreateAssessment(ctx context.Context, assessment SelfAssessment) (SelfAssessment, error)
	UpdateAssessment(ctx context.Context, assessment SelfAssessment) (SelfAssessment, error)
	GetAssessment(ctx context.Context, id string) (SelfAssessment, error)
	FindAssessment(ctx context.Context, cycleID, employeeID string) (SelfAssessment, error)
	ListAssessmentsByCycle(ctx context.Context, cycleID string) ([]SelfAssessment, error)

	CreateChain(ctx context.Context, chain Chain) (Chain, error)
	UpdateChain(ctx context.Context, chain Chain) (Chain, error)
	GetChainBySubject(ctx context.Context, kind SubjectKind, subjectID string) (Chain, error)
}
