package performance

import (
	"context"

	"reviewflow/internal/platform/querier"
)

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

// WithTx runs fn against a transaction-scoped store when the underlying querier supports one.
func (s *Store) WithTx(ctx context.Context, fn func(StoreAPI) error) error {
	starter, ok := s.DB.(querier.TxStarter)
	if !ok {
		return fn(s)
	}
	tx, err := starter.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(&Store{DB: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}
