package postgres

import (
	"context"
	"fmt"

	"github.com/DanielPopoola/ficmart-payment-gateway/internal/domain"
)

// TxManager opens one pgx transaction per WithTx call and threads it to the
// caller as an opaque domain.Tx, committing on nil error and rolling back
// otherwise.
type TxManager struct {
	db *DB
}

func NewTxManager(db *DB) *TxManager {
	return &TxManager{db: db}
}

func (m *TxManager) WithTx(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	tx, err := m.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
