package inmemdb

import (
	"context"

	"github.com/trezcool/examportal/core"
)

type transactor struct {
	db *DB
}

var _ core.Transactor = (*transactor)(nil) // interface compliance check

func NewTransactor(db *DB) *transactor {
	return &transactor{db: db}
}

func inTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(bool)
	return ok
}

// InTx runs fn while holding the writer lock. Nested calls join the running transaction.
func (tx *transactor) InTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if inTx(ctx) {
		return fn(ctx)
	}

	tx.db.txMu.Lock()
	defer tx.db.txMu.Unlock()

	tx.db.mu.RLock()
	snapshot := tx.db.t.clone()
	tx.db.mu.RUnlock()

	rollback := func() {
		tx.db.mu.Lock()
		tx.db.t = snapshot
		tx.db.mu.Unlock()
	}
	defer func() {
		if r := recover(); r != nil {
			rollback()
			panic(r)
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		rollback()
	}
	return err
}
