// Package sqlxrepos implements the core repositories on PostgreSQL.
package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/examportal/core"
)

// foreignKeyViolation is the postgres error code of a foreign key violation.
const foreignKeyViolation pq.ErrorCode = "23503"

type txKey struct{}

type transactor struct {
	db *sqlx.DB
}

var _ core.Transactor = (*transactor)(nil) // interface compliance check

func NewTransactor(db *sqlx.DB) *transactor {
	return &transactor{db: db}
}

// InTx runs fn in a database transaction. Nested calls join the running transaction.
func (t *transactor) InTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return fn(ctx)
	}

	tx, err := t.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			panic(r)
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Wrapf(err, "rolling back: %v", rbErr)
		}
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

// executor returns the transaction running in ctx, if any, or db.
func executor(ctx context.Context, db *sqlx.DB) core.DBExecutor {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return db
}

// validID reports whether id can be looked up. Every primary key is a UUID.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func isNoRows(err error) bool {
	return errors.Cause(err) == sql.ErrNoRows
}

// violates reports whether err is a postgres error of the given code, on one of the given constraints if any.
func violates(err error, code pq.ErrorCode, constraints ...string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != code {
		return false
	}
	if len(constraints) == 0 {
		return true
	}
	for _, c := range constraints {
		if pqErr.Constraint == c {
			return true
		}
	}
	return false
}

func affected(res sql.Result) (int64, error) {
	n, err := res.RowsAffected()
	return n, errors.Wrap(err, "reading affected rows")
}

// exists reports whether a row of table has the given id.
func exists(ctx context.Context, ex core.DBExecutor, table, id string) (bool, error) {
	var found bool
	q := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)", table)
	err := ex.GetContext(ctx, &found, q, id)
	return found, errors.Wrapf(err, "checking %s", table)
}

// where accumulates the conditions of a dynamic query, with `?` bind vars.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, args ...interface{}) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// likePattern returns a case-insensitive substring pattern for s.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}
