package sqlxrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/examportal/core"
	"github.com/trezcool/examportal/core/exam"
	"github.com/trezcool/examportal/core/ledger"
)

const purchaseColumns = `id, academy_id, exam_id, quantity, used_quantity, total_price, status, created_at, updated_at`

type ledgerRepository struct {
	db *sqlx.DB
}

var _ ledger.Repository = (*ledgerRepository)(nil) // interface compliance check

func NewLedgerRepository(db *sqlx.DB) *ledgerRepository {
	return &ledgerRepository{db: db}
}

// AddPurchase upserts on the (academy, exam) pair so that concurrent purchases both count.
func (repo *ledgerRepository) AddPurchase(ctx context.Context, p ledger.Purchase) (ledger.Purchase, error) {
	p.ID = uuid.NewString()
	q := `INSERT INTO exam_purchase (` + purchaseColumns + `)
		VALUES ($1, $2, $3, $4, 0, $5, $6, $7, $8)
		ON CONFLICT ON CONSTRAINT exam_purchase_academy_exam_key DO UPDATE SET
			quantity = exam_purchase.quantity + EXCLUDED.quantity,
			total_price = exam_purchase.total_price + EXCLUDED.total_price,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + purchaseColumns

	var stored ledger.Purchase
	err := executor(ctx, repo.db).GetContext(ctx, &stored, q,
		p.ID, p.AcademyID, p.ExamID, p.Quantity, p.TotalPrice, p.Status, p.CreatedAt, p.UpdatedAt)
	if violates(err, foreignKeyViolation) {
		return ledger.Purchase{}, exam.ErrNotFound
	}
	return stored, errors.Wrap(err, "upserting purchase")
}

func (repo *ledgerRepository) GetPurchase(ctx context.Context, id string) (ledger.Purchase, error) {
	if !validID(id) {
		return ledger.Purchase{}, ledger.ErrNotFound
	}
	var p ledger.Purchase
	err := executor(ctx, repo.db).GetContext(ctx, &p, `SELECT `+purchaseColumns+` FROM exam_purchase WHERE id = $1`, id)
	if isNoRows(err) {
		return ledger.Purchase{}, ledger.ErrNotFound
	}
	return p, errors.Wrap(err, "selecting purchase")
}

func (repo *ledgerRepository) FindPurchase(ctx context.Context, academyID, examID string) (ledger.Purchase, error) {
	if !validID(examID) {
		return ledger.Purchase{}, ledger.ErrNotFound
	}
	var p ledger.Purchase
	q := `SELECT ` + purchaseColumns + ` FROM exam_purchase WHERE academy_id = $1 AND exam_id = $2`
	err := executor(ctx, repo.db).GetContext(ctx, &p, q, academyID, examID)
	if isNoRows(err) {
		return ledger.Purchase{}, ledger.ErrNotFound
	}
	return p, errors.Wrap(err, "selecting purchase")
}

func (repo *ledgerRepository) QueryPurchases(ctx context.Context, academyID string) ([]ledger.Purchase, error) {
	var w where
	if academyID != "" {
		w.add("academy_id = ?", academyID)
	}
	ex := executor(ctx, repo.db)
	ord := core.DBOrdering{Field: "created_at"}
	q := ex.Rebind(`SELECT ` + purchaseColumns + ` FROM exam_purchase` + w.String() + ` ORDER BY ` + ord.String())

	purchases := make([]ledger.Purchase, 0)
	if err := ex.SelectContext(ctx, &purchases, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting purchases")
	}
	return purchases, nil
}

// IncrementUsed is guarded in SQL, so that two assignments can never take the last license together.
func (repo *ledgerRepository) IncrementUsed(ctx context.Context, id string) (ledger.Purchase, error) {
	if !validID(id) {
		return ledger.Purchase{}, ledger.ErrNotFound
	}
	ex := executor(ctx, repo.db)
	var p ledger.Purchase
	q := `UPDATE exam_purchase SET used_quantity = used_quantity + 1, updated_at = $2
		WHERE id = $1 AND used_quantity < quantity
		RETURNING ` + purchaseColumns
	err := ex.GetContext(ctx, &p, q, id, core.NowFunc())
	if isNoRows(err) {
		found, err := exists(ctx, ex, "exam_purchase", id)
		if err != nil {
			return ledger.Purchase{}, err
		}
		if !found {
			return ledger.Purchase{}, ledger.ErrNotFound
		}
		return ledger.Purchase{}, ledger.ErrNoRemainingQuantity
	}
	return p, errors.Wrap(err, "incrementing used quantity")
}

func (repo *ledgerRepository) RecordPayment(ctx context.Context, pp ledger.ProcessedPayment) (bool, error) {
	q := `INSERT INTO processed_payment (payment_id, purchase_id, processed_at)
		VALUES (:payment_id, :purchase_id, :processed_at)
		ON CONFLICT (payment_id) DO NOTHING`
	res, err := executor(ctx, repo.db).NamedExecContext(ctx, q, pp)
	if err != nil {
		return false, errors.Wrap(err, "inserting processed payment")
	}
	n, err := affected(res)
	return n == 1, err
}

func (repo *ledgerRepository) GetProcessedPayment(ctx context.Context, paymentID string) (ledger.ProcessedPayment, error) {
	var pp ledger.ProcessedPayment
	q := `SELECT payment_id, purchase_id, processed_at FROM processed_payment WHERE payment_id = $1`
	err := executor(ctx, repo.db).GetContext(ctx, &pp, q, paymentID)
	if isNoRows(err) {
		return ledger.ProcessedPayment{}, ledger.ErrPaymentNotFound
	}
	return pp, errors.Wrap(err, "selecting processed payment")
}
