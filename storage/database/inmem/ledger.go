package inmemdb

import (
	"context"

	"github.com/trezcool/examportal/core"
	"github.com/trezcool/examportal/core/ledger"
)

type ledgerRepository struct {
	db *DB
}

var _ ledger.Repository = (*ledgerRepository)(nil) // interface compliance check

func NewLedgerRepository(db *DB) *ledgerRepository {
	return &ledgerRepository{db: db}
}

func (repo *ledgerRepository) find(academyID, examID string) (ledger.Purchase, bool) {
	for _, p := range repo.db.t.purchases {
		if p.AcademyID == academyID && p.ExamID == examID {
			return p, true
		}
	}
	return ledger.Purchase{}, false
}

func (repo *ledgerRepository) AddPurchase(ctx context.Context, p ledger.Purchase) (ledger.Purchase, error) {
	defer repo.db.write(ctx)()

	if existing, ok := repo.find(p.AcademyID, p.ExamID); ok {
		existing.Quantity += p.Quantity
		existing.TotalPrice += p.TotalPrice
		existing.UpdatedAt = p.UpdatedAt
		repo.db.t.purchases[existing.ID] = existing
		return existing, nil
	}

	p.ID = repo.db.newID()
	p.UsedQuantity = 0
	repo.db.t.purchases[p.ID] = p
	return p, nil
}

func (repo *ledgerRepository) GetPurchase(_ context.Context, id string) (ledger.Purchase, error) {
	defer repo.db.read()()

	if p, ok := repo.db.t.purchases[id]; ok {
		return p, nil
	}
	return ledger.Purchase{}, ledger.ErrNotFound
}

func (repo *ledgerRepository) FindPurchase(_ context.Context, academyID, examID string) (ledger.Purchase, error) {
	defer repo.db.read()()

	if p, ok := repo.find(academyID, examID); ok {
		return p, nil
	}
	return ledger.Purchase{}, ledger.ErrNotFound
}

func (repo *ledgerRepository) QueryPurchases(_ context.Context, academyID string) ([]ledger.Purchase, error) {
	defer repo.db.read()()

	ids := make([]string, 0, len(repo.db.t.purchases))
	for id, p := range repo.db.t.purchases {
		if academyID == "" || p.AcademyID == academyID {
			ids = append(ids, id)
		}
	}
	repo.db.sortByOrder(ids, true /* desc */)

	purchases := make([]ledger.Purchase, 0, len(ids))
	for _, id := range ids {
		purchases = append(purchases, repo.db.t.purchases[id])
	}
	return purchases, nil
}

func (repo *ledgerRepository) IncrementUsed(ctx context.Context, id string) (ledger.Purchase, error) {
	defer repo.db.write(ctx)()

	p, ok := repo.db.t.purchases[id]
	if !ok {
		return ledger.Purchase{}, ledger.ErrNotFound
	}
	if p.UsedQuantity >= p.Quantity {
		return ledger.Purchase{}, ledger.ErrNoRemainingQuantity
	}
	p.UsedQuantity++
	p.UpdatedAt = core.NowFunc()
	repo.db.t.purchases[id] = p
	return p, nil
}

func (repo *ledgerRepository) RecordPayment(ctx context.Context, pp ledger.ProcessedPayment) (bool, error) {
	defer repo.db.write(ctx)()

	if _, ok := repo.db.t.payments[pp.PaymentID]; ok {
		return false, nil
	}
	repo.db.t.payments[pp.PaymentID] = pp
	return true, nil
}

func (repo *ledgerRepository) GetProcessedPayment(_ context.Context, paymentID string) (ledger.ProcessedPayment, error) {
	defer repo.db.read()()

	if pp, ok := repo.db.t.payments[paymentID]; ok {
		return pp, nil
	}
	return ledger.ProcessedPayment{}, ledger.ErrPaymentNotFound
}
