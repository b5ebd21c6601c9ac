package ledger

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/examportal/core"
	"github.com/trezcool/examportal/core/exam"
)

var (
	// errors
	ErrNotFound            = core.NewNotFoundError("exam purchase")
	ErrPaymentNotFound     = core.NewNotFoundError("payment")
	ErrInvalidQuantity     = core.NewRuleError("invalid_quantity", "quantity must be at least 1")
	ErrExamNotPurchasable  = core.NewRuleError("exam_not_purchasable", "only published exams with a price can be purchased")
	ErrNoRemainingQuantity = core.NewRuleError("no_remaining_quantity", "no licenses remaining for this exam")

	errPaymentRace = errors.New("payment processed concurrently")
)

type (
	Repository interface {
		// AddPurchase inserts p, or adds p.Quantity and p.TotalPrice to the existing entry of
		// the same (academy, exam) pair.
		AddPurchase(ctx context.Context, p Purchase) (Purchase, error)
		GetPurchase(ctx context.Context, id string) (Purchase, error)
		FindPurchase(ctx context.Context, academyID, examID string) (Purchase, error)
		QueryPurchases(ctx context.Context, academyID string) ([]Purchase, error)
		// IncrementUsed adds one to the used quantity only while it is below the quantity.
		IncrementUsed(ctx context.Context, id string) (Purchase, error)

		// RecordPayment stores pp unless its payment id is already known.
		RecordPayment(ctx context.Context, pp ProcessedPayment) (created bool, err error)
		GetProcessedPayment(ctx context.Context, paymentID string) (ProcessedPayment, error)
	}

	Service struct {
		repo     Repository
		exams    exam.Repository
		tx       core.Transactor
		validate *validator.Validate
	}
)

func NewService(repo Repository, exams exam.Repository, tx core.Transactor, validate *validator.Validate) *Service {
	return &Service{repo: repo, exams: exams, tx: tx, validate: validate}
}

// Purchase buys quantity licenses of an exam for an academy. Repeat purchases accumulate.
func (svc *Service) Purchase(ctx context.Context, academyID, examID string, quantity int) (Purchase, error) {
	if quantity < 1 {
		return Purchase{}, ErrInvalidQuantity
	}
	e, err := svc.exams.GetExam(ctx, examID)
	if err != nil {
		return Purchase{}, err
	}
	if !e.IsPurchasable() {
		return Purchase{}, ErrExamNotPurchasable
	}

	now := core.NowFunc()
	p, err := svc.repo.AddPurchase(ctx, Purchase{
		AcademyID:  academyID,
		ExamID:     e.ID,
		Quantity:   quantity,
		TotalPrice: int64(quantity) * e.Price,
		Status:     StatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	return p, errors.Wrap(err, "adding purchase")
}

func (svc *Service) CanAssign(ctx context.Context, academyID, examID string) (Availability, error) {
	p, err := svc.repo.FindPurchase(ctx, academyID, examID)
	if err != nil {
		if core.IsNotFound(err) {
			return Availability{}, nil
		}
		return Availability{}, errors.Wrap(err, "finding purchase")
	}
	remaining := p.Remaining()
	return Availability{CanAssign: remaining > 0, Remaining: remaining, Purchase: &p}, nil
}

// IncrementUsed consumes one license of the purchase.
func (svc *Service) IncrementUsed(ctx context.Context, purchaseID string) (Purchase, error) {
	return svc.repo.IncrementUsed(ctx, purchaseID)
}

// Order validates np and purchases it for academyID.
func (svc *Service) Order(ctx context.Context, academyID string, np NewPurchase) (Purchase, error) {
	np.Clean()
	if err := svc.validate.Struct(np); err != nil {
		return Purchase{}, err
	}
	return svc.Purchase(ctx, academyID, np.ExamID, np.Quantity)
}

// UseLicense increments the used quantity of a purchase owned by academyID.
// Purchases of other academies are not found.
func (svc *Service) UseLicense(ctx context.Context, academyID string, lu LicenseUse) (Purchase, error) {
	lu.Clean()
	if err := svc.validate.Struct(lu); err != nil {
		return Purchase{}, err
	}
	p, err := svc.repo.GetPurchase(ctx, lu.PurchaseID)
	if err != nil {
		return Purchase{}, err
	}
	if p.AcademyID != academyID {
		return Purchase{}, ErrNotFound
	}
	return svc.repo.IncrementUsed(ctx, p.ID)
}

func (svc *Service) Get(ctx context.Context, id string) (Purchase, error) {
	return svc.repo.GetPurchase(ctx, id)
}

func (svc *Service) Query(ctx context.Context, academyID string) ([]Purchase, error) {
	return svc.repo.QueryPurchases(ctx, academyID)
}

// ConsumePayment applies a payment confirmation once. applied is false when the payment had
// already been processed, in which case the current purchase is returned unchanged.
func (svc *Service) ConsumePayment(ctx context.Context, pc PaymentConfirmation) (p Purchase, applied bool, err error) {
	pc.Clean()
	if err = svc.validate.Struct(pc); err != nil {
		return Purchase{}, false, err
	}

	err = svc.tx.InTx(ctx, func(ctx context.Context) error {
		pp, err := svc.repo.GetProcessedPayment(ctx, pc.PaymentID)
		if err == nil {
			p, err = svc.repo.GetPurchase(ctx, pp.PurchaseID)
			return err
		} else if !core.IsNotFound(err) {
			return errors.Wrap(err, "getting processed payment")
		}

		if p, err = svc.Purchase(ctx, pc.AcademyID, pc.ExamID, pc.Quantity); err != nil {
			return err
		}
		created, err := svc.repo.RecordPayment(ctx, ProcessedPayment{
			PaymentID:   pc.PaymentID,
			PurchaseID:  p.ID,
			ProcessedAt: core.NowFunc(),
		})
		if err != nil {
			return errors.Wrap(err, "recording payment")
		}
		if !created {
			return errPaymentRace
		}
		applied = true
		return nil
	})

	if errors.Cause(err) == errPaymentRace {
		pp, err := svc.repo.GetProcessedPayment(ctx, pc.PaymentID)
		if err != nil {
			return Purchase{}, false, errors.Wrap(err, "getting processed payment")
		}
		p, err = svc.repo.GetPurchase(ctx, pp.PurchaseID)
		return p, false, err
	}
	if err != nil {
		return Purchase{}, false, err
	}
	return p, applied, nil
}
