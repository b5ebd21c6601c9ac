package ledger

import (
	"time"

	"github.com/trezcool/examportal/core"
)

type Status string

const StatusActive Status = "ACTIVE"

// Purchase is the entitlement ledger entry of an academy for an exam.
// 0 <= UsedQuantity <= Quantity always holds.
type Purchase struct {
	ID           string    `db:"id" json:"id"`
	AcademyID    string    `db:"academy_id" json:"academy_id"`
	ExamID       string    `db:"exam_id" json:"exam_id"`
	Quantity     int       `db:"quantity" json:"quantity"`
	UsedQuantity int       `db:"used_quantity" json:"used_quantity"`
	TotalPrice   int64     `db:"total_price" json:"total_price"` // cents
	Status       Status    `db:"status" json:"status"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"` // UTC
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"` // UTC
}

func (p Purchase) Remaining() int {
	return p.Quantity - p.UsedQuantity
}

// Availability answers whether an academy can assign one more student to an exam.
type Availability struct {
	CanAssign bool      `json:"can_assign"`
	Remaining int       `json:"remaining_quantity"`
	Purchase  *Purchase `json:"purchase"`
}

// NewPurchase is an academy's order of licenses for an exam.
type NewPurchase struct {
	ExamID   string `json:"exam_id" validate:"required"`
	Quantity int    `json:"quantity"`
}

func (np *NewPurchase) Clean() {
	np.ExamID = core.CleanString(np.ExamID)
}

// LicenseUse takes one license from a purchase.
type LicenseUse struct {
	PurchaseID string `json:"purchase_id" validate:"required"`
}

func (lu *LicenseUse) Clean() {
	lu.PurchaseID = core.CleanString(lu.PurchaseID)
}

// PaymentConfirmation is published by the payment processor once a checkout succeeds.
type PaymentConfirmation struct {
	ExamID    string `json:"exam_id" validate:"required"`
	AcademyID string `json:"academy_id" validate:"required"`
	Quantity  int    `json:"quantity"`
	PaymentID string `json:"payment_id" validate:"required"`
}

func (pc *PaymentConfirmation) Clean() {
	pc.ExamID = core.CleanString(pc.ExamID)
	pc.AcademyID = core.CleanString(pc.AcademyID)
	pc.PaymentID = core.CleanString(pc.PaymentID)
}

type ProcessedPayment struct {
	PaymentID   string    `db:"payment_id" json:"payment_id"`
	PurchaseID  string    `db:"purchase_id" json:"purchase_id"`
	ProcessedAt time.Time `db:"processed_at" json:"processed_at"`
}
