package certificate

import (
	"time"

	"github.com/volatiletech/null/v8"
)

type Template struct {
	ID        string `db:"id" json:"id"`
	Name      string `db:"name" json:"name"`
	IsDefault bool   `db:"is_default" json:"is_default"`
}

// Certificate is the award record of a passed enrollment. It is never mutated.
type Certificate struct {
	ID           string      `db:"id" json:"id"`
	Number       string      `db:"certificate_number" json:"certificate_number"`
	EnrollmentID string      `db:"enrollment_id" json:"enrollment_id"`
	StudentID    string      `db:"student_id" json:"student_id"`
	ExamID       string      `db:"exam_id" json:"exam_id"`
	AcademyID    string      `db:"academy_id" json:"academy_id"`
	TemplateID   null.String `db:"template_id" json:"template_id"`
	IssueDate    time.Time   `db:"issue_date" json:"issue_date"` // UTC
}

type IssueRequest struct {
	EnrollmentID string
	StudentID    string
	ExamID       string
	AcademyID    string
	TemplateID   null.String // exam's template, if any
}

// IssuedEmailData feeds the certificate_issued email templates.
type IssuedEmailData struct {
	StudentName       string
	ExamTitle         string
	Score             int
	CertificateNumber string
}
