package enrollment

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/examportal/core"
	"github.com/trezcool/examportal/core/exam"
)

type Status string

const (
	StatusPurchased     Status = "PURCHASED"
	StatusStarted       Status = "STARTED"
	StatusPendingReview Status = "PENDING_REVIEW"
	StatusPassed        Status = "PASSED"
	StatusFailed        Status = "FAILED"
)

// transitions lists, per status, the statuses it may move to. Nothing moves backward.
var transitions = map[Status][]Status{
	StatusPurchased:     {StatusStarted},
	StatusStarted:       {StatusPendingReview, StatusPassed, StatusFailed},
	StatusPendingReview: {StatusPassed, StatusFailed},
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, st := range transitions[s] {
		if st == next {
			return true
		}
	}
	return false
}

func (s Status) IsTerminal() bool {
	return s == StatusPassed || s == StatusFailed
}

// Enrollment is the record of one student taking one exam.
type Enrollment struct {
	ID            string      `db:"id" json:"id"`
	StudentID     string      `db:"student_id" json:"student_id"`
	ExamID        string      `db:"exam_id" json:"exam_id"`
	Status        Status      `db:"status" json:"status"`
	IsAssigned    bool        `db:"is_assigned" json:"is_assigned"`
	AssignedBy    null.String `db:"assigned_by" json:"assigned_by"`
	PurchaseID    null.String `db:"purchase_id" json:"purchase_id"` // ledger entry charged for the assignment
	StartedAt     null.Time   `db:"started_at" json:"started_at"`
	Deadline      null.Time   `db:"deadline" json:"deadline"`
	CompletedAt   null.Time   `db:"completed_at" json:"completed_at"`
	Score         null.Int    `db:"score" json:"score"`
	CertificateID null.String `db:"certificate_id" json:"certificate_id"`
	CreatedAt     time.Time   `db:"created_at" json:"created_at"` // UTC
	UpdatedAt     time.Time   `db:"updated_at" json:"updated_at"` // UTC
}

// Remaining is the time left before the deadline, as seen by the server.
func (e Enrollment) Remaining(now time.Time) time.Duration {
	if e.Status != StatusStarted || !e.Deadline.Valid {
		return 0
	}
	if left := e.Deadline.Time.Sub(now); left > 0 {
		return left
	}
	return 0
}

// Expired reports whether answers are no longer accepted at now.
func (e Enrollment) Expired(now time.Time, grace time.Duration) bool {
	return e.Deadline.Valid && now.After(e.Deadline.Time.Add(grace))
}

// Attempt is the answer of an enrollment to one question.
type Attempt struct {
	ID               string      `db:"id" json:"id"`
	EnrollmentID     string      `db:"enrollment_id" json:"enrollment_id"`
	QuestionID       string      `db:"question_id" json:"question_id"`
	SelectedOptionID null.String `db:"selected_option_id" json:"selected_option_id"`
	TextAnswer       null.String `db:"text_answer" json:"text_answer"`
	IsCorrect        null.Bool   `db:"is_correct" json:"is_correct"` // null until graded
	AnsweredAt       time.Time   `db:"answered_at" json:"answered_at"`
}

// Session is what a student needs to resume an exam in progress.
type Session struct {
	Enrollment       Enrollment            `json:"enrollment"`
	RemainingSeconds int64                 `json:"remaining_seconds"`
	Questions        []exam.PublicQuestion `json:"questions"`
	Answers          []Attempt             `json:"answers"`
}

// NewEnrollment is either a self-enrollment (no StudentID) or an assignment.
type NewEnrollment struct {
	ExamID    string `json:"exam_id" validate:"required"`
	StudentID string `json:"student_id"`
}

func (ne *NewEnrollment) Clean() {
	ne.ExamID = core.CleanString(ne.ExamID)
	ne.StudentID = core.CleanString(ne.StudentID)
}

// AnswerInput carries exactly one of SelectedOptionID or TextAnswer.
type AnswerInput struct {
	QuestionID       string      `json:"question_id" validate:"required"`
	SelectedOptionID null.String `json:"selected_option_id"`
	TextAnswer       null.String `json:"text_answer"`
}

type QueryFilter struct {
	ExamID string `query:"exam_id"`
	Status Status `query:"status"`

	// set by the service from the acting user
	StudentID string `query:"-"`
	AcademyID string `query:"-"` // exams owned by, or assigned by, this academy
}
