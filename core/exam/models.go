package exam

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/examportal/core"
)

type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusPublished Status = "PUBLISHED"
)

// CanTransitionTo reports whether an exam may move from s to next. Publishing is final.
func (s Status) CanTransitionTo(next Status) bool {
	return s == StatusDraft && next == StatusPublished
}

type QuestionType string

const (
	TypeMultipleChoice QuestionType = "MULTIPLE_CHOICE"
	TypeTrueFalse      QuestionType = "TRUE_FALSE"
	TypeShortAnswer    QuestionType = "SHORT_ANSWER"
)

// IsChoice reports whether questions of type t are answered by selecting an option.
func (t QuestionType) IsChoice() bool {
	return t == TypeMultipleChoice || t == TypeTrueFalse
}

// Exam is the definition of an exam. It is frozen once published, except for super admins.
type Exam struct {
	ID                    string      `db:"id" json:"id"`
	AcademyID             string      `db:"academy_id" json:"academy_id"`
	Title                 string      `db:"title" json:"title"`
	Description           string      `db:"description" json:"description"`
	DurationMinutes       int         `db:"duration_minutes" json:"duration_minutes"`
	PassingScore          int         `db:"passing_score" json:"passing_score"` // percentage
	Price                 int64       `db:"price" json:"price"`                 // cents
	Status                Status      `db:"status" json:"status"`
	ScheduledAt           null.Time   `db:"scheduled_at" json:"scheduled_at"`
	CertificateTemplateID null.String `db:"certificate_template_id" json:"certificate_template_id"`
	ManualReview          bool        `db:"manual_review" json:"manual_review"`
	CreatedAt             time.Time   `db:"created_at" json:"created_at"` // UTC
	UpdatedAt             time.Time   `db:"updated_at" json:"updated_at"` // UTC
}

func (e Exam) IsPublished() bool { return e.Status == StatusPublished }

func (e Exam) Duration() time.Duration {
	return time.Duration(e.DurationMinutes) * time.Minute
}

// IsPurchasable reports whether other academies may buy licenses for e.
func (e Exam) IsPurchasable() bool {
	return e.IsPublished() && e.Price > 0
}

type Option struct {
	ID         string `db:"id" json:"id"`
	QuestionID string `db:"question_id" json:"question_id"`
	Text       string `db:"text" json:"text"`
	IsCorrect  bool   `db:"is_correct" json:"is_correct"`
	Position   int    `db:"position" json:"position"`
}

type Question struct {
	ID       string       `db:"id" json:"id"`
	ExamID   string       `db:"exam_id" json:"exam_id"`
	Text     string       `db:"text" json:"text"`
	Type     QuestionType `db:"type" json:"type"`
	Points   int          `db:"points" json:"points"`
	Position int          `db:"position" json:"position"`
	Options  []Option     `db:"-" json:"options"`
}

// Option returns the option of q with the given id.
func (q Question) Option(id string) (Option, bool) {
	for _, opt := range q.Options {
		if opt.ID == id {
			return opt, true
		}
	}
	return Option{}, false
}

// PublicOption is an Option without its answer key.
type PublicOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// PublicQuestion is what a student sees of a Question.
type PublicQuestion struct {
	ID      string         `json:"id"`
	Text    string         `json:"text"`
	Type    QuestionType   `json:"type"`
	Points  int            `json:"points"`
	Options []PublicOption `json:"options"`
}

// StudentView strips the answer key from questions.
func StudentView(questions []Question) []PublicQuestion {
	view := make([]PublicQuestion, 0, len(questions))
	for _, q := range questions {
		opts := make([]PublicOption, 0, len(q.Options))
		for _, opt := range q.Options {
			opts = append(opts, PublicOption{ID: opt.ID, Text: opt.Text})
		}
		view = append(view, PublicQuestion{ID: q.ID, Text: q.Text, Type: q.Type, Points: q.Points, Options: opts})
	}
	return view
}

// NewExam contains information needed to create a new Exam.
type NewExam struct {
	AcademyID             string      `json:"academy_id"` // super admins only
	Title                 string      `json:"title" validate:"notblank,max=255"`
	Description           string      `json:"description"`
	DurationMinutes       int         `json:"duration_minutes" validate:"min=5"`
	PassingScore          int         `json:"passing_score" validate:"min=1,max=100"`
	Price                 int64       `json:"price" validate:"min=0"`
	ScheduledAt           null.Time   `json:"scheduled_at"`
	CertificateTemplateID null.String `json:"certificate_template_id"`
	ManualReview          bool        `json:"manual_review"`
}

func (ne *NewExam) Clean() {
	ne.AcademyID = core.CleanString(ne.AcademyID)
	ne.Title = core.CleanString(ne.Title)
	ne.Description = core.CleanString(ne.Description)
}

// UpdateExam defines what information may be provided to modify an existing Exam.
// Zero values keep the current value.
type UpdateExam struct {
	Title                 string      `json:"title" validate:"notblank,max=255"`
	Description           *string     `json:"description"`
	DurationMinutes       int         `json:"duration_minutes" validate:"min=5"`
	PassingScore          int         `json:"passing_score" validate:"min=1,max=100"`
	Price                 *int64      `json:"price" validate:"omitempty,min=0"`
	ScheduledAt           null.Time   `json:"scheduled_at"`
	CertificateTemplateID null.String `json:"certificate_template_id"`
	ManualReview          *bool       `json:"manual_review"`
}

// merge fills the blanks of uu from orig.
func (uu *UpdateExam) merge(orig Exam) {
	if title := core.CleanString(uu.Title); title != "" {
		uu.Title = title
	} else {
		uu.Title = orig.Title
	}
	if uu.DurationMinutes == 0 {
		uu.DurationMinutes = orig.DurationMinutes
	}
	if uu.PassingScore == 0 {
		uu.PassingScore = orig.PassingScore
	}
	if !uu.ScheduledAt.Valid {
		uu.ScheduledAt = orig.ScheduledAt
	}
	if !uu.CertificateTemplateID.Valid {
		uu.CertificateTemplateID = orig.CertificateTemplateID
	}
}

func (uu UpdateExam) apply(e Exam) Exam {
	e.Title = uu.Title
	if uu.Description != nil {
		e.Description = core.CleanString(*uu.Description)
	}
	e.DurationMinutes = uu.DurationMinutes
	e.PassingScore = uu.PassingScore
	if uu.Price != nil {
		e.Price = *uu.Price
	}
	e.ScheduledAt = uu.ScheduledAt
	e.CertificateTemplateID = uu.CertificateTemplateID
	if uu.ManualReview != nil {
		e.ManualReview = *uu.ManualReview
	}
	return e
}

type NewOption struct {
	Text      string `json:"text" validate:"notblank"`
	IsCorrect bool   `json:"is_correct"`
}

// NewQuestion is validated at struct level against the option rules of its type.
type NewQuestion struct {
	Text    string       `json:"text" validate:"notblank"`
	Type    QuestionType `json:"type" validate:"required,oneof=MULTIPLE_CHOICE TRUE_FALSE SHORT_ANSWER"`
	Points  int          `json:"points" validate:"min=1"`
	Options []NewOption  `json:"options" validate:"dive"`
}

func (nq *NewQuestion) Clean() {
	nq.Text = core.CleanString(nq.Text)
	nq.Type = QuestionType(core.CleanString(string(nq.Type)))
	for i := range nq.Options {
		nq.Options[i].Text = core.CleanString(nq.Options[i].Text)
	}
}

type QueryFilter struct {
	Search    string `query:"search"`
	Status    Status `query:"status"`
	AcademyID string `query:"academy_id"`

	// set by the service from the acting user
	PublishedOnly bool              `query:"-"`
	DraftsOf      string            `query:"-"` // academy whose drafts stay visible when PublishedOnly
	Ordering      []core.DBOrdering `query:"-"`
}

// OrderingFields are the fields exams may be ordered by.
var OrderingFields = map[string]bool{"title": true, "price": true, "duration_minutes": true, "created_at": true}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.AcademyID = core.CleanString(qf.AcademyID)

	ordering := qf.Ordering[:0]
	for _, ord := range qf.Ordering {
		if OrderingFields[ord.Field] {
			ordering = append(ordering, ord)
		}
	}
	qf.Ordering = ordering
}

// Visible reports whether e passes the visibility part of qf.
func (qf QueryFilter) Visible(e Exam) bool {
	if !qf.PublishedOnly || e.IsPublished() {
		return true
	}
	return qf.DraftsOf != "" && e.AcademyID == qf.DraftsOf
}
