package exam

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/examportal/core"
	"github.com/trezcool/examportal/core/user"
)

var (
	// errors
	ErrNotFound         = core.NewNotFoundError("exam")
	ErrQuestionNotFound = core.NewNotFoundError("question")
	ErrNotEditable      = core.NewRuleError("exam_not_editable", "a published exam can only be changed by a super admin")
	ErrNoQuestions      = core.NewRuleError("exam_has_no_questions", "an exam needs at least one question to be published")

	errTemplateNotFound = "certificate template not found"
)

type (
	Repository interface {
		CreateExam(ctx context.Context, e Exam) (Exam, error)
		GetExam(ctx context.Context, id string) (Exam, error)
		// QueryExams applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on Exam.Title.
		QueryExams(ctx context.Context, filter QueryFilter) ([]Exam, error)
		UpdateExam(ctx context.Context, e Exam) (Exam, error)
		// SetExamStatus moves the exam to e.Status only if it is still in `from`.
		SetExamStatus(ctx context.Context, e Exam, from Status) (Exam, error)
		CertificateTemplateExists(ctx context.Context, id string) (bool, error)

		// CreateQuestion stores q along with its options.
		CreateQuestion(ctx context.Context, q Question) (Question, error)
		DeleteQuestion(ctx context.Context, examID, questionID string) error
		// QueryQuestions returns the questions of an exam, with their options, ordered by position.
		QueryQuestions(ctx context.Context, examID string) ([]Question, error)
	}

	Service struct {
		repo     Repository
		tx       core.Transactor
		validate *validator.Validate
	}
)

func NewService(repo Repository, tx core.Transactor, validate *validator.Validate) *Service {
	return &Service{repo: repo, tx: tx, validate: validate}
}

func (svc *Service) checkTemplate(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	ok, err := svc.repo.CertificateTemplateExists(ctx, id)
	if err != nil {
		return errors.Wrap(err, "checking certificate template")
	}
	if !ok {
		return core.NewValidationError(nil, core.FieldError{Field: "certificate_template_id", Error: errTemplateNotFound})
	}
	return nil
}

// editable loads an exam the actor may change.
func (svc *Service) editable(ctx context.Context, actor user.User, id string) (Exam, error) {
	e, err := svc.repo.GetExam(ctx, id)
	if err != nil {
		return Exam{}, err
	}
	if !actor.ActsFor(e.AcademyID) {
		return Exam{}, core.ErrForbidden
	}
	if e.IsPublished() && !actor.IsAdmin() {
		return Exam{}, ErrNotEditable
	}
	return e, nil
}

func (svc *Service) Create(ctx context.Context, actor user.User, ne NewExam) (Exam, error) {
	if !(actor.IsAcademy() || actor.IsAdmin()) {
		return Exam{}, core.ErrForbidden
	}
	ne.Clean()
	if actor.IsAcademy() {
		ne.AcademyID = actor.AcademyID
	} else if ne.AcademyID == "" {
		return Exam{}, core.NewValidationError(nil, core.FieldError{Field: "academy_id", Error: "this field is required"})
	}
	if err := svc.validate.Struct(ne); err != nil {
		return Exam{}, err
	}
	if err := svc.checkTemplate(ctx, ne.CertificateTemplateID.String); err != nil {
		return Exam{}, err
	}

	now := core.NowFunc()
	return svc.repo.CreateExam(ctx, Exam{
		AcademyID:             ne.AcademyID,
		Title:                 ne.Title,
		Description:           ne.Description,
		DurationMinutes:       ne.DurationMinutes,
		PassingScore:          ne.PassingScore,
		Price:                 ne.Price,
		Status:                StatusDraft,
		ScheduledAt:           ne.ScheduledAt,
		CertificateTemplateID: ne.CertificateTemplateID,
		ManualReview:          ne.ManualReview,
		CreatedAt:             now,
		UpdatedAt:             now,
	})
}

func (svc *Service) Update(ctx context.Context, actor user.User, id string, uu UpdateExam) (Exam, error) {
	e, err := svc.editable(ctx, actor, id)
	if err != nil {
		return Exam{}, err
	}
	uu.merge(e)
	if err = svc.validate.Struct(uu); err != nil {
		return Exam{}, err
	}
	if uu.CertificateTemplateID.String != e.CertificateTemplateID.String {
		if err = svc.checkTemplate(ctx, uu.CertificateTemplateID.String); err != nil {
			return Exam{}, err
		}
	}

	e = uu.apply(e)
	e.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateExam(ctx, e)
}

func (svc *Service) Publish(ctx context.Context, actor user.User, id string) (Exam, error) {
	e, err := svc.repo.GetExam(ctx, id)
	if err != nil {
		return Exam{}, err
	}
	if !actor.ActsFor(e.AcademyID) {
		return Exam{}, core.ErrForbidden
	}
	if !e.Status.CanTransitionTo(StatusPublished) {
		return Exam{}, core.ErrInvalidStateTransition
	}
	questions, err := svc.repo.QueryQuestions(ctx, e.ID)
	if err != nil {
		return Exam{}, errors.Wrap(err, "querying questions")
	}
	if len(questions) == 0 {
		return Exam{}, ErrNoQuestions
	}

	from := e.Status
	e.Status = StatusPublished
	e.UpdatedAt = core.NowFunc()
	return svc.repo.SetExamStatus(ctx, e, from)
}

func (svc *Service) AddQuestion(ctx context.Context, actor user.User, examID string, nq NewQuestion) (Question, error) {
	nq.Clean()
	if err := svc.validate.Struct(nq); err != nil {
		return Question{}, err
	}

	var q Question
	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		e, err := svc.editable(ctx, actor, examID)
		if err != nil {
			return err
		}
		existing, err := svc.repo.QueryQuestions(ctx, e.ID)
		if err != nil {
			return errors.Wrap(err, "querying questions")
		}

		var position int
		for _, prev := range existing {
			if prev.Position >= position {
				position = prev.Position + 1
			}
		}

		q = Question{
			ExamID:   e.ID,
			Text:     nq.Text,
			Type:     nq.Type,
			Points:   nq.Points,
			Position: position,
			Options:  make([]Option, 0, len(nq.Options)),
		}
		for i, opt := range nq.Options {
			q.Options = append(q.Options, Option{Text: opt.Text, IsCorrect: opt.IsCorrect, Position: i})
		}
		q, err = svc.repo.CreateQuestion(ctx, q)
		return errors.Wrap(err, "creating question")
	})
	return q, err
}

func (svc *Service) DeleteQuestion(ctx context.Context, actor user.User, examID, questionID string) error {
	if _, err := svc.editable(ctx, actor, examID); err != nil {
		return err
	}
	return svc.repo.DeleteQuestion(ctx, examID, questionID)
}

// Get returns an exam. Drafts are only visible to their academy and super admins.
func (svc *Service) Get(ctx context.Context, actor user.User, id string) (Exam, error) {
	e, err := svc.repo.GetExam(ctx, id)
	if err != nil {
		return Exam{}, err
	}
	if !e.IsPublished() && !actor.ActsFor(e.AcademyID) {
		return Exam{}, ErrNotFound
	}
	return e, nil
}

func (svc *Service) Query(ctx context.Context, actor user.User, filter QueryFilter) ([]Exam, error) {
	filter.Clean()
	switch {
	case actor.IsAdmin():
	case actor.IsAcademy():
		filter.PublishedOnly = true
		filter.DraftsOf = actor.AcademyID
	default:
		filter.PublishedOnly = true
	}
	return svc.repo.QueryExams(ctx, filter)
}

// Questions returns the questions of an exam. withKey tells whether the actor may see the answer key.
func (svc *Service) Questions(ctx context.Context, actor user.User, examID string) (questions []Question, withKey bool, err error) {
	e, err := svc.Get(ctx, actor, examID)
	if err != nil {
		return nil, false, err
	}
	questions, err = svc.repo.QueryQuestions(ctx, e.ID)
	if err != nil {
		return nil, false, errors.Wrap(err, "querying questions")
	}
	return questions, actor.ActsFor(e.AcademyID), nil
}
