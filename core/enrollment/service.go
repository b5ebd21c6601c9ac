package enrollment

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/examportal/core"
	"github.com/trezcool/examportal/core/exam"
	"github.com/trezcool/examportal/core/ledger"
	"github.com/trezcool/examportal/core/user"
)

var (
	// errors
	ErrNotFound         = core.NewNotFoundError("enrollment")
	ErrAlreadyEnrolled  = core.NewRuleError("already_enrolled", "the student is already enrolled in this exam")
	ErrExamNotPublished = core.NewRuleError("exam_not_published", "the exam is not published")
	ErrSessionExpired   = core.NewRuleError("session_expired", "the time allowed for this exam is over")
)

type (
	Repository interface {
		// CreateEnrollment fails with ErrAlreadyEnrolled if the (student, exam) pair exists.
		CreateEnrollment(ctx context.Context, e Enrollment) (Enrollment, error)
		GetEnrollment(ctx context.Context, id string) (Enrollment, error)
		QueryEnrollments(ctx context.Context, filter QueryFilter) ([]Enrollment, error)
		// UpdateEnrollment persists e only if the stored status is still `from`,
		// failing with core.ErrInvalidStateTransition otherwise.
		UpdateEnrollment(ctx context.Context, e Enrollment, from Status) (Enrollment, error)
		// DeleteEnrollment removes the enrollment only if the stored status is still `status`.
		DeleteEnrollment(ctx context.Context, id string, status Status) error
		// QueryExpired returns STARTED enrollments whose deadline is before `before`.
		QueryExpired(ctx context.Context, before time.Time) ([]Enrollment, error)

		// UpsertAttempt creates or overwrites the attempt of (enrollment, question) while the
		// enrollment is in the given status, failing with core.ErrInvalidStateTransition otherwise.
		UpsertAttempt(ctx context.Context, a Attempt, status Status) (Attempt, error)
		QueryAttempts(ctx context.Context, enrollmentID string) ([]Attempt, error)
	}

	Service struct {
		repo     Repository
		exams    exam.Repository
		ledger   *ledger.Service
		tx       core.Transactor
		validate *validator.Validate
		grace    time.Duration
	}
)

func NewService(
	repo Repository,
	exams exam.Repository,
	ledgerSvc *ledger.Service,
	tx core.Transactor,
	validate *validator.Validate,
	conf *core.Config,
) *Service {
	return &Service{
		repo:     repo,
		exams:    exams,
		ledger:   ledgerSvc,
		tx:       tx,
		validate: validate,
		grace:    conf.Exam.SubmitGrace,
	}
}

// Enroll registers a student for an exam. Students enroll themselves; academies and super
// admins assign a student. An academy assigning an exam it does not own consumes one license.
func (svc *Service) Enroll(ctx context.Context, actor user.User, ne NewEnrollment) (Enrollment, error) {
	ne.Clean()
	if err := svc.validate.Struct(ne); err != nil {
		return Enrollment{}, err
	}
	if actor.IsStudent() {
		if ne.StudentID != "" && ne.StudentID != actor.ID {
			return Enrollment{}, core.ErrForbidden
		}
		ne.StudentID = actor.ID
	} else if !(actor.IsAcademy() || actor.IsAdmin()) {
		return Enrollment{}, core.ErrForbidden
	} else if ne.StudentID == "" {
		return Enrollment{}, core.NewValidationError(nil, core.FieldError{Field: "student_id", Error: "this field is required"})
	}

	ex, err := svc.exams.GetExam(ctx, ne.ExamID)
	if err != nil {
		return Enrollment{}, err
	}
	if !ex.IsPublished() {
		return Enrollment{}, ErrExamNotPublished
	}

	now := core.NowFunc()
	enr := Enrollment{
		StudentID: ne.StudentID,
		ExamID:    ex.ID,
		Status:    StatusPurchased,
		CreatedAt: now,
		UpdatedAt: now,
	}
	switch {
	case actor.IsStudent():
		return svc.repo.CreateEnrollment(ctx, enr)
	case actor.IsAdmin():
		enr.IsAssigned = true
		enr.AssignedBy = null.StringFrom(actor.ID)
		return svc.repo.CreateEnrollment(ctx, enr)
	}

	enr.IsAssigned = true
	enr.AssignedBy = null.StringFrom(actor.AcademyID)
	if ex.AcademyID == actor.AcademyID {
		return svc.repo.CreateEnrollment(ctx, enr)
	}

	// the license and the enrollment stand or fall together
	err = svc.tx.InTx(ctx, func(ctx context.Context) error {
		av, err := svc.ledger.CanAssign(ctx, actor.AcademyID, ex.ID)
		if err != nil {
			return errors.Wrap(err, "checking licenses")
		}
		if !av.CanAssign {
			return ledger.ErrNoRemainingQuantity
		}
		p, err := svc.ledger.IncrementUsed(ctx, av.Purchase.ID)
		if err != nil {
			return err
		}
		enr.PurchaseID = null.StringFrom(p.ID)
		enr, err = svc.repo.CreateEnrollment(ctx, enr)
		return err
	})
	if err != nil {
		return Enrollment{}, err
	}
	return enr, nil
}

// Start opens the timed session of the acting student.
func (svc *Service) Start(ctx context.Context, enrollmentID, actingStudentID string) (Enrollment, error) {
	enr, err := svc.repo.GetEnrollment(ctx, enrollmentID)
	if err != nil {
		return Enrollment{}, err
	}
	if enr.StudentID != actingStudentID {
		return Enrollment{}, core.ErrForbidden
	}
	if !enr.Status.CanTransitionTo(StatusStarted) {
		return Enrollment{}, core.ErrInvalidStateTransition
	}
	ex, err := svc.exams.GetExam(ctx, enr.ExamID)
	if err != nil {
		return Enrollment{}, errors.Wrap(err, "getting exam")
	}

	now := core.NowFunc()
	from := enr.Status
	enr.Status = StatusStarted
	enr.StartedAt = null.TimeFrom(now)
	enr.Deadline = null.TimeFrom(now.Add(ex.Duration()))
	enr.UpdatedAt = now
	return svc.repo.UpdateEnrollment(ctx, enr, from)
}

// RecordAnswer saves the answer of the acting student to one question. Last write wins.
func (svc *Service) RecordAnswer(ctx context.Context, actingStudentID, enrollmentID string, in AnswerInput) (Attempt, error) {
	if err := svc.validate.Struct(in); err != nil {
		return Attempt{}, err
	}
	enr, err := svc.repo.GetEnrollment(ctx, enrollmentID)
	if err != nil {
		return Attempt{}, err
	}
	if enr.StudentID != actingStudentID {
		return Attempt{}, core.ErrForbidden
	}
	if enr.Status != StatusStarted {
		return Attempt{}, core.ErrInvalidStateTransition
	}
	now := core.NowFunc()
	if enr.Expired(now, svc.grace) {
		return Attempt{}, ErrSessionExpired
	}

	questions, err := svc.exams.QueryQuestions(ctx, enr.ExamID)
	if err != nil {
		return Attempt{}, errors.Wrap(err, "querying questions")
	}
	if _, err = MatchAnswer(questions, in); err != nil {
		return Attempt{}, err
	}
	return svc.repo.UpsertAttempt(ctx, NewAttempt(enr.ID, in, now), StatusStarted)
}

// Session returns the running session of the acting student.
func (svc *Service) Session(ctx context.Context, actingStudentID, enrollmentID string) (Session, error) {
	enr, err := svc.repo.GetEnrollment(ctx, enrollmentID)
	if err != nil {
		return Session{}, err
	}
	if enr.StudentID != actingStudentID {
		return Session{}, core.ErrForbidden
	}
	if enr.Status == StatusPurchased {
		return Session{}, core.ErrInvalidStateTransition
	}

	questions, err := svc.exams.QueryQuestions(ctx, enr.ExamID)
	if err != nil {
		return Session{}, errors.Wrap(err, "querying questions")
	}
	answers, err := svc.repo.QueryAttempts(ctx, enr.ID)
	if err != nil {
		return Session{}, errors.Wrap(err, "querying attempts")
	}
	return Session{
		Enrollment:       enr,
		RemainingSeconds: int64(enr.Remaining(core.NowFunc()) / time.Second),
		Questions:        exam.StudentView(questions),
		Answers:          answers,
	}, nil
}

// canManage reports whether actor may see or remove enr.
func (svc *Service) canManage(ctx context.Context, actor user.User, enr Enrollment) (bool, error) {
	switch {
	case actor.IsAdmin(), actor.ID == enr.StudentID:
		return true, nil
	case !actor.IsAcademy():
		return false, nil
	case enr.AssignedBy.Valid && enr.AssignedBy.String == actor.AcademyID:
		return true, nil
	}
	ex, err := svc.exams.GetExam(ctx, enr.ExamID)
	if err != nil {
		return false, errors.Wrap(err, "getting exam")
	}
	return ex.AcademyID == actor.AcademyID, nil
}

func (svc *Service) Get(ctx context.Context, actor user.User, id string) (Enrollment, error) {
	enr, err := svc.repo.GetEnrollment(ctx, id)
	if err != nil {
		return Enrollment{}, err
	}
	ok, err := svc.canManage(ctx, actor, enr)
	if err != nil {
		return Enrollment{}, err
	}
	if !ok {
		return Enrollment{}, core.ErrForbidden
	}
	return enr, nil
}

func (svc *Service) Query(ctx context.Context, actor user.User, filter QueryFilter) ([]Enrollment, error) {
	switch {
	case actor.IsAdmin():
	case actor.IsAcademy():
		filter.AcademyID = actor.AcademyID
	default:
		filter.StudentID = actor.ID
	}
	return svc.repo.QueryEnrollments(ctx, filter)
}

// Remove deletes an enrollment that has not been started. Consumed licenses are not refunded.
func (svc *Service) Remove(ctx context.Context, actor user.User, id string) error {
	enr, err := svc.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	if enr.Status != StatusPurchased {
		return core.ErrInvalidStateTransition
	}
	return svc.repo.DeleteEnrollment(ctx, enr.ID, StatusPurchased)
}

// Results lists the enrollments of an exam for its academy.
func (svc *Service) Results(ctx context.Context, actor user.User, examID string) (exam.Exam, []Enrollment, error) {
	ex, err := svc.exams.GetExam(ctx, examID)
	if err != nil {
		return exam.Exam{}, nil, err
	}
	if !actor.ActsFor(ex.AcademyID) {
		return exam.Exam{}, nil, core.ErrForbidden
	}
	enrs, err := svc.repo.QueryEnrollments(ctx, QueryFilter{ExamID: ex.ID})
	if err != nil {
		return exam.Exam{}, nil, errors.Wrap(err, "querying enrollments")
	}
	return ex, enrs, nil
}
