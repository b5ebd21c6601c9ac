package grading

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/examportal/core"
	"github.com/trezcool/examportal/core/certificate"
	"github.com/trezcool/examportal/core/enrollment"
	"github.com/trezcool/examportal/core/exam"
	"github.com/trezcool/examportal/core/user"
)

var (
	errGradesMissing = "every pending short answer must be graded"
	errNotPending    = "question is not awaiting review"
)

type (
	// Outcome is returned by every operation that completes an enrollment.
	Outcome struct {
		Enrollment  enrollment.Enrollment    `json:"enrollment"`
		Score       int                      `json:"score"`
		Passed      bool                     `json:"passed"`
		Certificate *certificate.Certificate `json:"certificate"`
	}

	SubmitRequest struct {
		Answers []enrollment.AnswerInput `json:"answers" validate:"dive"`
	}

	ReviewGrade struct {
		QuestionID string `json:"question_id" validate:"required"`
		IsCorrect  *bool  `json:"is_correct" validate:"required"`
	}

	ReviewRequest struct {
		Grades []ReviewGrade `json:"grades" validate:"required,min=1,dive"`
	}

	Service struct {
		enrollments enrollment.Repository
		exams       exam.Repository
		certs       *certificate.Service
		tx          core.Transactor
		validate    *validator.Validate
		logger      core.Logger
		grace       time.Duration
	}
)

func NewService(
	enrollments enrollment.Repository,
	exams exam.Repository,
	certs *certificate.Service,
	tx core.Transactor,
	validate *validator.Validate,
	logger core.Logger,
	conf *core.Config,
) *Service {
	return &Service{
		enrollments: enrollments,
		exams:       exams,
		certs:       certs,
		tx:          tx,
		validate:    validate,
		logger:      logger,
		grace:       conf.Exam.SubmitGrace,
	}
}

// Submit grades the running exam of the acting student. Submitted answers override the saved
// ones unless they arrive after the deadline grace, in which case only saved answers count.
// The whole submission is atomic: a concurrent second submit fails with core.ErrInvalidStateTransition.
func (svc *Service) Submit(ctx context.Context, actor user.User, enrollmentID string, answers []enrollment.AnswerInput) (Outcome, error) {
	if err := svc.validate.Struct(SubmitRequest{Answers: answers}); err != nil {
		return Outcome{}, err
	}

	var (
		out Outcome
		ex  exam.Exam
	)
	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		enr, err := svc.enrollments.GetEnrollment(ctx, enrollmentID)
		if err != nil {
			return err
		}
		if enr.StudentID != actor.ID {
			return core.ErrForbidden
		}
		if enr.Status != enrollment.StatusStarted {
			return core.ErrInvalidStateTransition
		}

		now := core.NowFunc()
		if enr.Expired(now, svc.grace) {
			answers = nil
		}
		out, ex, err = svc.finish(ctx, enr, answers, now)
		return err
	})
	if err != nil {
		return Outcome{}, err
	}

	if out.Certificate != nil {
		svc.certs.Notify(actor, certificate.IssuedEmailData{
			ExamTitle:         ex.Title,
			Score:             out.Score,
			CertificateNumber: out.Certificate.Number,
		})
	}
	return out, nil
}

// finish grades a STARTED enrollment and moves it out of STARTED. It must run inside a transaction.
func (svc *Service) finish(ctx context.Context, enr enrollment.Enrollment, answers []enrollment.AnswerInput, now time.Time) (Outcome, exam.Exam, error) {
	ex, err := svc.exams.GetExam(ctx, enr.ExamID)
	if err != nil {
		return Outcome{}, exam.Exam{}, errors.Wrap(err, "getting exam")
	}
	questions, err := svc.exams.QueryQuestions(ctx, ex.ID)
	if err != nil {
		return Outcome{}, exam.Exam{}, errors.Wrap(err, "querying questions")
	}
	saved, err := svc.enrollments.QueryAttempts(ctx, enr.ID)
	if err != nil {
		return Outcome{}, exam.Exam{}, errors.Wrap(err, "querying attempts")
	}

	byQuestion := make(map[string]enrollment.Attempt, len(saved)+len(answers))
	for _, a := range saved {
		byQuestion[a.QuestionID] = a
	}
	for _, in := range answers {
		if _, err = enrollment.MatchAnswer(questions, in); err != nil {
			return Outcome{}, exam.Exam{}, err
		}
		a := enrollment.NewAttempt(enr.ID, in, now)
		if prev, ok := byQuestion[in.QuestionID]; ok {
			a.ID = prev.ID
		}
		byQuestion[in.QuestionID] = a
	}
	attempts := make([]enrollment.Attempt, 0, len(byQuestion))
	for _, a := range byQuestion {
		attempts = append(attempts, a)
	}

	res := Grade(questions, attempts, ex.ManualReview)
	for _, a := range res.Attempts {
		if _, err = svc.enrollments.UpsertAttempt(ctx, a, enrollment.StatusStarted); err != nil {
			return Outcome{}, exam.Exam{}, errors.Wrap(err, "saving attempt")
		}
	}

	from := enr.Status
	enr.Score = null.IntFrom(res.Score)
	enr.CompletedAt = null.TimeFrom(now)
	enr.UpdatedAt = now
	if res.Pending > 0 {
		enr.Status = enrollment.StatusPendingReview
	} else {
		enr.Status = passOrFail(res.Score, ex.PassingScore)
	}
	out, err := svc.complete(ctx, enr, from, ex)
	return out, ex, err
}

// complete persists the new status of enr and issues the certificate on a pass.
func (svc *Service) complete(ctx context.Context, enr enrollment.Enrollment, from enrollment.Status, ex exam.Exam) (Outcome, error) {
	enr, err := svc.enrollments.UpdateEnrollment(ctx, enr, from)
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{Enrollment: enr, Score: int(enr.Score.Int), Passed: enr.Status == enrollment.StatusPassed}
	if !out.Passed {
		return out, nil
	}

	cert, err := svc.certs.Issue(ctx, certificate.IssueRequest{
		EnrollmentID: enr.ID,
		StudentID:    enr.StudentID,
		ExamID:       ex.ID,
		AcademyID:    ex.AcademyID,
		TemplateID:   ex.CertificateTemplateID,
	})
	if err != nil {
		return Outcome{}, errors.Wrap(err, "issuing certificate")
	}
	enr.CertificateID = null.StringFrom(cert.ID)
	if out.Enrollment, err = svc.enrollments.UpdateEnrollment(ctx, enr, enr.Status); err != nil {
		return Outcome{}, errors.Wrap(err, "attaching certificate")
	}
	out.Certificate = &cert
	return out, nil
}

// Review grades the pending short answers of an enrollment and completes it.
func (svc *Service) Review(ctx context.Context, actor user.User, enrollmentID string, grades []ReviewGrade) (Outcome, error) {
	if err := svc.validate.Struct(ReviewRequest{Grades: grades}); err != nil {
		return Outcome{}, err
	}

	var out Outcome
	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		enr, err := svc.enrollments.GetEnrollment(ctx, enrollmentID)
		if err != nil {
			return err
		}
		ex, err := svc.exams.GetExam(ctx, enr.ExamID)
		if err != nil {
			return errors.Wrap(err, "getting exam")
		}
		if !actor.ActsFor(ex.AcademyID) {
			return core.ErrForbidden
		}
		if enr.Status != enrollment.StatusPendingReview {
			return core.ErrInvalidStateTransition
		}

		questions, err := svc.exams.QueryQuestions(ctx, ex.ID)
		if err != nil {
			return errors.Wrap(err, "querying questions")
		}
		attempts, err := svc.enrollments.QueryAttempts(ctx, enr.ID)
		if err != nil {
			return errors.Wrap(err, "querying attempts")
		}

		byQuestion := make(map[string]bool, len(grades))
		for _, g := range grades {
			byQuestion[g.QuestionID] = *g.IsCorrect
		}
		pending := make(map[string]bool, len(attempts))
		for i, a := range attempts {
			if a.IsCorrect.Valid {
				continue
			}
			pending[a.QuestionID] = true
			correct, ok := byQuestion[a.QuestionID]
			if !ok {
				return core.NewValidationError(nil, core.FieldError{Field: "grades", Error: errGradesMissing})
			}
			attempts[i].IsCorrect = null.BoolFrom(correct)
		}
		for qid := range byQuestion {
			if !pending[qid] {
				return core.NewValidationError(nil, core.FieldError{Field: "grades", Error: fmt.Sprintf("%s: %s", qid, errNotPending)})
			}
		}

		res := Tally(questions, attempts)
		for _, a := range res.Attempts {
			if pending[a.QuestionID] {
				if _, err = svc.enrollments.UpsertAttempt(ctx, a, enrollment.StatusPendingReview); err != nil {
					return errors.Wrap(err, "saving attempt")
				}
			}
		}

		now := core.NowFunc()
		from := enr.Status
		enr.Score = null.IntFrom(res.Score)
		enr.Status = passOrFail(res.Score, ex.PassingScore)
		enr.UpdatedAt = now
		out, err = svc.complete(ctx, enr, from, ex)
		return err
	})
	if err != nil {
		return Outcome{}, err
	}
	return out, nil
}

// SweepExpired force-submits the STARTED enrollments whose deadline grace is over, grading
// whatever answers were saved. It returns how many were completed.
func (svc *Service) SweepExpired(ctx context.Context) (int, error) {
	now := core.NowFunc()
	expired, err := svc.enrollments.QueryExpired(ctx, now.Add(-svc.grace))
	if err != nil {
		return 0, errors.Wrap(err, "querying expired enrollments")
	}

	var swept int
	for _, enr := range expired {
		err = svc.tx.InTx(ctx, func(ctx context.Context) error {
			enr, err := svc.enrollments.GetEnrollment(ctx, enr.ID)
			if err != nil {
				return err
			}
			if enr.Status != enrollment.StatusStarted {
				return core.ErrInvalidStateTransition
			}
			_, _, err = svc.finish(ctx, enr, nil, now)
			return err
		})
		switch {
		case err == nil:
			swept++
		case errors.Cause(err) == core.ErrInvalidStateTransition || core.IsNotFound(err):
			// submitted or removed meanwhile
		default:
			svc.logger.Error(fmt.Sprintf("sweeping enrollment %s: %v", enr.ID, err), err)
		}
	}
	return swept, nil
}

func passOrFail(score, passingScore int) enrollment.Status {
	if score >= passingScore {
		return enrollment.StatusPassed
	}
	return enrollment.StatusFailed
}
