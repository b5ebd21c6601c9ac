package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/examportal/core"
	"github.com/trezcool/examportal/core/enrollment"
	"github.com/trezcool/examportal/core/exam"
)

const (
	enrollmentColumns = `id, student_id, exam_id, status, is_assigned, assigned_by, purchase_id,
		started_at, deadline, completed_at, score, certificate_id, created_at, updated_at`

	attemptColumns = `id, enrollment_id, question_id, selected_option_id, text_answer, is_correct, answered_at`
)

type enrollmentRepository struct {
	db *sqlx.DB
}

var _ enrollment.Repository = (*enrollmentRepository)(nil) // interface compliance check

func NewEnrollmentRepository(db *sqlx.DB) *enrollmentRepository {
	return &enrollmentRepository{db: db}
}

func (repo *enrollmentRepository) CreateEnrollment(ctx context.Context, e enrollment.Enrollment) (enrollment.Enrollment, error) {
	e.ID = uuid.NewString()
	q := `INSERT INTO enrollment (` + enrollmentColumns + `) VALUES (
		:id, :student_id, :exam_id, :status, :is_assigned, :assigned_by, :purchase_id,
		:started_at, :deadline, :completed_at, :score, :certificate_id, :created_at, :updated_at)
		ON CONFLICT ON CONSTRAINT enrollment_student_exam_key DO NOTHING`
	res, err := executor(ctx, repo.db).NamedExecContext(ctx, q, e)
	if err != nil {
		if violates(err, foreignKeyViolation) {
			return enrollment.Enrollment{}, exam.ErrNotFound
		}
		return enrollment.Enrollment{}, errors.Wrap(err, "inserting enrollment")
	}
	if n, err := affected(res); err != nil {
		return enrollment.Enrollment{}, err
	} else if n == 0 {
		return enrollment.Enrollment{}, enrollment.ErrAlreadyEnrolled
	}
	return e, nil
}

func (repo *enrollmentRepository) GetEnrollment(ctx context.Context, id string) (enrollment.Enrollment, error) {
	if !validID(id) {
		return enrollment.Enrollment{}, enrollment.ErrNotFound
	}
	var e enrollment.Enrollment
	err := executor(ctx, repo.db).GetContext(ctx, &e, `SELECT `+enrollmentColumns+` FROM enrollment WHERE id = $1`, id)
	if isNoRows(err) {
		return enrollment.Enrollment{}, enrollment.ErrNotFound
	}
	return e, errors.Wrap(err, "selecting enrollment")
}

func (repo *enrollmentRepository) QueryEnrollments(ctx context.Context, filter enrollment.QueryFilter) ([]enrollment.Enrollment, error) {
	var w where
	if filter.ExamID != "" {
		if !validID(filter.ExamID) {
			return make([]enrollment.Enrollment, 0), nil
		}
		w.add("exam_id = ?", filter.ExamID)
	}
	if filter.Status != "" {
		w.add("status = ?", filter.Status)
	}
	if filter.StudentID != "" {
		w.add("student_id = ?", filter.StudentID)
	}
	if filter.AcademyID != "" {
		w.add("(assigned_by = ? OR exam_id IN (SELECT id FROM exam WHERE academy_id = ?))", filter.AcademyID, filter.AcademyID)
	}

	ex := executor(ctx, repo.db)
	ord := core.DBOrdering{Field: "created_at", Ascending: true}
	q := ex.Rebind(`SELECT ` + enrollmentColumns + ` FROM enrollment` + w.String() + ` ORDER BY ` + ord.String() + `, id`)

	enrs := make([]enrollment.Enrollment, 0)
	if err := ex.SelectContext(ctx, &enrs, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting enrollments")
	}
	return enrs, nil
}

// stateError explains why a conditional write on enrollment id touched no row.
func (repo *enrollmentRepository) stateError(ctx context.Context, ex core.DBExecutor, id string) error {
	found, err := exists(ctx, ex, "enrollment", id)
	if err != nil {
		return err
	}
	if !found {
		return enrollment.ErrNotFound
	}
	return core.ErrInvalidStateTransition
}

func (repo *enrollmentRepository) UpdateEnrollment(ctx context.Context, e enrollment.Enrollment, from enrollment.Status) (enrollment.Enrollment, error) {
	if !validID(e.ID) {
		return enrollment.Enrollment{}, enrollment.ErrNotFound
	}
	ex := executor(ctx, repo.db)
	var updated enrollment.Enrollment
	q := `UPDATE enrollment SET
			status = $3, started_at = $4, deadline = $5, completed_at = $6, score = $7,
			certificate_id = $8, updated_at = $9
		WHERE id = $1 AND status = $2
		RETURNING ` + enrollmentColumns
	err := ex.GetContext(ctx, &updated, q,
		e.ID, from, e.Status, e.StartedAt, e.Deadline, e.CompletedAt, e.Score, e.CertificateID, e.UpdatedAt)
	if isNoRows(err) {
		return enrollment.Enrollment{}, repo.stateError(ctx, ex, e.ID)
	}
	return updated, errors.Wrap(err, "updating enrollment")
}

func (repo *enrollmentRepository) DeleteEnrollment(ctx context.Context, id string, status enrollment.Status) error {
	if !validID(id) {
		return enrollment.ErrNotFound
	}
	ex := executor(ctx, repo.db)
	res, err := ex.ExecContext(ctx, `DELETE FROM enrollment WHERE id = $1 AND status = $2`, id, status)
	if err != nil {
		return errors.Wrap(err, "deleting enrollment")
	}
	if n, err := affected(res); err != nil {
		return err
	} else if n == 0 {
		return repo.stateError(ctx, ex, id)
	}
	return nil
}

func (repo *enrollmentRepository) QueryExpired(ctx context.Context, before time.Time) ([]enrollment.Enrollment, error) {
	enrs := make([]enrollment.Enrollment, 0)
	q := `SELECT ` + enrollmentColumns + ` FROM enrollment
		WHERE status = $1 AND deadline < $2
		ORDER BY deadline, id`
	if err := executor(ctx, repo.db).SelectContext(ctx, &enrs, q, enrollment.StatusStarted, before); err != nil {
		return nil, errors.Wrap(err, "selecting expired enrollments")
	}
	return enrs, nil
}

func (repo *enrollmentRepository) UpsertAttempt(ctx context.Context, a enrollment.Attempt, status enrollment.Status) (enrollment.Attempt, error) {
	if !validID(a.EnrollmentID) {
		return enrollment.Attempt{}, enrollment.ErrNotFound
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	// guarded by the enrollment status in the same statement
	q := `INSERT INTO attempt (` + attemptColumns + `)
		SELECT $1::uuid, $2::uuid, $3::uuid, $4::uuid, $5::text, $6::boolean, $7::timestamptz
		WHERE EXISTS (SELECT 1 FROM enrollment WHERE id = $2 AND status = $8)
		ON CONFLICT ON CONSTRAINT attempt_enrollment_question_key DO UPDATE SET
			selected_option_id = EXCLUDED.selected_option_id,
			text_answer = EXCLUDED.text_answer,
			is_correct = EXCLUDED.is_correct,
			answered_at = EXCLUDED.answered_at
		RETURNING ` + attemptColumns

	ex := executor(ctx, repo.db)
	var stored enrollment.Attempt
	err := ex.GetContext(ctx, &stored, q,
		a.ID, a.EnrollmentID, a.QuestionID, a.SelectedOptionID, a.TextAnswer, a.IsCorrect, a.AnsweredAt, status)
	switch {
	case isNoRows(err):
		return enrollment.Attempt{}, repo.stateError(ctx, ex, a.EnrollmentID)
	case violates(err, foreignKeyViolation, "attempt_enrollment_id_fkey"):
		return enrollment.Attempt{}, enrollment.ErrNotFound
	case violates(err, foreignKeyViolation):
		return enrollment.Attempt{}, exam.ErrQuestionNotFound
	}
	return stored, errors.Wrap(err, "upserting attempt")
}

func (repo *enrollmentRepository) QueryAttempts(ctx context.Context, enrollmentID string) ([]enrollment.Attempt, error) {
	attempts := make([]enrollment.Attempt, 0)
	if !validID(enrollmentID) {
		return attempts, nil
	}
	q := `SELECT a.id, a.enrollment_id, a.question_id, a.selected_option_id, a.text_answer, a.is_correct, a.answered_at
		FROM attempt a JOIN question q ON q.id = a.question_id
		WHERE a.enrollment_id = $1
		ORDER BY q.position, q.id`
	if err := executor(ctx, repo.db).SelectContext(ctx, &attempts, q, enrollmentID); err != nil {
		return nil, errors.Wrap(err, "selecting attempts")
	}
	return attempts, nil
}
