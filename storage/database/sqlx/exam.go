package sqlxrepos

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/examportal/core"
	"github.com/trezcool/examportal/core/exam"
)

const examColumns = `id, academy_id, title, description, duration_minutes, passing_score, price, status,
	scheduled_at, certificate_template_id, manual_review, created_at, updated_at`

type examRepository struct {
	db *sqlx.DB
	tx *transactor
}

var _ exam.Repository = (*examRepository)(nil) // interface compliance check

func NewExamRepository(db *sqlx.DB) *examRepository {
	return &examRepository{db: db, tx: NewTransactor(db)}
}

func (repo *examRepository) CreateExam(ctx context.Context, e exam.Exam) (exam.Exam, error) {
	e.ID = uuid.NewString()
	q := `INSERT INTO exam (` + examColumns + `) VALUES (
		:id, :academy_id, :title, :description, :duration_minutes, :passing_score, :price, :status,
		:scheduled_at, :certificate_template_id, :manual_review, :created_at, :updated_at)`
	if _, err := executor(ctx, repo.db).NamedExecContext(ctx, q, e); err != nil {
		return exam.Exam{}, errors.Wrap(err, "inserting exam")
	}
	return e, nil
}

func (repo *examRepository) GetExam(ctx context.Context, id string) (exam.Exam, error) {
	if !validID(id) {
		return exam.Exam{}, exam.ErrNotFound
	}
	var e exam.Exam
	err := executor(ctx, repo.db).GetContext(ctx, &e, `SELECT `+examColumns+` FROM exam WHERE id = $1`, id)
	if isNoRows(err) {
		return exam.Exam{}, exam.ErrNotFound
	}
	return e, errors.Wrap(err, "selecting exam")
}

func (repo *examRepository) QueryExams(ctx context.Context, filter exam.QueryFilter) ([]exam.Exam, error) {
	var w where
	if filter.PublishedOnly {
		if filter.DraftsOf != "" {
			w.add("(status = ? OR academy_id = ?)", exam.StatusPublished, filter.DraftsOf)
		} else {
			w.add("status = ?", exam.StatusPublished)
		}
	}
	if filter.Status != "" {
		w.add("status = ?", filter.Status)
	}
	if filter.AcademyID != "" {
		w.add("academy_id = ?", filter.AcademyID)
	}
	if filter.Search != "" {
		w.add("title ILIKE ?", likePattern(filter.Search))
	}

	ex := executor(ctx, repo.db)
	ordering := []string{core.DBOrdering{Field: "created_at"}.String()}
	if len(filter.Ordering) > 0 {
		ordering = ordering[:0]
		for _, ord := range filter.Ordering {
			ordering = append(ordering, ord.String())
		}
	}
	q := ex.Rebind(`SELECT ` + examColumns + ` FROM exam` + w.String() + ` ORDER BY ` + strings.Join(ordering, ", ") + `, id`)

	exams := make([]exam.Exam, 0)
	if err := ex.SelectContext(ctx, &exams, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting exams")
	}
	return exams, nil
}

func (repo *examRepository) UpdateExam(ctx context.Context, e exam.Exam) (exam.Exam, error) {
	if !validID(e.ID) {
		return exam.Exam{}, exam.ErrNotFound
	}
	q := `UPDATE exam SET
		title = :title, description = :description, duration_minutes = :duration_minutes,
		passing_score = :passing_score, price = :price, scheduled_at = :scheduled_at,
		certificate_template_id = :certificate_template_id, manual_review = :manual_review,
		updated_at = :updated_at
		WHERE id = :id`
	res, err := executor(ctx, repo.db).NamedExecContext(ctx, q, e)
	if err != nil {
		return exam.Exam{}, errors.Wrap(err, "updating exam")
	}
	if n, err := affected(res); err != nil {
		return exam.Exam{}, err
	} else if n == 0 {
		return exam.Exam{}, exam.ErrNotFound
	}
	return repo.GetExam(ctx, e.ID)
}

func (repo *examRepository) SetExamStatus(ctx context.Context, e exam.Exam, from exam.Status) (exam.Exam, error) {
	if !validID(e.ID) {
		return exam.Exam{}, exam.ErrNotFound
	}
	ex := executor(ctx, repo.db)
	var updated exam.Exam
	q := `UPDATE exam SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4 RETURNING ` + examColumns
	err := ex.GetContext(ctx, &updated, q, e.Status, e.UpdatedAt, e.ID, from)
	if isNoRows(err) {
		found, err := exists(ctx, ex, "exam", e.ID)
		if err != nil {
			return exam.Exam{}, err
		}
		if !found {
			return exam.Exam{}, exam.ErrNotFound
		}
		return exam.Exam{}, core.ErrInvalidStateTransition
	}
	return updated, errors.Wrap(err, "updating exam status")
}

func (repo *examRepository) CertificateTemplateExists(ctx context.Context, id string) (bool, error) {
	if !validID(id) {
		return false, nil
	}
	return exists(ctx, executor(ctx, repo.db), "certificate_template", id)
}

func (repo *examRepository) CreateQuestion(ctx context.Context, q exam.Question) (exam.Question, error) {
	if !validID(q.ExamID) {
		return exam.Question{}, exam.ErrNotFound
	}
	q.ID = uuid.NewString()
	for i := range q.Options {
		q.Options[i].ID = uuid.NewString()
		q.Options[i].QuestionID = q.ID
	}

	err := repo.tx.InTx(ctx, func(ctx context.Context) error {
		ex := executor(ctx, repo.db)
		_, err := ex.NamedExecContext(ctx,
			`INSERT INTO question (id, exam_id, text, type, points, position)
			VALUES (:id, :exam_id, :text, :type, :points, :position)`, q)
		if err != nil {
			if violates(err, foreignKeyViolation) {
				return exam.ErrNotFound
			}
			return errors.Wrap(err, "inserting question")
		}
		for _, opt := range q.Options {
			_, err = ex.NamedExecContext(ctx,
				`INSERT INTO question_option (id, question_id, text, is_correct, position)
				VALUES (:id, :question_id, :text, :is_correct, :position)`, opt)
			if err != nil {
				return errors.Wrap(err, "inserting option")
			}
		}
		return nil
	})
	if err != nil {
		return exam.Question{}, err
	}
	return q, nil
}

func (repo *examRepository) DeleteQuestion(ctx context.Context, examID, questionID string) error {
	if !validID(examID) || !validID(questionID) {
		return exam.ErrQuestionNotFound
	}
	res, err := executor(ctx, repo.db).ExecContext(ctx, `DELETE FROM question WHERE id = $1 AND exam_id = $2`, questionID, examID)
	if err != nil {
		return errors.Wrap(err, "deleting question")
	}
	if n, err := affected(res); err != nil {
		return err
	} else if n == 0 {
		return exam.ErrQuestionNotFound
	}
	return nil
}

func (repo *examRepository) QueryQuestions(ctx context.Context, examID string) ([]exam.Question, error) {
	questions := make([]exam.Question, 0)
	if !validID(examID) {
		return questions, nil
	}

	ex := executor(ctx, repo.db)
	err := ex.SelectContext(ctx, &questions,
		`SELECT id, exam_id, text, type, points, position FROM question WHERE exam_id = $1 ORDER BY position, id`, examID)
	if err != nil {
		return nil, errors.Wrap(err, "selecting questions")
	}

	var options []exam.Option
	err = ex.SelectContext(ctx, &options,
		`SELECT o.id, o.question_id, o.text, o.is_correct, o.position
		FROM question_option o JOIN question q ON q.id = o.question_id
		WHERE q.exam_id = $1 ORDER BY o.position, o.id`, examID)
	if err != nil {
		return nil, errors.Wrap(err, "selecting options")
	}

	byQuestion := make(map[string][]exam.Option, len(questions))
	for _, opt := range options {
		byQuestion[opt.QuestionID] = append(byQuestion[opt.QuestionID], opt)
	}
	for i := range questions {
		questions[i].Options = byQuestion[questions[i].ID]
		if questions[i].Options == nil {
			questions[i].Options = make([]exam.Option, 0)
		}
	}
	return questions, nil
}
