package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/examportal/core"
	"github.com/trezcool/examportal/core/exam"
)

type examRepository struct {
	db *DB
}

var _ exam.Repository = (*examRepository)(nil) // interface compliance check

func NewExamRepository(db *DB) *examRepository {
	return &examRepository{db: db}
}

func (repo *examRepository) CreateExam(ctx context.Context, e exam.Exam) (exam.Exam, error) {
	defer repo.db.write(ctx)()

	e.ID = repo.db.newID()
	repo.db.t.exams[e.ID] = e
	return e, nil
}

func (repo *examRepository) GetExam(_ context.Context, id string) (exam.Exam, error) {
	defer repo.db.read()()

	if e, ok := repo.db.t.exams[id]; ok {
		return e, nil
	}
	return exam.Exam{}, exam.ErrNotFound
}

func (repo *examRepository) QueryExams(_ context.Context, filter exam.QueryFilter) ([]exam.Exam, error) {
	defer repo.db.read()()

	search := strings.ToLower(filter.Search)
	ids := make([]string, 0, len(repo.db.t.exams))
	for id, e := range repo.db.t.exams {
		if !filter.Visible(e) {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		if filter.AcademyID != "" && e.AcademyID != filter.AcademyID {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(e.Title), search) {
			continue
		}
		ids = append(ids, id)
	}
	repo.db.sortByOrder(ids, true /* desc */)

	exams := make([]exam.Exam, 0, len(ids))
	for _, id := range ids {
		exams = append(exams, repo.db.t.exams[id])
	}
	if len(filter.Ordering) > 0 {
		sort.SliceStable(exams, func(i, j int) bool {
			for _, ord := range filter.Ordering {
				if c := compareExams(exams[i], exams[j], ord.Field); c != 0 {
					return (c < 0) == ord.Ascending
				}
			}
			return false
		})
	}
	return exams, nil
}

func compareExams(a, b exam.Exam, field string) int {
	switch field {
	case "title":
		return strings.Compare(a.Title, b.Title)
	case "price":
		return compareInts(a.Price, b.Price)
	case "duration_minutes":
		return compareInts(int64(a.DurationMinutes), int64(b.DurationMinutes))
	case "created_at":
		return compareInts(a.CreatedAt.UnixNano(), b.CreatedAt.UnixNano())
	}
	return 0
}

func compareInts(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func (repo *examRepository) UpdateExam(ctx context.Context, e exam.Exam) (exam.Exam, error) {
	defer repo.db.write(ctx)()

	if _, ok := repo.db.t.exams[e.ID]; !ok {
		return exam.Exam{}, exam.ErrNotFound
	}
	repo.db.t.exams[e.ID] = e
	return e, nil
}

func (repo *examRepository) SetExamStatus(ctx context.Context, e exam.Exam, from exam.Status) (exam.Exam, error) {
	defer repo.db.write(ctx)()

	stored, ok := repo.db.t.exams[e.ID]
	if !ok {
		return exam.Exam{}, exam.ErrNotFound
	}
	if stored.Status != from {
		return exam.Exam{}, core.ErrInvalidStateTransition
	}
	stored.Status = e.Status
	stored.UpdatedAt = e.UpdatedAt
	repo.db.t.exams[e.ID] = stored
	return stored, nil
}

func (repo *examRepository) CertificateTemplateExists(_ context.Context, id string) (bool, error) {
	defer repo.db.read()()

	_, ok := repo.db.t.templates[id]
	return ok, nil
}

func (repo *examRepository) CreateQuestion(ctx context.Context, q exam.Question) (exam.Question, error) {
	defer repo.db.write(ctx)()

	if _, ok := repo.db.t.exams[q.ExamID]; !ok {
		return exam.Question{}, exam.ErrNotFound
	}
	q.ID = repo.db.newID()
	options := make([]exam.Option, 0, len(q.Options))
	for _, opt := range q.Options {
		opt.ID = repo.db.newID()
		opt.QuestionID = q.ID
		repo.db.t.options[opt.ID] = opt
		options = append(options, opt)
	}

	q.Options = nil
	repo.db.t.questions[q.ID] = q
	q.Options = options
	return q, nil
}

func (repo *examRepository) DeleteQuestion(ctx context.Context, examID, questionID string) error {
	defer repo.db.write(ctx)()

	q, ok := repo.db.t.questions[questionID]
	if !ok || q.ExamID != examID {
		return exam.ErrQuestionNotFound
	}
	delete(repo.db.t.questions, questionID)
	for id, opt := range repo.db.t.options {
		if opt.QuestionID == questionID {
			delete(repo.db.t.options, id)
		}
	}
	for key, a := range repo.db.t.attempts {
		if a.QuestionID == questionID {
			delete(repo.db.t.attempts, key)
		}
	}
	return nil
}

func (repo *examRepository) QueryQuestions(_ context.Context, examID string) ([]exam.Question, error) {
	defer repo.db.read()()

	questions := make([]exam.Question, 0)
	for _, q := range repo.db.t.questions {
		if q.ExamID != examID {
			continue
		}
		q.Options = make([]exam.Option, 0)
		for _, opt := range repo.db.t.options {
			if opt.QuestionID == q.ID {
				q.Options = append(q.Options, opt)
			}
		}
		sort.Slice(q.Options, func(i, j int) bool { return q.Options[i].Position < q.Options[j].Position })
		questions = append(questions, q)
	}
	sort.Slice(questions, func(i, j int) bool { return questions[i].Position < questions[j].Position })
	return questions, nil
}
