package inmemdb

import (
	"context"
	"time"

	"github.com/trezcool/examportal/core"
	"github.com/trezcool/examportal/core/enrollment"
)

type enrollmentRepository struct {
	db *DB
}

var _ enrollment.Repository = (*enrollmentRepository)(nil) // interface compliance check

func NewEnrollmentRepository(db *DB) *enrollmentRepository {
	return &enrollmentRepository{db: db}
}

func attemptKey(enrollmentID, questionID string) string {
	return enrollmentID + "/" + questionID
}

func (repo *enrollmentRepository) CreateEnrollment(ctx context.Context, e enrollment.Enrollment) (enrollment.Enrollment, error) {
	defer repo.db.write(ctx)()

	for _, other := range repo.db.t.enrollments {
		if other.StudentID == e.StudentID && other.ExamID == e.ExamID {
			return enrollment.Enrollment{}, enrollment.ErrAlreadyEnrolled
		}
	}
	e.ID = repo.db.newID()
	repo.db.t.enrollments[e.ID] = e
	return e, nil
}

func (repo *enrollmentRepository) GetEnrollment(_ context.Context, id string) (enrollment.Enrollment, error) {
	defer repo.db.read()()

	if e, ok := repo.db.t.enrollments[id]; ok {
		return e, nil
	}
	return enrollment.Enrollment{}, enrollment.ErrNotFound
}

func (repo *enrollmentRepository) QueryEnrollments(_ context.Context, filter enrollment.QueryFilter) ([]enrollment.Enrollment, error) {
	defer repo.db.read()()

	ids := make([]string, 0)
	for id, e := range repo.db.t.enrollments {
		if filter.ExamID != "" && e.ExamID != filter.ExamID {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		if filter.StudentID != "" && e.StudentID != filter.StudentID {
			continue
		}
		if filter.AcademyID != "" {
			assigned := e.AssignedBy.Valid && e.AssignedBy.String == filter.AcademyID
			if !assigned && repo.db.t.exams[e.ExamID].AcademyID != filter.AcademyID {
				continue
			}
		}
		ids = append(ids, id)
	}
	repo.db.sortByOrder(ids, false)

	enrs := make([]enrollment.Enrollment, 0, len(ids))
	for _, id := range ids {
		enrs = append(enrs, repo.db.t.enrollments[id])
	}
	return enrs, nil
}

func (repo *enrollmentRepository) UpdateEnrollment(ctx context.Context, e enrollment.Enrollment, from enrollment.Status) (enrollment.Enrollment, error) {
	defer repo.db.write(ctx)()

	stored, ok := repo.db.t.enrollments[e.ID]
	if !ok {
		return enrollment.Enrollment{}, enrollment.ErrNotFound
	}
	if stored.Status != from {
		return enrollment.Enrollment{}, core.ErrInvalidStateTransition
	}
	e.StudentID, e.ExamID, e.CreatedAt = stored.StudentID, stored.ExamID, stored.CreatedAt
	repo.db.t.enrollments[e.ID] = e
	return e, nil
}

func (repo *enrollmentRepository) DeleteEnrollment(ctx context.Context, id string, status enrollment.Status) error {
	defer repo.db.write(ctx)()

	stored, ok := repo.db.t.enrollments[id]
	if !ok {
		return enrollment.ErrNotFound
	}
	if stored.Status != status {
		return core.ErrInvalidStateTransition
	}
	delete(repo.db.t.enrollments, id)
	for key, a := range repo.db.t.attempts {
		if a.EnrollmentID == id {
			delete(repo.db.t.attempts, key)
		}
	}
	return nil
}

func (repo *enrollmentRepository) QueryExpired(_ context.Context, before time.Time) ([]enrollment.Enrollment, error) {
	defer repo.db.read()()

	ids := make([]string, 0)
	for id, e := range repo.db.t.enrollments {
		if e.Status == enrollment.StatusStarted && e.Deadline.Valid && e.Deadline.Time.Before(before) {
			ids = append(ids, id)
		}
	}
	repo.db.sortByOrder(ids, false)

	enrs := make([]enrollment.Enrollment, 0, len(ids))
	for _, id := range ids {
		enrs = append(enrs, repo.db.t.enrollments[id])
	}
	return enrs, nil
}

func (repo *enrollmentRepository) UpsertAttempt(ctx context.Context, a enrollment.Attempt, status enrollment.Status) (enrollment.Attempt, error) {
	defer repo.db.write(ctx)()

	enr, ok := repo.db.t.enrollments[a.EnrollmentID]
	if !ok {
		return enrollment.Attempt{}, enrollment.ErrNotFound
	}
	if enr.Status != status {
		return enrollment.Attempt{}, core.ErrInvalidStateTransition
	}
	key := attemptKey(a.EnrollmentID, a.QuestionID)
	if prev, ok := repo.db.t.attempts[key]; ok {
		a.ID = prev.ID
	} else {
		a.ID = repo.db.newID()
	}
	repo.db.t.attempts[key] = a
	return a, nil
}

func (repo *enrollmentRepository) QueryAttempts(_ context.Context, enrollmentID string) ([]enrollment.Attempt, error) {
	defer repo.db.read()()

	keys := make([]string, 0)
	for key, a := range repo.db.t.attempts {
		if a.EnrollmentID == enrollmentID {
			keys = append(keys, key)
		}
	}
	attempts := make([]enrollment.Attempt, 0, len(keys))
	for _, key := range keys {
		attempts = append(attempts, repo.db.t.attempts[key])
	}
	sortAttempts(repo.db, attempts)
	return attempts, nil
}

func sortAttempts(db *DB, attempts []enrollment.Attempt) {
	ids := make([]string, 0, len(attempts))
	byID := make(map[string]enrollment.Attempt, len(attempts))
	for _, a := range attempts {
		ids = append(ids, a.ID)
		byID[a.ID] = a
	}
	db.sortByOrder(ids, false)
	for i, id := range ids {
		attempts[i] = byID[id]
	}
}
