package sqlxrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/examportal/core"
	"github.com/trezcool/examportal/core/certificate"
)

const certificateColumns = `id, certificate_number, enrollment_id, student_id, exam_id, academy_id, template_id, issue_date`

type certificateRepository struct {
	db *sqlx.DB
}

var _ certificate.Repository = (*certificateRepository)(nil) // interface compliance check

func NewCertificateRepository(db *sqlx.DB) *certificateRepository {
	return &certificateRepository{db: db}
}

// CreateCertificate never raises a unique violation, which would abort the running transaction:
// conflicts are resolved after the fact.
func (repo *certificateRepository) CreateCertificate(ctx context.Context, c certificate.Certificate) (certificate.Certificate, error) {
	c.ID = uuid.NewString()
	q := `INSERT INTO certificate (` + certificateColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT DO NOTHING
		RETURNING ` + certificateColumns

	var created certificate.Certificate
	err := executor(ctx, repo.db).GetContext(ctx, &created, q,
		c.ID, c.Number, c.EnrollmentID, c.StudentID, c.ExamID, c.AcademyID, c.TemplateID, c.IssueDate)
	if !isNoRows(err) {
		return created, errors.Wrap(err, "inserting certificate")
	}

	existing, err := repo.GetCertificateByEnrollment(ctx, c.EnrollmentID)
	if err == nil {
		return existing, nil
	}
	if core.IsNotFound(err) {
		return certificate.Certificate{}, certificate.ErrDuplicateCertificateNumber
	}
	return certificate.Certificate{}, err
}

func (repo *certificateRepository) get(ctx context.Context, cond string, arg interface{}) (certificate.Certificate, error) {
	var c certificate.Certificate
	err := executor(ctx, repo.db).GetContext(ctx, &c, `SELECT `+certificateColumns+` FROM certificate WHERE `+cond, arg)
	if isNoRows(err) {
		return certificate.Certificate{}, certificate.ErrNotFound
	}
	return c, errors.Wrap(err, "selecting certificate")
}

func (repo *certificateRepository) GetCertificate(ctx context.Context, id string) (certificate.Certificate, error) {
	if !validID(id) {
		return certificate.Certificate{}, certificate.ErrNotFound
	}
	return repo.get(ctx, "id = $1", id)
}

func (repo *certificateRepository) GetCertificateByEnrollment(ctx context.Context, enrollmentID string) (certificate.Certificate, error) {
	if !validID(enrollmentID) {
		return certificate.Certificate{}, certificate.ErrNotFound
	}
	return repo.get(ctx, "enrollment_id = $1", enrollmentID)
}

func (repo *certificateRepository) GetCertificateByNumber(ctx context.Context, number string) (certificate.Certificate, error) {
	return repo.get(ctx, "certificate_number = $1", number)
}

func (repo *certificateRepository) DefaultTemplate(ctx context.Context) (certificate.Template, error) {
	var tmpl certificate.Template
	q := `SELECT id, name, is_default FROM certificate_template WHERE is_default LIMIT 1`
	err := executor(ctx, repo.db).GetContext(ctx, &tmpl, q)
	if isNoRows(err) {
		return certificate.Template{}, certificate.ErrTemplateNotFound
	}
	return tmpl, errors.Wrap(err, "selecting default template")
}
