package inmemdb

import (
	"context"

	"github.com/trezcool/examportal/core/certificate"
)

type certificateRepository struct {
	db *DB
}

var _ certificate.Repository = (*certificateRepository)(nil) // interface compliance check

func NewCertificateRepository(db *DB) *certificateRepository {
	return &certificateRepository{db: db}
}

func (repo *certificateRepository) CreateCertificate(ctx context.Context, c certificate.Certificate) (certificate.Certificate, error) {
	defer repo.db.write(ctx)()

	for _, other := range repo.db.t.certificates {
		if other.EnrollmentID == c.EnrollmentID {
			return other, nil
		}
	}
	for _, other := range repo.db.t.certificates {
		if other.Number == c.Number {
			return certificate.Certificate{}, certificate.ErrDuplicateCertificateNumber
		}
	}
	c.ID = repo.db.newID()
	repo.db.t.certificates[c.ID] = c
	return c, nil
}

func (repo *certificateRepository) GetCertificate(_ context.Context, id string) (certificate.Certificate, error) {
	defer repo.db.read()()

	if c, ok := repo.db.t.certificates[id]; ok {
		return c, nil
	}
	return certificate.Certificate{}, certificate.ErrNotFound
}

func (repo *certificateRepository) GetCertificateByEnrollment(_ context.Context, enrollmentID string) (certificate.Certificate, error) {
	defer repo.db.read()()

	for _, c := range repo.db.t.certificates {
		if c.EnrollmentID == enrollmentID {
			return c, nil
		}
	}
	return certificate.Certificate{}, certificate.ErrNotFound
}

func (repo *certificateRepository) GetCertificateByNumber(_ context.Context, number string) (certificate.Certificate, error) {
	defer repo.db.read()()

	for _, c := range repo.db.t.certificates {
		if c.Number == number {
			return c, nil
		}
	}
	return certificate.Certificate{}, certificate.ErrNotFound
}

func (repo *certificateRepository) DefaultTemplate(_ context.Context) (certificate.Template, error) {
	defer repo.db.read()()

	for _, tmpl := range repo.db.t.templates {
		if tmpl.IsDefault {
			return tmpl, nil
		}
	}
	return certificate.Template{}, certificate.ErrTemplateNotFound
}
