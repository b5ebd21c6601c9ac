package certificate

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/examportal/core"
	"github.com/trezcool/examportal/core/user"
)

const maxNumberAttempts = 5

var (
	NumberFunc = generateNumber // mockable

	// errors
	ErrNotFound                   = core.NewNotFoundError("certificate")
	ErrTemplateNotFound           = core.NewNotFoundError("certificate template")
	ErrDuplicateCertificateNumber = core.NewRuleError("duplicate_certificate_number", "certificate number already taken")
)

type (
	Repository interface {
		// CreateCertificate inserts c, failing with ErrDuplicateCertificateNumber on a number
		// collision. If the enrollment already has a certificate, that one is returned instead.
		CreateCertificate(ctx context.Context, c Certificate) (Certificate, error)
		GetCertificate(ctx context.Context, id string) (Certificate, error)
		GetCertificateByEnrollment(ctx context.Context, enrollmentID string) (Certificate, error)
		GetCertificateByNumber(ctx context.Context, number string) (Certificate, error)
		DefaultTemplate(ctx context.Context) (Template, error)
	}

	Service struct {
		repo    Repository
		mailSvc core.EmailService
		prefix  string
	}
)

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config) *Service {
	return &Service{repo: repo, mailSvc: mailSvc, prefix: conf.Exam.CertificatePrefix}
}

// generateNumber returns `<prefix>-<year>-<8 uppercase hex digits>`.
func generateNumber(prefix string, issuedAt time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("%s-%d-%s", prefix, issuedAt.Year(), suffix)
}

// Issue creates the certificate of an enrollment, or returns the one it already has.
func (svc *Service) Issue(ctx context.Context, req IssueRequest) (Certificate, error) {
	existing, err := svc.repo.GetCertificateByEnrollment(ctx, req.EnrollmentID)
	if err == nil {
		return existing, nil
	} else if !core.IsNotFound(err) {
		return Certificate{}, errors.Wrap(err, "getting certificate by enrollment")
	}

	templateID := req.TemplateID
	if !templateID.Valid {
		tmpl, err := svc.repo.DefaultTemplate(ctx)
		if err == nil {
			templateID = null.StringFrom(tmpl.ID)
		} else if !core.IsNotFound(err) {
			return Certificate{}, errors.Wrap(err, "getting default template")
		}
	}

	now := core.NowFunc()
	cert := Certificate{
		EnrollmentID: req.EnrollmentID,
		StudentID:    req.StudentID,
		ExamID:       req.ExamID,
		AcademyID:    req.AcademyID,
		TemplateID:   templateID,
		IssueDate:    now,
	}
	for attempt := 1; ; attempt++ {
		cert.Number = NumberFunc(svc.prefix, now)
		created, err := svc.repo.CreateCertificate(ctx, cert)
		if err == nil {
			return created, nil
		}
		if errors.Cause(err) != ErrDuplicateCertificateNumber || attempt == maxNumberAttempts {
			return Certificate{}, errors.Wrap(err, "creating certificate")
		}
	}
}

// Get returns a certificate to its student, its academy or a super admin.
func (svc *Service) Get(ctx context.Context, actor user.User, id string) (Certificate, error) {
	cert, err := svc.repo.GetCertificate(ctx, id)
	if err != nil {
		return Certificate{}, err
	}
	if cert.StudentID != actor.ID && !actor.ActsFor(cert.AcademyID) {
		return Certificate{}, core.ErrForbidden
	}
	return cert, nil
}

// Verify looks a certificate up by its public number.
func (svc *Service) Verify(ctx context.Context, number string) (Certificate, error) {
	return svc.repo.GetCertificateByNumber(ctx, core.CleanString(number))
}

// Notify emails the student about a new certificate. Students without an address are skipped.
func (svc *Service) Notify(student user.User, data IssuedEmailData) {
	if svc.mailSvc == nil || student.Email == "" {
		return
	}
	data.StudentName = student.Name
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: student.Name, Address: student.Email}},
		Subject:      "Your certificate for " + data.ExamTitle,
		TemplateName: "certificate_issued",
		Categories:   []string{"certificate_issued"},
		TemplateData: data,
	})
}
