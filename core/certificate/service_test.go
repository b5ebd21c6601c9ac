package certificate_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/examportal/core"
	"github.com/trezcool/examportal/core/certificate"
	inmemdb "github.com/trezcool/examportal/storage/database/inmem"
	testutil "github.com/trezcool/examportal/tests"
)

// mockNumbers makes certificate.NumberFunc hand out numbers in order, repeating the last one.
func mockNumbers(t *testing.T, numbers ...string) (calls *int) {
	t.Helper()

	calls = new(int)
	orig := certificate.NumberFunc
	certificate.NumberFunc = func(string, time.Time) string {
		n := numbers[len(numbers)-1]
		if *calls < len(numbers) {
			n = numbers[*calls]
		}
		*calls++
		return n
	}
	t.Cleanup(func() { certificate.NumberFunc = orig })
	return calls
}

func issueRequest(enrollmentID string) certificate.IssueRequest {
	return certificate.IssueRequest{EnrollmentID: enrollmentID, StudentID: "s1", ExamID: "exam-1", AcademyID: "acme"}
}

func TestService_Issue(t *testing.T) {
	svcs := testutil.PrepareServices(t)
	ctx := context.Background()
	now := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	testutil.FreezeTime(t, now)

	cert, err := svcs.CertificateSvc.Issue(ctx, issueRequest("enr-1"))
	require.NoError(t, err)
	assert.Regexp(t, `^CERT-2026-[0-9A-F]{8}$`, cert.Number)
	assert.Equal(t, now, cert.IssueDate)
	assert.Equal(t, null.StringFrom(inmemdb.DefaultTemplate.ID), cert.TemplateID)

	t.Run("issuing is idempotent", func(t *testing.T) {
		again, err := svcs.CertificateSvc.Issue(ctx, issueRequest("enr-1"))
		require.NoError(t, err)
		assert.Equal(t, cert, again)
	})

	t.Run("exam template wins", func(t *testing.T) {
		req := issueRequest("enr-2")
		req.TemplateID = null.StringFrom(inmemdb.ModernTemplate.ID)
		cert, err := svcs.CertificateSvc.Issue(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, req.TemplateID, cert.TemplateID)
	})
}

func TestService_Issue_NumberCollisions(t *testing.T) {
	svcs := testutil.PrepareServices(t)
	ctx := context.Background()

	calls := mockNumbers(t, "CERT-2026-AAAAAAAA", "CERT-2026-AAAAAAAA", "CERT-2026-AAAAAAAA", "CERT-2026-BBBBBBBB")

	first, err := svcs.CertificateSvc.Issue(ctx, issueRequest("enr-1"))
	require.NoError(t, err)
	assert.Equal(t, "CERT-2026-AAAAAAAA", first.Number)

	second, err := svcs.CertificateSvc.Issue(ctx, issueRequest("enr-2"))
	require.NoError(t, err)
	assert.Equal(t, "CERT-2026-BBBBBBBB", second.Number)
	assert.Equal(t, 4, *calls)

	t.Run("gives up after a few attempts", func(t *testing.T) {
		calls := mockNumbers(t, "CERT-2026-AAAAAAAA")
		_, err := svcs.CertificateSvc.Issue(ctx, issueRequest("enr-3"))
		assert.Equal(t, certificate.ErrDuplicateCertificateNumber, errors.Cause(err))
		assert.Equal(t, 5, *calls)

		_, err = svcs.Certificates.GetCertificateByEnrollment(ctx, "enr-3")
		assert.Equal(t, certificate.ErrNotFound, err)
	})
}

func TestService_Get(t *testing.T) {
	svcs := testutil.PrepareServices(t)
	ctx := context.Background()

	cert, err := svcs.CertificateSvc.Issue(ctx, issueRequest("enr-1"))
	require.NoError(t, err)

	tests := []struct {
		name    string
		actor   func() (certificate.Certificate, error)
		wantErr error
	}{
		{
			name:  "student",
			actor: func() (certificate.Certificate, error) { return svcs.CertificateSvc.Get(ctx, testutil.Student("s1"), cert.ID) },
		},
		{
			name:  "academy",
			actor: func() (certificate.Certificate, error) { return svcs.CertificateSvc.Get(ctx, testutil.Academy("acme"), cert.ID) },
		},
		{
			name:  "admin",
			actor: func() (certificate.Certificate, error) { return svcs.CertificateSvc.Get(ctx, testutil.Admin(), cert.ID) },
		},
		{
			name:    "another student",
			actor:   func() (certificate.Certificate, error) { return svcs.CertificateSvc.Get(ctx, testutil.Student("s2"), cert.ID) },
			wantErr: core.ErrForbidden,
		},
		{
			name:    "another academy",
			actor:   func() (certificate.Certificate, error) { return svcs.CertificateSvc.Get(ctx, testutil.Academy("globex"), cert.ID) },
			wantErr: core.ErrForbidden,
		},
		{
			name:    "unknown",
			actor:   func() (certificate.Certificate, error) { return svcs.CertificateSvc.Get(ctx, testutil.Admin(), "lol") },
			wantErr: certificate.ErrNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.actor()
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, cert, got)
		})
	}
}

func TestService_Verify(t *testing.T) {
	svcs := testutil.PrepareServices(t)
	ctx := context.Background()

	cert, err := svcs.CertificateSvc.Issue(ctx, issueRequest("enr-1"))
	require.NoError(t, err)

	got, err := svcs.CertificateSvc.Verify(ctx, "  "+cert.Number+" ")
	require.NoError(t, err)
	assert.Equal(t, cert, got)

	_, err = svcs.CertificateSvc.Verify(ctx, "CERT-1999-00000000")
	assert.Equal(t, certificate.ErrNotFound, err)
}

func TestService_Notify(t *testing.T) {
	svcs := testutil.PrepareServices(t)
	data := certificate.IssuedEmailData{ExamTitle: "Go basics", Score: 85, CertificateNumber: "CERT-2026-0A1B2C3D"}

	student := testutil.Student("s1")
	student.Name = "Jane"
	student.Email = ""
	svcs.CertificateSvc.Notify(student, data)
	assert.Empty(t, svcs.Mail.Sent())

	student.Email = "jane@test.cd"
	svcs.CertificateSvc.Notify(student, data)
	sent := svcs.Mail.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Your certificate for Go basics", sent[0].Subject)
	assert.Equal(t, "jane@test.cd", sent[0].To[0].Address)
	assert.Equal(t, []string{"certificate_issued"}, sent[0].Categories)
	for _, content := range []string{sent[0].TextContent, sent[0].HTMLContent} {
		assert.Contains(t, content, "Jane")
		assert.Contains(t, content, "85%")
		assert.Contains(t, content, "CERT-2026-0A1B2C3D")
	}
}
