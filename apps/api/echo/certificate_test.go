package echoapi_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/examportal/core/certificate"
	"github.com/trezcool/examportal/core/exam"
	testutil "github.com/trezcool/examportal/tests"
)

func TestCertificateAPI(t *testing.T) {
	a := setup(t)
	ex, questions := testutil.CreateExam(t, a.svcs.Exams, "acme", exam.StatusPublished, 0, 50, testutil.TrueFalseQuestion("Sky is blue", 1, true))
	out := takeExam(t, a, testutil.Student("s1"), ex.ID, testutil.PickCorrect(questions[0]))
	require.NotNil(t, out.Certificate)
	cert := *out.Certificate
	assert.Regexp(t, `^CERT-\d{4}-[0-9A-F]{8}$`, cert.Number)

	path := "/api/certificates/" + cert.ID
	tests := []struct {
		name     string
		token    string
		wantCode int
	}{
		{name: "anonymous", wantCode: http.StatusUnauthorized},
		{name: "holder", token: a.token(t, testutil.Student("s1")), wantCode: http.StatusOK},
		{name: "other student", token: a.token(t, testutil.Student("s2")), wantCode: http.StatusForbidden},
		{name: "issuing academy", token: a.token(t, testutil.Academy("acme")), wantCode: http.StatusOK},
		{name: "other academy", token: a.token(t, testutil.Academy("globex")), wantCode: http.StatusForbidden},
		{name: "super admin", token: a.token(t, testutil.Admin()), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.do(t, http.MethodGet, path, tt.token)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantCode == http.StatusOK {
				var got certificate.Certificate
				unmarshal(t, rec, &got)
				assert.Equal(t, cert.Number, got.Number)
			}
		})
	}

	t.Run("public verification", func(t *testing.T) {
		rec := a.do(t, http.MethodGet, "/api/certificates/verify/"+cert.Number, "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var got certificate.Certificate
		unmarshal(t, rec, &got)
		assert.Equal(t, cert.ID, got.ID)
		assert.Equal(t, "s1", got.StudentID)
		assert.Equal(t, ex.ID, got.ExamID)

		rec = a.do(t, http.MethodGet, "/api/certificates/verify/CERT-00000000-DEADBEEF", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.JSONEq(t, `{"error": "certificate not found"}`, rec.Body.String())
	})
}
