package echoapi_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	echoapi "github.com/trezcool/examportal/apps/api/echo"
	"github.com/trezcool/examportal/core/user"
	testutil "github.com/trezcool/examportal/tests"
)

func TestHome(t *testing.T) {
	a := setup(t)
	rec := a.do(t, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to Exam Portal API!", rec.Body.String())
}

func TestAuthentication(t *testing.T) {
	a := setup(t)

	expired := echoapi.GetUserClaims(testutil.Student("s1"), a.svcs.Conf)
	expired.ExpiresAt = time.Now().Add(-time.Minute).Unix()
	expiredToken, err := echoapi.GenerateToken(expired, a.svcs.Conf.SecretKey)
	assert.NoError(t, err)

	roleless, err := echoapi.GenerateToken(echoapi.GetUserClaims(user.User{ID: "x"}, a.svcs.Conf), a.svcs.Conf.SecretKey)
	assert.NoError(t, err)

	orphan, err := echoapi.GenerateToken(echoapi.GetUserClaims(user.User{ID: "x", Role: user.RoleAcademy}, a.svcs.Conf), a.svcs.Conf.SecretKey)
	assert.NoError(t, err)

	forged, err := echoapi.GenerateToken(echoapi.GetUserClaims(testutil.Admin(), a.svcs.Conf), "not the secret")
	assert.NoError(t, err)

	invalid := marchallObj(t, httpErr{Error: "invalid or expired jwt"})
	tests := []httpTest{
		{name: "missing token", method: http.MethodGet, path: "/api/exams", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "expired token", method: http.MethodGet, path: "/api/exams", token: expiredToken, wantCode: http.StatusUnauthorized, wantData: invalid},
		{name: "token without role", method: http.MethodGet, path: "/api/exams", token: roleless, wantCode: http.StatusUnauthorized, wantData: invalid},
		{name: "academy token without academy", method: http.MethodGet, path: "/api/exams", token: orphan, wantCode: http.StatusUnauthorized, wantData: invalid},
		{name: "forged token", method: http.MethodGet, path: "/api/exams", token: forged, wantCode: http.StatusUnauthorized, wantData: invalid},
		{name: "valid token", method: http.MethodGet, path: "/api/exams", token: a.token(t, testutil.Student("s1")), wantCode: http.StatusOK, wantData: []byte(`[]`)},
		{name: "trailing slash", method: http.MethodGet, path: "/api/exams/", token: a.token(t, testutil.Student("s1")), wantCode: http.StatusOK, wantData: []byte(`[]`)},
	}
	runHTTPTests(t, a, tests)
}

func TestRoles(t *testing.T) {
	a := setup(t)
	student := a.token(t, testutil.Student("s1"))
	admin := a.token(t, testutil.Admin())
	forbidden := marchallObj(t, errForbidden)

	tests := []httpTest{
		{name: "students cannot author exams", method: http.MethodPost, path: "/api/exams", token: student, body: []byte(`{}`), wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "students cannot buy licenses", method: http.MethodGet, path: "/api/exam-purchases", token: student, wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "admins cannot buy licenses", method: http.MethodGet, path: "/api/exam-purchases", token: admin, wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "admins cannot start exams", method: http.MethodPut, path: "/api/enrollments/x/start", token: admin, wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "students cannot review", method: http.MethodPost, path: "/api/enrollments/x/review", token: student, body: []byte(`{}`), wantCode: http.StatusForbidden, wantData: forbidden},
	}
	runHTTPTests(t, a, tests)
}
