package echoapi_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/examportal/core/enrollment"
	"github.com/trezcool/examportal/core/exam"
	"github.com/trezcool/examportal/core/grading"
	"github.com/trezcool/examportal/core/user"
	testutil "github.com/trezcool/examportal/tests"
)

func enroll(t *testing.T, a app, token string, body string) enrollment.Enrollment {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/enrollments", token, []byte(body))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var enr enrollment.Enrollment
	unmarshal(t, rec, &enr)
	return enr
}

// takeExam enrolls, starts and submits the exam as student.
func takeExam(t *testing.T, a app, student user.User, examID string, answers ...enrollment.AnswerInput) grading.Outcome {
	t.Helper()
	token := a.token(t, student)
	enr := enroll(t, a, token, `{"exam_id": "`+examID+`"}`)

	rec := a.do(t, http.MethodPut, "/api/enrollments/"+enr.ID+"/start", token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodPost, "/api/enrollments/"+enr.ID+"/submit", token, marchallObj(t, grading.SubmitRequest{Answers: answers}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out grading.Outcome
	unmarshal(t, rec, &out)
	return out
}

func TestEnrollmentAPI_TakingAnExam(t *testing.T) {
	a := setup(t)
	testutil.FreezeTime(t, time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC))
	ex, questions := testutil.CreateExam(t, a.svcs.Exams, "acme", exam.StatusPublished, 0, 60,
		testutil.ChoiceQuestion("Q1", 5, 3, 1),
		testutil.TrueFalseQuestion("Q2", 5, true),
	)
	student := testutil.Student("s1")
	token := a.token(t, student)
	other := a.token(t, testutil.Student("s2"))

	enr := enroll(t, a, token, `{"exam_id": "`+ex.ID+`"}`)
	assert.Equal(t, enrollment.StatusPurchased, enr.Status)
	assert.False(t, enr.IsAssigned)
	path := "/api/enrollments/" + enr.ID

	tests := []httpTest{
		{
			name:     "enrolling twice",
			method:   http.MethodPost,
			path:     "/api/enrollments",
			token:    token,
			body:     []byte(`{"exam_id": "` + ex.ID + `"}`),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "exam id is required",
			method:   http.MethodPost,
			path:     "/api/enrollments",
			token:    token,
			body:     []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"exam_id": "this field is required"}`),
		},
		{
			name:     "session before start",
			method:   http.MethodGet,
			path:     path + "/session",
			token:    token,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, ruleErr{Error: "operation not allowed in the current state", Code: "invalid_state_transition"}),
		},
		{name: "another student cannot start", method: http.MethodPut, path: path + "/start", token: other, wantCode: http.StatusForbidden},
		{name: "another student cannot look", method: http.MethodGet, path: path, token: other, wantCode: http.StatusForbidden},
		{name: "unknown enrollment", method: http.MethodPut, path: "/api/enrollments/nope/start", token: token, wantCode: http.StatusNotFound},
	}
	runHTTPTests(t, a, tests)

	rec := a.do(t, http.MethodPut, path+"/start", token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	unmarshal(t, rec, &enr)
	assert.Equal(t, enrollment.StatusStarted, enr.Status)
	assert.Equal(t, time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC), enr.Deadline.Time.UTC())

	rec = a.do(t, http.MethodPut, path+"/start", token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodPut, path+"/answers", token, marchallObj(t, testutil.PickCorrect(questions[0])))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodPut, path+"/answers", token, []byte(`{"question_id": "`+questions[0].ID+`"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodGet, path+"/session", token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var sess enrollment.Session
	unmarshal(t, rec, &sess)
	assert.Equal(t, int64(30*60), sess.RemainingSeconds)
	assert.Len(t, sess.Questions, 2)
	require.Len(t, sess.Answers, 1)
	assert.NotContains(t, rec.Body.String(), `"is_correct":true`)

	rec = a.do(t, http.MethodPost, path+"/submit", token, marchallObj(t, grading.SubmitRequest{
		Answers: []enrollment.AnswerInput{testutil.PickCorrect(questions[1])},
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out grading.Outcome
	unmarshal(t, rec, &out)
	assert.Equal(t, 100, out.Score)
	assert.True(t, out.Passed)
	assert.Equal(t, enrollment.StatusPassed, out.Enrollment.Status)
	require.NotNil(t, out.Certificate)
	assert.Equal(t, out.Certificate.ID, out.Enrollment.CertificateID.String)

	rec = a.do(t, http.MethodPost, path+"/submit", token, []byte(`{"answers": []}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	t.Run("scoped listing", func(t *testing.T) {
		rec := a.do(t, http.MethodGet, "/api/enrollments", other)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())

		rec = a.do(t, http.MethodGet, "/api/enrollments?status=PASSED", token)
		require.Equal(t, http.StatusOK, rec.Code)
		var enrs []enrollment.Enrollment
		unmarshal(t, rec, &enrs)
		require.Len(t, enrs, 1)
		assert.Equal(t, enr.ID, enrs[0].ID)
	})
}

func TestEnrollmentAPI_Assignment(t *testing.T) {
	a := setup(t)
	ex, _ := testutil.CreateExam(t, a.svcs.Exams, "acme", exam.StatusPublished, 1000, 50, testutil.ShortAnswerQuestion("Why?", 1))
	globex := a.token(t, testutil.Academy("globex"))

	rec := a.do(t, http.MethodPost, "/api/exam-purchases", globex, []byte(`{"exam_id": "`+ex.ID+`", "quantity": 2}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	first := enroll(t, a, globex, `{"exam_id": "`+ex.ID+`", "student_id": "s1"}`)
	assert.True(t, first.IsAssigned)
	assert.Equal(t, "globex", first.AssignedBy.String)
	enroll(t, a, globex, `{"exam_id": "`+ex.ID+`", "student_id": "s2"}`)

	tests := []httpTest{
		{
			name:     "out of licenses",
			method:   http.MethodPost,
			path:     "/api/enrollments",
			token:    globex,
			body:     []byte(`{"exam_id": "` + ex.ID + `", "student_id": "s3"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, ruleErr{Error: "no licenses remaining for this exam", Code: "no_remaining_quantity"}),
		},
		{
			name:     "student is required",
			method:   http.MethodPost,
			path:     "/api/enrollments",
			token:    globex,
			body:     []byte(`{"exam_id": "` + ex.ID + `"}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"student_id": "this field is required"}`),
		},
		{
			name:     "students cannot enroll others",
			method:   http.MethodPost,
			path:     "/api/enrollments",
			token:    a.token(t, testutil.Student("s9")),
			body:     []byte(`{"exam_id": "` + ex.ID + `", "student_id": "s3"}`),
			wantCode: http.StatusForbidden,
		},
		{
			name:     "the assigning academy removes an unstarted enrollment",
			method:   http.MethodDelete,
			path:     "/api/enrollments/" + first.ID,
			token:    globex,
			wantCode: http.StatusNoContent,
		},
		{
			name:     "removed",
			method:   http.MethodGet,
			path:     "/api/enrollments/" + first.ID,
			token:    globex,
			wantCode: http.StatusNotFound,
		},
	}
	runHTTPTests(t, a, tests)

	// licenses are not refunded
	rec = a.do(t, http.MethodGet, "/api/exam-purchases/can-assign?exam_id="+ex.ID, globex)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"can_assign":false`)
}

func TestEnrollmentAPI_Review(t *testing.T) {
	a := setup(t)
	ex, questions := testutil.CreateExam(t, a.svcs.Exams, "acme", exam.StatusPublished, 0, 50, testutil.ShortAnswerQuestion("Explain", 4))
	ex.ManualReview = true
	_, err := a.svcs.Exams.UpdateExam(context.Background(), ex)
	require.NoError(t, err)

	out := takeExam(t, a, testutil.Student("s1"), ex.ID, testutil.Write(questions[0], "Because."))
	assert.Equal(t, enrollment.StatusPendingReview, out.Enrollment.Status)
	assert.Nil(t, out.Certificate)
	path := "/api/enrollments/" + out.Enrollment.ID + "/review"

	grades := []byte(`{"grades": [{"question_id": "` + questions[0].ID + `", "is_correct": true}]}`)
	tests := []httpTest{
		{name: "other academies", method: http.MethodPost, path: path, token: a.token(t, testutil.Academy("globex")), body: grades, wantCode: http.StatusForbidden},
		{name: "grades are required", method: http.MethodPost, path: path, token: a.token(t, testutil.Academy("acme")), body: []byte(`{"grades": []}`), wantCode: http.StatusBadRequest},
	}
	runHTTPTests(t, a, tests)

	rec := a.do(t, http.MethodPost, path, a.token(t, testutil.Academy("acme")), grades)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	unmarshal(t, rec, &out)
	assert.Equal(t, enrollment.StatusPassed, out.Enrollment.Status)
	assert.Equal(t, 100, out.Score)
	require.NotNil(t, out.Certificate)

	rec = a.do(t, http.MethodPost, path, a.token(t, testutil.Admin()), grades)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
