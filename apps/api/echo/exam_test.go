package echoapi_test

import (
	"bytes"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/examportal/core/exam"
	exportsvc "github.com/trezcool/examportal/services/export"
	testutil "github.com/trezcool/examportal/tests"
)

func TestExamAPI_Authoring(t *testing.T) {
	a := setup(t)
	acme := a.token(t, testutil.Academy("acme"))
	globex := a.token(t, testutil.Academy("globex"))
	student := a.token(t, testutil.Student("s1"))

	rec := a.do(t, http.MethodPost, "/api/exams", acme,
		[]byte(`{"title": " Go basics ", "duration_minutes": 30, "passing_score": 60, "price": 1000}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var e exam.Exam
	unmarshal(t, rec, &e)
	assert.Equal(t, "Go basics", e.Title)
	assert.Equal(t, "acme", e.AcademyID)
	assert.Equal(t, exam.StatusDraft, e.Status)

	examPath := "/api/exams/" + e.ID
	t.Run("validation", func(t *testing.T) {
		rec := a.do(t, http.MethodPost, "/api/exams", acme, []byte(`{"title": " ", "duration_minutes": 1, "passing_score": 60}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		fields := make(map[string]string)
		unmarshal(t, rec, &fields)
		assert.Contains(t, fields, "title")
		assert.Contains(t, fields, "duration_minutes")
		assert.NotContains(t, fields, "passing_score")
	})

	tests := []httpTest{
		{
			name:     "publishing requires questions",
			method:   http.MethodPost,
			path:     examPath + "/publish",
			token:    acme,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, ruleErr{
				Error: "an exam needs at least one question to be published",
				Code:  "exam_has_no_questions",
			}),
		},
		{
			name:     "drafts are hidden from students",
			method:   http.MethodGet,
			path:     examPath,
			token:    student,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "exam not found"}),
		},
		{
			name:     "other academies cannot add questions",
			method:   http.MethodPost,
			path:     examPath + "/questions",
			token:    globex,
			body:     []byte(`{"text": "Q", "type": "SHORT_ANSWER", "points": 1}`),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "true/false needs exactly one correct option",
			method:   http.MethodPost,
			path:     examPath + "/questions",
			token:    acme,
			body:     []byte(`{"text": "Q", "type": "TRUE_FALSE", "points": 1, "options": [{"text": "T", "is_correct": true}, {"text": "F", "is_correct": true}]}`),
			wantCode: http.StatusBadRequest,
		},
	}
	runHTTPTests(t, a, tests)

	rec = a.do(t, http.MethodPost, examPath+"/questions", acme,
		[]byte(`{"text": "2 + 2?", "type": "MULTIPLE_CHOICE", "points": 2, "options": [{"text": "3"}, {"text": "4", "is_correct": true}]}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var q exam.Question
	unmarshal(t, rec, &q)
	assert.Len(t, q.Options, 2)

	rec = a.do(t, http.MethodPost, examPath+"/questions", acme, []byte(`{"text": "Why?", "type": "SHORT_ANSWER", "points": 1}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var extra exam.Question
	unmarshal(t, rec, &extra)

	rec = a.do(t, http.MethodDelete, examPath+"/questions/"+extra.ID, acme)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = a.do(t, http.MethodPost, examPath+"/publish", acme)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	unmarshal(t, rec, &e)
	assert.Equal(t, exam.StatusPublished, e.Status)

	t.Run("published exams are frozen for academies", func(t *testing.T) {
		rec := a.do(t, http.MethodPut, examPath, acme, []byte(`{"title": "Renamed"}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		var body ruleErr
		unmarshal(t, rec, &body)
		assert.Equal(t, "exam_not_editable", body.Code)
	})

	t.Run("students do not see the answer key", func(t *testing.T) {
		rec := a.do(t, http.MethodGet, examPath+"/questions", student)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotContains(t, rec.Body.String(), "is_correct")
		var questions []exam.PublicQuestion
		unmarshal(t, rec, &questions)
		require.Len(t, questions, 1)
		assert.Len(t, questions[0].Options, 2)
	})

	t.Run("the owner sees the answer key", func(t *testing.T) {
		rec := a.do(t, http.MethodGet, examPath+"/questions", acme)
		require.Equal(t, http.StatusOK, rec.Code)
		var questions []exam.Question
		unmarshal(t, rec, &questions)
		require.Len(t, questions, 1)
		assert.True(t, questions[0].Options[1].IsCorrect)
	})
}

func TestExamAPI_Query(t *testing.T) {
	a := setup(t)
	for _, title := range []string{"Beta", "Alpha"} {
		testutil.CreateExamTitled(t, a.svcs.Exams, "acme", title, exam.StatusPublished)
	}
	testutil.CreateExamTitled(t, a.svcs.Exams, "acme", "Draft", exam.StatusDraft)
	testutil.CreateExamTitled(t, a.svcs.Exams, "globex", "Secret", exam.StatusDraft)

	tests := []struct {
		name  string
		token string
		query string
		want  []string
	}{
		{name: "students see published exams", token: a.token(t, testutil.Student("s1")), want: []string{"Alpha", "Beta"}},
		{name: "academies also see their drafts", token: a.token(t, testutil.Academy("acme")), want: []string{"Draft", "Alpha", "Beta"}},
		{name: "admins see everything", token: a.token(t, testutil.Admin()), want: []string{"Secret", "Draft", "Alpha", "Beta"}},
		{name: "ordering", token: a.token(t, testutil.Admin()), query: "?ordering=title", want: []string{"Alpha", "Beta", "Draft", "Secret"}},
		{name: "descending ordering", token: a.token(t, testutil.Admin()), query: "?ordering=-title", want: []string{"Secret", "Draft", "Beta", "Alpha"}},
		{name: "search", token: a.token(t, testutil.Admin()), query: "?search=ALP", want: []string{"Alpha"}},
		{name: "status", token: a.token(t, testutil.Admin()), query: "?status=DRAFT&ordering=title", want: []string{"Draft", "Secret"}},
		{name: "academy", token: a.token(t, testutil.Admin()), query: "?academy_id=globex", want: []string{"Secret"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.do(t, http.MethodGet, "/api/exams"+tt.query, tt.token)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			var exams []exam.Exam
			unmarshal(t, rec, &exams)
			titles := make([]string, 0, len(exams))
			for _, e := range exams {
				titles = append(titles, e.Title)
			}
			assert.Equal(t, tt.want, titles)
		})
	}
}

func TestExamAPI_Results(t *testing.T) {
	a := setup(t)
	ex, questions := testutil.CreateExam(t, a.svcs.Exams, "acme", exam.StatusPublished, 0, 50, testutil.ChoiceQuestion("Q1", 1, 2, 0))
	student := testutil.Student("s1")
	takeExam(t, a, student, ex.ID, testutil.PickCorrect(questions[0]))

	acme := a.token(t, testutil.Academy("acme"))
	tests := []httpTest{
		{name: "other academies", method: http.MethodGet, path: "/api/exams/" + ex.ID + "/results", token: a.token(t, testutil.Academy("globex")), wantCode: http.StatusForbidden},
		{name: "students", method: http.MethodGet, path: "/api/exams/" + ex.ID + "/results", token: a.token(t, student), wantCode: http.StatusForbidden},
		{name: "unknown exam", method: http.MethodGet, path: "/api/exams/nope/results/export", token: acme, wantCode: http.StatusNotFound},
	}
	runHTTPTests(t, a, tests)

	rec := a.do(t, http.MethodGet, "/api/exams/"+ex.ID+"/results", acme)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"PASSED"`)

	rec = a.do(t, http.MethodGet, "/api/exams/"+ex.ID+"/results/export", acme)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, exportsvc.ContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "results-"+ex.ID+".xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(exportsvc.ResultsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "s1", rows[1][1])
	assert.Equal(t, "100", rows[1][6])
}
