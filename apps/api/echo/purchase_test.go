package echoapi_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/examportal/apps/api/echo"
	"github.com/trezcool/examportal/core/exam"
	"github.com/trezcool/examportal/core/ledger"
	testutil "github.com/trezcool/examportal/tests"
)

func TestPurchaseAPI(t *testing.T) {
	a := setup(t)
	ex, _ := testutil.CreateExam(t, a.svcs.Exams, "acme", exam.StatusPublished, 500, 50, testutil.ShortAnswerQuestion("Why?", 1))
	draft, _ := testutil.CreateExam(t, a.svcs.Exams, "acme", exam.StatusDraft, 500, 50)
	free, _ := testutil.CreateExam(t, a.svcs.Exams, "acme", exam.StatusPublished, 0, 50)
	globex := a.token(t, testutil.Academy("globex"))
	initech := a.token(t, testutil.Academy("initech"))

	buy := func(body string) ledger.Purchase {
		rec := a.do(t, http.MethodPost, "/api/exam-purchases", globex, []byte(body))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var p ledger.Purchase
		unmarshal(t, rec, &p)
		return p
	}
	first := buy(`{"exam_id": "` + ex.ID + `", "quantity": 1}`)
	p := buy(`{"exam_id": "` + ex.ID + `", "quantity": 2}`)
	assert.Equal(t, first.ID, p.ID)
	assert.Equal(t, 3, p.Quantity)
	assert.Equal(t, int64(1500), p.TotalPrice)
	assert.Equal(t, ledger.StatusActive, p.Status)

	tests := []httpTest{
		{
			name:     "students cannot buy",
			method:   http.MethodPost,
			path:     "/api/exam-purchases",
			token:    a.token(t, testutil.Student("s1")),
			body:     []byte(`{"exam_id": "` + ex.ID + `", "quantity": 1}`),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "quantity must be positive",
			method:   http.MethodPost,
			path:     "/api/exam-purchases",
			token:    globex,
			body:     []byte(`{"exam_id": "` + ex.ID + `", "quantity": 0}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, ruleErr{Error: "quantity must be at least 1", Code: "invalid_quantity"}),
		},
		{
			name:     "exam is required",
			method:   http.MethodPost,
			path:     "/api/exam-purchases",
			token:    globex,
			body:     []byte(`{"exam_id": "  ", "quantity": 1}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"exam_id": "this field is required"}`),
		},
		{
			name:     "purchase is required",
			method:   http.MethodPost,
			path:     "/api/exam-purchases/increment-used",
			token:    globex,
			body:     []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"purchase_id": "this field is required"}`),
		},
		{
			name:     "drafts are not for sale",
			method:   http.MethodPost,
			path:     "/api/exam-purchases",
			token:    globex,
			body:     []byte(`{"exam_id": "` + draft.ID + `", "quantity": 1}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, ruleErr{Error: "only published exams with a price can be purchased", Code: "exam_not_purchasable"}),
		},
		{
			name:     "free exams are not for sale",
			method:   http.MethodPost,
			path:     "/api/exam-purchases",
			token:    globex,
			body:     []byte(`{"exam_id": "` + free.ID + `", "quantity": 1}`),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "another academy cannot use the purchase",
			method:   http.MethodPost,
			path:     "/api/exam-purchases/increment-used",
			token:    initech,
			body:     []byte(`{"purchase_id": "` + p.ID + `"}`),
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "exam purchase not found"}),
		},
		{
			name:     "nothing bought yet",
			method:   http.MethodGet,
			path:     "/api/exam-purchases/can-assign?exam_id=" + ex.ID,
			token:    initech,
			wantCode: http.StatusOK,
			wantData: []byte(`{"can_assign": false, "remaining_quantity": 0, "purchase": null}`),
		},
		{
			name:     "listing is scoped to the academy",
			method:   http.MethodGet,
			path:     "/api/exam-purchases",
			token:    initech,
			wantCode: http.StatusOK,
			wantData: []byte(`[]`),
		},
	}
	runHTTPTests(t, a, tests)

	for want := 2; want >= 0; want-- {
		rec := a.do(t, http.MethodPost, "/api/exam-purchases/increment-used", globex, []byte(`{"purchase_id": "`+p.ID+`"}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp echoapi.IncrementUsedResponse
		unmarshal(t, rec, &resp)
		assert.True(t, resp.Success)
		assert.Equal(t, want, resp.Purchase.Remaining())
	}

	rec := a.do(t, http.MethodPost, "/api/exam-purchases/increment-used", globex, []byte(`{"purchase_id": "`+p.ID+`"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body ruleErr
	unmarshal(t, rec, &body)
	assert.Equal(t, "no_remaining_quantity", body.Code)

	rec = a.do(t, http.MethodGet, "/api/exam-purchases/can-assign?exam_id="+ex.ID, globex)
	require.Equal(t, http.StatusOK, rec.Code)
	var av ledger.Availability
	unmarshal(t, rec, &av)
	assert.False(t, av.CanAssign)
	require.NotNil(t, av.Purchase)
	assert.Equal(t, 3, av.Purchase.UsedQuantity)

	rec = a.do(t, http.MethodGet, "/api/exam-purchases", globex)
	require.Equal(t, http.StatusOK, rec.Code)
	var purchases []ledger.Purchase
	unmarshal(t, rec, &purchases)
	require.Len(t, purchases, 1)
	assert.Equal(t, p.ID, purchases[0].ID)
}
