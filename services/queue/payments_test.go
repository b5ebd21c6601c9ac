package queuesvc_test

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/examportal/core/exam"
	"github.com/trezcool/examportal/core/ledger"
	queuesvc "github.com/trezcool/examportal/services/queue"
	testutil "github.com/trezcool/examportal/tests"
)

// fakeRedis keeps lists in memory. LPush prepends and BRPop pops from the tail, as redis does.
type fakeRedis struct {
	redis.Cmdable

	mu    sync.Mutex
	lists map[string][]string
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{lists: make(map[string][]string)}
}

func (f *fakeRedis) LPush(_ context.Context, key string, values ...interface{}) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range values {
		var s string
		switch val := v.(type) {
		case []byte:
			s = string(val)
		case string:
			s = val
		}
		f.lists[key] = append([]string{s}, f.lists[key]...)
	}
	return redis.NewIntResult(int64(len(f.lists[key])), nil)
}

func (f *fakeRedis) BRPop(ctx context.Context, _ time.Duration, keys ...string) *redis.StringSliceCmd {
	f.mu.Lock()
	for _, key := range keys {
		if list := f.lists[key]; len(list) > 0 {
			last := list[len(list)-1]
			f.lists[key] = list[:len(list)-1]
			f.mu.Unlock()
			return redis.NewStringSliceResult([]string{key, last}, nil)
		}
	}
	f.mu.Unlock()

	select {
	case <-ctx.Done():
	case <-time.After(10 * time.Millisecond):
	}
	return redis.NewStringSliceResult(nil, redis.Nil)
}

func (f *fakeRedis) list(key string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.lists[key]...)
}

func payment(t *testing.T, pc ledger.PaymentConfirmation) []byte {
	t.Helper()
	data, err := json.Marshal(pc)
	require.NoError(t, err)
	return data
}

func TestPaymentConsumer_Process(t *testing.T) {
	svcs := testutil.PrepareServices(t)
	ex, _ := testutil.CreateExam(t, svcs.Exams, "acme", exam.StatusPublished, 1000, 50, testutil.ShortAnswerQuestion("Why?", 1))
	draft, _ := testutil.CreateExam(t, svcs.Exams, "acme", exam.StatusDraft, 1000, 50)

	rdb := newFakeRedis()
	consumer := queuesvc.NewPaymentConsumer(rdb, svcs.LedgerSvc, svcs.Logger, svcs.Conf)
	dlq := svcs.Conf.Redis.PaymentQueue + svcs.Conf.Redis.DLQSuffix
	ctx := context.Background()

	tests := []struct {
		name         string
		msg          []byte
		wantQuantity int
		wantDLQ      int
	}{
		{
			name:         "applied",
			msg:          payment(t, ledger.PaymentConfirmation{ExamID: ex.ID, AcademyID: "globex", Quantity: 4, PaymentID: "pay_1"}),
			wantQuantity: 4,
		},
		{
			name:         "redelivery is ignored",
			msg:          payment(t, ledger.PaymentConfirmation{ExamID: ex.ID, AcademyID: "globex", Quantity: 4, PaymentID: "pay_1"}),
			wantQuantity: 4,
		},
		{
			name:         "another payment accumulates",
			msg:          payment(t, ledger.PaymentConfirmation{ExamID: ex.ID, AcademyID: "globex", Quantity: 1, PaymentID: "pay_2"}),
			wantQuantity: 5,
		},
		{
			name:         "malformed",
			msg:          []byte(`{"exam_id": 42`),
			wantQuantity: 5,
			wantDLQ:      1,
		},
		{
			name:         "missing payment id",
			msg:          payment(t, ledger.PaymentConfirmation{ExamID: ex.ID, AcademyID: "globex", Quantity: 1}),
			wantQuantity: 5,
			wantDLQ:      2,
		},
		{
			name:         "draft exam",
			msg:          payment(t, ledger.PaymentConfirmation{ExamID: draft.ID, AcademyID: "globex", Quantity: 1, PaymentID: "pay_3"}),
			wantQuantity: 5,
			wantDLQ:      3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			consumer.Process(ctx, tt.msg)

			p, err := svcs.Purchases.FindPurchase(ctx, "globex", ex.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantQuantity, p.Quantity)
			assert.Len(t, rdb.list(dlq), tt.wantDLQ)
		})
	}

	// the dead letter list keeps the original message
	assert.Equal(t, `{"exam_id": 42`, rdb.list(dlq)[2])
}

func TestPaymentConsumer_Run(t *testing.T) {
	svcs := testutil.PrepareServices(t)
	ex, _ := testutil.CreateExam(t, svcs.Exams, "acme", exam.StatusPublished, 500, 50, testutil.ShortAnswerQuestion("Why?", 1))

	rdb := newFakeRedis()
	for i, id := range []string{"pay_1", "pay_2", "pay_1"} {
		pc := ledger.PaymentConfirmation{ExamID: ex.ID, AcademyID: "globex", Quantity: i + 1, PaymentID: id}
		require.NoError(t, queuesvc.EnqueuePayment(context.Background(), rdb, svcs.Conf, pc))
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		done <- queuesvc.NewPaymentConsumer(rdb, svcs.LedgerSvc, svcs.Logger, svcs.Conf).Run(ctx)
	}()

	assert.Eventually(t, func() bool {
		p, err := svcs.Purchases.FindPurchase(context.Background(), "globex", ex.ID)
		return err == nil && p.Quantity == 3 && len(rdb.list(svcs.Conf.Redis.PaymentQueue)) == 0
	}, time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	p, err := svcs.Purchases.FindPurchase(context.Background(), "globex", ex.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Quantity)
	assert.Equal(t, int64(1500), p.TotalPrice)
	assert.Empty(t, rdb.list(svcs.Conf.Redis.PaymentQueue+svcs.Conf.Redis.DLQSuffix))

	var stopped bool
	for _, msg := range svcs.Logger.Messages {
		stopped = stopped || strings.HasSuffix(msg, "payment consumer stopped")
	}
	assert.True(t, stopped)
}
