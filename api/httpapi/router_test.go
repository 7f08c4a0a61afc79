package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	contractx "github.com/kalpit-S/ai-support-agent/agent/contract"
	repox "github.com/kalpit-S/ai-support-agent/agent/repository"
	statex "github.com/kalpit-S/ai-support-agent/agent/state"
	dbx "github.com/kalpit-S/ai-support-agent/pkg/database"
	metricsx "github.com/kalpit-S/ai-support-agent/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	handler http.Handler
	repo    *repox.Repository
	batches *statex.MemoryBatchRepository
	metrics *metricsx.Metrics
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := dbx.Open(dbx.Config{Driver: dbx.DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := repox.New(db)
	require.NoError(t, repo.CreateSchema(context.Background()))

	env := &testEnv{
		repo:    repo,
		batches: statex.NewMemoryBatchRepository(),
		metrics: metricsx.New(),
	}
	env.handler = NewRouter(Deps{Store: repo, Batches: env.batches, Metrics: env.metrics})
	return env
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestSMSWebhookQueuesMessages(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first := env.do(http.MethodPost, "/webhook/sms", `{"from":"+15551234567","body":"my gpu is dead"}`)
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())
	a := decode[WebhookResponse](t, first)
	assert.Equal(t, "received", a.Status)
	assert.NotZero(t, a.MessageID)
	assert.NotEmpty(t, a.BatchID)

	second := env.do(http.MethodPost, "/webhook/sms", `{"from":"+15551234567","body":"order ORD-1001"}`)
	require.Equal(t, http.StatusOK, second.Code)
	b := decode[WebhookResponse](t, second)
	assert.Equal(t, a.CustomerID, b.CustomerID)
	assert.Equal(t, a.BatchID, b.BatchID, "messages inside one window share a batch")

	batch, err := env.batches.GetBatch(ctx, a.CustomerID)
	require.NoError(t, err)
	assert.Equal(t, []int64{a.MessageID, b.MessageID}, batch.MessageIDs)

	msgs, err := env.repo.MessagesByIDs(ctx, a.CustomerID, batch.MessageIDs)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	for _, m := range msgs {
		assert.Equal(t, a.BatchID, m.BatchID)
		assert.Equal(t, "sms", m.Channel)
		assert.Equal(t, "inbound", m.Direction)
	}

	assert.Equal(t, float64(2), testutil.ToFloat64(env.metrics.WebhookMessages.WithLabelValues("sms")))
}

func TestEmailWebhookKeepsSubject(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/webhook/email", `{"from_email":"kal@example.com","subject":"DOA card","body":"It won't post."}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[WebhookResponse](t, rec)

	msgs, err := env.repo.ListMessages(context.Background(), resp.CustomerID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "email", msgs[0].Channel)
	assert.Equal(t, "It won't post.", msgs[0].Content)
	assert.Equal(t, "DOA card", msgs[0].Metadata["subject"])
}

func TestWebhookRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		path string
		body string
	}{
		{path: "/webhook/sms", body: `not json`},
		{path: "/webhook/sms", body: `{"body":"hi"}`},
		{path: "/webhook/sms", body: `{"from":"+1555","body":"  "}`},
		{path: "/webhook/email", body: `{"from_email":"nobody","body":"hi"}`},
		{path: "/webhook/email", body: `{"from_email":"a@b.c"}`},
	}
	for _, tc := range cases {
		rec := env.do(http.MethodPost, tc.path, tc.body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, tc.body)
		assert.Contains(t, decode[map[string]string](t, rec), "error")
	}

	ids, err := env.batches.ListActiveCustomerIDs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

type failingBatches struct{ contractx.BatchRepository }

func (failingBatches) AppendMessage(context.Context, int64, int64, time.Time) (string, error) {
	return "", errors.New("redis unreachable")
}

func TestWebhookReportsQueueFailure(t *testing.T) {
	env := newTestEnv(t)
	handler := NewRouter(Deps{Store: env.repo, Batches: failingBatches{}})

	req := httptest.NewRequest(http.MethodPost, "/webhook/sms", strings.NewReader(`{"from":"+15550000000","body":"hi"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestDebugRoutes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.repo.Seed(ctx, repox.NewDemoData()))

	resp := decode[WebhookResponse](t, env.do(http.MethodPost, "/webhook/sms", `{"from":"+15551234567","body":"hello"}`))
	require.NoError(t, env.repo.CreateTicket(ctx, &repox.Ticket{CustomerID: resp.CustomerID, Number: "TKT-1", Severity: "high"}))

	customers := decode[[]repox.Customer](t, env.do(http.MethodGet, "/customers?limit=10", ""))
	require.Len(t, customers, 1)

	rec := env.do(http.MethodGet, "/customers/"+itoa(resp.CustomerID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	withMsgs := decode[repox.Customer](t, rec)
	assert.Len(t, withMsgs.Messages, 1)

	msgs := decode[[]repox.Message](t, env.do(http.MethodGet, "/messages/"+itoa(resp.CustomerID)+"?limit=5", ""))
	assert.Len(t, msgs, 1)

	articles := decode[[]repox.KnowledgeBaseArticle](t, env.do(http.MethodGet, "/articles?status=published", ""))
	assert.NotEmpty(t, articles)

	article := decode[repox.KnowledgeBaseArticle](t, env.do(http.MethodGet, "/articles/KB002", ""))
	assert.Equal(t, "KB002", article.ArticleID)

	tickets := decode[[]repox.Ticket](t, env.do(http.MethodGet, "/tickets/"+itoa(resp.CustomerID), ""))
	require.Len(t, tickets, 1)
	assert.Equal(t, "TKT-1", tickets[0].Number)

	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/customers/999", "").Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/messages/999", "").Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/tickets/999", "").Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/articles/KB999", "").Code)
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/customers/abc", "").Code)
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/customers?limit=-1", "").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(http.MethodPost, "/webhook/email", `{"from_email":"kal@example.com","body":"hi"}`)

	rec := env.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "webhook_messages_total")
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
