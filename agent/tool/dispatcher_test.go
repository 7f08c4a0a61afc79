package tool

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	contractx "github.com/kalpit-S/ai-support-agent/agent/contract"
	repox "github.com/kalpit-S/ai-support-agent/agent/repository"
	metricsx "github.com/kalpit-S/ai-support-agent/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 3, 4, 15, 4, 0, 0, time.UTC)

func newTestSession(t *testing.T, customerID int64, opts ...Option) (contractx.ToolSession, *MemoryCatalog) {
	t.Helper()

	catalog := NewMemoryCatalog(repox.NewDemoData())
	opts = append([]Option{
		WithClock(func() time.Time { return fixedNow }),
		WithTicketSuffix(func() string { return "ABCD" }),
	}, opts...)
	d, err := NewDispatcher(catalog, opts...)
	require.NoError(t, err)
	return d.Begin(customerID), catalog
}

func call(name string, args map[string]any) contractx.ToolCall {
	return contractx.ToolCall{ID: "call_1", Name: name, Arguments: args}
}

func toJSON(t *testing.T, v any) string {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return string(raw)
}

func TestExecuteUnknownTool(t *testing.T) {
	s, _ := newTestSession(t, 1)
	res := s.Execute(context.Background(), call("delete_everything", nil))
	assert.Equal(t, "unknown tool: delete_everything", res.ErrorMessage())
}

func TestExecuteRejectsInvalidArguments(t *testing.T) {
	s, _ := newTestSession(t, 1)

	res := s.Execute(context.Background(), call("lookup_order", map[string]any{}))
	require.True(t, res.IsError())
	assert.Contains(t, res.ErrorMessage(), "invalid arguments for lookup_order")

	res = s.Execute(context.Background(), call("process_refund", map[string]any{
		"order_number": "1002", "reason": "doa", "amount": "lots",
	}))
	assert.Contains(t, res.ErrorMessage(), "invalid arguments for process_refund")
}

func TestExecuteIgnoresNullOptionalArguments(t *testing.T) {
	s, _ := newTestSession(t, 1)
	res := s.Execute(context.Background(), call("check_inventory", map[string]any{
		"sku": "gpu-rtx4090", "product_name": nil,
	}))
	require.False(t, res.IsError(), res.ErrorMessage())
	assert.Equal(t, "GPU-RTX4090", res["sku"])
}

func TestLookupOrder(t *testing.T) {
	s, _ := newTestSession(t, 1)

	res := s.Execute(context.Background(), call("lookup_order", map[string]any{"order_number": "1001"}))
	require.False(t, res.IsError())
	assert.Equal(t, "ORD-1001", res["order_number"])
	assert.Equal(t, "delivered", res["status"])
	assert.Equal(t, 1, res["item_count"])
	assert.Equal(t, "1Z999AA10123456784", res["tracking_number"])
	assert.Equal(t, "500 Congress Ave, Austin, TX 78701", res["shipping_address"])
	assert.Equal(t, "Order ORD-1001: delivered - $1599.99", res["message"])
	assert.Contains(t, toJSON(t, res), `"total":1599.99`)
	assert.Contains(t, toJSON(t, res), `"unit_price":1599.99`)

	res = s.Execute(context.Background(), call("lookup_order", map[string]any{"order_number": "ord-9999"}))
	assert.Equal(t, "Order ORD-9999 not found", res.ErrorMessage())
	assert.Equal(t, "Please verify the order number and try again.", res["suggestion"])
}

func TestCheckInventory(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSession(t, 1)

	res := s.Execute(ctx, call("check_inventory", map[string]any{"sku": "GPU-RTX4090"}))
	assert.Equal(t, "low_stock", res["stock_status"])
	assert.Equal(t, 5, res["quantity"])
	assert.Equal(t, "NVIDIA GeForce RTX 4090 24GB: 5 in stock (low_stock)", res["message"])

	res = s.Execute(ctx, call("check_inventory", map[string]any{"sku": "GPU-RTX4080"}))
	assert.Equal(t, "out_of_stock", res["stock_status"])

	res = s.Execute(ctx, call("check_inventory", map[string]any{"product_name": "Ryzen 7"}))
	assert.Equal(t, "CPU-7800X3D", res["sku"])
	assert.Equal(t, "in_stock", res["stock_status"])

	res = s.Execute(ctx, call("check_inventory", map[string]any{"sku": "MB-X670E"}))
	assert.Equal(t, 0, res["quantity"])
	assert.Equal(t, 5, res["low_stock_threshold"])
	assert.Equal(t, "main", res["warehouse"])
	assert.Equal(t, "out_of_stock", res["stock_status"])

	res = s.Execute(ctx, call("check_inventory", map[string]any{"sku": "unknown-sku"}))
	assert.Equal(t, "Product not found: UNKNOWN-SKU", res.ErrorMessage())
	assert.Equal(t, "Try searching with a different SKU or product name.", res["suggestion"])
}

func TestProcessRefundApprovalThreshold(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSession(t, 1)

	res := s.Execute(ctx, call("process_refund", map[string]any{"order_number": "ORD-1001", "reason": "doa"}))
	assert.Equal(t, false, res["success"])
	assert.Equal(t, true, res["needs_approval"])
	assert.Equal(t, "Refund of $1599.99 requires manager approval (over $500). Escalating to support team.", res["message"])

	res = s.Execute(ctx, call("process_refund", map[string]any{"order_number": "ORD-1002", "reason": "customer_request"}))
	assert.Equal(t, true, res["success"])
	assert.Equal(t, "full", res["refund_type"])
	assert.Equal(t, "Refund of $349.99 initiated for ORD-1002. Customer will see it in 3-5 business days.", res["message"])

	res = s.Execute(ctx, call("process_refund", map[string]any{"order_number": "ORD-1001", "reason": "damaged box", "amount": 100.0}))
	assert.Equal(t, true, res["success"])
	assert.Equal(t, "partial", res["refund_type"])
	assert.Contains(t, toJSON(t, res), `"refund_amount":100.00`)
	assert.Contains(t, toJSON(t, res), `"original_total":1599.99`)

	res = s.Execute(ctx, call("process_refund", map[string]any{"order_number": "ORD-1003", "reason": "again"}))
	assert.Equal(t, "Order ORD-1003 has already been refunded", res.ErrorMessage())
	assert.Equal(t, "refunded", res["status"])

	res = s.Execute(ctx, call("process_refund", map[string]any{"order_number": "ORD-4040", "reason": "x"}))
	assert.Equal(t, "Order ORD-4040 not found", res.ErrorMessage())
}

func TestUpdateOrderStatus(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSession(t, 1)

	res := s.Execute(ctx, call("update_order_status", map[string]any{"order_number": "ORD-1002", "status": "lost"}))
	assert.Equal(t, "Invalid status. Must be one of: processing, shipped, delivered, cancelled", res.ErrorMessage())

	res = s.Execute(ctx, call("update_order_status", map[string]any{"order_number": "ORD-1002", "status": "Shipped"}))
	assert.Equal(t, "Tracking number required when marking order as shipped", res.ErrorMessage())

	res = s.Execute(ctx, call("update_order_status", map[string]any{
		"order_number": "ORD-1002", "status": "shipped", "tracking_number": "1Z1", "carrier": "UPS",
	}))
	assert.Equal(t, "processing", res["previous_status"])
	assert.Equal(t, "shipped", res["new_status"])
	assert.Equal(t, "Order ORD-1002 updated: processing → shipped (tracking: 1Z1)", res["message"])
}

func TestCreateReturnLabel(t *testing.T) {
	s, _ := newTestSession(t, 1)

	res := s.Execute(context.Background(), call("create_return_label", map[string]any{"order_number": "ORD-1001"}))
	assert.Equal(t, "RTN-1001-1504", res["return_label_id"])
	assert.Equal(t, "USPS", res["carrier"])
	assert.Equal(t, "Macrocenter Returns, 123 Warehouse Way, Austin TX 78701", res["return_address"])
	assert.Contains(t, res["message"], "at any UPS location.")

	res = s.Execute(context.Background(), call("create_return_label", map[string]any{"order_number": "ORD-9999"}))
	assert.True(t, res.IsError())
}

func TestSearchKnowledgeBaseRanking(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSession(t, 1)

	res := s.Execute(ctx, call("search_knowledge_base", map[string]any{"query": "PSU power GPU"}))
	articles, ok := res["articles"].([]articleMatch)
	require.True(t, ok)
	require.NotEmpty(t, articles)
	assert.Equal(t, "KB002", articles[0].ArticleID)
	assert.Equal(t, "Found 1 relevant article(s)", res["message"])

	res = s.Execute(ctx, call("search_knowledge_base", map[string]any{"query": "return", "category": "RETURNS"}))
	articles = res["articles"].([]articleMatch)
	require.NotEmpty(t, articles)
	assert.Equal(t, "KB003", articles[0].ArticleID)
	for _, a := range articles {
		assert.Equal(t, "returns", a.Category)
	}

	res = s.Execute(ctx, call("search_knowledge_base", map[string]any{"query": "return", "category": "compatibility"}))
	assert.Equal(t, 0, res["found"])
	assert.Equal(t, "No matching articles found", res["message"])
}

func TestScoreArticleAndSummary(t *testing.T) {
	a := &repox.KnowledgeBaseArticle{
		Title:    "GPU Power Requirements & PSU Guide",
		Content:  "RTX 4090 requires 850W minimum PSU.",
		Metadata: repox.ArticleMetadata{Tags: []string{"gpu", "psu", "power"}},
	}
	// title 3*3, body psu 1, tags 3*2
	assert.Equal(t, 16, scoreArticle(a, []string{"psu", "power", "gpu"}))

	long := make([]rune, 200)
	for i := range long {
		long[i] = 'a'
	}
	assert.Len(t, []rune(summarize(string(long))), 153)
	assert.Equal(t, "short", summarize("short"))
}

func TestEscalateToHuman(t *testing.T) {
	ctx := context.Background()
	s, catalog := newTestSession(t, 42)

	s.Execute(ctx, call("save_customer_info", map[string]any{"issue_type": "refund"}))
	res := s.Execute(ctx, call("escalate_to_human", map[string]any{"reason": "refund over limit", "priority": "urgent"}))
	assert.Equal(t, "TKT-42-202503041504-ABCD", res["ticket_number"])
	assert.Equal(t, "within 1 hour", res["expected_response"])
	assert.Equal(t, "Escalated to support team. Ticket: TKT-42-202503041504-ABCD. A human agent will respond within 1 hour.", res["message"])

	tickets := catalog.Tickets()
	require.Len(t, tickets, 1)
	assert.Equal(t, "refund", tickets[0].IssueType)
	assert.Equal(t, "urgent", tickets[0].Severity)

	anon, anonCatalog := newTestSession(t, 0)
	res = anon.Execute(ctx, call("escalate_to_human", map[string]any{"reason": "x", "priority": "whenever"}))
	assert.Equal(t, "TKT-NEW-202503041504-ABCD", res["ticket_number"])
	assert.Equal(t, "within 24 hours", res["expected_response"])
	assert.Equal(t, "whenever", res["priority"])
	assert.Empty(t, anonCatalog.Tickets())
}

func TestSaveCustomerInfoAccumulates(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSession(t, 1)

	res := s.Execute(ctx, call("save_customer_info", map[string]any{"first_name": "Kal", "issue_type": "doa"}))
	assert.Equal(t, "Saved: name: Kal, issue: doa", res["message"])

	res = s.Execute(ctx, call("save_customer_info", map[string]any{"issue_type": "refund", "company_name": "Kal PCs"}))
	assert.Equal(t, []string{"store: Kal PCs", "issue: refund"}, res["saved"])

	res = s.Execute(ctx, call("save_customer_info", map[string]any{}))
	assert.Equal(t, true, res["success"])
	assert.Equal(t, "No new information to save", res["message"])

	upd := s.ProfileUpdates()
	assert.Equal(t, map[string]any{"issue_type": "refund"}, upd.Extracted)
	assert.Equal(t, map[string]string{"first_name": "Kal", "company_name": "Kal PCs"}, upd.Columns)
}

type failingCatalog struct {
	*MemoryCatalog
}

func (failingCatalog) OrderByNumber(context.Context, string) (*repox.Order, error) {
	return nil, errors.New("database is down")
}

func (failingCatalog) PublishedArticles(context.Context) ([]*repox.KnowledgeBaseArticle, error) {
	panic("boom")
}

func TestExecuteTurnsFailuresIntoResults(t *testing.T) {
	m := metricsx.New()
	d, err := NewDispatcher(failingCatalog{NewMemoryCatalog(repox.NewDemoData())}, WithMetrics(m))
	require.NoError(t, err)
	s := d.Begin(1)

	res := s.Execute(context.Background(), call("lookup_order", map[string]any{"order_number": "1"}))
	assert.Equal(t, "database is down", res.ErrorMessage())

	res = s.Execute(context.Background(), call("search_knowledge_base", map[string]any{"query": "gpu"}))
	assert.Equal(t, "search_knowledge_base failed: boom", res.ErrorMessage())

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ToolCalls.WithLabelValues("lookup_order", metricsx.StatusError))+
		testutil.ToFloat64(m.ToolCalls.WithLabelValues("search_knowledge_base", metricsx.StatusError)))
}
