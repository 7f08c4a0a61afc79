package tool

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	contractx "github.com/kalpit-S/ai-support-agent/agent/contract"
	repox "github.com/kalpit-S/ai-support-agent/agent/repository"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var (
	refundApprovalLimit = decimal.NewFromInt(500)

	validOrderStatuses = []string{"processing", "shipped", "delivered", "cancelled"}

	responseTimes = map[string]string{
		"normal": "within 24 hours",
		"high":   "within 4 hours",
		"urgent": "within 1 hour",
	}
)

const (
	defaultResponseTime = "within 24 hours"
	maxArticles         = 5
	summaryLength       = 150
	returnAddress       = "Macrocenter Returns, 123 Warehouse Way, Austin TX 78701"
)

func orderNotFound(number string) contractx.ToolResult {
	return contractx.ErrorResult(fmt.Sprintf("Order %s not found", number))
}

func (s *Session) saveCustomerInfo(args map[string]any) contractx.ToolResult {
	saved := make([]string, 0, 5)

	if v := argString(args, "first_name"); v != "" {
		s.columns["first_name"] = v
		saved = append(saved, "name: "+v)
	}
	if v := argString(args, "company_name"); v != "" {
		s.columns["company_name"] = v
		saved = append(saved, "store: "+v)
	}
	if v := argString(args, "issue_type"); v != "" {
		s.extracted["issue_type"] = v
		saved = append(saved, "issue: "+v)
	}
	if v := argString(args, "order_number"); v != "" {
		s.extracted["order_number"] = v
		saved = append(saved, "order: "+v)
	}
	if v := argString(args, "severity"); v != "" {
		s.extracted["severity"] = v
		saved = append(saved, "severity: "+v)
	}

	msg := "No new information to save"
	if len(saved) > 0 {
		msg = "Saved: " + strings.Join(saved, ", ")
	}
	return contractx.ToolResult{
		"success": true,
		"saved":   saved,
		"message": msg,
	}
}

func (s *Session) lookupOrder(ctx context.Context, args map[string]any) (contractx.ToolResult, error) {
	number := NormalizeOrderNumber(argString(args, "order_number"))
	order, err := s.d.catalog.OrderByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if order == nil {
		res := orderNotFound(number)
		res["suggestion"] = "Please verify the order number and try again."
		return res, nil
	}

	items := make([]map[string]any, 0, len(order.Items))
	for _, it := range order.Items {
		items = append(items, map[string]any{
			"sku":        it.SKU,
			"name":       it.ProductName,
			"quantity":   it.Quantity,
			"unit_price": NewMoney(it.UnitPrice),
		})
	}

	createdAt := ""
	if !order.CreatedAt.IsZero() {
		createdAt = order.CreatedAt.UTC().Format(time.RFC3339)
	}
	total := NewMoney(order.Total)

	return contractx.ToolResult{
		"order_number":     number,
		"status":           order.Status,
		"total":            total,
		"items":            items,
		"item_count":       len(items),
		"customer_name":    nilIfEmpty(order.CustomerName),
		"customer_email":   nilIfEmpty(order.CustomerEmail),
		"shipping_address": order.ShippingAddress.String(),
		"tracking_number":  nilIfEmpty(order.TrackingNumber),
		"carrier":          nilIfEmpty(order.Carrier),
		"notes":            nilIfEmpty(order.Notes),
		"created_at":       createdAt,
		"message":          fmt.Sprintf("Order %s: %s - %s", number, order.Status, total.Dollars()),
	}, nil
}

func (s *Session) checkInventory(ctx context.Context, args map[string]any) (contractx.ToolResult, error) {
	sku := strings.ToUpper(argString(args, "sku"))
	name := strings.ToLower(argString(args, "product_name"))

	var (
		product *repox.Product
		err     error
	)
	if sku != "" {
		if product, err = s.d.catalog.ProductBySKU(ctx, sku); err != nil {
			return nil, err
		}
	}
	if product == nil && name != "" {
		if product, err = s.d.catalog.ProductByName(ctx, name); err != nil {
			return nil, err
		}
	}
	if product == nil {
		key := sku
		if key == "" {
			key = name
		}
		return contractx.ToolResult{
			"error":      "Product not found: " + key,
			"suggestion": "Try searching with a different SKU or product name.",
		}, nil
	}

	inv, err := s.d.catalog.InventoryFor(ctx, product.ID)
	if err != nil {
		return nil, err
	}
	stock := repox.Inventory{Quantity: 0, LowStockThreshold: 5, Warehouse: "main"}
	if inv != nil {
		stock = *inv
		if stock.Warehouse == "" {
			stock.Warehouse = "main"
		}
	}
	status := stock.StockStatus()

	return contractx.ToolResult{
		"sku":                 product.SKU,
		"name":                product.Name,
		"price":               NewMoney(product.Price),
		"category":            nilIfEmpty(product.Category),
		"quantity":            stock.Quantity,
		"warehouse":           stock.Warehouse,
		"low_stock_threshold": stock.LowStockThreshold,
		"stock_status":        status,
		"message":             fmt.Sprintf("%s: %d in stock (%s)", product.Name, stock.Quantity, status),
	}, nil
}

func (s *Session) processRefund(ctx context.Context, args map[string]any) (contractx.ToolResult, error) {
	number := NormalizeOrderNumber(argString(args, "order_number"))
	reason := argString(args, "reason")
	if reason == "" {
		reason = "customer_request"
	}

	order, err := s.d.catalog.OrderByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return orderNotFound(number), nil
	}
	if order.Status == "refunded" {
		return contractx.ToolResult{
			"error":  fmt.Sprintf("Order %s has already been refunded", number),
			"status": "refunded",
		}, nil
	}

	total := NewMoney(order.Total)
	amount := total
	partial := false
	if v, ok := argFloat(args, "amount"); ok && v > 0 {
		amount = MoneyFromFloat(v)
		partial = true
	}

	if amount.GreaterThan(refundApprovalLimit) {
		return contractx.ToolResult{
			"success":        false,
			"needs_approval": true,
			"order_number":   number,
			"refund_amount":  amount,
			"reason":         reason,
			"message":        fmt.Sprintf("Refund of %s requires manager approval (over $500). Escalating to support team.", amount.Dollars()),
		}, nil
	}

	refundType := "full"
	if partial {
		refundType = "partial"
	}
	return contractx.ToolResult{
		"success":        true,
		"order_number":   number,
		"refund_amount":  amount,
		"original_total": total,
		"refund_type":    refundType,
		"reason":         reason,
		"customer_email": nilIfEmpty(order.CustomerEmail),
		"message":        fmt.Sprintf("Refund of %s initiated for %s. Customer will see it in 3-5 business days.", amount.Dollars(), number),
	}, nil
}

func (s *Session) updateOrderStatus(ctx context.Context, args map[string]any) (contractx.ToolResult, error) {
	number := NormalizeOrderNumber(argString(args, "order_number"))
	status := strings.ToLower(argString(args, "status"))
	tracking := argString(args, "tracking_number")
	carrier := argString(args, "carrier")

	order, err := s.d.catalog.OrderByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return orderNotFound(number), nil
	}

	valid := false
	for _, v := range validOrderStatuses {
		if v == status {
			valid = true
			break
		}
	}
	if !valid {
		return contractx.ErrorResult("Invalid status. Must be one of: " + strings.Join(validOrderStatuses, ", ")), nil
	}
	if status == "shipped" && tracking == "" {
		return contractx.ToolResult{
			"error":      "Tracking number required when marking order as shipped",
			"suggestion": "Please provide a tracking number.",
		}, nil
	}

	msg := fmt.Sprintf("Order %s updated: %s → %s", number, order.Status, status)
	if tracking != "" {
		msg += fmt.Sprintf(" (tracking: %s)", tracking)
	}
	return contractx.ToolResult{
		"success":         true,
		"order_number":    number,
		"previous_status": order.Status,
		"new_status":      status,
		"tracking_number": nilIfEmpty(tracking),
		"carrier":         nilIfEmpty(carrier),
		"message":         msg,
	}, nil
}

func (s *Session) createReturnLabel(ctx context.Context, args map[string]any) (contractx.ToolResult, error) {
	number := NormalizeOrderNumber(argString(args, "order_number"))
	order, err := s.d.catalog.OrderByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return orderNotFound(number), nil
	}

	labelID := fmt.Sprintf("RTN-%s-%s", strings.TrimPrefix(number, "ORD-"), s.d.now().Format("1504"))
	dropOff := order.Carrier
	if dropOff == "" {
		dropOff = "USPS"
	}

	return contractx.ToolResult{
		"success":         true,
		"order_number":    number,
		"return_label_id": labelID,
		"carrier":         "USPS",
		"return_address":  returnAddress,
		"valid_until":     "30 days from today",
		"message": fmt.Sprintf("Return label %s created. Customer can print it from their order confirmation email or use this ID at any %s location.",
			labelID, dropOff),
	}, nil
}

type articleMatch struct {
	ArticleID string `json:"article_id"`
	Title     string `json:"title"`
	Category  string `json:"category"`
	Summary   string `json:"summary"`
	Score     int    `json:"score"`
}

func (s *Session) searchKnowledgeBase(ctx context.Context, args map[string]any) (contractx.ToolResult, error) {
	words := strings.Fields(strings.ToLower(argString(args, "query")))
	category := strings.ToLower(argString(args, "category"))

	articles, err := s.d.catalog.PublishedArticles(ctx)
	if err != nil {
		return nil, err
	}

	matches := make([]articleMatch, 0)
	for _, a := range articles {
		if a.Status != "" && a.Status != "published" {
			continue
		}
		if category != "" && strings.ToLower(a.Metadata.Category) != category {
			continue
		}
		if score := scoreArticle(a, words); score > 0 {
			matches = append(matches, articleMatch{
				ArticleID: a.ArticleID,
				Title:     a.Title,
				Category:  a.Metadata.Category,
				Summary:   summarize(strings.ToLower(a.Content)),
				Score:     score,
			})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })

	found := len(matches)
	if len(matches) > maxArticles {
		matches = matches[:maxArticles]
	}
	msg := "No matching articles found"
	if found > 0 {
		msg = fmt.Sprintf("Found %d relevant article(s)", found)
	}
	return contractx.ToolResult{
		"found":    found,
		"articles": matches,
		"message":  msg,
	}, nil
}

// scoreArticle weights title hits 3, tag hits 2 and body hits 1 per word.
func scoreArticle(a *repox.KnowledgeBaseArticle, words []string) int {
	title := strings.ToLower(a.Title)
	content := strings.ToLower(a.Content)

	score := 0
	for _, w := range words {
		if strings.Contains(title, w) {
			score += 3
		}
		if strings.Contains(content, w) {
			score++
		}
		for _, tag := range a.Metadata.Tags {
			if strings.Contains(strings.ToLower(tag), w) {
				score += 2
				break
			}
		}
	}
	return score
}

func summarize(content string) string {
	runes := []rune(content)
	if len(runes) <= summaryLength {
		return content
	}
	return string(runes[:summaryLength]) + "..."
}

func (s *Session) escalateToHuman(ctx context.Context, args map[string]any) contractx.ToolResult {
	reason := argString(args, "reason")
	if reason == "" {
		reason = "Unspecified"
	}
	priority := argString(args, "priority")
	if priority == "" {
		priority = "normal"
	}
	summary := argString(args, "summary")

	expected, ok := responseTimes[priority]
	if !ok {
		expected = defaultResponseTime
	}

	owner := "NEW"
	if s.customerID > 0 {
		owner = strconv.FormatInt(s.customerID, 10)
	}
	now := s.d.now()
	ticketNumber := fmt.Sprintf("TKT-%s-%s-%s", owner, now.Format("200601021504"), s.d.ticketSuffix())

	if s.customerID > 0 {
		notes := reason
		if summary != "" {
			notes += "\n\n" + summary
		}
		issue, _ := s.extracted["issue_type"].(string)
		ticket := &repox.Ticket{
			CustomerID: s.customerID,
			Number:     ticketNumber,
			Status:     "open",
			IssueType:  issue,
			Severity:   priority,
			Notes:      notes,
			CreatedAt:  now,
		}
		if err := s.d.catalog.CreateTicket(ctx, ticket); err != nil {
			log.Warn().Err(err).Str("ticket", ticketNumber).Msg("failed to record escalation ticket")
		}
	}

	return contractx.ToolResult{
		"success":           true,
		"ticket_number":     ticketNumber,
		"priority":          priority,
		"reason":            reason,
		"expected_response": expected,
		"message":           fmt.Sprintf("Escalated to support team. Ticket: %s. A human agent will respond %s.", ticketNumber, expected),
	}
}
