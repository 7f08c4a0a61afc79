package tool

import (
	"github.com/cloudwego/eino/schema"
	contractx "github.com/kalpit-S/ai-support-agent/agent/contract"
)

// Kind is one of the fixed tools the assistant can call.
type Kind int

const (
	KindUnknown Kind = iota
	KindSaveCustomerInfo
	KindLookupOrder
	KindCheckInventory
	KindProcessRefund
	KindUpdateOrderStatus
	KindCreateReturnLabel
	KindSearchKnowledgeBase
	KindEscalateToHuman
)

var kindNames = map[Kind]string{
	KindSaveCustomerInfo:    "save_customer_info",
	KindLookupOrder:         "lookup_order",
	KindCheckInventory:      "check_inventory",
	KindProcessRefund:       "process_refund",
	KindUpdateOrderStatus:   "update_order_status",
	KindCreateReturnLabel:   "create_return_label",
	KindSearchKnowledgeBase: "search_knowledge_base",
	KindEscalateToHuman:     "escalate_to_human",
}

// Kinds lists every tool in catalog order.
var Kinds = []Kind{
	KindSaveCustomerInfo,
	KindLookupOrder,
	KindCheckInventory,
	KindProcessRefund,
	KindUpdateOrderStatus,
	KindCreateReturnLabel,
	KindSearchKnowledgeBase,
	KindEscalateToHuman,
}

func ParseKind(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name {
			return k, true
		}
	}
	return KindUnknown, false
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "unknown"
}

func str(name, desc string, required bool) contractx.ToolParam {
	return contractx.ToolParam{Name: name, Type: "string", Description: desc, Required: required}
}

var definitions = map[Kind]contractx.ToolDefinition{
	KindSaveCustomerInfo: {
		Description: "Save information the customer shared about themselves or their issue. Call this whenever the customer mentions their name, store, order number, or the kind of problem they have.",
		Params: []contractx.ToolParam{
			str("first_name", "Customer's first name", false),
			str("company_name", "Customer's business or store name, if any", false),
			str("issue_type", "Type of issue (e.g., 'order_status', 'refund', 'compatibility', 'doa', 'shipping')", false),
			str("order_number", "Order number being discussed (e.g., 'ORD-1001')", false),
			str("severity", "Issue severity: 'low', 'medium', 'high', or 'urgent'", false),
		},
	},
	KindLookupOrder: {
		Description: "Look up order details including status, items, shipping, and tracking information.",
		Params: []contractx.ToolParam{
			str("order_number", "The order number (e.g., 'ORD-1001')", true),
		},
	},
	KindCheckInventory: {
		Description: "Check stock levels for a product by SKU or product name.",
		Params: []contractx.ToolParam{
			str("sku", "Product SKU (e.g., 'GPU-RTX4090')", false),
			str("product_name", "Product name to search for (e.g., 'RTX 4090')", false),
		},
	},
	KindProcessRefund: {
		Description: "Process a refund for an order. Refunds over $500 require manager approval.",
		Params: []contractx.ToolParam{
			str("order_number", "The order number to refund", true),
			str("reason", "Reason for refund (e.g., 'defective', 'wrong_item', 'customer_request', 'doa')", true),
			{Name: "amount", Type: "number", Description: "Partial refund amount. Omit for a full refund."},
		},
	},
	KindUpdateOrderStatus: {
		Description: "Update an order's status. A tracking number is required when marking an order as shipped.",
		Params: []contractx.ToolParam{
			str("order_number", "The order number to update", true),
			str("status", "New status: 'processing', 'shipped', 'delivered', or 'cancelled'", true),
			str("tracking_number", "Tracking number (required for 'shipped')", false),
			str("carrier", "Shipping carrier (e.g., 'UPS', 'FedEx', 'USPS')", false),
		},
	},
	KindCreateReturnLabel: {
		Description: "Generate a prepaid return shipping label for an order.",
		Params: []contractx.ToolParam{
			str("order_number", "The order number to create a return label for", true),
		},
	},
	KindSearchKnowledgeBase: {
		Description: "Search help articles for compatibility, return policy, warranty, and troubleshooting information.",
		Params: []contractx.ToolParam{
			str("query", "Search keywords", true),
			str("category", "Optional category filter (e.g., 'compatibility', 'returns')", false),
		},
	},
	KindEscalateToHuman: {
		Description: "Escalate the conversation to a human support agent. Use for issues you cannot resolve or refunds that need approval.",
		Params: []contractx.ToolParam{
			str("reason", "Why the conversation is being escalated", true),
			str("priority", "Priority: 'normal', 'high', or 'urgent'", false),
			str("summary", "Short summary of the issue for the human agent", false),
		},
	},
}

// Definition returns the model-facing description of a tool.
func (k Kind) Definition() contractx.ToolDefinition {
	def := definitions[k]
	def.Name = k.String()
	return def
}

// Definitions returns the full catalog in a stable order.
func Definitions() []contractx.ToolDefinition {
	out := make([]contractx.ToolDefinition, 0, len(Kinds))
	for _, k := range Kinds {
		out = append(out, k.Definition())
	}
	return out
}

// ToolInfos converts definitions into eino tool descriptors.
func ToolInfos(defs []contractx.ToolDefinition) []*schema.ToolInfo {
	infos := make([]*schema.ToolInfo, 0, len(defs))
	for _, def := range defs {
		params := make(map[string]*schema.ParameterInfo, len(def.Params))
		for _, p := range def.Params {
			params[p.Name] = &schema.ParameterInfo{
				Type:     schema.DataType(p.Type),
				Desc:     p.Description,
				Required: p.Required,
			}
		}
		infos = append(infos, &schema.ToolInfo{
			Name:        def.Name,
			Desc:        def.Description,
			ParamsOneOf: schema.NewParamsOneOfByParams(params),
		})
	}
	return infos
}
