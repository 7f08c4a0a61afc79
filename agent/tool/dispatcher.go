package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	contractx "github.com/kalpit-S/ai-support-agent/agent/contract"
	metricsx "github.com/kalpit-S/ai-support-agent/pkg/metrics"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"
)

const ticketAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

type Option func(*Dispatcher)

func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

func WithMetrics(m *metricsx.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithTicketSuffix replaces the random suffix appended to ticket numbers.
func WithTicketSuffix(fn func() string) Option {
	return func(d *Dispatcher) {
		if fn != nil {
			d.ticketSuffix = fn
		}
	}
}

// Dispatcher validates and executes tool calls against a Catalog.
type Dispatcher struct {
	catalog      Catalog
	defs         []contractx.ToolDefinition
	schemas      map[Kind]*gojsonschema.Schema
	now          func() time.Time
	ticketSuffix func() string
	metrics      *metricsx.Metrics
}

var _ contractx.ToolDispatcher = (*Dispatcher)(nil)

func NewDispatcher(catalog Catalog, opts ...Option) (*Dispatcher, error) {
	if catalog == nil {
		return nil, errors.New("tool catalog is required")
	}

	d := &Dispatcher{
		catalog: catalog,
		defs:    Definitions(),
		schemas: make(map[Kind]*gojsonschema.Schema, len(Kinds)),
		now:     time.Now,
		ticketSuffix: func() string {
			id, err := gonanoid.Generate(ticketAlphabet, 4)
			if err != nil {
				return "0000"
			}
			return id
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}

	for _, k := range Kinds {
		s, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(k.Definition().JSONSchema()))
		if err != nil {
			return nil, fmt.Errorf("compile schema for %s: %w", k, err)
		}
		d.schemas[k] = s
	}

	return d, nil
}

func (d *Dispatcher) Definitions() []contractx.ToolDefinition {
	out := make([]contractx.ToolDefinition, len(d.defs))
	copy(out, d.defs)
	return out
}

// Begin opens a session for one turn of one customer. A zero customer id
// is allowed for sessions that are not tied to a conversation.
func (d *Dispatcher) Begin(customerID int64) contractx.ToolSession {
	return &Session{
		d:          d,
		customerID: customerID,
		extracted:  make(map[string]any),
		columns:    make(map[string]string),
	}
}

// Session executes calls sequentially and remembers what save_customer_info
// collected. It is not safe for concurrent use.
type Session struct {
	d          *Dispatcher
	customerID int64
	extracted  map[string]any
	columns    map[string]string
}

func (s *Session) Execute(ctx context.Context, call contractx.ToolCall) (result contractx.ToolResult) {
	logger := log.With().
		Int64("customer_id", s.customerID).
		Str("tool", call.Name).
		Str("call_id", call.ID).
		Logger()

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("tool handler panicked")
			result = contractx.ErrorResult(fmt.Sprintf("%s failed: %v", call.Name, r))
		}
		s.d.metrics.ToolCall(call.Name, result.IsError())
	}()

	kind, ok := ParseKind(call.Name)
	if !ok {
		logger.Warn().Msg("unknown tool requested")
		return contractx.ErrorResult("unknown tool: " + call.Name)
	}

	args := compactArgs(call.Arguments)
	if err := s.d.validate(kind, args); err != nil {
		logger.Debug().Err(err).Msg("tool arguments rejected")
		return contractx.ErrorResult(fmt.Sprintf("invalid arguments for %s: %v", kind, err))
	}

	logger.Debug().Interface("args", args).Msg("executing tool")

	res, err := s.dispatch(ctx, kind, args)
	if err != nil {
		logger.Error().Err(err).Msg("tool execution failed")
		return contractx.ErrorResult(err.Error())
	}

	logger.Debug().Interface("result", res).Msg("tool executed")
	return res
}

func (s *Session) ProfileUpdates() contractx.ProfileUpdate {
	out := contractx.ProfileUpdate{
		Extracted: make(map[string]any, len(s.extracted)),
		Columns:   make(map[string]string, len(s.columns)),
	}
	for k, v := range s.extracted {
		out.Extracted[k] = v
	}
	for k, v := range s.columns {
		out.Columns[k] = v
	}
	return out
}

func (s *Session) dispatch(ctx context.Context, kind Kind, args map[string]any) (contractx.ToolResult, error) {
	switch kind {
	case KindSaveCustomerInfo:
		return s.saveCustomerInfo(args), nil
	case KindLookupOrder:
		return s.lookupOrder(ctx, args)
	case KindCheckInventory:
		return s.checkInventory(ctx, args)
	case KindProcessRefund:
		return s.processRefund(ctx, args)
	case KindUpdateOrderStatus:
		return s.updateOrderStatus(ctx, args)
	case KindCreateReturnLabel:
		return s.createReturnLabel(ctx, args)
	case KindSearchKnowledgeBase:
		return s.searchKnowledgeBase(ctx, args)
	case KindEscalateToHuman:
		return s.escalateToHuman(ctx, args), nil
	default:
		return contractx.ErrorResult("unknown tool: " + kind.String()), nil
	}
}

func (d *Dispatcher) validate(kind Kind, args map[string]any) error {
	schema, ok := d.schemas[kind]
	if !ok {
		return nil
	}
	res, err := schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return err
	}
	if res.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	return errors.New(strings.Join(msgs, "; "))
}

// compactArgs drops null values; models often send them for optional
// parameters.
func compactArgs(args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		if v != nil {
			out[k] = v
		}
	}
	return out
}

func argString(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return strings.TrimSpace(v)
}

func argFloat(args map[string]any, key string) (float64, bool) {
	switch v := args[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// NormalizeOrderNumber upper-cases the number and adds the ORD- prefix.
func NormalizeOrderNumber(raw string) string {
	n := strings.ToUpper(strings.TrimSpace(raw))
	if !strings.HasPrefix(n, "ORD-") {
		n = "ORD-" + n
	}
	return n
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
