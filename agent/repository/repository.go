package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	contractx "github.com/kalpit-S/ai-support-agent/agent/contract"
	"github.com/uptrace/bun"
)

const defaultListLimit = 100

// Repository is the relational store for customers, conversations and the
// commerce catalog.
type Repository struct {
	db  *bun.DB
	now func() time.Time
}

func New(db *bun.DB) *Repository {
	return &Repository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (r *Repository) DB() *bun.DB {
	return r.db
}

// CreateSchema creates every table that does not exist yet.
func (r *Repository) CreateSchema(ctx context.Context) error {
	for _, model := range allModels {
		if _, err := r.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table %T: %w", model, err)
		}
	}

	_, err := r.db.NewCreateIndex().
		Model((*Message)(nil)).
		Index("idx_messages_customer_created").
		Column("customer_id", "created_at").
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create messages index: %w", err)
	}
	return nil
}

func (r *Repository) FindOrCreateCustomerByPhone(ctx context.Context, phone string) (*Customer, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, fmt.Errorf("%w: phone number is required", contractx.ErrValidation)
	}
	return r.findOrCreateCustomer(ctx, "phone_number", &Customer{PhoneNumber: phone})
}

func (r *Repository) FindOrCreateCustomerByEmail(ctx context.Context, email string) (*Customer, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", contractx.ErrValidation)
	}
	return r.findOrCreateCustomer(ctx, "email", &Customer{Email: email})
}

func (r *Repository) findOrCreateCustomer(ctx context.Context, column string, candidate *Customer) (*Customer, error) {
	now := r.now()
	candidate.ExtractedData = map[string]any{}
	candidate.CreatedAt = now
	candidate.UpdatedAt = now

	_, err := r.db.NewInsert().
		Model(candidate).
		On(fmt.Sprintf("CONFLICT (%s) DO NOTHING", column)).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("insert customer: %w", err)
	}

	value := candidate.PhoneNumber
	if column == "email" {
		value = candidate.Email
	}

	customer := new(Customer)
	err = r.db.NewSelect().
		Model(customer).
		Where("? = ?", bun.Ident(column), value).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select customer by %s: %w", column, err)
	}
	return customer, nil
}

func (r *Repository) GetCustomer(ctx context.Context, id int64) (*Customer, error) {
	customer := new(Customer)
	err := r.db.NewSelect().Model(customer).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id=%d", contractx.ErrCustomerNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("select customer: %w", err)
	}
	if customer.ExtractedData == nil {
		customer.ExtractedData = map[string]any{}
	}
	return customer, nil
}

// InsertInboundMessage stores a customer message before it is queued.
func (r *Repository) InsertInboundMessage(ctx context.Context, customerID int64, channel contractx.Channel, content string, metadata map[string]any) (*Message, error) {
	msg := &Message{
		CustomerID: customerID,
		Direction:  string(contractx.DirectionInbound),
		Channel:    string(channel),
		Content:    content,
		Metadata:   metadata,
		CreatedAt:  r.now(),
	}
	if msg.Metadata == nil {
		msg.Metadata = map[string]any{}
	}
	if _, err := r.db.NewInsert().Model(msg).Exec(ctx); err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return msg, nil
}

func (r *Repository) SetMessageBatch(ctx context.Context, messageID int64, batchID string) error {
	_, err := r.db.NewUpdate().
		Model((*Message)(nil)).
		Set("batch_id = ?", batchID).
		Where("id = ?", messageID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("tag message batch: %w", err)
	}
	return nil
}

// MessagesByIDs loads the given messages of one customer in arrival order.
func (r *Repository) MessagesByIDs(ctx context.Context, customerID int64, ids []int64) ([]*Message, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var msgs []*Message
	err := r.db.NewSelect().
		Model(&msgs).
		Where("customer_id = ?", customerID).
		Where("id IN (?)", bun.In(ids)).
		Order("created_at ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select batch messages: %w", err)
	}
	return msgs, nil
}

// ConversationHistory returns every message of a customer across channels.
func (r *Repository) ConversationHistory(ctx context.Context, customerID int64) ([]*Message, error) {
	var msgs []*Message
	err := r.db.NewSelect().
		Model(&msgs).
		Where("customer_id = ?", customerID).
		Order("created_at ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select history: %w", err)
	}
	return msgs, nil
}

// TurnRecord is everything one processed batch writes back.
type TurnRecord struct {
	CustomerID int64
	// Extracted replaces extracted_data when non-nil.
	Extracted map[string]any
	Columns   map[string]string
	Reply     *Message
}

var writableColumns = map[string]string{
	"first_name":   "first_name",
	"last_name":    "last_name",
	"company_name": "company_name",
	"account_tier": "account_tier",
	"email":        "email",
	"phone_number": "phone_number",
}

// SaveTurn commits the profile changes and the outbound reply atomically.
func (r *Repository) SaveTurn(ctx context.Context, rec TurnRecord) (int64, error) {
	if rec.Reply == nil {
		return 0, fmt.Errorf("%w: reply is required", contractx.ErrValidation)
	}
	now := r.now()

	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		q := tx.NewUpdate().
			Model((*Customer)(nil)).
			Set("updated_at = ?", now).
			Where("id = ?", rec.CustomerID)
		if rec.Extracted != nil {
			q = q.Set("extracted_data = ?", jsonValue(rec.Extracted))
		}
		for key, value := range rec.Columns {
			column, ok := writableColumns[key]
			if !ok {
				continue
			}
			if (column == "email" || column == "phone_number") && strings.TrimSpace(value) == "" {
				continue
			}
			q = q.Set("? = ?", bun.Ident(column), value)
		}
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("update customer: %w", err)
		}

		reply := rec.Reply
		reply.CustomerID = rec.CustomerID
		reply.Direction = string(contractx.DirectionOutbound)
		if reply.CreatedAt.IsZero() {
			reply.CreatedAt = now
		}
		if reply.Metadata == nil {
			reply.Metadata = map[string]any{}
		}
		if _, err := tx.NewInsert().Model(reply).Exec(ctx); err != nil {
			return fmt.Errorf("insert reply: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return rec.Reply.ID, nil
}

func (r *Repository) ListCustomers(ctx context.Context, limit int) ([]*Customer, error) {
	var customers []*Customer
	err := r.db.NewSelect().
		Model(&customers).
		Order("id ASC").
		Limit(clampLimit(limit)).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	return customers, nil
}

// CustomerWithMessages loads a customer and its full conversation.
func (r *Repository) CustomerWithMessages(ctx context.Context, id int64) (*Customer, error) {
	customer, err := r.GetCustomer(ctx, id)
	if err != nil {
		return nil, err
	}
	customer.Messages, err = r.ConversationHistory(ctx, id)
	if err != nil {
		return nil, err
	}
	return customer, nil
}

func (r *Repository) ListMessages(ctx context.Context, customerID int64, limit int) ([]*Message, error) {
	if _, err := r.GetCustomer(ctx, customerID); err != nil {
		return nil, err
	}
	var msgs []*Message
	err := r.db.NewSelect().
		Model(&msgs).
		Where("customer_id = ?", customerID).
		Order("created_at ASC", "id ASC").
		Limit(clampLimit(limit)).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

func (r *Repository) ListArticles(ctx context.Context, status string) ([]*KnowledgeBaseArticle, error) {
	var articles []*KnowledgeBaseArticle
	q := r.db.NewSelect().Model(&articles).Order("id ASC")
	if status = strings.TrimSpace(status); status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	return articles, nil
}

// GetArticle returns nil when the article does not exist.
func (r *Repository) GetArticle(ctx context.Context, articleID string) (*KnowledgeBaseArticle, error) {
	article := new(KnowledgeBaseArticle)
	err := r.db.NewSelect().Model(article).Where("article_id = ?", articleID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select article: %w", err)
	}
	return article, nil
}

func (r *Repository) ListTickets(ctx context.Context, customerID int64) ([]*Ticket, error) {
	var tickets []*Ticket
	err := r.db.NewSelect().
		Model(&tickets).
		Where("customer_id = ?", customerID).
		Order("created_at DESC", "id DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	return tickets, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}
