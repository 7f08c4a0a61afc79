package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/uptrace/bun"
)

// OrderByNumber returns the order with its items, or nil when it does not
// exist.
func (r *Repository) OrderByNumber(ctx context.Context, number string) (*Order, error) {
	order := new(Order)
	err := r.db.NewSelect().
		Model(order).
		Relation("Items", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("oi.id ASC")
		}).
		Where("o.order_number = ?", number).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select order %s: %w", number, err)
	}
	return order, nil
}

func (r *Repository) ProductBySKU(ctx context.Context, sku string) (*Product, error) {
	product := new(Product)
	err := r.db.NewSelect().Model(product).Where("sku = ?", sku).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select product %s: %w", sku, err)
	}
	return product, nil
}

// ProductByName returns the first product, by id, whose name contains the
// fragment case-insensitively.
func (r *Repository) ProductByName(ctx context.Context, fragment string) (*Product, error) {
	fragment = strings.ToLower(strings.TrimSpace(fragment))
	if fragment == "" {
		return nil, nil
	}
	product := new(Product)
	err := r.db.NewSelect().
		Model(product).
		Where("LOWER(name) LIKE ? ESCAPE '\\'", "%"+escapeLike(fragment)+"%").
		Order("id ASC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("search product %q: %w", fragment, err)
	}
	return product, nil
}

func (r *Repository) InventoryFor(ctx context.Context, productID int64) (*Inventory, error) {
	inv := new(Inventory)
	err := r.db.NewSelect().
		Model(inv).
		Where("product_id = ?", productID).
		Order("id ASC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select inventory product=%d: %w", productID, err)
	}
	return inv, nil
}

func (r *Repository) PublishedArticles(ctx context.Context) ([]*KnowledgeBaseArticle, error) {
	return r.ListArticles(ctx, "published")
}

func (r *Repository) CreateTicket(ctx context.Context, ticket *Ticket) error {
	now := r.now()
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = now
	}
	ticket.UpdatedAt = now
	if ticket.Status == "" {
		ticket.Status = "open"
	}
	if _, err := r.db.NewInsert().Model(ticket).Exec(ctx); err != nil {
		return fmt.Errorf("insert ticket: %w", err)
	}
	return nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// jsonValue renders a document for a raw SET clause; both dialects accept
// the text form for their JSON column types.
func jsonValue(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(raw)
}
