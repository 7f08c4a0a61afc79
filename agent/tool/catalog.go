package tool

import (
	"context"
	"strings"
	"sync"

	repox "github.com/kalpit-S/ai-support-agent/agent/repository"
)

// Catalog is the business data the tools read. Lookups return nil, nil when
// nothing matches.
type Catalog interface {
	OrderByNumber(ctx context.Context, number string) (*repox.Order, error)
	ProductBySKU(ctx context.Context, sku string) (*repox.Product, error)
	ProductByName(ctx context.Context, fragment string) (*repox.Product, error)
	InventoryFor(ctx context.Context, productID int64) (*repox.Inventory, error)
	PublishedArticles(ctx context.Context) ([]*repox.KnowledgeBaseArticle, error)
	CreateTicket(ctx context.Context, ticket *repox.Ticket) error
}

var _ Catalog = (*repox.Repository)(nil)

// MemoryCatalog serves a fixed data set without a database.
type MemoryCatalog struct {
	orders    map[string]*repox.Order
	products  []*repox.Product
	inventory map[int64]*repox.Inventory
	articles  []*repox.KnowledgeBaseArticle

	mu      sync.Mutex
	tickets []*repox.Ticket
}

var _ Catalog = (*MemoryCatalog)(nil)

// NewMemoryCatalog indexes the data, assigning product ids in slice order
// when they are missing.
func NewMemoryCatalog(data repox.DemoData) *MemoryCatalog {
	c := &MemoryCatalog{
		orders:    make(map[string]*repox.Order, len(data.Orders)),
		inventory: make(map[int64]*repox.Inventory, len(data.Inventory)),
		articles:  data.Articles,
	}
	for i, p := range data.Products {
		if p.ID == 0 {
			p.ID = int64(i + 1)
		}
		c.products = append(c.products, p)
		if inv, ok := data.Inventory[p.SKU]; ok {
			inv.ProductID = p.ID
			c.inventory[p.ID] = inv
		}
	}
	for _, o := range data.Orders {
		c.orders[o.OrderNumber] = o
	}
	return c
}

func (c *MemoryCatalog) OrderByNumber(_ context.Context, number string) (*repox.Order, error) {
	return c.orders[number], nil
}

func (c *MemoryCatalog) ProductBySKU(_ context.Context, sku string) (*repox.Product, error) {
	for _, p := range c.products {
		if p.SKU == sku {
			return p, nil
		}
	}
	return nil, nil
}

func (c *MemoryCatalog) ProductByName(_ context.Context, fragment string) (*repox.Product, error) {
	fragment = strings.ToLower(fragment)
	if fragment == "" {
		return nil, nil
	}
	for _, p := range c.products {
		if strings.Contains(strings.ToLower(p.Name), fragment) {
			return p, nil
		}
	}
	return nil, nil
}

func (c *MemoryCatalog) InventoryFor(_ context.Context, productID int64) (*repox.Inventory, error) {
	return c.inventory[productID], nil
}

func (c *MemoryCatalog) PublishedArticles(_ context.Context) ([]*repox.KnowledgeBaseArticle, error) {
	out := make([]*repox.KnowledgeBaseArticle, 0, len(c.articles))
	for _, a := range c.articles {
		if a.Status == "" || a.Status == "published" {
			out = append(out, a)
		}
	}
	return out, nil
}

func (c *MemoryCatalog) CreateTicket(_ context.Context, ticket *repox.Ticket) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	ticket.ID = int64(len(c.tickets) + 1)
	c.tickets = append(c.tickets, ticket)
	return nil
}

// Tickets returns the tickets created so far, oldest first.
func (c *MemoryCatalog) Tickets() []*repox.Ticket {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*repox.Ticket(nil), c.tickets...)
}
