package repository

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type Customer struct {
	bun.BaseModel `bun:"table:customers,alias:c"`

	ID            int64          `bun:"id,pk,autoincrement" json:"id"`
	PhoneNumber   string         `bun:"phone_number,unique,nullzero" json:"phone_number,omitempty"`
	Email         string         `bun:"email,unique,nullzero" json:"email,omitempty"`
	FirstName     string         `bun:"first_name,nullzero" json:"first_name,omitempty"`
	LastName      string         `bun:"last_name,nullzero" json:"last_name,omitempty"`
	CompanyName   string         `bun:"company_name,nullzero" json:"company_name,omitempty"`
	AccountTier   string         `bun:"account_tier,nullzero" json:"account_tier,omitempty"`
	ExtractedData map[string]any `bun:"extracted_data,type:jsonb" json:"extracted_data"`
	CreatedAt     time.Time      `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt     time.Time      `bun:"updated_at,notnull" json:"updated_at"`

	Messages []*Message `bun:"rel:has-many,join:id=customer_id" json:"messages,omitempty"`
}

type Message struct {
	bun.BaseModel `bun:"table:messages,alias:m"`

	ID         int64          `bun:"id,pk,autoincrement" json:"id"`
	CustomerID int64          `bun:"customer_id,notnull" json:"customer_id"`
	Direction  string         `bun:"direction,notnull" json:"direction"`
	Channel    string         `bun:"channel,notnull,default:'sms'" json:"channel"`
	Content    string         `bun:"content,notnull" json:"content"`
	BatchID    string         `bun:"batch_id,nullzero" json:"batch_id,omitempty"`
	Metadata   map[string]any `bun:"metadata,type:jsonb" json:"metadata,omitempty"`
	CreatedAt  time.Time      `bun:"created_at,notnull" json:"created_at"`
}

type ArticleMetadata struct {
	Category string   `json:"category"`
	Tags     []string `json:"tags"`
}

type KnowledgeBaseArticle struct {
	bun.BaseModel `bun:"table:knowledge_base,alias:kb"`

	ID        int64           `bun:"id,pk,autoincrement" json:"id"`
	ArticleID string          `bun:"article_id,unique,notnull" json:"article_id"`
	Title     string          `bun:"title,notnull" json:"title"`
	Content   string          `bun:"content,notnull" json:"content"`
	Metadata  ArticleMetadata `bun:"metadata,type:jsonb" json:"metadata"`
	Status    string          `bun:"status,notnull,default:'published'" json:"status"`
	CreatedAt time.Time       `bun:"created_at,notnull" json:"created_at"`
}

type Ticket struct {
	bun.BaseModel `bun:"table:tickets,alias:t"`

	ID         int64     `bun:"id,pk,autoincrement" json:"id"`
	CustomerID int64     `bun:"customer_id,notnull" json:"customer_id"`
	ArticleID  int64     `bun:"article_id,nullzero" json:"article_id,omitempty"`
	Number     string    `bun:"number,nullzero" json:"number,omitempty"`
	Status     string    `bun:"status,notnull" json:"status"`
	IssueType  string    `bun:"issue_type,nullzero" json:"issue_type,omitempty"`
	Severity   string    `bun:"severity,nullzero" json:"severity,omitempty"`
	Notes      string    `bun:"notes,nullzero" json:"notes,omitempty"`
	CreatedAt  time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt  time.Time `bun:"updated_at,notnull" json:"updated_at"`
}

type Product struct {
	bun.BaseModel `bun:"table:products,alias:p"`

	ID          int64           `bun:"id,pk,autoincrement" json:"id"`
	SKU         string          `bun:"sku,unique,notnull" json:"sku"`
	Name        string          `bun:"name,notnull" json:"name"`
	Description string          `bun:"description,nullzero" json:"description,omitempty"`
	Price       decimal.Decimal `bun:"price,type:decimal(10,2),notnull" json:"price"`
	Category    string          `bun:"category,nullzero" json:"category,omitempty"`
	CreatedAt   time.Time       `bun:"created_at,notnull" json:"created_at"`
}

type Inventory struct {
	bun.BaseModel `bun:"table:inventory,alias:inv"`

	ID                int64     `bun:"id,pk,autoincrement" json:"id"`
	ProductID         int64     `bun:"product_id,notnull" json:"product_id"`
	Quantity          int       `bun:"quantity,notnull" json:"quantity"`
	Warehouse         string    `bun:"warehouse,notnull,default:'main'" json:"warehouse"`
	LowStockThreshold int       `bun:"low_stock_threshold,notnull,default:5" json:"low_stock_threshold"`
	UpdatedAt         time.Time `bun:"updated_at,notnull" json:"updated_at"`
}

// StockStatus classifies the quantity against the low-stock threshold.
func (i Inventory) StockStatus() string {
	switch {
	case i.Quantity <= 0:
		return "out_of_stock"
	case i.Quantity <= i.LowStockThreshold:
		return "low_stock"
	default:
		return "in_stock"
	}
}

type Address struct {
	Street string `json:"street"`
	City   string `json:"city"`
	State  string `json:"state"`
	Zip    string `json:"zip"`
}

func (a *Address) String() string {
	if a == nil {
		return ""
	}
	return fmt.Sprintf("%s, %s, %s %s", a.Street, a.City, a.State, a.Zip)
}

type Order struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	ID              int64           `bun:"id,pk,autoincrement" json:"id"`
	OrderNumber     string          `bun:"order_number,unique,notnull" json:"order_number"`
	CustomerID      int64           `bun:"customer_id,nullzero" json:"customer_id,omitempty"`
	Status          string          `bun:"status,notnull,default:'pending'" json:"status"`
	Total           decimal.Decimal `bun:"total,type:decimal(10,2),notnull" json:"total"`
	ShippingAddress *Address        `bun:"shipping_address,type:jsonb,nullzero" json:"shipping_address,omitempty"`
	TrackingNumber  string          `bun:"tracking_number,nullzero" json:"tracking_number,omitempty"`
	Carrier         string          `bun:"carrier,nullzero" json:"carrier,omitempty"`
	CustomerName    string          `bun:"customer_name,nullzero" json:"customer_name,omitempty"`
	CustomerEmail   string          `bun:"customer_email,nullzero" json:"customer_email,omitempty"`
	Notes           string          `bun:"notes,nullzero" json:"notes,omitempty"`
	CreatedAt       time.Time       `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt       time.Time       `bun:"updated_at,notnull" json:"updated_at"`

	Items []*OrderItem `bun:"rel:has-many,join:id=order_id" json:"items,omitempty"`
}

type OrderItem struct {
	bun.BaseModel `bun:"table:order_items,alias:oi"`

	ID          int64           `bun:"id,pk,autoincrement" json:"id"`
	OrderID     int64           `bun:"order_id,notnull" json:"order_id"`
	ProductID   int64           `bun:"product_id,nullzero" json:"product_id,omitempty"`
	SKU         string          `bun:"sku,notnull" json:"sku"`
	ProductName string          `bun:"product_name,notnull" json:"product_name"`
	Quantity    int             `bun:"quantity,notnull" json:"quantity"`
	UnitPrice   decimal.Decimal `bun:"unit_price,type:decimal(10,2),notnull" json:"unit_price"`
	CreatedAt   time.Time       `bun:"created_at,notnull" json:"created_at"`
}

var allModels = []any{
	(*Customer)(nil),
	(*Message)(nil),
	(*KnowledgeBaseArticle)(nil),
	(*Ticket)(nil),
	(*Product)(nil),
	(*Inventory)(nil),
	(*Order)(nil),
	(*OrderItem)(nil),
}
