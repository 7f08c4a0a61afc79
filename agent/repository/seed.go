package repository

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// DemoData is the catalog loaded by the seed command and by tests.
type DemoData struct {
	Articles  []*KnowledgeBaseArticle
	Products  []*Product
	Inventory map[string]*Inventory
	Orders    []*Order
}

func price(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func NewDemoData() DemoData {
	return DemoData{
		Articles: []*KnowledgeBaseArticle{
			{
				ArticleID: "KB001",
				Title:     "CPU & Motherboard Compatibility Guide",
				Content:   "Before purchasing, verify CPU and motherboard socket compatibility. Intel uses LGA 1700, AMD uses AM5. A BIOS update may be required for newer CPUs on older boards.",
				Metadata:  ArticleMetadata{Category: "compatibility", Tags: []string{"cpu", "motherboard", "compatibility"}},
				Status:    "published",
			},
			{
				ArticleID: "KB002",
				Title:     "GPU Power Requirements & PSU Guide",
				Content:   "RTX 4090 requires 850W minimum PSU. RTX 4080 requires 750W minimum. Use the 12VHPWR adapter supplied with the card and make sure it is fully seated.",
				Metadata:  ArticleMetadata{Category: "compatibility", Tags: []string{"gpu", "psu", "power"}},
				Status:    "published",
			},
			{
				ArticleID: "KB003",
				Title:     "Return Policy - PC Components",
				Content:   "Returns accepted within 30 days. GPUs and CPUs must be unopened unless DOA. Opened items are subject to a 15% restocking fee.",
				Metadata:  ArticleMetadata{Category: "returns", Tags: []string{"return", "refund", "policy"}},
				Status:    "published",
			},
			{
				ArticleID: "KB004",
				Title:     "DOA and Warranty Claims",
				Content:   "If a component is dead on arrival, contact us within 14 days for an advance replacement. After that, warranty claims go to the manufacturer.",
				Metadata:  ArticleMetadata{Category: "returns", Tags: []string{"doa", "warranty", "rma"}},
				Status:    "published",
			},
		},
		Products: []*Product{
			{SKU: "GPU-RTX4090", Name: "NVIDIA GeForce RTX 4090 24GB", Price: price("1599.99"), Category: "GPU"},
			{SKU: "GPU-RTX4080", Name: "NVIDIA GeForce RTX 4080 16GB", Price: price("1199.99"), Category: "GPU"},
			{SKU: "CPU-7800X3D", Name: "AMD Ryzen 7 7800X3D", Price: price("349.99"), Category: "CPU"},
			{SKU: "MB-X670E", Name: "ASUS ROG Crosshair X670E Hero", Price: price("699.99"), Category: "Motherboard"},
			{SKU: "PSU-1000W", Name: "Corsair RM1000x 1000W PSU", Price: price("189.99"), Category: "PSU"},
		},
		Inventory: map[string]*Inventory{
			"GPU-RTX4090": {Quantity: 5, LowStockThreshold: 3, Warehouse: "main"},
			"GPU-RTX4080": {Quantity: 0, LowStockThreshold: 3, Warehouse: "main"},
			"CPU-7800X3D": {Quantity: 12, LowStockThreshold: 5, Warehouse: "main"},
			"PSU-1000W":   {Quantity: 40, LowStockThreshold: 10, Warehouse: "east"},
		},
		Orders: []*Order{
			{
				OrderNumber:     "ORD-1001",
				Status:          "delivered",
				Total:           price("1599.99"),
				ShippingAddress: &Address{Street: "500 Congress Ave", City: "Austin", State: "TX", Zip: "78701"},
				TrackingNumber:  "1Z999AA10123456784",
				Carrier:         "UPS",
				CustomerName:    "Kal Demo",
				CustomerEmail:   "kal@example.com",
				Items: []*OrderItem{
					{SKU: "GPU-RTX4090", ProductName: "NVIDIA GeForce RTX 4090 24GB", Quantity: 1, UnitPrice: price("1599.99")},
				},
			},
			{
				OrderNumber:     "ORD-1002",
				Status:          "processing",
				Total:           price("349.99"),
				ShippingAddress: &Address{Street: "500 Congress Ave", City: "Austin", State: "TX", Zip: "78701"},
				CustomerName:    "Kal Demo",
				CustomerEmail:   "kal@example.com",
				Items: []*OrderItem{
					{SKU: "CPU-7800X3D", ProductName: "AMD Ryzen 7 7800X3D", Quantity: 1, UnitPrice: price("349.99")},
				},
			},
			{
				OrderNumber:   "ORD-1003",
				Status:        "refunded",
				Total:         price("189.99"),
				CustomerName:  "Kal Demo",
				CustomerEmail: "kal@example.com",
				Notes:         "Refunded after DOA report",
				Items: []*OrderItem{
					{SKU: "PSU-1000W", ProductName: "Corsair RM1000x 1000W PSU", Quantity: 1, UnitPrice: price("189.99")},
				},
			},
		},
	}
}

// Seed loads the data in one transaction. Rows whose natural key already
// exists are left untouched.
func (r *Repository) Seed(ctx context.Context, data DemoData) error {
	now := r.now()

	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, a := range data.Articles {
			a.CreatedAt = now
			if a.Status == "" {
				a.Status = "published"
			}
			if _, err := tx.NewInsert().Model(a).On("CONFLICT (article_id) DO NOTHING").Exec(ctx); err != nil {
				return fmt.Errorf("seed article %s: %w", a.ArticleID, err)
			}
		}

		productIDs := make(map[string]int64, len(data.Products))
		for _, p := range data.Products {
			p.CreatedAt = now
			if _, err := tx.NewInsert().Model(p).On("CONFLICT (sku) DO NOTHING").Exec(ctx); err != nil {
				return fmt.Errorf("seed product %s: %w", p.SKU, err)
			}
			if err := tx.NewSelect().Model((*Product)(nil)).Column("id").Where("sku = ?", p.SKU).Scan(ctx, &p.ID); err != nil {
				return fmt.Errorf("resolve product %s: %w", p.SKU, err)
			}
			productIDs[p.SKU] = p.ID
		}

		for sku, inv := range data.Inventory {
			productID, ok := productIDs[sku]
			if !ok {
				return fmt.Errorf("seed inventory: unknown sku %s", sku)
			}
			exists, err := tx.NewSelect().Model((*Inventory)(nil)).Where("product_id = ?", productID).Exists(ctx)
			if err != nil {
				return fmt.Errorf("check inventory %s: %w", sku, err)
			}
			if exists {
				continue
			}
			inv.ProductID = productID
			inv.UpdatedAt = now
			if inv.Warehouse == "" {
				inv.Warehouse = "main"
			}
			if _, err := tx.NewInsert().Model(inv).Exec(ctx); err != nil {
				return fmt.Errorf("seed inventory %s: %w", sku, err)
			}
		}

		for _, o := range data.Orders {
			exists, err := tx.NewSelect().Model((*Order)(nil)).Where("order_number = ?", o.OrderNumber).Exists(ctx)
			if err != nil {
				return fmt.Errorf("check order %s: %w", o.OrderNumber, err)
			}
			if exists {
				continue
			}
			o.CreatedAt = now
			o.UpdatedAt = now
			if _, err := tx.NewInsert().Model(o).Exec(ctx); err != nil {
				return fmt.Errorf("seed order %s: %w", o.OrderNumber, err)
			}
			for _, item := range o.Items {
				item.OrderID = o.ID
				item.ProductID = productIDs[item.SKU]
				item.CreatedAt = now
				if _, err := tx.NewInsert().Model(item).Exec(ctx); err != nil {
					return fmt.Errorf("seed order item %s/%s: %w", o.OrderNumber, item.SKU, err)
				}
			}
		}
		return nil
	})
}
