package processors

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/merchant-import/internal/core"
)

var inventoryInfo = core.DomainInfo{
	Key:   "inventory",
	Label: "Inventory Items",
	Table: "inventory_items",
}

var inventoryColumns = []core.ColumnSpec{
	{Name: "name", Aliases: []string{"product", "product name", "item name", "item", "title"}, Required: true, Identity: true},
	{Name: "sku", Aliases: []string{"product code", "item code", "sku code"}, Identity: true, Normalizer: NormalizeSKU},
	{Name: "category", Aliases: []string{"product category", "type"}},
	{Name: "stock", Aliases: []string{"stock quantity", "quantity", "qty", "quantity on hand", "on hand"}, Type: core.FieldInteger, NonNegative: true},
	{Name: "reorder_level", Aliases: []string{"reorder", "reorder point", "reorder qty"}, Type: core.FieldInteger, NonNegative: true},
	{Name: "price", Aliases: []string{"unit price", "selling price", "mrp"}, Type: core.FieldNumeric, NonNegative: true},
}

var inventoryUpsert = upsert{
	table: "inventory_items",
	columns: []string{
		"merchant_id", "sku", "name", "category",
		"stock_quantity", "reorder_level", "unit_price",
	},
}

// InventoryItem is the stored form of one inventory row.
type InventoryItem struct {
	SKU          string
	Name         string
	Stock        int64
	ReorderLevel int64
}

// LowStock reports whether stock is at or below a set reorder level.
func (i InventoryItem) LowStock() bool {
	return i.ReorderLevel > 0 && i.Stock <= i.ReorderLevel
}

// Notice implements core.Notable for rows that need reordering.
func (i InventoryItem) Notice() (string, bool) {
	if !i.LowStock() {
		return "", false
	}
	return fmt.Sprintf("low stock, %d on hand at reorder level %d", i.Stock, i.ReorderLevel), true
}

// Inventory upserts inventory_items by (merchant_id, sku). Rows without a
// SKU get one derived from the product name.
type Inventory struct{}

// Process implements core.DomainProcessor.
func (Inventory) Process(ctx context.Context, tx core.DBTX, job core.UploadJob, items []core.CandidateItem) ([]core.ItemOutcome[InventoryItem], error) {
	out := make([]core.ItemOutcome[InventoryItem], len(items))
	rows := make([]keyedRow, 0, len(items))

	for i, it := range items {
		rec := InventoryItem{
			SKU:  it.Get("sku"),
			Name: it.Get("name"),
		}
		if rec.SKU == "" {
			rec.SKU = DeriveSKU(rec.Name)
		}
		stock := core.ToPgInt8(it.Get("stock"))
		reorder := core.ToPgInt8(it.Get("reorder_level"))
		rec.Stock, rec.ReorderLevel = stock.Int64, reorder.Int64

		out[i] = core.ItemOutcome[InventoryItem]{Line: it.Line, Key: rec.SKU, Result: rec}
		if rec.SKU == "" {
			out[i].Err = errNoSKU
			continue
		}

		rows = append(rows, keyedRow{idx: i, key: rec.SKU, values: []any{
			job.Scope.MerchantID,
			rec.SKU,
			rec.Name,
			core.ToPgText(it.Get("category")),
			stock,
			reorder,
			core.ToPgNumeric(it.Get("price")),
		}})
	}

	actions, err := inventoryUpsert.run(ctx, tx, dedupe(out, rows, "sku"))
	if err != nil {
		return nil, err
	}
	if err := applyActions(out, rows, actions); err != nil {
		return nil, err
	}
	return out, nil
}
