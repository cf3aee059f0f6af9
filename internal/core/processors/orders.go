package processors

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/JonMunkholm/merchant-import/internal/core"
)

var orderInfo = core.DomainInfo{
	Key:   "orders",
	Label: "Orders",
	Table: "orders",
}

// OrderStatuses are the accepted order states. Empty defaults to pending.
var OrderStatuses = []string{"pending", "processing", "shipped", "delivered", "cancelled"}

var orderColumns = []core.ColumnSpec{
	{Name: "order_number", Aliases: []string{"order id", "order number", "order no", "order #", "order"}, Required: true, Identity: true},
	{Name: "customer_name", Aliases: []string{"customer", "customer name", "buyer", "buyer name"}},
	{Name: "customer_email", Aliases: []string{"email", "customer email", "buyer email"}, Normalizer: NormalizeEmail},
	{Name: "status", Aliases: []string{"order status"}, Type: core.FieldEnum, EnumValues: OrderStatuses, Normalizer: NormalizeLower},
	{Name: "sku", Aliases: []string{"product code", "item code"}, Normalizer: NormalizeSKU},
	{Name: "quantity", Aliases: []string{"qty", "units"}, Type: core.FieldInteger, NonNegative: true},
	{Name: "total_amount", Aliases: []string{"total", "amount", "order total", "grand total"}, Type: core.FieldNumeric, NonNegative: true},
	{Name: "order_date", Aliases: []string{"date", "order date", "ordered at", "created at"}, Type: core.FieldDate},
}

// validEmail rejects addresses net/mail cannot parse.
func validEmail(it core.CandidateItem) *core.ValidationError {
	email := it.Get("customer_email")
	if email == "" {
		return nil
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return &core.ValidationError{Field: "customer_email", Value: email, Message: fmt.Sprintf("invalid email %q", email)}
	}
	return nil
}

var orderUpsert = upsert{
	table: "orders",
	columns: []string{
		"merchant_id", "order_number", "customer_name", "customer_email",
		"status", "sku", "quantity", "total_amount", "order_date",
	},
}

// Order is the stored form of one order row.
type Order struct {
	OrderNumber string
	Customer    string
	Status      string
	SKU         string
}

// Orders upserts orders by (merchant_id, order_number). A referenced SKU
// must exist in the merchant's inventory; rows that reference an unknown
// SKU are rejected individually.
type Orders struct{}

// Process implements core.DomainProcessor.
func (Orders) Process(ctx context.Context, tx core.DBTX, job core.UploadJob, items []core.CandidateItem) ([]core.ItemOutcome[Order], error) {
	skus := make([]string, len(items))
	for i, it := range items {
		skus[i] = it.Get("sku")
	}
	known, err := lookupExisting(ctx, tx, "inventory_items", "sku", job.Scope.MerchantID, distinct(skus))
	if err != nil {
		return nil, err
	}

	out := make([]core.ItemOutcome[Order], len(items))
	rows := make([]keyedRow, 0, len(items))

	for i, it := range items {
		rec := Order{
			OrderNumber: it.Get("order_number"),
			Customer:    it.Get("customer_name"),
			Status:      it.Get("status"),
			SKU:         it.Get("sku"),
		}
		if rec.Status == "" {
			rec.Status = "pending"
		}

		out[i] = core.ItemOutcome[Order]{Line: it.Line, Key: rec.OrderNumber, Result: rec}
		if rec.SKU != "" && !known[rec.SKU] {
			out[i].Err = fmt.Errorf("sku %q not found in inventory", rec.SKU)
			continue
		}

		rows = append(rows, keyedRow{idx: i, key: rec.OrderNumber, values: []any{
			job.Scope.MerchantID,
			rec.OrderNumber,
			core.ToPgText(rec.Customer),
			core.ToPgText(it.Get("customer_email")),
			rec.Status,
			core.ToPgText(rec.SKU),
			core.ToPgInt8(it.Get("quantity")),
			core.ToPgNumeric(it.Get("total_amount")),
			core.ToPgDate(it.Get("order_date")),
		}})
	}

	actions, err := orderUpsert.run(ctx, tx, dedupe(out, rows, "order number"))
	if err != nil {
		return nil, err
	}
	if err := applyActions(out, rows, actions); err != nil {
		return nil, err
	}
	return out, nil
}
