package processors

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/merchant-import/internal/core"
	"github.com/JonMunkholm/merchant-import/internal/tax"
)

var invoiceInfo = core.DomainInfo{
	Key:   "invoices",
	Label: "Invoices",
	Table: "invoices",
}

var invoiceColumns = []core.ColumnSpec{
	{Name: "invoice_number", Aliases: []string{"invoice id", "invoice number", "invoice no", "invoice #", "invoice"}, Required: true, Identity: true},
	{Name: "order_number", Aliases: []string{"order id", "order number", "order no", "order #"}, Required: true},
	{Name: "invoice_date", Aliases: []string{"date", "invoice date", "bill date"}, Type: core.FieldDate},
	{Name: "taxable_amount", Aliases: []string{"taxable value", "taxable amount", "amount", "subtotal"}, Type: core.FieldNumeric, Required: true, NonNegative: true},
	{Name: "gst_rate", Aliases: []string{"gst", "gst rate", "gst %", "tax rate"}, Type: core.FieldNumeric, NonNegative: true},
	{Name: "supplier_state", Aliases: []string{"supplier state", "state of supplier", "from state"}, Normalizer: NormalizeState},
	{Name: "place_of_supply", Aliases: []string{"place of supply", "pos", "customer state", "to state"}, Normalizer: NormalizeState},
}

var invoiceUpsert = upsert{
	table: "invoices",
	columns: []string{
		"merchant_id", "invoice_number", "order_number", "invoice_date",
		"taxable_amount", "gst_rate", "supplier_state", "place_of_supply",
		"cgst_amount", "sgst_amount", "igst_amount", "total_amount",
	},
}

// Invoice is the stored form of one invoice row.
type Invoice struct {
	InvoiceNumber string
	OrderNumber   string
	TaxableMinor  int64
	Tax           tax.Breakdown
}

// Invoices upserts invoices by (merchant_id, invoice_number). Each row
// must reference an existing order of the merchant; the GST split is
// computed by Tax.
type Invoices struct {
	Tax tax.Splitter
}

// Process implements core.DomainProcessor.
func (p Invoices) Process(ctx context.Context, tx core.DBTX, job core.UploadJob, items []core.CandidateItem) ([]core.ItemOutcome[Invoice], error) {
	orderNumbers := make([]string, len(items))
	for i, it := range items {
		orderNumbers[i] = it.Get("order_number")
	}
	known, err := lookupExisting(ctx, tx, "orders", "order_number", job.Scope.MerchantID, distinct(orderNumbers))
	if err != nil {
		return nil, err
	}

	splitter := p.Tax
	if splitter == nil {
		splitter = tax.Calculator{}
	}

	out := make([]core.ItemOutcome[Invoice], len(items))
	rows := make([]keyedRow, 0, len(items))

	for i, it := range items {
		rec := Invoice{
			InvoiceNumber: it.Get("invoice_number"),
			OrderNumber:   it.Get("order_number"),
		}
		out[i] = core.ItemOutcome[Invoice]{Line: it.Line, Key: rec.InvoiceNumber}

		if !known[rec.OrderNumber] {
			out[i].Err = fmt.Errorf("order %q not found", rec.OrderNumber)
			continue
		}

		in, err := taxInput(it)
		if err != nil {
			out[i].Err = err
			continue
		}
		rec.TaxableMinor = in.TaxableMinor
		rec.Tax, err = splitter.Split(in)
		if err != nil {
			out[i].Err = err
			continue
		}
		out[i].Result = rec

		rows = append(rows, keyedRow{idx: i, key: rec.InvoiceNumber, values: []any{
			job.Scope.MerchantID,
			rec.InvoiceNumber,
			rec.OrderNumber,
			core.ToPgDate(it.Get("invoice_date")),
			core.MinorToNumeric(in.TaxableMinor),
			core.MinorToNumeric(in.RateBasisPoints),
			core.ToPgText(in.SupplierState),
			core.ToPgText(in.PlaceOfSupply),
			core.MinorToNumeric(rec.Tax.CGST),
			core.MinorToNumeric(rec.Tax.SGST),
			core.MinorToNumeric(rec.Tax.IGST),
			core.MinorToNumeric(rec.Tax.Total),
		}})
	}

	actions, err := invoiceUpsert.run(ctx, tx, dedupe(out, rows, "invoice number"))
	if err != nil {
		return nil, err
	}
	if err := applyActions(out, rows, actions); err != nil {
		return nil, err
	}
	return out, nil
}

// taxInput converts the validated amount columns to minor units.
func taxInput(it core.CandidateItem) (tax.Input, error) {
	taxable, ok := core.NumericToMinor(core.ToPgNumeric(it.Get("taxable_amount")))
	if !ok {
		return tax.Input{}, fmt.Errorf("taxable amount %q out of range", it.Get("taxable_amount"))
	}

	var rate int64
	if raw := it.Get("gst_rate"); raw != "" {
		rate, ok = core.NumericToMinor(core.ToPgNumeric(raw))
		if !ok {
			return tax.Input{}, fmt.Errorf("gst rate %q out of range", raw)
		}
	}

	return tax.Input{
		TaxableMinor:    taxable,
		RateBasisPoints: rate,
		SupplierState:   it.Get("supplier_state"),
		PlaceOfSupply:   it.Get("place_of_supply"),
	}, nil
}
