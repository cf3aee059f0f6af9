// Package processors registers the inventory, orders and invoices import
// domains with the core registry. Import it for its side effects.
//
// Each processor turns a batch into one multi-row upsert keyed by the
// merchant and the row's natural key. Problems with a single row, such as
// a reference to an order that does not exist, are reported on that row;
// store errors fail the whole batch so it is rolled back and retried.
package processors

import (
	"errors"

	"github.com/JonMunkholm/merchant-import/internal/core"
	"github.com/JonMunkholm/merchant-import/internal/tax"
)

var errNoSKU = errors.New("sku is empty and cannot be derived from name")

func init() {
	core.Register(core.NewPipeline[InventoryItem](inventoryInfo, inventoryColumns, Inventory{}))
	core.Register(core.NewPipeline[Order](orderInfo, orderColumns, Orders{}, validEmail))
	core.Register(core.NewPipeline[Invoice](invoiceInfo, invoiceColumns, Invoices{Tax: tax.Calculator{}}))
}
