package processors

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/merchant-import/internal/core"
)

func TestOrders_Process(t *testing.T) {
	db := newFakeDB()
	db.seed("inventory_items", "m1", "BW-1")
	db.seed("inventory_items", "m2", "RW-1")

	items := []core.CandidateItem{
		candidate(2, map[string]string{"order_number": "SO-1", "sku": "BW-1", "quantity": "2"}),
		candidate(3, map[string]string{"order_number": "SO-2", "sku": "RW-1"}),
		candidate(4, map[string]string{"order_number": "SO-3", "status": "shipped"}),
	}

	out, err := Orders{}.Process(context.Background(), db, job("m1"), items)
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.Equal(t, core.ActionCreated, out[0].Action)
	assert.Equal(t, "pending", out[0].Result.Status)
	assert.EqualError(t, out[1].Err, `sku "RW-1" not found in inventory`)
	assert.Equal(t, core.ActionCreated, out[2].Action)
	assert.Equal(t, "shipped", out[2].Result.Status)

	assert.Equal(t, 2, db.count("orders"))
	assert.Equal(t, "pending", db.row("orders", "m1", "SO-1")["status"])
	assert.Nil(t, db.row("orders", "m1", "SO-2"))
}

func TestOrders_UpdateExisting(t *testing.T) {
	db := newFakeDB()
	db.seed("orders", "m1", "SO-1")

	out, err := Orders{}.Process(context.Background(), db, job("m1"),
		[]core.CandidateItem{candidate(2, map[string]string{"order_number": "SO-1", "status": "delivered"})})

	require.NoError(t, err)
	assert.Equal(t, core.ActionUpdated, out[0].Action)
	assert.Equal(t, "delivered", db.row("orders", "m1", "SO-1")["status"])
}

func TestValidEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
		ok    bool
	}{
		{"empty", "", true},
		{"plain", "asha@example.com", true},
		{"missing at", "asha.example.com", false},
		{"spaces", "asha @example", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validEmail(candidate(2, map[string]string{"customer_email": tt.email}))
			if tt.ok {
				assert.Nil(t, err)
				return
			}
			require.NotNil(t, err)
			assert.Equal(t, "customer_email", err.Field)
		})
	}
}

func TestOrdersImport_EndToEnd(t *testing.T) {
	imp, ok := core.Get("orders")
	require.True(t, ok)

	db := newFakeDB()
	input := "Order ID,Customer,Email,Order Status,Qty,Order Total\n" +
		"SO-1,Asha,ASHA@Example.com,Shipped,2,\"1,000\"\n" +
		"SO-2,Ravi,not-an-email,,1,10\n" +
		"SO-3,Meera,,lost,1,10\n"

	summary, err := imp.Import(context.Background(), core.JobEnv{Store: fakeStore{db}}, core.ImportRequest{
		UploadID: "u1",
		Scope:    core.Scope{MerchantID: "m1"},
		Source:   strings.NewReader(input),
	})

	require.NoError(t, err)
	assert.Equal(t, 1, summary.CreatedCount)
	require.Len(t, summary.Errors, 2)
	assert.Contains(t, summary.Errors[0], "row 3: customer_email")
	assert.Contains(t, summary.Errors[1], "row 4: status")

	stored := db.row("orders", "m1", "SO-1")
	require.NotNil(t, stored)
	assert.Equal(t, "shipped", stored["status"])
	assert.Equal(t, int64(100000), minor(stored["total_amount"]))
}
