package processors

import (
	"context"
	"fmt"
	"strings"

	"github.com/JonMunkholm/merchant-import/internal/core"
)

// maxParams is the PostgreSQL limit on bind parameters per statement.
const maxParams = 65535

// upsert is a multi-row INSERT ... ON CONFLICT DO UPDATE for one table.
// columns[0] must be merchant_id and columns[1] the natural key.
type upsert struct {
	table   string
	columns []string
}

func (u upsert) key() string { return u.columns[1] }

// statement builds the SQL for n rows. The returned rows carry the key
// and whether the row was inserted (xmax = 0) or updated.
func (u upsert) statement(n int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ", u.table, strings.Join(u.columns, ", "))

	p := 1
	for r := 0; r < n; r++ {
		if r > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		for c := range u.columns {
			if c > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", p)
			p++
		}
		sb.WriteByte(')')
	}

	fmt.Fprintf(&sb, " ON CONFLICT (%s, %s) DO UPDATE SET ", u.columns[0], u.key())
	for i, c := range u.columns[2:] {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s = EXCLUDED.%s", c, c)
	}
	sb.WriteString(", updated_at = now()")
	fmt.Fprintf(&sb, " RETURNING %s, (xmax = 0) AS inserted", u.key())
	return sb.String()
}

// run writes rows, splitting them so no statement exceeds maxParams.
// Each row holds one value per column.
func (u upsert) run(ctx context.Context, tx core.DBTX, rows [][]any) (map[string]core.ItemAction, error) {
	actions := make(map[string]core.ItemAction, len(rows))
	per := maxParams / len(u.columns)

	for start := 0; start < len(rows); start += per {
		chunk := rows[start:min(start+per, len(rows))]
		args := make([]any, 0, len(chunk)*len(u.columns))
		for _, r := range chunk {
			args = append(args, r...)
		}

		if err := u.exec(ctx, tx, len(chunk), args, actions); err != nil {
			return nil, err
		}
	}
	return actions, nil
}

func (u upsert) exec(ctx context.Context, tx core.DBTX, n int, args []any, actions map[string]core.ItemAction) error {
	rows, err := tx.Query(ctx, u.statement(n), args...)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", u.table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var inserted bool
		if err := rows.Scan(&key, &inserted); err != nil {
			return fmt.Errorf("scan %s: %w", u.table, err)
		}
		if inserted {
			actions[key] = core.ActionCreated
		} else {
			actions[key] = core.ActionUpdated
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("upsert %s: %w", u.table, err)
	}
	return nil
}

// keyedRow is one item ready to be written.
type keyedRow struct {
	idx    int // position in the batch
	key    string
	values []any
}

// dedupe keeps the last row for each key; a single statement cannot
// update the same row twice. Earlier rows are marked in out. label names
// the key in the message, e.g. "sku".
func dedupe[R any](out []core.ItemOutcome[R], rows []keyedRow, label string) [][]any {
	last := make(map[string]int, len(rows))
	for i, r := range rows {
		last[r.key] = i
	}

	values := make([][]any, 0, len(last))
	for i, r := range rows {
		if j := last[r.key]; j != i {
			out[r.idx].Err = fmt.Errorf("duplicate %s %q, superseded by row %d", label, r.key, out[rows[j].idx].Line)
			continue
		}
		values = append(values, r.values)
	}
	return values
}

// applyActions copies the upsert result onto every outcome that was
// written. A written key missing from the result is a store error.
func applyActions[R any](out []core.ItemOutcome[R], rows []keyedRow, actions map[string]core.ItemAction) error {
	for _, r := range rows {
		if out[r.idx].Err != nil {
			continue
		}
		action, ok := actions[r.key]
		if !ok {
			return fmt.Errorf("no row returned for %q", r.key)
		}
		out[r.idx].Action = action
	}
	return nil
}

// lookupExisting returns which of keys exist in table for the merchant.
func lookupExisting(ctx context.Context, tx core.DBTX, table, column, merchantID string, keys []string) (map[string]bool, error) {
	found := make(map[string]bool, len(keys))
	if len(keys) == 0 {
		return found, nil
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE merchant_id = $1 AND %s = ANY($2)", column, table, column)
	rows, err := tx.Query(ctx, query, merchantID, keys)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		found[key] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lookup %s: %w", table, err)
	}
	return found, nil
}

// distinct returns the non-empty values in first-seen order.
func distinct(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
