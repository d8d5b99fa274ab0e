package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	"freight-dashboard/internal/models"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)

// SQLColumns lists the column names LoadSQL selects, in canonical order.
func SQLColumns() []string {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.sqlName
	}
	return names
}

// SelectQuery returns the statement LoadSQL issues against table.
func SelectQuery(table string) string {
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(SQLColumns(), ", "), table)
}

// LoadSQL reads leads from a table whose columns use the snake_case field
// names. Values go through the same coercion as CSV input; rows that fail
// to scan are skipped and counted.
func LoadSQL(ctx context.Context, db *sql.DB, table string, opts ...Option) (*Dataset, error) {
	o := applyOptions(opts)
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	start := time.Now()
	rows, err := db.QueryContext(ctx, SelectQuery(table))
	if err != nil {
		return nil, fmt.Errorf("query leads: %w", err)
	}
	defer rows.Close()

	values := make([]sql.NullString, len(columns))
	dest := make([]any, len(columns))
	for i := range values {
		dest[i] = &values[i]
	}

	var raw [][]string
	skipped := 0
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			skipped++
			o.logger.Warn("skipping unreadable row", "table", table, "error", err)
			continue
		}
		row := make([]string, len(columns))
		for i, v := range values {
			row[i] = sqlValue(columns[i].kind, v)
		}
		raw = append(raw, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leads: %w", err)
	}

	identity := make([]int, len(columns))
	for i := range identity {
		identity[i] = i
	}

	records, err := coerceRows(ctx, raw, identity, o)
	if err != nil {
		return nil, err
	}

	ds := finish(&Dataset{records: records, columns: Headers(), skipped: skipped})
	o.logger.Info("dataset loaded",
		"table", table,
		"records", ds.Len(),
		"skipped", skipped,
		"duration", time.Since(start),
	)
	return ds, nil
}

// sqlValue adapts driver text to the CSV representation. Date columns may
// arrive as RFC 3339 timestamps.
func sqlValue(kind fieldKind, v sql.NullString) string {
	if !v.Valid {
		return ""
	}
	if kind == kindDate {
		if t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(v.String)); err == nil {
			return t.Format(models.DateLayout)
		}
	}
	return v.String
}
