package query

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"datachat/svcerr"
)

// Fetch runs sqlText through the same admission gate as Execute and
// returns the rows as records. A LIMIT is appended when the statement has
// none, capping what the reasoning loop can pull into model context.
func (g *Gateway) Fetch(ctx context.Context, db *sql.DB, sqlText string, maxRows int) ([]map[string]interface{}, error) {
	if err := Validate(sqlText); err != nil {
		return nil, err
	}

	clean := strings.TrimRight(strings.TrimSpace(sqlText), "; \t\n\r")
	if maxRows > 0 && !strings.Contains(strings.ToUpper(clean), "LIMIT") {
		clean = fmt.Sprintf("%s LIMIT %d", clean, maxRows)
	}

	rows, err := db.QueryContext(ctx, clean)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", svcerr.ErrExecution, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", svcerr.ErrExecution, err)
	}

	var records []map[string]interface{}
	for rows.Next() {
		values := make([]interface{}, len(cols))
		pointers := make([]interface{}, len(cols))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("%w: %v", svcerr.ErrExecution, err)
		}
		rec := make(map[string]interface{}, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				rec[col] = string(b)
			} else {
				rec[col] = values[i]
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", svcerr.ErrExecution, err)
	}
	return records, nil
}
