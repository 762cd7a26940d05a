// Package query is the execution gateway for user-composed SQL. It is the
// only component allowed to run arbitrary SQL; everything else in the
// system issues fixed administrative statements.
package query

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"datachat/svcerr"
)

const (
	MinPageSize = 1
	MaxPageSize = 500
)

// Result is one page of query output.
type Result struct {
	Columns    []string        `json:"columns"`
	Rows       [][]interface{} `json:"rows"`
	TotalCount int             `json:"total_count"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
	TotalPages int             `json:"total_pages"`
	ElapsedMs  int64           `json:"elapsed_ms"`
}

// Gateway validates and executes read-only SQL with pagination.
type Gateway struct {
	logger func(string)
}

// NewGateway creates a Gateway.
func NewGateway(logger func(string)) *Gateway {
	if logger == nil {
		logger = func(string) {}
	}
	return &Gateway{logger: logger}
}

// Execute runs sqlText against db and returns the requested page.
// The statement is wrapped in a counting subquery for total_count and in a
// limit/offset subquery for the page slice. elapsed_ms covers the page
// fetch only.
func (g *Gateway) Execute(ctx context.Context, db *sql.DB, sqlText string, page, pageSize int) (*Result, error) {
	if err := Validate(sqlText); err != nil {
		return nil, err
	}
	if page < 1 {
		return nil, svcerr.Validation("page 必须 >= 1")
	}
	if pageSize < MinPageSize || pageSize > MaxPageSize {
		return nil, svcerr.Validation("page_size 必须在 [%d, %d] 范围内", MinPageSize, MaxPageSize)
	}

	inner := strings.TrimRight(strings.TrimSpace(sqlText), "; \t\n\r")

	countSQL := fmt.Sprintf("SELECT COUNT(*) FROM (%s) AS _count", inner)
	var totalCount int
	if err := db.QueryRowContext(ctx, countSQL).Scan(&totalCount); err != nil {
		return nil, fmt.Errorf("%w: %v", svcerr.ErrExecution, err)
	}

	totalPages := int(math.Ceil(float64(totalCount) / float64(pageSize)))
	if totalPages < 1 {
		totalPages = 1
	}
	offset := (page - 1) * pageSize

	pagedSQL := fmt.Sprintf("SELECT * FROM (%s) AS _page LIMIT %d OFFSET %d", inner, pageSize, offset)

	start := time.Now()
	rows, err := db.QueryContext(ctx, pagedSQL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", svcerr.ErrExecution, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", svcerr.ErrExecution, err)
	}

	resultRows := make([][]interface{}, 0, pageSize)
	for rows.Next() {
		values := make([]interface{}, len(cols))
		pointers := make([]interface{}, len(cols))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("%w: %v", svcerr.ErrExecution, err)
		}
		row := make([]interface{}, len(cols))
		for i := range values {
			if b, ok := values[i].([]byte); ok {
				row[i] = string(b)
			} else {
				row[i] = values[i]
			}
		}
		resultRows = append(resultRows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", svcerr.ErrExecution, err)
	}
	elapsed := time.Since(start).Milliseconds()

	g.logger(fmt.Sprintf("[QUERY] page=%d size=%d total=%d elapsed=%dms", page, pageSize, totalCount, elapsed))

	return &Result{
		Columns:    cols,
		Rows:       resultRows,
		TotalCount: totalCount,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
		ElapsedMs:  elapsed,
	}, nil
}
