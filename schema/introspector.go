// Package schema normalizes engine-specific table metadata into a uniform
// shape used by the tool layer and the HTTP schema endpoint.
package schema

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"datachat/dbpool"
	"datachat/svcerr"
)

// Column describes one table column.
type Column struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	PrimaryKey bool   `json:"primary_key"`
	Nullable   bool   `json:"nullable"`
}

// Table describes one table and its columns.
type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// Introspector reads table metadata through fixed administrative
// statements. It has no side effects.
type Introspector struct {
	logger func(string)
}

// NewIntrospector creates an Introspector.
func NewIntrospector(logger func(string)) *Introspector {
	if logger == nil {
		logger = func(string) {}
	}
	return &Introspector{logger: logger}
}

// TableNames lists the user tables of the connected database.
func (in *Introspector) TableNames(ctx context.Context, db *sql.DB, dialect *dbpool.Dialect) ([]string, error) {
	rows, err := db.QueryContext(ctx, dialect.ListTablesQuery())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", svcerr.ErrConnectivity, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, svcerr.Wrap("introspector", "TableNames", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, svcerr.Wrap("introspector", "TableNames", err)
	}
	return names, nil
}

// Tables returns the full schema of the connected database. If tableNames
// is non-empty, only those tables are described.
func (in *Introspector) Tables(ctx context.Context, db *sql.DB, dialect *dbpool.Dialect, tableNames []string) ([]Table, error) {
	names := tableNames
	if len(names) == 0 {
		var err error
		names, err = in.TableNames(ctx, db, dialect)
		if err != nil {
			return nil, err
		}
	}

	tables := make([]Table, 0, len(names))
	for _, name := range names {
		cols, err := in.columns(ctx, db, dialect, name)
		if err != nil {
			return nil, err
		}
		tables = append(tables, Table{Name: name, Columns: cols})
	}
	return tables, nil
}

func (in *Introspector) columns(ctx context.Context, db *sql.DB, dialect *dbpool.Dialect, tableName string) ([]Column, error) {
	rows, err := db.QueryContext(ctx, dialect.DescribeColumnsQuery(tableName))
	if err != nil {
		return nil, fmt.Errorf("%w: describe %s: %v", svcerr.ErrConnectivity, tableName, err)
	}
	defer rows.Close()

	switch dialect.Engine {
	case dbpool.EngineSQLite:
		return scanSQLiteColumns(rows)
	default:
		return scanMySQLColumns(rows)
	}
}

// scanMySQLColumns parses DESCRIBE output:
// Field | Type | Null (YES/NO) | Key (PRI/...) | Default | Extra
func scanMySQLColumns(rows *sql.Rows) ([]Column, error) {
	var cols []Column
	for rows.Next() {
		var field, colType string
		var null, key, extra sql.NullString
		var dflt interface{}
		if err := rows.Scan(&field, &colType, &null, &key, &dflt, &extra); err != nil {
			return nil, svcerr.Wrap("introspector", "columns", err)
		}
		cols = append(cols, Column{
			Name:       field,
			Type:       colType,
			PrimaryKey: strings.EqualFold(key.String, "PRI"),
			Nullable:   strings.EqualFold(null.String, "YES"),
		})
	}
	return cols, rows.Err()
}

// scanSQLiteColumns parses PRAGMA table_info output:
// cid | name | type | notnull | dflt_value | pk
func scanSQLiteColumns(rows *sql.Rows) ([]Column, error) {
	var cols []Column
	for rows.Next() {
		var cid, notNull, pk int
		var name, colType string
		var dflt interface{}
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return nil, svcerr.Wrap("introspector", "columns", err)
		}
		if colType == "" {
			colType = "TEXT"
		}
		cols = append(cols, Column{
			Name:       name,
			Type:       colType,
			PrimaryKey: pk > 0,
			Nullable:   notNull == 0,
		})
	}
	return cols, rows.Err()
}
