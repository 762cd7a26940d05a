package query

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"datachat/svcerr"
)

func TestExecutePagination(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM (SELECT id, name FROM employees) AS _count")).
		WillReturnRows(sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(7))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM (SELECT id, name FROM employees) AS _page LIMIT 3 OFFSET 3")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(4, []byte("丁")).
			AddRow(5, []byte("戊")).
			AddRow(6, []byte("己")))

	g := NewGateway(nil)
	res, err := g.Execute(context.Background(), db, "SELECT id, name FROM employees;", 2, 3)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if res.TotalCount != 7 {
		t.Errorf("TotalCount = %d, want 7", res.TotalCount)
	}
	if res.TotalPages != 3 {
		t.Errorf("TotalPages = %d, want 3", res.TotalPages)
	}
	if res.Page != 2 || res.PageSize != 3 {
		t.Errorf("page=%d size=%d, want 2/3", res.Page, res.PageSize)
	}
	if len(res.Rows) != 3 {
		t.Fatalf("len(Rows) = %d, want 3", len(res.Rows))
	}
	if res.Rows[0][1] != "丁" {
		t.Errorf("Rows[0][1] = %v, want 丁 (bytes converted to string)", res.Rows[0][1])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestExecuteEmptyResultStillOnePage(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT COUNT").WillReturnRows(sqlmock.NewRows([]string{"c"}).AddRow(0))
	mock.ExpectQuery("SELECT \\* FROM").WillReturnRows(sqlmock.NewRows([]string{"id"}))

	g := NewGateway(nil)
	res, err := g.Execute(context.Background(), db, "SELECT id FROM empty_table", 1, 50)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.TotalPages != 1 {
		t.Errorf("TotalPages = %d, want 1 for empty result", res.TotalPages)
	}
	if len(res.Rows) != 0 {
		t.Errorf("len(Rows) = %d, want 0", len(res.Rows))
	}
}

func TestExecuteRejectsBeforeEngine(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	g := NewGateway(nil)
	_, err = g.Execute(context.Background(), db, "DROP TABLE employees", 1, 50)
	if !errors.Is(err, svcerr.ErrForbiddenStatement) {
		t.Fatalf("err = %v, want ErrForbiddenStatement", err)
	}
	// No expectations were set, so any engine contact would have failed
	// the mock.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("engine was contacted: %v", err)
	}
}

func TestExecutePageBounds(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	g := NewGateway(nil)
	cases := []struct {
		page, size int
	}{
		{0, 50},
		{1, 0},
		{1, 501},
		{-3, 50},
	}
	for _, c := range cases {
		_, err := g.Execute(context.Background(), db, "SELECT 1", c.page, c.size)
		if !errors.Is(err, svcerr.ErrValidation) {
			t.Errorf("Execute(page=%d, size=%d) = %v, want ErrValidation", c.page, c.size, err)
		}
	}
}

func TestExecuteSurfacesEngineError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT COUNT").WillReturnError(errors.New("Unknown column 'salry'"))

	g := NewGateway(nil)
	_, err = g.Execute(context.Background(), db, "SELECT salry FROM employees", 1, 50)
	if !errors.Is(err, svcerr.ErrExecution) {
		t.Fatalf("err = %v, want ErrExecution", err)
	}
}

func TestFetchAppendsLimit(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT name FROM employees LIMIT 100")).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("甲"))

	g := NewGateway(nil)
	records, err := g.Fetch(context.Background(), db, "SELECT name FROM employees;", 100)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(records) != 1 || records[0]["name"] != "甲" {
		t.Errorf("records = %v", records)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestFetchKeepsExistingLimit(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT name FROM employees LIMIT 5")).
		WillReturnRows(sqlmock.NewRows([]string{"name"}))

	g := NewGateway(nil)
	if _, err := g.Fetch(context.Background(), db, "SELECT name FROM employees LIMIT 5", 100); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
