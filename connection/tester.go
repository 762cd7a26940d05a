package connection

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/go-sql-driver/mysql"

	"datachat/dbpool"
	"datachat/svcerr"
)

// Result is the outcome of a connectivity probe.
type Result struct {
	Success       bool    `json:"success"`
	Message       string  `json:"message"`
	EngineVersion *string `json:"engine_version"`
	TableCount    *int    `json:"table_count"`
}

// Tester probes connection parameters with a bounded timeout and
// classifies the failure mode for the user.
type Tester struct {
	logger func(string)
}

// NewTester creates a Tester.
func NewTester(logger func(string)) *Tester {
	if logger == nil {
		logger = func(string) {}
	}
	return &Tester{logger: logger}
}

const probeTimeout = 5 * time.Second

// Test probes the given parameters without saving anything.
func (t *Tester) Test(p Params) Result {
	rec := Record{
		Type:     p.Type,
		Host:     p.Host,
		Port:     p.Port,
		User:     p.User,
		Password: p.Password,
		Database: p.Database,
	}
	return t.testRecord(rec)
}

// TestByID probes a saved record.
func (t *Tester) TestByID(store *Store, id string) (Result, error) {
	rec, ok := store.Get(id)
	if !ok {
		return Result{}, svcerr.NotFound("connection", id)
	}
	return t.testRecord(rec), nil
}

func (t *Tester) testRecord(rec Record) Result {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	db, err := sql.Open(string(EngineFor(rec)), DSNFor(rec))
	if err != nil {
		return Result{Success: false, Message: fmt.Sprintf("连接异常：%v", err)}
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		return t.classify(rec, err)
	}

	dialect := dbpool.NewDialect(EngineFor(rec))

	var version string
	if err := db.QueryRowContext(ctx, dialect.VersionQuery()).Scan(&version); err != nil {
		return t.classify(rec, err)
	}

	rows, err := db.QueryContext(ctx, dialect.ListTablesQuery())
	if err != nil {
		return t.classify(rec, err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		count++
	}
	if err := rows.Err(); err != nil {
		return t.classify(rec, err)
	}

	t.logger(fmt.Sprintf("[CONN-TEST] %s:%d/%s ok, version=%s, tables=%d",
		rec.Host, rec.Port, rec.Database, version, count))

	return Result{
		Success:       true,
		Message:       fmt.Sprintf("连接成功 - %s，共 %d 张表", version, count),
		EngineVersion: &version,
		TableCount:    &count,
	}
}

// classify maps a driver error onto one of the user-facing failure
// messages: authentication failure, unreachable host, unknown database,
// or generic failure.
func (t *Tester) classify(rec Record, err error) Result {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1045:
			return Result{Success: false, Message: fmt.Sprintf("认证失败：用户名或密码错误 (%s)", myErr.Message)}
		case 1049:
			return Result{Success: false, Message: fmt.Sprintf("数据库 '%s' 不存在 (%s)", rec.Database, myErr.Message)}
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return Result{Success: false, Message: fmt.Sprintf("无法连接到 %s:%d，请检查地址和端口 (%v)", rec.Host, rec.Port, err)}
	}

	return Result{Success: false, Message: fmt.Sprintf("连接失败：%v", err)}
}
