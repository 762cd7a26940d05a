package connection

import (
	"database/sql"
	"errors"
	"net"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-sql-driver/mysql"

	"datachat/svcerr"
)

func TestTestSQLiteSuccess(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "probe.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if _, err := db.Exec(`CREATE TABLE a (id INTEGER); CREATE TABLE b (id INTEGER)`); err != nil {
		t.Fatalf("seed: %v", err)
	}
	db.Close()

	tester := NewTester(nil)
	res := tester.Test(Params{Type: "sqlite", Database: dbPath})
	if !res.Success {
		t.Fatalf("probe failed: %s", res.Message)
	}
	if res.EngineVersion == nil || *res.EngineVersion == "" {
		t.Error("missing engine version")
	}
	if res.TableCount == nil || *res.TableCount != 2 {
		t.Errorf("TableCount = %v, want 2", res.TableCount)
	}
	if !strings.Contains(res.Message, "共 2 张表") {
		t.Errorf("Message = %q", res.Message)
	}
}

func TestTestByIDUnknown(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "connections.json"))
	tester := NewTester(nil)
	_, err := tester.TestByID(store, "missing")
	if !errors.Is(err, svcerr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

type fakeNetError struct{}

func (fakeNetError) Error() string   { return "dial tcp: connection refused" }
func (fakeNetError) Timeout() bool   { return false }
func (fakeNetError) Temporary() bool { return false }

func TestClassify(t *testing.T) {
	tester := NewTester(nil)
	rec := Record{Host: "db.internal", Port: 3306, Database: "hr"}

	cases := []struct {
		err  error
		want string
	}{
		{&mysql.MySQLError{Number: 1045, Message: "Access denied"}, "认证失败"},
		{&mysql.MySQLError{Number: 1049, Message: "Unknown database"}, "数据库 'hr' 不存在"},
		{fakeNetError{}, "无法连接到 db.internal:3306"},
		{errors.New("something else"), "连接失败"},
	}
	for _, c := range cases {
		res := tester.classify(rec, c.err)
		if res.Success {
			t.Errorf("classify(%v) reported success", c.err)
		}
		if !strings.Contains(res.Message, c.want) {
			t.Errorf("classify(%v) = %q, want substring %q", c.err, res.Message, c.want)
		}
	}
}

var _ net.Error = fakeNetError{}
