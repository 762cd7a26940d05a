package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	einoSchema "github.com/cloudwego/eino/schema"

	"datachat/agent"
	"datachat/chart"
	"datachat/connection"
	"datachat/dbpool"
	"datachat/query"
	dbschema "datachat/schema"
	"datachat/session"
)

type scriptedModel struct {
	responses []*einoSchema.Message
	calls     int
}

func (m *scriptedModel) BindTools(tools []*einoSchema.ToolInfo) error { return nil }

func (m *scriptedModel) Generate(ctx context.Context, input []*einoSchema.Message, opts ...model.Option) (*einoSchema.Message, error) {
	idx := m.calls
	m.calls++
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	return m.responses[idx], nil
}

func (m *scriptedModel) Stream(ctx context.Context, input []*einoSchema.Message, opts ...model.Option) (*einoSchema.StreamReader[*einoSchema.Message], error) {
	return nil, nil
}

type testEnv struct {
	handler  http.Handler
	sessions *session.Store
	manager  *connection.Manager
	connID   string
}

func newTestServer(t *testing.T, loop *scriptedModel, chartAnswer string) *testEnv {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer db.Close()
	seed := []string{
		`CREATE TABLE employees (id INTEGER PRIMARY KEY, name TEXT, dept TEXT NOT NULL, salary REAL)`,
		`INSERT INTO employees (name, dept, salary) VALUES ('甲', '销售部', 8000), ('乙', '销售部', 9000), ('丙', '研发部', 15000)`,
	}
	for _, s := range seed {
		if _, err := db.Exec(s); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	store := connection.NewStore(filepath.Join(dir, "connections.json"))
	rec, err := store.Add(connection.Params{Name: "测试", Type: "sqlite", Database: dbPath})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	manager := connection.NewManager(store, dbpool.New(nil), nil)
	t.Cleanup(manager.Close)

	introspector := dbschema.NewIntrospector(nil)
	gateway := query.NewGateway(nil)
	sessions := session.NewStore()

	agentSvc, err := agent.NewService(loop, manager, introspector, gateway, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	charts := chart.NewSynthesizer(&scriptedModel{responses: []*einoSchema.Message{
		{Role: einoSchema.Assistant, Content: chartAnswer},
	}}, nil)

	srv := New(manager, connection.NewTester(nil), introspector, gateway, sessions, agentSvc, charts, nil)
	return &testEnv{handler: srv.Handler(), sessions: sessions, manager: manager, connID: rec.ID}
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func finalOnly(answer string) *scriptedModel {
	return &scriptedModel{responses: []*einoSchema.Message{
		{Role: einoSchema.Assistant, Content: answer},
	}}
}

func TestQueryEndpointPagination(t *testing.T) {
	env := newTestServer(t, finalOnly("x"), "{}")

	rec := doJSON(t, env.handler, "POST", "/api/database/query",
		`{"connection_id":"`+env.connID+`","sql":"SELECT name, dept FROM employees ORDER BY id","page":1,"page_size":2}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var res query.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.TotalCount != 3 || res.TotalPages != 2 || len(res.Rows) != 2 {
		t.Errorf("result = %+v", res)
	}
}

func TestQueryEndpointForbidden(t *testing.T) {
	env := newTestServer(t, finalOnly("x"), "{}")

	rec := doJSON(t, env.handler, "POST", "/api/database/query",
		`{"connection_id":"`+env.connID+`","sql":"DROP TABLE employees","page":1,"page_size":50}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Code != "forbidden_statement" {
		t.Errorf("code = %q", body.Code)
	}

	// The table must still exist.
	rec = doJSON(t, env.handler, "POST", "/api/database/query",
		`{"connection_id":"`+env.connID+`","sql":"SELECT COUNT(*) FROM employees"}`)
	if rec.Code != http.StatusOK {
		t.Errorf("table is gone after rejected DROP: %s", rec.Body.String())
	}
}

func TestSchemaEndpoint(t *testing.T) {
	env := newTestServer(t, finalOnly("x"), "{}")

	rec := doJSON(t, env.handler, "GET", "/api/database/schema?connection_id="+env.connID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Tables []dbschema.Table `json:"tables"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Tables) != 1 || body.Tables[0].Name != "employees" {
		t.Fatalf("tables = %+v", body.Tables)
	}
	var pk int
	for _, c := range body.Tables[0].Columns {
		if c.PrimaryKey {
			pk++
		}
	}
	if pk != 1 {
		t.Errorf("primary key count = %d", pk)
	}

	rec = doJSON(t, env.handler, "GET", "/api/database/schema?connection_id=missing", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown connection status = %d", rec.Code)
	}
	rec = doJSON(t, env.handler, "GET", "/api/database/schema", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing connection_id status = %d", rec.Code)
	}
}

func TestConnectionCRUD(t *testing.T) {
	env := newTestServer(t, finalOnly("x"), "{}")

	rec := doJSON(t, env.handler, "POST", "/api/connections",
		`{"name":"新库","host":"db.internal","port":3306,"user":"root","password":"pw","database":"crm"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var created connection.Record
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rec = doJSON(t, env.handler, "PUT", "/api/connections/"+created.ID, `{"name":"改名"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d", rec.Code)
	}
	var updated connection.Record
	json.Unmarshal(rec.Body.Bytes(), &updated)
	if updated.Name != "改名" || updated.Database != "crm" {
		t.Errorf("updated = %+v", updated)
	}

	rec = doJSON(t, env.handler, "DELETE", "/api/connections/"+created.ID, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec = doJSON(t, env.handler, "DELETE", "/api/connections/"+created.ID, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}

	rec = doJSON(t, env.handler, "POST", "/api/connections", `{"name":"没有库名","host":"h"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("create without database status = %d", rec.Code)
	}
}

func TestSessionCRUD(t *testing.T) {
	env := newTestServer(t, finalOnly("x"), "{}")

	rec := doJSON(t, env.handler, "POST", "/api/sessions", `{"title":"销售分析"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}
	var created session.Session
	json.Unmarshal(rec.Body.Bytes(), &created)
	if created.Title != "销售分析" {
		t.Errorf("Title = %q", created.Title)
	}

	rec = doJSON(t, env.handler, "GET", "/api/sessions", "")
	var listing struct {
		Sessions []session.Summary `json:"sessions"`
	}
	json.Unmarshal(rec.Body.Bytes(), &listing)
	if len(listing.Sessions) != 1 || listing.Sessions[0].MessageCount != 0 {
		t.Errorf("listing = %+v", listing.Sessions)
	}

	rec = doJSON(t, env.handler, "PUT", "/api/sessions/"+created.ID, `{"title":"新标题"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d", rec.Code)
	}

	rec = doJSON(t, env.handler, "DELETE", "/api/sessions/"+created.ID, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec = doJSON(t, env.handler, "GET", "/api/sessions/"+created.ID, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d", rec.Code)
	}
}

// sseKinds extracts the event names from a raw SSE body in order.
func sseKinds(body string) []string {
	var out []string
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "event: ") {
			out = append(out, strings.TrimPrefix(line, "event: "))
		}
	}
	return out
}

func TestChatStreamFullTurn(t *testing.T) {
	loop := &scriptedModel{responses: []*einoSchema.Message{
		{
			Role:    einoSchema.Assistant,
			Content: "先统计各部门人数",
			ToolCalls: []einoSchema.ToolCall{{
				ID:       "call-1",
				Function: einoSchema.FunctionCall{Name: "run_sql", Arguments: `{"sql":"SELECT dept, COUNT(*) AS n FROM employees GROUP BY dept"}`},
			}},
		},
		{Role: einoSchema.Assistant, Content: "销售部 2 人，研发部 1 人。"},
	}}
	chartAnswer := `{"chartType":"bar","chartSpec":{"series":[]},"tableData":{"columns":["dept","n"],"rows":[["销售部","2"],["研发部","1"]]}}`
	env := newTestServer(t, loop, chartAnswer)

	sess := env.sessions.Create("")
	rec := doJSON(t, env.handler, "POST", "/api/chat/"+sess.ID+"/stream",
		`{"message":"各部门有多少员工","connection_id":"`+env.connID+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	got := sseKinds(rec.Body.String())
	counts := map[string]int{}
	for _, k := range got {
		counts[k]++
	}
	if counts["token"] != 1 || counts["sql"] != 1 || counts["chart"] != 1 || counts["done"] != 1 || counts["error"] != 0 {
		t.Fatalf("event kinds = %v", got)
	}
	if counts["thinking"] < 1 {
		t.Fatalf("no thinking events: %v", got)
	}
	if got[len(got)-1] != "done" {
		t.Fatalf("last event = %q, want done", got[len(got)-1])
	}

	// The turn must be persisted with its narration.
	detail, ok := env.sessions.Get(sess.ID)
	if !ok || len(detail.Messages) != 2 {
		t.Fatalf("session detail = %+v", detail)
	}
	assistant := detail.Messages[1]
	if assistant.Role != "assistant" || assistant.ThinkingProcess == "" {
		t.Fatalf("assistant message = %+v", assistant)
	}
	if !strings.Contains(assistant.ThinkingProcess, "各部门有多少员工") ||
		!strings.Contains(assistant.ThinkingProcess, "最终回答：") {
		t.Errorf("thinking_process = %q", assistant.ThinkingProcess)
	}
}

func TestChatStreamEmptyResultSkipsChart(t *testing.T) {
	loop := &scriptedModel{responses: []*einoSchema.Message{
		{
			Role: einoSchema.Assistant,
			ToolCalls: []einoSchema.ToolCall{{
				ID:       "call-1",
				Function: einoSchema.FunctionCall{Name: "run_sql", Arguments: `{"sql":"SELECT * FROM employees WHERE salary > 999999"}`},
			}},
		},
		{Role: einoSchema.Assistant, Content: "没有工资超过这个数的员工。"},
	}}
	env := newTestServer(t, loop, `{"chartType":"bar"}`)

	sess := env.sessions.Create("")
	rec := doJSON(t, env.handler, "POST", "/api/chat/"+sess.ID+"/stream",
		`{"message":"有没有高薪员工","connection_id":"`+env.connID+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	got := sseKinds(rec.Body.String())
	counts := map[string]int{}
	for _, k := range got {
		counts[k]++
	}
	if counts["chart"] != 0 {
		t.Fatalf("chart emitted for an empty result set: %v", got)
	}
	if counts["sql"] != 1 || counts["token"] != 1 || counts["done"] != 1 {
		t.Fatalf("event kinds = %v", got)
	}
}

func TestChatStreamUnknownSession(t *testing.T) {
	env := newTestServer(t, finalOnly("x"), "{}")

	rec := doJSON(t, env.handler, "POST", "/api/chat/no-such-session/stream",
		`{"message":"问题","connection_id":"`+env.connID+`"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 before any stream", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); strings.HasPrefix(ct, "text/event-stream") {
		t.Error("stream was opened for unknown session")
	}
}

func TestChatStreamMissingConnectionID(t *testing.T) {
	env := newTestServer(t, finalOnly("x"), "{}")

	sess := env.sessions.Create("")
	rec := doJSON(t, env.handler, "POST", "/api/chat/"+sess.ID+"/stream", `{"message":"问题"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 before any stream", rec.Code)
	}
}

func TestChatStreamDeletedConnection(t *testing.T) {
	env := newTestServer(t, finalOnly("不应到达"), "{}")

	sess := env.sessions.Create("")
	if ok, err := env.manager.Delete(env.connID); err != nil || !ok {
		t.Fatalf("Delete: ok=%v err=%v", ok, err)
	}

	rec := doJSON(t, env.handler, "POST", "/api/chat/"+sess.ID+"/stream",
		`{"message":"问题","connection_id":"`+env.connID+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	got := sseKinds(rec.Body.String())
	if len(got) != 2 || got[0] != "error" || got[1] != "done" {
		t.Fatalf("event kinds = %v, want [error done]", got)
	}
}

func TestHealth(t *testing.T) {
	env := newTestServer(t, finalOnly("x"), "{}")
	rec := doJSON(t, env.handler, "GET", "/api/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}
