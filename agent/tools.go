package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	einoSchema "github.com/cloudwego/eino/schema"

	"datachat/connection"
	"datachat/query"
	"datachat/schema"
)

// Maximum rows a run_sql tool call feeds back into model context.
const maxAgentRows = 100

// Maximum tool output size returned to the model before truncation.
const maxToolOutput = 50000

// noRowsMessage is what run_sql reports on an empty result set. The loop
// treats it as "no data": it is fed to the model but never to the chart
// phase.
const noRowsMessage = "Query executed successfully. No rows returned."

// toolDeps are the shared collaborators behind the four fixed tools. Each
// tool call opens its own short-lived handle so concurrent turns never
// serialize on a shared cursor.
type toolDeps struct {
	connID       string
	manager      *connection.Manager
	introspector *schema.Introspector
	gateway      *query.Gateway
	logger       func(string)
}

// ----- list_tables -----

type listTablesTool struct {
	deps *toolDeps
}

func (t *listTablesTool) Info(ctx context.Context) (*einoSchema.ToolInfo, error) {
	return &einoSchema.ToolInfo{
		Name:        "list_tables",
		Desc:        "List the names of all tables in the connected database. Call this first to discover what data is available.",
		ParamsOneOf: einoSchema.NewParamsOneOfByParams(map[string]*einoSchema.ParameterInfo{}),
	}, nil
}

func (t *listTablesTool) InvokableRun(ctx context.Context, input string, opts ...tool.Option) (string, error) {
	db, dialect, err := t.deps.manager.OpenFresh(t.deps.connID)
	if err != nil {
		return "", err
	}
	defer db.Close()

	names, err := t.deps.introspector.TableNames(ctx, db, dialect)
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "The database contains no tables.", nil
	}
	data, err := json.Marshal(names)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ----- get_schema -----

type getSchemaTool struct {
	deps *toolDeps
}

type getSchemaInput struct {
	Tables []string `json:"tables"`
}

func (t *getSchemaTool) Info(ctx context.Context) (*einoSchema.ToolInfo, error) {
	return &einoSchema.ToolInfo{
		Name: "get_schema",
		Desc: "Get the column definitions (name, type, primary key, nullable) of the given tables. Pass an empty list to describe every table.",
		ParamsOneOf: einoSchema.NewParamsOneOfByParams(map[string]*einoSchema.ParameterInfo{
			"tables": {
				Type:     einoSchema.Array,
				Desc:     "Names of the tables to describe.",
				ElemInfo: &einoSchema.ParameterInfo{Type: einoSchema.String},
				Required: false,
			},
		}),
	}, nil
}

func (t *getSchemaTool) InvokableRun(ctx context.Context, input string, opts ...tool.Option) (string, error) {
	var in getSchemaInput
	if input != "" {
		if err := json.Unmarshal([]byte(input), &in); err != nil {
			return "", fmt.Errorf("invalid input: %v", err)
		}
	}

	db, dialect, err := t.deps.manager.OpenFresh(t.deps.connID)
	if err != nil {
		return "", err
	}
	defer db.Close()

	tables, err := t.deps.introspector.Tables(ctx, db, dialect, in.Tables)
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(tables, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ----- validate_sql -----

type validateSQLTool struct {
	deps *toolDeps
}

type sqlInput struct {
	SQL string `json:"sql"`
}

func (t *validateSQLTool) Info(ctx context.Context) (*einoSchema.ToolInfo, error) {
	return &einoSchema.ToolInfo{
		Name: "validate_sql",
		Desc: "Check a SELECT statement for syntax errors and read-only safety without running it. Always validate before run_sql.",
		ParamsOneOf: einoSchema.NewParamsOneOfByParams(map[string]*einoSchema.ParameterInfo{
			"sql": {
				Type:     einoSchema.String,
				Desc:     "The SQL statement to validate.",
				Required: true,
			},
		}),
	}, nil
}

func (t *validateSQLTool) InvokableRun(ctx context.Context, input string, opts ...tool.Option) (string, error) {
	var in sqlInput
	if err := json.Unmarshal([]byte(input), &in); err != nil {
		return "", fmt.Errorf("invalid input: %v", err)
	}

	if err := query.Validate(in.SQL); err != nil {
		return fmt.Sprintf("SQL 校验未通过：%v", err), nil
	}

	db, _, err := t.deps.manager.OpenFresh(t.deps.connID)
	if err != nil {
		return "", err
	}
	defer db.Close()

	// Server-side prepare catches syntax and unknown-identifier errors
	// without executing anything.
	stmt, err := db.PrepareContext(ctx, in.SQL)
	if err != nil {
		return fmt.Sprintf("SQL 校验未通过：%v", err), nil
	}
	stmt.Close()

	return "SQL 校验通过。", nil
}

// ----- run_sql -----

type runSQLTool struct {
	deps *toolDeps
}

func (t *runSQLTool) Info(ctx context.Context) (*einoSchema.ToolInfo, error) {
	return &einoSchema.ToolInfo{
		Name: "run_sql",
		Desc: fmt.Sprintf("Execute a read-only SELECT statement and return the rows as JSON. Results are capped at %d rows.", maxAgentRows),
		ParamsOneOf: einoSchema.NewParamsOneOfByParams(map[string]*einoSchema.ParameterInfo{
			"sql": {
				Type:     einoSchema.String,
				Desc:     "The SELECT statement to execute.",
				Required: true,
			},
		}),
	}, nil
}

func (t *runSQLTool) InvokableRun(ctx context.Context, input string, opts ...tool.Option) (string, error) {
	var in sqlInput
	if err := json.Unmarshal([]byte(input), &in); err != nil {
		return "", fmt.Errorf("invalid input: %v", err)
	}

	db, _, err := t.deps.manager.OpenFresh(t.deps.connID)
	if err != nil {
		return "", err
	}
	defer db.Close()

	records, err := t.deps.gateway.Fetch(ctx, db, in.SQL, maxAgentRows)
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return noRowsMessage, nil
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal results: %v", err)
	}

	response := fmt.Sprintf("Query executed successfully. Returned %d rows.\n\n%s", len(records), string(data))
	if len(response) > maxToolOutput {
		response = response[:maxToolOutput] + "\n\n[Output truncated - result set too large. Consider using WHERE or LIMIT to reduce result size]"
	}
	return response, nil
}

// newToolset builds the four fixed tools for one connection.
func newToolset(deps *toolDeps) map[string]tool.InvokableTool {
	return map[string]tool.InvokableTool{
		"list_tables":  &listTablesTool{deps: deps},
		"get_schema":   &getSchemaTool{deps: deps},
		"validate_sql": &validateSQLTool{deps: deps},
		"run_sql":      &runSQLTool{deps: deps},
	}
}
