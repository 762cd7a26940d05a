// Package agent drives the tool-calling conversation with the model: one
// long-lived reasoning state per connection, one isolated thread per
// session, and an explicit step loop that narrates its progress through
// typed stream events.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/model"
	einoSchema "github.com/cloudwego/eino/schema"

	"datachat/connection"
	"datachat/dbpool"
	"datachat/query"
	"datachat/schema"
	"datachat/stream"
	"datachat/svcerr"
)

// Hard ceiling on model steps per turn. The model normally terminates on
// its own well before this; the cap turns a runaway loop into a reported
// error instead of an unbounded bill.
const maxLoopSteps = 16

const systemPromptTmpl = `你是一个专业的 SQL 数据库查询助手，负责帮助用户通过自然语言查询数据库。

规则：
1. 首先使用 list_tables 查看数据库有哪些表
2. 使用 get_schema 查看相关表的结构
3. 根据用户问题生成正确的 %s SQL 查询
4. 使用 validate_sql 校验 SQL 语法
5. 使用 run_sql 执行查询
6. 用中文总结查询结果，回答要清晰、有条理
7. 在回答末尾附上执行的 SQL 语句（用 ` + "```sql" + ` 代码块包裹）

限制：
- 查询最多返回 %d 条结果
- 绝对不允许执行 INSERT、UPDATE、DELETE、DROP 等修改操作
- 如果查询出错，分析错误原因并重写查询重试
- 不确定时，先查表结构再生成查询`

var toolLabels = map[string]string{
	"list_tables":  "查看数据表",
	"get_schema":   "查询表结构",
	"validate_sql": "校验 SQL",
	"run_sql":      "执行查询",
}

// TurnResult is what one completed turn leaves behind for the chart phase
// and session persistence.
type TurnResult struct {
	Answer     string
	Thinking   string
	LastSQL    string // most recent run_sql argument
	LastResult string // most recent run_sql output that carried rows
}

// Service owns the reasoning state cache and runs turns.
type Service struct {
	chatModel    model.ChatModel
	manager      *connection.Manager
	introspector *schema.Introspector
	gateway      *query.Gateway
	logger       func(string)

	mu     sync.Mutex
	states map[string]*State
}

// NewService creates the reasoning service, binds the fixed toolset to the
// model, and registers state invalidation with the connection manager.
func NewService(chatModel model.ChatModel, manager *connection.Manager, introspector *schema.Introspector, gateway *query.Gateway, logger func(string)) (*Service, error) {
	if logger == nil {
		logger = func(string) {}
	}
	s := &Service{
		chatModel:    chatModel,
		manager:      manager,
		introspector: introspector,
		gateway:      gateway,
		logger:       logger,
		states:       make(map[string]*State),
	}

	// The four tools have identical schemas for every connection; bind
	// their infos once.
	probe := newToolset(&toolDeps{})
	var infos []*einoSchema.ToolInfo
	for _, name := range []string{"list_tables", "get_schema", "validate_sql", "run_sql"} {
		info, err := probe[name].Info(context.Background())
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	if err := chatModel.BindTools(infos); err != nil {
		return nil, fmt.Errorf("failed to bind tools: %v", err)
	}

	manager.OnInvalidate(s.Invalidate)
	return s, nil
}

// Invalidate drops the cached reasoning state for a connection id. Called
// synchronously by the connection manager on update/delete.
func (s *Service) Invalidate(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.states[connID]; ok {
		delete(s.states, connID)
		s.logger(fmt.Sprintf("[AGENT] state invalidated for connection %s", connID))
	}
}

// DropSession removes one session's thread from every cached state (when
// the session is deleted).
func (s *Service) DropSession(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.states {
		st.dropThread(sessionID)
	}
}

// stateFor resolves or lazily constructs the reasoning state for a
// connection. Construction requires a live handle; if the database cannot
// be reached the turn fails fast.
func (s *Service) stateFor(connID string) (*State, *dbpool.Dialect, error) {
	_, dialect, err := s.manager.Handle(connID)
	if err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.states[connID]; ok {
		return st, dialect, nil
	}

	deps := &toolDeps{
		connID:       connID,
		manager:      s.manager,
		introspector: s.introspector,
		gateway:      s.gateway,
		logger:       s.logger,
	}
	st := newState(connID, newToolset(deps))
	s.states[connID] = st
	return st, dialect, nil
}

// Run executes one turn: it feeds the thread history plus the new message
// to the model, dispatches requested tools until the model stops asking
// for them, and emits the classified step events as it goes. The final
// answer, full narration, and last executed SQL/result are returned for
// the chart phase and session persistence.
func (s *Service) Run(ctx context.Context, sessionID, connID, message string, emit func(stream.Event)) (res *TurnResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reasoning loop panic: %v", r)
		}
	}()

	st, dialect, err := s.stateFor(connID)
	if err != nil {
		return nil, err
	}

	narrator := stream.NewNarrator(message)
	emit(stream.ThinkingEvent{Content: narrator.Snapshot()})

	sysMsg := &einoSchema.Message{
		Role:    einoSchema.System,
		Content: fmt.Sprintf(systemPromptTmpl, dialectName(dialect), maxAgentRows),
	}
	msgs := append([]*einoSchema.Message{sysMsg}, st.history(sessionID)...)
	msgs = append(msgs, &einoSchema.Message{Role: einoSchema.User, Content: message})

	result := &TurnResult{}

	for step := 0; ; step++ {
		if step >= maxLoopSteps {
			return nil, fmt.Errorf("%w: reasoning loop exceeded %d steps", svcerr.ErrUpstreamModel, maxLoopSteps)
		}

		resp, genErr := s.chatModel.Generate(ctx, msgs)
		if genErr != nil {
			return nil, fmt.Errorf("%w: %v", svcerr.ErrUpstreamModel, genErr)
		}
		msgs = append(msgs, resp)

		if len(resp.ToolCalls) == 0 {
			// No tool calls: this is the final answer.
			result.Answer = resp.Content
			emit(stream.TokenEvent{Content: resp.Content})
			emit(stream.ThinkingEvent{Content: narrator.Append("最终回答：" + resp.Content)})
			break
		}

		// Tool calls present: any accompanying text is intermediate
		// reasoning.
		if strings.TrimSpace(resp.Content) != "" {
			emit(stream.ThinkingEvent{Content: narrator.Append(resp.Content)})
		}

		for _, tc := range resp.ToolCalls {
			name := tc.Function.Name
			args := tc.Function.Arguments

			if name == "run_sql" {
				if sqlText := sqlFromArgs(args); sqlText != "" {
					result.LastSQL = sqlText
					emit(stream.SQLEvent{SQL: sqlText})
				}
			}

			output, toolErr := s.dispatch(ctx, st, name, args)
			if toolErr != nil {
				output = fmt.Sprintf("Error: %v", toolErr)
			} else if name == "run_sql" && output != noRowsMessage {
				result.LastResult = output
			}

			emit(stream.ThinkingEvent{Content: narrator.Append(narrateToolResult(name, output))})

			msgs = append(msgs, &einoSchema.Message{
				Role:       einoSchema.Tool,
				Content:    output,
				ToolCallID: tc.ID,
			})
		}
	}

	st.setHistory(sessionID, msgs[1:]) // keep the thread, not the system prompt
	result.Thinking = narrator.Snapshot()

	s.logger(fmt.Sprintf("[AGENT] turn done session=%s conn=%s answerLen=%d", sessionID, connID, len(result.Answer)))
	return result, nil
}

// dispatch runs one named tool. Unknown names come back as an error the
// model can read and correct.
func (s *Service) dispatch(ctx context.Context, st *State, name, args string) (string, error) {
	t, ok := st.tools[name]
	if !ok {
		return "", fmt.Errorf("unknown tool: %s", name)
	}
	s.logger(fmt.Sprintf("[AGENT] tool call %s args=%s", name, truncateString(args, 200)))
	// A client disconnect must not abort a query already handed to the
	// engine; the tool result still lands in thread history.
	return t.InvokableRun(context.WithoutCancel(ctx), args)
}

// narrateToolResult builds the fixed-label narration line for one tool
// result. Schema dumps collapse to a fixed phrase instead of being echoed.
func narrateToolResult(name, output string) string {
	label, ok := toolLabels[name]
	if !ok {
		label = name
	}
	switch name {
	case "get_schema":
		return label + "：已获取表结构信息"
	default:
		return label + "：" + truncateString(output, 400)
	}
}

func sqlFromArgs(args string) string {
	var in sqlInput
	if err := json.Unmarshal([]byte(args), &in); err != nil {
		return ""
	}
	return strings.TrimSpace(in.SQL)
}

func dialectName(d *dbpool.Dialect) string {
	if d != nil && d.Engine == dbpool.EngineSQLite {
		return "SQLite"
	}
	return "MySQL"
}

// truncateString truncates a string to maxLen characters
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + fmt.Sprintf("... [%d chars truncated]", len(s)-maxLen)
}
