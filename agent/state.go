package agent

import (
	"sync"

	"github.com/cloudwego/eino/components/tool"
	einoSchema "github.com/cloudwego/eino/schema"
)

// State is the cached reasoning state for one connection: its bound
// toolset plus the per-session conversation threads. Threads are isolated
// by session id; two sessions against the same connection never see each
// other's history.
type State struct {
	connID string
	tools  map[string]tool.InvokableTool

	mu      sync.Mutex
	threads map[string][]*einoSchema.Message
}

func newState(connID string, tools map[string]tool.InvokableTool) *State {
	return &State{
		connID:  connID,
		tools:   tools,
		threads: make(map[string][]*einoSchema.Message),
	}
}

// history returns a copy of the thread for the given session.
func (st *State) history(sessionID string) []*einoSchema.Message {
	st.mu.Lock()
	defer st.mu.Unlock()
	msgs := st.threads[sessionID]
	out := make([]*einoSchema.Message, len(msgs))
	copy(out, msgs)
	return out
}

// setHistory replaces the thread for the given session.
func (st *State) setHistory(sessionID string, msgs []*einoSchema.Message) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.threads[sessionID] = msgs
}

// dropThread removes one session's thread (when the session is deleted).
func (st *State) dropThread(sessionID string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.threads, sessionID)
}
