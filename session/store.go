// Package session keeps conversation logs in memory for the process
// lifetime. Sessions intentionally do not survive a restart.
package session

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Message is one appended chat message. Messages are immutable once
// appended.
type Message struct {
	Role            string `json:"role"` // "user" or "assistant"
	Content         string `json:"content"`
	Timestamp       int64  `json:"timestamp"`
	ThinkingProcess string `json:"thinking_process,omitempty"` // assistant messages only
}

// Session is one conversation.
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt int64     `json:"created_at"`
	UpdatedAt int64     `json:"updated_at"`
	Messages  []Message `json:"messages"`
}

// Summary is the listing shape: counts instead of message bodies.
type Summary struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	CreatedAt    int64  `json:"created_at"`
	UpdatedAt    int64  `json:"updated_at"`
	MessageCount int    `json:"message_count"`
}

// Store manages sessions keyed by id.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	created  int
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Create adds a new session. An empty title gets an auto-generated one.
func (s *Store) Create(title string) Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.created++
	if title == "" {
		title = fmt.Sprintf("新对话 %d", s.created)
	}
	now := time.Now().UnixMilli()
	sess := &Session{
		ID:        uuid.New().String(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  []Message{},
	}
	s.sessions[sess.ID] = sess
	return sess.snapshot()
}

// Get returns a copy of the session.
func (s *Store) Get(id string) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, false
	}
	return sess.snapshot(), true
}

// List returns summaries of all sessions, most recently updated first.
func (s *Store) List() []Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Summary, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, Summary{
			ID:           sess.ID,
			Title:        sess.Title,
			CreatedAt:    sess.CreatedAt,
			UpdatedAt:    sess.UpdatedAt,
			MessageCount: len(sess.Messages),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt > out[j].UpdatedAt
	})
	return out
}

// UpdateTitle renames a session and refreshes UpdatedAt.
func (s *Store) UpdateTitle(id, title string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, false
	}
	sess.Title = title
	sess.UpdatedAt = time.Now().UnixMilli()
	return sess.snapshot(), true
}

// Delete removes a session. Deleting an unknown id reports false, not an
// error; repeated deletes behave the same way.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	return true
}

// Append adds a message to a session in arrival order and refreshes
// UpdatedAt.
func (s *Store) Append(id string, msg Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return false
	}
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixMilli()
	}
	sess.Messages = append(sess.Messages, msg)
	sess.UpdatedAt = time.Now().UnixMilli()
	return true
}

func (sess *Session) snapshot() Session {
	out := *sess
	out.Messages = make([]Message, len(sess.Messages))
	copy(out.Messages, sess.Messages)
	return out
}
