package stream

import "strings"

// Narrator owns the append-only narration buffer for one turn. Every
// append grows the buffer and returns the full snapshot, which is what
// each ThinkingEvent carries.
type Narrator struct {
	b strings.Builder
}

// NewNarrator creates a Narrator seeded with the user's question.
func NewNarrator(question string) *Narrator {
	n := &Narrator{}
	n.b.WriteString("用户问题：" + question)
	return n
}

// Append adds one narration line and returns the full snapshot.
func (n *Narrator) Append(line string) string {
	n.b.WriteString("\n\n")
	n.b.WriteString(line)
	return n.b.String()
}

// Snapshot returns the narration accumulated so far.
func (n *Narrator) Snapshot() string {
	return n.b.String()
}
