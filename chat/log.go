package chat

import "sync"

// Log is the ordered conversation message log. The reconciler is its only
// writer during a turn; readers always get a copied snapshot, never a view
// into live state. Every conversation switch bumps the generation so work
// still in flight for the old conversation can be discarded.
type Log struct {
	mu         sync.Mutex
	messages   []Message
	generation uint64
}

// NewLog creates an empty log.
func NewLog() *Log {
	return &Log{}
}

// Generation returns the current generation tag. In-flight work records it
// and uses TryAppend so late completions never mutate a replaced log.
func (l *Log) Generation() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.generation
}

// Append adds a message to the end of the log.
func (l *Log) Append(msg Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, msg)
}

// TryAppend adds a message only if the log is still on the given
// generation. It reports whether the append happened.
func (l *Log) TryAppend(gen uint64, msg Message) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.generation != gen {
		return false
	}
	l.messages = append(l.messages, msg)
	return true
}

// UpdateLastAssistant sets the content of the most recent assistant
// message. It is a no-op when the log has none.
func (l *Log) UpdateLastAssistant(content string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.messages) - 1; i >= 0; i-- {
		if l.messages[i].Role == RoleAssistant {
			l.messages[i].Content = content
			return
		}
	}
}

// ReplaceLastAssistant replaces the most recent assistant message
// wholesale. When the log has none, the message is appended instead.
func (l *Log) ReplaceLastAssistant(msg Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.messages) - 1; i >= 0; i-- {
		if l.messages[i].Role == RoleAssistant {
			l.messages[i] = msg
			return
		}
	}
	l.messages = append(l.messages, msg)
}

// MoveLastAssistantToEnd relocates the most recent assistant message to
// the end of the log, presenting tool activity before the assistant's
// settled text. Idempotent: a no-op when it is already last or absent.
func (l *Log) MoveLastAssistantToEnd() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.messages) - 1; i >= 0; i-- {
		if l.messages[i].Role == RoleAssistant {
			msg := l.messages[i]
			l.messages = append(l.messages[:i], l.messages[i+1:]...)
			l.messages = append(l.messages, msg)
			return
		}
	}
}

// SetMessages replaces the whole log, e.g. when loading another
// conversation's history. Bumps the generation.
func (l *Log) SetMessages(msgs []Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append([]Message(nil), msgs...)
	l.generation++
}

// Reset clears the log for a fresh conversation. Bumps the generation.
func (l *Log) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = nil
	l.generation++
}

// Snapshot returns a copy of the log contents.
func (l *Log) Snapshot() []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Message(nil), l.messages...)
}

// Len returns the number of messages.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.messages)
}
