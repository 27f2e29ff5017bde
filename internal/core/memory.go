package core

import (
	"sync"

	"github.com/google/uuid"
)

const DefaultMaxHistory = 2

type Role string

const (
	RoleUser       Role = "user"
	RoleAssistant  Role = "assistant"
	RoleCapability Role = "capability"
)

// Turn is one utterance of a completed exchange.
type Turn struct {
	Role Role
	Text string
}

// ConversationMemory keeps the most recent exchanges of each session in memory. Sessions
// are independent: each has its own lock, and the map lock is only held for lookups.
type ConversationMemory struct {
	maxExchanges int

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	mu    sync.Mutex
	turns []Turn
}

func NewConversationMemory(maxExchanges int) *ConversationMemory {
	if maxExchanges <= 0 {
		maxExchanges = DefaultMaxHistory
	}
	return &ConversationMemory{maxExchanges: maxExchanges, sessions: make(map[string]*session)}
}

func (m *ConversationMemory) CreateSession() string {
	id := uuid.NewString()
	m.mu.Lock()
	m.sessions[id] = &session{}
	m.mu.Unlock()
	return id
}

func (m *ConversationMemory) lookup(id string, create bool) *session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok && create {
		s = &session{}
		m.sessions[id] = s
	}
	return s
}

// Append records one exchange atomically and evicts the oldest turns beyond the cap.
// Unknown session ids are created on first use.
func (m *ConversationMemory) Append(id, userText, assistantText string) {
	s := m.lookup(id, true)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, Turn{Role: RoleUser, Text: userText}, Turn{Role: RoleAssistant, Text: assistantText})
	if limit := 2 * m.maxExchanges; len(s.turns) > limit {
		s.turns = append([]Turn(nil), s.turns[len(s.turns)-limit:]...)
	}
}

// History returns a copy of the session's turns, oldest first.
func (m *ConversationMemory) History(id string) []Turn {
	s := m.lookup(id, false)
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Turn(nil), s.turns...)
}

func (m *ConversationMemory) Clear(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

func (m *ConversationMemory) Sessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
