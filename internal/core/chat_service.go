package core

import (
	"context"
	"errors"
	"log"

	"github.com/najimovi/starting-ragchatbot-codebase/internal/metrics"
)

const queryPrompt = "Answer this question about course materials: "

type CourseLister interface {
	Titles() []string
}

type ChunkCounter interface {
	Count() int
}

type QueryResult struct {
	Answer    string   `json:"answer"`
	Sources   []Source `json:"sources"`
	SessionID string   `json:"session_id"`
}

type CourseStats struct {
	TotalCourses int      `json:"total_courses"`
	CourseTitles []string `json:"course_titles"`
	TotalChunks  int      `json:"total_chunks"`
}

// ChatService ties a query to its session: read history, run the orchestrator, record
// the exchange.
type ChatService struct {
	memory       *ConversationMemory
	orchestrator *Orchestrator
	courses      CourseLister
	chunks       ChunkCounter
}

func NewChatService(memory *ConversationMemory, orchestrator *Orchestrator, courses CourseLister, chunks ChunkCounter) *ChatService {
	return &ChatService{
		memory:       memory,
		orchestrator: orchestrator,
		courses:      courses,
		chunks:       chunks,
	}
}

// Query answers query in the given session, creating one when sessionID is empty. On
// failure the session history is left untouched.
func (s *ChatService) Query(ctx context.Context, query, sessionID string) (*QueryResult, error) {
	if sessionID == "" {
		sessionID = s.memory.CreateSession()
	}

	answer, err := s.orchestrator.Run(ctx, queryPrompt+query, s.memory.History(sessionID))
	if err != nil {
		metrics.QueriesTotal.WithLabelValues(queryOutcome(err)).Inc()
		log.Printf("Query failed for session %s: %v", sessionID, err)
		return nil, err
	}
	s.memory.Append(sessionID, query, answer.Text)
	metrics.QueriesTotal.WithLabelValues("ok").Inc()

	sources := answer.Sources
	if sources == nil {
		sources = []Source{}
	}
	return &QueryResult{Answer: answer.Text, Sources: sources, SessionID: sessionID}, nil
}

func (s *ChatService) CourseStats() CourseStats {
	titles := s.courses.Titles()
	if titles == nil {
		titles = []string{}
	}
	return CourseStats{TotalCourses: len(titles), CourseTitles: titles, TotalChunks: s.chunks.Count()}
}

func (s *ChatService) ClearSession(sessionID string) {
	s.memory.Clear(sessionID)
}

func queryOutcome(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrGenerationFailed):
		return "generation_failed"
	default:
		return "error"
	}
}
