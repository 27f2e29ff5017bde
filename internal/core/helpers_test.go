package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/najimovi/starting-ragchatbot-codebase/internal/embedding"
	"github.com/najimovi/starting-ragchatbot-codebase/internal/store"
)

const (
	mcpCourse = "Introduction to MCP Servers"
	ragCourse = "Advanced Retrieval Techniques"
)

type scriptedReply struct {
	reply ModelReply
	err   error
}

func answerReply(text string) scriptedReply {
	return scriptedReply{reply: ModelReply{Kind: ReplyAnswer, Text: text}}
}

func callReply(name string, args map[string]any) scriptedReply {
	return scriptedReply{reply: ModelReply{Kind: ReplyCapabilityCall, Call: &CapabilityCall{Name: name, Args: args}}}
}

// scriptedModel replays canned replies and records every request it receives.
type scriptedModel struct {
	mu       sync.Mutex
	replies  []scriptedReply
	requests []ModelRequest
}

func (m *scriptedModel) Generate(ctx context.Context, req ModelRequest) (ModelReply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req.Messages = append([]Message(nil), req.Messages...)
	req.History = append([]Turn(nil), req.History...)
	m.requests = append(m.requests, req)
	if len(m.replies) == 0 {
		return ModelReply{}, errors.New("no scripted reply left")
	}
	r := m.replies[0]
	m.replies = m.replies[1:]
	return r.reply, r.err
}

type fixture struct {
	catalog  *store.CatalogStore
	chunks   *store.ChunkStore
	embedder embedding.Embedder
	engine   *RetrievalEngine
}

func newFixture(t *testing.T, opts RetrievalOptions) *fixture {
	t.Helper()
	f := &fixture{
		catalog:  store.NewCatalogStore(nil),
		chunks:   store.NewChunkStore(nil),
		embedder: embedding.NewHashEmbedder(512),
	}
	f.engine = NewRetrievalEngine(f.catalog, f.chunks, f.embedder, opts)
	return f
}

// seeded has two courses: MCP with lessons 1 and 2, retrieval with lesson 1 only.
func seeded(t *testing.T, opts RetrievalOptions) *fixture {
	t.Helper()
	f := newFixture(t, opts)
	f.addLesson(t, store.Course{Title: mcpCourse, Instructor: "Elie Schoppik", Link: "https://example.com/mcp"},
		store.Lesson{Number: 1, Title: "Why MCP", Link: "https://example.com/mcp/1"},
		"MCP standardizes how applications give context to language models.",
		"Servers expose tools, resources and prompts to clients.")
	f.addLesson(t, store.Course{Title: mcpCourse},
		store.Lesson{Number: 2, Title: "Building a server", Link: "https://example.com/mcp/2"},
		"To build a server you declare tools with typed input schemas.")
	f.addLesson(t, store.Course{Title: ragCourse, Link: "https://example.com/rag"},
		store.Lesson{Number: 1, Title: "Chunking", Link: "https://example.com/rag/1"},
		"Chunking splits documents into overlapping windows before embedding.")
	return f
}

func (f *fixture) addLesson(t *testing.T, course store.Course, lesson store.Lesson, texts ...string) {
	t.Helper()
	ctx := context.Background()
	if existing, ok := f.catalog.Get(course.Title); ok {
		existing.PutLesson(lesson)
		course = existing
	} else {
		course.PutLesson(lesson)
	}

	var chunks []store.Chunk
	for i, text := range texts {
		vec, err := f.embedder.Embed(ctx, fmt.Sprintf("Course %s Lesson %d content: %s", course.Title, lesson.Number, text))
		if err != nil {
			t.Fatal(err)
		}
		n := store.IntPtr(lesson.Number)
		chunks = append(chunks, store.Chunk{
			ID: store.ChunkID(course.Title, n, i), Text: text, CourseTitle: course.Title,
			LessonNumber: n, Index: i, Embedding: vec,
		})
	}
	if err := f.chunks.ReplaceLesson(ctx, course.Title, lesson.Number, chunks); err != nil {
		t.Fatal(err)
	}
	titleVec, err := f.embedder.Embed(ctx, course.Title)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.catalog.Upsert(ctx, course, titleVec); err != nil {
		t.Fatal(err)
	}
}

func (f *fixture) registry(t *testing.T) *ToolRegistry {
	t.Helper()
	r, err := NewToolRegistry(NewSearchTool(f.engine), NewOutlineTool(f.engine))
	if err != nil {
		t.Fatal(err)
	}
	return r
}
