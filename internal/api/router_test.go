package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/najimovi/starting-ragchatbot-codebase/internal/core"
	"github.com/najimovi/starting-ragchatbot-codebase/internal/embedding"
	"github.com/najimovi/starting-ragchatbot-codebase/internal/store"
)

type stubModel struct {
	answer string
	err    error
}

func (m stubModel) Generate(ctx context.Context, req core.ModelRequest) (core.ModelReply, error) {
	if m.err != nil {
		return core.ModelReply{}, m.err
	}
	return core.ModelReply{Kind: core.ReplyAnswer, Text: m.answer}, nil
}

func newTestServer(t *testing.T, model core.LanguageModel, staticDir string) *httptest.Server {
	t.Helper()
	catalog := store.NewCatalogStore(nil)
	chunks := store.NewChunkStore(nil)
	engine := core.NewRetrievalEngine(catalog, chunks, embedding.NewHashEmbedder(64), core.RetrievalOptions{})
	tools, err := core.NewToolRegistry(core.NewSearchTool(engine), core.NewOutlineTool(engine))
	if err != nil {
		t.Fatal(err)
	}
	orchestrator := core.NewOrchestrator(model, tools, core.OrchestratorOptions{MaxToolRounds: 1, Timeout: time.Second})
	svc := core.NewChatService(core.NewConversationMemory(2), orchestrator, catalog, chunks)

	srv := httptest.NewServer(NewRouter(NewAPIHandler(svc), staticDir))
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestQueryHandler(t *testing.T) {
	srv := newTestServer(t, stubModel{answer: "Hello."}, "")

	resp := post(t, srv.URL+"/api/query", `{"query":"What is MCP?"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body struct {
		Answer    string            `json:"answer"`
		Sources   []json.RawMessage `json:"sources"`
		SessionID string            `json:"session_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Answer != "Hello." || body.SessionID == "" || body.Sources == nil {
		t.Errorf("unexpected body %+v", body)
	}
}

func TestQueryHandler_BadRequests(t *testing.T) {
	srv := newTestServer(t, stubModel{answer: "x"}, "")
	for _, body := range []string{`{"query":"  "}`, `not json`} {
		if resp := post(t, srv.URL+"/api/query", body); resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", body, resp.StatusCode)
		}
	}
}

func TestQueryHandler_GenerationFailed(t *testing.T) {
	srv := newTestServer(t, stubModel{err: errors.New("boom: secret upstream detail")}, "")

	resp := post(t, srv.URL+"/api/query", `{"query":"q"}`)
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", resp.StatusCode)
	}
	var body ErrorResponse
	json.NewDecoder(resp.Body).Decode(&body)
	if strings.Contains(body.Detail, "secret") {
		t.Errorf("upstream detail leaked to client: %q", body.Detail)
	}
}

func TestCoursesHandler(t *testing.T) {
	srv := newTestServer(t, stubModel{}, "")
	resp, err := http.Get(srv.URL + "/api/courses")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var stats core.CourseStats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	if stats.TotalCourses != 0 || stats.TotalChunks != 0 || stats.CourseTitles == nil {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestClearSessionHandler(t *testing.T) {
	srv := newTestServer(t, stubModel{}, "")
	if resp := post(t, srv.URL+"/api/session/clear", `{"session_id":"abc"}`); resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if resp := post(t, srv.URL+"/api/session/clear", `{}`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHealthMetricsAndStatic(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>Course Materials</h1>"), 0o644); err != nil {
		t.Fatal(err)
	}
	srv := newTestServer(t, stubModel{}, dir)

	for _, path := range []string{"/api/health", "/metrics", "/"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s: status = %d, want 200", path, resp.StatusCode)
		}
	}
}
