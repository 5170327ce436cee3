package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/akarpova/embra/internal/brain"
	"github.com/akarpova/embra/internal/config"
	"github.com/akarpova/embra/internal/conversation"
	"github.com/akarpova/embra/internal/embedding"
	"github.com/akarpova/embra/internal/knowledge"
	"github.com/akarpova/embra/internal/memory"
	"github.com/akarpova/embra/internal/observability"
	"github.com/akarpova/embra/internal/prompt"
	"github.com/akarpova/embra/internal/turn"
)

var (
	testMetricsOnce sync.Once
	testMetrics     *observability.Metrics
)

func metricsForTest() *observability.Metrics {
	testMetricsOnce.Do(func() {
		testMetrics = observability.NewMetrics("embra_httpapi_test")
	})
	return testMetrics
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Config{
		DefaultProvider: "openai",
		DefaultModel:    "gpt-4o-mini",
		LocalModel:      "tiny-local",
	}
	messages := conversation.NewInMemoryStore()
	runtime := conversation.NewManager()
	memStore := memory.NewInMemoryStore()
	docStore := knowledge.NewInMemoryStore()
	emb := embedding.NewMockEmbedder(8)
	if err := emb.LoadModel(context.Background(), "mock"); err != nil {
		t.Fatalf("LoadModel failed: %v", err)
	}
	metrics := metricsForTest()

	pipeline := turn.NewPipeline(
		messages, runtime, brain.NewMockAdapter(), prompt.DefaultTemplates(),
		memory.NewRetriever(memStore, emb, 1, 5),
		knowledge.NewRetriever(docStore, emb, 3),
		nil, metrics, turn.Options{HistoryLimitPairs: 10},
	)
	return New(cfg, pipeline, runtime, messages, memStore, docStore, emb, metrics)
}

func TestSendTurnEndToEnd(t *testing.T) {
	srv := newTestServer(t)
	router := srv.Router()

	body := `{"text": "hello", "local": true}`
	req := httptest.NewRequest(http.MethodPost, "/v1/conversations/c1/turns", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Messages []conversation.Message `json:"messages"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Messages) != 2 {
		t.Fatalf("len(messages) = %d, want 2", len(resp.Messages))
	}
	if resp.Messages[1].Role != conversation.RoleAssistant || resp.Messages[1].Content == "" {
		t.Fatalf("assistant message not finalized: %+v", resp.Messages[1])
	}
}

func TestSendTurnRejectsEmptyText(t *testing.T) {
	srv := newTestServer(t)
	router := srv.Router()

	req := httptest.NewRequest(http.MethodPost, "/v1/conversations/c1/turns", strings.NewReader(`{"text": "  "}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestRetryWithoutPendingErrorConflicts(t *testing.T) {
	srv := newTestServer(t)
	router := srv.Router()

	req := httptest.NewRequest(http.MethodPost, "/v1/conversations/c1/turns/retry", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestCreateAndDeleteDocument(t *testing.T) {
	srv := newTestServer(t)
	router := srv.Router()

	body := `{"title": "notes", "chunks": ["first chunk", "second chunk"]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/documents", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/documents", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d, want 200", rec.Code)
	}
	var listResp struct {
		Documents []knowledge.Document `json:"documents"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listResp); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listResp.Documents) != 1 {
		t.Fatalf("len(documents) = %d, want 1", len(listResp.Documents))
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/documents/"+listResp.Documents[0].ID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/documents/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("delete missing status = %d, want 404", rec.Code)
	}
}

func TestConversationStateExposesPendingError(t *testing.T) {
	srv := newTestServer(t)
	router := srv.Router()

	srv.runtime.SetPendingError("c1", conversation.PendingError{
		ErrorMessage:       "provider down",
		UserMessageID:      "u1",
		UserMessageContent: "hello",
		ModelName:          "gpt-4o-mini",
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/conversations/c1/state", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "provider down") {
		t.Fatalf("state missing pending error: %s", rec.Body.String())
	}
}

func TestPerfTurnsResetClearsWindow(t *testing.T) {
	srv := newTestServer(t)
	router := srv.Router()

	srv.metrics.ObserveTurnStage("turn_total", 5*time.Millisecond)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/perf/turns", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/perf/turns", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var snap observability.TurnStageSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if len(snap.Stages) != 0 {
		t.Fatalf("stages = %+v, want empty after reset", snap.Stages)
	}
}
