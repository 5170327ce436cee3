// Package httpapi exposes the turn pipeline over HTTP: REST endpoints for
// sending, retrying, cancelling and regenerating turns, an SSE stream of
// turn events per conversation, and CRUD for memories and documents.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/akarpova/embra/internal/brain"
	"github.com/akarpova/embra/internal/config"
	"github.com/akarpova/embra/internal/conversation"
	"github.com/akarpova/embra/internal/embedding"
	"github.com/akarpova/embra/internal/knowledge"
	"github.com/akarpova/embra/internal/memory"
	"github.com/akarpova/embra/internal/observability"
	"github.com/akarpova/embra/internal/turn"
)

type Server struct {
	cfg       config.Config
	pipeline  *turn.Pipeline
	runtime   *conversation.Manager
	messages  conversation.Store
	memories  memory.Store
	documents knowledge.Store
	embedder  embedding.Embedder
	metrics   *observability.Metrics
}

func New(
	cfg config.Config,
	pipeline *turn.Pipeline,
	runtime *conversation.Manager,
	messages conversation.Store,
	memories memory.Store,
	documents knowledge.Store,
	embedder embedding.Embedder,
	metrics *observability.Metrics,
) *Server {
	return &Server{
		cfg:       cfg,
		pipeline:  pipeline,
		runtime:   runtime,
		messages:  messages,
		memories:  memories,
		documents: documents,
		embedder:  embedder,
		metrics:   metrics,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})
	r.Get("/v1/perf/turns", s.handlePerfTurns)
	r.Delete("/v1/perf/turns", s.handleResetPerfTurns)

	r.Post("/v1/conversations/{id}/turns", s.handleSendTurn)
	r.Post("/v1/conversations/{id}/turns/retry", s.handleRetryTurn)
	r.Post("/v1/conversations/{id}/turns/cancel", s.handleCancelTurn)
	r.Post("/v1/conversations/{id}/turns/regenerate", s.handleRegenerateTurn)
	r.Post("/v1/conversations/{id}/quote", s.handleStageQuote)
	r.Get("/v1/conversations/{id}/messages", s.handleListMessages)
	r.Get("/v1/conversations/{id}/state", s.handleConversationState)
	r.Get("/v1/conversations/{id}/events", s.handleEvents)
	r.Delete("/v1/conversations/{id}", s.handleDeleteConversation)

	r.Get("/v1/memories", s.handleListMemories)
	r.Delete("/v1/memories/{id}", s.handleDeleteMemory)

	r.Post("/v1/documents", s.handleCreateDocument)
	r.Get("/v1/documents", s.handleListDocuments)
	r.Delete("/v1/documents/{id}", s.handleDeleteDocument)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"embedder_ready": s.embedder != nil && s.embedder.IsModelLoaded(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

type sendTurnRequest struct {
	Text     string `json:"text"`
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
	Local    bool   `json:"local,omitempty"`
}

func (s *Server) targetFromRequest(req sendTurnRequest) brain.ModelTarget {
	if req.Local {
		model := req.Model
		if strings.TrimSpace(model) == "" {
			model = s.cfg.LocalModel
		}
		return brain.LocalTarget(model)
	}
	provider := req.Provider
	if strings.TrimSpace(provider) == "" {
		provider = s.cfg.DefaultProvider
	}
	model := req.Model
	if strings.TrimSpace(model) == "" {
		model = s.cfg.DefaultModel
	}
	return brain.RemoteTarget(provider, model)
}

func (s *Server) handleSendTurn(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "id")
	var req sendTurnRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		respondError(w, http.StatusBadRequest, "empty_text", "text is required")
		return
	}

	target := s.targetFromRequest(req)
	if target.IsZero() {
		respondError(w, http.StatusBadRequest, "no_model", "no model configured for this target")
		return
	}

	err := s.pipeline.Send(r.Context(), conversationID, target, req.Text)
	if errors.Is(err, conversation.ErrTurnActive) {
		respondError(w, http.StatusConflict, "turn_active", err.Error())
		return
	}
	if err != nil {
		// The failure is also retained as the conversation's pending
		// error; the client decides retry or cancel.
		respondError(w, http.StatusBadGateway, "turn_failed", err.Error())
		return
	}
	s.respondConversation(w, r, conversationID, http.StatusOK)
}

func (s *Server) handleRetryTurn(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "id")
	var req sendTurnRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	err := s.pipeline.Retry(r.Context(), conversationID, s.targetFromRequest(req))
	if errors.Is(err, turn.ErrNoPendingError) {
		respondError(w, http.StatusConflict, "no_pending_error", err.Error())
		return
	}
	if err != nil {
		respondError(w, http.StatusBadGateway, "turn_failed", err.Error())
		return
	}
	s.respondConversation(w, r, conversationID, http.StatusOK)
}

func (s *Server) handleCancelTurn(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "id")
	text, err := s.pipeline.Cancel(r.Context(), conversationID)
	if errors.Is(err, turn.ErrNoPendingError) {
		respondError(w, http.StatusConflict, "no_pending_error", err.Error())
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "cancel_failed", err.Error())
		return
	}
	// The original text goes back to the client's input/clipboard.
	respondJSON(w, http.StatusOK, map[string]string{"restored_text": text})
}

type regenerateRequest struct {
	AssistantMessageID string `json:"assistant_message_id"`
	sendTurnRequest
}

func (s *Server) handleRegenerateTurn(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "id")
	var req regenerateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.AssistantMessageID) == "" {
		respondError(w, http.StatusBadRequest, "missing_message_id", "assistant_message_id is required")
		return
	}
	err := s.pipeline.Regenerate(r.Context(), conversationID, req.AssistantMessageID, s.targetFromRequest(req.sendTurnRequest))
	if err != nil {
		respondError(w, http.StatusBadGateway, "regenerate_failed", err.Error())
		return
	}
	s.respondConversation(w, r, conversationID, http.StatusOK)
}

type stageQuoteRequest struct {
	MessageID string `json:"message_id"`
	Text      string `json:"text"`
}

func (s *Server) handleStageQuote(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "id")
	var req stageQuoteRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		respondError(w, http.StatusBadRequest, "empty_quote", "text is required")
		return
	}
	s.runtime.SetQuote(conversationID, conversation.PendingQuote{MessageID: req.MessageID, Text: req.Text})
	respondJSON(w, http.StatusOK, map[string]string{"status": "staged"})
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	s.respondConversation(w, r, chi.URLParam(r, "id"), http.StatusOK)
}

func (s *Server) handleConversationState(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "id")
	state := s.runtime.Get(conversationID)
	out := map[string]any{
		"conversation_id": state.ConversationID,
		"active_turn_id":  state.ActiveTurnID,
	}
	if state.Pending != nil {
		out["pending_error"] = map[string]any{
			"error_message":        state.Pending.ErrorMessage,
			"user_message_id":      state.Pending.UserMessageID,
			"user_message_content": state.Pending.UserMessageContent,
			"assistant_message_id": state.Pending.AssistantMessageID,
			"model_name":           state.Pending.ModelName,
		}
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "id")
	if err := s.messages.DeleteConversation(r.Context(), conversationID); err != nil {
		respondError(w, http.StatusInternalServerError, "delete_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handlePerfTurns(w http.ResponseWriter, _ *http.Request) {
	if s.metrics == nil {
		respondJSON(w, http.StatusOK, map[string]any{
			"generated_at": "",
			"window_size":  0,
			"stages":       []any{},
		})
		return
	}
	respondJSON(w, http.StatusOK, s.metrics.SnapshotTurnStages())
}

// handleResetPerfTurns clears the rolling stage window, starting a fresh
// measurement run.
func (s *Server) handleResetPerfTurns(w http.ResponseWriter, _ *http.Request) {
	if s.metrics != nil {
		s.metrics.ResetTurnStages()
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) respondConversation(w http.ResponseWriter, r *http.Request, conversationID string, status int) {
	msgs, err := s.messages.ListMessages(r.Context(), conversationID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "list_failed", err.Error())
		return
	}
	respondJSON(w, status, map[string]any{
		"conversation_id": conversationID,
		"messages":        msgs,
	})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
