package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/akarpova/embra/internal/memory"
)

func (s *Server) handleListMemories(w http.ResponseWriter, r *http.Request) {
	entries, err := s.memories.List(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "list_failed", err.Error())
		return
	}
	out := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		out = append(out, map[string]any{
			"id":                e.ID,
			"fact":              e.Fact,
			"conversation_id":   e.ConversationID,
			"source_message_id": e.SourceMessageID,
			"created_at":        e.CreatedAt,
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"memories": out})
}

func (s *Server) handleDeleteMemory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := s.memories.Delete(r.Context(), id)
	if errors.Is(err, memory.ErrNotFound) {
		respondError(w, http.StatusNotFound, "memory_not_found", err.Error())
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "delete_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
