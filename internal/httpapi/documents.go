package httpapi

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/akarpova/embra/internal/knowledge"
)

type createDocumentRequest struct {
	Title  string   `json:"title"`
	Source string   `json:"source,omitempty"`
	Chunks []string `json:"chunks"`
}

// handleCreateDocument stores a pre-chunked document and embeds its
// chunks. Embedding failure degrades to vectorless chunks, which the
// retriever skips until the document is re-processed.
func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	var req createDocumentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		respondError(w, http.StatusBadRequest, "missing_title", "title is required")
		return
	}

	texts := make([]string, 0, len(req.Chunks))
	for _, c := range req.Chunks {
		if strings.TrimSpace(c) != "" {
			texts = append(texts, c)
		}
	}
	if len(texts) == 0 {
		respondError(w, http.StatusBadRequest, "empty_chunks", "at least one non-blank chunk is required")
		return
	}

	chunks := make([]knowledge.Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = knowledge.Chunk{Content: t}
	}
	if s.embedder != nil && s.embedder.IsModelLoaded() {
		vectors, err := s.embedder.EmbedBatch(r.Context(), texts)
		if err != nil {
			log.Printf("document embedding degraded, storing without vectors: %v", err)
		} else {
			for i := range chunks {
				chunks[i].Embedding = vectors[i]
			}
		}
	}

	doc := knowledge.Document{Title: strings.TrimSpace(req.Title), Source: strings.TrimSpace(req.Source)}
	if err := s.documents.CreateDocument(r.Context(), doc, chunks); err != nil {
		respondError(w, http.StatusInternalServerError, "create_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"status": "created",
		"chunks": len(chunks),
	})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.documents.ListDocuments(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "list_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := s.documents.DeleteDocument(r.Context(), id)
	if errors.Is(err, knowledge.ErrNotFound) {
		respondError(w, http.StatusNotFound, "document_not_found", err.Error())
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "delete_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
