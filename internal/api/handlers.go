package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/FocuswithJustin/termdoc/core/content"
	"github.com/FocuswithJustin/termdoc/core/errors"
	"github.com/FocuswithJustin/termdoc/core/markup"
	"github.com/FocuswithJustin/termdoc/internal/logging"
	"github.com/FocuswithJustin/termdoc/internal/server"
	"github.com/FocuswithJustin/termdoc/internal/store"
)

// maxBodyBytes caps REST request bodies.
const maxBodyBytes = 8 << 20

// Documents is the persistence the API needs. *store.Store implements it.
type Documents interface {
	Create(ctx context.Context, title, markup string) (*store.Document, error)
	Get(ctx context.Context, id string) (*store.Document, error)
	List(ctx context.Context) ([]*store.Document, error)
	Update(ctx context.Context, id, markup string) (*store.Document, bool, error)
	History(ctx context.Context, id string) ([]store.Revision, error)
	Delete(ctx context.Context, id string) error
}

// APIResponse is the standard API response wrapper.
type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
	Meta    *APIMeta  `json:"meta,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIMeta contains response metadata.
type APIMeta struct {
	Total     int    `json:"total,omitempty"`
	Timestamp string `json:"timestamp"`
}

// HealthInfo is the health check response.
type HealthInfo struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Uptime   string `json:"uptime"`
	Sessions int    `json:"sessions"`
}

// ParseRequest is the body of POST /convert/parse.
type ParseRequest struct {
	Markup string `json:"markup"`
}

// ParseResult is the tree built from markup plus what the round trip lost.
type ParseResult struct {
	Tree      *content.Root `json:"tree"`
	Canonical string        `json:"canonical"`
	LossClass string        `json:"loss_class"`
	Warnings  []string      `json:"warnings,omitempty"`
	Empty     bool          `json:"empty"`
}

// RenderRequest is the body of POST /convert/render.
type RenderRequest struct {
	Tree *content.Root `json:"tree"`
}

// RenderResult carries canonical markup.
type RenderResult struct {
	Markup string `json:"markup"`
}

// CreateRequest is the body of POST /documents.
type CreateRequest struct {
	Title  string `json:"title"`
	Markup string `json:"markup"`
}

// UpdateRequest is the body of PUT /documents/{id}.
type UpdateRequest struct {
	Markup string `json:"markup"`
}

// UpdateResult reports the stored document and whether a revision was added.
type UpdateResult struct {
	Document *store.Document `json:"document"`
	Changed  bool            `json:"changed"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Endpoint not found")
		return
	}
	respond(w, http.StatusOK, map[string]any{
		"name":    "termdoc API",
		"version": s.Version,
		"endpoints": []string{
			"GET /health",
			"GET /metrics",
			"POST /convert/parse",
			"POST /convert/render",
			"GET /documents",
			"POST /documents",
			"GET /documents/{id}",
			"PUT /documents/{id}",
			"DELETE /documents/{id}",
			"GET /documents/{id}/history",
			"WS /session",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, HealthInfo{
		Status:   "healthy",
		Version:  s.Version,
		Uptime:   time.Since(s.started).Round(time.Second).String(),
		Sessions: s.sessions.Len(),
	})
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	var req ParseRequest
	if !decodeBody(w, r, &req) {
		return
	}
	parsed := s.parses.Parse(req.Markup)
	report := parsed.Report
	respond(w, http.StatusOK, ParseResult{
		Tree:      parsed.Tree,
		Canonical: report.Canonical,
		LossClass: string(report.LossClass),
		Warnings:  report.Warnings,
		Empty:     content.IsEmpty(parsed.Tree),
	})
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	var req RenderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Tree == nil {
		respondError(w, http.StatusBadRequest, "INVALID_TREE", "tree is required")
		return
	}
	if errs := content.Structural(content.Validate(req.Tree)); len(errs) > 0 {
		respondError(w, http.StatusBadRequest, "INVALID_TREE", errs[0].Error())
		return
	}
	respond(w, http.StatusOK, RenderResult{Markup: markup.Serialize(req.Tree)})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.docs.List(r.Context())
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if docs == nil {
		docs = []*store.Document{}
	}
	respondList(w, docs, len(docs))
}

func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	doc, err := s.docs.Create(r.Context(), server.SanitizeUserInput(req.Title), req.Markup)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, http.StatusCreated, doc)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.docs.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, doc)
}

func (s *Server) handleUpdateDocument(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	doc, changed, err := s.docs.Update(r.Context(), r.PathValue("id"), req.Markup)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, UpdateResult{Document: doc, Changed: changed})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.docs.Delete(r.Context(), id); err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, map[string]string{"deleted": id})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	revs, err := s.docs.History(r.Context(), r.PathValue("id"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondList(w, revs, len(revs))
}

// decodeBody reads a JSON request body into v, writing the error response
// itself when that fails.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if !server.ValidateContentType(r.Header.Get("Content-Type"), server.JSONContentTypes) {
		respondError(w, http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE", "Content-Type must be application/json")
		return false
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// errorStatus maps the error taxonomy onto HTTP.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, errors.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, errors.ErrInvalidInput):
		return http.StatusBadRequest, "INVALID_REQUEST"
	case errors.Is(err, errors.ErrRejected):
		return http.StatusUnprocessableEntity, "REJECTED"
	}
	return http.StatusInternalServerError, "INTERNAL"
}

func respondErr(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logging.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		msg = "Internal server error"
	}
	respondError(w, status, code, msg)
}

func respond(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, APIResponse{
		Success: true,
		Data:    data,
		Meta:    &APIMeta{Timestamp: time.Now().UTC().Format(time.RFC3339)},
	})
}

func respondList(w http.ResponseWriter, data any, total int) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
		Meta:    &APIMeta{Total: total, Timestamp: time.Now().UTC().Format(time.RFC3339)},
	})
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: message},
		Meta:    &APIMeta{Timestamp: time.Now().UTC().Format(time.RFC3339)},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode response", "error", err)
	}
}
