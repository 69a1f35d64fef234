package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"easel/api/internal/canvas"
	"easel/api/internal/search"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"database": map[string]any{"status": "ok"},
			"cache":    map[string]any{"status": "ok"},
		}

		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["database"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}
		if err := s.service.CacheReady(ctx); err != nil {
			// degraded but serving: reads fall through to the blob store
			checks["cache"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}

		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/search" {
		s.handleSearch(w, r)
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) >= 2 && parts[0] == "api" && parts[1] == "canvases" {
		s.handleCanvases(w, r, parts[2:])
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleCanvases(w http.ResponseWriter, r *http.Request, rest []string) {
	switch {
	case len(rest) == 0 && r.Method == http.MethodGet:
		s.handleListCanvases(w, r)
	case len(rest) == 0 && r.Method == http.MethodPost:
		s.handleCreateCanvas(w, r)
	case len(rest) == 1 && r.Method == http.MethodGet:
		s.handleGetCanvas(w, r, rest[0])
	case len(rest) == 1 && r.Method == http.MethodPut:
		s.handleRenameCanvas(w, r, rest[0])
	case len(rest) == 1 && r.Method == http.MethodDelete:
		s.handleDeleteCanvas(w, r, rest[0])
	case len(rest) == 2 && rest[1] == "state" && r.Method == http.MethodGet:
		s.handleGetState(w, r, rest[0])
	case len(rest) == 2 && rest[1] == "data" && r.Method == http.MethodGet:
		s.handleGetData(w, r, rest[0])
	case len(rest) == 2 && rest[1] == "transactions" && r.Method == http.MethodPost:
		s.handleSubmitTransactions(w, r, rest[0])
	case len(rest) == 2 && rest[1] == "merge" && r.Method == http.MethodPost:
		s.handleMerge(w, r, rest[0])
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleListCanvases(w http.ResponseWriter, r *http.Request) {
	canvases, err := s.service.ListCanvases(r.Context())
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"canvases": canvases})
}

func (s *HTTPServer) handleCreateCanvas(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title string `json:"title"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	summary, err := s.service.CreateCanvas(r.Context(), body.Title)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusCreated, summary)
}

func (s *HTTPServer) handleGetCanvas(w http.ResponseWriter, r *http.Request, canvasID string) {
	summary, err := s.service.GetCanvas(r.Context(), canvasID)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *HTTPServer) handleRenameCanvas(w http.ResponseWriter, r *http.Request, canvasID string) {
	var body struct {
		Title string `json:"title"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if err := s.service.RenameCanvas(r.Context(), canvasID, body.Title); err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleDeleteCanvas(w http.ResponseWriter, r *http.Request, canvasID string) {
	if err := s.service.DeleteCanvas(r.Context(), canvasID); err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleGetState(w http.ResponseWriter, r *http.Request, canvasID string) {
	state, err := s.service.GetState(r.Context(), canvasID)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *HTTPServer) handleGetData(w http.ResponseWriter, r *http.Request, canvasID string) {
	data, err := s.service.GetData(r.Context(), canvasID)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (s *HTTPServer) handleSubmitTransactions(w http.ResponseWriter, r *http.Request, canvasID string) {
	var body struct {
		Transactions []canvas.Transaction `json:"transactions"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	state, err := s.service.SubmitTransactions(r.Context(), canvasID, body.Transactions)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *HTTPServer) handleMerge(w http.ResponseWriter, r *http.Request, canvasID string) {
	var body struct {
		State canvas.State `json:"state"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	merged, err := s.service.MergeState(r.Context(), canvasID, body.State)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, merged)
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	q := search.Query{
		Text:   strings.TrimSpace(query.Get("q")),
		Limit:  parseIntParam(query.Get("limit"), 20),
		Offset: parseIntParam(query.Get("offset"), 0),
	}
	writeJSON(w, http.StatusOK, s.service.Search(q))
}

func parseIntParam(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// mapError translates service failures into HTTP responses. Engine conflicts
// become 409s carrying the conflicting item and both candidate values so the
// client can offer manual resolution.
func mapError(err error) (status int, code, message string, details any) {
	var conflict *canvas.ConflictError
	if errors.As(err, &conflict) {
		details := map[string]any{
			"kind":          string(conflict.Kind),
			"localVersion":  conflict.LocalVersion,
			"remoteVersion": conflict.RemoteVersion,
		}
		if conflict.Kind == canvas.ConflictVersion {
			return http.StatusConflict, "VERSION_CONFLICT",
				"Canvas versions diverged, rebase and resubmit", details
		}
		details["itemId"] = conflict.ItemID
		details["local"] = conflict.Local
		details["remote"] = conflict.Remote
		return http.StatusConflict, "OBJECT_CONFLICT",
			"This object was edited elsewhere since your last sync", details
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
