// Package api exposes the chat orchestrator over HTTP. Every JSON response
// uses the {success, data | error} envelope; the streaming turn endpoint
// answers with server-sent events.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/user/docchat/internal/canonical"
	"github.com/user/docchat/internal/chat"
	"github.com/user/docchat/internal/checklist"
	"github.com/user/docchat/internal/errx"
	"github.com/user/docchat/internal/logx"
	"github.com/user/docchat/internal/stream"
	"github.com/user/docchat/internal/types"
)

// Server is the HTTP handler for the chat API.
type Server struct {
	chat *chat.Service
	mux  *http.ServeMux
}

// NewServer creates a Server backed by svc.
func NewServer(svc *chat.Service) *Server {
	s := &Server{chat: svc, mux: http.NewServeMux()}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/documents", s.handleDocuments)
	s.mux.HandleFunc("POST /api/threads", s.handleCreateThread)
	s.mux.HandleFunc("GET /api/threads/{id}/turns", s.handleHistory)
	s.mux.HandleFunc("POST /api/threads/{id}/turns", s.handleTurn)
	s.mux.HandleFunc("POST /api/threads/{id}/turns/stream", s.handleTurnStream)
	s.mux.HandleFunc("POST /api/threads/{id}/web-search", s.handleWebSearch)
	s.mux.HandleFunc("GET /api/checklist/defaults", s.handleChecklistDefaults)
	s.mux.HandleFunc("POST /api/checklist/analyze", s.handleChecklistAnalyze)
	return s
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	s.mux.ServeHTTP(w, r)
	logx.Debug().Str("method", r.Method).Str("path", r.URL.Path).Dur("elapsed", time.Since(start)).Msg("http request")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, map[string]any{"documents": s.chat.Documents().Available()}, "")
}

func (s *Server) handleCreateThread(w http.ResponseWriter, r *http.Request) {
	id, err := s.chat.CreateThread(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, map[string]string{"thread_id": string(id)}, "")
}

// threadID reads the {id} path value, writing a 400 when it cannot name a
// thread.
func threadID(w http.ResponseWriter, r *http.Request) (types.ThreadID, bool) {
	id := types.ThreadID(r.PathValue("id"))
	if !id.Valid() {
		writeError(w, errx.BadRequest("VALIDATION_ERROR", "invalid thread id"))
		return "", false
	}
	return id, true
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	thread, ok := threadID(w, r)
	if !ok {
		return
	}
	limit := 50
	if q := r.URL.Query().Get("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 {
			limit = n
		}
	}
	turns, err := s.chat.History(r.Context(), thread, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if turns == nil {
		turns = []*types.Turn{}
	}
	writeSuccess(w, http.StatusOK, map[string]any{"thread_id": thread, "turns": turns}, "")
}

// turnRequest is the JSON body for a turn.
type turnRequest struct {
	Content           string   `json:"content"`
	Documents         []string `json:"document_names,omitempty"`
	PrependWebSummary string   `json:"prepend_web_summary,omitempty"`
}

// messageResponse is an assistant reply as returned to clients.
type messageResponse struct {
	Role      types.Role        `json:"role"`
	Content   *canonical.Result `json:"content"`
	Source    canonical.Source  `json:"source"`
	CreatedAt time.Time         `json:"created_at"`
}

func reply(r *canonical.Result) messageResponse {
	return messageResponse{Role: types.RoleAssistant, Content: r, Source: r.Source, CreatedAt: time.Now().UTC()}
}

func (s *Server) decodeTurn(w http.ResponseWriter, r *http.Request) (chat.TurnRequest, bool) {
	thread, ok := threadID(w, r)
	if !ok {
		return chat.TurnRequest{}, false
	}
	var body turnRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, errx.BadRequest("INVALID_JSON", "Request body must be valid JSON"))
		return chat.TurnRequest{}, false
	}
	if strings.TrimSpace(body.Content) == "" {
		writeError(w, errx.BadRequest("VALIDATION_ERROR", "content is required"))
		return chat.TurnRequest{}, false
	}
	for _, name := range body.Documents {
		if !s.chat.Documents().Known(name) {
			writeError(w, errx.BadRequest("VALIDATION_ERROR", "unknown document: "+name))
			return chat.TurnRequest{}, false
		}
	}
	return chat.TurnRequest{
		Thread:         thread,
		Text:           body.Content,
		Documents:      body.Documents,
		PrependSummary: body.PrependWebSummary,
	}, true
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeTurn(w, r)
	if !ok {
		return
	}
	result, err := s.chat.ProcessTurn(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"message": reply(result), "streaming": false}, "")
}

func (s *Server) handleTurnStream(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeTurn(w, r)
	if !ok {
		return
	}
	sse, err := stream.NewSSEWriter(w)
	if err != nil {
		writeError(w, errx.New(err, http.StatusInternalServerError, "STREAMING_UNSUPPORTED", "Streaming is not supported"))
		return
	}
	if _, err := s.chat.ProcessTurnStreaming(r.Context(), req, sse); err != nil {
		logx.Warn().Err(err).Str("thread_id", string(req.Thread)).Msg("stream ended with error")
	}
}

type webSearchRequest struct {
	Query string `json:"query"`
}

func (s *Server) handleWebSearch(w http.ResponseWriter, r *http.Request) {
	thread, ok := threadID(w, r)
	if !ok {
		return
	}
	var body webSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, errx.BadRequest("INVALID_JSON", "Request body must be valid JSON"))
		return
	}
	if strings.TrimSpace(body.Query) == "" {
		writeError(w, errx.BadRequest("VALIDATION_ERROR", "query is required"))
		return
	}
	result := s.chat.SearchWeb(r.Context(), thread, body.Query)
	writeSuccess(w, http.StatusOK, map[string]any{"message": reply(result)}, "")
}

func (s *Server) handleChecklistDefaults(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, map[string]any{"checklist_items": checklist.DefaultItems}, "")
}

func (s *Server) handleChecklistAnalyze(w http.ResponseWriter, r *http.Request) {
	var body checklist.Request
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, errx.BadRequest("INVALID_JSON", "Request body must be valid JSON"))
		return
	}
	report, err := s.chat.AnalyzeChecklist(r.Context(), body)
	if err != nil {
		if errors.Is(err, checklist.ErrInvalidRequest) {
			writeError(w, errx.New(err, http.StatusBadRequest, "VALIDATION_ERROR", err.Error()))
			return
		}
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, report, "Checklist analysis completed successfully")
}
