// internal/webhook/server.go
package webhook

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/user/butler/internal/action"
	"github.com/user/butler/internal/dialog"
	"github.com/user/butler/internal/gateway"
	"github.com/user/butler/internal/runtime"
	"github.com/user/butler/internal/scheduler"
	"github.com/user/butler/internal/state"
	"github.com/user/butler/internal/types"
)

// Server is the host-facing HTTP surface: turns in, replies and actions out,
// plus read-only session inspection.
type Server struct {
	gw        *gateway.Gateway
	reminders *state.ReminderStore
	journal   types.EventStore
	outbox    *state.Outbox
	mux       *http.ServeMux
}

// NewServer creates a Server. reminders, journal and outbox may be nil, which
// disables the routes that need them.
func NewServer(gw *gateway.Gateway, reminders *state.ReminderStore, journal types.EventStore, outbox *state.Outbox) *Server {
	s := &Server{
		gw:        gw,
		reminders: reminders,
		journal:   journal,
		outbox:    outbox,
		mux:       http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /turn", s.handleTurn)
	s.mux.HandleFunc("POST /api/advance", s.handleAdvance)
	s.mux.HandleFunc("POST /webhook/{name}", s.handleReminder)
	s.mux.HandleFunc("GET /api/sessions", s.handleAPISessions)
	s.mux.HandleFunc("GET /api/sessions/{id}", s.handleAPISession)
	s.mux.HandleFunc("GET /api/sessions/{id}/events", s.handleAPISessionEvents)
	s.mux.HandleFunc("GET /api/sessions/{id}/actions", s.handleAPISessionActions)
	s.mux.HandleFunc("DELETE /api/sessions/{id}/actions/{emission}", s.handleAckAction)
	s.mux.HandleFunc("GET /api/actions/{emission}", s.handleAPIAction)
	s.mux.Handle("GET /metrics", promhttp.Handler())
	return s
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// writeJSON encodes v without HTML escaping so action payloads reach the
// host byte for byte.
func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		slog.Error("encode response", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// replyResponse is what a text turn returns.
type replyResponse struct {
	TurnID  types.TurnID    `json:"turn_id"`
	Text    string          `json:"text"`
	Outcome *dialog.Outcome `json:"outcome,omitempty"`
}

// Reply headers. When a turn emits an action the body is the action record
// and nothing else, so its ids travel here.
const (
	headerTurnID     = "X-Butler-Turn-Id"
	headerEmissionID = "X-Butler-Emission-Id"
)

// writeReply sends the emitted record verbatim, or the text reply envelope.
func writeReply(w http.ResponseWriter, reply runtime.Reply) {
	w.Header().Set(headerTurnID, string(reply.TurnID))
	if reply.Emission != nil {
		w.Header().Set(headerEmissionID, string(reply.Emission.ID))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(reply.Emission.Payload)
		return
	}
	writeJSON(w, http.StatusOK, replyResponse{TurnID: reply.TurnID, Text: reply.Text, Outcome: reply.Outcome})
}

// turnRequest is the JSON body for POST /turn.
type turnRequest struct {
	SessionKey string `json:"session_key"`
	UserID     string `json:"user_id"`
	Text       string `json:"text"`
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Text == "" || req.SessionKey == "" {
		writeError(w, http.StatusBadRequest, "text and session_key are required")
		return
	}

	reply, err := s.gw.Submit(r.Context(), &types.InboundMessage{
		Source:     "http",
		SessionKey: types.SessionKey(req.SessionKey),
		UserID:     req.UserID,
		Text:       req.Text,
	})
	if err != nil {
		slog.Error("turn failed", "session_key", req.SessionKey, "error", err)
		if reply.Text == "" {
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
	}
	writeReply(w, reply)
}

// advanceRequest is the JSON body for POST /api/advance.
type advanceRequest struct {
	SessionKey string           `json:"session_key"`
	Proposal   runtime.Proposal `json:"proposal"`
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	var req advanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.SessionKey == "" {
		writeError(w, http.StatusBadRequest, "session_key is required")
		return
	}

	reply, err := s.gw.Advance(r.Context(), types.SessionKey(req.SessionKey), req.Proposal)
	if err != nil {
		slog.Error("advance failed", "session_key", req.SessionKey, "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeReply(w, reply)
}

func (s *Server) handleReminder(w http.ResponseWriter, r *http.Request) {
	if s.reminders == nil {
		writeError(w, http.StatusServiceUnavailable, "reminders not configured")
		return
	}
	name := r.PathValue("name")
	reminder, err := s.reminders.Get(name)
	if errors.Is(err, state.ErrReminderNotFound) {
		writeError(w, http.StatusNotFound, "reminder not found")
		return
	}
	if err != nil {
		slog.Error("load reminder", "name", name, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !reminder.Enabled {
		writeError(w, http.StatusForbidden, "reminder is disabled")
		return
	}

	reply, err := scheduler.Fire(r.Context(), s.gw, reminder)
	if err != nil {
		slog.Error("reminder failed", "name", name, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	var result any = reply.Text
	if json.Valid([]byte(reply.Text)) {
		result = json.RawMessage(reply.Text)
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": result})
}

type sessionResponse struct {
	SessionID  string `json:"session_id"`
	SessionKey string `json:"session_key"`
	Status     string `json:"status"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
	EventCount int64  `json:"event_count"`
}

func (s *Server) handleAPISessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessions, err := s.gw.Sessions().List(ctx)
	if err != nil {
		slog.Error("list sessions failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	result := make([]sessionResponse, 0, len(sessions))
	for _, sess := range sessions {
		var count int64
		if s.journal != nil {
			if count, err = s.journal.Count(ctx, sess.SessionID); err != nil {
				slog.Warn("count events failed", "session_id", sess.SessionID, "error", err)
			}
		}
		result = append(result, sessionResponse{
			SessionID:  string(sess.SessionID),
			SessionKey: string(sess.SessionKey),
			Status:     sess.Status,
			CreatedAt:  sess.CreatedAt.Format(time.RFC3339),
			UpdatedAt:  sess.UpdatedAt.Format(time.RFC3339),
			EventCount: count,
		})
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt > result[j].UpdatedAt
	})
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleAPISession(w http.ResponseWriter, r *http.Request) {
	id := types.SessionID(r.PathValue("id"))
	snap, err := s.gw.Snapshot(r.Context(), id)
	if errors.Is(err, state.ErrSessionNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		slog.Error("load session failed", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleAPISessionEvents(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeError(w, http.StatusServiceUnavailable, "journal not configured")
		return
	}
	id := types.SessionID(r.PathValue("id"))

	limit := 200
	if q := r.URL.Query().Get("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 {
			limit = n
		}
	}

	events, err := s.journal.Tail(r.Context(), id, limit)
	if err != nil {
		slog.Error("tail events failed", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if events == nil {
		events = []*types.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleAPISessionActions(w http.ResponseWriter, r *http.Request) {
	if s.outbox == nil {
		writeError(w, http.StatusServiceUnavailable, "outbox not configured")
		return
	}
	id := types.SessionID(r.PathValue("id"))
	ems, err := s.outbox.List(r.Context(), id)
	if err != nil {
		slog.Error("list actions failed", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if ems == nil {
		ems = []action.Emission{}
	}
	writeJSON(w, http.StatusOK, ems)
}

// handleAckAction removes an emission the host has executed.
func (s *Server) handleAckAction(w http.ResponseWriter, r *http.Request) {
	if s.outbox == nil {
		writeError(w, http.StatusServiceUnavailable, "outbox not configured")
		return
	}
	id := types.SessionID(r.PathValue("id"))
	emission, ok := emissionID(r)
	if !ok {
		writeError(w, http.StatusNotFound, "action not found")
		return
	}
	err := s.outbox.Remove(r.Context(), id, emission)
	if errors.Is(err, state.ErrEmissionNotFound) {
		writeError(w, http.StatusNotFound, "action not found")
		return
	}
	if err != nil {
		slog.Error("ack action failed", "session_id", id, "emission_id", emission, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAPIAction(w http.ResponseWriter, r *http.Request) {
	if s.outbox == nil {
		writeError(w, http.StatusServiceUnavailable, "outbox not configured")
		return
	}
	emission, ok := emissionID(r)
	if !ok {
		writeError(w, http.StatusNotFound, "action not found")
		return
	}
	em, err := s.outbox.Get(r.Context(), emission)
	if errors.Is(err, state.ErrEmissionNotFound) {
		writeError(w, http.StatusNotFound, "action not found")
		return
	}
	if err != nil {
		slog.Error("load action failed", "emission_id", emission, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, em)
}

// emissionID reads the {emission} path value. Emission ids are UUIDs; any
// other value cannot name a stored action.
func emissionID(r *http.Request) (types.EmissionID, bool) {
	raw := r.PathValue("emission")
	if _, err := uuid.Parse(raw); err != nil {
		return "", false
	}
	return types.EmissionID(raw), true
}
