// Package handlers implements the HTTP handlers for the TryIt
// orchestrator: the chat endpoint plus health, status, trace, and session
// introspection.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/HonestImpact/tryit-orchestrator/internal/breaker"
	"github.com/HonestImpact/tryit-orchestrator/internal/orchestrator"
	"github.com/HonestImpact/tryit-orchestrator/internal/resources"
	"github.com/HonestImpact/tryit-orchestrator/internal/sessions"
	"github.com/HonestImpact/tryit-orchestrator/internal/store"
	"github.com/HonestImpact/tryit-orchestrator/pkg/contracts"
	"github.com/HonestImpact/tryit-orchestrator/pkg/models"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Handlers holds all handler dependencies.
type Handlers struct {
	Engine    *orchestrator.Engine
	Provider  contracts.LLMProvider
	Breakers  *breaker.Registry
	Resources *resources.Manager
	Sessions  *sessions.Logger
	Store     store.Store
	Version   string
}

// ── Chat ────────────────────────────────────────────────────

// ChatRequest is the inbound chat body.
type ChatRequest struct {
	SessionID string               `json:"session_id,omitempty"`
	Message   string               `json:"message"`
	History   []models.ChatMessage `json:"history,omitempty"`
}

// Chat runs one orchestrated request. Hard failures map to 502; partial
// and success both return 200 with the status field set.
func (h *Handlers) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		respondError(w, http.StatusBadRequest, "message must not be empty")
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	resp := h.Engine.HandleRequest(r.Context(), &models.AgentRequest{
		ID:        uuid.NewString(),
		SessionID: req.SessionID,
		Content:   req.Message,
		Timestamp: time.Now().UTC(),
		History:   req.History,
	})

	status := http.StatusOK
	if resp.Status == models.StatusError {
		status = http.StatusBadGateway
	}
	respondJSON(w, status, map[string]interface{}{
		"session_id": req.SessionID,
		"response":   resp,
	})
}

// ── Health & Status ─────────────────────────────────────────

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.HealthCheck(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "tryit-orchestrator",
		"version": h.Version,
	})
}

// Status reports provider health, cumulative costs, breaker states, and
// shared-resource readiness. Reading it never forces construction.
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"provider":  h.Provider.Status(),
		"costs":     h.Provider.Costs(),
		"breakers":  h.Breakers.Stats(),
		"resources": h.Resources.Status(),
	})
}

// ── Traces ──────────────────────────────────────────────────

func (h *Handlers) ListTraces(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	sessionID := r.URL.Query().Get("session_id")

	traces, err := h.Store.ListTraces(r.Context(), sessionID, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if traces == nil {
		traces = []*models.Trace{}
	}
	respondJSON(w, http.StatusOK, traces)
}

// ── Sessions ────────────────────────────────────────────────

func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	session, err := h.Sessions.Get(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	respondJSON(w, http.StatusOK, session)
}

// ── Helpers ─────────────────────────────────────────────────

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
