package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Billy-Davies-2/glitch-pits/internal/dal"
	"github.com/Billy-Davies-2/glitch-pits/internal/logger"
	"github.com/Billy-Davies-2/glitch-pits/internal/models"
	"github.com/Billy-Davies-2/glitch-pits/internal/pit"
	"github.com/Billy-Davies-2/glitch-pits/internal/pubsub"
	"github.com/Billy-Davies-2/glitch-pits/internal/rumble"
	"github.com/Billy-Davies-2/glitch-pits/internal/telemetry"
)

const sseKeepalive = 30 * time.Second

// Pit is the read side of the state machine.
type Pit interface {
	Snapshot() models.PitState
	Leaderboard() []models.LeaderboardEntry
	CharacterCount() int
}

// Analytics answers aggregate questions about past rounds.
type Analytics interface {
	WinRates(ctx context.Context) ([]models.WinRate, error)
}

// Subscriber hands out event feeds.
type Subscriber interface {
	Subscribe() chan pubsub.Event
	Unsubscribe(chan pubsub.Event)
}

// APIHandlers contains all API handler methods
type APIHandlers struct {
	pit       Pit
	rounds    dal.RoundDAL
	analytics Analytics
	engine    *rumble.Engine
	pubsub    Subscriber
}

// NewAPIHandlers creates a new API handlers instance
func NewAPIHandlers(p Pit, rounds dal.RoundDAL, analytics Analytics, engine *rumble.Engine, ps Subscriber) *APIHandlers {
	return &APIHandlers{
		pit:       p,
		rounds:    rounds,
		analytics: analytics,
		engine:    engine,
		pubsub:    ps,
	}
}

// Register mounts the read-only API on mux.
func (h *APIHandlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/pit/state", h.GetPitState)
	mux.HandleFunc("GET /api/leaderboard", h.GetLeaderboard)
	mux.HandleFunc("GET /api/rounds", h.ListRounds)
	mux.HandleFunc("GET /api/rounds/{seedId}", h.GetRound)
	mux.HandleFunc("GET /api/rounds/{seedId}/verify", h.VerifyRound)
	mux.HandleFunc("GET /api/stats", h.GetStats)
	mux.HandleFunc("GET /api/events", h.EventsSSE)
}

// GetPitState returns the current round
func (h *APIHandlers) GetPitState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.pit.Snapshot())
}

// GetLeaderboard returns the most recent winners, newest first
func (h *APIHandlers) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, pit.LeaderboardUpdate{Entries: h.pit.Leaderboard()})
}

// ListRounds returns recently archived rounds.
func (h *APIHandlers) ListRounds(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "Invalid limit parameter", http.StatusBadRequest)
			return
		}
		limit = n
	}

	rounds, err := h.rounds.ListRounds(r.Context(), limit)
	if err != nil {
		logger.Error("Failed to list rounds", "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rounds)
}

// GetRound returns one archived round
func (h *APIHandlers) GetRound(w http.ResponseWriter, r *http.Request) {
	seedID := r.PathValue("seedId")
	rec, err := h.rounds.GetRound(r.Context(), seedID)
	if err != nil {
		if !errors.Is(err, dal.ErrNotFound) {
			logger.Error("Failed to load round", "seed", seedID, "error", err)
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// VerifyRound replays an archived round from its seed and reports whether
// the engine reproduces it.
func (h *APIHandlers) VerifyRound(w http.ResponseWriter, r *http.Request) {
	seedID := r.PathValue("seedId")
	ctx, span := telemetry.StartSpan(r.Context(), "http.VerifyRound", attribute.String("pit.seed_id", seedID))
	defer span.End()

	rec, err := h.rounds.GetRound(ctx, seedID)
	if err != nil {
		writeError(w, err)
		return
	}

	v, err := pit.Verify(h.engine, rec)
	if err != nil {
		logger.Error("Failed to replay archived round", "seed", seedID, "error", err)
		writeError(w, err)
		return
	}
	span.SetAttributes(attribute.Bool("pit.valid", v.Valid))
	if !v.Valid {
		logger.Warn("Archived round does not replay", "seed", seedID, "mismatch", v.Mismatch)
	}
	writeJSON(w, http.StatusOK, v)
}

type statsResponse struct {
	Characters int              `json:"characters"`
	WinRates   []models.WinRate `json:"winRates"`
}

// GetStats returns house and player win rates per mode
func (h *APIHandlers) GetStats(w http.ResponseWriter, r *http.Request) {
	rates, err := h.analytics.WinRates(r.Context())
	if err != nil {
		logger.Error("Failed to query win rates", "error", err)
		writeError(w, err)
		return
	}
	if rates == nil {
		rates = []models.WinRate{}
	}
	writeJSON(w, http.StatusOK, statsResponse{Characters: h.pit.CharacterCount(), WinRates: rates})
}

// EventsSSE streams broadcast events to observers. Events addressed to a
// single connection never leave through here.
func (h *APIHandlers) EventsSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	eventChan := h.pubsub.Subscribe()
	defer h.pubsub.Unsubscribe(eventChan)

	fmt.Fprintf(w, "data: {\"type\":\"connected\"}\n\n")
	flusher.Flush()

	keepalive := time.NewTicker(sseKeepalive)
	defer keepalive.Stop()

	for {
		select {
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if !event.Broadcast() {
				continue
			}
			data, err := json.Marshal(event)
			if err != nil {
				logger.Error("Failed to encode SSE event", "type", event.Type, "error", err)
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		case <-r.Context().Done():
			logger.Debug("SSE client disconnected")
			return
		case <-keepalive.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("Failed to write response", "error", err)
	}
}

// writeError maps domain errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, dal.ErrNotFound):
		http.Error(w, "Round not found", http.StatusNotFound)
	case pit.IsRejected(err):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
