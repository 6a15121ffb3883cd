package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Billy-Davies-2/glitch-pits/internal/dal"
	"github.com/Billy-Davies-2/glitch-pits/internal/mocks"
	"github.com/Billy-Davies-2/glitch-pits/internal/pubsub"
)

type downDAL struct{ *dal.MemoryDAL }

func (downDAL) Ping(context.Context) error { return errors.New("connection refused") }

type downBus struct{ *pubsub.MockNATSPubSub }

func (downBus) Ping() error { return errors.New("nats connection CLOSED") }

func withDeps(t *testing.T, r dal.RoundDAL, b eventBus) {
	t.Helper()
	prevRounds, prevBus, prevAnalytics := rounds, bus, analytics
	rounds, bus, analytics = r, b, mocks.NewMockClickHouseClient()
	t.Cleanup(func() { rounds, bus, analytics = prevRounds, prevBus, prevAnalytics })
}

func probe(t *testing.T, h http.HandlerFunc) (int, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return rec.Code, body
}

func TestProbes(t *testing.T) {
	healthy := pubsub.NewMockNATSPubSub("pit.events")
	t.Cleanup(healthy.Close)

	tests := []struct {
		name       string
		rounds     dal.RoundDAL
		bus        eventBus
		handler    http.HandlerFunc
		wantCode   int
		wantStatus string
		wantReason string
	}{
		{"liveness ignores deps", downDAL{dal.NewMemoryDAL()}, healthy, livenessHandler, http.StatusOK, "alive", ""},
		{"ready", dal.NewMemoryDAL(), healthy, readinessHandler, http.StatusOK, "ready", ""},
		{"database down", downDAL{dal.NewMemoryDAL()}, healthy, readinessHandler, http.StatusServiceUnavailable, "not_ready", "database_unavailable"},
		{"nats down", dal.NewMemoryDAL(), downBus{healthy}, readinessHandler, http.StatusServiceUnavailable, "not_ready", "nats_unavailable"},
		{"health ok", dal.NewMemoryDAL(), healthy, healthHandler, http.StatusOK, "ok", ""},
		{"health degraded", downDAL{dal.NewMemoryDAL()}, healthy, healthHandler, http.StatusServiceUnavailable, "degraded", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withDeps(t, tt.rounds, tt.bus)
			code, body := probe(t, tt.handler)
			if code != tt.wantCode {
				t.Fatalf("code = %d, want %d", code, tt.wantCode)
			}
			if body["status"] != tt.wantStatus {
				t.Fatalf("status = %v, want %s", body["status"], tt.wantStatus)
			}
			if tt.wantReason != "" && body["reason"] != tt.wantReason {
				t.Fatalf("reason = %v, want %s", body["reason"], tt.wantReason)
			}
		})
	}
}

func TestHealthReportsEachCheck(t *testing.T) {
	b := pubsub.NewMockNATSPubSub("pit.events")
	t.Cleanup(b.Close)
	withDeps(t, downDAL{dal.NewMemoryDAL()}, b)

	_, body := probe(t, healthHandler)
	checks, ok := body["checks"].(map[string]any)
	if !ok {
		t.Fatalf("checks = %v", body["checks"])
	}
	db := checks["database"].(map[string]any)
	if db["status"] != "unhealthy" || db["error"] != "connection refused" {
		t.Fatalf("database check = %v", db)
	}
	for _, name := range []string{"nats", "clickhouse"} {
		if c := checks[name].(map[string]any); c["status"] != "healthy" {
			t.Fatalf("%s check = %v", name, c)
		}
	}
}
