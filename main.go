package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Billy-Davies-2/glitch-pits/internal/clickhouse"
	"github.com/Billy-Davies-2/glitch-pits/internal/config"
	"github.com/Billy-Davies-2/glitch-pits/internal/dal"
	"github.com/Billy-Davies-2/glitch-pits/internal/gateway"
	grpcserver "github.com/Billy-Davies-2/glitch-pits/internal/grpc"
	"github.com/Billy-Davies-2/glitch-pits/internal/handlers"
	"github.com/Billy-Davies-2/glitch-pits/internal/logger"
	"github.com/Billy-Davies-2/glitch-pits/internal/mocks"
	"github.com/Billy-Davies-2/glitch-pits/internal/models"
	"github.com/Billy-Davies-2/glitch-pits/internal/pit"
	"github.com/Billy-Davies-2/glitch-pits/internal/pubsub"
	"github.com/Billy-Davies-2/glitch-pits/internal/registry"
	"github.com/Billy-Davies-2/glitch-pits/internal/rumble"
	"github.com/Billy-Davies-2/glitch-pits/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

// eventBus is the cross-instance upstream behind the local pubsub.
type eventBus interface {
	pubsub.Upstream
	Ping() error
	Close()
}

// analyticsStore receives every finished round and answers win-rate queries.
type analyticsStore interface {
	SaveRound(ctx context.Context, rec models.RoundRecord) error
	WinRates(ctx context.Context) ([]models.WinRate, error)
	Ping(ctx context.Context) error
	Close() error
}

var (
	environment string
	rounds      dal.RoundDAL
	bus         eventBus
	analytics   analyticsStore
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger.InitWithWriter(os.Stdout, cfg.LogLevel)
	logger.Info("Starting Glitch Pits", "environment", cfg.Environment)
	environment = cfg.Environment

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, "glitch-pits", cfg.OTelEndpoint, cfg.OTelEnabled)
	if err != nil {
		logger.Warn("Tracing disabled", "error", err)
	}

	rounds = openRoundStore(ctx, cfg)
	bus = openEventBus(cfg)
	analytics = openAnalytics(ctx, cfg)

	lore, err := rumble.LoadLore(cfg.LoreFile)
	if err != nil {
		logger.Error("Failed to load lore", "file", cfg.LoreFile, "error", err)
		log.Fatalf("Failed to load lore: %v", err)
	}
	engine := rumble.NewEngine(lore)

	// publishes go upstream, upstream events reach local subscribers
	local := pubsub.NewWithUpstream(bus)

	machine := pit.New(pit.Config{
		ReplayInterval:  cfg.Game.ReplayInterval,
		HouseFeePercent: cfg.Game.HouseFeePercent,
		MinStake:        cfg.Game.MinStake,
		MaxParticipants: cfg.Game.MaxParticipants,
	}, registry.New(cfg.Game.StartingBalance, cfg.Game.ForgeCost), engine, local,
		pit.WithSinks(rounds, analytics))

	// gRPC
	grpcSrv, grpcHealth := grpcserver.NewGRPCServer(grpcserver.NewServer(machine, rounds, engine, local))
	go func() {
		lis, err := net.Listen("tcp", "0.0.0.0:"+cfg.GRPCPort)
		if err != nil {
			logger.Error("Failed to listen for gRPC", "error", err, "port", cfg.GRPCPort)
			log.Fatalf("Failed to listen for gRPC: %v", err)
		}
		logger.Info("gRPC server starting", "address", "0.0.0.0:"+cfg.GRPCPort)
		if err := grpcSrv.Serve(lis); err != nil {
			logger.Error("Failed to serve gRPC", "error", err)
		}
	}()

	// HTTP
	mux := http.NewServeMux()
	mux.Handle("/ws", gateway.New(machine, local, gateway.Options{AllowedOrigin: cfg.CORSOrigin}))
	handlers.NewAPIHandlers(machine, rounds, analytics, engine, local).Register(mux)

	// Health check endpoints
	mux.HandleFunc("/api/health", healthHandler)
	mux.HandleFunc("/healthz", livenessHandler) // Kubernetes liveness probe
	mux.HandleFunc("/readyz", readinessHandler) // Kubernetes readiness probe

	addr := "0.0.0.0:" + cfg.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("Server starting", "address", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", "error", err)
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	machine.Close()
	grpcHealth.Shutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err)
	}
	grpcSrv.GracefulStop()

	bus.Close()
	if err := rounds.Close(); err != nil {
		logger.Warn("Failed to close round store", "error", err)
	}
	if err := analytics.Close(); err != nil {
		logger.Warn("Failed to close analytics", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("Failed to flush traces", "error", err)
	}
}

func openRoundStore(ctx context.Context, cfg config.Config) dal.RoundDAL {
	switch cfg.DBDriver {
	case "sqlite":
		store, err := dal.NewSQLiteDAL(cfg.SQLiteFile)
		if err != nil {
			logger.Error("Failed to initialize SQLite", "error", err)
			log.Fatalf("Failed to initialize SQLite: %v", err)
		}
		logger.Info("Connected to SQLite database", "file", cfg.SQLiteFile)
		return store
	case "postgres":
		if cfg.DatabaseURL == "" {
			logger.Info("Using mock Postgres for local development (no Postgres server required)", "file", cfg.SQLiteFile)
			store, err := mocks.NewMockPostgresDAL(cfg.SQLiteFile)
			if err != nil {
				logger.Error("Failed to initialize mock Postgres", "error", err)
				log.Fatalf("Failed to initialize mock Postgres: %v", err)
			}
			return store
		}
		store, err := dal.NewPostgresDAL(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("Failed to initialize Postgres", "error", err)
			log.Fatalf("Failed to initialize Postgres: %v", err)
		}
		logger.Info("Connected to Postgres database")
		return store
	default:
		logger.Info("Using in-memory round archive")
		return dal.NewMemoryDAL()
	}
}

func openEventBus(cfg config.Config) eventBus {
	switch cfg.EventBusMode() {
	case "mock":
		logger.Info("Using mock NATS (events stay in this process)")
		return pubsub.NewMockNATSPubSub(cfg.NATSSubject)
	case "embedded":
		logger.Info("Starting embedded NATS server for local development")
		embedded, err := pubsub.NewEmbeddedNATSPubSub(pubsub.EmbeddedNATSOptions{
			Subject:    cfg.NATSSubject,
			StreamName: cfg.NATSStream,
		})
		if err != nil {
			logger.Error("Failed to initialize embedded NATS", "error", err)
			log.Fatalf("Failed to initialize embedded NATS: %v", err)
		}
		logger.Info("Embedded NATS server ready", "url", embedded.ServerURL())
		return embedded
	default:
		logger.Info("Using NATS JetStream", "url", cfg.NATSURL)
		external, err := pubsub.NewNATSPubSub(cfg.NATSURL, pubsub.NATSOptions{
			Subject:    cfg.NATSSubject,
			StreamName: cfg.NATSStream,
		})
		if err != nil {
			logger.Error("Failed to initialize NATS", "error", err)
			log.Fatalf("Failed to initialize NATS: %v", err)
		}
		logger.Info("Connected to NATS", "url", cfg.NATSURL)
		return external
	}
}

func openAnalytics(ctx context.Context, cfg config.Config) analyticsStore {
	if cfg.IsDevelopment() {
		logger.Info("Using mock ClickHouse for local development (no ClickHouse server required)")
		return mocks.NewMockClickHouseClient()
	}
	client, err := clickhouse.NewClient(ctx, cfg.ClickHouseAddr, cfg.ClickHouseDB, cfg.ClickHouseUser, cfg.ClickHousePassword)
	if err != nil {
		logger.Error("Failed to initialize ClickHouse", "error", err, "address", cfg.ClickHouseAddr)
		log.Fatalf("Failed to initialize ClickHouse: %v", err)
	}
	logger.Info("Connected to ClickHouse", "address", cfg.ClickHouseAddr, "database", cfg.ClickHouseDB)
	return client
}

func check(err error) map[string]any {
	if err != nil {
		return map[string]any{"status": "unhealthy", "error": err.Error()}
	}
	return map[string]any{"status": "healthy"}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := "ok"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if rounds != nil {
		err := rounds.Ping(ctx)
		checks["database"] = check(err)
		if err != nil {
			status = "degraded"
			httpStatus = http.StatusServiceUnavailable
		}
	} else {
		checks["database"] = map[string]any{"status": "not_configured"}
	}

	if bus != nil {
		err := bus.Ping()
		checks["nats"] = check(err)
		if err != nil {
			status = "degraded"
			httpStatus = http.StatusServiceUnavailable
		}
	}

	// analytics only degrades health where a real ClickHouse is expected
	if analytics != nil {
		err := analytics.Ping(ctx)
		checks["clickhouse"] = check(err)
		if err != nil && environment == "production" {
			status = "degraded"
			httpStatus = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Unix(),
		"checks":    checks,
	})
}

// livenessHandler handles Kubernetes liveness probes
// Returns 200 if the application is running (doesn't check dependencies)
func livenessHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "alive",
		"timestamp": time.Now().Unix(),
	})
}

// readinessHandler handles Kubernetes readiness probes
// Returns 200 once the round archive and the event bus answer
func readinessHandler(w http.ResponseWriter, r *http.Request) {
	reason := ""
	switch {
	case rounds != nil && rounds.Ping(r.Context()) != nil:
		reason = "database_unavailable"
	case bus != nil && bus.Ping() != nil:
		reason = "nats_unavailable"
	}
	if reason != "" {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":    "not_ready",
			"reason":    reason,
			"timestamp": time.Now().Unix(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ready",
		"timestamp": time.Now().Unix(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
