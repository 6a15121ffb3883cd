package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel/attribute"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Billy-Davies-2/glitch-pits/internal/dal"
	"github.com/Billy-Davies-2/glitch-pits/internal/logger"
	"github.com/Billy-Davies-2/glitch-pits/internal/models"
	"github.com/Billy-Davies-2/glitch-pits/internal/pit"
	"github.com/Billy-Davies-2/glitch-pits/internal/pubsub"
	"github.com/Billy-Davies-2/glitch-pits/internal/rumble"
	"github.com/Billy-Davies-2/glitch-pits/internal/telemetry"
)

// Pit is the read side of the state machine.
type Pit interface {
	Snapshot() models.PitState
	Leaderboard() []models.LeaderboardEntry
}

// Subscriber hands out event feeds.
type Subscriber interface {
	Subscribe() chan pubsub.Event
	Unsubscribe(chan pubsub.Event)
}

// Server implements the gRPC PitService
type Server struct {
	pit    Pit
	rounds dal.RoundDAL
	engine *rumble.Engine
	pubsub Subscriber
}

// NewServer creates a new gRPC server
func NewServer(p Pit, rounds dal.RoundDAL, engine *rumble.Engine, ps Subscriber) *Server {
	return &Server{
		pit:    p,
		rounds: rounds,
		engine: engine,
		pubsub: ps,
	}
}

// NewGRPCServer builds a traced grpc.Server carrying the pit service and the
// standard health service.
func NewGRPCServer(s *Server) (*gogrpc.Server, *health.Server) {
	srv := gogrpc.NewServer(gogrpc.StatsHandler(otelgrpc.NewServerHandler()))
	RegisterPitServiceServer(srv, s)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(srv, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	return srv, healthServer
}

// GetState returns the current round
func (s *Server) GetState(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	logger.Debug("gRPC: Getting pit state")
	return toStruct(s.pit.Snapshot())
}

// GetLeaderboard returns the most recent winners
func (s *Server) GetLeaderboard(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return toStruct(pit.LeaderboardUpdate{Entries: s.pit.Leaderboard()})
}

// VerifyRound replays an archived round
func (s *Server) VerifyRound(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	seedID := req.GetFields()["seedId"].GetStringValue()
	if seedID == "" {
		return nil, status.Error(codes.InvalidArgument, "seedId is required")
	}

	ctx, span := telemetry.StartSpan(ctx, "grpc.VerifyRound", attribute.String("pit.seed_id", seedID))
	defer span.End()

	rec, err := s.rounds.GetRound(ctx, seedID)
	if errors.Is(err, dal.ErrNotFound) {
		return nil, status.Errorf(codes.NotFound, "round %s not found", seedID)
	}
	if err != nil {
		logger.Error("gRPC: Failed to load round", "seed", seedID, "error", err)
		return nil, status.Error(codes.Internal, "failed to load round")
	}

	v, err := pit.Verify(s.engine, rec)
	if err != nil {
		logger.Error("gRPC: Failed to replay round", "seed", seedID, "error", err)
		return nil, status.Error(codes.Internal, "failed to replay round")
	}
	return toStruct(v)
}

// StreamEvents streams broadcast events to clients, starting with the
// current state.
func (s *Server) StreamEvents(_ *emptypb.Empty, stream gogrpc.ServerStreamingServer[structpb.Struct]) error {
	logger.Debug("gRPC: New client connected to event stream")
	eventChan := s.pubsub.Subscribe()
	defer s.pubsub.Unsubscribe(eventChan)

	first, err := toStruct(pubsub.NewEvent(pit.EventRumbleState, s.pit.Snapshot()))
	if err != nil {
		return err
	}
	if err := stream.Send(first); err != nil {
		return err
	}

	for {
		select {
		case event, ok := <-eventChan:
			if !ok {
				return status.Error(codes.Unavailable, "event stream closed")
			}
			if !event.Broadcast() {
				continue
			}
			msg, err := toStruct(event)
			if err != nil {
				logger.Error("gRPC: Failed to convert event", "type", event.Type, "error", err)
				continue
			}
			if err := stream.Send(msg); err != nil {
				logger.Error("gRPC: Failed to send event to stream", "error", err)
				return err
			}
		case <-stream.Context().Done():
			logger.Debug("gRPC: Client disconnected from event stream")
			return nil
		}
	}
}

// toStruct converts any JSON-encodable value into a protobuf Struct using
// its JSON field names.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode %T: %v", v, err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, status.Errorf(codes.Internal, "decode %T: %v", v, err)
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("struct %T: %v", v, err))
	}
	return out, nil
}
