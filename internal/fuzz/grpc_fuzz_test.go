package fuzz

import (
	"context"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	grpcserver "github.com/Billy-Davies-2/glitch-pits/internal/grpc"
)

// FuzzGRPCVerifyRound fuzzes the gRPC VerifyRound endpoint
func FuzzGRPCVerifyRound(f *testing.F) {
	// Seed corpus
	f.Add("rumble-1760000000000-ab12cd34")
	f.Add("")
	f.Add("\xff\xfe")

	f.Fuzz(func(t *testing.T, seedID string) {
		w := newWorld(t)
		server := grpcserver.NewServer(w.machine, w.rounds, w.engine, w.bus)

		req := &structpb.Struct{Fields: map[string]*structpb.Value{
			"seedId": structpb.NewStringValue(seedID),
		}}
		_, err := server.VerifyRound(context.Background(), req)
		switch status.Code(err) {
		case codes.InvalidArgument, codes.NotFound:
		default:
			t.Fatalf("VerifyRound(%q) = %v", seedID, err)
		}
	})
}
