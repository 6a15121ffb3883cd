package grpc

import (
	"context"

	gogrpc "google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "glitchpits.v1.PitService"

const (
	getStateMethod       = "/" + ServiceName + "/GetState"
	getLeaderboardMethod = "/" + ServiceName + "/GetLeaderboard"
	verifyRoundMethod    = "/" + ServiceName + "/VerifyRound"
	streamEventsMethod   = "/" + ServiceName + "/StreamEvents"
)

// PitServiceServer is the read-only pit API. Messages are protobuf
// well-known types so no generated code is needed.
type PitServiceServer interface {
	GetState(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	GetLeaderboard(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	// VerifyRound takes {"seedId": "..."}.
	VerifyRound(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StreamEvents(*emptypb.Empty, gogrpc.ServerStreamingServer[structpb.Struct]) error
}

// PitServiceDesc describes glitchpits.v1.PitService.
var PitServiceDesc = gogrpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PitServiceServer)(nil),
	Methods: []gogrpc.MethodDesc{
		{MethodName: "GetState", Handler: getStateHandler},
		{MethodName: "GetLeaderboard", Handler: getLeaderboardHandler},
		{MethodName: "VerifyRound", Handler: verifyRoundHandler},
	},
	Streams: []gogrpc.StreamDesc{
		{StreamName: "StreamEvents", Handler: streamEventsHandler, ServerStreams: true},
	},
	Metadata: "glitchpits/v1/pit.proto",
}

// RegisterPitServiceServer registers srv on s.
func RegisterPitServiceServer(s gogrpc.ServiceRegistrar, srv PitServiceServer) {
	s.RegisterService(&PitServiceDesc, srv)
}

func getStateHandler(srv any, ctx context.Context, dec func(any) error, interceptor gogrpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PitServiceServer).GetState(ctx, in)
	}
	info := &gogrpc.UnaryServerInfo{Server: srv, FullMethod: getStateMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PitServiceServer).GetState(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func getLeaderboardHandler(srv any, ctx context.Context, dec func(any) error, interceptor gogrpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PitServiceServer).GetLeaderboard(ctx, in)
	}
	info := &gogrpc.UnaryServerInfo{Server: srv, FullMethod: getLeaderboardMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PitServiceServer).GetLeaderboard(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func verifyRoundHandler(srv any, ctx context.Context, dec func(any) error, interceptor gogrpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PitServiceServer).VerifyRound(ctx, in)
	}
	info := &gogrpc.UnaryServerInfo{Server: srv, FullMethod: verifyRoundMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PitServiceServer).VerifyRound(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func streamEventsHandler(srv any, stream gogrpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(PitServiceServer).StreamEvents(in, &gogrpc.GenericServerStream[emptypb.Empty, structpb.Struct]{ServerStream: stream})
}

// PitServiceClient calls glitchpits.v1.PitService.
type PitServiceClient struct {
	cc gogrpc.ClientConnInterface
}

func NewPitServiceClient(cc gogrpc.ClientConnInterface) *PitServiceClient {
	return &PitServiceClient{cc: cc}
}

func (c *PitServiceClient) GetState(ctx context.Context, in *emptypb.Empty, opts ...gogrpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, getStateMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *PitServiceClient) GetLeaderboard(ctx context.Context, in *emptypb.Empty, opts ...gogrpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, getLeaderboardMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *PitServiceClient) VerifyRound(ctx context.Context, in *structpb.Struct, opts ...gogrpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, verifyRoundMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *PitServiceClient) StreamEvents(ctx context.Context, in *emptypb.Empty, opts ...gogrpc.CallOption) (gogrpc.ServerStreamingClient[structpb.Struct], error) {
	stream, err := c.cc.NewStream(ctx, &PitServiceDesc.Streams[0], streamEventsMethod, opts...)
	if err != nil {
		return nil, err
	}
	x := &gogrpc.GenericClientStream[emptypb.Empty, structpb.Struct]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
