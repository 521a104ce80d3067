package handler

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name of the metering intake.
const ServiceName = "metering.v1.MeteringService"

// Full method names, used for interceptor allow lists.
const (
	RecordMeteringDataMethod = "/" + ServiceName + "/RecordMeteringData"
	RecordEventsMethod       = "/" + ServiceName + "/RecordEvents"
)

// MeteringServiceServer is the server API for the metering intake. Requests carry the JSON
// payload (a single item or an array) as a google.protobuf.Value; replies are summary structs.
type MeteringServiceServer interface {
	RecordMeteringData(context.Context, *structpb.Value) (*structpb.Struct, error)
	RecordEvents(context.Context, *structpb.Value) (*structpb.Struct, error)
}

// RegisterMeteringServiceServer registers srv with s.
func RegisterMeteringServiceServer(s grpc.ServiceRegistrar, srv MeteringServiceServer) {
	s.RegisterService(&MeteringServiceDesc, srv)
}

// MeteringServiceDesc describes metering.v1.MeteringService for grpc.Server.
var MeteringServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MeteringServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "RecordMeteringData", Handler: recordMeteringDataHandler},
		{MethodName: "RecordEvents", Handler: recordEventsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "metering/v1/metering.proto",
}

func recordMeteringDataHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Value)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MeteringServiceServer).RecordMeteringData(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: RecordMeteringDataMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(MeteringServiceServer).RecordMeteringData(ctx, req.(*structpb.Value))
	}
	return interceptor(ctx, in, info, handler)
}

func recordEventsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Value)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MeteringServiceServer).RecordEvents(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: RecordEventsMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(MeteringServiceServer).RecordEvents(ctx, req.(*structpb.Value))
	}
	return interceptor(ctx, in, info, handler)
}

// MeteringServiceClient is the client API for metering.v1.MeteringService.
type MeteringServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewMeteringServiceClient returns a client using cc.
func NewMeteringServiceClient(cc grpc.ClientConnInterface) *MeteringServiceClient {
	return &MeteringServiceClient{cc: cc}
}

// RecordMeteringData sends a samples payload.
func (c *MeteringServiceClient) RecordMeteringData(ctx context.Context, in *structpb.Value, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, RecordMeteringDataMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// RecordEvents sends an events payload.
func (c *MeteringServiceClient) RecordEvents(ctx context.Context, in *structpb.Value, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, RecordEventsMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
