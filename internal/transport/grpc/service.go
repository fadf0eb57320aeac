package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName        = "irrigation.v1.ReadingService"
	listReadingsMethod = "/" + ServiceName + "/ListReadings"
)

// ReadingServiceServer is implemented by *Server. Messages travel as
// google.protobuf.Struct; see messages.go for the field layout.
type ReadingServiceServer interface {
	ListReadings(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var ReadingServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ReadingServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListReadings", Handler: listReadingsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "irrigation/v1/readings.proto",
}

func RegisterReadingServiceServer(s grpc.ServiceRegistrar, srv ReadingServiceServer) {
	s.RegisterService(&ReadingServiceDesc, srv)
}

func listReadingsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReadingServiceServer).ListReadings(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: listReadingsMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ReadingServiceServer).ListReadings(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// Client calls ReadingService over a client connection.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) ListReadings(ctx context.Context, req ListReadingsRequest, opts ...grpc.CallOption) (ListReadingsResponse, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, listReadingsMethod, req.toStruct(), out, opts...); err != nil {
		return ListReadingsResponse{}, err
	}
	return responseFromStruct(out)
}
