package httpserver

import (
	"context"
	"strconv"

	"google.golang.org/grpc"

	"github.com/smartfarm/irrigation/internal/command"
	grpcserver "github.com/smartfarm/irrigation/internal/transport/grpc"
)

// ReadingsClient is the small subset of the gRPC client we need, to keep tests simple.
type ReadingsClient interface {
	ListReadings(ctx context.Context, req grpcserver.ListReadingsRequest, opts ...grpc.CallOption) (grpcserver.ListReadingsResponse, error)
}

// CommandSender is satisfied by *command.Service.
type CommandSender interface {
	Send(ctx context.Context, cmd command.Command) error
}

// parseOptionalLimit accepts an empty value as "use the default".
func parseOptionalLimit(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
