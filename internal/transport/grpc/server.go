package grpcserver

import (
	"context"
	"errors"
	"log"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/smartfarm/irrigation/internal/service"
)

// ErrorInfo reasons attached to non-OK statuses.
const (
	ReasonInvalidRequest  = "INVALID_REQUEST"
	ReasonMalformedCursor = "MALFORMED_CURSOR"
	ReasonUpstreamQuery   = "UPSTREAM_QUERY_FAILURE"

	errorDomain = "irrigation.smartfarm"
)

type Server struct {
	svc *service.ReadingService
}

func New(svc *service.ReadingService) *Server {
	return &Server{svc: svc}
}

func (s *Server) ListReadings(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if in == nil {
		return nil, statusWithReason(codes.InvalidArgument, ReasonInvalidRequest, "request is required")
	}
	req, err := requestFromStruct(in)
	if err != nil {
		return nil, statusWithReason(codes.InvalidArgument, ReasonInvalidRequest, err.Error())
	}

	page, err := s.svc.ListReadingsPage(ctx, service.PageRequest{
		PartitionKey: req.ThingID,
		Limit:        req.Limit,
		Cursor:       req.Cursor,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return ListReadingsResponse{Items: page.Items, NextCursor: page.NextCursor}.toStruct(), nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		return statusWithReason(codes.InvalidArgument, ReasonInvalidRequest, err.Error())
	case errors.Is(err, service.ErrMalformedCursor):
		return statusWithReason(codes.InvalidArgument, ReasonMalformedCursor, err.Error())
	case errors.Is(err, service.ErrUpstreamQuery):
		log.Printf("ListReadings: %v", err)
		return statusWithReason(codes.Unavailable, ReasonUpstreamQuery, "upstream query failed")
	}
	log.Printf("ListReadings: unexpected error: %v", err)
	return status.Error(codes.Internal, "internal error")
}

func statusWithReason(code codes.Code, reason, msg string) error {
	st := status.New(code, msg)
	if withInfo, err := st.WithDetails(&errdetails.ErrorInfo{Reason: reason, Domain: errorDomain}); err == nil {
		st = withInfo
	}
	return st.Err()
}

// Reason returns the ErrorInfo reason carried by a status error, or "".
func Reason(err error) string {
	st, ok := status.FromError(err)
	if !ok {
		return ""
	}
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok {
			return info.GetReason()
		}
	}
	return ""
}
