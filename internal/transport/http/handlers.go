package httpserver

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io"
	"log"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/smartfarm/irrigation/internal/command"
	grpcserver "github.com/smartfarm/irrigation/internal/transport/grpc"
)

const maxCommandBody = 1 << 16

type Options struct {
	// AllowedOrigins feeds the CORS middleware; empty means "*".
	AllowedOrigins []string
	// UpstreamTimeout bounds each ReadingService call.
	UpstreamTimeout time.Duration
}

type Server struct {
	client   ReadingsClient
	commands CommandSender
	timeout  time.Duration
	mux      *http.ServeMux
	handler  http.Handler
}

// New builds the gateway. commands may be nil, in which case /api/commands
// is not served.
func New(client ReadingsClient, commands CommandSender, opts Options) *Server {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	timeout := opts.UpstreamTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	s := &Server{
		client:   client,
		commands: commands,
		timeout:  timeout,
		mux:      http.NewServeMux(),
	}
	s.routes()
	s.handler = cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		ExposedHeaders: []string{"X-Request-Id"},
	}).Handler(s.mux)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	reqID := newRequestID()

	w.Header().Set("X-Request-Id", reqID)
	rr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	defer func() {
		if rec := recover(); rec != nil {
			rr.status = http.StatusInternalServerError

			// Best-effort response. If headers/body were already written, we can
			// only log.
			if !rr.wroteHeader {
				if strings.HasPrefix(r.URL.Path, "/api") {
					writeAPIError(rr, http.StatusInternalServerError, "internal_error", "internal error")
				} else {
					http.Error(rr, "internal error", http.StatusInternalServerError)
				}
			}

			log.Printf("panic handling %s %s req_id=%s: %v\n%s",
				r.Method, r.URL.Path, reqID, rec, debug.Stack(),
			)
		}

		dur := time.Since(start)
		observeHTTPRequest(r, rr.status, dur)

		// Keep health checks + metrics endpoint quiet.
		if r.URL.Path != "/healthz" && r.URL.Path != "/metrics" {
			log.Printf("%s %s -> %d (%s) req_id=%s",
				r.Method, r.URL.Path, rr.status, dur.Truncate(time.Millisecond), reqID,
			)
		}
	}()

	s.handler.ServeHTTP(rr, r)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/readings", s.handleListReadings)
	if s.commands != nil {
		s.mux.HandleFunc("/api/commands", s.handleSendCommand)
	}
	s.mux.HandleFunc("/healthz", s.handleHealthz)
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/", s.handleNotFound)
}

// handleListReadings returns one page of a device's readings, newest first.
// Query params: thingId (required), limit, cursor.
func (s *Server) handleListReadings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeAPIError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	q := r.URL.Query()
	limit, err := parseOptionalLimit(q.Get("limit"))
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid_argument", "limit must be an integer")
		return
	}
	req := grpcserver.ListReadingsRequest{
		ThingID: q.Get("thingId"),
		Limit:   limit,
		Cursor:  q.Get("cursor"),
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	grpcStart := time.Now()
	resp, err := s.client.ListReadings(ctx, req)
	grpcDur := time.Since(grpcStart)
	if err != nil {
		st, _ := status.FromError(err)
		observeUpstreamGRPC("ListReadings", st.Code().String(), grpcDur)
		writeUpstreamError(w, err)
		return
	}
	observeUpstreamGRPC("ListReadings", codes.OK.String(), grpcDur)
	observePage(len(resp.Items))

	out := make([]readingJSON, 0, len(resp.Items))
	for _, it := range resp.Items {
		out = append(out, toReadingJSON(it))
	}
	_ = writeJSON(w, http.StatusOK, listReadingsResponseJSON{
		Items:      out,
		NextCursor: resp.NextCursor,
	})
}

func writeUpstreamError(w http.ResponseWriter, err error) {
	switch grpcserver.Reason(err) {
	case grpcserver.ReasonInvalidRequest:
		writeAPIError(w, http.StatusBadRequest, "invalid_argument", status.Convert(err).Message())
		return
	case grpcserver.ReasonMalformedCursor:
		writeAPIError(w, http.StatusBadRequest, "malformed_cursor", status.Convert(err).Message())
		return
	case grpcserver.ReasonUpstreamQuery:
		writeAPIError(w, http.StatusBadGateway, "upstream_error", "upstream query failed")
		return
	}

	switch status.Code(err) {
	case codes.InvalidArgument:
		writeAPIError(w, http.StatusBadRequest, "invalid_argument", status.Convert(err).Message())
	case codes.DeadlineExceeded:
		writeAPIError(w, http.StatusGatewayTimeout, "upstream_timeout", "upstream timeout")
	case codes.Internal:
		writeAPIError(w, http.StatusInternalServerError, "internal_error", "internal error")
	default:
		writeAPIError(w, http.StatusBadGateway, "upstream_error", "upstream error")
	}
}

// handleSendCommand publishes {"command": ..., "duration_seconds": ...} to the
// device control topic.
func (s *Server) handleSendCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeAPIError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxCommandBody))
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid_json", "could not read body")
		return
	}
	cmd, err := command.Decode(body)
	if err != nil {
		if errors.Is(err, command.ErrInvalidCommand) {
			writeAPIError(w, http.StatusBadRequest, "invalid_argument", err.Error())
			return
		}
		writeAPIError(w, http.StatusBadRequest, "invalid_json", "invalid JSON body")
		return
	}

	if err := s.commands.Send(r.Context(), cmd); err != nil {
		if errors.Is(err, command.ErrInvalidCommand) {
			writeAPIError(w, http.StatusBadRequest, "invalid_argument", err.Error())
			return
		}
		log.Printf("send command %q: %v", cmd.Name, err)
		writeAPIError(w, http.StatusBadGateway, "publish_failed", "failed to send command")
		return
	}
	_ = writeJSON(w, http.StatusOK, messageJSON{Message: "command sent"})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	// Keep API errors JSON.
	if strings.HasPrefix(r.URL.Path, "/api") {
		writeAPIError(w, http.StatusNotFound, "not_found", "not found")
		return
	}
	http.NotFound(w, r)
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.wroteHeader = true
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(p []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	return r.ResponseWriter.Write(p)
}

func newRequestID() string {
	var b [6]byte // 12 hex chars
	if _, err := rand.Read(b[:]); err != nil {
		return "000000000000"
	}
	return hex.EncodeToString(b[:])
}

func writeAPIError(w http.ResponseWriter, status int, code, message string) {
	reqID := w.Header().Get("X-Request-Id")
	_ = writeJSON(w, status, apiErrorJSON{
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}
