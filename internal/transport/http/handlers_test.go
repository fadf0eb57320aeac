package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/smartfarm/irrigation/internal/command"
	"github.com/smartfarm/irrigation/internal/domain"
	grpcserver "github.com/smartfarm/irrigation/internal/transport/grpc"
)

type fakeClient struct {
	resp grpcserver.ListReadingsResponse
	err  error
	req  grpcserver.ListReadingsRequest
}

func (f *fakeClient) ListReadings(_ context.Context, in grpcserver.ListReadingsRequest, _ ...grpc.CallOption) (grpcserver.ListReadingsResponse, error) {
	f.req = in
	return f.resp, f.err
}

type fakeCommands struct {
	got []command.Command
	err error
}

func (f *fakeCommands) Send(_ context.Context, cmd command.Command) error {
	f.got = append(f.got, cmd)
	return f.err
}

func reasonErr(code codes.Code, reason string) error {
	st, _ := status.New(code, "detail").WithDetails(&errdetails.ErrorInfo{Reason: reason})
	return st.Err()
}

func serve(srv *Server, method, target, body string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	srv.ServeHTTP(rr, req)
	return rr
}

func decodeAPIError(t *testing.T, rr *httptest.ResponseRecorder) apiErrorJSON {
	t.Helper()
	var e apiErrorJSON
	if err := json.Unmarshal(rr.Body.Bytes(), &e); err != nil {
		t.Fatalf("unmarshal error body: %v (body=%s)", err, rr.Body.String())
	}
	return e
}

func TestHTTP_ListReadings_OK_PassesQueryAndKeepsDecimals(t *testing.T) {
	t.Parallel()

	v, _ := decimal.NewFromString("12.3450")
	fc := &fakeClient{resp: grpcserver.ListReadingsResponse{
		Items: []domain.Reading{
			{ThingID: "device-1", Timestamp: 2, Values: map[string]decimal.Decimal{"temperature": v}},
			{ThingID: "device-1", Timestamp: 1, Values: map[string]decimal.Decimal{}},
		},
		NextCursor: "abc",
	}}
	srv := New(fc, nil, Options{})

	rr := serve(srv, http.MethodGet, "/api/readings?thingId=device-1&limit=2&cursor=xyz", "")
	if got, want := rr.Code, http.StatusOK; got != want {
		t.Fatalf("status=%d want %d, body=%s", got, want, rr.Body.String())
	}
	if fc.req.ThingID != "device-1" || fc.req.Limit != 2 || fc.req.Cursor != "xyz" {
		t.Fatalf("unexpected upstream request: %+v", fc.req)
	}

	var got listReadingsResponseJSON
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got.Items) != 2 || got.Items[0].Timestamp != 2 || got.Items[1].Timestamp != 1 {
		t.Fatalf("unexpected items: %#v", got.Items)
	}
	if got.Items[0].Values["temperature"] != "12.3450" {
		t.Fatalf("temperature=%q want 12.3450", got.Items[0].Values["temperature"])
	}
	if got.NextCursor != "abc" {
		t.Fatalf("nextCursor=%q want abc", got.NextCursor)
	}
	if !strings.Contains(rr.Body.String(), `"temperature":"12.3450"`) {
		t.Fatalf("decimal not written as string: %s", rr.Body.String())
	}
}

func TestHTTP_ListReadings_OmitsCursorWhenExhausted(t *testing.T) {
	t.Parallel()

	srv := New(&fakeClient{}, nil, Options{})
	rr := serve(srv, http.MethodGet, "/api/readings?thingId=device-1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "nextCursor") {
		t.Fatalf("expected no nextCursor, body=%s", rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `"items":[]`) {
		t.Fatalf("expected empty items array, body=%s", rr.Body.String())
	}
}

func TestHTTP_ListReadings_InvalidLimit(t *testing.T) {
	t.Parallel()

	fc := &fakeClient{}
	srv := New(fc, nil, Options{})
	rr := serve(srv, http.MethodGet, "/api/readings?thingId=d&limit=ten", "")

	if got, want := rr.Code, http.StatusBadRequest; got != want {
		t.Fatalf("status=%d want %d", got, want)
	}
	if e := decodeAPIError(t, rr); e.Code != "invalid_argument" || e.RequestID == "" {
		t.Fatalf("unexpected error body: %+v", e)
	}
}

func TestHTTP_ListReadings_MapsUpstreamErrors(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"invalid request", reasonErr(codes.InvalidArgument, grpcserver.ReasonInvalidRequest), http.StatusBadRequest, "invalid_argument"},
		{"malformed cursor", reasonErr(codes.InvalidArgument, grpcserver.ReasonMalformedCursor), http.StatusBadRequest, "malformed_cursor"},
		{"upstream query", reasonErr(codes.Unavailable, grpcserver.ReasonUpstreamQuery), http.StatusBadGateway, "upstream_error"},
		{"bare invalid argument", status.Error(codes.InvalidArgument, "bad"), http.StatusBadRequest, "invalid_argument"},
		{"deadline", status.Error(codes.DeadlineExceeded, "slow"), http.StatusGatewayTimeout, "upstream_timeout"},
		{"internal", status.Error(codes.Internal, "boom"), http.StatusInternalServerError, "internal_error"},
		{"connection", status.Error(codes.Unavailable, "connection refused"), http.StatusBadGateway, "upstream_error"},
		{"non-status", errors.New("oops"), http.StatusBadGateway, "upstream_error"},
	} {
		srv := New(&fakeClient{err: tc.err}, nil, Options{})
		rr := serve(srv, http.MethodGet, "/api/readings?thingId=d", "")
		if rr.Code != tc.status {
			t.Fatalf("%s: status=%d want %d", tc.name, rr.Code, tc.status)
		}
		if e := decodeAPIError(t, rr); e.Code != tc.code {
			t.Fatalf("%s: code=%q want %q", tc.name, e.Code, tc.code)
		}
	}
}

func TestHTTP_ListReadings_MethodNotAllowed(t *testing.T) {
	t.Parallel()

	rr := serve(New(&fakeClient{}, nil, Options{}), http.MethodPost, "/api/readings", "")
	if got, want := rr.Code, http.StatusMethodNotAllowed; got != want {
		t.Fatalf("status=%d want %d", got, want)
	}
	if rr.Header().Get("Allow") != http.MethodGet {
		t.Fatalf("Allow=%q", rr.Header().Get("Allow"))
	}
}

func TestHTTP_SendCommand(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name    string
		body    string
		sendErr error
		status  int
		code    string
	}{
		{"ok", `{"command":"open_valve","duration_seconds":600}`, nil, http.StatusOK, ""},
		{"bad json", `{"command":`, nil, http.StatusBadRequest, "invalid_json"},
		{"missing duration", `{"command":"open_valve"}`, nil, http.StatusBadRequest, "invalid_argument"},
		{"fractional duration", `{"command":"open_valve","duration_seconds":1.5}`, nil, http.StatusBadRequest, "invalid_argument"},
		{"broker down", `{"command":"open_valve","duration_seconds":10}`, command.ErrPublish, http.StatusBadGateway, "publish_failed"},
	} {
		fc := &fakeCommands{err: tc.sendErr}
		rr := serve(New(&fakeClient{}, fc, Options{}), http.MethodPost, "/api/commands", tc.body)
		if rr.Code != tc.status {
			t.Fatalf("%s: status=%d want %d (body=%s)", tc.name, rr.Code, tc.status, rr.Body.String())
		}
		if tc.code != "" {
			if e := decodeAPIError(t, rr); e.Code != tc.code {
				t.Fatalf("%s: code=%q want %q", tc.name, e.Code, tc.code)
			}
			continue
		}
		var m messageJSON
		if err := json.Unmarshal(rr.Body.Bytes(), &m); err != nil || m.Message != "command sent" {
			t.Fatalf("%s: body=%s err=%v", tc.name, rr.Body.String(), err)
		}
		if len(fc.got) != 1 || fc.got[0].DurationSeconds != 600 {
			t.Fatalf("%s: sent %+v", tc.name, fc.got)
		}
	}
}

func TestHTTP_CommandsDisabledWithoutSender(t *testing.T) {
	t.Parallel()

	rr := serve(New(&fakeClient{}, nil, Options{}), http.MethodPost, "/api/commands", `{}`)
	if got, want := rr.Code, http.StatusNotFound; got != want {
		t.Fatalf("status=%d want %d", got, want)
	}
}

func TestHTTP_CORSPreflight(t *testing.T) {
	t.Parallel()

	srv := New(&fakeClient{}, &fakeCommands{}, Options{AllowedOrigins: []string{"https://farm.example"}})
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/commands", nil)
	req.Header.Set("Origin", "https://farm.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	srv.ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://farm.example" {
		t.Fatalf("Access-Control-Allow-Origin=%q", got)
	}
}

func TestHTTP_Healthz(t *testing.T) {
	t.Parallel()

	rr := serve(New(&fakeClient{}, nil, Options{}), http.MethodGet, "/healthz", "")
	if got, want := rr.Code, http.StatusOK; got != want {
		t.Fatalf("status=%d want %d", got, want)
	}
	if rr.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header")
	}
}

func TestHTTP_UnknownAPIPathIsJSON(t *testing.T) {
	t.Parallel()

	rr := serve(New(&fakeClient{}, nil, Options{}), http.MethodGet, "/api/nope", "")
	if got, want := rr.Code, http.StatusNotFound; got != want {
		t.Fatalf("status=%d want %d", got, want)
	}
	if e := decodeAPIError(t, rr); e.Code != "not_found" {
		t.Fatalf("code=%q", e.Code)
	}
}
