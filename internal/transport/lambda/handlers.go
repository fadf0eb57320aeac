// Package lambdahandler adapts the readings, command and scheduler operations
// to AWS Lambda events. Query parameter and body names follow the deployed
// API Gateway contract (thingId, limit, exclusiveStartKey).
package lambdahandler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"github.com/smartfarm/irrigation/internal/command"
	"github.com/smartfarm/irrigation/internal/cursor"
	"github.com/smartfarm/irrigation/internal/domain"
	"github.com/smartfarm/irrigation/internal/scheduler"
	"github.com/smartfarm/irrigation/internal/service"
)

// ReadingLister is satisfied by *service.ReadingService.
type ReadingLister interface {
	ListReadingsPage(ctx context.Context, req service.PageRequest) (service.Page, error)
}

// CommandSender is satisfied by *command.Service.
type CommandSender interface {
	Send(ctx context.Context, cmd command.Command) error
}

// Ticker is satisfied by *scheduler.Scheduler.
type Ticker interface {
	RunAt(ctx context.Context, now time.Time) (scheduler.Summary, error)
}

type Handlers struct {
	Readings  ReadingLister
	Commands  CommandSender
	Scheduler Ticker
}

type itemJSON struct {
	ThingID   string            `json:"thingId"`
	Timestamp int64             `json:"timestamp"`
	Readings  map[string]string `json:"readings"`
}

type readingsBodyJSON struct {
	Items             []itemJSON `json:"items"`
	ExclusiveStartKey string     `json:"exclusiveStartKey,omitempty"`
}

type errorJSON struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

// GetReadings answers GET requests with one page of readings, newest first.
func (h *Handlers) GetReadings(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	reqID := req.RequestContext.RequestID
	params := req.QueryStringParameters

	limit := 0
	if v := params["limit"]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errorResponse(http.StatusBadRequest, "invalid_argument", "limit must be an integer", reqID), nil
		}
		limit = n
	}

	page, err := h.Readings.ListReadingsPage(ctx, service.PageRequest{
		PartitionKey: params["thingId"],
		Limit:        limit,
		Cursor:       params["exclusiveStartKey"],
	})
	switch {
	case err == nil:
	case errors.Is(err, service.ErrInvalidRequest):
		return errorResponse(http.StatusBadRequest, "invalid_argument", err.Error(), reqID), nil
	case errors.Is(err, service.ErrMalformedCursor):
		return errorResponse(http.StatusBadRequest, "malformed_cursor", err.Error(), reqID), nil
	case errors.Is(err, service.ErrUpstreamQuery):
		log.Printf("readings: %v req_id=%s", err, reqID)
		return errorResponse(http.StatusBadGateway, "upstream_error", "upstream query failed", reqID), nil
	default:
		log.Printf("readings: unexpected error: %v req_id=%s", err, reqID)
		return errorResponse(http.StatusInternalServerError, "internal_error", "internal error", reqID), nil
	}

	body := readingsBodyJSON{
		Items:             make([]itemJSON, 0, len(page.Items)),
		ExclusiveStartKey: page.NextCursor,
	}
	for _, it := range page.Items {
		body.Items = append(body.Items, toItemJSON(it))
	}
	log.Printf("readings: thingId=%s items=%d more=%t", params["thingId"], len(page.Items), page.NextCursor != "")
	return jsonResponse(http.StatusOK, body), nil
}

// SendCommand publishes the request body as a valve command.
func (h *Handlers) SendCommand(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	reqID := req.RequestContext.RequestID
	body := req.Body
	if body == "" {
		body = "{}"
	}

	cmd, err := command.Decode([]byte(body))
	if err != nil {
		if errors.Is(err, command.ErrInvalidCommand) {
			return errorResponse(http.StatusBadRequest, "invalid_argument", err.Error(), reqID), nil
		}
		return errorResponse(http.StatusBadRequest, "invalid_json", "request body is not valid JSON", reqID), nil
	}
	if err := h.Commands.Send(ctx, cmd); err != nil {
		log.Printf("command: %v req_id=%s", err, reqID)
		if errors.Is(err, command.ErrInvalidCommand) {
			return errorResponse(http.StatusBadRequest, "invalid_argument", err.Error(), reqID), nil
		}
		return errorResponse(http.StatusBadGateway, "publish_failed", "failed to send command", reqID), nil
	}
	return jsonResponse(http.StatusOK, map[string]string{"message": "command sent"}), nil
}

// RunSchedules is invoked by an EventBridge rule once a minute. The event's
// time is the scheduled minute; a zero time falls back to the clock.
func (h *Handlers) RunSchedules(ctx context.Context, ev events.CloudWatchEvent) (scheduler.Summary, error) {
	now := ev.Time
	if now.IsZero() {
		now = time.Now()
	}
	sum, err := h.Scheduler.RunAt(ctx, now)
	if err != nil {
		log.Printf("scheduler: %v", err)
		return sum, err
	}
	log.Printf("scheduler: %s %s due=%d executed=%d skipped=%d ignored=%d",
		sum.ScheduledTime, sum.Weekday, sum.Due, sum.Executed, sum.Skipped, sum.Ignored)
	return sum, nil
}

func toItemJSON(r domain.Reading) itemJSON {
	values := make(map[string]string, len(r.Values))
	for k, v := range r.Values {
		values[k] = cursor.NumberLiteral(v)
	}
	return itemJSON{ThingID: r.ThingID, Timestamp: r.Timestamp, Readings: values}
}

func jsonResponse(status int, v any) events.APIGatewayProxyResponse {
	b, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		b = []byte(`{"code":"internal_error","message":"internal error"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":                "application/json",
			"Access-Control-Allow-Origin": "*",
		},
		Body: string(b),
	}
}

func errorResponse(status int, code, message, reqID string) events.APIGatewayProxyResponse {
	return jsonResponse(status, errorJSON{Code: code, Message: message, RequestID: reqID})
}
