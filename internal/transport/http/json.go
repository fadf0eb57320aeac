package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/smartfarm/irrigation/internal/cursor"
	"github.com/smartfarm/irrigation/internal/domain"
)

// readingJSON writes decimals as strings so 12.3450 stays 12.3450.
type readingJSON struct {
	ThingID   string            `json:"thingId"`
	Timestamp int64             `json:"timestamp"`
	Values    map[string]string `json:"values"`
}

type listReadingsResponseJSON struct {
	Items      []readingJSON `json:"items"`
	NextCursor string        `json:"nextCursor,omitempty"`
}

type messageJSON struct {
	Message string `json:"message"`
}

type apiErrorJSON struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

func toReadingJSON(r domain.Reading) readingJSON {
	values := make(map[string]string, len(r.Values))
	for k, v := range r.Values {
		values[k] = cursor.NumberLiteral(v)
	}
	return readingJSON{ThingID: r.ThingID, Timestamp: r.Timestamp, Values: values}
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}
