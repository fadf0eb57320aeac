package influxrepo

import (
	"strings"
	"testing"
	"time"
)

func TestBuildRangeQuery_Unbounded(t *testing.T) {
	t.Parallel()

	q := buildRangeQuery("farm", "sensor_data", "thingId", "device-1", nil, 51)

	for _, want := range []string{
		`from(bucket: "farm")`,
		`|> range(start: 0)`,
		`r["thingId"] == "device-1"`,
		`sort(columns: ["_time"], desc: true)`,
		`limit(n: 51)`,
	} {
		if !strings.Contains(q, want) {
			t.Fatalf("query missing %q:\n%s", want, q)
		}
	}
}

func TestBuildRangeQuery_StopIsCursorTime(t *testing.T) {
	t.Parallel()

	stop := time.UnixMilli(1700000000123)
	q := buildRangeQuery("farm", "sensor_data", "thingId", "device-1", &stop, 2)

	if want := "|> range(start: 0, stop: 2023-11-14T22:13:20.123Z)"; !strings.Contains(q, want) {
		t.Fatalf("query missing %q:\n%s", want, q)
	}
}

func TestBuildRangeQuery_QuotesPartition(t *testing.T) {
	t.Parallel()

	q := buildRangeQuery("farm", "sensor_data", "thingId", `dev"ice`, nil, 2)
	if want := `== "dev\"ice"`; !strings.Contains(q, want) {
		t.Fatalf("query missing %q:\n%s", want, q)
	}
}
