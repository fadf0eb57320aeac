package influxrepo

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// buildRangeQuery returns a Flux query for the newest n points of one
// partition strictly before stop (range stop is exclusive).
func buildRangeQuery(bucket, measurement, tag, partition string, stop *time.Time, n int) string {
	rangeClause := "|> range(start: 0)"
	if stop != nil {
		rangeClause = fmt.Sprintf("|> range(start: 0, stop: %s)", stop.UTC().Format(time.RFC3339Nano))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "from(bucket: %s)\n", strconv.Quote(bucket))
	fmt.Fprintf(&b, "\t%s\n", rangeClause)
	fmt.Fprintf(&b, "\t|> filter(fn: (r) => r[\"_measurement\"] == %s)\n", strconv.Quote(measurement))
	fmt.Fprintf(&b, "\t|> filter(fn: (r) => r[%s] == %s)\n", strconv.Quote(tag), strconv.Quote(partition))
	b.WriteString("\t|> pivot(rowKey: [\"_time\"], columnKey: [\"_field\"], valueColumn: \"_value\")\n")
	b.WriteString("\t|> group()\n")
	b.WriteString("\t|> sort(columns: [\"_time\"], desc: true)\n")
	fmt.Fprintf(&b, "\t|> limit(n: %d)\n", n)
	return b.String()
}
