package csvrepo

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/smartfarm/irrigation/internal/domain"
)

// ParseReadingsCSV parses readings from the provided CSV reader.
//
// Expected header: thingId,timestamp,<field>[,<field>...]
//
// Timestamps are integer sort keys. Every remaining column is a sensor value
// parsed as an exact decimal; empty cells are left out of the reading.
// Invalid rows are skipped and returned as a joined error (errors.Join).
func ParseReadingsCSV(r io.Reader) ([]domain.Reading, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // be permissive; validate ourselves
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) < 2 || !strings.EqualFold(strings.TrimSpace(header[0]), "thingId") || !strings.EqualFold(strings.TrimSpace(header[1]), "timestamp") {
		return nil, fmt.Errorf("unexpected header %q (want %q)", strings.Join(header, ","), "thingId,timestamp,...")
	}
	fields := make([]string, 0, len(header)-2)
	for _, h := range header[2:] {
		fields = append(fields, strings.TrimSpace(h))
	}

	var (
		readings []domain.Reading
		rowErrs  []error
		rowNum   = 1 // header
	)

	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		rowNum++
		if err != nil {
			rowErrs = append(rowErrs, fmt.Errorf("row %d: read: %w", rowNum, err))
			continue
		}
		if len(row) != len(header) {
			rowErrs = append(rowErrs, fmt.Errorf("row %d: expected %d columns, got %d", rowNum, len(header), len(row)))
			continue
		}

		thingID := strings.TrimSpace(row[0])
		if thingID == "" {
			rowErrs = append(rowErrs, fmt.Errorf("row %d: empty thingId", rowNum))
			continue
		}
		ts, err := strconv.ParseInt(strings.TrimSpace(row[1]), 10, 64)
		if err != nil {
			rowErrs = append(rowErrs, fmt.Errorf("row %d: parse timestamp %q: %w", rowNum, row[1], err))
			continue
		}

		values := make(map[string]decimal.Decimal, len(fields))
		var bad error
		for i, name := range fields {
			cell := strings.TrimSpace(row[i+2])
			if cell == "" {
				continue
			}
			d, err := decimal.NewFromString(cell)
			if err != nil {
				bad = fmt.Errorf("row %d: parse %s %q: %w", rowNum, name, cell, err)
				break
			}
			values[name] = d
		}
		if bad != nil {
			rowErrs = append(rowErrs, bad)
			continue
		}

		readings = append(readings, domain.Reading{
			ThingID:   thingID,
			Timestamp: ts,
			Values:    values,
		})
	}

	// Ensure we return stable, non-nil slice.
	if readings == nil {
		readings = []domain.Reading{}
	}
	return readings, errors.Join(rowErrs...)
}
