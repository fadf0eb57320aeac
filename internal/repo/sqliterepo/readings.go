package sqliterepo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/smartfarm/irrigation/internal/cursor"
	"github.com/smartfarm/irrigation/internal/domain"
	"github.com/smartfarm/irrigation/internal/repo"
)

var _ repo.ReadingRepository = (*Store)(nil)

// QueryRange reads limit+1 rows below the start key so truncation is known
// exactly; the extra row is never returned.
func (s *Store) QueryRange(ctx context.Context, q repo.RangeQuery) (repo.RangeResult, error) {
	if q.Limit <= 0 {
		return repo.RangeResult{}, fmt.Errorf("limit must be positive, got %d", q.Limit)
	}
	start, bounded, err := repo.StartSortKey(q, s.schema)
	if err != nil {
		return repo.RangeResult{}, err
	}

	query := `SELECT thing_id, ts, vals FROM readings WHERE thing_id = ?`
	args := []any{q.PartitionKey}
	if bounded {
		query += ` AND ts < ?`
		args = append(args, start)
	}
	query += ` ORDER BY ts DESC LIMIT ?`
	args = append(args, q.Limit+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return repo.RangeResult{}, fmt.Errorf("query readings: %w", err)
	}
	defer rows.Close()

	items := make([]domain.Reading, 0, q.Limit)
	more := false
	for rows.Next() {
		if len(items) == q.Limit {
			more = true
			break
		}
		var (
			r    domain.Reading
			vals string
		)
		if err := rows.Scan(&r.ThingID, &r.Timestamp, &vals); err != nil {
			return repo.RangeResult{}, fmt.Errorf("scan reading: %w", err)
		}
		if r.Values, err = decodeValues(vals); err != nil {
			return repo.RangeResult{}, fmt.Errorf("reading %s@%d: %w", r.ThingID, r.Timestamp, err)
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return repo.RangeResult{}, fmt.Errorf("iterate readings: %w", err)
	}

	var last cursor.Marker
	if more {
		tail := items[len(items)-1]
		last = s.schema.Position(tail.ThingID, tail.Timestamp)
	}
	return repo.RangeResult{Items: items, LastKey: last}, nil
}

// PutReadings inserts or replaces readings in a single transaction.
func (s *Store) PutReadings(ctx context.Context, readings []domain.Reading) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO readings (thing_id, ts, vals) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range readings {
		vals, err := encodeValues(r.Values)
		if err != nil {
			return fmt.Errorf("reading %s@%d: %w", r.ThingID, r.Timestamp, err)
		}
		if _, err := stmt.ExecContext(ctx, r.ThingID, r.Timestamp, vals); err != nil {
			return fmt.Errorf("insert reading %s@%d: %w", r.ThingID, r.Timestamp, err)
		}
	}
	return tx.Commit()
}

// Values are stored as decimal literals so trailing zeros survive.
func encodeValues(values map[string]decimal.Decimal) (string, error) {
	raw := make(map[string]string, len(values))
	for k, v := range values {
		raw[k] = cursor.NumberLiteral(v)
	}
	b, err := json.Marshal(raw)
	return string(b), err
}

func decodeValues(s string) (map[string]decimal.Decimal, error) {
	var raw map[string]string
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, fmt.Errorf("decode values: %w", err)
	}
	out := make(map[string]decimal.Decimal, len(raw))
	for k, v := range raw {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("value %s=%q: %w", k, v, err)
		}
		out[k] = d
	}
	return out, nil
}
