package csvrepo

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/smartfarm/irrigation/internal/cursor"
	"github.com/smartfarm/irrigation/internal/domain"
	"github.com/smartfarm/irrigation/internal/repo"
)

var _ repo.ReadingRepository = (*Repo)(nil)

// Repo is an in-memory repository, optionally loaded from a CSV file at startup.
// It is read-only after construction.
type Repo struct {
	schema     cursor.KeySchema
	partitions map[string][]domain.Reading // each sorted ascending by Timestamp
}

func NewFromFile(path string) (*Repo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv %q: %w", path, err)
	}
	defer f.Close()

	readings, parseErr := ParseReadingsCSV(f)
	if len(readings) == 0 && parseErr != nil {
		return nil, fmt.Errorf("parse csv %q: %w", path, parseErr)
	}

	// Parsing can be partially successful; surface warnings to the caller.
	if parseErr != nil {
		return New(readings), fmt.Errorf("parse csv %q: %w", path, parseErr)
	}
	return New(readings), nil
}

func New(readings []domain.Reading) *Repo {
	r := &Repo{
		schema:     cursor.DefaultKeySchema,
		partitions: make(map[string][]domain.Reading),
	}
	for _, rd := range readings {
		r.partitions[rd.ThingID] = append(r.partitions[rd.ThingID], rd)
	}
	for _, p := range r.partitions {
		sort.SliceStable(p, func(i, j int) bool { return p[i].Timestamp < p[j].Timestamp })
	}
	return r
}

func (r *Repo) QueryRange(ctx context.Context, q repo.RangeQuery) (repo.RangeResult, error) {
	if err := ctx.Err(); err != nil {
		return repo.RangeResult{}, err
	}
	if q.Limit <= 0 {
		return repo.RangeResult{}, fmt.Errorf("limit must be positive, got %d", q.Limit)
	}
	start, bounded, err := repo.StartSortKey(q, r.schema)
	if err != nil {
		return repo.RangeResult{}, err
	}

	p := r.partitions[q.PartitionKey]
	end := len(p)
	if bounded {
		end = sort.Search(len(p), func(i int) bool { return p[i].Timestamp >= start })
	}

	out := make([]domain.Reading, 0, min(q.Limit, end))
	for i := end - 1; i >= 0 && len(out) < q.Limit; i-- {
		out = append(out, p[i])
	}

	var last cursor.Marker
	if end-len(out) > 0 {
		tail := out[len(out)-1]
		last = r.schema.Position(tail.ThingID, tail.Timestamp)
	}
	return repo.RangeResult{Items: out, LastKey: last}, nil
}
