package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/smartfarm/irrigation/internal/cursor"
	"github.com/smartfarm/irrigation/internal/domain"
	"github.com/smartfarm/irrigation/internal/repo"
)

var (
	ErrInvalidRequest  = errors.New("invalid request")
	ErrMalformedCursor = errors.New("malformed cursor")
	ErrUpstreamQuery   = errors.New("upstream query failure")
)

const (
	DefaultPageSize = 50
	// MaxPageSize bounds the payload of a single page; larger limits are capped.
	MaxPageSize = 500
)

type PageRequest struct {
	PartitionKey string
	// Limit <= 0 means DefaultPageSize.
	Limit  int
	Cursor string
}

type Page struct {
	Items      []domain.Reading
	NextCursor string
}

// ReadingService pages through one device's readings, newest first.
type ReadingService struct {
	repo  repo.ReadingRepository
	codec *cursor.Codec
}

func NewReadingService(r repo.ReadingRepository) *ReadingService {
	return &ReadingService{repo: r, codec: cursor.NewCodec(cursor.DefaultKeySchema)}
}

func (s *ReadingService) ListReadingsPage(ctx context.Context, req PageRequest) (Page, error) {
	if req.PartitionKey == "" {
		return Page{}, fmt.Errorf("%w: thingId is required", ErrInvalidRequest)
	}
	limit, err := normalizeLimit(req.Limit)
	if err != nil {
		return Page{}, err
	}

	q := repo.RangeQuery{PartitionKey: req.PartitionKey, Limit: limit}
	if req.Cursor != "" {
		start, err := s.codec.Decode(req.Cursor)
		if err != nil {
			return Page{}, fmt.Errorf("%w: %w", ErrMalformedCursor, err)
		}
		q.StartAfter = start
		if _, _, err := repo.StartSortKey(q, s.codec.Schema); err != nil {
			return Page{}, fmt.Errorf("%w: %w", ErrMalformedCursor, err)
		}
	}

	res, err := s.repo.QueryRange(ctx, q)
	if err != nil {
		return Page{}, fmt.Errorf("%w: %w", ErrUpstreamQuery, err)
	}

	next, err := s.codec.Encode(res.LastKey)
	if err != nil {
		return Page{}, fmt.Errorf("%w: encode continuation: %w", ErrUpstreamQuery, err)
	}
	items := res.Items
	if items == nil {
		items = []domain.Reading{}
	}
	return Page{Items: items, NextCursor: next}, nil
}

// LatestReading returns the newest reading for thingID, or ok=false if the
// partition is empty.
func (s *ReadingService) LatestReading(ctx context.Context, thingID string) (domain.Reading, bool, error) {
	page, err := s.ListReadingsPage(ctx, PageRequest{PartitionKey: thingID, Limit: 1})
	if err != nil {
		return domain.Reading{}, false, err
	}
	if len(page.Items) == 0 {
		return domain.Reading{}, false, nil
	}
	return page.Items[0], true, nil
}

func normalizeLimit(limit int) (int, error) {
	switch {
	case limit < 0:
		return 0, fmt.Errorf("%w: limit must be a positive integer", ErrInvalidRequest)
	case limit == 0:
		return DefaultPageSize, nil
	case limit > MaxPageSize:
		return MaxPageSize, nil
	}
	return limit, nil
}
