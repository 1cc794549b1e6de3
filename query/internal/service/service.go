package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/telhawk-systems/telhawk-sentinel/common/database"
	"github.com/telhawk-systems/telhawk-sentinel/common/eventstore"
	"github.com/telhawk-systems/telhawk-sentinel/common/models"
	"github.com/telhawk-systems/telhawk-sentinel/common/reconnect"
	"github.com/telhawk-systems/telhawk-sentinel/query/internal/metrics"
)

// LatestLimit is the number of events GET /events returns at most.
const LatestLimit = 20

var (
	// ErrStoreConnection means no live store handle could be obtained.
	ErrStoreConnection = errors.New("store connection failed")
	// ErrQueryFailed means the store was reachable but the read failed.
	ErrQueryFailed = errors.New("failed to query events")
)

// QueryService reads events from the store. It never writes.
type QueryService struct {
	store  *reconnect.Dependency[eventstore.Store]
	logger *slog.Logger
}

func NewQueryService(store *reconnect.Dependency[eventstore.Store], logger *slog.Logger) *QueryService {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryService{store: store, logger: logger}
}

// LatestEvents returns up to LatestLimit events, newest first. Any failure
// fails the whole call; partial lists are never returned.
func (s *QueryService) LatestEvents(ctx context.Context) ([]models.StoredEvent, error) {
	store, err := s.store.Get(ctx)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("connection").Inc()
		return nil, fmt.Errorf("%w: %v", ErrStoreConnection, err)
	}

	qctx, cancel := database.QueryContext(ctx)
	defer cancel()

	start := time.Now()
	events, err := store.Latest(qctx, LatestLimit)
	metrics.QueryDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		reason := "query"
		if errors.Is(err, eventstore.ErrMalformedRow) {
			reason = "malformed_row"
		}
		metrics.StoreErrors.WithLabelValues(reason).Inc()
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.After(events[j].Timestamp)
	})
	if len(events) > LatestLimit {
		events = events[:LatestLimit]
	}
	metrics.EventsReturned.Observe(float64(len(events)))
	return events, nil
}

// Ready pings the store, reconnecting if needed.
func (s *QueryService) Ready(ctx context.Context) error {
	if _, err := s.store.Get(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreConnection, err)
	}
	return nil
}
