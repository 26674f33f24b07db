package dashboard

import (
	"errors"
	"fmt"
	"slices"

	"github.com/couchcryptid/near-miss-analytics/internal/domain"
	"github.com/couchcryptid/near-miss-analytics/internal/observability"
	"github.com/couchcryptid/near-miss-analytics/internal/store"
)

// ErrUnknownField is returned when a view names a field incidents do not have.
var ErrUnknownField = errors.New("unknown incident field")

// SnapshotSource provides the current snapshot.
type SnapshotSource interface {
	Current() store.Snapshot
}

// Service answers view queries against the current snapshot.
type Service struct {
	source  SnapshotSource
	builder *Builder
	cache   *lruCache
	metrics *observability.Metrics
}

// NewService creates a Service caching up to cacheSize categorical results.
func NewService(source SnapshotSource, builder *Builder, cacheSize int, metrics *observability.Metrics) *Service {
	return &Service{
		source:  source,
		builder: builder,
		cache:   newLRUCache(cacheSize),
		metrics: metrics,
	}
}

// Snapshot returns the metadata of the current snapshot.
func (s *Service) Snapshot() store.Snapshot {
	return s.source.Current()
}

// Dashboard builds every configured view.
func (s *Service) Dashboard() Dashboard {
	s.metrics.ViewRequests.WithLabelValues("dashboard").Inc()
	return s.builder.Build(s.source.Current())
}

// Aggregate returns the top limit values of field. Results are cached per
// snapshot, so a reload or streamed batch invalidates them.
func (s *Service) Aggregate(field string, limit int) ([]domain.Bucket, error) {
	s.metrics.ViewRequests.WithLabelValues("aggregate").Inc()
	if !slices.Contains(domain.Fields, field) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	if limit <= 0 {
		limit = domain.DefaultLimit
	}

	snap := s.source.Current()
	key := fmt.Sprintf("%s|%s|%d", snap.ID, field, limit)
	if buckets, ok := s.cache.get(key); ok {
		s.metrics.ViewCache.WithLabelValues("hit").Inc()
		return buckets, nil
	}
	s.metrics.ViewCache.WithLabelValues("miss").Inc()

	buckets := domain.AggregateBy(snap.Records, field, limit)
	s.cache.put(key, buckets)
	return buckets, nil
}

// Severity returns the severity distribution.
func (s *Service) Severity() []domain.Bucket {
	s.metrics.ViewRequests.WithLabelValues("severity").Inc()
	return domain.SeverityDistribution(s.source.Current().Records)
}

// Monthly returns the monthly trend.
func (s *Service) Monthly() []domain.MonthlyPoint {
	s.metrics.ViewRequests.WithLabelValues("monthly").Inc()
	return domain.MonthlyTrend(s.source.Current().Records)
}

// Yearly returns the year-over-year trend.
func (s *Service) Yearly() []domain.YearlyPoint {
	s.metrics.ViewRequests.WithLabelValues("yearly").Inc()
	return domain.YearlyTrend(s.source.Current().Records)
}
