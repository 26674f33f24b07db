// Package dashboard composes the aggregate views of a snapshot into the
// panels the analytics front end renders.
package dashboard

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/near-miss-analytics/internal/config"
	"github.com/couchcryptid/near-miss-analytics/internal/domain"
	"github.com/couchcryptid/near-miss-analytics/internal/store"
)

// Panel is one categorical chart.
type Panel struct {
	Key     string          `json:"key"`
	Title   string          `json:"title"`
	Field   string          `json:"field"`
	Limit   int             `json:"limit"`
	Buckets []domain.Bucket `json:"data"`
}

// Dashboard is every view of one snapshot.
type Dashboard struct {
	SnapshotID  string                `json:"snapshot_id"`
	Source      string                `json:"source"`
	GeneratedAt time.Time             `json:"generated_at"`
	Total       int                   `json:"total"`
	Panels      []Panel               `json:"panels"`
	Severity    []domain.Bucket       `json:"severity"`
	Monthly     []domain.MonthlyPoint `json:"monthly"`
	Yearly      []domain.YearlyPoint  `json:"yearly"`
}

// Panel returns the panel with the given key.
func (d Dashboard) Panel(key string) (Panel, bool) {
	for _, p := range d.Panels {
		if p.Key == key {
			return p, true
		}
	}
	return Panel{}, false
}

// Builder renders dashboards for a fixed set of views.
type Builder struct {
	views []config.View
	clock clockwork.Clock
}

// NewBuilder creates a Builder. Pass a nil clock to use real time.
func NewBuilder(views []config.View, clock clockwork.Clock) *Builder {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Builder{views: views, clock: clock}
}

// Build computes every view over the snapshot's records.
func (b *Builder) Build(snap store.Snapshot) Dashboard {
	panels := make([]Panel, 0, len(b.views))
	for _, v := range b.views {
		panels = append(panels, Panel{
			Key:     v.Key,
			Title:   v.Title,
			Field:   v.Field,
			Limit:   effectiveLimit(v.Limit),
			Buckets: domain.AggregateBy(snap.Records, v.Field, v.Limit),
		})
	}

	return Dashboard{
		SnapshotID:  snap.ID,
		Source:      snap.Source,
		GeneratedAt: b.clock.Now().UTC(),
		Total:       len(snap.Records),
		Panels:      panels,
		Severity:    domain.SeverityDistribution(snap.Records),
		Monthly:     domain.MonthlyTrend(snap.Records),
		Yearly:      domain.YearlyTrend(snap.Records),
	}
}

func effectiveLimit(limit int) int {
	if limit <= 0 {
		return domain.DefaultLimit
	}
	return limit
}
