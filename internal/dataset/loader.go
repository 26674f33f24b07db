package dataset

import (
	"context"
	"log/slog"
	"time"

	"github.com/couchcryptid/near-miss-analytics/internal/observability"
)

// Source selects where Loader reads from. URL wins over Path; with neither,
// Dir is searched for DefaultCandidates.
type Source struct {
	URL  string
	Path string
	Dir  string
}

// Loader resolves a Source and produces a normalized dataset.
type Loader struct {
	source  Source
	fetcher *Fetcher
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewLoader creates a Loader. fetcher may be nil when Source.URL is empty.
func NewLoader(source Source, fetcher *Fetcher, logger *slog.Logger, metrics *observability.Metrics) *Loader {
	return &Loader{source: source, fetcher: fetcher, logger: logger, metrics: metrics}
}

// Load reads the dataset once.
func (l *Loader) Load(ctx context.Context) (Result, error) {
	start := time.Now()

	res, err := l.load(ctx)
	if err != nil {
		l.metrics.DatasetLoadErrors.Inc()
		return Result{}, err
	}

	l.metrics.DatasetLoadDuration.Observe(time.Since(start).Seconds())
	l.metrics.RecordsLoaded.Add(float64(len(res.Records)))
	l.metrics.RecordsDropped.Add(float64(res.Dropped))
	l.logger.Info("dataset loaded",
		"source", res.Source,
		"records", len(res.Records),
		"dropped", res.Dropped,
		"duration", time.Since(start),
	)
	return res, nil
}

func (l *Loader) load(ctx context.Context) (Result, error) {
	if l.source.URL != "" && l.fetcher != nil {
		return l.fetcher.Fetch(ctx, l.source.URL)
	}

	path := l.source.Path
	if path == "" {
		found, err := Locate(l.source.Dir, DefaultCandidates)
		if err != nil {
			return Result{}, err
		}
		path = found
	}
	return LoadFile(path)
}
