package pipeline

import (
	"context"
	"fmt"

	"github.com/couchcryptid/near-miss-analytics/internal/domain"
)

// IncidentTransformer implements Transformer with the domain normalizer.
type IncidentTransformer struct{}

// NewTransformer creates an IncidentTransformer.
func NewTransformer() *IncidentTransformer {
	return &IncidentTransformer{}
}

func (t *IncidentTransformer) Transform(_ context.Context, raw domain.RawMessage) (domain.Incident, error) {
	return domain.ParseMessage(raw)
}

// FanOutLoader loads every batch into each of its loaders in order and stops
// at the first failure. Loaders before the failing one are not rolled back,
// so order external sinks first and the snapshot store last.
type FanOutLoader []BatchLoader

func (f FanOutLoader) LoadBatch(ctx context.Context, incidents []domain.Incident) error {
	for i, l := range f {
		if err := l.LoadBatch(ctx, incidents); err != nil {
			return fmt.Errorf("loader %d: %w", i, err)
		}
	}
	return nil
}
