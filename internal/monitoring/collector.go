package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
)

// CatalogCounter is the slice of the store the collector reads.
type CatalogCounter interface {
	CountUnresolved(ctx context.Context) (int, error)
	CountUngeocoded(ctx context.Context) (int, error)
}

// Snapshot is a point-in-time view of catalog health.
type Snapshot struct {
	UnresolvedVideos int       `json:"unresolved_videos"`
	Ungeocoded       int       `json:"ungeocoded"`
	CollectedAt      time.Time `json:"collected_at"`
}

// Collector gathers catalog health counts from the store.
type Collector struct {
	store CatalogCounter
}

// NewCollector creates a new collector.
func NewCollector(st CatalogCounter) *Collector {
	return &Collector{store: st}
}

// Collect reads the current counts.
func (c *Collector) Collect(ctx context.Context) (*Snapshot, error) {
	unresolved, err := c.store.CountUnresolved(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: count unresolved")
	}
	ungeocoded, err := c.store.CountUngeocoded(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: count ungeocoded")
	}
	return &Snapshot{
		UnresolvedVideos: unresolved,
		Ungeocoded:       ungeocoded,
		CollectedAt:      time.Now().UTC(),
	}, nil
}
