package hub

import (
	"context"
	"time"

	"github.com/preslaff/satellite-mission-control-simulation-system/internal/catalog"
	"github.com/preslaff/satellite-mission-control-simulation-system/internal/sgp4"
)

// CatalogSource resolves tracked identifiers through the catalog cache and
// the shared propagator cache. Element sets for already-cached groups never
// touch the network on the broadcast path.
type CatalogSource struct {
	catalog *catalog.Cache
	props   *sgp4.Cache
}

// NewCatalogSource wires the production position source.
func NewCatalogSource(cat *catalog.Cache, props *sgp4.Cache) *CatalogSource {
	return &CatalogSource{catalog: cat, props: props}
}

// PositionAt implements PositionSource.
func (s *CatalogSource) PositionAt(ctx context.Context, noradID int, t time.Time) (SatelliteUpdate, error) {
	set, err := s.catalog.FetchByID(ctx, noradID)
	if err != nil {
		return SatelliteUpdate{}, err
	}

	prop, err := s.props.For(set)
	if err != nil {
		return SatelliteUpdate{}, err
	}

	pos, vel, err := prop.StateAt(t)
	if err != nil {
		return SatelliteUpdate{}, err
	}

	return SatelliteUpdate{
		ID:        set.NoradID,
		Name:      set.Name,
		Position:  [3]float64{pos.X, pos.Y, pos.Z},
		Velocity:  [3]float64{vel.X, vel.Y, vel.Z},
		Timestamp: t.Format(time.RFC3339),
	}, nil
}
