package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/quake-map-etl/internal/domain"
)

// TransformResult is the output of one transform pass.
type TransformResult struct {
	Quakes    []domain.Quake
	Dropped   []*domain.RecordError
	Recovered int
}

// QuakeTransformer implements Transformer using the domain formatter with
// optional geocoding recovery and enrichment.
type QuakeTransformer struct {
	geocoder domain.Geocoder
	logger   *slog.Logger
}

// NewTransformer creates a QuakeTransformer. Pass a nil geocoder to disable
// geocoding.
func NewTransformer(geocoder domain.Geocoder, logger *slog.Logger) *QuakeTransformer {
	return &QuakeTransformer{
		geocoder: geocoder,
		logger:   logger,
	}
}

// Transform formats records, tries to place records with a bad coordinate by
// their area name, collapses repeated bulletins, then fills place names.
func (t *QuakeTransformer) Transform(ctx context.Context, records []domain.QuakeRecord) TransformResult {
	formatted := domain.FormatRecords(records)

	out := TransformResult{Quakes: formatted.Quakes}
	for _, d := range formatted.Dropped {
		if q, ok := domain.RecoverWithGeocoding(ctx, d, t.geocoder, t.logger); ok {
			out.Quakes = append(out.Quakes, q)
			out.Recovered++
			continue
		}
		out.Dropped = append(out.Dropped, d)
	}

	out.Quakes = domain.LatestByID(out.Quakes)
	for i := range out.Quakes {
		out.Quakes[i] = domain.EnrichWithGeocoding(ctx, out.Quakes[i], t.geocoder, t.logger)
	}
	return out
}
