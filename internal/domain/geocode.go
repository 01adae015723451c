package domain

import (
	"context"
	"errors"
	"log/slog"
)

// RecoverWithGeocoding tries to rescue a record dropped for its coordinate by
// forward geocoding the epicentre area name. It reports false when there is
// no geocoder, the drop was not coordinate-related, the magnitude is also
// unusable, or the provider returns nothing.
func RecoverWithGeocoding(ctx context.Context, dropped *RecordError, geocoder Geocoder, logger *slog.Logger) (Quake, bool) {
	if geocoder == nil || dropped == nil || dropped.Field != FieldCod {
		return Quake{}, false
	}
	if errors.Is(dropped.Err, ErrCoordinateOutOfRange) {
		return Quake{}, false
	}

	rec := dropped.Record
	query := rec.AreaEn
	if query == "" {
		query = rec.Area
	}
	if query == "" {
		return Quake{}, false
	}

	mag, err := ParseMagnitude(rec.Mag)
	if err != nil {
		return Quake{}, false
	}

	result, err := geocoder.ForwardGeocode(ctx, query)
	if err != nil {
		logger.Warn("forward geocoding failed",
			"event_id", rec.EventID,
			"area", query,
			"error", err,
		)
		return Quake{}, false
	}
	if result.Lat == 0 && result.Lon == 0 {
		return Quake{}, false
	}

	q := NewQuake(rec, Hypocenter{Position: Position{Latitude: result.Lat, Longitude: result.Lon}}, mag)
	q.PlaceName = result.PlaceName
	q.GeoConfidence = result.Confidence
	q.GeoSource = "forward"
	return q, true
}

// EnrichWithGeocoding fills PlaceName by reverse geocoding quakes that have no
// English area name. If geocoder is nil the quake is returned unchanged; on
// failure GeoSource is set to "failed" and the coordinates are kept.
func EnrichWithGeocoding(ctx context.Context, q Quake, geocoder Geocoder, logger *slog.Logger) Quake {
	if geocoder == nil || q.GeoSource != "" {
		return q
	}
	if q.AreaEn != "" || q.PlaceName != "" {
		q.GeoSource = "original"
		return q
	}

	result, err := geocoder.ReverseGeocode(ctx, q.Position.Latitude, q.Position.Longitude)
	if err != nil {
		logger.Warn("reverse geocoding failed",
			"quake_id", q.ID,
			"lat", q.Position.Latitude,
			"lon", q.Position.Longitude,
			"error", err,
		)
		q.GeoSource = "failed"
		return q
	}
	if result.PlaceName == "" && result.FormattedAddress == "" {
		q.GeoSource = "original"
		return q
	}

	q.PlaceName = result.PlaceName
	if q.PlaceName == "" {
		q.PlaceName = result.FormattedAddress
	}
	q.GeoConfidence = result.Confidence
	q.GeoSource = "reverse"
	return q
}
