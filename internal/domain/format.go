package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// Record fields a RecordError can point at.
const (
	FieldCod = "cod"
	FieldMag = "mag"
)

// RecordError reports a record that could not be formatted. The record is
// kept so callers can attempt recovery.
type RecordError struct {
	Record QuakeRecord
	Field  string
	Err    error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("%s record %q: %s: %v", e.Record.Source, e.Record.EventID, e.Field, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// Reason returns a short, stable label for metrics.
func (e *RecordError) Reason() string {
	switch {
	case errors.Is(e.Err, ErrEmptyCoordinate):
		return "empty_coordinate"
	case errors.Is(e.Err, ErrCoordinateOutOfRange):
		return "coordinate_out_of_range"
	case errors.Is(e.Err, ErrMalformedCoordinate):
		return "malformed_coordinate"
	case errors.Is(e.Err, ErrUnknownMagnitude):
		return "unknown_magnitude"
	case errors.Is(e.Err, ErrMalformedMagnitude):
		return "malformed_magnitude"
	default:
		return "invalid"
	}
}

// FormatResult holds the quakes produced from a batch of records and the
// records that were dropped.
type FormatResult struct {
	Quakes  []Quake
	Dropped []*RecordError
}

// FormatRecords formats every record. Records with an unparsable coordinate or
// magnitude are dropped and reported in Dropped; they never appear in Quakes.
func FormatRecords(records []QuakeRecord) FormatResult {
	res := FormatResult{Quakes: make([]Quake, 0, len(records))}
	for _, rec := range records {
		q, err := FormatRecord(rec)
		if err != nil {
			var recErr *RecordError
			if errors.As(err, &recErr) {
				res.Dropped = append(res.Dropped, recErr)
			}
			continue
		}
		res.Quakes = append(res.Quakes, q)
	}
	return res
}

// FormatRecord parses a record's coordinate and magnitude. Errors are
// *RecordError.
func FormatRecord(rec QuakeRecord) (Quake, error) {
	hypo, err := ParseHypocenter(rec.Cod)
	if err != nil {
		return Quake{}, &RecordError{Record: rec, Field: FieldCod, Err: err}
	}
	mag, err := ParseMagnitude(rec.Mag)
	if err != nil {
		return Quake{}, &RecordError{Record: rec, Field: FieldMag, Err: err}
	}
	return NewQuake(rec, hypo, mag), nil
}

// LatestByID collapses quakes sharing an ID, keeping the most recently
// reported one. JMA lists every bulletin for an event (preliminary, revised)
// under the same eid. Order of first appearance is kept.
func LatestByID(quakes []Quake) []Quake {
	index := make(map[string]int, len(quakes))
	out := make([]Quake, 0, len(quakes))
	for _, q := range quakes {
		i, seen := index[q.ID]
		if !seen {
			index[q.ID] = len(out)
			out = append(out, q)
			continue
		}
		if q.ReportedAt.After(out[i].ReportedAt) {
			out[i] = q
		}
	}
	return out
}

// NewQuake builds a Quake from a record and already-parsed values.
func NewQuake(rec QuakeRecord, hypo Hypocenter, mag float64) Quake {
	source := rec.Source
	if source == "" {
		source = SourceJMA
	}

	q := Quake{
		ID:          generateID(source, rec.EventID, rec.Cod, rec.OriginTime, rec.Mag),
		Source:      source,
		EventID:     rec.EventID,
		Position:    hypo.Position,
		Magnitude:   mag,
		Area:        rec.Area,
		AreaEn:      rec.AreaEn,
		OriginTime:  parseTime(rec.OriginTime),
		ReportedAt:  parseTime(rec.ReportTime),
		Fields:      rec.Fields,
		ProcessedAt: clock.Now(),
	}
	if hypo.DepthKnown {
		depth := hypo.DepthKm
		q.DepthKm = &depth
	}
	if b, ok := BucketFor(mag); ok {
		idx := b.Index
		q.Bucket = &idx
	}
	return q
}

// parseTime parses an RFC 3339 timestamp, returning zero time on failure.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// generateID produces a deterministic ID for a record. The source event id is
// used when present; otherwise the key fields are hashed so reprocessing the
// same record produces the same ID.
func generateID(source, eventID, cod, originTime, mag string) string {
	if eventID != "" {
		return source + "-" + eventID
	}
	input := fmt.Sprintf("%s|%s|%s|%s", source, cod, originTime, mag)
	hash := sha256.Sum256([]byte(input))
	return source + "-" + hex.EncodeToString(hash[:8])
}
