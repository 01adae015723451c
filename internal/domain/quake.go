package domain

import (
	"encoding/json"
	"time"
)

// Source names.
const (
	SourceJMA  = "jma"
	SourceUSGS = "usgs"
)

// QuakeRecord is one entry of a JMA event list. Typed fields cover what the
// pipeline reads; Fields keeps every member of the original JSON object
// exactly as received so it can be passed through to map features.
type QuakeRecord struct {
	Source string `json:"-"`

	EventID      string          `json:"eid"`
	OriginTime   string          `json:"at"`
	ReportTime   string          `json:"rdt"`
	Cod          string          `json:"cod"`
	Mag          string          `json:"mag"`
	AreaCode     string          `json:"acd"`
	Area         string          `json:"anm"`
	AreaEn       string          `json:"en_anm"`
	Title        string          `json:"ttl"`
	TitleEn      string          `json:"en_ttl"`
	MaxIntensity string          `json:"maxi"`
	Intensity    []IntensityArea `json:"int"`

	Fields map[string]json.RawMessage `json:"-"`
}

// IntensityArea is the per-prefecture seismic intensity breakdown in a JMA record.
type IntensityArea struct {
	Code         string          `json:"code"`
	MaxIntensity string          `json:"maxi"`
	Cities       []IntensityCity `json:"city"`
}

// IntensityCity is a single municipality's observed intensity.
type IntensityCity struct {
	Code         string `json:"code"`
	Name         string `json:"city,omitempty"`
	MaxIntensity string `json:"maxi,omitempty"`
}

// UnmarshalJSON decodes the typed fields and keeps the raw members in Fields.
func (r *QuakeRecord) UnmarshalJSON(data []byte) error {
	type plain QuakeRecord
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*r = QuakeRecord(p)
	r.Fields = fields
	return nil
}

// MarshalJSON re-emits the original members when present, so a decoded record
// encodes back to the same object.
func (r QuakeRecord) MarshalJSON() ([]byte, error) {
	if r.Fields != nil {
		return json.Marshal(r.Fields)
	}
	type plain QuakeRecord
	return json.Marshal(plain(r))
}

// Position is a WGS-84 latitude/longitude pair.
type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Hypocenter is a parsed packed coordinate. DepthKm is only meaningful when
// DepthKnown is set.
type Hypocenter struct {
	Position
	DepthKm    float64
	DepthKnown bool
}

// Quake is a record after parsing: the original fields plus numeric position
// and magnitude, ready to become a map point.
type Quake struct {
	ID         string    `json:"id"`
	Source     string    `json:"source"`
	EventID    string    `json:"event_id,omitempty"`
	Position   Position  `json:"position"`
	DepthKm    *float64  `json:"depth_km,omitempty"`
	Magnitude  float64   `json:"mag"`
	Bucket     *int      `json:"bucket,omitempty"`
	Area       string    `json:"area,omitempty"`
	AreaEn     string    `json:"area_en,omitempty"`
	OriginTime time.Time `json:"origin_time"`
	ReportedAt time.Time `json:"reported_at"`

	// Geocoding enrichment fields.
	PlaceName     string  `json:"place_name,omitempty"`
	GeoConfidence float64 `json:"geo_confidence,omitempty"`
	GeoSource     string  `json:"geo_source,omitempty"` // "forward", "reverse", "original", "failed"

	Fields      map[string]json.RawMessage `json:"fields,omitempty"`
	ProcessedAt time.Time                  `json:"processed_at"`
}

// SourceStatus reports the outcome of fetching one feed during a cycle.
type SourceStatus struct {
	Name      string    `json:"name"`
	Fetched   int       `json:"fetched"`
	Error     string    `json:"error,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Snapshot is the full result of one poll cycle. Loaders replace the previous
// snapshot wholesale.
type Snapshot struct {
	ID          string         `json:"id"`
	GeneratedAt time.Time      `json:"generated_at"`
	Quakes      []Quake        `json:"quakes"`
	Sources     []SourceStatus `json:"sources"`
	Dropped     int            `json:"dropped"`
}

// Filter returns the quakes whose magnitude falls inside b.
func (s Snapshot) Filter(b Bucket) []Quake {
	return FilterByBucket(s.Quakes, b)
}

// BucketCounts returns the number of quakes in each bucket, indexed by bucket.
func (s Snapshot) BucketCounts() []int {
	counts := make([]int, BucketCount)
	for i := range s.Quakes {
		if b := s.Quakes[i].Bucket; b != nil && *b >= 0 && *b < BucketCount {
			counts[*b]++
		}
	}
	return counts
}
