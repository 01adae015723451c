package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/couchcryptid/quake-map-etl/internal/domain"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// USGSClient reads a USGS summary GeoJSON feed and presents it as JMA-shaped
// records so both sources share one formatter.
type USGSClient struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewUSGSClient creates a client for the summary feed at url.
func NewUSGSClient(url string, timeout time.Duration, logger *slog.Logger) *USGSClient {
	return &USGSClient{
		url:        url,
		httpClient: newHTTPClient(timeout),
		logger:     logger,
	}
}

// Name returns the source label used in logs, metrics and snapshot status.
func (c *USGSClient) Name() string { return domain.SourceUSGS }

// Fetch downloads the feed and maps each point feature to a QuakeRecord.
func (c *USGSClient) Fetch(ctx context.Context) ([]domain.QuakeRecord, error) {
	body, err := get(ctx, c.httpClient, c.url)
	if err != nil {
		return nil, fmt.Errorf("usgs: %w", err)
	}

	records, skipped, err := DecodeUSGS(body)
	if err != nil {
		return nil, fmt.Errorf("usgs: %w", err)
	}
	if skipped > 0 {
		c.logger.Warn("usgs features skipped", "count", skipped)
	}

	c.logger.Debug("usgs feed fetched", "records", len(records))
	return records, nil
}

// usgsCollection keeps each feature's geometry raw: orb.Point has no third
// ordinate, so depth is read separately.
type usgsCollection struct {
	Type     string        `json:"type"`
	Features []usgsFeature `json:"features"`
}

type usgsFeature struct {
	ID         string          `json:"id"`
	Properties json.RawMessage `json:"properties"`
	Geometry   json.RawMessage `json:"geometry"`
}

type usgsProperties struct {
	Mag     *float64 `json:"mag"`
	Place   string   `json:"place"`
	Time    int64    `json:"time"`
	Updated int64    `json:"updated"`
	Title   string   `json:"title"`
}

// DecodeUSGS parses a USGS summary FeatureCollection. Features without a
// point geometry are skipped and counted.
func DecodeUSGS(data []byte) ([]domain.QuakeRecord, int, error) {
	var fc usgsCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, 0, fmt.Errorf("decode feed: %w", err)
	}
	if fc.Type != "FeatureCollection" {
		return nil, 0, fmt.Errorf("decode feed: unexpected type %q", fc.Type)
	}

	records := make([]domain.QuakeRecord, 0, len(fc.Features))
	skipped := 0
	for _, f := range fc.Features {
		rec, err := usgsRecord(f)
		if err != nil {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	return records, skipped, nil
}

func usgsRecord(f usgsFeature) (domain.QuakeRecord, error) {
	g, err := geojson.UnmarshalGeometry(f.Geometry)
	if err != nil {
		return domain.QuakeRecord{}, fmt.Errorf("feature %s: %w", f.ID, err)
	}
	pt, ok := g.Geometry().(orb.Point)
	if !ok {
		return domain.QuakeRecord{}, fmt.Errorf("feature %s: geometry is %s, not Point", f.ID, g.Type)
	}

	var coords struct {
		Coordinates []float64 `json:"coordinates"`
	}
	if err := json.Unmarshal(f.Geometry, &coords); err != nil {
		return domain.QuakeRecord{}, fmt.Errorf("feature %s: %w", f.ID, err)
	}
	cod := domain.FormatPackedPosition(pt.Lat(), pt.Lon())
	if len(coords.Coordinates) > 2 {
		cod = domain.FormatPackedCoordinate(pt.Lat(), pt.Lon(), coords.Coordinates[2])
	}

	var props usgsProperties
	if err := json.Unmarshal(f.Properties, &props); err != nil {
		return domain.QuakeRecord{}, fmt.Errorf("feature %s properties: %w", f.ID, err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(f.Properties, &fields); err != nil {
		return domain.QuakeRecord{}, fmt.Errorf("feature %s properties: %w", f.ID, err)
	}

	rec := domain.QuakeRecord{
		Source:  domain.SourceUSGS,
		EventID: f.ID,
		Cod:     cod,
		Area:    props.Place,
		AreaEn:  props.Place,
		Title:   props.Title,
		TitleEn: props.Title,
		Fields:  fields,
	}
	if props.Mag != nil {
		rec.Mag = strconv.FormatFloat(*props.Mag, 'f', -1, 64)
	}
	if props.Time > 0 {
		rec.OriginTime = time.UnixMilli(props.Time).UTC().Format(time.RFC3339)
	}
	if props.Updated > 0 {
		rec.ReportTime = time.UnixMilli(props.Updated).UTC().Format(time.RFC3339)
	}
	return rec, nil
}
