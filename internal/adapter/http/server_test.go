package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	httpadapter "github.com/couchcryptid/quake-map-etl/internal/adapter/http"
	"github.com/couchcryptid/quake-map-etl/internal/adapter/memory"
	"github.com/couchcryptid/quake-map-etl/internal/domain"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

var _ sharedobs.ReadinessChecker = (*mockReadiness)(nil)

func newTestServer(readyErr error) *httpadapter.Server {
	return httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, memory.NewStore(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func mustQuake(t *testing.T, eventID, cod, mag string) domain.Quake {
	t.Helper()
	q, err := domain.FormatRecord(domain.QuakeRecord{Source: domain.SourceJMA, EventID: eventID, Cod: cod, Mag: mag})
	require.NoError(t, err)
	return q
}

func newLoadedServer(t *testing.T) *httpadapter.Server {
	t.Helper()
	store := memory.NewStore()
	snap := domain.Snapshot{
		ID:          "snap-1",
		GeneratedAt: time.Date(2024, 1, 1, 7, 20, 0, 0, time.UTC),
		Quakes: []domain.Quake{
			mustQuake(t, "wakayama", "+34.2+135.2+0/", "2.2"),
			mustQuake(t, "chiba", "+35.0+139.0+10/", "4.1"),
			mustQuake(t, "noto", "+37.5+137.2-10000/", "7.6"),
			mustQuake(t, "ibaraki", "+36.3+140.5-40000/", "1.7"),
		},
		Sources: []domain.SourceStatus{
			{Name: "jma", Fetched: 5},
			{Name: "usgs", Error: "status 503"},
		},
		Dropped: 1,
	}
	require.NoError(t, store.LoadSnapshot(context.Background(), snap))
	return httpadapter.NewServer(":0", &mockReadiness{}, store, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func get(srv http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHealthzReturns200(t *testing.T) {
	rec := get(newTestServer(nil), "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := get(newTestServer(nil), "/readyz")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	rec := get(newTestServer(fmt.Errorf("not ready yet")), "/readyz")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "not ready yet", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	rec := get(newTestServer(nil), "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestQuakes_NoSnapshotReturns503(t *testing.T) {
	srv := newTestServer(nil)
	for _, path := range []string{"/api/v1/quakes", "/api/v1/buckets", "/api/v1/status"} {
		rec := get(srv, path)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"), path)
		assert.JSONEq(t, `{"error":"no snapshot available yet"}`, rec.Body.String(), path)
	}
}

func TestQuakes_All(t *testing.T) {
	rec := get(newLoadedServer(t), "/api/v1/quakes")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/geo+json", rec.Header().Get("Content-Type"))

	fc, err := geojson.UnmarshalFeatureCollection(rec.Body.Bytes())
	require.NoError(t, err)
	assert.Len(t, fc.Features, 4)
}

func TestQuakes_BucketZero(t *testing.T) {
	rec := get(newLoadedServer(t), "/api/v1/quakes?bucket=0")

	require.Equal(t, http.StatusOK, rec.Code)
	fc, err := geojson.UnmarshalFeatureCollection(rec.Body.Bytes())
	require.NoError(t, err)

	require.Len(t, fc.Features, 1)
	f := fc.Features[0]
	assert.Equal(t, orb.Point{135.2, 34.2}, f.Geometry)
	assert.Equal(t, 2.2, f.Properties.MustFloat64("mag"))
	assert.Equal(t, "jma-wakayama", f.Properties.MustString("id"))
	assert.Equal(t, 0.0, f.Properties.MustFloat64("bucket"))
}

func TestQuakes_UnboundedBucket(t *testing.T) {
	rec := get(newLoadedServer(t), fmt.Sprintf("/api/v1/quakes?bucket=%d", domain.BucketCount-1))

	require.Equal(t, http.StatusOK, rec.Code)
	fc, err := geojson.UnmarshalFeatureCollection(rec.Body.Bytes())
	require.NoError(t, err)
	assert.Empty(t, fc.Features, "8.0 and above")
}

func TestQuakes_InvalidBucket(t *testing.T) {
	srv := newLoadedServer(t)
	for _, q := range []string{"-1", "13", "abc"} {
		rec := get(srv, "/api/v1/quakes?bucket="+q)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestBuckets(t *testing.T) {
	rec := get(newLoadedServer(t), "/api/v1/buckets")
	require.Equal(t, http.StatusOK, rec.Code)

	var body []struct {
		Index int      `json:"index"`
		Min   float64  `json:"min"`
		Max   *float64 `json:"max"`
		Label string   `json:"label"`
		Count int      `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, domain.BucketCount)

	assert.Equal(t, 0, body[0].Index)
	assert.Equal(t, 2.0, body[0].Min)
	require.NotNil(t, body[0].Max)
	assert.Equal(t, 2.5, *body[0].Max)
	assert.Equal(t, "2", body[0].Label)
	assert.Equal(t, 1, body[0].Count)

	assert.Equal(t, 1, body[4].Count)
	assert.Equal(t, 1, body[11].Count)

	last := body[domain.BucketCount-1]
	assert.Nil(t, last.Max)
	assert.Equal(t, "8", last.Label)
	assert.Zero(t, last.Count)
}

func TestBucketFilter(t *testing.T) {
	srv := newTestServer(nil)

	rec := get(srv, "/api/v1/buckets/3/filter")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `["all", [">=", ["get", "mag"], 3.5], ["<", ["get", "mag"], 4]]`, rec.Body.String())

	rec = get(srv, "/api/v1/buckets/12/filter")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `["all", [">=", ["get", "mag"], 8]]`, rec.Body.String())

	rec = get(srv, "/api/v1/buckets/99/filter")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMapConfig(t *testing.T) {
	rec := get(newTestServer(nil), "/api/v1/map")
	require.Equal(t, http.StatusOK, rec.Code)

	var cfg domain.MapConfig
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cfg))
	assert.Equal(t, "globe", cfg.Projection)
	assert.Equal(t, domain.SourceID, cfg.Layer.Source)
	assert.Equal(t, domain.BucketCount-1, cfg.Slider.Max)
	assert.Len(t, cfg.Layer.Filter, 3)
}

func TestStatus(t *testing.T) {
	rec := get(newLoadedServer(t), "/api/v1/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		SnapshotID  string                `json:"snapshot_id"`
		GeneratedAt time.Time             `json:"generated_at"`
		Quakes      int                   `json:"quakes"`
		Dropped     int                   `json:"dropped"`
		Sources     []domain.SourceStatus `json:"sources"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "snap-1", body.SnapshotID)
	assert.Equal(t, time.Date(2024, 1, 1, 7, 20, 0, 0, time.UTC), body.GeneratedAt)
	assert.Equal(t, 4, body.Quakes)
	assert.Equal(t, 1, body.Dropped)
	require.Len(t, body.Sources, 2)
	assert.Equal(t, "status 503", body.Sources[1].Error)
}
