package redis

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/quake-map-etl/internal/domain"
	"github.com/google/go-cmp/cmp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fake client ---

type fakeClient struct {
	data    map[string][]byte
	ttls    map[string]time.Duration
	setErr  error
	getErr  error
	pingErr error
	closed  bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (f *fakeClient) Get(_ context.Context, key string) *goredis.StringCmd {
	if f.getErr != nil {
		return goredis.NewStringResult("", f.getErr)
	}
	v, ok := f.data[key]
	if !ok {
		return goredis.NewStringResult("", goredis.Nil)
	}
	return goredis.NewStringResult(string(v), nil)
}

func (f *fakeClient) Set(_ context.Context, key string, value any, expiration time.Duration) *goredis.StatusCmd {
	if f.setErr != nil {
		return goredis.NewStatusResult("", f.setErr)
	}
	f.data[key] = value.([]byte)
	f.ttls[key] = expiration
	return goredis.NewStatusResult("OK", nil)
}

func (f *fakeClient) Ping(_ context.Context) *goredis.StatusCmd {
	return goredis.NewStatusResult("PONG", f.pingErr)
}

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSnapshot() domain.Snapshot {
	depth := 10.0
	bucket := 11
	return domain.Snapshot{
		ID:          "5a1f3c2e-8a34-4b8e-9d55-0e3c1f2a7b90",
		GeneratedAt: time.Date(2024, 1, 1, 7, 20, 0, 0, time.UTC),
		Quakes: []domain.Quake{{
			ID:        "jma-20240101161010",
			Source:    domain.SourceJMA,
			EventID:   "20240101161010",
			Position:  domain.Position{Latitude: 37.5, Longitude: 137.2},
			DepthKm:   &depth,
			Magnitude: 7.6,
			Bucket:    &bucket,
			AreaEn:    "Noto, Ishikawa Prefecture",
			Fields:    map[string]json.RawMessage{"maxi": json.RawMessage(`"7"`)},
		}},
		Sources: []domain.SourceStatus{{Name: "jma", Fetched: 1}},
		Dropped: 2,
	}
}

// --- tests ---

func TestStore_LoadThenLatest(t *testing.T) {
	fc := newFakeClient()
	s := newStore(fc, time.Hour, discardLogger())
	want := testSnapshot()

	require.NoError(t, s.LoadSnapshot(context.Background(), want))
	assert.Equal(t, time.Hour, fc.ttls[SnapshotKey])

	got, err := s.Latest(context.Background())
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_LatestEmpty(t *testing.T) {
	s := newStore(newFakeClient(), time.Hour, discardLogger())

	_, err := s.Latest(context.Background())
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestStore_LatestCorrupt(t *testing.T) {
	fc := newFakeClient()
	fc.data[SnapshotKey] = []byte("{not json")
	s := newStore(fc, time.Hour, discardLogger())

	_, err := s.Latest(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode snapshot")
}

func TestStore_Errors(t *testing.T) {
	fc := newFakeClient()
	fc.setErr = errors.New("READONLY")
	fc.getErr = errors.New("connection refused")
	s := newStore(fc, time.Hour, discardLogger())

	err := s.LoadSnapshot(context.Background(), testSnapshot())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis set")

	_, err = s.Latest(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoSnapshot)
}

func TestStore_HealthAndClose(t *testing.T) {
	fc := newFakeClient()
	s := newStore(fc, time.Hour, discardLogger())

	require.NoError(t, s.CheckHealth(context.Background()))
	fc.pingErr = errors.New("down")
	require.Error(t, s.CheckHealth(context.Background()))

	require.NoError(t, s.Close())
	assert.True(t, fc.closed)
	assert.Equal(t, "redis", s.Name())
}
