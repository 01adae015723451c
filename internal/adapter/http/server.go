package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/couchcryptid/quake-map-etl/internal/domain"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const geoJSONContentType = "application/geo+json"

// SnapshotProvider returns the snapshot currently being served.
type SnapshotProvider interface {
	Current() (domain.Snapshot, bool)
}

// Server exposes the quake map API alongside health, readiness, and metrics
// endpoints.
type Server struct {
	httpServer *http.Server
	snapshots  SnapshotProvider
	mapConfig  domain.MapConfig
	logger     *slog.Logger
}

// NewServer creates an HTTP server with the health, metrics, and /api/v1 routes.
func NewServer(addr string, ready sharedobs.ReadinessChecker, snapshots SnapshotProvider, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		snapshots: snapshots,
		mapConfig: domain.DefaultMapConfig(),
		logger:    logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/v1/quakes", s.handleQuakes)
	mux.HandleFunc("GET /api/v1/buckets", s.handleBuckets)
	mux.HandleFunc("GET /api/v1/buckets/{index}/filter", s.handleBucketFilter)
	mux.HandleFunc("GET /api/v1/map", s.handleMap)
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleQuakes(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.current(w)
	if !ok {
		return
	}

	quakes := snap.Quakes
	if raw := r.URL.Query().Get("bucket"); raw != "" {
		b, err := parseBucket(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		quakes = snap.Filter(b)
	}

	data, err := domain.ToFeatureCollection(quakes).MarshalJSON()
	if err != nil {
		s.logger.Error("encode feature collection", "snapshot_id", snap.ID, "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", geoJSONContentType)
	w.WriteHeader(http.StatusOK)
	w.Write(data) //nolint:errcheck // client went away
}

type bucketCount struct {
	domain.Bucket
	Count int `json:"count"`
}

// MarshalJSON keeps the embedded bucket's encoding and adds the count.
func (b bucketCount) MarshalJSON() ([]byte, error) {
	base, err := b.Bucket.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(base, &fields); err != nil {
		return nil, err
	}
	fields["count"] = b.Count
	return json.Marshal(fields)
}

func (s *Server) handleBuckets(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.current(w)
	if !ok {
		return
	}

	counts := snap.BucketCounts()
	out := make([]bucketCount, 0, domain.BucketCount)
	for _, b := range domain.Buckets() {
		out = append(out, bucketCount{Bucket: b, Count: counts[b.Index]})
	}
	sharedobs.WriteJSON(w, http.StatusOK, out)
}

func (s *Server) handleBucketFilter(w http.ResponseWriter, r *http.Request) {
	b, err := parseBucket(r.PathValue("index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, b.FilterExpression())
}

func (s *Server) handleMap(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, s.mapConfig)
}

type statusResponse struct {
	SnapshotID  string                `json:"snapshot_id"`
	GeneratedAt time.Time             `json:"generated_at"`
	Quakes      int                   `json:"quakes"`
	Dropped     int                   `json:"dropped"`
	Sources     []domain.SourceStatus `json:"sources"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.current(w)
	if !ok {
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, statusResponse{
		SnapshotID:  snap.ID,
		GeneratedAt: snap.GeneratedAt,
		Quakes:      len(snap.Quakes),
		Dropped:     snap.Dropped,
		Sources:     snap.Sources,
	})
}

// current writes a 503 and returns false when nothing has been loaded yet.
func (s *Server) current(w http.ResponseWriter) (domain.Snapshot, bool) {
	snap, ok := s.snapshots.Current()
	if !ok {
		sharedobs.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "no snapshot available yet",
		})
	}
	return snap, ok
}

func parseBucket(raw string) (domain.Bucket, error) {
	i, err := strconv.Atoi(raw)
	if err != nil {
		return domain.Bucket{}, err
	}
	return domain.BucketAt(i)
}

func writeError(w http.ResponseWriter, status int, err error) {
	sharedobs.WriteJSON(w, status, map[string]string{"error": err.Error()})
}
