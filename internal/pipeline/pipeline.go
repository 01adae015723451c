package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/quake-map-etl/internal/domain"
	"github.com/couchcryptid/quake-map-etl/internal/observability"
	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// ErrAllSourcesFailed is returned by RunOnce when no feed could be read. The
// previously loaded snapshot stays in place.
var ErrAllSourcesFailed = errors.New("all sources failed")

const initialBackoff = 200 * time.Millisecond

// Source fetches one feed's records.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]domain.QuakeRecord, error)
}

// Transformer turns fetched records into map-ready quakes.
type Transformer interface {
	Transform(ctx context.Context, records []domain.QuakeRecord) TransformResult
}

// SnapshotLoader stores or publishes a complete snapshot.
type SnapshotLoader interface {
	Name() string
	LoadSnapshot(ctx context.Context, snap domain.Snapshot) error
}

// SnapshotSource returns a previously persisted snapshot.
type SnapshotSource interface {
	Latest(ctx context.Context) (domain.Snapshot, error)
}

// Poller orchestrates the fetch-transform-load cycle on a fixed interval.
type Poller struct {
	sources     []Source
	transformer Transformer
	loaders     []SnapshotLoader
	clock       clockwork.Clock
	interval    time.Duration
	logger      *slog.Logger
	metrics     *observability.Metrics
	ready       atomic.Bool
}

// New creates a Poller. Sources are fetched in the order given.
func New(sources []Source, t Transformer, loaders []SnapshotLoader, clock clockwork.Clock, interval time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Poller {
	return &Poller{
		sources:     sources,
		transformer: t,
		loaders:     loaders,
		clock:       clock,
		interval:    interval,
		logger:      logger,
		metrics:     metrics,
	}
}

// CheckReadiness returns nil once a snapshot has been loaded or seeded.
func (p *Poller) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no snapshot has been loaded yet")
	}
	return nil
}

// Ready reports whether a snapshot is being served.
func (p *Poller) Ready() bool {
	return p.ready.Load()
}

// Seed loads a persisted snapshot into dst so it is served before the first
// poll completes. A missing snapshot is not an error.
func (p *Poller) Seed(ctx context.Context, src SnapshotSource, dst SnapshotLoader) error {
	snap, err := src.Latest(ctx)
	if err != nil {
		return fmt.Errorf("read persisted snapshot: %w", err)
	}
	if err := dst.LoadSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("seed %s: %w", dst.Name(), err)
	}
	p.ready.Store(true)
	p.logger.Info("seeded snapshot", "snapshot_id", snap.ID, "quakes", len(snap.Quakes), "generated_at", snap.GeneratedAt)
	return nil
}

// Run polls immediately and then every interval until the context is
// cancelled. After a cycle in which every source failed it retries with
// exponential backoff, capped at the poll interval.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("poller started", "interval", p.interval, "sources", len(p.sources), "loaders", len(p.loaders))
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	backoff := initialBackoff

	for {
		wait := p.interval
		if err := p.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				p.logger.Info("poller stopping", "reason", ctx.Err())
				return nil
			}
			wait = min(backoff, p.interval)
			backoff = retry.NextBackoff(backoff, p.interval)
			p.logger.Warn("poll cycle failed, retrying", "error", err, "retry_in", wait)
		} else {
			backoff = initialBackoff
		}

		select {
		case <-ctx.Done():
			p.logger.Info("poller stopping", "reason", ctx.Err())
			return nil
		case <-p.clock.After(wait):
		}
	}
}

// RunOnce performs a single fetch-transform-load cycle.
func (p *Poller) RunOnce(ctx context.Context) error {
	start := p.clock.Now()

	records, statuses, err := p.fetchAll(ctx)
	if err != nil {
		return err
	}

	res := p.transformer.Transform(ctx, records)
	for _, d := range res.Dropped {
		p.logger.Warn("record dropped",
			"source", d.Record.Source,
			"event_id", d.Record.EventID,
			"field", d.Field,
			"reason", d.Reason(),
			"error", d.Err,
		)
		p.metrics.RecordsDropped.WithLabelValues(d.Reason()).Inc()
	}
	p.metrics.QuakesRecovered.Add(float64(res.Recovered))

	snap := domain.Snapshot{
		ID:          uuid.NewString(),
		GeneratedAt: p.clock.Now().UTC(),
		Quakes:      res.Quakes,
		Sources:     statuses,
		Dropped:     len(res.Dropped),
	}

	if err := p.loadAll(ctx, snap); err != nil {
		return err
	}

	p.metrics.QuakesLoaded.Add(float64(len(snap.Quakes)))
	p.metrics.SnapshotSize.Observe(float64(len(snap.Quakes)))
	p.metrics.CycleDuration.Observe(p.clock.Since(start).Seconds())
	p.ready.Store(true)

	p.logger.Info("snapshot loaded",
		"snapshot_id", snap.ID,
		"quakes", len(snap.Quakes),
		"dropped", snap.Dropped,
		"recovered", res.Recovered,
	)
	return nil
}

// fetchAll reads every source in order. A failed source is logged and
// contributes nothing; the cycle only fails when all of them do.
func (p *Poller) fetchAll(ctx context.Context) ([]domain.QuakeRecord, []domain.SourceStatus, error) {
	var records []domain.QuakeRecord
	statuses := make([]domain.SourceStatus, 0, len(p.sources))
	failed := 0

	for _, src := range p.sources {
		recs, err := src.Fetch(ctx)
		status := domain.SourceStatus{Name: src.Name(), FetchedAt: p.clock.Now().UTC()}
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			failed++
			status.Error = err.Error()
			p.metrics.FetchErrors.WithLabelValues(src.Name()).Inc()
			p.logger.Error("fetch failed", "source", src.Name(), "error", err)
		} else {
			status.Fetched = len(recs)
			p.metrics.RecordsFetched.WithLabelValues(src.Name()).Add(float64(len(recs)))
			records = append(records, recs...)
		}
		statuses = append(statuses, status)
	}

	if len(p.sources) > 0 && failed == len(p.sources) {
		return nil, statuses, ErrAllSourcesFailed
	}
	return records, statuses, nil
}

// loadAll hands the snapshot to every loader. Failures of individual loaders
// are logged and counted; it is an error only when all loaders fail.
func (p *Poller) loadAll(ctx context.Context, snap domain.Snapshot) error {
	var errs []error
	for _, l := range p.loaders {
		if err := l.LoadSnapshot(ctx, snap); err != nil {
			p.metrics.LoadErrors.WithLabelValues(l.Name()).Inc()
			p.logger.Error("load failed", "sink", l.Name(), "snapshot_id", snap.ID, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", l.Name(), err))
		}
	}
	if len(p.loaders) > 0 && len(errs) == len(p.loaders) {
		return errors.Join(errs...)
	}
	return nil
}
