// Package batch runs bulk risk recalculations over the block inventory:
// full-city or regional sweeps that rescore every block, persist the results
// in chunks, take history snapshots on cadence, and raise alerts when a
// block's risk category escalates.
package batch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/neuracity/risk-index-service/internal/observability"
	"github.com/neuracity/risk-index-service/internal/risk"
	"github.com/neuracity/risk-index-service/internal/storage"
)

// metersPerDegree is the coarse meters-per-degree-latitude conversion used
// to pad bounding boxes when collecting smoothing neighbors. Exact enough at
// city scale; the haversine distance inside the smoother does the precise
// work.
const metersPerDegree = 111000.0

// clock is swapped by tests to pin snapshot cadence and run timestamps.
var clock = clockwork.NewRealClock()

// SetClock swaps the package time source. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// AlertSink receives category escalation alerts. A nil sink disables
// alerting.
type AlertSink interface {
	PublishAlerts(ctx context.Context, alerts []risk.CategoryAlert) error
}

// Options tunes a Driver. Zero values take the documented defaults.
type Options struct {
	// Inputs supplies raw factor data for full rebuilds. When nil, runs
	// recompute composites from the factor scores already stored per block.
	Inputs InputSource
	// Alerts receives category escalations. Nil disables alerting.
	Alerts AlertSink

	Concurrency      int           // worker pool size, default 4
	ChunkSize        int           // blocks per batch upsert, default 100
	SnapshotInterval time.Duration // history cadence, default 168h
}

// Driver executes recalculation runs against a block store.
type Driver struct {
	store   storage.Store
	logger  *slog.Logger
	metrics *observability.Metrics
	opts    Options
	locks   *regionLocks
}

// NewDriver creates a recalculation driver.
func NewDriver(store storage.Store, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Driver {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 100
	}
	if opts.SnapshotInterval <= 0 {
		opts.SnapshotInterval = 168 * time.Hour
	}
	return &Driver{
		store:   store,
		logger:  logger,
		metrics: metrics,
		opts:    opts,
		locks:   newRegionLocks(),
	}
}

// Request describes one recalculation run.
type Request struct {
	// Bounds limits the run to a region. Nil means the full inventory.
	Bounds *storage.Bounds
	Config risk.Config
	Smooth bool
}

// BlockError records one block that could not be rescored or persisted.
type BlockError struct {
	BlockID string
	Err     error
}

// Result summarizes a run. Attempted counts blocks dispatched to workers;
// a cancelled run reports whatever completed before the stop.
type Result struct {
	RunID      string
	Attempted  int
	Succeeded  int
	Failed     int
	Errors     []BlockError
	AlertsSent int
	Duration   time.Duration
}

type outcome struct {
	blockID  string
	profile  risk.BlockRiskProfile
	snapshot *risk.HistorySnapshot
	alert    *risk.CategoryAlert
	err      error
}

// Run rescores every block in the requested region. Overlapping regions are
// serialized against each other; cancellation stops dispatching new blocks,
// drains in-flight work, and persists what finished.
func (d *Driver) Run(ctx context.Context, req Request) (Result, error) {
	res := Result{RunID: uuid.NewString()}
	start := clock.Now()
	defer func() {
		res.Duration = clock.Now().Sub(start)
		d.metrics.RecalcRunDuration.Observe(res.Duration.Seconds())
	}()

	release := d.locks.acquire(req.Bounds)
	defer release()

	if !req.Config.WeightsValid() {
		d.logger.Warn("config weights do not sum to 1.0, using unweighted mean",
			"config", req.Config.Name, "weight_sum", req.Config.WeightSum())
	}

	blocks, err := d.fetchBlocks(ctx, req.Bounds)
	if err != nil {
		return res, err
	}
	d.logger.Info("recalculation run started",
		"run_id", res.RunID, "config", req.Config.Name,
		"blocks", len(blocks), "smooth", req.Smooth, "regional", req.Bounds != nil)

	var neighbors []risk.NeighborBlock
	if req.Smooth {
		neighbors, err = d.neighborSnapshot(ctx, req, blocks)
		if err != nil {
			return res, err
		}
	}

	now := clock.Now().UTC()
	jobs := make(chan risk.BlockRiskProfile)
	outcomes := make(chan outcome, len(blocks))

	var wg sync.WaitGroup
	for i := 0; i < d.opts.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for prev := range jobs {
				outcomes <- d.process(ctx, prev, req, neighbors, now)
			}
		}()
	}

dispatch:
	for _, b := range blocks {
		select {
		case <-ctx.Done():
			d.logger.Warn("run cancelled, draining in-flight blocks",
				"run_id", res.RunID, "dispatched", res.Attempted, "total", len(blocks))
			break dispatch
		case jobs <- b:
			res.Attempted++
		}
	}
	close(jobs)
	wg.Wait()
	close(outcomes)

	scored := make([]outcome, 0, res.Attempted)
	for o := range outcomes {
		if o.err != nil {
			res.Failed++
			res.Errors = append(res.Errors, BlockError{BlockID: o.blockID, Err: o.err})
			d.metrics.BlocksScored.WithLabelValues("error").Inc()
			d.logger.Warn("block rescore failed", "run_id", res.RunID, "block_id", o.blockID, "error", o.err)
			continue
		}
		scored = append(scored, o)
	}

	// Results computed before a cancellation are still worth keeping.
	persistCtx := context.WithoutCancel(ctx)
	d.persist(persistCtx, &res, scored)

	d.logger.Info("recalculation run finished",
		"run_id", res.RunID, "attempted", res.Attempted,
		"succeeded", res.Succeeded, "failed", res.Failed, "alerts", res.AlertsSent)
	return res, ctx.Err()
}

func (d *Driver) fetchBlocks(ctx context.Context, bounds *storage.Bounds) ([]risk.BlockRiskProfile, error) {
	if bounds != nil {
		return d.store.BlocksInBounds(ctx, *bounds)
	}
	return d.store.ListBlocks(ctx, storage.BlockFilter{})
}

// neighborSnapshot collects the smoothing neighbors once per run. Regional
// runs pad the bounds by the smoothing radius so edge blocks still see
// neighbors just outside the region.
func (d *Driver) neighborSnapshot(ctx context.Context, req Request, blocks []risk.BlockRiskProfile) ([]risk.NeighborBlock, error) {
	source := blocks
	if req.Bounds != nil {
		pad := req.Config.SpatialRadiusMeters / metersPerDegree
		padded := storage.Bounds{
			MinLat: req.Bounds.MinLat - pad,
			MaxLat: req.Bounds.MaxLat + pad,
			MinLng: req.Bounds.MinLng - pad,
			MaxLng: req.Bounds.MaxLng + pad,
		}
		var err error
		source, err = d.store.BlocksInBounds(ctx, padded)
		if err != nil {
			return nil, err
		}
	}
	neighbors := make([]risk.NeighborBlock, 0, len(source))
	for _, b := range source {
		neighbors = append(neighbors, b.Neighbor())
	}
	return neighbors, nil
}

func (d *Driver) process(ctx context.Context, prev risk.BlockRiskProfile, req Request, neighbors []risk.NeighborBlock, now time.Time) outcome {
	p, err := d.rescore(ctx, prev, req.Config, now)
	if err != nil {
		return outcome{blockID: prev.BlockID, err: err}
	}

	if req.Smooth {
		p = p.ApplySmoothing(withoutBlock(neighbors, p.BlockID), req.Config)
		d.metrics.SmoothingApplied.Inc()
	}

	o := outcome{blockID: p.BlockID, profile: p}

	if p.RiskCategory.Rank() > prev.RiskCategory.Rank() {
		o.alert = &risk.CategoryAlert{
			BlockID:            p.BlockID,
			PreviousCategory:   prev.RiskCategory,
			CurrentCategory:    p.RiskCategory,
			CompositeRiskIndex: p.CompositeRiskIndex,
			OccurredAt:         now,
		}
	}

	if d.snapshotDue(ctx, p.BlockID, now) {
		snap := risk.SnapshotProfile(p, now)
		snap.ID = uuid.NewString()
		o.snapshot = &snap
	}
	return o
}

// rescore rebuilds the profile from raw inputs when an input source has data
// for the block, otherwise recomputes the composite from the stored factor
// scores.
func (d *Driver) rescore(ctx context.Context, prev risk.BlockRiskProfile, cfg risk.Config, now time.Time) (risk.BlockRiskProfile, error) {
	if d.opts.Inputs != nil {
		in, ok, err := d.opts.Inputs.BlockInputs(ctx, prev.BlockID)
		if err != nil {
			return risk.BlockRiskProfile{}, err
		}
		if ok {
			return risk.BuildProfile(prev.BlockID, prev.Lat, prev.Lng, in, cfg)
		}
	}

	index, category, _ := risk.CompositeIndex(prev.FactorScores, cfg)
	p := prev
	p.CompositeRiskIndex = index
	p.RiskCategory = category
	p.LastCalculatedAt = now
	return p, nil
}

func (d *Driver) snapshotDue(ctx context.Context, blockID string, now time.Time) bool {
	latest, err := d.store.LatestSnapshot(ctx, blockID)
	if errors.Is(err, storage.ErrNotFound) {
		return true
	}
	if err != nil {
		d.logger.Warn("snapshot cadence check failed", "block_id", blockID, "error", err)
		return false
	}
	return now.Sub(latest.SnapshotDate) >= d.opts.SnapshotInterval
}

// persist writes the scored outcomes in chunks. A failed chunk marks all of
// its blocks failed and the run carries on with the next chunk; snapshots
// and alerts are only emitted for blocks that actually persisted.
func (d *Driver) persist(ctx context.Context, res *Result, scored []outcome) {
	var alerts []risk.CategoryAlert

	for start := 0; start < len(scored); start += d.opts.ChunkSize {
		end := start + d.opts.ChunkSize
		if end > len(scored) {
			end = len(scored)
		}
		chunk := scored[start:end]

		profiles := make([]risk.BlockRiskProfile, len(chunk))
		for i, o := range chunk {
			profiles[i] = o.profile
		}
		if err := d.store.UpsertBlocks(ctx, profiles); err != nil {
			d.metrics.ChunkUpsertFailures.Inc()
			d.logger.Error("chunk upsert failed", "run_id", res.RunID, "chunk_size", len(chunk), "error", err)
			for _, o := range chunk {
				res.Failed++
				res.Errors = append(res.Errors, BlockError{BlockID: o.blockID, Err: err})
				d.metrics.BlocksScored.WithLabelValues("error").Inc()
			}
			continue
		}

		for _, o := range chunk {
			res.Succeeded++
			d.metrics.BlocksScored.WithLabelValues("success").Inc()
			if o.snapshot != nil {
				if err := d.store.AppendSnapshot(ctx, *o.snapshot); err != nil {
					d.logger.Warn("snapshot append failed", "block_id", o.blockID, "error", err)
				} else {
					d.metrics.SnapshotsTaken.Inc()
				}
			}
			if o.alert != nil {
				alerts = append(alerts, *o.alert)
			}
		}
	}

	if d.opts.Alerts == nil || len(alerts) == 0 {
		return
	}
	if err := d.opts.Alerts.PublishAlerts(ctx, alerts); err != nil {
		d.logger.Error("alert publish failed", "run_id", res.RunID, "alerts", len(alerts), "error", err)
		return
	}
	res.AlertsSent = len(alerts)
	d.metrics.AlertsPublished.Add(float64(len(alerts)))
}

// RecalculateBlock scores one block from fresh raw inputs, outside any run.
// Smoothing pulls from the block's stored neighbors; with persist set the
// result is written back and an escalation alert raised against the
// previously stored category.
func (d *Driver) RecalculateBlock(ctx context.Context, blockID string, lat, lng float64, in risk.RawInputs, cfg risk.Config, smooth, persist bool) (risk.BlockRiskProfile, error) {
	p, err := risk.BuildProfile(blockID, lat, lng, in, cfg)
	if err != nil {
		return risk.BlockRiskProfile{}, err
	}

	var prev *risk.BlockRiskProfile
	if existing, err := d.store.GetBlock(ctx, p.BlockID); err == nil {
		prev = &existing
	} else if !errors.Is(err, storage.ErrNotFound) {
		return risk.BlockRiskProfile{}, err
	}

	if smooth {
		neighbors, err := d.neighborsNear(ctx, p.Lat, p.Lng, cfg.SpatialRadiusMeters, p.BlockID)
		if err != nil {
			return risk.BlockRiskProfile{}, err
		}
		p = p.ApplySmoothing(neighbors, cfg)
		d.metrics.SmoothingApplied.Inc()
	}

	if !persist {
		return p, nil
	}
	if err := d.store.UpsertBlock(ctx, p); err != nil {
		d.metrics.BlocksScored.WithLabelValues("error").Inc()
		return risk.BlockRiskProfile{}, err
	}
	d.metrics.BlocksScored.WithLabelValues("success").Inc()

	if d.opts.Alerts != nil && prev != nil && p.RiskCategory.Rank() > prev.RiskCategory.Rank() {
		alert := risk.CategoryAlert{
			BlockID:            p.BlockID,
			PreviousCategory:   prev.RiskCategory,
			CurrentCategory:    p.RiskCategory,
			CompositeRiskIndex: p.CompositeRiskIndex,
			OccurredAt:         clock.Now().UTC(),
		}
		if err := d.opts.Alerts.PublishAlerts(ctx, []risk.CategoryAlert{alert}); err != nil {
			d.logger.Error("alert publish failed", "block_id", p.BlockID, "error", err)
		} else {
			d.metrics.AlertsPublished.Inc()
		}
	}
	return p, nil
}

func (d *Driver) neighborsNear(ctx context.Context, lat, lng, radiusMeters float64, selfID string) ([]risk.NeighborBlock, error) {
	pad := radiusMeters / metersPerDegree
	nearby, err := d.store.BlocksInBounds(ctx, storage.Bounds{
		MinLat: lat - pad,
		MaxLat: lat + pad,
		MinLng: lng - pad,
		MaxLng: lng + pad,
	})
	if err != nil {
		return nil, err
	}
	neighbors := make([]risk.NeighborBlock, 0, len(nearby))
	for _, b := range nearby {
		if b.BlockID == selfID {
			continue
		}
		neighbors = append(neighbors, b.Neighbor())
	}
	return neighbors, nil
}

func withoutBlock(neighbors []risk.NeighborBlock, blockID string) []risk.NeighborBlock {
	out := make([]risk.NeighborBlock, 0, len(neighbors))
	for _, n := range neighbors {
		if n.BlockID != blockID {
			out = append(out, n)
		}
	}
	return out
}
