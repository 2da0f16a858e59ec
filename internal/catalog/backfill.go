package catalog

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/justyntemme/exlibris/internal/covers"
	"github.com/justyntemme/exlibris/internal/models"
)

// CoverCacher caches a remote cover for one owner
type CoverCacher interface {
	CacheCover(ctx context.Context, t covers.Target) (bool, error)
}

// VolumeSource lists volumes waiting for a cached cover
type VolumeSource interface {
	VolumesMissingCover(ctx context.Context, limit int) ([]models.Volume, error)
}

// BackfillOptions controls a cover backfill run
type BackfillOptions struct {
	Limit  int
	Sleep  time.Duration
	DryRun bool
}

// Outcome values for a backfilled volume
const (
	OutcomeCached  = "cached"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
	OutcomeDryRun  = "dry-run"
)

// BackfillOutcome records what happened to one volume
type BackfillOutcome struct {
	VolumeID int64
	Title    string
	Outcome  string
	Err      error
}

// BackfillReport summarizes a backfill run
type BackfillReport struct {
	Outcomes []BackfillOutcome
	Cached   int
	Skipped  int
	Failed   int
}

// Backfiller caches covers for volumes that have a cover URL but no image
type Backfiller struct {
	volumes VolumeSource
	cacher  CoverCacher
	logger  *log.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewBackfiller creates a cover backfiller
func NewBackfiller(volumes VolumeSource, cacher CoverCacher, logger *log.Logger) *Backfiller {
	if logger == nil {
		logger = log.Default()
	}
	return &Backfiller{
		volumes: volumes,
		cacher:  cacher,
		logger:  logger.With("component", "backfill"),
		sleep:   sleepContext,
	}
}

// Run processes up to opts.Limit volumes, pausing opts.Sleep between
// downloads. A failed volume is recorded and the run moves on; only a
// listing error or a cancelled context stops it early.
func (b *Backfiller) Run(ctx context.Context, opts BackfillOptions) (*BackfillReport, error) {
	vols, err := b.volumes.VolumesMissingCover(ctx, opts.Limit)
	if err != nil {
		return nil, err
	}

	b.logger.Info("starting cover backfill", "volumes", len(vols), "dry_run", opts.DryRun, "sleep", opts.Sleep)

	report := &BackfillReport{}
	for i, v := range vols {
		outcome := BackfillOutcome{VolumeID: v.ID, Title: v.Title}

		if opts.DryRun {
			outcome.Outcome = OutcomeDryRun
			report.Outcomes = append(report.Outcomes, outcome)
			continue
		}

		cached, err := b.cacher.CacheCover(ctx, covers.Target{
			OwnerKind: models.OwnerVolume,
			OwnerID:   v.ID,
			CoverURL:  v.CoverURL,
		})
		switch {
		case err != nil:
			outcome.Outcome = OutcomeFailed
			outcome.Err = err
			report.Failed++
		case cached:
			outcome.Outcome = OutcomeCached
			report.Cached++
		default:
			outcome.Outcome = OutcomeSkipped
			report.Skipped++
		}
		report.Outcomes = append(report.Outcomes, outcome)

		if i < len(vols)-1 && opts.Sleep > 0 {
			if err := b.sleep(ctx, opts.Sleep); err != nil {
				return report, err
			}
		}
	}

	b.logger.Info("cover backfill finished", "cached", report.Cached, "skipped", report.Skipped, "failed", report.Failed)
	return report, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
