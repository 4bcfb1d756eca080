package crawl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	v1 "github.com/aevon-lab/pricewatch/internal/api/v1"
	"github.com/aevon-lab/pricewatch/internal/core/catalog"
	"github.com/aevon-lab/pricewatch/internal/core/classify"
	"github.com/aevon-lab/pricewatch/internal/core/normalize"
	"github.com/aevon-lab/pricewatch/internal/core/storage"
	"github.com/aevon-lab/pricewatch/internal/notify"
	"github.com/aevon-lab/pricewatch/internal/projection"
	"github.com/aevon-lab/pricewatch/internal/traversal"
	"github.com/google/uuid"
)

// ErrRunFailed is returned when a run could not persist its observations.
// Nothing was appended and no alert was sent, so the run may be retried.
var ErrRunFailed = errors.New("crawl run failed")

// Traverser walks one catalog source.
type Traverser interface {
	Traverse(ctx context.Context, src catalog.Source) traversal.Result
}

// Options tune a Runner.
type Options struct {
	SourceDelayMin time.Duration
	SourceDelayMax time.Duration
	Classify       classify.Options
}

// SourceReport summarizes one source of a run.
type SourceReport struct {
	Source    string
	State     traversal.State
	Pages     int
	Listings  int
	Recorded  int
	Malformed int
	Err       error
}

// RunReport summarizes one crawl run.
type RunReport struct {
	RunID        uuid.UUID
	StartedAt    time.Time
	FirstRun     bool
	Sources      []SourceReport
	Observations int
	Counts       map[classify.Kind]int
	AlertsSent   int
	AlertsFailed int
}

// FailedSources returns how many sources ended in a failed traversal.
func (r *RunReport) FailedSources() int {
	n := 0
	for _, s := range r.Sources {
		if s.State == traversal.StateFailed {
			n++
		}
	}
	return n
}

// Runner executes crawl runs: traverse every source, classify each listing against
// the history, append the batch once, then deliver alerts.
type Runner struct {
	sources    []catalog.Source
	traverser  Traverser
	normalizer *normalize.Normalizer
	store      storage.HistoryStore
	notifier   notify.Notifier
	opts       Options

	nowFn   func() time.Time
	sleepFn func(ctx context.Context, d time.Duration) error
}

// NewRunner creates a Runner over sources in the given order.
func NewRunner(
	sources []catalog.Source,
	traverser Traverser,
	store storage.HistoryStore,
	notifier notify.Notifier,
	opts Options,
) *Runner {
	if opts.SourceDelayMax < opts.SourceDelayMin {
		opts.SourceDelayMax = opts.SourceDelayMin
	}
	if notifier == nil {
		notifier = notify.Log{}
	}
	return &Runner{
		sources:    sources,
		traverser:  traverser,
		normalizer: normalize.New(),
		store:      store,
		notifier:   notifier,
		opts:       opts,
		nowFn:      time.Now,
		sleepFn:    sleep,
	}
}

// Run performs one crawl run.
func (r *Runner) Run(ctx context.Context) (*RunReport, error) {
	runAt := r.nowFn().UTC().Truncate(time.Second)
	report := &RunReport{
		RunID:     uuid.New(),
		StartedAt: runAt,
		Counts:    make(map[classify.Kind]int, len(classify.Kinds)),
	}

	loaded, err := r.store.Load(ctx)
	if err != nil {
		return report, fmt.Errorf("%w: load history: %w", ErrRunFailed, err)
	}
	if len(loaded.Corrupt) > 0 {
		slog.Warn("[Runner] History contains unreadable rows", "run_id", report.RunID, "corrupt_rows", len(loaded.Corrupt))
	}

	classifier := classify.New(projection.Build(loaded.Observations), r.opts.Classify)
	report.FirstRun = classifier.FirstRun()

	slog.Info("[Runner] Starting run",
		"run_id", report.RunID,
		"sources", len(r.sources),
		"history_rows", len(loaded.Observations),
		"first_run", report.FirstRun,
	)

	var (
		batch  []v1.Observation
		alerts []classify.Decision
	)
	for i, src := range r.sources {
		if i > 0 {
			if err := r.sleepFn(ctx, r.delay()); err != nil {
				slog.Warn("[Runner] Run interrupted between sources", "run_id", report.RunID, "remaining", len(r.sources)-i)
				break
			}
		}

		sr := r.crawlSource(ctx, src, runAt, classifier, report, &batch, &alerts)
		report.Sources = append(report.Sources, sr)
	}
	report.Observations = len(batch)

	// The write happens before any alert so a failed run can be retried without
	// duplicate notifications.
	if err := r.store.Append(ctx, batch); err != nil {
		slog.Error("[Runner] Failed to persist observations", "run_id", report.RunID, "observations", len(batch), "error", err)
		return report, fmt.Errorf("%w: %w", ErrRunFailed, err)
	}

	for _, d := range alerts {
		if err := r.notifier.Deliver(ctx, notify.Alert{RunID: report.RunID.String(), Decision: d}); err != nil {
			report.AlertsFailed++
			slog.Error("[Runner] Alert delivery failed",
				"run_id", report.RunID,
				"kind", d.Kind,
				"identifier", d.Observation.Identifier,
				"error", err)
			continue
		}
		report.AlertsSent++
	}

	slog.Info("[Runner] Run complete",
		"run_id", report.RunID,
		"observations", report.Observations,
		"failed_sources", report.FailedSources(),
		"alerts_sent", report.AlertsSent,
		"alerts_failed", report.AlertsFailed,
	)
	return report, nil
}

func (r *Runner) crawlSource(
	ctx context.Context,
	src catalog.Source,
	runAt time.Time,
	classifier *classify.Classifier,
	report *RunReport,
	batch *[]v1.Observation,
	alerts *[]classify.Decision,
) SourceReport {
	res := r.traverser.Traverse(ctx, src)
	sr := SourceReport{
		Source:   src.Name,
		State:    res.State,
		Pages:    res.Pages,
		Listings: len(res.Listings),
		Err:      res.Err,
	}
	if res.Err != nil {
		slog.Warn("[Runner] Source traversal failed",
			"run_id", report.RunID,
			"source", src.Name,
			"pages", res.Pages,
			"listings", len(res.Listings),
			"error", res.Err)
	}

	for _, raw := range res.Listings {
		obs, err := r.normalizer.Normalize(raw, src, runAt)
		if err != nil {
			sr.Malformed++
			slog.Debug("[Runner] Skipping listing", "source", src.Name, "key", raw.Key(), "error", err)
			continue
		}

		d := classifier.Classify(obs)
		report.Counts[d.Kind]++
		*batch = append(*batch, obs)
		sr.Recorded++
		if d.Alert {
			*alerts = append(*alerts, d)
		}
	}

	slog.Info("[Runner] Source done",
		"run_id", report.RunID,
		"source", src.Name,
		"state", sr.State,
		"pages", sr.Pages,
		"recorded", sr.Recorded,
		"malformed", sr.Malformed)
	return sr
}

func (r *Runner) delay() time.Duration {
	span := r.opts.SourceDelayMax - r.opts.SourceDelayMin
	if span <= 0 {
		return r.opts.SourceDelayMin
	}
	return r.opts.SourceDelayMin + rand.N(span+1)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
