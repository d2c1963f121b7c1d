// Package scheduler implements the daemon's single control thread
// a fixed tick interval driving two periodic tasks,
// metadata_check and predownload, with jittered and quantized scheduling so
// a fleet of hosts restarted together doesn't stampede upstream.
package scheduler

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/urpmd/urpmd/internal/metrics"
)

// TaskID names a scheduled activity.
type TaskID string

const (
	TaskMetadataCheck TaskID = "metadata_check"
	TaskPredownload   TaskID = "predownload"
)

// StartupGrace is the fixed delay before the scheduler evaluates any task,
// letting the rest of the daemon finish initializing.
const StartupGrace = 10 * time.Second

// shutdownSlice bounds how long the sleep loop can take to notice a
// cancelled context: the sleep loop exits within one second of cancellation.
const shutdownSlice = 1 * time.Second

// taskState tracks one task's schedule.
type taskState struct {
	baseInterval time.Duration
	nextFire     time.Time
}

// Runner is invoked by the scheduler to execute a task. Implementations
// (freshness probe, pre-download engine) report success/failure via the
// returned error; a non-nil error only affects logging and metrics — the
// next-fire time is still advanced regardless of outcome.
type Runner func(ctx context.Context) error

// Scheduler runs metadata_check and predownload on independent jittered
// schedules from a single control thread (no overlap: one goroutine only).
type Scheduler struct {
	Tick                time.Duration
	MetadataInterval    time.Duration
	PredownloadInterval time.Duration
	StartupGrace        time.Duration
	RunMetadataCheck    Runner
	RunPredownload      Runner
	Log                 zerolog.Logger

	now func() time.Time
}

// New returns a Scheduler with the given tick and base intervals, using the
// production StartupGrace (10s); override the field directly for tests.
func New(tick, metadataInterval, predownloadInterval time.Duration, runMetadataCheck, runPredownload Runner, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		Tick:                tick,
		MetadataInterval:    metadataInterval,
		PredownloadInterval: predownloadInterval,
		StartupGrace:        StartupGrace,
		RunMetadataCheck:    runMetadataCheck,
		RunPredownload:      runPredownload,
		Log:                 log,
		now:                 time.Now,
	}
}

// Run blocks until ctx is cancelled, evaluating tasks every tick. It sleeps
// StartupGrace before the first evaluation.
func (s *Scheduler) Run(ctx context.Context) {
	if !s.sleep(ctx, s.StartupGrace) {
		return
	}

	start := s.now()
	tasks := map[TaskID]*taskState{
		TaskMetadataCheck: {
			baseInterval: s.MetadataInterval,
			nextFire:     start.Add(s.firstFireOffset(s.MetadataInterval)),
		},
		TaskPredownload: {
			baseInterval: s.PredownloadInterval,
			nextFire:     start.Add(s.firstFireOffset(s.PredownloadInterval)),
		},
	}

	for {
		if !s.sleep(ctx, s.Tick) {
			return
		}

		now := s.now()

		// metadata_check is always evaluated (and run, if due) before
		// predownload within the same tick.
		if due(tasks[TaskMetadataCheck], now) {
			s.runTask(ctx, TaskMetadataCheck, tasks[TaskMetadataCheck], now)
		}
		if due(tasks[TaskPredownload], now) {
			s.runTask(ctx, TaskPredownload, tasks[TaskPredownload], now)
		}

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func due(t *taskState, now time.Time) bool {
	return !now.Before(t.nextFire)
}

func (s *Scheduler) runTask(ctx context.Context, id TaskID, state *taskState, now time.Time) {
	var runner Runner
	switch id {
	case TaskMetadataCheck:
		runner = s.RunMetadataCheck
	case TaskPredownload:
		runner = s.RunPredownload
	}

	outcome := "success"
	if runner != nil {
		if err := runner(ctx); err != nil {
			outcome = "failure"
			s.Log.Error().Err(err).Str("task", string(id)).Msg("scheduled task failed")
		}
	}
	metrics.SchedulerRunsTotal.WithLabelValues(string(id), outcome).Inc()

	// Next-fire time is set regardless of outcome: jitter alone provides
	// dispersion, no backoff.
	state.nextFire = now.Add(s.jitterAndQuantize(state.baseInterval))
}

// jitterAndQuantize computes raw = base * (1 + ε), ε ~ U[-0.30, 0.30], then
// quantizes to whole ticks: ticks = max(1, round(raw/T)); delay = ticks*T.
func (s *Scheduler) jitterAndQuantize(base time.Duration) time.Duration {
	eps := -0.30 + rand.Float64()*0.60
	raw := float64(base) * (1 + eps)
	ticks := int64(math.Round(raw / float64(s.Tick)))
	if ticks < 1 {
		ticks = 1
	}
	return time.Duration(ticks) * s.Tick
}

// firstFireOffset draws the initial delay uniformly from
// [1, max(1, floor(0.5*base/T))] ticks.
func (s *Scheduler) firstFireOffset(base time.Duration) time.Duration {
	maxTicks := int64(math.Floor(0.5 * float64(base) / float64(s.Tick)))
	if maxTicks < 1 {
		maxTicks = 1
	}
	ticks := int64(1)
	if maxTicks > 1 {
		ticks = 1 + rand.Int63n(maxTicks)
	}
	return time.Duration(ticks) * s.Tick
}

// sleep blocks for d, slicing into shutdownSlice-sized chunks so a
// cancelled context is noticed within one second. Returns false if ctx was
// cancelled before d elapsed.
func (s *Scheduler) sleep(ctx context.Context, d time.Duration) bool {
	deadline := s.now().Add(d)
	for {
		remaining := deadline.Sub(s.now())
		if remaining <= 0 {
			return true
		}
		slice := shutdownSlice
		if remaining < slice {
			slice = remaining
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(slice):
		}
	}
}
