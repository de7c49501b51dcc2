package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tmbmaps/tmbmaps/internal/transit"
)

// Transit is the upstream surface the probes call. *tmb.Client implements it.
type Transit interface {
	FetchSubwayLines(ctx context.Context) ([]transit.SubwayLine, error)
	FetchStationsFromSubwayLine(ctx context.Context, lineCode int) ([]transit.SubwayStation, error)
	FetchBusStops(ctx context.Context) ([]transit.BusStop, error)
	FetchTimesFromBusStop(ctx context.Context, stopCode int) ([]transit.BusStopTimesContent, error)
}

// ProbeJob calls the configured TMB endpoints and reports the outcome.
// Results are not retained; the client records provider health as a side effect.
type ProbeJob struct {
	config  ProbeConfig
	logger  zerolog.Logger
	transit Transit

	mu      sync.RWMutex
	metrics ProbeMetrics
}

// ProbeMetrics tracks probe job statistics.
type ProbeMetrics struct {
	TotalRuns        int64
	SuccessfulProbes int64
	FailedProbes     int64
	EmptyProbes      int64

	LastRunAt       time.Time
	LastRunDuration time.Duration
	TotalDuration   time.Duration
}

// ProbeJobConfig holds configuration for creating a ProbeJob.
type ProbeJobConfig struct {
	Config  ProbeConfig
	Logger  zerolog.Logger
	Transit Transit
}

// NewProbeJob creates a new probe job.
func NewProbeJob(cfg ProbeJobConfig) *ProbeJob {
	return &ProbeJob{
		config:  cfg.Config.withDefaults(),
		logger:  cfg.Logger.With().Str("component", "probe").Logger(),
		transit: cfg.Transit,
	}
}

// withTargets returns a job sharing this job's transit and logger that
// probes targets instead. Its metrics are separate.
func (j *ProbeJob) withTargets(targets []ProbeTarget) *ProbeJob {
	cfg := j.config
	cfg.Targets = targets
	return &ProbeJob{config: cfg, logger: j.logger, transit: j.transit}
}

// ProbeResult contains the result of one probe run.
type ProbeResult struct {
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
	Total      int
	Successful int
	Failed     int

	// Empty counts successful calls that returned no records.
	Empty int

	Errors []ProbeError
}

// ProbeError describes a failed probe call.
type ProbeError struct {
	Target ProbeTarget
	Error  string
}

// Healthy reports whether more probes succeeded than failed.
func (r *ProbeResult) Healthy() bool {
	return r.Successful > r.Failed
}

type probeOutcome struct {
	target ProbeTarget
	items  int
	err    error
}

// Run probes every configured target once.
func (j *ProbeJob) Run(ctx context.Context) *ProbeResult {
	startTime := time.Now()
	targets := j.config.Targets
	result := &ProbeResult{
		StartTime: startTime,
		Total:     len(targets),
	}

	j.logger.Debug().
		Int("targets", len(targets)).
		Int("concurrency", j.config.Concurrency).
		Msg("starting probe run")

	targetsChan := make(chan ProbeTarget, len(targets))
	outcomes := make(chan probeOutcome, len(targets))

	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.probeWorker(ctx, targetsChan, outcomes)
		}()
	}

	for _, t := range targets {
		targetsChan <- t
	}
	close(targetsChan)

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	for o := range outcomes {
		switch {
		case o.err != nil:
			result.Failed++
			result.Errors = append(result.Errors, ProbeError{Target: o.target, Error: o.err.Error()})
		case o.items == 0:
			result.Successful++
			result.Empty++
		default:
			result.Successful++
		}
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)

	j.updateMetrics(result)

	event := j.logger.Info()
	if result.Failed > 0 {
		event = j.logger.Warn()
	}
	event.
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Int("empty", result.Empty).
		Msg("probe run completed")

	return result
}

// RunEvery runs the job immediately and then on every tick of interval until
// ctx is done.
func (j *ProbeJob) RunEvery(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.Run(ctx)
	for {
		select {
		case <-ctx.Done():
			j.logger.Debug().Msg("probe loop stopped")
			return
		case <-ticker.C:
			j.Run(ctx)
		}
	}
}

func (j *ProbeJob) probeWorker(ctx context.Context, targets <-chan ProbeTarget, outcomes chan<- probeOutcome) {
	for target := range targets {
		// Targets left when the run is cancelled count as failed.
		if err := ctx.Err(); err != nil {
			outcomes <- probeOutcome{target: target, err: err}
			continue
		}
		items, err := j.probe(ctx, target)
		outcomes <- probeOutcome{target: target, items: items, err: err}
	}
}

func (j *ProbeJob) probe(ctx context.Context, target ProbeTarget) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	switch target.Operation {
	case OpSubwayLines:
		lines, err := j.transit.FetchSubwayLines(ctx)
		return len(lines), err
	case OpLineStations:
		stations, err := j.transit.FetchStationsFromSubwayLine(ctx, target.Code)
		return len(stations), err
	case OpBusStops:
		stops, err := j.transit.FetchBusStops(ctx)
		return len(stops), err
	case OpBusStopTimes:
		times, err := j.transit.FetchTimesFromBusStop(ctx, target.Code)
		return len(times), err
	default:
		return 0, fmt.Errorf("unknown probe operation %q", target.Operation)
	}
}

func (j *ProbeJob) updateMetrics(result *ProbeResult) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.metrics.TotalRuns++
	j.metrics.SuccessfulProbes += int64(result.Successful)
	j.metrics.FailedProbes += int64(result.Failed)
	j.metrics.EmptyProbes += int64(result.Empty)
	j.metrics.LastRunAt = result.EndTime
	j.metrics.LastRunDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *ProbeJob) GetMetrics() ProbeMetrics {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.metrics
}

// MetricsSnapshot returns the current metrics as a map for status output.
func (j *ProbeJob) MetricsSnapshot() map[string]any {
	m := j.GetMetrics()
	return map[string]any{
		"total_runs":        m.TotalRuns,
		"successful_probes": m.SuccessfulProbes,
		"failed_probes":     m.FailedProbes,
		"empty_probes":      m.EmptyProbes,
		"last_run_at":       m.LastRunAt,
		"last_run_duration": m.LastRunDuration.String(),
		"total_duration":    m.TotalDuration.String(),
	}
}
