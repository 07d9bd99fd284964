package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/swasthyasetu/swasthyasetu/internal/geo"
	"github.com/swasthyasetu/swasthyasetu/internal/routing"
)

// RouteSelector is satisfied by routing.Selector.
type RouteSelector interface {
	SelectRoute(ctx context.Context, origin, destination geo.Coordinate) (*routing.Selection, error)
}

// WarmupJob prefetches routes through the selector so its cache is hot.
type WarmupJob struct {
	config   WarmupConfig
	selector RouteSelector
	logger   zerolog.Logger

	metrics *WarmupMetrics
}

// WarmupMetrics tracks warm-up job statistics.
type WarmupMetrics struct {
	mu sync.RWMutex

	TotalRuns  int64
	Successful int64
	Failed     int64
	NoRoute    int64

	LastRunAt       time.Time
	LastRunDuration time.Duration
	TotalDuration   time.Duration
}

// WarmupJobConfig holds configuration for creating a WarmupJob.
type WarmupJobConfig struct {
	Config   WarmupConfig
	Selector RouteSelector // required
	Logger   zerolog.Logger
}

// NewWarmupJob creates a new warm-up job.
func NewWarmupJob(cfg WarmupJobConfig) *WarmupJob {
	config := cfg.Config
	if len(config.Targets) == 0 {
		config.Targets = DefaultWarmupTargets()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 3
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}

	return &WarmupJob{
		config:   config,
		selector: cfg.Selector,
		logger:   cfg.Logger,
		metrics:  &WarmupMetrics{},
	}
}

// WarmupResult contains the result of one run.
type WarmupResult struct {
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
	TotalPairs int
	Successful int
	NoRoute    int
	Failed     int
	Errors     []WarmupError
}

// WarmupError records a failed lookup.
type WarmupError struct {
	Target      string
	Destination geo.Coordinate
	Error       string
}

// Run performs every lookup once. A missing route is counted separately
// from a provider failure; neither stops the run.
func (j *WarmupJob) Run(ctx context.Context) *WarmupResult {
	startTime := time.Now()
	pairs := j.config.Pairs()
	result := &WarmupResult{
		StartTime:  startTime,
		TotalPairs: len(pairs),
	}

	j.logger.Info().
		Int("total_pairs", result.TotalPairs).
		Int("concurrency", j.config.Concurrency).
		Msg("starting route warm-up")

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(j.config.Concurrency)
	for _, pair := range pairs {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			err := j.warmPair(ctx, pair)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				result.Successful++
			case errors.Is(err, routing.ErrNoRouteFound):
				result.NoRoute++
			default:
				result.Failed++
				result.Errors = append(result.Errors, WarmupError{
					Target:      pair.Target,
					Destination: pair.Destination,
					Error:       err.Error(),
				})
			}
			// Lookup failures never abort the run.
			return nil
		})
	}
	_ = g.Wait()

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)

	j.updateMetrics(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("no_route", result.NoRoute).
		Int("failed", result.Failed).
		Msg("route warm-up completed")

	return result
}

func (j *WarmupJob) warmPair(ctx context.Context, pair Pair) error {
	if j.selector == nil {
		return nil
	}

	pairCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	_, err := j.selector.SelectRoute(pairCtx, pair.Origin, pair.Destination)
	if err != nil {
		j.logger.Debug().
			Err(err).
			Str("target", pair.Target).
			Str("destination", pair.Destination.String()).
			Msg("route warm-up lookup failed")
	}
	return err
}

// Start runs the job now and then every interval until ctx is done.
func (j *WarmupJob) Start(ctx context.Context, interval time.Duration) {
	j.Run(ctx)
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.Run(ctx)
		}
	}
}

func (j *WarmupJob) updateMetrics(result *WarmupResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	j.metrics.Successful += int64(result.Successful)
	j.metrics.NoRoute += int64(result.NoRoute)
	j.metrics.Failed += int64(result.Failed)
	j.metrics.LastRunAt = result.EndTime
	j.metrics.LastRunDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *WarmupJob) GetMetrics() WarmupMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return WarmupMetrics{
		TotalRuns:       j.metrics.TotalRuns,
		Successful:      j.metrics.Successful,
		Failed:          j.metrics.Failed,
		NoRoute:         j.metrics.NoRoute,
		LastRunAt:       j.metrics.LastRunAt,
		LastRunDuration: j.metrics.LastRunDuration,
		TotalDuration:   j.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns the current metrics as a map.
func (j *WarmupJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_runs":        m.TotalRuns,
		"successful":        m.Successful,
		"no_route":          m.NoRoute,
		"failed":            m.Failed,
		"last_run_at":       m.LastRunAt,
		"last_run_duration": m.LastRunDuration.String(),
		"total_duration":    m.TotalDuration.String(),
	}
}
