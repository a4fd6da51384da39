// Package cleanup removes stale report artifacts from the temp directory.
package cleanup

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

var (
	sweepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reports_reaper_sweeps_total",
		Help: "Temp directory sweeps performed",
	})

	deletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reports_reaper_deleted_total",
		Help: "Stale report artifacts removed by the reaper",
	})

	errorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reports_reaper_errors_total",
		Help: "Files the reaper failed to inspect or remove",
	})

	lastSweep = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "reports_reaper_last_sweep_timestamp_seconds",
		Help: "Unix time of the last completed sweep",
	})
)

// Config configures a Reaper
type Config struct {
	Dir      string
	Interval time.Duration
	MaxAge   time.Duration
}

// SweepResult summarises one pass over the temp directory
type SweepResult struct {
	Scanned  int           `json:"scanned"`
	Deleted  int           `json:"deleted"`
	Errors   int           `json:"errors"`
	Duration time.Duration `json:"duration"`
}

// Reaper periodically deletes files older than MaxAge from Dir
type Reaper struct {
	cron   *cron.Cron
	config Config
	logger *zap.Logger

	mu      sync.Mutex
	running bool

	sweepMu sync.Mutex
}

// NewReaper creates a new reaper
func NewReaper(config Config, logger *zap.Logger) *Reaper {
	logger = logger.Named("reaper")
	cronLogger := cron.PrintfLogger(zap.NewStdLog(logger))
	return &Reaper{
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		config: config,
		logger: logger,
	}
}

// Start sweeps once and schedules a sweep every Interval
func (r *Reaper) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return fmt.Errorf("reaper already running")
	}
	if r.config.Interval <= 0 {
		return fmt.Errorf("reaper interval must be positive")
	}

	spec := fmt.Sprintf("@every %s", r.config.Interval)
	if _, err := r.cron.AddFunc(spec, func() { r.Sweep(time.Now()) }); err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}

	r.logger.Info("Starting temp file reaper",
		zap.String("dir", r.config.Dir),
		zap.Duration("interval", r.config.Interval),
		zap.Duration("max_age", r.config.MaxAge))

	r.Sweep(time.Now())
	r.cron.Start()
	r.running = true
	return nil
}

// Stop stops the schedule and waits for a running sweep to finish
func (r *Reaper) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return
	}

	r.logger.Info("Stopping temp file reaper")
	ctx := r.cron.Stop()
	<-ctx.Done()

	r.running = false
}

// Sweep deletes regular files in Dir whose modification time is more than
// MaxAge before now. Per file failures are logged and counted.
func (r *Reaper) Sweep(now time.Time) SweepResult {
	r.sweepMu.Lock()
	defer r.sweepMu.Unlock()

	start := time.Now()
	var result SweepResult
	defer func() {
		result.Duration = time.Since(start)
		sweepsTotal.Inc()
		deletedTotal.Add(float64(result.Deleted))
		errorsTotal.Add(float64(result.Errors))
		lastSweep.SetToCurrentTime()
	}()

	entries, err := os.ReadDir(r.config.Dir)
	if err != nil {
		result.Errors++
		r.logger.Error("Failed to read temp directory",
			zap.String("dir", r.config.Dir),
			zap.Error(err))
		return result
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		result.Scanned++

		info, err := entry.Info()
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				result.Errors++
				r.logger.Warn("Failed to stat temp file", zap.String("file", entry.Name()), zap.Error(err))
			}
			continue
		}
		if !info.Mode().IsRegular() || now.Sub(info.ModTime()) <= r.config.MaxAge {
			continue
		}

		path := filepath.Join(r.config.Dir, entry.Name())
		if err := os.Remove(path); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				result.Errors++
				r.logger.Warn("Failed to delete stale temp file", zap.String("path", path), zap.Error(err))
			}
			continue
		}
		result.Deleted++
		r.logger.Debug("Deleted stale temp file",
			zap.String("path", path),
			zap.Duration("age", now.Sub(info.ModTime())))
	}

	if result.Deleted > 0 || result.Errors > 0 {
		r.logger.Info("Temp directory swept",
			zap.Int("scanned", result.Scanned),
			zap.Int("deleted", result.Deleted),
			zap.Int("errors", result.Errors))
	}
	return result
}
