package jasper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Sentinel errors returned by Run.
var (
	// ErrToolUnavailable is returned when the engine binary cannot be started.
	ErrToolUnavailable = errors.New("report engine unavailable")

	// ErrTimeout is returned when the engine exceeds the configured timeout.
	ErrTimeout = errors.New("report generation timed out")

	// ErrGenerationFailed is returned when the engine exits with an error.
	ErrGenerationFailed = errors.New("report generation failed")
)

const (
	defaultWaitDelay = 2 * time.Second
	maxStderrDetail  = 2048
)

// RunnerConfig configures a Runner
type RunnerConfig struct {
	Path          string
	Timeout       time.Duration
	MaxConcurrent int
	// StrictStderr treats stderr output without InfoMarker as a failure even
	// when the engine exits with status zero.
	StrictStderr bool
	InfoMarker   string
}

// Runner executes the report engine.
type Runner struct {
	config RunnerConfig
	slots  *semaphore.Weighted
	logger *zap.Logger
}

// NewRunner creates a new engine runner
func NewRunner(config RunnerConfig, logger *zap.Logger) *Runner {
	if config.InfoMarker == "" {
		config.InfoMarker = "INFO"
	}
	r := &Runner{
		config: config,
		logger: logger.Named("jasper"),
	}
	if config.MaxConcurrent > 0 {
		r.slots = semaphore.NewWeighted(int64(config.MaxConcurrent))
	}
	return r
}

// Path returns the configured engine executable.
func (r *Runner) Path() string {
	return r.config.Path
}

// Run executes the engine for inv and returns the path of the expected
// artifact. A nil error does not guarantee that the file exists.
func (r *Runner) Run(ctx context.Context, inv Invocation) (string, error) {
	// The timeout covers the wait for a slot and the run itself.
	runCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	if r.slots != nil {
		if err := r.slots.Acquire(runCtx, 1); err != nil {
			if ctx.Err() != nil {
				return "", fmt.Errorf("waiting for engine slot: %w", ctx.Err())
			}
			engineRunsTotal.WithLabelValues("timeout").Inc()
			r.logger.Warn("Timed out waiting for an engine slot",
				zap.String("template", inv.TemplatePath),
				zap.Duration("timeout", r.config.Timeout))
			return "", fmt.Errorf("%w after %s waiting for an engine slot", ErrTimeout, r.config.Timeout)
		}
		defer r.slots.Release(1)
	}

	engineInFlight.Inc()
	defer engineInFlight.Dec()

	args := BuildArgs(inv)
	cmd := exec.CommandContext(runCtx, r.config.Path, args...)
	cmd.Env = append(os.Environ(), "JAVA_TOOL_OPTIONS=-Dfile.encoding=UTF-8")
	cmd.WaitDelay = defaultWaitDelay
	configureProcess(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Debug("Running report engine",
		zap.String("path", r.config.Path),
		zap.Strings("args", Redact(args)))

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	outcome, err := r.classify(ctx, runCtx, err, stderr.String())
	engineRunsTotal.WithLabelValues(outcome).Inc()
	engineDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())

	if err != nil {
		r.logger.Error("Report engine failed",
			zap.String("template", inv.TemplatePath),
			zap.String("outcome", outcome),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return "", err
	}

	r.logger.Info("Report engine finished",
		zap.String("template", inv.TemplatePath),
		zap.Duration("elapsed", elapsed),
		zap.Int("stdout_bytes", stdout.Len()))

	return inv.ArtifactPath(), nil
}

// classify maps the result of cmd.Run to an outcome label and an error.
// The exit status is the primary signal; stderr only matters in strict mode.
func (r *Runner) classify(parent, runCtx context.Context, runErr error, stderr string) (string, error) {
	if parent.Err() != nil {
		return "canceled", fmt.Errorf("report generation canceled: %w", parent.Err())
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return "timeout", fmt.Errorf("%w after %s", ErrTimeout, r.config.Timeout)
	}

	if runErr != nil {
		if errors.Is(runErr, exec.ErrNotFound) || errors.Is(runErr, fs.ErrNotExist) || errors.Is(runErr, fs.ErrPermission) {
			return "unavailable", fmt.Errorf("%w: %s: %v", ErrToolUnavailable, r.config.Path, runErr)
		}
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			return "failed", fmt.Errorf("%w: exit status %d: %s", ErrGenerationFailed, exitErr.ExitCode(), detail(stderr))
		}
		return "failed", fmt.Errorf("%w: %v", ErrGenerationFailed, runErr)
	}

	if r.config.StrictStderr {
		trimmed := strings.TrimSpace(stderr)
		if trimmed != "" && !strings.Contains(trimmed, r.config.InfoMarker) {
			return "failed", fmt.Errorf("%w: %s", ErrGenerationFailed, detail(trimmed))
		}
	}
	return "success", nil
}

func detail(stderr string) string {
	stderr = strings.TrimSpace(stderr)
	if stderr == "" {
		return "no error output"
	}
	if len(stderr) > maxStderrDetail {
		return stderr[:maxStderrDetail] + "..."
	}
	return stderr
}
