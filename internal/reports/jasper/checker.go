package jasper

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
)

const versionCheckTimeout = 10 * time.Second

// ToolStatus reports whether the engine answered a version query.
type ToolStatus struct {
	Installed bool      `json:"installed"`
	Version   string    `json:"version,omitempty"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Checker queries the engine with --version and caches the answer, since
// every query starts a JVM.
type Checker struct {
	path   string
	cache  *expirable.LRU[string, ToolStatus]
	logger *zap.Logger
}

// NewChecker creates a checker for the engine at path. A non-positive ttl
// disables caching.
func NewChecker(path string, ttl time.Duration, logger *zap.Logger) *Checker {
	c := &Checker{
		path:   path,
		logger: logger.Named("jasper.checker"),
	}
	if ttl > 0 {
		c.cache = expirable.NewLRU[string, ToolStatus](4, nil, ttl)
	}
	return c
}

// Check returns the engine status, probing the binary on a cache miss.
func (c *Checker) Check(ctx context.Context) ToolStatus {
	if c.cache != nil {
		if status, ok := c.cache.Get(c.path); ok {
			toolChecksTotal.WithLabelValues("cached").Inc()
			return status
		}
	}

	status := c.queryVersion(ctx)
	if status.Installed {
		toolChecksTotal.WithLabelValues("installed").Inc()
	} else {
		toolChecksTotal.WithLabelValues("missing").Inc()
		c.logger.Warn("Report engine is not available",
			zap.String("path", c.path),
			zap.String("error", status.Error))
	}

	if c.cache != nil && ctx.Err() == nil {
		c.cache.Add(c.path, status)
	}
	return status
}

// Invalidate drops the cached status.
func (c *Checker) Invalidate() {
	if c.cache != nil {
		c.cache.Remove(c.path)
	}
}

func (c *Checker) queryVersion(ctx context.Context) ToolStatus {
	ctx, cancel := context.WithTimeout(ctx, versionCheckTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.path, "--version")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	status := ToolStatus{CheckedAt: time.Now().UTC()}
	if err := cmd.Run(); err != nil {
		status.Error = err.Error()
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			status.Error += ": " + detail(msg)
		}
		return status
	}

	status.Installed = true
	status.Version = firstLine(stdout.String())
	if status.Version == "" {
		status.Version = firstLine(stderr.String())
	}
	return status
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
