package reports

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reports_http_requests_total",
			Help: "Total HTTP requests served by the report API",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reports_http_request_duration_seconds",
			Help:    "Duration of HTTP requests served by the report API",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "route"},
	)

	rateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reports_http_rate_limited_total",
		Help: "Requests rejected by the generation rate limiter",
	})
)

const requestIDHeader = "X-Request-ID"

// Metrics records request counts and latencies labelled by route template,
// so path parameters do not inflate cardinality.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// RequestLogger logs every report request with its path parameters, query
// and outcome. A request id is taken from X-Request-ID or generated.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)

		params := make(map[string]string, len(c.Params))
		for _, p := range c.Params {
			params[p.Key] = p.Value
		}

		start := time.Now()
		logger.Info("Report request",
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Any("params", params),
			zap.String("query", c.Request.URL.RawQuery))

		c.Next()

		logger.Info("Report request completed",
			zap.String("request_id", requestID),
			zap.Int("status", c.Writer.Status()),
			zap.Int("bytes", c.Writer.Size()),
			zap.Duration("latency", time.Since(start)))
	}
}

// RequireTool rejects generation requests while the report engine is not
// installed.
func RequireTool(checker ToolChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := checker.Check(c.Request.Context())
		if !status.Installed {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":   "report engine is not configured correctly",
				"details": toolHint,
			})
			return
		}
		c.Next()
	}
}

// ValidateDateRange checks the from and to query parameters when both are
// present: each must be a YYYY-MM-DD date and from must not be after to.
func ValidateDateRange() gin.HandlerFunc {
	return func(c *gin.Context) {
		from, to := c.Query("from"), c.Query("to")
		if from != "" && to != "" {
			if _, _, err := ParseDateRange(from, to); err != nil {
				status, body := errorStatus(err)
				c.AbortWithStatusJSON(status, body)
				return
			}
		}
		c.Next()
	}
}

// RateLimit returns a token bucket limiter middleware allowing perSecond
// requests with the given burst. It returns nil when perSecond is zero.
func RateLimit(perSecond float64, burst int) gin.HandlerFunc {
	if perSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(perSecond), burst)
	return func(c *gin.Context) {
		if !limiter.Allow() {
			rateLimitedTotal.Inc()
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate limit exceeded",
				"details": "too many report requests, try again later",
			})
			return
		}
		c.Next()
	}
}
