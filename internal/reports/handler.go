package reports

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"siete/report-portal/report-portal-backend/internal/reports/jasper"
	"siete/report-portal/report-portal-backend/pkg/workflows"
)

// ToolChecker reports whether the report engine is installed
type ToolChecker interface {
	Check(ctx context.Context) jasper.ToolStatus
	// Invalidate drops any cached status so the next Check runs again.
	Invalidate()
}

// Handler handles HTTP requests for report generation
type Handler struct {
	service *Service
	checker ToolChecker
	limiter gin.HandlerFunc
	logger  *zap.Logger
}

// NewHandler creates a new reports handler. limiter guards the generation
// routes and may be nil.
func NewHandler(service *Service, checker ToolChecker, limiter gin.HandlerFunc, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		checker: checker,
		limiter: limiter,
		logger:  logger.Named("http"),
	}
}

// RegisterRoutes registers reporting routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	reports := router.Group("/reports", RequestLogger(h.logger))
	{
		reports.GET("/available", h.listTemplates)
		reports.GET("/status", h.toolStatus)

		generate := reports.Group("", RequireTool(h.checker))
		if h.limiter != nil {
			generate.Use(h.limiter)
		}
		generate.Use(ValidateDateRange())
		{
			generate.GET("/company/:companyId", h.companyReport)
			generate.GET("/:templateName", h.genericReport)
		}
	}
}

// listTemplates handles GET /api/v1/reports/available
func (h *Handler) listTemplates(c *gin.Context) {
	response, err := h.service.ListTemplates()
	if err != nil {
		h.logger.Error("Failed to list templates", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list reports", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, response)
}

// toolStatus handles GET /api/v1/reports/status. refresh=true skips the
// cached result.
func (h *Handler) toolStatus(c *gin.Context) {
	if c.Query("refresh") == "true" {
		h.checker.Invalidate()
	}
	status := h.checker.Check(c.Request.Context())
	if !status.Installed {
		c.JSON(http.StatusServiceUnavailable, status)
		return
	}
	c.JSON(http.StatusOK, status)
}

// companyReport handles GET /api/v1/reports/company/:companyId
func (h *Handler) companyReport(c *gin.Context) {
	report, err := h.service.GenerateCompanyReport(c.Request.Context(), CompanyReportRequest{
		CompanyID: c.Param("companyId"),
		From:      c.Query("from"),
		To:        c.Query("to"),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.sendReport(c, report)
}

// genericReport handles GET /api/v1/reports/:templateName
func (h *Handler) genericReport(c *gin.Context) {
	report, err := h.service.GenerateReport(c.Request.Context(), c.Param("templateName"), c.Request.URL.Query())
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.sendReport(c, report)
}

// sendReport streams the artifact and schedules its deletion. Errors after
// the headers are written abort the connection.
func (h *Handler) sendReport(c *gin.Context, report *GeneratedReport) {
	defer h.service.ScheduleDeletion(report.Path)

	tracker := report.Tracker
	h.advance(tracker, workflows.StageStream)

	file, err := os.Open(report.Path)
	if err != nil {
		h.respondError(c, h.fail(tracker, fmt.Errorf("open report: %w", err)))
		return
	}
	defer file.Close()

	c.Header("Content-Type", "application/pdf")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.DownloadName))
	c.Header("Content-Length", strconv.FormatInt(report.Size, 10))
	c.Status(http.StatusOK)

	written, err := io.Copy(c.Writer, file)
	if err != nil {
		err = h.fail(tracker, err)
		h.logger.Error("Failed to send report",
			zap.String("template", report.Template),
			zap.Int64("written", written),
			zap.Error(err))
		if !c.Writer.Written() {
			c.Writer.Header().Del("Content-Type")
			c.Writer.Header().Del("Content-Disposition")
			c.Writer.Header().Del("Content-Length")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send the PDF file", "details": err.Error()})
			return
		}
		c.Abort()
		return
	}

	h.advance(tracker, workflows.StageCleanup)
	h.logger.Info("Report sent",
		zap.String("template", report.Template),
		zap.String("filename", report.DownloadName),
		zap.Int64("bytes", written))
}

// advance moves a report's tracker along. Reports built outside the service
// may have none.
func (h *Handler) advance(tracker *workflows.Tracker, stage workflows.Stage) {
	if tracker == nil {
		return
	}
	if err := tracker.Advance(stage); err != nil {
		h.logger.Error("Unexpected delivery stage transition", zap.Error(err))
	}
}

func (h *Handler) fail(tracker *workflows.Tracker, err error) error {
	if tracker == nil {
		return err
	}
	return tracker.Fail(err)
}

func (h *Handler) respondError(c *gin.Context, err error) {
	if errors.Is(err, jasper.ErrToolUnavailable) {
		// The binary went away since the last check.
		h.checker.Invalidate()
	}
	status, body := errorStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Report request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
	} else {
		h.logger.Warn("Report request rejected", zap.String("path", c.Request.URL.Path), zap.Error(err))
	}
	c.AbortWithStatusJSON(status, body)
}
