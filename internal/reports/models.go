package reports

import (
	"time"

	"siete/report-portal/report-portal-backend/internal/reports/jasper"
	"siete/report-portal/report-portal-backend/pkg/workflows"
)

// DateLayout is the accepted format for date query parameters.
const DateLayout = "2006-01-02"

// Parameter names understood by the company report template.
const (
	ParamFrom      = "DESDE"
	ParamTo        = "HASTA"
	ParamCompanyID = "IDEMPRESA"
)

// TemplateInfo describes a compiled report template on disk
type TemplateInfo struct {
	Name        string `json:"name"`
	File        string `json:"file"`
	Path        string `json:"path"`
	Size        int64  `json:"size"`
	Description string `json:"description,omitempty"`
}

// TemplateListResponse is returned by the template listing endpoint
type TemplateListResponse struct {
	Reports []TemplateInfo `json:"reports"`
	Total   int            `json:"total"`
}

// CompanyReportRequest asks for the company report over a date range
type CompanyReportRequest struct {
	CompanyID string
	From      string
	To        string
}

// ReportRequest is a single engine run as seen by the service
type ReportRequest struct {
	Template string
	// TemplatePath is set when the template was resolved during validation.
	TemplatePath string
	Params       jasper.Params
	UseDatabase  bool
	// OutputName is the base of the temp file name and of the download name.
	OutputName   string
	DownloadName string
}

// GeneratedReport is a verified artifact ready to be streamed
type GeneratedReport struct {
	Template     string        `json:"template"`
	Path         string        `json:"path"`
	DownloadName string        `json:"download_name"`
	Size         int64         `json:"size"`
	Elapsed      time.Duration `json:"elapsed"`

	Tracker *workflows.Tracker `json:"-"`
}

// ErrorResponse is the JSON body of every failed request
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
