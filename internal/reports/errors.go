package reports

import (
	"errors"
	"fmt"
	"net/http"

	"siete/report-portal/report-portal-backend/internal/reports/jasper"
	"siete/report-portal/report-portal-backend/pkg/pdf"
	"siete/report-portal/report-portal-backend/pkg/security"
)

var (
	// ErrValidation marks bad or missing request parameters.
	ErrValidation = errors.New("invalid request")

	// ErrNotFound marks a missing template or entity.
	ErrNotFound = errors.New("not found")

	// ErrInvalidDate and ErrInvalidDateRange refine ErrValidation for the
	// date query parameters.
	ErrInvalidDate      = fmt.Errorf("%w: invalid date format", ErrValidation)
	ErrInvalidDateRange = fmt.Errorf("%w: invalid date range", ErrValidation)
)

const toolHint = "Make sure JasperStarter is installed and JASPER_STARTER_PATH points to it"

// errorStatus maps a service error to an HTTP status and response body.
func errorStatus(err error) (int, ErrorResponse) {
	switch {
	case errors.Is(err, ErrInvalidDate):
		return http.StatusBadRequest, ErrorResponse{Error: "invalid date format", Details: "Use the YYYY-MM-DD format for dates"}
	case errors.Is(err, ErrInvalidDateRange):
		return http.StatusBadRequest, ErrorResponse{Error: "invalid date range", Details: "from must be on or before to"}
	case errors.Is(err, ErrValidation), errors.Is(err, security.ErrInvalidToken):
		return http.StatusBadRequest, ErrorResponse{Error: "invalid request parameters", Details: err.Error()}
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, ErrorResponse{Error: "not found", Details: err.Error()}
	case errors.Is(err, jasper.ErrToolUnavailable):
		return http.StatusInternalServerError, ErrorResponse{Error: "report engine is not configured correctly", Details: toolHint + ": " + err.Error()}
	case errors.Is(err, jasper.ErrTimeout):
		return http.StatusInternalServerError, ErrorResponse{Error: "report generation timed out", Details: err.Error()}
	case errors.Is(err, jasper.ErrGenerationFailed), errors.Is(err, pdf.ErrNoOutput), errors.Is(err, pdf.ErrNotPDF):
		return http.StatusInternalServerError, ErrorResponse{Error: "failed to generate report", Details: err.Error()}
	default:
		return http.StatusInternalServerError, ErrorResponse{Error: "failed to generate report", Details: err.Error()}
	}
}
