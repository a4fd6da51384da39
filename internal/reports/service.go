package reports

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"siete/report-portal/report-portal-backend/internal/reports/jasper"
	"siete/report-portal/report-portal-backend/pkg/pdf"
	"siete/report-portal/report-portal-backend/pkg/security"
	"siete/report-portal/report-portal-backend/pkg/workflows"
)

// Engine runs the external report engine.
type Engine interface {
	Run(ctx context.Context, inv jasper.Invocation) (string, error)
}

// ServiceConfig configures a Service
type ServiceConfig struct {
	TempDir         string
	DeleteDelay     time.Duration
	CompanyTemplate string
	// CompanyDatabase selects database-backed rendering for the company
	// report unless the template manifest says otherwise.
	CompanyDatabase bool
	// Database is passed to templates rendered against the database. Nil
	// disables database-backed rendering.
	Database *jasper.Database
}

// Service handles report generation business logic
type Service struct {
	catalog   *Catalog
	engine    Engine
	companies CompanyRepository
	config    ServiceConfig
	logger    *zap.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// NewService creates a new reports service. companies may be nil, in which
// case company ids are not checked against the database.
func NewService(catalog *Catalog, engine Engine, companies CompanyRepository, config ServiceConfig, logger *zap.Logger) *Service {
	return &Service{
		catalog:   catalog,
		engine:    engine,
		companies: companies,
		config:    config,
		logger:    logger.Named("reports"),
		pending:   make(map[string]*time.Timer),
	}
}

// ListTemplates returns the available templates
func (s *Service) ListTemplates() (*TemplateListResponse, error) {
	templates, err := s.catalog.List()
	if err != nil {
		return nil, err
	}
	return &TemplateListResponse{
		Reports: templates,
		Total:   len(templates),
	}, nil
}

// GenerateCompanyReport renders the company report for the date range
func (s *Service) GenerateCompanyReport(ctx context.Context, req CompanyReportRequest) (*GeneratedReport, error) {
	tracker := workflows.NewTracker()
	s.advance(tracker, workflows.StageValidate)

	if err := security.ValidateName("company id", req.CompanyID); err != nil {
		return nil, s.fail(tracker, err)
	}
	if req.From == "" || req.To == "" {
		return nil, s.fail(tracker, fmt.Errorf("%w: from and to are required", ErrValidation))
	}
	from, to, err := ParseDateRange(req.From, req.To)
	if err != nil {
		return nil, s.fail(tracker, err)
	}

	if s.companies != nil {
		exists, err := s.companies.CompanyExists(ctx, req.CompanyID)
		if err != nil {
			return nil, s.fail(tracker, err)
		}
		if !exists {
			return nil, s.fail(tracker, fmt.Errorf("%w: company %s", ErrNotFound, req.CompanyID))
		}
	}

	// A manifest entry for the company template overrides the configured default.
	useDatabase := s.config.CompanyDatabase
	spec, hasSpec, err := s.catalog.Spec(s.config.CompanyTemplate)
	if err != nil {
		return nil, s.fail(tracker, err)
	}
	if hasSpec {
		useDatabase = spec.Database
	}

	var params jasper.Params
	params.Set(ParamFrom, from.Format(DateLayout))
	params.Set(ParamTo, to.Format(DateLayout))
	params.Set(ParamCompanyID, req.CompanyID)

	name := fmt.Sprintf("%s_%s", s.config.CompanyTemplate, req.CompanyID)
	return s.generate(ctx, tracker, ReportRequest{
		Template:     s.config.CompanyTemplate,
		Params:       params,
		UseDatabase:  useDatabase,
		OutputName:   name,
		DownloadName: name + ".pdf",
	})
}

// GenerateReport renders any template with the given query parameters.
// The template must exist before its parameters are looked at. Parameters
// are forwarded sorted by key; repeated keys use the first value.
func (s *Service) GenerateReport(ctx context.Context, templateName string, query map[string][]string) (*GeneratedReport, error) {
	tracker := workflows.NewTracker()
	s.advance(tracker, workflows.StageValidate)

	templatePath, err := s.catalog.Resolve(templateName)
	if err != nil {
		return nil, s.fail(tracker, err)
	}

	spec, hasSpec, err := s.catalog.Spec(templateName)
	if err != nil {
		return nil, s.fail(tracker, err)
	}

	keys := make([]string, 0, len(query))
	for key := range query {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var params jasper.Params
	for _, key := range keys {
		if err := security.ValidateName("parameter name", key); err != nil {
			return nil, s.fail(tracker, err)
		}
		if hasSpec && !spec.Allows(key) {
			return nil, s.fail(tracker, fmt.Errorf("%w: parameter %s is not accepted by %s", ErrValidation, key, templateName))
		}
		var value string
		if values := query[key]; len(values) > 0 {
			value = values[0]
		}
		if err := security.ValidateValue(key, value); err != nil {
			return nil, s.fail(tracker, err)
		}
		params.Set(key, value)
	}
	if hasSpec {
		for _, required := range spec.Required {
			if v, ok := params.Get(required); !ok || v == "" {
				return nil, s.fail(tracker, fmt.Errorf("%w: parameter %s is required", ErrValidation, required))
			}
		}
	}

	return s.generate(ctx, tracker, ReportRequest{
		Template:     templateName,
		TemplatePath: templatePath,
		Params:       params,
		UseDatabase:  hasSpec && spec.Database,
		OutputName:   templateName,
		DownloadName: templateName + ".pdf",
	})
}

// generate runs the resolve, invoke and verify stages for a validated request.
func (s *Service) generate(ctx context.Context, tracker *workflows.Tracker, req ReportRequest) (*GeneratedReport, error) {
	start := time.Now()

	s.advance(tracker, workflows.StageResolve)
	templatePath := req.TemplatePath
	if templatePath == "" {
		var err error
		if templatePath, err = s.catalog.Resolve(req.Template); err != nil {
			return nil, s.fail(tracker, err)
		}
	}

	s.advance(tracker, workflows.StageInvoke)
	inv := jasper.Invocation{
		TemplatePath: templatePath,
		OutputPath:   s.outputPath(req.OutputName),
		Params:       req.Params,
	}
	if req.UseDatabase {
		inv.Database = s.config.Database
	}

	artifactPath, err := s.engine.Run(ctx, inv)
	if err != nil {
		s.removeArtifact(inv.ArtifactPath())
		return nil, s.fail(tracker, err)
	}

	s.advance(tracker, workflows.StageVerify)
	artifact, err := pdf.Verify(artifactPath)
	if err != nil {
		s.removeArtifact(artifactPath)
		return nil, s.fail(tracker, err)
	}

	elapsed := time.Since(start)
	s.logger.Info("Report generated",
		zap.String("template", req.Template),
		zap.String("path", artifact.Path),
		zap.Int64("size", artifact.Size),
		zap.Duration("elapsed", elapsed))

	return &GeneratedReport{
		Template:     req.Template,
		Path:         artifact.Path,
		DownloadName: req.DownloadName,
		Size:         artifact.Size,
		Elapsed:      elapsed,
		Tracker:      tracker,
	}, nil
}

// advance moves tracker to stage. A rejected transition is a programming
// error; it is logged and the request carries on.
func (s *Service) advance(tracker *workflows.Tracker, stage workflows.Stage) {
	if err := tracker.Advance(stage); err != nil {
		s.logger.Error("Unexpected generation stage transition", zap.Error(err))
	}
}

// fail marks the request failed and logs the stage it failed in.
func (s *Service) fail(tracker *workflows.Tracker, err error) error {
	err = tracker.Fail(err)
	s.logger.Debug("Report generation failed",
		zap.String("stage", string(tracker.FailedAt())),
		zap.Error(err))
	return err
}

// outputPath returns a unique artifact base path inside the temp directory.
func (s *Service) outputPath(base string) string {
	name := fmt.Sprintf("%s_%d_%s", base, time.Now().UnixMilli(), uuid.NewString()[:8])
	return filepath.Join(s.config.TempDir, name)
}

// ScheduleDeletion removes path after the configured delay. Scheduling the
// same path twice keeps the first timer.
func (s *Service) ScheduleDeletion(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending == nil {
		// Shut down; delete right away.
		go s.removeArtifact(path)
		return
	}
	if _, ok := s.pending[path]; ok {
		return
	}
	s.pending[path] = time.AfterFunc(s.config.DeleteDelay, func() {
		s.mu.Lock()
		delete(s.pending, path)
		s.mu.Unlock()
		s.removeArtifact(path)
	})
}

// PendingDeletions returns the number of scheduled deletions.
func (s *Service) PendingDeletions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// FlushDeletions stops every pending timer and deletes the files now. Later
// calls to ScheduleDeletion delete immediately.
func (s *Service) FlushDeletions() int {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	flushed := 0
	for path, timer := range pending {
		if timer.Stop() {
			s.removeArtifact(path)
			flushed++
		}
	}
	if flushed > 0 {
		s.logger.Info("Flushed pending deletions", zap.Int("count", flushed))
	}
	return flushed
}

func (s *Service) removeArtifact(path string) {
	if err := os.Remove(path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("Failed to delete temporary report",
				zap.String("path", path),
				zap.Error(err))
		}
		return
	}
	s.logger.Debug("Deleted temporary report", zap.String("path", path))
}

// ParseDateRange parses from and to in DateLayout and checks from <= to.
func ParseDateRange(from, to string) (time.Time, time.Time, error) {
	fromDate, err := time.Parse(DateLayout, from)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: from %q", ErrInvalidDate, from)
	}
	toDate, err := time.Parse(DateLayout, to)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: to %q", ErrInvalidDate, to)
	}
	if fromDate.After(toDate) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: from %s is after to %s", ErrInvalidDateRange, from, to)
	}
	return fromDate, toDate, nil
}
