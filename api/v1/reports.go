package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"siete/report-portal/report-portal-backend/internal/config"
	"siete/report-portal/report-portal-backend/internal/reports"
	"siete/report-portal/report-portal-backend/internal/reports/jasper"
)

// ReportsAPI holds the reports API dependencies
type ReportsAPI struct {
	Handler *reports.Handler
	Service *reports.Service
	Catalog *reports.Catalog
	Runner  *jasper.Runner
	Checker *jasper.Checker
}

// SetupReportsAPI sets up the reports API with all dependencies. db is only
// used to verify company ids and may be nil.
func SetupReportsAPI(cfg *config.Config, db *sqlx.DB, logger *zap.Logger) (*ReportsAPI, error) {
	rc := cfg.Reports

	runner := jasper.NewRunner(jasper.RunnerConfig{
		Path:          rc.StarterPath,
		Timeout:       rc.Timeout,
		MaxConcurrent: rc.MaxConcurrent,
		StrictStderr:  rc.StrictStderr,
		InfoMarker:    rc.InfoMarker,
	}, logger)
	checker := jasper.NewChecker(runner.Path(), rc.ToolCheckTTL, logger)
	catalog := reports.NewCatalog(rc.TemplateDir, logger)

	var companies reports.CompanyRepository
	if db != nil {
		companies = reports.NewSQLCompanyRepository(db)
	}

	service := reports.NewService(catalog, runner, companies, reports.ServiceConfig{
		TempDir:         rc.TempDir,
		DeleteDelay:     rc.DeleteDelay,
		CompanyTemplate: rc.CompanyTemplate,
		CompanyDatabase: rc.CompanyDatabase,
		Database:        EngineDatabase(cfg.Database),
	}, logger)

	handler := reports.NewHandler(service, checker, reports.RateLimit(rc.RateLimit, rc.RateBurst), logger)

	return &ReportsAPI{
		Handler: handler,
		Service: service,
		Catalog: catalog,
		Runner:  runner,
		Checker: checker,
	}, nil
}

// RegisterReportsRoutes registers the reports routes on the router group
func RegisterReportsRoutes(router *gin.RouterGroup, api *ReportsAPI) {
	api.Handler.RegisterRoutes(router)
}

// EngineDatabase converts the database configuration into the engine's
// connection flags.
func EngineDatabase(db config.DatabaseConfig) *jasper.Database {
	return &jasper.Database{
		Type:     db.Type,
		Host:     db.Host,
		Port:     db.Port,
		Name:     db.DBName,
		User:     db.User,
		Password: db.Password,
	}
}
