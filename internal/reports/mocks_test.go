package reports

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"siete/report-portal/report-portal-backend/internal/reports/jasper"
)

// MockEngine is a mock implementation of Engine
type MockEngine struct {
	mock.Mock
}

func (m *MockEngine) Run(ctx context.Context, inv jasper.Invocation) (string, error) {
	args := m.Called(ctx, inv)
	path, err := args.String(0), args.Error(1)
	// An empty path on success stands for the invocation's artifact path.
	if path == "" && err == nil {
		path = inv.ArtifactPath()
	}
	return path, err
}

// expectPDF makes the next Run write a PDF to the invocation's artifact path.
func (m *MockEngine) expectPDF() *mock.Call {
	return m.On("Run", mock.Anything, mock.AnythingOfType("jasper.Invocation")).
		Run(func(args mock.Arguments) {
			inv := args.Get(1).(jasper.Invocation)
			_ = os.WriteFile(inv.ArtifactPath(), []byte("%PDF-1.4\n%test\n"), 0o644)
		}).
		Return("", nil)
}

// MockCompanyRepository is a mock implementation of CompanyRepository
type MockCompanyRepository struct {
	mock.Mock
}

func (m *MockCompanyRepository) CompanyExists(ctx context.Context, companyID string) (bool, error) {
	args := m.Called(ctx, companyID)
	return args.Bool(0), args.Error(1)
}

// MockToolChecker is a mock implementation of ToolChecker
type MockToolChecker struct {
	mock.Mock
}

func (m *MockToolChecker) Check(ctx context.Context) jasper.ToolStatus {
	args := m.Called(ctx)
	return args.Get(0).(jasper.ToolStatus)
}

func (m *MockToolChecker) Invalidate() {
	m.Called()
}

func installedChecker() *MockToolChecker {
	checker := new(MockToolChecker)
	checker.On("Check", mock.Anything).Return(jasper.ToolStatus{
		Installed: true,
		Version:   "JasperStarter Version 3.6.2",
		CheckedAt: time.Now(),
	})
	checker.On("Invalidate").Maybe()
	return checker
}

type testEnv struct {
	templateDir string
	tempDir     string
	catalog     *Catalog
}

func newTestEnv(t *testing.T, templates ...string) *testEnv {
	t.Helper()
	env := &testEnv{
		templateDir: t.TempDir(),
		tempDir:     t.TempDir(),
	}
	for _, name := range templates {
		env.writeTemplate(t, name)
	}
	env.catalog = NewCatalog(env.templateDir, zap.NewNop())
	return env
}

func (e *testEnv) writeTemplate(t *testing.T, name string) {
	t.Helper()
	path := filepath.Join(e.templateDir, name+TemplateExt)
	require.NoError(t, os.WriteFile(path, []byte("compiled "+name), 0o644))
}

func (e *testEnv) writeManifest(t *testing.T, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(e.templateDir, ManifestFile), []byte(body), 0o644))
}

func (e *testEnv) service(engine Engine, companies CompanyRepository) *Service {
	return NewService(e.catalog, engine, companies, ServiceConfig{
		TempDir:         e.tempDir,
		DeleteDelay:     50 * time.Millisecond,
		CompanyTemplate: "reporte_empresa",
		CompanyDatabase: true,
		Database: &jasper.Database{
			Type: "mysql", Host: "localhost", Port: 3306,
			Name: "siete_bd", User: "root", Password: "secret",
		},
	}, zap.NewNop())
}

func (e *testEnv) tempFiles(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(e.tempDir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names
}

func countFiles(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return -1
	}
	return len(entries)
}
