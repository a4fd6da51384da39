//go:build unix

package reports

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"siete/report-portal/report-portal-backend/internal/reports/jasper"
)

const fakeEngine = `#!/bin/sh
if [ "$1" = "--version" ]; then
  echo "JasperStarter Version 3.6.2"
  exit 0
fi
out=""
while [ $# -gt 0 ]; do
  case "$1" in
    -o) out="$2"; shift 2 ;;
    *) shift ;;
  esac
done
printf '%%PDF-1.4\n%%e2e\n' > "$out.pdf"
`

type e2eServer struct {
	env    *testEnv
	router http.Handler
}

func newE2EServer(t *testing.T, script string, timeout time.Duration) *e2eServer {
	t.Helper()
	enginePath := filepath.Join(t.TempDir(), "jasperstarter")
	require.NoError(t, os.WriteFile(enginePath, []byte(script), 0o755))

	env := newTestEnv(t, "reporte_empresa", "ventas")
	runner := jasper.NewRunner(jasper.RunnerConfig{
		Path:          enginePath,
		Timeout:       timeout,
		MaxConcurrent: 2,
	}, zap.NewNop())
	checker := jasper.NewChecker(enginePath, time.Minute, zap.NewNop())

	return &e2eServer{
		env:    env,
		router: newTestRouter(env.service(runner, nil), checker, nil),
	}
}

func TestEndToEndCompanyReport(t *testing.T) {
	srv := newE2EServer(t, fakeEngine, 5*time.Second)

	w := doGet(srv.router, "/api/v1/reports/company/1?from=2024-01-01&to=2024-12-31")

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), `filename="reporte_empresa_1.pdf"`)
	assert.True(t, strings.HasPrefix(w.Body.String(), "%PDF-"))

	assert.Eventually(t, func() bool { return countFiles(srv.env.tempDir) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestEndToEndInvalidDate(t *testing.T) {
	srv := newE2EServer(t, fakeEngine, 5*time.Second)

	w := doGet(srv.router, "/api/v1/reports/company/1?from=2024-13-40&to=2024-12-31")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeError(t, w).Error, "invalid date format")
	assert.Zero(t, countFiles(srv.env.tempDir))
}

func TestEndToEndUnknownTemplate(t *testing.T) {
	srv := newE2EServer(t, fakeEngine, 5*time.Second)

	w := doGet(srv.router, "/api/v1/reports/no_existe")

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEndToEndTimeoutKillsEngine(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "pid")
	script := `#!/bin/sh
if [ "$1" = "--version" ]; then
  echo "JasperStarter Version 3.6.2"
  exit 0
fi
echo $$ > ` + pidFile + `
exec sleep 30
`
	srv := newE2EServer(t, script, 300*time.Millisecond)

	start := time.Now()
	w := doGet(srv.router, "/api/v1/reports/ventas")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, decodeError(t, w).Details, "timed out")
	assert.Less(t, time.Since(start), 10*time.Second)

	raw, err := os.ReadFile(pidFile)
	require.NoError(t, err)
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	require.NoError(t, err)
	killErr := syscall.Kill(pid, 0)
	assert.True(t, errors.Is(killErr, syscall.ESRCH), "engine process %d still alive: %v", pid, killErr)
}
