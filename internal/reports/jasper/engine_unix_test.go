//go:build unix

package jasper

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeEngineScript parses -o like the real engine and writes a minimal PDF.
const fakeEngineScript = `#!/bin/sh
out=""
while [ $# -gt 0 ]; do
  case "$1" in
    -o) out="$2"; shift 2 ;;
    *) shift ;;
  esac
done
printf '%%PDF-1.4\n%%fake\n' > "$out.pdf"
`

// writeScript writes an executable shell script into a temp dir.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jasperstarter")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o755))
	return path
}
