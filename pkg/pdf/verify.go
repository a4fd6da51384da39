package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
)

// ErrNoOutput is returned when the expected artifact is missing or empty.
var ErrNoOutput = errors.New("report produced no output")

// ErrNotPDF is returned when the artifact does not start with the PDF header.
var ErrNotPDF = errors.New("report output is not a PDF document")

var magic = []byte("%PDF-")

// Artifact describes a generated PDF on disk.
type Artifact struct {
	Path string
	Size int64
}

// Verify checks that path is a non-empty regular file starting with the PDF
// magic bytes.
func Verify(path string) (Artifact, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Artifact{}, fmt.Errorf("%w: %s", ErrNoOutput, path)
		}
		return Artifact{}, fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Artifact{}, fmt.Errorf("stat artifact: %w", err)
	}
	if !info.Mode().IsRegular() || info.Size() == 0 {
		return Artifact{}, fmt.Errorf("%w: %s", ErrNoOutput, path)
	}

	head := make([]byte, len(magic))
	if _, err := io.ReadFull(f, head); err != nil || !bytes.Equal(head, magic) {
		return Artifact{}, fmt.Errorf("%w: %s", ErrNotPDF, path)
	}

	return Artifact{Path: path, Size: info.Size()}, nil
}
