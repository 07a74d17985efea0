package cmd

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ecoguard/ecoguard/internal/output"
)

// reportTarget is where a report command writes: a file named by --out, a
// file inside --out-dir, or the command's stdout.
type reportTarget struct {
	file string
	dir  string
	stem string
}

func (t reportTarget) path(format output.Format) (string, error) {
	file, dir := strings.TrimSpace(t.file), strings.TrimSpace(t.dir)
	switch {
	case file != "" && dir != "":
		return "", errors.New("--out and --out-dir are mutually exclusive")
	case dir != "":
		return filepath.Join(dir, t.stem+"."+format.Extension()), nil
	default:
		return file, nil
	}
}

// open resolves the target and returns its writer. Files and their parent
// directories are created; close is a no-op for stdout.
func (t reportTarget) open(stdout io.Writer, format output.Format) (io.Writer, func() error, error) {
	path, err := t.path(format)
	if err != nil {
		return nil, nil, err
	}
	if path == "" || path == "-" {
		return stdout, func() error { return nil }, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}
