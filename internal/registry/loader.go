package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"onnxd/internal/common/fsutil"
	"onnxd/pkg/types"
)

// LoadDir scans a directory for *.onnx files and builds a registry from
// filenames. ID is the full filename (including extension); Path is the
// absolute file path; SizeMB is the on-disk size rounded down to megabytes.
func LoadDir(dir string) ([]types.Model, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []types.Model
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(strings.ToLower(name), ".onnx") {
			continue
		}
		m := types.Model{
			ID:   name,
			Name: name,
			Path: filepath.Join(abs, name),
		}
		if fi, err := e.Info(); err == nil {
			m.SizeMB = int(fi.Size() / (1024 * 1024))
		}
		models = append(models, m)
	}
	return models, nil
}
