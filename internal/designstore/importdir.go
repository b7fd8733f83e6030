package designstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/roach88/a2ui/internal/protocol"
)

// DesignSuffix marks design files in a directory.
const DesignSuffix = ".a2ui.json"

// ImportResult reports one file processed by ImportDir.
type ImportResult struct {
	Path    string
	ID      string
	Changed bool
	Err     error
}

// ImportDir saves every *.a2ui.json file in dir, in name order. A file's
// design id is the surfaceId of its createSurface message, or the file name
// without the suffix when it has none. Per-file failures are reported in
// the results and joined into the returned error; other files still import.
func (s *Store) ImportDir(ctx context.Context, dir string) ([]ImportResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("import dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), DesignSuffix) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	results := make([]ImportResult, 0, len(names))
	var errs []error
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		path := filepath.Join(dir, name)
		res := s.importFile(ctx, path, strings.TrimSuffix(name, DesignSuffix))
		if res.Err != nil {
			s.logger.Warn("design import failed", "path", path, "error", res.Err)
			errs = append(errs, fmt.Errorf("%s: %w", name, res.Err))
		}
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}

func (s *Store) importFile(ctx context.Context, path, fallbackID string) ImportResult {
	res := ImportResult{Path: path}
	raws, err := protocol.LoadFile(path)
	if err != nil {
		res.Err = err
		return res
	}
	id, ok := SurfaceID(raws)
	if !ok {
		id = fallbackID
	}
	res.ID = id

	saved, err := s.Save(ctx, id, raws, WithSource(path))
	if err != nil {
		res.Err = err
		return res
	}
	res.Changed = saved.Changed
	return res
}
