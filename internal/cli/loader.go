package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/a2ui/internal/catalog"
	"github.com/roach88/a2ui/internal/designstore"
	"github.com/roach88/a2ui/internal/protocol"
	"github.com/roach88/a2ui/internal/resolve"
	"github.com/roach88/a2ui/internal/surface"
	"github.com/roach88/a2ui/internal/validate"
)

// stdinArg names standard input as a batch source.
const stdinArg = "-"

// catalogNone disables catalog checks.
const catalogNone = "none"

// readBatch loads a batch from a .json, .jsonl or .cue file, or from stdin
// for "-". Stdin is parsed as JSON or JSON lines.
func readBatch(cmd *cobra.Command, arg string) ([]json.RawMessage, error) {
	if arg == stdinArg {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, &protocol.LoadError{Code: protocol.ErrCodeRead, Message: err.Error()}
		}
		return protocol.LoadBytes(data, protocol.FormatJSON, "stdin")
	}
	if _, err := os.Stat(arg); err != nil {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("file not found: %s", arg))
	}
	return protocol.LoadFile(arg)
}

// loadFailure converts a readBatch error into formatted output and an exit
// error.
func loadFailure(f *OutputFormatter, err error) error {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return f.Fail(exitErr.Code, ErrCodeNotFound, exitErr.Error(), nil)
	}
	var loadErr *protocol.LoadError
	if errors.As(err, &loadErr) {
		return f.Fail(ExitCommandError, loadErr.Code, loadErr.Error(), nil)
	}
	return f.Fail(ExitCommandError, ErrCodeLoadFailed, err.Error(), nil)
}

// catalogOptions returns validator options for a catalog selection: a
// catalog id checks every surface against it, "none" disables checks, and
// "" uses the configured default. Surfaces naming a catalogId still select
// it from the registry.
func catalogOptions(opts *RootOptions, selection string) ([]validate.Option, error) {
	if selection == "" {
		selection = opts.Config.Render.Catalog
	}
	if selection == "" {
		selection = catalog.BasicID
	}
	if selection == catalogNone {
		return nil, nil
	}

	registry, err := catalog.NewRegistry()
	if err != nil {
		return nil, err
	}
	c, ok := registry.Lookup(selection)
	if !ok {
		return nil, fmt.Errorf("unknown catalog %q", selection)
	}
	return []validate.Option{validate.WithRegistry(registry), validate.WithCatalog(c)}, nil
}

// newSurfaceStore builds a store wired to the configured catalog and
// decode options.
func newSurfaceStore(opts *RootOptions) (*surface.Store, error) {
	vopts, err := catalogOptions(opts, "")
	if err != nil {
		return nil, err
	}
	sopts := []surface.Option{
		surface.WithLogger(opts.logger()),
		surface.WithValidateOptions(vopts...),
	}
	if opts.Config.Render.LegacyDataModel {
		sopts = append(sopts, surface.WithDecodeOptions(protocol.WithLegacyDataModel()))
	}
	return surface.New(sopts...), nil
}

// newResolver builds a resolver in the configured time zone.
func newResolver(opts *RootOptions) (*resolve.Resolver, error) {
	loc, err := opts.Config.Render.Location()
	if err != nil {
		return nil, err
	}
	return resolve.New(resolve.WithLocation(loc), resolve.WithLogger(opts.logger())), nil
}

// dbPath returns the --db flag value or the configured database path.
func dbPath(opts *RootOptions, flag string) string {
	if flag != "" {
		return flag
	}
	return opts.Config.Database.Path
}

// openDesigns opens the design store, creating its directory.
func openDesigns(opts *RootOptions, path string) (*designstore.Store, error) {
	if path == "" {
		return nil, NewExitError(ExitCommandError, "no database path: use --db or set database.path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to create database directory", err)
		}
	}
	vopts, err := catalogOptions(opts, "")
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid catalog", err)
	}
	st, err := designstore.Open(path, designstore.WithLogger(opts.logger()), designstore.WithValidateOptions(vopts...))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

// isBatchFile reports whether arg names a readable batch source rather
// than a stored design id.
func isBatchFile(arg string) bool {
	if arg == stdinArg {
		return true
	}
	switch strings.ToLower(filepath.Ext(arg)) {
	case ".json", ".jsonl", ".ndjson", ".cue":
		return true
	}
	if strings.ContainsRune(arg, filepath.Separator) {
		return true
	}
	info, err := os.Stat(arg)
	return err == nil && !info.IsDir()
}

// loadSource fills a fresh surface store from a batch file or a stored
// design. It returns the store and the import report.
func loadSource(ctx context.Context, cmd *cobra.Command, opts *RootOptions, db, arg string) (*surface.Store, validate.Errors, error) {
	st, err := newSurfaceStore(opts)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "invalid catalog", err)
	}

	if isBatchFile(arg) {
		raws, err := readBatch(cmd, arg)
		if err != nil {
			return nil, nil, err
		}
		report, err := st.Import(raws)
		if err != nil {
			return nil, report, WrapExitError(ExitFailure, "batch rejected", err)
		}
		return st, report, nil
	}

	designs, err := openDesigns(opts, dbPath(opts, db))
	if err != nil {
		return nil, nil, err
	}
	defer designs.Close()
	report, err := designs.Load(ctx, arg, st)
	if errors.Is(err, designstore.ErrNotFound) {
		return nil, nil, NewExitError(ExitCommandError, fmt.Sprintf("design not found: %s", arg))
	}
	if err != nil {
		return nil, report, WrapExitError(ExitFailure, "failed to load design", err)
	}
	return st, report, nil
}

// pickSurface returns the requested surface, or the only surface when
// want is empty.
func pickSurface(st *surface.Store, want string) (*surface.Surface, error) {
	if want != "" {
		s, ok := st.Get(want)
		if !ok {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("surface not found: %s", want))
		}
		return s, nil
	}
	ids := st.Surfaces()
	switch len(ids) {
	case 0:
		return nil, NewExitError(ExitFailure, "batch defines no surfaces")
	case 1:
		s, _ := st.Get(ids[0])
		return s, nil
	default:
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("batch defines %d surfaces %v: use --surface", len(ids), ids))
	}
}
