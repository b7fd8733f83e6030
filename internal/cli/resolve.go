package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/a2ui/internal/datamodel"
	"github.com/roach88/a2ui/internal/preview"
	"github.com/roach88/a2ui/internal/resolve"
	"github.com/roach88/a2ui/internal/surface"
)

// SurfaceTree pairs a surface id with its resolved tree. Root is nil when
// the surface has no root component yet.
type SurfaceTree struct {
	Surface string        `json:"surface"`
	Root    *preview.Node `json:"root"`
}

// buildTrees resolves every surface in st, ordered by id.
func buildTrees(st *surface.Store, r *resolve.Resolver, logger *slog.Logger) []SurfaceTree {
	ids := st.Surfaces()
	out := make([]SurfaceTree, 0, len(ids))
	for _, id := range ids {
		s, ok := st.Get(id)
		if !ok {
			continue
		}
		out = append(out, SurfaceTree{Surface: id, Root: preview.Build(s, r, preview.WithLogger(logger))})
	}
	return out
}

// writeTrees prints every surface tree under a "== id" header.
func writeTrees(w io.Writer, st *surface.Store, r *resolve.Resolver, logger *slog.Logger) error {
	for _, t := range buildTrees(st, r, logger) {
		fmt.Fprintf(w, "== %s\n", t.Surface)
		if err := preview.WriteTree(w, t.Root); err != nil {
			return err
		}
	}
	return nil
}

// ResolveOptions holds flags for the resolve command.
type ResolveOptions struct {
	*RootOptions
	DB      string
	Overlay string // JSON file merged over the data model
	Surface string
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResolveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "resolve <id|file>",
		Short: "Print the resolved component tree as JSON",
		Long: `Resolve a design's components against its data model and print the
tree as JSON: bindings substituted, time templates expanded and design
tokens replaced in styles.

An overlay personalizes the preview. Its keys may be nested objects or
slash paths ("/user/name"); it is merged over the design's data model.

Examples:
  a2ui resolve booking
  a2ui resolve booking.a2ui.json --overlay guest.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", "", "design database path (default from config)")
	cmd.Flags().StringVar(&opts.Overlay, "overlay", "", "JSON object merged over the data model")
	cmd.Flags().StringVar(&opts.Surface, "surface", "", "surface id (required when the design has several)")

	return cmd
}

func runResolve(opts *ResolveOptions, arg string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	overlay, err := readOverlay(opts.Overlay)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeLoadFailed, err.Error(), nil)
	}
	resolver, err := newResolver(opts.RootOptions)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}

	st, _, err := loadSource(cmd.Context(), cmd, opts.RootOptions, opts.DB, arg)
	if err != nil {
		return sourceFailure(formatter, err)
	}
	s, err := pickSurface(st, opts.Surface)
	if err != nil {
		return sourceFailure(formatter, err)
	}
	if overlay != nil {
		s = preview.Personalize(s, overlay)
	}

	tree := SurfaceTree{Surface: s.ID, Root: preview.Build(s, resolver, preview.WithLogger(opts.logger()))}
	if formatter.JSON() {
		return formatter.Success(tree)
	}
	enc := json.NewEncoder(formatter.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(tree)
}

// readOverlay reads a JSON object from path. An empty path means no overlay.
func readOverlay(path string) (map[string]any, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read overlay: %w", err)
	}
	var overlay map[string]any
	if err := json.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("overlay must be a JSON object: %w", err)
	}
	if overlay == nil {
		overlay = map[string]any{}
	}
	return overlay, nil
}

// sourceFailure prints a loadSource or pickSurface error.
func sourceFailure(formatter *OutputFormatter, err error) error {
	code := GetExitCode(err)
	if code == ExitFailure {
		return formatter.Fail(ExitFailure, ErrCodeInvalid, err.Error(), nil)
	}
	return loadFailure(formatter, err)
}

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	DB      string
	Surface string
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <id|file> <jsonpath>",
		Short: "Run a JSONPath query against a surface data model",
		Long: `Evaluate a JSONPath expression against a surface's data model and
print every match.

Examples:
  a2ui query booking '$.guest.name'
  a2ui query menu.a2ui.json '$.items[*].price' --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", "", "design database path (default from config)")
	cmd.Flags().StringVar(&opts.Surface, "surface", "", "surface id (required when the design has several)")

	return cmd
}

func runQuery(opts *QueryOptions, arg, selector string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	st, _, err := loadSource(cmd.Context(), cmd, opts.RootOptions, opts.DB, arg)
	if err != nil {
		return sourceFailure(formatter, err)
	}
	s, err := pickSurface(st, opts.Surface)
	if err != nil {
		return sourceFailure(formatter, err)
	}

	matches, err := datamodel.Query(s.DataModel, selector)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}
	if matches == nil {
		matches = []any{}
	}

	if formatter.JSON() {
		return formatter.Success(matches)
	}
	for _, m := range matches {
		if str, ok := m.(string); ok {
			fmt.Fprintln(formatter.Writer, str)
			continue
		}
		data, err := json.Marshal(m)
		if err != nil {
			return err
		}
		fmt.Fprintln(formatter.Writer, string(data))
	}
	return nil
}
