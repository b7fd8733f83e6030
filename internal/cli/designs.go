package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/a2ui/internal/designstore"
	"github.com/roach88/a2ui/internal/validate"
)

// DesignOptions holds flags shared by the design store commands.
type DesignOptions struct {
	*RootOptions
	DB string // database path; defaults to config database.path
}

func addDBFlag(cmd *cobra.Command, opts *DesignOptions) {
	cmd.Flags().StringVar(&opts.DB, "db", "", "design database path (default from config)")
}

// withDesigns opens the store, runs fn and closes it.
func withDesigns(opts *DesignOptions, formatter *OutputFormatter, fn func(*designstore.Store) error) error {
	st, err := openDesigns(opts.RootOptions, dbPath(opts.RootOptions, opts.DB))
	if err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return formatter.Fail(exitErr.Code, ErrCodeStoreFailed, err.Error(), nil)
		}
		return formatter.Fail(ExitCommandError, ErrCodeStoreFailed, err.Error(), nil)
	}
	defer st.Close()
	return fn(st)
}

// designError maps store errors to CLI failures.
func designError(formatter *OutputFormatter, id string, err error) error {
	switch {
	case errors.Is(err, designstore.ErrNotFound):
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("design not found: %s", id), nil)
	default:
		var rejected *designstore.RejectedError
		if errors.As(err, &rejected) {
			return formatter.Fail(ExitFailure, ErrCodeInvalid, rejected.Error(), rejected.Errors.Blocking())
		}
		return formatter.Fail(ExitCommandError, ErrCodeStoreFailed, err.Error(), nil)
	}
}

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	DesignOptions
	ID string // design id override for a single file
}

// ImportEntry reports one imported design.
type ImportEntry struct {
	Path     string          `json:"path"`
	ID       string          `json:"id"`
	Revision int             `json:"revision,omitempty"`
	Changed  bool            `json:"changed"`
	Error    string          `json:"error,omitempty"`
	Findings validate.Errors `json:"findings,omitempty"`
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{DesignOptions: DesignOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "import [file|dir]",
		Short: "Validate and save designs",
		Long: `Validate designs in export mode and save them to the design database.

A directory imports every *.a2ui.json file in it. Without an argument the
configured designs.dir is imported. A design id is the createSurface
surfaceId, or the file name when the batch has none. Saving unchanged
content keeps the current revision.

Examples:
  a2ui import examples/
  a2ui import booking.a2ui.json --id booking_v2`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			target := rootOpts.Config.Designs.Dir
			if len(args) == 1 {
				target = args[0]
			}
			return runImport(opts, target, cmd)
		},
	}

	addDBFlag(cmd, &opts.DesignOptions)
	cmd.Flags().StringVar(&opts.ID, "id", "", "design id (single file only)")

	return cmd
}

func runImport(opts *ImportOptions, target string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	info, err := os.Stat(target)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("path not found: %s", target), nil)
	}

	return withDesigns(&opts.DesignOptions, formatter, func(st *designstore.Store) error {
		ctx := cmd.Context()
		var entries []ImportEntry
		failed := 0

		if info.IsDir() {
			if opts.ID != "" {
				return formatter.Fail(ExitCommandError, ErrCodeGeneric, "--id cannot be used with a directory", nil)
			}
			results, _ := st.ImportDir(ctx, target)
			for _, r := range results {
				e := ImportEntry{Path: r.Path, ID: r.ID, Changed: r.Changed}
				if r.Err != nil {
					e.Error = r.Err.Error()
					failed++
				}
				entries = append(entries, e)
			}
		} else {
			raws, err := readBatch(cmd, target)
			if err != nil {
				return loadFailure(formatter, err)
			}
			e, err := importFile(cmd, st, target, opts.ID, raws)
			if err != nil {
				return designError(formatter, e.ID, err)
			}
			entries = append(entries, e)
		}

		if formatter.JSON() {
			if failed > 0 {
				if err := formatter.Error(ErrCodeInvalid, fmt.Sprintf("%d design(s) failed to import", failed), entries); err != nil {
					return err
				}
				return reportedExit(ExitFailure, fmt.Sprintf("%d design(s) failed to import", failed))
			}
			return formatter.Success(entries)
		}

		w := formatter.Writer
		for _, e := range entries {
			switch {
			case e.Error != "":
				fmt.Fprintf(w, "✗ %s: %s\n", filepath.Base(e.Path), e.Error)
			case e.Changed:
				fmt.Fprintf(w, "✓ %s saved\n", e.ID)
			default:
				fmt.Fprintf(w, "· %s unchanged\n", e.ID)
			}
			for _, f := range e.Findings {
				fmt.Fprintf(w, "  %s\n", f.Error())
			}
		}
		fmt.Fprintf(w, "Imported %d design(s), %d failed\n", len(entries)-failed, failed)
		if failed > 0 {
			return reportedExit(ExitFailure, fmt.Sprintf("%d design(s) failed to import", failed))
		}
		return nil
	})
}

func importFile(cmd *cobra.Command, st *designstore.Store, path, id string, raws []json.RawMessage) (ImportEntry, error) {
	e := ImportEntry{Path: path, ID: id}
	if e.ID == "" {
		if sid, ok := designstore.SurfaceID(raws); ok {
			e.ID = sid
		} else {
			e.ID = strings.TrimSuffix(filepath.Base(path), designstore.DesignSuffix)
			e.ID = strings.TrimSuffix(e.ID, filepath.Ext(e.ID))
		}
	}

	res, err := st.Save(cmd.Context(), e.ID, raws, designstore.WithSource(path))
	if err != nil {
		return e, err
	}
	e.Revision = res.Design.Revision
	e.Changed = res.Changed
	e.Findings = res.Report
	return e, nil
}

// DesignSummary is one row of the list command.
type DesignSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Revision  int    `json:"revision"`
	Hash      string `json:"hash"`
	UpdatedAt string `json:"updatedAt"`
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DesignOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List stored designs",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(opts.RootOptions, cmd)
			return withDesigns(opts, formatter, func(st *designstore.Store) error {
				designs, err := st.List(cmd.Context())
				if err != nil {
					return designError(formatter, "", err)
				}
				rows := make([]DesignSummary, 0, len(designs))
				for _, d := range designs {
					rows = append(rows, DesignSummary{
						ID:        d.ID,
						Name:      d.Name,
						Revision:  d.Revision,
						Hash:      d.Hash,
						UpdatedAt: d.UpdatedAt.Format("2006-01-02 15:04:05"),
					})
				}
				if formatter.JSON() {
					return formatter.Success(rows)
				}
				if len(rows) == 0 {
					fmt.Fprintln(formatter.Writer, "No designs stored.")
					return nil
				}
				tw := tabwriter.NewWriter(formatter.Writer, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tREV\tUPDATED")
				for _, r := range rows {
					fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", r.ID, r.Name, r.Revision, r.UpdatedAt)
				}
				return tw.Flush()
			})
		},
	}
	addDBFlag(cmd, opts)
	return cmd
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DesignOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a stored design as a component tree",
		Long: `Load a stored design and print each surface's component tree.

Text is resolved against the design's data model at the current time.
Missing children are marked with ✗.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(opts, args[0], cmd)
		},
	}
	addDBFlag(cmd, opts)
	return cmd
}

func runShow(opts *DesignOptions, id string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	resolver, err := newResolver(opts.RootOptions)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}

	return withDesigns(opts, formatter, func(st *designstore.Store) error {
		d, err := st.Get(cmd.Context(), id)
		if err != nil {
			return designError(formatter, id, err)
		}
		surfaces, err := newSurfaceStore(opts.RootOptions)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
		}
		if _, err := surfaces.Import(d.Messages); err != nil {
			return formatter.Fail(ExitFailure, ErrCodeInvalid, err.Error(), nil)
		}

		if formatter.JSON() {
			return formatter.Success(map[string]any{
				"design":   DesignSummary{ID: d.ID, Name: d.Name, Revision: d.Revision, Hash: d.Hash, UpdatedAt: d.UpdatedAt.Format("2006-01-02 15:04:05")},
				"surfaces": buildTrees(surfaces, resolver, opts.logger()),
			})
		}

		w := formatter.Writer
		fmt.Fprintf(w, "%s (rev %d)\n", d.Name, d.Revision)
		return writeTrees(w, surfaces, resolver, opts.logger())
	})
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DesignOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:           "history <id>",
		Short:         "List the revisions of a design",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(opts.RootOptions, cmd)
			return withDesigns(opts, formatter, func(st *designstore.Store) error {
				revs, err := st.History(cmd.Context(), args[0])
				if err != nil {
					return designError(formatter, args[0], err)
				}
				if formatter.JSON() {
					type row struct {
						Revision  int    `json:"revision"`
						Hash      string `json:"hash"`
						CreatedAt string `json:"createdAt"`
					}
					rows := make([]row, 0, len(revs))
					for _, r := range revs {
						rows = append(rows, row{Revision: r.Revision, Hash: r.Hash, CreatedAt: r.CreatedAt.Format("2006-01-02 15:04:05")})
					}
					return formatter.Success(rows)
				}
				for _, r := range revs {
					fmt.Fprintf(formatter.Writer, "rev %d  %s  %s\n", r.Revision, shortHash(r.Hash), r.CreatedAt.Format("2006-01-02 15:04:05"))
				}
				return nil
			})
		},
	}
	addDBFlag(cmd, opts)
	return cmd
}

// shortHash trims a content hash for display.
func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DesignOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:           "delete <id>",
		Short:         "Delete a stored design and its history",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(opts.RootOptions, cmd)
			return withDesigns(opts, formatter, func(st *designstore.Store) error {
				if err := st.Delete(cmd.Context(), args[0]); err != nil {
					return designError(formatter, args[0], err)
				}
				if formatter.JSON() {
					return formatter.Success(map[string]string{"deleted": args[0]})
				}
				fmt.Fprintf(formatter.Writer, "✓ Deleted %s\n", args[0])
				return nil
			})
		},
	}
	addDBFlag(cmd, opts)
	return cmd
}

// NewClearCommand creates the clear command.
func NewClearCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DesignOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:           "clear",
		Short:         "Delete every stored design",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(opts.RootOptions, cmd)
			return withDesigns(opts, formatter, func(st *designstore.Store) error {
				n, err := st.Clear(cmd.Context())
				if err != nil {
					return designError(formatter, "", err)
				}
				if formatter.JSON() {
					return formatter.Success(map[string]int{"deleted": n})
				}
				fmt.Fprintf(formatter.Writer, "✓ Deleted %d design(s)\n", n)
				return nil
			})
		},
	}
	addDBFlag(cmd, opts)
	return cmd
}
