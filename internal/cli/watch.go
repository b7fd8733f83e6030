package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"sync"

	"github.com/spf13/cobra"

	"github.com/roach88/a2ui/internal/preview"
	"github.com/roach88/a2ui/internal/resolve"
	"github.com/roach88/a2ui/internal/surface"
	"github.com/roach88/a2ui/internal/transport"
	"github.com/roach88/a2ui/internal/validate"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Connect string // server address; empty reads frames from a file
	Device  string
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch [file|-]",
		Short: "Apply a live frame stream and print surfaces as they change",
		Long: `Read transport frames (one JSON object per line) and apply every
a2ui_messages frame as a live batch. After each batch the surfaces it
touched are printed as trees along with the batch's findings.

Without --connect, frames come from a file or stdin. With --connect the
command registers as a device with a server and reconnects with backoff
when the connection drops.

Examples:
  a2ui watch frames.jsonl
  cat frames.jsonl | a2ui watch -
  a2ui watch --connect localhost:7420 --device kiosk-1`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			source := stdinArg
			if len(args) == 1 {
				source = args[0]
			}
			return runWatch(opts, source, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Connect, "connect", "", "server address to receive frames from")
	cmd.Flags().StringVar(&opts.Device, "device", "", "device id to register with (default: assigned by the server)")

	return cmd
}

// batchPrinter prints the surfaces touched by each batch.
type batchPrinter struct {
	w        io.Writer
	store    *surface.Store
	resolver *resolve.Resolver
	opts     *RootOptions

	mu      sync.Mutex
	touched map[string]bool
}

func (p *batchPrinter) record(ev surface.ChangeEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.touched[ev.SurfaceID] = true
}

func (p *batchPrinter) print(b surface.Batch, report validate.Errors, err error) {
	p.mu.Lock()
	ids := make([]string, 0, len(p.touched))
	for id := range p.touched {
		ids = append(ids, id)
	}
	p.touched = make(map[string]bool)
	p.mu.Unlock()
	sort.Strings(ids)

	fmt.Fprintf(p.w, "batch from %s (%d message(s))\n", b.Source, len(b.Messages))
	if err != nil {
		fmt.Fprintf(p.w, "  rejected: %v\n", err)
	}
	for _, e := range report {
		fmt.Fprintf(p.w, "  %s\n", e.Error())
	}
	for _, id := range ids {
		s, ok := p.store.Get(id)
		if !ok {
			fmt.Fprintf(p.w, "== %s (deleted)\n", id)
			continue
		}
		fmt.Fprintf(p.w, "== %s\n", id)
		if err := preview.WriteTree(p.w, preview.Build(s, p.resolver, preview.WithLogger(p.opts.logger()))); err != nil {
			p.opts.logger().Warn("print tree", "surface", id, "error", err)
		}
	}
}

func runWatch(opts *WatchOptions, source string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := opts.logger()

	resolver, err := newResolver(opts.RootOptions)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}
	st, err := newSurfaceStore(opts.RootOptions)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}
	defer st.Close()

	printer := &batchPrinter{
		w:        formatter.Writer,
		store:    st,
		resolver: resolver,
		opts:     opts.RootOptions,
		touched:  make(map[string]bool),
	}
	cancelSub := st.Subscribe(printer.record)
	defer cancelSub()

	processor := surface.NewProcessor(st,
		surface.WithProcessorLogger(logger),
		surface.OnBatch(printer.print),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	runErr := make(chan error, 1)
	go func() { runErr <- processor.Run(ctx) }()

	var feedErr error
	if opts.Connect != "" {
		feedErr = watchRemote(ctx, opts, processor)
	} else {
		feedErr = watchStream(cmd, source, processor, opts)
	}
	processor.Stop()
	if err := <-runErr; err != nil && !errors.Is(err, context.Canceled) {
		return formatter.Fail(ExitFailure, ErrCodeGeneric, err.Error(), nil)
	}

	if feedErr != nil && !errors.Is(feedErr, context.Canceled) {
		var exitErr *ExitError
		if errors.As(feedErr, &exitErr) {
			return loadFailure(formatter, feedErr)
		}
		return formatter.Fail(ExitFailure, ErrCodeGeneric, feedErr.Error(), nil)
	}
	return nil
}

// watchStream feeds frames read from a file or stdin.
func watchStream(cmd *cobra.Command, source string, p *surface.Processor, opts *WatchOptions) error {
	var r io.Reader = cmd.InOrStdin()
	name := "stdin"
	if source != stdinArg {
		f, err := os.Open(source)
		if err != nil {
			return NewExitError(ExitCommandError, fmt.Sprintf("file not found: %s", source))
		}
		defer f.Close()
		r = f
		name = source
	}

	conn := transport.NewStreamConn(r, io.Discard, nil)
	for {
		f, err := conn.ReadFrame()
		if errors.Is(err, transport.ErrMalformedFrame) {
			opts.logger().Debug("skipping malformed frame", "source", name, "error", err)
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		if f.Type != transport.FrameMessages {
			opts.logger().Debug("ignoring frame", "type", f.Type)
			continue
		}
		p.Enqueue(surface.Batch{Mode: surface.BatchLive, Source: name, Messages: f.Messages})
	}
}

// watchRemote feeds frames from a server until it closes the stream.
func watchRemote(ctx context.Context, opts *WatchOptions, p *surface.Processor) error {
	cfg := opts.Config.Transport
	backoff := transport.DefaultBackoff()
	if cfg.MaxAttempts > 0 {
		backoff.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.MaxDelay > 0 {
		backoff.MaxDelay = cfg.MaxDelay
	}

	logger := opts.logger()
	client := transport.NewClient(transport.TCPDialer(opts.Connect), p,
		transport.WithBackoff(backoff),
		transport.WithDevice("cli", opts.Device),
		transport.WithClientLogger(logger),
		transport.OnRegistered(func(id string) {
			logger.Info("registered", "device", id, "server", opts.Connect)
		}),
	)
	return client.Run(ctx)
}
