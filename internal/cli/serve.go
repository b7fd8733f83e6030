package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/roach88/a2ui/internal/designstore"
	"github.com/roach88/a2ui/internal/transport"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr    string
	Design  string // stored design id or batch file
	Overlay string
	DB      string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a design to connecting devices",
		Long: `Run a transport hub. Devices connect over TCP, send a register frame
and receive the design as an a2ui_messages frame once they are
acknowledged. An overlay replaces the design's data model with a
personalized one before it is sent.

Pushes are rate limited per device (transport.push_rate and
transport.push_burst in the config).

Examples:
  a2ui serve --design booking
  a2ui serve --addr :7420 --design booking.a2ui.json --overlay guest.json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (default from config)")
	cmd.Flags().StringVar(&opts.Design, "design", "", "design id or batch file to push on register")
	cmd.Flags().StringVar(&opts.Overlay, "overlay", "", "JSON object merged over the design's data model")
	cmd.Flags().StringVar(&opts.DB, "db", "", "design database path (default from config)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := opts.logger()

	overlay, err := readOverlay(opts.Overlay)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeLoadFailed, err.Error(), nil)
	}
	messages, err := serveMessages(cmd, opts)
	if err != nil {
		return sourceFailure(formatter, err)
	}
	if messages != nil {
		messages, err = transport.RewriteDataModel(messages, overlay)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeInvalid, err.Error(), nil)
		}
	}

	addr := opts.Addr
	if addr == "" {
		addr = opts.Config.Transport.Addr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("listen on %s: %v", addr, err), nil)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	burst := opts.Config.Transport.PushBurst
	if burst < 1 {
		burst = 1
	}

	var hub *transport.Hub
	hub = transport.NewHub(
		transport.WithPushRate(opts.Config.Transport.Limit(), burst),
		transport.WithHubLogger(logger),
		transport.OnRegister(func(dev transport.Device) {
			logger.Info("device registered", "device", dev.ID, "platform", dev.Platform)
			if messages == nil {
				return
			}
			if err := hub.Push(ctx, dev.ID, messages); err != nil {
				logger.Warn("push failed", "device", dev.ID, "error", err)
			}
		}),
	)

	fmt.Fprintf(formatter.GetErrWriter(), "Listening on %s\n", ln.Addr())
	if err := hub.ListenAndServe(ctx, ln); err != nil && !errors.Is(err, context.Canceled) {
		return formatter.Fail(ExitFailure, ErrCodeGeneric, err.Error(), nil)
	}
	return nil
}

// serveMessages loads the design to push. It returns nil when no design
// was requested.
func serveMessages(cmd *cobra.Command, opts *ServeOptions) ([]json.RawMessage, error) {
	if opts.Design == "" {
		return nil, nil
	}
	if isBatchFile(opts.Design) {
		return readBatch(cmd, opts.Design)
	}

	designs, err := openDesigns(opts.RootOptions, dbPath(opts.RootOptions, opts.DB))
	if err != nil {
		return nil, err
	}
	defer designs.Close()
	d, err := designs.Get(cmd.Context(), opts.Design)
	if errors.Is(err, designstore.ErrNotFound) {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("design not found: %s", opts.Design))
	}
	if err != nil {
		return nil, WrapExitError(ExitFailure, "failed to load design", err)
	}
	return d.Messages, nil
}
