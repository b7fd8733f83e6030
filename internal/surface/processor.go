package surface

import (
	"context"
	"log/slog"

	"github.com/roach88/a2ui/internal/validate"
)

// Processor applies batches to one Store in FIFO order from a single
// goroutine. Producers (network readers, file watchers) call Enqueue; one
// goroutine calls Run.
type Processor struct {
	store   *Store
	queue   *batchQueue
	logger  *slog.Logger
	onBatch func(Batch, validate.Errors, error)
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithProcessorLogger sets the processor logger.
func WithProcessorLogger(l *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		p.logger = l
	}
}

// OnBatch registers a callback run after each batch is applied, with the
// validation findings and the import error if any.
func OnBatch(fn func(Batch, validate.Errors, error)) ProcessorOption {
	return func(p *Processor) {
		p.onBatch = fn
	}
}

// NewProcessor creates a processor feeding store.
func NewProcessor(store *Store, opts ...ProcessorOption) *Processor {
	p := &Processor{
		store:  store,
		queue:  newBatchQueue(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Enqueue queues a batch. Safe from any goroutine. It returns false after
// Stop.
func (p *Processor) Enqueue(b Batch) bool {
	return p.queue.Enqueue(b)
}

// QueueLen returns the number of batches waiting.
func (p *Processor) QueueLen() int {
	return p.queue.Len()
}

// Run applies queued batches until ctx is cancelled or Stop is called.
// After Stop, batches already queued are drained before Run returns nil.
func (p *Processor) Run(ctx context.Context) error {
	p.logger.Info("processor starting")

	for {
		b, ok := p.queue.TryDequeue()
		if ok {
			p.process(b)
			continue
		}

		select {
		case <-ctx.Done():
			p.logger.Info("processor stopping: context cancelled")
			p.queue.Close()
			return ctx.Err()

		case <-p.queue.Wait():
			// the signal channel is closed on Stop
			if p.queue.Len() == 0 && p.closed() {
				p.logger.Info("processor stopping: queue closed")
				return nil
			}
		}
	}
}

func (p *Processor) closed() bool {
	p.queue.mu.Lock()
	defer p.queue.mu.Unlock()
	return p.queue.closed
}

// Stop closes the queue. Run returns once the queue is drained.
func (p *Processor) Stop() {
	p.queue.Close()
}

// process applies one batch. Called only from Run.
func (p *Processor) process(b Batch) {
	var (
		report validate.Errors
		err    error
	)
	switch b.Mode {
	case BatchImport:
		report, err = p.store.Import(b.Messages)
		if err != nil {
			p.logger.Warn("batch rejected", "source", b.Source, "messages", len(b.Messages), "error", err)
		}
	default:
		report = p.store.ApplyLive(b.Messages)
	}

	p.logger.Debug("batch applied",
		"source", b.Source,
		"messages", len(b.Messages),
		"findings", len(report),
	)
	if p.onBatch != nil {
		p.onBatch(b, report, err)
	}
}
