package surface

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/a2ui/internal/validate"
)

type batchResult struct {
	source string
	report validate.Errors
	err    error
}

func newTestProcessor(t *testing.T) (*Processor, *Store, func() []batchResult) {
	t.Helper()
	store, _ := newTestStore(t)

	var mu sync.Mutex
	var results []batchResult
	var buf bytes.Buffer
	p := NewProcessor(store,
		WithProcessorLogger(quietLogger(&buf)),
		OnBatch(func(b Batch, report validate.Errors, err error) {
			mu.Lock()
			defer mu.Unlock()
			results = append(results, batchResult{source: b.Source, report: report, err: err})
		}),
	)
	return p, store, func() []batchResult {
		mu.Lock()
		defer mu.Unlock()
		return append([]batchResult{}, results...)
	}
}

func TestProcessorDrainsAfterStop(t *testing.T) {
	p, store, results := newTestProcessor(t)

	require.True(t, p.Enqueue(Batch{Mode: BatchImport, Source: "file", Messages: raws(t, helloBatch)}))
	require.True(t, p.Enqueue(Batch{Mode: BatchLive, Source: "live", Messages: raws(t, `[
		{"updateDataModel": {"surfaceId": "main", "path": "/hello/text", "value": "Later"}}
	]`)}))
	assert.Equal(t, 2, p.QueueLen())

	p.Stop()
	assert.False(t, p.Enqueue(Batch{Source: "late"}))

	require.NoError(t, p.Run(context.Background()))

	got := results()
	require.Len(t, got, 2)
	assert.Equal(t, "file", got[0].source)
	assert.Equal(t, "live", got[1].source)
	assert.NoError(t, got[0].err)

	surf, ok := store.Get("main")
	require.True(t, ok)
	v, _ := surf.Lookup("/hello/text")
	assert.Equal(t, "Later", v)
}

func TestProcessorReportsRejectedImport(t *testing.T) {
	p, store, results := newTestProcessor(t)

	p.Enqueue(Batch{Mode: BatchImport, Source: "bad", Messages: []json.RawMessage{json.RawMessage(`{"createSurface": {}}`)}})
	p.Stop()
	require.NoError(t, p.Run(context.Background()))

	got := results()
	require.Len(t, got, 1)
	assert.True(t, IsImportError(got[0].err))
	assert.True(t, got[0].report.HasStructural())
	assert.Empty(t, store.Surfaces())
}

func TestProcessorStopsOnContextCancel(t *testing.T) {
	p, _, _ := newTestProcessor(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.False(t, p.Enqueue(Batch{}), "queue closes with the loop")
}

func TestProcessorConcurrentProducers(t *testing.T) {
	p, store, results := newTestProcessor(t)
	require.True(t, p.Enqueue(Batch{Mode: BatchImport, Source: "seed", Messages: raws(t, helloBatch)}))

	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background()) }()

	update := raws(t, `[{"updateDataModel": {"surfaceId": "main", "path": "/count", "value": 1}}]`)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Enqueue(Batch{Mode: BatchLive, Source: "producer", Messages: update})
		}()
	}
	wg.Wait()
	p.Stop()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not drain")
	}

	assert.Len(t, results(), 9)
	surf, _ := store.Get("main")
	assert.Equal(t, 1.0, surf.DataModel["count"])
}
