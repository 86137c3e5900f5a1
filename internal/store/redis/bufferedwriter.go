package redis

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"candle-featuresv1/internal/model"
)

// BufferedWriter wraps a Redis Writer with a circuit breaker.
// During circuit-open state, results are buffered locally and flushed
// when the circuit closes again.
type BufferedWriter struct {
	writer *Writer
	cb     *CircuitBreaker
	ctx    context.Context

	mu     sync.Mutex
	buffer []model.IndicatorResult
	maxBuf int // max buffered results before dropping oldest (default: 10000)

	// Callbacks
	OnBuffer func(n int)     // called when results are buffered (for metrics)
	OnFlush  func(count int) // called after flushing buffered results
}

// NewBufferedWriter creates a BufferedWriter wrapping the given Writer.
func NewBufferedWriter(ctx context.Context, w *Writer, cb *CircuitBreaker, maxBufferSize int) *BufferedWriter {
	if maxBufferSize <= 0 {
		maxBufferSize = 10000
	}
	bw := &BufferedWriter{
		writer: w,
		cb:     cb,
		ctx:    ctx,
		buffer: make([]model.IndicatorResult, 0, 256),
		maxBuf: maxBufferSize,
	}

	// Register flush on circuit close
	prevCallback := cb.OnStateChange
	cb.OnStateChange = func(from, to State) {
		if prevCallback != nil {
			prevCallback(from, to)
		}
		if to == StateClosed {
			go bw.flush()
		}
	}

	return bw
}

// WriteResults writes confirmed results through the circuit breaker.
// If the circuit is open, they are buffered locally. Live previews are
// dropped rather than buffered since a later bar supersedes them.
func (bw *BufferedWriter) WriteResults(results []model.IndicatorResult) error {
	err := bw.cb.Execute(func() error {
		return bw.writer.WriteResults(bw.ctx, results)
	})
	if errors.Is(err, ErrCircuitOpen) {
		bw.bufferResults(results)
		return nil
	}
	return err
}

// Run drains resultCh in batches through WriteResults until ctx is
// cancelled or resultCh is closed.
func (bw *BufferedWriter) Run(ctx context.Context, resultCh <-chan model.IndicatorResult) {
	batch := make([]model.IndicatorResult, 0, 64)
	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-resultCh:
			if !ok {
				return
			}
			batch = append(batch[:0], r)
		drain:
			for len(batch) < cap(batch) {
				select {
				case r, ok := <-resultCh:
					if !ok {
						break drain
					}
					batch = append(batch, r)
				default:
					break drain
				}
			}
			if err := bw.WriteResults(batch); err != nil {
				slog.Warn("redis buffered write failed", "results", len(batch), "error", err)
			}
		}
	}
}

func (bw *BufferedWriter) bufferResults(results []model.IndicatorResult) {
	bw.mu.Lock()
	defer bw.mu.Unlock()

	n := 0
	for _, r := range results {
		if r.Live || !r.Ready {
			continue
		}
		if len(bw.buffer) >= bw.maxBuf {
			// Buffer full, drop oldest
			bw.buffer = bw.buffer[1:]
		}
		bw.buffer = append(bw.buffer, r)
		n++
	}

	if n > 0 && bw.OnBuffer != nil {
		bw.OnBuffer(n)
	}
}

// flush replays all buffered results through the underlying writer.
func (bw *BufferedWriter) flush() {
	bw.mu.Lock()
	if len(bw.buffer) == 0 {
		bw.mu.Unlock()
		return
	}
	// Take ownership of the buffer
	toFlush := bw.buffer
	bw.buffer = make([]model.IndicatorResult, 0, 256)
	bw.mu.Unlock()

	if err := bw.writer.WriteResults(bw.ctx, toFlush); err != nil {
		slog.Warn("redis flush of buffered results failed", "results", len(toFlush), "error", err)
		return
	}

	slog.Info("redis flushed buffered results", "results", len(toFlush))
	if bw.OnFlush != nil {
		bw.OnFlush(len(toFlush))
	}
}

// PendingCount returns the number of buffered results waiting to be flushed.
func (bw *BufferedWriter) PendingCount() int {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	return len(bw.buffer)
}

// Underlying returns the wrapped Redis writer.
func (bw *BufferedWriter) Underlying() *Writer {
	return bw.writer
}
