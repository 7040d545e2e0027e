package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmehdipour/outline-admin/internal/kafka"
	"github.com/jmehdipour/outline-admin/internal/metrics"
	"github.com/jmehdipour/outline-admin/internal/model"
	"go.uber.org/zap"
)

// Source is the subset of kafka.Consumer the sink needs.
type Source interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, msgs ...kafka.Message) error
}

// AuditStore receives decoded audit envelopes in batches.
type AuditStore interface {
	InsertBatch(ctx context.Context, rows []model.AuditEnvelope) error
}

var _ Source = (*kafka.Consumer)(nil)

// AuditSink:
// - fetches audit envelopes published from the outbox,
// - buffers them and writes batches to ClickHouse,
// - commits offsets only after the batch is stored (at-least-once; the
//   ClickHouse table deduplicates on id).
type AuditSink struct {
	Source Source
	Store  AuditStore
	Log    *zap.Logger

	BatchSize int           // max buffered rows per flush
	BatchWait time.Duration // max time to wait before flush
}

func NewAuditSink(src Source, store AuditStore, log *zap.Logger) *AuditSink {
	return &AuditSink{
		Source:    src,
		Store:     store,
		Log:       log,
		BatchSize: 500,
		BatchWait: 2 * time.Second,
	}
}

// Run blocks until ctx is cancelled or the source is exhausted, flushing
// whatever is buffered before returning.
func (w *AuditSink) Run(ctx context.Context) error {
	if w.BatchSize <= 0 {
		w.BatchSize = 500
	}
	if w.BatchWait <= 0 {
		w.BatchWait = 2 * time.Second
	}
	if w.Log == nil {
		w.Log = zap.NewNop()
	}

	msgCh := make(chan kafka.Message, w.BatchSize)

	// Fetcher goroutine
	go func() {
		defer close(msgCh)
		for {
			m, err := w.Source.Fetch(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				w.Log.Warn("audit sink: kafka fetch failed", zap.Error(err))
				select {
				case <-ctx.Done():
					return
				case <-time.After(200 * time.Millisecond):
				}
				continue
			}
			select {
			case msgCh <- m:
			case <-ctx.Done():
				return
			}
		}
	}()

	w.runBatchWriter(ctx, msgCh)
	return nil
}

// runBatchWriter does size/time-based flushes. A failed insert keeps the
// buffer; once it is full the writer stops reading and only the ticker
// retries, so the buffer never grows past BatchSize.
func (w *AuditSink) runBatchWriter(ctx context.Context, in <-chan kafka.Message) {
	tick := time.NewTicker(w.BatchWait)
	defer tick.Stop()

	var (
		pending []kafka.Message
		rows    []model.AuditEnvelope
	)

	flush := func(ctx context.Context) {
		if len(pending) == 0 {
			return
		}

		if err := w.Store.InsertBatch(ctx, rows); err != nil {
			metrics.AuditSinkRowsTotal.WithLabelValues("failed").Add(float64(len(rows)))
			w.Log.Error("audit sink: insert batch failed", zap.Int("rows", len(rows)), zap.Error(err))
			return
		}
		metrics.AuditSinkRowsTotal.WithLabelValues("inserted").Add(float64(len(rows)))

		if err := w.Source.Commit(ctx, pending...); err != nil {
			// rows are stored; redelivery is deduplicated downstream
			w.Log.Warn("audit sink: commit failed", zap.Error(err))
		}

		w.Log.Debug("audit sink: flushed", zap.Int("rows", len(rows)), zap.Int("messages", len(pending)))
		pending = pending[:0]
		rows = rows[:0]
	}

	// shutdown flush must outlive the cancelled run context
	final := func() {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		flush(fctx)
	}

	for {
		src := in
		if len(pending) >= w.BatchSize {
			// backpressure: the fetcher blocks on the channel
			src = nil
		}

		select {
		case <-ctx.Done():
			final()
			return

		case m, ok := <-src:
			if !ok {
				final()
				return
			}
			pending = append(pending, m)

			env, ok := decodeEnvelope(m.Value)
			if !ok {
				// poison: committed with the batch, never stored
				metrics.AuditSinkRowsTotal.WithLabelValues("skipped").Inc()
				w.Log.Warn("audit sink: bad envelope", zap.Int64("offset", m.Offset))
			} else {
				rows = append(rows, env)
			}

			if len(pending) >= w.BatchSize {
				flush(ctx)
			}

		case <-tick.C:
			flush(ctx)
		}
	}
}

// decodeEnvelope accepts the envelope as JSON, or as a JSON string (bare or
// under "payload") the way the outbox connector may deliver it.
func decodeEnvelope(b []byte) (model.AuditEnvelope, bool) {
	var env model.AuditEnvelope
	if err := json.Unmarshal(b, &env); err == nil && env.ID > 0 {
		return env, env.Action.Valid()
	}

	var inner string
	if err := json.Unmarshal(b, &inner); err != nil {
		var wrapped struct {
			Payload string `json:"payload"`
		}
		if err := json.Unmarshal(b, &wrapped); err != nil {
			return model.AuditEnvelope{}, false
		}
		inner = wrapped.Payload
	}
	if inner == "" {
		return model.AuditEnvelope{}, false
	}

	env = model.AuditEnvelope{}
	if err := json.Unmarshal([]byte(inner), &env); err != nil || env.ID <= 0 {
		return model.AuditEnvelope{}, false
	}
	return env, env.Action.Valid()
}
