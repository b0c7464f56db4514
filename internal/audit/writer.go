package audit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of *pgxpool.Pool the writer uses.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// WriterConfig holds batching settings.
type WriterConfig struct {
	BatchSize     int
	FlushInterval time.Duration
	QueueSize     int // Pending entries accepted before Record drops
}

// Default writer settings.
const (
	DefaultBatchSize     = 100
	DefaultFlushInterval = 5 * time.Second
	DefaultQueueSize     = 1024
	flushTimeout         = 5 * time.Second
)

// WriterMetrics tracks writer throughput.
type WriterMetrics struct {
	Inserts   int64
	Conflicts int64
	Errors    int64
	Flushes   int64
	Dropped   int64
}

// Writer is a Recorder that batches entries into PostgreSQL.
type Writer struct {
	cfg    WriterConfig
	logger *slog.Logger
	db     DB

	input   chan Entry
	stopped atomic.Bool
	dropped atomic.Int64

	// Batching
	batch       []Entry
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	metrics WriterMetrics
}

// NewWriter creates a Writer. Zero config fields take defaults.
func NewWriter(cfg WriterConfig, db DB, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	return &Writer{
		cfg:    cfg,
		db:     db,
		logger: logger.With("component", "audit_writer"),
		input:  make(chan Entry, cfg.QueueSize),
		batch:  make([]Entry, 0, cfg.BatchSize),
	}
}

// Record queues e for writing. When the queue is full or the writer has
// stopped, the entry is dropped and counted.
func (w *Writer) Record(e Entry) {
	if w.stopped.Load() {
		w.dropped.Add(1)
		return
	}
	select {
	case w.input <- e:
	default:
		w.dropped.Add(1)
		w.logger.Warn("audit queue full, dropping entry", "tool", e.Tool, "id", e.ID)
	}
}

// Start begins consuming entries and writing to the database.
func (w *Writer) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	w.wg.Add(1)
	go w.consumeLoop()

	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("audit writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop drains queued entries, performs a final flush and shuts down.
func (w *Writer) Stop(ctx context.Context) error {
	w.logger.Info("stopping audit writer")
	w.stopped.Store(true)

	if w.cancel != nil {
		w.cancel()
	}
	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("audit writer stop timed out")
	}

drain:
	for {
		select {
		case e := <-w.input:
			w.add(e)
		default:
			break drain
		}
	}

	// The run context is cancelled by now; the final flush gets its own.
	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
	defer cancel()
	w.flush(flushCtx)

	w.logger.Info("audit writer stopped")
	return nil
}

// Run starts the writer, blocks until ctx is done, then stops it.
func (w *Writer) Run(ctx context.Context) error {
	if err := w.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return w.Stop(context.WithoutCancel(ctx))
}

// Stats returns current metrics.
func (w *Writer) Stats() WriterMetrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	m := w.metrics
	m.Dropped = w.dropped.Load()
	return m
}

func (w *Writer) consumeLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case e := <-w.input:
			// After cancellation, Stop performs the final flush.
			if w.add(e) && w.ctx.Err() == nil {
				w.flushBackground()
			}
		}
	}
}

func (w *Writer) flushLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.flushTicker.C:
			if w.ctx.Err() == nil {
				w.flushBackground()
			}
		}
	}
}

// add appends e and reports whether the batch is full.
func (w *Writer) add(e Entry) bool {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	w.batch = append(w.batch, e)
	return len(w.batch) >= w.cfg.BatchSize
}

// flushBackground flushes on a context Stop does not cancel. Stop waits
// for an in-flight flush before its own.
func (w *Writer) flushBackground() {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(w.ctx), flushTimeout)
	defer cancel()
	w.flush(ctx)
}

func (w *Writer) flush(ctx context.Context) {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}

	batch := w.batch
	w.batch = make([]Entry, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()

	conflicts, err := w.batchInsert(ctx, batch)
	if err != nil {
		w.logger.Error("batch insert failed", "error", err, "count", len(batch))
		w.batchMu.Lock()
		w.metrics.Errors++
		w.batchMu.Unlock()
		return
	}

	w.batchMu.Lock()
	w.metrics.Inserts += int64(len(batch) - conflicts)
	w.metrics.Conflicts += int64(conflicts)
	w.metrics.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed audit entries",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (w *Writer) batchInsert(ctx context.Context, entries []Entry) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(insertSQL,
			e.ID, e.RequestID, e.Tool, e.Action, e.AutomationID,
			e.Success, e.Error, e.Duration.Milliseconds(), e.At,
		)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range entries {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
