// Package mirror copies audit records to the external ledger in the
// background. Failures here never reach the action that produced the record:
// a record is retried with backoff, then marked abandoned, and records that
// were never queued (crash, full queue) are picked up by the sweeper.
package mirror

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/JustWint3r/SecureShare/internal/logging"
	"github.com/JustWint3r/SecureShare/internal/server/ledger"
	"github.com/JustWint3r/SecureShare/internal/server/models"
	"github.com/JustWint3r/SecureShare/internal/server/repositories/auditrecords"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sethvargo/go-retry"
)

type Config struct {
	Workers        int
	QueueSize      int
	MaxAttempts    int
	AttemptTimeout time.Duration
	BaseBackoff    time.Duration
	MaxBackoff     time.Duration
	SweepInterval  time.Duration
	SweepBatch     int
}

func DefaultConfig() Config {
	return Config{
		Workers:        4,
		QueueSize:      1024,
		MaxAttempts:    5,
		AttemptTimeout: 5 * time.Second,
		BaseBackoff:    200 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
		SweepInterval:  time.Minute,
		SweepBatch:     500,
	}
}

type Worker struct {
	records auditrecords.Repository
	writer  ledger.Writer
	log     logging.Logger
	metrics *Metrics
	cfg     Config
	now     func() time.Time

	queue chan *models.AuditRecord

	mu       sync.Mutex
	inflight map[string]struct{}
}

func New(records auditrecords.Repository, writer ledger.Writer, log logging.Logger, metrics *Metrics, cfg Config) *Worker {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = def.AttemptTimeout
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = def.BaseBackoff
	}
	if cfg.MaxBackoff < cfg.BaseBackoff {
		cfg.MaxBackoff = cfg.BaseBackoff
	}
	if cfg.SweepBatch <= 0 {
		cfg.SweepBatch = def.SweepBatch
	}
	if metrics == nil {
		metrics = NewMetrics(prometheus.NewRegistry())
	}
	if log == nil {
		log = logging.Nop{}
	}
	return &Worker{
		records:  records,
		writer:   writer,
		log:      log.With("module", "mirror"),
		metrics:  metrics,
		cfg:      cfg,
		now:      time.Now,
		queue:    make(chan *models.AuditRecord, cfg.QueueSize),
		inflight: map[string]struct{}{},
	}
}

// Enqueue schedules rec for mirroring without blocking. It reports false when
// the record is already pending or the queue is full.
func (w *Worker) Enqueue(rec *models.AuditRecord) bool {
	if rec == nil || rec.ExternalLedgerRef != nil {
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.inflight[rec.ID]; ok {
		return false
	}
	select {
	case w.queue <- rec:
		w.inflight[rec.ID] = struct{}{}
		w.metrics.pending.Set(float64(len(w.inflight)))
		return true
	default:
		w.metrics.dropped.Inc()
		return false
	}
}

// Pending is the number of records queued or being written.
func (w *Worker) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.inflight)
}

// Unmirrored counts stored records that still have no ledger reference and
// were not abandoned.
func (w *Worker) Unmirrored(ctx context.Context) (int64, error) {
	return w.records.CountUnmirrored(ctx)
}

func (w *Worker) done(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.inflight, id)
	w.metrics.pending.Set(float64(len(w.inflight)))
}

// Run starts the workers and the sweeper and blocks until ctx is done.
// Queued records left behind at shutdown are recovered by the next sweep.
func (w *Worker) Run(ctx context.Context) {
	var wg sync.WaitGroup

	for i := 0; i < w.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.work(ctx)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		w.sweepLoop(ctx)
	}()

	wg.Wait()
}

func (w *Worker) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case rec := <-w.queue:
			w.mirror(ctx, rec)
			w.done(rec.ID)
		}
	}
}

func (w *Worker) sweepLoop(ctx context.Context) {
	if err := w.Sweep(ctx); err != nil && ctx.Err() == nil {
		w.log.Warn(ctx, "mirror sweep failed", "error", err)
	}
	if w.cfg.SweepInterval <= 0 {
		return
	}

	ticker := time.NewTicker(w.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.Sweep(ctx); err != nil && ctx.Err() == nil {
				w.log.Warn(ctx, "mirror sweep failed", "error", err)
			}
		}
	}
}

// Sweep enqueues stored records that are neither mirrored nor abandoned.
func (w *Worker) Sweep(ctx context.Context) error {
	recs, err := w.records.ListUnmirrored(ctx, w.cfg.SweepBatch)
	if err != nil {
		return err
	}
	queued := 0
	for _, rec := range recs {
		if w.Enqueue(rec) {
			queued++
		}
	}
	if queued > 0 {
		w.log.Debug(ctx, "mirror sweep queued records", "count", queued)
	}
	return nil
}

func (w *Worker) backoff() retry.Backoff {
	b := retry.NewExponential(w.cfg.BaseBackoff)
	b = retry.WithJitterPercent(20, b)
	b = retry.WithCappedDuration(w.cfg.MaxBackoff, b)
	return retry.WithMaxRetries(uint64(w.cfg.MaxAttempts-1), b)
}

func (w *Worker) mirror(ctx context.Context, rec *models.AuditRecord) {
	log := w.log.With("record_id", rec.ID)

	payload, err := ledger.Payload(rec)
	if err != nil {
		w.abandon(ctx, log, rec, 0, err)
		return
	}

	attempts := 0
	err = retry.Do(ctx, w.backoff(), func(ctx context.Context) error {
		attempts++
		actx, cancel := context.WithTimeout(ctx, w.cfg.AttemptTimeout)
		ref, err := w.writer.Write(actx, rec.ID, payload)
		cancel()

		if err != nil {
			w.metrics.failedAttempts.Inc()
			if ierr := w.records.IncrementMirrorAttempts(ctx, rec.ID); ierr != nil {
				log.Warn(ctx, "recording mirror attempt failed", "error", ierr)
			}
			if errors.Is(err, ledger.ErrConflict) {
				return err
			}
			log.Debug(ctx, "ledger write failed", "attempt", attempts, "error", err)
			return retry.RetryableError(err)
		}

		if _, err := w.records.SetExternalRef(ctx, rec.ID, ref); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		w.abandon(ctx, log, rec, attempts, err)
		return
	}

	w.metrics.succeeded.Inc()
	log.Debug(ctx, "audit record mirrored", "attempts", attempts)
}

func (w *Worker) abandon(ctx context.Context, log logging.Logger, rec *models.AuditRecord, attempts int, cause error) {
	w.metrics.abandoned.Inc()
	if err := w.records.MarkAbandoned(ctx, rec.ID, w.now().UTC()); err != nil {
		log.Error(ctx, "marking mirror abandoned failed", "error", err)
	}
	log.Error(ctx, "audit mirror abandoned", "attempts", attempts, "error", cause)
}
