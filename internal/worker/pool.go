// Package worker runs the execution slots that drain the queue: one
// goroutine per slot per registered topic, each claiming, executing, and
// reporting one job at a time.
package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/you/reserveq/internal/domain"
	"github.com/you/reserveq/internal/queue"
)

// Archiver records terminal job states somewhere durable. Recording is off
// the reservation path; failures are logged and dropped.
type Archiver interface {
	Record(ctx context.Context, job domain.Job) error
}

type Pool struct {
	q       *queue.Queue
	log     *zap.Logger
	poll    time.Duration
	archive Archiver
}

// New builds a pool over q. poll bounds how long an idle slot waits before
// re-checking for work; archive may be nil.
func New(q *queue.Queue, log *zap.Logger, poll time.Duration, archive Archiver) *Pool {
	if poll <= 0 {
		poll = 250 * time.Millisecond
	}
	return &Pool{q: q, log: log, poll: poll, archive: archive}
}

// Run starts every slot for every registered topic and blocks until ctx is
// canceled. Topics registered after Run starts are not picked up.
func (p *Pool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, t := range p.q.Topics() {
		for slot := 0; slot < t.Concurrency; slot++ {
			topic := t.Name
			slot := slot
			g.Go(func() error {
				return p.runSlot(ctx, topic, slot)
			})
		}
	}
	return g.Wait()
}

func (p *Pool) runSlot(ctx context.Context, topic string, slot int) error {
	log := p.log.With(zap.String("topic", topic), zap.Int("slot", slot))
	log.Info("worker slot started")
	wake := p.q.Wake(topic)

	for {
		job, ok := p.q.ClaimNext(ctx, topic)
		if !ok {
			select {
			case <-ctx.Done():
				log.Info("worker slot stopped")
				return ctx.Err()
			case <-wake:
			case <-time.After(p.poll):
			}
			continue
		}
		p.execute(ctx, job, log)
	}
}

// execute runs the topic handler for one claimed job. Whatever the handler
// does, the job ends terminal and the slot survives: panics become failures,
// and a handler that returns without calling done fails the job too.
func (p *Pool) execute(ctx context.Context, job domain.Job, log *zap.Logger) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("handler panicked", zap.Int64("job_id", job.ID), zap.Any("panic", r))
			p.q.MarkFailed(ctx, job.Topic, job.ID, fmt.Errorf("handler panic: %v", r))
		}
		p.record(ctx, job.Topic, job.ID)
	}()

	handler := p.q.HandlerFor(job.Topic)
	if handler == nil {
		p.q.MarkFailed(ctx, job.Topic, job.ID, fmt.Errorf("no handler for topic %s", job.Topic))
		return
	}

	progress := func(pct int) {
		p.q.ReportProgress(job.Topic, job.ID, pct)
	}
	done := func(err error) {
		if err != nil {
			p.q.MarkFailed(ctx, job.Topic, job.ID, err)
			return
		}
		p.q.MarkComplete(ctx, job.Topic, job.ID)
	}

	handler(ctx, job, progress, done)

	if got, ok := p.q.Lookup(job.Topic, job.ID); ok && !got.State.Terminal() {
		p.q.MarkFailed(ctx, job.Topic, job.ID, fmt.Errorf("handler returned without reporting a result"))
	}
}

func (p *Pool) record(ctx context.Context, topic string, id int64) {
	if p.archive == nil {
		return
	}
	job, ok := p.q.Lookup(topic, id)
	if !ok || !job.State.Terminal() {
		return
	}
	if err := p.archive.Record(ctx, job); err != nil {
		p.log.Warn("job archive write failed",
			zap.String("topic", topic), zap.Int64("job_id", id), zap.Error(err))
	}
}
