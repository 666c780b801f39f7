// Package queue holds the job queue core: per-topic FIFO ordering, monotonic
// job IDs, an exclusive concurrency-bounded claim, and exactly-once terminal
// transitions. The queue itself is in-process; job state snapshots are
// journaled to the kvstore so the counters and the jobs live side by side,
// but no behavior depends on the journal being readable.
package queue

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/you/reserveq/internal/domain"
	"github.com/you/reserveq/internal/kvstore"
	"github.com/you/reserveq/internal/notify"
)

// Handler processes one claimed job. progress is fire-and-forget; done must
// be called exactly once with nil for success or the failure cause.
type Handler func(ctx context.Context, job domain.Job, progress func(int), done func(error))

// Topic is a registered job class.
type Topic struct {
	Name        string
	Concurrency int
}

// EnqueueError means the job could not be persisted; the caller must treat
// the reservation as not guaranteed.
type EnqueueError struct {
	Err error
}

func (e *EnqueueError) Error() string { return fmt.Sprintf("enqueue: %v", e.Err) }
func (e *EnqueueError) Unwrap() error { return e.Err }

type topicReg struct {
	concurrency int
	handler     Handler
}

type Queue struct {
	store    kvstore.Store
	notifier *notify.Notifier
	log      *zap.Logger

	mu      sync.Mutex
	seq     map[string]int64
	topics  map[string]topicReg
	pending map[string][]*domain.Job
	active  map[string]int
	jobs    map[string]map[int64]*domain.Job
	wake    map[string]chan struct{}
}

func New(store kvstore.Store, notifier *notify.Notifier, log *zap.Logger) *Queue {
	return &Queue{
		store:    store,
		notifier: notifier,
		log:      log,
		seq:      make(map[string]int64),
		topics:   make(map[string]topicReg),
		pending:  make(map[string][]*domain.Job),
		active:   make(map[string]int),
		jobs:     make(map[string]map[int64]*domain.Job),
		wake:     make(map[string]chan struct{}),
	}
}

// RegisterHandler binds a handler and concurrency level to a topic.
// Re-registration replaces the previous binding (last write wins).
func (q *Queue) RegisterHandler(topic string, concurrency int, h Handler) {
	if concurrency < 1 {
		concurrency = 1
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.topics[topic] = topicReg{concurrency: concurrency, handler: h}
	if q.wake[topic] == nil {
		q.wake[topic] = make(chan struct{}, 1)
	}
}

// Topics lists the registered topics, sorted by name.
func (q *Queue) Topics() []Topic {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Topic, 0, len(q.topics))
	for name, reg := range q.topics {
		out = append(out, Topic{Name: name, Concurrency: reg.concurrency})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// HandlerFor returns the handler bound to topic, or nil.
func (q *Queue) HandlerFor(topic string) Handler {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.topics[topic].handler
}

// Wake returns the channel a worker slot can wait on for new work on topic.
func (q *Queue) Wake(topic string) <-chan struct{} {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.wake[topic] == nil {
		q.wake[topic] = make(chan struct{}, 1)
	}
	return q.wake[topic]
}

// Enqueue creates a job, persists it to the journal, registers the given
// observers, emits the created event, and makes the job claimable. It returns
// as soon as the job is queued; processing is asynchronous.
func (q *Queue) Enqueue(ctx context.Context, topic string, payload []byte, obs ...notify.Observer) (domain.Job, error) {
	now := time.Now().UTC()

	q.mu.Lock()
	id := q.seq[topic] + 1
	job := &domain.Job{
		ID:        id,
		Topic:     topic,
		Payload:   payload,
		State:     domain.StateCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := q.store.Set(ctx, journalKey(topic, id), string(domain.StateCreated)); err != nil {
		q.mu.Unlock()
		return domain.Job{}, &EnqueueError{Err: err}
	}
	q.seq[topic] = id
	if q.jobs[topic] == nil {
		q.jobs[topic] = make(map[int64]*domain.Job)
	}
	q.jobs[topic][id] = job
	for _, o := range obs {
		q.notifier.Observe(topic, id, o)
	}
	q.mu.Unlock()

	// The job is not claimable yet, so created is always the first event
	// observers see.
	q.notifier.Publish(notify.Event{Type: notify.EventCreated, Topic: topic, JobID: id})

	q.mu.Lock()
	// A terminal mark may land while the created event is being delivered;
	// terminal states are absorbing, so such a job never becomes claimable.
	if !job.State.Terminal() {
		job.State = domain.StateQueued
		job.UpdatedAt = time.Now().UTC()
		q.journalLocked(ctx, job)
		q.pending[topic] = append(q.pending[topic], job)
		q.wakeLocked(topic)
	}
	snapshot := *job
	q.mu.Unlock()

	return snapshot, nil
}

// ClaimNext hands the oldest queued job for topic to the caller, if the
// topic's concurrency limit has room. The claim is exclusive: the whole
// transition happens under the queue lock.
func (q *Queue) ClaimNext(ctx context.Context, topic string) (domain.Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	reg, ok := q.topics[topic]
	if !ok || q.active[topic] >= reg.concurrency {
		return domain.Job{}, false
	}
	for len(q.pending[topic]) > 0 {
		job := q.pending[topic][0]
		q.pending[topic] = q.pending[topic][1:]
		// Jobs marked terminal while still queued stay terminal; drop them
		// instead of resurrecting them into active.
		if job.State.Terminal() {
			continue
		}
		job.State = domain.StateActive
		job.UpdatedAt = time.Now().UTC()
		q.active[topic]++
		q.journalLocked(ctx, job)
		return *job, true
	}
	return domain.Job{}, false
}

// MarkComplete sets the terminal complete state. Calling it on a job that is
// already terminal is a no-op.
func (q *Queue) MarkComplete(ctx context.Context, topic string, id int64) {
	if q.finish(ctx, topic, id, domain.StateComplete, "") {
		q.notifier.Publish(notify.Event{Type: notify.EventComplete, Topic: topic, JobID: id})
	}
}

// MarkFailed sets the terminal failed state with the cause. Calling it on a
// job that is already terminal is a no-op.
func (q *Queue) MarkFailed(ctx context.Context, topic string, id int64, cause error) {
	reason := "failed"
	if cause != nil {
		reason = cause.Error()
	}
	if q.finish(ctx, topic, id, domain.StateFailed, reason) {
		q.notifier.Publish(notify.Event{Type: notify.EventFailed, Topic: topic, JobID: id, Reason: reason})
	}
}

func (q *Queue) finish(ctx context.Context, topic string, id int64, state domain.State, reason string) bool {
	q.mu.Lock()
	job := q.jobs[topic][id]
	if job == nil || job.State.Terminal() {
		q.mu.Unlock()
		return false
	}
	wasActive := job.State == domain.StateActive
	if job.State == domain.StateQueued {
		q.dropPendingLocked(topic, id)
	}
	job.State = state
	job.FailureReason = reason
	if state == domain.StateComplete {
		job.Progress = 100
	}
	job.UpdatedAt = time.Now().UTC()
	q.journalLocked(ctx, job)
	if wasActive && q.active[topic] > 0 {
		q.active[topic]--
	}
	if len(q.pending[topic]) > 0 {
		q.wakeLocked(topic)
	}
	q.mu.Unlock()
	return true
}

// ReportProgress records pct for the job and emits a progress event. Values
// are clamped to 0-100; regressions and reports after a terminal state are
// dropped, so observed progress is always non-decreasing.
func (q *Queue) ReportProgress(topic string, id int64, pct int) {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	q.mu.Lock()
	job := q.jobs[topic][id]
	if job == nil || job.State.Terminal() || pct < job.Progress {
		q.mu.Unlock()
		return
	}
	job.Progress = pct
	job.UpdatedAt = time.Now().UTC()
	q.mu.Unlock()

	q.notifier.Publish(notify.Event{Type: notify.EventProgress, Topic: topic, JobID: id, Progress: pct})
}

// Lookup returns a snapshot of the job, if it exists.
func (q *Queue) Lookup(topic string, id int64) (domain.Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job := q.jobs[topic][id]
	if job == nil {
		return domain.Job{}, false
	}
	return *job, true
}

func (q *Queue) dropPendingLocked(topic string, id int64) {
	pending := q.pending[topic]
	for i, j := range pending {
		if j.ID == id {
			q.pending[topic] = append(pending[:i], pending[i+1:]...)
			return
		}
	}
}

func (q *Queue) wakeLocked(topic string) {
	ch := q.wake[topic]
	if ch == nil {
		ch = make(chan struct{}, 1)
		q.wake[topic] = ch
	}
	select {
	case ch <- struct{}{}:
	default:
	}
}

// journalLocked writes the job's state snapshot to the store. Journal writes
// after enqueue are best-effort: a failure is logged, never propagated.
func (q *Queue) journalLocked(ctx context.Context, job *domain.Job) {
	if err := q.store.Set(ctx, journalKey(job.Topic, job.ID), string(job.State)); err != nil {
		q.log.Warn("job journal write failed",
			zap.String("topic", job.Topic), zap.Int64("job_id", job.ID), zap.Error(err))
	}
}

func journalKey(topic string, id int64) string {
	return fmt.Sprintf("job:%s:%d", topic, id)
}
