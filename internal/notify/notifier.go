// Package notify broadcasts job lifecycle events to in-process observers.
// Delivery is best-effort and synchronous: Publish runs every observer before
// returning, under one lock, so events for a job are always seen in the
// order they were published.
package notify

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type EventType string

const (
	EventCreated  EventType = "created"
	EventProgress EventType = "progress"
	EventComplete EventType = "complete"
	EventFailed   EventType = "failed"
)

// Event describes one lifecycle transition of one job.
type Event struct {
	Type     EventType `json:"type"`
	Topic    string    `json:"topic"`
	JobID    int64     `json:"job_id"`
	Progress int       `json:"progress,omitempty"`
	Reason   string    `json:"reason,omitempty"`
}

// Observer receives events. Observers run inline inside Publish and must not
// call back into the Notifier.
type Observer func(Event)

type Notifier struct {
	mu    sync.Mutex
	subs  map[string]map[string]Observer
	sinks []Observer
	log   *zap.Logger
}

func New(log *zap.Logger) *Notifier {
	return &Notifier{
		subs: make(map[string]map[string]Observer),
		log:  log,
	}
}

func jobKey(topic string, id int64) string {
	return fmt.Sprintf("%s/%d", topic, id)
}

// Observe registers an observer for one job. The returned func removes the
// registration; observers are also dropped automatically after the job's
// terminal event.
func (n *Notifier) Observe(topic string, id int64, obs Observer) func() {
	key := jobKey(topic, id)
	token := uuid.NewString()

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.subs[key] == nil {
		n.subs[key] = make(map[string]Observer)
	}
	n.subs[key][token] = obs

	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if m, ok := n.subs[key]; ok {
			delete(m, token)
			if len(m) == 0 {
				delete(n.subs, key)
			}
		}
	}
}

// AddSink registers an observer for every event of every job.
func (n *Notifier) AddSink(obs Observer) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sinks = append(n.sinks, obs)
}

// Publish delivers ev to the job's observers and all sinks. After a terminal
// event the job's observers are dropped.
func (n *Notifier) Publish(ev Event) {
	n.mu.Lock()
	defer n.mu.Unlock()

	key := jobKey(ev.Topic, ev.JobID)
	for _, obs := range n.subs[key] {
		obs(ev)
	}
	for _, obs := range n.sinks {
		obs(ev)
	}
	if ev.Type == EventComplete || ev.Type == EventFailed {
		delete(n.subs, key)
	}
}

// LogSink writes each event through the given logger, mirroring the lines
// the original creator scripts printed.
func LogSink(log *zap.Logger) Observer {
	return func(ev Event) {
		fields := []zap.Field{
			zap.String("topic", ev.Topic),
			zap.Int64("job_id", ev.JobID),
		}
		switch ev.Type {
		case EventCreated:
			log.Info("job created", fields...)
		case EventProgress:
			log.Info("job progress", append(fields, zap.Int("progress", ev.Progress))...)
		case EventComplete:
			log.Info("job completed", fields...)
		case EventFailed:
			log.Info("job failed", append(fields, zap.String("reason", ev.Reason))...)
		}
	}
}
