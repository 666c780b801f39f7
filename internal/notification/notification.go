// Package notification implements the push-notification job pipeline:
// batch creation, blacklist validation, and the sending handler.
package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/you/reserveq/internal/domain"
	"github.com/you/reserveq/internal/notify"
	"github.com/you/reserveq/internal/queue"
)

// TopicName is the queue topic notification jobs run on.
const TopicName = "push_notification"

// Message is one notification to deliver.
type Message struct {
	PhoneNumber string `json:"phoneNumber"`
	Message     string `json:"message"`
}

// Blacklist is an immutable set of rejected phone numbers, checked before
// any work happens for a job.
type Blacklist struct {
	numbers map[string]struct{}
}

func NewBlacklist(numbers ...string) *Blacklist {
	set := make(map[string]struct{}, len(numbers))
	for _, n := range numbers {
		set[n] = struct{}{}
	}
	return &Blacklist{numbers: set}
}

// DefaultBlacklist returns the stock rejection list.
func DefaultBlacklist() *Blacklist {
	return NewBlacklist("4153518780", "4153518781")
}

func (b *Blacklist) Contains(number string) bool {
	_, ok := b.numbers[number]
	return ok
}

// NewHandler returns the queue handler for notification jobs. Blacklisted
// numbers fail with a reason naming the number; everything else reports
// progress at 0 and 50 and completes.
func NewHandler(bl *Blacklist, log *zap.Logger) queue.Handler {
	return func(ctx context.Context, job domain.Job, progress func(int), done func(error)) {
		var m Message
		if err := json.Unmarshal(job.Payload, &m); err != nil {
			done(&domain.ValidationError{Reason: fmt.Sprintf("bad payload: %v", err)})
			return
		}
		if m.PhoneNumber == "" {
			done(&domain.ValidationError{Reason: "phoneNumber is required"})
			return
		}

		progress(0)
		if bl.Contains(m.PhoneNumber) {
			done(&domain.ValidationError{
				Reason: fmt.Sprintf("phone number %s is blacklisted", m.PhoneNumber),
			})
			return
		}

		progress(50)
		log.Info("sending notification",
			zap.Int64("job_id", job.ID),
			zap.String("phone_number", m.PhoneNumber),
			zap.String("message", m.Message))
		done(nil)
	}
}

// EnqueueBatch creates one notification job per message, registering obs on
// each. Jobs created before a failing enqueue stay queued.
func EnqueueBatch(ctx context.Context, q *queue.Queue, msgs []Message, obs ...notify.Observer) ([]domain.Job, error) {
	jobs := make([]domain.Job, 0, len(msgs))
	for _, m := range msgs {
		payload, err := json.Marshal(m)
		if err != nil {
			return jobs, err
		}
		job, err := q.Enqueue(ctx, TopicName, payload, obs...)
		if err != nil {
			return jobs, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}
