// Command notify enqueues a batch of push-notification jobs through the API
// and follows their lifecycle over the Redis event channel, printing one line
// per event the way the original creator script did.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	r "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/you/reserveq/internal/domain"
	"github.com/you/reserveq/internal/notification"
	"github.com/you/reserveq/internal/notify"
)

var sample = []notification.Message{
	{PhoneNumber: "4153518780", Message: "This is the code 1234 to verify your account"},
	{PhoneNumber: "4153518781", Message: "This is the code 4562 to verify your account"},
	{PhoneNumber: "4153518743", Message: "This is the code 4321 to verify your account"},
	{PhoneNumber: "4153538781", Message: "This is the code 4562 to verify your account"},
	{PhoneNumber: "4153118782", Message: "This is the code 4321 to verify your account"},
}

func main() {
	var (
		apiBase   = flag.String("api", "http://localhost:1245", "reserveq API base URL")
		redisAddr = flag.String("redis", "localhost:6379", "redis address")
		channel   = flag.String("channel", "reserveq:events", "lifecycle event channel")
		timeout   = flag.Duration("timeout", 30*time.Second, "how long to wait for terminal events")
	)
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	rdb := r.NewClient(&r.Options{Addr: *redisAddr})
	defer rdb.Close()

	// Listen confirms the subscription before returning, so every event for
	// the batch below will be seen.
	bridge := notify.NewRedisBridge(rdb, *channel, logger)
	events := bridge.Listen(ctx)

	body, err := json.Marshal(sample)
	if err != nil {
		logger.Fatal("marshal failed", zap.Error(err))
	}
	resp, err := http.Post(*apiBase+"/jobs", "application/json", bytes.NewReader(body))
	if err != nil {
		logger.Fatal("create jobs failed", zap.Error(err))
	}
	var created struct {
		Jobs []domain.Job `json:"jobs"`
	}
	decodeErr := json.NewDecoder(resp.Body).Decode(&created)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated || decodeErr != nil {
		logger.Fatal("create jobs rejected",
			zap.Int("status", resp.StatusCode), zap.Error(decodeErr))
	}

	waiting := make(map[int64]struct{}, len(created.Jobs))
	for _, j := range created.Jobs {
		fmt.Printf("Notification job created: %d\n", j.ID)
		waiting[j.ID] = struct{}{}
	}

	for len(waiting) > 0 {
		ev, ok := <-events
		if !ok {
			logger.Warn("event stream closed before all jobs finished",
				zap.Int("waiting", len(waiting)))
			return
		}
		if ev.Topic != notification.TopicName {
			continue
		}
		if _, ours := waiting[ev.JobID]; !ours {
			continue
		}
		switch ev.Type {
		case notify.EventProgress:
			fmt.Printf("Notification job %d %d%% complete\n", ev.JobID, ev.Progress)
		case notify.EventComplete:
			fmt.Printf("Notification job %d completed\n", ev.JobID)
			delete(waiting, ev.JobID)
		case notify.EventFailed:
			fmt.Printf("Notification job %d failed: %s\n", ev.JobID, ev.Reason)
			delete(waiting, ev.JobID)
		}
	}
}
