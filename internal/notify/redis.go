package notify

import (
	"context"
	"encoding/json"

	r "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBridge fans lifecycle events out over a Redis pub/sub channel so other
// processes can follow a job without sharing memory with the queue.
type RedisBridge struct {
	rdb     *r.Client
	channel string
	log     *zap.Logger
}

func NewRedisBridge(rdb *r.Client, channel string, log *zap.Logger) *RedisBridge {
	return &RedisBridge{rdb: rdb, channel: channel, log: log}
}

// Sink returns an Observer that publishes each event as JSON. Publish
// failures are logged and dropped; delivery is best-effort end to end.
func (b *RedisBridge) Sink() Observer {
	return func(ev Event) {
		data, err := json.Marshal(ev)
		if err != nil {
			b.log.Error("event marshal failed", zap.Error(err))
			return
		}
		if err := b.rdb.Publish(context.Background(), b.channel, data).Err(); err != nil {
			b.log.Warn("event publish failed", zap.Error(err))
		}
	}
}

// Listen subscribes to the bridge channel and decodes events onto the
// returned channel until ctx is canceled. The subscription is confirmed
// before Listen returns, so events published afterwards are not missed.
func (b *RedisBridge) Listen(ctx context.Context) <-chan Event {
	out := make(chan Event)
	sub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		b.log.Warn("subscribe failed", zap.Error(err))
		sub.Close()
		close(out)
		return out
	}

	go func() {
		defer close(out)
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-sub.Channel():
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					b.log.Warn("event decode failed", zap.Error(err))
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
