// Package mirror tails every published event onto a Redis Stream so
// external observers can follow a session without touching the bus.
package mirror

import (
	"context"
	"fmt"
	"time"

	"github.com/nidhogg/curia/internal/event"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const stream = "curia:events"

// observerPriority keeps the mirror behind every member handler in each
// dispatch cycle.
const observerPriority = -1 << 20

// Mirror copies bus events to Redis.
type Mirror struct {
	rdb    *redis.Client
	logger *zap.Logger
}

// New connects to Redis and returns a mirror.
func New(redisURL string, logger *zap.Logger) (*Mirror, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	logger.Info("Redis connected")
	return &Mirror{rdb: rdb, logger: logger}, nil
}

// Attach subscribes the mirror to all events at observer priority. A
// mirror failure is reported through the bus error sink and never
// disturbs dispatch.
func (m *Mirror) Attach(bus *event.Bus) *event.Subscription {
	return bus.SubscribeAll(observerPriority, m.mirror)
}

func (m *Mirror) mirror(ev event.Event) error {
	data, err := event.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", ev.ID(), err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := m.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{"data": string(data)},
	}).Err(); err != nil {
		return fmt.Errorf("mirror event %s: %w", ev.ID(), err)
	}
	return nil
}

// Tail reads events from the stream. Cancel the context to stop.
func (m *Mirror) Tail(ctx context.Context) <-chan []byte {
	ch := make(chan []byte, 16)
	go func() {
		defer close(ch)
		lastID := "0"
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			results, err := m.rdb.XRead(ctx, &redis.XReadArgs{
				Streams: []string{stream, lastID},
				Count:   32,
				Block:   2 * time.Second,
			}).Result()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				continue
			}
			for _, r := range results {
				for _, msg := range r.Messages {
					lastID = msg.ID
					if data, ok := msg.Values["data"].(string); ok {
						ch <- []byte(data)
					}
				}
			}
		}
	}()
	return ch
}

// Close shuts down the Redis connection.
func (m *Mirror) Close() error {
	return m.rdb.Close()
}
