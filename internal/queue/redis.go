package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"github.com/bornholm/trainyard/internal/failure"
)

// Client pushes job messages on a Redis list and subscribes to the log
// channels workers publish on.
type Client struct {
	client *redis.Client
	queue  string
	logger *slog.Logger
}

func NewClient(client *redis.Client, queue string, logger *slog.Logger) *Client {
	return &Client{
		client: client,
		queue:  queue,
		logger: logger.With("component", "queue", "queue", queue),
	}
}

// Dispatch appends the message to the job queue.
func (c *Client) Dispatch(ctx context.Context, message *JobMessage) error {
	data, err := json.Marshal(message)
	if err != nil {
		return errors.WithStack(err)
	}

	if err := c.client.RPush(ctx, c.queue, data).Err(); err != nil {
		return failure.UpstreamUnavailable(err, "could not enqueue job %d", message.JobID)
	}

	c.logger.DebugContext(ctx, "job dispatched", slog.Uint64("job_id", uint64(message.JobID)))

	return nil
}

func (c *Client) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return failure.UpstreamUnavailable(err, "redis ping failed")
	}

	return nil
}

// Stream is a pattern subscription. Its message channel is closed once the
// stream is closed.
type Stream struct {
	pubsub    *redis.PubSub
	messages  chan *LogMessage
	done      chan struct{}
	closeOnce sync.Once
}

func (s *Stream) Messages() <-chan *LogMessage {
	return s.messages
}

func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.pubsub.Close()
	})

	return errors.WithStack(err)
}

// PSubscribe subscribes to every channel matching the pattern and waits for
// the server to confirm the subscription.
func (c *Client) PSubscribe(ctx context.Context, pattern string) (*Stream, error) {
	pubsub := c.client.PSubscribe(ctx, pattern)

	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, failure.UpstreamUnavailable(err, "could not subscribe to '%s'", pattern)
	}

	stream := &Stream{
		pubsub:   pubsub,
		messages: make(chan *LogMessage),
		done:     make(chan struct{}),
	}

	go func() {
		defer close(stream.messages)

		for msg := range pubsub.Channel() {
			select {
			case stream.messages <- &LogMessage{Channel: msg.Channel, Payload: msg.Payload}:
			case <-stream.done:
				return
			}
		}
	}()

	c.logger.InfoContext(ctx, "subscribed to log channels", slog.String("pattern", pattern))

	return stream, nil
}
