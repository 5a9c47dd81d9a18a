// Package relay fans live job logs out to the observers of each job.
package relay

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/pkg/errors"

	"github.com/bornholm/trainyard/internal/metrics"
	"github.com/bornholm/trainyard/internal/queue"
)

const DefaultBufferSize = 256

// Stream is a source of log messages, as returned by queue.Client.PSubscribe.
type Stream interface {
	Messages() <-chan *queue.LogMessage
	Close() error
}

type Relay struct {
	groups     cmap.ConcurrentMap[string, *group]
	bufferSize int
	logger     *slog.Logger
}

type OptionFunc func(r *Relay)

func WithBufferSize(size int) OptionFunc {
	return func(r *Relay) {
		if size > 0 {
			r.bufferSize = size
		}
	}
}

func New(logger *slog.Logger, funcs ...OptionFunc) *Relay {
	relay := &Relay{
		groups:     cmap.New[*group](),
		bufferSize: DefaultBufferSize,
		logger:     logger.With("component", "log-relay"),
	}

	for _, fn := range funcs {
		fn(relay)
	}

	return relay
}

type group struct {
	mutex   sync.RWMutex
	members map[*Subscription]struct{}
}

// Subscription receives the log lines of one job until it leaves.
type Subscription struct {
	relay     *Relay
	jobID     uint
	messages  chan string
	dropped   atomic.Int64
	leaveOnce sync.Once
}

// Messages is closed once the subscription has left.
func (s *Subscription) Messages() <-chan string {
	return s.messages
}

// Dropped returns the number of messages this subscriber was too slow to receive.
func (s *Subscription) Dropped() int64 {
	return s.dropped.Load()
}

func (s *Subscription) Leave() {
	s.leaveOnce.Do(func() {
		s.relay.leave(s)
	})
}

func groupKey(jobID uint) string {
	return strconv.FormatUint(uint64(jobID), 10)
}

// Join adds a subscriber to the job's group, creating the group if needed.
func (r *Relay) Join(jobID uint) *Subscription {
	sub := &Subscription{
		relay:    r,
		jobID:    jobID,
		messages: make(chan string, r.bufferSize),
	}

	r.groups.Upsert(groupKey(jobID), nil, func(exist bool, valueInMap *group, _ *group) *group {
		if !exist || valueInMap == nil {
			valueInMap = &group{members: make(map[*Subscription]struct{})}
		}

		valueInMap.mutex.Lock()
		valueInMap.members[sub] = struct{}{}
		valueInMap.mutex.Unlock()

		return valueInMap
	})

	metrics.RelaySubscriberGauge.Inc()

	r.logger.Debug("subscriber joined", slog.Uint64("job_id", uint64(jobID)))

	return sub
}

func (r *Relay) leave(sub *Subscription) {
	r.groups.RemoveCb(groupKey(sub.jobID), func(_ string, g *group, exists bool) bool {
		if !exists {
			return false
		}

		g.mutex.Lock()
		defer g.mutex.Unlock()

		delete(g.members, sub)

		return len(g.members) == 0
	})

	// No broadcast can reach the subscription once it is out of its group
	close(sub.messages)

	metrics.RelaySubscriberGauge.Dec()

	r.logger.Debug("subscriber left", slog.Uint64("job_id", uint64(sub.jobID)), slog.Int64("dropped", sub.Dropped()))
}

// Subscribers returns the number of subscribers of the job.
func (r *Relay) Subscribers(jobID uint) int {
	g, exists := r.groups.Get(groupKey(jobID))
	if !exists {
		return 0
	}

	g.mutex.RLock()
	defer g.mutex.RUnlock()

	return len(g.members)
}

// Broadcast delivers the payload to every subscriber of the job without
// blocking. Subscribers whose buffer is full miss the message.
func (r *Relay) Broadcast(jobID uint, payload string) (delivered int, dropped int) {
	g, exists := r.groups.Get(groupKey(jobID))
	if !exists {
		return 0, 0
	}

	g.mutex.RLock()
	defer g.mutex.RUnlock()

	for sub := range g.members {
		select {
		case sub.messages <- payload:
			delivered++
		default:
			sub.dropped.Add(1)
			dropped++
		}
	}

	metrics.RelayDeliveredCount.Add(float64(delivered))
	metrics.RelayDroppedCount.Add(float64(dropped))

	return delivered, dropped
}

// Run forwards the stream's messages to the groups matching their channel
// until the context is done or the stream ends.
func (r *Relay) Run(ctx context.Context, stream Stream) error {
	defer func() {
		if err := stream.Close(); err != nil {
			r.logger.WarnContext(ctx, "could not close log stream", slog.Any("error", err))
		}
	}()

	messages := stream.Messages()

	for {
		select {
		case <-ctx.Done():
			return errors.WithStack(ctx.Err())

		case msg, ok := <-messages:
			if !ok {
				r.logger.WarnContext(ctx, "log stream closed")
				return nil
			}

			jobID, ok := queue.JobIDFromChannel(msg.Channel)
			if !ok {
				r.logger.WarnContext(ctx, "ignoring message on unexpected channel", slog.String("channel", msg.Channel))
				continue
			}

			if _, dropped := r.Broadcast(jobID, msg.Payload); dropped > 0 {
				r.logger.DebugContext(ctx, "log messages dropped for slow subscribers", slog.Uint64("job_id", uint64(jobID)), slog.Int("dropped", dropped))
			}
		}
	}
}
