// Package pulsebus republishes already-drained delegate events onto a
// goa.design/pulse stream, so a horizontally scaled deployment (multiple
// orchestrator processes behind a shared event consumer) can fan delegation
// events out beyond a single process's in-memory eventbus.Bus. Grounded on
// the teacher's features/stream/pulse.Sink.
package pulsebus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"goa.design/pulse/streaming"

	"github.com/veupathdb/strategy-delegate/delegate"
)

// Sink publishes delegate.Event values onto a named Pulse stream. It is
// additive to eventbus.Bus: the bus's quiescence-drain protocol still owns
// ordering and message_end placement; Sink only mirrors already-ordered
// events onto Pulse for other consumers.
type Sink struct {
	stream *streaming.Stream
	runID  string
}

// envelope mirrors the teacher's pulse.Envelope shape, trimmed to what a
// delegate.Event carries (no tool_end-specific ServerData field, since
// spec.md's event union has no equivalent).
type envelope struct {
	Type      string         `json:"type"`
	RunID     string         `json:"runId"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// New opens (creating if absent) the Pulse stream "delegation/<runID>"
// backed by redisClient, matching the teacher's per-session stream naming.
func New(redisClient *redis.Client, runID string) (*Sink, error) {
	if redisClient == nil {
		return nil, errors.New("pulsebus: redis client is required")
	}
	if runID == "" {
		return nil, errors.New("pulsebus: run id is required")
	}
	stream, err := streaming.NewStream(fmt.Sprintf("delegation/%s", runID), redisClient)
	if err != nil {
		return nil, fmt.Errorf("pulsebus: open stream: %w", err)
	}
	return &Sink{stream: stream, runID: runID}, nil
}

// Publish mirrors one event onto the Pulse stream. Call it from the same
// goroutine draining eventbus.Bus, once per yielded event, so Pulse's entry
// order matches the bus's quiescence-drained order.
func (s *Sink) Publish(ctx context.Context, e delegate.Event) error {
	env := envelope{Type: string(e.Type()), RunID: s.runID, Timestamp: time.Now().UTC(), Payload: e.Data()}
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	_, err = s.stream.Add(ctx, env.Type, payload)
	return err
}

// Close is a no-op: the caller owns the Redis connection's lifecycle, per
// the teacher's sink.Close convention. Use Destroy to remove the stream
// itself once a delegation run's events are no longer needed.
func (s *Sink) Close(context.Context) error { return nil }

// Destroy deletes the stream and all its entries from Redis.
func (s *Sink) Destroy(ctx context.Context) error { return s.stream.Destroy(ctx) }
