// Package eventbus implements the Streaming Event Bus: a bounded
// single-consumer, multi-producer queue over the delegate.Event union with
// the quiescence-drain protocol that prevents message_end from dropping
// late-arriving sub-agent events. Grounded on
// transport/http/streaming.py's stream_chat.
package eventbus

import (
	"context"
	"time"

	"github.com/veupathdb/strategy-delegate/delegate"
)

// Bus is the orchestrator-owned event queue. Producers call Emit
// concurrently; a single consumer calls Drain once.
type Bus struct {
	queue     chan delegate.Event
	drainGrace time.Duration
	producerDone chan struct{}
}

// New constructs a Bus with the given buffer size and quiescence grace
// window (typical value 250ms, per spec.md section 4.5).
func New(bufferSize int, drainGrace time.Duration) *Bus {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	if drainGrace <= 0 {
		drainGrace = 250 * time.Millisecond
	}
	return &Bus{
		queue:        make(chan delegate.Event, bufferSize),
		drainGrace:   drainGrace,
		producerDone: make(chan struct{}),
	}
}

// Emit enqueues an event. While the queue is full it blocks until the drain
// loop makes room; there is no timeout or cancellation.
func (b *Bus) Emit(e delegate.Event) error {
	b.queue <- e
	return nil
}

// CloseProducer signals that no more events will be emitted. The producer
// must call this exactly once, in a defer/finally, even on error paths —
// spec.md section 4.5 requires message_end to be enqueued unconditionally.
func (b *Bus) CloseProducer() {
	select {
	case <-b.producerDone:
	default:
		close(b.producerDone)
	}
}

func (b *Bus) producerIsDone() bool {
	select {
	case <-b.producerDone:
		return true
	default:
		return false
	}
}

// Drain is the single consumer's read loop. It implements the
// quiescence-drain protocol from spec.md section 4.5 exactly:
//
//  1. Read events normally until message_end is observed; save it as
//     pending_end rather than yielding it immediately.
//  2. Keep draining with a short idle-grace timeout. Any non-message_end
//     event is yielded and resets the grace window; a duplicate
//     message_end is discarded; if the timeout fires and the producer is
//     done and the queue is empty, exit the drain loop.
//  3. Yield the stored pending_end last.
//
// Drain calls yield for each event in order; yield returning an error
// aborts the drain (e.g. the HTTP client disconnected).
func (b *Bus) Drain(ctx context.Context, yield func(delegate.Event) error) error {
	var pendingEnd delegate.Event
	haveEnd := false

	for {
		if !haveEnd {
			select {
			case e := <-b.queue:
				if e.Type() == delegate.EventMessageEnd {
					pendingEnd = e
					haveEnd = true
					continue
				}
				if err := yield(e); err != nil {
					return err
				}
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		timer := time.NewTimer(b.drainGrace)
		select {
		case e := <-b.queue:
			timer.Stop()
			if e.Type() == delegate.EventMessageEnd {
				continue // duplicate suppression
			}
			if err := yield(e); err != nil {
				return err
			}
		case <-timer.C:
			if b.producerIsDone() && len(b.queue) == 0 {
				return yield(pendingEnd)
			}
			continue
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}
