package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veupathdb/strategy-delegate/delegate"
)

func TestDrain_YieldsMessageEndLast(t *testing.T) {
	bus := New(8, 20*time.Millisecond)

	_ = bus.Emit(delegate.MessageStart(nil))
	_ = bus.Emit(delegate.AssistantDelta("m1", "hello"))
	_ = bus.Emit(delegate.MessageEnd())
	bus.CloseProducer()

	var drained []delegate.EventType
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := bus.Drain(ctx, func(e delegate.Event) error {
		drained = append(drained, e.Type())
		return nil
	})
	require.NoError(t, err)

	require.NotEmpty(t, drained)
	assert.Equal(t, delegate.EventMessageEnd, drained[len(drained)-1])
	assert.Equal(t, delegate.EventMessageStart, drained[0])
}

func TestDrain_HoldsEndForLateArrivingEvents(t *testing.T) {
	bus := New(8, 60*time.Millisecond)

	_ = bus.Emit(delegate.MessageEnd())
	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = bus.Emit(delegate.SubtaskStart("late sub-agent event"))
		bus.CloseProducer()
	}()

	var drained []delegate.EventType
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := bus.Drain(ctx, func(e delegate.Event) error {
		drained = append(drained, e.Type())
		return nil
	})
	require.NoError(t, err)

	require.Len(t, drained, 2)
	assert.Equal(t, delegate.EventSubtaskStart, drained[0], "the late event must be yielded before message_end")
	assert.Equal(t, delegate.EventMessageEnd, drained[1])
}

func TestDrain_SuppressesDuplicateMessageEnd(t *testing.T) {
	bus := New(8, 20*time.Millisecond)

	_ = bus.Emit(delegate.MessageEnd())
	_ = bus.Emit(delegate.MessageEnd())
	bus.CloseProducer()

	var count int
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := bus.Drain(ctx, func(e delegate.Event) error {
		if e.Type() == delegate.EventMessageEnd {
			count++
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestDrain_ContextCancellation_AbortsWithError(t *testing.T) {
	bus := New(8, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := bus.Drain(ctx, func(e delegate.Event) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDrain_YieldErrorAbortsDrain(t *testing.T) {
	bus := New(8, 20*time.Millisecond)
	_ = bus.Emit(delegate.AssistantDelta("m1", "x"))
	_ = bus.Emit(delegate.MessageEnd())
	bus.CloseProducer()

	boom := assertErr{}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := bus.Drain(ctx, func(e delegate.Event) error { return boom })
	assert.Equal(t, boom, err)
}

type assertErr struct{}

func (assertErr) Error() string { return "client disconnected" }
