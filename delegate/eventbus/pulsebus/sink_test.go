package pulsebus

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veupathdb/strategy-delegate/delegate"
)

func TestNew_RequiresClientAndRunID(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})

	_, err := New(nil, "run-1")
	assert.Error(t, err)

	_, err = New(client, "")
	assert.Error(t, err)
}

func TestPublish_AddsEntryToStream(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})

	sink, err := New(client, "run-1")
	require.NoError(t, err)

	err = sink.Publish(context.Background(), delegate.NewEvent(delegate.EventMessageStart, nil))
	require.NoError(t, err)

	length, err := client.XLen(context.Background(), "delegation/run-1").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), length)
}

func TestDestroy_RemovesStream(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})

	sink, err := New(client, "run-1")
	require.NoError(t, err)
	require.NoError(t, sink.Publish(context.Background(), delegate.NewEvent(delegate.EventMessageStart, nil)))

	require.NoError(t, sink.Destroy(context.Background()))

	exists, err := client.Exists(context.Background(), "delegation/run-1").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), exists)
}
