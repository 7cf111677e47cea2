package event

import (
	"bytes"
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfoliotree/app/src/pkg/log"
)

func TestPublish_DeliversToSubscribers(t *testing.T) {
	em := NewEventManager(nil)
	var calls atomic.Int32
	var got atomic.Value

	em.Subscribe(NodeDeleted, func(_ context.Context, e Event) {
		calls.Add(1)
		got.Store(e.Data)
	})
	em.Subscribe(NodeDeleted, func(context.Context, Event) { calls.Add(1) })
	em.Subscribe(PortfolioDeleted, func(context.Context, Event) { t.Error("wrong event type delivered") })

	assert.True(t, em.Publish(context.Background(), Event{Type: NodeDeleted, Data: []string{"a", "b"}}))
	em.Wait()

	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, []string{"a", "b"}, got.Load())
}

type ctxKey struct{}

func TestPublish_HandlerContextOutlivesPublisher(t *testing.T) {
	em := NewEventManager(nil)
	release := make(chan struct{})
	var sawValue, sawCancel atomic.Bool

	em.Subscribe(UserDeleted, func(ctx context.Context, _ Event) {
		<-release
		sawValue.Store(ctx.Value(ctxKey{}) == "req-1")
		sawCancel.Store(ctx.Err() != nil)
	})

	ctx, cancel := context.WithCancel(context.WithValue(context.Background(), ctxKey{}, "req-1"))
	em.Publish(ctx, Event{Type: UserDeleted})
	cancel()
	close(release)
	em.Wait()

	assert.True(t, sawValue.Load(), "request values reach the handler")
	assert.False(t, sawCancel.Load(), "handler context is not cancelled with the request")
}

func TestPublish_RecoversFromPanic(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewWriterLogger(&buf, log.LevelDebug)
	em := NewEventManager(logger)

	em.Subscribe(AssetDeleted, func(context.Context, Event) { panic("handler exploded") })
	em.Publish(context.Background(), Event{Type: AssetDeleted})
	em.Wait()
	require.NoError(t, logger.Close())

	assert.Contains(t, buf.String(), "Panic in event handler")
	assert.Contains(t, buf.String(), "asset_deleted")
}

func TestPublish_NoSubscribers(t *testing.T) {
	em := NewEventManager(nil)
	assert.True(t, em.Publish(context.Background(), Event{Type: UserDeleted}))
	em.Wait()
}

func TestClose_WaitsAndDropsLaterEvents(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewWriterLogger(&buf, log.LevelDebug)
	em := NewEventManager(logger)
	var calls atomic.Int32
	em.Subscribe(PortfolioUpdated, func(context.Context, Event) { calls.Add(1) })

	em.Publish(context.Background(), Event{Type: PortfolioUpdated})
	em.Close()
	assert.Equal(t, int32(1), calls.Load(), "Close waits for running handlers")

	assert.False(t, em.Publish(context.Background(), Event{Type: PortfolioUpdated}))
	em.Wait()
	require.NoError(t, logger.Close())
	assert.Equal(t, int32(1), calls.Load())
	assert.Contains(t, buf.String(), "Event dropped after close")
}
