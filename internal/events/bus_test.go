package events_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rpggio/flowscribe/internal/events"
	"github.com/stretchr/testify/require"
)

func TestBus_DeliversInPublishOrder(t *testing.T) {
	bus := events.NewBus(16, nil)
	ch, cancel := bus.Subscribe(16)
	defer cancel()

	ctx := context.Background()
	types := []events.Type{
		events.TypeSessionStarted,
		events.TypeActionAppended,
		events.TypeSessionStopped,
		events.TypeFlowClassified,
	}
	for _, typ := range types {
		require.NoError(t, bus.Publish(ctx, events.Event{Type: typ, SessionID: "s1"}))
	}

	for i, typ := range types {
		select {
		case evt := <-ch:
			require.Equal(t, typ, evt.Type)
			require.Equal(t, uint64(i+1), evt.Seq)
			require.False(t, evt.At.IsZero())
		case <-time.After(time.Second):
			t.Fatalf("event %d not delivered", i)
		}
	}
}

func TestBus_HandlersRunOnConsumer(t *testing.T) {
	bus := events.NewBus(8, nil)

	var mu sync.Mutex
	var seen []events.Type
	bus.Handle(func(_ context.Context, evt events.Event) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, evt.Type)
	})

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, events.Event{Type: events.TypeScriptSynthesized}))
	require.NoError(t, bus.Publish(ctx, events.Event{Type: events.TypeValidationResolved}))
	bus.Close()

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []events.Type{events.TypeScriptSynthesized, events.TypeValidationResolved}, seen)
}

func TestBus_FullQueueDropsWithoutBlocking(t *testing.T) {
	bus := events.NewBus(1, nil)
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	bus.Handle(func(context.Context, events.Event) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
	})

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, events.Event{Type: events.TypeActionAppended}))
	<-started
	require.NoError(t, bus.Publish(ctx, events.Event{Type: events.TypeActionAppended}))
	require.ErrorIs(t, bus.Publish(ctx, events.Event{Type: events.TypeActionAppended}), events.ErrQueueFull)
	require.Equal(t, uint64(1), bus.Dropped())

	close(release)
	bus.Close()
	require.ErrorIs(t, bus.Publish(ctx, events.Event{Type: events.TypeActionAppended}), events.ErrClosed)
}

func TestBus_CloseClosesSubscribers(t *testing.T) {
	bus := events.NewBus(4, nil)
	ch, cancel := bus.Subscribe(1)
	bus.Close()
	_, ok := <-ch
	require.False(t, ok)
	cancel()
}
