package bus

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeusync/lockstep/internal/core/cosmos"
)

type testObserver struct {
	publishCount   int
	deliveredCount int
	lastErr        error
}

func (o *testObserver) OnPublish(string, Event) {
	o.publishCount++
}

func (o *testObserver) OnDelivered(_ string, handlers int, err error, _ int64) {
	o.deliveredCount += handlers
	o.lastErr = err
}

func joined(step uint64) Event {
	return Event{Step: step, Message: cosmos.PlayerJoined{Player: 1, Name: "ann"}}
}

func TestPublishByKind(t *testing.T) {
	b := New()
	var got []Event
	b.Subscribe("player.joined", func(e Event) error { got = append(got, e); return nil })
	b.Subscribe("player.left", func(Event) error { t.Fatal("wrong kind delivered"); return nil })

	require.NoError(t, b.Publish(joined(3)))
	require.Len(t, got, 1)
	assert.Equal(t, uint64(3), got[0].Step)
	assert.Equal(t, cosmos.PlayerJoined{Player: 1, Name: "ann"}, got[0].Message)
}

func TestDeliveryFollowsSubscriptionOrder(t *testing.T) {
	b := New()
	var order []string
	b.Subscribe(AllKinds, func(Event) error { order = append(order, "all-1"); return nil })
	b.Subscribe("player.joined", func(Event) error { order = append(order, "exact"); return nil })
	b.Subscribe(AllKinds, func(Event) error { order = append(order, "all-2"); return nil })

	require.NoError(t, b.Publish(joined(1)))
	assert.Equal(t, []string{"all-1", "exact", "all-2"}, order)
}

func TestHandlerErrorsAreJoined(t *testing.T) {
	b := New()
	e1, e2 := errors.New("one"), errors.New("two")
	b.Subscribe(AllKinds, func(Event) error { return e1 })
	b.Subscribe(AllKinds, func(Event) error { return e2 })

	err := b.Publish(joined(1), joined(2))
	assert.ErrorIs(t, err, e1)
	assert.ErrorIs(t, err, e2)
}

func TestCancel(t *testing.T) {
	b := New()
	calls := 0
	sub := b.Subscribe("player.joined", func(Event) error { calls++; return nil })
	require.NoError(t, b.Publish(joined(1)))

	b.Unsubscribe(sub)
	sub.Cancel()
	b.Unsubscribe(nil)
	assert.False(t, sub.IsActive())

	require.NoError(t, b.Publish(joined(2)))
	assert.Equal(t, 1, calls)
}

func TestFromMessages(t *testing.T) {
	at := time.Unix(10, 0)
	events := FromMessages(7, at, cosmos.Messages{cosmos.MatchPaused{}, cosmos.MatchResumed{}})
	require.Len(t, events, 2)
	assert.Equal(t, "match.paused", events[0].Kind())
	assert.Equal(t, uint64(7), events[1].Step)
	assert.Equal(t, at, events[1].Time)
}

func TestObserverMetricsOptional(t *testing.T) {
	b := New()
	b.Subscribe("player.joined", func(Event) error { return nil })
	require.NoError(t, b.Publish(joined(1)))
	assert.Zero(t, b.GetMetrics().Published)

	obs := &testObserver{}
	b.AddObserver(obs)
	require.NoError(t, b.Publish(joined(2)))
	m := b.GetMetrics()
	assert.Equal(t, uint64(1), m.Published)
	assert.Equal(t, uint64(1), m.DeliveredHandlers)
	assert.Equal(t, uint64(1), m.SubscribersActive)
	assert.Equal(t, 1, obs.publishCount)
	assert.Equal(t, 1, obs.deliveredCount)

	b.RemoveObserver(obs)
	require.NoError(t, b.Publish(joined(3)))
	assert.Equal(t, 1, obs.publishCount)
}
