package bus

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/zeusync/lockstep/internal/core/cosmos"
)

func countingHandler(c *int64) EventHandler {
	return func(Event) error {
		atomic.AddInt64(c, 1)
		return nil
	}
}

type nopObserver struct{}

func (nopObserver) OnPublish(string, Event)               {}
func (nopObserver) OnDelivered(string, int, error, int64) {}

func BenchmarkPublish(b *testing.B) {
	for _, subs := range []int{1, 10, 100} {
		b.Run(fmt.Sprintf("subs=%d", subs), func(b *testing.B) {
			bus := New()
			var c int64
			for range subs {
				bus.Subscribe("combat.shot", countingHandler(&c))
			}
			ev := Event{Message: cosmos.ShotFired{Player: 1}}
			b.ReportAllocs()
			b.ResetTimer()
			for range b.N {
				_ = bus.Publish(ev)
			}
		})
	}
}

func BenchmarkPublishWithObserver(b *testing.B) {
	bus := New()
	var c int64
	bus.Subscribe(AllKinds, countingHandler(&c))
	bus.AddObserver(nopObserver{})
	ev := Event{Message: cosmos.Died{}}
	b.ReportAllocs()
	b.ResetTimer()
	for range b.N {
		_ = bus.Publish(ev)
	}
}

func BenchmarkPublishParallel(b *testing.B) {
	bus := New()
	var c int64
	bus.Subscribe("combat.damaged", countingHandler(&c))
	ev := Event{Message: cosmos.Damaged{}}
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = bus.Publish(ev)
		}
	})
}
