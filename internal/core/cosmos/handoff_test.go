package cosmos

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeusync/lockstep/internal/core/entropy"
)

func TestHandoffPublishesStableCopies(t *testing.T) {
	var h Handoff
	assert.False(t, h.Read(func(*Cosmos) { t.Fatal("read before publish") }))

	c := newWorld(t)
	advance(t, c, addPlayer(1, entropy.FactionBlue))
	h.Publish(c)
	advance(t, c, entropy.StepEntropy{})

	var seen uint64
	require.True(t, h.Read(func(v *Cosmos) { seen = v.Step() }))
	assert.Equal(t, uint64(1), seen)

	h.Publish(c)
	step, ok := h.Step()
	require.True(t, ok)
	assert.Equal(t, uint64(2), step)
}

func TestHandoffConcurrentReaders(t *testing.T) {
	var h Handoff
	c := newWorld(t)
	advance(t, c, addPlayer(1, entropy.FactionRed))
	h.Publish(c)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				h.Read(func(v *Cosmos) {
					assert.Len(t, v.Players(), 1)
					_ = v.StateHash()
				})
			}
		}()
	}
	for i := 0; i < 100; i++ {
		advance(t, c, entropy.StepEntropy{})
		h.Publish(c)
	}
	close(stop)
	wg.Wait()

	step, _ := h.Step()
	assert.Equal(t, uint64(101), step)
}
