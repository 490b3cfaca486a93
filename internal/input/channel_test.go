package input

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAxes_IsIdle(t *testing.T) {
	assert.True(t, Axes{}.IsIdle())
	assert.True(t, Axes{Throttle: 5}.IsIdle(), "throttle does not affect idle")
	assert.True(t, Axes{Pitch: IdleEpsilon / 2}.IsIdle())
	assert.False(t, Axes{Pitch: 0.1}.IsIdle())
	assert.False(t, Axes{Roll: -0.1}.IsIdle())
	assert.False(t, Axes{Yaw: 0.01}.IsIdle())
}

func TestChannel_WriteRead(t *testing.T) {
	var ch Channel
	ch.Write(Axes{Pitch: 0.5, Throttle: 9.8})
	assert.Equal(t, Axes{Pitch: 0.5, Throttle: 9.8}, ch.Read())
	assert.False(t, ch.IsIdle())

	ch.Write(Axes{})
	assert.True(t, ch.IsIdle())
}

func TestChannel_NilReadsZero(t *testing.T) {
	var ch *Channel
	assert.Equal(t, Axes{}, ch.Read())
	assert.True(t, ch.IsIdle())
}

func TestManual_SticksMapping(t *testing.T) {
	m := NewManual(0.05)
	m.SetSticks(Stick{X: 0.3, Y: 0.8}, Stick{X: -0.4, Y: 0.6})

	var ch Channel
	m.Drive(0.02, &ch)
	assert.Equal(t, Axes{Pitch: 0.6, Roll: -0.4, Yaw: 0.3, Throttle: 0.8}, ch.Read())
}

func TestManual_Deadzone(t *testing.T) {
	m := NewManual(0.1)
	m.Set(Axes{Pitch: 0.05, Roll: -0.09, Yaw: 0.2, Throttle: -0.01})

	var ch Channel
	m.Drive(0.02, &ch)
	assert.Equal(t, Axes{Yaw: 0.2}, ch.Read())
}

func TestManual_ConcurrentSet(t *testing.T) {
	m := NewManual(0)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v float64) {
			defer wg.Done()
			m.Set(Axes{Throttle: v})
		}(float64(i))
	}
	var ch Channel
	for i := 0; i < 100; i++ {
		m.Drive(0.02, &ch)
	}
	wg.Wait()
	m.Drive(0.02, &ch)
	assert.GreaterOrEqual(t, ch.Read().Throttle, 0.0)
}
