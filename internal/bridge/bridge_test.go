package bridge_test

import (
	"math"
	"sync"
	"testing"
	"time"

	"codeberg.org/veldt/ventctl/internal/bridge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnknownUntilPublished(t *testing.T) {
	b := bridge.New(50, 15)

	assert.True(t, math.IsNaN(b.Saturation()))
	assert.True(t, math.IsNaN(b.PulseRate()))
	assert.True(t, math.IsNaN(b.Temperature()))
	assert.False(t, b.SensorOK())
	assert.Equal(t, 15, b.SuggestedRate())

	b.PublishVitals(97.5, 72)
	b.PublishTemperature(36.6)
	b.PublishSensorOK(true)

	assert.InDelta(t, 97.5, b.Saturation(), 0.001)
	assert.InDelta(t, 72.0, b.PulseRate(), 0.001)
	assert.InDelta(t, 36.6, b.Temperature(), 0.001)
	assert.True(t, b.SensorOK())
}

func TestBeatIsConsumeOnRead(t *testing.T) {
	b := bridge.New(50, 15)

	detected, _ := b.ConsumeBeat()
	assert.False(t, detected)

	at := time.UnixMilli(1234567890)
	b.PublishBeat(at)

	detected, when := b.ConsumeBeat()
	assert.True(t, detected)
	assert.Equal(t, at.UnixMilli(), when.UnixMilli())

	detected, _ = b.ConsumeBeat()
	assert.False(t, detected, "beat flag must clear after one read")
}

func TestCopyPPGAllOrNothing(t *testing.T) {
	b := bridge.New(4, 15)
	dst := make([]uint16, 4)

	require.False(t, b.CopyPPG(dst), "no copy before any sample arrived")

	for _, s := range []uint16{10, 20, 30, 40, 50} {
		b.PushPPG(s)
	}

	require.True(t, b.CopyPPG(dst))
	// Index wrapped once: sample 50 overwrote sample 10.
	assert.Equal(t, []uint16{50, 20, 30, 40}, dst)

	assert.False(t, b.CopyPPG(dst), "ready flag clears after a batch copy")

	b.PushPPG(60)
	assert.True(t, b.CopyPPG(dst), "new sample re-arms the ready flag")
}

func TestCopyPPGRejectsShortDestination(t *testing.T) {
	b := bridge.New(8, 15)
	b.PushPPG(1)

	assert.False(t, b.CopyPPG(make([]uint16, 4)))
	assert.True(t, b.CopyPPG(make([]uint16, 8)), "short copy must not clear readiness")
}

// One writer, one reader, no torn values: the reader must only ever observe
// pairs the writer actually published.
func TestConcurrentReaderSeesConsistentValues(t *testing.T) {
	b := bridge.New(50, 15)
	done := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 10000; i++ {
			b.PublishVitals(90+float64(i%10), 60+float64(i%10))
			b.PushPPG(uint16(i))
		}
		close(done)
	}()

	dst := make([]uint16, 50)
	for {
		s := b.Saturation()
		if !math.IsNaN(s) {
			assert.GreaterOrEqual(t, s, 90.0)
			assert.Less(t, s, 100.0)
		}
		b.CopyPPG(dst)
		select {
		case <-done:
			wg.Wait()
			return
		default:
		}
	}
}
