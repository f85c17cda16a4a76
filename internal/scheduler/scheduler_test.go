package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
)

func TestScheduler_RunsOnEveryTick(t *testing.T) {
	mockClock := clock.NewMock()
	var runs atomic.Int32

	s := NewWithClock(time.Minute, func() { runs.Add(1) }, mockClock)
	s.Start()
	defer s.Stop()

	assert.True(t, s.IsRunning())

	for i := 1; i <= 3; i++ {
		mockClock.Add(time.Minute)
		want := int32(i)
		assert.Eventually(t, func() bool { return runs.Load() == want }, time.Second, 5*time.Millisecond)
	}
}

func TestScheduler_StartIsIdempotent(t *testing.T) {
	mockClock := clock.NewMock()
	var runs atomic.Int32

	s := NewWithClock(time.Minute, func() { runs.Add(1) }, mockClock)
	s.Start()
	s.Start()
	s.Start()
	defer s.Stop()

	mockClock.Add(time.Minute)
	assert.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 5*time.Millisecond)

	// A duplicated timer would have produced extra runs by now
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())
}

func TestScheduler_Stop(t *testing.T) {
	mockClock := clock.NewMock()
	var runs atomic.Int32

	s := NewWithClock(time.Minute, func() { runs.Add(1) }, mockClock)
	s.Start()
	s.Stop()
	s.Stop()

	assert.False(t, s.IsRunning())

	mockClock.Add(5 * time.Minute)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), runs.Load())
}

func TestScheduler_ZeroIntervalNeverStarts(t *testing.T) {
	s := New(0, func() {})
	s.Start()
	assert.False(t, s.IsRunning())
}
