package debounce

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	calls []int
}

func (r *recorder) record(v int) {
	r.mu.Lock()
	r.calls = append(r.calls, v)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.calls...)
}

func TestDebounce_CoalescesBurst(t *testing.T) {
	rec := &recorder{}
	d := New(60*time.Millisecond, rec.record)

	for i := 1; i <= 5; i++ {
		d.Trigger(i)
		time.Sleep(10 * time.Millisecond)
	}
	assert.Empty(t, rec.snapshot(), "must not fire inside the quiet window")

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, []int{5}, rec.snapshot(), "only the last argument is delivered, once")
}

func TestDebounce_SeparatedCallsFireTwice(t *testing.T) {
	rec := &recorder{}
	trigger := Wrap(40*time.Millisecond, rec.record)

	trigger(1)
	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	trigger(2)
	require.Eventually(t, func() bool { return len(rec.snapshot()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []int{1, 2}, rec.snapshot())
}

func TestDebounce_WaitsFullWindowAfterLastCall(t *testing.T) {
	fired := make(chan time.Time, 1)
	d := New(80*time.Millisecond, func(struct{}) { fired <- time.Now() })

	d.Trigger(struct{}{})
	time.Sleep(50 * time.Millisecond)
	last := time.Now()
	d.Trigger(struct{}{})

	select {
	case at := <-fired:
		assert.GreaterOrEqual(t, at.Sub(last), 80*time.Millisecond)
	case <-time.After(time.Second):
		t.Fatal("debounced callback never fired")
	}
}

func TestDebounce_StopCancelsPending(t *testing.T) {
	rec := &recorder{}
	d := New(30*time.Millisecond, rec.record)
	d.Trigger(1)
	assert.True(t, d.Pending())
	d.Stop()
	assert.False(t, d.Pending())
	d.Trigger(2)
	time.Sleep(90 * time.Millisecond)
	assert.Empty(t, rec.snapshot())
}

func TestDebounce_DefaultWindow(t *testing.T) {
	d := New(0, func(int) {})
	assert.Equal(t, DefaultWindow, d.window)
}
