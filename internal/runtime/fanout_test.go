package runtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func recvOne[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return v
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
	var zero T
	return zero
}

func TestFanout_BroadcastReachesAllSubscribers(t *testing.T) {
	f := NewFanout[string](4)
	defer f.Close()

	ch1, unsub1 := f.Subscribe()
	defer unsub1()
	ch2, unsub2 := f.Subscribe()
	defer unsub2()

	f.Broadcast("add")
	f.Broadcast("remove")

	for _, ch := range []<-chan string{ch1, ch2} {
		assert.Equal(t, "add", recvOne(t, ch))
		assert.Equal(t, "remove", recvOne(t, ch))
	}
	assert.Equal(t, 2, f.Len())
}

func TestFanout_UnsubscribeClosesChannel(t *testing.T) {
	f := NewFanout[int](4)
	defer f.Close()

	ch, unsub := f.Subscribe()
	unsub()
	unsub() // second call is a no-op

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel should be closed")
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}
	assert.Equal(t, 0, f.Len())

	// Broadcasting to nobody is fine.
	assert.NotPanics(t, func() { f.Broadcast(1) })
}

func TestFanout_CloseClosesSubscribers(t *testing.T) {
	f := NewFanout[int](4)
	ch, _ := f.Subscribe()

	f.Close()
	f.Close()

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel should be closed after fanout close")
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}
}

func TestFanout_SubscribeAfterClose(t *testing.T) {
	f := NewFanout[int](4)
	f.Close()

	ch, unsub := f.Subscribe()
	defer unsub()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscription after close should yield a closed channel")
	}
}

func TestFanout_DropsSlowSubscriber(t *testing.T) {
	overflows := 0
	f := NewBoundedFanout[int](0, 1, func() { overflows++ })
	defer f.Close()

	ch, unsub := f.Subscribe()
	for i := 0; i < 10; i++ {
		f.Broadcast(i)
	}

	assert.Equal(t, 1, overflows)
	assert.Zero(t, f.Len())
	assert.NotPanics(t, unsub)

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("slow subscriber channel not closed")
		}
	}
}

func TestFanout_BoundedSubscriberThatKeepsUp(t *testing.T) {
	overflows := 0
	f := NewBoundedFanout[int](4, 4, func() { overflows++ })
	defer f.Close()

	ch, unsub := f.Subscribe()
	defer unsub()
	for i := 0; i < 50; i++ {
		f.Broadcast(i)
		assert.Equal(t, i, recvOne(t, ch))
	}
	assert.Zero(t, overflows)
	assert.Equal(t, 1, f.Len())
}
