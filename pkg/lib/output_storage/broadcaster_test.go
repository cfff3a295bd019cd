package output_storage

import (
	"errors"
	"testing"
	"time"
)

// helper: receive with timeout
func recvWithTimeout[T any](t *testing.T, ch <-chan T, d time.Duration) (T, bool) {
	t.Helper()
	var zero T
	select {
	case v, ok := <-ch:
		return v, ok
	case <-time.After(d):
		return zero, false
	}
}

// helper: assert no receive within duration
func assertNoRecv[T any](t *testing.T, ch <-chan T, d time.Duration) {
	t.Helper()
	if v, ok := recvWithTimeout(t, ch, d); ok {
		t.Fatalf("unexpected receive: %v", v)
	}
}

func TestBroadcaster_SingleSubscriberReceives(t *testing.T) {
	b := NewBroadcaster[string]()
	defer b.Stop()

	ch, err := b.Subscribe()
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	b.Publish("hello")

	if v, ok := recvWithTimeout(t, ch, 200*time.Millisecond); !ok || v != "hello" {
		t.Fatalf("expected to receive 'hello', got ok=%v val=%q", ok, v)
	}
}

func TestBroadcaster_MultipleSubscribersReceive(t *testing.T) {
	b := NewBroadcaster[int]()
	defer b.Stop()

	ch1, err := b.Subscribe()
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	b.Publish(1)
	if v, ok := recvWithTimeout(t, ch1, 200*time.Millisecond); !ok || v != 1 {
		t.Fatalf("ch1 did not receive initial message, ok=%v v=%d", ok, v)
	}

	ch2, err := b.Subscribe()
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	b.Publish(2)

	if v, ok := recvWithTimeout(t, ch1, 200*time.Millisecond); !ok || v != 2 {
		t.Fatalf("ch1 did not receive broadcast 2, ok=%v v=%d", ok, v)
	}
	if v, ok := recvWithTimeout(t, ch2, 200*time.Millisecond); !ok || v != 2 {
		t.Fatalf("ch2 did not receive broadcast 2, ok=%v v=%d", ok, v)
	}
}

func TestBroadcaster_SlowSubscriberSeesLatest(t *testing.T) {
	b := NewBroadcaster[int]()
	defer b.Stop()

	slow, err := b.Subscribe()
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	fast, err := b.Subscribe()
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	// slow never reads the first value, so it is replaced by the second
	b.Publish(-1)
	if v, ok := recvWithTimeout(t, fast, 200*time.Millisecond); !ok || v != -1 {
		t.Fatalf("fast did not receive -1, ok=%v v=%d", ok, v)
	}
	b.Publish(42)

	if v, ok := recvWithTimeout(t, fast, 200*time.Millisecond); !ok || v != 42 {
		t.Fatalf("fast did not receive 42, ok=%v v=%d", ok, v)
	}
	if v, ok := recvWithTimeout(t, slow, 200*time.Millisecond); !ok || v != 42 {
		t.Fatalf("slow did not receive latest 42, ok=%v v=%d", ok, v)
	}
	assertNoRecv(t, slow, 20*time.Millisecond)
}

func TestBroadcaster_Unsubscribe(t *testing.T) {
	b := NewBroadcaster[int]()
	defer b.Stop()

	a, err := b.Subscribe()
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	other, err := b.Subscribe()
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	b.Unsubscribe(a)
	if _, ok := <-a; ok {
		t.Fatalf("expected unsubscribed channel to be closed")
	}
	// second call is a no-op
	b.Unsubscribe(a)

	for i := 0; i < 3; i++ {
		b.Publish(100 + i)
		if v, ok := recvWithTimeout(t, other, 200*time.Millisecond); !ok || v != 100+i {
			t.Fatalf("subscriber missed message %d, ok=%v v=%d", 100+i, ok, v)
		}
	}
}

func TestBroadcaster_StopClosesAndRejects(t *testing.T) {
	b := NewBroadcaster[int]()
	ch, err := b.Subscribe()
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	b.Stop()
	b.Stop()
	b.Publish(1)

	if _, ok := <-ch; ok {
		t.Fatalf("expected channel closed after Stop")
	}
	if _, err := b.Subscribe(); !errors.Is(err, ErrBroadcasterStopped) {
		t.Fatalf("expected ErrBroadcasterStopped, got %v", err)
	}
}
