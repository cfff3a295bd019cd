package output_storage

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

// helper: receive all until channel closes
func recvAllString(t *testing.T, ch <-chan []byte) string {
	t.Helper()
	var out []byte
	for b := range ch {
		out = append(out, b...)
	}
	return string(out)
}

func TestSubscribe_ConcurrentSubscribersWhileAppending(t *testing.T) {
	s := New()

	// Prepare expected output (single appender to preserve order guarantees)
	const N = 300
	expected := make([]byte, 0, N*4)
	for i := 1; i <= N; i++ {
		expected = append(expected, []byte(fmt.Sprintf("%d\n", i))...)
	}

	// Start subscribers before appending
	const subs = 10
	chs := make([]<-chan []byte, 0, subs)
	for i := 0; i < subs; i++ {
		ch := s.Subscribe(32)
		chs = append(chs, ch)
	}

	// Appender goroutine
	go func() {
		for i := 1; i <= N; i++ {
			s.Append([]byte(fmt.Sprintf("%d\n", i)))
			// small jitter to exercise scheduling
			time.Sleep(time.Microsecond * 200)
		}
		s.Stop()
	}()

	var wg sync.WaitGroup
	wg.Add(subs)
	outs := make([]string, subs)
	for i := 0; i < subs; i++ {
		i := i
		go func() { defer wg.Done(); outs[i] = recvAllString(t, chs[i]) }()
	}
	// Wait for all subscribers with a timeout to avoid hanging tests
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		// ok
	case <-time.After(3 * time.Second):
		t.Fatalf("timeout waiting for subscribers to finish")
	}

	expectedStr := string(expected)
	for i := 0; i < subs; i++ {
		if outs[i] != expectedStr {
			t.Fatalf("subscriber %d mismatch: got %d bytes, want %d", i, len(outs[i]), len(expectedStr))
		}
	}

}

func TestSubscribe_ManySubscribersCloseOnStop(t *testing.T) {
	s := New()

	const subs = 50
	chs := make([]<-chan []byte, 0, subs)
	for i := 0; i < subs; i++ {
		ch := s.Subscribe(1)
		chs = append(chs, ch)
	}

	// Start readers that just drain until close
	var wg sync.WaitGroup
	wg.Add(subs)
	for i := 0; i < subs; i++ {
		ch := chs[i]
		go func() {
			for range ch {
			}
			wg.Done()
		}()
	}

	s.Stop()

	c := make(chan struct{})
	go func() { wg.Wait(); close(c) }()

	select {
	case <-c:
		// ok
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("subscribers did not close on Stop in time")
	}

}

func TestWrite_ConcurrentWritersKeepEveryChunk(t *testing.T) {
	s := New()
	defer s.Stop()

	const writers, perWriter = 8, 200
	var wg sync.WaitGroup
	wg.Add(writers)
	for w := 0; w < writers; w++ {
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				_, _ = s.Write([]byte("xy"))
			}
		}()
	}
	wg.Wait()

	chunks := 0
	s.ForEach(func(b []byte) bool {
		chunks++
		return true
	})
	if chunks != writers*perWriter {
		t.Fatalf("expected %d chunks, got %d", writers*perWriter, chunks)
	}
	if s.Len() != 2*writers*perWriter {
		t.Fatalf("expected %d bytes, got %d", 2*writers*perWriter, s.Len())
	}
}
