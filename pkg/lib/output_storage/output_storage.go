// Package output_storage captures the output of a child process as an
// append-only list of chunks that any number of readers can replay from
// the beginning while the process is still writing.
package output_storage

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

var logger = slog.New(slog.DiscardHandler)

// node is an element of the singly linked list. The sentinel head node
// carries no data.
type node struct {
	data []byte
	next atomic.Pointer[node]
}

// OutputStorage is an append-only list of byte chunks. Appends are
// serialized among writers; readers walk the list without locks and see
// every chunk published before they reach the tail.
type OutputStorage struct {
	head *node // sentinel, immutable

	writeMu sync.Mutex
	tail    *node
	size    atomic.Int64

	stopOnce sync.Once
	notifier *Broadcaster[struct{}]
}

// New creates an empty OutputStorage.
func New() *OutputStorage {
	sentinel := &node{}
	return &OutputStorage{
		head:     sentinel,
		tail:     sentinel,
		notifier: NewBroadcaster[struct{}](),
	}
}

// Stop marks the output as complete. Live subscribers drain what is left
// and their channels close. Safe to call more than once.
func (s *OutputStorage) Stop() {
	if s == nil {
		return
	}
	s.stopOnce.Do(s.notifier.Stop)
}

// Append stores data as-is at the end of the list. Callers that reuse the
// slice must pass a copy; Write does that.
func (s *OutputStorage) Append(data []byte) {
	if s == nil {
		return
	}

	newTail := &node{data: data}

	s.writeMu.Lock()
	s.tail.next.Store(newTail)
	s.tail = newTail
	s.writeMu.Unlock()

	s.size.Add(int64(len(data)))
	s.notifier.Publish(struct{}{})
}

// Len returns the number of bytes stored so far.
func (s *OutputStorage) Len() int {
	if s == nil {
		return 0
	}
	return int(s.size.Load())
}

// Subscribe returns a channel that replays every chunk from the beginning
// and then follows new chunks until Stop. The channel is closed afterwards.
func (s *OutputStorage) Subscribe(capacity int) <-chan []byte {
	ch := make(chan []byte, capacity)
	notifier, err := s.notifier.Subscribe()
	if err != nil {
		go s.replay(ch)
	} else {
		go s.follow(notifier, ch)
	}
	return ch
}

func (s *OutputStorage) follow(notifier <-chan struct{}, ch chan<- []byte) {
	prev := s.head
	for {
		current := prev.next.Load()
		if current != nil {
			ch <- current.data
			prev = current
			continue
		}
		if _, ok := <-notifier; !ok {
			// stopped: the writer is done, send what was appended last
			for current = prev.next.Load(); current != nil; current = current.next.Load() {
				ch <- current.data
			}
			close(ch)
			return
		}
	}
}

func (s *OutputStorage) replay(ch chan<- []byte) {
	s.ForEach(func(b []byte) bool {
		ch <- b
		return true
	})
	close(ch)
}

// ForEach iterates over stored chunks in insertion order until iter
// returns false.
func (s *OutputStorage) ForEach(iter func([]byte) bool) {
	if s == nil || iter == nil {
		return
	}
	for cur := s.head.next.Load(); cur != nil; cur = cur.next.Load() {
		if !iter(cur.data) {
			return
		}
	}
}

// Bytes concatenates all stored chunks.
func (s *OutputStorage) Bytes() []byte {
	out := make([]byte, 0, s.Len())
	s.ForEach(func(b []byte) bool {
		out = append(out, b...)
		return true
	})
	return out
}

func (s *OutputStorage) String() string {
	return string(s.Bytes())
}
