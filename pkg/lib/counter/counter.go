// Package counter provides a shared integer whose every mutation goes
// through a lock, and an unguarded twin that skips the lock so the
// lost-update hazard can be reproduced.
package counter

import "sync"

// Counter is an integer shared by concurrent callers. The value is only
// reachable through methods; each mutation is one read-modify-write inside
// the locker's critical section.
type Counter struct {
	locker sync.Locker
	value  int
}

// NewGuarded returns a counter serialized by a mutex.
func NewGuarded(initial int) *Counter {
	return &Counter{locker: &sync.Mutex{}, value: initial}
}

// NewUnguarded returns a counter whose locker does nothing. Concurrent use
// loses updates; it exists to demonstrate the race.
func NewUnguarded(initial int) *Counter {
	return &Counter{locker: noLock{}, value: initial}
}

// Guarded reports whether mutations are serialized.
func (c *Counter) Guarded() bool {
	_, unguarded := c.locker.(noLock)
	return !unguarded
}

func (c *Counter) Increment() {
	c.locker.Lock()
	defer c.locker.Unlock()
	c.value = c.value + 1
}

func (c *Counter) Decrement() {
	c.locker.Lock()
	defer c.locker.Unlock()
	c.value = c.value - 1
}

// Value returns the current value.
func (c *Counter) Value() int {
	c.locker.Lock()
	defer c.locker.Unlock()
	return c.value
}

type noLock struct{}

func (noLock) Lock()   {}
func (noLock) Unlock() {}
