// Package state holds small in-process observable values shared between
// independent API surfaces: the currently selected trip and the synchronized
// entry list.
package state

import (
	"context"
	"sync"
)

// Cell is a single-slot observable value. Set overwrites the slot and
// notifies every watcher; watchers only ever see the newest value, so a slow
// reader skips intermediate ones rather than blocking writers.
type Cell[T any] struct {
	mu       sync.Mutex
	value    T
	set      bool
	clone    func(T) T
	watchers map[chan T]struct{}
}

// NewCell returns an empty cell. When clone is non-nil it is applied on the
// way in and on the way out so callers never share mutable state with it.
func NewCell[T any](clone func(T) T) *Cell[T] {
	return &Cell[T]{clone: clone, watchers: make(map[chan T]struct{})}
}

// Set stores v and publishes it to every watcher.
func (c *Cell[T]) Set(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.value = c.copy(v)
	c.set = true
	for ch := range c.watchers {
		offer(ch, c.copy(c.value))
	}
}

// Get returns the current value and whether one has been set.
func (c *Cell[T]) Get() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.set {
		var zero T
		return zero, false
	}
	return c.copy(c.value), true
}

// Clear empties the slot. Watchers are not notified; they keep the last
// value they received.
func (c *Cell[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	c.value = zero
	c.set = false
}

// Update applies fn to the current value (the zero value when unset) and
// stores the result, atomically with respect to other writers.
func (c *Cell[T]) Update(fn func(cur T, ok bool) T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.value = c.copy(fn(c.value, c.set))
	c.set = true
	for ch := range c.watchers {
		offer(ch, c.copy(c.value))
	}
}

// Watch returns a channel that first receives the current value (if any)
// and then every later one. The channel is closed once ctx is done.
func (c *Cell[T]) Watch(ctx context.Context) <-chan T {
	ch := make(chan T, 1)

	c.mu.Lock()
	c.watchers[ch] = struct{}{}
	if c.set {
		ch <- c.copy(c.value)
	}
	c.mu.Unlock()

	go func() {
		<-ctx.Done()
		c.mu.Lock()
		delete(c.watchers, ch)
		close(ch)
		c.mu.Unlock()
	}()

	return ch
}

func (c *Cell[T]) copy(v T) T {
	if c.clone == nil {
		return v
	}
	return c.clone(v)
}

// offer replaces whatever is buffered in ch with v. Only the cell sends on
// its channels, and it does so under its lock, so the second send cannot
// block.
func offer[T any](ch chan T, v T) {
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}
