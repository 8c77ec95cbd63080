// Package services holds the shared runtime for the system services:
// the snapshot callback registry, the signal-storm debouncer, and the
// D-Bus plumbing every service builds on. Service state is only ever
// touched from the event loop goroutine.
package services

// Callbacks is a snapshot subscription registry. Registration replays
// the current snapshot immediately; notification preserves insertion
// order; a callback registered from inside a notification cycle is
// deferred to the next cycle.
//
// Callbacks is not safe for concurrent use: it must only be accessed
// from the event loop.
type Callbacks[T any] struct {
	nextID    int
	entries   []callbackEntry[T]
	deferred  []callbackEntry[T]
	removed   map[int]bool
	notifying bool
}

type callbackEntry[T any] struct {
	id int
	fn func(T)
}

// Register adds a callback and immediately replays current to it.
// Returns an id for Unregister.
func (c *Callbacks[T]) Register(fn func(T), current T) int {
	c.nextID++
	entry := callbackEntry[T]{id: c.nextID, fn: fn}
	if c.notifying {
		c.deferred = append(c.deferred, entry)
	} else {
		c.entries = append(c.entries, entry)
	}
	fn(current)
	return entry.id
}

// Unregister removes a callback. Returns false if the id was absent.
// During a notification cycle the removal is deferred so the cycle
// still visits every remaining callback exactly once.
func (c *Callbacks[T]) Unregister(id int) bool {
	for i, e := range c.entries {
		if e.id != id || c.removed[e.id] {
			continue
		}
		if c.notifying {
			if c.removed == nil {
				c.removed = make(map[int]bool)
			}
			c.removed[id] = true
		} else {
			c.entries = append(c.entries[:i], c.entries[i+1:]...)
		}
		return true
	}
	// Deferred entries are never iterated by Notify, so compacting in
	// place is safe even mid-cycle.
	for i, e := range c.deferred {
		if e.id == id {
			c.deferred = append(c.deferred[:i], c.deferred[i+1:]...)
			return true
		}
	}
	return false
}

// Notify invokes all currently registered callbacks in insertion
// order. Callbacks registered during the cycle run starting from the
// next cycle.
func (c *Callbacks[T]) Notify(snap T) {
	c.notifying = true
	for _, e := range c.entries {
		if c.removed[e.id] {
			continue
		}
		e.fn(snap)
	}
	c.notifying = false

	if len(c.removed) > 0 {
		kept := c.entries[:0]
		for _, e := range c.entries {
			if !c.removed[e.id] {
				kept = append(kept, e)
			}
		}
		c.entries = kept
		c.removed = nil
	}
	if len(c.deferred) > 0 {
		c.entries = append(c.entries, c.deferred...)
		c.deferred = nil
	}
}

// Len returns the number of registered callbacks.
func (c *Callbacks[T]) Len() int {
	return len(c.entries) + len(c.deferred) - len(c.removed)
}
