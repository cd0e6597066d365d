// Package drvctx provides the scoped driver-context guard backends wrap
// around native calls.
//
// Native APIs bind a context to the calling thread. Goroutines have no
// thread identity, so the guard serializes entry: Enter makes the device
// context current for the caller and the returned Leave restores the
// previous state. Nested entry from inside a guarded section is not
// allowed; internal helpers assume the guard is already held.
package drvctx

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Context is one device's driver context.
type Context struct {
	name    string
	mu      sync.Mutex
	depth   atomic.Int32
	entries atomic.Uint64
}

// New returns a context for the named device.
func New(name string) *Context {
	return &Context{name: name}
}

// Enter makes c current and returns the function that restores the
// previous state. Callers defer it:
//
//	defer d.ctx.Enter()()
func (c *Context) Enter() (leave func()) {
	c.mu.Lock()
	c.depth.Add(1)
	c.entries.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() {
			if d := c.depth.Add(-1); d != 0 {
				panic(fmt.Sprintf("drvctx: %s left at depth %d", c.name, d))
			}
			c.mu.Unlock()
		})
	}
}

// Use runs fn with c current.
func Use[T any](c *Context, fn func() T) T {
	defer c.Enter()()
	return fn()
}

// Do runs fn with c current.
func (c *Context) Do(fn func()) {
	defer c.Enter()()
	fn()
}

// Entries returns how many times the context has been entered.
func (c *Context) Entries() uint64 { return c.entries.Load() }

// Current reports whether some goroutine holds the context.
func (c *Context) Current() bool { return c.depth.Load() > 0 }
