// Package ramp gates how many fetches may run at once. The limit starts
// low and creeps upward while handshakes keep succeeding; any handshake
// failure snaps it back to the starting value.
package ramp

import (
	"context"
	"sync"
	"time"

	"github.com/yourneighborhoodchef/asinfetch/internal/logging"
)

// Controller is the concurrency gate. Every fetch must hold a slot from
// Acquire for its full duration; Run grows the slot count in the
// background.
type Controller struct {
	initial   int
	increment int
	ceiling   int
	delay     time.Duration

	mu     sync.Mutex
	limit  int
	active int
	failed bool
	wakeup chan struct{}
}

// NewController builds a gate starting at initial slots, growing by
// increment per quiet settling window, never exceeding ceiling.
func NewController(initial, increment, ceiling int, delay time.Duration) *Controller {
	if initial < 1 {
		initial = 1
	}
	if ceiling < initial {
		ceiling = initial
	}
	if increment < 1 {
		increment = 1
	}
	return &Controller{
		initial:   initial,
		increment: increment,
		ceiling:   ceiling,
		delay:     delay,
		limit:     initial,
		wakeup:    make(chan struct{}),
	}
}

// Acquire blocks until a slot is free under the current limit or ctx ends.
func (c *Controller) Acquire(ctx context.Context) error {
	for {
		c.mu.Lock()
		if c.active < c.limit {
			c.active++
			c.mu.Unlock()
			return nil
		}
		wait := c.wakeup
		c.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Release frees a slot taken by Acquire.
func (c *Controller) Release() {
	c.mu.Lock()
	if c.active > 0 {
		c.active--
	}
	c.notifyLocked()
	c.mu.Unlock()
}

// NoteHandshakeFailure resets the limit to its starting value. Slots
// already held stay held; the gate only stops admitting new work above
// the reset limit.
func (c *Controller) NoteHandshakeFailure() {
	c.mu.Lock()
	if c.limit != c.initial {
		logging.Warnf("handshake failure, concurrency reset %d -> %d", c.limit, c.initial)
	}
	c.limit = c.initial
	c.failed = true
	c.mu.Unlock()
}

// Limit reports the current slot count.
func (c *Controller) Limit() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.limit
}

// Run grows the limit by increment after every settling window with no
// handshake failures, up to the ceiling. Returns when ctx ends.
func (c *Controller) Run(ctx context.Context) {
	ticker := time.NewTicker(c.delay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.grow()
		}
	}
}

func (c *Controller) grow() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.failed {
		c.failed = false
		return
	}
	if c.limit >= c.ceiling {
		return
	}
	c.limit += c.increment
	if c.limit > c.ceiling {
		c.limit = c.ceiling
	}
	c.notifyLocked()
	logging.Infof("concurrency raised to %d", c.limit)
}

// notifyLocked wakes every blocked Acquire so it can re-check the limit.
func (c *Controller) notifyLocked() {
	close(c.wakeup)
	c.wakeup = make(chan struct{})
}
