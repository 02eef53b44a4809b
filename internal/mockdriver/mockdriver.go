// Package mockdriver provides a channel-backed stand-in for the host I/O
// driver that corosched.Driver abstracts over (USB framing, the touch
// display). It is not a real driver for any piece of hardware - the host
// I/O layer is an external collaborator the core never inspects - it
// exists so the scheduler can be exercised end-to-end without hardware.
package mockdriver

import (
	"context"
	"time"

	"github.com/embeddedhw/corosched"
)

type message struct {
	iface   corosched.InterfaceID
	payload any
}

// Driver is a corosched.Driver backed by a single channel of pending
// messages. Deliver is safe to call from any goroutine (simulating an
// interrupt handler feeding the real host driver); Poll is only ever
// called from the scheduler's own loop goroutine.
type Driver struct {
	messages chan message
}

// New creates a Driver with room for up to backlog undelivered messages;
// a backlog of zero or less gives room for 16.
func New(backlog int) *Driver {
	if backlog <= 0 {
		backlog = 16
	}
	return &Driver{messages: make(chan message, backlog)}
}

// Deliver enqueues a message as if it had arrived on iface. It never
// blocks the scheduler: a full backlog means the caller blocks, matching
// a real bounded hardware FIFO.
func (d *Driver) Deliver(iface corosched.InterfaceID, payload any) {
	d.messages <- message{iface: iface, payload: payload}
}

// Poll implements corosched.Driver.
func (d *Driver) Poll(ctx context.Context, paused *corosched.PausedIndex, budgetUS int32) (corosched.PollOutcome, error) {
	timer := time.NewTimer(time.Duration(budgetUS) * time.Microsecond)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return corosched.PollOutcome{}, ctx.Err()
	case m := <-d.messages:
		return corosched.PollOutcome{Iface: m.iface, Payload: m.payload}, nil
	case <-timer.C:
		return corosched.PollOutcome{Timeout: true}, nil
	}
}
