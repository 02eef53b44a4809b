// Package corosched implements a cooperative task scheduler and I/O event
// loop for a single-threaded, non-preemptive environment: many long-running
// flows (UI animation, touch handling, USB request/response, timers) are
// multiplexed onto one goroutine of logical control via a min-heap timer
// queue, a paused-task index keyed by interface id, and a one-shot
// finalizer table.
//
// A task is any func(*Yield) (any, error). It is materialized with Spawn
// and driven with Schedule/Run; it suspends only by calling a method on the
// *Yield handle passed to it (Sleep, WaitFor, awaiting a Signal or a Race).
// Exactly one task body ever runs at a time: the loop goroutine blocks on a
// task's output channel for the full duration of each step, so application
// code between two suspension points has exclusive access to any state it
// shares with other tasks.
package corosched
