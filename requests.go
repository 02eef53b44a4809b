package corosched

// Request is the tagged union of things a task may yield. The interface
// stays open within this package (any type declared here can implement
// the unexported isRequest): nothing about the public API ever constructs
// one outside this file, but in-package code such as the tests can, which
// is what lets dispatch's unknown-request case stay reachable.
type Request interface{ isRequest() }

// Yield is the handle passed to a TaskFunc. Every suspension point in a
// task's body goes through one of its methods.
type Yield struct {
	task *Task
}

// suspend sends req (nil for a voluntary yield) to the scheduler and
// blocks until the scheduler resumes this task, returning the delivered
// value or the injected failure - the Go stand-in for the source's
// `yield`/`send`/`throw` protocol.
func (y *Yield) suspend(req Request) (any, error) {
	y.task.out <- stepOut{req: req}
	in := <-y.task.in
	if in.cancel {
		return nil, &CancellationError{TaskID: y.task.id}
	}
	return in.value, in.err
}

// Nothing voluntarily yields control for one loop turn without any
// request; the task is immediately rescheduled at the current time.
func (y *Yield) Nothing() (any, error) {
	return y.suspend(nil)
}

type sleepRequest struct {
	delayUS int32
}

func (*sleepRequest) isRequest() {}

// Sleep pauses the current task and resumes it after delayUS microseconds.
// The resumed value is the computed absolute deadline, letting the task
// measure scheduling jitter against it.
func (y *Yield) Sleep(delayUS int32) (Deadline, error) {
	v, err := y.suspend(&sleepRequest{delayUS: delayUS})
	if err != nil {
		return 0, err
	}
	return v.(Deadline), nil
}

type waitForRequest struct {
	iface InterfaceID
}

func (*waitForRequest) isRequest() {}

// WaitFor pauses the current task until a message arrives on iface. The
// resumed value is whatever payload the driver delivered.
func (y *Yield) WaitFor(iface InterfaceID) (any, error) {
	return y.suspend(&waitForRequest{iface: iface})
}

// Signal is a single-producer/single-consumer rendezvous.
type Signal struct {
	sched        *Scheduler
	pendingValue any
	hasPending   bool
	waiterTask   *Task
}

// NewSignal creates a Signal bound to s. It must be created on s, since
// delivering a pending value to a waiting task re-enters the scheduler.
func NewSignal(s *Scheduler) *Signal {
	return &Signal{sched: s}
}

type signalAwaitRequest struct {
	sig *Signal
}

func (*signalAwaitRequest) isRequest() {}

// Await suspends the current task on the signal; if a value is already
// pending it is delivered on the next loop turn, otherwise the task waits
// until Send is called.
func (sig *Signal) Await(y *Yield) (any, error) {
	return y.suspend(&signalAwaitRequest{sig: sig})
}

// Send stores value as the pending value and delivers it immediately if a
// waiter is present.
func (sig *Signal) Send(value any) {
	sig.pendingValue = value
	sig.hasPending = true
	sig.deliver()
}

// Reset clears both the pending value and waiter slots without delivering.
func (sig *Signal) Reset() {
	sig.pendingValue = nil
	sig.hasPending = false
	sig.waiterTask = nil
}

// deliver fires when both slots are occupied, scheduling the waiter with
// the pending value and clearing both slots atomically (with respect to
// the rest of the scheduler - there is only ever one goroutine mutating
// this state at a time).
func (sig *Signal) deliver() {
	if sig.waiterTask == nil || !sig.hasPending {
		return
	}
	t := sig.waiterTask
	v := sig.pendingValue
	sig.waiterTask = nil
	sig.hasPending = false
	sig.pendingValue = nil
	t.location = taskLocation{}
	sig.sched.push(t, sig.sched.now(), v, nil, nil)
}

// Awaitable is implemented by anything that can stand as a Race child: a
// *Task (already materialized, used as-is) or a TaskFunc (materialized
// fresh via Scheduler.Spawn).
type Awaitable interface {
	materialize(s *Scheduler) *Task
}

// materialize implements Awaitable for a bare task body.
func (f TaskFunc) materialize(s *Scheduler) *Task { return s.Spawn(f) }

// raceChild pairs an original Awaitable with the *Task materialized from
// it, so the winner can be reported back to the caller as the same value
// they passed in.
type raceChild struct {
	awaitable Awaitable
	task      *Task
}

// RaceGroup is a composite awaitable that starts several children and
// completes on the first to finish, optionally cancelling the rest.
type RaceGroup struct {
	children   []raceChild
	exitOthers bool
	finished   []Awaitable
	resolved   bool
	parent     *Task
}

// RaceOption configures a RaceGroup at construction.
type RaceOption func(*RaceGroup)

// WithExitOthers overrides the default (true): whether the unfinished
// siblings are cancelled once one child completes.
func WithExitOthers(v bool) RaceOption {
	return func(r *RaceGroup) { r.exitOthers = v }
}

// Race builds a RaceGroup over children. Awaiting a RaceGroup with zero
// children is an error, reported synchronously from Await before the
// parent ever suspends.
func Race(children []Awaitable, opts ...RaceOption) *RaceGroup {
	r := &RaceGroup{exitOthers: true}
	for _, c := range children {
		r.children = append(r.children, raceChild{awaitable: c})
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Finished returns the child awaitables that had completed by the time
// Await returned, in completion order. For a single-winner race this has
// exactly one element.
func (r *RaceGroup) Finished() []Awaitable { return r.finished }

type raceAwaitRequest struct {
	race *RaceGroup
}

func (*raceAwaitRequest) isRequest() {}

// Await suspends the current task until the first child of r finishes.
func (r *RaceGroup) Await(y *Yield) (any, error) {
	if len(r.children) == 0 {
		return nil, ErrRaceNoChildren
	}
	return y.suspend(&raceAwaitRequest{race: r})
}

// onChildFinish is installed as the finalizer for every materialized
// child: the first child to finish resolves the race (recording the
// winner, optionally cancelling the rest, and scheduling the parent with
// the winner's result); any later completion is a no-op at the race
// level.
func (r *RaceGroup) onChildFinish(s *Scheduler) Finalizer {
	return func(childTask *Task, result any, err error) {
		if r.resolved {
			return
		}
		var winner Awaitable
		for _, c := range r.children {
			if c.task == childTask {
				winner = c.awaitable
				break
			}
		}
		r.resolved = true
		r.finished = append(r.finished, winner)
		if r.exitOthers {
			for _, c := range r.children {
				if c.task != childTask {
					s.Close(c.task)
				}
			}
		}
		parent := r.parent
		r.parent = nil
		if parent != nil {
			parent.location = taskLocation{}
			s.push(parent, s.now(), result, err, nil)
		}
	}
}

// cancelChildren is invoked when the parent itself is cancelled while
// still racing: every child is closed and the race is marked resolved so
// none of their finalizers try to schedule the (now dead) parent.
func (r *RaceGroup) cancelChildren(s *Scheduler) {
	if r.resolved {
		return
	}
	r.resolved = true
	r.parent = nil
	for _, c := range r.children {
		s.Close(c.task)
	}
}
