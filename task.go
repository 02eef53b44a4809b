package corosched

import "github.com/rs/xid"

// TaskFunc is the body of a task: a function that runs until it returns or
// fails, suspending only through the *Yield handle it is given. This is
// the Go materialization of the source's coroutine: Go has no first-class
// generators, so per the Design Notes a task is instead a goroutine that
// rendezvous with the scheduler at every suspension point.
type TaskFunc func(y *Yield) (result any, err error)

// locationKind names which of the mutually-exclusive places currently
// holds a suspended task.
type locationKind int

const (
	locationNone locationKind = iota
	locationTimerQueue
	locationPaused
	locationSignalWaiter
	locationRaceParent
)

// taskLocation tracks exactly where a suspended task is parked, so Close
// can release it in O(1) without scanning the timer queue, every paused
// set, and every live Signal/RaceGroup. Grounded in gaio's aiocb, which
// stores its own list/heap back-pointers (l, elem, idx) for the same
// reason.
type taskLocation struct {
	kind   locationKind
	iface  InterfaceID
	signal *Signal
	race   *RaceGroup
}

// stepIn is what the scheduler sends into a task's goroutine to resume it.
type stepIn struct {
	value  any
	err    error
	cancel bool
}

// stepOut is what a task's goroutine sends back: either a suspension
// request, the bare "nothing" sentinel (req == nil, done == false), or a
// terminal result.
type stepOut struct {
	done   bool
	result any
	err    error
	req    Request
}

// Task is an opaque, resumable unit of control with a stable identity.
// Construct one with Scheduler.Spawn.
type Task struct {
	id       uint64
	display  xid.ID
	in       chan stepIn
	out      chan stepOut
	location taskLocation
	terminal bool
}

// ID returns the task's stable numeric identity, used as the map key
// throughout the scheduler.
func (t *Task) ID() uint64 { return t.id }

// String returns a short display identifier suitable for log correlation.
// It is never used as a map key or for equality.
func (t *Task) String() string { return "task:" + t.display.String() }

// newTask materializes a task: it launches the driving goroutine, which
// blocks immediately waiting for the first resume. The goroutine never
// runs any of fn's code until the scheduler steps it, so a freshly
// materialized task never races with the loop goroutine.
func newTask(id uint64, fn TaskFunc) *Task {
	t := &Task{
		id:      id,
		display: xid.New(),
		in:      make(chan stepIn),
		out:     make(chan stepOut),
	}
	y := &Yield{task: t}
	go func() {
		first := <-t.in
		if first.cancel {
			t.out <- stepOut{done: true, err: &CancellationError{TaskID: t.id}}
			return
		}
		result, err := fn(y)
		t.out <- stepOut{done: true, result: result, err: err}
	}()
	return t
}

// materialize implements Awaitable: a *Task used as a Race child is used
// as-is.
func (t *Task) materialize(s *Scheduler) *Task { return t }
