package corosched

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// maxDelayUS bounds the wait time when only paused tasks remain, allowing
// for external wakes the model doesn't otherwise represent.
const maxDelayUS int32 = 1_000_000

// Scheduler holds every piece of process-wide scheduler state: the timer
// queue, paused-task index, and finalizer table are all fields here,
// touched only from inside step/Run/Close - there are no locks, because
// there is never more than one of those calls on the stack at once.
// Construct one with NewScheduler.
type Scheduler struct {
	timers      *timerQueue
	paused      *PausedIndex
	finalizers  *finalizerTable
	driver      Driver
	clock       func() Deadline
	afterStep   func()
	logger      *logrus.Logger
	nextTaskID  uint64
	executing   *Task
	closed      bool
	running     bool
}

// Option configures a Scheduler at construction.
type Option func(*Scheduler)

// WithTimerCapacity overrides the default 64-entry timer queue bound.
func WithTimerCapacity(capacity int) Option {
	return func(s *Scheduler) { s.timers = newTimerQueue(capacity) }
}

// WithClock overrides the monotonic-microsecond clock, wrap included.
// Tests use this to drive deadlines deterministically, including across
// the wraparound boundary.
func WithClock(clock func() Deadline) Option {
	return func(s *Scheduler) { s.clock = clock }
}

// WithLogger overrides the logger used for the error-level diagnostics
// (unknown requests, tasks that don't unwind cleanly on cancellation).
// Defaults to a logrus.Logger with output discarded, matching
// frankenasync's default-to-noop-logger convention.
func WithLogger(logger *logrus.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

// WithAfterStepHook installs the optional global hook invoked after every
// step. It may call any public scheduler operation except Run.
func WithAfterStepHook(fn func()) Option {
	return func(s *Scheduler) { s.afterStep = fn }
}

// defaultClock returns the low 32 bits of the current Unix time in
// microseconds. Truncating to uint32 is exactly arithmetic modulo 2^32,
// so it reproduces the Deadline type's wraparound behavior regardless of
// process start time.
func defaultClock() Deadline {
	return Deadline(uint32(time.Now().UnixMicro()))
}

// NewScheduler creates a Scheduler driven by driver, which is consulted
// exactly once per loop turn in Run.
func NewScheduler(driver Driver, opts ...Option) *Scheduler {
	s := &Scheduler{
		timers:     newTimerQueue(defaultTimerCapacity),
		paused:     newPausedIndex(),
		finalizers: newFinalizerTable(),
		driver:     driver,
		clock:      defaultClock,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logrus.New()
		s.logger.SetOutput(discardWriter{})
	}
	return s
}

// now returns the current deadline-comparable instant.
func (s *Scheduler) now() Deadline { return s.clock() }

// Spawn materializes a task from fn without scheduling it. The task's
// goroutine is launched but blocks until the first resume, so nothing of
// fn runs yet.
func (s *Scheduler) Spawn(fn TaskFunc) *Task {
	id := atomic.AddUint64(&s.nextTaskID, 1)
	return newTask(id, fn)
}

// scheduleParams collects the optional arguments to Schedule.
type scheduleParams struct {
	deadline  *Deadline
	finalizer Finalizer
}

// ScheduleOption configures a single Schedule call.
type ScheduleOption func(*scheduleParams)

// WithDeadline schedules the task at an absolute deadline instead of now.
func WithDeadline(deadlineUS Deadline) ScheduleOption {
	return func(p *scheduleParams) { p.deadline = &deadlineUS }
}

// WithFinalizer installs fn as the task's one-shot completion callback.
func WithFinalizer(fn Finalizer) ScheduleOption {
	return func(p *scheduleParams) { p.finalizer = fn }
}

// Schedule enqueues task to run with value at deadline (default: now),
// installing finalizer if given. Schedule itself never injects a failure -
// only Race's internal propagation does that, through push; cancellation
// resumes the task directly from Close.
func (s *Scheduler) Schedule(task *Task, value any, opts ...ScheduleOption) error {
	if s.closed {
		return ErrSchedulerClosed
	}
	var p scheduleParams
	for _, opt := range opts {
		opt(&p)
	}
	deadline := s.now()
	if p.deadline != nil {
		deadline = *p.deadline
	}
	return s.push(task, deadline, value, nil, p.finalizer)
}

// push is the internal primitive behind every way a task re-enters the
// timer queue: Schedule, a Signal delivering, a Race resolving, a
// voluntary yield rescheduling, and Sleep's own handling.
func (s *Scheduler) push(task *Task, deadlineUS Deadline, value any, err error, finalizer Finalizer) error {
	if finalizer != nil {
		s.finalizers.install(task, finalizer)
	}
	if pushErr := s.timers.push(deadlineUS, task, value, err); pushErr != nil {
		return pushErr
	}
	task.location = taskLocation{kind: locationTimerQueue}
	return nil
}

// Pause adds task to the waiter set for iface. Application code normally
// reaches this indirectly, via Yield.WaitFor.
func (s *Scheduler) Pause(task *Task, iface InterfaceID) {
	s.paused.pause(task, iface)
	task.location = taskLocation{kind: locationPaused, iface: iface}
}

// cancelLocation releases task from wherever it is currently parked -
// one of the four mutually-exclusive locations a suspended task can
// occupy - and resets it to none.
func (s *Scheduler) cancelLocation(task *Task) {
	switch task.location.kind {
	case locationTimerQueue:
		s.timers.remove(task)
	case locationPaused:
		s.paused.discard(task)
	case locationSignalWaiter:
		if sig := task.location.signal; sig != nil && sig.waiterTask == task {
			sig.waiterTask = nil
		}
	case locationRaceParent:
		if race := task.location.race; race != nil {
			race.cancelChildren(s)
		}
	}
	task.location = taskLocation{}
}

// Close cancels task: synchronous and idempotent.
//  1. Remove it from wherever it is parked (timer queue, paused set,
//     signal waiter slot, or race group - fanning out cancellation to
//     race children).
//  2. Resume its goroutine with a cancellation signal so it can run its
//     own unwind path (released scoped resources); an error other than the
//     cancellation itself returned during unwind is logged and swallowed,
//     and any further request it yields during unwind is logged and the
//     task is abandoned rather than delivered further.
//  3. Fire its finalizer with a CancellationError, regardless of what the
//     unwind path itself returned.
func (s *Scheduler) Close(task *Task) {
	if task == nil || task.terminal {
		return
	}
	if task == s.executing {
		s.logger.WithField("task", task.String()).Error("corosched: refusing to close the currently executing task")
		return
	}
	s.cancelLocation(task)
	task.terminal = true
	task.in <- stepIn{cancel: true}
	out := <-task.out
	if !out.done {
		s.logger.WithField("task", task.String()).Error("corosched: task yielded again while unwinding from cancellation; abandoned")
	} else if out.err != nil && !IsCancellation(out.err) {
		s.logger.WithField("task", task.String()).WithError(out.err).Error("corosched: task failed while unwinding from cancellation; error swallowed")
	}
	s.finalizers.fire(task, nil, &CancellationError{TaskID: task.id})
}

// Clear drops all scheduler state: every scheduled or paused task is
// forgotten without running its finalizer, and the scheduler is marked
// closed, same as after Run returns. Testing only.
func (s *Scheduler) Clear() {
	for s.timers.nonempty() {
		_, t, _, _ := s.timers.popEarliest()
		t.location = taskLocation{}
	}
	for _, iface := range s.paused.Interfaces() {
		for _, t := range s.paused.take(iface) {
			t.location = taskLocation{}
		}
	}
	s.finalizers = newFinalizerTable()
	s.closed = true
}

// Run enters the event loop, returning once both the timer queue and the
// paused index are empty, ctx is cancelled, or the driver fails (driver
// failures are fatal and propagate to the caller). Run is not reentrant:
// calling it from the after-step hook, or from any task body, panics,
// since that would mean two loop goroutines both believe they own the
// single-stepper-stack invariant.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.running {
		panic("corosched: Run called reentrantly")
	}
	s.running = true
	defer func() {
		s.running = false
		s.closed = true
	}()

	for s.timers.nonempty() || s.paused.nonempty() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var budget int32
		if s.timers.nonempty() {
			budget = wrapDiff(s.timers.peekTime(), s.now())
			if budget < 0 {
				budget = 0
			}
		} else {
			budget = maxDelayUS
		}

		outcome, err := s.driver.Poll(ctx, s.paused, budget)
		if err != nil {
			return err
		}

		if !outcome.Timeout {
			for _, t := range s.paused.take(outcome.Iface) {
				s.step(t, outcome.Payload, nil)
			}
			continue
		}

		if s.timers.nonempty() {
			_, t, v, terr := s.timers.popEarliest()
			s.step(t, v, terr)
		}
	}
	return nil
}

// discardWriter is an io.Writer that throws everything away, used as the
// default logger sink so corosched is silent unless WithLogger overrides
// it - mirroring frankenasync's default no-op slog handler.
type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
