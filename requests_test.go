package corosched

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func assertNoErr(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// newTestScheduler builds a Scheduler with a fixed clock and a discarding
// driver, suitable for stepping by hand without ever calling Run.
func newTestScheduler(clock func() Deadline) *Scheduler {
	return NewScheduler(nil, WithClock(clock))
}

func TestSignalDeliversToWaiter(t *testing.T) {
	s := newTestScheduler(func() Deadline { return 0 })
	sig := NewSignal(s)

	done := make(chan any, 1)
	task := s.Spawn(func(y *Yield) (any, error) {
		v, err := sig.Await(y)
		assertNoErr(t, err)
		done <- v
		return v, nil
	})

	assertNoErr(t, s.Schedule(task, nil))
	_, tk, v, err := s.timers.popEarliest()
	s.step(tk, v, err)

	// Task is now parked as the signal's waiter.
	if task.location.kind != locationSignalWaiter {
		t.Fatalf("expected task parked as signal waiter, got %v", task.location.kind)
	}

	sig.Send("hello")

	if !s.timers.contains(task) {
		t.Fatal("expected task rescheduled after Send")
	}
	_, tk2, v2, err2 := s.timers.popEarliest()
	s.step(tk2, v2, err2)

	select {
	case got := <-done:
		if got != "hello" {
			t.Fatalf("expected %q, got %v", "hello", got)
		}
	default:
		t.Fatal("expected task to have completed")
	}
}

func TestSignalSendBeforeAwaitIsPending(t *testing.T) {
	s := newTestScheduler(func() Deadline { return 0 })
	sig := NewSignal(s)
	sig.Send("early")

	task := s.Spawn(func(y *Yield) (any, error) {
		return sig.Await(y)
	})
	assertNoErr(t, s.Schedule(task, nil))
	_, tk, v, err := s.timers.popEarliest()
	s.step(tk, v, err)

	// Await should have delivered the pending value immediately, since
	// deliver() fires as soon as both slots (waiter + pending) are filled.
	if !s.timers.contains(task) {
		t.Fatal("expected task to be immediately rescheduled with the pending value")
	}
}

func TestRaceFirstChildWins(t *testing.T) {
	s := newTestScheduler(func() Deadline { return 0 })

	var winnerResult any
	var raceErr error
	parent := s.Spawn(func(y *Yield) (any, error) {
		fast := TaskFunc(func(y *Yield) (any, error) { return "fast", nil })
		slow := TaskFunc(func(y *Yield) (any, error) {
			_, err := y.Sleep(1_000_000)
			return "slow", err
		})
		race := Race([]Awaitable{fast, slow})
		v, err := race.Await(y)
		winnerResult, raceErr = v, err
		return v, err
	})

	assertNoErr(t, s.Schedule(parent, nil))
	_, tk, v, err := s.timers.popEarliest()
	s.step(tk, v, err) // parent runs up to race.Await, starts both children

	// Stepping the fast child resolves the race synchronously (cancels the
	// slow child, reschedules the parent); drain the queue to run it all.
	for s.timers.nonempty() {
		_, ctask, cv, cerr := s.timers.popEarliest()
		s.step(ctask, cv, cerr)
	}

	if winnerResult != "fast" {
		t.Fatalf("expected fast child to win, got %v (err=%v)", winnerResult, raceErr)
	}
}

func TestRaceNoChildrenFailsFast(t *testing.T) {
	s := newTestScheduler(func() Deadline { return 0 })

	var gotErr error
	task := s.Spawn(func(y *Yield) (any, error) {
		race := Race(nil)
		_, err := race.Await(y)
		gotErr = err
		return nil, err
	})
	assertNoErr(t, s.Schedule(task, nil))
	_, tk, v, err := s.timers.popEarliest()
	s.step(tk, v, err)

	if gotErr != ErrRaceNoChildren {
		t.Fatalf("expected ErrRaceNoChildren, got %v", gotErr)
	}
}

// unknownRequest is a Request implementor deliberately constructed outside
// this package's own suspension methods, to exercise the dispatch default
// case for a request type nothing recognizes.
type unknownRequest struct{}

func (unknownRequest) isRequest() {}

func TestDispatchDropsUnknownRequest(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.ErrorLevel)

	s := NewScheduler(nil, WithClock(func() Deadline { return 0 }), WithLogger(logger))

	task := s.Spawn(func(y *Yield) (any, error) {
		return y.suspend(unknownRequest{})
	})
	finalizerFired := false
	assertNoErr(t, s.Schedule(task, nil, WithFinalizer(func(*Task, any, error) {
		finalizerFired = true
	})))
	_, tk, v, err := s.timers.popEarliest()
	s.step(tk, v, err)

	if len(hook.Entries) == 0 {
		t.Fatal("expected an error log entry for the unknown request")
	}
	if hook.LastEntry().Level != logrus.ErrorLevel {
		t.Fatalf("expected error level, got %v", hook.LastEntry().Level)
	}
	if !task.terminal {
		t.Fatal("expected task to be dropped (terminal) after unknown request")
	}
	if finalizerFired {
		t.Fatal("expected the installed finalizer NOT to fire for a dropped unknown request")
	}
}
