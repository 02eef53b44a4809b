package corosched

// step resumes task with value (or injects err at its suspension point),
// then classifies what comes back. Calling it on a task that has already
// reached a terminal state would mean sending into a goroutine nothing is
// listening on anymore, so step refuses and logs instead.
func (s *Scheduler) step(task *Task, value any, err error) {
	if task.terminal {
		s.logger.WithField("task", task.String()).Error(ErrTaskNotResumable)
		return
	}
	s.executing = task
	task.in <- stepIn{value: value, err: err}
	out := <-task.out
	s.executing = nil

	switch {
	case out.done:
		task.terminal = true
		s.finalizers.fire(task, out.result, out.err)
	case out.req == nil:
		// voluntary yield: reschedule immediately at the current time.
		s.push(task, s.now(), nil, nil, nil)
	default:
		s.dispatch(task, out.req)
	}

	if s.afterStep != nil {
		s.afterStep()
	}
}

// dispatch classifies a yielded Request by concrete type and hands it to
// the matching component. An unrecognized Request implementor hits the
// default case: logged at error level and the task is dropped without a
// finalizer call - Request stays an open interface within this package
// rather than a closed sum type, so in-package code can construct one
// dispatch doesn't know about.
func (s *Scheduler) dispatch(task *Task, req Request) {
	switch r := req.(type) {
	case *sleepRequest:
		deadline := wrapAdd(s.now(), r.delayUS)
		s.push(task, deadline, deadline, nil, nil)

	case *waitForRequest:
		s.Pause(task, r.iface)

	case *signalAwaitRequest:
		sig := r.sig
		sig.waiterTask = task
		task.location = taskLocation{kind: locationSignalWaiter, signal: sig}
		sig.deliver()

	case *raceAwaitRequest:
		s.startRace(task, r.race)

	default:
		s.logger.WithField("task", task.String()).Errorf("corosched: unknown request type %T yielded; task dropped", req)
		task.terminal = true
		task.in <- stepIn{cancel: true}
		out := <-task.out // drain the goroutine so it doesn't leak; no finalizer fires.
		if !out.done {
			s.logger.WithField("task", task.String()).Error("corosched: task yielded again while unwinding from an unknown request; abandoned")
		}
	}
}

// startRace materializes every child of race, schedules each one now with
// the race's own finalizer installed, and leaves the parent suspended - it
// is parked as the race's parent rather than in the timer queue or paused
// index, so Close can still find and cancel it.
func (s *Scheduler) startRace(parent *Task, race *RaceGroup) {
	race.parent = parent
	race.resolved = false
	race.finished = nil
	parent.location = taskLocation{kind: locationRaceParent, race: race}

	finalizer := race.onChildFinish(s)
	for i := range race.children {
		child := race.children[i].awaitable.materialize(s)
		race.children[i].task = child
		s.push(child, s.now(), nil, nil, finalizer)
	}
}
