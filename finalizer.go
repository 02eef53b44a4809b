package corosched

// Finalizer is invoked exactly once when a task reaches any terminal state:
// normal completion (err == nil), failure (err != nil, not a
// *CancellationError), or cancellation (err is a *CancellationError).
type Finalizer func(task *Task, result any, err error)

// finalizerTable is component C: a one-shot callback per task identity,
// consumed exactly once regardless of which terminal path fires it.
type finalizerTable struct {
	byTask map[uint64]Finalizer
}

func newFinalizerTable() *finalizerTable {
	return &finalizerTable{byTask: make(map[uint64]Finalizer)}
}

// install sets the finalizer for task. At most one may be installed; a
// later call silently replaces the earlier one, mirroring the source's
// plain dict assignment (_finalizers[id(task)] = finalizer).
func (f *finalizerTable) install(task *Task, fn Finalizer) {
	if fn == nil {
		return
	}
	f.byTask[task.id] = fn
}

// fire removes and invokes the finalizer for task, if any is installed.
// It is a no-op otherwise. Because it deletes before invoking, a finalizer
// that itself triggers another fire for the same task (impossible as this
// package is structured, but kept as the enforced property) can never
// double-run.
func (f *finalizerTable) fire(task *Task, result any, err error) {
	fn, ok := f.byTask[task.id]
	if !ok {
		return
	}
	delete(f.byTask, task.id)
	fn(task, result, err)
}

// has reports whether task currently has a finalizer installed.
func (f *finalizerTable) has(task *Task) bool {
	_, ok := f.byTask[task.id]
	return ok
}
