package corosched

import "testing"

func TestFinalizerTableFiresOnce(t *testing.T) {
	f := newFinalizerTable()
	task := newBareTask(1)

	calls := 0
	f.install(task, func(tk *Task, result any, err error) {
		calls++
	})
	if !f.has(task) {
		t.Fatal("expected finalizer to be installed")
	}

	f.fire(task, "result", nil)
	f.fire(task, "result", nil) // second fire must be a no-op

	if calls != 1 {
		t.Fatalf("expected finalizer to fire exactly once, got %d", calls)
	}
	if f.has(task) {
		t.Fatal("expected finalizer to be removed after firing")
	}
}

func TestFinalizerTableFireWithoutInstallIsNoop(t *testing.T) {
	f := newFinalizerTable()
	task := newBareTask(1)
	f.fire(task, nil, nil) // must not panic
}

func TestFinalizerTableInstallReplaces(t *testing.T) {
	f := newFinalizerTable()
	task := newBareTask(1)

	var which string
	f.install(task, func(tk *Task, result any, err error) { which = "first" })
	f.install(task, func(tk *Task, result any, err error) { which = "second" })
	f.fire(task, nil, nil)

	if which != "second" {
		t.Fatalf("expected later install to replace earlier, got %q", which)
	}
}
