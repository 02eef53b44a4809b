package corosched

// InterfaceID identifies a source of asynchronous messages - a USB
// interface, the touchscreen, or any other channel the host driver
// multiplexes - per the GLOSSARY.
type InterfaceID int

// PausedIndex is the "Paused-task index" (component B): a mapping from
// interface id to the set of tasks awaiting a message on that interface.
type PausedIndex struct {
	byIface map[InterfaceID]map[*Task]struct{}
}

func newPausedIndex() *PausedIndex {
	return &PausedIndex{byIface: make(map[InterfaceID]map[*Task]struct{})}
}

// pause adds task to the waiter set for iface.
func (p *PausedIndex) pause(task *Task, iface InterfaceID) {
	set, ok := p.byIface[iface]
	if !ok {
		set = make(map[*Task]struct{})
		p.byIface[iface] = set
	}
	set[task] = struct{}{}
}

// take atomically removes and returns every task paused on iface, so the
// caller can resume each one with the delivered payload. Returns nil if
// nothing was paused there.
func (p *PausedIndex) take(iface InterfaceID) []*Task {
	set, ok := p.byIface[iface]
	if !ok || len(set) == 0 {
		return nil
	}
	delete(p.byIface, iface)
	tasks := make([]*Task, 0, len(set))
	for t := range set {
		tasks = append(tasks, t)
	}
	return tasks
}

// discard removes task from whichever interface set it is waiting on, if
// any. Used during cancellation. O(1) via the task's own location field
// rather than a scan of every interface set.
func (p *PausedIndex) discard(task *Task) {
	if task.location.kind != locationPaused {
		return
	}
	set, ok := p.byIface[task.location.iface]
	if !ok {
		return
	}
	delete(set, task)
	if len(set) == 0 {
		delete(p.byIface, task.location.iface)
	}
}

// nonempty reports whether any interface has at least one waiter.
func (p *PausedIndex) nonempty() bool {
	for _, set := range p.byIface {
		if len(set) > 0 {
			return true
		}
	}
	return false
}

// Interfaces returns the set of interface ids that currently have at least
// one waiting task. A Driver implementation uses this to know what to
// listen on (mirrors gaio's watcher consulting its fd descriptor map).
func (p *PausedIndex) Interfaces() []InterfaceID {
	out := make([]InterfaceID, 0, len(p.byIface))
	for iface, set := range p.byIface {
		if len(set) > 0 {
			out = append(out, iface)
		}
	}
	return out
}
