package corosched

import "container/heap"

// defaultTimerCapacity is the initial bound on the number of scheduled
// entries.
const defaultTimerCapacity = 64

// Deadline is a monotonic-microsecond instant, free-running on a 32-bit
// unsigned counter that wraps roughly every 71 minutes. It is never
// compared with plain arithmetic - always through wrapDiff/wrapAdd.
type Deadline uint32

// wrapDiff returns the signed difference a-b, interpreted as a wrap-aware
// comparison of monotonic-microsecond deadlines: a raw subtraction would
// misorder deadlines that straddle the wrap boundary, so the difference is
// taken modulo 2^32 and reinterpreted as signed, the standard
// wrapping-sequence-number idiom. A negative result means a is earlier
// than b.
func wrapDiff(a, b Deadline) int32 {
	return int32(a - b)
}

// wrapAdd computes deadline+delayUS with the same wraparound semantics:
// unsigned addition already wraps modulo 2^32, which is exactly what's
// wanted.
func wrapAdd(deadline Deadline, delayUS int32) Deadline {
	return deadline + Deadline(delayUS)
}

// scheduledEntry is the "Scheduled entry" of the data model: the triple
// (deadline, task, value), plus the failure to inject (if any) and an
// insertion sequence number used to break deadline ties in FIFO order.
type scheduledEntry struct {
	deadlineUS Deadline
	seq        uint64
	task       *Task
	value      any
	err        error
	index      int // heap index, maintained by container/heap for O(1) Remove
}

// timerQueue is a bounded min-heap keyed by deadline, ties broken by
// insertion order. It is grounded directly on gaio's timedHeap
// (container/heap over aiocb.deadline), generalized from time.Time to the
// wrap-aware microsecond deadlines this spec requires, and on its pattern
// of storing the heap index on the entry itself (aiocb.idx) for O(1)
// heap.Remove instead of a linear scan.
type timerQueue struct {
	entries  timerHeap
	byTask   map[uint64]*scheduledEntry
	capacity int
	nextSeq  uint64
}

func newTimerQueue(capacity int) *timerQueue {
	if capacity <= 0 {
		capacity = defaultTimerCapacity
	}
	q := &timerQueue{
		capacity: capacity,
		byTask:   make(map[uint64]*scheduledEntry),
	}
	heap.Init(&q.entries)
	return q
}

// push inserts a new entry. It fails with ErrQueueFull once capacity is
// exhausted. A task may appear at most once in the queue; pushing a task
// that is already present replaces its entry (Schedule does not check for
// this itself, so scheduling a queued task again lands here). The capacity
// check comes first, so a replacing push into a full queue also fails.
func (q *timerQueue) push(deadlineUS Deadline, task *Task, value any, err error) error {
	if len(q.entries) >= q.capacity {
		return ErrQueueFull
	}
	if old, ok := q.byTask[task.id]; ok {
		heap.Remove(&q.entries, old.index)
		delete(q.byTask, task.id)
	}
	e := &scheduledEntry{
		deadlineUS: deadlineUS,
		seq:        q.nextSeq,
		task:       task,
		value:      value,
		err:        err,
	}
	q.nextSeq++
	heap.Push(&q.entries, e)
	q.byTask[task.id] = e
	return nil
}

// nonempty reports whether any entry remains.
func (q *timerQueue) nonempty() bool { return len(q.entries) > 0 }

// len returns the number of scheduled entries.
func (q *timerQueue) len() int { return len(q.entries) }

// peekTime returns the earliest deadline without removing it. Callers must
// check nonempty first.
func (q *timerQueue) peekTime() Deadline { return q.entries[0].deadlineUS }

// popEarliest removes and returns the earliest entry.
func (q *timerQueue) popEarliest() (deadlineUS Deadline, task *Task, value any, err error) {
	e := heap.Pop(&q.entries).(*scheduledEntry)
	delete(q.byTask, e.task.id)
	return e.deadlineUS, e.task, e.value, e.err
}

// remove drops any entry for task; it is a no-op if task is absent.
func (q *timerQueue) remove(task *Task) {
	e, ok := q.byTask[task.id]
	if !ok {
		return
	}
	heap.Remove(&q.entries, e.index)
	delete(q.byTask, task.id)
}

// contains reports whether task currently has an entry in the queue.
func (q *timerQueue) contains(task *Task) bool {
	_, ok := q.byTask[task.id]
	return ok
}

// timerHeap implements container/heap.Interface over scheduledEntry
// pointers, ordered by wrap-aware deadline with FIFO-at-tie via seq.
type timerHeap []*scheduledEntry

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	d := wrapDiff(h[i].deadlineUS, h[j].deadlineUS)
	if d != 0 {
		return d < 0
	}
	return h[i].seq < h[j].seq
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	e := x.(*scheduledEntry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}
