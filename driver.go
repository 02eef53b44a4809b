package corosched

import "context"

// PollOutcome is what the host I/O driver reports back from one Poll
// call: either a delivered message on some interface, or a timeout.
type PollOutcome struct {
	Timeout bool
	Iface   InterfaceID
	Payload any
}

// Driver is the one operation the core imports from the host I/O layer:
// did any interface deliver a message within this budget? It is
// deliberately the only point of contact with hardware - the wire-format
// message types and the real USB/touch stack stay external collaborators.
type Driver interface {
	// Poll blocks up to budgetUS microseconds. It may inspect paused to
	// know which interfaces currently have a waiting task, and may return
	// a timeout spontaneously even before budgetUS elapses - spurious
	// wakeups are permitted.
	Poll(ctx context.Context, paused *PausedIndex, budgetUS int32) (PollOutcome, error)
}
