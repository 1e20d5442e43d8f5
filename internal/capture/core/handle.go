package core

// Handle binds a Source to the lease that serializes capture operations on
// it. Pipeline entry points take the handle, never the raw source, so
// exclusive use is enforced in one place.
type Handle struct {
	Source
	lease Lease
}

// NewHandle wraps src for use by the capture pipeline.
func NewHandle(src Source) *Handle {
	return &Handle{Source: src}
}

// Acquire takes exclusive use of the source for the named operation.
func (h *Handle) Acquire(op string) (release func(), err error) {
	return h.lease.Acquire(op)
}

// Busy reports whether an operation currently holds the source.
func (h *Handle) Busy() bool {
	return h.lease.Held()
}
