package assets

import "context"

var closedChan = func() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}()

// UntypedHandle is a strong reference to a table entry. Each handle value
// returned by Load, Add or Clone owns one reference and must be released
// exactly once. Handles stored inside an asset by its loader are owned by
// that asset and released with it.
type UntypedHandle struct {
	s *Server
	e *entry
}

// IsValid reports whether the handle points at an entry.
func (h UntypedHandle) IsValid() bool {
	return h.e != nil
}

// Path returns the table path.
func (h UntypedHandle) Path() string {
	if h.e == nil {
		return ""
	}
	return h.e.path
}

// State returns the entry's own load state, ignoring dependencies.
func (h UntypedHandle) State() LoadState {
	if h.e == nil {
		return NotLoaded
	}
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	return h.e.state
}

// Err returns the load error once the entry failed.
func (h UntypedHandle) Err() error {
	if h.e == nil {
		return nil
	}
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	return h.e.err
}

// Done is closed when the entry itself is loaded or failed.
func (h UntypedHandle) Done() <-chan struct{} {
	if h.e == nil {
		return closedChan
	}
	return h.e.done
}

// Wait blocks until the entry itself settles and returns its error.
func (h UntypedHandle) Wait(ctx context.Context) error {
	select {
	case <-h.Done():
		return h.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Same reports whether both handles refer to the same entry.
func (h UntypedHandle) Same(other UntypedHandle) bool {
	return h.e != nil && h.e == other.e
}

// Clone returns a new reference to the same entry.
func (h UntypedHandle) Clone() UntypedHandle {
	if h.e != nil {
		h.s.mu.Lock()
		h.s.retainLocked(h.e)
		h.s.mu.Unlock()
	}
	return h
}

// Release drops this reference. The entry and the dependencies it owns are
// freed when the last reference goes.
func (h UntypedHandle) Release() {
	if h.e == nil {
		return
	}
	h.s.mu.Lock()
	h.s.releaseLocked(h.e)
	h.s.mu.Unlock()
}

func (h UntypedHandle) value() (any, bool) {
	if h.e == nil {
		return nil, false
	}
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	if h.e.state != Loaded {
		return nil, false
	}
	return h.e.value, true
}

// Handle is a typed strong reference.
type Handle[T any] struct {
	UntypedHandle
}

// Get returns the asset once the entry is loaded.
func (h Handle[T]) Get() (T, bool) {
	var zero T
	v, ok := h.value()
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

// Clone returns a new typed reference to the same entry.
func (h Handle[T]) Clone() Handle[T] {
	return Handle[T]{h.UntypedHandle.Clone()}
}

// Untyped returns the handle without its type parameter.
func (h Handle[T]) Untyped() UntypedHandle {
	return h.UntypedHandle
}
