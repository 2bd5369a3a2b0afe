package assets

// IsLoadedWithDependencies reports whether the entry and everything it
// depends on, transitively, is loaded. It never blocks. Once it returns true
// for an entry it keeps returning true.
func (s *Server) IsLoadedWithDependencies(h UntypedHandle) bool {
	if h.e == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if h.e.ready {
		return true
	}
	if closureLoaded(h.e, make(map[*entry]bool)) {
		h.e.ready = true
		return true
	}
	return false
}

func closureLoaded(e *entry, visited map[*entry]bool) bool {
	if visited[e] {
		return true
	}
	visited[e] = true
	if e.state != Loaded {
		return false
	}
	for _, d := range e.deps {
		if !closureLoaded(d, visited) {
			return false
		}
	}
	return true
}

// FailedDependency returns the first failure found in the entry's
// dependency closure, or nil while everything is loaded or still loading.
func (s *Server) FailedDependency(h UntypedHandle) error {
	if h.e == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return firstFailure(h.e, make(map[*entry]bool))
}

func firstFailure(e *entry, visited map[*entry]bool) error {
	if visited[e] {
		return nil
	}
	visited[e] = true
	if e.state == Failed {
		return e.err
	}
	for _, d := range e.deps {
		if err := firstFailure(d, visited); err != nil {
			return err
		}
	}
	return nil
}

// IsReady is the completion gate for a handle.
func IsReady(h UntypedHandle) bool {
	if h.s == nil {
		return false
	}
	return h.s.IsLoadedWithDependencies(h)
}

// Progress returns the fraction of handles whose dependency closure is
// fully loaded. An empty set counts as complete.
func Progress(handles ...UntypedHandle) float32 {
	if len(handles) == 0 {
		return 1
	}
	done := 0
	for _, h := range handles {
		if IsReady(h) {
			done++
		}
	}
	return float32(done) / float32(len(handles))
}
