package assets

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/Faultbox/railrush/pkg/crypt"
)

var errNoKey = errors.New("no decryption key configured")

// LoadContext is handed to a Loader for one request. It issues dependency
// loads and registers labeled sub-assets on behalf of the asset being built.
type LoadContext struct {
	s   *Server
	e   *entry
	log *zap.Logger

	mu   sync.Mutex
	deps []*entry
}

// Path returns the path being loaded.
func (lc *LoadContext) Path() string {
	return lc.e.path
}

// Logger returns a logger tagged with the path and loader.
func (lc *LoadContext) Logger() *zap.Logger {
	return lc.log
}

// Decrypt opens the asset container with a freshly reconstructed key.
func (lc *LoadContext) Decrypt(data []byte) ([]byte, error) {
	if lc.s.key == nil {
		return nil, &LoadError{Kind: ErrCrypt, Err: errNoKey}
	}
	plain, err := crypt.Open(data, lc.s.key())
	if err != nil {
		return nil, &LoadError{Kind: ErrCrypt, Err: err}
	}
	return plain, nil
}

// DecryptOffloaded runs Decrypt on the server's worker pool.
func (lc *LoadContext) DecryptOffloaded(ctx context.Context, data []byte) ([]byte, error) {
	var plain []byte
	err := lc.s.pool.Do(ctx, func() error {
		var err error
		plain, err = lc.Decrypt(data)
		return err
	})
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			return nil, err
		}
		return nil, &LoadError{Kind: ErrClosed, Err: err}
	}
	return plain, nil
}

func (lc *LoadContext) track(e *entry) {
	lc.mu.Lock()
	lc.deps = append(lc.deps, e)
	lc.mu.Unlock()
}

func (lc *LoadContext) takeDeps() []*entry {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	deps := lc.deps
	lc.deps = nil
	return deps
}

// Dependencies returns the number of dependencies registered so far.
func (lc *LoadContext) Dependencies() int {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return len(lc.deps)
}

// LoadDep requests path as a dependency of the asset being loaded. The
// returned handle is owned by that asset.
func LoadDep[T any](lc *LoadContext, path string) Handle[T] {
	return LoadDepWith[T](lc, path, "")
}

// LoadDepWith is LoadDep with an explicit loader name.
func LoadDepWith[T any](lc *LoadContext, path, loader string) Handle[T] {
	e := lc.s.acquire(path, loader)
	lc.track(e)
	return Handle[T]{UntypedHandle{s: lc.s, e: e}}
}

// AddLabeled registers value as the sub-asset "{path}#{label}". The entry
// is addressable on its own and owned by the asset being loaded.
func AddLabeled[T any](lc *LoadContext, label string, value T) Handle[T] {
	s := lc.s
	full := LabeledPath(lc.e.path, label)

	s.mu.Lock()
	e, ok := s.entries[full]
	switch {
	case ok && e.state == Loading && e.parent == lc.e:
		// Someone asked for the label before the parent finished.
		e.value = value
		e.state = Loaded
		close(e.done)
		s.retainLocked(e)
	case ok && e.state == Loaded:
		lc.log.Warn("labeled asset registered twice", zap.String("label", label))
		e.value = value
		s.retainLocked(e)
	default:
		// A stale entry left by an earlier failed parent stays with its
		// holders; the table gets a fresh one.
		e = &entry{path: full, refs: 1, state: Loaded, value: value, done: make(chan struct{})}
		close(e.done)
		s.entries[full] = e
	}
	s.mu.Unlock()

	lc.track(e)
	return Handle[T]{UntypedHandle{s: s, e: e}}
}
