package assets

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/Faultbox/railrush/internal/logger"
	"github.com/Faultbox/railrush/pkg/crypt"
)

// LoadState is the lifecycle of one table entry.
type LoadState int

const (
	NotLoaded LoadState = iota
	Loading
	Loaded
	Failed
)

func (s LoadState) String() string {
	switch s {
	case NotLoaded:
		return "NotLoaded"
	case Loading:
		return "Loading"
	case Loaded:
		return "Loaded"
	case Failed:
		return "Failed"
	default:
		return fmt.Sprintf("LoadState(%d)", int(s))
	}
}

// labelSeparator joins a parent path and a sub-asset label.
const labelSeparator = "#"

// LabeledPath returns the table path of a labeled sub-asset.
func LabeledPath(parent, label string) string {
	return parent + labelSeparator + label
}

// SplitLabel splits "parent#label".
func SplitLabel(path string) (parent, label string, ok bool) {
	i := strings.Index(path, labelSeparator)
	if i < 0 {
		return path, "", false
	}
	return path[:i], path[i+1:], true
}

// Extension returns the loader extension of path without the dot, ignoring
// any label.
func Extension(path string) string {
	path, _, _ = SplitLabel(path)
	slash := strings.LastIndexByte(path, '/')
	dot := strings.LastIndexByte(path, '.')
	if dot < 0 || dot < slash {
		return ""
	}
	return path[dot+1:]
}

// entry is one slot of the asset table. All fields are guarded by Server.mu.
type entry struct {
	path  string
	state LoadState
	value any
	err   error
	deps  []*entry // each holds one reference owned by this entry
	refs  int
	ready bool // latched completion gate result
	gone  bool // removed from the table

	done chan struct{}

	// Labeled placeholders requested before their parent finished. Each
	// placeholder holds a reference on the parent until it settles.
	waiting []*entry
	parent  *entry
}

// Loader decodes one asset kind.
type Loader interface {
	// Name identifies the loader for LoadWith.
	Name() string
	// Extensions lists the file extensions handled, without dots.
	Extensions() []string
	// Load converts raw source bytes into the runtime asset.
	Load(ctx context.Context, lc *LoadContext, data []byte) (any, error)
}

// Options configures a Server.
type Options struct {
	Source  Source
	Key     crypt.KeyFunc
	Workers int
	Logger  *zap.Logger
}

// Server owns the asset table.
type Server struct {
	mu      sync.Mutex
	entries map[string]*entry
	byExt   map[string]Loader
	byName  map[string]Loader
	closed  bool

	source Source
	key    crypt.KeyFunc
	pool   *Pool
	log    *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	decodes atomic.Int64
	anon    atomic.Uint64
}

// NewServer creates an asset server reading from opts.Source.
func NewServer(opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = logger.Named("assets")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		entries: make(map[string]*entry),
		byExt:   make(map[string]Loader),
		byName:  make(map[string]Loader),
		source:  opts.Source,
		key:     opts.Key,
		pool:    NewPool(opts.Workers),
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Register adds loaders. A later loader claiming the same extension
// replaces the earlier one for extension lookup.
func (s *Server) Register(loaders ...Loader) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range loaders {
		s.byName[l.Name()] = l
		for _, ext := range l.Extensions() {
			s.byExt[strings.TrimPrefix(ext, ".")] = l
		}
	}
}

// Pool returns the worker pool used for offloaded decrypts.
func (s *Server) Pool() *Pool {
	return s.pool
}

// Logger returns the server logger.
func (s *Server) Logger() *zap.Logger {
	return s.log
}

// Close cancels in-flight reads and waits for loader goroutines to exit.
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
}

// WaitIdle blocks until no loader goroutine is running. It must not race
// with new top-level Load calls.
func (s *Server) WaitIdle() {
	s.wg.Wait()
}

// Stats summarizes the table.
type Stats struct {
	Entries int
	Loading int
	Loaded  int
	Failed  int
	// Decodes counts loader runs that produced an asset.
	Decodes int64
}

// Stats returns a snapshot of the table.
func (s *Server) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Stats{Entries: len(s.entries), Decodes: s.decodes.Load()}
	for _, e := range s.entries {
		switch e.state {
		case Loading:
			st.Loading++
		case Loaded:
			st.Loaded++
		case Failed:
			st.Failed++
		}
	}
	return st
}

func (s *Server) acquire(path, loader string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acquireLocked(path, loader)
}

func (s *Server) acquireLocked(path, loaderName string) *entry {
	if e, ok := s.entries[path]; ok {
		e.refs++
		return e
	}

	e := &entry{path: path, refs: 1, done: make(chan struct{})}
	s.entries[path] = e

	if parentPath, _, ok := SplitLabel(path); ok {
		parent := s.acquireLocked(parentPath, "")
		switch parent.state {
		case Loading:
			e.state = Loading
			e.parent = parent
			parent.waiting = append(parent.waiting, e)
		default:
			// Parent settled without producing this label.
			s.failLocked(e, &LoadError{Path: path, Kind: ErrLabelNotFound, Err: parent.err})
			s.releaseLocked(parent)
		}
		return e
	}

	if s.closed {
		s.failLocked(e, &LoadError{Path: path, Kind: ErrClosed})
		return e
	}

	ld := s.byName[loaderName]
	if loaderName == "" {
		ld = s.byExt[Extension(path)]
	}
	if ld == nil {
		s.failLocked(e, &LoadError{
			Path: path,
			Kind: ErrNoLoader,
			Err:  fmt.Errorf("extension %q, loader %q", Extension(path), loaderName),
		})
		return e
	}

	e.state = Loading
	s.wg.Add(1)
	go s.run(e, ld)
	return e
}

func (s *Server) run(e *entry, ld Loader) {
	defer s.wg.Done()

	log := s.log.With(zap.String("path", e.path), zap.String("loader", ld.Name()))
	log.Info("asset load")

	data, err := s.source.Read(s.ctx, e.path)
	if err != nil {
		s.settleFailed(e, &LoadError{Path: e.path, Kind: ErrIO, Err: err}, nil)
		return
	}

	lc := &LoadContext{s: s, e: e, log: log}
	value, err := ld.Load(s.ctx, lc, data)
	if err != nil {
		s.settleFailed(e, classify(e.path, err), lc)
		return
	}
	s.decodes.Add(1)
	s.settleLoaded(e, value, lc)
}

func (s *Server) settleLoaded(e *entry, value any, lc *LoadContext) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e.value = value
	e.deps = lc.takeDeps()
	e.state = Loaded
	close(e.done)

	if e.gone {
		// Every handle was released while loading.
		s.releaseDepsLocked(e)
		e.value = nil
		return
	}
	s.settleWaitingLocked(e)
}

func (s *Server) settleFailed(e *entry, err *LoadError, lc *LoadContext) {
	s.log.Warn("asset load failed", zap.String("path", e.path), zap.Error(err))

	s.mu.Lock()
	defer s.mu.Unlock()

	if lc != nil {
		for _, d := range lc.takeDeps() {
			s.releaseLocked(d)
		}
	}
	s.failLocked(e, err)
	s.settleWaitingLocked(e)
}

func (s *Server) failLocked(e *entry, err *LoadError) {
	e.err = err
	e.state = Failed
	close(e.done)
}

func (s *Server) settleWaitingLocked(parent *entry) {
	waiting := parent.waiting
	parent.waiting = nil
	for _, p := range waiting {
		p.parent = nil
		if p.state == Loading {
			s.failLocked(p, &LoadError{Path: p.path, Kind: ErrLabelNotFound, Err: parent.err})
		}
		s.releaseLocked(parent)
	}
}

func (s *Server) retainLocked(e *entry) {
	e.refs++
}

func (s *Server) releaseLocked(e *entry) {
	e.refs--
	if e.refs > 0 {
		return
	}
	if s.entries[e.path] == e {
		delete(s.entries, e.path)
	}
	e.gone = true

	if p := e.parent; p != nil {
		e.parent = nil
		for i, w := range p.waiting {
			if w == e {
				p.waiting = append(p.waiting[:i], p.waiting[i+1:]...)
				break
			}
		}
		s.releaseLocked(p)
	}
	if e.state == Loaded || e.state == Failed {
		s.releaseDepsLocked(e)
		e.value = nil
	}
}

func (s *Server) releaseDepsLocked(e *entry) {
	deps := e.deps
	e.deps = nil
	for _, d := range deps {
		s.releaseLocked(d)
	}
}

// Load requests path using the loader registered for its extension.
// Requests for a path already in the table share the existing entry.
func Load[T any](s *Server, path string) Handle[T] {
	return Handle[T]{UntypedHandle{s: s, e: s.acquire(path, "")}}
}

// LoadWith requests path using a loader chosen by name.
func LoadWith[T any](s *Server, path, loader string) Handle[T] {
	return Handle[T]{UntypedHandle{s: s, e: s.acquire(path, loader)}}
}

// Add registers an already built asset under a generated path.
func Add[T any](s *Server, value T) Handle[T] {
	path := fmt.Sprintf("mem://%d", s.anon.Add(1))
	e := &entry{path: path, refs: 1, state: Loaded, value: value, done: make(chan struct{})}
	close(e.done)

	s.mu.Lock()
	s.entries[path] = e
	s.mu.Unlock()
	return Handle[T]{UntypedHandle{s: s, e: e}}
}
