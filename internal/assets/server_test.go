package assets

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Faultbox/railrush/pkg/crypt"
)

var testKey = func() crypt.Key {
	var k crypt.Key
	for i := range k {
		k[i] = byte(i * 7)
	}
	return k
}()

func seal(t *testing.T, plain string) []byte {
	t.Helper()
	out, err := crypt.Seal([]byte(plain), testKey)
	require.NoError(t, err)
	return out
}

// textLoader decrypts a document and returns it as a string.
type textLoader struct{}

func (textLoader) Name() string         { return "text" }
func (textLoader) Extensions() []string { return []string{"txt"} }
func (textLoader) Load(_ context.Context, lc *LoadContext, data []byte) (any, error) {
	plain, err := lc.Decrypt(data)
	if err != nil {
		return nil, err
	}
	switch s := string(plain); s {
	case "undecodable":
		return nil, DecodeError(errors.New("bad document"))
	case "unconvertible":
		return nil, errors.New("cannot convert")
	default:
		return s, nil
	}
}

// bundle lists dependencies ("dep:path") and labeled values ("label:name").
type bundle struct {
	deps   []Handle[string]
	labels []Handle[string]
}

type bundleLoader struct{}

func (bundleLoader) Name() string         { return "bundle" }
func (bundleLoader) Extensions() []string { return []string{".bundle"} }
func (bundleLoader) Load(ctx context.Context, lc *LoadContext, data []byte) (any, error) {
	plain, err := lc.DecryptOffloaded(ctx, data)
	if err != nil {
		return nil, err
	}
	b := &bundle{}
	for _, line := range strings.Split(string(plain), "\n") {
		switch {
		case strings.HasPrefix(line, "dep:"):
			b.deps = append(b.deps, LoadDep[string](lc, strings.TrimPrefix(line, "dep:")))
		case strings.HasPrefix(line, "label:"):
			name := strings.TrimPrefix(line, "label:")
			b.labels = append(b.labels, AddLabeled(lc, name, name+"-value"))
		}
	}
	return b, nil
}

// gatedSource blocks reads of selected paths until their gate is closed.
type gatedSource struct {
	*MemSource
	gates map[string]chan struct{}
}

func (g *gatedSource) Read(ctx context.Context, path string) ([]byte, error) {
	if ch, ok := g.gates[path]; ok {
		select {
		case <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return g.MemSource.Read(ctx, path)
}

func newTestServer(t *testing.T, src Source) *Server {
	t.Helper()
	s := NewServer(Options{
		Source:  src,
		Key:     crypt.Static(testKey),
		Workers: 2,
		Logger:  zaptest.NewLogger(t),
	})
	s.Register(textLoader{}, bundleLoader{})
	t.Cleanup(s.Close)
	return s
}

func TestLoadSharesEntry(t *testing.T) {
	src := NewMemSource(map[string][]byte{"hello.txt": seal(t, "hello")})
	s := newTestServer(t, src)

	var wg sync.WaitGroup
	handles := make([]Handle[string], 16)
	for i := range handles {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handles[i] = Load[string](s, "hello.txt")
		}(i)
	}
	wg.Wait()
	s.WaitIdle()

	for _, h := range handles {
		assert.True(t, h.Same(handles[0].UntypedHandle))
		v, ok := h.Get()
		require.True(t, ok)
		assert.Equal(t, "hello", v)
	}
	assert.Equal(t, int64(1), s.Stats().Decodes)
	assert.Equal(t, 1, src.Reads("hello.txt"))
}

func TestLoadErrorKinds(t *testing.T) {
	tampered := seal(t, "hello")
	tampered[len(tampered)-1] ^= 0xFF

	src := NewMemSource(map[string][]byte{
		"tampered.txt":      tampered,
		"undecodable.txt":   seal(t, "undecodable"),
		"unconvertible.txt": seal(t, "unconvertible"),
		"notes.md":          seal(t, "no loader"),
	})
	s := newTestServer(t, src)

	tests := []struct {
		path  string
		kind  error
		cause error
	}{
		{"missing.txt", ErrIO, ErrNotFound},
		{"tampered.txt", ErrCrypt, crypt.ErrAuth},
		{"undecodable.txt", ErrDecode, nil},
		{"unconvertible.txt", ErrConvert, nil},
		{"notes.md", ErrNoLoader, nil},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			h := Load[string](s, tt.path)
			err := h.Wait(context.Background())
			assert.ErrorIs(t, err, tt.kind)
			if tt.cause != nil {
				assert.ErrorIs(t, err, tt.cause)
			}
			var le *LoadError
			require.ErrorAs(t, err, &le)
			assert.Equal(t, tt.path, le.Path)
			assert.Equal(t, Failed, h.State())
			_, ok := h.Get()
			assert.False(t, ok)
		})
	}
}

func TestLoadWithNamedLoader(t *testing.T) {
	src := NewMemSource(map[string][]byte{"odd.name": seal(t, "routed")})
	s := newTestServer(t, src)

	h := LoadWith[string](s, "odd.name", "text")
	require.NoError(t, h.Wait(context.Background()))
	v, _ := h.Get()
	assert.Equal(t, "routed", v)

	bad := LoadWith[string](s, "odd.name.other", "nope")
	assert.ErrorIs(t, bad.Wait(context.Background()), ErrNoLoader)
}

func TestGateWaitsForDependencies(t *testing.T) {
	release := make(chan struct{})
	src := &gatedSource{
		MemSource: NewMemSource(map[string][]byte{
			"root.bundle": seal(t, "dep:a.txt\ndep:b.txt"),
			"a.txt":       seal(t, "a"),
			"b.txt":       seal(t, "b"),
		}),
		gates: map[string]chan struct{}{"b.txt": release},
	}
	s := newTestServer(t, src)

	root := Load[*bundle](s, "root.bundle")
	require.NoError(t, root.Wait(context.Background()))

	// Root decoded, b still blocked.
	assert.Equal(t, Loaded, root.State())
	assert.False(t, IsReady(root.Untyped()))
	assert.InDelta(t, 0, Progress(root.Untyped()), 1e-6)

	close(release)
	s.WaitIdle()

	assert.True(t, IsReady(root.Untyped()))
	for i := 0; i < 3; i++ {
		assert.True(t, IsReady(root.Untyped()), "gate must stay ready")
	}
	assert.InDelta(t, 1, Progress(root.Untyped()), 1e-6)
}

func TestGateNeverPassesWithFailedDependency(t *testing.T) {
	src := NewMemSource(map[string][]byte{
		"root.bundle": seal(t, "dep:a.txt\ndep:missing.txt"),
		"a.txt":       seal(t, "a"),
	})
	s := newTestServer(t, src)

	root := Load[*bundle](s, "root.bundle")
	s.WaitIdle()

	assert.Equal(t, Loaded, root.State())
	assert.False(t, IsReady(root.Untyped()))
	assert.ErrorIs(t, s.FailedDependency(root.Untyped()), ErrIO)

	// Sibling dependency is unaffected.
	a := Load[string](s, "a.txt")
	defer a.Release()
	assert.True(t, IsReady(a.Untyped()))
}

func TestLabeledAssets(t *testing.T) {
	src := NewMemSource(map[string][]byte{
		"multi.bundle": seal(t, "label:multi.bundle_0\nlabel:multi.bundle_1"),
	})
	s := newTestServer(t, src)

	parent := Load[*bundle](s, "multi.bundle")
	s.WaitIdle()
	require.True(t, IsReady(parent.Untyped()))

	b, ok := parent.Get()
	require.True(t, ok)
	require.Len(t, b.labels, 2)
	assert.Equal(t, "multi.bundle#multi.bundle_1", b.labels[1].Path())

	direct := Load[string](s, "multi.bundle#multi.bundle_1")
	defer direct.Release()
	assert.True(t, direct.Same(b.labels[1].UntypedHandle))
	v, ok := direct.Get()
	require.True(t, ok)
	assert.Equal(t, "multi.bundle_1-value", v)

	missing := Load[string](s, "multi.bundle#multi.bundle_9")
	assert.ErrorIs(t, missing.Wait(context.Background()), ErrLabelNotFound)
}

func TestLabeledRequestBeforeParent(t *testing.T) {
	release := make(chan struct{})
	src := &gatedSource{
		MemSource: NewMemSource(map[string][]byte{
			"late.bundle": seal(t, "label:late.bundle_0"),
		}),
		gates: map[string]chan struct{}{"late.bundle": release},
	}
	s := newTestServer(t, src)

	early := Load[string](s, "late.bundle#late.bundle_0")
	missing := Load[string](s, "late.bundle#nothing")
	assert.Equal(t, Loading, early.State())

	close(release)
	require.NoError(t, early.Wait(context.Background()))
	v, _ := early.Get()
	assert.Equal(t, "late.bundle_0-value", v)
	assert.ErrorIs(t, missing.Wait(context.Background()), ErrLabelNotFound)

	s.WaitIdle()
	early.Release()
	missing.Release()
	assert.Equal(t, 0, s.Stats().Entries, "parent is released once its placeholders settle")
}

func TestLabelHeldAcrossFailedParent(t *testing.T) {
	src := NewMemSource(nil)
	s := newTestServer(t, src)

	stale := Load[string](s, "r.bundle#r.bundle_0")
	defer stale.Release()
	require.ErrorIs(t, stale.Wait(context.Background()), ErrLabelNotFound)
	s.WaitIdle()

	src.Put("r.bundle", seal(t, "label:r.bundle_0"))
	parent := Load[*bundle](s, "r.bundle")
	defer parent.Release()
	s.WaitIdle()

	require.Equal(t, Loaded, parent.State())
	assert.True(t, IsReady(parent.Untyped()), "a stale failed label must not block the reloaded parent")

	b, ok := parent.Get()
	require.True(t, ok)
	require.Len(t, b.labels, 1)
	assert.Equal(t, Loaded, b.labels[0].State())
	assert.False(t, b.labels[0].Same(stale.UntypedHandle))
	assert.Equal(t, Failed, stale.State())

	fresh := Load[string](s, "r.bundle#r.bundle_0")
	defer fresh.Release()
	v, ok := fresh.Get()
	require.True(t, ok)
	assert.Equal(t, "r.bundle_0-value", v)
}

func TestReleaseFreesDependencies(t *testing.T) {
	src := NewMemSource(map[string][]byte{
		"root.bundle": seal(t, "dep:a.txt\nlabel:root.bundle_0"),
		"a.txt":       seal(t, "a"),
	})
	s := newTestServer(t, src)

	root := Load[*bundle](s, "root.bundle")
	s.WaitIdle()
	require.True(t, IsReady(root.Untyped()))
	assert.Equal(t, 3, s.Stats().Entries)

	shared := Load[string](s, "a.txt")
	extra := root.Clone()

	root.Release()
	assert.Equal(t, 3, s.Stats().Entries, "clone keeps the root alive")

	extra.Release()
	assert.Equal(t, 1, s.Stats().Entries, "a.txt still held directly")

	shared.Release()
	assert.Equal(t, 0, s.Stats().Entries)

	// A fresh request decodes again.
	again := Load[string](s, "a.txt")
	defer again.Release()
	require.NoError(t, again.Wait(context.Background()))
	assert.Equal(t, 2, src.Reads("a.txt"))
}

func TestAddAnonymous(t *testing.T) {
	s := newTestServer(t, NewMemSource(nil))

	h := Add(s, []int{1, 2, 3})
	assert.True(t, strings.HasPrefix(h.Path(), "mem://"))
	assert.True(t, IsReady(h.Untyped()))
	v, ok := h.Get()
	require.True(t, ok)
	assert.Equal(t, []int{1, 2, 3}, v)

	other := Add(s, []int{4})
	assert.NotEqual(t, h.Path(), other.Path())

	h.Release()
	other.Release()
	assert.Equal(t, 0, s.Stats().Entries)
}

func TestTypedGetMismatch(t *testing.T) {
	src := NewMemSource(map[string][]byte{"x.txt": seal(t, "x")})
	s := newTestServer(t, src)

	h := Load[int](s, "x.txt")
	require.NoError(t, h.Wait(context.Background()))
	_, ok := h.Get()
	assert.False(t, ok)
}

func TestProgress(t *testing.T) {
	src := NewMemSource(map[string][]byte{
		"a.txt": seal(t, "a"),
		"b.txt": seal(t, "b"),
	})
	s := newTestServer(t, src)

	assert.Equal(t, float32(1), Progress())

	a := Load[string](s, "a.txt")
	b := Load[string](s, "b.txt")
	c := Load[string](s, "c.txt")
	s.WaitIdle()
	assert.InDelta(t, 2.0/3.0, Progress(a.Untyped(), b.Untyped(), c.Untyped()), 1e-6)
}

func TestCloseCancelsReads(t *testing.T) {
	src := &gatedSource{
		MemSource: NewMemSource(map[string][]byte{"stuck.txt": seal(t, "x")}),
		gates:     map[string]chan struct{}{"stuck.txt": make(chan struct{})},
	}
	s := NewServer(Options{Source: src, Key: crypt.Static(testKey), Logger: zaptest.NewLogger(t)})
	s.Register(textLoader{})

	h := Load[string](s, "stuck.txt")
	done := make(chan struct{})
	go func() {
		s.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return")
	}
	assert.ErrorIs(t, h.Err(), ErrIO)
	assert.ErrorIs(t, Load[string](s, "other.txt").Err(), ErrClosed)
}

func TestZeroHandle(t *testing.T) {
	var h Handle[string]
	assert.False(t, h.IsValid())
	assert.False(t, IsReady(h.Untyped()))
	assert.Equal(t, NotLoaded, h.State())
	assert.NoError(t, h.Wait(context.Background()))
	h.Release()
	_, ok := h.Get()
	assert.False(t, ok)
}

func TestPathHelpers(t *testing.T) {
	tests := []struct {
		path string
		ext  string
	}{
		{"Characters/Engineer.mesh", "mesh"},
		{"Characters/Engineer.mesh#Characters/Engineer.mesh_0", "mesh"},
		{"textures/Face.texture", "texture"},
		{"dir.v2/noext", ""},
		{"plain", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.ext, Extension(tt.path), tt.path)
	}

	parent, label, ok := SplitLabel(LabeledPath("a.mesh", "a.mesh_3"))
	assert.True(t, ok)
	assert.Equal(t, "a.mesh", parent)
	assert.Equal(t, "a.mesh_3", label)
}
