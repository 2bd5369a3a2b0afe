package states

import (
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/charmbracelet/harmonica"
	"go.uber.org/zap"

	"github.com/Faultbox/railrush/internal/assets"
	"github.com/Faultbox/railrush/internal/engine/animation"
	"github.com/Faultbox/railrush/internal/engine/scene"
	"github.com/Faultbox/railrush/internal/loader"
	"github.com/Faultbox/railrush/internal/spawner"
)

// ErrLoadFailed is returned by LoadingState.Update once every attempt to
// load the model has failed or timed out.
var ErrLoadFailed = errors.New("model failed to load")

// LoadingStateConfig contains configuration for the loading state.
type LoadingStateConfig struct {
	Model      string        // .hierarchy path
	Animation  string        // optional .anim path
	Timeout    time.Duration // per attempt, zero waits forever
	MaxRetries int
	TickRate   int // drives the progress spring
	View       ViewStateConfig
}

// LoadingState requests the model and waits for its dependency closure.
type LoadingState struct {
	config  LoadingStateConfig
	server  *assets.Server
	world   *scene.World
	spawner *spawner.Spawner
	manager *Manager
	log     *zap.Logger

	StatusMsg    string
	ErrorMsg     string
	Progress     float32 // smoothed, 0.0 to 1.0
	LoadingPhase string
	Attempts     int
	IsComplete   bool

	model assets.Handle[*loader.ModelAsset]
	clip  assets.Handle[*animation.Clip]

	elapsed     time.Duration
	spring      harmonica.Spring
	progressPos float64
	progressVel float64
}

// NewLoadingState creates a new loading state.
func NewLoadingState(cfg LoadingStateConfig, server *assets.Server, world *scene.World, sp *spawner.Spawner, manager *Manager) *LoadingState {
	fps := cfg.TickRate
	if fps <= 0 {
		fps = 60
	}
	return &LoadingState{
		config:       cfg,
		server:       server,
		world:        world,
		spawner:      sp,
		manager:      manager,
		log:          server.Logger().Named("loading"),
		StatusMsg:    "Loading model...",
		LoadingPhase: "init",
		spring:       harmonica.NewSpring(harmonica.FPS(fps), 6.0, 1.0),
	}
}

// Enter issues the first load request.
func (s *LoadingState) Enter() error {
	if s.config.Model == "" {
		s.ErrorMsg = "No model configured"
		return fmt.Errorf("%w: no model path", ErrLoadFailed)
	}
	s.ErrorMsg = ""
	s.Progress = 0
	s.IsComplete = false

	s.log.Info("entering LoadingState",
		zap.String("model", s.config.Model),
		zap.String("animation", s.config.Animation))
	s.request()
	return nil
}

// Exit releases requests that were not handed over to the world.
func (s *LoadingState) Exit() error {
	s.releaseRequests()
	return nil
}

// Update polls the readiness gate. A request that times out or reports a
// failed dependency is released and issued again up to MaxRetries times.
func (s *LoadingState) Update(dt float64) error {
	if s.IsComplete {
		return nil
	}
	s.elapsed += time.Duration(dt * float64(time.Second))

	raw := assets.Progress(s.handles()...)
	s.progressPos, s.progressVel = s.spring.Update(s.progressPos, s.progressVel, float64(raw))
	s.Progress = float32(min(max(s.progressPos, 0), 1))

	if s.ready() {
		s.complete()
		return nil
	}

	cause := s.failure()
	if cause == nil {
		if s.config.Timeout <= 0 || s.elapsed < s.config.Timeout {
			return nil
		}
		cause = fmt.Errorf("timed out after %v", s.config.Timeout)
	}

	if s.Attempts <= s.config.MaxRetries {
		s.log.Warn("model load attempt failed, retrying",
			zap.String("model", s.config.Model),
			zap.Int("attempt", s.Attempts),
			zap.Error(cause))
		s.releaseRequests()
		s.request()
		return nil
	}

	s.LoadingPhase = "failed"
	s.ErrorMsg = fmt.Sprintf("Failed to load %s: %v", s.config.Model, cause)
	s.log.Error("model load failed",
		zap.String("model", s.config.Model),
		zap.Int("attempts", s.Attempts),
		zap.Error(cause))
	return fmt.Errorf("%w: %s after %d attempts: %w", ErrLoadFailed, s.config.Model, s.Attempts, cause)
}

// Render writes a one-line progress bar.
func (s *LoadingState) Render(w io.Writer) error {
	const width = 20
	filled := int(s.Progress * width)
	bar := strings.Repeat("#", filled) + strings.Repeat(".", width-filled)
	line := fmt.Sprintf("[%s] %3.0f%% %s", bar, s.Progress*100, s.StatusMsg)
	if s.ErrorMsg != "" {
		line += " - " + s.ErrorMsg
	}
	_, err := fmt.Fprintln(w, line)
	return err
}

func (s *LoadingState) request() {
	s.Attempts++
	s.elapsed = 0
	s.model = assets.Load[*loader.ModelAsset](s.server, s.config.Model)
	if s.config.Animation != "" {
		s.clip = assets.Load[*animation.Clip](s.server, s.config.Animation)
	}
	s.StatusMsg = fmt.Sprintf("Loading %s (attempt %d)", s.config.Model, s.Attempts)
	s.LoadingPhase = "loading"
}

func (s *LoadingState) releaseRequests() {
	s.model.Release()
	s.clip.Release()
	s.model = assets.Handle[*loader.ModelAsset]{}
	s.clip = assets.Handle[*animation.Clip]{}
}

func (s *LoadingState) handles() []assets.UntypedHandle {
	hs := []assets.UntypedHandle{s.model.Untyped()}
	if s.clip.Untyped().IsValid() {
		hs = append(hs, s.clip.Untyped())
	}
	return hs
}

func (s *LoadingState) ready() bool {
	if !spawner.IsReady(s.model) {
		return false
	}
	return !s.clip.Untyped().IsValid() || assets.IsReady(s.clip.Untyped())
}

func (s *LoadingState) failure() error {
	for _, h := range s.handles() {
		if err := s.server.FailedDependency(h); err != nil {
			return err
		}
	}
	return nil
}

// complete hands the requests to a new attachment entity and switches to
// the view state.
func (s *LoadingState) complete() {
	s.Progress = 1
	s.IsComplete = true
	s.LoadingPhase = "spawning"
	s.StatusMsg = "Spawning " + s.config.Model

	name := strings.TrimSuffix(path.Base(s.config.Model), path.Ext(s.config.Model))
	attachment := s.world.Spawn(
		scene.Name(name),
		scene.IdentityTransform(),
		scene.Inherited,
		spawner.SpawnModel{Model: s.model},
	)
	if s.clip.Untyped().IsValid() {
		s.world.Insert(attachment, animation.NewPlayer(s.clip))
	}
	s.model = assets.Handle[*loader.ModelAsset]{}
	s.clip = assets.Handle[*animation.Clip]{}

	s.log.Info("model ready",
		zap.String("model", s.config.Model),
		zap.Int("attempts", s.Attempts),
		zap.Uint32("attachment", uint32(attachment)))

	s.manager.Change(NewViewState(s.config.View, s.world, spawner.NewSystem(s.spawner), attachment, s.log.Named("view")))
}
