package states

import (
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/railrush/internal/engine/animation"
	"github.com/Faultbox/railrush/internal/engine/scene"
	"github.com/Faultbox/railrush/internal/spawner"
)

// ViewStateConfig contains configuration for the view state.
type ViewStateConfig struct {
	RunFor time.Duration // keep animating this long after the spawn
	Dump   bool          // render the entity tree
}

// ViewState spawns the ready model and plays its animation.
type ViewState struct {
	config     ViewStateConfig
	world      *scene.World
	system     *spawner.System
	attachment scene.Entity
	log        *zap.Logger

	Spawned []spawner.Spawned
	Frames  int

	elapsed time.Duration
}

// NewViewState creates a view state for the model requested on attachment.
func NewViewState(cfg ViewStateConfig, world *scene.World, system *spawner.System, attachment scene.Entity, log *zap.Logger) *ViewState {
	return &ViewState{
		config:     cfg,
		world:      world,
		system:     system,
		attachment: attachment,
		log:        log,
	}
}

// Enter is called when entering this state.
func (s *ViewState) Enter() error {
	s.log.Info("entering ViewState", zap.Uint32("attachment", uint32(s.attachment)))
	return nil
}

// Exit despawns everything spawned for the attachment, releasing the
// handles held by its components.
func (s *ViewState) Exit() error {
	if s.world.Alive(s.attachment) {
		s.world.Despawn(s.attachment)
	}
	return nil
}

// Update runs the spawn system and advances animation. It returns ErrDone
// once the model has been spawned and RunFor has elapsed.
func (s *ViewState) Update(dt float64) error {
	for _, sp := range s.system.Update(s.world) {
		s.Spawned = append(s.Spawned, sp)
		s.log.Info("model spawned",
			zap.String("path", sp.Path),
			zap.Uint32("root", uint32(sp.Root)),
			zap.Int("entities", s.world.Count()))
	}

	animation.Advance(s.world, float32(dt))
	s.Frames++

	if len(s.Spawned) == 0 {
		return nil
	}
	s.elapsed += time.Duration(dt * float64(time.Second))
	if s.elapsed >= s.config.RunFor {
		return ErrDone
	}
	return nil
}

// Render dumps the spawned tree when enabled.
func (s *ViewState) Render(w io.Writer) error {
	if !s.config.Dump || len(s.Spawned) == 0 {
		return nil
	}
	return DumpTree(w, s.world, s.attachment)
}
