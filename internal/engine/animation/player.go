package animation

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/railrush/internal/assets"
	"github.com/Faultbox/railrush/internal/engine/scene"
)

// Target binds an entity to the curves stored under ID in the clip of the
// Player on entity Player.
type Target struct {
	ID     TargetID
	Player scene.Entity
}

// Player plays one clip. It lives on the entity a model was attached to.
type Player struct {
	Clip    assets.Handle[*Clip]
	Elapsed float32
	Speed   float32
	Repeat  bool
	Paused  bool
}

// NewPlayer plays clip from the start at normal speed, looping.
func NewPlayer(clip assets.Handle[*Clip]) Player {
	return Player{Clip: clip, Speed: 1, Repeat: true}
}

func (p Player) Release() { p.Clip.Release() }

// Finished reports whether a non-repeating player reached the end.
func (p *Player) Finished() bool {
	clip, ok := p.Clip.Get()
	return ok && !p.Repeat && p.Elapsed >= clip.Duration
}

func (p *Player) advance(dt float32) {
	clip, ok := p.Clip.Get()
	if !ok || p.Paused {
		return
	}
	p.Elapsed += dt * p.Speed
	if clip.Duration <= 0 {
		p.Elapsed = 0
		return
	}
	switch {
	case p.Repeat:
		p.Elapsed = math32.Mod(p.Elapsed, clip.Duration)
		if p.Elapsed < 0 {
			p.Elapsed += clip.Duration
		}
	case p.Elapsed > clip.Duration:
		p.Elapsed = clip.Duration
	case p.Elapsed < 0:
		p.Elapsed = 0
	}
}

// Advance steps every player by dt seconds and writes the sampled channels
// into the Transform of every target entity. Targets whose player entity
// has no Player, or whose clip has no curves for them, are left alone.
func Advance(w *scene.World, dt float32) {
	for _, e := range scene.Query[Player](w) {
		p, _ := scene.Get[Player](w, e)
		p.advance(dt)
	}

	for _, e := range scene.Query[Target](w) {
		target, _ := scene.Get[Target](w, e)
		p, ok := scene.Get[Player](w, target.Player)
		if !ok {
			continue
		}
		clip, ok := p.Clip.Get()
		if !ok {
			continue
		}
		curves, ok := clip.Curves(target.ID)
		if !ok {
			continue
		}

		tr, ok := scene.Get[scene.Transform](w, e)
		if !ok {
			w.Insert(e, scene.IdentityTransform())
			tr, _ = scene.Get[scene.Transform](w, e)
		}
		if curves.Translation != nil {
			tr.Translation = curves.Translation.Sample(p.Elapsed)
		}
		if curves.Rotation != nil {
			tr.Rotation = curves.Rotation.Sample(p.Elapsed).Normalize()
		}
		if curves.Scale != nil {
			tr.Scale = curves.Scale.Sample(p.Elapsed)
		}
	}
}
