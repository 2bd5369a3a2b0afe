package spawner

import (
	"go.uber.org/zap"

	"github.com/Faultbox/railrush/internal/assets"
	"github.com/Faultbox/railrush/internal/engine/scene"
	"github.com/Faultbox/railrush/internal/loader"
)

// SpawnModel asks the System to spawn Model under the carrying entity once
// it is ready.
type SpawnModel struct {
	Model assets.Handle[*loader.ModelAsset]
}

func (c SpawnModel) Release() { c.Model.Release() }

// Spawned is emitted for each model instantiated by System.Update.
type Spawned struct {
	Attachment scene.Entity
	Root       scene.Entity
	Path       string
}

// System drives SpawnModel requests from the per-tick loop.
type System struct {
	spawner *Spawner
	log     *zap.Logger
}

// NewSystem creates the spawn system.
func NewSystem(sp *Spawner) *System {
	return &System{spawner: sp, log: sp.log}
}

// Update spawns every requested model that passes the readiness gate and
// removes its request. Requests that are not ready are left for a later tick.
func (sys *System) Update(w *scene.World) []Spawned {
	var out []Spawned
	for _, e := range scene.Query[SpawnModel](w) {
		req, _ := scene.Get[SpawnModel](w, e)
		if !IsReady(req.Model) {
			continue
		}
		model, _ := req.Model.Get()

		sys.log.Info("spawning model",
			zap.String("path", req.Model.Path()),
			zap.String("root", model.Root.Name))
		root := sys.spawner.Spawn(w, model, e)
		out = append(out, Spawned{Attachment: e, Root: root, Path: req.Model.Path()})

		if done, ok := scene.Remove[SpawnModel](w, e); ok {
			done.Release()
		}
	}
	return out
}
