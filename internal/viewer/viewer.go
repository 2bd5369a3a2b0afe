// Package viewer implements the headless viewer loop: load a model,
// wait for its dependencies, spawn it and optionally animate it.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/railrush/internal/assets"
	"github.com/Faultbox/railrush/internal/config"
	"github.com/Faultbox/railrush/internal/engine/scene"
	"github.com/Faultbox/railrush/internal/loader"
	"github.com/Faultbox/railrush/internal/logger"
	"github.com/Faultbox/railrush/internal/spawner"
	"github.com/Faultbox/railrush/internal/states"
	"github.com/Faultbox/railrush/pkg/crypt"
)

// Options overrides the source and key derived from the config.
type Options struct {
	Source assets.Source
	Key    crypt.KeyFunc
	Out    io.Writer // tree dumps and progress, os.Stdout when nil
}

// Viewer is the main viewer instance.
type Viewer struct {
	config  *config.Config
	log     *zap.Logger
	out     io.Writer
	closers []io.Closer
	server  *assets.Server
	world   *scene.World
	states  *states.Manager
}

// New creates a viewer for cfg.
func New(cfg *config.Config, opts Options) (*Viewer, error) {
	v := &Viewer{
		config: cfg,
		log:    logger.Named("viewer"),
		out:    opts.Out,
		world:  scene.NewWorld(),
		states: states.NewManager(),
	}
	if v.out == nil {
		v.out = os.Stdout
	}

	// Source and key come from the config unless overridden
	src := opts.Source
	if src == nil {
		var err error
		if src, err = v.openSource(); err != nil {
			return nil, err
		}
	}
	key := opts.Key
	if key == nil {
		var err error
		if key, err = loadKey(cfg.Assets); err != nil {
			v.Close()
			return nil, err
		}
	}

	v.server = assets.NewServer(assets.Options{
		Source:  src,
		Key:     key,
		Workers: cfg.Assets.Workers,
		Logger:  logger.Named("assets"),
	})
	loader.Register(v.server)

	sp := spawner.New(v.server, logger.Named("spawner"))
	v.states.Change(states.NewLoadingState(states.LoadingStateConfig{
		Model:      cfg.Viewer.Model,
		Animation:  cfg.Viewer.Animation,
		Timeout:    cfg.Viewer.LoadTimeout,
		MaxRetries: cfg.Viewer.MaxRetries,
		TickRate:   cfg.Viewer.TickRate,
		View: states.ViewStateConfig{
			RunFor: cfg.Viewer.RunFor,
			Dump:   cfg.Viewer.Dump,
		},
	}, v.server, v.world, sp, v.states))

	v.log.Info("viewer initialized",
		zap.String("model", cfg.Viewer.Model),
		zap.Int("workers", cfg.Assets.Workers),
		zap.Int("tick_rate", cfg.Viewer.TickRate))
	return v, nil
}

func (v *Viewer) openSource() (assets.Source, error) {
	archives := v.config.Assets.Archives
	if len(archives) == 0 {
		v.log.Info("serving assets from directory", zap.String("root", v.config.Assets.Root))
		return assets.DirSource{Root: v.config.Assets.Root}, nil
	}
	src := assets.NewArchiveSource()
	v.closers = append(v.closers, src)
	for _, path := range archives {
		if err := src.AddArchive(path); err != nil {
			v.Close()
			return nil, fmt.Errorf("failed to open archive %s: %w", path, err)
		}
	}
	v.log.Info("serving assets from archives", zap.Strings("archives", archives))
	return src, nil
}

func loadKey(cfg config.AssetsConfig) (crypt.KeyFunc, error) {
	if cfg.KeyFile == "" {
		return nil, errors.New("no content key configured (assets.key_file and assets.mask_file)")
	}
	mk, err := crypt.LoadMaskedKey(cfg.KeyFile, cfg.MaskFile)
	if err != nil {
		return nil, err
	}
	return mk.Reconstruct, nil
}

// Run ticks the state machine at the configured rate until the view
// state finishes, loading fails or ctx is cancelled.
func (v *Viewer) Run(ctx context.Context) error {
	ticker := time.NewTicker(v.config.Viewer.TickInterval())
	defer ticker.Stop()

	lastTime := time.Now()
	frameCount := 0
	statusTimer := time.Now()

	v.log.Info("starting viewer loop")
	for {
		select {
		case <-ctx.Done():
			v.log.Info("viewer cancelled")
			return ctx.Err()
		case now := <-ticker.C:
			dt := now.Sub(lastTime).Seconds()
			lastTime = now

			err := v.states.Update(dt)
			if errors.Is(err, states.ErrDone) {
				v.log.Info("viewer finished", zap.Int("frames", frameCount))
				return v.states.Render(v.out)
			}
			if err != nil {
				_ = v.states.Render(v.out)
				return fmt.Errorf("update error: %w", err)
			}

			frameCount++

			// Periodic status
			if time.Since(statusTimer) >= time.Second {
				st := v.server.Stats()
				v.log.Debug("status",
					zap.Int("frames", frameCount),
					zap.Int("entries", st.Entries),
					zap.Int("loading", st.Loading),
					zap.Int("failed", st.Failed))
				if _, loading := v.states.Current().(*states.LoadingState); loading {
					_ = v.states.Render(v.out)
				}
				statusTimer = time.Now()
			}
		}
	}
}

// World returns the scene the viewer spawns into.
func (v *Viewer) World() *scene.World {
	return v.world
}

// Close cleans up viewer resources.
func (v *Viewer) Close() {
	v.log.Info("closing viewer")
	if err := v.states.Close(); err != nil {
		v.log.Warn("state exit failed", zap.Error(err))
	}
	if v.server != nil {
		v.server.Close()
	}
	for _, c := range v.closers {
		if err := c.Close(); err != nil {
			v.log.Warn("close failed", zap.Error(err))
		}
	}
}
