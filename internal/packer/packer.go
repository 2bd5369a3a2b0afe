// Package packer builds runtime content from a source tree: asset
// documents are sealed with the content key, everything else is copied.
package packer

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/railrush/internal/logger"
	"github.com/Faultbox/railrush/pkg/crypt"
)

// SealedExtensions are the asset kinds the runtime decrypts.
var SealedExtensions = []string{".mesh", ".material", ".hierarchy", ".anim", ".texture", ".atlas"}

// ShouldSeal reports whether name has a sealed extension.
func ShouldSeal(name string) bool {
	return slices.Contains(SealedExtensions, strings.ToLower(path.Ext(name)))
}

// Job is one file of a build, relative to the source root.
type Job struct {
	Rel  string
	Seal bool
}

// Options configures a build.
type Options struct {
	Key     crypt.Key
	Workers int         // 0 uses GOMAXPROCS
	Rand    io.Reader   // nonce source, crypto/rand when nil
	Log     *zap.Logger // logger.Named("packer") when nil
}

func (o Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.GOMAXPROCS(0)
}

func (o Options) log() *zap.Logger {
	if o.Log != nil {
		return o.Log
	}
	return logger.Named("packer")
}

func (o Options) rand() io.Reader {
	if o.Rand != nil {
		return o.Rand
	}
	return rand.Reader
}

// Result summarizes a build.
type Result struct {
	Sealed int
	Copied int
	Bytes  int64
}

// ScanTree lists every regular file under root, sealing those with a
// sealed extension. Paths are slash-separated and sorted.
func ScanTree(root string) ([]Job, error) {
	var jobs []Job
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		jobs = append(jobs, Job{Rel: rel, Seal: ShouldSeal(rel)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(jobs, func(a, b Job) int { return strings.Compare(a.Rel, b.Rel) })
	return jobs, nil
}

// EncryptTree builds every file under src into dst.
func EncryptTree(ctx context.Context, src, dst string, opts Options) (Result, error) {
	jobs, err := ScanTree(src)
	if err != nil {
		return Result{}, fmt.Errorf("scanning %s: %w", src, err)
	}
	return Build(ctx, src, dst, jobs, opts)
}

// Build runs jobs concurrently. The first failure cancels the rest and is
// returned; files already written stay in place.
func Build(ctx context.Context, src, dst string, jobs []Job, opts Options) (Result, error) {
	log := opts.log()
	var sealed, copied atomic.Int32
	var written atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.workers())
	for _, job := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			n, err := buildOne(src, dst, job, opts)
			if err != nil {
				return err
			}
			written.Add(int64(n))
			if job.Seal {
				sealed.Add(1)
			} else {
				copied.Add(1)
			}
			log.Debug("built", zap.String("file", job.Rel), zap.Bool("sealed", job.Seal))
			return nil
		})
	}
	err := g.Wait()

	res := Result{Sealed: int(sealed.Load()), Copied: int(copied.Load()), Bytes: written.Load()}
	if err != nil {
		return res, err
	}
	log.Info("build complete",
		zap.String("src", src),
		zap.String("dst", dst),
		zap.Int("sealed", res.Sealed),
		zap.Int("copied", res.Copied))
	return res, nil
}

func buildOne(src, dst string, job Job, opts Options) (int, error) {
	from := filepath.Join(src, filepath.FromSlash(job.Rel))
	to := filepath.Join(dst, filepath.FromSlash(job.Rel))

	data, err := os.ReadFile(from)
	if err != nil {
		return 0, fmt.Errorf("could not find asset file %s: %w", job.Rel, err)
	}
	if job.Seal {
		data, err = crypt.SealWithReader(opts.rand(), data, opts.Key)
		if err != nil {
			return 0, fmt.Errorf("sealing %s: %w", job.Rel, err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(to), 0755); err != nil {
		return 0, err
	}
	if err := os.WriteFile(to, data, 0644); err != nil {
		return 0, err
	}
	return len(data), nil
}
