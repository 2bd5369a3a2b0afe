package packer

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Faultbox/railrush/pkg/pak"
)

// BuildPak bundles every file under dir into a .pak at out. Entries are
// stored compressed only where that saves space; sealed payloads rarely do.
func BuildPak(dir, out string) (int, error) {
	jobs, err := ScanTree(dir)
	if err != nil {
		return 0, fmt.Errorf("scanning %s: %w", dir, err)
	}

	f, err := os.Create(out)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	w, err := pak.NewWriter(f)
	if err != nil {
		return 0, err
	}
	for _, job := range jobs {
		data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(job.Rel)))
		if err != nil {
			return 0, err
		}
		if err := w.Add(job.Rel, data, true); err != nil {
			return 0, err
		}
	}
	if err := w.Close(); err != nil {
		return 0, err
	}
	return len(jobs), f.Close()
}
