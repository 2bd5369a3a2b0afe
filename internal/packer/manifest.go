package packer

import (
	"fmt"
	"maps"
	"os"
	"path"
	"slices"

	"gopkg.in/yaml.v3"
)

// Manifest lists the files of a content tree. Files are copied as-is,
// TargetFiles are sealed, Directories nest. JSON manifests parse as well.
type Manifest struct {
	Files       []string             `yaml:"files"`
	TargetFiles []string             `yaml:"target_files"`
	Directories map[string]*Manifest `yaml:"directories"`
}

// LoadManifest reads a manifest file.
func LoadManifest(filename string) (*Manifest, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", filename, err)
	}
	return &m, nil
}

// Jobs flattens the manifest into slash-separated relative paths. Nested
// directories are visited in name order.
func (m *Manifest) Jobs() []Job {
	var jobs []Job
	m.collect("", &jobs)
	return jobs
}

func (m *Manifest) collect(dir string, jobs *[]Job) {
	if m == nil {
		return
	}
	for _, f := range m.Files {
		*jobs = append(*jobs, Job{Rel: path.Join(dir, f)})
	}
	for _, f := range m.TargetFiles {
		*jobs = append(*jobs, Job{Rel: path.Join(dir, f), Seal: true})
	}
	for _, name := range slices.Sorted(maps.Keys(m.Directories)) {
		m.Directories[name].collect(path.Join(dir, name), jobs)
	}
}
