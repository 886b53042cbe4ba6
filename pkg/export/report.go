package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"surefit/pkg/correction"
	"surefit/pkg/surface"
	"surefit/pkg/volume"
)

// SurfaceReport describes one reconstructed mesh
type SurfaceReport struct {
	Name   string              `yaml:"name"`
	Counts surface.EulerCounts `yaml:"counts"`
}

// Report is the structured summary of a segmentation run, written for the
// user to decide whether manual correction is still required
type Report struct {
	Created      time.Time             `yaml:"created"`
	Structure    string                `yaml:"structure"`
	Segmentation volume.TopologyCounts `yaml:"segmentation"`
	Correction   *correction.Report    `yaml:"correction,omitempty"`
	Surfaces     []SurfaceReport       `yaml:"surfaces,omitempty"`
	Warnings     []string              `yaml:"warnings,omitempty"`
	Stages       []string              `yaml:"stages"`
}

// Defects reports whether the segmentation still carries handles, islands
// or cavities
func (r *Report) Defects() bool {
	return !r.Segmentation.Correct()
}

// WriteReport marshals the report to YAML
func WriteReport(path string, r *Report) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report %s: %w", path, err)
	}
	return nil
}

// ReadReport loads a report written by WriteReport
func ReadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report %s: %w", path, err)
	}
	r := &Report{}
	if err := yaml.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("failed to parse report %s: %w", path, err)
	}
	return r, nil
}
