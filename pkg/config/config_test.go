package config

import (
	"os"
	"path/filepath"
	"testing"

	"surefit/internal/models"
	"surefit/pkg/correction"
)

func TestLoadMissingConfig(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if !cfg.Segmentation.GenerateSegmentation || cfg.Segmentation.Structure != "right" {
		t.Errorf("Expected default configuration, got %+v", cfg.Segmentation)
	}
}

func TestSaveAndLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Segmentation.Structure = "left"
	cfg.Segmentation.ErrorCorrection = "surefit-then-graph"
	cfg.Padding.PosZ = 4
	cfg.Padding.CutPosZ = true
	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if loaded.Segmentation.Structure != "left" {
		t.Errorf("Expected structure left, got %s", loaded.Segmentation.Structure)
	}
	if loaded.Padding.PosZ != 4 || !loaded.Padding.CutPosZ {
		t.Errorf("Expected padding 4 on cut posZ, got %+v", loaded.Padding)
	}
}

func TestParams(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
processing:
  numCores: 2
  memoryLimitMB: 64
segmentation:
  structure: left
  grayPeak: 110
  whitePeak: 190
  acIndex: [10, 20, 30]
  errorCorrection: graph
  fillVentricles: false
padding:
  negZ: 3
  cutNegZ: true
surface:
  maximumPolygons: 5000
output:
  directory: out
  saveIntermediaryResults: true
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	p, err := cfg.Params()
	if err != nil {
		t.Fatalf("Failed to convert config: %v", err)
	}

	if p.Structure != models.StructureLeft {
		t.Errorf("Expected left structure, got %s", p.Structure)
	}
	if p.Peaks.Gray != 110 || p.Peaks.White != 190 {
		t.Errorf("Expected peaks 110/190, got %+v", p.Peaks)
	}
	if p.ACIndex == nil || *p.ACIndex != [3]int{10, 20, 30} {
		t.Errorf("Expected AC index [10 20 30], got %v", p.ACIndex)
	}
	if p.ErrorCorrection != correction.Graph {
		t.Errorf("Expected graph correction, got %s", p.ErrorCorrection)
	}
	if p.FillVentricles {
		t.Error("Expected ventricle fill to be off")
	}
	if !p.GenerateSegmentation {
		t.Error("Expected unset flags to keep their defaults")
	}
	if p.Padding.Effective(models.FaceNegZ) != 3 || p.Padding.Effective(models.FacePosZ) != 0 {
		t.Errorf("Expected padding 3 on negZ only, got %+v", p.Padding)
	}
	if p.MaximumPolygons != 5000 || p.NumCores != 2 {
		t.Errorf("Expected 5000 polygons on 2 cores, got %d on %d", p.MaximumPolygons, p.NumCores)
	}
	if p.MemoryLimit != 64<<20 {
		t.Errorf("Expected a 64MB memory limit, got %d", p.MemoryLimit)
	}
	if p.IntermediaryDir != filepath.Join("out", "intermediary_results") {
		t.Errorf("Expected intermediary results below out, got %s", p.IntermediaryDir)
	}
}

func TestParamsErrors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(cfg *Config)
	}{
		{"unknown structure", func(cfg *Config) { cfg.Segmentation.Structure = "cerebellum" }},
		{"unknown method", func(cfg *Config) { cfg.Segmentation.ErrorCorrection = "magic" }},
		{"short AC index", func(cfg *Config) { cfg.Segmentation.ACIndex = []int{1, 2} }},
		{"long ventricle seed", func(cfg *Config) { cfg.Segmentation.VentricleSeed = []int{1, 2, 3, 4} }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.modify(cfg)
			if _, err := cfg.Params(); err == nil {
				t.Error("Expected an error")
			}
		})
	}
}
