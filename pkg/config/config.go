// Package config provides configuration loading and management for surefit.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"surefit/internal/models"
	"surefit/pkg/correction"
	"surefit/pkg/segmentation"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// NumCores specifies how many CPU cores to use for parallel processing
		NumCores int `yaml:"numCores"`

		// MemoryLimitMB bounds the intermediate grids of one run (0 = unlimited)
		MemoryLimitMB int `yaml:"memoryLimitMB"`
	} `yaml:"processing"`

	// Segmentation stages and anatomy parameters
	Segmentation struct {
		// Structure is "left", "right" or "both"
		Structure string `yaml:"structure"`

		// GrayPeak and WhitePeak are estimated from the histogram when both are 0
		GrayPeak  float64 `yaml:"grayPeak"`
		WhitePeak float64 `yaml:"whitePeak"`

		MidThreshOverride float64 `yaml:"midThreshOverride"`

		// ACIndex overrides the AC voxel computed from the volume geometry
		ACIndex   []int `yaml:"acIndex,omitempty"`
		RequireAC bool  `yaml:"requireAC"`

		DisconnectEye          bool `yaml:"disconnectEye"`
		DisconnectHindbrain    bool `yaml:"disconnectHindbrain"`
		HindbrainHighThreshold bool `yaml:"hindbrainHighThreshold"`
		CutCorpusCallosum      bool `yaml:"cutCorpusCallosum"`
		GenerateInnerBoundary  bool `yaml:"generateInnerBoundary"`
		GenerateOuterBoundary  bool `yaml:"generateOuterBoundary"`
		GenerateSegmentation   bool `yaml:"generateSegmentation"`
		FillVentricles         bool `yaml:"fillVentricles"`

		// VentricleSeed is flooded instead of searching the ventricles
		VentricleSeed []int `yaml:"ventricleSeed,omitempty"`

		// ErrorCorrection is one of none, graph, surefit, surefit-then-graph,
		// graph-then-surefit
		ErrorCorrection string `yaml:"errorCorrection"`

		WhiteMatterMaximum float64 `yaml:"whiteMatterMaximum"`
	} `yaml:"segmentation"`

	// Padding of the faces a partial hemisphere was cut along, in voxels
	Padding struct {
		NegX int `yaml:"negX"`
		PosX int `yaml:"posX"`
		NegY int `yaml:"negY"`
		PosY int `yaml:"posY"`
		NegZ int `yaml:"negZ"`
		PosZ int `yaml:"posZ"`

		CutNegX bool `yaml:"cutNegX"`
		CutPosX bool `yaml:"cutPosX"`
		CutNegY bool `yaml:"cutNegY"`
		CutPosY bool `yaml:"cutPosY"`
		CutNegZ bool `yaml:"cutNegZ"`
		CutPosZ bool `yaml:"cutPosZ"`

		Erode bool `yaml:"erode"`
	} `yaml:"padding"`

	// Surface reconstruction parameters
	Surface struct {
		Generate bool `yaml:"generate"`

		// MaximumPolygons caps the triangle count (0 = full resolution)
		MaximumPolygons int `yaml:"maximumPolygons"`

		// ReducedPolygonFraction keeps this fraction of the triangles when
		// MaximumPolygons is 0
		ReducedPolygonFraction float64 `yaml:"reducedPolygonFraction"`

		TopologicallyCorrect bool `yaml:"topologicallyCorrect"`
		SmoothingIterations  int  `yaml:"smoothingIterations"`
		Inflate              bool `yaml:"inflate"`
		InflateIterations    int  `yaml:"inflateIterations"`
	} `yaml:"surface"`

	// Correction tunes the topology correctors
	Correction struct {
		SureFitMaxRadius int `yaml:"sureFitMaxRadius"`
		MaxIterations    int `yaml:"maxIterations"`
	} `yaml:"correction"`

	// Output parameters
	Output struct {
		// Directory receives every product of the run
		Directory string `yaml:"directory"`

		// SaveIntermediaryResults determines whether to save intermediary processing results
		SaveIntermediaryResults bool `yaml:"saveIntermediaryResults"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`

		// ExtractSlices saves PNG slices of the final segmentation along all axes
		ExtractSlices bool `yaml:"extractSlices"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default processing parameters
	cfg.Processing.NumCores = runtime.NumCPU() // Use all available cores by default

	// Run every stage on an anatomy volume
	cfg.Segmentation.Structure = "right"
	cfg.Segmentation.DisconnectEye = true
	cfg.Segmentation.DisconnectHindbrain = true
	cfg.Segmentation.CutCorpusCallosum = true
	cfg.Segmentation.GenerateInnerBoundary = true
	cfg.Segmentation.GenerateOuterBoundary = true
	cfg.Segmentation.GenerateSegmentation = true
	cfg.Segmentation.FillVentricles = true
	cfg.Segmentation.ErrorCorrection = correction.None.String()

	cfg.Surface.Generate = true
	cfg.Surface.SmoothingIterations = 2
	cfg.Surface.InflateIterations = 100

	opts := correction.DefaultOptions()
	cfg.Correction.SureFitMaxRadius = opts.MaxRadius
	cfg.Correction.MaxIterations = opts.MaxIterations

	// Set default output parameters
	cfg.Output.Directory = "surefit_output"
	cfg.Output.SaveIntermediaryResults = false
	cfg.Output.Verbose = true

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}

func voxel(name string, v []int) (*[3]int, error) {
	if len(v) == 0 {
		return nil, nil
	}
	if len(v) != 3 {
		return nil, fmt.Errorf("%s needs 3 indices, got %v", name, v)
	}
	return &[3]int{v[0], v[1], v[2]}, nil
}

// PaddingSpec converts the padding section into a PaddingSpec
func (cfg *Config) PaddingSpec() models.PaddingSpec {
	pd := cfg.Padding
	return models.PaddingSpec{
		Amount: [6]int{pd.NegX, pd.PosX, pd.NegY, pd.PosY, pd.NegZ, pd.PosZ},
		Cut:    [6]bool{pd.CutNegX, pd.CutPosX, pd.CutNegY, pd.CutPosY, pd.CutNegZ, pd.CutPosZ},
		Erode:  pd.Erode,
	}
}

// Params converts the configuration into pipeline parameters. The volumes
// and the log writer are left for the caller to set.
func (cfg *Config) Params() (*segmentation.Params, error) {
	sc := cfg.Segmentation
	structure, err := models.ParseStructure(sc.Structure)
	if err != nil {
		return nil, err
	}
	method, err := correction.ParseMethod(sc.ErrorCorrection)
	if err != nil {
		return nil, err
	}
	ac, err := voxel("acIndex", sc.ACIndex)
	if err != nil {
		return nil, err
	}
	seed, err := voxel("ventricleSeed", sc.VentricleSeed)
	if err != nil {
		return nil, err
	}

	p := segmentation.DefaultParams()
	p.Structure = structure
	p.Peaks = models.PeakIntensities{Gray: sc.GrayPeak, White: sc.WhitePeak}
	p.MidThreshOverride = sc.MidThreshOverride
	p.ACIndex = ac
	p.RequireAC = sc.RequireAC
	p.DisconnectEye = sc.DisconnectEye
	p.DisconnectHindbrain = sc.DisconnectHindbrain
	p.HindbrainHighThreshold = sc.HindbrainHighThreshold
	p.CutCorpusCallosum = sc.CutCorpusCallosum
	p.GenerateInnerBoundary = sc.GenerateInnerBoundary
	p.GenerateOuterBoundary = sc.GenerateOuterBoundary
	p.GenerateSegmentation = sc.GenerateSegmentation
	p.FillVentricles = sc.FillVentricles
	p.VentricleSeed = seed
	p.WhiteMatterMaximum = sc.WhiteMatterMaximum
	p.ErrorCorrection = method
	p.Correction.MaxRadius = cfg.Correction.SureFitMaxRadius
	p.Correction.MaxIterations = cfg.Correction.MaxIterations
	p.Padding = cfg.PaddingSpec()

	p.GenerateSurfaces = cfg.Surface.Generate
	p.MaximumPolygons = cfg.Surface.MaximumPolygons
	p.ReducedPolygonFraction = cfg.Surface.ReducedPolygonFraction
	p.TopologicallyCorrect = cfg.Surface.TopologicallyCorrect
	p.FiducialSmoothing = cfg.Surface.SmoothingIterations
	p.GenerateInflated = cfg.Surface.Inflate
	p.InflateIterations = cfg.Surface.InflateIterations

	p.NumCores = cfg.Processing.NumCores
	p.MemoryLimit = int64(cfg.Processing.MemoryLimitMB) << 20
	p.SaveIntermediaryResults = cfg.Output.SaveIntermediaryResults
	if p.SaveIntermediaryResults {
		p.IntermediaryDir = filepath.Join(cfg.Output.Directory, "intermediary_results")
	}
	return p, nil
}
