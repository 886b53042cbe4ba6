package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/carbocation/pfx"

	"surefit/pkg/config"
	"surefit/pkg/export"
	"surefit/pkg/segmentation"
	"surefit/pkg/stl"
	"surefit/pkg/surface"
	"surefit/pkg/visualization"
	"surefit/pkg/volume"
)

// parseVoxel reads "i,j,k"
func parseVoxel(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return nil, fmt.Errorf("expected i,j,k, got %q", s)
	}
	out := make([]int, 3)
	for a, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("expected i,j,k, got %q: %w", s, err)
		}
		out[a] = v
	}
	return out, nil
}

func main() {
	// Parse command line arguments
	anatomyFile := flag.String("anatomy", "", "Intensity-normalized anatomy volume (.nii or .nii.gz)")
	segmentationFile := flag.String("segmentation", "", "Existing segmentation volume (.nii or .nii.gz)")
	maskFile := flag.String("mask", "", "Optional mask volume restricting the white matter")
	configPath := flag.String("config", "surefit.yaml", "YAML configuration file")
	createConfig := flag.Bool("create-config", false, "Write the default configuration to -config and exit")
	outputDir := flag.String("output", "", "Output directory (overrides the configuration)")
	structure := flag.String("structure", "", "Structure: left, right or both (overrides the configuration)")
	numCores := flag.Int("cores", runtime.NumCPU(), "Number of CPU cores to use (default: all available)")
	acIndex := flag.String("ac", "", "AC voxel as i,j,k (default: from the configuration, else the volume center)")
	method := flag.String("correction", "", "Error correction: none, graph, surefit, surefit-then-graph, graph-then-surefit")
	saveIntermediary := flag.Bool("save-intermediary", false, "Save intermediary results during processing")
	extractSlices := flag.Bool("extract-slices", false, "Extract and save segmentation slices along all axes")
	flag.Parse()

	if *createConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalln(pfx.Err(err))
		}
		fmt.Printf("Default configuration written to: %s\n", *configPath)
		return
	}

	// Validate inputs
	if *anatomyFile == "" && *segmentationFile == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalln(pfx.Err(err))
	}

	// Flags given on the command line win over the configuration
	var flagErr error
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "output":
			cfg.Output.Directory = *outputDir
		case "structure":
			cfg.Segmentation.Structure = *structure
		case "cores":
			cfg.Processing.NumCores = *numCores
		case "ac":
			cfg.Segmentation.ACIndex, flagErr = parseVoxel(*acIndex)
		case "correction":
			cfg.Segmentation.ErrorCorrection = *method
		case "save-intermediary":
			cfg.Output.SaveIntermediaryResults = *saveIntermediary
		case "extract-slices":
			cfg.Output.ExtractSlices = *extractSlices
		}
	})
	if flagErr != nil {
		log.Fatalln(pfx.Err(flagErr))
	}

	params, err := cfg.Params()
	if err != nil {
		log.Fatalln(pfx.Err(err))
	}
	if cfg.Output.Verbose {
		params.Log = os.Stdout
	} else {
		params.Log = io.Discard
	}

	fmt.Println("================================")
	fmt.Println("SUREFIT CORTICAL SEGMENTATION AND SURFACE RECONSTRUCTION")
	fmt.Println("================================")

	// Load the input volumes, all centered on the same AC
	if *anatomyFile != "" {
		if params.Anatomy, err = loadVolume(*anatomyFile, params.ACIndex); err != nil {
			log.Fatalln(pfx.Err(err))
		}
		if lo, hi := params.Anatomy.Range(); lo < 0 || hi > 255 {
			fmt.Printf("Warning: anatomy spans %.1f-%.1f, stretching to 0-255\n", lo, hi)
			params.Anatomy.Stretch()
		}
	}
	if *segmentationFile != "" {
		if params.Segmentation, err = loadVolume(*segmentationFile, params.ACIndex); err != nil {
			log.Fatalln(pfx.Err(err))
		}
	}
	if *maskFile != "" {
		if params.Mask, err = loadVolume(*maskFile, params.ACIndex); err != nil {
			log.Fatalln(pfx.Err(err))
		}
	}
	if params.Anatomy == nil {
		// Without anatomy only the stages downstream of the segmentation can run
		params.DisconnectEye = false
		params.DisconnectHindbrain = false
		params.CutCorpusCallosum = false
		params.GenerateInnerBoundary = false
		params.GenerateOuterBoundary = false
		params.GenerateSegmentation = false
		if params.VentricleSeed == nil {
			params.FillVentricles = false
		}
	}

	pipeline, err := segmentation.NewPipeline(params)
	if err != nil {
		log.Fatalf("Invalid parameters: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Println("Starting segmentation...")
	startTime := time.Now()
	result, err := pipeline.Process(ctx)
	if err != nil {
		log.Fatalf("Segmentation failed: %v", err)
	}
	processingTime := time.Since(startTime)
	fmt.Printf("\nSegmentation completed successfully in %.2f seconds!\n", processingTime.Seconds())

	if err := writeOutputs(cfg, params, result); err != nil {
		log.Fatalln(pfx.Err(err))
	}

	if n := len(result.Warnings); n > 0 {
		fmt.Printf("\n%d warnings:\n", n)
		for _, w := range result.Warnings {
			fmt.Printf("- %s\n", w)
		}
	}
	t := result.Topology
	fmt.Printf("\nSegmentation topology: %d objects, %d cavities, %d holes, Euler count %d\n",
		t.Objects, t.Cavities, t.Holes, t.EulerCount)
	if !t.Correct() {
		fmt.Println("The segmentation still has topological defects; manual correction may be required.")
	}
}

// writeOutputs stores every product of the run below the output directory
func writeOutputs(cfg *config.Config, params *segmentation.Params, result *segmentation.Result) error {
	dir := cfg.Output.Directory
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	fmt.Printf("Writing outputs to: %s\n", dir)

	if result.Segmentation != nil {
		if err := export.WriteVolume(filepath.Join(dir, "segmentation.npy"), result.Segmentation); err != nil {
			return err
		}
	}
	if result.RadialPositionMap != nil {
		if err := export.WriteVolume(filepath.Join(dir, "radial_position_map.npy"), result.RadialPositionMap); err != nil {
			return err
		}
	}

	surfaces := []struct {
		name string
		surf *surface.Surface
	}{
		{"fiducial", result.Surface},
		{"fiducial_corrected", result.CorrectedSurface},
		{"inflated", result.InflatedSurface},
	}
	for _, s := range surfaces {
		if s.surf == nil {
			continue
		}
		triangles, err := stl.FromSurface(s.surf.Topology, s.surf.Primary())
		if err != nil {
			return fmt.Errorf("failed to convert %s surface: %w", s.name, err)
		}
		if err := stl.SaveToSTL(filepath.Join(dir, s.name+".stl"), triangles); err != nil {
			return err
		}
		if err := export.WriteVertexAttributes(filepath.Join(dir, s.name+"_vertices.csv"), s.surf); err != nil {
			return err
		}
	}

	if err := export.WriteReport(filepath.Join(dir, "report.yaml"), result.Report(params.Structure)); err != nil {
		return err
	}

	if cfg.Output.ExtractSlices && result.Segmentation != nil {
		if err := extractSlices(result.Segmentation, filepath.Join(dir, "slices")); err != nil {
			return err
		}
	}
	if cfg.Output.SaveIntermediaryResults {
		fmt.Println("\nIntermediary results saved to:")
		fmt.Printf("%s\n", params.IntermediaryDir)
		fmt.Println("One directory per step, named <step>_<stage>, holds the grids kept by that step.")
	}
	return nil
}

func extractSlices(seg *volume.Grid, slicesPath string) error {
	fmt.Println("\nExtracting segmentation slices along all axes...")
	viewer, err := visualization.NewViewer(seg)
	if err != nil {
		return err
	}

	// Extract and save slices along each axis
	for _, axis := range []string{"x", "y", "z"} {
		axisDir := filepath.Join(slicesPath, axis)
		fmt.Printf("Saving %s-axis slices to: %s\n", axis, axisDir)

		if err := viewer.SaveSliceSequence(axis, axisDir); err != nil {
			log.Printf("Warning: Failed to save %s-axis slices: %v", axis, err)
		}
	}

	fmt.Println("Slice extraction completed!")
	return nil
}
