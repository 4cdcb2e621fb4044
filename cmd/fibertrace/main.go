package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"cardiofiber/pkg/amira"
	"cardiofiber/pkg/artifact"
	"cardiofiber/pkg/config"
	"cardiofiber/pkg/tracer"
)

func main() {
	// Parse command line arguments
	confPath := flag.String("conf", "", "Path to the YAML configuration file")
	startIndex := flag.Int("start", 0, "First slice index of the traced window")
	endIndex := flag.Int("end", 0, "End of the traced window (exclusive, 0 = full volume)")
	binFactor := flag.Int("bin", 1, "Downsampling factor of pre-binned artifacts to trace on")
	numSeeds := flag.Int("points", 20000, "Number of initial seed points")
	numSteps := flag.Int("steps", 1000000, "Maximum number of steps per streamline")
	segmentLength := flag.Float64("seglen", 20.0, "Step length in voxels along the vector direction")
	angleThreshold := flag.Float64("angle", 60.0, "Maximum angle in degrees between consecutive steps")
	minPoints := flag.Int("minlen", 10, "Minimum number of points for a streamline to be kept")
	randomSeed := flag.Int64("seed", 0, "Random seed for reproducible seeding")
	outName := flag.String("output", "output.am", "Output AmiraMesh filename (relative to the output dir)")
	flag.Parse()

	if *confPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*confPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	fmt.Println("================================")
	fmt.Println("CARDIOFIBER STREAMLINE TRACER")
	fmt.Println("Vector-field fiber tracing and AmiraMesh export")
	fmt.Println("================================")

	outputDir := cfg.Output.Dir
	voxelSize := cfg.Processing.VoxelSize
	start := *startIndex
	end := *endIndex
	if end <= 0 || end > cfg.Input.Depth {
		end = cfg.Input.Depth
	}

	// Pre-binned artifacts live under bin{N}/ and shrink the index space
	// by the same factor
	if *binFactor > 1 {
		outputDir = filepath.Join(outputDir, fmt.Sprintf("bin%d", *binFactor))
		start /= *binFactor
		end /= *binFactor
		voxelSize *= float64(*binFactor)
	}
	fmt.Printf("Voxel size: %gum\n", voxelSize)

	store := artifact.NewStore(outputDir, cfg.Output.Format, cfg.Output.Type)

	fmt.Printf("Loading vector field slices %d to %d...\n", start, end)
	field, err := store.LoadVectorVolume(start, end)
	if err != nil {
		log.Fatalf("Failed to load vector field: %v\n"+
			"Steps to resolve:\n"+
			"1. Ensure vector output is enabled in the configuration.\n"+
			"2. Run the orientation computation step to generate eigen_vec files.\n"+
			"3. Verify the output directory for the expected .npy files.", err)
	}

	// Align all vectors along one Z direction before following them
	field.AlignZSign()

	fmt.Println("Loading helix angle volume...")
	haVolume, err := store.LoadAngleVolume(artifact.KindHelix, start, end)
	if err != nil {
		log.Fatalf("Failed to load helix angle volume: %v", err)
	}

	params := tracer.Params{
		NumSeeds:       *numSeeds,
		NumSteps:       *numSteps,
		SegmentLength:  *segmentLength,
		AngleThreshold: *angleThreshold,
		MinPoints:      *minPoints,
		Seed:           *randomSeed,
	}

	fmt.Printf("Tracing %d streamlines...\n", params.NumSeeds)
	startTime := time.Now()

	tr := tracer.New(field, params)
	lines, err := tr.Trace()
	if err != nil {
		log.Fatalf("Streamline tracing failed: %v", err)
	}
	fmt.Printf("Kept %d streamlines after length filtering\n", len(lines))

	tr.ComputeAttributes(lines, haVolume)

	// Global slice indices, physical coordinates, export axis order
	tracer.OffsetZ(lines, start)
	tracer.ScalePoints(lines, voxelSize)
	tracer.ReorderToXYZ(lines)

	outPath := filepath.Join(outputDir, *outName)
	if err := amira.WriteFile(outPath, lines); err != nil {
		log.Fatalf("Failed to write AmiraMesh file: %v", err)
	}

	fmt.Printf("Amira file written to %s in %.2f seconds\n",
		outPath, time.Since(startTime).Seconds())
}
