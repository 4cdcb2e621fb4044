package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"cardiofiber/pkg/config"
	"cardiofiber/pkg/orientation"
)

func main() {
	// Parse command line arguments
	confPath := flag.String("conf", "", "Path to the YAML configuration file")
	startIndex := flag.Int("start", 0, "First slice index to process")
	endIndex := flag.Int("end", 0, "End of the slice window (exclusive, 0 = full volume)")
	writeConf := flag.Bool("write-config", false, "Write a default configuration to the -conf path and exit")
	flag.Parse()

	if *confPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if *writeConf {
		if err := config.CreateDefaultConfigFile(*confPath); err != nil {
			log.Fatalf("Failed to write default configuration: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *confPath)
		return
	}

	cfg, err := config.LoadConfig(*confPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	fmt.Println("================================")
	fmt.Println("CARDIOFIBER ORIENTATION PIPELINE")
	fmt.Println("Structure-tensor fiber orientation and angle maps")
	fmt.Println("================================")
	fmt.Printf("Volume: %s (%dx%dx%d)\n", cfg.Input.VolumePath,
		cfg.Input.Depth, cfg.Input.Height, cfg.Input.Width)
	fmt.Printf("Sigma: %.2f, Rho: %.2f, Cores: %d\n",
		cfg.Processing.Sigma, cfg.Processing.Rho, cfg.Processing.NumCores)

	volume := orientation.NewRawFileSource(cfg.Input.VolumePath,
		cfg.Input.Depth, cfg.Input.Height, cfg.Input.Width)

	var maskSource orientation.VolumeSource
	if cfg.Input.MaskPath != "" {
		maskSource = orientation.NewRawFileSource(cfg.Input.MaskPath,
			cfg.Input.MaskDepth, cfg.Input.MaskHeight, cfg.Input.MaskWidth)
	} else {
		fmt.Println("Mask path not provided, processing the full volume")
	}

	start := *startIndex
	end := *endIndex
	if end <= 0 || end > cfg.Input.Depth {
		end = cfg.Input.Depth
	}

	pipeline := orientation.NewPipeline(cfg, volume, maskSource)

	startTime := time.Now()

	// Process the window in chunks; each chunk is independently resumable
	// because completed slices short-circuit on the next run.
	chunks := cfg.Processing.NumChunks
	if cfg.Test.Enabled {
		chunks = 1
	}
	chunkSize := (end - start + chunks - 1) / chunks

	for c := 0; c < chunks; c++ {
		chunkStart := start + c*chunkSize
		chunkEnd := chunkStart + chunkSize
		if chunkEnd > end {
			chunkEnd = end
		}
		if chunkStart >= chunkEnd {
			break
		}

		fmt.Printf("\nProcessing slices %d to %d (chunk %d of %d)...\n",
			chunkStart, chunkEnd, c+1, chunks)
		if err := pipeline.Run(chunkStart, chunkEnd); err != nil {
			log.Fatalf("Orientation computation failed: %v", err)
		}
	}

	fmt.Printf("\nFinished processing slices %d to %d in %.2f seconds\n",
		start, end, time.Since(startTime).Seconds())

	if cfg.Test.Enabled {
		previews := pipeline.Previews()
		fmt.Printf("Test mode: rendered %d slice previews, no artifacts written\n", len(previews))
		for _, p := range previews {
			ha, ia, fa := p.Stats()
			fmt.Printf("  slice %06d: HA %.1f+/-%.1f  IA %.1f+/-%.1f  FA %.3f+/-%.3f  (%d valid px)\n",
				p.Index, ha.Mean, ha.StdDev, ia.Mean, ia.StdDev, fa.Mean, fa.StdDev, fa.Valid)
		}
	} else {
		fmt.Printf("Artifacts written to: %s\n", cfg.Output.Dir)
	}
}
