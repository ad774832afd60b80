package main

import (
	"flag"
	"log"
	"os"

	"epigrid/internal/config"
	"epigrid/internal/render"
	"epigrid/internal/sim"
)

func main() {
	configPath := flag.String("config", "", "scenario YAML file (defaults when empty)")
	seed := flag.Int64("seed", 0, "random seed overriding the scenario (0 keeps it)")
	steps := flag.Int("steps", 0, "step count overriding the scenario (0 keeps it)")
	videoPath := flag.String("video", "", "write an MJPEG AVI of the run to this path")
	curvePath := flag.String("curve", "", "write the epidemic curve PNG to this path")
	cellSize := flag.Int("cell", 6, "pixels per grid cell in the video")
	fps := flag.Int("fps", 10, "video frame rate")
	flag.Parse()

	file := config.Default()
	if *configPath != "" {
		var err error
		if file, err = config.Load(*configPath); err != nil {
			log.Fatalf("load scenario: %v", err)
		}
	}
	if *seed != 0 {
		file.Seed = *seed
	}
	if *steps != 0 {
		file.Steps = *steps
	}

	simulation, err := file.NewSimulation(log.Default())
	if err != nil {
		log.Fatalf("build simulation: %v", err)
	}

	var snaps []sim.Snapshot
	if file.Points() == nil {
		snaps, err = simulation.Run(file.Population, file.Steps)
	} else {
		snaps, err = simulation.RunSeeded(file.Steps)
	}
	if err != nil {
		log.Fatalf("simulation failed: %v", err)
	}
	log.Printf("final counts after %d steps: %s", simulation.Clock(), simulation.Counts())

	if *videoPath != "" {
		canvas := render.Canvas{GridWidth: file.Grid.Width, GridHeight: file.Grid.Height, CellSize: *cellSize}
		video, err := render.NewVideo(*videoPath, canvas, *fps)
		if err != nil {
			log.Fatalf("video: %v", err)
		}
		for _, snap := range snaps {
			if err := video.Add(snap); err != nil {
				log.Fatalf("video: %v", err)
			}
		}
		if err := video.Close(); err != nil {
			log.Fatalf("video: %v", err)
		}
		log.Printf("wrote %d frames to %s", video.Frames(), *videoPath)
	}

	if *curvePath != "" {
		f, err := os.Create(*curvePath)
		if err != nil {
			log.Fatalf("curve: %v", err)
		}
		if err := render.Curve(f, snaps); err != nil {
			f.Close()
			log.Fatalf("curve: %v", err)
		}
		if err := f.Close(); err != nil {
			log.Fatalf("curve: %v", err)
		}
		log.Printf("wrote epidemic curve to %s", *curvePath)
	}
}
