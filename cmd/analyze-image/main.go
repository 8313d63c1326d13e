package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/kdimtricp/shottime/internal/ai"
	"github.com/kdimtricp/shottime/internal/config"
)

func main() {
	var (
		path  = flag.String("image", "", "PNG or JPEG screenshot to analyze")
		names = flag.Bool("names", true, "match participant names to faces")
	)
	flag.Parse()

	if *path == "" {
		log.Fatal("Please provide a screenshot with -image flag")
	}

	cfg, err := config.Load("")
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	if cfg.GoogleVisionKey == "" {
		log.Fatal("No Google Vision key configured")
	}

	f, err := os.Open(*path)
	if err != nil {
		log.Fatal("Failed to open image:", err)
	}
	img, format, err := image.Decode(f)
	f.Close()
	if err != nil {
		log.Fatal("Failed to decode image:", err)
	}

	bounds := img.Bounds()
	fmt.Printf("Analyzing %s (%s, %dx%d)\n", filepath.Base(*path), format, bounds.Dx(), bounds.Dy())

	aiConfig := ai.NewConfig()
	aiConfig.GoogleVisionKey = cfg.GoogleVisionKey
	aiConfig.Endpoint = cfg.VisionEndpoint
	aiConfig.MinConfidence = cfg.MinConfidence
	aiConfig.MaxResults = cfg.MaxFaces

	vision := ai.NewGoogleVisionClientFromConfig(aiConfig)
	analyzer := ai.NewAnalyzer(vision, vision, aiConfig.DetectOptions())

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	report := analyzer.Analyze(ctx, filepath.Base(*path), img, ai.Options{NameRecognition: *names})

	fmt.Printf("Faces: %d\n", report.Result.FaceCount)
	for i, face := range report.Faces {
		name := face.Name
		if name == "" {
			name = "-"
		}
		fmt.Printf("  %d. %s at (%d,%d) %dx%d confidence %.2f\n",
			i+1, name, face.Box.X, face.Box.Y, face.Box.Width, face.Box.Height, face.Box.Confidence)
	}
	for _, w := range report.Result.Warnings {
		fmt.Printf("Warning: %s\n", w)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		log.Fatal("Failed to encode report:", err)
	}
}
