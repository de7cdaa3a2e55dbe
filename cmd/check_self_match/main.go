package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"voice-analyze/config"
	"voice-analyze/speakers"
	"voice-analyze/voice"
)

// Identifies clips against the configured speaker store. A clip that was
// enrolled should come back as its own speaker with a score of ~1.
func main() {
	configPath := flag.String("config", os.Getenv("VOICE_CONFIG"), "Path to the YAML config file")
	expect := flag.String("speaker", "", "Speaker every clip is expected to match")
	flag.Parse()

	if flag.NArg() == 0 {
		log.Fatal("Usage: go run . [-config file] [-speaker name] <clip.wav>...")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	params, err := voice.LoadPreprocessingParams(cfg.Models.RecognitionParams)
	if err != nil {
		log.Fatalf("failed to load recognition params: %v", err)
	}

	ctx := context.Background()
	backend, err := speakers.OpenBackend(ctx, speakers.BackendConfig{
		Kind:       cfg.Store.Backend,
		Path:       cfg.Store.Path,
		DSN:        cfg.Store.DSN,
		Database:   cfg.Store.Database,
		Collection: cfg.Store.Collection,
	})
	if err != nil {
		log.Fatalf("failed to open speaker store: %v", err)
	}
	store, err := speakers.Open(ctx, backend)
	if err != nil {
		log.Fatalf("failed to load speaker store: %v", err)
	}
	defer store.Close()

	fmt.Printf("Loaded %d speakers\n\n", store.Len())
	fmt.Println("=== Testing Self-Match ===")

	decoder := voice.NewWAVDecoder(cfg.Pipeline.TargetSampleRate)
	failures := 0
	for _, path := range flag.Args() {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Printf("  ERROR: %v\n", err)
			failures++
			continue
		}
		audio, err := decoder.Decode(data)
		if err != nil {
			log.Printf("  ERROR: %v\n", err)
			failures++
			continue
		}
		features, err := voice.ExtractFeatureVector(audio.Samples, audio.SampleRate)
		if err != nil {
			log.Printf("  ERROR: %v\n", err)
			failures++
			continue
		}
		vector, err := voice.Preprocess(features, params)
		if err != nil {
			log.Fatalf("preprocess: %v", err)
		}

		match := store.Identify(vector, nil)
		fmt.Printf("%-32s -> %-16s score %.6f\n", filepath.Base(path), match.Name(), match.Score)
		if *expect != "" && match.Speaker != *expect {
			failures++
		}
	}

	if failures > 0 {
		fmt.Printf("\n%d clip(s) did not match\n", failures)
		os.Exit(1)
	}
}
