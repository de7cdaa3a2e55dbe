package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"voice-analyze/config"
	"voice-analyze/service"
	"voice-analyze/speakers"
	"voice-analyze/voice"

	"golang.org/x/sync/errgroup"
)

type clip struct {
	speaker string
	path    string
}

func main() {
	rootDir := flag.String("dir", "", "Root directory with one subdirectory of WAV clips per speaker")
	configPath := flag.String("config", os.Getenv("VOICE_CONFIG"), "Path to the YAML config file")
	workers := flag.Int("workers", runtime.GOMAXPROCS(0), "Concurrent feature extractions")
	flag.Parse()

	if *rootDir == "" {
		log.Fatal("Usage: go run . -dir <directory> [-config file] [-workers N]\n\n" +
			"Example structure:\n" +
			"  voices/\n" +
			"    alice/\n" +
			"      clip1.wav\n" +
			"      clip2.wav\n" +
			"    bob/\n" +
			"      clip1.wav\n")
	}

	clips, err := discoverClips(*rootDir)
	if err != nil {
		log.Fatalf("failed to read directory: %v", err)
	}
	if len(clips) == 0 {
		log.Fatalf("no WAV clips found under %s", *rootDir)
	}
	log.Printf("Found %d clips in %s\n", len(clips), *rootDir)

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

	svc, err := service.New(service.Dependencies{
		Store:             store,
		Decoder:           voice.NewWAVDecoder(cfg.Pipeline.TargetSampleRate),
		RecognitionParams: params,
	}, service.Options{Workers: *workers})
	if err != nil {
		log.Fatalf("failed to build service: %v", err)
	}
	defer svc.Close()

	// Extraction runs in parallel; vectors are appended afterwards in
	// directory order so reruns produce the same database.
	vectors := make([]voice.ProcessedVector, len(clips))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(*workers)
	for i, c := range clips {
		g.Go(func() error {
			data, err := os.ReadFile(c.path)
			if err != nil {
				return err
			}
			_, features, err := svc.Extract(gctx, data)
			if err != nil {
				return fmt.Errorf("%s: %w", c.path, err)
			}
			vectors[i], err = voice.Preprocess(features, params)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		log.Fatalf("extraction failed: %v", err)
	}

	counts := make(map[string]int)
	for i, c := range clips {
		if err := store.Add(ctx, c.speaker, vectors[i]); err != nil {
			log.Fatalf("failed to enroll %s (%s): %v", c.speaker, c.path, err)
		}
		counts[c.speaker]++
	}

	log.Printf("Enrolled %d clips for %d speakers\n", len(clips), len(counts))
	for _, stat := range store.Stats() {
		log.Printf("  %-20s %3d vectors (+%d)", stat.Speaker, stat.Vectors, counts[stat.Speaker])
	}
}

func discoverClips(root string) ([]clip, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	var clips []clip
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		files, err := filepath.Glob(filepath.Join(root, entry.Name(), "*"))
		if err != nil {
			return nil, err
		}
		sort.Strings(files)
		for _, f := range files {
			if strings.EqualFold(filepath.Ext(f), ".wav") {
				clips = append(clips, clip{speaker: entry.Name(), path: f})
			}
		}
	}
	return clips, nil
}
