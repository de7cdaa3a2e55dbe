package main

import (
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"voice-analyze/voice"

	"golang.org/x/sync/errgroup"
)

// Reports per-feature statistics for a directory of clips and optionally
// fits a preprocessing params file from them.
func main() {
	rootDir := flag.String("dir", "", "Directory searched recursively for WAV clips")
	selectNames := flag.String("select", "", "Comma-separated feature names to fit params for")
	outFile := flag.String("out", "", "Write fitted params to this file (requires -select)")
	rate := flag.Int("rate", 0, "Resample to this rate before extraction (0 keeps the native rate)")
	flag.Parse()

	if *rootDir == "" || (*outFile != "" && *selectNames == "") {
		log.Fatal("Usage: go run . -dir <directory> [-select a,b,c -out params.json] [-rate HZ]")
	}

	var files []string
	err := filepath.WalkDir(*rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".wav") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		log.Fatalf("failed to walk %s: %v", *rootDir, err)
	}
	if len(files) == 0 {
		log.Fatalf("no WAV clips found under %s", *rootDir)
	}
	log.Printf("Extracting features from %d clips\n", len(files))

	decoder := voice.NewWAVDecoder(*rate)
	vectors := make([]voice.FeatureVector, len(files))
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range files {
		g.Go(func() error {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			audio, err := decoder.Decode(data)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			vectors[i], err = voice.ExtractFeatureVector(audio.Samples, audio.SampleRate)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		log.Fatalf("extraction failed: %v", err)
	}

	analysis := voice.AnalyzeFeatureScales(vectors)
	analysis.WriteReport(os.Stdout)
	for _, issue := range analysis.CheckScaleIssues() {
		fmt.Println("WARNING:", issue)
	}

	if *selectNames == "" {
		return
	}
	var selected []int
	for _, name := range strings.Split(*selectNames, ",") {
		idx, ok := voice.FeatureIndex(strings.TrimSpace(name))
		if !ok {
			log.Fatalf("unknown feature %q", name)
		}
		selected = append(selected, idx)
	}
	params, err := analysis.Params(selected)
	if err != nil {
		log.Fatalf("failed to fit params: %v", err)
	}
	if *outFile == "" {
		fmt.Printf("Fitted %d-dimensional params (use -out to save)\n", params.Dimension())
		return
	}
	if err := params.Save(*outFile); err != nil {
		log.Fatalf("failed to save params: %v", err)
	}
	log.Printf("Wrote %d-dimensional params to %s\n", params.Dimension(), *outFile)
}
