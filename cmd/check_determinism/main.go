package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"

	"voice-analyze/voice"
)

// Extracts features from one file several times and reports any drift.
func main() {
	runs := flag.Int("runs", 5, "Number of extractions to compare")
	rate := flag.Int("rate", 0, "Resample to this rate before extraction (0 keeps the native rate)")
	flag.Parse()

	if flag.NArg() < 1 || *runs < 2 {
		log.Fatal("Usage: go run . [-runs N] [-rate HZ] <path-to-wav-file>")
	}
	testFile := flag.Arg(0)
	log.Printf("Testing determinism with: %s\n", testFile)

	data, err := os.ReadFile(testFile)
	if err != nil {
		log.Fatalf("failed to read %s: %v", testFile, err)
	}
	decoder := voice.NewWAVDecoder(*rate)

	featureSets := make([]voice.FeatureVector, 0, *runs)
	for i := 0; i < *runs; i++ {
		audio, err := decoder.Decode(data)
		if err != nil {
			log.Fatalf("Run %d failed: %v", i+1, err)
		}
		features, err := voice.ExtractFeatureVector(audio.Samples, audio.SampleRate)
		if err != nil {
			log.Fatalf("Run %d failed: %v", i+1, err)
		}
		featureSets = append(featureSets, features)
		log.Printf("Run %d: first features: %.10f, %.10f, %.10f, %.10f, %.10f",
			i+1, features[0], features[1], features[2], features[3], features[4])
	}

	fmt.Println("\n=== Determinism Check ===")
	names := voice.FeatureNames()
	identical := true
	maxDiff := 0.0
	for i := 1; i < len(featureSets); i++ {
		for j := range featureSets[0] {
			diff := math.Abs(featureSets[0][j] - featureSets[i][j])
			maxDiff = math.Max(maxDiff, diff)
			if diff != 0 {
				identical = false
				fmt.Printf("Feature %s differs between run 1 and run %d: %.15f vs %.15f (diff: %e)\n",
					names[j], i+1, featureSets[0][j], featureSets[i][j], diff)
			}
		}
	}

	if !identical {
		fmt.Printf("Feature extraction is NON-DETERMINISTIC (max diff: %e)\n", maxDiff)
		os.Exit(1)
	}
	fmt.Println("All runs produced identical features")

	self := voice.CosineSimilarity(featureSets[0].Slice(), featureSets[1].Slice())
	fmt.Printf("Cosine similarity between two extractions: %.10f\n", self)
}
