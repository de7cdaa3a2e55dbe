package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"voice-analyze/models"
	"voice-analyze/service"
	"voice-analyze/wav"
)

// Uploads WAV clips to a running server the way the transcription frontend
// does: one /analyze call per segment, or /enroll when -speaker is set.
func main() {
	dir := flag.String("dir", "segments", "Directory containing WAV segments to upload (ignored if -file is set)")
	file := flag.String("file", "", "Single WAV file to upload (overrides -dir)")
	server := flag.String("url", "http://localhost:5001", "Server base URL")
	speaker := flag.String("speaker", "", "Enroll the clips as this speaker instead of analyzing them")
	language := flag.String("lang", "", "Language code echoed back with each segment")
	delay := flag.Duration("delay", 500*time.Millisecond, "Delay between uploads when using -dir")
	flag.Parse()

	files, err := resolveFiles(*file, *dir)
	if err != nil {
		log.Fatalf("failed to resolve files: %v", err)
	}
	if len(files) == 0 {
		log.Fatalf("no WAV files found (file=%s dir=%s)", *file, *dir)
	}

	client := &http.Client{Timeout: 60 * time.Second}
	base := strings.TrimSuffix(*server, "/")
	fmt.Printf("Uploading %d clip(s) to %s\n\n", len(files), base)

	var offset float64
	for idx, path := range files {
		var err error
		if *speaker != "" {
			err = enrollClip(client, base, *speaker, path)
		} else {
			offset, err = analyzeClip(client, base, path, idx, *language, offset)
		}
		if err != nil {
			log.Printf("upload failed for %s: %v\n", path, err)
		}

		if idx < len(files)-1 && *delay > 0 {
			time.Sleep(*delay)
		}
	}
}

func resolveFiles(single, dir string) ([]string, error) {
	if single != "" {
		return []string{single}, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".wav") {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	return files, nil
}

func enrollClip(client *http.Client, base, speaker, path string) error {
	fmt.Printf("→ enroll %s as %s\n", filepath.Base(path), speaker)

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read wav: %w", err)
	}

	var status models.StatusResponse
	if err := postJSON(client, base+"/enroll", models.EnrollRequest{Speaker: speaker, WavFile: raw}, &status); err != nil {
		return err
	}
	fmt.Printf("   %s\n", status.Message)
	return nil
}

// analyzeClip uploads one segment and returns the end offset of the segment
// in the simulated stream.
func analyzeClip(client *http.Client, base, path string, idx int, language string, offset float64) (float64, error) {
	fmt.Printf("→ analyze %s\n", filepath.Base(path))

	raw, err := os.ReadFile(path)
	if err != nil {
		return offset, fmt.Errorf("read wav: %w", err)
	}
	audio, err := wav.Decode(raw)
	if err != nil {
		return offset, fmt.Errorf("parse wav: %w", err)
	}
	start, end := offset, offset+audio.Duration()

	req := models.AnalyzeRequest{
		WavFile:   raw,
		SegmentID: idx,
		Text:      strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Language:  language,
		Start:     &start,
		End:       &end,
	}
	var res service.AnalyzeResult
	if err := postJSON(client, base+"/analyze", req, &res); err != nil {
		return end, err
	}

	fmt.Printf("   [%.2f-%.2f] speaker=%s (%.3f) sentiment=%s snr=%.1fdB\n",
		start, end, res.Speaker, res.SimilarityScore, res.VoiceSentiment, res.SNRDb)
	return end, nil
}

func postJSON(client *http.Client, url string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("post request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var e models.ErrorResponse
		if json.Unmarshal(data, &e) == nil && e.Message != "" {
			return fmt.Errorf("server returned %d (%s): %s", resp.StatusCode, e.Kind, e.Message)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(data))
	}
	return json.Unmarshal(data, out)
}
