package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "voice.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Pipeline.IdentifyThreshold != nil {
		t.Errorf("threshold must be disabled by default, got %v", *cfg.Pipeline.IdentifyThreshold)
	}
	if cfg.Pipeline.TargetSampleRate != 0 {
		t.Errorf("expected native sample rate by default, got %d", cfg.Pipeline.TargetSampleRate)
	}
	if cfg.Models.RecognitionParams != filepath.Join("models", "recognition", "params.json") {
		t.Errorf("unexpected recognition params path %q", cfg.Models.RecognitionParams)
	}
	if cfg.Store.Backend != "file" || cfg.Store.Path == "" {
		t.Errorf("unexpected store config %+v", cfg.Store)
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "8080"
  log_level: debug
models:
  dir: /srv/models
  sentiment_url: http://tf:8501
store:
  backend: sqlite
  path: /var/lib/voice/speakers.db
pipeline:
  target_sample_rate: 16000
  workers: 4
  request_timeout: 5s
  identify_threshold: 0.6
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != "8080" || cfg.Server.LogLevel != "debug" {
		t.Errorf("server not loaded: %+v", cfg.Server)
	}
	if cfg.Pipeline.RequestTimeout != 5*time.Second || cfg.Pipeline.Workers != 4 || cfg.Pipeline.TargetSampleRate != 16000 {
		t.Errorf("pipeline not loaded: %+v", cfg.Pipeline)
	}
	if cfg.Pipeline.IdentifyThreshold == nil || *cfg.Pipeline.IdentifyThreshold != 0.6 {
		t.Errorf("threshold not loaded")
	}
	if cfg.Models.SentimentLabels != filepath.Join("/srv/models", "sentiment", "labels.json") {
		t.Errorf("labels path not resolved in model dir: %q", cfg.Models.SentimentLabels)
	}
	// unset keys keep their defaults
	if cfg.Pipeline.MaxUploadMB != 32 || cfg.Models.SentimentModel != "voice_sentiment" {
		t.Errorf("defaults lost: %+v %+v", cfg.Pipeline, cfg.Models)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "server:\n  port: \"8080\"\n")
	t.Setenv("VOICE_PORT", "9090")
	t.Setenv("VOICE_IDENTIFY_THRESHOLD", "0.75")
	t.Setenv("VOICE_REQUEST_TIMEOUT", "250ms")
	t.Setenv("VOICE_METRICS", "false")
	t.Setenv("VOICE_STORE_BACKEND", "postgres")
	t.Setenv("VOICE_STORE_DSN", "postgres://localhost/voice")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Errorf("port = %q, want 9090", cfg.Server.Port)
	}
	if cfg.Pipeline.IdentifyThreshold == nil || *cfg.Pipeline.IdentifyThreshold != 0.75 {
		t.Errorf("threshold override missing")
	}
	if cfg.Pipeline.RequestTimeout != 250*time.Millisecond {
		t.Errorf("timeout = %v", cfg.Pipeline.RequestTimeout)
	}
	if cfg.Server.Metrics {
		t.Errorf("metrics should be disabled")
	}
	if cfg.Store.Backend != "postgres" || cfg.Store.DSN == "" {
		t.Errorf("store override missing: %+v", cfg.Store)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"unknown key":  "server:\n  colour: blue\n",
		"bad protocol": "server:\n  protocol: gopher\n",
		"threshold":    "pipeline:\n  identify_threshold: 3\n",
		"backend":      "store:\n  backend: redis\n",
		"missing dsn":  "store:\n  backend: mongo\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, body)); err == nil {
				t.Fatalf("expected error for %q", body)
			}
		})
	}

	t.Run("bad env", func(t *testing.T) {
		t.Setenv("VOICE_REQUEST_TIMEOUT", "soon")
		_, err := Load("")
		if err == nil || !strings.Contains(err.Error(), "VOICE_REQUEST_TIMEOUT") {
			t.Fatalf("expected timeout parse error, got %v", err)
		}
	})

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing explicit config file")
	}
}

func TestEmptyFileKeepsDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != "5001" {
		t.Fatalf("port = %q", cfg.Server.Port)
	}
}
