package utils

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/mdobak/go-xerrors"
)

func TestGetEnvFallback(t *testing.T) {
	t.Setenv("VOICE_UTILS_TEST", "")
	if got := GetEnv("VOICE_UTILS_TEST", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback for blank value, got %q", got)
	}

	t.Setenv("VOICE_UTILS_TEST", "set")
	if got := GetEnv("VOICE_UTILS_TEST", "fallback"); got != "set" {
		t.Fatalf("expected set value, got %q", got)
	}
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("VOICE_UTILS_INT", "12")
	if got := GetEnvInt("VOICE_UTILS_INT", 3); got != 12 {
		t.Fatalf("expected 12, got %d", got)
	}
	t.Setenv("VOICE_UTILS_INT", "twelve")
	if got := GetEnvInt("VOICE_UTILS_INT", 3); got != 3 {
		t.Fatalf("expected fallback 3, got %d", got)
	}
}

func TestCreateFolderNested(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	if err := CreateFolder(dir); err != nil {
		t.Fatalf("CreateFolder: %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Fatalf("expected %s to be a directory", dir)
	}
}

func TestReplaceAttrRendersErrorGroup(t *testing.T) {
	attr := replaceAttr(nil, slog.Any("error", xerrors.New(errors.New("boom"))))
	if attr.Value.Kind() != slog.KindGroup {
		t.Fatalf("expected group value, got %s", attr.Value.Kind())
	}
	group := attr.Value.Group()
	if len(group) == 0 || group[0].Key != "msg" {
		t.Fatalf("expected msg attribute first, got %+v", group)
	}
	if group[0].Value.String() != "boom" {
		t.Fatalf("unexpected message %q", group[0].Value.String())
	}
}

func TestGenerateUniqueIDDistinct(t *testing.T) {
	if GenerateUniqueID() == GenerateUniqueID() {
		t.Fatal("expected distinct identifiers")
	}
}
