package server

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFindConfigFile_SearchesParents(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "config", "routing"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "config", "routing", "allowlist.yaml"), []byte("version: 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	deep := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(deep, 0o755); err != nil {
		t.Fatal(err)
	}
	t.Chdir(deep)
	t.Setenv("ALLOWLIST_PATH", "")

	got, err := defaultAllowlistPath()
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if got != filepath.Join("..", "..", "..", "config", "routing", "allowlist.yaml") {
		t.Fatalf("got=%q", got)
	}
}

func TestFindConfigFile_NotFound(t *testing.T) {
	t.Chdir(t.TempDir())
	if _, err := findConfigFile("config/forensics/nope.yaml", "detector config"); err == nil {
		t.Fatal("expected error")
	}
}

func TestConfigPath_EnvOverride(t *testing.T) {
	t.Setenv("AUTHZ_MODEL_PATH", "/etc/claimwatch/model.conf")
	got, err := defaultAuthzModelPath()
	if err != nil || got != "/etc/claimwatch/model.conf" {
		t.Fatalf("got=%q err=%v", got, err)
	}
}
