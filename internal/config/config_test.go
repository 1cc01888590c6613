package config

import (
	"path/filepath"
	"testing"
)

func TestLoadDefaultsAndEnv(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("GROQ_API_KEY", "")
	t.Setenv("OPENROUTER_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "g-key")
	t.Setenv("DATANA_MAX_ROWS", "500")

	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.DefaultProvider != "groq" || c.DefaultModel != "llama-3.1-8b-instant" {
		t.Fatalf("unexpected provider defaults: %q %q", c.DefaultProvider, c.DefaultModel)
	}
	if c.MaxRows != 500 {
		t.Fatalf("env override not applied: max_rows=%d", c.MaxRows)
	}
	if c.GeminiAPIKey != "g-key" {
		t.Fatalf("expected GOOGLE_API_KEY fallback, got %q", c.GeminiAPIKey)
	}
	if want := filepath.Join(home, ".datana", "analyses"); c.StoreDir != want {
		t.Fatalf("store dir = %q, want %q", c.StoreDir, want)
	}
	if got := c.MaxUploadBytes(); got != 10<<20 {
		t.Fatalf("MaxUploadBytes = %d", got)
	}
}

func TestSaveThenLoad(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.yaml")
	in := &Global{DefaultProvider: "gemini", DefaultModel: "gemini-1.5-pro", Language: "vi", MaxUploadMB: 0}
	if err := Save(in, path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	out, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if out.DefaultProvider != "gemini" || out.DefaultModel != "gemini-1.5-pro" || out.Language != "vi" {
		t.Fatalf("round trip lost values: %+v", out)
	}
	if out.MaxUploadBytes() != 0 {
		t.Fatal("zero max_upload_mb means unlimited")
	}
}
