package config

import (
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.json"))
	if err != nil {
		t.Fatal(err)
	}
	defaults := DefaultConfig()
	if cfg.ModelName != defaults.ModelName || cfg.PythonPath != defaults.PythonPath {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	original := Config{
		LLMProvider:        "OpenAI",
		APIKey:             "sk-test",
		ModelName:          "gpt-4o",
		MaxTokens:          4096,
		DatasetPath:        "/data/ledger.sqlite",
		PythonPath:         "/usr/bin/python3",
		LogDir:             "/tmp/logs",
		DetailedLog:        true,
		ExecTimeoutSeconds: 30,
	}
	if err := Save(path, original); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded != original {
		t.Errorf("round trip changed config:\n got %+v\nwant %+v", loaded, original)
	}
}

func TestLoadFillsZeroDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := Save(path, Config{APIKey: "sk-test"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.APIKey != "sk-test" {
		t.Errorf("APIKey = %q", cfg.APIKey)
	}
	defaults := DefaultConfig()
	if cfg.ModelName != defaults.ModelName || cfg.MaxTokens != defaults.MaxTokens ||
		cfg.PythonPath != defaults.PythonPath || cfg.ExecTimeoutSeconds != defaults.ExecTimeoutSeconds {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}
