package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config structure
type Config struct {
	LLMProvider string `json:"llmProvider"`
	APIKey      string `json:"apiKey"`
	BaseURL     string `json:"baseUrl"`
	ModelName   string `json:"modelName"`
	MaxTokens   int    `json:"maxTokens"`

	DatasetPath        string `json:"datasetPath"`        // sqlite dataset with the ledger table
	PythonPath         string `json:"pythonPath"`         // interpreter used for query execution
	LogDir             string `json:"logDir"`             // directory for session logs
	DetailedLog        bool   `json:"detailedLog"`
	ExecTimeoutSeconds int    `json:"execTimeoutSeconds"` // per-query execution timeout
}

// DefaultConfig returns the config used when no file exists yet.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	dataDir := filepath.Join(home, "LedgerChat")
	return Config{
		LLMProvider:        "OpenAI",
		ModelName:          "gpt-4o",
		MaxTokens:          8192,
		DatasetPath:        filepath.Join(dataDir, "ledger.sqlite"),
		PythonPath:         "python3",
		LogDir:             dataDir,
		ExecTimeoutSeconds: 60,
	}
}

// Load reads the config from path, returning defaults when the file does
// not exist.
func Load(path string) (Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	defaults := DefaultConfig()
	if cfg.ModelName == "" {
		cfg.ModelName = defaults.ModelName
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaults.MaxTokens
	}
	if cfg.PythonPath == "" {
		cfg.PythonPath = defaults.PythonPath
	}
	if cfg.LogDir == "" {
		cfg.LogDir = defaults.LogDir
	}
	if cfg.ExecTimeoutSeconds <= 0 {
		cfg.ExecTimeoutSeconds = defaults.ExecTimeoutSeconds
	}
	return cfg, nil
}

// Save writes the config to path, creating parent directories as needed.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
