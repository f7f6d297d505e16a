package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/user/butler/pkg/llm"
)

type Config struct {
	DataDir       string `json:"data_dir" yaml:"data_dir"`
	LogLevel      string `json:"log_level" yaml:"log_level"`
	MaxConcurrent int    `json:"max_concurrent" yaml:"max_concurrent"`
	MaxToolRounds int    `json:"max_tool_rounds" yaml:"max_tool_rounds"`
	HTTP          struct {
		Listen string `json:"listen" yaml:"listen"`
	} `json:"http" yaml:"http"`
	// Notify.URL receives reminder reports; empty disables push delivery.
	Notify struct {
		URL string `json:"url" yaml:"url"`
	} `json:"notify" yaml:"notify"`
	LLM struct {
		BaseURL          string  `json:"base_url" yaml:"base_url"`
		APIKey           string  `json:"api_key" yaml:"api_key"`
		Model            string  `json:"model" yaml:"model"`
		MaxTokens        int     `json:"max_tokens" yaml:"max_tokens"`
		Temperature      float32 `json:"temperature" yaml:"temperature"`
		MaxContextTokens int     `json:"max_context_tokens" yaml:"max_context_tokens"`
		OutputReserve    int     `json:"output_reserve" yaml:"output_reserve"`
		TimeoutSeconds   int     `json:"timeout_seconds" yaml:"timeout_seconds"`
	} `json:"llm" yaml:"llm"`
}

// Default returns the configuration used when no file overrides it.
func Default() *Config {
	cfg := &Config{
		DataDir:       filepath.Join(os.Getenv("HOME"), ".butler"),
		LogLevel:      "info",
		MaxConcurrent: 2,
		MaxToolRounds: 10,
	}
	cfg.HTTP.Listen = "127.0.0.1:8088"
	cfg.LLM.BaseURL = "https://api.openai.com/v1"
	cfg.LLM.Model = "gpt-4o-mini"
	cfg.LLM.MaxTokens = 2000
	cfg.LLM.Temperature = 0.2
	cfg.LLM.MaxContextTokens = 128000
	cfg.LLM.OutputReserve = 4096
	cfg.LLM.TimeoutSeconds = 60
	return cfg
}

// DefaultPath is where the config lives when no path is given.
func DefaultPath() string {
	return filepath.Join(os.Getenv("HOME"), ".butler", "config.json")
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// Load reads the config at path, writing defaults there first if the file
// does not exist. Environment variables take precedence over the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if isYAML(path) {
			err = yaml.Unmarshal(data, cfg)
		} else {
			err = json.Unmarshal(data, cfg)
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if os.IsNotExist(err) {
		if err := Save(path, cfg); err != nil {
			return nil, err
		}
	}

	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		cfg.LLM.APIKey = apiKey
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		cfg.LLM.BaseURL = baseURL
	}
	if listen := os.Getenv("BUTLER_LISTEN"); listen != "" {
		cfg.HTTP.Listen = listen
	}
	if dir := os.Getenv("BUTLER_DATA_DIR"); dir != "" {
		cfg.DataDir = dir
	}

	return cfg, nil
}

// Provider returns the LLM provider settings.
func (c *Config) Provider() *llm.Config {
	return &llm.Config{
		BaseURL:     c.LLM.BaseURL,
		APIKey:      c.LLM.APIKey,
		Model:       c.LLM.Model,
		MaxTokens:   c.LLM.MaxTokens,
		Temperature: c.LLM.Temperature,
		Timeout:     time.Duration(c.LLM.TimeoutSeconds) * time.Second,
	}
}

// RemindersPath is the reminder store file inside the data directory.
func (c *Config) RemindersPath() string {
	return filepath.Join(c.DataDir, "reminders.json")
}

// Save writes cfg to path atomically, as YAML for .yaml/.yml paths and JSON
// otherwise.
func Save(path string, cfg *Config) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(cfg)
	} else {
		data, err = json.MarshalIndent(cfg, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return writeFile(path, data)
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}

// ToMap renders cfg as a nested map with JSON types.
func ToMap(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// ListValues flattens cfg into dot keys, masking secrets when mask is set.
func ListValues(cfg *Config, mask bool) (map[string]any, error) {
	m, err := ToMap(cfg)
	if err != nil {
		return nil, err
	}
	flat := Flatten(m)
	if mask {
		flat = MaskSecrets(flat)
	}
	return flat, nil
}

// readRaw loads the file at path as a nested map, keeping keys the Config
// struct does not know. Numbers come back as float64 whatever the format.
func readRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m := map[string]any{}
	if isYAML(path) {
		var y map[string]any
		if err := yaml.Unmarshal(data, &y); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		// Round-trip through JSON so YAML ints match JSON numbers.
		if data, err = json.Marshal(y); err != nil {
			return nil, err
		}
	}
	if len(bytes.TrimSpace(data)) == 0 || string(bytes.TrimSpace(data)) == "null" {
		return m, nil
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return m, nil
}

// GetValue returns the value stored under a dot key. The file is created
// with defaults if missing.
func GetValue(path, key string) (any, error) {
	if _, err := Load(path); err != nil {
		return nil, err
	}
	m, err := readRaw(path)
	if err != nil {
		return nil, err
	}
	v, ok := Flatten(m)[key]
	if !ok {
		return nil, fmt.Errorf("unknown config key: %s", key)
	}
	return v, nil
}

// SetValue stores value under a dot key in an existing config file. Values
// that parse as JSON (numbers, booleans) keep their type; anything else is
// stored as a string.
func SetValue(path, key, value string) error {
	m, err := readRaw(path)
	if err != nil {
		return err
	}

	var v any
	if err := json.Unmarshal([]byte(value), &v); err != nil {
		v = value
	}
	flat := Flatten(m)
	flat[key] = v
	nested := Unflatten(flat)

	var data []byte
	if isYAML(path) {
		data, err = yaml.Marshal(nested)
	} else {
		data, err = json.MarshalIndent(nested, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return writeFile(path, data)
}
