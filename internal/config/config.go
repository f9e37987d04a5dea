package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultListenAddr = ":8080"
	DefaultDBPath     = "./cronkite.db"
	DefaultOutputDir  = "saved_reports"
	DefaultUploadsDir = "uploads"
	DefaultLogLevel   = "info"
	DefaultLlamaSeed  = 385480504
)

// Config is the application configuration, loaded from an optional YAML file
// with environment variable overrides. Exactly one backend section should be
// populated; that is enforced at backend init, not here.
type Config struct {
	ListenAddr string `yaml:"listen_addr"`
	DBPath     string `yaml:"db_path"`
	OutputDir  string `yaml:"output_dir"`
	UploadsDir string `yaml:"uploads_dir"`
	LogLevel   string `yaml:"log_level"`

	Gemini GeminiConfig `yaml:"gemini"`
	OpenAI OpenAIConfig `yaml:"openai"`
	Llama  LlamaConfig  `yaml:"llama"`
}

type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

type OpenAIConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

type LlamaConfig struct {
	Server string `yaml:"server"`
	Seed   int    `yaml:"seed"`
}

// Loader loads configuration from a YAML file and the environment. Tests can
// override Lookup to inject deterministic maps.
type Loader struct {
	Lookup func(string) (string, bool)
}

// Load reads the config file at path (skipped when path is empty or the file
// does not exist), applies environment overrides, then validates.
func (l Loader) Load(path string) (Config, error) {
	if l.Lookup == nil {
		l.Lookup = os.LookupEnv
	}

	cfg := Config{
		ListenAddr: DefaultListenAddr,
		DBPath:     DefaultDBPath,
		OutputDir:  DefaultOutputDir,
		UploadsDir: DefaultUploadsDir,
		LogLevel:   DefaultLogLevel,
		Llama:      LlamaConfig{Seed: DefaultLlamaSeed},
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("config: read %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	overrideString(l.Lookup, "CRONKITE_LISTEN_ADDR", &cfg.ListenAddr)
	overrideString(l.Lookup, "CRONKITE_DB_PATH", &cfg.DBPath)
	overrideString(l.Lookup, "CRONKITE_OUTPUT_DIR", &cfg.OutputDir)
	overrideString(l.Lookup, "CRONKITE_LOG_LEVEL", &cfg.LogLevel)
	overrideString(l.Lookup, "GEMINI_API_KEY", &cfg.Gemini.APIKey)
	overrideString(l.Lookup, "OPENAI_API_KEY", &cfg.OpenAI.APIKey)
	overrideString(l.Lookup, "CRONKITE_LLAMA_SERVER", &cfg.Llama.Server)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate applies defaults for blanked-out fields and rejects bad values.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("config: listen address is required")
	}
	if c.OutputDir == "" {
		c.OutputDir = DefaultOutputDir
	}
	if c.UploadsDir == "" {
		c.UploadsDir = DefaultUploadsDir
	}
	switch strings.ToLower(c.LogLevel) {
	case "":
		c.LogLevel = DefaultLogLevel
	case "debug", "info", "warn", "warning", "error":
		// ok
	default:
		return fmt.Errorf("config: unknown log level %q", c.LogLevel)
	}
	return nil
}

func overrideString(lookup func(string) (string, bool), key string, target *string) {
	if lookup == nil || target == nil {
		return
	}
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		*target = strings.TrimSpace(value)
	}
}
