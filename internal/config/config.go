// Package config gathers the settings of the audit servers from an optional
// .env file, an optional YAML file and the environment, in increasing order
// of precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"github.com/Epistemic-Technology/invoice-audit/internal/geometry"
)

// Parser names the selection parser implementation.
const (
	ParserBackend = "backend"
	ParserOpenAI  = "openai"
)

// Config holds every runtime setting.
type Config struct {
	BackendURL      string        `yaml:"backend_url"`
	Parser          string        `yaml:"parser"`
	OpenAIAPIKey    string        `yaml:"-"`
	DBPath          string        `yaml:"db_path"`
	HTTPAddr        string        `yaml:"http_addr"`
	ViewportWidth   float64       `yaml:"viewport_width"`
	SelectionPolicy string        `yaml:"selection_policy"`
	MinSelection    float64       `yaml:"min_selection"`
	HTTPTimeout     time.Duration `yaml:"http_timeout"`
	ZoteroAPIKey    string        `yaml:"-"`
	ZoteroLibraryID string        `yaml:"zotero_library_id"`
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		BackendURL:      "http://localhost:5000",
		Parser:          ParserBackend,
		DBPath:          defaultDBPath(),
		HTTPAddr:        ":8080",
		ViewportWidth:   800,
		SelectionPolicy: geometry.PolicyCenter.String(),
		MinSelection:    geometry.MinSelectionSize,
	}
}

func defaultDBPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "audit.db"
	}
	return filepath.Join(homeDir, ".invoice-audit", "audit.db")
}

// Load builds the configuration. A missing .env file is not an error;
// envFiles defaults to ".env" in the working directory.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		if _, err := os.Stat(".env"); err == nil {
			envFiles = []string{".env"}
		}
	}
	if len(envFiles) > 0 {
		// godotenv never overrides variables that are already set
		if err := godotenv.Load(envFiles...); err != nil {
			return Config{}, fmt.Errorf("failed to load env file: %w", err)
		}
	}

	cfg := Default()
	if path := os.Getenv("AUDIT_CONFIG_FILE"); path != "" {
		if err := cfg.readFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.BackendURL, "AUDIT_BACKEND_URL")
	setString(&c.Parser, "AUDIT_PARSER")
	setString(&c.OpenAIAPIKey, "OPENAI_API_KEY")
	setString(&c.DBPath, "AUDIT_DB_PATH")
	setString(&c.HTTPAddr, "AUDIT_HTTP_ADDR")
	setString(&c.SelectionPolicy, "AUDIT_SELECTION_POLICY")
	setString(&c.ZoteroAPIKey, "ZOTERO_API_KEY")
	setString(&c.ZoteroLibraryID, "ZOTERO_LIBRARY_ID")

	if v := os.Getenv("AUDIT_VIEWPORT_WIDTH"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid AUDIT_VIEWPORT_WIDTH %q: %w", v, err)
		}
		c.ViewportWidth = f
	}
	if v := os.Getenv("AUDIT_MIN_SELECTION"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid AUDIT_MIN_SELECTION %q: %w", v, err)
		}
		c.MinSelection = f
	}
	if v := os.Getenv("AUDIT_HTTP_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid AUDIT_HTTP_TIMEOUT %q: %w", v, err)
		}
		c.HTTPTimeout = d
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Validate checks settings that would otherwise fail later and obscurely.
func (c Config) Validate() error {
	switch c.Parser {
	case ParserBackend:
	case ParserOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("AUDIT_PARSER=openai requires OPENAI_API_KEY")
		}
	default:
		return fmt.Errorf("unknown parser %q (want %q or %q)", c.Parser, ParserBackend, ParserOpenAI)
	}
	if c.BackendURL == "" {
		return fmt.Errorf("AUDIT_BACKEND_URL must not be empty")
	}
	if _, err := geometry.ParsePolicy(c.SelectionPolicy); err != nil {
		return err
	}
	if c.ViewportWidth <= 0 {
		return fmt.Errorf("viewport width must be positive, got %v", c.ViewportWidth)
	}
	if c.MinSelection < 0 {
		return fmt.Errorf("minimum selection size must not be negative, got %v", c.MinSelection)
	}
	if c.HTTPTimeout < 0 {
		return fmt.Errorf("HTTP timeout must not be negative, got %v", c.HTTPTimeout)
	}
	return nil
}

// Policy returns the parsed selection policy. Validate has already
// rejected unknown names.
func (c Config) Policy() geometry.Policy {
	p, _ := geometry.ParsePolicy(c.SelectionPolicy)
	return p
}
