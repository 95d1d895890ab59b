// pkg/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/David-Botos/orders-etl/pkg/model"
)

// Config represents the pipeline configuration. It is built once at start
// up and passed by value to every stage; nothing mutates it afterwards.
type Config struct {
	// Input and output locations
	RawDir       string `yaml:"raw_dir" validate:"required"`
	ProcessedDir string `yaml:"processed_dir" validate:"required"`
	OrdersFile   string `yaml:"orders_file" validate:"required"`
	UsersFile    string `yaml:"users_file" validate:"required"`

	// Cleaning
	StatusSynonyms   map[string]string `yaml:"status_synonyms"`
	TimestampFormats []string          `yaml:"timestamp_formats" validate:"min=1,dive,required"`
	OrderNullWatch   []string          `yaml:"order_null_watch" validate:"unique,dive,required"`
	UserNullWatch    []string          `yaml:"user_null_watch" validate:"unique,dive,required"`

	// Outlier detection
	OutlierColumns []string `yaml:"outlier_columns" validate:"unique,dive,oneof=amount quantity"`
	OutlierK       float64  `yaml:"outlier_k" validate:"gt=0"`

	// Logging
	LogLevel  string `yaml:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string `yaml:"log_format" validate:"oneof=json console"`
}

// Environment variables accepted as path overrides
const (
	EnvRawDir       = "ETL_RAW_DIR"
	EnvProcessedDir = "ETL_OUT_DIR"
)

// DefaultStatusSynonyms is the fixed status synonym table. Keys are
// normalized values (trimmed, lower-cased).
func DefaultStatusSynonyms() map[string]string {
	return map[string]string{
		"paid":     "paid",
		"refund":   "refund",
		"refunded": "refund",
	}
}

// DefaultTimestampFormats lists accepted timestamp layouts in the order
// they are tried. The first layout that parses wins.
func DefaultTimestampFormats() []string {
	return []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"2006-01-02",
		"2006/01/02",
		"01/02/2006",
	}
}

// Default returns the configuration used when no file or override is given
func Default() Config {
	return Config{
		RawDir:           filepath.Join("data", "raw"),
		ProcessedDir:     filepath.Join("data", "processed"),
		OrdersFile:       "orders.csv",
		UsersFile:        "users.csv",
		StatusSynonyms:   DefaultStatusSynonyms(),
		TimestampFormats: DefaultTimestampFormats(),
		OrderNullWatch:   []string{"amount", "quantity", "created_at"},
		UserNullWatch:    []string{"country", "signup_at"},
		OutlierColumns:   []string{"amount"},
		OutlierK:         1.5,
		LogLevel:         "info",
		LogFormat:        "console",
	}
}

// LoadConfig builds the configuration from defaults, an optional YAML file
// and the path override environment variables, in that order of precedence
func LoadConfig(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		cfg.StatusSynonyms = nil
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		cfg.StatusSynonyms = mergeSynonyms(DefaultStatusSynonyms(), cfg.StatusSynonyms)
	}

	cfg.RawDir = getEnv(EnvRawDir, cfg.RawDir)
	cfg.ProcessedDir = getEnv(EnvProcessedDir, cfg.ProcessedDir)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadEnvFile loads a .env file into the process environment if present
func LoadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// Validate ensures all required configuration is present and valid
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: field %s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	if err := checkWatchList("order_null_watch", c.OrderNullWatch, model.OrderColumnNames()); err != nil {
		return err
	}
	if err := checkWatchList("user_null_watch", c.UserNullWatch, model.UserColumnNames()); err != nil {
		return err
	}
	return nil
}

// OrdersPath returns the path of the raw orders extract
func (c Config) OrdersPath() string {
	return filepath.Join(c.RawDir, c.OrdersFile)
}

// UsersPath returns the path of the raw users extract
func (c Config) UsersPath() string {
	return filepath.Join(c.RawDir, c.UsersFile)
}

// WithPaths returns a copy with the given directory overrides applied.
// Empty arguments leave the current value in place.
func (c Config) WithPaths(rawDir, processedDir string) Config {
	if rawDir != "" {
		c.RawDir = rawDir
	}
	if processedDir != "" {
		c.ProcessedDir = processedDir
	}
	return c
}

// mergeSynonyms layers overrides on top of base. Override keys are
// normalized the way status values are (trimmed, lower-cased, inner
// whitespace collapsed) so they match at lookup time.
func mergeSynonyms(base, overrides map[string]string) map[string]string {
	for key, value := range overrides {
		base[normalizeKey(key)] = value
	}
	return base
}

func normalizeKey(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func checkWatchList(field string, watch, known []string) error {
	allowed := make(map[string]struct{}, len(known))
	for _, name := range known {
		allowed[name] = struct{}{}
	}
	for _, name := range watch {
		if _, ok := allowed[name]; !ok {
			return fmt.Errorf("invalid config: %s references unknown column %q", field, name)
		}
	}
	return nil
}

// Helper functions for environment variables
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
