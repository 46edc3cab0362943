package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/allotter/internal/sheetsync"
)

type Config struct {
	Server struct {
		Port       string `toml:"port"`
		EnableAuth bool   `toml:"enable_auth"`
	} `toml:"server"`

	Auth struct {
		GoogleClientID string `toml:"google_client_id"`
		JWTSecret      string `toml:"jwt_secret"`
		SessionTTL     string `toml:"session_ttl"`
		CookieName     string `toml:"cookie_name"`
		CookieSecure   bool   `toml:"cookie_secure"`
		RedisURL       string `toml:"redis_url"`
		SessionKeyTpl  string `toml:"session_key_template"`
		// Used only with enable_auth = false, for local development.
		DevEmailHeader string `toml:"dev_email_header"`
	} `toml:"auth"`

	Database struct {
		DSN string `toml:"dsn"`
	} `toml:"database"`

	GSheet GSheetConfig `toml:"gsheet"`

	Mapping MappingConfig `toml:"mapping"`

	Audit struct {
		Path  string `toml:"path"`
		Level string `toml:"level"`
	} `toml:"audit"`

	Sync struct {
		Schedule   string `toml:"schedule"`
		RunOnStart bool   `toml:"run_on_start"`
	} `toml:"sync"`

	sessionTTL time.Duration
}

type GSheetConfig struct {
	SpreadsheetID   string `toml:"spreadsheet_id"`
	CredentialsPath string `toml:"credentials_path"`
	ClientEmail     string `toml:"client_email"`
	PrivateKey      string `toml:"private_key"`
	MaxRetries      int    `toml:"max_retries"`
}

// MappingConfig overrides the header heuristics. Zero values keep defaults.
type MappingConfig struct {
	Version          int                 `toml:"version"`
	PreferredSheet   string              `toml:"preferred_sheet"`
	PreviewRows      int                 `toml:"preview_rows"`
	LastColumn       string              `toml:"last_column"`
	PrimaryRequired  []string            `toml:"primary_required"`
	FallbackRequired []string            `toml:"fallback_required"`
	EmailColumn      *int                `toml:"email_column"`
	Keywords         map[string][]string `toml:"keywords"`
}

const (
	defaultSessionTTL    = 24 * time.Hour
	defaultCookieName    = "allotter_session"
	defaultSessionKeyTpl = "session:%s"
	defaultDevHeader     = "X-Teacher-Email"
	defaultMaxRetries    = 5
)

// LoadConfig reads the TOML file, then lets the environment (and a .env file
// in the working directory, when present) override secrets.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Error.Printf("Failed to load .env: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	return parseConfig(path, data)
}

func parseConfig(path string, data []byte) (*Config, error) {
	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf(
			"error reading config file %s\n> Error: %w",
			path,
			err,
		)
	}

	config.applyEnv()
	config.applyDefaults()

	if err := config.validate(); err != nil {
		return nil, err
	}

	logger.Debug.Printf("Loaded mapping config: %+v", config.Mapping)

	return &config, nil
}

func (c *Config) applyEnv() {
	override := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	override(&c.GSheet.ClientEmail, "GOOGLE_CLIENT_EMAIL")
	override(&c.GSheet.PrivateKey, "GOOGLE_PRIVATE_KEY")
	override(&c.GSheet.SpreadsheetID, "GOOGLE_SPREADSHEET_ID")
	override(&c.Auth.GoogleClientID, "GOOGLE_CLIENT_ID")
	override(&c.Auth.JWTSecret, "JWT_SECRET")
	override(&c.Database.DSN, "DATABASE_DSN")
	override(&c.Auth.RedisURL, "REDIS_URL")

	// keys pasted into env files usually carry literal \n
	c.GSheet.PrivateKey = strings.ReplaceAll(c.GSheet.PrivateKey, `\n`, "\n")
}

func (c *Config) applyDefaults() {
	if c.Auth.CookieName == "" {
		c.Auth.CookieName = defaultCookieName
	}
	if c.Auth.SessionKeyTpl == "" {
		c.Auth.SessionKeyTpl = defaultSessionKeyTpl
	}
	if c.Auth.DevEmailHeader == "" {
		c.Auth.DevEmailHeader = defaultDevHeader
	}
	if c.GSheet.MaxRetries <= 0 {
		c.GSheet.MaxRetries = defaultMaxRetries
	}
}

func (c *Config) validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("Server port is not specified in config, use a value like :9999")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database dsn is not specified")
	}

	c.sessionTTL = defaultSessionTTL
	if c.Auth.SessionTTL != "" {
		ttl, err := time.ParseDuration(c.Auth.SessionTTL)
		if err != nil {
			return fmt.Errorf("invalid auth.session_ttl %q: %w", c.Auth.SessionTTL, err)
		}
		c.sessionTTL = ttl
	}

	if c.Server.EnableAuth {
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("auth is enabled but JWT_SECRET is not set")
		}
		if c.Auth.GoogleClientID == "" {
			return fmt.Errorf("auth is enabled but GOOGLE_CLIENT_ID is not set")
		}
	}

	if _, err := c.SyncOptions(); err != nil {
		return err
	}
	return nil
}

// SessionTTL is the parsed auth.session_ttl.
func (c *Config) SessionTTL() time.Duration {
	if c.sessionTTL == 0 {
		return defaultSessionTTL
	}
	return c.sessionTTL
}

// SyncOptions layers the [mapping] section over the built-in heuristics.
func (c *Config) SyncOptions() (sheetsync.Options, error) {
	opts := sheetsync.DefaultOptions()
	m := c.Mapping

	if m.PreferredSheet != "" {
		opts.Locator.PreferredSheet = m.PreferredSheet
	}
	if m.PreviewRows > 0 {
		opts.Locator.PreviewRows = m.PreviewRows
	}
	if m.LastColumn != "" {
		opts.Locator.LastColumn = strings.ToUpper(m.LastColumn)
	}
	if len(m.PrimaryRequired) > 0 {
		opts.Locator.PrimaryRequired = lowerAll(m.PrimaryRequired)
	}
	if len(m.FallbackRequired) > 0 {
		opts.Locator.FallbackRequired = lowerAll(m.FallbackRequired)
	}
	if m.EmailColumn != nil {
		opts.EmailColumn = *m.EmailColumn
	}

	table, err := opts.Keywords.WithOverrides(m.Version, m.Keywords)
	if err != nil {
		return sheetsync.Options{}, fmt.Errorf("invalid [mapping] section: %w", err)
	}
	opts.Keywords = table

	return opts, nil
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(strings.TrimSpace(s))
	}
	return out
}
