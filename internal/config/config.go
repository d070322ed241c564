package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// FileName is the optional project-level configuration file
const FileName = "storefront.yaml"

// Config holds all configuration for the storefront client
type Config struct {
	API        APIConfig        `yaml:"api"`
	Session    SessionConfig    `yaml:"session"`
	Logging    LoggingConfig    `yaml:"logging"`
	Revalidate RevalidateConfig `yaml:"revalidate"`
}

// APIConfig describes the storefront backend
type APIConfig struct {
	BaseURL       string        `yaml:"base_url"`
	MePath        string        `yaml:"me_path"`
	LogoutPath    string        `yaml:"logout_path"`
	LoginPath     string        `yaml:"login_path"`
	RegisterPath  string        `yaml:"register_path"`
	VerifyOTPPath string        `yaml:"verify_otp_path"`
	Timeout       time.Duration `yaml:"timeout"`
}

// SessionConfig holds client-side routing for auth flows
type SessionConfig struct {
	SignInRoute string `yaml:"sign_in_route"`
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json, console
}

// RevalidateConfig controls periodic session re-fetching
type RevalidateConfig struct {
	Schedule string `yaml:"schedule"` // cron spec, e.g. "@every 5m"; empty disables
}

// Default returns the configuration used when nothing else is set
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:       "http://localhost:3000",
			MePath:        "/api/users/me",
			LogoutPath:    "/api/users/logout",
			LoginPath:     "/api/users/login",
			RegisterPath:  "/api/users/register",
			VerifyOTPPath: "/api/users/verify-otp",
			Timeout:       30 * time.Second,
		},
		Session: SessionConfig{
			SignInRoute: "/signin",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load builds the configuration from defaults, storefront.yaml (if found in
// the current directory or a parent) and environment variables, in that
// order of precedence from lowest to highest.
func Load() (*Config, error) {
	// Load .env files (fails silently if files don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	cfg := Default()

	if path, err := FindConfigFile(); err == nil {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// FindConfigFile searches for storefront.yaml in current directory and parent directories
func FindConfigFile() (string, error) {
	currentDir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}

	dir := currentDir
	for {
		configPath := filepath.Join(dir, FileName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("%s not found in %s or any parent directory", FileName, currentDir)
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return nil
}

func applyEnv(cfg *Config) error {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setString("STOREFRONT_API_BASE_URL", &cfg.API.BaseURL)
	setString("STOREFRONT_ME_PATH", &cfg.API.MePath)
	setString("STOREFRONT_LOGOUT_PATH", &cfg.API.LogoutPath)
	setString("STOREFRONT_LOGIN_PATH", &cfg.API.LoginPath)
	setString("STOREFRONT_REGISTER_PATH", &cfg.API.RegisterPath)
	setString("STOREFRONT_VERIFY_OTP_PATH", &cfg.API.VerifyOTPPath)
	setString("STOREFRONT_SIGN_IN_ROUTE", &cfg.Session.SignInRoute)
	setString("STOREFRONT_REVALIDATE_SCHEDULE", &cfg.Revalidate.Schedule)
	setString("LOG_LEVEL", &cfg.Logging.Level)
	setString("LOG_FORMAT", &cfg.Logging.Format)

	if v := os.Getenv("STOREFRONT_HTTP_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid STOREFRONT_HTTP_TIMEOUT %q: %w", v, err)
		}
		cfg.API.Timeout = d
	}

	return nil
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid API base URL %q: %w", c.API.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid API base URL %q: scheme must be http or https", c.API.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid API base URL %q: missing host", c.API.BaseURL)
	}

	for name, p := range map[string]string{
		"me_path":         c.API.MePath,
		"logout_path":     c.API.LogoutPath,
		"login_path":      c.API.LoginPath,
		"register_path":   c.API.RegisterPath,
		"verify_otp_path": c.API.VerifyOTPPath,
		"sign_in_route":   c.Session.SignInRoute,
	} {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("%s must start with '/', got %q", name, p)
		}
	}

	if c.API.Timeout <= 0 {
		return fmt.Errorf("API timeout must be positive, got %s", c.API.Timeout)
	}

	if c.Revalidate.Schedule != "" {
		if _, err := cron.ParseStandard(c.Revalidate.Schedule); err != nil {
			return fmt.Errorf("invalid revalidate schedule %q: %w", c.Revalidate.Schedule, err)
		}
	}

	return nil
}
