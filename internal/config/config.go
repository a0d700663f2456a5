package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	AppMode  string
	Port     string
	LogLevel string
	Origins  string
	Database DatabaseConfig
	JWT      JWTConfig
	Cookie   CookieConfig
	Admin    AdminConfig
	Scanner  ScannerConfig
	Mail     MailConfig
	Tasks    TasksConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver     string // mysql | sqlite
	Host       string
	Port       string
	User       string
	Password   string
	DBName     string
	SQLitePath string
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret           string
	RefreshSecret    string
	VerifySecret     string
	AccessTokenMins  int
	RefreshTokenDays int
	VerifyTokenTTL   time.Duration
}

// CookieConfig holds refresh cookie configuration
type CookieConfig struct {
	Secure   bool
	SameSite string
	Domain   string
}

// AdminConfig holds the admin bootstrap settings
type AdminConfig struct {
	BootstrapCode string
}

// ScannerConfig controls the overdue scanner
type ScannerConfig struct {
	Enabled       bool
	Schedule      string // cron spec, "@every 24h" by default
	Window        time.Duration
	NotifyTimeout time.Duration
}

// MailConfig holds outbound email settings
type MailConfig struct {
	Enabled       bool // false = log-only sender
	Host          string
	Port          int
	Username      string
	Password      string
	From          string
	UseTLS        bool
	VerifyURLBase string
}

// TasksConfig configures the backlite queue used for bulk mail
type TasksConfig struct {
	Enabled         bool
	DBPath          string
	Workers         int
	ReleaseAfter    time.Duration
	CleanupInterval time.Duration
}

// Global config instance
var AppConfig *Config

// Load reads configuration from .env file and environment variables
func Load() (*Config, error) {
	// .env is optional in production
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	appMode := strings.TrimSpace(v.GetString("APP_MODE"))
	if appMode != "dev" && appMode != "prod" {
		return nil, fmt.Errorf("invalid APP_MODE: '%s' (must be 'dev' or 'prod')", appMode)
	}

	prefix := "DEV_"
	if appMode == "prod" {
		prefix = "PROD_"
	}

	config := &Config{
		AppMode:  appMode,
		Port:     v.GetString("PORT"),
		LogLevel: v.GetString("LOG_LEVEL"),
		Origins:  v.GetString("ALLOWED_ORIGINS"),
		Database: DatabaseConfig{
			Driver:     strings.ToLower(strings.TrimSpace(v.GetString(prefix + "DB_DRIVER"))),
			Host:       v.GetString(prefix + "DB_HOST"),
			Port:       v.GetString(prefix + "DB_PORT"),
			User:       v.GetString(prefix + "DB_USER"),
			Password:   v.GetString(prefix + "DB_PASS"),
			DBName:     v.GetString(prefix + "DB_NAME"),
			SQLitePath: v.GetString(prefix + "DB_PATH"),
		},
		JWT: JWTConfig{
			Secret:           v.GetString(prefix + "JWT_SECRET"),
			RefreshSecret:    v.GetString(prefix + "JWT_REFRESH_SECRET"),
			VerifySecret:     v.GetString(prefix + "JWT_VERIFY_SECRET"),
			AccessTokenMins:  v.GetInt("ACCESS_TOKEN_MINUTES"),
			RefreshTokenDays: v.GetInt("REFRESH_TOKEN_DAYS"),
			VerifyTokenTTL:   v.GetDuration("VERIFY_TOKEN_TTL"),
		},
		Cookie: CookieConfig{
			Secure:   v.GetBool(prefix + "COOKIE_SECURE"),
			SameSite: v.GetString("COOKIE_SAMESITE"),
			Domain:   v.GetString("COOKIE_DOMAIN"),
		},
		Admin: AdminConfig{
			BootstrapCode: strings.TrimSpace(v.GetString("ADMIN_BOOTSTRAP_CODE")),
		},
		Scanner: ScannerConfig{
			Enabled:       v.GetBool("OVERDUE_SCAN_ENABLED"),
			Schedule:      v.GetString("OVERDUE_SCAN_SCHEDULE"),
			Window:        v.GetDuration("OVERDUE_SCAN_WINDOW"),
			NotifyTimeout: v.GetDuration("OVERDUE_NOTIFY_TIMEOUT"),
		},
		Mail: MailConfig{
			Enabled:       v.GetBool("MAIL_ENABLED"),
			Host:          v.GetString("SMTP_HOST"),
			Port:          v.GetInt("SMTP_PORT"),
			Username:      v.GetString("SMTP_USER"),
			Password:      v.GetString("SMTP_PASS"),
			From:          v.GetString("MAIL_FROM"),
			UseTLS:        v.GetBool("SMTP_TLS"),
			VerifyURLBase: strings.TrimRight(v.GetString("VERIFY_URL_BASE"), "/"),
		},
		Tasks: TasksConfig{
			Enabled:         v.GetBool("TASKS_ENABLED"),
			DBPath:          v.GetString("TASKS_DB_PATH"),
			Workers:         v.GetInt("TASK_WORKERS"),
			ReleaseAfter:    v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval: v.GetDuration("TASK_CLEANUP_INTERVAL"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	AppConfig = config
	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_MODE", "dev")
	v.SetDefault("PORT", "3000")
	v.SetDefault("LOG_LEVEL", "")
	v.SetDefault("ALLOWED_ORIGINS", "")

	// dev runs on sqlite, prod on mysql
	v.SetDefault("DEV_DB_DRIVER", "sqlite")
	v.SetDefault("PROD_DB_DRIVER", "mysql")
	for _, p := range []string{"DEV_", "PROD_"} {
		v.SetDefault(p+"DB_HOST", "localhost")
		v.SetDefault(p+"DB_PORT", "3306")
		v.SetDefault(p+"DB_USER", "root")
		v.SetDefault(p+"DB_PASS", "")
		v.SetDefault(p+"DB_NAME", "libristack")
		v.SetDefault(p+"DB_PATH", "./data/libristack.db")
		v.SetDefault(p+"JWT_SECRET", "default_secret")
		v.SetDefault(p+"JWT_REFRESH_SECRET", "default_refresh_secret")
		v.SetDefault(p+"JWT_VERIFY_SECRET", "default_verify_secret")
		v.SetDefault(p+"COOKIE_SECURE", false)
	}

	v.SetDefault("ACCESS_TOKEN_MINUTES", 15)
	v.SetDefault("REFRESH_TOKEN_DAYS", 7)
	v.SetDefault("VERIFY_TOKEN_TTL", "1h")
	v.SetDefault("COOKIE_SAMESITE", "lax")
	v.SetDefault("COOKIE_DOMAIN", "")

	v.SetDefault("ADMIN_BOOTSTRAP_CODE", "ROOT1")

	v.SetDefault("OVERDUE_SCAN_ENABLED", true)
	v.SetDefault("OVERDUE_SCAN_SCHEDULE", "@every 24h")
	v.SetDefault("OVERDUE_SCAN_WINDOW", "24h")
	v.SetDefault("OVERDUE_NOTIFY_TIMEOUT", "10s")

	v.SetDefault("MAIL_ENABLED", false)
	v.SetDefault("SMTP_HOST", "localhost")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_TLS", true)
	v.SetDefault("MAIL_FROM", "library@localhost")
	v.SetDefault("VERIFY_URL_BASE", "http://localhost:5173/verify")

	v.SetDefault("TASKS_ENABLED", true)
	v.SetDefault("TASKS_DB_PATH", "./data/tasks.db")
	v.SetDefault("TASK_WORKERS", 2)
	v.SetDefault("TASK_RELEASE_AFTER", "5m")
	v.SetDefault("TASK_CLEANUP_INTERVAL", "1h")
}

// Validate checks values that would otherwise fail late at runtime
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mysql", "sqlite":
	default:
		return fmt.Errorf("invalid DB_DRIVER: '%s' (must be 'mysql' or 'sqlite')", c.Database.Driver)
	}

	if c.Admin.BootstrapCode == "" {
		return fmt.Errorf("ADMIN_BOOTSTRAP_CODE must not be empty")
	}

	if c.Scanner.Enabled {
		if _, err := cron.ParseStandard(c.Scanner.Schedule); err != nil {
			return fmt.Errorf("invalid OVERDUE_SCAN_SCHEDULE '%s': %w", c.Scanner.Schedule, err)
		}
	}
	if c.Scanner.Window <= 0 {
		return fmt.Errorf("OVERDUE_SCAN_WINDOW must be positive")
	}
	if c.Scanner.NotifyTimeout <= 0 {
		return fmt.Errorf("OVERDUE_NOTIFY_TIMEOUT must be positive")
	}

	if c.Tasks.Enabled && c.Tasks.Workers < 1 {
		return fmt.Errorf("TASK_WORKERS must be at least 1")
	}

	if c.JWT.AccessTokenMins <= 0 || c.JWT.RefreshTokenDays <= 0 {
		return fmt.Errorf("token lifetimes must be positive")
	}

	if c.IsProd() && c.JWT.Secret == "default_secret" {
		return fmt.Errorf("PROD_JWT_SECRET must be set in prod mode")
	}

	return nil
}

// IsDev returns true if running in development mode
func (c *Config) IsDev() bool {
	return c.AppMode == "dev"
}

// IsProd returns true if running in production mode
func (c *Config) IsProd() bool {
	return c.AppMode == "prod"
}

// GetAllowedOrigins returns allowed origins for CORS
func (c *Config) GetAllowedOrigins() string {
	origins := c.Origins
	if origins == "" {
		if c.IsDev() {
			return "*"
		}
		return "http://localhost:5173"
	}
	return origins
}
