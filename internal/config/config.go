package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Email providers
const (
	ProviderEmailJS = "emailjs"
	ProviderGmail   = "gmail"
	ProviderSMTP    = "smtp"
	ProviderLog     = "log"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Log      LogConfig      `mapstructure:"log"`
	Security SecurityConfig `mapstructure:"security"`
	Contact  ContactConfig  `mapstructure:"contact"`
	Email    EmailConfig    `mapstructure:"email"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// AllowedOrigins lists the portfolio front-end origins for CORS and WebSocket upgrades
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	// SecureCookies sets the Secure flag on the session cookie
	SecureCookies bool `mapstructure:"secure_cookies"`
	// TrustProxy takes the client IP from X-Forwarded-For. Enable it only
	// behind a reverse proxy that appends to that header.
	TrustProxy bool `mapstructure:"trust_proxy"`
}

// Addr returns the listen address
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	RateLimiting RateLimitingConfig `mapstructure:"rate_limiting"`
}

// RateLimitingConfig holds the per-IP limit on contact submissions. It
// complements the per-session cooldown and needs Redis.
type RateLimitingConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	SubmitLimit  int           `mapstructure:"submit_limit"`
	SubmitWindow time.Duration `mapstructure:"submit_window"`
}

// ContactConfig holds the contact form pipeline configuration
type ContactConfig struct {
	// ServiceID, TemplateID and PublicKey identify the delivery service, the
	// message template and the caller
	ServiceID  string `mapstructure:"service_id"`
	TemplateID string `mapstructure:"template_id"`
	PublicKey  string `mapstructure:"public_key"`
	// CooldownSeconds is the wait after a successful send (default: 60)
	CooldownSeconds int `mapstructure:"cooldown_seconds"`
	// TickInterval is how often the cooldown advances by one second (default: 1s)
	TickInterval time.Duration `mapstructure:"tick_interval"`
	// DeliveryTimeout bounds one call to the delivery service (default: 15s)
	DeliveryTimeout time.Duration `mapstructure:"delivery_timeout"`
	// SessionIdleTTL is how long an untouched form instance is kept (default: 30m)
	SessionIdleTTL time.Duration `mapstructure:"session_idle_ttl"`
}

// EmailConfig holds email delivery configuration
type EmailConfig struct {
	// Provider is the delivery backend: "emailjs", "gmail", "smtp" or "log"
	Provider string `mapstructure:"provider"`
	// AppName is shown in contact emails (defaults to "Portfolio")
	AppName string `mapstructure:"app_name"`
	// Recipient is the site owner's address for self-hosted providers
	Recipient string             `mapstructure:"recipient"`
	EmailJS   EmailJSEmailConfig `mapstructure:"emailjs"`
	Gmail     GmailEmailConfig   `mapstructure:"gmail"`
	SMTP      SMTPEmailConfig    `mapstructure:"smtp"`
}

// EmailJSEmailConfig holds EmailJS REST API configuration
type EmailJSEmailConfig struct {
	Endpoint    string `mapstructure:"endpoint"`
	AccessToken string `mapstructure:"access_token"`
	Origin      string `mapstructure:"origin"`
}

// GmailEmailConfig holds Gmail API configuration
type GmailEmailConfig struct {
	// CredentialsJSON is the service account credentials JSON content
	CredentialsJSON string `mapstructure:"credentials_json"`
	// ClientID for OAuth2 token-based auth (alternative to service account)
	ClientID string `mapstructure:"client_id"`
	// ClientSecret for OAuth2 token-based auth
	ClientSecret string `mapstructure:"client_secret"`
	// RefreshToken for OAuth2 token-based auth
	RefreshToken string `mapstructure:"refresh_token"`
	// SenderAddress is the "From" email address
	SenderAddress string `mapstructure:"sender_address"`
	// SenderName is the display name for the sender
	SenderName string `mapstructure:"sender_name"`
}

// SMTPEmailConfig holds SMTP submission configuration
type SMTPEmailConfig struct {
	Host     string     `mapstructure:"host"`
	Port     int        `mapstructure:"port"`
	Username string     `mapstructure:"username"`
	Password string     `mapstructure:"password"`
	From     string     `mapstructure:"from"`
	FromName string     `mapstructure:"from_name"`
	DKIM     DKIMConfig `mapstructure:"dkim"`
}

// DKIMConfig holds optional DKIM signing configuration
type DKIMConfig struct {
	Domain   string `mapstructure:"domain"`
	Selector string `mapstructure:"selector"`
	KeyFile  string `mapstructure:"key_file"`
}

// Load reads configuration from .env, the config file and environment variables
func Load() (*Config, error) {
	cfg, _, err := load("")
	return cfg, err
}

// LoadFile is like Load but reads the given config file instead of searching for one
func LoadFile(path string) (*Config, error) {
	cfg, _, err := load(path)
	return cfg, err
}

func load(path string) (*Config, *viper.Viper, error) {
	// .env is optional; real environment variables win over it
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/folio")
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("FOLIO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, v, nil
}

// Watch loads configuration like LoadFile and calls onChange with the
// re-read configuration whenever the file changes on disk. Invalid edits are
// reported through onError and otherwise ignored.
func Watch(path string, onChange func(*Config), onError func(error)) (*Config, error) {
	cfg, v, err := load(path)
	if err != nil {
		return nil, err
	}
	if v.ConfigFileUsed() == "" {
		return cfg, nil
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		var next Config
		if err := v.Unmarshal(&next); err != nil {
			if onError != nil {
				onError(fmt.Errorf("failed to reload %s: %w", e.Name, err))
			}
			return
		}
		onChange(&next)
	})
	v.WatchConfig()

	return cfg, nil
}

// Validate checks that the configuration can drive the contact pipeline
func (c *Config) Validate() error {
	var errs []error

	if c.Contact.ServiceID == "" {
		errs = append(errs, errors.New("contact.service_id is required"))
	}
	if c.Contact.TemplateID == "" {
		errs = append(errs, errors.New("contact.template_id is required"))
	}
	if c.Contact.PublicKey == "" {
		errs = append(errs, errors.New("contact.public_key is required"))
	}
	if c.Contact.CooldownSeconds <= 0 {
		errs = append(errs, errors.New("contact.cooldown_seconds must be positive"))
	}
	if c.Contact.TickInterval <= 0 {
		errs = append(errs, errors.New("contact.tick_interval must be positive"))
	}

	switch c.Email.Provider {
	case ProviderEmailJS, ProviderLog:
	case ProviderGmail, ProviderSMTP:
		if c.Email.Recipient == "" {
			errs = append(errs, fmt.Errorf("email.recipient is required for provider %q", c.Email.Provider))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown email.provider %q", c.Email.Provider))
	}

	if rl := c.Security.RateLimiting; rl.Enabled {
		if !c.Redis.Enabled {
			errs = append(errs, errors.New("security.rate_limiting requires redis.enabled"))
		}
		if rl.SubmitLimit <= 0 {
			errs = append(errs, errors.New("security.rate_limiting.submit_limit must be positive"))
		}
		// Redis drops a key given a zero or negative expiry
		if rl.SubmitWindow <= 0 {
			errs = append(errs, errors.New("security.rate_limiting.submit_window must be positive"))
		}
	}

	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.secure_cookies", false)
	v.SetDefault("server.trust_proxy", false)

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Security defaults
	v.SetDefault("security.rate_limiting.enabled", false)
	v.SetDefault("security.rate_limiting.submit_limit", 5)
	v.SetDefault("security.rate_limiting.submit_window", "1h")

	// Contact defaults
	v.SetDefault("contact.service_id", "")
	v.SetDefault("contact.template_id", "")
	v.SetDefault("contact.public_key", "")
	v.SetDefault("contact.cooldown_seconds", 60)
	v.SetDefault("contact.tick_interval", "1s")
	v.SetDefault("contact.delivery_timeout", "15s")
	v.SetDefault("contact.session_idle_ttl", "30m")

	// Email defaults
	v.SetDefault("email.provider", ProviderEmailJS)
	v.SetDefault("email.app_name", "Portfolio")
	v.SetDefault("email.recipient", "")
	v.SetDefault("email.emailjs.endpoint", "https://api.emailjs.com/api/v1.0/email/send")
	v.SetDefault("email.emailjs.access_token", "")
	v.SetDefault("email.emailjs.origin", "")
	v.SetDefault("email.gmail.credentials_json", "")
	v.SetDefault("email.gmail.client_id", "")
	v.SetDefault("email.gmail.client_secret", "")
	v.SetDefault("email.gmail.refresh_token", "")
	v.SetDefault("email.gmail.sender_address", "")
	v.SetDefault("email.gmail.sender_name", "Portfolio")
	v.SetDefault("email.smtp.host", "")
	v.SetDefault("email.smtp.port", 587)
	v.SetDefault("email.smtp.username", "")
	v.SetDefault("email.smtp.password", "")
	v.SetDefault("email.smtp.from", "")
	v.SetDefault("email.smtp.from_name", "Portfolio")
	v.SetDefault("email.smtp.dkim.domain", "")
	v.SetDefault("email.smtp.dkim.selector", "")
	v.SetDefault("email.smtp.dkim.key_file", "")
}
