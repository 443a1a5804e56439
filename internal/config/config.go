// Package config provides environment-variable-first configuration loading
// with optional YAML file fallback for the SMTP-to-Telegram bridge.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the complete application configuration.
type Config struct {
	SMTP      SMTPConfig     `yaml:"smtp"`
	Telegram  TelegramConfig `yaml:"telegram"`
	SES       SESConfig      `yaml:"ses"`
	TLS       TLSConfig      `yaml:"tls"`
	Logging   LoggingConfig  `yaml:"logging"`
	Publisher string         `yaml:"publisher"`
	AutoStart bool           `yaml:"auto_start"`
}

// SMTPConfig holds the inbound SMTP listener configuration.
type SMTPConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// ClaimTLS makes the banner claim TLS readiness without enforcing a
	// handshake. Fixed-function register firmware often insists on a
	// "secure" banner while never actually negotiating.
	ClaimTLS bool `yaml:"claim_tls"`

	// WrapTLS wraps every accepted connection with the certificate from
	// the TLS section (or a generated self-signed one).
	WrapTLS bool `yaml:"wrap_tls"`
}

// TelegramConfig holds the Telegram Bot API destination.
type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID string `yaml:"chat_id"`
}

// SESConfig holds the AWS SES relay destination used when no chat bot
// is available at a site.
type SESConfig struct {
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Sender          string `yaml:"sender"`
	Recipient       string `yaml:"recipient"`
}

// TLSConfig holds TLS certificate file paths.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load loads configuration from environment variables with sensible defaults.
// Environment variables always take precedence.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.applyEnvVars()
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file as the base layer,
// then overrides with environment variables. Returns an error if the
// specified file path does not exist.
func LoadFromFile(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Environment variables always override YAML values
	cfg.applyEnvVars()

	return cfg, nil
}

// Addr returns the listener address in host:port form.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.SMTP.Host, strconv.Itoa(c.SMTP.Port))
}

// TelegramConfigured returns true if both the bot token and chat ID are set.
func (c *Config) TelegramConfigured() bool {
	return c.Telegram.Token != "" && c.Telegram.ChatID != ""
}

// SESConfigured returns true if the SES region, sender and recipient are set.
func (c *Config) SESConfigured() bool {
	return c.SES.Region != "" && c.SES.Sender != "" && c.SES.Recipient != ""
}

// applyDefaults sets sensible default values for all configuration fields.
func (c *Config) applyDefaults() {
	c.SMTP.Port = 2525
	c.Logging.Level = "info"
	c.AutoStart = true
}

// applyEnvVars overrides configuration with environment variable values.
// Only non-empty environment variables override existing values.
func (c *Config) applyEnvVars() {
	if v := os.Getenv("SMTP_HOST"); v != "" {
		c.SMTP.Host = v
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.SMTP.Port = port
		}
	}
	if v := os.Getenv("SMTP_CLAIM_TLS"); v != "" {
		c.SMTP.ClaimTLS = parseBool(v)
	}
	if v := os.Getenv("SMTP_WRAP_TLS"); v != "" {
		c.SMTP.WrapTLS = parseBool(v)
	}

	if v := os.Getenv("TELEGRAM_TOKEN"); v != "" {
		c.Telegram.Token = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}

	if v := os.Getenv("SES_REGION"); v != "" {
		c.SES.Region = v
	}
	if v := os.Getenv("SES_ACCESS_KEY_ID"); v != "" {
		c.SES.AccessKeyID = v
	}
	if v := os.Getenv("SES_SECRET_ACCESS_KEY"); v != "" {
		c.SES.SecretAccessKey = v
	}
	if v := os.Getenv("SES_SENDER"); v != "" {
		c.SES.Sender = v
	}
	if v := os.Getenv("SES_RECIPIENT"); v != "" {
		c.SES.Recipient = v
	}

	if v := os.Getenv("TLS_CERT_FILE"); v != "" {
		c.TLS.CertFile = v
	}
	if v := os.Getenv("TLS_KEY_FILE"); v != "" {
		c.TLS.KeyFile = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("PUBLISHER"); v != "" {
		c.Publisher = strings.ToLower(v)
	}
	if v := os.Getenv("AUTO_START"); v != "" {
		c.AutoStart = parseBool(v)
	}
}

// parseBool accepts the usual truthy spellings; anything else is false.
func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
