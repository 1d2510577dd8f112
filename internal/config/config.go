package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration for saweriabot.
type Config struct {
	General GeneralConfig `json:"general" yaml:"general"`
	Discord DiscordConfig `json:"discord" yaml:"discord"`
	Relay   RelayConfig   `json:"relay"   yaml:"relay"`
	Server  ServerConfig  `json:"server"  yaml:"server"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
	Alerts  AlertsConfig  `json:"alerts"  yaml:"alerts"`
}

type GeneralConfig struct {
	LogLevel  string `env:"SAWERIABOT_LOG_LEVEL"  json:"logLevel"  yaml:"logLevel"`
	LogFormat string `env:"SAWERIABOT_LOG_FORMAT" json:"logFormat" yaml:"logFormat"` // "text" | "json"
}

type DiscordConfig struct {
	Token          string `env:"DISCORD_BOT_TOKEN"          json:"token"          yaml:"token"`
	ChannelID      string `env:"DISCORD_CHANNEL_ID"         json:"channelId"      yaml:"channelId"`
	GuildID        string `env:"DISCORD_GUILD_ID"           json:"guildId"        yaml:"guildId"`
	RequireWebhook bool   `env:"SAWERIABOT_REQUIRE_WEBHOOK" json:"requireWebhook" yaml:"requireWebhook"`
	AckEmoji       string `env:"SAWERIABOT_ACK_EMOJI"       json:"ackEmoji"       yaml:"ackEmoji"`
	React          bool   `env:"SAWERIABOT_REACT"           json:"react"          yaml:"react"`
}

type RelayConfig struct {
	Endpoint       string `env:"VERCEL_API_URL"            json:"endpoint"       yaml:"endpoint"`
	SourceHeader   string `env:"SAWERIABOT_SOURCE_HEADER"  json:"sourceHeader"   yaml:"sourceHeader"`
	TimeoutSeconds int    `env:"SAWERIABOT_RELAY_TIMEOUT"  json:"timeoutSeconds" yaml:"timeoutSeconds"`
	Concurrency    int    `env:"SAWERIABOT_CONCURRENCY"    json:"concurrency"    yaml:"concurrency"`
	BufferSize     int    `env:"SAWERIABOT_BUFFER_SIZE"    json:"bufferSize"     yaml:"bufferSize"`
}

// ServerConfig configures the keep-alive HTTP server.
type ServerConfig struct {
	Enabled bool   `env:"SAWERIABOT_SERVER_ENABLED" json:"enabled" yaml:"enabled"`
	Host    string `env:"SAWERIABOT_HOST"           json:"host"    yaml:"host"`
	Port    int    `env:"PORT"                      json:"port"    yaml:"port"`
}

// MetricsConfig configures the Prometheus text endpoint on the keep-alive server.
type MetricsConfig struct {
	Enabled  bool   `env:"SAWERIABOT_METRICS_ENABLED"  json:"enabled"  yaml:"enabled"`
	Endpoint string `env:"SAWERIABOT_METRICS_ENDPOINT" json:"endpoint" yaml:"endpoint"`
}

// AlertsConfig configures where failed relays are reported.
type AlertsConfig struct {
	Telegram TelegramAlertConfig `json:"telegram" yaml:"telegram"`
	Slack    SlackAlertConfig    `json:"slack"    yaml:"slack"`
}

type TelegramAlertConfig struct {
	Enabled bool   `env:"SAWERIABOT_TELEGRAM_ENABLED" json:"enabled" yaml:"enabled"`
	Token   string `env:"SAWERIABOT_TELEGRAM_TOKEN"   json:"token"   yaml:"token"`
	ChatID  string `env:"SAWERIABOT_TELEGRAM_CHAT_ID" json:"chatId"  yaml:"chatId"`
}

type SlackAlertConfig struct {
	Enabled    bool   `env:"SAWERIABOT_SLACK_ENABLED"     json:"enabled"    yaml:"enabled"`
	WebhookURL string `env:"SAWERIABOT_SLACK_WEBHOOK_URL" json:"webhookUrl" yaml:"webhookUrl"`
}

// DefaultConfigDir returns the default config directory (~/.saweriabot).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".saweriabot"
	}
	return filepath.Join(home, ".saweriabot")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

// Load builds the effective config: defaults, then the file at path (if it
// exists), then environment variables, including those from ./.env.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("cannot load .env: %w", err)
	}

	cfg := Defaults()
	if err := readFile(path, cfg, true); err != nil {
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("cannot parse environment: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// LoadFile reads only the file at path over the defaults. ${VAR} references
// are kept as written and the environment is ignored, so the result can be
// saved back without leaking secrets from the environment into the file.
func LoadFile(path string) (*Config, error) {
	cfg := Defaults()
	if err := readFile(path, cfg, false); err != nil {
		return nil, err
	}
	return cfg, nil
}

// readFile decodes path into cfg. A missing file is not an error: env-only
// deployments have none.
func readFile(path string, cfg *Config, expand bool) error {
	path = ExpandPath(path)
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("cannot read config file %s: %w", path, err)
	}
	if expand {
		// Substitute environment variables: ${VAR} and ${VAR:-default}
		data = []byte(ExpandEnvVars(string(data)))
	}
	if err := unmarshal(path, data, cfg); err != nil {
		return fmt.Errorf("cannot parse config file %s: %w", path, err)
	}
	return nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func unmarshal(path string, data []byte, cfg *Config) error {
	if isYAML(path) {
		return yaml.Unmarshal(data, cfg)
	}
	return json.Unmarshal(data, cfg)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match
		}
		return val
	})
}

// Save writes cfg as JSON, or YAML when path ends in .yaml/.yml.
func Save(path string, cfg *Config) error {
	path = ExpandPath(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(cfg)
	} else {
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	// Tokens live in here.
	return os.WriteFile(path, data, 0o600)
}

// Validate checks that the config has valid values. Discord credentials are
// checked separately by RequireDiscord so that tooling works without them.
func Validate(cfg *Config) error {
	var errs []string

	switch strings.ToLower(cfg.General.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}
	switch cfg.General.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, "general.logFormat must be one of: text, json")
	}

	if err := validateEndpoint(cfg.Relay.Endpoint); err != nil {
		errs = append(errs, "relay.endpoint "+err.Error())
	}
	if cfg.Relay.TimeoutSeconds < 1 {
		errs = append(errs, "relay.timeoutSeconds must be >= 1")
	}
	if cfg.Relay.Concurrency < 1 || cfg.Relay.Concurrency > 32 {
		errs = append(errs, "relay.concurrency must be between 1 and 32")
	}
	if cfg.Relay.BufferSize < 1 {
		errs = append(errs, "relay.bufferSize must be >= 1")
	}

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 0 and 65535")
	}
	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Endpoint, "/") {
		errs = append(errs, "metrics.endpoint must start with /")
	}

	if t := cfg.Alerts.Telegram; t.Enabled && (t.Token == "" || t.ChatID == "") {
		errs = append(errs, "alerts.telegram requires token and chatId when enabled")
	}
	if s := cfg.Alerts.Slack; s.Enabled && s.WebhookURL == "" {
		errs = append(errs, "alerts.slack requires webhookUrl when enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// RequireDiscord checks the settings the bot cannot run without.
func RequireDiscord(cfg *Config) error {
	var missing []string
	if cfg.Discord.Token == "" {
		missing = append(missing, "discord.token (DISCORD_BOT_TOKEN)")
	}
	if cfg.Discord.ChannelID == "" {
		missing = append(missing, "discord.channelId (DISCORD_CHANNEL_ID)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

func validateEndpoint(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("is not a valid URL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("must be an absolute http(s) URL")
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
