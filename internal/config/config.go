package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/kelseyhightower/envconfig"
)

// Config struct for environment variables.
type Config struct {
	JellyfinURL  string   `envconfig:"JELLYFIN_URL" default:"http://localhost"`
	Username     string   `envconfig:"USER_NAME" default:"jelly"`
	Password     string   `envconfig:"JELLYFIN_PASSWORD" default:"fin"`
	DownloadPath string   `envconfig:"DOWNLOAD_PATH" default:"./"`
	DryRun       Flag     `envconfig:"DRY_RUN" default:"false"`
	ProgressBar  Flag     `envconfig:"PROGRESS_BAR" default:"true"`
	RateLimit    ByteSize `envconfig:"DOWNLOAD_RATE_LIMIT"`

	LogLevel          string `envconfig:"LOG_LEVEL" default:"INFO"`
	LogFormat         string `envconfig:"LOG_FORMAT" default:"text"`
	DiscordWebhookURL string `envconfig:"DISCORD_WEBHOOK_URL"`

	Client struct {
		Name     string `split_words:"true" default:"jellyfin_downloader"`
		Device   string `split_words:"true" default:"cli"`
		DeviceID string `split_words:"true"`
		Version  string `split_words:"true" default:"1.0.0"`
	}

	Telemetry struct {
		Exporter       string `split_words:"true" default:"none"`
		ServiceName    string `split_words:"true" default:"jellyfin_downloader"`
		MetricsAddress string `split_words:"true" default:"0.0.0.0:9091"`
	}
}

// LoadConfig reads environment variables and populates the Config struct.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("error processing env: %w", err)
	}

	cfg.JellyfinURL = strings.TrimRight(cfg.JellyfinURL, "/")

	switch strings.ToLower(cfg.Telemetry.Exporter) {
	case "none", "prometheus", "otlp":
		cfg.Telemetry.Exporter = strings.ToLower(cfg.Telemetry.Exporter)
	default:
		return nil, fmt.Errorf("invalid telemetry exporter: %s", cfg.Telemetry.Exporter)
	}

	return &cfg, nil
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Flag is a boolean that accepts "true", "1", "yes" and "on" (case-insensitive)
// as true. Any other value, including an unparsable one, is false.
type Flag bool

// Decode implements envconfig.Decoder.
func (f *Flag) Decode(value string) error {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes", "on":
		*f = true
	default:
		*f = false
	}

	return nil
}

// ByteSize is a byte count parsed from humanized strings such as "10MB" or "512KiB".
type ByteSize uint64

// Decode implements envconfig.Decoder.
func (b *ByteSize) Decode(value string) error {
	if strings.TrimSpace(value) == "" {
		*b = 0

		return nil
	}

	n, err := humanize.ParseBytes(value)
	if err != nil {
		return fmt.Errorf("invalid byte size %q: %w", value, err)
	}

	*b = ByteSize(n)

	return nil
}

func (b ByteSize) String() string {
	return humanize.Bytes(uint64(b))
}
