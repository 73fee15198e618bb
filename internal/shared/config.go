package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

const envPrefix = "SPOTLAKE_"

var validate = validator.New(validator.WithRequiredStructEnabled())

// Config represents the application configuration loaded from a TOML file.
//
// Fields carry validate tags, but nothing is checked until a command calls [Config.Require]
// with the fields it actually needs.
type Config struct {
	Spotify  SpotifyConfig  `toml:"spotify"`
	Storage  StorageConfig  `toml:"storage"`
	Database DatabaseConfig `toml:"database"`
	Delivery DeliveryConfig `toml:"delivery"`
	Log      LogConfig      `toml:"log"`
}

// SpotifyConfig contains upstream API endpoints and identifiers.
type SpotifyConfig struct {
	BaseURL                string  `toml:"base_url" validate:"required,url"`
	TokenURL               string  `toml:"token_url" validate:"required,url"`
	AuthURL                string  `toml:"auth_url" validate:"required,url"`
	RedirectURI            string  `toml:"redirect_uri" validate:"required,url"`
	UserID                 string  `toml:"user_id" validate:"required"`
	SecretsPath            string  `toml:"secrets_path"`
	ReleaseRadarPlaylistID string  `toml:"release_radar_playlist_id" validate:"required"`
	RequestsPerSecond      float64 `toml:"requests_per_second" validate:"gte=0"`
}

// StorageConfig contains bucket URLs (file:// or gs://) for each storage area.
type StorageConfig struct {
	Namespace string `toml:"namespace" validate:"required"`
	Landing   string `toml:"landing" validate:"required"`
	Raw       string `toml:"raw" validate:"required"`
	Staging   string `toml:"staging" validate:"required"`
}

// DatabaseConfig contains database connection settings for the lookup tables.
type DatabaseConfig struct {
	Path         string `toml:"path" validate:"required"`
	MaxOpenConns int    `toml:"max_open_conns" validate:"gte=0"`
	MaxIdleConns int    `toml:"max_idle_conns" validate:"gte=0"`
}

// DeliveryConfig selects and configures the notification dispatcher.
type DeliveryConfig struct {
	Kind         string `toml:"kind" validate:"required,oneof=smtp webhook stdout"`
	From         string `toml:"from" validate:"required,email"`
	SMTPHost     string `toml:"smtp_host" validate:"required_if=Kind smtp"`
	SMTPPort     int    `toml:"smtp_port" validate:"required_if=Kind smtp,gte=0,lte=65535"`
	SMTPUser     string `toml:"smtp_user"`
	SMTPPassword string `toml:"smtp_password"`
	UseTLS       bool   `toml:"use_tls"`
	WebhookURL   string `toml:"webhook_url" validate:"required_if=Kind webhook,omitempty,url"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level" validate:"omitempty,oneof=debug info warn error"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read config file: %w", ErrMissingConfig, err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %w", ErrInvalidConfig, err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadEnvFile loads KEY=VALUE pairs from a dotenv file into the process environment.
//
// A missing file is not an error. Variables already set in the environment win.
func LoadEnvFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays SPOTLAKE_* variables onto the config using lookup (usually [os.LookupEnv]).
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"SPOTIFY_BASE_URL":                  &c.Spotify.BaseURL,
		"SPOTIFY_TOKEN_URL":                 &c.Spotify.TokenURL,
		"SPOTIFY_AUTH_URL":                  &c.Spotify.AuthURL,
		"SPOTIFY_REDIRECT_URI":              &c.Spotify.RedirectURI,
		"SPOTIFY_USER_ID":                   &c.Spotify.UserID,
		"SPOTIFY_SECRETS_PATH":              &c.Spotify.SecretsPath,
		"SPOTIFY_RELEASE_RADAR_PLAYLIST_ID": &c.Spotify.ReleaseRadarPlaylistID,
		"STORAGE_NAMESPACE":                 &c.Storage.Namespace,
		"STORAGE_LANDING":                   &c.Storage.Landing,
		"STORAGE_RAW":                       &c.Storage.Raw,
		"STORAGE_STAGING":                   &c.Storage.Staging,
		"DATABASE_PATH":                     &c.Database.Path,
		"DELIVERY_KIND":                     &c.Delivery.Kind,
		"DELIVERY_FROM":                     &c.Delivery.From,
		"DELIVERY_SMTP_HOST":                &c.Delivery.SMTPHost,
		"DELIVERY_SMTP_USER":                &c.Delivery.SMTPUser,
		"DELIVERY_SMTP_PASSWORD":            &c.Delivery.SMTPPassword,
		"DELIVERY_WEBHOOK_URL":              &c.Delivery.WebhookURL,
		"LOG_LEVEL":                         &c.Log.Level,
	}
	for key, dst := range strs {
		if v, ok := lookup(envPrefix + key); ok {
			*dst = v
		}
	}

	if v, ok := lookup(envPrefix + "DELIVERY_SMTP_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %sDELIVERY_SMTP_PORT: %v", ErrInvalidConfig, envPrefix, err)
		}
		c.Delivery.SMTPPort = port
	}
	if v, ok := lookup(envPrefix + "DELIVERY_USE_TLS"); ok {
		useTLS, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %sDELIVERY_USE_TLS: %v", ErrInvalidConfig, envPrefix, err)
		}
		c.Delivery.UseTLS = useTLS
	}
	if v, ok := lookup(envPrefix + "SPOTIFY_REQUESTS_PER_SECOND"); ok {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: %sSPOTIFY_REQUESTS_PER_SECOND: %v", ErrInvalidConfig, envPrefix, err)
		}
		c.Spotify.RequestsPerSecond = rps
	}

	return nil
}

// Require validates only the named fields (e.g. "Storage.Landing") so each command fails fast on
// exactly the settings it depends on.
func (c *Config) Require(fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	err := validate.StructPartial(c, fields...)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
}
