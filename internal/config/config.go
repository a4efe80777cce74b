package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the configuration settings for the route planning service.
//
// Fields:
// - Env: The current environment (local, development, production).
// - HealthPort: The port of the monitoring server (/healthz, /metrics).
// - APIPort: The port of the planning API.
// - AllowedOrigins: CORS origins allowed to call the API, "*" for any.
// - Geocoder, Router, Predictor, Feed: upstream services.
// - Sessions: planning session lifecycle.
// - NATS: optional obstacle fan-out, disabled when URL is empty.
// - Database: optional plan history, disabled when Host is empty.
type Config struct {
	Env            string
	HealthPort     int
	APIPort        int
	AllowedOrigins []string
	Geocoder       GeocoderConfig
	Router         RouterConfig
	Predictor      PredictorConfig
	Feed           FeedConfig
	Sessions       SessionsConfig
	NATS           NATSConfig
	Database       PostgresConfig
}

// GeocoderConfig selects and tunes the geocoding provider.
type GeocoderConfig struct {
	Provider     string // nominatim or google
	APIKey       string // required for google
	BaseURL      string // nominatim search endpoint
	UserAgent    string // sent to nominatim
	CountryCodes string // nominatim countrycodes filter
	RateLimit    int    // requests per second, 0 disables limiting
}

// RouterConfig points at the OSRM routing service.
type RouterConfig struct {
	BaseURL string
	Profile string
}

// PredictorConfig points at the risk prediction backend.
type PredictorConfig struct {
	Endpoint string
	Required bool // abort planning when prediction fails
}

// FeedConfig tunes the obstacle feed connection.
type FeedConfig struct {
	URL          string
	PingInterval time.Duration
	PongWait     time.Duration
	MinBackoff   time.Duration
	MaxBackoff   time.Duration
}

// SessionsConfig controls how long idle planning sessions live.
type SessionsConfig struct {
	IdleTimeout   time.Duration
	SweepInterval time.Duration
}

// NATSConfig holds the NATS server address.
type NATSConfig struct {
	URL string
}

// PostgresConfig struct holds the configuration details for connecting to a PostgreSQL database.
type PostgresConfig struct {
	Host     string // Host is the database server address.
	Port     string // Port is the database server port.
	User     string // User is the database user.
	Password string // Password is the database user's password.
	Name     string // Name is the name of the database.
}

var defaults = map[string]any{
	"env":                     "production",
	"health.port":             "8080",
	"api.port":                "8000",
	"api.allowed_origins":     "*",
	"geocoder.provider":       "nominatim",
	"geocoder.api_key":        "",
	"geocoder.base_url":       "https://nominatim.openstreetmap.org/search",
	"geocoder.user_agent":     "",
	"geocoder.country_codes":  "in",
	"geocoder.rate_limit":     "0",
	"router.base_url":         "https://router.project-osrm.org",
	"router.profile":          "driving",
	"predictor.endpoint":      "http://localhost:5000/predict",
	"predictor.required":      "false",
	"feed.url":                "ws://localhost:8765/obstacles",
	"feed.ping_interval":      "30s",
	"feed.pong_wait":          "60s",
	"feed.min_backoff":        "1s",
	"feed.max_backoff":        "30s",
	"sessions.idle_timeout":   "30m",
	"sessions.sweep_interval": "1m",
	"nats.url":                "",
	"postgres.host":           "",
	"postgres.port":           "5432",
	"postgres.user":           "",
	"postgres.password":       "",
	"postgres.db_name":        "",
}

// MustLoad reads the configuration from .env, an optional YAML file and the
// environment, in increasing order of precedence. It panics on invalid values.
func MustLoad() *Config {
	_ = godotenv.Load()

	v := newViper()

	return &Config{
		Env:            v.GetString("env"),
		HealthPort:     mustInt(v, "health.port", "failed to parse port for monitoring server from configuration"),
		APIPort:        mustInt(v, "api.port", "failed to parse port for API server from configuration"),
		AllowedOrigins: splitList(v.GetString("api.allowed_origins")),
		Geocoder: GeocoderConfig{
			Provider:     strings.ToLower(v.GetString("geocoder.provider")),
			APIKey:       v.GetString("geocoder.api_key"),
			BaseURL:      v.GetString("geocoder.base_url"),
			UserAgent:    v.GetString("geocoder.user_agent"),
			CountryCodes: v.GetString("geocoder.country_codes"),
			RateLimit: mustInt(v, "geocoder.rate_limit",
				"failed to parse geocoder rate limit from configuration, must be an integer type"),
		},
		Router: RouterConfig{
			BaseURL: v.GetString("router.base_url"),
			Profile: v.GetString("router.profile"),
		},
		Predictor: PredictorConfig{
			Endpoint: v.GetString("predictor.endpoint"),
			Required: mustBool(v, "predictor.required", "failed to parse predictor.required from configuration"),
		},
		Feed: FeedConfig{
			URL:          v.GetString("feed.url"),
			PingInterval: mustDuration(v, "feed.ping_interval", "failed to parse feed ping interval from configuration"),
			PongWait:     mustDuration(v, "feed.pong_wait", "failed to parse feed pong wait from configuration"),
			MinBackoff:   mustDuration(v, "feed.min_backoff", "failed to parse feed backoff from configuration"),
			MaxBackoff:   mustDuration(v, "feed.max_backoff", "failed to parse feed backoff from configuration"),
		},
		Sessions: SessionsConfig{
			IdleTimeout: mustDuration(v, "sessions.idle_timeout",
				"failed to parse session idle timeout from configuration"),
			SweepInterval: mustDuration(v, "sessions.sweep_interval",
				"failed to parse session sweep interval from configuration"),
		},
		NATS: NATSConfig{
			URL: v.GetString("nats.url"),
		},
		Database: PostgresConfig{
			Host:     v.GetString("postgres.host"),
			Port:     v.GetString("postgres.port"),
			User:     v.GetString("postgres.user"),
			Password: v.GetString("postgres.password"),
			Name:     v.GetString("postgres.db_name"),
		},
	}
}

func newViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	// TRAFFIC_GEOCODER_BASE_URL -> geocoder.base_url
	v.SetEnvPrefix("TRAFFIC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The database uses the same variables as the rest of the platform.
	_ = v.BindEnv("postgres.host", "DB_HOST")
	_ = v.BindEnv("postgres.port", "DB_PORT")
	_ = v.BindEnv("postgres.user", "DB_USERNAME")
	_ = v.BindEnv("postgres.password", "DB_PASSWORD")
	_ = v.BindEnv("postgres.db_name", "DB_NAME")

	v.SetConfigType("yaml")
	if file := os.Getenv("TRAFFIC_CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			panic("failed to read configuration file")
		}
		return v
	}

	v.SetConfigName("config")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional

	return v
}

func mustInt(v *viper.Viper, key, msg string) int {
	n, err := strconv.Atoi(strings.TrimSpace(v.GetString(key)))
	if err != nil {
		panic(msg)
	}
	return n
}

func mustBool(v *viper.Viper, key, msg string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(v.GetString(key)))
	if err != nil {
		panic(msg)
	}
	return b
}

// mustDuration accepts only strictly positive durations.
func mustDuration(v *viper.Viper, key, msg string) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(v.GetString(key)))
	if err != nil || d <= 0 {
		panic(msg)
	}
	return d
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
