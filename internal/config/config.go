// Package config builds the application configuration once at startup.
//
// Values are layered: built-in defaults, then an optional TOML file, then environment
// variables (after loading an env file with godotenv). The resulting Config is passed
// explicitly into every component constructor.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// ErrMissingConfig is returned when a required setting is empty.
var ErrMissingConfig = errors.New("missing configuration")

// Config is the full application configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Spotify  SpotifyConfig  `toml:"spotify"`
	Sheets   SheetsConfig   `toml:"sheets"`
	LastFM   LastFMConfig   `toml:"lastfm"`
	Wiki     WikiConfig     `toml:"wiki"`
	Redis    RedisConfig    `toml:"redis"`
	Quiz     QuizConfig     `toml:"quiz"`
	Playlist PlaylistConfig `toml:"playlist"`
	Log      LogConfig      `toml:"log"`
}

// ServerConfig holds web server settings.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// DatabaseConfig holds chart database connection settings.
// URL wins over the individual fields when set.
type DatabaseConfig struct {
	URL      string `toml:"url"`
	Host     string `toml:"host"`
	Port     string `toml:"port"`
	Name     string `toml:"name"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Schema   string `toml:"schema"`
}

// SpotifyConfig holds Spotify application credentials and playback preferences.
type SpotifyConfig struct {
	ClientID       string `toml:"client_id"`
	ClientSecret   string `toml:"client_secret"`
	RedirectURI    string `toml:"redirect_uri"`
	Market         string `toml:"market"`
	DeviceName     string `toml:"device_name"`
	TokenCachePath string `toml:"token_cache_path"`
}

// SheetsConfig locates the answer spreadsheet and the service-account key.
type SheetsConfig struct {
	CredentialsFile string `toml:"credentials_file"`
	SpreadsheetName string `toml:"spreadsheet_name"`
	SpreadsheetID   string `toml:"spreadsheet_id"`
	SheetTitle      string `toml:"sheet_title"`
}

// LastFMConfig holds the Last.fm API key used by the artist spotlight.
type LastFMConfig struct {
	APIKey string `toml:"api_key"`
}

// WikiConfig points at a MediaWiki API endpoint.
type WikiConfig struct {
	Endpoint string `toml:"endpoint"`
}

// RedisConfig enables the resolution cache when Addr is set.
type RedisConfig struct {
	Addr     string        `toml:"addr"`
	Password string        `toml:"password"`
	DB       int           `toml:"db"`
	TTL      time.Duration `toml:"ttl"`
}

// QuizConfig tunes the quiz orchestrator.
type QuizConfig struct {
	MaxAttempts  int           `toml:"max_attempts"`
	CallTimeout  time.Duration `toml:"call_timeout"`
	LogMisses    bool          `toml:"log_misses"`
	PreferCached bool          `toml:"prefer_cached"`
	WriteBack    bool          `toml:"write_back"`
	MinYear      int           `toml:"min_year"`
	MaxYear      int           `toml:"max_year"`
	MaxPosition  int           `toml:"max_position"`
}

// PlaylistConfig tunes the batch playlist builder.
type PlaylistConfig struct {
	Delay  time.Duration `toml:"delay"`
	Public bool          `toml:"public"`
}

// LogConfig configures the zap logger and its optional rotating file sink.
type LogConfig struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// Default returns a Config populated with built-in defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Addr: "127.0.0.1:8080"},
		Database: DatabaseConfig{
			Host:   "127.0.0.1",
			Port:   "5432",
			Schema: "songbase",
		},
		Spotify: SpotifyConfig{
			RedirectURI: "http://127.0.0.1:8080/callback",
			Market:      "GB",
		},
		Sheets: SheetsConfig{
			SpreadsheetName: "SpotifyAppMusicQuestions",
		},
		Wiki: WikiConfig{Endpoint: "https://en.wikipedia.org/w/api.php"},
		Redis: RedisConfig{
			TTL: 7 * 24 * time.Hour,
		},
		Quiz: QuizConfig{
			MaxAttempts: 10,
			CallTimeout: 10 * time.Second,
			LogMisses:   true,
			MinYear:     1952,
			MaxYear:     2020,
			MaxPosition: 100,
		},
		Playlist: PlaylistConfig{
			Delay:  300 * time.Millisecond,
			Public: true,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load builds the configuration. envFile falls back to $ENV_FILE and then ".env";
// a missing env file is not an error. tomlPath may be empty.
func Load(envFile, tomlPath string) (*Config, error) {
	if envFile == "" {
		envFile = os.Getenv("ENV_FILE")
	}
	if err := loadEnvFile(envFile); err != nil {
		return nil, err
	}

	cfg := Default()
	if tomlPath != "" {
		if _, err := toml.DecodeFile(tomlPath, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", tomlPath, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadEnvFile loads variables without overriding ones already set.
func loadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading env file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	envString(&c.Server.Addr, "SERVER_ADDR")

	envString(&c.Database.URL, "DATABASE_URL")
	envString(&c.Database.Host, "DB_HOST")
	envString(&c.Database.Port, "DB_PORT")
	envString(&c.Database.Name, "DB_NAME")
	envString(&c.Database.User, "DB_USER")
	envString(&c.Database.Password, "DB_PASSWORD")
	envString(&c.Database.Schema, "DB_SCHEMA")

	envString(&c.Spotify.ClientID, "SPOTIFY_CLIENT_ID")
	envString(&c.Spotify.ClientSecret, "SPOTIFY_CLIENT_SECRET")
	envString(&c.Spotify.RedirectURI, "SPOTIFY_REDIRECT_URI")
	envString(&c.Spotify.Market, "SPOTIFY_MARKET")
	envString(&c.Spotify.DeviceName, "SPOTIFY_DEVICE_NAME")
	envString(&c.Spotify.TokenCachePath, "SPOTIFY_TOKEN_CACHE")

	envString(&c.Sheets.CredentialsFile, "CLIENT_FILE")
	envString(&c.Sheets.SpreadsheetName, "SHEET_NAME")
	envString(&c.Sheets.SpreadsheetID, "SHEET_ID")
	envString(&c.Sheets.SheetTitle, "SHEET_TITLE")

	envString(&c.LastFM.APIKey, "LASTFM_API_KEY")
	envString(&c.Wiki.Endpoint, "WIKI_ENDPOINT")

	envString(&c.Redis.Addr, "REDIS_ADDR")
	envString(&c.Redis.Password, "REDIS_PASSWORD")

	envString(&c.Log.Level, "LOG_LEVEL")
	envString(&c.Log.File, "LOG_FILE")

	var errs []error
	errs = append(errs,
		envInt(&c.Redis.DB, "REDIS_DB"),
		envDuration(&c.Redis.TTL, "REDIS_TTL"),
		envInt(&c.Quiz.MaxAttempts, "QUIZ_MAX_ATTEMPTS"),
		envDuration(&c.Quiz.CallTimeout, "QUIZ_CALL_TIMEOUT"),
		envBool(&c.Quiz.LogMisses, "QUIZ_LOG_MISSES"),
		envBool(&c.Quiz.PreferCached, "QUIZ_PREFER_CACHED"),
		envBool(&c.Quiz.WriteBack, "QUIZ_WRITE_BACK"),
		envDuration(&c.Playlist.Delay, "PLAYLIST_DELAY"),
		envBool(&c.Playlist.Public, "PLAYLIST_PUBLIC"),
	)
	return errors.Join(errs...)
}

// DatabaseURL returns the connection string for pgx.
func (c *Config) DatabaseURL() string {
	if c.Database.URL != "" {
		return c.Database.URL
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(c.Database.Host, c.Database.Port),
		Path:   "/" + c.Database.Name,
	}
	switch {
	case c.Database.User != "" && c.Database.Password != "":
		u.User = url.UserPassword(c.Database.User, c.Database.Password)
	case c.Database.User != "":
		u.User = url.User(c.Database.User)
	}
	return u.String()
}

// RequireDatabase reports missing database settings.
func (c *Config) RequireDatabase() error {
	if c.Database.URL != "" {
		return nil
	}
	return missing(
		setting{"DB_HOST", c.Database.Host},
		setting{"DB_NAME", c.Database.Name},
	)
}

// RequireSpotify reports missing Spotify application credentials.
func (c *Config) RequireSpotify() error {
	return missing(
		setting{"SPOTIFY_CLIENT_ID", c.Spotify.ClientID},
		setting{"SPOTIFY_CLIENT_SECRET", c.Spotify.ClientSecret},
		setting{"SPOTIFY_REDIRECT_URI", c.Spotify.RedirectURI},
	)
}

// RequireSheets reports missing answer-spreadsheet settings.
func (c *Config) RequireSheets() error {
	name := c.Sheets.SpreadsheetID
	if name == "" {
		name = c.Sheets.SpreadsheetName
	}
	return missing(
		setting{"CLIENT_FILE", c.Sheets.CredentialsFile},
		setting{"SHEET_ID/SHEET_NAME", name},
	)
}

// setting pairs an environment key with its resolved value.
type setting struct {
	key, value string
}

// missing reports every empty setting, in the order given.
func missing(settings ...setting) error {
	var errs []error
	for _, s := range settings {
		if s.value == "" {
			errs = append(errs, fmt.Errorf("%w: %s", ErrMissingConfig, s.key))
		}
	}
	return errors.Join(errs...)
}

func envString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func envInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", key, err)
	}
	*dst = n
	return nil
}

func envBool(dst *bool, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", key, err)
	}
	*dst = b
	return nil
}

func envDuration(dst *time.Duration, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", key, err)
	}
	*dst = d
	return nil
}
