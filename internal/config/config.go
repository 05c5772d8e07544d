// Package config handles application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"streamwatch/internal/fetcher"
	"streamwatch/internal/model"
	"streamwatch/internal/storage"
)

// Source names. They also name the state and ignore files on disk.
const (
	SourceTwitchStreams  = "twitch_streamers"
	SourceYouTubeStreams = "youtube_streamers"
	SourceYouTubeVideos  = "youtube_videos"
	SourceYouTubeFeed    = "youtube_feed_videos"
)

// Config holds the application configuration.
type Config struct {
	TelegramBotToken string
	StreamsChatID    int64
	VideosChatID     int64

	TwitchEnabled      bool
	TwitchClientID     string
	TwitchClientSecret string
	TwitchGameID       string

	YouTubeStreamsEnabled bool
	YouTubeVideosEnabled  bool
	GoogleAPIKey          string
	YouTubeSearchQuery    string
	YouTubeFeedChannels   []string

	StaticGameName string

	StreamsInterval time.Duration
	VideosInterval  time.Duration
	MessageDelay    time.Duration
	ErrorCooldown   time.Duration
	FetchAttempts   int
	FetchBaseDelay  time.Duration

	StorageDriver string
	DataDir       string
	DatabasePath  string

	MetricsAddr  string
	LogLevel     string
	AllowedUsers []int64
}

// LoadEnvFiles loads the given dotenv files into the process environment,
// overriding variables already set. Missing files are skipped. It returns
// the files that were loaded.
func LoadEnvFiles(files ...string) ([]string, error) {
	loaded := make([]string, 0, len(files))
	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Overload(file); err != nil {
			return loaded, fmt.Errorf("load %s: %w", file, err)
		}
		loaded = append(loaded, file)
	}
	return loaded, nil
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	p := &parser{}

	cfg := &Config{
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		StreamsChatID:    p.int64("TELEGRAM_STREAMS_CHAT_ID"),
		VideosChatID:     p.int64("TELEGRAM_VIDEOS_CHAT_ID"),

		TwitchEnabled:      p.bool("TWITCH_ENABLED", true),
		TwitchClientID:     os.Getenv("TWITCH_CLIENT_ID"),
		TwitchClientSecret: os.Getenv("TWITCH_CLIENT_SECRET"),
		TwitchGameID:       os.Getenv("TWITCH_GAME_ID"),

		YouTubeStreamsEnabled: p.bool("YOUTUBE_STREAMS_ENABLED", false),
		YouTubeVideosEnabled:  p.bool("YOUTUBE_VIDEOS_ENABLED", false),
		GoogleAPIKey:          os.Getenv("GOOGLE_API_KEY"),
		YouTubeSearchQuery:    os.Getenv("YOUTUBE_SEARCH_QUERY"),
		YouTubeFeedChannels:   splitList(os.Getenv("YOUTUBE_FEED_CHANNELS")),

		StaticGameName: os.Getenv("STATIC_GAME_NAME"),

		StreamsInterval: p.duration("STREAMS_INTERVAL", 5*time.Minute),
		VideosInterval:  p.duration("VIDEOS_INTERVAL", 30*time.Minute),
		MessageDelay:    p.duration("MESSAGE_DELAY", 5*time.Second),
		ErrorCooldown:   p.duration("ERROR_COOLDOWN", time.Minute),
		FetchAttempts:   p.int("FETCH_ATTEMPTS", 3),
		FetchBaseDelay:  p.duration("FETCH_BASE_DELAY", time.Second),

		StorageDriver: envOrDefault("STORAGE_DRIVER", storage.DriverFile),
		DataDir:       envOrDefault("DATA_DIR", "/var/data"),
		DatabasePath:  envOrDefault("DATABASE_PATH", "/var/data/state.db"),

		MetricsAddr: os.Getenv("METRICS_ADDR"),
		LogLevel:    envOrDefault("LOG_LEVEL", "info"),
	}

	for _, s := range splitList(os.Getenv("ALLOWED_USERS")) {
		uid, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			p.errs = append(p.errs, fmt.Errorf("invalid user ID %q in ALLOWED_USERS: %w", s, err))
			continue
		}
		cfg.AllowedUsers = append(cfg.AllowedUsers, uid)
	}

	if err := errors.Join(p.errs...); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) youTubeFeedEnabled() bool {
	return len(c.YouTubeFeedChannels) > 0
}

func (c *Config) validate() error {
	var errs []error
	require := func(name, value string) {
		if value == "" {
			errs = append(errs, fmt.Errorf("%s is required", name))
		}
	}

	require("TELEGRAM_BOT_TOKEN", c.TelegramBotToken)

	streams := c.TwitchEnabled || c.YouTubeStreamsEnabled
	videos := c.YouTubeVideosEnabled || c.youTubeFeedEnabled()
	if !streams && !videos {
		errs = append(errs, errors.New("no source is enabled"))
	}
	if streams && c.StreamsChatID == 0 {
		errs = append(errs, errors.New("TELEGRAM_STREAMS_CHAT_ID is required"))
	}
	if videos && c.VideosChatID == 0 {
		errs = append(errs, errors.New("TELEGRAM_VIDEOS_CHAT_ID is required"))
	}
	if c.TwitchEnabled {
		require("TWITCH_CLIENT_ID", c.TwitchClientID)
		require("TWITCH_CLIENT_SECRET", c.TwitchClientSecret)
		require("TWITCH_GAME_ID", c.TwitchGameID)
	}
	if c.YouTubeStreamsEnabled || c.YouTubeVideosEnabled {
		require("GOOGLE_API_KEY", c.GoogleAPIKey)
		require("YOUTUBE_SEARCH_QUERY", c.YouTubeSearchQuery)
	}
	if c.YouTubeStreamsEnabled || c.YouTubeVideosEnabled || c.youTubeFeedEnabled() {
		// YouTube items carry no game, so the label must be configured.
		require("STATIC_GAME_NAME", c.StaticGameName)
	}

	if c.StreamsInterval <= 0 {
		errs = append(errs, errors.New("STREAMS_INTERVAL must be positive"))
	}
	if c.VideosInterval <= 0 {
		errs = append(errs, errors.New("VIDEOS_INTERVAL must be positive"))
	}
	if c.MessageDelay < 0 || c.ErrorCooldown < 0 || c.FetchBaseDelay < 0 {
		errs = append(errs, errors.New("MESSAGE_DELAY, ERROR_COOLDOWN and FETCH_BASE_DELAY must not be negative"))
	}
	if c.FetchAttempts < 1 {
		errs = append(errs, errors.New("FETCH_ATTEMPTS must be at least 1"))
	}
	if c.StorageDriver != storage.DriverFile && c.StorageDriver != storage.DriverSQLite {
		errs = append(errs, fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver))
	}

	return errors.Join(errs...)
}

// IsUserAllowed checks whether a user ID is in the allow list.
// Returns true if the allow list is empty (all users permitted).
func (c *Config) IsUserAllowed(userID int64) bool {
	if len(c.AllowedUsers) == 0 {
		return true
	}
	return slices.Contains(c.AllowedUsers, userID)
}

// Storage returns the settings of the state backend.
func (c *Config) Storage() storage.Config {
	return storage.Config{
		Driver:       c.StorageDriver,
		DataDir:      c.DataDir,
		DatabasePath: c.DatabasePath,
	}
}

// Fetcher returns the upstream credentials and retry settings. The
// authenticated Twitch client is built by the caller.
func (c *Config) Fetcher() fetcher.Config {
	return fetcher.Config{
		TwitchClientID: c.TwitchClientID,
		GoogleAPIKey:   c.GoogleAPIKey,
		MaxAttempts:    c.FetchAttempts,
		BaseDelay:      c.FetchBaseDelay,
	}
}

// Sources builds the enabled sources in a fixed order. ignore returns the
// ignore list of a source by name.
func (c *Config) Sources(ignore func(source string) (model.IDSet, error)) ([]model.Source, error) {
	var sources []model.Source
	add := func(src model.Source) error {
		ids, err := ignore(src.Name)
		if err != nil {
			return fmt.Errorf("load ignore list of %s: %w", src.Name, err)
		}
		src.Ignore = src.NormalizeIDs(ids)
		src.StaticLabel = c.StaticGameName
		sources = append(sources, src)
		return nil
	}

	candidates := []struct {
		enabled bool
		src     model.Source
	}{
		{c.TwitchEnabled, model.Source{
			Name:     SourceTwitchStreams,
			Kind:     model.KindStreams,
			Platform: model.PlatformTwitch,
			FilterID: c.TwitchGameID,
			Interval: c.StreamsInterval,
			ChatID:   c.StreamsChatID,
		}},
		{c.YouTubeStreamsEnabled, model.Source{
			Name:     SourceYouTubeStreams,
			Kind:     model.KindStreams,
			Platform: model.PlatformYouTube,
			Query:    c.YouTubeSearchQuery,
			Interval: c.StreamsInterval,
			ChatID:   c.StreamsChatID,
		}},
		{c.YouTubeVideosEnabled, model.Source{
			Name:     SourceYouTubeVideos,
			Kind:     model.KindVideos,
			Platform: model.PlatformYouTube,
			Query:    c.YouTubeSearchQuery,
			Interval: c.VideosInterval,
			ChatID:   c.VideosChatID,
		}},
		{c.youTubeFeedEnabled(), model.Source{
			Name:       SourceYouTubeFeed,
			Kind:       model.KindVideos,
			Platform:   model.PlatformYouTubeFeed,
			ChannelIDs: c.YouTubeFeedChannels,
			Interval:   c.VideosInterval,
			ChatID:     c.VideosChatID,
		}},
	}
	for _, cand := range candidates {
		if !cand.enabled {
			continue
		}
		if err := add(cand.src); err != nil {
			return nil, err
		}
	}
	return sources, nil
}

// parser collects conversion errors so that every bad variable is reported
// at once.
type parser struct {
	errs []error
}

func (p *parser) int64(key string) int64 {
	raw := os.Getenv(key)
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid %s %q: %w", key, raw, err))
	}
	return v
}

func (p *parser) int(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid %s %q: %w", key, raw, err))
		return def
	}
	return v
}

func (p *parser) bool(key string, def bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid %s %q: %w", key, raw, err))
		return def
	}
	return v
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid %s %q: %w", key, raw, err))
		return def
	}
	return v
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
