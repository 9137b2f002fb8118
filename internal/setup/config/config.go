package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/robalyx/gatekeeper/internal/bot/ban"
	"github.com/robalyx/gatekeeper/internal/bot/verification"
)

var (
	ErrConfigVersionMismatch = errors.New("config file version mismatch")
	ErrMissingToken          = errors.New("DISCORD_TOKEN is not set")
	ErrMissingGuild          = errors.New("GUILD_ID is not set")
)

// FileName is the name of the optional config file.
const FileName = "bot.toml"

// CurrentVersion is the current version of the config file.
const CurrentVersion = 1

const (
	defaultTimeZone      = "Asia/Tokyo"
	defaultPort          = 8080
	defaultDataDir       = "data"
	defaultLogLevel      = "info"
	defaultMaxLogsToKeep = 10
	defaultMaxLogLines   = 10000
)

// envKeys maps environment variables onto config keys.
var envKeys = map[string]string{
	"DISCORD_TOKEN":           "discord.token",
	"CLIENT_ID":               "discord.client_id",
	"GUILD_ID":                "discord.guild_id",
	"TIME_ZONE":               "discord.time_zone",
	"BAN_CHANNEL_ID":          "channels.ban",
	"MODERATION_CHANNEL_ID":   "channels.moderation",
	"VERIFICATION_CHANNEL_ID": "channels.verification",
	"ADMIN_ROLE_ID":           "roles.admin",
	"VERIFIED_ROLE_ID":        "roles.verified",
	"DATA_DIR":                "storage.data_dir",
	"REDIS_ADDR":              "storage.redis_addr",
	"PORT":                    "server.port",
	"APP_URL":                 "server.app_url",
	"LOG_LEVEL":               "debug.log_level",
}

// Config represents the entire application configuration.
type Config struct {
	// Version of the config file. Zero when no file was loaded.
	Version  int      `koanf:"version"`
	Discord  Discord  `koanf:"discord"`
	Channels Channels `koanf:"channels"`
	Roles    Roles    `koanf:"roles"`
	Storage  Storage  `koanf:"storage"`
	Server   Server   `koanf:"server"`
	Debug    Debug    `koanf:"debug"`
}

// Discord contains the bot credentials and the guild it serves.
type Discord struct {
	Token    string `koanf:"token"`
	ClientID uint64 `koanf:"client_id"`
	GuildID  uint64 `koanf:"guild_id"`
	// IANA zone used for footer timestamps.
	TimeZone string `koanf:"time_zone"`
}

// Channels contains the channel IDs used by the workflows.
type Channels struct {
	Ban          uint64 `koanf:"ban"`
	Moderation   uint64 `koanf:"moderation"`
	Verification uint64 `koanf:"verification"`
}

// Roles contains the role IDs used by the workflows.
type Roles struct {
	Admin    uint64 `koanf:"admin"`
	Verified uint64 `koanf:"verified"`
}

// Storage selects where the ban list pointer is kept.
type Storage struct {
	DataDir string `koanf:"data_dir"`
	// Redis address. When set, the pointer is kept in Redis instead of DataDir.
	RedisAddr string `koanf:"redis_addr"`
}

// Server contains the keep-alive HTTP server configuration.
type Server struct {
	Port int `koanf:"port"`
	// Public URL pinged periodically to keep the host awake.
	AppURL string `koanf:"app_url"`
}

// Debug contains logging configuration.
type Debug struct {
	// Log level (debug, info, warn, error).
	LogLevel string `koanf:"log_level"`
	// Maximum log sessions to keep.
	MaxLogsToKeep int `koanf:"max_logs_to_keep"`
	// Maximum lines per log file.
	MaxLogLines int `koanf:"max_log_lines"`
}

// LoadConfig loads the config file, the .env file and the environment, in that order of
// increasing precedence. An explicit path is tried before the default search paths.
func LoadConfig(path string) (*Config, error) {
	k := koanf.New(".")

	if configPath := findConfigFile(path); configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", configPath, err)
		}
	}

	// Real environment variables win over .env entries
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := k.Load(env.Provider("", ".", func(key string) string {
		return envKeys[key]
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if config.Version != 0 && config.Version != CurrentVersion {
		return nil, fmt.Errorf("%w: %s (got: %d, expected: %d)",
			ErrConfigVersionMismatch, FileName, config.Version, CurrentVersion)
	}

	config.applyDefaults()

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// findConfigFile returns the first existing config file, or an empty string.
func findConfigFile(explicit string) string {
	candidates := make([]string, 0, 6)
	if explicit != "" {
		candidates = append(candidates, explicit)
	}

	candidates = append(candidates, FileName, filepath.Join("config", FileName))
	if homeDir, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(homeDir, ".gatekeeper", FileName))
	}
	candidates = append(candidates,
		filepath.Join("/etc/gatekeeper", FileName),
		filepath.Join("/app/config", FileName),
	)

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}

	return ""
}

func (c *Config) applyDefaults() {
	if c.Discord.TimeZone == "" {
		c.Discord.TimeZone = defaultTimeZone
	}
	if c.Storage.DataDir == "" {
		c.Storage.DataDir = defaultDataDir
	}
	if c.Server.Port == 0 {
		c.Server.Port = defaultPort
	}
	if c.Debug.LogLevel == "" {
		c.Debug.LogLevel = defaultLogLevel
	}
	if c.Debug.MaxLogsToKeep == 0 {
		c.Debug.MaxLogsToKeep = defaultMaxLogsToKeep
	}
	if c.Debug.MaxLogLines == 0 {
		c.Debug.MaxLogLines = defaultMaxLogLines
	}
}

func (c *Config) validate() error {
	if c.Discord.Token == "" {
		return ErrMissingToken
	}
	if c.Discord.GuildID == 0 {
		return ErrMissingGuild
	}
	if _, err := time.LoadLocation(c.Discord.TimeZone); err != nil {
		return fmt.Errorf("invalid time zone %q: %w", c.Discord.TimeZone, err)
	}
	return nil
}

// Location returns the configured time zone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Discord.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// GuildID returns the guild the bot serves.
func (c *Config) GuildID() snowflake.ID {
	return snowflake.ID(c.Discord.GuildID)
}

// BanConfig returns the settings of the ban workflow.
func (c *Config) BanConfig() ban.Config {
	return ban.Config{
		ChannelID:   snowflake.ID(c.Channels.Ban),
		AdminRoleID: snowflake.ID(c.Roles.Admin),
	}
}

// VerificationConfig returns the settings of the verification workflow.
func (c *Config) VerificationConfig() verification.Config {
	return verification.Config{
		ModerationChannelID: snowflake.ID(c.Channels.Moderation),
		AdminRoleID:         snowflake.ID(c.Roles.Admin),
		VerifiedRoleID:      snowflake.ID(c.Roles.Verified),
		Location:            c.Location(),
	}
}

// VerificationChannelID returns the channel the verification board belongs in.
func (c *Config) VerificationChannelID() snowflake.ID {
	return snowflake.ID(c.Channels.Verification)
}
