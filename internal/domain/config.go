package domain

import (
	"path/filepath"
	"time"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Bot      BotConfig      `mapstructure:"bot"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Download DownloadConfig `mapstructure:"download"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Journal  JournalConfig  `mapstructure:"journal"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig contains HTTP API configuration
type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

// BotConfig contains Telegram Bot API configuration
type BotConfig struct {
	Token           string        `mapstructure:"token"`
	APIEndpoint     string        `mapstructure:"api_endpoint"`    // e.g. http://localhost:8081/bot%s/%s
	LocalMode       bool          `mapstructure:"local_mode"`      // local Bot API server can read file:// URLs
	LocalFilesDir   string        `mapstructure:"local_files_dir"` // artifacts dir as mounted in the Bot API server; empty means same path
	Language        string        `mapstructure:"language"`
	AllowedServices []string      `mapstructure:"allowed_services"`
	ServiceAliases  []string      `mapstructure:"service_aliases"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	PollTimeout     int           `mapstructure:"poll_timeout"` // seconds
}

// WorkerConfig contains worker pool configuration
type WorkerConfig struct {
	Count          int           `mapstructure:"count"`
	ProgressEvery  int           `mapstructure:"progress_every"` // seconds of elapsed download time
	Retention      time.Duration `mapstructure:"retention"`
	NotifyTimeout  time.Duration `mapstructure:"notify_timeout"`
	SweepSchedule  string        `mapstructure:"sweep_schedule"`
	MaxArtifactAge time.Duration `mapstructure:"max_artifact_age"`
}

// DownloadConfig contains download-related configuration
type DownloadConfig struct {
	BaseDir     string `mapstructure:"base_dir"`
	YTDLPBinary string `mapstructure:"ytdlp_binary"`
	ExtraArgs   string `mapstructure:"extra_args"`
}

// ArtifactsDir returns the directory holding finished artifacts
func (c DownloadConfig) ArtifactsDir() string {
	return filepath.Join(c.BaseDir, "artifacts")
}

// StagingDir returns the directory yt-dlp writes into
func (c DownloadConfig) StagingDir() string {
	return filepath.Join(c.BaseDir, "staging")
}

// LogsDir returns the directory for download and queue logs
func (c DownloadConfig) LogsDir() string {
	return filepath.Join(c.BaseDir, "logs")
}

// CacheConfig contains Redis configuration
type CacheConfig struct {
	Host       string        `mapstructure:"host"`
	Port       int           `mapstructure:"port"`
	Password   string        `mapstructure:"password"`
	DB         int           `mapstructure:"db"`
	LocatorTTL time.Duration `mapstructure:"locator_ttl"`
	InfoTTL    time.Duration `mapstructure:"info_ttl"`
}

// JournalConfig contains job journal configuration
type JournalConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	DatabasePath string `mapstructure:"database_path"`
}

// LoggingConfig contains logging-related configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, or file path
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Enabled: true,
			Host:    "localhost",
			Port:    8080,
		},
		Bot: BotConfig{
			APIEndpoint:     "http://localhost:8081/bot%s/%s",
			LocalMode:       true,
			Language:        "ru",
			AllowedServices: []string{"vk", "youtube", "dzen"},
			ServiceAliases:  []string{"youtu"},
			RequestTimeout:  60 * time.Second,
			PollTimeout:     60,
		},
		Worker: WorkerConfig{
			Count:          1,
			ProgressEvery:  5,
			Retention:      15 * time.Minute,
			NotifyTimeout:  30 * time.Second,
			SweepSchedule:  "@every 1h",
			MaxArtifactAge: 2 * time.Hour,
		},
		Download: DownloadConfig{
			BaseDir:     "./down",
			YTDLPBinary: "yt-dlp",
		},
		Cache: CacheConfig{
			Host:       "localhost",
			Port:       6379,
			DB:         0,
			LocatorTTL: time.Hour,
			InfoTTL:    time.Hour,
		},
		Journal: JournalConfig{
			Enabled:      true,
			DatabasePath: "./down/data/journal.db",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stdout",
		},
	}
}
