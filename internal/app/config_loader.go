package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
	"github.com/yourusername/vidgrab/internal/domain"
)

// maxLocatorTTL bounds how long a cached locator may stay resolvable
const maxLocatorTTL = time.Hour

// legacyEnv maps config keys to the variables the bot was deployed with
// before the VIDGRAB_ prefix existed
var legacyEnv = map[string]string{
	"bot.token":        "BOT_TOKEN",
	"bot.api_endpoint": "TELEGRAM_API_URL",
	"cache.host":       "REDIS_HOST",
	"cache.port":       "REDIS_PORT",
	"cache.db":         "REDIS_DB",
	"worker.count":     "NUM_WORKERS",
}

// LoadConfig loads configuration from file and environment
func LoadConfig(configPath string) (*domain.Config, error) {
	config := domain.DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.vidgrab")
		v.AddConfigPath("/etc/vidgrab")
	}

	v.SetEnvPrefix("VIDGRAB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only covers keys viper already knows about
	registerDefaults(v, config)
	for key, legacy := range legacyEnv {
		envKey := "VIDGRAB_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envKey, legacy); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config = expandPaths(config)

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// registerDefaults makes every config key known to viper
func registerDefaults(v *viper.Viper, config *domain.Config) {
	v.SetDefault("server.enabled", config.Server.Enabled)
	v.SetDefault("server.host", config.Server.Host)
	v.SetDefault("server.port", config.Server.Port)

	v.SetDefault("bot.token", config.Bot.Token)
	v.SetDefault("bot.api_endpoint", config.Bot.APIEndpoint)
	v.SetDefault("bot.local_mode", config.Bot.LocalMode)
	v.SetDefault("bot.local_files_dir", config.Bot.LocalFilesDir)
	v.SetDefault("bot.language", config.Bot.Language)
	v.SetDefault("bot.allowed_services", config.Bot.AllowedServices)
	v.SetDefault("bot.service_aliases", config.Bot.ServiceAliases)
	v.SetDefault("bot.request_timeout", config.Bot.RequestTimeout)
	v.SetDefault("bot.poll_timeout", config.Bot.PollTimeout)

	v.SetDefault("worker.count", config.Worker.Count)
	v.SetDefault("worker.progress_every", config.Worker.ProgressEvery)
	v.SetDefault("worker.retention", config.Worker.Retention)
	v.SetDefault("worker.notify_timeout", config.Worker.NotifyTimeout)
	v.SetDefault("worker.sweep_schedule", config.Worker.SweepSchedule)
	v.SetDefault("worker.max_artifact_age", config.Worker.MaxArtifactAge)

	v.SetDefault("download.base_dir", config.Download.BaseDir)
	v.SetDefault("download.ytdlp_binary", config.Download.YTDLPBinary)
	v.SetDefault("download.extra_args", config.Download.ExtraArgs)

	v.SetDefault("cache.host", config.Cache.Host)
	v.SetDefault("cache.port", config.Cache.Port)
	v.SetDefault("cache.password", config.Cache.Password)
	v.SetDefault("cache.db", config.Cache.DB)
	v.SetDefault("cache.locator_ttl", config.Cache.LocatorTTL)
	v.SetDefault("cache.info_ttl", config.Cache.InfoTTL)

	v.SetDefault("journal.enabled", config.Journal.Enabled)
	v.SetDefault("journal.database_path", config.Journal.DatabasePath)

	v.SetDefault("logging.level", config.Logging.Level)
	v.SetDefault("logging.format", config.Logging.Format)
	v.SetDefault("logging.output_path", config.Logging.OutputPath)
}

// expandPaths expands environment variables in path configurations
func expandPaths(config *domain.Config) *domain.Config {
	config.Download.BaseDir = expandPath(config.Download.BaseDir)
	config.Journal.DatabasePath = expandPath(config.Journal.DatabasePath)

	if config.Logging.OutputPath != "stdout" && config.Logging.OutputPath != "stderr" {
		config.Logging.OutputPath = expandPath(config.Logging.OutputPath)
	}

	return config
}

// expandPath expands environment variables and ~ in paths
func expandPath(path string) string {
	path = os.ExpandEnv(path)

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	}

	return path
}

// validateConfig validates the configuration
func validateConfig(config *domain.Config) error {
	if config.Server.Enabled && (config.Server.Port < 1 || config.Server.Port > 65535) {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Bot.Token == "" {
		return fmt.Errorf("bot token not configured")
	}

	if config.Worker.Count < 1 {
		return fmt.Errorf("worker count must be at least 1")
	}

	if config.Worker.ProgressEvery < 1 {
		return fmt.Errorf("progress interval must be at least 1 second")
	}

	if config.Worker.Retention <= 0 {
		return fmt.Errorf("retention must be positive")
	}

	// the janitor must never reach an artifact whose deletion job is still pending
	if config.Worker.MaxArtifactAge <= config.Worker.Retention {
		return fmt.Errorf("max artifact age (%s) must be greater than retention (%s)",
			config.Worker.MaxArtifactAge, config.Worker.Retention)
	}

	if config.Worker.SweepSchedule == "" {
		return fmt.Errorf("sweep schedule not configured")
	}
	if _, err := cron.ParseStandard(config.Worker.SweepSchedule); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", config.Worker.SweepSchedule, err)
	}

	if config.Cache.LocatorTTL <= 0 || config.Cache.LocatorTTL > maxLocatorTTL {
		return fmt.Errorf("locator ttl must be between 0 and %s, got %s", maxLocatorTTL, config.Cache.LocatorTTL)
	}

	if config.Download.BaseDir == "" {
		return fmt.Errorf("download base directory not configured")
	}

	if config.Journal.Enabled && config.Journal.DatabasePath == "" {
		return fmt.Errorf("journal database path not configured")
	}

	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}

	return nil
}
