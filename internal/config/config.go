package config

import (
	"cronjobs/pkg/postgres"
	"cronjobs/pkg/redis"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Launcher  LauncherConfig  `mapstructure:"launcher"`
	Scripts   ScriptsConfig   `mapstructure:"scripts"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Database  postgres.Config `mapstructure:"database"`
	Redis     redis.Config    `mapstructure:"redis"`
	Log       LogConfig       `mapstructure:"log"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type ServerConfig struct {
	Port string
	Env  string
}

type SchedulerConfig struct {
	// TimeZone is the zone cron expressions are evaluated in.
	TimeZone     string
	HeartbeatTTL time.Duration
}

type LauncherConfig struct {
	// Command is the interpreter; empty means the running executable.
	Command string
	// Args precede the job slug on the command line.
	Args []string
	// WorkDir is the child working directory; empty inherits ours.
	WorkDir string
}

type ScriptsConfig struct {
	Dir                    string
	ExecutionRetentionDays int
}

type AdminConfig struct {
	Token                  string
	ManualTriggerPerMinute int
	RateLimitExpire        time.Duration
	RateLimitCleanup       time.Duration
}

type TelegramConfig struct {
	BotToken string
	ChatID   int64
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		log.Println("Failed to read config file .env config try read from environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port: viper.GetString("PORT"),
			Env:  viper.GetString("ENV"),
		},
		Scheduler: SchedulerConfig{
			TimeZone:     viper.GetString("SCHEDULER_TIME_ZONE"),
			HeartbeatTTL: viper.GetDuration("SCHEDULER_HEARTBEAT_TTL"),
		},
		Launcher: LauncherConfig{
			Command: viper.GetString("LAUNCHER_COMMAND"),
			Args:    launcherArgs(viper.GetString("LAUNCHER_COMMAND"), viper.GetString("LAUNCHER_ARGS")),
			WorkDir: viper.GetString("LAUNCHER_WORK_DIR"),
		},
		Scripts: ScriptsConfig{
			Dir:                    viper.GetString("SCRIPTS_DIR"),
			ExecutionRetentionDays: viper.GetInt("EXECUTION_RETENTION_DAYS"),
		},
		Admin: AdminConfig{
			Token:                  viper.GetString("ADMIN_TOKEN"),
			ManualTriggerPerMinute: viper.GetInt("MANUAL_TRIGGER_PER_MINUTE"),
			RateLimitExpire:        viper.GetDuration("RATE_LIMIT_EXPIRE_DURATION"),
			RateLimitCleanup:       viper.GetDuration("RATE_LIMIT_CLEANUP_DURATION"),
		},
		Telegram: TelegramConfig{
			BotToken: viper.GetString("TELEGRAM_BOT_TOKEN"),
			ChatID:   viper.GetInt64("TELEGRAM_CHAT_ID"),
		},
		Log: LogConfig{
			Level: viper.GetString("LOG_LEVEL"),
		},
		Database: postgres.Config{
			Host:            viper.GetString("DATABASE_HOST"),
			Port:            viper.GetInt("DATABASE_PORT"),
			User:            viper.GetString("DATABASE_USER"),
			Password:        viper.GetString("DATABASE_PASSWORD"),
			DBName:          viper.GetString("DATABASE_NAME"),
			SSLMode:         viper.GetString("DATABASE_SSL_MODE"),
			TimeZone:        viper.GetString("DATABASE_TIME_ZONE"),
			MaxIdleConns:    viper.GetInt("DATABASE_MAX_IDLE_CONNS"),
			MaxOpenConns:    viper.GetInt("DATABASE_MAX_OPEN_CONNS"),
			ConnMaxLifetime: viper.GetString("DATABASE_CONN_MAX_LIFETIME"),
			LogLevel:        viper.GetString("DATABASE_LOG_LEVEL"),
		},
		Redis: redis.Config{
			Host:        viper.GetString("REDIS_HOST"),
			Port:        viper.GetInt("REDIS_PORT"),
			Password:    viper.GetString("REDIS_PASSWORD"),
			DB:          viper.GetInt("REDIS_DB"),
			PoolSize:    viper.GetInt("REDIS_POOL_SIZE"),
			DialTimeout: viper.GetDuration("REDIS_DIAL_TIMEOUT"),
		},
	}

	return config, nil
}

func setDefaults() {
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("SCHEDULER_TIME_ZONE", "Local")
	viper.SetDefault("SCHEDULER_HEARTBEAT_TTL", 2*time.Minute)
	viper.SetDefault("SCRIPTS_DIR", "scripts")
	viper.SetDefault("EXECUTION_RETENTION_DAYS", 90)
	viper.SetDefault("MANUAL_TRIGGER_PER_MINUTE", 6)
	viper.SetDefault("RATE_LIMIT_EXPIRE_DURATION", 30*time.Minute)
	viper.SetDefault("RATE_LIMIT_CLEANUP_DURATION", 5*time.Minute)
	viper.SetDefault("DATABASE_PORT", 5432)
	viper.SetDefault("DATABASE_SSL_MODE", "disable")
	viper.SetDefault("REDIS_PORT", 6379)
}

// launcherArgs defaults to the "run" subcommand only when the launcher
// re-executes this binary. A custom interpreter gets exactly the configured
// args.
func launcherArgs(command, raw string) []string {
	if command == "" && strings.TrimSpace(raw) == "" {
		return []string{"run"}
	}
	return splitList(raw)
}

// splitList parses a comma or whitespace separated list.
func splitList(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
