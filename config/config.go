package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/viper"
)

var (
	globalConfig Config
	once         sync.Once
)

// Config flat configuration structure
type Config struct {
	// Server
	ServerHost         string        `mapstructure:"server_host"`
	ServerPort         int           `mapstructure:"server_port"`
	ServerReadTimeout  time.Duration `mapstructure:"server_read_timeout"`
	ServerWriteTimeout time.Duration `mapstructure:"server_write_timeout"`
	ServerIdleTimeout  time.Duration `mapstructure:"server_idle_timeout"`

	// Database
	DBType            string `mapstructure:"db_type"`
	DBHost            string `mapstructure:"db_host"`
	DBPort            int    `mapstructure:"db_port"`
	DBUsername        string `mapstructure:"db_username"`
	DBPassword        string `mapstructure:"db_password"`
	DBName            string `mapstructure:"db_name"`
	DBFilePath        string `mapstructure:"db_file_path"`
	DBMaxOpenConns    int    `mapstructure:"db_max_open_conns"`
	DBMaxIdleConns    int    `mapstructure:"db_max_idle_conns"`
	DBConnMaxLifetime int    `mapstructure:"db_conn_max_lifetime"`

	// Discord bot
	DiscordToken   string `mapstructure:"discord_token"`
	DiscordGuildID string `mapstructure:"discord_guild_id"`

	// Key issuance
	KeyPrefix    string        `mapstructure:"key_prefix"`
	KeyLength    int           `mapstructure:"key_length"`
	ExpiryWindow time.Duration `mapstructure:"expiry_window"`

	// Expiry sweeper
	SweepNotifyInterval   time.Duration `mapstructure:"sweep_notify_interval"`
	SweepRolloverInterval time.Duration `mapstructure:"sweep_rollover_interval"`
	SweepRearmThreshold   time.Duration `mapstructure:"sweep_rearm_threshold"`
	SweepBatchSize        int           `mapstructure:"sweep_batch_size"`

	// Rate limiting
	RateLimitRegisterRPS   float64       `mapstructure:"rate_limit_register_rps"`
	RateLimitRegisterBurst int           `mapstructure:"rate_limit_register_burst"`
	RateLimitExpireTime    time.Duration `mapstructure:"rate_limit_expire_time"`
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// BotEnabled reports whether a Discord token is configured.
func (c *Config) BotEnabled() bool {
	return c.DiscordToken != ""
}

// InitConfig Initialize configuration
func InitConfig() {
	once.Do(func() {
		loadConfig()
	})
}

func Get() *Config {
	return &globalConfig
}

// loadConfig Core configuration loading
func loadConfig() {
	setDefaults()

	viper.SetConfigFile(".env")
	viper.SetConfigType("env")

	if err := viper.ReadInConfig(); err != nil {
		fmt.Fprintln(os.Stderr, "Info: .env file not found, using defaults and environment variables")
	} else {
		fmt.Fprintln(os.Stderr, "Info: Loaded configuration from .env file")
	}

	viper.AutomaticEnv()
	for _, key := range viper.AllKeys() {
		viper.BindEnv(key)
	}

	if err := viper.Unmarshal(&globalConfig); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: Unable to unmarshal config, %v\n", err)
		os.Exit(1)
	}

	// The rollover threshold must sit inside the expiry window, otherwise the
	// rollover pass would re-arm rows that are already expired.
	if globalConfig.SweepRearmThreshold >= globalConfig.ExpiryWindow {
		globalConfig.SweepRearmThreshold = globalConfig.ExpiryWindow - time.Hour
	}
}

// setDefaults set default values
func setDefaults() {
	// Server
	viper.SetDefault("server_host", "0.0.0.0")
	viper.SetDefault("server_port", 5000)
	viper.SetDefault("server_read_timeout", "15s")
	viper.SetDefault("server_write_timeout", "30s")
	viper.SetDefault("server_idle_timeout", "120s")

	// Database
	viper.SetDefault("db_type", "sqlite")
	viper.SetDefault("db_host", "localhost")
	viper.SetDefault("db_port", 5432)
	viper.SetDefault("db_username", "postgres")
	viper.SetDefault("db_password", "")
	viper.SetDefault("db_name", "keygate")
	viper.SetDefault("db_file_path", "")
	viper.SetDefault("db_max_open_conns", 100)
	viper.SetDefault("db_max_idle_conns", 25)
	viper.SetDefault("db_conn_max_lifetime", 3600)

	// Discord
	viper.SetDefault("discord_token", "")
	viper.SetDefault("discord_guild_id", "")

	// Key issuance
	viper.SetDefault("key_prefix", "Violet-Hub-")
	viper.SetDefault("key_length", 32)
	viper.SetDefault("expiry_window", "24h")

	// Sweeper
	viper.SetDefault("sweep_notify_interval", "30s")
	viper.SetDefault("sweep_rollover_interval", "1h")
	viper.SetDefault("sweep_rearm_threshold", "23h")
	viper.SetDefault("sweep_batch_size", 100)

	// Rate limiting
	viper.SetDefault("rate_limit_register_rps", 10.0)
	viper.SetDefault("rate_limit_register_burst", 20)
	viper.SetDefault("rate_limit_expire_time", "10m")
}
