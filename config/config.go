package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds server configuration.
type Config struct {
	Listen   string
	LogLevel string `mapstructure:"log_level"`
	Storage  StorageConfig
	CORS     CORSConfig
}

// StorageConfig selects and configures the signature store backend.
type StorageConfig struct {
	Type           string
	LocalPath      string `mapstructure:"local_path"`
	DataSourceName string `mapstructure:"data_source_name"`
	S3Bucket       string `mapstructure:"s3_bucket"`
	S3Prefix       string `mapstructure:"s3_prefix"`
	RedisAddr      string `mapstructure:"redis_addr"`
	RedisPassword  string `mapstructure:"redis_password"`
	RedisDB        int    `mapstructure:"redis_db"`
}

// CORSConfig lists extra origins allowed besides localhost.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Load reads configuration from an optional TOML file, a .env file and the
// environment. Env var overrides use prefix SIGNPAD_; the legacy
// STORAGE_TYPE, LOCAL_STORAGE_PATH, DATA_SOURCE_NAME and S3_BUCKET_NAME
// variables are honoured as well.
func Load(path string) (Config, error) {
	// a missing .env is fine
	_ = godotenv.Load()

	v := viper.New()

	v.SetDefault("listen", ":3002")
	v.SetDefault("log_level", "info")
	v.SetDefault("storage.type", "memory")
	v.SetDefault("storage.local_path", "./data")
	v.SetDefault("storage.data_source_name", "signpad.db")
	v.SetDefault("storage.s3_bucket", "")
	v.SetDefault("storage.s3_prefix", "signatures/")
	v.SetDefault("storage.redis_addr", "localhost:6379")
	v.SetDefault("storage.redis_password", "")
	v.SetDefault("storage.redis_db", 0)
	v.SetDefault("cors.allowed_origins", []string{})

	v.SetEnvPrefix("SIGNPAD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, env := range map[string]string{
		"storage.type":             "STORAGE_TYPE",
		"storage.local_path":       "LOCAL_STORAGE_PATH",
		"storage.data_source_name": "DATA_SOURCE_NAME",
		"storage.s3_bucket":        "S3_BUCKET_NAME",
	} {
		if err := v.BindEnv(key, "SIGNPAD_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}
