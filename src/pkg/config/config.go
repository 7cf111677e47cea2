// Package config provides functionality for loading, saving, and managing
// application configuration settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/goccy/go-json"

	"portfoliotree/app/src/pkg/model"
)

// DefaultPath is used when no config path is given.
const DefaultPath = "./data/config.json"

// Global variables to store the current configuration and its file path.
var (
	currentConfig *model.Config
	configPath    = DefaultPath
)

// Default returns the configuration written on first start.
func Default() *model.Config {
	return &model.Config{
		DatabaseType:          "sqlite",
		DatabaseDir:           "./data",
		DatabaseFile:          "portfoliotree.db",
		LogFolder:             "./logs",
		CommandLog:            "commands.log",
		ErrorLog:              "errors.log",
		InfoLog:               "info.log",
		LogLevel:              "info",
		DefaultUser:           "guest",
		DefaultUserActive:     false,
		DefaultUserPassword:   "",
		HTTPAddr:              ":8080",
		AllowedOrigins:        []string{"http://localhost:3000"},
		SessionSecret:         "",
		SessionTimeoutMinutes: 30,
		UploadBackend:         model.UploadBackendLocal,
		UploadDir:             "./data/uploads",
		UploadMaxBytes:        10 << 20,
		S3Region:              "us-east-1",
	}
}

// ConfigLoad loads the configuration from path, a .json or .toml file.
// If the file doesn't exist, a default JSON configuration is created.
// Environment variables prefixed with PORTFOLIOTREE_ override file values.
func ConfigLoad(path string) error {
	if path != "" {
		configPath = path
	}

	// Ensure the data directory exists
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	cfg := Default()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := ConfigSave(cfg); err != nil {
			return fmt.Errorf("failed to create default config: %w", err)
		}
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return fmt.Errorf("error reading config file: %w", err)
		}
		if err := decode(configPath, data, cfg); err != nil {
			return fmt.Errorf("error parsing config file: %w", err)
		}
	}

	applyEnv(cfg, os.Getenv)
	if err := Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	currentConfig = cfg
	return nil
}

// decode unmarshals on top of the defaults so that missing keys keep their default value.
func decode(path string, data []byte, cfg *model.Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		_, err := toml.Decode(string(data), cfg)
		return err
	case ".json", "":
		return json.Unmarshal(data, cfg)
	default:
		return fmt.Errorf("unsupported config format: %s", filepath.Ext(path))
	}
}

// applyEnv overrides settings that are commonly injected by deployment environments.
func applyEnv(cfg *model.Config, getenv func(string) string) {
	set := func(key string, dst *string) {
		if v := getenv("PORTFOLIOTREE_" + key); v != "" {
			*dst = v
		}
	}
	set("HTTP_ADDR", &cfg.HTTPAddr)
	set("SESSION_SECRET", &cfg.SessionSecret)
	set("DATABASE_TYPE", &cfg.DatabaseType)
	set("DATABASE_DIR", &cfg.DatabaseDir)
	set("DATABASE_FILE", &cfg.DatabaseFile)
	set("LOG_LEVEL", &cfg.LogLevel)
	set("UPLOAD_BACKEND", &cfg.UploadBackend)
	set("UPLOAD_DIR", &cfg.UploadDir)
	set("S3_BUCKET", &cfg.S3Bucket)
	set("S3_REGION", &cfg.S3Region)
	set("S3_ENDPOINT", &cfg.S3Endpoint)
	set("S3_ACCESS_KEY", &cfg.S3AccessKey)
	set("S3_SECRET_KEY", &cfg.S3SecretKey)
	if v := getenv("PORTFOLIOTREE_ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = strings.Split(v, ",")
	}
	if v := getenv("PORTFOLIOTREE_SESSION_TIMEOUT_MINUTES"); v != "" {
		if minutes, err := strconv.Atoi(v); err == nil {
			cfg.SessionTimeoutMinutes = minutes
		}
	}
}

// Validate checks the values that have a fixed set of choices.
func Validate(cfg *model.Config) error {
	switch cfg.DatabaseType {
	case "sqlite", "sqlite-native":
	default:
		return fmt.Errorf("unsupported database type: %s", cfg.DatabaseType)
	}
	switch cfg.UploadBackend {
	case model.UploadBackendLocal:
		if cfg.UploadDir == "" {
			return fmt.Errorf("upload_dir is required for the local upload backend")
		}
	case model.UploadBackendS3:
		if cfg.S3Bucket == "" {
			return fmt.Errorf("s3_bucket is required for the s3 upload backend")
		}
	default:
		return fmt.Errorf("unsupported upload backend: %s", cfg.UploadBackend)
	}
	if cfg.SessionTimeoutMinutes <= 0 {
		return fmt.Errorf("session_timeout_minutes must be positive")
	}
	if cfg.UploadMaxBytes <= 0 {
		return fmt.Errorf("upload_max_bytes must be positive")
	}
	return nil
}

// ValidateServe adds the checks that only matter when the HTTP adapter runs.
func ValidateServe(cfg *model.Config) error {
	if len(cfg.SessionSecret) < 16 {
		return fmt.Errorf("session_secret must be at least 16 characters")
	}
	return nil
}

// ConfigSave saves the provided configuration to the config file in its format.
func ConfigSave(cfg *model.Config) error {
	var data []byte
	var err error
	if strings.ToLower(filepath.Ext(configPath)) == ".toml" {
		var sb strings.Builder
		err = toml.NewEncoder(&sb).Encode(cfg)
		data = []byte(sb.String())
	} else {
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}

// ConfigGet returns the current configuration.
func ConfigGet() *model.Config {
	return currentConfig
}
