// Package model defines the data structures used throughout the Portfolio Tree application.
package model

// Config holds the application settings loaded from the config file.
type Config struct {
	DatabaseType          string   `json:"database_type" toml:"database_type"`
	DatabaseDir           string   `json:"database_dir" toml:"database_dir"`
	DatabaseFile          string   `json:"database_file" toml:"database_file"`
	LogFolder             string   `json:"log_folder" toml:"log_folder"`
	CommandLog            string   `json:"command_log" toml:"command_log"`
	ErrorLog              string   `json:"error_log" toml:"error_log"`
	InfoLog               string   `json:"info_log" toml:"info_log"`
	LogLevel              string   `json:"log_level" toml:"log_level"`
	DefaultUser           string   `json:"default_user" toml:"default_user"`
	DefaultUserActive     bool     `json:"default_user_active" toml:"default_user_active"`
	DefaultUserPassword   string   `json:"default_user_password" toml:"default_user_password"`
	HTTPAddr              string   `json:"http_addr" toml:"http_addr"`
	AllowedOrigins        []string `json:"allowed_origins" toml:"allowed_origins"`
	SessionSecret         string   `json:"session_secret" toml:"session_secret"`
	SessionTimeoutMinutes int      `json:"session_timeout_minutes" toml:"session_timeout_minutes"`
	UploadBackend         string   `json:"upload_backend" toml:"upload_backend"`
	UploadDir             string   `json:"upload_dir" toml:"upload_dir"`
	UploadMaxBytes        int64    `json:"upload_max_bytes" toml:"upload_max_bytes"`
	S3Bucket              string   `json:"s3_bucket" toml:"s3_bucket"`
	S3Region              string   `json:"s3_region" toml:"s3_region"`
	S3Endpoint            string   `json:"s3_endpoint" toml:"s3_endpoint"`
	S3AccessKey           string   `json:"s3_access_key" toml:"s3_access_key"`
	S3SecretKey           string   `json:"s3_secret_key" toml:"s3_secret_key"`
}

// Upload backends.
const (
	UploadBackendLocal = "local"
	UploadBackendS3    = "s3"
)
