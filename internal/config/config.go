package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	DatabaseURL string // TASKGATE_DATABASE_URL (required unless running in memory)
	GRPCAddr    string // TASKGATE_GRPC_ADDR (default ":9090")
	HTTPAddr    string // TASKGATE_HTTP_ADDR (default ":8080")
	NATSURL     string // TASKGATE_NATS_URL (optional, empty = no events)
	AuthToken   string // TASKGATE_AUTH_TOKEN (optional, empty = auth disabled)

	LogLevel  string // TASKGATE_LOG_LEVEL (default "info")
	LogFormat string // TASKGATE_LOG_FORMAT ("text" or "json", default "text")

	// Approval policy
	Admins           []string      // TASKGATE_ADMINS (comma-separated member IDs)
	ExcludeRequester bool          // TASKGATE_EXCLUDE_REQUESTER (default true)
	MaxRetries       int           // TASKGATE_MAX_RETRIES (default 3)
	RetryBackoff     time.Duration // TASKGATE_RETRY_BACKOFF (default 10ms)

	// Audit export settings
	ExportInterval   time.Duration // TASKGATE_EXPORT_INTERVAL (default 10m; 0 = disabled)
	ExportS3Bucket   string        // TASKGATE_EXPORT_S3_BUCKET (enables S3 when set)
	ExportS3Endpoint string        // TASKGATE_EXPORT_S3_ENDPOINT (custom endpoint for MinIO)
	ExportS3Region   string        // TASKGATE_EXPORT_S3_REGION (default "us-east-1")
	ExportS3Key      string        // TASKGATE_EXPORT_S3_KEY (default "taskgate/audit.jsonl")
	ExportFile       string        // TASKGATE_EXPORT_FILE (enables a local file when set)
}

// Load reads the configuration from the environment. With requireDB set a
// missing TASKGATE_DATABASE_URL is an error.
func Load(requireDB bool) (*Config, error) {
	c := &Config{
		DatabaseURL:      os.Getenv("TASKGATE_DATABASE_URL"),
		GRPCAddr:         envOrDefault("TASKGATE_GRPC_ADDR", ":9090"),
		HTTPAddr:         envOrDefault("TASKGATE_HTTP_ADDR", ":8080"),
		NATSURL:          os.Getenv("TASKGATE_NATS_URL"),
		AuthToken:        os.Getenv("TASKGATE_AUTH_TOKEN"),
		LogLevel:         envOrDefault("TASKGATE_LOG_LEVEL", "info"),
		LogFormat:        envOrDefault("TASKGATE_LOG_FORMAT", "text"),
		Admins:           splitList(os.Getenv("TASKGATE_ADMINS")),
		ExportS3Bucket:   os.Getenv("TASKGATE_EXPORT_S3_BUCKET"),
		ExportS3Endpoint: os.Getenv("TASKGATE_EXPORT_S3_ENDPOINT"),
		ExportS3Region:   envOrDefault("TASKGATE_EXPORT_S3_REGION", "us-east-1"),
		ExportS3Key:      envOrDefault("TASKGATE_EXPORT_S3_KEY", "taskgate/audit.jsonl"),
		ExportFile:       os.Getenv("TASKGATE_EXPORT_FILE"),
	}
	if requireDB && c.DatabaseURL == "" {
		return nil, fmt.Errorf("TASKGATE_DATABASE_URL is required")
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return nil, fmt.Errorf("TASKGATE_LOG_FORMAT: must be text or json, got %q", c.LogFormat)
	}

	var err error
	if c.ExcludeRequester, err = strconv.ParseBool(envOrDefault("TASKGATE_EXCLUDE_REQUESTER", "true")); err != nil {
		return nil, fmt.Errorf("TASKGATE_EXCLUDE_REQUESTER: %w", err)
	}
	if c.MaxRetries, err = strconv.Atoi(envOrDefault("TASKGATE_MAX_RETRIES", "3")); err != nil {
		return nil, fmt.Errorf("TASKGATE_MAX_RETRIES: %w", err)
	}
	if c.MaxRetries < 1 {
		return nil, fmt.Errorf("TASKGATE_MAX_RETRIES: must be at least 1, got %d", c.MaxRetries)
	}
	if c.RetryBackoff, err = time.ParseDuration(envOrDefault("TASKGATE_RETRY_BACKOFF", "10ms")); err != nil {
		return nil, fmt.Errorf("TASKGATE_RETRY_BACKOFF: %w", err)
	}
	if c.ExportInterval, err = time.ParseDuration(envOrDefault("TASKGATE_EXPORT_INTERVAL", "10m")); err != nil {
		return nil, fmt.Errorf("TASKGATE_EXPORT_INTERVAL: %w", err)
	}

	return c, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
