package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

type AWSConfig struct {
	Region    string
	AccountID string
	// Endpoint overrides the AWS endpoint, used for localstack.
	Endpoint string
}

func (c *AWSConfig) Validate() error {
	if c.Region == "" {
		return errors.New("AWS_REGION is required")
	}
	return nil
}

type StorageConfig struct {
	Bucket         string
	PartSize       int64
	MaxConcurrency int
	SignedURLTTL   time.Duration
}

func (c *StorageConfig) Validate() error {
	if c.Bucket == "" {
		return errors.New("S3_BUCKET is required")
	}
	if c.PartSize < 5*1024*1024 {
		return fmt.Errorf("UPLOAD_PART_SIZE must be at least 5MiB, got %d", c.PartSize)
	}
	if c.MaxConcurrency < 1 {
		return errors.New("UPLOAD_MAX_CONCURRENCY must be positive")
	}
	return nil
}

type DynamoDBConfig struct {
	VideosTableName string
}

func (c *DynamoDBConfig) Validate() error {
	if c.VideosTableName == "" {
		return errors.New("DYNAMODB_VIDEOS_TABLE is required")
	}
	return nil
}

type AuthConfig struct {
	AdminUsername     string
	AdminPasswordHash string
	TokenSecret       string
	TokenTTL          time.Duration
}

func (c *AuthConfig) Validate() error {
	if c.AdminUsername == "" || c.AdminPasswordHash == "" {
		return errors.New("ADMIN_USERNAME and ADMIN_PASSWORD_HASH are required")
	}
	if c.TokenSecret == "" {
		return errors.New("TOKEN_SECRET is required")
	}
	return nil
}

type RedisConfig struct {
	Host string
}

type ServiceConfig struct {
	HTTPAddr        string
	EventsQueueName string
}

type Config struct {
	Env string

	AWSConfig      *AWSConfig
	StorageConfig  *StorageConfig
	DynamoDBConfig *DynamoDBConfig
	AuthConfig     *AuthConfig
	RedisConfig    *RedisConfig
	ServiceConfig  *ServiceConfig

	Tracing     bool
	TracingAddr string
}

// Validate fails fast on any missing credential or identifier so that a
// misconfigured deployment never limps along.
func (c *Config) Validate() error {
	if err := c.AWSConfig.Validate(); err != nil {
		return err
	}
	if err := c.StorageConfig.Validate(); err != nil {
		return err
	}
	if err := c.DynamoDBConfig.Validate(); err != nil {
		return err
	}
	return c.AuthConfig.Validate()
}

func LoadConfig() Config {
	return Config{
		Env: getEnv("ENV", "dev"),

		AWSConfig: &AWSConfig{
			Region:    os.Getenv("AWS_REGION"),
			AccountID: os.Getenv("AWS_ACCOUNT_ID"),
			Endpoint:  os.Getenv("AWS_ENDPOINT"),
		},
		StorageConfig: &StorageConfig{
			Bucket:         os.Getenv("S3_BUCKET"),
			PartSize:       getEnvInt64("UPLOAD_PART_SIZE", 8*1024*1024),
			MaxConcurrency: getEnvInt("UPLOAD_MAX_CONCURRENCY", 3),
			SignedURLTTL:   getEnvDuration("SIGNED_URL_TTL", 15*time.Minute),
		},
		DynamoDBConfig: &DynamoDBConfig{
			VideosTableName: os.Getenv("DYNAMODB_VIDEOS_TABLE"),
		},
		AuthConfig: &AuthConfig{
			AdminUsername:     os.Getenv("ADMIN_USERNAME"),
			AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
			TokenSecret:       os.Getenv("TOKEN_SECRET"),
			TokenTTL:          getEnvDuration("TOKEN_TTL", 12*time.Hour),
		},
		RedisConfig: &RedisConfig{
			Host: os.Getenv("REDIS_HOST"),
		},
		ServiceConfig: &ServiceConfig{
			HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
			EventsQueueName: os.Getenv("EVENTS_QUEUE_NAME"),
		},

		Tracing:     os.Getenv("TRACING") == "true",
		TracingAddr: os.Getenv("TRACING_ADDR"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
