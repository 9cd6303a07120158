package config

import (
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL      string `envconfig:"DATABASE_URL" required:"true"`
	DatabaseMaxConns int32  `envconfig:"DATABASE_MAX_CONNS" default:"10"`
	DatabaseMinConns int32  `envconfig:"DATABASE_MIN_CONNS" default:"2"`

	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"policychat-documents"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	OpenAIAPIKey string `envconfig:"OPENAI_API_KEY"`
	ChatModel    string `envconfig:"CHAT_MODEL" default:"gpt-4o-mini"`

	// Retrieval tuning. Threshold and TopK gate which chunks make it into
	// the chat context; ChunkMaxChars caps the size of each indexed chunk.
	RetrievalThreshold float64 `envconfig:"RETRIEVAL_THRESHOLD" default:"0.3"`
	RetrievalTopK      int     `envconfig:"RETRIEVAL_TOP_K" default:"5"`
	ChunkMaxChars      int     `envconfig:"CHUNK_MAX_CHARS" default:"8192"`

	// TokenTTLSeconds bounds how long a login token stays valid in the cache
	TokenTTLSeconds int `envconfig:"TOKEN_TTL_SECONDS" default:"86400"`

	// ChatRateRPS throttles the streaming chat endpoint per user
	ChatRateRPS   float64 `envconfig:"CHAT_RATE_RPS" default:"1"`
	ChatRateBurst int     `envconfig:"CHAT_RATE_BURST" default:"5"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("POLICYCHAT", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}
