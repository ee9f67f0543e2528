package config

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

type Config struct {
	Port                    string `env:"PORT,default=8080"`
	Env                     string `env:"ENV,default=development"`
	LogLevel                string `env:"LOG_LEVEL,default=info"`
	FirebaseCredentialsPath string `env:"FIREBASE_CREDENTIALS_PATH"`
	PostgresConnStr         string `env:"POSTGRES_CONN_STR,default=host=localhost user=postgres password=postgres dbname=social port=5432 sslmode=disable"`
	MongoURI                string `env:"MONGO_URI,default=mongodb://localhost:27017"`
	MongoDatabase           string `env:"MONGO_DATABASE,default=socialmedia"`
	RedisURL                string `env:"REDIS_URL"`
	MetricsPort             string `env:"METRICS_PORT,default=9090"`

	JWTSecret string        `env:"JWT_SECRET,default=supersecretjwtkey"`
	JWTTTL    time.Duration `env:"JWT_TTL,default=72h"`

	MinioEndpoint  string `env:"MINIO_ENDPOINT"`
	MinioAccessKey string `env:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `env:"MINIO_SECRET_KEY"`
	MinioBucket    string `env:"MINIO_BUCKET,default=media"`
	MinioUseSSL    bool   `env:"MINIO_USE_SSL,default=false"`
	MediaPublicURL string `env:"MEDIA_PUBLIC_URL"`

	ChatBatchSize     int           `env:"CHAT_BATCH_SIZE,default=50"`
	PresenceTTL       time.Duration `env:"PRESENCE_TTL,default=90s"`
	PresenceSweepSpec string        `env:"PRESENCE_SWEEP_SPEC,default=@every 1m"`

	RateLimitRPS       float64 `env:"RATE_LIMIT_RPS,default=20"`
	RateLimitBurst     int     `env:"RATE_LIMIT_BURST,default=40"`
	AuthRateLimitRPS   float64 `env:"AUTH_RATE_LIMIT_RPS,default=2"`
	AuthRateLimitBurst int     `env:"AUTH_RATE_LIMIT_BURST,default=5"`
}

// Load reads the optional .env file and decodes the environment into a Config
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, assuming environment variables are set.")
	}

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("failed to decode environment: %w", err)
	}

	if cfg.ChatBatchSize < 1 {
		return nil, fmt.Errorf("CHAT_BATCH_SIZE must be positive, got %d", cfg.ChatBatchSize)
	}
	if cfg.JWTTTL <= 0 {
		return nil, fmt.Errorf("JWT_TTL must be positive")
	}
	return &cfg, nil
}

// IsDevelopment reports whether the server runs with development defaults
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
