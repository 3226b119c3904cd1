package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Env        string `env:"ENV" envDefault:"production"`
	ServerPort int    `env:"SERVER_PORT" envDefault:"8080"`
	ClientURL  string `env:"CLIENT_URL" envDefault:"http://localhost:3000"`

	Log      LogConfig
	Auth     AuthConfig
	Store    StoreConfig
	Database DatabaseConfig
	Mongo    MongoConfig
	Email    EmailConfig
	MQ       MQConfig
	Storage  StorageConfig
	Redis    RedisConfig
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type AuthConfig struct {
	JWTSecret       string        `env:"JWT_SECRET"`
	SessionTTL      time.Duration `env:"AUTH_SESSION_TTL" envDefault:"24h"`
	VerificationTTL time.Duration `env:"AUTH_VERIFICATION_TTL" envDefault:"24h"`
	ResetTTL        time.Duration `env:"AUTH_RESET_TTL" envDefault:"1h"`
	CookieName      string        `env:"AUTH_COOKIE_NAME" envDefault:"token"`
	CookieSecure    bool          `env:"AUTH_COOKIE_SECURE" envDefault:"true"`
	CookieSameSite  string        `env:"AUTH_COOKIE_SAMESITE" envDefault:"none"`
	BcryptCost      int           `env:"AUTH_BCRYPT_COST" envDefault:"10"`
	HashConcurrency int           `env:"AUTH_HASH_CONCURRENCY"`
}

// StoreConfig selects the persistence backend: postgres, mongo or memory.
type StoreConfig struct {
	Driver string `env:"STORE_DRIVER" envDefault:"postgres"`
}

type DatabaseConfig struct {
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     int    `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"taskmanager"`
	Password string `env:"DB_PASSWORD" envDefault:"password"`
	DBName   string `env:"DB_NAME" envDefault:"taskmanager"`
	UseSSL   bool   `env:"DB_USE_SSL" envDefault:"false"`
}

type MongoConfig struct {
	ConnectionURL   string        `env:"MONGODB_URL" envDefault:"mongodb://localhost:27017"`
	Database        string        `env:"MONGODB_DATABASE" envDefault:"taskmanager"`
	ConnectTimeout  time.Duration `env:"MONGODB_CONNECT_TIMEOUT" envDefault:"10s"`
	MaxPoolSize     uint64        `env:"MONGODB_MAX_POOL_SIZE" envDefault:"100"`
	MinPoolSize     uint64        `env:"MONGODB_MIN_POOL_SIZE" envDefault:"1"`
	MaxConnIdleTime time.Duration `env:"MONGODB_MAX_CONN_IDLE_TIME" envDefault:"300s"`
	RetryAttempts   int           `env:"MONGODB_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval   time.Duration `env:"MONGODB_RETRY_INTERVAL" envDefault:"5s"`
}

// EmailConfig selects the delivery provider: smtp, postmark or log.
type EmailConfig struct {
	Provider             string `env:"EMAIL_PROVIDER" envDefault:"log"`
	LogBodies            bool   `env:"EMAIL_LOG_BODIES"`
	From                 string `env:"EMAIL_FROM" envDefault:"no-reply@taskmanager.local"`
	ReplyTo              string `env:"EMAIL_REPLY_TO"`
	SMTPHost             string `env:"SMTP_HOST"`
	SMTPPort             int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser             string `env:"SMTP_USER"`
	SMTPPass             string `env:"SMTP_PASSWORD"`
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
}

// MQConfig selects the email queue backend: none, memory, rabbitmq or pubsub.
type MQConfig struct {
	Driver       string `env:"MQ_DRIVER" envDefault:"none"`
	EmailChannel string `env:"MQ_EMAIL_CHANNEL" envDefault:"emails"`
	RabbitMQ     RabbitMQConfig
	PubSub       PubSubConfig
}

type RabbitMQConfig struct {
	URL             string `env:"RABBITMQ_URL"`
	QueueDurable    bool   `env:"RABBITMQ_QUEUE_DURABLE" envDefault:"true"`
	QueueAutoDelete bool   `env:"RABBITMQ_QUEUE_AUTO_DELETE" envDefault:"false"`
	PrefetchCount   int    `env:"RABBITMQ_PREFETCH_COUNT" envDefault:"10"`
}

type PubSubConfig struct {
	ProjectID          string        `env:"PUBSUB_PROJECT_ID"`
	CredentialsFile    string        `env:"PUBSUB_CREDENTIALS_FILE"`
	SubscriptionSuffix string        `env:"PUBSUB_SUBSCRIPTION_SUFFIX" envDefault:"-sub"`
	// MaxOutstanding bounds unacknowledged deliveries, like RABBITMQ_PREFETCH_COUNT.
	MaxOutstanding     int           `env:"PUBSUB_MAX_OUTSTANDING" envDefault:"10"`
	AckDeadline        time.Duration `env:"PUBSUB_ACK_DEADLINE" envDefault:"30s"`
}

// StorageConfig selects the attachment backend: none, memory, minio or gcs.
type StorageConfig struct {
	Driver string `env:"STORAGE_DRIVER" envDefault:"none"`
	Minio  MinioConfig
	GCS    GCSConfig
}

type MinioConfig struct {
	Endpoint  string `env:"MINIO_ENDPOINT" envDefault:"localhost:9000"`
	AccessKey string `env:"MINIO_ACCESS_KEY"`
	SecretKey string `env:"MINIO_SECRET_KEY"`
	Bucket    string `env:"MINIO_BUCKET" envDefault:"taskmanager"`
	UseSSL    bool   `env:"MINIO_USE_SSL" envDefault:"false"`
}

type GCSConfig struct {
	Bucket          string `env:"GCS_BUCKET"`
	ProjectID       string `env:"GCS_PROJECT_ID"`
	CredentialsFile string `env:"GCS_CREDENTIALS_FILE"`
}

// RedisConfig enables rate limiting of credential endpoints when URL is set.
type RedisConfig struct {
	URL            string  `env:"REDIS_URL"`
	RateLimitRate  float64 `env:"RATE_LIMIT_RATE" envDefault:"1"`
	RateLimitBurst float64 `env:"RATE_LIMIT_BURST" envDefault:"10"`
}

func LoadConfig() (Config, error) {
	if os.Getenv("ENV") == "dev" {
		godotenv.Load()
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// IsDev reports whether the process runs in the development environment.
func (c Config) IsDev() bool {
	return c.Env == "dev"
}
