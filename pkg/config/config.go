package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Storage drivers.
const (
	StorageDriverLocal = "local"
	StorageDriverMinio = "minio"
)

// Notification drivers.
const (
	NotifyDriverHTTP = "http"
	NotifyDriverAMQP = "amqp"
	NotifyDriverLog  = "log"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Storage  StorageConfig
	Notify   NotifyConfig
	Mail     MailConfig
	Cache    CacheConfig
	Metrics  MetricsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	AutoMigrate  bool
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// StorageConfig selects where uploaded files live and how download links are signed.
type StorageConfig struct {
	Driver           string
	Dir              string
	SignedURLSecret  string
	SignedURLTTL     time.Duration
	MaxFileSizeBytes int64

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
}

// NotifyConfig configures outbound email/SMS delivery.
type NotifyConfig struct {
	Driver      string
	Workers     int
	MaxRetries  int
	HTTPTimeout time.Duration
	BaseURL     string

	SendGridAPIKey   string
	EmailFrom        string
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string

	AMQPURL   string
	AMQPQueue string
}

// MailConfig tunes mailbox behaviour.
type MailConfig struct {
	TrashRetention time.Duration
}

// CacheConfig governs read caches.
type CacheConfig struct {
	ProjectTreeTTL time.Duration
}

type MetricsConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	maxUpload := v.GetInt64("UPLOAD_MAX_FILE_SIZE")
	if maxUpload <= 0 {
		maxUpload = 20 * 1024 * 1024
	}
	cfg.Storage = StorageConfig{
		Driver:           strings.ToLower(v.GetString("STORAGE_DRIVER")),
		Dir:              v.GetString("UPLOAD_DIR"),
		SignedURLSecret:  v.GetString("UPLOAD_SIGNED_URL_SECRET"),
		SignedURLTTL:     parseDuration(v.GetString("UPLOAD_SIGNED_URL_TTL"), 24*time.Hour),
		MaxFileSizeBytes: maxUpload,
		MinioEndpoint:    v.GetString("MINIO_ENDPOINT"),
		MinioAccessKey:   v.GetString("MINIO_ACCESS_KEY"),
		MinioSecretKey:   v.GetString("MINIO_SECRET_KEY"),
		MinioBucket:      v.GetString("MINIO_BUCKET"),
		MinioUseSSL:      v.GetBool("MINIO_USE_SSL"),
	}

	cfg.Notify = NotifyConfig{
		Driver:           strings.ToLower(v.GetString("NOTIFY_DRIVER")),
		Workers:          v.GetInt("NOTIFY_WORKERS"),
		MaxRetries:       v.GetInt("NOTIFY_MAX_RETRIES"),
		HTTPTimeout:      parseDuration(v.GetString("NOTIFY_HTTP_TIMEOUT"), 10*time.Second),
		BaseURL:          strings.TrimRight(v.GetString("APP_BASE_URL"), "/"),
		SendGridAPIKey:   v.GetString("SENDGRID_API_KEY"),
		EmailFrom:        firstNonEmpty(v.GetString("NOTIFY_EMAIL_FROM"), v.GetString("SENDGRID_FROM_EMAIL")),
		TwilioAccountSID: v.GetString("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:  v.GetString("TWILIO_AUTH_TOKEN"),
		TwilioFromNumber: v.GetString("TWILIO_FROM_NUMBER"),
		AMQPURL:          firstNonEmpty(v.GetString("RABBITMQ_URL"), v.GetString("AMQP_URL")),
		AMQPQueue:        v.GetString("NOTIFY_AMQP_QUEUE"),
	}

	cfg.Mail = MailConfig{
		TrashRetention: parseDuration(v.GetString("MAIL_TRASH_RETENTION"), 20*24*time.Hour),
	}

	cfg.Cache = CacheConfig{
		ProjectTreeTTL: parseDuration(v.GetString("PROJECT_TREE_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Metrics = MetricsConfig{Enabled: v.GetBool("ENABLE_METRICS")}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "creatia")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "creatia-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("STORAGE_DRIVER", StorageDriverLocal)
	v.SetDefault("UPLOAD_DIR", "./uploads")
	v.SetDefault("UPLOAD_SIGNED_URL_SECRET", "dev_uploads_secret")
	v.SetDefault("UPLOAD_SIGNED_URL_TTL", "24h")
	v.SetDefault("UPLOAD_MAX_FILE_SIZE", 20*1024*1024)
	v.SetDefault("MINIO_BUCKET", "creatia-uploads")
	v.SetDefault("MINIO_USE_SSL", false)

	v.SetDefault("NOTIFY_DRIVER", NotifyDriverHTTP)
	v.SetDefault("NOTIFY_WORKERS", 2)
	v.SetDefault("NOTIFY_MAX_RETRIES", 2)
	v.SetDefault("NOTIFY_HTTP_TIMEOUT", "10s")
	v.SetDefault("NOTIFY_AMQP_QUEUE", "notifications.outbound")
	v.SetDefault("APP_BASE_URL", "http://localhost:8080")

	v.SetDefault("MAIL_TRASH_RETENTION", "480h")
	v.SetDefault("PROJECT_TREE_CACHE_TTL", "5m")
	v.SetDefault("ENABLE_METRICS", true)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
