package config

import (
	"errors"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Storage backends selectable at composition time.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"

	BlobLocal = "local"
	BlobS3    = "s3"
	BlobMock  = "mock"

	CacheRedis  = "redis"
	CacheMemory = "memory"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	Cache      CacheConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	Storage    StorageConfig
	Downloads  DownloadsConfig
	Uploads    UploadsConfig
	Milestones MilestonesConfig
	Purge      PurgeConfig
	Auth       AuthConfig
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
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// CacheConfig selects the file listing cache backend.
type CacheConfig struct {
	Enabled bool
	Backend string
	TTL     time.Duration
	LRUSize int
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

// StorageConfig picks the persistence collaborators.
type StorageConfig struct {
	Backend     string
	Blob        string
	LocalDir    string
	S3          S3Config
	MockTick    time.Duration
	MockFailure float64
}

// S3Config mirrors the S3 client options.
type S3Config struct {
	Region     string
	Bucket     string
	AccessKey  string
	SecretKey  string
	Endpoint   string
	PublicBase string
	PresignTTL time.Duration
}

// DownloadsConfig controls public signed download links.
type DownloadsConfig struct {
	SignedURLSecret string
	SignedURLTTL    time.Duration
}

// UploadsConfig bounds upload requests.
type UploadsConfig struct {
	MaxConcurrent   int
	MaxRequestBytes int64
	ProgressBuffer  int
}

// MilestonesConfig tunes the milestone workflow.
type MilestonesConfig struct {
	EnforceTransitions bool
	UpcomingWindow     time.Duration
}

// PurgeConfig configures the background blob purge queue.
type PurgeConfig struct {
	Workers    int
	Retries    int
	RetryDelay time.Duration
}

// AuthConfig seeds demo users for the in-memory backend.
type AuthConfig struct {
	DemoPassword string
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
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
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
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Cache = CacheConfig{
		Enabled: v.GetBool("ENABLE_CACHE"),
		Backend: strings.ToLower(v.GetString("CACHE_BACKEND")),
		TTL:     parseDuration(v.GetString("CACHE_TTL"), 2*time.Minute),
		LRUSize: v.GetInt("CACHE_LRU_SIZE"),
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

	cfg.Storage = StorageConfig{
		Backend:  strings.ToLower(v.GetString("STORAGE_BACKEND")),
		Blob:     strings.ToLower(v.GetString("BLOB_BACKEND")),
		LocalDir: v.GetString("BLOB_LOCAL_DIR"),
		S3: S3Config{
			Region:     v.GetString("S3_REGION"),
			Bucket:     v.GetString("S3_BUCKET"),
			AccessKey:  v.GetString("S3_ACCESS_KEY"),
			SecretKey:  v.GetString("S3_SECRET_KEY"),
			Endpoint:   v.GetString("S3_ENDPOINT"),
			PublicBase: strings.TrimRight(v.GetString("S3_PUBLIC_BASE"), "/"),
			PresignTTL: parseDuration(v.GetString("S3_PRESIGN_TTL"), 15*time.Minute),
		},
		MockTick:    parseDuration(v.GetString("MOCK_UPLOAD_TICK"), 0),
		MockFailure: v.GetFloat64("MOCK_UPLOAD_FAILURE_RATE"),
	}

	cfg.Downloads = DownloadsConfig{
		SignedURLSecret: v.GetString("DOWNLOAD_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("DOWNLOAD_SIGNED_URL_TTL"), 30*time.Minute),
	}

	maxRequest := v.GetInt64("UPLOAD_MAX_REQUEST_BYTES")
	if maxRequest <= 0 {
		maxRequest = 1 << 30
	}
	cfg.Uploads = UploadsConfig{
		MaxConcurrent:   v.GetInt("UPLOAD_MAX_CONCURRENCY"),
		MaxRequestBytes: maxRequest,
		ProgressBuffer:  v.GetInt("UPLOAD_PROGRESS_BUFFER"),
	}

	cfg.Milestones = MilestonesConfig{
		EnforceTransitions: v.GetBool("MILESTONES_ENFORCE_TRANSITIONS"),
		UpcomingWindow:     parseDuration(v.GetString("TIMELINE_UPCOMING_WINDOW"), 7*24*time.Hour),
	}

	cfg.Purge = PurgeConfig{
		Workers:    v.GetInt("BLOB_PURGE_WORKERS"),
		Retries:    v.GetInt("BLOB_PURGE_RETRIES"),
		RetryDelay: parseDuration(v.GetString("BLOB_PURGE_RETRY_DELAY"), 2*time.Second),
	}

	cfg.Auth = AuthConfig{DemoPassword: v.GetString("AUTH_DEMO_PASSWORD")}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "projecthub")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ENABLE_CACHE", false)
	v.SetDefault("CACHE_BACKEND", CacheMemory)
	v.SetDefault("CACHE_TTL", "2m")
	v.SetDefault("CACHE_LRU_SIZE", 512)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "projecthub-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("STORAGE_BACKEND", StorageMemory)
	v.SetDefault("BLOB_BACKEND", BlobLocal)
	v.SetDefault("BLOB_LOCAL_DIR", "./uploads")
	v.SetDefault("S3_REGION", "")
	v.SetDefault("S3_BUCKET", "")
	v.SetDefault("S3_PRESIGN_TTL", "15m")
	v.SetDefault("MOCK_UPLOAD_TICK", "0s")
	v.SetDefault("MOCK_UPLOAD_FAILURE_RATE", 0.0)

	v.SetDefault("DOWNLOAD_SIGNED_URL_SECRET", "dev_download_secret")
	v.SetDefault("DOWNLOAD_SIGNED_URL_TTL", "30m")

	v.SetDefault("UPLOAD_MAX_CONCURRENCY", 4)
	v.SetDefault("UPLOAD_MAX_REQUEST_BYTES", 1<<30)
	v.SetDefault("UPLOAD_PROGRESS_BUFFER", 32)

	v.SetDefault("MILESTONES_ENFORCE_TRANSITIONS", false)
	v.SetDefault("TIMELINE_UPCOMING_WINDOW", "168h")

	v.SetDefault("BLOB_PURGE_WORKERS", 1)
	v.SetDefault("BLOB_PURGE_RETRIES", 3)
	v.SetDefault("BLOB_PURGE_RETRY_DELAY", "2s")

	v.SetDefault("AUTH_DEMO_PASSWORD", "password")
}

// DSN renders the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return "host=" + c.Host +
		" port=" + strconv.Itoa(c.Port) +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.Name +
		" sslmode=" + c.SSLMode
}

// MigrateURL renders the URL form understood by golang-migrate's postgres driver.
func (c DatabaseConfig) MigrateURL() string {
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + strconv.Itoa(c.Port) + "/" + c.Name + "?sslmode=" + c.SSLMode
}

// .env is optional; SetConfigFile surfaces a missing file as a path error.
func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
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
