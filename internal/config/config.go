package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション設定を表す
type Config struct {
	Env      string
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Store    StoreConfig
	Cookie   CookieConfig
	S3       S3Config
	Images   ImagesConfig
	Metrics  MetricsConfig
}

// ServerConfig はサーバー設定
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	BasePath     string
}

// DatabaseConfig はデータベース設定
type DatabaseConfig struct {
	Host           string
	Port           string
	User           string
	Password       string
	DBName         string
	SSLMode        string
	MigrationsPath string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig はRedis設定
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
}

// StoreConfig はコンサートストアの設定
type StoreConfig struct {
	Backend         string // memory | postgres
	DefaultPageSize int
	MaxPageSize     int
	CacheTTL        time.Duration
}

// CookieConfig はクライアント識別Cookieの設定
type CookieConfig struct {
	Name   string
	MaxAge time.Duration
	Secure bool
}

// S3Config は画像バケットの設定
type S3Config struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
}

// ImagesConfig は画像同期の設定
type ImagesConfig struct {
	DownloadDir  string
	SyncEnabled  bool
	SyncInterval time.Duration
}

// MetricsConfig は /metrics エンドポイントのBasic認証設定
// User と Password の両方が設定されたときだけ認証を要求する
type MetricsConfig struct {
	User     string
	Password string
}

// ストアバックエンド
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// Load は環境変数から設定を読み込む
func Load() *Config {
	cfg := &Config{
		Env: getEnv("APP_ENV", "development"),
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 30*time.Second),
			BasePath:     strings.TrimSuffix(getEnv("BASE_PATH", ""), "/"),
		},
		Database: DatabaseConfig{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnv("DB_PORT", "5432"),
			User:           getEnv("DB_USER", "postgres"),
			Password:       getEnv("DB_PASSWORD", "postgres"),
			DBName:         getEnv("DB_NAME", "concerts"),
			SSLMode:        getEnv("DB_SSLMODE", "disable"),
			MigrationsPath: getEnv("DB_MIGRATIONS_PATH", "migrations"),

			MaxOpenConns:    getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDurationEnv("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			Enabled:  getBoolEnv("REDIS_ENABLED", false),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		Store: StoreConfig{
			Backend:         getEnv("STORE_BACKEND", BackendMemory),
			DefaultPageSize: getIntEnv("DEFAULT_PAGE_SIZE", 20),
			MaxPageSize:     getIntEnv("MAX_PAGE_SIZE", 100),
			CacheTTL:        getDurationEnv("CACHE_TTL", 5*time.Minute),
		},
		Cookie: CookieConfig{
			Name:   getEnv("CLIENT_COOKIE_NAME", "clientId"),
			MaxAge: getDurationEnv("CLIENT_COOKIE_MAX_AGE", 365*24*time.Hour),
			Secure: getBoolEnv("CLIENT_COOKIE_SECURE", false),
		},
		S3: S3Config{
			Region:          getEnv("AWS_REGION", "ap-southeast-2"),
			Bucket:          getEnv("AWS_BUCKET", "concert.aucklanduni.ac.nz"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			Endpoint:        getEnv("AWS_ENDPOINT", ""),
		},
		Images: ImagesConfig{
			DownloadDir:  getEnv("IMAGE_DOWNLOAD_DIR", defaultImageDir()),
			SyncEnabled:  getBoolEnv("IMAGE_SYNC_ENABLED", false),
			SyncInterval: getDurationEnv("IMAGE_SYNC_INTERVAL", time.Hour),
		},
		Metrics: MetricsConfig{
			User:     getEnv("METRICS_USER", ""),
			Password: getEnv("METRICS_PASSWORD", ""),
		},
	}

	// PaaS形式の接続URLがあれば個別設定より優先する
	if raw := os.Getenv("DATABASE_URL"); raw != "" {
		applyDatabaseURL(&cfg.Database, raw)
	}
	if raw := os.Getenv("REDIS_URL"); raw != "" {
		applyRedisURL(&cfg.Redis, raw)
	}

	return cfg
}

// DSN はPostgreSQL接続文字列を返す
func (c *DatabaseConfig) DSN() string {
	return "host=" + c.Host +
		" port=" + c.Port +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.DBName +
		" sslmode=" + c.SSLMode
}

// Addr はRedis接続アドレスを返す
func (c *RedisConfig) Addr() string {
	return c.Host + ":" + c.Port
}

// AuthEnabled はメトリクス認証が有効かどうかを返す
func (c *MetricsConfig) AuthEnabled() bool {
	return c.User != "" && c.Password != ""
}

// HasStaticCredentials は静的なAWS認証情報が設定されているかを返す
func (c *S3Config) HasStaticCredentials() bool {
	return c.AccessKeyID != "" && c.SecretAccessKey != ""
}

func applyDatabaseURL(c *DatabaseConfig, raw string) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return
	}
	c.Host = u.Hostname()
	if port := u.Port(); port != "" {
		c.Port = port
	}
	if u.User != nil {
		c.User = u.User.Username()
		if pass, ok := u.User.Password(); ok {
			c.Password = pass
		}
	}
	if name := strings.TrimPrefix(u.Path, "/"); name != "" {
		c.DBName = name
	}
	c.SSLMode = "require"
	if mode := u.Query().Get("sslmode"); mode != "" {
		c.SSLMode = mode
	}
}

func applyRedisURL(c *RedisConfig, raw string) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return
	}
	c.Enabled = true
	c.Host = u.Hostname()
	if port := u.Port(); port != "" {
		c.Port = port
	}
	if u.User != nil {
		if pass, ok := u.User.Password(); ok {
			c.Password = pass
		}
	}
}

func defaultImageDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "images"
	}
	return home + string(os.PathSeparator) + "images"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
