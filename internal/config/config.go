package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/quocanhngo/talkhub/internal/logger"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	App     AppConfig     `yaml:"app"`
	DB      DBConfig      `yaml:"db"`
	Redis   RedisConfig   `yaml:"redis"`
	JWT     JWTConfig     `yaml:"jwt"`
	Storage StorageConfig `yaml:"storage"`
	CORS    CORSConfig    `yaml:"cors"`
	Push    PushConfig    `yaml:"push"`
	Hub     HubConfig     `yaml:"hub"`
	Paging  PagingConfig  `yaml:"paging"`
}

type AppConfig struct {
	Env  string `yaml:"env"`
	Port string `yaml:"port"`
}

func (a AppConfig) IsProduction() bool { return a.Env == "production" }

type DBConfig struct {
	Driver     string `yaml:"driver"` // postgres, sqlite or mongo
	Host       string `yaml:"host"`
	Port       string `yaml:"port"`
	User       string `yaml:"user"`
	Password   string `yaml:"password"`
	Name       string `yaml:"name"`
	SSLMode    string `yaml:"sslmode"`
	SQLitePath string `yaml:"sqlite_path"`
	MongoURI   string `yaml:"mongo_uri"`
}

// DSN returns the PostgreSQL connection string
func (d DBConfig) DSN() string {
	return "host=" + d.Host +
		" user=" + d.User +
		" password=" + d.Password +
		" dbname=" + d.Name +
		" port=" + d.Port +
		" sslmode=" + d.SSLMode +
		" TimeZone=UTC"
}

// URL returns the PostgreSQL connection URL (for golang-migrate)
func (d DBConfig) URL() string {
	return "postgres://" + d.User + ":" + d.Password +
		"@" + d.Host + ":" + d.Port +
		"/" + d.Name + "?sslmode=" + d.SSLMode
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Password string `yaml:"password"`
	Channel  string `yaml:"channel"`
}

// Addr returns the Redis address
func (r RedisConfig) Addr() string {
	return r.Host + ":" + r.Port
}

type JWTConfig struct {
	Secret string        `yaml:"secret"`
	Expiry time.Duration `yaml:"expiry"`
}

type StorageConfig struct {
	Provider   string           `yaml:"provider"` // minio or cloudinary
	MinIO      MinIOConfig      `yaml:"minio"`
	Cloudinary CloudinaryConfig `yaml:"cloudinary"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	PublicURL string `yaml:"public_url"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type CloudinaryConfig struct {
	CloudName string `yaml:"cloud_name"`
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	Folder    string `yaml:"folder"`
}

type CORSConfig struct {
	Origins []string `yaml:"origins"`
}

type PushConfig struct {
	FCMCredentialsFile string `yaml:"fcm_credentials_file"`
	VAPIDPublicKey     string `yaml:"vapid_public_key"`
	VAPIDPrivateKey    string `yaml:"vapid_private_key"`
	VAPIDSubscriber    string `yaml:"vapid_subscriber"`
}

type HubConfig struct {
	SendBuffer     int   `yaml:"send_buffer"`
	MaxMessageSize int64 `yaml:"max_message_size"`
}

type PagingConfig struct {
	DefaultTake int `yaml:"default_take"`
	MaxTake     int `yaml:"max_take"`
}

// Load reads configuration from an optional YAML file (CONFIG_FILE), then
// the .env file and environment variables, which take precedence.
func Load() *Config {
	// Load .env file (ignore error if not exists - e.g. in Docker)
	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found, reading from environment variables")
	}

	cfg := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			logger.Warnf("Config file ignored: %v", err)
		}
	}
	applyEnv(cfg)
	return cfg
}

func defaults() *Config {
	return &Config{
		App: AppConfig{Env: "development", Port: "8080"},
		DB: DBConfig{
			Driver:     "postgres",
			Host:       "localhost",
			Port:       "5432",
			User:       "talkhub",
			Password:   "talkhub",
			Name:       "talkhub",
			SSLMode:    "disable",
			SQLitePath: "talkhub.db",
			MongoURI:   "mongodb://localhost:27017/talkhub",
		},
		Redis: RedisConfig{Enabled: true, Host: "localhost", Port: "6379", Channel: "talkhub:events"},
		JWT:   JWTConfig{Secret: "default-secret", Expiry: 24 * time.Hour},
		Storage: StorageConfig{
			Provider: "minio",
			MinIO: MinIOConfig{
				Endpoint:  "localhost:9000",
				AccessKey: "minioadmin",
				SecretKey: "minioadmin",
				Bucket:    "talkhub-media",
			},
			Cloudinary: CloudinaryConfig{Folder: "talkhub"},
		},
		CORS:   CORSConfig{Origins: []string{"http://localhost:3000"}},
		Push:   PushConfig{VAPIDSubscriber: "talkhub"},
		Hub:    HubConfig{SendBuffer: 256, MaxMessageSize: 4096},
		Paging: PagingConfig{DefaultTake: 50, MaxTake: 100},
	}
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.App.Env = getEnv("APP_ENV", cfg.App.Env)
	cfg.App.Port = getEnv("APP_PORT", cfg.App.Port)

	cfg.DB.Driver = getEnv("DB_DRIVER", cfg.DB.Driver)
	cfg.DB.Host = getEnv("DB_HOST", cfg.DB.Host)
	cfg.DB.Port = getEnv("DB_PORT", cfg.DB.Port)
	cfg.DB.User = getEnv("DB_USER", cfg.DB.User)
	cfg.DB.Password = getEnv("DB_PASSWORD", cfg.DB.Password)
	cfg.DB.Name = getEnv("DB_NAME", cfg.DB.Name)
	cfg.DB.SSLMode = getEnv("DB_SSLMODE", cfg.DB.SSLMode)
	cfg.DB.SQLitePath = getEnv("SQLITE_PATH", cfg.DB.SQLitePath)
	cfg.DB.MongoURI = getEnv("MONGO_URI", cfg.DB.MongoURI)

	cfg.Redis.Enabled = getBool("REDIS_ENABLED", cfg.Redis.Enabled)
	cfg.Redis.Host = getEnv("REDIS_HOST", cfg.Redis.Host)
	cfg.Redis.Port = getEnv("REDIS_PORT", cfg.Redis.Port)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.Channel = getEnv("REDIS_CHANNEL", cfg.Redis.Channel)

	cfg.JWT.Secret = getEnv("JWT_SECRET", cfg.JWT.Secret)
	if raw, ok := os.LookupEnv("JWT_EXPIRY"); ok {
		if d, err := time.ParseDuration(raw); err == nil {
			cfg.JWT.Expiry = d
		}
	}

	cfg.Storage.Provider = getEnv("STORAGE_PROVIDER", cfg.Storage.Provider)
	cfg.Storage.MinIO.Endpoint = getEnv("MINIO_ENDPOINT", cfg.Storage.MinIO.Endpoint)
	cfg.Storage.MinIO.PublicURL = getEnv("MINIO_PUBLIC_URL", cfg.Storage.MinIO.PublicURL)
	cfg.Storage.MinIO.AccessKey = getEnv("MINIO_ACCESS_KEY", cfg.Storage.MinIO.AccessKey)
	cfg.Storage.MinIO.SecretKey = getEnv("MINIO_SECRET_KEY", cfg.Storage.MinIO.SecretKey)
	cfg.Storage.MinIO.Bucket = getEnv("MINIO_BUCKET", cfg.Storage.MinIO.Bucket)
	cfg.Storage.MinIO.UseSSL = getBool("MINIO_USE_SSL", cfg.Storage.MinIO.UseSSL)
	cfg.Storage.Cloudinary.CloudName = getEnv("CLOUDINARY_CLOUD_NAME", cfg.Storage.Cloudinary.CloudName)
	cfg.Storage.Cloudinary.APIKey = getEnv("CLOUDINARY_API_KEY", cfg.Storage.Cloudinary.APIKey)
	cfg.Storage.Cloudinary.APISecret = getEnv("CLOUDINARY_API_SECRET", cfg.Storage.Cloudinary.APISecret)
	cfg.Storage.Cloudinary.Folder = getEnv("CLOUDINARY_FOLDER", cfg.Storage.Cloudinary.Folder)

	if raw, ok := os.LookupEnv("CORS_ORIGINS"); ok {
		cfg.CORS.Origins = strings.Split(raw, ",")
	}

	cfg.Push.FCMCredentialsFile = getEnv("FIREBASE_CREDENTIALS_FILE", cfg.Push.FCMCredentialsFile)
	cfg.Push.VAPIDPublicKey = getEnv("VAPID_PUBLIC_KEY", cfg.Push.VAPIDPublicKey)
	cfg.Push.VAPIDPrivateKey = getEnv("VAPID_PRIVATE_KEY", cfg.Push.VAPIDPrivateKey)
	cfg.Push.VAPIDSubscriber = getEnv("VAPID_SUBSCRIBER", cfg.Push.VAPIDSubscriber)

	cfg.Hub.SendBuffer = getInt("HUB_SEND_BUFFER", cfg.Hub.SendBuffer)
	cfg.Hub.MaxMessageSize = int64(getInt("HUB_MAX_MESSAGE_SIZE", int(cfg.Hub.MaxMessageSize)))

	cfg.Paging.DefaultTake = getInt("PAGE_DEFAULT_TAKE", cfg.Paging.DefaultTake)
	cfg.Paging.MaxTake = getInt("PAGE_MAX_TAKE", cfg.Paging.MaxTake)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}
