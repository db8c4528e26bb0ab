package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr           string
		ReadTimeout    time.Duration
		WriteTimeout   time.Duration
		AllowedOrigins []string
	}
	Log struct {
		Level  string
		Format string
	}
	Auth struct {
		JWTSecret string
	}
	Database struct {
		Driver     string
		URI        string
		Name       string
		Collection string
		Path       string
	}
	Storage struct {
		Driver    string
		Bucket    string
		Region    string
		Endpoint  string
		PublicURL string
		Folder    string
		AccessKey string
		SecretKey string
		UseSSL    bool
	}
	AWS struct {
		Profile string
	}
	Upload struct {
		MaxFiles     int
		MaxFileBytes int64
		Concurrency  int
	}
	Cache struct {
		RedisAddr string
		TTL       time.Duration
	}
	Events struct {
		NatsURL       string
		SubjectPrefix string
	}
}

// Load reads configuration from environment variables and optional config files.
// Values from .env never override variables already set in the environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("CARLOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", "0.0.0.0:8080")
	v.SetDefault("server.readtimeout", 30*time.Second)
	v.SetDefault("server.writetimeout", 60*time.Second)
	v.SetDefault("server.allowedorigins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("auth.jwtsecret", "")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.uri", "mongodb://localhost:27017")
	v.SetDefault("database.name", "carlot")
	v.SetDefault("database.collection", "cars")
	v.SetDefault("database.path", "data/carlot.db")
	v.SetDefault("storage.driver", "s3")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.publicurl", "")
	v.SetDefault("storage.folder", "cars")
	v.SetDefault("storage.accesskey", "")
	v.SetDefault("storage.secretkey", "")
	v.SetDefault("storage.usessl", true)
	v.SetDefault("aws.profile", "")
	v.SetDefault("upload.maxfiles", 10)
	v.SetDefault("upload.maxfilebytes", 5<<20)
	v.SetDefault("upload.concurrency", 4)
	v.SetDefault("cache.redisaddr", "")
	v.SetDefault("cache.ttl", time.Hour)
	v.SetDefault("events.natsurl", "")
	v.SetDefault("events.subjectprefix", "carlot.listings")

	v.SetConfigName("config")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// Validate reports every setting the server cannot start without.
func (c Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		errs = append(errs, errors.New("auth.jwtsecret is required"))
	}

	switch c.Database.Driver {
	case "mongo":
		if c.Database.URI == "" || c.Database.Name == "" || c.Database.Collection == "" {
			errs = append(errs, errors.New("database.uri, database.name and database.collection are required for mongo"))
		}
	case "sqlite":
		if c.Database.Path == "" {
			errs = append(errs, errors.New("database.path is required for sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown database.driver %q", c.Database.Driver))
	}

	switch c.Storage.Driver {
	case "s3":
	case "minio":
		if c.Storage.Endpoint == "" {
			errs = append(errs, errors.New("storage.endpoint is required for minio"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.driver %q", c.Storage.Driver))
	}
	if c.Storage.Bucket == "" {
		errs = append(errs, errors.New("storage.bucket is required"))
	}

	if c.Upload.MaxFiles <= 0 {
		errs = append(errs, errors.New("upload.maxfiles must be positive"))
	}
	if c.Upload.MaxFileBytes <= 0 {
		errs = append(errs, errors.New("upload.maxfilebytes must be positive"))
	}
	if c.Upload.Concurrency < 0 {
		errs = append(errs, errors.New("upload.concurrency must not be negative"))
	}

	return errors.Join(errs...)
}
