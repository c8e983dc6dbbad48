// ABOUTME: Service configuration loaded from defaults, file, env and flags
// ABOUTME: Backed by viper with an optional .env file

package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Cache backends
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config is the complete service configuration
type Config struct {
	Datastore     DatastoreConfig     `mapstructure:"datastore"`
	Server        ServerConfig        `mapstructure:"server"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	GRPC          GRPCConfig          `mapstructure:"grpc"`
	Log           LogConfig           `mapstructure:"log"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Service       ServiceConfig       `mapstructure:"service"`
}

// DatastoreConfig locates the datastore on disk
type DatastoreConfig struct {
	RootDir string `mapstructure:"root_dir"`
}

// ServerConfig configures the public HTTP API
type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// ObservabilityConfig configures the metrics and profiling server
type ObservabilityConfig struct {
	Port int `mapstructure:"port"`
}

// GRPCConfig configures the gRPC health server. Port 0 disables it.
type GRPCConfig struct {
	Port int `mapstructure:"port"`
}

// LogConfig configures logging
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// CacheConfig configures the document cache
type CacheConfig struct {
	Backend   string        `mapstructure:"backend"`
	TTL       time.Duration `mapstructure:"ttl"`
	RedisAddr string        `mapstructure:"redis_addr"`
	Watch     bool          `mapstructure:"watch"`
}

// ServiceConfig identifies the running instance
type ServiceConfig struct {
	CommitID string `mapstructure:"commit_id"`
	HostName string `mapstructure:"host_name"`
}

// envBindings maps config keys to the environment variables that set them
var envBindings = map[string]string{
	"datastore.root_dir": "DATASTORE_ROOT_DIR",
	"server.port":        "PORT",
	"observability.port": "METRICS_PORT",
	"grpc.port":          "GRPC_PORT",
	"log.level":          "LOG_LEVEL",
	"log.pretty":         "LOG_PRETTY",
	"cache.backend":      "CACHE_BACKEND",
	"cache.ttl":          "CACHE_TTL",
	"cache.redis_addr":   "REDIS_ADDR",
	"cache.watch":        "CACHE_WATCH",
	"service.commit_id":  "COMMIT_ID",
	"service.host_name":  "DOCKER_HOST_NAME",
}

// New returns a viper instance with defaults and environment bindings set
func New() *viper.Viper {
	v := viper.New()

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.request_timeout", 15*time.Second)
	v.SetDefault("observability.port", 9090)
	v.SetDefault("grpc.port", 50051)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("cache.backend", CacheMemory)
	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.watch", true)
	v.SetDefault("service.commit_id", "unknown")
	v.SetDefault("service.host_name", hostname)

	for key, env := range envBindings {
		// BindEnv only fails when called without a key
		_ = v.BindEnv(key, env)
	}

	return v
}

// Load reads the optional .env and config file into v and returns the
// validated configuration. An empty configFile searches the working
// directory for metadata-service.yaml.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	_ = godotenv.Load()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("metadata-service")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for missing or out of range values
func (c *Config) Validate() error {
	if c.Datastore.RootDir == "" {
		return errors.New("datastore root directory is required (DATASTORE_ROOT_DIR)")
	}
	info, err := os.Stat(c.Datastore.RootDir)
	if err != nil {
		return fmt.Errorf("datastore root directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("datastore root %s is not a directory", c.Datastore.RootDir)
	}

	if err := validPort("server.port", c.Server.Port, false); err != nil {
		return err
	}
	if err := validPort("observability.port", c.Observability.Port, true); err != nil {
		return err
	}
	if err := validPort("grpc.port", c.GRPC.Port, true); err != nil {
		return err
	}
	if c.Server.RequestTimeout <= 0 {
		return errors.New("server.request_timeout must be positive")
	}

	switch c.Cache.Backend {
	case CacheNone, CacheMemory:
	case CacheRedis:
		if c.Cache.RedisAddr == "" {
			return errors.New("cache.redis_addr is required for the redis cache backend")
		}
	default:
		return fmt.Errorf("unknown cache backend %q (want none, memory or redis)", c.Cache.Backend)
	}
	if c.Cache.Backend != CacheNone {
		switch {
		case c.Cache.TTL == 0:
			return errors.New("cache.ttl must be set; use a negative value to disable expiry")
		case c.Cache.TTL < 0 && !c.Cache.Watch:
			return errors.New("cache.ttl may only disable expiry when cache.watch is enabled")
		}
	}

	return nil
}

func validPort(key string, port int, zeroAllowed bool) error {
	if port == 0 && zeroAllowed {
		return nil
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s must be between 1 and 65535, got %d", key, port)
	}
	return nil
}
