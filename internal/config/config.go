package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreDriverMongo  = "mongo"
	StoreDriverMemory = "memory"
)

type Config struct {
	HTTPPort        string
	ServiceName     string
	Env             string
	LogLevel        string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	StoreDriver    string
	MongoURI       string
	MongoDBName    string
	StoreOpTimeout time.Duration

	RedisAddr       string
	RedisPassword   string
	CatalogCacheTTL time.Duration
	LinkCacheTTL    time.Duration
	CacheOpTimeout  time.Duration

	KafkaBrokers      []string
	KafkaTopic        string
	KafkaWriteTimeout time.Duration

	JWTSecret string
}

// Load reads the environment, after applying a .env file when one exists. Values
// already present in the environment win over the file.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var errs []error
	cfg := &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		ServiceName:     getEnv("SERVICE_NAME", "storefront"),
		Env:             getEnv("ENV", "development"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		RequestTimeout:  getDuration("REQUEST_TIMEOUT", 30*time.Second, &errs),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 10*time.Second, &errs),

		StoreDriver:    strings.ToLower(getEnv("STORE_DRIVER", StoreDriverMongo)),
		MongoURI:       getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:    getEnv("MONGO_DB_NAME", "storefront"),
		StoreOpTimeout: getDuration("STORE_OP_TIMEOUT", 5*time.Second, &errs),

		RedisAddr:       getEnv("REDIS_ADDR", ""),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		CatalogCacheTTL: getDuration("CATALOG_CACHE_TTL", 5*time.Second, &errs),
		LinkCacheTTL:    getDuration("LINK_CACHE_TTL", 600*time.Second, &errs),
		CacheOpTimeout:  getDuration("CACHE_OP_TIMEOUT", time.Second, &errs),

		KafkaBrokers:      getList("KAFKA_BROKERS"),
		KafkaTopic:        getEnv("KAFKA_TOPIC", "storefront-events"),
		KafkaWriteTimeout: getDuration("KAFKA_WRITE_TIMEOUT", 5*time.Second, &errs),

		JWTSecret: getEnv("JWT_SECRET", ""),
	}

	if cfg.StoreDriver != StoreDriverMongo && cfg.StoreDriver != StoreDriverMemory {
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreDriverMongo, StoreDriverMemory, cfg.StoreDriver))
	}
	if cfg.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDuration accepts Go durations ("5s") or bare seconds ("600").
func getDuration(key string, defaultValue time.Duration, errs *[]error) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return d
}

func getList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
