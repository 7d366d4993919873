package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the configuration settings for the geocoding resolution
// service: environment, monitoring port, provider credentials and daily
// ceilings, cache behavior, and the durable store backend.
type Config struct {
	Env         string        // Env is the current environment: local, development, production.
	Port        int           // Port is the monitoring/API server port.
	HomeCountry string        // HomeCountry is the ISO 3166-1 alpha-2 code omitted from domestic addresses.
	CacheTTL    time.Duration // CacheTTL is how long resolved addresses stay cached.

	Providers ProvidersConfig // Per-provider credentials and limits.
	Quotas    map[string]int  // Per-provider daily call ceilings. Zero means unlimited.

	StoreType string         // StoreType selects the durable backend: redis, postgres, or memory.
	Redis     RedisConfig    // Redis holds the redis connection settings.
	Database  PostgresConfig // Database holds the postgres connection settings.
}

// ProvidersConfig holds external provider credentials and rate limits.
type ProvidersConfig struct {
	GoogleAPIKey     string // API key for Google Maps.
	OpenCageAPIKey   string // API key for OpenCage.
	GeoapifyAPIKey   string // API key for Geoapify.
	NominatimRateRPS int    // Client-side requests-per-second limit for Nominatim.
	GoogleRateQPS    int    // Rate limit for the Google Maps client.
}

// RedisConfig holds the connection details for a Redis store backend.
type RedisConfig struct {
	Addr     string // Addr is the redis server address (host:port).
	Password string // Password is the redis auth password, empty when disabled.
	DB       int    // DB is the redis logical database index.
}

// PostgresConfig holds the connection details for a Postgres store backend.
type PostgresConfig struct {
	Host     string // Host is the database server address.
	Port     string // Port is the database server port.
	User     string // User is the database user.
	Password string // Password is the database user's password.
	Name     string // Name is the name of the database.
}

// MustLoad loads the configuration from the environment (with optional
// .env file) and panics on malformed values.
func MustLoad() *Config {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("MERIDIAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("env", "production")
	v.SetDefault("port", 8080)
	v.SetDefault("home.country", "in")
	v.SetDefault("cache.ttl", "24h")
	v.SetDefault("store.type", "memory")

	v.SetDefault("nominatim.rate", 1)
	v.SetDefault("google.rate", 10)

	// Daily ceilings mirror the free tiers of the commercial providers;
	// zero means unlimited.
	v.SetDefault("quota.nominatim", 0)
	v.SetDefault("quota.google", 1000)
	v.SetDefault("quota.opencage", 2500)
	v.SetDefault("quota.geoapify", 3000)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", "5432")
	v.SetDefault("db.user", "")
	v.SetDefault("db.password", "")
	v.SetDefault("db.name", "")

	cacheTTL, err := time.ParseDuration(v.GetString("cache.ttl"))
	if err != nil {
		panic("failed to parse cache TTL from configuration")
	}

	storeType := v.GetString("store.type")
	switch storeType {
	case "redis", "postgres", "memory":
	default:
		panic("failed to parse store type from configuration, must be redis, postgres or memory")
	}

	return &Config{
		Env:         v.GetString("env"),
		Port:        v.GetInt("port"),
		HomeCountry: strings.ToLower(v.GetString("home.country")),
		CacheTTL:    cacheTTL,
		Providers: ProvidersConfig{
			GoogleAPIKey:     v.GetString("google.key"),
			OpenCageAPIKey:   v.GetString("opencage.key"),
			GeoapifyAPIKey:   v.GetString("geoapify.key"),
			NominatimRateRPS: v.GetInt("nominatim.rate"),
			GoogleRateQPS:    v.GetInt("google.rate"),
		},
		Quotas: map[string]int{
			"nominatim": v.GetInt("quota.nominatim"),
			"google":    v.GetInt("quota.google"),
			"opencage":  v.GetInt("quota.opencage"),
			"geoapify":  v.GetInt("quota.geoapify"),
		},
		StoreType: storeType,
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Database: PostgresConfig{
			Host:     v.GetString("db.host"),
			Port:     v.GetString("db.port"),
			User:     v.GetString("db.user"),
			Password: v.GetString("db.password"),
			Name:     v.GetString("db.name"),
		},
	}
}
