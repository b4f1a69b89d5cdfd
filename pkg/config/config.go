package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	NATS     NATSConfig
	JWT      JWTConfig
	Dispatch DispatchConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port            string
	Environment     string
	ServiceName     string
	ReadTimeout     int
	WriteTimeout    int
	CallableTimeout int // per-callable budget in seconds
	CORSOrigins     string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// NATSConfig holds NATS event bus configuration
type NATSConfig struct {
	URL     string
	Enabled bool
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret     string
	Expiration int // in hours
}

// DispatchConfig holds the pilot-phase dispatch tuning knobs.
// Every recognized option is env-tunable; defaults match the pilot rollout.
type DispatchConfig struct {
	DriverResponseTimeout       time.Duration // offer expiry window
	SearchTimeout               time.Duration // unmatched-request expiry window
	DriverArrivalTimeout        time.Duration // no-show expiry window
	SweepInterval               time.Duration // sweeper cadence
	SweepBudget                 time.Duration // per-sweep context budget
	MaxActiveTripsPerPassenger  int
	MaxActiveTripsPerDriver     int
	MaxSearchRadiusKm           float64
	MinFareIls                  int
	RatePerKm                   float64
	ConfigCacheTTL              time.Duration // system_config read-through cache
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			Environment:     getEnv("ENVIRONMENT", "development"),
			ServiceName:     serviceName,
			ReadTimeout:     getEnvAsInt("READ_TIMEOUT", 10),
			WriteTimeout:    getEnvAsInt("WRITE_TIMEOUT", 10),
			CallableTimeout: getEnvAsInt("CALLABLE_TIMEOUT_SECONDS", 30),
			CORSOrigins:     getEnv("CORS_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "taxidispatch"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns: getEnvAsInt("DB_MIN_CONNS", 5),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		NATS: NATSConfig{
			URL:     getEnv("NATS_URL", "nats://localhost:4222"),
			Enabled: getEnvAsBool("NATS_ENABLED", false),
		},
		JWT: JWTConfig{
			Secret:     getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
			Expiration: getEnvAsInt("JWT_EXPIRATION", 24),
		},
		Dispatch: DispatchConfig{
			DriverResponseTimeout:      getEnvAsSeconds("DRIVER_RESPONSE_TIMEOUT_SECONDS", 20),
			SearchTimeout:              getEnvAsSeconds("SEARCH_TIMEOUT_SECONDS", 120),
			DriverArrivalTimeout:       getEnvAsSeconds("DRIVER_ARRIVAL_TIMEOUT_SECONDS", 300),
			SweepInterval:              getEnvAsSeconds("SWEEP_INTERVAL_SECONDS", 60),
			SweepBudget:                getEnvAsSeconds("SWEEP_BUDGET_SECONDS", 60),
			MaxActiveTripsPerPassenger: getEnvAsInt("MAX_ACTIVE_TRIPS_PER_PASSENGER", 1),
			MaxActiveTripsPerDriver:    getEnvAsInt("MAX_ACTIVE_TRIPS_PER_DRIVER", 1),
			MaxSearchRadiusKm:          getEnvAsFloat("MAX_SEARCH_RADIUS_KM", 15.0),
			MinFareIls:                 getEnvAsInt("MIN_FARE_ILS", 5),
			RatePerKm:                  getEnvAsFloat("RATE_PER_KM", 0.5),
			ConfigCacheTTL:             getEnvAsSeconds("CONFIG_CACHE_TTL_SECONDS", 10),
		},
	}

	if cfg.Server.CallableTimeout <= 0 {
		cfg.Server.CallableTimeout = 30
	}
	if cfg.Dispatch.MaxActiveTripsPerPassenger <= 0 {
		cfg.Dispatch.MaxActiveTripsPerPassenger = 1
	}
	if cfg.Dispatch.MaxActiveTripsPerDriver <= 0 {
		cfg.Dispatch.MaxActiveTripsPerDriver = 1
	}
	if cfg.Dispatch.MaxSearchRadiusKm <= 0 {
		cfg.Dispatch.MaxSearchRadiusKm = 15.0
	}

	return cfg, nil
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// MigrateURL returns the database URL used by the migration runner
func (c *DatabaseConfig) MigrateURL() string {
	return fmt.Sprintf(
		"pgx5://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsSeconds(key string, defaultSeconds int) time.Duration {
	return time.Duration(getEnvAsInt(key, defaultSeconds)) * time.Second
}
