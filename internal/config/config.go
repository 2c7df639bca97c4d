package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultJWTSecret is the development signing secret. It is refused in
// production.
const DefaultJWTSecret = "dev_secret"

type Config struct {
	Port               string        `mapstructure:"PORT"`
	Env                string        `mapstructure:"ENV"`
	DatabaseURL        string        `mapstructure:"DATABASE_URL"`
	DBMaxConns         int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns         int32         `mapstructure:"DB_MIN_CONNS"`
	MigrationsDir      string        `mapstructure:"MIGRATIONS_DIR"`
	JWTSecret          string        `mapstructure:"JWT_SECRET"`
	JWTTTL             time.Duration `mapstructure:"JWT_TTL"`
	CORSOrigins        []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS       float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst     int           `mapstructure:"RATE_LIMIT_BURST"`
	RequestTimeout     time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	BroadcastQueueSize int           `mapstructure:"BROADCAST_QUEUE_SIZE"`
	SessionBufferSize  int           `mapstructure:"SESSION_BUFFER_SIZE"`
	DeviceCacheSize    int           `mapstructure:"DEVICE_CACHE_SIZE"`
	RedisURL           string        `mapstructure:"REDIS_URL"`
	MQTTBrokerURL      string        `mapstructure:"MQTT_BROKER_URL"`
	MQTTClientID       string        `mapstructure:"MQTT_CLIENT_ID"`
	MQTTSOSTopic       string        `mapstructure:"MQTT_SOS_TOPIC"`
	MQTTUsername       string        `mapstructure:"MQTT_USERNAME"`
	MQTTPassword       string        `mapstructure:"MQTT_PASSWORD"`
	BodyLimit          string        `mapstructure:"BODY_LIMIT"`
	DeviceBodyLimit    string        `mapstructure:"DEVICE_BODY_LIMIT"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "4000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("MIGRATIONS_DIR", "")
	v.SetDefault("JWT_SECRET", DefaultJWTSecret)
	v.SetDefault("JWT_TTL", "168h")
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("RATE_LIMIT_RPS", 5)
	v.SetDefault("RATE_LIMIT_BURST", 10)
	v.SetDefault("REQUEST_TIMEOUT", "15s")
	v.SetDefault("BROADCAST_QUEUE_SIZE", 1024)
	v.SetDefault("SESSION_BUFFER_SIZE", 64)
	v.SetDefault("DEVICE_CACHE_SIZE", 4096)
	v.SetDefault("MQTT_CLIENT_ID", "remora-server")
	v.SetDefault("MQTT_SOS_TOPIC", "remora/devices/+/sos")
	v.SetDefault("BODY_LIMIT", "1M")
	v.SetDefault("DEVICE_BODY_LIMIT", "4K")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range []string{
		"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "MIGRATIONS_DIR",
		"JWT_SECRET", "JWT_TTL", "CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
		"REQUEST_TIMEOUT", "BROADCAST_QUEUE_SIZE", "SESSION_BUFFER_SIZE", "DEVICE_CACHE_SIZE",
		"REDIS_URL", "MQTT_BROKER_URL", "MQTT_CLIENT_ID", "MQTT_SOS_TOPIC", "MQTT_USERNAME",
		"MQTT_PASSWORD", "BODY_LIMIT", "DEVICE_BODY_LIMIT",
	} {
		v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if origins := v.GetString("CORS_ORIGINS"); origins != "" {
		cfg.CORSOrigins = splitList(origins)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() && cfg.JWTSecret == DefaultJWTSecret {
		log.Println("WARNING: JWT_SECRET is the development default; set it before exposing this server.")
	}

	return cfg, nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. Production refuses
// the default signing secret and short secrets.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.IsProduction() {
		if c.JWTSecret == DefaultJWTSecret {
			return fmt.Errorf("JWT_SECRET must be changed from the development default in production")
		}
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 bytes in production, got %d", len(c.JWTSecret))
		}
	}
	if c.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive, got %s", c.JWTTTL)
	}
	if c.BroadcastQueueSize <= 0 {
		return fmt.Errorf("BROADCAST_QUEUE_SIZE must be positive, got %d", c.BroadcastQueueSize)
	}
	if c.SessionBufferSize <= 0 {
		return fmt.Errorf("SESSION_BUFFER_SIZE must be positive, got %d", c.SessionBufferSize)
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) must not exceed DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.MQTTBrokerURL != "" && c.MQTTSOSTopic == "" {
		return fmt.Errorf("MQTT_SOS_TOPIC is required when MQTT_BROKER_URL is set")
	}
	return nil
}
