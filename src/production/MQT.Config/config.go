package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// IngestorConfig holds all configuration for the sensor ingestor service
type IngestorConfig struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Mongo    MongoConfig    `json:"mongo"`
	Redis    RedisConfig    `json:"redis"`
	MQTT     MQTTConfig     `json:"mqtt"`
	Logging  LoggingConfig  `json:"logging"`
	Alerts   AlertConfig    `json:"alerts"`
	Cache    CacheConfig    `json:"cache"`
	Watchdog WatchdogConfig `json:"watchdog"`
	Queue    QueueConfig    `json:"queue"`
	Push     PushConfig     `json:"push"`

	ReadingsBackend   string        `json:"readings_backend"` // postgres or mongo
	StoreTimeout      time.Duration `json:"store_timeout"`
	InternalAPISecret string        `json:"internal_api_secret"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port         string        `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
	MaxConns int    `json:"max_conns"`
	MinConns int    `json:"min_conns"`
}

// MongoConfig is only used when readings are stored in MongoDB
type MongoConfig struct {
	URI        string `json:"uri"`
	Database   string `json:"database"`
	Collection string `json:"collection"`
}

// RedisConfig holds the realtime fan-out connection settings
type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// MQTTConfig holds MQTT-related configuration
type MQTTConfig struct {
	BrokerHost  string        `json:"broker_host"`
	BrokerPort  int           `json:"broker_port"`
	BrokerUser  string        `json:"broker_user"`
	BrokerPass  string        `json:"broker_pass"`
	UseTLS      bool          `json:"use_tls"`
	CACertPath  string        `json:"ca_cert_path"`
	Namespace   string        `json:"namespace"`
	ClientID    string        `json:"client_id"`
	SharedGroup string        `json:"shared_group"`
	KeepAlive   time.Duration `json:"keep_alive"`
	PingTimeout time.Duration `json:"ping_timeout"`
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level        string `json:"level"`
	Format       string `json:"format"` // json or text
	Output       string `json:"output"` // stdout or stderr
	EnableCaller bool   `json:"enable_caller"`
}

// AlertConfig holds the default low battery threshold and per-kind throttle windows
type AlertConfig struct {
	LowBatteryThreshold    int           `json:"low_battery_threshold"`
	AlarmInterval          time.Duration `json:"alarm_interval"`
	LowBatteryInterval     time.Duration `json:"low_battery_interval"`
	ConnectionLostInterval time.Duration `json:"connection_lost_interval"`
}

// CacheConfig holds device cache settings
type CacheConfig struct {
	TTL time.Duration `json:"ttl"`
}

// WatchdogConfig holds offline sweep settings
type WatchdogConfig struct {
	Period              time.Duration `json:"period"`
	InactivityThreshold time.Duration `json:"inactivity_threshold"`
	NotifyOffline       bool          `json:"notify_offline"`
}

// QueueConfig holds per-identifier work queue sizing
type QueueConfig struct {
	Shards int `json:"shards"`
	Depth  int `json:"depth"`
}

// PushConfig holds delivery channel settings
type PushConfig struct {
	VAPIDPublicKey  string        `json:"vapid_public_key"`
	VAPIDPrivateKey string        `json:"vapid_private_key"`
	VAPIDSubscriber string        `json:"vapid_subscriber"`
	RelayURL        string        `json:"relay_url"`
	RelayToken      string        `json:"relay_token"`
	Timeout         time.Duration `json:"timeout"`
}

// WebPushEnabled reports whether VAPID keys are configured
func (p PushConfig) WebPushEnabled() bool {
	return p.VAPIDPublicKey != "" && p.VAPIDPrivateKey != ""
}

// LoadIngestorConfig loads configuration for the sensor ingestor service
func LoadIngestorConfig() (*IngestorConfig, error) {
	// A missing .env file is fine, variables may be set directly
	_ = godotenv.Load()

	cfg := &IngestorConfig{
		Server: ServerConfig{
			Port:         getEnv("INGESTOR_PORT", "9003"),
			ReadTimeout:  getDuration("READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getDuration("WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  getDuration("IDLE_TIMEOUT", 120*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getInt("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", ""),
			Password: getEnv("POSTGRES_PASSWORD", ""),
			DBName:   getEnv("POSTGRES_DB", "iot"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
			MaxConns: getInt("POSTGRES_MAX_CONNS", 25),
			MinConns: getInt("POSTGRES_MIN_CONNS", 5),
		},
		Mongo: MongoConfig{
			URI:        getEnv("MONGODB_URI", ""),
			Database:   getEnv("MONGODB_DB", "iot"),
			Collection: getEnv("MONGODB_COLLECTION", "readings"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getInt("REDIS_DB", 0),
		},
		MQTT: MQTTConfig{
			BrokerHost:  getEnv("BROKER_HOST", "localhost"),
			BrokerPort:  getInt("BROKER_PORT", 1883),
			BrokerUser:  getEnv("BROKER_USER", ""),
			BrokerPass:  getEnv("BROKER_PASS", ""),
			UseTLS:      getBool("BROKER_TLS", false),
			CACertPath:  getEnv("BROKER_CA_FILE", ""),
			Namespace:   getEnv("MQTT_NAMESPACE", "sensors"),
			ClientID:    getEnv("MQTT_CLIENT_ID", "sensor-ingestor"),
			SharedGroup: getEnv("MQTT_SHARED_GROUP", ""),
			KeepAlive:   getDuration("MQTT_KEEP_ALIVE", 30*time.Second),
			PingTimeout: getDuration("MQTT_PING_TIMEOUT", 10*time.Second),
		},
		Logging: LoggingConfig{
			Level:        getEnv("LOG_LEVEL", "info"),
			Format:       getEnv("LOG_FORMAT", "text"),
			Output:       getEnv("LOG_OUTPUT", "stdout"),
			EnableCaller: getBool("LOG_ENABLE_CALLER", false),
		},
		Alerts: AlertConfig{
			LowBatteryThreshold:    getInt("LOW_BATTERY_THRESHOLD", 20),
			AlarmInterval:          getHours("ALARM_INTERVAL_HOURS", 1),
			LowBatteryInterval:     getHours("LOW_BATTERY_INTERVAL_HOURS", 24),
			ConnectionLostInterval: getHours("CONNECTION_LOST_INTERVAL_HOURS", 24),
		},
		Cache: CacheConfig{
			TTL: getDuration("DEVICE_CACHE_TTL", 5*time.Minute),
		},
		Watchdog: WatchdogConfig{
			Period:              getDuration("WATCHDOG_PERIOD", 15*time.Minute),
			InactivityThreshold: getDuration("WATCHDOG_INACTIVITY_THRESHOLD", 8*time.Hour),
			NotifyOffline:       getBool("WATCHDOG_NOTIFY_OFFLINE", true),
		},
		Queue: QueueConfig{
			Shards: getInt("QUEUE_SHARDS", 16),
			Depth:  getInt("QUEUE_DEPTH", 64),
		},
		Push: PushConfig{
			VAPIDPublicKey:  getEnv("VAPID_PUBLIC_KEY", ""),
			VAPIDPrivateKey: getEnv("VAPID_PRIVATE_KEY", ""),
			VAPIDSubscriber: getEnv("VAPID_SUBSCRIBER", "mailto:alerts@example.com"),
			RelayURL:        getEnv("PUSH_RELAY_URL", "https://exp.host/--/api/v2/push/send"),
			RelayToken:      getEnv("PUSH_RELAY_TOKEN", ""),
			Timeout:         getDuration("PUSH_TIMEOUT", 10*time.Second),
		},
		ReadingsBackend:   strings.ToLower(getEnv("READINGS_BACKEND", "postgres")),
		StoreTimeout:      getDuration("STORE_TIMEOUT", 5*time.Second),
		InternalAPISecret: getEnv("INTERNAL_API_SECRET", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *IngestorConfig) Validate() error {
	if c.Database.User == "" {
		return fmt.Errorf("POSTGRES_USER is required")
	}
	if c.Database.Password == "" {
		return fmt.Errorf("POSTGRES_PASSWORD is required")
	}
	if c.InternalAPISecret == "" {
		return fmt.Errorf("INTERNAL_API_SECRET is required")
	}
	if c.MQTT.Namespace == "" || strings.Contains(c.MQTT.Namespace, "+") || strings.Contains(c.MQTT.Namespace, "#") {
		return fmt.Errorf("MQTT_NAMESPACE must be a literal topic prefix")
	}
	if c.Alerts.LowBatteryThreshold < 0 || c.Alerts.LowBatteryThreshold > 100 {
		return fmt.Errorf("LOW_BATTERY_THRESHOLD must be between 0 and 100")
	}
	switch c.ReadingsBackend {
	case "postgres":
	case "mongo":
		if c.Mongo.URI == "" {
			return fmt.Errorf("MONGODB_URI is required when READINGS_BACKEND=mongo")
		}
	default:
		return fmt.Errorf("unsupported READINGS_BACKEND %q", c.ReadingsBackend)
	}
	if c.Alerts.AlarmInterval <= 0 || c.Alerts.LowBatteryInterval <= 0 || c.Alerts.ConnectionLostInterval <= 0 {
		return fmt.Errorf("alert intervals must be positive")
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("DEVICE_CACHE_TTL must be positive")
	}
	if c.Watchdog.Period <= 0 || c.Watchdog.InactivityThreshold <= 0 {
		return fmt.Errorf("watchdog period and inactivity threshold must be positive")
	}
	if c.Queue.Shards <= 0 || c.Queue.Depth <= 0 {
		return fmt.Errorf("QUEUE_SHARDS and QUEUE_DEPTH must be positive")
	}
	return nil
}

// GetDatabaseDSN returns the database connection string
func (c *IngestorConfig) GetDatabaseDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host, c.Database.Port, c.Database.User, c.Database.Password, c.Database.DBName, c.Database.SSLMode)
}

// GetMQTTBrokerURL returns the MQTT broker URL
func (c *IngestorConfig) GetMQTTBrokerURL() string {
	scheme := "tcp"
	if c.MQTT.UseTLS {
		scheme = "tcps"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.MQTT.BrokerHost, c.MQTT.BrokerPort)
}

// Helper functions for environment variable parsing.
// Invalid values fall back to the default; Validate catches the rest.

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

func getBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if value == "1" || value == "true" || value == "TRUE" {
		return true
	}
	if value == "0" || value == "false" || value == "FALSE" {
		return false
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return duration
}

func getHours(key string, defaultHours int) time.Duration {
	return time.Duration(getInt(key, defaultHours)) * time.Hour
}
