package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("POSTGRES_USER", "sensor")
	t.Setenv("POSTGRES_PASSWORD", "secret")
	t.Setenv("INTERNAL_API_SECRET", "internal")
}

func TestLoadIngestorConfig_DefaultValues(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadIngestorConfig()
	require.NoError(t, err)

	assert.Equal(t, "9003", cfg.Server.Port)
	assert.Equal(t, "sensors", cfg.MQTT.Namespace)
	assert.Equal(t, 1883, cfg.MQTT.BrokerPort)
	assert.Equal(t, 20, cfg.Alerts.LowBatteryThreshold)
	assert.Equal(t, time.Hour, cfg.Alerts.AlarmInterval)
	assert.Equal(t, 24*time.Hour, cfg.Alerts.LowBatteryInterval)
	assert.Equal(t, 24*time.Hour, cfg.Alerts.ConnectionLostInterval)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 15*time.Minute, cfg.Watchdog.Period)
	assert.Equal(t, 8*time.Hour, cfg.Watchdog.InactivityThreshold)
	assert.True(t, cfg.Watchdog.NotifyOffline)
	assert.Equal(t, 16, cfg.Queue.Shards)
	assert.Equal(t, 64, cfg.Queue.Depth)
	assert.Equal(t, "postgres", cfg.ReadingsBackend)
	assert.False(t, cfg.Push.WebPushEnabled())
}

func TestLoadIngestorConfig_EnvironmentOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ALARM_INTERVAL_HOURS", "3")
	t.Setenv("DEVICE_CACHE_TTL", "30s")
	t.Setenv("WATCHDOG_NOTIFY_OFFLINE", "false")
	t.Setenv("BROKER_TLS", "true")
	t.Setenv("BROKER_PORT", "8883")
	t.Setenv("VAPID_PUBLIC_KEY", "pub")
	t.Setenv("VAPID_PRIVATE_KEY", "priv")

	cfg, err := LoadIngestorConfig()
	require.NoError(t, err)

	assert.Equal(t, 3*time.Hour, cfg.Alerts.AlarmInterval)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
	assert.False(t, cfg.Watchdog.NotifyOffline)
	assert.Equal(t, "tcps://localhost:8883", cfg.GetMQTTBrokerURL())
	assert.True(t, cfg.Push.WebPushEnabled())
}

func TestLoadIngestorConfig_MissingSecret(t *testing.T) {
	t.Setenv("POSTGRES_USER", "sensor")
	t.Setenv("POSTGRES_PASSWORD", "secret")
	t.Setenv("INTERNAL_API_SECRET", "")

	_, err := LoadIngestorConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INTERNAL_API_SECRET")
}

func TestValidate_MongoBackendNeedsURI(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("READINGS_BACKEND", "mongo")
	t.Setenv("MONGODB_URI", "")

	_, err := LoadIngestorConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MONGODB_URI")
}

func TestValidate_RejectsWildcardNamespace(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MQTT_NAMESPACE", "sensors/#")

	_, err := LoadIngestorConfig()
	require.Error(t, err)
}

func TestGetDatabaseDSN(t *testing.T) {
	cfg := &IngestorConfig{Database: DatabaseConfig{
		Host: "db", Port: 5433, User: "u", Password: "p", DBName: "iot", SSLMode: "disable",
	}}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=iot sslmode=disable", cfg.GetDatabaseDSN())
}

func TestValidate_RejectsNonPositiveAlertIntervals(t *testing.T) {
	for _, key := range []string{"ALARM_INTERVAL_HOURS", "LOW_BATTERY_INTERVAL_HOURS", "CONNECTION_LOST_INTERVAL_HOURS"} {
		for _, value := range []string{"0", "-2"} {
			t.Run(key+"="+value, func(t *testing.T) {
				setRequiredEnv(t)
				t.Setenv(key, value)

				_, err := LoadIngestorConfig()
				require.Error(t, err)
				assert.Contains(t, err.Error(), "alert intervals")
			})
		}
	}
}
