package container

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clock "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Clock"
	config "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Config"
	logger "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Logger"
)

func testConfig() *config.IngestorConfig {
	return &config.IngestorConfig{
		MQTT:            config.MQTTConfig{Namespace: "sensors", BrokerHost: "localhost", BrokerPort: 1883},
		Queue:           config.QueueConfig{Shards: 2, Depth: 4},
		Cache:           config.CacheConfig{TTL: time.Minute},
		Watchdog:        config.WatchdogConfig{Period: time.Minute, InactivityThreshold: time.Hour},
		Push:            config.PushConfig{RelayURL: "http://relay.invalid/push", Timeout: time.Second},
		ReadingsBackend: "postgres",
		StoreTimeout:    time.Second,
	}
}

func newTestContainer(t *testing.T) (*Container, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	c := newContainer(testConfig(), logger.NewNop(), clock.NewFake(time.Unix(0, 0)))
	c.db = db
	c.redis = rdb
	c.AddCleanupFunc(db.Close)
	c.AddCleanupFunc(rdb.Close)
	return c, mock
}

func TestBuild_WiresPipeline(t *testing.T) {
	c, _ := newTestContainer(t)

	require.NoError(t, c.Build())

	assert.NotNil(t, c.GetEngine())
	assert.NotNil(t, c.GetIngestor())
	assert.NotNil(t, c.GetWatchdog())
	require.NotNil(t, c.GetHealthChecker())

	status := c.RelayCircuitBreakerStatus().(map[string]interface{})
	assert.Equal(t, "closed", status["state"])

	engine := c.GetEngine()
	require.NoError(t, c.Build())
	assert.Same(t, engine, c.GetEngine())

	require.NoError(t, c.Shutdown(context.Background()))
}

func TestRelayStatusBeforeBuild(t *testing.T) {
	c := newContainer(testConfig(), logger.NewNop(), clock.Real())
	assert.Nil(t, c.RelayCircuitBreakerStatus())
}

func TestInitializeDatabase(t *testing.T) {
	c, mock := newTestContainer(t)
	for i := 0; i < 6; i++ {
		mock.ExpectExec("CREATE").WillReturnResult(sqlmock.NewResult(0, 0))
	}

	require.NoError(t, c.InitializeDatabase(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestShutdown_RunsCleanupInReverseOrder(t *testing.T) {
	c := newContainer(testConfig(), logger.NewNop(), clock.Real())
	var order []int
	c.AddCleanupFunc(func() error { order = append(order, 1); return nil })
	c.AddCleanupFunc(func() error { order = append(order, 2); return errors.New("ignored") })
	c.AddCleanupFunc(func() error { order = append(order, 3); return nil })

	require.NoError(t, c.Shutdown(context.Background()))
	require.NoError(t, c.Shutdown(context.Background()))

	assert.Equal(t, []int{3, 2, 1}, order)
}
