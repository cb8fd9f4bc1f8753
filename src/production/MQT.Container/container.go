package container

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	cache "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Cache"
	clock "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Clock"
	config "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Config"
	engine "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Engine"
	"gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.IngestorService/health"
	mqtingestor "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.IngestorService/ingestor"
	logger "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Logger"
	notifier "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Notifier"
	realtime "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Realtime"
	implementation "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Repository/Implementation"
	interfaces "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Repository/Interfaces"
	watchdog "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Watchdog"
	"go.mongodb.org/mongo-driver/mongo"
)

const connectTimeout = 20 * time.Second

// Container manages dependencies and their lifecycle
type Container struct {
	config *config.IngestorConfig
	logger *logger.Logger
	clock  clock.Clock

	db    *sql.DB
	redis *redis.Client
	mongo *mongo.Client

	databaseManager *health.DatabaseManager
	healthChecker   *health.HealthChecker

	relay    *notifier.RelayChannel
	engine   *engine.Engine
	ingestor *mqtingestor.Ingestor
	watchdog *watchdog.Watchdog

	// Mutex for thread-safe access
	mu sync.Mutex

	// Cleanup functions, run in reverse order
	cleanupFuncs []func() error
}

// NewContainer loads configuration from the environment and sets up logging
func NewContainer() (*Container, error) {
	cfg, err := config.LoadIngestorConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load ingestor configuration: %w", err)
	}
	return newContainer(cfg, logger.NewLogger(&cfg.Logging), clock.Real()), nil
}

func newContainer(cfg *config.IngestorConfig, log *logger.Logger, clk clock.Clock) *Container {
	return &Container{config: cfg, logger: log, clock: clk}
}

// GetConfig returns the configuration
func (c *Container) GetConfig() *config.IngestorConfig {
	return c.config
}

// GetLogger returns the logger
func (c *Container) GetLogger() *logger.Logger {
	return c.logger
}

// GetDatabase returns the database connection
func (c *Container) GetDatabase() (*sql.DB, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db == nil {
		db, err := health.ConnectPostgresWithTimeout(c.config, connectTimeout)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		c.db = db
		c.cleanupFuncs = append(c.cleanupFuncs, db.Close)
	}

	return c.db, nil
}

// GetRedis returns the realtime fan-out client
func (c *Container) GetRedis() (*redis.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.redis == nil {
		client, err := health.ConnectRedisWithTimeout(c.config, connectTimeout)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		c.redis = client
		c.cleanupFuncs = append(c.cleanupFuncs, client.Close)
	}

	return c.redis, nil
}

// GetMongo returns the readings cluster client
func (c *Container) GetMongo() (*mongo.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mongo == nil {
		client, err := health.ConnectMongoWithTimeout(c.config, connectTimeout)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
		}
		c.mongo = client
		c.cleanupFuncs = append(c.cleanupFuncs, func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return client.Disconnect(ctx)
		})
	}

	return c.mongo, nil
}

// GetDatabaseManager returns the database manager
func (c *Container) GetDatabaseManager() (*health.DatabaseManager, error) {
	c.mu.Lock()
	if c.databaseManager != nil {
		c.mu.Unlock()
		return c.databaseManager, nil
	}
	c.mu.Unlock()

	// Get database without holding the lock to avoid deadlock
	db, err := c.GetDatabase()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for database manager: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.databaseManager == nil {
		c.databaseManager = health.NewDatabaseManager(db)
	}

	return c.databaseManager, nil
}

// InitializeDatabase initializes the database and creates tables
func (c *Container) InitializeDatabase(ctx context.Context) error {
	dbManager, err := c.GetDatabaseManager()
	if err != nil {
		return fmt.Errorf("failed to get database manager: %w", err)
	}

	if err := dbManager.CreateTables(ctx); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	c.logger.Info("Database initialized successfully")
	return nil
}

// Build wires repositories, cache, dispatcher, fan-out, engine, watchdog
// and ingestor. Safe to call more than once.
func (c *Container) Build() error {
	c.mu.Lock()
	built := c.engine != nil
	c.mu.Unlock()
	if built {
		return nil
	}

	db, err := c.GetDatabase()
	if err != nil {
		return err
	}
	rdb, err := c.GetRedis()
	if err != nil {
		return err
	}
	readings, err := c.readingRepository(db)
	if err != nil {
		return err
	}

	cfg := c.config
	devices := implementation.NewPostgresDeviceRepository(db)
	shares := implementation.NewPostgresShareRepository(db)

	relay := notifier.NewRelayChannel(notifier.RelayConfig{
		URL:        cfg.Push.RelayURL,
		Token:      cfg.Push.RelayToken,
		Timeout:    cfg.Push.Timeout,
		RetryCount: 2,
	}, c.clock)
	channels := []notifier.Channel{relay}
	if cfg.Push.WebPushEnabled() {
		channels = append(channels, notifier.NewWebPushChannel(notifier.WebPushConfig{
			VAPIDPublicKey:  cfg.Push.VAPIDPublicKey,
			VAPIDPrivateKey: cfg.Push.VAPIDPrivateKey,
			Subscriber:      cfg.Push.VAPIDSubscriber,
			Timeout:         cfg.Push.Timeout,
		}))
	} else {
		c.logger.Warn("VAPID keys not configured, web push delivery disabled")
	}

	dispatcher := notifier.NewDispatcher(notifier.DispatcherDeps{
		Devices:       devices,
		Shares:        shares,
		Subscriptions: implementation.NewPostgresSubscriptionRepository(db),
		Viewers:       implementation.NewPostgresViewerRepository(db),
		Channels:      channels,
		Defaults: notifier.Windows{
			Alarm:          cfg.Alerts.AlarmInterval,
			LowBattery:     cfg.Alerts.LowBatteryInterval,
			ConnectionLost: cfg.Alerts.ConnectionLostInterval,
		},
		SendTimeout: cfg.Push.Timeout,
		Clock:       c.clock,
		Logger:      c.logger,
	})

	publisher := realtime.NewPublisher(shares, realtime.NewRedisBroadcaster(rdb), c.logger)

	eng := engine.New(
		cache.NewDeviceCache(devices, c.clock, cfg.Cache.TTL),
		devices,
		readings,
		dispatcher,
		publisher,
		c.clock,
		c.logger,
		engine.Options{
			LowBatteryThreshold: cfg.Alerts.LowBatteryThreshold,
			StoreTimeout:        cfg.StoreTimeout,
			NotifyTimeout:       cfg.Push.Timeout,
			NotifyOffline:       cfg.Watchdog.NotifyOffline,
		},
	)

	ing := mqtingestor.New(cfg, eng, c.clock, c.logger)
	wd := watchdog.New(devices, eng, c.clock, c.logger,
		cfg.Watchdog.Period, cfg.Watchdog.InactivityThreshold, cfg.StoreTimeout)

	hc := health.NewHealthChecker(c.clock.Now)
	hc.Register("postgres", health.PostgresCheck(db))
	hc.Register("redis", health.RedisCheck(rdb))
	hc.Register("mqtt", health.ConnectedCheck("mqtt", ing.IsConnected))
	if c.mongo != nil {
		hc.Register("mongodb", health.MongoCheck(c.mongo))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.relay = relay
	c.engine = eng
	c.ingestor = ing
	c.watchdog = wd
	c.healthChecker = hc
	return nil
}

func (c *Container) readingRepository(db *sql.DB) (interfaces.ReadingRepository, error) {
	if c.config.ReadingsBackend != "mongo" {
		return implementation.NewPostgresReadingRepository(db), nil
	}
	client, err := c.GetMongo()
	if err != nil {
		return nil, err
	}
	coll := client.Database(c.config.Mongo.Database).Collection(c.config.Mongo.Collection)
	return implementation.NewMongoReadingRepository(coll), nil
}

// GetEngine returns the sample pipeline. Build must have been called.
func (c *Container) GetEngine() *engine.Engine {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine
}

// GetIngestor returns the MQTT ingestor. Build must have been called.
func (c *Container) GetIngestor() *mqtingestor.Ingestor {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ingestor
}

// GetWatchdog returns the offline sweeper. Build must have been called.
func (c *Container) GetWatchdog() *watchdog.Watchdog {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.watchdog
}

// GetHealthChecker returns the readiness probes. Build must have been called.
func (c *Container) GetHealthChecker() *health.HealthChecker {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.healthChecker
}

// RelayCircuitBreakerStatus reports the push relay breaker, nil before Build
func (c *Container) RelayCircuitBreakerStatus() interface{} {
	c.mu.Lock()
	relay := c.relay
	c.mu.Unlock()
	if relay == nil {
		return nil
	}
	return relay.CircuitBreakerStatus()
}

// AddCleanupFunc adds a cleanup function
func (c *Container) AddCleanupFunc(fn func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanupFuncs = append(c.cleanupFuncs, fn)
}

// Shutdown gracefully shuts down the container and all its dependencies
func (c *Container) Shutdown(ctx context.Context) error {
	c.logger.Info("Shutting down container...")

	c.mu.Lock()
	funcs := c.cleanupFuncs
	c.cleanupFuncs = nil
	c.mu.Unlock()

	for i := len(funcs) - 1; i >= 0; i-- {
		if err := funcs[i](); err != nil {
			c.logger.ErrorWithError(err, "Error during cleanup")
		}
	}

	c.logger.Info("Container shutdown complete")
	return nil
}
