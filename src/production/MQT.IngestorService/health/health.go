package health

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	config "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Checker is one named dependency probe
type Checker func(ctx context.Context) error

// HealthChecker runs the registered probes and reports their state
type HealthChecker struct {
	checks map[string]Checker
	now    func() time.Time
}

// NewHealthChecker creates a health checker with no probes
func NewHealthChecker(now func() time.Time) *HealthChecker {
	return &HealthChecker{checks: make(map[string]Checker), now: now}
}

// Register adds a named probe, replacing any probe of the same name
func (h *HealthChecker) Register(name string, check Checker) {
	h.checks[name] = check
}

// PostgresCheck pings the database and runs a trivial query
func PostgresCheck(db *sql.DB) Checker {
	return func(ctx context.Context) error {
		if db == nil {
			return fmt.Errorf("database connection is nil")
		}
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("database ping failed: %w", err)
		}
		var result int
		if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
			return fmt.Errorf("database query failed: %w", err)
		}
		return nil
	}
}

// RedisCheck pings the fan-out redis
func RedisCheck(client *redis.Client) Checker {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}

// MongoCheck pings the primary of the readings cluster
func MongoCheck(client *mongo.Client) Checker {
	return func(ctx context.Context) error {
		return client.Ping(ctx, readpref.Primary())
	}
}

// ConnectedCheck fails while connected reports false
func ConnectedCheck(name string, connected func() bool) Checker {
	return func(context.Context) error {
		if !connected() {
			return fmt.Errorf("%s disconnected", name)
		}
		return nil
	}
}

// GetHealthStatus returns the current health status. ok is false if any probe failed.
func (h *HealthChecker) GetHealthStatus(ctx context.Context) (map[string]interface{}, bool) {
	checks := make(map[string]interface{}, len(h.checks))
	healthy := true

	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			healthy = false
			checks[name] = map[string]interface{}{"status": "error", "error": err.Error()}
			continue
		}
		checks[name] = map[string]interface{}{"status": "ok"}
	}

	status := "ok"
	if !healthy {
		status = "degraded"
	}

	return map[string]interface{}{
		"timestamp": h.now().UTC().Format(time.RFC3339),
		"status":    status,
		"checks":    checks,
	}, healthy
}

// ConnectPostgresWithTimeout creates a PostgreSQL connection with a timeout context
func ConnectPostgresWithTimeout(cfg *config.IngestorConfig, timeout time.Duration) (*sql.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	db, err := sql.Open("postgres", cfg.GetDatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("unable to open PostgreSQL connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to ping PostgreSQL: %w", err)
	}

	db.SetMaxOpenConns(cfg.Database.MaxConns)
	db.SetMaxIdleConns(cfg.Database.MinConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

// ConnectRedisWithTimeout opens the fan-out client and verifies it answers
func ConnectRedisWithTimeout(cfg *config.IngestorConfig, timeout time.Duration) (*redis.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("unable to ping Redis: %w", err)
	}
	return client, nil
}

// ConnectMongoWithTimeout connects to the readings cluster
func ConnectMongoWithTimeout(cfg *config.IngestorConfig, timeout time.Duration) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		return nil, fmt.Errorf("unable to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("unable to ping MongoDB: %w", err)
	}
	return client, nil
}

// DatabaseManager handles schema setup
type DatabaseManager struct {
	db *sql.DB
}

// NewDatabaseManager creates a new database manager
func NewDatabaseManager(db *sql.DB) *DatabaseManager {
	return &DatabaseManager{db: db}
}

// CreateTables creates the required tables if they don't exist
func (dm *DatabaseManager) CreateTables(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	createDevicesTable := `
		CREATE TABLE IF NOT EXISTS devices (
			id                     TEXT PRIMARY KEY,
			identifier             TEXT NOT NULL UNIQUE,
			name                   TEXT NOT NULL DEFAULT '',
			status                 TEXT NOT NULL DEFAULT 'inactive',
			battery_voltage_mv     INTEGER,
			battery_percent        INTEGER NOT NULL DEFAULT 0,
			signal_strength        INTEGER NOT NULL DEFAULT 0,
			rssi                   INTEGER NOT NULL DEFAULT 0,
			last_seen_at           TIMESTAMPTZ,
			last_battery_alert_at  TIMESTAMPTZ,
			last_offline_alert_at  TIMESTAMPTZ,
			last_catch_alert_at    TIMESTAMPTZ,
			owner_id               TEXT,
			low_battery_threshold  INTEGER,
			version                BIGINT NOT NULL DEFAULT 1,
			created_at             TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`

	createReadingsTable := `
		CREATE TABLE IF NOT EXISTS readings (
			id                  TEXT PRIMARY KEY,
			device_id           TEXT NOT NULL,
			status              TEXT NOT NULL,
			battery_voltage_mv  INTEGER NOT NULL,
			battery_percent     INTEGER NOT NULL,
			signal_strength     INTEGER NOT NULL,
			rssi                INTEGER NOT NULL,
			created_at          TIMESTAMPTZ NOT NULL,
			FOREIGN KEY (device_id) REFERENCES devices(id) ON DELETE CASCADE
		);
	`

	createSharesTable := `
		CREATE TABLE IF NOT EXISTS shares (
			device_id   TEXT NOT NULL,
			viewer_id   TEXT NOT NULL,
			permission  TEXT NOT NULL DEFAULT 'view',
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (device_id, viewer_id),
			FOREIGN KEY (device_id) REFERENCES devices(id) ON DELETE CASCADE
		);
	`

	createSubscriptionsTable := `
		CREATE TABLE IF NOT EXISTS subscriptions (
			id          TEXT PRIMARY KEY,
			viewer_id   TEXT NOT NULL,
			endpoint    TEXT NOT NULL,
			p256dh      TEXT,
			auth        TEXT,
			gone_at     TIMESTAMPTZ,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (viewer_id, endpoint)
		);
	`

	createPreferencesTable := `
		CREATE TABLE IF NOT EXISTS viewer_preferences (
			viewer_id                       TEXT PRIMARY KEY,
			alarm_interval_hours            INTEGER,
			low_battery_interval_hours      INTEGER,
			connection_lost_interval_hours  INTEGER
		);
	`

	createIndexes := `
		CREATE INDEX IF NOT EXISTS idx_devices_last_seen ON devices (last_seen_at) WHERE status <> 'inactive';
		CREATE INDEX IF NOT EXISTS idx_readings_device_created_desc ON readings (device_id, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_subscriptions_viewer_live ON subscriptions (viewer_id) WHERE gone_at IS NULL;
	`

	queries := []string{
		createDevicesTable,
		createReadingsTable,
		createSharesTable,
		createSubscriptionsTable,
		createPreferencesTable,
		createIndexes,
	}

	for _, query := range queries {
		if _, err := dm.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}

	return nil
}

// Close closes the database connection
func (dm *DatabaseManager) Close() error {
	if dm.db != nil {
		return dm.db.Close()
	}
	return nil
}
