package implementation

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
	mqtmodels "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Models"
)

type PostgresReadingRepository struct {
	db *sql.DB
}

func NewPostgresReadingRepository(db *sql.DB) *PostgresReadingRepository {
	return &PostgresReadingRepository{db: db}
}

func (r *PostgresReadingRepository) CreateReading(ctx context.Context, reading mqtmodels.Reading) error {
	query := `
		INSERT INTO readings (id, device_id, status, battery_voltage_mv, battery_percent, signal_strength, rssi, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		reading.ID, reading.DeviceID, string(reading.Status), reading.BatteryVoltage,
		reading.BatteryPercent, reading.SignalStrength, reading.RSSI, reading.CreatedAt)
	return err
}

// CreateReadings bulk loads readings with COPY
func (r *PostgresReadingRepository) CreateReadings(ctx context.Context, readings []mqtmodels.Reading) error {
	if len(readings) == 0 {
		return nil
	}

	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer txn.Rollback()

	stmt, err := txn.PrepareContext(ctx, pq.CopyIn("readings",
		"id", "device_id", "status", "battery_voltage_mv", "battery_percent", "signal_strength", "rssi", "created_at"))
	if err != nil {
		return err
	}

	for _, reading := range readings {
		_, err = stmt.ExecContext(ctx, reading.ID, reading.DeviceID, string(reading.Status), reading.BatteryVoltage,
			reading.BatteryPercent, reading.SignalStrength, reading.RSSI, reading.CreatedAt)
		if err != nil {
			return err
		}
	}

	if _, err = stmt.ExecContext(ctx); err != nil {
		return err
	}

	if err = stmt.Close(); err != nil {
		return err
	}

	return txn.Commit()
}
