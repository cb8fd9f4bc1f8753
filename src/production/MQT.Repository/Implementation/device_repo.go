package implementation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	mqtmodels "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Models"
	interfaces "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Repository/Interfaces"
)

const deviceColumns = `id, identifier, name, status, battery_voltage_mv, battery_percent, signal_strength, rssi,
	last_seen_at, last_battery_alert_at, last_offline_alert_at, last_catch_alert_at,
	owner_id, low_battery_threshold, version, created_at`

// alert kind -> devices column holding its last delivery time
var alertColumns = map[mqtmodels.AlertKind]string{
	mqtmodels.AlertAlarm:          "last_catch_alert_at",
	mqtmodels.AlertLowBattery:     "last_battery_alert_at",
	mqtmodels.AlertConnectionLost: "last_offline_alert_at",
}

type PostgresDeviceRepository struct {
	db *sql.DB
}

func NewPostgresDeviceRepository(db *sql.DB) *PostgresDeviceRepository {
	return &PostgresDeviceRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDevice(row rowScanner) (*mqtmodels.Device, error) {
	var device mqtmodels.Device
	var status string
	err := row.Scan(
		&device.ID, &device.Identifier, &device.Name, &status,
		&device.BatteryVoltage, &device.BatteryPercent, &device.SignalStrength, &device.RSSI,
		&device.LastSeenAt, &device.LastBatteryAlertAt, &device.LastOfflineAlertAt, &device.LastCatchAlertAt,
		&device.OwnerID, &device.LowBatteryThreshold, &device.Version, &device.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	device.Status = mqtmodels.DeviceStatus(status)
	return &device, nil
}

func (r *PostgresDeviceRepository) GetDeviceByIdentifier(ctx context.Context, identifier string) (*mqtmodels.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE identifier = $1`

	device, err := scanDevice(r.db.QueryRowContext(ctx, query, identifier))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", interfaces.ErrDeviceNotFound, identifier)
		}
		return nil, err
	}
	return device, nil
}

// ListStaleDevices returns non-inactive devices last seen before cutoff.
// Devices that never reported are not considered stale.
func (r *PostgresDeviceRepository) ListStaleDevices(ctx context.Context, cutoff time.Time) ([]mqtmodels.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices
		WHERE last_seen_at < $1 AND status <> $2
		ORDER BY last_seen_at ASC`

	rows, err := r.db.QueryContext(ctx, query, cutoff, string(mqtmodels.StatusInactive))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var devices []mqtmodels.Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, *device)
	}

	return devices, rows.Err()
}

func (r *PostgresDeviceRepository) UpdateDeviceState(ctx context.Context, device mqtmodels.Device) (int64, error) {
	query := `
		UPDATE devices
		SET status = $1, battery_voltage_mv = $2, battery_percent = $3, signal_strength = $4,
			rssi = $5, last_seen_at = $6, version = version + 1
		WHERE id = $7 AND version = $8
	`

	result, err := r.db.ExecContext(ctx, query,
		string(device.Status), device.BatteryVoltage, device.BatteryPercent, device.SignalStrength,
		device.RSSI, device.LastSeenAt, device.ID, device.Version)
	if err != nil {
		return 0, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	if rowsAffected == 0 {
		return 0, fmt.Errorf("%w: device %s at version %d", interfaces.ErrVersionConflict, device.ID, device.Version)
	}

	return device.Version + 1, nil
}

func (r *PostgresDeviceRepository) ClaimAlert(ctx context.Context, deviceID string, kind mqtmodels.AlertKind, now time.Time, window time.Duration) (bool, error) {
	column, ok := alertColumns[kind]
	if !ok {
		return false, fmt.Errorf("unknown alert kind %q", kind)
	}

	query := fmt.Sprintf(`UPDATE devices SET %[1]s = $1 WHERE id = $2 AND (%[1]s IS NULL OR %[1]s <= $3)`, column)

	result, err := r.db.ExecContext(ctx, query, now, deviceID, now.Add(-window))
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rowsAffected == 1, nil
}
