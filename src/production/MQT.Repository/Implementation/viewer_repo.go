package implementation

import (
	"context"
	"database/sql"
	"errors"

	mqtmodels "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Models"
)

type PostgresViewerRepository struct {
	db *sql.DB
}

func NewPostgresViewerRepository(db *sql.DB) *PostgresViewerRepository {
	return &PostgresViewerRepository{db: db}
}

func (r *PostgresViewerRepository) GetPreferences(ctx context.Context, viewerID string) (*mqtmodels.ViewerPreferences, error) {
	query := `
		SELECT viewer_id, alarm_interval_hours, low_battery_interval_hours, connection_lost_interval_hours
		FROM viewer_preferences
		WHERE viewer_id = $1
	`

	var prefs mqtmodels.ViewerPreferences
	err := r.db.QueryRowContext(ctx, query, viewerID).Scan(
		&prefs.ViewerID, &prefs.AlarmIntervalHours, &prefs.LowBatteryIntervalHours, &prefs.ConnectionLostIntervalHours)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &prefs, nil
}
