package implementation

import (
	"context"
	"database/sql"

	mqtmodels "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Models"
)

type PostgresShareRepository struct {
	db *sql.DB
}

func NewPostgresShareRepository(db *sql.DB) *PostgresShareRepository {
	return &PostgresShareRepository{db: db}
}

func (r *PostgresShareRepository) ListSharesByDevice(ctx context.Context, deviceID string) ([]mqtmodels.Share, error) {
	query := `SELECT device_id, viewer_id, permission, created_at FROM shares WHERE device_id = $1 ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, deviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var shares []mqtmodels.Share
	for rows.Next() {
		var share mqtmodels.Share
		if err := rows.Scan(&share.DeviceID, &share.ViewerID, &share.Permission, &share.CreatedAt); err != nil {
			return nil, err
		}
		shares = append(shares, share)
	}

	return shares, rows.Err()
}
