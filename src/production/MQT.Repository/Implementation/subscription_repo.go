package implementation

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	mqtmodels "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Models"
)

type PostgresSubscriptionRepository struct {
	db *sql.DB
}

func NewPostgresSubscriptionRepository(db *sql.DB) *PostgresSubscriptionRepository {
	return &PostgresSubscriptionRepository{db: db}
}

func (r *PostgresSubscriptionRepository) ListSubscriptionsByViewer(ctx context.Context, viewerID string) ([]mqtmodels.Subscription, error) {
	query := `
		SELECT id, viewer_id, endpoint, p256dh, auth, created_at
		FROM subscriptions
		WHERE viewer_id = $1 AND gone_at IS NULL
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query, viewerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []mqtmodels.Subscription
	for rows.Next() {
		var sub mqtmodels.Subscription
		var p256dh, auth sql.NullString

		if err := rows.Scan(&sub.ID, &sub.ViewerID, &sub.Endpoint, &p256dh, &auth, &sub.CreatedAt); err != nil {
			return nil, err
		}

		// both keys or none, a half-populated row is treated as a token
		if p256dh.Valid && auth.Valid && p256dh.String != "" && auth.String != "" {
			sub.Keys = &mqtmodels.SubscriptionKeys{P256dh: p256dh.String, Auth: auth.String}
		}

		subs = append(subs, sub)
	}

	return subs, rows.Err()
}

func (r *PostgresSubscriptionRepository) MarkSubscriptionGone(ctx context.Context, subscriptionID string, at time.Time) error {
	query := `UPDATE subscriptions SET gone_at = $1 WHERE id = $2 AND gone_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, at, subscriptionID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return fmt.Errorf("subscription %s not found or already gone", subscriptionID)
	}

	return nil
}
