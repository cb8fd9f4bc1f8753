package implementation

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListSharesByDevice(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	created := time.Now().UTC()
	mock.ExpectQuery(`SELECT device_id, viewer_id, permission, created_at FROM shares WHERE device_id = \$1`).
		WithArgs("d1").
		WillReturnRows(sqlmock.NewRows([]string{"device_id", "viewer_id", "permission", "created_at"}).
			AddRow("d1", "viewer-b", "view", created).
			AddRow("d1", "viewer-c", "manage", created))

	shares, err := NewPostgresShareRepository(db).ListSharesByDevice(context.Background(), "d1")

	require.NoError(t, err)
	require.Len(t, shares, 2)
	assert.Equal(t, "viewer-b", shares[0].ViewerID)
	assert.Equal(t, "manage", shares[1].Permission)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListSubscriptionsByViewer_SplitsWebPushAndTokens(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	created := time.Now().UTC()
	mock.ExpectQuery(`SELECT id, viewer_id, endpoint, p256dh, auth, created_at\s+FROM subscriptions`).
		WithArgs("viewer-a").
		WillReturnRows(sqlmock.NewRows([]string{"id", "viewer_id", "endpoint", "p256dh", "auth", "created_at"}).
			AddRow("s1", "viewer-a", "https://push.example.com/abc", "BNc...", "k3y", created).
			AddRow("s2", "viewer-a", "ExponentPushToken[xyz]", nil, nil, created))

	subs, err := NewPostgresSubscriptionRepository(db).ListSubscriptionsByViewer(context.Background(), "viewer-a")

	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.True(t, subs[0].IsWebPush())
	assert.Equal(t, "k3y", subs[0].Keys.Auth)
	assert.False(t, subs[1].IsWebPush())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkSubscriptionGone(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresSubscriptionRepository(db)

	at := time.Now().UTC()
	mock.ExpectExec(`UPDATE subscriptions SET gone_at = \$1 WHERE id = \$2`).
		WithArgs(at, "s1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE subscriptions SET gone_at`).
		WithArgs(at, "s1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.MarkSubscriptionGone(context.Background(), "s1", at))
	assert.Error(t, repo.MarkSubscriptionGone(context.Background(), "s1", at))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPreferences(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresViewerRepository(db)

	mock.ExpectQuery(`FROM viewer_preferences`).
		WithArgs("viewer-a").
		WillReturnRows(sqlmock.NewRows([]string{"viewer_id", "alarm_interval_hours", "low_battery_interval_hours", "connection_lost_interval_hours"}).
			AddRow("viewer-a", 2, nil, 48))
	mock.ExpectQuery(`FROM viewer_preferences`).
		WithArgs("viewer-b").
		WillReturnError(sql.ErrNoRows)

	prefs, err := repo.GetPreferences(context.Background(), "viewer-a")
	require.NoError(t, err)
	require.NotNil(t, prefs.AlarmIntervalHours)
	assert.Equal(t, 2, *prefs.AlarmIntervalHours)
	assert.Nil(t, prefs.LowBatteryIntervalHours)
	assert.Equal(t, 48, *prefs.ConnectionLostIntervalHours)

	prefs, err = repo.GetPreferences(context.Background(), "viewer-b")
	require.NoError(t, err)
	assert.Nil(t, prefs)

	require.NoError(t, mock.ExpectationsWereMet())
}
