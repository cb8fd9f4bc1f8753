package implementation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	mqtmodels "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Models"
)

func sampleReading(deviceID string, at time.Time) mqtmodels.Reading {
	return mqtmodels.Reading{
		ID:             uuid.New().String(),
		DeviceID:       deviceID,
		Status:         mqtmodels.StatusActive,
		BatteryVoltage: 3700,
		BatteryPercent: 50,
		SignalStrength: 3,
		RSSI:           -88,
		CreatedAt:      at,
	}
}

func TestCreateReading(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresReadingRepository(db)

	reading := sampleReading("d1", time.Now().UTC())

	mock.ExpectExec(`INSERT INTO readings`).
		WithArgs(reading.ID, "d1", "active", 3700, 50, 3, -88, reading.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.CreateReading(context.Background(), reading))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateReading_PropagatesError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresReadingRepository(db)

	mock.ExpectExec(`INSERT INTO readings`).WillReturnError(errors.New("connection reset"))

	err = repo.CreateReading(context.Background(), sampleReading("d1", time.Now()))
	assert.EqualError(t, err, "connection reset")
}

func TestCreateReadings_CopiesInTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresReadingRepository(db)

	now := time.Now().UTC()
	readings := []mqtmodels.Reading{sampleReading("d1", now), sampleReading("d2", now)}

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(`COPY "readings"`)
	for _, r := range readings {
		prep.ExpectExec().WithArgs(r.ID, r.DeviceID, "active", 3700, 50, 3, -88, now).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	require.NoError(t, repo.CreateReadings(context.Background(), readings))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateReadings_EmptyIsNoop(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, NewPostgresReadingRepository(db).CreateReadings(context.Background(), nil))
	require.NoError(t, mock.ExpectationsWereMet())
}
