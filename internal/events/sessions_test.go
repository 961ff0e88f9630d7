package events_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/events"
	"fintrack/internal/testsupport"
)

func seedActiveSession(t *testing.T, dbManager *testsupport.TestDBManager, lastSeen time.Time) string {
	t.Helper()
	sessionID := testsupport.NewSessionID()
	require.NoError(t, dbManager.GetConnection().Create(&events.ActiveSession{
		SessionID: sessionID,
		LastSeen:  lastSeen,
		PageURL:   "/",
	}).Error)
	return sessionID
}

func TestPurgeExpiredSessions(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	now := time.Now().UTC()
	fresh := seedActiveSession(t, dbManager, now.Add(-1*time.Minute))
	stale := seedActiveSession(t, dbManager, now.Add(-10*time.Minute))

	purged, err := events.PurgeExpiredSessions(dbManager, logger, 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	var count int64
	require.NoError(t, db.Model(&events.ActiveSession{}).
		Where("session_id = ?", fresh).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	require.NoError(t, db.Model(&events.ActiveSession{}).
		Where("session_id = ?", stale).Count(&count).Error)
	assert.Zero(t, count)

	// A second sweep finds nothing left to purge.
	purged, err = events.PurgeExpiredSessions(dbManager, logger, 5*time.Minute)
	require.NoError(t, err)
	assert.Zero(t, purged)
}

func TestCountActiveSessions(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	now := time.Now().UTC()
	seedActiveSession(t, dbManager, now.Add(-30*time.Second))
	seedActiveSession(t, dbManager, now.Add(-2*time.Minute))
	seedActiveSession(t, dbManager, now.Add(-20*time.Minute))

	// The count window is independent from the purge timeout: rows past the
	// window but not yet swept are excluded.
	count, err := events.CountActiveSessions(db, 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	count, err = events.CountActiveSessions(db, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
