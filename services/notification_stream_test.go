package services

import (
	"context"
	"testing"
	"time"

	"job-board-growth/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationStreamCursor(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	clock := newTestClock()
	ledger := NewLedger(clock.Now)
	s := NewNotificationStream(db)

	cursor, err := s.latestCursor(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, cursor.IsZero())

	require.NoError(t, ledger.Notify(db, "u1", models.NotificationAchievement, "one", "", nil))
	cursor, err = s.latestCursor(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, clock.Now().Equal(cursor))

	clock.Advance(time.Second)
	require.NoError(t, ledger.Notify(db, "u1", models.NotificationViralReward, "two", "", map[string]any{"amount": 5}))
	require.NoError(t, ledger.Notify(db, "u2", models.NotificationViralReward, "other user", "", nil))

	fresh, err := s.since(ctx, "u1", cursor)
	require.NoError(t, err)
	require.Len(t, fresh, 1)
	assert.Equal(t, "two", fresh[0].Title)
	assert.Equal(t, models.NotificationViralReward, fresh[0].Type)
}
