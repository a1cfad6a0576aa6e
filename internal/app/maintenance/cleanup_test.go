package maintenance

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ngtsab/memberdir/internal/database"
	"github.com/ngtsab/memberdir/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	return db
}

func seedTokenedIdentity(t *testing.T, db *gorm.DB, email string, expiresAt time.Time) string {
	t.Helper()

	hash := "hash-" + email
	ident := models.Identity{
		Email:                email,
		InviteTokenHash:      &hash,
		InviteTokenExpiresAt: &expiresAt,
	}
	require.NoError(t, db.Create(&ident).Error)
	return ident.ID
}

func TestRunOnceRetiresOnlyExpiredTokens(t *testing.T) {
	db := newTestDB(t)
	now := time.Now()

	expiredID := seedTokenedIdentity(t, db, "expired@example.org", now.Add(-time.Hour))
	liveID := seedTokenedIdentity(t, db, "live@example.org", now.Add(time.Hour))

	sweeper, err := NewSweeper(db, WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	require.NoError(t, sweeper.RunOnce(context.Background()))

	var expired models.Identity
	require.NoError(t, db.First(&expired, "id = ?", expiredID).Error)
	require.Nil(t, expired.InviteTokenHash)
	require.Nil(t, expired.InviteTokenExpiresAt)

	var live models.Identity
	require.NoError(t, db.First(&live, "id = ?", liveID).Error)
	require.NotNil(t, live.InviteTokenHash)
	require.NotNil(t, live.InviteTokenExpiresAt)
}

func TestRunOnceIsRepeatable(t *testing.T) {
	db := newTestDB(t)
	now := time.Now()

	seedTokenedIdentity(t, db, "expired@example.org", now.Add(-time.Hour))

	sweeper, err := NewSweeper(db, WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	require.NoError(t, sweeper.RunOnce(context.Background()))
	require.NoError(t, sweeper.RunOnce(context.Background()))
}

func TestSweeperRejectsBadSchedule(t *testing.T) {
	db := newTestDB(t)

	sweeper, err := NewSweeper(db, WithSchedule("not a schedule"))
	require.NoError(t, err)
	require.Error(t, sweeper.Start())
}

func TestSweeperStartStop(t *testing.T) {
	db := newTestDB(t)

	sweeper, err := NewSweeper(db, WithSchedule("@hourly"))
	require.NoError(t, err)
	require.NoError(t, sweeper.Start())
	sweeper.Stop()
}
