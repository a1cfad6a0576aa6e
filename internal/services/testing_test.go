package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ngtsab/memberdir/internal/access"
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

func newAccessController(t *testing.T, db *gorm.DB) (*access.Controller, *RoleService) {
	t.Helper()

	roles, err := NewRoleService(db)
	require.NoError(t, err)
	ctl, err := access.NewController(roles)
	require.NoError(t, err)

	return ctl, roles
}

func seedMember(t *testing.T, db *gorm.DB, roles *RoleService, email string, grantRoles ...string) string {
	t.Helper()

	ident := models.Identity{Email: email}
	require.NoError(t, db.Create(&ident).Error)

	profile := models.Profile{
		ID:                ident.ID,
		FullName:          "Member " + email,
		Email:             email,
		PublicRole:        models.PublicRoleAdvisor,
		ContactVisibility: true,
	}
	require.NoError(t, db.Create(&profile).Error)

	for _, role := range grantRoles {
		require.NoError(t, roles.Grant(context.Background(), ident.ID, role))
	}

	return ident.ID
}
