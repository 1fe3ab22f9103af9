package repository

import (
	"context"
	"testing"

	"github.com/nimasrn/message-automation/internal/model"
	"github.com/nimasrn/message-automation/pkg/pg"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testDB struct {
	*pg.DB
	rawDB *gorm.DB
}

func setupTestDB(t *testing.T) *testDB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every connection to :memory: opens a fresh database
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(AllEntities()...)
	require.NoError(t, err)

	return &testDB{
		DB:    pg.NewDB(db, db),
		rawDB: db,
	}
}

func createTenant(t *testing.T, db *pg.DB, smsAllocated, smsUsed int) *model.Tenant {
	t.Helper()
	tenant, err := NewTenantRepository(db).Create(context.Background(), &model.Tenant{
		Name:            "Acme",
		Status:          model.TenantActive,
		WhatsAppEnabled: true,
		SMSQuota:        model.Quota{Allocated: smsAllocated, Used: smsUsed},
		WhatsAppQuota:   model.Quota{Allocated: 100},
	})
	require.NoError(t, err)
	return tenant
}

func strPtr(s string) *string { return &s }
