package helpers

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nimasrn/message-automation/internal/channel"
	"github.com/nimasrn/message-automation/internal/model"
	"github.com/nimasrn/message-automation/internal/repository"
	"github.com/nimasrn/message-automation/pkg/pg"
	"github.com/nimasrn/message-automation/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func SetupTestDB(t *testing.T) *pg.DB {
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// one connection so every goroutine sees the same in-memory database
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, gdb.AutoMigrate(repository.AllEntities()...))
	return pg.NewDB(gdb, gdb)
}

func SetupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	mr := miniredis.RunT(t)

	adapter, err := redis.NewRedisAdapter(t.Name()+"-"+mr.Addr(), "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)
	return mr, adapter
}

func CreateTestTenant(t *testing.T, db *pg.DB, smsAllocated, whatsappAllocated int) *model.Tenant {
	tenant, err := repository.NewTenantRepository(db).Create(context.Background(), &model.Tenant{
		Name:            "Acme Store",
		Status:          model.TenantActive,
		WhatsAppEnabled: whatsappAllocated > 0,
		SMSQuota:        model.Quota{Allocated: smsAllocated},
		WhatsAppQuota:   model.Quota{Allocated: whatsappAllocated},
	})
	require.NoError(t, err)
	return tenant
}

func CreateTestCustomer(t *testing.T, db *pg.DB, tenantID, name, phone string) *model.Customer {
	c, err := repository.NewCustomerRepository(db).Create(context.Background(), &model.Customer{
		TenantID: tenantID,
		Name:     name,
		Phone:    phone,
	})
	require.NoError(t, err)
	return c
}

// StubProvider accepts every message and keeps a copy.
type StubProvider struct {
	mu   sync.Mutex
	name string
	sent []channel.Message
	err  error
}

func NewStubProvider(name string) *StubProvider {
	return &StubProvider{name: name}
}

func (p *StubProvider) Name() string { return p.name }

func (p *StubProvider) Send(ctx context.Context, m channel.Message) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.sent = append(p.sent, m)
	return p.name + "-" + m.ID, nil
}

func (p *StubProvider) Fail(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

func (p *StubProvider) Sent() []channel.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]channel.Message, len(p.sent))
	copy(out, p.sent)
	return out
}

// WaitFor polls cond until it holds or the timeout passes.
func WaitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, timeout, 20*time.Millisecond)
}
