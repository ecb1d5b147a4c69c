package database

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	appconfig "github.com/flockwise/agrirag/config"
)

// =============================================================================
// 🧪 连接池测试
// =============================================================================

func newMockPool(t *testing.T, cfg PoolConfig) (*Pool, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	// 关闭自动 ping，避免 Open 即消费 ping 期望
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB}),
		&gorm.Config{DisableAutomaticPing: true})
	require.NoError(t, err)

	p, err := NewPool(gormDB, cfg, zap.NewNop())
	require.NoError(t, err)
	return p, mock
}

func TestNewPool_NilDB(t *testing.T) {
	_, err := NewPool(nil, DefaultPoolConfig(), zap.NewNop())
	assert.Error(t, err)
}

func TestNewPool_NilLoggerTolerated(t *testing.T) {
	mockDB, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB}),
		&gorm.Config{DisableAutomaticPing: true})
	require.NoError(t, err)

	p, err := NewPool(gormDB, PoolConfig{}, nil)
	require.NoError(t, err)
	assert.NotNil(t, p.DB())
}

func TestPool_Ping(t *testing.T) {
	p, mock := newMockPool(t, PoolConfig{MaxOpenConns: 10, MaxIdleConns: 5})

	mock.ExpectPing()
	assert.NoError(t, p.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPool_PingFailure(t *testing.T) {
	p, mock := newMockPool(t, PoolConfig{MaxOpenConns: 10, MaxIdleConns: 5})

	mock.ExpectPing().WillReturnError(sql.ErrConnDone)
	assert.Error(t, p.Ping(context.Background()))
}

func TestPool_PingAfterClose(t *testing.T) {
	p, mock := newMockPool(t, PoolConfig{MaxOpenConns: 10, MaxIdleConns: 5})

	mock.ExpectClose()
	require.NoError(t, p.Close())

	err := p.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closed")
}

func TestPool_CloseIdempotent(t *testing.T) {
	p, mock := newMockPool(t, PoolConfig{MaxOpenConns: 10, MaxIdleConns: 5})

	mock.ExpectClose()
	assert.NoError(t, p.Close())
	// 第二次 Close 不再触碰底层连接
	assert.NoError(t, p.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPool_Snapshot(t *testing.T) {
	p, _ := newMockPool(t, PoolConfig{MaxOpenConns: 10, MaxIdleConns: 5})

	snap := p.Snapshot()
	assert.Equal(t, 10, snap.MaxOpenConnections)
	assert.GreaterOrEqual(t, snap.OpenConnections, 0)
	assert.GreaterOrEqual(t, snap.InUse, 0)
	assert.GreaterOrEqual(t, snap.Idle, 0)
}

func TestPool_BackgroundHealthLoop(t *testing.T) {
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB}),
		&gorm.Config{DisableAutomaticPing: true})
	require.NoError(t, err)

	// 后台循环按间隔消费 ping，次数与时序无关
	mock.MatchExpectationsInOrder(false)
	mock.ExpectPing()
	mock.ExpectPing()
	mock.ExpectPing()
	mock.ExpectClose()

	p, err := NewPool(gormDB, PoolConfig{
		MaxOpenConns:        10,
		MaxIdleConns:        5,
		HealthCheckInterval: 50 * time.Millisecond,
	}, zap.NewNop())
	require.NoError(t, err)

	// 等健康探测至少跑一轮
	time.Sleep(120 * time.Millisecond)
	require.NoError(t, p.Close())
}

func TestPoolConfigFrom(t *testing.T) {
	dbCfg := appconfig.DatabaseConfig{
		MaxOpenConns:    50,
		MaxIdleConns:    8,
		ConnMaxLifetime: 2 * time.Hour,
	}

	cfg := PoolConfigFrom(dbCfg)
	assert.Equal(t, 50, cfg.MaxOpenConns)
	assert.Equal(t, 8, cfg.MaxIdleConns)
	assert.Equal(t, 2*time.Hour, cfg.ConnMaxLifetime)
	// 未映射的字段保留默认值
	assert.Equal(t, 10*time.Minute, cfg.ConnMaxIdleTime)
}

func TestPoolConfigFrom_ZeroFallsBackToDefaults(t *testing.T) {
	cfg := PoolConfigFrom(appconfig.DatabaseConfig{})
	assert.Equal(t, DefaultPoolConfig(), cfg)
}
