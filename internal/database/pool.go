package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/flockwise/agrirag/config"
)

// =============================================================================
// 🗄️ 数值库连接池
// =============================================================================

// PoolConfig 连接池参数
type PoolConfig struct {
	// 最大空闲连接数
	MaxIdleConns int `yaml:"max_idle_conns" json:"max_idle_conns"`

	// 最大打开连接数
	MaxOpenConns int `yaml:"max_open_conns" json:"max_open_conns"`

	// 连接最大生命周期
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`

	// 连接最大空闲时间
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" json:"conn_max_idle_time"`

	// 健康检查间隔，<=0 表示不起后台探测
	HealthCheckInterval time.Duration `yaml:"health_check_interval" json:"health_check_interval"`
}

// DefaultPoolConfig 返回默认连接池参数
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxIdleConns:        10,
		MaxOpenConns:        100,
		ConnMaxLifetime:     time.Hour,
		ConnMaxIdleTime:     10 * time.Minute,
		HealthCheckInterval: 30 * time.Second,
	}
}

// PoolConfigFrom 从顶层数据库配置派生连接池参数，缺省项回落默认值
func PoolConfigFrom(dbCfg config.DatabaseConfig) PoolConfig {
	cfg := DefaultPoolConfig()
	if dbCfg.MaxIdleConns > 0 {
		cfg.MaxIdleConns = dbCfg.MaxIdleConns
	}
	if dbCfg.MaxOpenConns > 0 {
		cfg.MaxOpenConns = dbCfg.MaxOpenConns
	}
	if dbCfg.ConnMaxLifetime > 0 {
		cfg.ConnMaxLifetime = dbCfg.ConnMaxLifetime
	}
	return cfg
}

// Pool 包装品种标准数值库的 GORM 连接，
// 负责连接池参数、后台健康探测与关闭时的资源释放。
type Pool struct {
	db     *gorm.DB
	sqlDB  *sql.DB
	logger *zap.Logger

	closeOnce sync.Once
	done      chan struct{}
}

// NewPool 套用连接池参数并按需启动健康探测
func NewPool(db *gorm.DB, cfg PoolConfig, logger *zap.Logger) (*Pool, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	p := &Pool{
		db:     db,
		sqlDB:  sqlDB,
		logger: logger.With(zap.String("component", "db_pool")),
		done:   make(chan struct{}),
	}

	if cfg.HealthCheckInterval > 0 {
		go p.healthLoop(cfg.HealthCheckInterval)
	}

	p.logger.Info("database pool initialized",
		zap.Int("max_idle_conns", cfg.MaxIdleConns),
		zap.Int("max_open_conns", cfg.MaxOpenConns),
		zap.Duration("conn_max_lifetime", cfg.ConnMaxLifetime),
	)

	return p, nil
}

// DB 返回底层 GORM 实例
func (p *Pool) DB() *gorm.DB {
	return p.db
}

// Ping 探测数值库连通性
func (p *Pool) Ping(ctx context.Context) error {
	select {
	case <-p.done:
		return fmt.Errorf("pool is closed")
	default:
	}
	return p.sqlDB.PingContext(ctx)
}

// Close 停止健康探测并关闭连接池，可重复调用
func (p *Pool) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.done)
		p.logger.Info("closing database pool")
		err = p.sqlDB.Close()
	})
	return err
}

// =============================================================================
// 🏥 健康探测
// =============================================================================

// healthLoop 周期性 Ping，失联只记日志，恢复交给 database/sql 的重连
func (p *Pool) healthLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := p.Ping(ctx); err != nil {
			p.logger.Error("database health check failed", zap.Error(err))
		} else {
			snap := p.Snapshot()
			p.logger.Debug("database health check passed",
				zap.Int("open_connections", snap.OpenConnections),
				zap.Int("in_use", snap.InUse),
				zap.Int("idle", snap.Idle),
			)
		}
		cancel()
	}
}

// =============================================================================
// 📊 统计信息
// =============================================================================

// PoolStats 连接池瞬时统计
type PoolStats struct {
	MaxOpenConnections int           `json:"max_open_connections"`
	OpenConnections    int           `json:"open_connections"`
	InUse              int           `json:"in_use"`
	Idle               int           `json:"idle"`
	WaitCount          int64         `json:"wait_count"`
	WaitDuration       time.Duration `json:"wait_duration"`
}

// Snapshot 抓取当前连接池统计
func (p *Pool) Snapshot() PoolStats {
	stats := p.sqlDB.Stats()
	return PoolStats{
		MaxOpenConnections: stats.MaxOpenConnections,
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		WaitCount:          stats.WaitCount,
		WaitDuration:       stats.WaitDuration,
	}
}
