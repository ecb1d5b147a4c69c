package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/flockwise/agrirag/normalize"
	"github.com/flockwise/agrirag/retrieval"
)

// =============================================================================
// 🗄️ 结构化数值存储
// =============================================================================

// BreedStandard 品种生产标准的一条数值记录
type BreedStandard struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Breed     string    `gorm:"size:64;index:idx_standard_lookup,priority:1;not null" json:"breed"`
	Sex       string    `gorm:"size:16;index:idx_standard_lookup,priority:2;not null" json:"sex"`
	Metric    string    `gorm:"size:32;index:idx_standard_lookup,priority:3;not null" json:"metric"`
	AgeDays   int       `gorm:"index:idx_standard_lookup,priority:4;not null" json:"age_days"`
	Value     float64   `gorm:"not null" json:"value"`
	Unit      string    `gorm:"size:16" json:"unit"`
	Source    string    `gorm:"size:128" json:"source"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 指定表名
func (BreedStandard) TableName() string { return "breed_standards" }

// DBConfig 关系库连接配置
type DBConfig struct {
	// mysql / postgres / sqlite
	Driver string `yaml:"driver" json:"driver"`

	// 连接串；sqlite 时为文件路径
	DSN string `yaml:"dsn" json:"dsn"`

	// 建表（部署环境应走迁移，开发与测试用）
	AutoMigrate bool `yaml:"auto_migrate" json:"auto_migrate"`
}

// OpenDB 按驱动打开 GORM 连接
func OpenDB(cfg DBConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(cfg.Driver) {
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "sqlite", "":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = "file::memory:?cache=shared"
		}
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.AutoMigrate {
		if err := db.AutoMigrate(&BreedStandard{}); err != nil {
			return nil, fmt.Errorf("auto migrate failed: %w", err)
		}
	}
	return db, nil
}

// StructuredStore 品种标准的精确数值查询
type StructuredStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewStructuredStore 创建结构化存储
func NewStructuredStore(db *gorm.DB, logger *zap.Logger) *StructuredStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StructuredStore{
		db:     db,
		logger: logger.With(zap.String("component", "structured_store")),
	}
}

// Insert 批量写入标准记录
func (s *StructuredStore) Insert(ctx context.Context, records []BreedStandard) error {
	if len(records) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Create(&records).Error; err != nil {
		return fmt.Errorf("insert breed standards failed: %w", err)
	}
	return nil
}

// Lookup 精确数值查询。
// 查不到返回空切片而非错误：空结果是合法答案，由上层决定降级路径。
func (s *StructuredStore) Lookup(ctx context.Context, filter retrieval.StructuredFilter) ([]retrieval.Candidate, error) {
	query := s.db.WithContext(ctx).Model(&BreedStandard{})

	if filter.Breed != "" {
		query = query.Where("breed = ?", filter.Breed)
	}
	if filter.Sex != "" {
		query = query.Where("sex = ?", string(filter.Sex))
	}
	if filter.Metric != "" {
		query = query.Where("metric = ?", string(filter.Metric))
	}
	if filter.AgeDaysMin > 0 {
		query = query.Where("age_days >= ?", filter.AgeDaysMin)
	}
	if filter.AgeDaysMax > 0 {
		query = query.Where("age_days <= ?", filter.AgeDaysMax)
	}

	var rows []BreedStandard
	if err := query.Order("age_days ASC").Limit(200).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("breed standard lookup failed: %w", err)
	}

	out := make([]retrieval.Candidate, 0, len(rows))
	for _, row := range rows {
		out = append(out, standardToCandidate(row))
	}
	return out, nil
}

// standardToCandidate 数值记录转候选，内容为可直接引用的事实句
func standardToCandidate(row BreedStandard) retrieval.Candidate {
	content := fmt.Sprintf("%s %s %s at %d days: %g %s",
		row.Breed, row.Sex, row.Metric, row.AgeDays, row.Value, row.Unit)
	if row.Source != "" {
		content += fmt.Sprintf(" (source: %s)", row.Source)
	}

	return retrieval.Candidate{
		ID:      fmt.Sprintf("std-%d", row.ID),
		Content: content,
		Score:   1.0, // authoritative numeric answer
		Source:  "structured",
		Metadata: map[string]any{
			"breed":    row.Breed,
			"sex":      row.Sex,
			"metric":   row.Metric,
			"age_days": row.AgeDays,
			"age_band": string(normalize.BucketAge(row.AgeDays)),
			"value":    row.Value,
			"unit":     row.Unit,
		},
	}
}

var _ retrieval.StructuredStore = (*StructuredStore)(nil)
