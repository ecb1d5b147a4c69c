package migration

import (
	"fmt"

	appconfig "github.com/flockwise/agrirag/config"
)

// OpenFromDatabaseConfig 从应用的数据库配置创建迁移器。
// SQLite 下 Name 字段即数据库文件路径。
func OpenFromDatabaseConfig(dbCfg appconfig.DatabaseConfig) (*Migrator, error) {
	dialect, err := ParseDialect(dbCfg.Driver)
	if err != nil {
		return nil, fmt.Errorf("database config: %w", err)
	}

	var sslMode string
	if dialect == DialectPostgres {
		sslMode = dbCfg.SSLMode
	}

	return Open(Options{
		Dialect: dialect,
		URL:     ConnURL(dialect, dbCfg.Host, dbCfg.Port, dbCfg.Name, dbCfg.User, dbCfg.Password, sslMode),
	})
}

// OpenFromURL 从方言名与连接 URL 创建迁移器
func OpenFromURL(dialect, url string) (*Migrator, error) {
	d, err := ParseDialect(dialect)
	if err != nil {
		return nil, err
	}
	return Open(Options{Dialect: d, URL: url})
}
