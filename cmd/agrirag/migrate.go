package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/flockwise/agrirag/config"
	"github.com/flockwise/agrirag/internal/migration"
)

// =============================================================================
// 📚 数据库迁移子命令
// =============================================================================

// runMigrate 分发 migrate 子命令。除 goto/force 需要一个版本号参数外，
// 各子命令共享同一组连接标志，真正的差异只有对 CLI 的那一次调用。
func runMigrate(args []string) {
	if len(args) < 1 {
		printMigrateUsage()
		os.Exit(1)
	}

	sub, subargs := args[0], args[1:]

	switch sub {
	case "up":
		migrateWith(sub, subargs, func(cli *migration.CLI) error {
			return cli.Up()
		})
	case "down":
		migrateWith(sub, subargs, func(cli *migration.CLI) error {
			return cli.Rollback()
		})
	case "reset":
		migrateWith(sub, subargs, func(cli *migration.CLI) error {
			return cli.Reset()
		})
	case "status":
		migrateWith(sub, subargs, func(cli *migration.CLI) error {
			return cli.Status()
		})
	case "version":
		migrateWith(sub, subargs, func(cli *migration.CLI) error {
			return cli.Version()
		})
	case "goto":
		v, rest := migrateVersionArg(sub, subargs, false)
		migrateWith(sub, rest, func(cli *migration.CLI) error {
			return cli.Goto(uint(v))
		})
	case "force":
		v, rest := migrateVersionArg(sub, subargs, true)
		migrateWith(sub, rest, func(cli *migration.CLI) error {
			return cli.Force(int(v))
		})
	case "help", "-h", "--help":
		printMigrateUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown migrate subcommand: %s\n", sub)
		printMigrateUsage()
		os.Exit(1)
	}
}

// migrateWith 解析连接标志、打开迁移器并执行 run，失败即退出进程。
func migrateWith(sub string, args []string, run func(*migration.CLI) error) {
	m, err := openMigrator(sub, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open migrator: %v\n", err)
		os.Exit(1)
	}
	defer m.Close()

	if err := run(migration.NewCLI(m, os.Stdout)); err != nil {
		fmt.Fprintf(os.Stderr, "Migration %s failed: %v\n", sub, err)
		os.Exit(1)
	}
}

// openMigrator 按标志选择连接来源：显式 --db-type/--db-url 优先，
// 否则走配置文件，--db-type 单独出现时仅覆盖配置中的驱动。
func openMigrator(sub string, args []string) (*migration.Migrator, error) {
	fs := flag.NewFlagSet("migrate "+sub, flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	dbType := fs.String("db-type", "", "Database type (postgres, mysql, sqlite)")
	dbURL := fs.String("db-url", "", "Database connection URL")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *dbType != "" && *dbURL != "" {
		return migration.OpenFromURL(*dbType, *dbURL)
	}

	loader := config.NewLoader()
	if *configPath != "" {
		loader = loader.WithConfigPath(*configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if *dbType != "" {
		cfg.Database.Driver = *dbType
	}
	return migration.OpenFromDatabaseConfig(cfg.Database)
}

// migrateVersionArg 消费 goto/force 的前导版本号参数。
func migrateVersionArg(sub string, args []string, signed bool) (int64, []string) {
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "Usage: agrirag migrate %s <version>\n", sub)
		os.Exit(1)
	}

	var (
		v   int64
		err error
	)
	if signed {
		v, err = strconv.ParseInt(args[0], 10, 32)
	} else {
		var u uint64
		u, err = strconv.ParseUint(args[0], 10, 32)
		v = int64(u)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid version number: %s\n", args[0])
		os.Exit(1)
	}
	return v, args[1:]
}

func printMigrateUsage() {
	fmt.Println(`Breed standards schema migrations

Usage:
  agrirag migrate <subcommand> [options]

Subcommands:
  up        Apply all pending migrations
  down      Rollback the last migration
  status    Show per-migration status
  version   Show current schema version
  goto      Migrate to a specific version
  force     Force set schema version (use with caution)
  reset     Rollback all migrations
  help      Show this help message

Options:
  --config <path>     Path to configuration file (YAML)
  --db-type <type>    Database type: postgres, mysql, sqlite (default: from config)
  --db-url <url>      Database connection URL (default: from config)

Examples:
  agrirag migrate up
  agrirag migrate up --config /etc/agrirag/config.yaml
  agrirag migrate status --db-type sqlite --db-url /var/lib/agrirag/agrirag.db
  agrirag migrate goto 1`)
}
