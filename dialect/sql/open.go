package sql

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/syssam/tabula/dialect"

	_ "github.com/go-sql-driver/mysql" // registers "mysql"
	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	_ "github.com/lib/pq"              // registers "postgres"
	_ "modernc.org/sqlite"             // registers "sqlite"
)

// driverNames maps a dialect to the database/sql driver used by default.
var driverNames = map[string]string{
	dialect.MySQL:    "mysql",
	dialect.SQLite:   "sqlite",
	dialect.Postgres: "pgx",
}

// Open opens a database for the given dialect using its default
// database/sql driver (pgx for Postgres) and returns a Driver.
func Open(name, source string) (*Driver, error) {
	drv, ok := driverNames[name]
	if !ok {
		return nil, fmt.Errorf("dialect/sql: unsupported dialect %q", name)
	}
	return openDriver(name, drv, source)
}

func openDriver(name, drv, source string) (*Driver, error) {
	db, err := sql.Open(drv, source)
	if err != nil {
		return nil, fmt.Errorf("dialect/sql: open %s: %w", drv, err)
	}
	return OpenDB(name, db), nil
}

// Config describes how to open a database.
//
//	dialect: postgres
//	driver: postgres   # lib/pq instead of pgx
//	dsn: postgres://localhost/app?sslmode=disable
//	debug: true
//	slow_threshold: 250ms
type Config struct {
	Dialect       string        `yaml:"dialect"`
	Driver        string        `yaml:"driver,omitempty"`
	DSN           string        `yaml:"dsn"`
	Debug         bool          `yaml:"debug,omitempty"`
	SlowThreshold time.Duration `yaml:"slow_threshold,omitempty"`
	MaxOpenConns  int           `yaml:"max_open_conns,omitempty"`
	Ping          bool          `yaml:"ping,omitempty"`
}

// LoadConfig reads a YAML Config from path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dialect/sql: read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes a YAML Config.
func ParseConfig(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("dialect/sql: decode config: %w", err)
	}
	if cfg.Dialect == "" {
		return nil, fmt.Errorf("dialect/sql: config: missing dialect")
	}
	return cfg, nil
}

// OpenConfig opens the database described by cfg. The returned driver
// collects statistics, and logs every statement if cfg.Debug is set.
// The StatsDriver is returned separately for reading the statistics.
func OpenConfig(ctx context.Context, cfg *Config) (dialect.Driver, *StatsDriver, error) {
	drvName := cfg.Driver
	if drvName == "" {
		var ok bool
		if drvName, ok = driverNames[cfg.Dialect]; !ok {
			return nil, nil, fmt.Errorf("dialect/sql: unsupported dialect %q", cfg.Dialect)
		}
	}
	base, err := openDriver(cfg.Dialect, drvName, cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	if cfg.MaxOpenConns > 0 {
		base.DB().SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.Ping {
		if err := base.DB().PingContext(ctx); err != nil {
			_ = base.Close()
			return nil, nil, fmt.Errorf("dialect/sql: ping: %w", err)
		}
	}
	var opts []StatsOption
	if cfg.SlowThreshold > 0 {
		opts = append(opts, WithSlowThreshold(cfg.SlowThreshold), WithSlowQueryLog(nil))
	}
	stats := NewStatsDriver(base, opts...)
	if cfg.Debug {
		return NewDebugDriver(stats), stats, nil
	}
	return stats, stats, nil
}
