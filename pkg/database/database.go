package database

import (
	"fmt"
	"strings"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Config holds database configuration.
type Config struct {
	Driver          string // postgres, mysql, sqlite
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string // postgres only
	FilePath        string // sqlite only
	TimeZone        string // postgres only
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime int // minutes
	LogLevel        string
	SlowThreshold   time.Duration
}

// sqlite has no SELECT ... FOR UPDATE. Taking the write lock at BEGIN
// makes locked reads inside a transaction exclusive as well.
const sqliteParams = "_txlock=immediate&_busy_timeout=5000"

// New opens a connection for cfg.Driver and applies the pool settings.
func New(cfg *Config) (*gorm.DB, error) {
	dialector, err := Dialector(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         NewLogger(cfg.LogLevel, cfg.SlowThreshold),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", cfg.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	}

	return db, nil
}

// Dialector builds the gorm dialector for cfg without connecting.
func Dialector(cfg *Config) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "postgres":
		return postgres.New(postgres.Config{
			DSN: fmt.Sprintf(
				"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
				cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, orDefault(cfg.SSLMode, "disable"), orDefault(cfg.TimeZone, "UTC"),
			),
			PreferSimpleProtocol: true,
		}), nil

	case "mysql":
		mc := mysqldriver.NewConfig()
		mc.User = cfg.User
		mc.Passwd = cfg.Password
		mc.Net = "tcp"
		mc.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
		mc.DBName = cfg.DBName
		mc.ParseTime = true
		mc.Loc = time.UTC
		mc.Params = map[string]string{"charset": "utf8mb4"}
		return mysql.New(mysql.Config{DSN: mc.FormatDSN(), DSNConfig: mc}), nil

	case "sqlite":
		return sqlite.Open(SQLiteDSN(cfg.FilePath)), nil

	default:
		return nil, fmt.Errorf("unsupported database driver: %q", cfg.Driver)
	}
}

// SQLiteDSN appends the locking parameters to path unless it already
// sets a transaction lock mode.
func SQLiteDSN(path string) string {
	if strings.Contains(path, "_txlock=") {
		return path
	}
	if !strings.HasPrefix(path, "file:") {
		path = "file:" + path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + sqliteParams
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// AutoMigrate runs GORM auto-migration for the given models.
func AutoMigrate(db *gorm.DB, models ...interface{}) error {
	return db.AutoMigrate(models...)
}
