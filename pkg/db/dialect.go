package db

import (
	"fmt"
	"strings"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func Dialect(cfg Config) (gorm.Dialector, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case "mysql":
		return mysql.Open(fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			cfg.User,
			cfg.Password,
			cfg.Host,
			cfg.Port,
			cfg.Name,
		)), nil
	case "postgres":
		return postgres.Open(fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
			cfg.Host,
			cfg.User,
			cfg.Password,
			cfg.Name,
			cfg.Port,
			cfg.SSLMode,
		)), nil
	case "sqlite":
		name := strings.TrimSpace(cfg.Name)
		if name == "" {
			name = "telcoquota.db"
		}
		return sqlite.Open(name), nil
	default:
		return nil, fmt.Errorf("unsupported %s type", cfg.Type)
	}
}

// IsSQLite reports whether the connection runs on sqlite, which lacks row locks.
func IsSQLite(conn *gorm.DB) bool {
	return conn != nil && strings.EqualFold(conn.Dialector.Name(), "sqlite")
}

// IsMySQL reports whether the connection runs on mysql, which lacks RETURNING.
func IsMySQL(conn *gorm.DB) bool {
	return conn != nil && strings.EqualFold(conn.Dialector.Name(), "mysql")
}

// LockClause returns the row locking suffix supported by the connection's dialect.
func LockClause(conn *gorm.DB, skipLocked bool) string {
	if IsSQLite(conn) {
		return ""
	}
	if skipLocked {
		return "FOR UPDATE SKIP LOCKED"
	}
	return "FOR UPDATE"
}
