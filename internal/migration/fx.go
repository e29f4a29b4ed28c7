package migration

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(Apply),
)

// Apply brings the schema up to date for the connected dialect.
func Apply(conn *gorm.DB, log *zap.Logger) error {
	dialect := conn.Dialector.Name()
	log.Info("applying migrations", zap.String("dialect", dialect))

	if dialect != "postgres" {
		return AutoMigrate(conn)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return RunMigrations(sqlDB)
}
