package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	apikeydomain "github.com/smallbiznis/telcoquota/internal/apikey/domain"
	"github.com/smallbiznis/telcoquota/internal/events"
	reservationdomain "github.com/smallbiznis/telcoquota/internal/reservation/domain"
	subscriptiondomain "github.com/smallbiznis/telcoquota/internal/subscription/domain"
	usagedomain "github.com/smallbiznis/telcoquota/internal/usage/domain"
	"gorm.io/gorm"
)

const migrationsDir = "migrations"

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// RunMigrations applies the embedded SQL migrations to a postgres database.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

// Models lists every table the service owns.
func Models() []any {
	return []any{
		&subscriptiondomain.PlanQuota{},
		&subscriptiondomain.Subscription{},
		&usagedomain.UsageCounter{},
		&reservationdomain.MSISDNReservation{},
		&events.DomainEvent{},
		&apikeydomain.APIKey{},
	}
}

// AutoMigrate creates the schema through gorm for sqlite and mysql, which the
// SQL migrations do not target. Sqlite also gets the partial unique index on
// active phone numbers; mysql has no partial indexes.
func AutoMigrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	if conn.Dialector.Name() == "sqlite" {
		if err := conn.Exec(
			`CREATE UNIQUE INDEX IF NOT EXISTS ux_subscriptions_active_msisdn
			 ON subscriptions (msisdn) WHERE status = 'active'`,
		).Error; err != nil {
			return fmt.Errorf("create active msisdn index: %w", err)
		}
	}
	return nil
}
