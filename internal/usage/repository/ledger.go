package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/telcoquota/internal/clock"
	usagedomain "github.com/smallbiznis/telcoquota/internal/usage/domain"
	"github.com/smallbiznis/telcoquota/pkg/db"
	"go.uber.org/fx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const counterColumns = `id, subscription_id, period_month, period_year, data_used_mb, voice_used_min`

type LedgerParam struct {
	fx.In

	DB    *gorm.DB
	GenID *snowflake.Node
	Clock clock.Clock
}

// Ledger is the gorm-backed usage counter store.
type Ledger struct {
	db    *gorm.DB
	genID *snowflake.Node
	clock clock.Clock
}

func NewLedger(p LedgerParam) usagedomain.Ledger {
	return &Ledger{db: p.DB, genID: p.GenID, clock: p.Clock}
}

// FindOrCreateCounter inserts the period row unless it exists, then reads it
// back. Concurrent callers for the same period all get the same row.
func (l *Ledger) FindOrCreateCounter(ctx context.Context, subscriptionID snowflake.ID, period usagedomain.Period) (usagedomain.UsageCounter, error) {
	if subscriptionID == 0 {
		return usagedomain.UsageCounter{}, usagedomain.ErrInvalidSubscription
	}

	now := l.clock.Now()
	counter := usagedomain.UsageCounter{
		ID:             l.genID.Generate(),
		SubscriptionID: subscriptionID,
		PeriodMonth:    period.Month,
		PeriodYear:     period.Year,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := l.insertIfAbsent(ctx, &counter); err != nil && !db.IsDuplicateKeyErr(err) {
		return usagedomain.UsageCounter{}, err
	}

	existing, err := l.FindCounter(ctx, subscriptionID, period)
	if err != nil {
		return usagedomain.UsageCounter{}, err
	}
	if existing == nil {
		return usagedomain.UsageCounter{}, usagedomain.ErrCounterNotFound
	}
	return *existing, nil
}

func (l *Ledger) insertIfAbsent(ctx context.Context, counter *usagedomain.UsageCounter) error {
	if db.IsSQLite(l.db) {
		return l.db.WithContext(ctx).Exec(
			`INSERT INTO usage_counters (
				id, subscription_id, period_month, period_year,
				data_used_mb, voice_used_min, created_at, updated_at
			) VALUES (?, ?, ?, ?, 0, 0, ?, ?)
			ON CONFLICT (subscription_id, period_month, period_year) DO NOTHING`,
			counter.ID,
			counter.SubscriptionID,
			counter.PeriodMonth,
			counter.PeriodYear,
			counter.CreatedAt,
			counter.UpdatedAt,
		).Error
	}
	return l.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "subscription_id"},
			{Name: "period_month"},
			{Name: "period_year"},
		},
		DoNothing: true,
	}).Create(counter).Error
}

// AtomicIncrement adds both deltas in one statement and returns the row as
// written, so the caller can derive the pre-increment value without a
// separate read.
func (l *Ledger) AtomicIncrement(ctx context.Context, inc usagedomain.Increment) (usagedomain.UsageCounter, error) {
	if inc.CounterID == 0 {
		return usagedomain.UsageCounter{}, usagedomain.ErrCounterNotFound
	}
	if inc.DataDeltaMB < 0 || inc.VoiceDeltaMin < 0 {
		return usagedomain.UsageCounter{}, usagedomain.ErrInvalidDelta
	}

	now := l.clock.Now()
	if db.IsMySQL(l.db) {
		return l.incrementLocked(ctx, inc, now)
	}

	var row usagedomain.UsageCounter
	err := l.db.WithContext(ctx).Raw(
		`UPDATE usage_counters
		 SET data_used_mb = data_used_mb + ?,
		     voice_used_min = voice_used_min + ?,
		     updated_at = ?
		 WHERE id = ?
		 RETURNING `+counterColumns,
		inc.DataDeltaMB,
		inc.VoiceDeltaMin,
		now,
		inc.CounterID,
	).Scan(&row).Error
	if err != nil {
		return usagedomain.UsageCounter{}, err
	}
	if row.ID == 0 {
		return usagedomain.UsageCounter{}, usagedomain.ErrCounterNotFound
	}
	row.UpdatedAt = now
	return row, nil
}

// incrementLocked is the mysql path, which has no UPDATE ... RETURNING.
func (l *Ledger) incrementLocked(ctx context.Context, inc usagedomain.Increment, now time.Time) (usagedomain.UsageCounter, error) {
	var row usagedomain.UsageCounter
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Raw(
			`SELECT `+counterColumns+`
			 FROM usage_counters WHERE id = ? `+db.LockClause(tx, false),
			inc.CounterID,
		).Scan(&row).Error; err != nil {
			return err
		}
		if row.ID == 0 {
			return usagedomain.ErrCounterNotFound
		}
		if err := tx.Exec(
			`UPDATE usage_counters
			 SET data_used_mb = data_used_mb + ?,
			     voice_used_min = voice_used_min + ?,
			     updated_at = ?
			 WHERE id = ?`,
			inc.DataDeltaMB,
			inc.VoiceDeltaMin,
			now,
			inc.CounterID,
		).Error; err != nil {
			return err
		}
		row.DataUsedMB += inc.DataDeltaMB
		row.VoiceUsedMin += inc.VoiceDeltaMin
		row.UpdatedAt = now
		return nil
	})
	if err != nil {
		return usagedomain.UsageCounter{}, err
	}
	return row, nil
}

func (l *Ledger) FindCounter(ctx context.Context, subscriptionID snowflake.ID, period usagedomain.Period) (*usagedomain.UsageCounter, error) {
	var row usagedomain.UsageCounter
	err := l.db.WithContext(ctx).Raw(
		`SELECT `+counterColumns+`, created_at, updated_at
		 FROM usage_counters
		 WHERE subscription_id = ? AND period_month = ? AND period_year = ?`,
		subscriptionID,
		period.Month,
		period.Year,
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, nil
	}
	return &row, nil
}

// ListCounters returns a subscription's counters newest first.
func (l *Ledger) ListCounters(ctx context.Context, query usagedomain.ListCountersQuery) ([]usagedomain.UsageCounter, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = 12
	}
	stmt := l.db.WithContext(ctx).
		Model(&usagedomain.UsageCounter{}).
		Where("subscription_id = ?", query.SubscriptionID)
	if query.BeforeID != 0 {
		stmt = stmt.Where("id < ?", query.BeforeID)
	}

	var rows []usagedomain.UsageCounter
	if err := stmt.Order("id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
