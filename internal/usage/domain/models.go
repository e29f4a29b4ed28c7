// Package domain contains the usage counter model and the ingestion contracts.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// UsageCounter accumulates one subscription's usage for one calendar month.
// Rows are created lazily, only ever incremented and kept after the period ends.
type UsageCounter struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	SubscriptionID snowflake.ID `gorm:"not null;uniqueIndex:ux_usage_counters_period,priority:1" json:"subscription_id"`
	PeriodMonth    int          `gorm:"not null;uniqueIndex:ux_usage_counters_period,priority:2" json:"period_month"`
	PeriodYear     int          `gorm:"not null;uniqueIndex:ux_usage_counters_period,priority:3" json:"period_year"`
	DataUsedMB     int64        `gorm:"column:data_used_mb;not null;default:0" json:"data_used_mb"`
	VoiceUsedMin   int64        `gorm:"column:voice_used_min;not null;default:0" json:"voice_used_min"`
	CreatedAt      time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time    `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (UsageCounter) TableName() string { return "usage_counters" }

// Period is a calendar month in UTC.
type Period struct {
	Month int
	Year  int
}

func PeriodOf(t time.Time) Period {
	t = t.UTC()
	return Period{Month: int(t.Month()), Year: t.Year()}
}

func (p Period) Next() Period {
	if p.Month == 12 {
		return Period{Month: 1, Year: p.Year + 1}
	}
	return Period{Month: p.Month + 1, Year: p.Year}
}

// Quota is the data allowance a subscription is evaluated against.
type Quota struct {
	DataMB    int64
	Unlimited bool
}
