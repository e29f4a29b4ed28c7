package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, reservation *MSISDNReservation) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*MSISDNReservation, error)
	FindByMSISDN(ctx context.Context, db *gorm.DB, msisdn string) (*MSISDNReservation, error)
	Transition(ctx context.Context, db *gorm.DB, req Transition) (int64, error)
	ListExpired(ctx context.Context, db *gorm.DB, query ListExpiredQuery) ([]MSISDNReservation, error)
}

// Transition moves a reservation from From to To. When ReservedBefore is set
// the row must also have been reserved strictly before it; when ReservedSince
// is set it must have been reserved at or after it.
type Transition struct {
	ID             snowflake.ID
	MSISDN         string
	From           ReservationStatus
	To             ReservationStatus
	At             time.Time
	ReservedBy     *snowflake.ID
	ReservedBefore *time.Time
	ReservedSince  *time.Time
}

// ListExpiredQuery pages through reserved rows older than ReservedBefore in
// keyset order of id.
type ListExpiredQuery struct {
	ReservedBefore time.Time
	AfterID        snowflake.ID
	Limit          int
}
