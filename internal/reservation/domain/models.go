// Package domain contains the phone-number reservation model.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// ReservationStatus is the state of a phone number in the sales inventory.
type ReservationStatus string

const (
	ReservationStatusAvailable ReservationStatus = "available"
	ReservationStatusReserved  ReservationStatus = "reserved"
	ReservationStatusActive    ReservationStatus = "active"
)

// MSISDNReservation holds a phone number while a checkout is in progress.
// available -> reserved -> active, or reserved -> available on release/expiry.
type MSISDNReservation struct {
	ID          snowflake.ID      `gorm:"primaryKey" json:"id"`
	MSISDN      string            `gorm:"column:msisdn;type:varchar(32);not null;uniqueIndex" json:"msisdn"`
	Status      ReservationStatus `gorm:"type:varchar(16);not null;index:idx_msisdn_reservations_status_reserved_at,priority:1" json:"status"`
	ReservedAt  *time.Time        `gorm:"index:idx_msisdn_reservations_status_reserved_at,priority:2" json:"reserved_at,omitempty"`
	ReservedBy  *snowflake.ID     `gorm:"" json:"reserved_by,omitempty"`
	ActivatedAt *time.Time        `gorm:"" json:"activated_at,omitempty"`
	CreatedAt   time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (MSISDNReservation) TableName() string { return "msisdn_reservations" }
