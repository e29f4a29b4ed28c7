package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (MSISDNReservation, error)
	Get(ctx context.Context, id string) (MSISDNReservation, error)
	Reserve(ctx context.Context, req ReserveRequest) (MSISDNReservation, error)
	Activate(ctx context.Context, id string) (MSISDNReservation, error)
	Release(ctx context.Context, id string) (MSISDNReservation, error)

	// ListExpired and ReleaseExpired back the expiry sweep.
	ListExpired(ctx context.Context, query ListExpiredQuery) ([]MSISDNReservation, error)
	ReleaseExpired(ctx context.Context, id snowflake.ID, cutoff time.Time) (bool, error)
}

type CreateRequest struct {
	MSISDN string `json:"msisdn"`
}

type ReserveRequest struct {
	MSISDN     string `json:"msisdn"`
	CustomerID string `json:"customer_id"`
}

var (
	ErrInvalidReservation  = errors.New("invalid_reservation")
	ErrInvalidMSISDN       = errors.New("invalid_msisdn")
	ErrInvalidCustomer     = errors.New("invalid_customer")
	ErrReservationNotFound = errors.New("reservation_not_found")
	ErrMSISDNExists        = errors.New("msisdn_already_exists")
	ErrMSISDNUnavailable   = errors.New("msisdn_unavailable")
	ErrReservationExpired  = errors.New("reservation_expired")
	ErrInvalidTransition   = errors.New("invalid_transition")
)
