package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/telcoquota/internal/clock"
	"github.com/smallbiznis/telcoquota/internal/config"
	reservationdomain "github.com/smallbiznis/telcoquota/internal/reservation/domain"
	"github.com/smallbiznis/telcoquota/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultReservationTTL = 15 * time.Minute

type ServiceParam struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Config config.Config
	Repo   reservationdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  reservationdomain.Repository
	ttl   time.Duration
}

func NewService(p ServiceParam) reservationdomain.Service {
	ttl := p.Config.Reservation.TTL
	if ttl <= 0 {
		ttl = defaultReservationTTL
	}
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("reservation.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
		ttl:   ttl,
	}
}

// Create adds a phone number to the inventory as available.
func (s *Service) Create(ctx context.Context, req reservationdomain.CreateRequest) (reservationdomain.MSISDNReservation, error) {
	msisdn := strings.TrimSpace(req.MSISDN)
	if msisdn == "" {
		return reservationdomain.MSISDNReservation{}, reservationdomain.ErrInvalidMSISDN
	}

	now := s.clock.Now()
	row := reservationdomain.MSISDNReservation{
		ID:        s.genID.Generate(),
		MSISDN:    msisdn,
		Status:    reservationdomain.ReservationStatusAvailable,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Insert(ctx, s.db, &row); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return reservationdomain.MSISDNReservation{}, reservationdomain.ErrMSISDNExists
		}
		return reservationdomain.MSISDNReservation{}, err
	}
	return row, nil
}

func (s *Service) Get(ctx context.Context, id string) (reservationdomain.MSISDNReservation, error) {
	reservationID, err := parseID(id, reservationdomain.ErrInvalidReservation)
	if err != nil {
		return reservationdomain.MSISDNReservation{}, err
	}
	return s.load(ctx, reservationID)
}

// Reserve holds an available number for a customer's checkout.
func (s *Service) Reserve(ctx context.Context, req reservationdomain.ReserveRequest) (reservationdomain.MSISDNReservation, error) {
	msisdn := strings.TrimSpace(req.MSISDN)
	if msisdn == "" {
		return reservationdomain.MSISDNReservation{}, reservationdomain.ErrInvalidMSISDN
	}
	customerID, err := parseID(req.CustomerID, reservationdomain.ErrInvalidCustomer)
	if err != nil {
		return reservationdomain.MSISDNReservation{}, err
	}

	affected, err := s.repo.Transition(ctx, s.db, reservationdomain.Transition{
		MSISDN:     msisdn,
		From:       reservationdomain.ReservationStatusAvailable,
		To:         reservationdomain.ReservationStatusReserved,
		At:         s.clock.Now(),
		ReservedBy: &customerID,
	})
	if err != nil {
		return reservationdomain.MSISDNReservation{}, err
	}

	row, err := s.repo.FindByMSISDN(ctx, s.db, msisdn)
	if err != nil {
		return reservationdomain.MSISDNReservation{}, err
	}
	if row == nil {
		return reservationdomain.MSISDNReservation{}, reservationdomain.ErrReservationNotFound
	}
	if affected == 0 {
		return reservationdomain.MSISDNReservation{}, reservationdomain.ErrMSISDNUnavailable
	}

	s.log.Info("msisdn reserved",
		zap.String("reservation_id", row.ID.String()),
		zap.String("customer_id", customerID.String()),
	)
	return *row, nil
}

// Activate confirms a purchase. A reservation older than the TTL can no longer
// be activated even if the expiry sweep has not released it yet.
func (s *Service) Activate(ctx context.Context, id string) (reservationdomain.MSISDNReservation, error) {
	reservationID, err := parseID(id, reservationdomain.ErrInvalidReservation)
	if err != nil {
		return reservationdomain.MSISDNReservation{}, err
	}

	now := s.clock.Now()
	since := now.Add(-s.ttl)
	affected, err := s.repo.Transition(ctx, s.db, reservationdomain.Transition{
		ID:            reservationID,
		From:          reservationdomain.ReservationStatusReserved,
		To:            reservationdomain.ReservationStatusActive,
		At:            now,
		ReservedSince: &since,
	})
	if err != nil {
		return reservationdomain.MSISDNReservation{}, err
	}

	row, err := s.load(ctx, reservationID)
	if err != nil {
		return reservationdomain.MSISDNReservation{}, err
	}
	if affected > 0 || row.Status == reservationdomain.ReservationStatusActive {
		return row, nil
	}
	if row.Status == reservationdomain.ReservationStatusReserved {
		return reservationdomain.MSISDNReservation{}, reservationdomain.ErrReservationExpired
	}
	return reservationdomain.MSISDNReservation{}, reservationdomain.ErrInvalidTransition
}

// Release abandons a checkout. Releasing an available number is a no-op.
func (s *Service) Release(ctx context.Context, id string) (reservationdomain.MSISDNReservation, error) {
	reservationID, err := parseID(id, reservationdomain.ErrInvalidReservation)
	if err != nil {
		return reservationdomain.MSISDNReservation{}, err
	}

	if _, err := s.repo.Transition(ctx, s.db, reservationdomain.Transition{
		ID:   reservationID,
		From: reservationdomain.ReservationStatusReserved,
		To:   reservationdomain.ReservationStatusAvailable,
		At:   s.clock.Now(),
	}); err != nil {
		return reservationdomain.MSISDNReservation{}, err
	}

	row, err := s.load(ctx, reservationID)
	if err != nil {
		return reservationdomain.MSISDNReservation{}, err
	}
	if row.Status != reservationdomain.ReservationStatusAvailable {
		return reservationdomain.MSISDNReservation{}, reservationdomain.ErrInvalidTransition
	}
	return row, nil
}

func (s *Service) ListExpired(ctx context.Context, query reservationdomain.ListExpiredQuery) ([]reservationdomain.MSISDNReservation, error) {
	if query.Limit <= 0 {
		query.Limit = 100
	}
	return s.repo.ListExpired(ctx, s.db, query)
}

// ReleaseExpired returns a stale reservation to the pool. It re-checks status
// and age in the update so a purchase confirmed meanwhile is never undone.
func (s *Service) ReleaseExpired(ctx context.Context, id snowflake.ID, cutoff time.Time) (bool, error) {
	if id == 0 {
		return false, reservationdomain.ErrInvalidReservation
	}
	affected, err := s.repo.Transition(ctx, s.db, reservationdomain.Transition{
		ID:             id,
		From:           reservationdomain.ReservationStatusReserved,
		To:             reservationdomain.ReservationStatusAvailable,
		At:             s.clock.Now(),
		ReservedBefore: &cutoff,
	})
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *Service) load(ctx context.Context, id snowflake.ID) (reservationdomain.MSISDNReservation, error) {
	row, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return reservationdomain.MSISDNReservation{}, err
	}
	if row == nil {
		return reservationdomain.MSISDNReservation{}, reservationdomain.ErrReservationNotFound
	}
	return *row, nil
}

func parseID(value string, invalid error) (snowflake.ID, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, invalid
	}
	id, err := snowflake.ParseString(trimmed)
	if err != nil || id == 0 {
		return 0, invalid
	}
	return id, nil
}
