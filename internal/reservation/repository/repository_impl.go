package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	reservationdomain "github.com/smallbiznis/telcoquota/internal/reservation/domain"
	"gorm.io/gorm"
)

const reservationColumns = `id, msisdn, status, reserved_at, reserved_by, activated_at, created_at, updated_at`

type repo struct{}

func Provide() reservationdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, reservation *reservationdomain.MSISDNReservation) error {
	return db.WithContext(ctx).Create(reservation).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*reservationdomain.MSISDNReservation, error) {
	var row reservationdomain.MSISDNReservation
	err := db.WithContext(ctx).Raw(
		`SELECT `+reservationColumns+`
		 FROM msisdn_reservations WHERE id = ?`,
		id,
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, nil
	}
	return &row, nil
}

func (r *repo) FindByMSISDN(ctx context.Context, db *gorm.DB, msisdn string) (*reservationdomain.MSISDNReservation, error) {
	var row reservationdomain.MSISDNReservation
	err := db.WithContext(ctx).Raw(
		`SELECT `+reservationColumns+`
		 FROM msisdn_reservations WHERE msisdn = ?`,
		msisdn,
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, nil
	}
	return &row, nil
}

func (r *repo) Transition(ctx context.Context, db *gorm.DB, req reservationdomain.Transition) (int64, error) {
	updates := map[string]any{
		"status":     req.To,
		"updated_at": req.At,
	}
	switch req.To {
	case reservationdomain.ReservationStatusReserved:
		updates["reserved_at"] = req.At
		updates["reserved_by"] = req.ReservedBy
	case reservationdomain.ReservationStatusActive:
		updates["activated_at"] = req.At
	case reservationdomain.ReservationStatusAvailable:
		updates["reserved_at"] = nil
		updates["reserved_by"] = nil
	}

	stmt := db.WithContext(ctx).
		Model(&reservationdomain.MSISDNReservation{}).
		Where("status = ?", req.From)
	if req.ID != 0 {
		stmt = stmt.Where("id = ?", req.ID)
	}
	if req.MSISDN != "" {
		stmt = stmt.Where("msisdn = ?", req.MSISDN)
	}
	if req.ReservedBefore != nil {
		stmt = stmt.Where("reserved_at < ?", *req.ReservedBefore)
	}
	if req.ReservedSince != nil {
		stmt = stmt.Where("reserved_at >= ?", *req.ReservedSince)
	}

	result := stmt.Updates(updates)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repo) ListExpired(ctx context.Context, db *gorm.DB, query reservationdomain.ListExpiredQuery) ([]reservationdomain.MSISDNReservation, error) {
	var rows []reservationdomain.MSISDNReservation
	err := db.WithContext(ctx).Raw(
		`SELECT `+reservationColumns+`
		 FROM msisdn_reservations
		 WHERE status = ? AND reserved_at < ? AND id > ?
		 ORDER BY id ASC
		 LIMIT ?`,
		reservationdomain.ReservationStatusReserved,
		query.ReservedBefore,
		query.AfterID,
		query.Limit,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
