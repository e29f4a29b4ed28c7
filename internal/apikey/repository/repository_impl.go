package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	apikeydomain "github.com/smallbiznis/telcoquota/internal/apikey/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const apiKeyColumns = `id, key_id, name, role, key_hash, is_active, created_at, updated_at, last_used_at`

type repo struct{}

func Provide() apikeydomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, key *apikeydomain.APIKey) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO api_keys (`+apiKeyColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		key.ID,
		key.KeyID,
		key.Name,
		key.Role,
		key.KeyHash,
		key.IsActive,
		key.CreatedAt,
		key.UpdatedAt,
		key.LastUsedAt,
	).Error
}

// InsertIfAbsent skips keys whose hash is already stored.
func (r *repo) InsertIfAbsent(ctx context.Context, db *gorm.DB, key *apikeydomain.APIKey) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(key).Error
}

func (r *repo) FindByHash(ctx context.Context, db *gorm.DB, hash string) (*apikeydomain.APIKey, error) {
	return r.findOne(ctx, db, `key_hash = ?`, hash)
}

func (r *repo) FindByKeyID(ctx context.Context, db *gorm.DB, keyID string) (*apikeydomain.APIKey, error) {
	return r.findOne(ctx, db, `key_id = ?`, keyID)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, where string, arg any) (*apikeydomain.APIKey, error) {
	var key apikeydomain.APIKey
	err := db.WithContext(ctx).Raw(
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE `+where,
		arg,
	).Scan(&key).Error
	if err != nil {
		return nil, err
	}
	if key.ID == 0 {
		return nil, nil
	}
	return &key, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]apikeydomain.APIKey, error) {
	var keys []apikeydomain.APIKey
	err := db.WithContext(ctx).Raw(
		`SELECT ` + apiKeyColumns + ` FROM api_keys ORDER BY created_at DESC, id DESC`,
	).Scan(&keys).Error
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func (r *repo) Deactivate(ctx context.Context, db *gorm.DB, keyID string, at time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE api_keys SET is_active = ?, updated_at = ? WHERE key_id = ? AND is_active = ?`,
		false,
		at,
		keyID,
		true,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repo) TouchLastUsed(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE api_keys SET last_used_at = ? WHERE id = ?`,
		at,
		id,
	).Error
}
