package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, key *APIKey) error
	InsertIfAbsent(ctx context.Context, db *gorm.DB, key *APIKey) error
	FindByHash(ctx context.Context, db *gorm.DB, hash string) (*APIKey, error)
	FindByKeyID(ctx context.Context, db *gorm.DB, keyID string) (*APIKey, error)
	List(ctx context.Context, db *gorm.DB) ([]APIKey, error)
	Deactivate(ctx context.Context, db *gorm.DB, keyID string, at time.Time) (int64, error)
	TouchLastUsed(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error
}

type Service interface {
	// Authenticate resolves a raw key presented by a caller.
	Authenticate(ctx context.Context, raw string) (Key, error)
	List(ctx context.Context) ([]Response, error)
	Create(ctx context.Context, req CreateRequest) (*SecretResponse, error)
	Revoke(ctx context.Context, keyID string) error
}

// Key is the authenticated identity behind a request.
type Key struct {
	ID   string
	Name string
	Role string
}

type CreateRequest struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

type Response struct {
	KeyID      string     `json:"key_id"`
	Name       string     `json:"name"`
	Role       string     `json:"role"`
	IsActive   bool       `json:"is_active"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at"`
}

type SecretResponse struct {
	KeyID  string `json:"key_id"`
	APIKey string `json:"api_key"`
}

var (
	ErrInvalidName  = errors.New("invalid_name")
	ErrInvalidRole  = errors.New("invalid_role")
	ErrInvalidKeyID = errors.New("invalid_key_id")
	ErrNotFound     = errors.New("not_found")
	ErrUnauthorized = errors.New("unauthorized")
)
