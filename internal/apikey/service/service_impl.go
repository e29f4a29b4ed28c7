package service

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	apikeydomain "github.com/smallbiznis/telcoquota/internal/apikey/domain"
	"github.com/smallbiznis/telcoquota/internal/authorization"
	"github.com/smallbiznis/telcoquota/internal/clock"
	"github.com/smallbiznis/telcoquota/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const configKeyName = "config"

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  apikeydomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  apikeydomain.Repository
	genID *snowflake.Node
	clock clock.Clock
}

func New(p Params) apikeydomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("apikey.service"),
		repo:  p.Repo,
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *Service) Authenticate(ctx context.Context, raw string) (apikeydomain.Key, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return apikeydomain.Key{}, apikeydomain.ErrUnauthorized
	}

	hash := apikeydomain.HashAPIKey(raw)
	key, err := s.repo.FindByHash(ctx, s.db, hash)
	if err != nil {
		return apikeydomain.Key{}, err
	}
	if key == nil || !key.IsActive {
		return apikeydomain.Key{}, apikeydomain.ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(hash), []byte(key.KeyHash)) != 1 {
		return apikeydomain.Key{}, apikeydomain.ErrUnauthorized
	}

	if err := s.repo.TouchLastUsed(ctx, s.db, key.ID, s.clock.Now()); err != nil {
		s.log.Warn("failed to record api key usage", zap.String("key_id", key.KeyID), zap.Error(err))
	}
	return apikeydomain.Key{ID: key.KeyID, Name: key.Name, Role: key.Role}, nil
}

func (s *Service) List(ctx context.Context) ([]apikeydomain.Response, error) {
	items, err := s.repo.List(ctx, s.db)
	if err != nil {
		return nil, err
	}

	resp := make([]apikeydomain.Response, 0, len(items))
	for i := range items {
		resp = append(resp, toResponse(&items[i]))
	}
	return resp, nil
}

func (s *Service) Create(ctx context.Context, req apikeydomain.CreateRequest) (*apikeydomain.SecretResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apikeydomain.ErrInvalidName
	}
	role, err := normalizeRole(req.Role)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	id := s.genID.Generate()
	keyID := newKeyID(id)
	plain, hash, err := apikeydomain.GenerateAPIKey(keyID)
	if err != nil {
		return nil, err
	}

	key := &apikeydomain.APIKey{
		ID:        id,
		KeyID:     keyID,
		Name:      name,
		Role:      role,
		KeyHash:   hash,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Insert(ctx, s.db, key); err != nil {
		return nil, err
	}

	return &apikeydomain.SecretResponse{KeyID: key.KeyID, APIKey: plain}, nil
}

func (s *Service) Revoke(ctx context.Context, keyID string) error {
	trimmed := strings.TrimSpace(keyID)
	if trimmed == "" {
		return apikeydomain.ErrInvalidKeyID
	}

	key, err := s.repo.FindByKeyID(ctx, s.db, trimmed)
	if err != nil {
		return err
	}
	if key == nil {
		return apikeydomain.ErrNotFound
	}
	_, err = s.repo.Deactivate(ctx, s.db, trimmed, s.clock.Now())
	return err
}

// SeedFromConfig stores the keys listed in API_KEYS so deployments can
// bootstrap without calling the admin API. Already stored keys are skipped.
func SeedFromConfig(ctx context.Context, cfg config.Config, db *gorm.DB, repo apikeydomain.Repository, genID *snowflake.Node, clk clock.Clock) error {
	now := clk.Now()
	for raw, role := range cfg.APIKeys {
		normalized, err := normalizeRole(role)
		if err != nil {
			return fmt.Errorf("api key role %q: %w", role, err)
		}
		hash := apikeydomain.HashAPIKey(strings.TrimSpace(raw))
		key := &apikeydomain.APIKey{
			ID:        genID.Generate(),
			KeyID:     "cfg_" + hash[:12],
			Name:      configKeyName,
			Role:      normalized,
			KeyHash:   hash,
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := repo.InsertIfAbsent(ctx, db, key); err != nil {
			return err
		}
	}
	return nil
}

func normalizeRole(role string) (string, error) {
	switch r := strings.ToLower(strings.TrimSpace(role)); r {
	case authorization.RoleIngest, authorization.RoleAdmin:
		return r, nil
	case "":
		return authorization.RoleIngest, nil
	default:
		return "", apikeydomain.ErrInvalidRole
	}
}

func toResponse(key *apikeydomain.APIKey) apikeydomain.Response {
	return apikeydomain.Response{
		KeyID:      key.KeyID,
		Name:       key.Name,
		Role:       key.Role,
		IsActive:   key.IsActive,
		CreatedAt:  key.CreatedAt,
		LastUsedAt: key.LastUsedAt,
	}
}

func newKeyID(id snowflake.ID) string {
	return "key_" + strings.ToUpper(strconv.FormatInt(int64(id), 36))
}
