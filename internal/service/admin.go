package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/bpparchive/archive/internal/auth"
	"github.com/bpparchive/archive/internal/domain"
	"github.com/bpparchive/archive/internal/guard"
	"github.com/bpparchive/archive/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// AdminService manages admin keys and issues admin sessions.
type AdminService struct {
	db      repository.DBTX
	keys    repository.AdminKeyRepository
	jwtMgr  *auth.JWTManager
	limiter *guard.RateLimiter
	logger  *slog.Logger
	cost    int
}

// NewAdminService creates an AdminService.
func NewAdminService(
	db repository.DBTX,
	keys repository.AdminKeyRepository,
	jwtMgr *auth.JWTManager,
	limiter *guard.RateLimiter,
	logger *slog.Logger,
) *AdminService {
	return &AdminService{
		db:      db,
		keys:    keys,
		jwtMgr:  jwtMgr,
		limiter: limiter,
		logger:  logger,
		cost:    bcrypt.DefaultCost,
	}
}

// LoginResult is returned on successful admin login.
type LoginResult struct {
	Token     string    `json:"token"`
	KeyID     int64     `json:"key_id"`
	KeyName   string    `json:"key_name"`
	ExpiresAt time.Time `json:"expires_at"`
}

var errInvalidKey = domain.ErrUnauthorized("invalid admin key")

// CreateKey stores a bcrypt hash of plaintext under name.
func (s *AdminService) CreateKey(ctx context.Context, name, plaintext string) (*domain.AdminKey, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.ErrValidation("key name is required")
	}
	if len(name) > 50 {
		return nil, domain.ErrValidation("key name exceeds 50 characters")
	}
	if err := domain.ValidateAdminKey(plaintext); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), s.cost)
	if err != nil {
		return nil, domain.ErrInternal("hash admin key", err)
	}

	key := &domain.AdminKey{KeyName: name, Hash: string(hash)}
	if err := s.keys.Create(ctx, s.db, key); err != nil {
		return nil, domain.ErrInternal("create admin key", err)
	}
	s.logger.Info("admin key created", "key_id", key.ID, "key_name", key.KeyName)
	return key, nil
}

// Verify returns the stored key matching plaintext. Every key is tried; a
// miss yields the same error whatever the reason.
func (s *AdminService) Verify(ctx context.Context, plaintext string) (*domain.AdminKey, error) {
	if plaintext == "" {
		return nil, errInvalidKey
	}
	keys, err := s.keys.List(ctx, s.db)
	if err != nil {
		return nil, domain.ErrInternal("list admin keys", err)
	}
	for _, k := range keys {
		err := bcrypt.CompareHashAndPassword([]byte(k.Hash), []byte(plaintext))
		if err == nil {
			k := k
			return &k, nil
		}
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			s.logger.Warn("admin key hash unreadable", "key_id", k.ID, "error", err)
		}
	}
	return nil, errInvalidKey
}

// Login verifies plaintext and issues an admin token. clientIP keys the
// attempt rate limit.
func (s *AdminService) Login(ctx context.Context, plaintext, clientIP string) (*LoginResult, error) {
	if res := s.limiter.Check(ctx, clientIP); !res.Allowed {
		s.logger.Warn("admin login rate limited", "ip", clientIP)
		return nil, domain.ErrTooManyRequests(res.Reason)
	}

	key, err := s.Verify(ctx, plaintext)
	if err != nil {
		s.logger.Info("admin login rejected", "ip", clientIP)
		return nil, err
	}

	token, err := s.jwtMgr.GenerateAdminToken(key.ID, key.KeyName)
	if err != nil {
		return nil, domain.ErrInternal("sign token", err)
	}
	s.logger.Info("admin login", "key_id", key.ID, "ip", clientIP)
	return &LoginResult{
		Token:     token,
		KeyID:     key.ID,
		KeyName:   key.KeyName,
		ExpiresAt: time.Now().Add(s.jwtMgr.Expiry()).UTC(),
	}, nil
}

// ListKeys returns all keys. Hashes are never serialized.
func (s *AdminService) ListKeys(ctx context.Context) ([]domain.AdminKey, error) {
	keys, err := s.keys.List(ctx, s.db)
	if err != nil {
		return nil, domain.ErrInternal("list admin keys", err)
	}
	return nonNil(keys), nil
}

// DeleteKey removes a key. The last key cannot be deleted, and a session
// cannot delete the key it logged in with.
func (s *AdminService) DeleteKey(ctx context.Context, id, currentKeyID int64) error {
	if id == currentKeyID {
		return domain.ErrConflict("cannot delete the key of the current session")
	}
	keys, err := s.keys.List(ctx, s.db)
	if err != nil {
		return domain.ErrInternal("list admin keys", err)
	}
	if len(keys) <= 1 {
		return domain.ErrConflict("cannot delete the last admin key")
	}
	deleted, err := s.keys.Delete(ctx, s.db, id)
	if err != nil {
		return domain.ErrInternal("delete admin key", err)
	}
	if !deleted {
		return domain.ErrNotFound("admin key", strconv.FormatInt(id, 10))
	}
	s.logger.Info("admin key deleted", "key_id", id)
	return nil
}
