package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AuthServiceImpl implements ports.AuthService and ports.OwnerResolver over the user directory.
type AuthServiceImpl struct {
	userRepo  ports.UserRepository
	hashSvc   ports.HashService
	tokenSvc  ports.TokenService
	onCreated []ports.UserCreatedHandler
	log       zerolog.Logger
}

// NewAuthService creates a new AuthServiceImpl. Every handler in onCreated is told about
// each registered user; the ledger uses this to open the wallet.
func NewAuthService(
	userRepo ports.UserRepository,
	hashSvc ports.HashService,
	tokenSvc ports.TokenService,
	log zerolog.Logger,
	onCreated ...ports.UserCreatedHandler,
) *AuthServiceImpl {
	return &AuthServiceImpl{
		userRepo:  userRepo,
		hashSvc:   hashSvc,
		tokenSvc:  tokenSvc,
		onCreated: onCreated,
		log:       log,
	}
}

// Register creates a user and emits the user-created notification.
func (s *AuthServiceImpl) Register(ctx context.Context, req ports.RegisterRequest) (*domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	name := strings.TrimSpace(req.Name)
	if email == "" || name == "" || req.Password == "" {
		return nil, apperror.Validation("email, name and password are required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperror.Validation("invalid email address")
	}

	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("check email: %w", err))
	}
	if existing != nil {
		return nil, apperror.ErrEmailExists()
	}

	passwordHash, err := s.hashSvc.Hash(req.Password)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("hash password: %w", err))
	}

	user := &domain.User{
		ID:           uuid.New(),
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, ports.ErrDuplicateKey) {
			return nil, apperror.ErrEmailExists()
		}
		return nil, apperror.InternalError(fmt.Errorf("create user: %w", err))
	}

	for _, h := range s.onCreated {
		if err := h.OnUserCreated(ctx, user); err != nil {
			s.log.Error().Err(err).Str("user_id", user.ID.String()).Msg("user created handler failed")
			// A user without a wallet could never register again; drop it so the caller can retry.
			if delErr := s.userRepo.Delete(context.WithoutCancel(ctx), user.ID); delErr != nil {
				s.log.Error().Err(delErr).Str("user_id", user.ID.String()).Msg("failed to remove user after handler failure")
			}
			return nil, err
		}
	}

	s.log.Info().Str("user_id", user.ID.String()).Str("email", email).Msg("user registered")

	return user, nil
}

// Login validates credentials and returns a JWT token.
func (s *AuthServiceImpl) Login(ctx context.Context, email, password string) (string, time.Time, error) {
	user, err := s.userRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("find user: %w", err))
	}
	if user == nil {
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	valid, err := s.hashSvc.Verify(password, user.PasswordHash)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("verify password: %w", err))
	}
	if !valid {
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	token, expiry, err := s.tokenSvc.Generate(user.ID, user.Email)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("generate token: %w", err))
	}

	return token, expiry, nil
}

// ResolveOwner maps an authenticated user id to its wallet owner key.
func (s *AuthServiceImpl) ResolveOwner(ctx context.Context, userID uuid.UUID) (string, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return "", apperror.InternalError(fmt.Errorf("find user: %w", err))
	}
	if user == nil {
		return "", apperror.ErrNotFound("user")
	}
	return user.OwnerKey(), nil
}
