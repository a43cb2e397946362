package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"wallet-ledger/internal/adapter/storage/memory"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/internal/core/ports/mocks"
	"wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func setupAuthService(t *testing.T) (
	*AuthServiceImpl,
	*mocks.MockUserRepository,
	*mocks.MockHashService,
	*mocks.MockTokenService,
	*mocks.MockUserCreatedHandler,
	*gomock.Controller,
) {
	ctrl := gomock.NewController(t)
	userRepo := mocks.NewMockUserRepository(ctrl)
	hashSvc := mocks.NewMockHashService(ctrl)
	tokenSvc := mocks.NewMockTokenService(ctrl)
	onCreated := mocks.NewMockUserCreatedHandler(ctrl)

	svc := NewAuthService(userRepo, hashSvc, tokenSvc, newTestLogger(), onCreated)
	return svc, userRepo, hashSvc, tokenSvc, onCreated, ctrl
}

func TestAuthService_Register_Success(t *testing.T) {
	svc, userRepo, hashSvc, _, onCreated, ctrl := setupAuthService(t)
	defer ctrl.Finish()

	ctx := context.Background()
	req := ports.RegisterRequest{
		Email:    "  Ana@Example.com ",
		Name:     "Ana",
		Password: "StrongP@ss123",
	}

	userRepo.EXPECT().GetByEmail(ctx, "ana@example.com").Return(nil, nil)
	hashSvc.EXPECT().Hash(req.Password).Return("$argon2id$hashed", nil)
	userRepo.EXPECT().Create(ctx, gomock.Any()).Return(nil)
	onCreated.EXPECT().OnUserCreated(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, u *domain.User) error {
			assert.Equal(t, "ana@example.com", u.OwnerKey())
			return nil
		})

	user, err := svc.Register(ctx, req)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, user.ID)
	assert.Equal(t, "ana@example.com", user.Email)
	assert.Equal(t, "$argon2id$hashed", user.PasswordHash)
}

func TestAuthService_Register_BlankFields(t *testing.T) {
	tests := []struct {
		name string
		req  ports.RegisterRequest
	}{
		{"blank email", ports.RegisterRequest{Name: "Ana", Password: "pw"}},
		{"blank name", ports.RegisterRequest{Email: "ana@example.com", Name: " ", Password: "pw"}},
		{"blank password", ports.RegisterRequest{Email: "ana@example.com", Name: "Ana"}},
		{"malformed email", ports.RegisterRequest{Email: "not-an-email", Name: "Ana", Password: "pw"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _, _, _, ctrl := setupAuthService(t)
			defer ctrl.Finish()

			_, err := svc.Register(context.Background(), tt.req)
			assert.True(t, apperror.HasCode(err, apperror.CodeInvalidRequest))
		})
	}
}

func TestAuthService_Register_DuplicateEmail(t *testing.T) {
	svc, userRepo, hashSvc, _, _, ctrl := setupAuthService(t)
	defer ctrl.Finish()

	ctx := context.Background()
	req := ports.RegisterRequest{Email: "ana@example.com", Name: "Ana", Password: "pw"}

	userRepo.EXPECT().GetByEmail(ctx, "ana@example.com").Return(&domain.User{Email: "ana@example.com"}, nil)

	user, err := svc.Register(ctx, req)
	assert.Nil(t, user)

	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "AUTH_002", appErr.Code)
	assert.Equal(t, 409, appErr.HTTPStatus)

	// Unique constraint on insert maps to the same error.
	userRepo.EXPECT().GetByEmail(ctx, "ana@example.com").Return(nil, nil)
	hashSvc.EXPECT().Hash("pw").Return("h", nil)
	userRepo.EXPECT().Create(ctx, gomock.Any()).Return(fmt.Errorf("insert user: %w", ports.ErrDuplicateKey))

	_, err = svc.Register(ctx, req)
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "AUTH_002", appErr.Code)
}

func TestAuthService_Register_HandlerFailureSurfaces(t *testing.T) {
	svc, userRepo, hashSvc, _, onCreated, ctrl := setupAuthService(t)
	defer ctrl.Finish()

	ctx := context.Background()
	userRepo.EXPECT().GetByEmail(ctx, "ana@example.com").Return(nil, nil)
	hashSvc.EXPECT().Hash("pw").Return("h", nil)
	var created *domain.User
	userRepo.EXPECT().Create(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, u *domain.User) error {
			created = u
			return nil
		})
	onCreated.EXPECT().OnUserCreated(ctx, gomock.Any()).Return(apperror.ErrDuplicateWallet())
	userRepo.EXPECT().Delete(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, id uuid.UUID) error {
			assert.Equal(t, created.ID, id)
			return nil
		})

	_, err := svc.Register(ctx, ports.RegisterRequest{Email: "ana@example.com", Name: "Ana", Password: "pw"})
	assert.True(t, apperror.HasCode(err, apperror.CodeDuplicateWallet))
}

// flakyWalletOpener fails its first call with a storage error, then opens wallets.
type flakyWalletOpener struct {
	calls  int
	opened []string
}

func (f *flakyWalletOpener) OnUserCreated(_ context.Context, u *domain.User) error {
	f.calls++
	if f.calls == 1 {
		return apperror.ErrStorageUnavailable(errors.New("connection reset"))
	}
	f.opened = append(f.opened, u.OwnerKey())
	return nil
}

func TestAuthService_Register_FailedWalletLeavesNoUser(t *testing.T) {
	ctx := context.Background()
	users := memory.NewUserRepo(memory.NewStore())
	opener := &flakyWalletOpener{}
	svc := NewAuthService(users, cheapHasher(), NewJWTTokenService("secret", time.Hour, "wallet-ledger"), newTestLogger(), opener)
	req := ports.RegisterRequest{Email: "ana@example.com", Name: "Ana", Password: "StrongP@ss123"}

	_, err := svc.Register(ctx, req)
	assert.True(t, apperror.HasCode(err, "SYS_004"))

	left, err := users.GetByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.Nil(t, left)

	user, err := svc.Register(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, []string{"ana@example.com"}, opener.opened)

	stored, err := users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored)
}

func TestAuthService_Register_CleanupFailureKeepsHandlerError(t *testing.T) {
	svc, userRepo, hashSvc, _, onCreated, ctrl := setupAuthService(t)
	defer ctrl.Finish()

	ctx := context.Background()
	userRepo.EXPECT().GetByEmail(ctx, "ana@example.com").Return(nil, nil)
	hashSvc.EXPECT().Hash("pw").Return("h", nil)
	userRepo.EXPECT().Create(ctx, gomock.Any()).Return(nil)
	onCreated.EXPECT().OnUserCreated(ctx, gomock.Any()).Return(apperror.ErrStorageUnavailable(errors.New("down")))
	userRepo.EXPECT().Delete(gomock.Any(), gomock.Any()).Return(errors.New("still down"))

	_, err := svc.Register(ctx, ports.RegisterRequest{Email: "ana@example.com", Name: "Ana", Password: "pw"})
	assert.True(t, apperror.HasCode(err, "SYS_004"))
}

func TestAuthService_Login_Success(t *testing.T) {
	svc, userRepo, hashSvc, tokenSvc, _, ctrl := setupAuthService(t)
	defer ctrl.Finish()

	ctx := context.Background()
	user := &domain.User{
		ID:           uuid.New(),
		Email:        "ana@example.com",
		PasswordHash: "$argon2id$hashed",
	}

	userRepo.EXPECT().GetByEmail(ctx, "ana@example.com").Return(user, nil)
	hashSvc.EXPECT().Verify("correct_password", "$argon2id$hashed").Return(true, nil)
	tokenSvc.EXPECT().Generate(user.ID, "ana@example.com").Return("jwt_token_here", time.Now().Add(24*time.Hour), nil)

	token, _, err := svc.Login(ctx, "ana@example.com", "correct_password")
	require.NoError(t, err)
	assert.Equal(t, "jwt_token_here", token)
}

func TestAuthService_Login_UserNotFound(t *testing.T) {
	svc, userRepo, _, _, _, ctrl := setupAuthService(t)
	defer ctrl.Finish()

	ctx := context.Background()
	userRepo.EXPECT().GetByEmail(ctx, "nobody@example.com").Return(nil, nil)

	_, _, err := svc.Login(ctx, "nobody@example.com", "password")

	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "AUTH_001", appErr.Code)
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	svc, userRepo, hashSvc, _, _, ctrl := setupAuthService(t)
	defer ctrl.Finish()

	ctx := context.Background()
	user := &domain.User{ID: uuid.New(), Email: "ana@example.com", PasswordHash: "$argon2id$hashed"}

	userRepo.EXPECT().GetByEmail(ctx, "ana@example.com").Return(user, nil)
	hashSvc.EXPECT().Verify("wrong_password", "$argon2id$hashed").Return(false, nil)

	_, _, err := svc.Login(ctx, "ana@example.com", "wrong_password")

	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "AUTH_001", appErr.Code)
}

func TestAuthService_ResolveOwner(t *testing.T) {
	svc, userRepo, _, _, _, ctrl := setupAuthService(t)
	defer ctrl.Finish()

	ctx := context.Background()
	known := uuid.New()
	unknown := uuid.New()

	userRepo.EXPECT().GetByID(ctx, known).Return(&domain.User{ID: known, Email: "ana@example.com"}, nil)
	userRepo.EXPECT().GetByID(ctx, unknown).Return(nil, nil)

	owner, err := svc.ResolveOwner(ctx, known)
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", owner)

	_, err = svc.ResolveOwner(ctx, unknown)
	assert.True(t, apperror.HasCode(err, apperror.CodeNotFound))
}
