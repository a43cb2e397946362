package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"wallet-ledger/internal/adapter/http/dto"
	"wallet-ledger/internal/adapter/http/middleware"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/internal/core/ports/mocks"
	"wallet-ledger/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testOwner = "ana@example.com"

// ownerContext returns a test context already past JWTAuth and OwnerContext.
func ownerContext(w *httptest.ResponseRecorder, req *http.Request) *gin.Context {
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Set(middleware.CtxUserID, uuid.New())
	c.Set(middleware.CtxOwnerKey, testOwner)
	return c
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data, ok := resp["data"].(map[string]interface{})
	require.True(t, ok, "body: %s", w.Body.String())
	return data
}

// --- Auth Handler Tests ---

func TestRegister_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	userID := uuid.New()
	mockAuth.EXPECT().Register(gomock.Any(), ports.RegisterRequest{
		Email:    "ana@example.com",
		Name:     "Ana",
		Password: "password123",
	}).Return(&domain.User{
		ID:    userID,
		Email: "ana@example.com",
		Name:  "Ana",
	}, nil)

	body, _ := json.Marshal(dto.RegisterRequest{
		Email:    "ana@example.com",
		Name:     "Ana",
		Password: "password123",
	})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Register(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, userID.String(), data["user_id"])
	assert.Equal(t, "ana@example.com", data["email"])
	assert.NotContains(t, w.Body.String(), "password")
}

func TestRegister_ValidationError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	for _, body := range []string{`{}`, `{"email":"ana","name":"Ana","password":"password123"}`, `not json`} {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(body))
		c.Request.Header.Set("Content-Type", "application/json")

		h.Register(c)

		assert.Equal(t, http.StatusBadRequest, w.Code, "body %s", body)
	}
}

func TestRegister_ServiceError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	mockAuth.EXPECT().Register(gomock.Any(), gomock.Any()).Return(nil, apperror.ErrEmailExists())

	body, _ := json.Marshal(dto.RegisterRequest{
		Email:    "taken@example.com",
		Name:     "Taken",
		Password: "password123",
	})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Register(c)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestLogin_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	expiry := time.Now().Add(24 * time.Hour)
	mockAuth.EXPECT().Login(gomock.Any(), "ana@example.com", "password123").Return("jwt-token-123", expiry, nil)

	body, _ := json.Marshal(dto.LoginRequest{
		Email:    "ana@example.com",
		Password: "password123",
	})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Login(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "jwt-token-123", data["token"])
	assert.Equal(t, float64(expiry.Unix()), data["expiry"])
}

func TestLogin_InvalidCredentials(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	mockAuth.EXPECT().Login(gomock.Any(), "bad@example.com", "bad").Return("", time.Time{}, apperror.ErrInvalidCredentials())

	body, _ := json.Marshal(dto.LoginRequest{
		Email:    "bad@example.com",
		Password: "bad",
	})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Login(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// --- Wallet Handler Tests ---

func TestGetMine_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLedger := mocks.NewMockWalletLedger(ctrl)
	h := NewWalletHandler(mockLedger, nil)

	mockLedger.EXPECT().GetWallet(gomock.Any(), testOwner).Return(&domain.Wallet{
		ID:       uuid.New(),
		OwnerKey: testOwner,
		Balance:  decimal.RequireFromString("-37.10"),
		Points:   10,
	}, nil)

	w := httptest.NewRecorder()
	c := ownerContext(w, httptest.NewRequest(http.MethodGet, "/api/v1/wallets/me", nil))

	h.GetMine(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "-37.1", data["balance"])
	assert.Equal(t, float64(10), data["points"])
	assert.Equal(t, testOwner, data["owner_key"])
}

func TestGetMine_MissingOwner(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewWalletHandler(mocks.NewMockWalletLedger(ctrl), nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	h.GetMine(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetMine_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLedger := mocks.NewMockWalletLedger(ctrl)
	h := NewWalletHandler(mockLedger, nil)

	mockLedger.EXPECT().GetWallet(gomock.Any(), testOwner).Return(nil, apperror.ErrNotFound("wallet"))

	w := httptest.NewRecorder()
	c := ownerContext(w, httptest.NewRequest(http.MethodGet, "/", nil))

	h.GetMine(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCredit_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLedger := mocks.NewMockWalletLedger(ctrl)
	h := NewWalletHandler(mockLedger, nil)

	mockLedger.EXPECT().Credit(gomock.Any(), testOwner, decimal.RequireFromString("50.25")).
		Return(&domain.Wallet{OwnerKey: testOwner, Balance: decimal.RequireFromString("50.25")}, nil)

	w := httptest.NewRecorder()
	c := ownerContext(w, httptest.NewRequest(http.MethodPost, "/api/v1/wallets/me/credit/50.25", nil))
	c.Params = gin.Params{{Key: "amount", Value: "50.25"}}

	h.Credit(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Credits added successfully to wallet", w.Body.String())
}

func TestCredit_BadAmount(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewWalletHandler(mocks.NewMockWalletLedger(ctrl), nil)

	w := httptest.NewRecorder()
	c := ownerContext(w, httptest.NewRequest(http.MethodPost, "/", nil))
	c.Params = gin.Params{{Key: "amount", Value: "ten"}}

	h.Credit(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCredit_NonPositiveRejectedByLedger(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLedger := mocks.NewMockWalletLedger(ctrl)
	h := NewWalletHandler(mockLedger, nil)

	mockLedger.EXPECT().Credit(gomock.Any(), testOwner, gomock.Any()).Return(nil, apperror.ErrInvalidAmount())

	w := httptest.NewRecorder()
	c := ownerContext(w, httptest.NewRequest(http.MethodPost, "/", nil))
	c.Params = gin.Params{{Key: "amount", Value: "-5"}}

	h.Credit(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListEntries_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockStatement := mocks.NewMockStatementService(ctrl)
	h := NewWalletHandler(nil, mockStatement)

	rid := uuid.New().String()
	mockStatement.EXPECT().ListEntries(gomock.Any(), testOwner, 2, 10).Return([]domain.LedgerEntry{
		{
			ID:           uuid.New(),
			Type:         domain.EntryTypeDebit,
			Amount:       decimal.RequireFromString("12.90"),
			Points:       5,
			BalanceAfter: decimal.RequireFromString("-12.90"),
			RequestID:    &rid,
		},
	}, int64(11), nil)

	w := httptest.NewRecorder()
	c := ownerContext(w, httptest.NewRequest(http.MethodGet, "/api/v1/wallets/me/entries?page=2&page_size=10", nil))

	h.ListEntries(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, float64(11), data["total"])
	assert.Equal(t, float64(2), data["total_pages"])
	items := data["items"].([]interface{})
	require.Len(t, items, 1)
	item := items[0].(map[string]interface{})
	assert.Equal(t, "DEBIT", item["type"])
	assert.Equal(t, rid, item["request_id"])
}

func TestListEntries_BadPaging(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewWalletHandler(nil, mocks.NewMockStatementService(ctrl))

	w := httptest.NewRecorder()
	c := ownerContext(w, httptest.NewRequest(http.MethodGet, "/?page_size=1000", nil))

	h.ListEntries(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// --- Album Handler Tests ---

func TestPurchase_Accepted(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockPurchases := mocks.NewMockPurchaseService(ctrl)
	h := NewAlbumHandler(mockPurchases)

	albumID := uuid.New()
	mockPurchases.EXPECT().Purchase(gomock.Any(), testOwner, ports.PurchaseRequest{
		ExternalID: "1DFvAQ",
		Name:       "Kind of Blue",
		ArtistName: "Miles Davis",
		Value:      decimal.RequireFromString("12.90"),
	}).Return(&domain.Album{
		ID:         albumID,
		OwnerKey:   testOwner,
		ExternalID: "1DFvAQ",
		Name:       "Kind of Blue",
		ArtistName: "Miles Davis",
		Value:      decimal.RequireFromString("12.90"),
		CreatedAt:  time.Now().UTC(),
	}, nil)

	body := `{"external_id":"1DFvAQ","name":"Kind of Blue","artist_name":"Miles Davis","value":"12.90"}`
	w := httptest.NewRecorder()
	c := ownerContext(w, httptest.NewRequest(http.MethodPost, "/api/v1/albums", strings.NewReader(body)))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Purchase(c)

	assert.Equal(t, http.StatusAccepted, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, albumID.String(), data["id"])
	assert.Equal(t, "12.9", data["value"])
	assert.Equal(t, albumID.String(), c.GetString(middleware.CtxResourceID))
}

func TestPurchase_ValidationError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewAlbumHandler(mocks.NewMockPurchaseService(ctrl))

	bodies := []string{
		`{"external_id":"1DFvAQ","name":"Kind of Blue","value":"0"}`,
		`{"external_id":"1DFvAQ","name":"Kind of Blue","value":"-3"}`,
		`{"external_id":"bad id","name":"Kind of Blue","value":"1"}`,
		`{"external_id":"1DFvAQ","value":"1"}`,
		`{"external_id":"1DFvAQ","name":"Kind of Blue","value":"abc"}`,
	}
	for _, body := range bodies {
		w := httptest.NewRecorder()
		c := ownerContext(w, httptest.NewRequest(http.MethodPost, "/api/v1/albums", strings.NewReader(body)))
		c.Request.Header.Set("Content-Type", "application/json")

		h.Purchase(c)

		assert.Equal(t, http.StatusBadRequest, w.Code, "body %s", body)
	}
}

func TestPurchase_QueueUnavailable(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockPurchases := mocks.NewMockPurchaseService(ctrl)
	h := NewAlbumHandler(mockPurchases)

	mockPurchases.EXPECT().Purchase(gomock.Any(), testOwner, gomock.Any()).
		Return(nil, apperror.ErrQueueUnavailable(errors.New("channel closed")))

	body := `{"external_id":"1DFvAQ","name":"Kind of Blue","value":12.9}`
	w := httptest.NewRecorder()
	c := ownerContext(w, httptest.NewRequest(http.MethodPost, "/api/v1/albums", strings.NewReader(body)))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Purchase(c)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCollection_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockPurchases := mocks.NewMockPurchaseService(ctrl)
	h := NewAlbumHandler(mockPurchases)

	mockPurchases.EXPECT().Collection(gomock.Any(), testOwner).Return([]domain.Album{
		{ID: uuid.New(), ExternalID: "a", Name: "A", Value: decimal.NewFromInt(1)},
		{ID: uuid.New(), ExternalID: "b", Name: "B", Value: decimal.NewFromInt(2)},
	}, nil)

	w := httptest.NewRecorder()
	c := ownerContext(w, httptest.NewRequest(http.MethodGet, "/api/v1/albums", nil))

	h.Collection(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp["data"], 2)
}

func TestRemove(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockPurchases := mocks.NewMockPurchaseService(ctrl)
	h := NewAlbumHandler(mockPurchases)

	mine := uuid.New()
	theirs := uuid.New()
	mockPurchases.EXPECT().Remove(gomock.Any(), testOwner, mine).Return(nil)
	mockPurchases.EXPECT().Remove(gomock.Any(), testOwner, theirs).Return(apperror.ErrNotFound("album"))

	tests := []struct {
		name string
		id   string
		want int
	}{
		{"own album", mine.String(), http.StatusNoContent},
		{"other owner's album", theirs.String(), http.StatusNotFound},
		{"malformed id", "not-a-uuid", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c := ownerContext(w, httptest.NewRequest(http.MethodDelete, "/api/v1/albums/"+tt.id, nil))
			c.Params = gin.Params{{Key: "id", Value: tt.id}}

			h.Remove(c)
			c.Writer.WriteHeaderNow()

			assert.Equal(t, tt.want, w.Code)
		})
	}
}

// --- Health and Swagger ---

func TestHealthCheck(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	healthy := mocks.NewMockHealthChecker(ctrl)
	healthy.EXPECT().Name().Return("postgresql").AnyTimes()
	healthy.EXPECT().Ping(gomock.Any()).Return(nil).AnyTimes()

	broken := mocks.NewMockHealthChecker(ctrl)
	broken.EXPECT().Name().Return("rabbitmq").AnyTimes()
	broken.EXPECT().Ping(gomock.Any()).Return(errors.New("connection refused")).AnyTimes()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)
	HealthCheck(healthy)(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)
	HealthCheck(healthy, broken)(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestSwagger(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	NewSwaggerHandler(nil).UI(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Wallet Ledger")

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	NewSwaggerHandler([]byte("openapi: '3.0.3'\ninfo:\n  title: Test")).Spec(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "openapi")

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	NewSwaggerHandler(nil).Spec(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// --- Router ---

func TestSetupRouter_AuthenticatedFlow(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	tokenSvc := mocks.NewMockTokenService(ctrl)
	owners := mocks.NewMockOwnerResolver(ctrl)
	ledger := mocks.NewMockWalletLedger(ctrl)
	auditSvc := mocks.NewMockAuditService(ctrl)

	userID := uuid.New()
	tokenSvc.EXPECT().Validate("good").Return(&ports.TokenClaims{UserID: userID, Email: testOwner}, nil).Times(2)
	owners.EXPECT().ResolveOwner(gomock.Any(), userID).Return(testOwner, nil).Times(2)
	ledger.EXPECT().Credit(gomock.Any(), testOwner, decimal.NewFromInt(100)).Return(&domain.Wallet{OwnerKey: testOwner}, nil)
	ledger.EXPECT().GetWallet(gomock.Any(), testOwner).Return(&domain.Wallet{
		OwnerKey: testOwner,
		Balance:  decimal.NewFromInt(100),
	}, nil)
	auditSvc.EXPECT().Log(gomock.Any(), gomock.Any()).Do(func(_ context.Context, entry *domain.AuditLog) {
		assert.Equal(t, domain.AuditActionCredit, entry.Action)
		assert.Equal(t, testOwner, entry.OwnerKey)
	})

	reg := prometheus.NewRegistry()
	r := SetupRouter(RouterDeps{
		Owners:   owners,
		Ledger:   ledger,
		TokenSvc: tokenSvc,
		AuditSvc: auditSvc,
		Metrics:  middleware.NewHTTPMetrics(reg),
		Gatherer: reg,
		Logger:   zerolog.Nop(),
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/wallets/me/credit/100", nil)
	req.Header.Set("Authorization", "Bearer good")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderRequestID))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/wallets/me", nil)
	req.Header.Set("Authorization", "Bearer good")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "100", decodeData(t, w)["balance"])

	// No token never reaches the ledger.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/wallets/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "wallet_http_requests_total")
}
