package service_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/zlnvch/flashlist/models"
	"github.com/zlnvch/flashlist/service"
	"github.com/zlnvch/flashlist/store"
	"golang.org/x/crypto/bcrypt"
)

func TestCreateAndVerifyJWT(t *testing.T) {
	svc, _, _, _, _ := setupService(t)

	// 1. Create
	token, expiry, err := svc.CreateJWT("user123")
	assert.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, fixedNow.Add(service.DefaultTokenTTL).Unix(), expiry.Unix())

	// 2. Verify
	claims, err := svc.VerifyJWT(token)
	assert.NoError(t, err)
	assert.Equal(t, "user123", claims.UserId)
	assert.NotEmpty(t, claims.TokenId)
	assert.Equal(t, expiry.Unix(), claims.Expiry.Unix())
}

func TestCreateJWT_UniqueTokenIds(t *testing.T) {
	svc, _, _, _, _ := setupService(t)

	a, _, _ := svc.CreateJWT("user123")
	b, _, _ := svc.CreateJWT("user123")

	ca, err := svc.VerifyJWT(a)
	require.NoError(t, err)
	cb, err := svc.VerifyJWT(b)
	require.NoError(t, err)
	assert.NotEqual(t, ca.TokenId, cb.TokenId)
}

func TestVerifyJWT_Invalid(t *testing.T) {
	svc, _, _, _, _ := setupService(t)

	_, err := svc.VerifyJWT("invalid.token.string")
	assert.Error(t, err)
}

func TestVerifyJWT_Expired(t *testing.T) {
	svc, _, _, _, _ := setupService(t)

	token, _, err := svc.CreateJWT("user123")
	require.NoError(t, err)

	svc.Now = func() time.Time { return fixedNow.Add(service.DefaultTokenTTL + time.Minute) }
	_, err = svc.VerifyJWT(token)
	assert.Error(t, err)
}

func TestVerifyJWT_WrongSecret(t *testing.T) {
	svc, _, _, _, _ := setupService(t)

	token, _, err := svc.CreateJWT("user123")
	require.NoError(t, err)

	svc.JWTSecret = []byte("another-secret")
	_, err = svc.VerifyJWT(token)
	assert.Error(t, err)
}

func TestVerifyJWT_InvalidSigningMethod(t *testing.T) {
	svc, _, _, _, _ := setupService(t)

	// "none" algorithm token with an empty signature
	header := map[string]string{
		"alg": "none",
		"typ": "JWT",
	}
	payload := map[string]any{
		"sub": "attacker_user",
		"jti": "t1",
		"exp": fixedNow.Add(24 * time.Hour).Unix(),
		"iat": fixedNow.Unix(),
	}

	headerBytes, _ := json.Marshal(header)
	payloadBytes, _ := json.Marshal(payload)

	enc := base64.RawURLEncoding
	noneToken := enc.EncodeToString(headerBytes) + "." + enc.EncodeToString(payloadBytes) + "."

	_, err := svc.VerifyJWT(noneToken)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "signing method none is invalid")
}

func TestAuthenticateToken_Success(t *testing.T) {
	svc, mockStore, mockCache, _, _ := setupService(t)
	ctx := context.Background()

	user := models.User{Id: "user1", Username: "testuser"}
	token, _, _ := svc.CreateJWT(user.Id)

	mockCache.On("IsTokenRevoked", ctx, mock.Anything).Return(false, nil)
	mockStore.On("GetUser", ctx, user.Id).Return(user, nil)

	gotUser, claims, err := svc.AuthenticateToken(ctx, token)
	assert.NoError(t, err)
	assert.Equal(t, user.Id, gotUser.Id)
	assert.Equal(t, user.Username, gotUser.Username)
	assert.Equal(t, user.Id, claims.UserId)
}

func TestAuthenticateToken_Revoked(t *testing.T) {
	svc, _, mockCache, _, _ := setupService(t)
	ctx := context.Background()

	token, _, _ := svc.CreateJWT("user1")
	mockCache.On("IsTokenRevoked", ctx, mock.Anything).Return(true, nil)

	_, _, err := svc.AuthenticateToken(ctx, token)
	assert.ErrorIs(t, err, service.ErrUnauthorized)
}

func TestAuthenticateToken_UserGone(t *testing.T) {
	svc, mockStore, mockCache, _, _ := setupService(t)
	ctx := context.Background()

	token, _, _ := svc.CreateJWT("u1")
	mockCache.On("IsTokenRevoked", ctx, mock.Anything).Return(false, nil)
	mockStore.On("GetUser", ctx, "u1").Return(models.User{}, store.ErrItemNotFound)

	_, _, err := svc.AuthenticateToken(ctx, token)
	assert.ErrorIs(t, err, service.ErrUnauthorized)
}

func TestAuthenticateToken_StoreError(t *testing.T) {
	svc, mockStore, mockCache, _, _ := setupService(t)
	ctx := context.Background()

	token, _, _ := svc.CreateJWT("u1")
	mockCache.On("IsTokenRevoked", ctx, mock.Anything).Return(false, nil)
	mockStore.On("GetUser", ctx, "u1").Return(models.User{}, assert.AnError)

	_, _, err := svc.AuthenticateToken(ctx, token)
	assert.ErrorIs(t, err, assert.AnError)
	assert.NotErrorIs(t, err, service.ErrUnauthorized)
}

func TestAuthenticateToken_EmptyToken(t *testing.T) {
	svc, _, _, _, _ := setupService(t)

	_, _, err := svc.AuthenticateToken(context.Background(), "")
	assert.ErrorIs(t, err, service.ErrUnauthorized)
	assert.Contains(t, err.Error(), "token not provided")
}

func TestRegister_Success(t *testing.T) {
	svc, mockStore, _, _, _ := setupService(t)
	ctx := context.Background()

	mockStore.On("CreateUser", ctx, mock.MatchedBy(func(u models.User) bool {
		return u.Username == "alice" && u.Email == "alice@example.com" &&
			u.Id != "" && u.Created == fixedNow.UnixMilli() &&
			bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("secret1")) == nil
	})).Return(models.User{Id: "u1", Username: "alice", Email: "alice@example.com"}, nil)

	// Starter outline: header + two tasks, keys 0..2
	var seeded []models.Item
	mockStore.On("CreateItem", ctx, mock.Anything).Run(func(args mock.Arguments) {
		seeded = append(seeded, args.Get(1).(models.Item))
	}).Return(models.Item{}, nil)

	user, err := svc.Register(ctx, service.RegisterParams{Username: " alice ", Email: "alice@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)

	require.Len(t, seeded, 3)
	assert.Equal(t, models.ItemHeader, seeded[0].Type)
	for i, item := range seeded {
		assert.Equal(t, float64(i), item.Order)
		assert.Equal(t, "u1", item.UserId)
	}
}

func TestRegister_Duplicates(t *testing.T) {
	tests := []struct {
		storeErr error
		want     error
	}{
		{store.ErrDuplicateUsername, service.ErrDuplicateUsername},
		{store.ErrDuplicateEmail, service.ErrDuplicateEmail},
	}

	for _, tt := range tests {
		svc, mockStore, _, _, _ := setupService(t)
		mockStore.On("CreateUser", mock.Anything, mock.Anything).Return(models.User{}, tt.storeErr)

		_, err := svc.Register(context.Background(), service.RegisterParams{Username: "bob", Email: "bob@example.com", Password: "secret1"})
		assert.ErrorIs(t, err, tt.want)
		mockStore.AssertNotCalled(t, "CreateItem", mock.Anything, mock.Anything)
	}
}

func TestRegister_InvalidParams(t *testing.T) {
	svc, mockStore, _, _, _ := setupService(t)

	_, err := svc.Register(context.Background(), service.RegisterParams{Username: "bob", Email: "not-an-email", Password: "secret1"})
	assert.ErrorIs(t, err, service.ErrInvalidParams)
	mockStore.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything)
}

func TestRegister_SeedFailureIsNotFatal(t *testing.T) {
	svc, mockStore, _, _, _ := setupService(t)

	mockStore.On("CreateUser", mock.Anything, mock.Anything).Return(models.User{Id: "u1", Username: "bob"}, nil)
	mockStore.On("CreateItem", mock.Anything, mock.Anything).Return(models.Item{}, errors.New("db down")).Once()

	user, err := svc.Register(context.Background(), service.RegisterParams{Username: "bob", Email: "bob@example.com", Password: "secret1"})
	assert.NoError(t, err)
	assert.Equal(t, "u1", user.Id)
}

func hashed(t *testing.T, password string) string {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestLogin_Success(t *testing.T) {
	svc, mockStore, _, _, _ := setupService(t)
	ctx := context.Background()

	user := models.User{Id: "u1", Email: "a@example.com", PasswordHash: hashed(t, "secret1")}
	mockStore.On("GetUserByEmail", ctx, "a@example.com").Return(user, nil)
	mockStore.On("SetUserLastLogin", ctx, "u1", fixedNow.UnixMilli()).Return(nil)

	result, err := svc.Login(ctx, service.LoginParams{Email: "a@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, fixedNow.Add(service.DefaultTokenTTL).UnixMilli(), result.ExpiresAt)
	assert.Equal(t, fixedNow.UnixMilli(), result.User.LastLogin)

	claims, err := svc.VerifyJWT(result.Token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserId)
}

func TestLogin_WrongPassword(t *testing.T) {
	svc, mockStore, _, _, _ := setupService(t)
	ctx := context.Background()

	user := models.User{Id: "u1", Email: "a@example.com", PasswordHash: hashed(t, "secret1")}
	mockStore.On("GetUserByEmail", ctx, "a@example.com").Return(user, nil)

	_, err := svc.Login(ctx, service.LoginParams{Email: "a@example.com", Password: "wrong!"})
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)
	mockStore.AssertNotCalled(t, "SetUserLastLogin", mock.Anything, mock.Anything, mock.Anything)
}

func TestLogin_UnknownEmail(t *testing.T) {
	svc, mockStore, _, _, _ := setupService(t)
	ctx := context.Background()

	mockStore.On("GetUserByEmail", ctx, "x@example.com").Return(models.User{}, store.ErrItemNotFound)

	_, err := svc.Login(ctx, service.LoginParams{Email: "x@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)
}

func TestLogin_MissingFields(t *testing.T) {
	svc, _, _, _, _ := setupService(t)

	_, err := svc.Login(context.Background(), service.LoginParams{Email: "a@example.com"})
	assert.ErrorIs(t, err, service.ErrInvalidParams)
}

func TestLogout_RevokesForRemainingLifetime(t *testing.T) {
	svc, _, mockCache, _, _ := setupService(t)
	ctx := context.Background()

	claims := service.TokenClaims{UserId: "u1", TokenId: "t1", Expiry: fixedNow.Add(time.Hour)}
	mockCache.On("RevokeToken", ctx, "t1", time.Hour).Return(nil)

	assert.NoError(t, svc.Logout(ctx, claims))
	mockCache.AssertExpectations(t)
}

func TestProfile_NotFound(t *testing.T) {
	svc, mockStore, _, _, _ := setupService(t)

	mockStore.On("GetUser", mock.Anything, "u1").Return(models.User{}, store.ErrItemNotFound)

	_, err := svc.Profile(context.Background(), "u1")
	assert.ErrorIs(t, err, service.ErrUserNotFound)
}

func TestDeleteUser_Success(t *testing.T) {
	svc, mockStore, mockCache, mockMQ, _ := setupService(t)
	ctx := context.Background()

	user := models.User{Id: "user1"}

	mockStore.On("DeleteUser", ctx, user.Id).Return(nil)

	publishDone := wrapMockWithSignal(mockCache.On("Publish", mock.Anything, "user-deleted", mock.MatchedBy(func(msg []byte) bool {
		return string(msg) == `{"userId":"user1"}`
	})).Return(nil))

	mqSendDone := wrapMockWithSignal(mockMQ.On("Send", mock.Anything, mock.MatchedBy(func(body string) bool {
		return strings.Contains(body, `"userId":"user1"`) && strings.Contains(body, `"type":"purge_user_items"`)
	})).Return(nil))

	err := svc.DeleteUser(ctx, user)
	assert.NoError(t, err)

	waitFor(t, publishDone, "Publish")
	waitFor(t, mqSendDone, "MQ Send")
}

func TestDeleteUser_AsyncFailuresDoNotAffectResult(t *testing.T) {
	svc, mockStore, mockCache, mockMQ, _ := setupService(t)
	ctx := context.Background()

	mockStore.On("DeleteUser", ctx, "user1").Return(nil)
	mockCache.On("Publish", mock.Anything, "user-deleted", mock.Anything).Return(errors.New("pubsub failed"))
	mqSendDone := wrapMockWithSignal(mockMQ.On("Send", mock.Anything, mock.Anything).Return(errors.New("mq failed")))

	err := svc.DeleteUser(ctx, models.User{Id: "user1"})
	assert.NoError(t, err)

	waitFor(t, mqSendDone, "MQ Send")
}

func TestDeleteUser_NotFound(t *testing.T) {
	svc, mockStore, _, mockMQ, _ := setupService(t)

	mockStore.On("DeleteUser", mock.Anything, "user1").Return(store.ErrItemNotFound)

	err := svc.DeleteUser(context.Background(), models.User{Id: "user1"})
	assert.ErrorIs(t, err, service.ErrUserNotFound)
	mockMQ.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}
