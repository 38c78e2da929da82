package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/zlnvch/flashlist/cache"
	"github.com/zlnvch/flashlist/models"
	"github.com/zlnvch/flashlist/mq"
	"github.com/zlnvch/flashlist/store"
)

type RegisterParams struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginParams struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenClaims is what a verified session token carries.
type TokenClaims struct {
	UserId  string
	TokenId string
	Expiry  time.Time
}

func (s *Service) CreateJWT(userId string) (string, time.Time, error) {
	tokenId, err := uuid.NewV4()
	if err != nil {
		return "", time.Time{}, err
	}

	now := s.Now()
	expiry := now.Add(s.TokenTTL)
	claims := jwt.MapClaims{
		"sub": userId,
		"jti": tokenId.String(),
		"exp": expiry.Unix(),
		"iat": now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(s.JWTSecret)
	if err != nil {
		return "", time.Time{}, err
	}

	return signedToken, time.Unix(expiry.Unix(), 0), nil
}

func (s *Service) VerifyJWT(tokenString string) (TokenClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return s.JWTSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.Now))
	if err != nil {
		return TokenClaims{}, err
	}

	if !token.Valid {
		return TokenClaims{}, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return TokenClaims{}, errors.New("invalid token claims")
	}

	userId, err := claims.GetSubject()
	if err != nil || userId == "" {
		return TokenClaims{}, errors.New("missing sub claim")
	}

	tokenId, ok := claims["jti"].(string)
	if !ok || tokenId == "" {
		return TokenClaims{}, errors.New("missing jti claim")
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return TokenClaims{}, errors.New("missing exp claim")
	}

	return TokenClaims{UserId: userId, TokenId: tokenId, Expiry: exp.Time}, nil
}

// AuthenticateToken resolves a bearer token to its user. Every failure
// wraps ErrUnauthorized except store and cache outages.
func (s *Service) AuthenticateToken(ctx context.Context, token string) (models.User, TokenClaims, error) {
	if len(token) == 0 {
		return models.User{}, TokenClaims{}, fmt.Errorf("%w: token not provided", ErrUnauthorized)
	}

	claims, err := s.VerifyJWT(token)
	if err != nil {
		return models.User{}, TokenClaims{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	revoked, err := s.Cache.IsTokenRevoked(ctx, claims.TokenId)
	if err != nil {
		return models.User{}, TokenClaims{}, err
	}
	if revoked {
		return models.User{}, TokenClaims{}, fmt.Errorf("%w: token revoked", ErrUnauthorized)
	}

	user, err := s.Store.GetUser(ctx, claims.UserId)
	if err != nil {
		if errors.Is(err, store.ErrItemNotFound) {
			return models.User{}, TokenClaims{}, fmt.Errorf("%w: user no longer exists", ErrUnauthorized)
		}
		return models.User{}, TokenClaims{}, err
	}

	return user, claims, nil
}

func (s *Service) Register(ctx context.Context, params RegisterParams) (models.User, error) {
	params.Username = strings.TrimSpace(params.Username)
	params.Email = strings.TrimSpace(params.Email)
	if err := ValidateRegistration(params); err != nil {
		return models.User{}, err
	}

	passwordHash, err := s.hashPassword(params.Password)
	if err != nil {
		return models.User{}, err
	}

	userId, err := uuid.NewV4()
	if err != nil {
		return models.User{}, err
	}

	now := s.nowMillis()
	user, err := s.Store.CreateUser(ctx, models.User{
		Id:           userId.String(),
		Username:     params.Username,
		Email:        params.Email,
		PasswordHash: passwordHash,
		Created:      now,
		Updated:      now,
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicateUsername):
			return models.User{}, ErrDuplicateUsername
		case errors.Is(err, store.ErrDuplicateEmail):
			return models.User{}, ErrDuplicateEmail
		}
		return models.User{}, fmt.Errorf("create user failed: %w", err)
	}

	if err := s.seedOutline(ctx, user.Id, now); err != nil {
		log.Printf("Failed to seed outline for user %s: %v", user.Id, err)
	}

	return user, nil
}

// starterOutline is what a fresh account starts with so its outline is
// never empty.
var starterOutline = []struct {
	Text  string
	Level int
	Type  models.ItemType
}{
	{"My list", 0, models.ItemHeader},
	{"Press Enter to add a task", 0, models.ItemTask},
	{"Press Tab to indent", 1, models.ItemTask},
}

func (s *Service) seedOutline(ctx context.Context, userId string, now int64) error {
	for i, seed := range starterOutline {
		itemId, err := uuid.NewV7()
		if err != nil {
			return err
		}
		_, err = s.Store.CreateItem(ctx, models.Item{
			Id:        itemId.String(),
			UserId:    userId,
			Text:      seed.Text,
			Level:     seed.Level,
			Type:      seed.Type,
			Order:     float64(i),
			CreatedAt: now,
			UpdatedAt: now,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) Login(ctx context.Context, params LoginParams) (models.LoginResult, error) {
	email := strings.TrimSpace(params.Email)
	if email == "" || params.Password == "" {
		return models.LoginResult{}, invalidParams("email and password are required")
	}

	user, err := s.Store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrItemNotFound) {
			return models.LoginResult{}, ErrInvalidCredentials
		}
		return models.LoginResult{}, err
	}

	ok, err := checkPassword(user.PasswordHash, params.Password)
	if err != nil {
		return models.LoginResult{}, err
	}
	if !ok {
		return models.LoginResult{}, ErrInvalidCredentials
	}

	now := s.nowMillis()
	if err := s.Store.SetUserLastLogin(ctx, user.Id, now); err != nil {
		log.Printf("Failed to record login for user %s: %v", user.Id, err)
	} else {
		user.LastLogin = now
		user.Updated = now
	}

	token, expiry, err := s.CreateJWT(user.Id)
	if err != nil {
		return models.LoginResult{}, fmt.Errorf("token generation failed: %w", err)
	}

	return models.LoginResult{
		User:      user,
		Token:     token,
		ExpiresAt: expiry.UnixMilli(),
	}, nil
}

func (s *Service) Profile(ctx context.Context, userId string) (models.User, error) {
	user, err := s.Store.GetUser(ctx, userId)
	if err != nil {
		if errors.Is(err, store.ErrItemNotFound) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

// Logout revokes the token until it would have expired anyway.
func (s *Service) Logout(ctx context.Context, claims TokenClaims) error {
	return s.Cache.RevokeToken(ctx, claims.TokenId, claims.Expiry.Sub(s.Now()))
}

type UserDeletedMessage struct {
	UserId string `json:"userId"`
}

func (s *Service) DeleteUser(ctx context.Context, user models.User) error {
	if err := s.Store.DeleteUser(ctx, user.Id); err != nil {
		if errors.Is(err, store.ErrItemNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	// Async side-effects - return to caller as soon as the store operation is done
	go func() {
		if msgBytes, err := json.Marshal(UserDeletedMessage{UserId: user.Id}); err == nil {
			if err := s.Cache.Publish(context.Background(), cache.UserDeletedChannel, msgBytes); err != nil {
				log.Printf("Failed to publish user deletion for %s: %v", user.Id, err)
			}
		}

		body, err := mq.EncodeJob(mq.Job{Type: mq.PurgeUserItems, UserId: user.Id, RequestedAt: s.nowMillis()})
		if err != nil {
			return
		}
		if err := s.MQ.Send(context.Background(), body); err != nil {
			log.Printf("Failed to queue item purge for user %s: %v", user.Id, err)
		}
	}()

	return nil
}
