package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/zlnvch/flashlist/cache"
	"github.com/zlnvch/flashlist/mq"
	"github.com/zlnvch/flashlist/store"
	"github.com/zlnvch/flashlist/worker"
)

var (
	ErrInvalidParams      = errors.New("invalid params")
	ErrNotFound           = errors.New("item not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrConflict           = errors.New("conflict")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrDuplicateUsername  = errors.New("username already taken")
)

const DefaultTokenTTL = 7 * 24 * time.Hour

type Service struct {
	Store           store.OutlineStore
	Cache           cache.OutlineCache
	MQ              mq.MessageQueue
	ActivityBatcher *worker.ActivityBatcher
	JWTSecret       []byte
	TokenTTL        time.Duration
	// PasswordCost is the bcrypt work factor
	PasswordCost int
	Now          func() time.Time
}

func NewService(
	store store.OutlineStore,
	cache cache.OutlineCache,
	mq mq.MessageQueue,
	activityBatcher *worker.ActivityBatcher,
	jwtSecret []byte,
	tokenTTL time.Duration,
) (*Service, error) {
	if len(jwtSecret) == 0 {
		return nil, errors.New("jwt secret must not be empty")
	}
	if tokenTTL <= 0 {
		tokenTTL = DefaultTokenTTL
	}

	return &Service{
		Store:           store,
		Cache:           cache,
		MQ:              mq,
		ActivityBatcher: activityBatcher,
		JWTSecret:       jwtSecret,
		TokenTTL:        tokenTTL,
		PasswordCost:    10,
		Now:             time.Now,
	}, nil
}

func (s *Service) nowMillis() int64 {
	return s.Now().UnixMilli()
}

func invalidParams(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidParams, fmt.Sprintf(format, args...))
}
