package models

// ErrorCode is the machine-readable error category carried by every
// failed API response.
type ErrorCode string

const (
	ErrCodeInvalidParams      ErrorCode = "INVALID_PARAMS"
	ErrCodeItemNotFound       ErrorCode = "ITEM_NOT_FOUND"
	ErrCodeUserNotFound       ErrorCode = "USER_NOT_FOUND"
	ErrCodeConflict           ErrorCode = "CONFLICT"
	ErrCodeUnauthorized       ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden          ErrorCode = "FORBIDDEN"
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
	ErrCodeDuplicateEmail     ErrorCode = "DUPLICATE_EMAIL"
	ErrCodeDuplicateUsername  ErrorCode = "DUPLICATE_USERNAME"
	ErrCodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	ErrCodeRateLimited        ErrorCode = "RATE_LIMITED"
)

// Envelope wraps every API response.
type Envelope[T any] struct {
	Code    int       `json:"code"`
	Message string    `json:"message"`
	Data    T         `json:"data,omitempty"`
	Error   ErrorCode `json:"error,omitempty"`
}

type LoginResult struct {
	User      User   `json:"user"`
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expiresAt"`
}

type DeletedItem struct {
	Id string `json:"id"`
}

type ReorderResult struct {
	Updated int `json:"updated"`
}

// OutlineChanged is published after every successful mutation of a
// user's outline.
type OutlineChanged struct {
	UserId    string `json:"userId"`
	SessionId string `json:"sessionId,omitempty"`
}
