// Package client talks to the list service over HTTP and websocket and
// keeps the local session.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/gorilla/websocket"
	"github.com/zlnvch/flashlist/models"
)

const (
	// DefaultTimeout is the hard ceiling on a request.
	DefaultTimeout = 10 * time.Second

	// SessionHeader attributes mutations to this client instance.
	SessionHeader = "X-Client-Session"

	apiRoot          = "/api/v1"
	maxResponseBytes = 8 << 20
)

// Remote is the list service client. Requests that need a token take it
// from the Session; a 401 expires the session.
type Remote struct {
	baseURL    string
	httpClient *http.Client
	dialer     *websocket.Dialer
	session    *Session
	sessionId  string
	pongWait   time.Duration
}

func NewRemote(serverURL string, session *Session) (*Remote, error) {
	u, err := url.Parse(strings.TrimRight(serverURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server url must be http or https, got %q", serverURL)
	}
	if session == nil {
		session = NewSession(nil)
	}

	sessionId, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}

	return &Remote{
		baseURL:    u.String(),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		dialer:     &websocket.Dialer{HandshakeTimeout: DefaultTimeout},
		session:    session,
		sessionId:  sessionId.String(),
		pongWait:   watchPongWait,
	}, nil
}

func (r *Remote) Session() *Session {
	return r.session
}

// SessionId identifies this client in change events.
func (r *Remote) SessionId() string {
	return r.sessionId
}

func call[T any](ctx context.Context, r *Remote, method string, path string, body any, auth bool) (T, error) {
	var zero T

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return zero, fmt.Errorf("json marshal: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+apiRoot+path, reader)
	if err != nil {
		return zero, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(SessionHeader, r.sessionId)

	if auth {
		token, ok := r.session.Token()
		if !ok {
			return zero, ErrNotLoggedIn
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return zero, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env models.Envelope[T]
	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&env)

	if resp.StatusCode >= http.StatusMultipleChoices {
		apiErr := &APIError{Status: resp.StatusCode}
		if decodeErr == nil {
			apiErr.Code = env.Error
			apiErr.Message = env.Message
		}
		if resp.StatusCode == http.StatusUnauthorized && auth {
			r.session.Expire()
		}
		return zero, apiErr
	}
	if decodeErr != nil {
		return zero, fmt.Errorf("decode %s %s response: %w", method, path, decodeErr)
	}

	return env.Data, nil
}

func (r *Remote) Register(ctx context.Context, username string, email string, password string) (models.User, error) {
	body := map[string]string{"username": username, "email": email, "password": password}
	return call[models.User](ctx, r, http.MethodPost, "/auth/register", body, false)
}

// Login authenticates the session on success.
func (r *Remote) Login(ctx context.Context, email string, password string) (models.LoginResult, error) {
	body := map[string]string{"email": email, "password": password}
	result, err := call[models.LoginResult](ctx, r, http.MethodPost, "/auth/login", body, false)
	if err != nil {
		return models.LoginResult{}, err
	}
	if err := r.session.Authenticate(result); err != nil {
		return result, fmt.Errorf("save credentials: %w", err)
	}
	return result, nil
}

// Logout revokes the token on the service and clears the session even if
// the service could not be reached.
func (r *Remote) Logout(ctx context.Context) error {
	_, err := call[any](ctx, r, http.MethodPost, "/auth/logout", nil, true)
	r.session.Clear()
	return err
}

func (r *Remote) Profile(ctx context.Context) (models.User, error) {
	return call[models.User](ctx, r, http.MethodGet, "/auth/profile", nil, true)
}

func (r *Remote) DeleteAccount(ctx context.Context) error {
	_, err := call[models.DeletedItem](ctx, r, http.MethodDelete, "/auth/profile", nil, true)
	if err != nil {
		return err
	}
	r.session.Clear()
	return nil
}

func (r *Remote) ListItems(ctx context.Context) ([]models.Item, error) {
	items, err := call[[]models.Item](ctx, r, http.MethodGet, "/items", nil, true)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.Item{}
	}
	return items, nil
}

func (r *Remote) CreateItem(ctx context.Context, item models.NewItem) (models.Item, error) {
	return call[models.Item](ctx, r, http.MethodPost, "/items", item, true)
}

func (r *Remote) UpdateItem(ctx context.Context, id string, patch models.ItemPatch) (models.Item, error) {
	return call[models.Item](ctx, r, http.MethodPatch, "/items/"+url.PathEscape(id), patch, true)
}

func (r *Remote) DeleteItem(ctx context.Context, id string) error {
	_, err := call[models.DeletedItem](ctx, r, http.MethodDelete, "/items/"+url.PathEscape(id), nil, true)
	return err
}

func (r *Remote) Reorder(ctx context.Context, orders []models.ItemOrder) (int, error) {
	body := struct {
		Items []models.ItemOrder `json:"items"`
	}{Items: orders}
	result, err := call[models.ReorderResult](ctx, r, http.MethodPut, "/items/reorder", body, true)
	if err != nil {
		return 0, err
	}
	return result.Updated, nil
}
