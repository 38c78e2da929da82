package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zlnvch/flashlist/client"
	"github.com/zlnvch/flashlist/models"
)

type memCredentials struct {
	creds   client.Credentials
	ok      bool
	removed int
}

func (m *memCredentials) Load() (client.Credentials, bool, error) {
	return m.creds, m.ok, nil
}

func (m *memCredentials) Save(creds client.Credentials) error {
	m.creds, m.ok = creds, true
	return nil
}

func (m *memCredentials) Remove() error {
	m.creds, m.ok = client.Credentials{}, false
	m.removed++
	return nil
}

func writeEnvelope[T any](t *testing.T, w http.ResponseWriter, status int, env models.Envelope[T]) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(env))
}

func validCredentials() *memCredentials {
	return &memCredentials{
		creds: client.Credentials{
			Token:     "tok",
			User:      models.User{Id: "u1", Username: "alice"},
			ExpiresAt: time.Now().Add(time.Hour).UnixMilli(),
		},
		ok: true,
	}
}

func setupRemote(t *testing.T, store client.CredentialStore, handler http.HandlerFunc) *client.Remote {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	remote, err := client.NewRemote(server.URL, client.NewSession(store))
	require.NoError(t, err)
	return remote
}

func TestNewRemote_RejectsBadURL(t *testing.T) {
	_, err := client.NewRemote("ftp://example.com", nil)
	assert.Error(t, err)

	remote, err := client.NewRemote("http://localhost:8080/", nil)
	require.NoError(t, err)
	assert.Equal(t, client.Anonymous, remote.Session().State())
	assert.NotEmpty(t, remote.SessionId())
}

func TestLogin_AuthenticatesSession(t *testing.T) {
	creds := &memCredentials{}
	expires := time.Now().Add(time.Hour).UnixMilli()

	remote := setupRemote(t, creds, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/auth/login", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "a@example.com", body["email"])

		writeEnvelope(t, w, http.StatusOK, models.Envelope[models.LoginResult]{
			Code:    http.StatusOK,
			Message: "logged in",
			Data:    models.LoginResult{User: models.User{Id: "u1"}, Token: "tok", ExpiresAt: expires},
		})
	})

	result, err := remote.Login(context.Background(), "a@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "tok", result.Token)

	assert.Equal(t, client.Authenticated, remote.Session().State())
	token, ok := remote.Session().Token()
	assert.True(t, ok)
	assert.Equal(t, "tok", token)
	assert.True(t, creds.ok)
	assert.Equal(t, expires, creds.creds.ExpiresAt)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	remote := setupRemote(t, nil, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(t, w, http.StatusUnauthorized, models.Envelope[any]{
			Code:    http.StatusUnauthorized,
			Message: "invalid email or password",
			Error:   models.ErrCodeInvalidCredentials,
		})
	})

	_, err := remote.Login(context.Background(), "a@example.com", "wrong")
	require.Error(t, err)
	assert.ErrorIs(t, err, client.ErrUnauthorized)

	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, models.ErrCodeInvalidCredentials, apiErr.Code)
	assert.Equal(t, "invalid email or password", apiErr.Message)
	assert.Equal(t, client.Anonymous, remote.Session().State())
}

func TestAuthenticatedCall_SendsTokenAndSession(t *testing.T) {
	var remote *client.Remote
	remote = setupRemote(t, validCredentials(), func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, remote.SessionId(), r.Header.Get(client.SessionHeader))
		writeEnvelope(t, w, http.StatusOK, models.Envelope[[]models.Item]{Code: http.StatusOK})
	})

	items, err := remote.ListItems(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestAuthenticatedCall_WithoutSession(t *testing.T) {
	remote := setupRemote(t, nil, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	_, err := remote.ListItems(context.Background())
	assert.ErrorIs(t, err, client.ErrNotLoggedIn)
	assert.ErrorIs(t, err, client.ErrUnauthorized)
}

func TestUnauthorizedResponse_ExpiresSession(t *testing.T) {
	creds := validCredentials()
	remote := setupRemote(t, creds, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(t, w, http.StatusUnauthorized, models.Envelope[any]{
			Code:  http.StatusUnauthorized,
			Error: models.ErrCodeUnauthorized,
		})
	})

	_, err := remote.Profile(context.Background())
	assert.ErrorIs(t, err, client.ErrUnauthorized)
	assert.Equal(t, client.Expired, remote.Session().State())
	assert.False(t, creds.ok)
}

func TestErrorStatusMapping(t *testing.T) {
	tests := []struct {
		status int
		code   models.ErrorCode
		want   error
	}{
		{http.StatusBadRequest, models.ErrCodeInvalidParams, client.ErrValidation},
		{http.StatusNotFound, models.ErrCodeItemNotFound, client.ErrNotFound},
		{http.StatusConflict, models.ErrCodeConflict, client.ErrConflict},
		{http.StatusTooManyRequests, models.ErrCodeRateLimited, client.ErrRateLimited},
		{http.StatusInternalServerError, models.ErrCodeInternal, client.ErrServer},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			remote := setupRemote(t, validCredentials(), func(w http.ResponseWriter, r *http.Request) {
				writeEnvelope(t, w, tt.status, models.Envelope[any]{Code: tt.status, Error: tt.code})
			})

			_, err := remote.UpdateItem(context.Background(), "i1", models.ItemPatch{Completed: models.Ptr(true)})
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, client.Authenticated, remote.Session().State())
		})
	}
}

func TestNonJSONErrorBody(t *testing.T) {
	remote := setupRemote(t, validCredentials(), func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	})

	err := remote.DeleteItem(context.Background(), "i1")
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Empty(t, apiErr.Code)
}

func TestItemRequests(t *testing.T) {
	remote := setupRemote(t, validCredentials(), func(w http.ResponseWriter, r *http.Request) {
		switch r.Method + " " + r.URL.Path {
		case "POST /api/v1/items":
			var body models.NewItem
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "a", body.AfterId)
			writeEnvelope(t, w, http.StatusCreated, models.Envelope[models.Item]{
				Code: http.StatusCreated,
				Data: models.Item{Id: "n1", Type: body.Type, Level: body.Level, Order: 0.5},
			})
		case "PATCH /api/v1/items/n1":
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, map[string]any{"text": "milk"}, body)
			writeEnvelope(t, w, http.StatusOK, models.Envelope[models.Item]{
				Code: http.StatusOK,
				Data: models.Item{Id: "n1", Text: "milk"},
			})
		case "PUT /api/v1/items/reorder":
			var body struct {
				Items []models.ItemOrder `json:"items"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			writeEnvelope(t, w, http.StatusOK, models.Envelope[models.ReorderResult]{
				Code: http.StatusOK,
				Data: models.ReorderResult{Updated: len(body.Items)},
			})
		case "DELETE /api/v1/items/n1":
			writeEnvelope(t, w, http.StatusOK, models.Envelope[models.DeletedItem]{
				Code: http.StatusOK,
				Data: models.DeletedItem{Id: "n1"},
			})
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	ctx := context.Background()
	created, err := remote.CreateItem(ctx, models.NewItem{Level: 1, Type: models.ItemTask, AfterId: "a"})
	require.NoError(t, err)
	assert.Equal(t, "n1", created.Id)
	assert.Equal(t, 0.5, created.Order)

	updated, err := remote.UpdateItem(ctx, "n1", models.ItemPatch{Text: models.Ptr("milk")})
	require.NoError(t, err)
	assert.Equal(t, "milk", updated.Text)

	n, err := remote.Reorder(ctx, models.Sequential([]string{"n1", "a"}))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, remote.DeleteItem(ctx, "n1"))
}

func TestLogout_ClearsEvenOnFailure(t *testing.T) {
	creds := validCredentials()
	remote := setupRemote(t, creds, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(t, w, http.StatusInternalServerError, models.Envelope[any]{Code: 500, Error: models.ErrCodeInternal})
	})

	assert.Error(t, remote.Logout(context.Background()))
	assert.Equal(t, client.Anonymous, remote.Session().State())
	assert.False(t, creds.ok)
}

func TestDeleteAccount(t *testing.T) {
	creds := validCredentials()
	remote := setupRemote(t, creds, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/v1/auth/profile", r.URL.Path)
		writeEnvelope(t, w, http.StatusOK, models.Envelope[models.DeletedItem]{Code: 200, Data: models.DeletedItem{Id: "u1"}})
	})

	require.NoError(t, remote.DeleteAccount(context.Background()))
	assert.Equal(t, client.Anonymous, remote.Session().State())
}
