package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmitrijs2005/notekeeper/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEnvelope(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestSignIn(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/sign-in", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var in map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "ann@example.com", in["email"])
		assert.Equal(t, true, in["remember"])

		writeEnvelope(w, http.StatusOK, map[string]any{
			"code":   200,
			"detail": "signed in",
			"data": map[string]any{
				"user":  map[string]any{"id": "u1", "name": "Ann", "email": "ann@example.com"},
				"token": map[string]any{"access": "a1", "refresh": "r1"},
			},
		})
	}))
	defer srv.Close()

	res, err := New(srv.URL+"/", time.Second).SignIn(context.Background(), "ann@example.com", "secret1", true)
	require.NoError(t, err)
	assert.Equal(t, "u1", res.User.ID)
	assert.Equal(t, TokenPair{Access: "a1", Refresh: "r1"}, res.Token)
}

func TestMe_SendsBearer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		writeEnvelope(w, http.StatusOK, map[string]any{"code": 200, "data": map[string]any{"id": "u1", "email": "ann@example.com"}})
	}))
	defer srv.Close()

	id, err := New(srv.URL, time.Second).Me(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", id.Email)
}

func TestAPIError(t *testing.T) {
	attr := "email"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusConflict, map[string]any{
			"type":   "client_error",
			"code":   409,
			"errors": []map[string]any{{"detail": "user with this email already exists", "attr": attr}},
		})
	}))
	defer srv.Close()

	_, err := New(srv.URL, time.Second).Register(context.Background(), "Ann", "ann@example.com", "p", "p")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, "email: user with this email already exists", err.Error())
	assert.True(t, errors.Is(err, common.ErrorAlreadyExists))
	assert.False(t, errors.Is(err, common.ErrorUnauthorized))
}

func TestUnauthorizedMatchesSentinel(t *testing.T) {
	err := &APIError{Status: 401, Type: "client_error", Errors: []FieldError{{Detail: "token mismatch"}}}
	assert.True(t, errors.Is(err, common.ErrorUnauthorized))
	assert.Equal(t, "token mismatch", err.Error())
	assert.Equal(t, "client_error (500)", (&APIError{Status: 500, Type: "client_error"}).Error())
}

func TestUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	}))
	defer srv.Close()

	err := New(srv.URL, time.Second).Health(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)

	srv.Close()
	err = New(srv.URL, time.Second).Health(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}
