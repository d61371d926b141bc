package server

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/notekeeper/internal/dbx"
	"github.com/dmitrijs2005/notekeeper/internal/server/config"
	"github.com/dmitrijs2005/notekeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/notekeeper/internal/server/repositories/repomanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"
)

func testConfig() *config.Config {
	c := &config.Config{}
	c.LoadDefaults()
	c.EndpointAddrHTTP = "127.0.0.1:0"
	c.EndpointAddrGRPC = "127.0.0.1:0"
	c.DatabaseDSN = "sqlite"
	c.AccessTokenSecret = strings.Repeat("a", 32)
	c.RefreshTokenSecret = strings.Repeat("r", 32)
	c.SessionSecret = strings.Repeat("s", 32)
	c.PasswordHashCost = bcrypt.MinCost
	return c
}

func sqliteOpener(ctx context.Context) (dbx.Conn, error) {
	db, err := sql.Open("sqlite", ":memory:")
	return dbx.Conn{DB: db}, err
}

type failingMigrations struct {
	*repomanager.MemoryRepositoryManager
}

func (failingMigrations) RunMigrations(context.Context, *sql.DB) error {
	return errors.New("migration 00001 failed")
}

func TestApp_HandlerServesAuthRoutes(t *testing.T) {
	var logs bytes.Buffer
	app, err := newApp(testConfig(), &logs, sqliteOpener, repomanager.NewMemoryRepositoryManager())
	require.NoError(t, err)
	h := app.Handler()

	body := `{"name":"Ann","email":"ann@example.com","password":"secret1","confirmPassword":"secret1"}`
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/auth/sign-up", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/auth/sign-in",
		strings.NewReader(`{"email":"ann@example.com","password":"secret1"}`)))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var secure bool
	for _, c := range rr.Result().Cookies() {
		if c.Name == "session" {
			secure = c.Secure
		}
	}
	assert.False(t, secure, "development cookies are not Secure")
	assert.Contains(t, logs.String(), `"msg":"user registered"`)
}

func TestApp_SecureCookieInProduction(t *testing.T) {
	cfg := testConfig()
	cfg.Environment = config.EnvProduction
	app, err := newApp(cfg, &bytes.Buffer{}, sqliteOpener, repomanager.NewMemoryRepositoryManager())
	require.NoError(t, err)

	h := app.Handler()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/auth/sign-out", nil))
	require.NotEmpty(t, rr.Result().Cookies())
	assert.True(t, rr.Result().Cookies()[0].Secure)
}

func TestApp_LimiterSelection(t *testing.T) {
	app, err := newApp(testConfig(), &bytes.Buffer{}, sqliteOpener, repomanager.NewMemoryRepositoryManager())
	require.NoError(t, err)
	assert.IsType(t, &httpapi.MemoryLimiter{}, app.limiter)

	cfg := testConfig()
	cfg.RedisAddr = "127.0.0.1:6379"
	app, err = newApp(cfg, &bytes.Buffer{}, sqliteOpener, repomanager.NewMemoryRepositoryManager())
	require.NoError(t, err)
	assert.IsType(t, &httpapi.RedisLimiter{}, app.limiter)
	require.NotNil(t, app.redis)
	_ = app.redis.Close()
}

func TestApp_RunStopsOnCancel(t *testing.T) {
	app, err := newApp(testConfig(), &bytes.Buffer{}, sqliteOpener, repomanager.NewMemoryRepositoryManager())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	select {
	case err := <-done:
		t.Fatalf("app exited early: %v", err)
	case <-time.After(200 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop after cancel")
	}
}

func TestApp_RunFailsOnMigrationError(t *testing.T) {
	var logs bytes.Buffer
	repos := failingMigrations{repomanager.NewMemoryRepositoryManager()}
	app, err := newApp(testConfig(), &logs, sqliteOpener, repos)
	require.NoError(t, err)

	err = app.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migrate")
	assert.Contains(t, logs.String(), "startup failed")
}

func TestApp_RunFailsOnBadAddress(t *testing.T) {
	cfg := testConfig()
	cfg.EndpointAddrHTTP = "127.0.0.1:99999"
	app, err := newApp(cfg, &bytes.Buffer{}, sqliteOpener, repomanager.NewMemoryRepositoryManager())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- app.Run(context.Background()) }()
	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not fail")
	}
}
