package httpapi

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/notekeeper/internal/dbx"
	"github.com/dmitrijs2005/notekeeper/internal/server/auth"
	"github.com/dmitrijs2005/notekeeper/internal/server/metrics"
	"github.com/dmitrijs2005/notekeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/notekeeper/internal/server/services"
	"github.com/dmitrijs2005/notekeeper/internal/server/session"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"
)

type testEnv struct {
	router  http.Handler
	handler *Handler
	repos   *repomanager.MemoryRepositoryManager
	issuer  *auth.Issuer
	metrics *metrics.Metrics
	now     time.Time
}

func newTestEnv(t *testing.T, opts RouterOptions) *testEnv {
	t.Helper()

	mgr := dbx.NewManager(func(ctx context.Context) (dbx.Conn, error) {
		db, err := sql.Open("sqlite", ":memory:")
		return dbx.Conn{DB: db}, err
	})
	t.Cleanup(func() { _ = mgr.Reset() })

	repos := repomanager.NewMemoryRepositoryManager()
	issuer := auth.NewIssuer(auth.Config{
		AccessSecret:  strings.Repeat("a", 32),
		RefreshSecret: strings.Repeat("r", 32),
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
	})
	mt := metrics.New()

	svc, err := services.NewUserService(mgr, repos, issuer, bcrypt.MinCost, mt, nil)
	require.NoError(t, err)

	store, err := session.NewStore(strings.Repeat("s", 32), session.CookieOptions{Name: "session"})
	require.NoError(t, err)

	now := time.Now().Truncate(time.Second)
	h := NewHandler(svc, store, mt, nil).WithClock(func() time.Time { return now })

	return &testEnv{
		router:  NewRouter(h, opts),
		handler: h,
		repos:   repos,
		issuer:  issuer,
		metrics: mt,
		now:     now,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	var rdr *bytes.Reader
	switch b := body.(type) {
	case nil:
		rdr = bytes.NewReader(nil)
	case string:
		rdr = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	for _, m := range mutate {
		m(req)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func withCookie(c *http.Cookie) func(*http.Request) {
	return func(r *http.Request) { r.AddCookie(c) }
}

func withBearer(tok string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tok) }
}

func sessionCookie(t *testing.T, rr *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rr.Result().Cookies() {
		if c.Name == "session" {
			return c
		}
	}
	return nil
}

type envelope struct {
	Type   string          `json:"type"`
	Code   int             `json:"code"`
	Detail string          `json:"detail"`
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Detail string  `json:"detail"`
		Attr   *string `json:"attr"`
	} `json:"errors"`
	Timestamp time.Time `json:"timestamp"`
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env), rr.Body.String())
	return env
}

type authData struct {
	User struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"user"`
	Token struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	} `json:"token"`
}

func decodeAuth(t *testing.T, rr *httptest.ResponseRecorder) authData {
	t.Helper()
	var d authData
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rr).Data, &d))
	return d
}

var annSignUp = map[string]any{
	"name":            "Ann",
	"email":           "ann@example.com",
	"password":        "secret1",
	"confirmPassword": "secret1",
}

func (e *testEnv) register(t *testing.T, name, email, password string) {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/api/auth/sign-up", map[string]any{
		"name": name, "email": email, "password": password, "confirmPassword": password,
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
}

func (e *testEnv) signIn(t *testing.T, email, password string, remember bool) (*httptest.ResponseRecorder, authData) {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/api/auth/sign-in", map[string]any{
		"email": email, "password": password, "remember": remember,
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	return rr, decodeAuth(t, rr)
}
