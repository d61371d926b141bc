// Package httpapi is the HTTP boundary of the server: JSON request decoding,
// the response envelope, the session cookie and the route table.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/notekeeper/internal/common"
	"github.com/dmitrijs2005/notekeeper/internal/logging"
	"github.com/dmitrijs2005/notekeeper/internal/server/metrics"
	"github.com/dmitrijs2005/notekeeper/internal/server/models"
	"github.com/dmitrijs2005/notekeeper/internal/server/services"
	"github.com/dmitrijs2005/notekeeper/internal/server/session"
)

const maxBodyBytes = 1 << 20

// AuthService is the part of services.UserService the handlers use.
type AuthService interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.Identity, error)
	SignIn(ctx context.Context, in services.SignInInput) (*services.AuthResult, error)
	Refresh(ctx context.Context, accessToken, refreshToken string) (*services.AuthResult, error)
	Me(ctx context.Context, accessToken string) (*models.Identity, error)
	Ping(ctx context.Context) error
}

type Handler struct {
	svc      AuthService
	sessions *session.Store
	metrics  *metrics.Metrics
	logger   logging.Logger
	now      func() time.Time
}

func NewHandler(svc AuthService, sessions *session.Store, mt *metrics.Metrics, logger logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Handler{
		svc:      svc,
		sessions: sessions,
		metrics:  mt,
		logger:   logger.With("module", "httpapi"),
		now:      time.Now,
	}
}

// WithClock returns a copy of the handler stamping responses and sessions
// with now.
func (h *Handler) WithClock(now func() time.Time) *Handler {
	c := *h
	c.now = now
	c.sessions = h.sessions.WithClock(now)
	return &c
}

type signUpRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Remember bool   `json:"remember"`
}

type refreshRequest struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type sessionResponse struct {
	User      models.Identity `json:"user"`
	ExpiresAt time.Time       `json:"expiresAt"`
}

// decode reads a JSON body. An empty body leaves dst untouched when
// allowEmpty is set.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
	if err == nil || (allowEmpty && errors.Is(err, io.EOF)) {
		return true
	}
	h.failure(w, http.StatusBadRequest, TypeValidation, item("malformed JSON body", "body"))
	return false
}

func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if !h.decode(w, r, &req, false) {
		return
	}

	id, err := h.svc.Register(r.Context(), services.RegisterInput{
		Name:            req.Name,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.success(w, http.StatusCreated, "user registered", id)
}

func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if !h.decode(w, r, &req, false) {
		return
	}

	res, err := h.svc.SignIn(r.Context(), services.SignInInput{Email: req.Email, Password: req.Password})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	rec := session.NewRecord(res.User, res.Tokens, req.Remember, h.now())
	if err := h.sessions.Write(w, rec); err != nil {
		h.fail(w, r, err)
		return
	}

	h.success(w, http.StatusOK, "signed in", res)
}

// Refresh rotates the pair given in the body or, failing that, the pair
// held in the session cookie. A cookie-backed session is re-sealed.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !h.decode(w, r, &req, true) {
		return
	}

	var rec session.Record
	fromCookie := false
	if req.Access == "" && req.Refresh == "" {
		rec, fromCookie = h.sessions.Read(r)
		if !fromCookie {
			h.failure(w, http.StatusUnauthorized, TypeClient, item("no session", ""))
			return
		}
		req.Access, req.Refresh = rec.Tokens.Access, rec.Tokens.Refresh
	}

	res, err := h.svc.Refresh(r.Context(), req.Access, req.Refresh)
	if err != nil {
		if fromCookie {
			h.sessions.Clear(w)
		}
		h.fail(w, r, err)
		return
	}

	if fromCookie {
		if err := h.sessions.Write(w, rec.Rotate(res.User, res.Tokens, h.now())); err != nil {
			h.fail(w, r, err)
			return
		}
	}

	h.success(w, http.StatusOK, "tokens refreshed", res)
}

func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	h.sessions.Clear(w)
	h.success(w, http.StatusOK, "signed out", nil)
}

// Session reports the current cookie session, rotating its tokens when the
// access token is about to expire. Any failure clears the cookie.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.sessions.Read(r)
	if !ok {
		h.sessions.Clear(w)
		h.failure(w, http.StatusUnauthorized, TypeClient, item("no session", ""))
		return
	}

	now := h.now()
	if rec.NeedsRefresh(now, session.RefreshThreshold) {
		res, err := h.svc.Refresh(r.Context(), rec.Tokens.Access, rec.Tokens.Refresh)
		if err != nil {
			// Only a rejected refresh ends the session; an outage keeps the cookie.
			if errors.Is(err, common.ErrorUnauthorized) {
				h.metrics.SessionRotation(metrics.OutcomeRejected)
				h.sessions.Clear(w)
			} else {
				h.metrics.SessionRotation(metrics.OutcomeError)
			}
			h.fail(w, r, err)
			return
		}
		rec = rec.Rotate(res.User, res.Tokens, now)
		if err := h.sessions.Write(w, rec); err != nil {
			h.fail(w, r, err)
			return
		}
		h.metrics.SessionRotation(metrics.OutcomeSuccess)
	}

	h.success(w, http.StatusOK, "session active", sessionResponse{User: rec.User, ExpiresAt: rec.ExpiresAt})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		h.failure(w, http.StatusUnauthorized, TypeClient, item("missing bearer token", ""))
		return
	}

	id, err := h.svc.Me(r.Context(), token)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.success(w, http.StatusOK, "current user", id)
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Ping(r.Context()); err != nil {
		h.logger.Warn(r.Context(), "health check failed", "error", err)
		h.failure(w, http.StatusServiceUnavailable, TypeServer, item("database unavailable", ""))
		return
	}
	h.success(w, http.StatusOK, "ok", nil)
}

func bearerToken(r *http.Request) (string, bool) {
	const prefix = "bearer "
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(v) <= len(prefix) || !strings.EqualFold(v[:len(prefix)], prefix) {
		return "", false
	}
	tok := strings.TrimSpace(v[len(prefix):])
	return tok, tok != ""
}
