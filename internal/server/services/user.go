// Package services contains server-side business logic. This file implements
// UserService: registration, credential sign-in, refresh-token rotation and
// identity lookup for bearer tokens.
package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/notekeeper/internal/common"
	"github.com/dmitrijs2005/notekeeper/internal/dbx"
	"github.com/dmitrijs2005/notekeeper/internal/logging"
	"github.com/dmitrijs2005/notekeeper/internal/server/auth"
	"github.com/dmitrijs2005/notekeeper/internal/server/metrics"
	"github.com/dmitrijs2005/notekeeper/internal/server/models"
	"github.com/dmitrijs2005/notekeeper/internal/server/repositories/repomanager"
	"github.com/oklog/ulid/v2"
	"golang.org/x/crypto/bcrypt"
)

// Authentication failures. All of them match common.ErrorUnauthorized and
// are surfaced to callers with one generic message per category.
var (
	ErrInvalidCredentials  = fmt.Errorf("%w: invalid email or password", common.ErrorUnauthorized)
	ErrInvalidAccessToken  = fmt.Errorf("%w: invalid access token", common.ErrorUnauthorized)
	ErrInvalidRefreshToken = fmt.Errorf("%w: invalid or expired refresh token", common.ErrorUnauthorized)
	ErrTokenMismatch       = fmt.Errorf("%w: token mismatch", common.ErrorUnauthorized)
	ErrUserNotFound        = fmt.Errorf("%w: user not found", common.ErrorUnauthorized)
)

// bcrypt refuses longer inputs.
const maxPasswordBytes = 72

type RegisterInput struct {
	Name            string
	Email           string
	Password        string
	ConfirmPassword string
}

type SignInInput struct {
	Email    string
	Password string
}

// AuthResult is what sign-in and refresh hand back: the sanitized identity
// and a fresh token pair.
type AuthResult struct {
	User   models.Identity `json:"user"`
	Tokens auth.TokenPair  `json:"token"`
}

type UserService struct {
	db          dbx.Connector
	repomanager repomanager.RepositoryManager
	issuer      *auth.Issuer
	hashCost    int
	dummyHash   []byte
	metrics     *metrics.Metrics
	logger      logging.Logger
	newID       func() string
}

// NewUserService constructs a UserService. hashCost is the bcrypt cost used
// for new passwords and for the dummy hash compared against on unknown
// emails.
func NewUserService(db dbx.Connector, m repomanager.RepositoryManager, issuer *auth.Issuer, hashCost int, mt *metrics.Metrics, logger logging.Logger) (*UserService, error) {
	dummy, err := bcrypt.GenerateFromPassword([]byte(rand.Text()), hashCost)
	if err != nil {
		return nil, fmt.Errorf("dummy hash: %w", err)
	}
	if logger == nil {
		logger = logging.Nop{}
	}
	return &UserService{
		db:          db,
		repomanager: m,
		issuer:      issuer,
		hashCost:    hashCost,
		dummyHash:   dummy,
		metrics:     mt,
		logger:      logger.With("module", "services"),
		newID:       func() string { return ulid.Make().String() },
	}, nil
}

// ValidateRegistration checks the registration input shape.
func ValidateRegistration(in RegisterInput) error {
	v := &common.ValidationError{}
	if strings.TrimSpace(in.Name) == "" {
		v.Add("name", "name is required")
	}
	checkEmail(v, in.Email)
	checkPassword(v, in.Password)
	if in.Password != in.ConfirmPassword {
		v.Add("confirmPassword", "passwords do not match")
	}
	return v.OrNil()
}

// ValidateSignIn checks the sign-in input shape.
func ValidateSignIn(in SignInInput) error {
	v := &common.ValidationError{}
	checkEmail(v, in.Email)
	if in.Password == "" {
		v.Add("password", "password is required")
	}
	return v.OrNil()
}

func checkEmail(v *common.ValidationError, email string) {
	switch {
	case strings.TrimSpace(email) == "":
		v.Add("email", "email is required")
	case !common.IsValidEmail(email):
		v.Add("email", "invalid email address")
	}
}

func checkPassword(v *common.ValidationError, password string) {
	switch {
	case password == "":
		v.Add("password", "password is required")
	case len(password) > maxPasswordBytes:
		v.Add("password", fmt.Sprintf("password must be at most %d bytes", maxPasswordBytes))
	}
}

// Register creates a user and returns its identity. It never issues tokens.
// A taken email yields a *common.ConflictError on attr "email".
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.Identity, error) {
	if err := ValidateRegistration(in); err != nil {
		s.metrics.SignUp(metrics.OutcomeInvalid)
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		s.metrics.SignUp(metrics.OutcomeError)
		return nil, s.internal(ctx, "hash password", err)
	}

	db, err := s.db.Get(ctx)
	if err != nil {
		s.metrics.SignUp(metrics.OutcomeError)
		return nil, s.internal(ctx, "connect", err)
	}

	user := &models.User{
		ID:           s.newID(),
		Name:         strings.TrimSpace(in.Name),
		Email:        common.NormalizeEmail(in.Email),
		PasswordHash: string(hash),
	}

	var created *models.User
	err = dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)

		_, err := repo.GetUserByEmail(ctx, user.Email)
		switch {
		case err == nil:
			return &common.ConflictError{Attr: "email", Detail: "user with this email already exists"}
		case !errors.Is(err, common.ErrorNotFound):
			return err
		}

		created, err = repo.Create(ctx, user)
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			s.metrics.SignUp(metrics.OutcomeConflict)
			return nil, err
		}
		s.metrics.SignUp(metrics.OutcomeError)
		return nil, s.internal(ctx, "create user", err)
	}

	s.metrics.SignUp(metrics.OutcomeSuccess)
	s.logger.Info(ctx, "user registered", "user_id", created.ID)

	id := created.Identity()
	return &id, nil
}

// SignIn checks the credentials and issues a token pair. Unknown email and
// wrong password produce the same error and cost the same bcrypt work.
func (s *UserService) SignIn(ctx context.Context, in SignInInput) (*AuthResult, error) {
	if err := ValidateSignIn(in); err != nil {
		s.metrics.SignIn(metrics.OutcomeInvalid)
		return nil, err
	}

	db, err := s.db.Get(ctx)
	if err != nil {
		s.metrics.SignIn(metrics.OutcomeError)
		return nil, s.internal(ctx, "connect", err)
	}

	user, err := s.repomanager.Users(db).GetUserByEmail(ctx, common.NormalizeEmail(in.Email))
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		s.metrics.SignIn(metrics.OutcomeError)
		return nil, s.internal(ctx, "lookup user", err)
	}

	hash := s.dummyHash
	if user != nil && user.PasswordHash != "" {
		hash = []byte(user.PasswordHash)
	}
	match := bcrypt.CompareHashAndPassword(hash, []byte(in.Password)) == nil

	if user == nil || user.PasswordHash == "" || !match {
		s.metrics.SignIn(metrics.OutcomeRejected)
		return nil, ErrInvalidCredentials
	}

	res, err := s.issue(ctx, user)
	if err != nil {
		s.metrics.SignIn(metrics.OutcomeError)
		return nil, err
	}
	s.metrics.SignIn(metrics.OutcomeSuccess)
	return res, nil
}

// Refresh exchanges an access token (expired or not) and a valid refresh
// token for a new pair. The old pair stays valid until it expires.
func (s *UserService) Refresh(ctx context.Context, accessToken, refreshToken string) (*AuthResult, error) {
	res, err := s.refresh(ctx, accessToken, refreshToken)
	switch {
	case err == nil:
		s.metrics.Refresh(metrics.OutcomeSuccess)
	case errors.Is(err, common.ErrorUnauthorized):
		s.metrics.Refresh(metrics.OutcomeRejected)
	default:
		s.metrics.Refresh(metrics.OutcomeError)
	}
	return res, err
}

func (s *UserService) refresh(ctx context.Context, accessToken, refreshToken string) (*AuthResult, error) {
	access, err := s.issuer.DecodeAccessToken(accessToken)
	if err != nil {
		return nil, ErrInvalidAccessToken
	}

	refresh, err := s.issuer.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	if access.UserID != refresh.UserID || access.Email != refresh.Email {
		s.logger.Warn(ctx, "refresh with mismatched tokens", "access_user", access.UserID, "refresh_user", refresh.UserID)
		return nil, ErrTokenMismatch
	}

	db, err := s.db.Get(ctx)
	if err != nil {
		return nil, s.internal(ctx, "connect", err)
	}

	user, err := s.repomanager.Users(db).GetUserByEmail(ctx, refresh.Email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, s.internal(ctx, "lookup user", err)
	}
	// the email may have been re-registered by someone else since issuance
	if user.ID != refresh.UserID {
		return nil, ErrUserNotFound
	}

	return s.issue(ctx, user)
}

// Me resolves a live access token to the identity it was issued for.
func (s *UserService) Me(ctx context.Context, accessToken string) (*models.Identity, error) {
	claims, err := s.issuer.VerifyAccessToken(accessToken)
	if err != nil {
		return nil, ErrInvalidAccessToken
	}

	db, err := s.db.Get(ctx)
	if err != nil {
		return nil, s.internal(ctx, "connect", err)
	}

	user, err := s.repomanager.Users(db).GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, s.internal(ctx, "lookup user", err)
	}

	id := user.Identity()
	return &id, nil
}

// Ping checks that the database is reachable.
func (s *UserService) Ping(ctx context.Context) error {
	db, err := s.db.Get(ctx)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

// AccessTokenTTL is used by the session layer to schedule rotation.
func (s *UserService) AccessTokenTTL() time.Duration {
	return s.issuer.AccessTTL()
}

func (s *UserService) issue(ctx context.Context, user *models.User) (*AuthResult, error) {
	pair, err := s.issuer.IssuePair(user.ID, user.Email)
	if err != nil {
		return nil, s.internal(ctx, "issue tokens", err)
	}
	return &AuthResult{User: user.Identity(), Tokens: pair}, nil
}

// internal logs the cause and returns an error that only says "internal".
func (s *UserService) internal(ctx context.Context, op string, err error) error {
	s.logger.Error(ctx, "service failure", "op", op, "error", err)
	return fmt.Errorf("%s: %w", op, common.ErrorInternal)
}
