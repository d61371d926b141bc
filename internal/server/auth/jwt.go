// Package auth issues and verifies the HS256 access/refresh token pair.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/notekeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims carries the user identity plus the discriminator that tells access
// tokens from refresh tokens.
type Claims struct {
	jwt.RegisteredClaims
	UserID string    `json:"userId"`
	Email  string    `json:"email"`
	Type   TokenType `json:"type"`
}

func (c *Claims) check(want TokenType) error {
	if c.UserID == "" || c.Email == "" {
		return errors.New("missing identity claims")
	}
	if c.Type != want {
		return fmt.Errorf("unexpected token type %q", c.Type)
	}
	return nil
}

// TokenPair is the access/refresh pair handed to clients.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`

	AccessExpiresAt time.Time `json:"-"`
}

type Config struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

type Issuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewIssuer(cfg Config) *Issuer {
	return &Issuer{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		now:           time.Now,
	}
}

// WithClock returns a copy of the issuer that reads time from now.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	c := *i
	c.now = now
	return &c
}

func (i *Issuer) AccessTTL() time.Duration { return i.accessTTL }

func (i *Issuer) IssueAccessToken(userID, email string) (string, error) {
	tok, _, err := i.sign(userID, email, TokenTypeAccess, i.accessSecret, i.accessTTL)
	return tok, err
}

func (i *Issuer) IssueRefreshToken(userID, email string) (string, error) {
	tok, _, err := i.sign(userID, email, TokenTypeRefresh, i.refreshSecret, i.refreshTTL)
	return tok, err
}

func (i *Issuer) IssuePair(userID, email string) (TokenPair, error) {
	access, exp, err := i.sign(userID, email, TokenTypeAccess, i.accessSecret, i.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, _, err := i.sign(userID, email, TokenTypeRefresh, i.refreshSecret, i.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{Access: access, Refresh: refresh, AccessExpiresAt: exp}, nil
}

func (i *Issuer) sign(userID, email string, typ TokenType, secret []byte, ttl time.Duration) (string, time.Time, error) {
	if userID == "" || email == "" {
		return "", time.Time{}, errors.New("token subject is empty")
	}

	now := i.now()
	exp := now.Add(ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		UserID: userID,
		Email:  email,
		Type:   typ,
	})

	s, err := token.SignedString(secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", typ, err)
	}
	return s, jwt.NewNumericDate(exp).Time, nil
}

// VerifyAccessToken checks signature, expiry and type of an access token.
func (i *Issuer) VerifyAccessToken(token string) (*Claims, error) {
	return i.parse(token, TokenTypeAccess, i.accessSecret)
}

// VerifyRefreshToken checks signature, expiry and type of a refresh token.
func (i *Issuer) VerifyRefreshToken(token string) (*Claims, error) {
	return i.parse(token, TokenTypeRefresh, i.refreshSecret)
}

// DecodeAccessToken verifies the signature and type of an access token but
// accepts it after expiry. Refresh uses it to bind the pair.
func (i *Issuer) DecodeAccessToken(token string) (*Claims, error) {
	return i.parse(token, TokenTypeAccess, i.accessSecret, jwt.WithoutClaimsValidation())
}

func (i *Issuer) parse(token string, want TokenType, secret []byte, extra ...jwt.ParserOption) (*Claims, error) {
	if token == "" {
		return nil, common.ErrInvalidToken
	}

	opts := append([]jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
	}, extra...)

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return nil, common.ErrInvalidToken
	}
	if err := claims.check(want); err != nil {
		return nil, common.ErrInvalidToken
	}
	return claims, nil
}
