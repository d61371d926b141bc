package session

import (
	"time"

	"github.com/dmitrijs2005/notekeeper/internal/server/auth"
	"github.com/dmitrijs2005/notekeeper/internal/server/models"
)

const (
	RememberLifetime = 7 * 24 * time.Hour
	DefaultLifetime  = 24 * time.Hour

	// RefreshThreshold is how close to access-token expiry a session gets
	// rotated.
	RefreshThreshold = 5 * time.Minute
)

// Record is the client-held session state. It is replaced wholesale on every
// rotation and never stored server-side.
type Record struct {
	User            models.Identity `json:"user"`
	Tokens          auth.TokenPair  `json:"tokens"`
	AccessExpiresAt time.Time       `json:"accessExpiresAt"`
	ExpiresAt       time.Time       `json:"expiresAt"`
	Remember        bool            `json:"remember"`
}

func Lifetime(remember bool) time.Duration {
	if remember {
		return RememberLifetime
	}
	return DefaultLifetime
}

func NewRecord(user models.Identity, pair auth.TokenPair, remember bool, now time.Time) Record {
	return Record{
		User:            user,
		Tokens:          pair,
		AccessExpiresAt: pair.AccessExpiresAt,
		ExpiresAt:       now.Add(Lifetime(remember)),
		Remember:        remember,
	}
}

// Rotate builds the replacement record after a token refresh. The remember
// choice carries over and the lifetime restarts from now.
func (r Record) Rotate(user models.Identity, pair auth.TokenPair, now time.Time) Record {
	return NewRecord(user, pair, r.Remember, now)
}

func (r Record) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

func (r Record) NeedsRefresh(now time.Time, threshold time.Duration) bool {
	return !now.Add(threshold).Before(r.AccessExpiresAt)
}
