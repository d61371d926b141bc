package session

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dmitrijs2005/notekeeper/internal/common"
)

type CookieOptions struct {
	Name   string
	Secure bool
}

// Store ties the envelope to the session cookie.
type Store struct {
	env    *Envelope
	cookie CookieOptions
	now    func() time.Time
}

func NewStore(secret string, opts CookieOptions) (*Store, error) {
	env, err := NewEnvelope(secret)
	if err != nil {
		return nil, err
	}
	if opts.Name == "" {
		opts.Name = common.SessionCookieName
	}
	return &Store{env: env, cookie: opts, now: time.Now}, nil
}

// WithClock returns a copy of the store reading time from now.
func (s *Store) WithClock(now func() time.Time) *Store {
	c := *s
	c.now = now
	return &c
}

func (s *Store) CookieName() string { return s.cookie.Name }

func (s *Store) Seal(rec Record) (string, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("marshal session: %w", err)
	}
	return s.env.Encrypt(string(b))
}

// Open fails closed: undecryptable blobs, unparsable JSON, records without a
// user and expired records all read as "no session".
func (s *Store) Open(blob string) (Record, bool) {
	plain, ok := s.env.Decrypt(blob)
	if !ok {
		return Record{}, false
	}

	var rec Record
	if err := json.Unmarshal([]byte(plain), &rec); err != nil {
		return Record{}, false
	}
	if rec.User.ID == "" || rec.Tokens.Refresh == "" || rec.Expired(s.now()) {
		return Record{}, false
	}
	return rec, true
}

// Write seals rec and sets it as the session cookie.
func (s *Store) Write(w http.ResponseWriter, rec Record) error {
	value, err := s.Seal(rec)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookie.Name,
		Value:    value,
		Path:     "/",
		Expires:  rec.ExpiresAt,
		HttpOnly: true,
		Secure:   s.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Read returns the session carried by the request, if any.
func (s *Store) Read(r *http.Request) (Record, bool) {
	c, err := r.Cookie(s.cookie.Name)
	if err != nil || c.Value == "" {
		return Record{}, false
	}
	return s.Open(c.Value)
}

func (s *Store) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookie.Name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
