// Package cli implements the notekeeper command-line client: account
// registration, sign-in, token refresh and identity lookup against the
// HTTP API.
package cli

import (
	"bufio"
	"context"
	"io"
	"os"

	"github.com/dmitrijs2005/notekeeper/internal/client/client"
	"github.com/dmitrijs2005/notekeeper/internal/client/config"
	"github.com/dmitrijs2005/notekeeper/internal/client/tokenstore"
)

// API is the subset of client.Client the commands call.
type API interface {
	Register(ctx context.Context, name, email, password, confirm string) (*client.Identity, error)
	SignIn(ctx context.Context, email, password string, remember bool) (*client.AuthResult, error)
	Refresh(ctx context.Context, pair client.TokenPair) (*client.AuthResult, error)
	Me(ctx context.Context, accessToken string) (*client.Identity, error)
}

type SessionStore interface {
	Load() (*tokenstore.Session, error)
	Save(*tokenstore.Session) error
	Remove() error
}

// Prompt seams.
var (
	getSimpleText = GetSimpleText
	getPassword   = GetPassword
)

type App struct {
	config *config.Config
	api    API
	store  SessionStore
	reader *bufio.Reader
	out    io.Writer
}

// NewApp returns an App reading from stdin and writing to stdout. The API
// client and session store are built from config once flags are parsed.
func NewApp(c *config.Config) *App {
	return &App{config: c, reader: bufio.NewReader(os.Stdin), out: os.Stdout}
}

func (a *App) connect() {
	if a.api == nil {
		a.api = client.New(a.config.ServerURL, a.config.RequestTimeout)
	}
	if a.store == nil {
		a.store = tokenstore.NewFileStore(a.config.SessionFile)
	}
}
