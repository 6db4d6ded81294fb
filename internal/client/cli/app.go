package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/folio/internal/client/client"
	"github.com/dmitrijs2005/folio/internal/client/config"
	"github.com/dmitrijs2005/folio/internal/client/gate"
	"github.com/dmitrijs2005/folio/internal/client/models"
	"github.com/dmitrijs2005/folio/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/folio/internal/client/services"
	"github.com/dmitrijs2005/folio/internal/client/session"
	"github.com/dmitrijs2005/folio/internal/logging"
)

type authService interface {
	SignIn(ctx context.Context, email, password string) (session.Snapshot, error)
	SignUp(ctx context.Context, email, password, displayName string) (*models.Identity, error)
	SignOut(ctx context.Context) error
	Restore(ctx context.Context) error
}

type contentAPI interface {
	List(ctx context.Context, collection string) ([]models.Record, error)
	Create(ctx context.Context, collection string, in models.RecordInput) (*models.Record, error)
	Update(ctx context.Context, collection, id string, in models.RecordInput) (*models.Record, error)
	Delete(ctx context.Context, collection, id string) error
	UploadImage(ctx context.Context, collection, filename string, data []byte) (string, error)
	Analytics(ctx context.Context) (*models.Report, error)
}

type App struct {
	auth    authService
	content contentAPI
	store   *session.Store
	gate    *gate.Gate
	logger  logging.Logger

	reader *bufio.Reader
	out    io.Writer
	db     *sql.DB

	decision  gate.Decision
	uploading bool
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewText(os.Stderr, "warn")

	db, err := metadata.Open(ctx, c.LocalDBPath)
	if err != nil {
		return nil, fmt.Errorf("error initializing local database: %w", err)
	}

	api := client.New(c.ServerURL, c.RequestTimeout)
	store := session.NewStore(api, api, logger)
	auth := services.NewAuthService(api, store, metadata.NewSQLiteRepository(db), logger)
	api.OnTokens = auth.RememberTokens

	return &App{
		auth:    auth,
		content: api,
		store:   store,
		gate:    gate.New(store),
		logger:  logger,
		reader:  bufio.NewReader(os.Stdin),
		out:     os.Stdout,
		db:      db,
	}, nil
}

func (a *App) isLoggedIn() bool {
	return a.store.Snapshot().Identity != nil
}

func (a *App) status() string {
	if a.uploading {
		return "(uploading…) "
	}
	s := a.store.Snapshot()
	switch {
	case s.Loading:
		return "(loading) "
	case s.Identity == nil:
		return ""
	default:
		return fmt.Sprintf("(%s %s) ", s.Identity.Email, s.Role)
	}
}

// watchGate tracks the gate decision and tells the user when the dashboard
// is taken away from them.
func (a *App) watchGate() func() {
	return a.gate.Watch(func(d gate.Decision) {
		prev := a.decision
		a.decision = d
		if prev == gate.Admit && d == gate.Redirect {
			fmt.Fprintln(a.out, "Signed out.")
		}
	})
}

func (a *App) Run(ctx context.Context) {
	defer a.Close()

	unwatch := a.watchGate()
	defer unwatch()

	fmt.Fprintln(a.out, "folio admin (type 'help' for commands)")

	if err := a.auth.Restore(ctx); err != nil {
		fmt.Fprintln(a.out, "Could not restore the previous session:", describeError(err))
	}

	runREPL(ctx, a, a.status, bufio.NewScanner(a.reader))
}

func (a *App) Close() {
	if a.db != nil {
		_ = a.db.Close()
	}
}
