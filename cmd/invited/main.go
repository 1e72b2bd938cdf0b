package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/projecthub/invited/internal/config"
	"github.com/projecthub/invited/internal/database"
	"github.com/projecthub/invited/internal/datastore"
	"github.com/projecthub/invited/internal/invite"
	"github.com/projecthub/invited/internal/mailer"
	"github.com/projecthub/invited/internal/repository"
)

const shutdownTimeout = time.Second * 10

type App struct {
	cfg    *config.AppConfig
	logger *slog.Logger

	store   datastore.Store
	sender  mailer.Sender
	svc     *invite.Service
	dbm     *database.DatabaseManager
	members repository.MembersRepository
}

func NewApp(cfg *config.AppConfig) *App {
	return &App{
		cfg:    cfg,
		logger: slog.Default().With("logger", "app"),
	}
}

// Init builds the data store, the mailer and the invitation service.
func (app *App) Init() error {
	switch app.cfg.Backend() {
	case config.BackendRest:
		s := app.cfg.Data()
		app.store = datastore.NewRestStore(s, &http.Client{Timeout: s.Timeout})
		app.logger.Info("using data service at " + s.URL)
	case config.BackendLocal:
		db, err := database.GetDatabase(app.cfg.DB(), app.cfg.Debug())
		if err != nil {
			return fmt.Errorf("can't open database: %w", err)
		}

		app.dbm = database.New(db)

		if err := app.dbm.Migrate(); err != nil {
			return fmt.Errorf("migration error: %w", err)
		}

		app.members = repository.NewMembersFileRepo(app.cfg.MembersFile(), app.dbm)
		app.store = datastore.NewLocalStore(app.dbm, app.cfg.Data().JWTSecret)
		app.logger.Info("using local database " + app.cfg.DB())
	default:
		return fmt.Errorf("unknown data backend %q", app.cfg.Backend())
	}

	es := app.cfg.Email()

	sender, err := mailer.NewResendClient(es, &http.Client{Timeout: es.Timeout})

	switch {
	case err == nil:
		app.sender = sender
	case errors.Is(err, mailer.ErrNotConfigured):
		app.logger.Warn("email api key is not set, invitations will be rejected")
	default:
		return err
	}

	app.svc = invite.New(app.store, app.sender, invite.Settings{
		From:      es.From,
		Subject:   es.Subject,
		AcceptURL: es.AcceptURL,
	})

	return nil
}

func (app *App) Run(ctx context.Context) error {
	if app.members != nil {
		if err := app.members.Start(); err != nil {
			return fmt.Errorf("can't load members: %w", err)
		}

		defer app.members.Stop()
	}

	srv := NewHttp(app)

	errCh := make(chan error, 1)

	go func() {
		app.logger.Info("listening " + srv.Address())
		errCh <- srv.Listen()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	app.logger.Info("exiting...")

	return srv.Shutdown(shutdownTimeout)
}

func main() {
	fmt.Printf("version %s\n", getVersion())

	conf := flag.String("config", "invited.yml", "name of config file")
	debug := flag.Bool("debug", false, "debug")
	flag.Parse()

	cfg := config.NewAppConfig()
	cfg.Load(*conf)

	if err := cfg.LoadEnv("INVITED"); err != nil {
		fmt.Printf("error loading env: %s\n", err.Error())
		os.Exit(1)
	}

	if *debug {
		cfg.Set("debug", true)
	}

	var h slog.Handler
	if cfg.Debug() {
		h = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	} else {
		h = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	}

	slog.SetDefault(slog.New(h))

	if err := cfg.Validate(); err != nil {
		slog.Error("bad config", slog.Any("error", err))
		os.Exit(1)
	}

	app := NewApp(cfg)

	if err := app.Init(); err != nil {
		slog.Error("init error", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.Run(ctx); err != nil {
		slog.Error("server error", slog.Any("error", err))
		os.Exit(1)
	}
}
