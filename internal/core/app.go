package core

import (
	"database/sql"
	"fmt"
	"net/http"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/vrsandeep/vmfa-addons/internal/addons"
	"github.com/vrsandeep/vmfa-addons/internal/assets"
	"github.com/vrsandeep/vmfa-addons/internal/auth"
	"github.com/vrsandeep/vmfa-addons/internal/config"
	"github.com/vrsandeep/vmfa-addons/internal/db"
	"github.com/vrsandeep/vmfa-addons/internal/host"
	"github.com/vrsandeep/vmfa-addons/internal/jobs"
	"github.com/vrsandeep/vmfa-addons/internal/store"
	"github.com/vrsandeep/vmfa-addons/internal/websocket"
)

// Version is overridden at build time with -ldflags.
var Version = "dev"

// App holds the core components of the application that are shared
// between the server, the background jobs and the CLI.
type App struct {
	config     *config.Config
	db         *sql.DB
	logger     *zap.Logger
	store      *store.Store
	wsHub      *websocket.Hub
	jobManager *jobs.JobManager
	plugins    *host.PluginDir
	watcher    *host.Watcher
	fetcher    *addons.Fetcher
	resolver   *addons.Resolver
	manager    *addons.Manager
	dispatcher *addons.Dispatcher
	tokens     *auth.TokenIssuer
	scheduler  *gocron.Scheduler
	version    string
}

type appOptions struct {
	httpClient *http.Client
	version    string
}

// Option customizes NewApp.
type Option func(*appOptions)

// WithHTTPClient sets the client used for release, readme and package
// downloads.
func WithHTTPClient(client *http.Client) Option {
	return func(o *appOptions) { o.httpClient = client }
}

// WithVersion overrides the reported application version.
func WithVersion(version string) Option {
	return func(o *appOptions) { o.version = version }
}

// New sets up and returns a new App instance. It handles loading the
// configuration, initializing the database connection, and running migrations.
func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := NewLogger(cfg)
	if err != nil {
		return nil, err
	}

	database, err := db.InitDB(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := db.RunMigrations(database, assets.MigrationsFS, logger); err != nil {
		// We can't proceed without a valid database schema.
		database.Close()
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}

	app, err := NewApp(cfg, database, logger)
	if err != nil {
		database.Close()
		return nil, err
	}
	logger.Info("core application setup complete", zap.String("version", app.version))
	return app, nil
}

// NewApp wires the add-on manager around an open, migrated database.
func NewApp(cfg *config.Config, database *sql.DB, logger *zap.Logger, opts ...Option) (*App, error) {
	o := appOptions{version: Version}
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	st := store.New(database)

	plugins, err := host.NewPluginDir(cfg.Plugins.Path, st, o.httpClient, host.Options{
		Multisite:      cfg.Host.Multisite,
		InstallTimeout: cfg.Addons.InstallTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open plugin directory: %w", err)
	}

	tokens, err := auth.NewTokenIssuer(cfg.Auth.Secret)
	if err != nil {
		return nil, err
	}

	cache := st.Transients(func(op, key string, err error) {
		logger.Warn("transient cache error", zap.String("op", op), zap.String("key", key), zap.Error(err))
	})
	fetcher := addons.NewFetcher(cache, o.httpClient, addons.FetcherOptions{
		Namespace: cfg.Addons.Namespace,
		TTL:       cfg.Addons.CacheTTL,
		Timeout:   cfg.Addons.FetchTimeout,
		APIBase:   cfg.Addons.APIBase,
	}, logger)

	hub := websocket.NewHub().WithLogger(logger)
	go hub.Run()

	manager := addons.NewManager(plugins, plugins, fetcher, logger)

	jm := jobs.NewManager(logger)
	jobs.RegisterDefaults(jm)

	return &App{
		config:     cfg,
		db:         database,
		logger:     logger,
		store:      st,
		wsHub:      hub,
		jobManager: jm,
		plugins:    plugins,
		fetcher:    fetcher,
		resolver:   addons.NewResolver(plugins, fetcher, fetcher, cfg.Host.Version),
		manager:    manager,
		dispatcher: addons.NewDispatcher(manager, tokens, hub, logger),
		tokens:     tokens,
		version:    o.version,
	}, nil
}

func (a *App) Config() *config.Config         { return a.config }
func (a *App) DB() *sql.DB                    { return a.db }
func (a *App) Logger() *zap.Logger            { return a.logger }
func (a *App) Store() *store.Store            { return a.store }
func (a *App) WsHub() *websocket.Hub          { return a.wsHub }
func (a *App) JobManager() *jobs.JobManager   { return a.jobManager }
func (a *App) Plugins() *host.PluginDir       { return a.plugins }
func (a *App) Fetcher() *addons.Fetcher       { return a.fetcher }
func (a *App) Resolver() *addons.Resolver     { return a.resolver }
func (a *App) Manager() *addons.Manager       { return a.manager }
func (a *App) Dispatcher() *addons.Dispatcher { return a.dispatcher }
func (a *App) Tokens() *auth.TokenIssuer      { return a.tokens }
func (a *App) Version() string                { return a.version }

// StartBackground starts the job scheduler and the plugin directory
// watcher. It is used by the server only; the CLI runs jobs on demand.
func (a *App) StartBackground() error {
	scheduler, err := jobs.StartScheduler(a)
	if err != nil {
		return err
	}
	a.scheduler = scheduler

	a.watcher = host.NewWatcher(a.plugins, a.config.Addons.WatchDebounce, func() {
		if err := a.wsHub.BroadcastJSON(map[string]string{"type": "plugins_changed"}); err != nil {
			a.logger.Warn("failed to broadcast plugin directory change", zap.Error(err))
		}
	}, a.logger)
	if err := a.watcher.Start(); err != nil {
		a.logger.Warn("plugin directory watcher disabled", zap.Error(err))
		a.watcher = nil
	}
	return nil
}

// Close gracefully releases the application's resources.
func (a *App) Close() {
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.watcher != nil {
		_ = a.watcher.Stop()
	}
	if a.wsHub != nil {
		a.wsHub.Stop()
	}
	if a.db != nil {
		a.db.Close()
	}
	_ = a.logger.Sync()
}

var _ jobs.JobContext = (*App)(nil)
