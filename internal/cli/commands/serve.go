package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/conduit-admin/internal/admin"
	"github.com/conduit-lang/conduit-admin/internal/admin/i18n"
	"github.com/conduit-lang/conduit-admin/internal/admin/manifest"
	"github.com/conduit-lang/conduit-admin/internal/admin/models"
	"github.com/conduit-lang/conduit-admin/internal/admin/providers/login"
	"github.com/conduit-lang/conduit-admin/internal/admin/resources"
	"github.com/conduit-lang/conduit-admin/internal/admin/upload"
	"github.com/conduit-lang/conduit-admin/internal/cli/config"
	"github.com/conduit-lang/conduit-admin/internal/logging"
	"github.com/conduit-lang/conduit-admin/internal/orm/db"
	"github.com/conduit-lang/conduit-admin/internal/orm/migrate"
	"github.com/conduit-lang/conduit-admin/internal/orm/schema"
	"github.com/conduit-lang/conduit-admin/internal/web/auth"
	"github.com/conduit-lang/conduit-admin/internal/web/cache"
	"github.com/conduit-lang/conduit-admin/internal/web/profiling"
	"github.com/conduit-lang/conduit-admin/internal/web/ratelimit"
	"github.com/conduit-lang/conduit-admin/internal/web/server"
)

// NewServeCommand creates the serve command
func NewServeCommand(opts *globalOptions) *cobra.Command {
	var address string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the admin server",
		Long: `Start the admin dashboard.

The database is migrated first unless database.migrate is false. The server
stops gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if address != "" {
				cfg.Server.Address = address
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&address, "address", "a", "", "listen address, overrides server.address")

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	conn, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	if cfg.Database.Migrate {
		if err := migrate.Up(conn, logger); err != nil {
			return err
		}
	}

	store, err := cache.Open(ctx, cfg.Redis.URL, cache.CacheConfig{DefaultTTL: cfg.Auth.TokenTTL, Prefix: cfg.Redis.Prefix})
	if err != nil {
		return err
	}
	defer store.Close()

	app, err := BuildAdmin(cfg, conn, store, logger)
	if err != nil {
		return err
	}
	srv, err := NewServer(cfg.Server, app)
	if err != nil {
		return err
	}

	logger.Info("admin ready",
		zap.String("admin_path", app.Path()),
		zap.String("database", conn.Driver),
	)
	shutdown := server.NewGracefulShutdown(srv, &server.ShutdownConfig{
		Timeout: cfg.Server.ShutdownTimeout,
		Logger:  logger,
	})
	if cfg.Server.DebugAddress != "" {
		debug, err := NewDebugServer(cfg.Server.DebugAddress)
		if err != nil {
			return err
		}
		if err := debug.Listen(); err != nil {
			return err
		}
		go func() {
			logger.Info("debug server listening", zap.String("address", debug.Addr()))
			if err := debug.Serve(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("debug server failed", zap.Error(err))
			}
		}()
		shutdown.RegisterHook(debug.Shutdown)
	}
	return shutdown.Run(ctx)
}

// NewDebugServer serves pprof and runtime statistics on address
func NewDebugServer(address string) (*server.Server, error) {
	config := server.DefaultConfig(profiling.Handler(profiling.DefaultConfig()))
	config.Address = address
	// CPU profiles and traces stream for up to 30s by default
	config.WriteTimeout = 2 * time.Minute
	return server.New(config)
}

// newLoginLimiter shares the Redis cache connection when there is one so that
// every instance counts the same attempts
func newLoginLimiter(cfg config.AuthConfig, store cache.Cache) (ratelimit.Limiter, error) {
	if cfg.LoginAttempts <= 0 {
		return nil, nil
	}
	rl := ratelimit.Config{Limit: cfg.LoginAttempts, Window: cfg.LoginWindow, Prefix: "ratelimit:login:"}
	if rc, ok := store.(*cache.RedisCache); ok {
		return ratelimit.NewRedis(rc.Client(), rl)
	}
	return ratelimit.NewMemory(rl)
}

func openDB(ctx context.Context, cfg *config.Config) (*db.DB, error) {
	dbConfig := db.DefaultConfig(cfg.Database.URL)
	dbConfig.Driver = cfg.Database.Driver
	dbConfig.MaxOpenConns = cfg.Database.MaxOpenConns
	dbConfig.MaxIdleConns = cfg.Database.MaxIdleConns
	return db.Open(ctx, dbConfig)
}

// BuildAdmin assembles the admin app from the configuration: the admins model,
// the manifest, uploads and the login provider
func BuildAdmin(cfg *config.Config, conn *db.DB, store cache.Cache, logger *zap.Logger) (*admin.App, error) {
	registry := schema.NewRegistry()
	admins := models.NewAdminStore(conn.DB, conn.Dialect)
	if err := registry.Register(admins.Schema()); err != nil {
		return nil, err
	}

	res, err := loadResources(cfg, registry, conn, logger)
	if err != nil {
		return nil, err
	}

	up, err := newUpload(cfg.Upload)
	if err != nil {
		return nil, err
	}

	translator, err := i18n.New()
	if err != nil {
		return nil, err
	}
	translator.Restrict(cfg.Admin.Languages...)

	secret := cfg.Auth.Secret
	if secret == "" {
		// tokens signed with a random secret do not survive a restart
		if secret, err = auth.RandomString(32, false); err != nil {
			return nil, err
		}
		logger.Warn("auth.secret is empty, using a random secret")
	}
	limiter, err := newLoginLimiter(cfg.Auth, store)
	if err != nil {
		return nil, err
	}
	provider := login.New(admins, auth.NewTokenService(secret), login.Config{
		CookieName:   cfg.Auth.CookieName,
		TokenTTL:     cfg.Auth.TokenTTL,
		RememberTTL:  cfg.Auth.RememberTTL,
		LoginLogoURL: cfg.Admin.LogoURL,
		LoginTitle:   cfg.Admin.Title,
		Limiter:      limiter,
		Logger:       logger,
	})

	app := admin.New(admin.Config{
		Path:             cfg.Admin.Path,
		Title:            cfg.Admin.Title,
		LogoURL:          cfg.Admin.LogoURL,
		FaviconURL:       cfg.Admin.FaviconURL,
		DefaultLanguage:  cfg.Admin.DefaultLanguage,
		TemplateFolders:  cfg.Admin.TemplateFolders,
		Logger:           logger,
		EnableStackTrace: cfg.Log.Development,
	})
	err = app.Configure(admin.Options{
		DB:         conn.DB,
		Dialect:    conn.Dialect,
		Registry:   registry,
		Resources:  res,
		Cache:      store,
		Translator: translator,
		Upload:     up,
		Providers:  []admin.Provider{provider},
	})
	if err != nil {
		return nil, err
	}
	return app, nil
}

// loadResources builds the navigation from the manifest. Without a manifest
// the dashboard only manages admins.
func loadResources(cfg *config.Config, registry *schema.Registry, conn *db.DB, logger *zap.Logger) ([]resources.Resource, error) {
	m, err := manifest.Load(cfg.Manifest)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn("manifest not found, only admins are managed", zap.String("manifest", cfg.Manifest))
		adminSchema, _ := registry.Get("admin")
		return defaultResources(cfg.Admin.Path, adminSchema), nil
	}
	if err != nil {
		return nil, err
	}

	built, err := m.Build(manifest.BuildOptions{
		Registry: registry,
		DB:       conn.DB,
		Dialect:  conn.Dialect,
		Related:  admin.RelatedOptions(registry, conn.DB, conn.Dialect),
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.Manifest, err)
	}
	return built.Resources, nil
}

func defaultResources(adminPath string, adminSchema *schema.ModelSchema) []resources.Resource {
	admins := resources.NewModel(adminSchema, "fas fa-user")
	admins.Fields = []*resources.Field{
		{Name: "id"},
		{Name: "username"},
		{Name: "password"},
		{Name: "avatar"},
		{Name: "created_at"},
	}
	return []resources.Resource{
		resources.NewLink("Dashboard", "fas fa-home", adminPath),
		admins,
	}
}

func newUpload(cfg config.UploadConfig) (*upload.FileUpload, error) {
	opts := []upload.Option{
		upload.WithMaxSize(cfg.MaxSize),
		upload.WithAllowExtensions(cfg.AllowExtensions...),
	}
	if cfg.Prefix != "" {
		opts = append(opts, upload.WithPrefix(cfg.Prefix))
	}
	if cfg.S3.Bucket != "" {
		storage, err := upload.NewS3Storage(upload.S3Config{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			PathStyle: cfg.S3.PathStyle,
		})
		if err != nil {
			return nil, err
		}
		opts = append(opts, upload.WithStorage(storage))
		if cfg.S3.PublicURL != "" {
			opts = append(opts, upload.WithPrefix(cfg.S3.PublicURL))
		}
	}
	return upload.New(cfg.Dir, opts...), nil
}

// rootHandler is the admin handler; requests for "/" are sent to the dashboard
func rootHandler(app *admin.App) (http.Handler, error) {
	handler, err := app.Handler()
	if err != nil {
		return nil, err
	}
	if app.Path() == "/" {
		return handler, nil
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			http.Redirect(w, r, app.Path()+"/", http.StatusFound)
			return
		}
		handler.ServeHTTP(w, r)
	}), nil
}

// NewServer creates the HTTP server for app
func NewServer(cfg config.ServerConfig, app *admin.App) (*server.Server, error) {
	handler, err := rootHandler(app)
	if err != nil {
		return nil, err
	}
	serverConfig := server.DefaultConfig(handler)
	serverConfig.Address = cfg.Address
	serverConfig.ReadTimeout = cfg.ReadTimeout
	serverConfig.WriteTimeout = cfg.WriteTimeout
	serverConfig.IdleTimeout = cfg.IdleTimeout
	return server.New(serverConfig)
}
