// Package login provides username/password authentication for the admin:
// login and logout pages, first-admin setup, password changes and the
// middleware that turns the access token cookie into the current admin.
package login

import (
	"context"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/conduit-lang/conduit-admin/internal/admin/depends"
	"github.com/conduit-lang/conduit-admin/internal/admin/models"
	"github.com/conduit-lang/conduit-admin/internal/admin/template"
	"github.com/conduit-lang/conduit-admin/internal/orm/crud"
	"github.com/conduit-lang/conduit-admin/internal/web/auth"
	"github.com/conduit-lang/conduit-admin/internal/web/cache"
	webcontext "github.com/conduit-lang/conduit-admin/internal/web/context"
	"github.com/conduit-lang/conduit-admin/internal/web/middleware"
	"github.com/conduit-lang/conduit-admin/internal/web/ratelimit"
	"github.com/conduit-lang/conduit-admin/internal/web/response"
	"github.com/conduit-lang/conduit-admin/internal/web/router"
)

const (
	// AccessToken is the default name of the session cookie
	AccessToken = "access_token"

	DefaultTokenTTL    = time.Hour
	DefaultRememberTTL = 30 * 24 * time.Hour

	LoginPath    = "/login"
	LogoutPath   = "/logout"
	InitPath     = "/init"
	PasswordPath = "/password"

	LoginTemplate    = "providers/login/login.html"
	InitTemplate     = "providers/login/init.html"
	PasswordTemplate = "providers/login/password.html"

	tokenKeyPrefix = "login:token:"
)

// Config configures the provider; zero values select the defaults
type Config struct {
	CookieName  string
	TokenTTL    time.Duration
	RememberTTL time.Duration

	// LoginLogoURL and LoginTitle customize the login page
	LoginLogoURL string
	LoginTitle   string

	// Limiter throttles login attempts per client address; nil disables it
	Limiter ratelimit.Limiter

	Logger *zap.Logger
}

// Provider authenticates admins stored in the admins table
type Provider struct {
	store  *models.AdminStore
	tokens *auth.TokenService
	config Config
	logger *zap.Logger
}

// New creates a provider over store, signing tokens with tokens
func New(store *models.AdminStore, tokens *auth.TokenService, config Config) *Provider {
	if config.CookieName == "" {
		config.CookieName = AccessToken
	}
	if config.TokenTTL <= 0 {
		config.TokenTTL = DefaultTokenTTL
	}
	if config.RememberTTL <= 0 {
		config.RememberTTL = DefaultRememberTTL
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{store: store, tokens: tokens, config: config, logger: logger}
}

// Name identifies the provider
func (p *Provider) Name() string {
	return "login_provider"
}

// CookieName is the session cookie name
func (p *Provider) CookieName() string {
	return p.config.CookieName
}

// Register adds the provider routes to the admin router
func (p *Provider) Register(r *router.Router) {
	r.Get(LoginPath, p.LoginView).Named("login")
	r.Post(LoginPath, p.Login)
	r.Get(LogoutPath, p.Logout).Named("logout")
	r.Get(InitPath, p.InitView).Named("init")
	r.Post(InitPath, p.Init)
	r.Get(PasswordPath, p.PasswordView).Named("password")
	r.Post(PasswordPath, p.Password)
}

func tokenKey(tokenID string) string {
	return tokenKeyPrefix + tokenID
}

func (p *Provider) loginContext(extra template.Context) template.Context {
	ctx := template.Context{
		"login_logo_url": p.config.LoginLogoURL,
		"login_title":    p.config.LoginTitle,
	}
	for k, v := range extra {
		ctx[k] = v
	}
	return ctx
}

// LoginView renders the login form
func (p *Provider) LoginView(w http.ResponseWriter, r *http.Request) {
	depends.Render(w, r, http.StatusOK, LoginTemplate, p.loginContext(nil))
}

// Login checks the submitted credentials and starts a session
func (p *Provider) Login(w http.ResponseWriter, r *http.Request) {
	app, err := depends.App(r)
	if err != nil {
		depends.Fail(w, r, err)
		return
	}
	if err := r.ParseForm(); err != nil {
		depends.Fail(w, r, response.Wrap(http.StatusBadRequest, err))
		return
	}
	username := r.PostForm.Get("username")
	password := r.PostForm.Get("password")
	remember := r.PostForm.Get("remember_me") == "on"

	client := clientAddr(r)
	if !p.allowAttempt(w, r, client) {
		return
	}

	admin, ok, err := p.store.Authenticate(r.Context(), username, password)
	if err != nil {
		depends.Fail(w, r, err)
		return
	}
	if !ok {
		p.logger.Info("login failed", zap.String("username", username))
		depends.Render(w, r, http.StatusUnauthorized, LoginTemplate, p.loginContext(template.Context{
			"error": depends.T(r, "login_failed"),
		}))
		return
	}

	ttl := p.config.TokenTTL
	if remember {
		ttl = p.config.RememberTTL
	}
	token, err := p.startSession(r.Context(), app.Cache, admin, ttl)
	if err != nil {
		depends.Fail(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     p.config.CookieName,
		Value:    token,
		Path:     cookiePath(app),
		Expires:  time.Now().Add(ttl),
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	if p.config.Limiter != nil {
		if err := p.config.Limiter.Reset(r.Context(), client); err != nil {
			p.logger.Warn("reset login attempts", zap.Error(err))
		}
	}
	p.logger.Info("admin logged in", zap.String("username", admin.Username))
	depends.Redirect(w, r, indexURL(app))
}

// allowAttempt counts a login attempt from client and answers 429 once the
// limit is reached. Limiter failures let the attempt through.
func (p *Provider) allowAttempt(w http.ResponseWriter, r *http.Request, client string) bool {
	if p.config.Limiter == nil {
		return true
	}
	res, err := p.config.Limiter.Allow(r.Context(), client)
	if err != nil {
		p.logger.Warn("login rate limit unavailable", zap.Error(err))
		return true
	}
	if res.Allowed {
		return true
	}

	p.logger.Warn("login attempts exceeded", zap.String("client", client), zap.Duration("retry_after", res.RetryAfter))
	w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(res.RetryAfter.Seconds()))))
	depends.Render(w, r, http.StatusTooManyRequests, LoginTemplate, p.loginContext(template.Context{
		"error": depends.T(r, "too_many_attempts"),
	}))
	return false
}

// clientAddr is the host part of the remote address
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// startSession signs a token for admin and records it in the token store
func (p *Provider) startSession(ctx context.Context, store cache.Cache, admin *models.Admin, ttl time.Duration) (string, error) {
	if store == nil {
		return "", fmt.Errorf("token cache not configured")
	}
	token, err := p.tokens.GenerateToken(cast.ToString(admin.ID), admin.Username, ttl)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	claims, err := p.tokens.ValidateToken(token)
	if err != nil {
		return "", err
	}
	if err := store.Set(ctx, tokenKey(claims.TokenID), []byte(claims.AdminID), ttl); err != nil {
		return "", fmt.Errorf("store token: %w", err)
	}
	return token, nil
}

// Logout ends the session and returns to the login page
func (p *Provider) Logout(w http.ResponseWriter, r *http.Request) {
	app, err := depends.App(r)
	if err != nil {
		depends.Fail(w, r, err)
		return
	}
	if err := p.endSession(r, app); err != nil {
		depends.Fail(w, r, err)
		return
	}
	p.clearCookie(w, app)
	depends.Redirect(w, r, app.URL(LoginPath))
}

func (p *Provider) endSession(r *http.Request, app *depends.Application) error {
	c, err := r.Cookie(p.config.CookieName)
	if err != nil || c.Value == "" || app.Cache == nil {
		return nil
	}
	claims, err := p.tokens.ValidateToken(c.Value)
	if err != nil {
		return nil
	}
	if err := app.Cache.Delete(r.Context(), tokenKey(claims.TokenID)); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}

func (p *Provider) clearCookie(w http.ResponseWriter, app *depends.Application) {
	http.SetCookie(w, &http.Cookie{
		Name:     p.config.CookieName,
		Value:    "",
		Path:     cookiePath(app),
		MaxAge:   -1,
		HttpOnly: true,
	})
}

// Authenticate resolves the admin owning the session cookie of r. Missing,
// tampered, expired and revoked tokens all yield nil without error.
func (p *Provider) Authenticate(r *http.Request, store cache.Cache) (*models.Admin, error) {
	c, err := r.Cookie(p.config.CookieName)
	if err != nil || c.Value == "" || store == nil {
		return nil, nil
	}
	claims, err := p.tokens.ValidateToken(c.Value)
	if err != nil {
		return nil, nil
	}
	stored, err := store.Get(r.Context(), tokenKey(claims.TokenID))
	if err != nil {
		if cache.IsCacheMiss(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("load token: %w", err)
	}
	if string(stored) != claims.AdminID {
		return nil, nil
	}
	id, err := cast.ToInt64E(claims.AdminID)
	if err != nil {
		return nil, nil
	}
	admin, err := p.store.Get(r.Context(), id)
	if err != nil {
		if crud.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return admin, nil
}

// Middleware attaches the current admin to the request context. Anonymous
// requests are sent to the login page, or to the setup page while no admin
// exists. Provider pages and static assets stay public.
func (p *Provider) Middleware() middleware.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			app, err := depends.App(r)
			if err != nil {
				depends.Fail(w, r, err)
				return
			}
			admin, err := p.Authenticate(r, app.Cache)
			if err != nil {
				depends.Fail(w, r, err)
				return
			}

			rel := relativePath(app, r.URL.Path)
			if admin != nil {
				r = r.WithContext(webcontext.SetCurrentAdmin(r.Context(), admin))
				if rel == LoginPath || rel == InitPath {
					depends.Redirect(w, r, indexURL(app))
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			if strings.HasPrefix(rel, "/static/") {
				next.ServeHTTP(w, r)
				return
			}

			n, err := p.store.Count(r.Context())
			if err != nil {
				depends.Fail(w, r, err)
				return
			}
			switch {
			case n == 0 && rel != InitPath:
				depends.Redirect(w, r, app.URL(InitPath))
			case n == 0:
				next.ServeHTTP(w, r)
			case rel == LoginPath:
				next.ServeHTTP(w, r)
			case rel == InitPath:
				depends.Redirect(w, r, app.URL(LoginPath))
			case depends.WantsJSON(r):
				depends.Fail(w, r, response.ErrUnauthorized)
			default:
				depends.Redirect(w, r, app.URL(LoginPath))
			}
		})
	}
}

func relativePath(app *depends.Application, p string) string {
	if app.Path == "/" {
		return p
	}
	rel := strings.TrimPrefix(p, app.Path)
	if rel == "" {
		return "/"
	}
	return rel
}

func cookiePath(app *depends.Application) string {
	if app.Path == "" {
		return "/"
	}
	return app.Path
}

func indexURL(app *depends.Application) string {
	if app.Path == "" {
		return "/"
	}
	return app.Path
}
