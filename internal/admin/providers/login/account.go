package login

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/conduit-lang/conduit-admin/internal/admin/depends"
	"github.com/conduit-lang/conduit-admin/internal/admin/models"
	"github.com/conduit-lang/conduit-admin/internal/admin/template"
	"github.com/conduit-lang/conduit-admin/internal/web/auth"
	"github.com/conduit-lang/conduit-admin/internal/web/response"
)

const maxInitForm = 32 << 20

// InitView renders the form creating the first admin
func (p *Provider) InitView(w http.ResponseWriter, r *http.Request) {
	depends.Render(w, r, http.StatusOK, InitTemplate, nil)
}

// Init creates the first admin. It is refused once any admin exists.
func (p *Provider) Init(w http.ResponseWriter, r *http.Request) {
	app, err := depends.App(r)
	if err != nil {
		depends.Fail(w, r, err)
		return
	}
	n, err := p.store.Count(r.Context())
	if err != nil {
		depends.Fail(w, r, err)
		return
	}
	if n > 0 {
		depends.Redirect(w, r, app.URL(LoginPath))
		return
	}

	if err := r.ParseMultipartForm(maxInitForm); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		depends.Fail(w, r, response.Wrap(http.StatusBadRequest, err))
		return
	}
	username := r.PostForm.Get("username")
	password := r.PostForm.Get("password")
	if username == "" || password == "" {
		p.initError(w, r, "invalid_value")
		return
	}
	if password != r.PostForm.Get("confirm_password") {
		p.initError(w, r, "password_mismatch")
		return
	}

	admin, err := p.store.Create(r.Context(), username, password)
	if err != nil {
		if errors.Is(err, models.ErrUsernameTaken) {
			p.initError(w, r, "username_taken")
			return
		}
		depends.Fail(w, r, err)
		return
	}

	if app.Upload != nil && r.MultipartForm != nil && len(r.MultipartForm.File["avatar"]) > 0 {
		url, err := app.Upload.Upload(r.Context(), r.MultipartForm.File["avatar"][0])
		if err != nil {
			p.logger.Warn("avatar upload failed", zap.Error(err))
		} else if err := p.store.UpdateAvatar(r.Context(), admin.ID, url); err != nil {
			p.logger.Warn("avatar update failed", zap.Error(err))
		}
	}

	p.logger.Info("first admin created", zap.String("username", admin.Username))
	depends.Redirect(w, r, app.URL(LoginPath))
}

func (p *Provider) initError(w http.ResponseWriter, r *http.Request, key string) {
	depends.Render(w, r, http.StatusBadRequest, InitTemplate, template.Context{
		"error": depends.T(r, key),
	})
}

// PasswordView renders the password change form
func (p *Provider) PasswordView(w http.ResponseWriter, r *http.Request) {
	if _, err := depends.CurrentAdmin(r); err != nil {
		depends.Fail(w, r, err)
		return
	}
	depends.Render(w, r, http.StatusOK, PasswordTemplate, nil)
}

// Password changes the password of the current admin, then logs out
func (p *Provider) Password(w http.ResponseWriter, r *http.Request) {
	admin, err := depends.CurrentAdmin(r)
	if err != nil {
		depends.Fail(w, r, err)
		return
	}
	app, err := depends.App(r)
	if err != nil {
		depends.Fail(w, r, err)
		return
	}
	if err := r.ParseForm(); err != nil {
		depends.Fail(w, r, response.Wrap(http.StatusBadRequest, err))
		return
	}

	oldPassword := r.PostForm.Get("old_password")
	newPassword := r.PostForm.Get("new_password")
	if !auth.CheckPassword(oldPassword, admin.Password) {
		p.passwordError(w, r, "old_password_error")
		return
	}
	if newPassword == "" || newPassword != r.PostForm.Get("re_new_password") {
		p.passwordError(w, r, "password_mismatch")
		return
	}
	if err := p.store.UpdatePassword(r.Context(), admin.ID, newPassword); err != nil {
		depends.Fail(w, r, err)
		return
	}

	p.logger.Info("admin password changed", zap.String("username", admin.Username))
	if err := p.endSession(r, app); err != nil {
		depends.Fail(w, r, err)
		return
	}
	p.clearCookie(w, app)
	depends.Redirect(w, r, app.URL(LoginPath))
}

func (p *Provider) passwordError(w http.ResponseWriter, r *http.Request, key string) {
	depends.Render(w, r, http.StatusBadRequest, PasswordTemplate, template.Context{
		"error": depends.T(r, key),
	})
}

// Model names the admin model whose form writes go through PreSave
func (p *Provider) Model() string {
	return p.store.Schema().Name
}

// PreSave hashes a plain text password before the admin resource writes it
func (p *Provider) PreSave(r *http.Request, data map[string]interface{}, creating bool) error {
	return PreSaveAdmin(r, data, creating)
}

// PreSaveAdmin is the provider-independent form of Provider.PreSave
func PreSaveAdmin(r *http.Request, data map[string]interface{}, creating bool) error {
	password, ok := data["password"].(string)
	if !ok || password == "" || auth.IsHashed(password) {
		return nil
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	data["password"] = hash
	return nil
}
