// Package upload stores files submitted through admin forms
package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrFileMaxSizeLimit is returned for files larger than FileUpload.MaxSize
	ErrFileMaxSizeLimit = errors.New("file size exceeds the limit")

	// ErrFileExtNotAllowed is returned for extensions outside FileUpload.AllowExtensions
	ErrFileExtNotAllowed = errors.New("file extension not allowed")
)

const (
	DefaultMaxSize = 1024 * 1024 * 1024
	DefaultPrefix  = "/static/uploads"
)

// Storage persists uploaded content under name
type Storage interface {
	Save(ctx context.Context, name string, content io.Reader, size int64, contentType string) error
}

// FilenameGenerator picks the stored name of an uploaded file
type FilenameGenerator func(header *multipart.FileHeader) string

// FileUpload validates uploads and hands them to a Storage. Stored files are
// addressed as Prefix/name.
type FileUpload struct {
	UploadsDir string
	// AllowExtensions lists accepted suffixes such as ".png"; nil accepts any
	AllowExtensions   []string
	MaxSize           int64
	FilenameGenerator FilenameGenerator
	Prefix            string
	Storage           Storage
}

// Option configures a FileUpload
type Option func(*FileUpload)

// WithAllowExtensions restricts accepted file extensions
func WithAllowExtensions(exts ...string) Option {
	return func(u *FileUpload) { u.AllowExtensions = exts }
}

// WithMaxSize sets the size limit in bytes
func WithMaxSize(n int64) Option {
	return func(u *FileUpload) { u.MaxSize = n }
}

// WithPrefix sets the URL prefix of stored files
func WithPrefix(prefix string) Option {
	return func(u *FileUpload) { u.Prefix = prefix }
}

// WithFilenameGenerator replaces the submitted file name
func WithFilenameGenerator(g FilenameGenerator) Option {
	return func(u *FileUpload) { u.FilenameGenerator = g }
}

// WithStorage replaces the local directory storage
func WithStorage(s Storage) Option {
	return func(u *FileUpload) { u.Storage = s }
}

// New creates an upload writing to uploadsDir
func New(uploadsDir string, opts ...Option) *FileUpload {
	u := &FileUpload{
		UploadsDir: uploadsDir,
		MaxSize:    DefaultMaxSize,
		Prefix:     DefaultPrefix,
	}
	for _, opt := range opts {
		opt(u)
	}
	if u.Storage == nil {
		u.Storage = NewLocalStorage(uploadsDir)
	}
	return u
}

// UUIDFilename keeps the extension and replaces the base name with a random uuid
func UUIDFilename(header *multipart.FileHeader) string {
	return uuid.NewString() + strings.ToLower(filepath.Ext(header.Filename))
}

// URL returns the public address of a stored file
func (u *FileUpload) URL(name string) string {
	if strings.Contains(u.Prefix, "://") {
		return strings.TrimSuffix(u.Prefix, "/") + "/" + name
	}
	return path.Join(u.Prefix, name)
}

// SaveFile stores content under name and returns its URL
func (u *FileUpload) SaveFile(ctx context.Context, name string, content []byte) (string, error) {
	name, err := cleanName(name)
	if err != nil {
		return "", err
	}
	if err := u.Storage.Save(ctx, name, bytes.NewReader(content), int64(len(content)), ""); err != nil {
		return "", fmt.Errorf("save %s: %w", name, err)
	}
	return u.URL(name), nil
}

// Upload checks the size and extension of header and stores it
func (u *FileUpload) Upload(ctx context.Context, header *multipart.FileHeader) (string, error) {
	name := header.Filename
	if u.FilenameGenerator != nil {
		name = u.FilenameGenerator(header)
	}
	name, err := cleanName(name)
	if err != nil {
		return "", err
	}

	if u.MaxSize > 0 && header.Size > u.MaxSize {
		return "", fmt.Errorf("%w: file size %d exceeds max size %d", ErrFileMaxSizeLimit, header.Size, u.MaxSize)
	}
	if !u.allowed(name) {
		return "", fmt.Errorf("%w: %s is not one of %v", ErrFileExtNotAllowed, filepath.Ext(name), u.AllowExtensions)
	}

	f, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	if err := u.Storage.Save(ctx, name, f, header.Size, header.Header.Get("Content-Type")); err != nil {
		return "", fmt.Errorf("save %s: %w", name, err)
	}
	return u.URL(name), nil
}

func (u *FileUpload) allowed(name string) bool {
	if len(u.AllowExtensions) == 0 {
		return true
	}
	lower := strings.ToLower(name)
	for _, ext := range u.AllowExtensions {
		ext = "." + strings.TrimPrefix(strings.ToLower(ext), ".")
		if ext != "." && len(lower) > len(ext) && strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// cleanName drops any directory part so uploads never leave the storage root
func cleanName(name string) (string, error) {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "" || name == "." || name == "/" || name == ".." {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	return name, nil
}
