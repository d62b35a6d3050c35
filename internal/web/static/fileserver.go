// Package static serves the admin's embedded assets and uploaded files
package static

import (
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"
)

// FileServerConfig holds configuration for the static file server
type FileServerConfig struct {
	// FS is the file tree to serve, e.g. embedded assets or os.DirFS(uploadsDir)
	FS fs.FS

	// Prefix is the URL prefix to strip (e.g., "/static")
	Prefix string

	// MaxAge is the cache duration in seconds
	MaxAge int

	// EnableETag enables ETag header generation
	EnableETag bool

	// NotFoundHandler is called when a file is not found
	NotFoundHandler http.HandlerFunc
}

// DefaultFileServerConfig returns default static file server configuration
func DefaultFileServerConfig(files fs.FS, prefix string) *FileServerConfig {
	return &FileServerConfig{
		FS:         files,
		Prefix:     prefix,
		MaxAge:     86400,
		EnableETag: true,
	}
}

// Dir serves a directory on disk, creating it when missing
func Dir(root, prefix string) (http.Handler, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create static dir %s: %w", root, err)
	}
	return FileServer(DefaultFileServerConfig(os.DirFS(root), prefix)), nil
}

// FileServer serves files from config.FS; directories are never listed
func FileServer(config *FileServerConfig) http.Handler {
	notFound := config.NotFoundHandler
	if notFound == nil {
		notFound = http.NotFound
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		urlPath := r.URL.Path
		if config.Prefix != "" {
			urlPath = strings.TrimPrefix(urlPath, config.Prefix)
		}
		name := strings.TrimPrefix(path.Clean("/"+urlPath), "/")
		if !fs.ValidPath(name) || name == "." {
			notFound(w, r)
			return
		}

		info, err := fs.Stat(config.FS, name)
		if err != nil || info.IsDir() {
			notFound(w, r)
			return
		}

		w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", config.MaxAge))
		if config.EnableETag {
			etag := fmt.Sprintf(`W/"%x-%x"`, info.Size(), info.ModTime().Unix())
			w.Header().Set("ETag", etag)
			if match := r.Header.Get("If-None-Match"); match == etag {
				w.WriteHeader(http.StatusNotModified)
				return
			}
		}

		http.ServeFileFS(w, r, config.FS, name)
	})
}
