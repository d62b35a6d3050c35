// Package response renders JSON bodies and HTML error pages for admin handlers
package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"
)

// ErrorResponse is the JSON body of an error answered to an ajax request
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// HTTPError represents an HTTP error with status code
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
	Err        error
}

// Error implements the error interface
func (e *HTTPError) Error() string {
	if e.Message == "" && e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the cause
func (e *HTTPError) Unwrap() error {
	return e.Err
}

// NewHTTPError creates a new HTTP error
func NewHTTPError(statusCode int, message string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       errorCodeFromStatus(statusCode),
	}
}

// Wrap attaches a status to err
func Wrap(statusCode int, err error) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    err.Error(),
		Code:       errorCodeFromStatus(statusCode),
		Err:        err,
	}
}

// Common HTTP errors
var (
	ErrBadRequest     = NewHTTPError(http.StatusBadRequest, "Bad request")
	ErrUnauthorized   = NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	ErrForbidden      = NewHTTPError(http.StatusForbidden, "Forbidden")
	ErrNotFound       = NewHTTPError(http.StatusNotFound, "Not found")
	ErrInternalServer = NewHTTPError(http.StatusInternalServerError, "Internal server error")
)

// StatusOf returns the status carried by err, 500 for anything else
func StatusOf(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode != 0 {
		return httpErr.StatusCode
	}
	return http.StatusInternalServerError
}

// RenderJSON writes v as a JSON body
func RenderJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// RenderError writes err as a JSON error body using its carried status
func RenderError(w http.ResponseWriter, err error) {
	status := StatusOf(err)
	code := errorCodeFromStatus(status)
	var httpErr *HTTPError
	if errors.As(err, &httpErr) && httpErr.Code != "" {
		code = httpErr.Code
	}
	RenderJSON(w, status, &ErrorResponse{
		Error:   "error",
		Message: err.Error(),
		Code:    code,
	})
}

// PageRenderer renders a named template with a context
type PageRenderer interface {
	Render(name string, data map[string]interface{}) (string, error)
}

// ErrorPages renders errors/{401,403,404,500}.html
type ErrorPages struct {
	Renderer PageRenderer
	Logger   *zap.Logger

	// Context supplies per-request template values such as the language
	Context func(r *http.Request) map[string]interface{}
}

// TemplateFor returns the error page template used for status
func TemplateFor(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return "errors/401.html"
	case http.StatusForbidden:
		return "errors/403.html"
	case http.StatusNotFound:
		return "errors/404.html"
	default:
		return "errors/500.html"
	}
}

// Render answers r with the error page matching err's status
func (p *ErrorPages) Render(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusOf(err)
	if status >= 500 && p.Logger != nil {
		p.Logger.Error("request failed", zap.Error(err), zap.String("path", r.URL.Path))
	}

	data := map[string]interface{}{}
	if p.Context != nil {
		for k, v := range p.Context(r) {
			data[k] = v
		}
	}
	data["status_code"] = status
	data["message"] = err.Error()

	if p.Renderer == nil {
		http.Error(w, http.StatusText(status), status)
		return
	}
	body, renderErr := p.Renderer.Render(TemplateFor(status), data)
	if renderErr != nil {
		if p.Logger != nil {
			p.Logger.Error("render error page", zap.Error(renderErr), zap.Int("status", status))
		}
		http.Error(w, http.StatusText(status), status)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(body))
}

// NotFound renders the 404 page
func (p *ErrorPages) NotFound(w http.ResponseWriter, r *http.Request) {
	p.Render(w, r, ErrNotFound)
}

// Unauthorized renders the 401 page
func (p *ErrorPages) Unauthorized(w http.ResponseWriter, r *http.Request) {
	p.Render(w, r, ErrUnauthorized)
}

// errorCodeFromStatus maps HTTP status codes to error codes
func errorCodeFromStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusConflict:
		return "conflict"
	case http.StatusRequestEntityTooLarge:
		return "request_too_large"
	case http.StatusUnprocessableEntity:
		return "unprocessable_entity"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return "error"
	}
}
