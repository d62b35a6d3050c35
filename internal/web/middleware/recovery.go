package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"

	webcontext "github.com/conduit-lang/conduit-admin/internal/web/context"
)

// RecoveryConfig configures panic recovery
type RecoveryConfig struct {
	Logger *zap.Logger

	// EnableStackTrace attaches the goroutine stack to the log entry
	EnableStackTrace bool

	// ResponseHandler renders the 500 response; a plain text body is used when nil
	ResponseHandler func(w http.ResponseWriter, r *http.Request, err error)
}

// Recovery converts handler panics into a 500 response
func Recovery(config RecoveryConfig) Middleware {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				err := panicError(rec)
				fields := []zap.Field{
					zap.Error(err),
					zap.String("request_id", webcontext.GetRequestID(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
				}
				if config.EnableStackTrace {
					fields = append(fields, zap.ByteString("stack", debug.Stack()))
				}
				logger.Error("panic recovered", fields...)

				if config.ResponseHandler != nil {
					config.ResponseHandler(w, r, err)
					return
				}
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}()

			next.ServeHTTP(w, r)
		})
	}
}

func panicError(rec interface{}) error {
	if err, ok := rec.(error); ok {
		return err
	}
	return fmt.Errorf("panic: %v", rec)
}
