// Package logger builds the zap loggers used across the service and the HTTP
// request logging middleware.
package logger

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxKey struct{}

// RequestIDHeader carries the request id in and out of the service.
const RequestIDHeader = "X-Request-Id"

// New returns a production JSON logger, or a console logger in dev mode.
func New(level string, dev bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	if dev {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

// WithContext stores l in ctx.
func WithContext(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the request logger stored by the middleware, or the
// global logger.
func FromContext(ctx context.Context) *zap.Logger {
	return FromContextOr(ctx, zap.L())
}

// FromContextOr returns the request logger stored in ctx, or fallback.
func FromContextOr(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok && l != nil {
		return l
	}
	return fallback
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware tags each request with an id, stores a request-scoped logger in
// the context and logs method, path, status and duration.
func Middleware(base *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqID := r.Header.Get(RequestIDHeader)
			if reqID == "" {
				reqID = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, reqID)

			l := base.With(zap.String("request_id", reqID))
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(WithContext(r.Context(), l)))

			l.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}

var (
	kvPassword  = regexp.MustCompile(`(password=)([^\s]+)`)
	urlPassword = regexp.MustCompile(`(://[^:/@]+:)([^@]+)(@)`)
)

// MaskDSN hides the password of a key=value or URL connection string.
func MaskDSN(dsn string) string {
	dsn = kvPassword.ReplaceAllString(dsn, `${1}***`)
	return urlPassword.ReplaceAllString(dsn, `${1}***${3}`)
}
