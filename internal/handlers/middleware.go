package handlers

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/kraman82351/Task-management/internal/auth"
	"github.com/kraman82351/Task-management/internal/metrics"
	"github.com/kraman82351/Task-management/internal/services"
	"github.com/kraman82351/Task-management/types"
)

// Authenticator resolves the session carried by a request into a user.
type Authenticator struct {
	sessions   *auth.Sessions
	users      *services.UserService
	cookieName string
	logger     *slog.Logger
}

func NewAuthenticator(sessions *auth.Sessions, users *services.UserService, cookieName string, logger *slog.Logger) *Authenticator {
	if cookieName == "" {
		cookieName = "token"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{sessions: sessions, users: users, cookieName: cookieName, logger: logger}
}

// RequireAuth rejects requests without a valid session and stores the
// resolved user in the request context. Store failures answer 500.
func (a *Authenticator) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := a.resolve(r)
		if err != nil {
			if isAuthError(err) {
				writeError(w, http.StatusUnauthorized, msgUnauthorized)
				return
			}
			respondError(w, r, a.logger, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
	})
}

func (a *Authenticator) resolve(r *http.Request) (types.User, error) {
	userID, err := a.verifiedSession(r)
	if err != nil {
		return types.User{}, err
	}
	return a.users.Get(r.Context(), userID)
}

// verifiedSession returns the user id of the first session token that
// verifies. The cookie is tried before the Authorization header.
func (a *Authenticator) verifiedSession(r *http.Request) (string, error) {
	err := auth.ErrInvalidToken
	for _, token := range a.sessionTokens(r) {
		var userID string
		userID, err = a.sessions.Verify(token)
		if err == nil {
			return userID, nil
		}
	}
	return "", err
}

func (a *Authenticator) sessionTokens(r *http.Request) []string {
	var tokens []string
	if cookie, err := r.Cookie(a.cookieName); err == nil && cookie.Value != "" {
		tokens = append(tokens, cookie.Value)
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(header, " ")
	if ok && strings.EqualFold(scheme, "Bearer") {
		if token = strings.TrimSpace(token); token != "" {
			tokens = append(tokens, token)
		}
	}
	return tokens
}

// RequireRole admits only users whose role is one of roles. It must run
// after RequireAuth.
func RequireRole(roles ...types.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, msgUnauthorized)
				return
			}
			if !types.HasRequiredRole(user.Role, roles...) {
				writeError(w, http.StatusForbidden, msgForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Recoverer turns panics into a JSON 500.
func Recoverer(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rvr := recover()
				if rvr == nil {
					return
				}
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}
				logger.ErrorContext(r.Context(), "panic recovered",
					slog.Any("panic", rvr),
					slog.String("request_id", middleware.GetReqID(r.Context())),
					slog.String("stack", string(debug.Stack())),
				)
				writeError(w, http.StatusInternalServerError, msgInternal)
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger logs one line per request.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			level := slog.LevelInfo
			if status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.LogAttrs(r.Context(), level, "http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("route", metrics.RoutePattern(r)),
				slog.Int("status", status),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("latency", time.Since(start)),
				slog.String("request_id", middleware.GetReqID(r.Context())),
				slog.String("remote_ip", clientIP(r)),
			)
		})
	}
}

// Limiter decides whether a request identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, time.Duration, error)
}

// RateLimit throttles requests per client IP under the given name. A nil
// limiter disables throttling. Limiter failures let the request through.
func RateLimit(limiter Limiter, name string, m *metrics.Metrics, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, wait, err := limiter.Allow(r.Context(), name+":"+clientIP(r))
			if err != nil {
				logger.WarnContext(r.Context(), "rate limiter unavailable",
					slog.String("limit", name),
					slog.Any("error", err),
				)
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				m.ObserveRateLimited(name)
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				writeError(w, http.StatusTooManyRequests, "Too many requests, please try again later")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func isAuthError(err error) bool {
	return errors.Is(err, auth.ErrInvalidToken) ||
		errors.Is(err, auth.ErrTokenExpired) ||
		errors.Is(err, services.ErrUserNotFound)
}
