package server

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"ecoguard/pkg/types"

	"github.com/sirupsen/logrus"
)

type contextKey string

const contextKeyPrincipal contextKey = "principal"

// principal is the authenticated caller with the role from their profile.
type principal struct {
	UserID string
	Role   types.Role
}

func principalFrom(ctx context.Context) (principal, bool) {
	p, ok := ctx.Value(contextKeyPrincipal).(principal)
	return p, ok
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrader take over the connection.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	rw.statusCode = http.StatusSwitchingProtocols
	return hijacker.Hijack()
}

func (s *Service) LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		s.logger.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rw.statusCode,
			"duration_ms": time.Since(started).Milliseconds(),
		}).Info("http request")
	})
}

// RequireAuth verifies the access token and loads the caller's role. A user
// without a profile row acts with the plain user role.
func (s *Service) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := s.auth.Authenticate(r)
		if err != nil {
			s.logger.WithError(err).Debug("request not authenticated")
			s.writeError(w, r, types.ErrUnauthenticated)
			return
		}

		p := principal{UserID: userID, Role: types.RoleUser}
		profile, err := s.store.Profile(r.Context(), userID)
		switch {
		case err == nil:
			p.Role = profile.Role
		case errors.Is(err, types.ErrProfileNotFound):
		default:
			s.writeError(w, r, err)
			return
		}

		s.logger.WithFields(logrus.Fields{
			"user_id": p.UserID,
			"role":    p.Role,
		}).Debug("authenticated user")

		ctx := context.WithValue(r.Context(), contextKeyPrincipal, p)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireRole admits the listed roles. Admins pass every role check.
func (s *Service) requireRole(next http.HandlerFunc, roles ...types.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := principalFrom(r.Context())
		if !ok {
			s.writeError(w, r, types.ErrUnauthenticated)
			return
		}
		if p.Role == types.RoleAdmin {
			next(w, r)
			return
		}
		for _, role := range roles {
			if p.Role == role {
				next(w, r)
				return
			}
		}
		s.writeError(w, r, types.ErrForbidden)
	}
}

func (s *Service) StripTrailingSlash(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		if path != "/" && strings.HasSuffix(path, "/") {
			newURL := *r.URL
			newURL.Path = strings.TrimSuffix(path, "/")

			http.Redirect(w, r, newURL.String(), http.StatusMovedPermanently)
			return
		}

		next.ServeHTTP(w, r)
	})
}
