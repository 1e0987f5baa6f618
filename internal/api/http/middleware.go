package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"creditline-backend/internal/config"
	"creditline-backend/internal/logger"
	"creditline-backend/internal/metrics"
	"creditline-backend/internal/security"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type claimsKey struct{}

var errForbidden = errors.New("forbidden")

// requestContext tags the request with an id and a request-scoped logger
func requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		l := logger.Get().With("request_id", id)
		next.ServeHTTP(w, r.WithContext(logger.NewContext(r.Context(), l)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// instrument records latency by route template and writes the access log
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := routeTemplate(r)
		elapsed := time.Since(started)
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Observe(elapsed.Seconds())
		logger.InfoContext(r.Context(), "HTTP request",
			"method", r.Method, "route", route, "status", rec.status, "duration_ms", elapsed.Milliseconds())
	})
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}

// authenticate enforces the route's security level from the endpoint table
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		level := config.RequiredLevel(r.Method, routeTemplate(r))
		if level == config.SecurityPublic {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractToken(r)
		if err != nil {
			writeErrorMessage(w, http.StatusUnauthorized, "unauthenticated", err.Error())
			return
		}

		claims, err := h.tokens.ValidateToken(token)
		if err != nil {
			writeErrorMessage(w, http.StatusUnauthorized, "unauthenticated", "invalid token: "+err.Error())
			return
		}

		if !roleAllowed(level, claims.Role) {
			logger.WarnContext(r.Context(), "Access denied", "user_id", claims.UserID, "role", claims.Role, "route", routeTemplate(r))
			writeErrorMessage(w, http.StatusForbidden, "forbidden", "insufficient role for this endpoint")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		ctx = logger.NewContext(ctx, logger.FromContext(ctx).With("user_id", claims.UserID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errors.New("authorization token is not provided")
	}
	// Remove Bearer prefix if present
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return "", errors.New("authorization token is empty")
	}
	return token, nil
}

func roleAllowed(level config.SecurityLevel, role security.Role) bool {
	switch level {
	case config.SecurityAccess:
		return role.Valid()
	case config.SecurityOperator:
		return role == security.RoleOperator || role == security.RoleAdmin
	case config.SecurityService:
		return role == security.RoleService || role == security.RoleAdmin
	default:
		return role == security.RoleAdmin
	}
}

func claimsFrom(ctx context.Context) *security.UserClaims {
	c, _ := ctx.Value(claimsKey{}).(*security.UserClaims)
	return c
}

// authorizeSubject lets admins act for anyone and everyone else only for
// themselves.
func authorizeSubject(ctx context.Context, ids ...string) error {
	c := claimsFrom(ctx)
	if c == nil {
		return errForbidden
	}
	if c.Role == security.RoleAdmin {
		return nil
	}
	for _, id := range ids {
		if id != "" && id == c.UserID {
			return nil
		}
	}
	return errForbidden
}

// actingID is the caller's own id unless an admin names someone else
func actingID(ctx context.Context, requested string) (string, error) {
	c := claimsFrom(ctx)
	if c == nil {
		return "", errForbidden
	}
	if requested == "" || requested == c.UserID {
		return c.UserID, nil
	}
	if c.Role == security.RoleAdmin {
		return requested, nil
	}
	return "", errForbidden
}
