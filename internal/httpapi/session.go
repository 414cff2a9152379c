package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/DaDevFox/task-systems/checkin-core/internal/domain"
)

// Identity headers. Values are self-asserted; there is no authentication.
const (
	HeaderUserID   = "X-User-Id"
	HeaderUserName = "X-User-Name"
	HeaderUserRole = "X-User-Role"
)

var (
	errNoSession    = errors.New("identity headers required")
	errForbidden    = errors.New("insufficient permissions")
	errInvalidRole  = errors.New("invalid role header")
	errInvalidInput = errors.New("invalid request")
)

type contextKey struct{}

var sessionContextKey contextKey

// ContextWithSession embeds the caller's session into ctx
func ContextWithSession(ctx context.Context, session domain.Session) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, sessionContextKey, session)
}

// SessionFromContext extracts the session if present
func SessionFromContext(ctx context.Context) (domain.Session, bool) {
	if ctx == nil {
		return domain.Session{}, false
	}
	session, ok := ctx.Value(sessionContextKey).(domain.Session)
	return session, ok
}

// requireSession ensures the request carried a usable identity
func requireSession(ctx context.Context) (domain.Session, error) {
	session, ok := SessionFromContext(ctx)
	if !ok {
		return domain.Session{}, errNoSession
	}
	if err := session.Validate(); err != nil {
		return domain.Session{}, fmt.Errorf("%w: %v", errNoSession, err)
	}
	return session, nil
}

// requireRole asserts the session holds one of roles
func requireRole(ctx context.Context, roles ...domain.Role) (domain.Session, error) {
	session, err := requireSession(ctx)
	if err != nil {
		return domain.Session{}, err
	}
	for _, role := range roles {
		if session.Role == role {
			return session, nil
		}
	}
	return domain.Session{}, fmt.Errorf("%w: role %s", errForbidden, session.Role)
}

// sessionMiddleware builds a Session from identity headers. Requests without
// headers pass through with no session; handlers decide whether they need one.
func sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(HeaderUserID))
		userName := strings.TrimSpace(r.Header.Get(HeaderUserName))
		if userID == "" && userName == "" {
			next.ServeHTTP(w, r)
			return
		}

		role, err := domain.ParseRole(r.Header.Get(HeaderUserRole))
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %v", errInvalidRole, err))
			return
		}

		session := domain.Session{UserID: userID, UserName: userName, Role: role}
		next.ServeHTTP(w, r.WithContext(ContextWithSession(r.Context(), session)))
	})
}
