package httpapi

import (
	"context"
	"net/http"

	"github.com/dkravets/backoffice/internal/common"
	"github.com/dkravets/backoffice/internal/server/audit"
	"github.com/dkravets/backoffice/internal/server/models"
	"github.com/dkravets/backoffice/internal/server/roles"
	"github.com/dkravets/backoffice/internal/server/services"
)

type contextKey int

const principalKey contextKey = iota

// principalFromContext returns the authenticated user stored by the
// authentication middleware.
func principalFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(principalKey).(*models.User)
	return user, ok
}

// withPrincipal resolves the access-token cookie into a user and rejects
// requests carrying no valid token or an inactive account.
func (h *Handler) withPrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(accessCookie)
		if err != nil {
			writeError(w, common.ErrInvalidToken)
			return
		}

		user, err := h.sessions.ResolvePrincipal(r.Context(), cookie.Value)
		if err != nil {
			writeError(w, err)
			return
		}
		if !user.IsActive {
			writeError(w, common.ErrNotActive)
			return
		}

		ctx := context.WithValue(r.Context(), principalKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAdmin gates the escalation endpoints on an active admin
// principal. Denied access is itself an auditable fact.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := principalFromContext(r.Context())
		if !ok {
			writeError(w, common.ErrInvalidToken)
			return
		}
		if !user.Role.AtLeast(roles.Admin) {
			h.auditor.Emit(r.Context(), audit.Fact{
				Action:    audit.ActionAccessDenied,
				UserID:    user.ID,
				IPAddress: clientIP(r),
				UserAgent: r.UserAgent(),
				Details:   "admin area requires role admin or higher",
			})
			writeError(w, common.ErrPermissionDenied)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientInfo(r *http.Request) services.ClientInfo {
	return services.ClientInfo{
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
	}
}
