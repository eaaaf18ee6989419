package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dkravets/backoffice/internal/logging"
	"github.com/dkravets/backoffice/internal/server/audit"
	"github.com/dkravets/backoffice/internal/server/config"
	"github.com/dkravets/backoffice/internal/server/services"
)

// Handler holds the HTTP-facing collaborators. Each endpoint delegates
// to a service and translates the outcome into a response.
type Handler struct {
	sessions     *services.SessionService
	verification *services.VerificationService
	escalation   *services.EscalationService
	auditor      audit.Emitter
	log          logging.Logger

	accessValidity  time.Duration
	refreshValidity time.Duration
}

// NewHandler wires a Handler from the three workflow services.
func NewHandler(
	sessions *services.SessionService,
	verification *services.VerificationService,
	escalation *services.EscalationService,
	auditor audit.Emitter,
	log logging.Logger,
	cfg *config.Config,
) *Handler {
	return &Handler{
		sessions:        sessions,
		verification:    verification,
		escalation:      escalation,
		auditor:         auditor,
		log:             log,
		accessValidity:  cfg.AccessTokenValidityDuration,
		refreshValidity: cfg.RefreshTokenValidityDuration,
	}
}

// NewRouter builds the HTTP routing tree. Session-bound endpoints sit
// behind the principal middleware, the escalation endpoints additionally
// behind the admin gate.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.handleRegister)
		r.Post("/verify", h.handleVerify)
		r.Post("/reverify", h.handleReverify)
		r.Post("/login", h.handleLogin)
		r.Post("/refresh", h.handleRefresh)
		r.Post("/logout", h.handleLogout)
		r.Post("/abort-all", h.handleAbortAll)

		r.Group(func(r chi.Router) {
			r.Use(h.withPrincipal)
			r.Get("/me", h.handleMe)
		})
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(h.withPrincipal)
		r.Use(h.requireAdmin)

		r.Get("/status", h.handleAdminStatus)
		r.Patch("/users/role", h.handleRoleChangeRequest)
		r.Patch("/users/role/confirm", h.handleRoleChangeConfirm)
	})

	return r
}
