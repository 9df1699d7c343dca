package httptransport

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fieldlink/internal/credential"
	"fieldlink/internal/platform/middleware"
	dErrors "fieldlink/pkg/domain-errors"
	"fieldlink/pkg/httputil"
)

// CredentialValidator checks bearer tokens on protected routes.
type CredentialValidator interface {
	Validate(tokenString string) (*credential.Claims, error)
}

// Handler bundles the domain services the HTTP surface delegates to.
type Handler struct {
	auth      AuthService
	tenants   TenantDirectory
	contacts  ContactResolver
	launcher  CallLauncher
	validator CredentialValidator
	logger    *slog.Logger
}

func NewHandler(auth AuthService, tenants TenantDirectory, contacts ContactResolver, launcher CallLauncher, validator CredentialValidator, logger *slog.Logger) *Handler {
	return &Handler{
		auth:      auth,
		tenants:   tenants,
		contacts:  contacts,
		launcher:  launcher,
		validator: validator,
		logger:    logger,
	}
}

// NewRouter wires all public endpoints with the middleware stack.
func NewRouter(h *Handler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Post("/auth/provider", h.HandleBeginAuth)
	r.Get("/auth/callback", h.HandleAuthCallback)
	r.Get("/auth/login/{state}", h.HandleDirectLogin)

	r.Get("/api/v1/connection", h.HandleConnection)
	r.Group(func(r chi.Router) {
		r.Use(RequireCredential(h.validator, logger))
		r.Get("/api/v1/connections", h.HandleConnections)
	})

	return r
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// RequireCredential guards a route group with the bridge-issued bearer
// credential. The validated claims are not propagated; the endpoints behind
// it identify the caller from their own parameters.
func RequireCredential(validator CredentialValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(raw, "Bearer ")
			if !ok || token == "" {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing bearer credential"))
				return
			}

			if _, err := validator.Validate(token); err != nil {
				logger.WarnContext(r.Context(), "rejected bearer credential", "error", err,
					"request_id", middleware.GetRequestID(r.Context()))
				httputil.WriteError(w, err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
