// Package httptransport is the thin HTTP layer. Handlers translate between
// the wire and the domain services and hold no business logic.
package httptransport

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"fieldlink/internal/correlation"
	"fieldlink/internal/credential"
	"fieldlink/internal/platform/middleware"
	dErrors "fieldlink/pkg/domain-errors"
	"fieldlink/pkg/httputil"
)

// AuthService is the identity bridge as the transport sees it.
type AuthService interface {
	BeginAuth(ctx context.Context, p correlation.Payload) (string, error)
	CompleteDelegated(ctx context.Context, code, state string) (*credential.Grant, error)
	CompleteDirect(ctx context.Context, state string) (*credential.Grant, error)
}

// HandleBeginAuth answers the embedded client's first call: given the
// caller's platform identifiers it returns, as plain text, the URL the
// client must open to authenticate.
func (h *Handler) HandleBeginAuth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseForm(); err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "malformed form body"))
		return
	}

	p := correlation.Payload{
		CloudHost: r.FormValue("cloudHost"),
		AccountID: r.FormValue("accountId"),
		CompanyID: r.FormValue("companyId"),
		UserID:    r.FormValue("userId"),
	}
	if p.CloudHost == "" || p.AccountID == "" || p.CompanyID == "" || p.UserID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "cloudHost, accountId, companyId and userId are required"))
		return
	}

	target, err := h.auth.BeginAuth(ctx, p)
	if err != nil {
		h.logError(ctx, "begin auth failed", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteText(w, http.StatusOK, target)
}

// HandleAuthCallback is the redirect target the external identity provider
// sends the user back to on the delegated path.
func (h *Handler) HandleAuthCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	grant, err := h.auth.CompleteDelegated(ctx, r.URL.Query().Get("code"), r.URL.Query().Get("state"))
	if err != nil {
		h.logError(ctx, "delegated authentication failed", err)
		httputil.WriteError(w, err)
		return
	}

	h.redirectWithGrant(w, r, grant)
}

// HandleDirectLogin finishes the direct path: the state minted by
// HandleBeginAuth comes back as a path segment.
func (h *Handler) HandleDirectLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	state, err := url.PathUnescape(chi.URLParam(r, "state"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidCorrelation, "undecodable state segment"))
		return
	}

	grant, err := h.auth.CompleteDirect(ctx, state)
	if err != nil {
		h.logError(ctx, "direct authentication failed", err)
		httputil.WriteError(w, err)
		return
	}

	h.redirectWithGrant(w, r, grant)
}

// redirectWithGrant sends the browser back to the landing page with the
// issued credential in the query, where the embedded client picks it up.
func (h *Handler) redirectWithGrant(w http.ResponseWriter, r *http.Request, grant *credential.Grant) {
	q := url.Values{}
	q.Set("from", grant.Email)
	q.Set("t", grant.Token)
	http.Redirect(w, r, "/?"+q.Encode(), http.StatusFound)
}

func (h *Handler) logError(ctx context.Context, msg string, err error) {
	h.logger.ErrorContext(ctx, msg, "error", err, "request_id", middleware.GetRequestID(ctx))
}
