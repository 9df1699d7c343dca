package httptransport

import (
	"context"
	"net/http"
	"net/url"

	"fieldlink/internal/connect"
	"fieldlink/internal/tenant/models"
	dErrors "fieldlink/pkg/domain-errors"
	"fieldlink/pkg/httputil"
)

// TenantDirectory resolves tenant records for the connection endpoints.
type TenantDirectory interface {
	ByEmail(ctx context.Context, address string) (*models.Mapping, error)
	ByAccountID(ctx context.Context, accountID string) (*models.Mapping, error)
}

// ContactResolver assembles the contact list for an activity.
type ContactResolver interface {
	Resolve(ctx context.Context, cloudHost string, company *models.Company, activityID, fromEmail string) ([]connect.Contact, error)
}

// CallLauncher obtains a one-shot call URL from the video service.
type CallLauncher interface {
	Launch(ctx context.Context, platform connect.Platform, apiKey, from, to string, meta connect.Metadata) (string, error)
}

// HandleConnection resolves a call URL between two people. The caller's
// email picks the tenant whose video API key authenticates the launch; the
// key itself never leaves the server.
func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	from, to := q.Get("from"), q.Get("to")
	if from == "" || to == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "from and to are required"))
		return
	}

	mapping, err := h.tenants.ByEmail(ctx, from)
	if err != nil {
		h.logError(ctx, "tenant lookup by email failed", err)
		httputil.WriteError(w, err)
		return
	}

	platform := connect.DetectPlatform(r.UserAgent())
	meta := connect.ParseMetadata(q.Get("meta"))

	callURL, err := h.launcher.Launch(ctx, platform, mapping.VideoAPIKey, from, to, meta)
	if err != nil {
		h.logError(ctx, "call launch failed", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteText(w, http.StatusOK, callURL)
}

// HandleConnections lists the reachable contacts for one activity. The route
// sits behind the credential middleware; by the time this runs the bearer
// token has been validated.
func (h *Handler) HandleConnections(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	cloudHost := q.Get("h")
	accountID := q.Get("a")
	companyID := q.Get("c")
	activityID := q.Get("av")
	fromEmail := q.Get("from")
	if cloudHost == "" || accountID == "" || companyID == "" || activityID == "" || fromEmail == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "h, a, c, av and from are required"))
		return
	}

	mapping, err := h.tenants.ByAccountID(ctx, accountID)
	if err != nil {
		h.logError(ctx, "tenant lookup by account failed", err)
		httputil.WriteError(w, err)
		return
	}
	var company *models.Company
	if mapping.Account != nil {
		company = mapping.Account.FindCompany(companyID)
	}
	if company == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "unknown company"))
		return
	}

	contacts, err := h.contacts.Resolve(ctx, cloudHost, company, activityID, fromEmail)
	if err != nil {
		h.logError(ctx, "contact resolution failed", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, contacts)
}

// ConnectionURL builds the URL HandleConnection serves on, for embedding in
// contact cards. It is the transport-side connect.URLBuilder.
func ConnectionURL(from, to string, meta connect.Metadata) string {
	q := url.Values{}
	q.Set("from", from)
	q.Set("to", to)
	q.Set("meta", meta.String())
	return "/api/v1/connection?" + q.Encode()
}
