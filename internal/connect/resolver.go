package connect

import (
	"context"
	"log/slog"
	"strings"

	"fieldlink/internal/fsm"
	"fieldlink/internal/tenant/models"
	"fieldlink/pkg/email"
)

// Default custom-field names holding an equipment's designated remote
// expert, used when the tenant configures no override.
const (
	defaultExpertNameField  = "OnsightRemoteExpertName"
	defaultExpertEmailField = "OnsightRemoteExpertEmail"
)

// Role states which side of a call a contact sits on.
type Role string

const (
	RoleExpert    Role = "expert"
	RoleFieldTech Role = "fieldTech"
)

// Contact is one reachable person for an activity, with a ready-to-follow
// connection URL.
type Contact struct {
	Name       string `json:"name"`
	Title      string `json:"title"`
	Role       Role   `json:"role"`
	Connection string `json:"connection"`
}

// Directory is the slice of the field-service client the resolver reads.
type Directory interface {
	GetActivity(ctx context.Context, cloudHost string, company *models.Company, activityID string) (*fsm.Activity, error)
	GetContact(ctx context.Context, cloudHost string, company *models.Company, contactID string) (*fsm.Contact, error)
	GetPersons(ctx context.Context, cloudHost string, company *models.Company, personIDs ...string) ([]*fsm.Person, error)
	GetEquipmentCustomFields(ctx context.Context, cloudHost string, company *models.Company, equipmentID string, fieldNames ...string) (map[string]string, error)
}

// URLBuilder renders the connection URL a contact card links to. The
// transport layer supplies one pointing at its own connection endpoint.
type URLBuilder func(from, to string, meta Metadata) string

// Resolver assembles the contact list for an activity: at most one remote
// expert plus the assigned field technicians.
type Resolver struct {
	dir        Directory
	buildURL   URLBuilder
	logger     *slog.Logger
	sameDomain bool
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithSameDomainExpertOnly suppresses the remote expert when their email
// domain differs from the caller's. Off by default; tenants that share
// experts across organizations rely on the unrestricted behavior.
func WithSameDomainExpertOnly() ResolverOption {
	return func(r *Resolver) { r.sameDomain = true }
}

func NewResolver(dir Directory, buildURL URLBuilder, logger *slog.Logger, opts ...ResolverOption) *Resolver {
	r := &Resolver{dir: dir, buildURL: buildURL, logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the contacts for one activity. The expert slot resolves in
// two steps: the equipment's designated-expert custom fields win, and only
// when they carry no email does the activity's linked business contact get
// consulted. An activity with neither yields technicians only. Technician
// lookups fan out in parallel inside the directory; a failing lookup aborts
// the whole resolution.
func (r *Resolver) Resolve(ctx context.Context, cloudHost string, company *models.Company, activityID, fromEmail string) ([]Contact, error) {
	activity, err := r.dir.GetActivity(ctx, cloudHost, company, activityID)
	if err != nil {
		return nil, err
	}

	meta := Metadata{EquipmentID: activity.EquipmentID, ActivityID: activity.ID}
	contacts := make([]Contact, 0, len(activity.Responsibles)+1)

	if expert := r.remoteExpert(ctx, cloudHost, company, activity, fromEmail, meta); expert != nil {
		contacts = append(contacts, *expert)
	}

	persons, err := r.dir.GetPersons(ctx, cloudHost, company, activity.Responsibles...)
	if err != nil {
		return nil, err
	}
	for _, p := range persons {
		title := p.PositionName
		if title == "" {
			title = p.JobTitle
		}
		contacts = append(contacts, Contact{
			Name:       strings.TrimSpace(p.FirstName + " " + p.LastName),
			Title:      title,
			Role:       RoleFieldTech,
			Connection: r.buildURL(fromEmail, p.EmailAddress, meta),
		})
	}

	return contacts, nil
}

// remoteExpert resolves the expert slot, or nil when the activity has none.
// Lookup failures here degrade to "no expert" rather than failing the whole
// contact list; the technicians are still worth returning.
func (r *Resolver) remoteExpert(ctx context.Context, cloudHost string, company *models.Company, activity *fsm.Activity, fromEmail string, meta Metadata) *Contact {
	var name, title, addr string

	nameField, emailField := r.expertFields(company)

	if activity.EquipmentID != "" {
		fields, err := r.dir.GetEquipmentCustomFields(ctx, cloudHost, company, activity.EquipmentID, emailField, nameField)
		if err != nil {
			r.logger.WarnContext(ctx, "equipment expert lookup failed",
				"equipment_id", activity.EquipmentID, "error", err)
		} else {
			name = fields[nameField]
			addr = fields[emailField]
		}
	}

	if addr == "" {
		if activity.ContactID == "" {
			return nil
		}
		contact, err := r.dir.GetContact(ctx, cloudHost, company, activity.ContactID)
		if err != nil {
			r.logger.WarnContext(ctx, "activity contact lookup failed",
				"contact_id", activity.ContactID, "error", err)
			return nil
		}
		if contact.EmailAddress == "" {
			return nil
		}
		name = strings.TrimSpace(contact.FirstName + " " + contact.LastName)
		title = contact.PositionName
		addr = contact.EmailAddress
	}

	if r.sameDomain && !sameDomain(fromEmail, addr) {
		return nil
	}

	return &Contact{
		Name:       name,
		Title:      title,
		Role:       RoleExpert,
		Connection: r.buildURL(fromEmail, addr, meta),
	}
}

// expertFields returns the custom-field names for the expert slot, honoring
// the tenant's overrides.
func (r *Resolver) expertFields(company *models.Company) (nameField, emailField string) {
	nameField, emailField = defaultExpertNameField, defaultExpertEmailField
	if company == nil || company.Account == nil || company.Account.FieldMapping == nil {
		return nameField, emailField
	}
	fm := company.Account.FieldMapping
	if fm.ExpertNameField != "" {
		nameField = fm.ExpertNameField
	}
	if fm.ExpertEmailField != "" {
		emailField = fm.ExpertEmailField
	}
	return nameField, emailField
}

func sameDomain(a, b string) bool {
	da, db := email.Domain(a), email.Domain(b)
	return da != "" && strings.EqualFold(da, db)
}
