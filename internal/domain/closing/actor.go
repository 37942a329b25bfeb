package closing

import "github.com/google/uuid"

// ActorRole is the role supplied by the session for the acting user
type ActorRole string

const (
	ActorRoleClient   ActorRole = "client"
	ActorRoleOperator ActorRole = "operator"
	ActorRoleAdmin    ActorRole = "admin"
)

// IsValid checks if the role is known
func (r ActorRole) IsValid() bool {
	switch r {
	case ActorRoleClient, ActorRoleOperator, ActorRoleAdmin:
		return true
	}
	return false
}

// String returns the string representation of ActorRole
func (r ActorRole) String() string {
	return string(r)
}

// IsReviewer returns true for roles allowed to return or complete a closing
func (r ActorRole) IsReviewer() bool {
	return r == ActorRoleOperator || r == ActorRoleAdmin
}

// AuthorRole maps the actor role onto the thread author role; admins post as operators
func (r ActorRole) AuthorRole() AuthorRole {
	if r == ActorRoleClient {
		return AuthorRoleClient
	}
	return AuthorRoleOperator
}

// Actor is the current user as supplied by authentication and company selection
type Actor struct {
	UserID    uuid.UUID
	Name      string
	Role      ActorRole
	CompanyID uuid.UUID
}

// CanView reports whether the actor may read the record and its thread
func (a Actor) CanView(r *ClosingRecord) bool {
	return r != nil && a.CompanyID != uuid.Nil && a.CompanyID == r.CompanyID
}

// Owns reports whether the actor is the client that created the record
func (a Actor) Owns(r *ClosingRecord) bool {
	return a.Role == ActorRoleClient && a.CanView(r) && r.IsCreatedBy(a.UserID)
}
