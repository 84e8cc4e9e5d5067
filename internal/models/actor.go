package models

// Role is the caller's role as asserted by the identity collaborator.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleOwner  Role = "owner"
	RoleSeeker Role = "seeker"
)

// Actor identifies who performs an operation. It is passed explicitly into
// every mutating operation and trusted as given.
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// IsAdmin reports whether the actor holds the administrator role.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// SystemActor is used for background transitions such as expiry.
var SystemActor = Actor{ID: SystemActorID, Role: RoleAdmin}
