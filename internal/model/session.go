package model

// Role identifies which portal a session belongs to.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleVendor   Role = "vendor"
	RoleRider    Role = "rider"
	RoleAdmin    Role = "admin"
	RoleSupport  Role = "support"
)

// Valid reports whether r is one of the known portal roles.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleVendor, RoleRider, RoleAdmin, RoleSupport:
		return true
	}
	return false
}

// Session is the client-persisted identity of the logged-in user.
// Every field is independently settable and clearable; there is no atomic
// transaction across fields.
type Session struct {
	UserID   string `json:"user_id,omitempty"`
	Role     Role   `json:"role,omitempty"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

// Empty reports whether no identity field is set.
func (s Session) Empty() bool {
	return s == Session{}
}
