package schema

// UserID identifies a marketplace user.
type UserID string

// AgencyID identifies an agency.
type AgencyID string

// BookingID identifies a booking.
type BookingID string

// AgencyRole is the role a user holds inside an agency.
type AgencyRole string

const (
	// RoleJipper designates a keeper (moderator) membership.
	RoleJipper AgencyRole = "jipper"
	// RoleAdmin is an agency administrator.
	RoleAdmin AgencyRole = "admin"
	// RoleAgent is a regular agency agent.
	RoleAgent AgencyRole = "agent"
)

// User is the identity part of an auth session.
type User struct {
	ID           UserID `json:"id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	IsHost       bool   `json:"isHost"`
	IsSuperAdmin bool   `json:"isSuperAdmin"`
}

// Agency is the nested agency identity of a membership.
type Agency struct {
	ID   AgencyID `json:"id"`
	Name string   `json:"name"`
}

// AgencyMembership links a user to an agency with a role.
type AgencyMembership struct {
	Role   AgencyRole `json:"role"`
	Agency Agency     `json:"agency"`
}

// AuthSession is the payload returned by the identity endpoint.
// Agencies keep the order the API returned them in.
type AuthSession struct {
	User     *User              `json:"user,omitempty"`
	Agencies []AgencyMembership `json:"agencies"`
}

// UserID returns the session user id, or empty when there is no user.
func (s *AuthSession) UserID() UserID {
	if s == nil || s.User == nil {
		return ""
	}
	return s.User.ID
}

// NavigationTarget is the application section a session lands in.
type NavigationTarget string

const (
	TargetSuperAdmin NavigationTarget = "super-admin"
	TargetKeeper     NavigationTarget = "keeper"
	TargetHost       NavigationTarget = "host"
	TargetAgent      NavigationTarget = "agent"
	TargetCustomer   NavigationTarget = "customer"
)

// NavigationTargets lists every target in resolution priority order.
func NavigationTargets() []NavigationTarget {
	return []NavigationTarget{
		TargetSuperAdmin,
		TargetKeeper,
		TargetHost,
		TargetAgent,
		TargetCustomer,
	}
}
