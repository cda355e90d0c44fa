package models

// Roles recognized by the support subsystem. Anonymous visitors always carry
// RoleVisitor; authenticated users carry whatever the identity provider
// returns. RoleAdmin is the privileged role: it may delete messages, clear
// the room, reply to closed tickets, and force-close tickets.
const (
	RoleVisitor = "visitor"
	RoleUser    = "user"
	RoleAdmin   = "admin"
)

// Identity is the resolved caller: either an authenticated user or an
// anonymous visitor holding a per-browser-session token. The token is the
// unit of ownership for tickets, reactions, and presence.
type Identity struct {
	Token     string `json:"token"`
	Name      string `json:"name"`
	Avatar    string `json:"avatar,omitempty"`
	Role      string `json:"role"`
	Anonymous bool   `json:"anonymous"`
}

// Privileged reports whether the identity may perform admin-only actions.
func (i Identity) Privileged() bool {
	return i.Role == RoleAdmin
}
