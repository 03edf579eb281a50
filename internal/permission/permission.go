package permission

import "strings"

// Permission is a runtime grant the service needs before acting on the
// user's behalf.
type Permission string

const (
	Camera        Permission = "camera"
	Notifications Permission = "notifications"
)

// Grants is the set of permissions the user granted.
type Grants map[Permission]bool

// NewGrants builds Grants from permission names, e.g. from config.
// Names are case-insensitive; unknown names are kept as-is.
func NewGrants(names ...string) Grants {
	g := make(Grants, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n != "" {
			g[Permission(n)] = true
		}
	}
	return g
}

// Granted reports whether p was granted.
func (g Grants) Granted(p Permission) bool {
	return g[p]
}
