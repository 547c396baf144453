package ring

import "fmt"

// Role decides whether a node originates the token or only relays it.
type Role int

// Roles
const (
	RoleRelay Role = iota
	RoleHead
)

// String implements fmt.Stringer.
func (r Role) String() string {
	switch r {
	case RoleHead:
		return "head"
	case RoleRelay:
		return "relay"
	}
	return fmt.Sprintf("role(%d)", int(r))
}

// ParseRole parses "head" or "relay".
func ParseRole(s string) (Role, error) {
	switch s {
	case "head":
		return RoleHead, nil
	case "relay":
		return RoleRelay, nil
	}
	return RoleRelay, fmt.Errorf("unknown role %q", s)
}
