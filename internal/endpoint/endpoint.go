// Package endpoint names the two sides of a relay instance.
package endpoint

import "fmt"

// Role decides the wire representation of an endpoint
type Role int

const (
	// Local endpoints carry the raw byte stream of the real client or server
	Local Role = iota
	// Remote endpoints carry framed records to the other relay hop
	Remote
)

// String returns the string representation of a Role
func (r Role) String() string {
	switch r {
	case Local:
		return "local"
	case Remote:
		return "remote"
	default:
		return "unknown"
	}
}

// Framed reports whether the role uses the framed wire representation
func (r Role) Framed() bool {
	return r == Remote
}

// Endpoint is one side of a relay instance
type Endpoint struct {
	Address string
	Role    Role
}

// String returns "role address"
func (e Endpoint) String() string {
	return fmt.Sprintf("%s %s", e.Role, e.Address)
}
