package config

// Mode represents the operational mode of the application
type Mode string

const (
	// ModeListen accepts a local client and a remote relay peer
	ModeListen Mode = "listen"

	// ModeConnect dials both the local service and the remote relay peer
	ModeConnect Mode = "connect"
)

// IsValid checks if the mode is valid
func (m Mode) IsValid() bool {
	return m == ModeListen || m == ModeConnect
}

// String returns the string representation
func (m Mode) String() string {
	return string(m)
}
