package types

import (
	"fmt"
	"net"
	"strconv"
)

// NodeAddress identifies one monitored node. It is comparable and used as the
// store key.
type NodeAddress struct {
	Host string
	Port int
}

// ParseNodeAddress parses "host:port". Onion hosts and IPv6 literals in
// brackets are accepted.
func ParseNodeAddress(s string) (NodeAddress, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return NodeAddress{}, fmt.Errorf("node address %q: %w", s, err)
	}
	if host == "" {
		return NodeAddress{}, fmt.Errorf("node address %q: empty host", s)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return NodeAddress{}, fmt.Errorf("node address %q: invalid port %q", s, portStr)
	}
	return NodeAddress{Host: host, Port: port}, nil
}

// String returns the full "host:port" form.
func (a NodeAddress) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// MarshalText lets NodeAddress be used as a JSON string and JSON map key.
func (a NodeAddress) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText parses the "host:port" form.
func (a *NodeAddress) UnmarshalText(b []byte) error {
	parsed, err := ParseNodeAddress(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
