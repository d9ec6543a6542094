package main

import (
	"fmt"
	"iter"
	"log/slog"
	"net"

	"github.com/jackpal/gateway"
)

// CandidateAddress is a bindable address found on one of the host's interfaces
type CandidateAddress struct {
	IP           net.IP     // IPv4 address
	Interface    string     // Interface name (e.g., wlan0)
	Network      *net.IPNet // Subnet the address belongs to, nil if unknown
	DefaultRoute bool       // The default gateway lives in this subnet
}

// Usable reports whether the address can be bound: IPv4 and not loopback
func (a CandidateAddress) Usable() bool {
	return a.IP != nil && a.IP.To4() != nil && !a.IP.IsLoopback()
}

func (a CandidateAddress) String() string {
	return a.IP.String()
}

// interfaceAddrs is one interface together with the addresses assigned to it
type interfaceAddrs struct {
	name  string
	addrs []net.Addr
}

// Hooks replaced by tests
var (
	listInterfaces  = osInterfaces
	discoverGateway = gateway.DiscoverGateway
)

// osInterfaces enumerates the OS interfaces. Failing to list the interfaces
// is fatal, failing to read one interface's addresses only skips it.
func osInterfaces() ([]interfaceAddrs, error) {
	interfaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve network interfaces: %w", err)
	}

	result := make([]interfaceAddrs, 0, len(interfaces))
	for _, iface := range interfaces {
		addrs, err := iface.Addrs()
		if err != nil {
			slog.Warn("failed to get addresses for interface", "interface", iface.Name, "error", err)
			continue
		}
		result = append(result, interfaceAddrs{name: iface.Name, addrs: addrs})
	}
	return result, nil
}

// Discover returns the usable addresses of this host in OS enumeration order.
// The sequence is lazy and is meant to be ranged over once.
func Discover() (iter.Seq[CandidateAddress], error) {
	interfaces, err := listInterfaces()
	if err != nil {
		return nil, err
	}

	// The gateway only decorates the result, a host without one still works
	gwIP, err := discoverGateway()
	if err != nil {
		slog.Debug("default gateway not found", "error", err)
		gwIP = nil
	}

	return candidates(interfaces, gwIP), nil
}

func candidates(interfaces []interfaceAddrs, gwIP net.IP) iter.Seq[CandidateAddress] {
	return func(yield func(CandidateAddress) bool) {
		for _, iface := range interfaces {
			for _, addr := range iface.addrs {
				candidate, ok := toCandidate(iface.name, addr)
				if !ok {
					continue
				}
				if gwIP != nil && candidate.Network != nil && candidate.Network.Contains(gwIP) {
					candidate.DefaultRoute = true
				}
				if !yield(candidate) {
					return
				}
			}
		}
	}
}

// toCandidate keeps Internet-family addresses that pass Usable
func toCandidate(name string, addr net.Addr) (CandidateAddress, bool) {
	var candidate CandidateAddress
	switch v := addr.(type) {
	case *net.IPNet:
		candidate = CandidateAddress{IP: v.IP, Network: v}
	case *net.IPAddr:
		candidate = CandidateAddress{IP: v.IP}
	default:
		return CandidateAddress{}, false
	}
	if !candidate.Usable() {
		return CandidateAddress{}, false
	}
	// Bind does not work for v6
	candidate.IP = candidate.IP.To4()
	candidate.Interface = name
	return candidate, true
}
