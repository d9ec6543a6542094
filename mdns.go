package main

import (
	"fmt"
	"log/slog"
	"net"
	"strings"

	"github.com/grandcat/zeroconf"
)

const mdnsDomain = "local."

// Advertiser announces a running listener on the local network. The
// returned func withdraws the announcement.
type Advertiser interface {
	Advertise(attempt Attempt, port int) (func(), error)
}

// zeroconfAdvertiser registers one mDNS service per listener, bound to the
// interface the listener's address lives on.
type zeroconfAdvertiser struct {
	logger *slog.Logger
}

func (z zeroconfAdvertiser) Advertise(attempt Attempt, port int) (func(), error) {
	var ifaces []net.Interface
	if attempt.Address.Interface != "" {
		iface, err := net.InterfaceByName(attempt.Address.Interface)
		if err != nil {
			return nil, fmt.Errorf("failed to look up interface %s: %w", attempt.Address.Interface, err)
		}
		ifaces = []net.Interface{*iface}
	}

	ip := attempt.Address.IP.String()
	server, err := zeroconf.RegisterProxy(
		mdnsInstance(ip),
		mdnsService(attempt.TLS),
		mdnsDomain,
		port,
		"qrdrop",
		[]string{ip},
		[]string{"path=/"},
		ifaces,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register mdns service: %w", err)
	}

	z.logger.Info("mDNS active", "url", attempt.URL, "interface", attempt.Address.Interface)
	return server.Shutdown, nil
}

func mdnsService(tls bool) string {
	if tls {
		return "_https._tcp"
	}
	return "_http._tcp"
}

// mdnsInstance derives a per address instance name, dots are not allowed
func mdnsInstance(ip string) string {
	return "qrdrop-" + strings.ReplaceAll(ip, ".", "-")
}
