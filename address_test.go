package main

import (
	"errors"
	"net"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ipNet(t *testing.T, cidr string) *net.IPNet {
	t.Helper()
	ip, network, err := net.ParseCIDR(cidr)
	require.NoError(t, err)
	network.IP = ip
	return network
}

func fakeInterfaces(t *testing.T) []interfaceAddrs {
	return []interfaceAddrs{
		{name: "lo", addrs: []net.Addr{ipNet(t, "127.0.0.1/8"), ipNet(t, "::1/128")}},
		{name: "eth0", addrs: []net.Addr{ipNet(t, "192.168.1.5/24"), ipNet(t, "fe80::1/64")}},
		{name: "wlan0", addrs: []net.Addr{&net.IPAddr{IP: net.ParseIP("10.0.0.7")}}},
		{name: "tun0", addrs: []net.Addr{&net.UnixAddr{Name: "/tmp/sock", Net: "unix"}}},
		{name: "eth1", addrs: []net.Addr{ipNet(t, "172.16.0.2/16")}},
	}
}

func withDiscoveryHooks(t *testing.T, list func() ([]interfaceAddrs, error), gw func() (net.IP, error)) {
	t.Helper()
	oldList, oldGateway := listInterfaces, discoverGateway
	listInterfaces, discoverGateway = list, gw
	t.Cleanup(func() {
		listInterfaces, discoverGateway = oldList, oldGateway
	})
}

func TestDiscoverFiltersLoopbackAndIPv6(t *testing.T) {
	ifaces := fakeInterfaces(t)
	withDiscoveryHooks(t,
		func() ([]interfaceAddrs, error) { return ifaces, nil },
		func() (net.IP, error) { return net.ParseIP("192.168.1.1"), nil })

	seq, err := Discover()
	require.NoError(t, err)

	got := slices.Collect(seq)
	for _, a := range got {
		assert.False(t, a.IP.IsLoopback(), "loopback address %s", a)
		assert.NotNil(t, a.IP.To4(), "non IPv4 address %s", a)
		assert.True(t, a.Usable())
	}

	var names []string
	for _, a := range got {
		names = append(names, a.Interface+"="+a.String())
	}
	assert.Equal(t, []string{"eth0=192.168.1.5", "wlan0=10.0.0.7", "eth1=172.16.0.2"}, names)
}

func TestDiscoverMarksDefaultRoute(t *testing.T) {
	ifaces := fakeInterfaces(t)
	withDiscoveryHooks(t,
		func() ([]interfaceAddrs, error) { return ifaces, nil },
		func() (net.IP, error) { return net.ParseIP("172.16.0.1"), nil })

	seq, err := Discover()
	require.NoError(t, err)

	for a := range seq {
		assert.Equal(t, a.Interface == "eth1", a.DefaultRoute, "interface %s", a.Interface)
	}
}

func TestDiscoverWithoutGateway(t *testing.T) {
	ifaces := fakeInterfaces(t)
	withDiscoveryHooks(t,
		func() ([]interfaceAddrs, error) { return ifaces, nil },
		func() (net.IP, error) { return nil, errors.New("no gateway") })

	seq, err := Discover()
	require.NoError(t, err)

	got := slices.Collect(seq)
	assert.Len(t, got, 3)
	for _, a := range got {
		assert.False(t, a.DefaultRoute)
	}
}

func TestDiscoverEnumerationFailure(t *testing.T) {
	withDiscoveryHooks(t,
		func() ([]interfaceAddrs, error) { return nil, errors.New("permission denied") },
		func() (net.IP, error) { return nil, errors.New("unused") })

	seq, err := Discover()
	assert.Error(t, err)
	assert.Nil(t, seq)
}

func TestDiscoverStopsEarly(t *testing.T) {
	ifaces := fakeInterfaces(t)
	withDiscoveryHooks(t,
		func() ([]interfaceAddrs, error) { return ifaces, nil },
		func() (net.IP, error) { return nil, errors.New("no gateway") })

	seq, err := Discover()
	require.NoError(t, err)

	count := 0
	for range seq {
		count++
		break
	}
	assert.Equal(t, 1, count)
}

func TestCandidateAddressUsable(t *testing.T) {
	tests := []struct {
		ip   string
		want bool
	}{
		{"192.168.1.5", true},
		{"10.0.0.1", true},
		{"127.0.0.1", false},
		{"127.1.2.3", false},
		{"::1", false},
		{"fe80::1", false},
		{"2001:db8::1", false},
	}

	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			a := CandidateAddress{IP: net.ParseIP(tt.ip)}
			assert.Equal(t, tt.want, a.Usable())
		})
	}
}

func TestDiscoverHost(t *testing.T) {
	// Exercises the real interface listing, any host has at least loopback
	seq, err := Discover()
	require.NoError(t, err)

	for a := range seq {
		assert.True(t, a.Usable(), "address %s", a)
	}
}
