package enrich

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNoopResolver(t *testing.T) {
	var r NoopResolver
	require.Equal(t, "10.0.0.1", r.Resolve("10.0.0.1"))
}

func TestEui64ToMAC(t *testing.T) {
	tests := []struct {
		name     string
		ipv6     string
		wantMAC  string
		wantOK   bool
	}{
		{name: "Valid EUI-64", ipv6: "fe80::a00:27ff:fe4e:aa95", wantMAC: "08:00:27:4e:aa:95", wantOK: true},
		{name: "Not link-local", ipv6: "2001:db8::1", wantOK: false},
		{name: "Missing ff:fe filler", ipv6: "fe80::1234:5678:9abc:def0", wantOK: false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			mac, ok := eui64ToMAC(test.ipv6)
			require.Equal(t, test.wantOK, ok)
			if test.wantOK {
				require.Equal(t, test.wantMAC, mac)
			}
		})
	}
}

func TestSystemResolver_MatchesViaMAC(t *testing.T) {
	r := &SystemResolver{runner: func() ([]byte, error) {
		return []byte(
			"10.0.0.5 dev eth0 lladdr 08:00:27:4e:aa:95 REACHABLE\n" +
				"fe80::a00:27ff:fe4e:aa95 dev eth0 lladdr 08:00:27:4e:aa:95 STALE\n",
		), nil
	}}

	require.Equal(t, "fe80::a00:27ff:fe4e:aa95 (10.0.0.5)", r.Resolve("fe80::a00:27ff:fe4e:aa95"))
}

func TestSystemResolver_NoMatchReturnsOriginal(t *testing.T) {
	r := &SystemResolver{runner: func() ([]byte, error) {
		return []byte("10.0.0.5 dev eth0 lladdr 08:00:27:4e:aa:95 REACHABLE\n"), nil
	}}

	require.Equal(t, "192.0.2.5", r.Resolve("192.0.2.5"))
}

func TestSystemResolver_CommandFailureReturnsOriginal(t *testing.T) {
	r := &SystemResolver{runner: func() ([]byte, error) {
		return nil, require.AnError
	}}

	require.Equal(t, "10.0.0.9", r.Resolve("10.0.0.9"))
}
