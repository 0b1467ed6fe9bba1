package ingest

import (
	"errors"
	"net/netip"
	"testing"
)

func TestIsPrivateIP_IPv4(t *testing.T) {
	allowed := []string{
		"10.0.0.1", "10.255.255.255",
		"172.16.0.1", "172.31.255.254",
		"192.168.0.1", "192.168.1.1",
		"127.0.0.1", "127.10.20.30",
	}
	for _, raw := range allowed {
		if !IsPrivateIP(netip.MustParseAddr(raw)) {
			t.Errorf("expected %s to be private", raw)
		}
	}

	denied := []string{"8.8.8.8", "172.32.0.0", "172.15.255.255", "192.0.0.1", "11.0.0.1", "0.0.0.0"}
	for _, raw := range denied {
		if IsPrivateIP(netip.MustParseAddr(raw)) {
			t.Errorf("expected %s to be public", raw)
		}
	}
}

func TestIsPrivateIP_IPv6(t *testing.T) {
	allowed := []string{"::1", "fc00::1", "fd00::1", "fdff:ffff::1"}
	for _, raw := range allowed {
		if !IsPrivateIP(netip.MustParseAddr(raw)) {
			t.Errorf("expected %s to be private", raw)
		}
	}

	denied := []string{"fe80::1", "2001:db8::1", "fe00::1", "::"}
	for _, raw := range denied {
		if IsPrivateIP(netip.MustParseAddr(raw)) {
			t.Errorf("expected %s to be public", raw)
		}
	}
}

func TestIsPrivateIP_MappedIPv4(t *testing.T) {
	if !IsPrivateIP(netip.MustParseAddr("::ffff:192.168.1.1")) {
		t.Fatalf("expected mapped private address to be private")
	}
	if IsPrivateIP(netip.MustParseAddr("::ffff:8.8.8.8")) {
		t.Fatalf("expected mapped public address to be public")
	}
}

func TestCheckOrigin(t *testing.T) {
	cases := []struct {
		remote string
		want   error
	}{
		{"192.168.1.1:12345", nil},
		{"[fd00::1]:12345", nil},
		{"[::1]:80", nil},
		{"127.0.0.1", nil},
		{"8.8.8.8:12345", ErrOriginNotPrivate},
		{"[2001:db8::1]:12345", ErrOriginNotPrivate},
		{"", ErrOriginUnknown},
		{"pipe", ErrOriginUnknown},
		{"localhost:80", ErrOriginUnknown},
	}
	for _, tc := range cases {
		err := CheckOrigin(tc.remote)
		if tc.want == nil {
			if err != nil {
				t.Errorf("CheckOrigin(%q): unexpected error %v", tc.remote, err)
			}
			continue
		}
		if !errors.Is(err, tc.want) {
			t.Errorf("CheckOrigin(%q): expected %v, got %v", tc.remote, tc.want, err)
		}
	}
}

func TestCheckOrigin_Messages(t *testing.T) {
	if got := CheckOrigin("8.8.8.8:1").Error(); got != "Access is allowed only from private IP addresses" {
		t.Fatalf("unexpected message %q", got)
	}
	if got := CheckOrigin("").Error(); got != "Unable to determine client IP address" {
		t.Fatalf("unexpected message %q", got)
	}
}
