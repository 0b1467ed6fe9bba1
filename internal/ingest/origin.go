package ingest

import "net/netip"

// CheckOrigin admits a peer only when its address lies in private address
// space. remoteAddr is the connection's peer address as found in
// http.Request.RemoteAddr ("ip:port"); forwarding headers are never
// consulted. A nil return means Allow.
func CheckOrigin(remoteAddr string) error {
	ip, ok := peerIP(remoteAddr)
	if !ok {
		return &AdmissionError{Kind: KindOriginUnknown}
	}
	if !IsPrivateIP(ip) {
		return &AdmissionError{Kind: KindOriginNotPrivate}
	}
	return nil
}

// IsPrivateIP reports whether ip is in 10.0.0.0/8, 172.16.0.0/12,
// 192.168.0.0/16, 127.0.0.0/8, fc00::/7 or is ::1. IPv4-mapped IPv6
// addresses are judged by their IPv4 form.
func IsPrivateIP(ip netip.Addr) bool {
	ip = ip.Unmap()
	if !ip.IsValid() {
		return false
	}
	return ip.IsPrivate() || ip.IsLoopback()
}

func peerIP(remoteAddr string) (netip.Addr, bool) {
	if remoteAddr == "" {
		return netip.Addr{}, false
	}
	if addrPort, err := netip.ParseAddrPort(remoteAddr); err == nil {
		return addrPort.Addr(), true
	}
	// Some transports report a bare address without a port.
	if addr, err := netip.ParseAddr(remoteAddr); err == nil {
		return addr, true
	}
	return netip.Addr{}, false
}
