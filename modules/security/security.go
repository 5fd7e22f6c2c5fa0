package security

import (
	"net"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/miekg/dns"
	"github.com/pkg/errors"
)

/*
	SSRF egress gate. Every outbound request (AI proxy, Quack importer) runs
	through ValidateURL before a client is built:

	parse URL -> hostname -> localhost check -> allowlist -> DNS resolve ->
	classify every address -> accept/reject

	Resolution happens on every call, never cached: an allowlisted public
	hostname can be repointed at a private address between calls (DNS
	rebinding), so yesterday's answer proves nothing.
*/

var (
	ErrURLBlocked     = errors.New("url blocked")
	ErrPrivateAddress = errors.New("private/internal address blocked")

	localhostTLD = regexp.MustCompile(`^localhost\.\w+$`)

	cgnatNetwork = mustCIDR("100.64.0.0/10")
	blockedNets  = []*net.IPNet{
		mustCIDR("10.0.0.0/8"),
		mustCIDR("172.16.0.0/12"),
		mustCIDR("192.168.0.0/16"),
		mustCIDR("169.254.0.0/16"), // link-local / cloud metadata
		mustCIDR("127.0.0.0/8"),
		cgnatNetwork,
		mustCIDR("0.0.0.0/8"),       // "this network"
		mustCIDR("192.0.2.0/24"),    // TEST-NET-1
		mustCIDR("198.51.100.0/24"), // TEST-NET-2
		mustCIDR("203.0.113.0/24"),  // TEST-NET-3
		mustCIDR("198.18.0.0/15"),   // benchmarking
		mustCIDR("240.0.0.0/4"),     // reserved
		mustCIDR("fc00::/7"),
		mustCIDR("fe80::/10"),
	}
)

// Policy is the explicit egress configuration, built once at startup and
// handed to every outbound client. There is no ambient settings global.
type Policy struct {
	Allowlist      []string
	AllowLocalhost bool
	Resolver       string // host:port of the DNS resolver
	Timeout        time.Duration
}

func mustCIDR(cidr string) *net.IPNet {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		panic(err)
	}
	return network
}

// IsPrivateIP classifies an address string. Anything loopback, link-local,
// RFC1918, CGNAT, reserved, multicast or unspecified counts as private, and
// so does anything that fails to parse — classification errs toward blocked.
func IsPrivateIP(s string) bool {
	ip := net.ParseIP(s)
	if ip == nil {
		return true
	}

	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsMulticast() || ip.IsUnspecified() || ip.IsInterfaceLocalMulticast() {
		return true
	}

	for _, network := range blockedNets {
		if network.Contains(ip) {
			return true
		}
	}

	return !ip.IsGlobalUnicast()
}

// IsLocalhost reports whether the hostname is a localhost variant:
// localhost itself, localhost.localdomain, localhost.<tld>, any 127.x
// literal, or the IPv6 loopback.
func IsLocalhost(hostname string) bool {
	host := strings.ToLower(hostname)

	switch host {
	case "localhost", "localhost.localdomain", "127.0.0.1", "::1", "[::1]":
		return true
	}

	if strings.HasPrefix(host, "127.") {
		return true
	}

	return localhostTLD.MatchString(host)
}

// HostnameInAllowlist matches case-insensitively. A plain entry matches the
// exact domain and any subdomain; a "*." entry matches subdomains and the
// bare domain itself.
func HostnameInAllowlist(hostname string, allowlist []string) bool {
	host := strings.ToLower(hostname)

	for _, pattern := range allowlist {
		pattern = strings.ToLower(strings.TrimSpace(pattern))
		if pattern == "" {
			continue
		}

		if strings.HasPrefix(pattern, "*.") {
			if host == pattern[2:] || strings.HasSuffix(host, pattern[1:]) {
				return true
			}
			continue
		}

		if host == pattern || strings.HasSuffix(host, "."+pattern) {
			return true
		}
	}

	return false
}

// ResolveHostname asks the configured resolver for A and AAAA records. A
// lookup error or empty answer comes back as zero addresses; the caller
// decides what that means.
func (p *Policy) ResolveHostname(hostname string) []string {
	client := &dns.Client{Timeout: p.Timeout}
	if client.Timeout == 0 {
		client.Timeout = 5 * time.Second
	}

	resolver := p.Resolver
	if resolver == "" {
		resolver = "1.1.1.1:53"
	}

	seen := make(map[string]struct{})
	var ips []string

	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		msg := new(dns.Msg)
		msg.SetQuestion(dns.Fqdn(hostname), qtype)

		in, _, err := client.Exchange(msg, resolver)
		if err != nil || in == nil {
			continue
		}

		for _, answer := range in.Answer {
			var ip string
			switch record := answer.(type) {
			case *dns.A:
				ip = record.A.String()
			case *dns.AAAA:
				ip = record.AAAA.String()
			default:
				continue
			}

			if _, dup := seen[ip]; !dup {
				seen[ip] = struct{}{}
				ips = append(ips, ip)
			}
		}
	}

	return ips
}

// ValidateURL enforces the egress policy on a destination URL. It returns
// ErrURLBlocked for unparseable hosts, denied localhost access and
// allowlist misses, and ErrPrivateAddress when the destination resolves (or
// is) a private address. A hostname that passes the allowlist but does not
// resolve passes: what cannot be classified is let through on the strength
// of the allowlist match.
func (p *Policy) ValidateURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return errors.Wrapf(ErrURLBlocked, "invalid url %q", raw)
	}

	hostname := parsed.Hostname()
	if hostname == "" {
		return errors.Wrap(ErrURLBlocked, "no hostname")
	}

	if IsLocalhost(hostname) {
		if p.AllowLocalhost {
			return nil
		}
		return errors.Wrap(ErrURLBlocked, "localhost access not allowed")
	}

	// IP-literal destinations are classified directly, no DNS involved
	if ip := net.ParseIP(hostname); ip != nil {
		if IsPrivateIP(hostname) {
			return errors.Wrapf(ErrPrivateAddress, "%s", hostname)
		}
		if HostnameInAllowlist(hostname, p.Allowlist) {
			return nil
		}
		return errors.Wrapf(ErrURLBlocked, "host %q not in allowlist", hostname)
	}

	if !HostnameInAllowlist(hostname, p.Allowlist) {
		return errors.Wrapf(ErrURLBlocked, "host %q not in allowlist", hostname)
	}

	for _, ip := range p.ResolveHostname(hostname) {
		if IsPrivateIP(ip) {
			return errors.Wrapf(ErrPrivateAddress, "%s resolves to %s", hostname, ip)
		}
	}

	return nil
}
