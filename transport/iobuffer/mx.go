package iobuffer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// ErrNoNameservers is returned by LookupMX when no nameserver is given and
// none can be found in /etc/resolv.conf.
var ErrNoNameservers = errors.New("no nameservers to query")

// Nameservers returns the nameservers listed in /etc/resolv.conf.
func Nameservers() []string {
	cfg, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil {
		return nil
	}

	servers := make([]string, 0, len(cfg.Servers))
	for _, s := range cfg.Servers {
		if !strings.Contains(s, ":") {
			s += ":" + cfg.Port
		}
		servers = append(servers, s)
	}
	return servers
}

// LookupMX returns the mail exchanger of domain with the lowest preference.
// If the domain has no MX records, the domain itself is returned, as RFC
// 5321 asks. The nameservers are tried in order, and when none are given the
// system nameservers are used.
func LookupMX(ctx context.Context, domain string, nameservers []string, timeout time.Duration) (string, error) {
	if len(nameservers) == 0 {
		nameservers = Nameservers()
	}
	if len(nameservers) == 0 {
		return "", ErrNoNameservers
	}

	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(domain), dns.TypeMX)
	m.RecursionDesired = true

	c := &dns.Client{Timeout: timeout}

	var lastErr error
	for _, server := range nameservers {
		resp, _, err := c.ExchangeContext(ctx, m, server)
		if err != nil {
			lastErr = fmt.Errorf("mx lookup of %s: %w", domain, err)
			continue
		}

		switch resp.Rcode {
		case dns.RcodeSuccess:
		case dns.RcodeNameError:
			return "", fmt.Errorf("mx lookup of %s: no such domain", domain)
		default:
			lastErr = fmt.Errorf("mx lookup of %s: %s", domain, dns.RcodeToString[resp.Rcode])
			continue
		}

		var best *dns.MX
		for _, rr := range resp.Answer {
			if mx, ok := rr.(*dns.MX); ok && (best == nil || mx.Preference < best.Preference) {
				best = mx
			}
		}
		if best == nil {
			return domain, nil
		}
		return strings.TrimSuffix(best.Mx, "."), nil
	}

	return "", lastErr
}
