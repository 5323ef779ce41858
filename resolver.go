package subwatch

import (
	"context"
	"net"
	"time"

	"github.com/miekg/dns"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const resolveTimeout = 5 * time.Second

type Resolver interface {
	// Whether the name has an A or AAAA record
	Resolves(ctx context.Context, host string) (bool, error)
}

type dnsResolver struct {
	client *dns.Client
	server string
}

// Resolver querying a single DNS server. The port defaults to 53.
func NewResolver(server string) *dnsResolver {
	if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(server, "53")
	}
	return &dnsResolver{
		client: &dns.Client{Net: "udp", Timeout: resolveTimeout},
		server: server,
	}
}

func (r *dnsResolver) Resolves(ctx context.Context, host string) (bool, error) {
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		m := new(dns.Msg)
		m.SetQuestion(dns.Fqdn(host), qtype)
		m.RecursionDesired = true

		in, _, err := r.client.ExchangeContext(ctx, m, r.server)
		if err != nil {
			return false, errors.Wrapf(err, "failed to resolve %s", host)
		}

		switch in.Rcode {
		case dns.RcodeNameError:
			return false, nil
		case dns.RcodeSuccess:
			if len(in.Answer) > 0 {
				return true, nil
			}
		}
	}
	return false, nil
}

// Counts the names that resolve. Lookup errors count as not resolving.
func CountResolving(ctx context.Context, r Resolver, hosts []string) int {
	n := 0
	for _, h := range hosts {
		if ctx.Err() != nil {
			break
		}
		ok, err := r.Resolves(ctx, h)
		if err != nil {
			log.Debug().Err(err).Str("host", h).Msg("lookup failed")
			continue
		}
		if ok {
			n++
		}
	}
	return n
}
