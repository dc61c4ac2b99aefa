package backbone

import (
	"fmt"
	"strings"

	"github.com/miekg/dns"
)

// srvService is the SRV service label backbone deployments register their
// endpoints under.
const srvService = "_idmesh._tcp."

// defaultResolverAddr is the local stub resolver.
const defaultResolverAddr = "127.0.0.53:53"

// DiscoverEndpoints resolves the backbone endpoints for a deployment domain
// through DNS SRV records. resolverAddr selects the DNS server; empty means
// the local stub resolver.
//
// Returns the endpoint host:port pairs in record order. An empty result with
// nil error means the domain publishes no endpoints.
func DiscoverEndpoints(resolverAddr, domain string) ([]string, error) {
	if resolverAddr == "" {
		resolverAddr = defaultResolverAddr
	}

	query := new(dns.Msg)
	query.Id = dns.Id()
	query.RecursionDesired = true
	query.Question = []dns.Question{{
		Name:   dns.Fqdn(srvService + domain),
		Qtype:  dns.TypeSRV,
		Qclass: dns.ClassINET,
	}}

	client := new(dns.Client)
	response, _, err := client.Exchange(query, resolverAddr)
	if err != nil {
		return nil, fmt.Errorf("SRV lookup for %s failed: %w", domain, err)
	}

	endpoints := make([]string, 0, len(response.Answer))
	for _, answer := range response.Answer {
		if srv, ok := answer.(*dns.SRV); ok {
			endpoints = append(endpoints, endpointFromSRV(srv))
		}
	}

	return endpoints, nil
}

// endpointFromSRV formats a host:port endpoint from an SRV record. SRV
// targets are absolute names; the root dot must not leak into URLs built
// from the endpoint.
func endpointFromSRV(srv *dns.SRV) string {
	host := strings.TrimSuffix(dns.Fqdn(srv.Target), ".")
	return fmt.Sprintf("%s:%d", host, srv.Port)
}
