package probe

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/jellydator/ttlcache/v3"
	log "github.com/sirupsen/logrus"
)

// Resolver resolves a host to its IP addresses.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

type ipVersion uint8

const (
	ipv4 ipVersion = 4
	ipv6 ipVersion = 6
)

func (ipv ipVersion) String() string {
	return fmt.Sprintf("%d", ipv)
}

func getIPVersion(addr net.IPAddr) ipVersion {
	if addr.IP.To4() == nil {
		return ipv6
	}

	return ipv4
}

// pickAddress returns the first address of the preferred IP version, or the
// first address at all if there is none of that version.
func pickAddress(addrs []net.IPAddr, prefer ipVersion) (net.IPAddr, bool) {
	if len(addrs) == 0 {
		return net.IPAddr{}, false
	}

	for _, a := range addrs {
		if getIPVersion(a) == prefer {
			return a, true
		}
	}

	return addrs[0], true
}

// addressCache resolves targets and remembers the chosen address for ttl.
type addressCache struct {
	resolver Resolver
	prefer   ipVersion
	cache    *ttlcache.Cache[string, net.IPAddr]
}

func newAddressCache(resolver Resolver, ttl time.Duration, preferIPv6 bool) *addressCache {
	c := &addressCache{
		resolver: resolver,
		prefer:   ipv4,
		cache: ttlcache.New[string, net.IPAddr](
			ttlcache.WithTTL[string, net.IPAddr](ttl),
			ttlcache.WithDisableTouchOnHit[string, net.IPAddr](),
		),
	}
	if preferIPv6 {
		c.prefer = ipv6
	}

	return c
}

func (c *addressCache) lookup(ctx context.Context, host string) (net.IPAddr, error) {
	if ip := net.ParseIP(host); ip != nil {
		return net.IPAddr{IP: ip}, nil
	}

	if item := c.cache.Get(host); item != nil {
		return item.Value(), nil
	}

	addrs, err := c.resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return net.IPAddr{}, fmt.Errorf("error resolving target: %w", err)
	}

	addr, ok := pickAddress(addrs, c.prefer)
	if !ok {
		return net.IPAddr{}, fmt.Errorf("no address found for %s", host)
	}

	log.Debugf("resolved host %s to %v (IPv%s)", host, addr.IP, getIPVersion(addr))
	c.cache.Set(host, addr, ttlcache.DefaultTTL)

	return addr, nil
}
