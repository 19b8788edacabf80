package probe

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync/atomic"
	"time"

	"github.com/digineo/go-ping"
)

// The following are used to keep track of the last used ping ID field value,
// and to pick a new one. Each new ping ID is incremented by pingIDIncr, a
// large relatively-prime value which distributes the ID values evenly over
// the entire space in a deterministic manner. The first value chosen is
// the PID, so separate instances of the tracker are unlikely to overlap.
const pingIDIncr = 29479

var lastPingID = uint32(os.Getpid() - pingIDIncr)

// newPingID returns an ID value which won't overlap with recent previous
// values. The first 1024 values are skipped as the kernel and the `ping`
// command tend to start at low numbers.
func newPingID() uint16 {
	for {
		if id := uint16(atomic.AddUint32(&lastPingID, pingIDIncr)); id >= 1024 {
			return id
		}
	}
}

// ICMPOptions configures an ICMP prober.
type ICMPOptions struct {
	// Resolver is used for targets which are no IP literals.
	Resolver Resolver
	// Refresh is the time a resolved address is reused.
	Refresh time.Duration
	// Size is the ICMP payload size.
	Size uint16
	// PreferIPv6 picks IPv6 addresses if a host has both.
	PreferIPv6 bool
}

// ICMP sends echo requests from within the process.
type ICMP struct {
	pinger *ping.Pinger
	addrs  *addressCache
	size   uint16
}

// NewICMP binds the ICMP sockets on every available IP stack.
func NewICMP(opts ICMPOptions) (*ICMP, error) {
	var bind4, bind6 string
	if ln, err := net.Listen("tcp4", "127.0.0.1:0"); err == nil {
		// ipv4 enabled
		ln.Close()
		bind4 = "0.0.0.0"
	}
	if ln, err := net.Listen("tcp6", "[::1]:0"); err == nil {
		// ipv6 enabled
		ln.Close()
		bind6 = "::"
	}

	pinger, err := ping.New(bind4, bind6)
	if err != nil {
		return nil, fmt.Errorf("cannot start pinger: %w", err)
	}
	pinger.Id = newPingID()

	if opts.Size > 0 && pinger.PayloadSize() != opts.Size {
		pinger.SetPayloadSize(opts.Size)
	}

	resolver := opts.Resolver
	if resolver == nil {
		resolver = net.DefaultResolver
	}

	return &ICMP{
		pinger: pinger,
		addrs:  newAddressCache(resolver, opts.Refresh, opts.PreferIPv6),
		size:   pinger.PayloadSize(),
	}, nil
}

// Probe implements Prober. A reply is reported as a single line in the
// format of the Windows ping utility.
func (p *ICMP) Probe(ctx context.Context, target string) (string, error) {
	addr, err := p.addrs.lookup(ctx, target)
	if err != nil {
		return "", err
	}

	rtt, err := p.pinger.PingContext(ctx, &addr)
	if err != nil {
		return "", fmt.Errorf("ping %s (%v): %w", target, addr.IP, err)
	}

	return replyLine(addr, p.size, rtt), nil
}

// Close releases the ICMP sockets.
func (p *ICMP) Close() {
	p.pinger.Close()
}

func replyLine(addr net.IPAddr, size uint16, rtt time.Duration) string {
	return fmt.Sprintf("Reply from %s: bytes=%d time=%dms\n", addr.IP, size, rtt.Round(time.Millisecond).Milliseconds())
}
