// Package mdns discovers IIOD-capable hosts via mDNS/DNS-SD, the empty-host
// resolution collaborator spec §6 names for the "ip:" URI with no host
// (browsing _iio._tcp.local). Adapted from the teacher project's
// internal/mdns package; renamed Discover to match the transport package's
// call site and to read as a narrow collaborator rather than a CLI helper.
package mdns

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
)

// Host represents one discovered IIOD-capable device.
type Host struct {
	Instance  string // advertised name, e.g. "iiod on pluto"
	Hostname  string // DNS hostname, e.g. "pluto.local."
	Addresses []net.IP
	Port      int
	TXT       []string
}

// Discover performs a blocking mDNS browse for _iio._tcp.local services and
// returns cleaned, deduplicated entries.
func Discover(timeout time.Duration) ([]Host, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("mdns: resolver: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	results := make(map[string]Host)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case e, ok := <-entries:
				if !ok {
					return
				}
				if e == nil {
					continue
				}
				addrs := make([]net.IP, 0, len(e.AddrIPv4)+len(e.AddrIPv6))
				addrs = append(addrs, e.AddrIPv4...)
				addrs = append(addrs, e.AddrIPv6...)
				key := fmt.Sprintf("%s|%d", e.HostName, e.Port)
				results[key] = Host{
					Instance:  cleanInstance(e.Instance),
					Hostname:  e.HostName,
					Addresses: addrs,
					Port:      e.Port,
					TXT:       append([]string{}, e.Text...),
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	if err := resolver.Browse(ctx, "_iio._tcp", "local.", entries); err != nil {
		return nil, fmt.Errorf("mdns: browse: %w", err)
	}
	<-done

	out := make([]Host, 0, len(results))
	for _, h := range results {
		out = append(out, h)
	}
	return out, nil
}

// cleanInstance removes zeroconf escape sequences ("\ " -> " ").
func cleanInstance(s string) string {
	return strings.ReplaceAll(s, `\ `, " ")
}
