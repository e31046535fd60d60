// Package discovery sweeps a network for Mono X printers. A host counts as
// a printer when it accepts a TCP connection on the uart-wifi port and
// answers a sysinfo exchange; the ARP cache's Anycubic MAC prefix only
// decides probe order, never membership.
package discovery

import (
	"context"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vk/monoxbridge/internal/ctxlog"
	"github.com/vk/monoxbridge/internal/uartwifi"
)

// OUIPrefix is the MAC vendor prefix of Anycubic uart-wifi boards.
const OUIPrefix = "28:6d:cd"

const (
	defaultConcurrency  = 64
	defaultProbeTimeout = 2 * time.Second
)

// Options tune a scan. The zero value scans the default port with the
// default concurrency and per-host timeout.
type Options struct {
	Port        int
	Concurrency int
	Timeout     time.Duration
}

// Result is one discovered printer.
type Result struct {
	Host string
	Info *uartwifi.SysInfo
}

// Scan probes every host in the CIDR and returns the printers found,
// sorted by host. Unreachable hosts are skipped silently; only a malformed
// CIDR is an error.
func Scan(ctx context.Context, cidr string, opts Options) ([]Result, error) {
	if opts.Port == 0 {
		opts.Port = uartwifi.DefaultPort
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultProbeTimeout
	}

	hosts, err := expandCIDR(cidr)
	if err != nil {
		return nil, err
	}
	hosts = rankHosts(hosts, arpTable())

	logger := ctxlog.FromContext(ctx)
	logger.Info("Scanning for printers.", "cidr", cidr, "hosts", len(hosts), "port", opts.Port)

	var mu sync.Mutex
	var results []Result

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(opts.Concurrency)
	for _, host := range hosts {
		group.Go(func() error {
			info, err := probe(groupCtx, host, opts)
			if err != nil {
				return nil // not a printer
			}
			logger.Info("Printer found.", "host", host, "model", info.Model, "serial", info.Serial)
			mu.Lock()
			results = append(results, Result{Host: host, Info: info})
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Host < results[j].Host })
	return results, nil
}

// probe performs the sysinfo handshake that separates a printer from any
// other device that happens to listen on the port.
func probe(ctx context.Context, host string, opts Options) (*uartwifi.SysInfo, error) {
	probeCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()
	return uartwifi.NewClient(host, opts.Port).SysInfo(probeCtx)
}

// expandCIDR lists the probeable addresses of a CIDR, excluding the
// network and broadcast addresses of prefixes wider than /31.
func expandCIDR(cidr string) ([]string, error) {
	ip, ipNet, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, fmt.Errorf("discovery: invalid CIDR %q: %w", cidr, err)
	}

	ones, bits := ipNet.Mask.Size()
	var hosts []string
	for addr := ip.Mask(ipNet.Mask); ipNet.Contains(addr); addr = nextIP(addr) {
		hosts = append(hosts, addr.String())
	}
	if bits-ones > 1 && len(hosts) > 2 {
		hosts = hosts[1 : len(hosts)-1]
	}
	return hosts, nil
}

func nextIP(ip net.IP) net.IP {
	next := make(net.IP, len(ip))
	copy(next, ip)
	for i := len(next) - 1; i >= 0; i-- {
		next[i]++
		if next[i] != 0 {
			break
		}
	}
	return next
}

// rankHosts moves hosts whose ARP entry carries the Anycubic OUI to the
// front so the likely printers are probed first on big subnets.
func rankHosts(hosts []string, macs map[string]string) []string {
	if len(macs) == 0 {
		return hosts
	}
	ranked := make([]string, 0, len(hosts))
	var rest []string
	for _, host := range hosts {
		if hasOUI(macs[host], OUIPrefix) {
			ranked = append(ranked, host)
		} else {
			rest = append(rest, host)
		}
	}
	return append(ranked, rest...)
}
