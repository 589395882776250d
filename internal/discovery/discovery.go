// Package discovery advertises the Gatehouse API on the local network over
// mDNS/DNS-SD and finds other gatehouses.
//
// Gate tablets and the CLI use it to locate the API without a fixed
// address. TXT records carry the site ID, API path and version.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"

	"github.com/nerrad567/gatehouse/internal/infrastructure/config"
)

// Defaults used when the config leaves a field empty.
const (
	DefaultService = "_gatehouse._tcp"
	DefaultDomain  = "local."
	apiPath        = "/api/v1"
)

// ErrInvalidPort is returned when the advertised port is out of range.
var ErrInvalidPort = errors.New("discovery: invalid port")

// Advertiser publishes one service instance until Shutdown.
type Advertiser struct {
	server *zeroconf.Server
}

// Info is what gets advertised.
type Info struct {
	Instance string
	Service  string
	Domain   string
	Port     int
	SiteID   string
	Version  string
}

// InfoFromConfig fills Info from the discovery, site and api sections.
func InfoFromConfig(cfg *config.Config, version string) Info {
	instance := cfg.Discovery.Instance
	if instance == "" {
		instance = cfg.Site.Name
	}
	return Info{
		Instance: instance,
		Service:  cfg.Discovery.Service,
		Domain:   cfg.Discovery.Domain,
		Port:     cfg.API.Port,
		SiteID:   cfg.Site.ID,
		Version:  version,
	}
}

// TXT returns the DNS-SD TXT records for info.
func (info Info) TXT() []string {
	return []string{
		"site=" + info.SiteID,
		"path=" + apiPath,
		"version=" + info.Version,
	}
}

func (info Info) withDefaults() Info {
	if info.Instance == "" {
		info.Instance = "Gatehouse"
	}
	if info.Service == "" {
		info.Service = DefaultService
	}
	if info.Domain == "" {
		info.Domain = DefaultDomain
	}
	return info
}

// Advertise registers the service on all multicast interfaces.
func Advertise(info Info) (*Advertiser, error) {
	if info.Port <= 0 || info.Port > 65535 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPort, info.Port)
	}
	info = info.withDefaults()

	server, err := zeroconf.Register(info.Instance, info.Service, info.Domain, info.Port, info.TXT(), nil)
	if err != nil {
		return nil, fmt.Errorf("registering mDNS service: %w", err)
	}
	return &Advertiser{server: server}, nil
}

// Shutdown withdraws the advertisement. Safe on a nil Advertiser.
func (a *Advertiser) Shutdown() {
	if a == nil || a.server == nil {
		return
	}
	a.server.Shutdown()
}

// Peer is a gatehouse found on the network.
type Peer struct {
	Instance string   `json:"instance"`
	Host     string   `json:"host"`
	Addrs    []string `json:"addrs"`
	Port     int      `json:"port"`
	SiteID   string   `json:"site_id,omitempty"`
	Version  string   `json:"version,omitempty"`
}

// URL returns the API base URL of the peer, preferring its first address.
func (p Peer) URL() string {
	host := strings.TrimSuffix(p.Host, ".")
	if len(p.Addrs) > 0 {
		host = p.Addrs[0]
		if strings.Contains(host, ":") {
			host = "[" + host + "]"
		}
	}
	return fmt.Sprintf("http://%s:%d%s", host, p.Port, apiPath)
}

// Browse collects peers advertising service until timeout or ctx ends.
func Browse(ctx context.Context, service, domain string, timeout time.Duration) ([]Peer, error) {
	info := Info{Service: service, Domain: domain}.withDefaults()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("initialising mDNS resolver: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	if err := resolver.Browse(ctx, info.Service, info.Domain, entries); err != nil {
		return nil, fmt.Errorf("browsing %s: %w", info.Service, err)
	}

	var peers []Peer
	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				return peers, nil
			}
			peers = append(peers, peerFromEntry(entry))
		case <-ctx.Done():
			return peers, nil
		}
	}
}

func peerFromEntry(entry *zeroconf.ServiceEntry) Peer {
	p := Peer{
		Instance: entry.Instance,
		Host:     entry.HostName,
		Port:     entry.Port,
	}
	for _, ip := range entry.AddrIPv4 {
		p.Addrs = append(p.Addrs, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		p.Addrs = append(p.Addrs, ip.String())
	}
	for _, txt := range entry.Text {
		key, value, ok := strings.Cut(txt, "=")
		if !ok {
			continue
		}
		switch key {
		case "site":
			p.SiteID = value
		case "version":
			p.Version = value
		}
	}
	return p
}
