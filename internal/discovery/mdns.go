package discovery

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/lightwave/internal/logging"
)

const (
	// ServiceType is the mDNS service type hubs advertise
	ServiceType = "_http._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultScanTimeout is the default timeout for hub discovery
	DefaultScanTimeout = 5 * time.Second

	// DefaultPort is used when an entry carries no port
	DefaultPort = 80
)

// hostnamePattern matches hub hostnames such as "LinkPlus-A1B2C3.local" or
// "LightwaveLink-0A1B2C.local.". The first group selects the model.
var hostnamePattern = regexp.MustCompile(`(?i)^(linkplus|lightwavelink|lwlink)[-_]?([0-9a-f]{6,12})\.local\.?$`)

// Scanner handles mDNS hub discovery
type Scanner struct {
	// Timeout is the maximum time to wait for answers
	Timeout time.Duration

	// browse is swapped out in tests
	browse func(ctx context.Context, entries chan<- *zeroconf.ServiceEntry) error
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
		browse:  browseZeroconf,
	}
}

func browseZeroconf(ctx context.Context, entries chan<- *zeroconf.ServiceEntry) error {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return fmt.Errorf("failed to create mDNS resolver: %w", err)
	}
	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return fmt.Errorf("failed to browse for mDNS services: %w", err)
	}
	return nil
}

// Scan collects every hub that answers before the timeout. Hubs announcing
// more than one address are reported once.
func (s *Scanner) Scan(ctx context.Context) ([]*Hub, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	var (
		mu   sync.Mutex
		hubs []*Hub
		seen = make(map[string]bool)
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				hub := parseServiceEntry(entry)
				if hub == nil {
					continue
				}
				mu.Lock()
				if !seen[hub.Hostname] {
					seen[hub.Hostname] = true
					hubs = append(hubs, hub)
					logging.Debug("Hub discovered",
						zap.String("model", string(hub.Model)),
						zap.String("serial", hub.Serial),
						zap.String("ip", hub.IP),
					)
				}
				mu.Unlock()
			case <-ctx.Done():
				return
			}
		}
	}()

	if err := s.browse(ctx, entries); err != nil {
		cancel()
		<-done
		return nil, err
	}

	<-ctx.Done()
	<-done

	mu.Lock()
	defer mu.Unlock()
	return hubs, nil
}

// WaitForHub returns the first hub with the given serial (case-insensitive).
func (s *Scanner) WaitForHub(ctx context.Context, serial string) (*Hub, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	found := make(chan *Hub, 1)

	go func() {
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				hub := parseServiceEntry(entry)
				if hub != nil && strings.EqualFold(hub.Serial, serial) {
					found <- hub
					cancel()
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	if err := s.browse(ctx, entries); err != nil {
		return nil, err
	}

	select {
	case hub := <-found:
		return hub, nil
	case <-ctx.Done():
		select {
		case hub := <-found:
			return hub, nil
		default:
		}
		return nil, fmt.Errorf("hub with serial %s not found within timeout", serial)
	}
}

// parseServiceEntry converts a zeroconf service entry to a Hub.
// Returns nil if the entry is not a LightwaveRF hub.
func parseServiceEntry(entry *zeroconf.ServiceEntry) *Hub {
	if entry == nil || entry.HostName == "" {
		return nil
	}

	matches := hostnamePattern.FindStringSubmatch(entry.HostName)
	if matches == nil {
		return nil
	}

	model := ModelLink
	if strings.EqualFold(matches[1], "linkplus") {
		model = ModelLinkPlus
	}

	// prefer IPv4
	var ip string
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	port := entry.Port
	if port == 0 {
		port = DefaultPort
	}

	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		key, value, _ := strings.Cut(txt, "=")
		metadata[key] = value
	}

	return &Hub{
		Model:        model,
		Serial:       strings.ToUpper(matches[2]),
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         port,
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}
