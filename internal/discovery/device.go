package discovery

import (
	"fmt"
	"time"
)

// Model identifies the kind of hub found.
type Model string

const (
	// ModelLink is the LightwaveLink, driven over UDP 9760/9761.
	ModelLink Model = "link"
	// ModelLinkPlus is the Link Plus, driven through the websocket API.
	ModelLinkPlus Model = "linkplus"
)

// Hub is a LightwaveRF hub seen on the network.
type Hub struct {
	Model Model

	// Serial is the MAC suffix from the hostname (e.g., "A1B2C3")
	Serial string

	// Hostname is the mDNS hostname (e.g., "LinkPlus-A1B2C3.local.")
	Hostname string

	IP   string
	Port int

	// Metadata contains the mDNS TXT record data
	Metadata map[string]string

	DiscoveredAt time.Time
}

func (h *Hub) String() string {
	return fmt.Sprintf("%s %s (%s) at %s", h.Model, h.Serial, h.Hostname, h.IP)
}

// Address returns host:port of the hub's setup page.
func (h *Hub) Address() string {
	return fmt.Sprintf("%s:%d", h.IP, h.Port)
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (h *Hub) GetMetadata(key string) string {
	if h.Metadata == nil {
		return ""
	}
	return h.Metadata[key]
}
