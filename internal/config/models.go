package config

import (
	"fmt"
	"sort"
	"time"

	"github.com/muurk/lightwave/internal/state"
)

// Registry is the root of the device file. It names legacy rooms and
// devices, remembers the Smart features learned from the cloud, and keeps the
// last session token so one-shot commands can skip the login round trip.
type Registry struct {
	Version     int                 `yaml:"version"`
	Session     *Session            `yaml:"session,omitempty"`
	Rooms       map[int]*Room       `yaml:"rooms"`
	Features    map[string]*Feature `yaml:"features"`
	Preferences *Preferences        `yaml:"preferences"`
}

// Session is the cached Smart hub login.
type Session struct {
	Email      string    `yaml:"email"`
	Token      string    `yaml:"token"`
	ObtainedAt time.Time `yaml:"obtained_at"`
}

// Room groups the devices paired with one legacy room number.
type Room struct {
	Name    string                `yaml:"name,omitempty"`
	Devices map[int]*LegacyDevice `yaml:"devices,omitempty"`
	// Serials of heating devices reporting for this room.
	Serials []string `yaml:"serials,omitempty"`
}

// LegacyDevice describes a paired receiver in a legacy room.
type LegacyDevice struct {
	Name string `yaml:"name,omitempty"`
	// Type is one of switch, dimmer, relay.
	Type string `yaml:"type,omitempty"`
}

// Feature is a Smart hub feature cached from the cloud structure listing.
type Feature struct {
	Name       string `yaml:"name,omitempty"`
	Kind       string `yaml:"kind"`
	DeviceID   string `yaml:"device_id,omitempty"`
	DeviceName string `yaml:"device_name,omitempty"`
	Writable   bool   `yaml:"writable,omitempty"`
}

// ChannelKind maps the stored kind name onto a state.ChannelKind, returning
// KindUnknown for names this build does not know.
func (f *Feature) ChannelKind() state.ChannelKind {
	k, ok := state.ParseChannelKind(f.Kind)
	if !ok {
		return state.KindUnknown
	}
	return k
}

// Preferences holds application preferences.
type Preferences struct {
	DiscoverTimeout int  `yaml:"discover_timeout"` // seconds
	SaveSession     bool `yaml:"save_session"`
}

// Device types understood by the link commands.
const (
	TypeSwitch = "switch"
	TypeDimmer = "dimmer"
	TypeRelay  = "relay"
)

// NewRegistry creates a new empty registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version:     1,
		Rooms:       make(map[int]*Room),
		Features:    make(map[string]*Feature),
		Preferences: defaultPreferences(),
	}
}

func defaultPreferences() *Preferences {
	return &Preferences{
		DiscoverTimeout: 5,
		SaveSession:     true,
	}
}

// EnsureRoom returns the room with the given number, creating it if needed.
func (r *Registry) EnsureRoom(room int) *Room {
	if r.Rooms == nil {
		r.Rooms = make(map[int]*Room)
	}
	rm, ok := r.Rooms[room]
	if !ok {
		rm = &Room{Devices: make(map[int]*LegacyDevice)}
		r.Rooms[room] = rm
	}
	if rm.Devices == nil {
		rm.Devices = make(map[int]*LegacyDevice)
	}
	return rm
}

// SetRoomName names a legacy room.
func (r *Registry) SetRoomName(room int, name string) {
	r.EnsureRoom(room).Name = name
}

// SetDevice records a legacy device. Empty fields leave the stored value as
// it was.
func (r *Registry) SetDevice(room, device int, name, typ string) error {
	switch typ {
	case "", TypeSwitch, TypeDimmer, TypeRelay:
	default:
		return fmt.Errorf("unknown device type %q", typ)
	}
	rm := r.EnsureRoom(room)
	d, ok := rm.Devices[device]
	if !ok {
		d = &LegacyDevice{}
		rm.Devices[device] = d
	}
	if name != "" {
		d.Name = name
	}
	if typ != "" {
		d.Type = typ
	}
	return nil
}

// AddSerial attaches a heating device serial to a room. Duplicates are
// ignored.
func (r *Registry) AddSerial(room int, serial string) {
	rm := r.EnsureRoom(room)
	for _, s := range rm.Serials {
		if s == serial {
			return
		}
	}
	rm.Serials = append(rm.Serials, serial)
}

// DeviceLabel returns the friendly name of a legacy device, falling back to
// its R<room>D<device> address.
func (r *Registry) DeviceLabel(room, device int) string {
	if rm, ok := r.Rooms[room]; ok {
		if d, ok := rm.Devices[device]; ok && d.Name != "" {
			if rm.Name != "" {
				return rm.Name + " / " + d.Name
			}
			return d.Name
		}
	}
	return fmt.Sprintf("R%dD%d", room, device)
}

// RoomLabel returns the friendly name of a legacy room or R<room>.
func (r *Registry) RoomLabel(room int) string {
	if rm, ok := r.Rooms[room]; ok && rm.Name != "" {
		return rm.Name
	}
	return fmt.Sprintf("R%d", room)
}

// SourceLabel names the source of a legacy update: "R1D2" devices, "R1"
// rooms, or a heating serial, which is shown with the room it reports for.
func (r *Registry) SourceLabel(source string) string {
	var room, device int
	n, _ := fmt.Sscanf(source, "R%dD%d", &room, &device)
	switch {
	case n == 2 && source == fmt.Sprintf("R%dD%d", room, device):
		return r.DeviceLabel(room, device)
	case n == 1 && source == fmt.Sprintf("R%d", room):
		return r.RoomLabel(room)
	}
	for num, rm := range r.Rooms {
		for _, serial := range rm.Serials {
			if serial == source {
				return r.RoomLabel(num) + " " + source
			}
		}
	}
	return source
}

// ReplaceFeatures swaps the cached Smart features for a fresh listing.
func (r *Registry) ReplaceFeatures(features map[string]*Feature) {
	r.Features = make(map[string]*Feature, len(features))
	for id, f := range features {
		r.Features[id] = f
	}
}

// FeatureIDs returns the cached feature ids in sorted order.
func (r *Registry) FeatureIDs() []string {
	ids := make([]string, 0, len(r.Features))
	for id := range r.Features {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// FeatureLabel returns "<device> <name>" for a cached feature, or the id.
func (r *Registry) FeatureLabel(id string) string {
	f, ok := r.Features[id]
	if !ok {
		return id
	}
	switch {
	case f.DeviceName != "" && f.Name != "":
		return f.DeviceName + " " + f.Name
	case f.Name != "":
		return f.Name
	}
	return id
}

// SetSession stores the Smart login token.
func (r *Registry) SetSession(email, token string) {
	r.Session = &Session{
		Email:      email,
		Token:      token,
		ObtainedAt: time.Now().UTC(),
	}
}

// ClearSession forgets the stored token.
func (r *Registry) ClearSession() {
	r.Session = nil
}

// SessionToken returns the stored token for email. An empty email matches
// any stored session.
func (r *Registry) SessionToken(email string) string {
	if r.Session == nil {
		return ""
	}
	if email != "" && r.Session.Email != email {
		return ""
	}
	return r.Session.Token
}
