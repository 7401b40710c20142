package main

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/muurk/lightwave/internal/hub"
	"github.com/muurk/lightwave/internal/protocol"
)

// parseInt parses a positional argument and checks it against [lo, hi].
func parseInt(name, arg string, lo, hi int) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: not a number", name, arg)
	}
	if n < lo || n > hi {
		return 0, fmt.Errorf("invalid %s %d: must be %d-%d", name, n, lo, hi)
	}
	return n, nil
}

// parseRoomDevice parses the leading <room> <device> arguments.
func parseRoomDevice(args []string) (int, int, error) {
	room, err := parseInt("room", args[0], 1, 255)
	if err != nil {
		return 0, 0, err
	}
	device, err := parseInt("device", args[1], 1, 255)
	if err != nil {
		return 0, 0, err
	}
	return room, device, nil
}

func parseRelay(arg string) (protocol.RelayDirection, error) {
	switch strings.ToLower(arg) {
	case "open", "up":
		return protocol.RelayOpen, nil
	case "close", "down":
		return protocol.RelayClose, nil
	case "stop":
		return protocol.RelayStop, nil
	}
	return 0, fmt.Errorf("invalid relay direction %q: want open, close or stop", arg)
}

// collector is a hub.Listener that keeps every update it sees.
type collector struct {
	mu      sync.Mutex
	updates []hub.Update
}

func (c *collector) OnUpdate(u hub.Update) {
	c.mu.Lock()
	c.updates = append(c.updates, u)
	c.mu.Unlock()
}

// heatReports returns the updates that came from heating device reports.
func (c *collector) heatReports() []hub.Update {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []hub.Update
	for _, u := range c.updates {
		if _, ok := u.Message.(protocol.HeatInfoMessage); ok {
			out = append(out, u)
		}
	}
	return out
}
