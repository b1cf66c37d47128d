package main

import (
	"fmt"
	"log"

	"github.com/grandcat/zeroconf"

	"github.com/dotside-studios/davi-nfc-agent/internal/buildinfo"
)

const (
	mdnsServiceType = "_nci-agent._tcp"
	mdnsDomain      = "local."
)

// Discovery advertises this agent over mDNS so a companion UI can find it
// without a configured address, adapted from server/server.go's startMDNS.
type Discovery struct {
	server *zeroconf.Server
}

// Advertise registers the mDNS service on port and returns a Discovery
// that can later be shut down.
func Advertise(port int) (*Discovery, error) {
	txtRecords := []string{
		fmt.Sprintf("version=%s", buildinfo.FullVersion()),
		"protocol=websocket",
		"path=/ws",
	}

	server, err := zeroconf.Register(buildinfo.DisplayName, mdnsServiceType, mdnsDomain, port, txtRecords, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}

	log.Printf("[discovery] advertising %s on %s, port %d", buildinfo.DisplayName, mdnsServiceType, port)
	return &Discovery{server: server}, nil
}

// Shutdown unregisters the mDNS service.
func (d *Discovery) Shutdown() {
	if d.server != nil {
		d.server.Shutdown()
	}
}
