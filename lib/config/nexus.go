package config

import (
	"net"
	"strconv"
)

// DefaultSmUDPPort is the well-known session-management control port.
const DefaultSmUDPPort = 31850

// NexusConfig describes the process-wide control-plane listener.
type NexusConfig struct {
	// BindAddr is the local IP the SM UDP socket listens on.
	BindAddr string `yaml:"bind_addr"`
	// SmUDPPort is the SM UDP port. Zero lets the OS pick one, which only
	// makes sense for tests.
	SmUDPPort int `yaml:"sm_udp_port"`
	// AdvertiseHost is the name peers reach this process by. It rides in
	// every endpoint this process owns.
	AdvertiseHost string `yaml:"advertise_host"`
}

// DefaultNexusConfig returns the stock control-plane settings.
func DefaultNexusConfig() *NexusConfig {
	return &NexusConfig{
		BindAddr:      "0.0.0.0",
		SmUDPPort:     DefaultSmUDPPort,
		AdvertiseHost: "localhost",
	}
}

// ListenAddr is the bind address handed to the UDP listener.
func (c *NexusConfig) ListenAddr() string {
	return net.JoinHostPort(c.BindAddr, strconv.Itoa(c.SmUDPPort))
}

// HostAddr is the address peers should be told about.
func (c *NexusConfig) HostAddr() string {
	return net.JoinHostPort(c.AdvertiseHost, strconv.Itoa(c.SmUDPPort))
}
