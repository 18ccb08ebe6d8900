package config

import "time"

// RpcConfig describes one Rpc instance: its identity, transport binding and
// resource budgets.
type RpcConfig struct {
	// ID is the process-local rpc identifier peers address.
	ID uint8 `yaml:"id"`
	// Transport names the data-path fabric ("udp" or "loopback").
	Transport string `yaml:"transport"`
	// PhyPort is the physical fabric port index this Rpc manages. Connect
	// requests naming any other port are refused.
	PhyPort uint16 `yaml:"phy_port"`
	// DataBindAddr is the transport's local bind address; empty means an
	// OS-assigned port.
	DataBindAddr string `yaml:"data_bind_addr"`

	// MaxSessions caps the session table. Tombstoned slots count against it
	// because slots are never reused.
	MaxSessions int `yaml:"max_sessions"`
	// SessionCredits is the receive credits one session holds while it lives.
	SessionCredits int `yaml:"session_credits"`
	// RxRingEntries is the receive-credit pool all sessions draw from.
	RxRingEntries int `yaml:"rx_ring_entries"`

	// AllocCapacityMB caps the hugepage allocator; zero means unlimited.
	AllocCapacityMB int `yaml:"alloc_capacity_mb"`
	// NumaNode is the preferred memory node for backing slabs.
	NumaNode int `yaml:"numa_node"`

	// SmRetxInterval is how long an unanswered management request waits
	// before it is retransmitted.
	SmRetxInterval time.Duration `yaml:"sm_retx_interval"`
}

// DefaultRpcConfig returns the stock Rpc settings.
func DefaultRpcConfig() *RpcConfig {
	return &RpcConfig{
		ID:              0,
		Transport:       "udp",
		PhyPort:         0,
		DataBindAddr:    "",
		MaxSessions:     1024,
		SessionCredits:  8,
		RxRingEntries:   4096,
		AllocCapacityMB: 2048,
		NumaNode:        0,
		SmRetxInterval:  100 * time.Millisecond,
	}
}
