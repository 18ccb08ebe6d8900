package config

import (
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/go-i2p/logger"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/go-fabrpc/go-fabrpc/lib/util"
)

var (
	CfgFile string
	log     = logger.GetGoI2PLogger()
)

const FABRPC_BASE_DIR = ".go-fabrpc"

// Config is the full effective configuration of a fabrpc process.
type Config struct {
	Nexus *NexusConfig `yaml:"nexus"`
	Rpc   *RpcConfig   `yaml:"rpc"`
	Log   *LogConfig   `yaml:"log"`
}

// DefaultConfig returns a fresh configuration tree with stock settings.
func DefaultConfig() *Config {
	return &Config{
		Nexus: DefaultNexusConfig(),
		Rpc:   DefaultRpcConfig(),
		Log:   DefaultLogConfig(),
	}
}

// Properties is the process-wide configuration, updated by InitConfig and
// config-file reloads.
var Properties = DefaultConfig()

// InitConfig loads defaults and the config file, then refreshes Properties.
func InitConfig() {
	if CfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(CfgFile)
	} else {
		// Default config path $HOME/.go-fabrpc/
		viper.AddConfigPath(BuildFabrpcDirPath())
		viper.SetConfigName("fabrpc")
		viper.SetConfigType("yaml")
	}

	setDefaults()

	// handle config file, creating it if needed
	handleConfigFile()

	UpdateConfig()
}

func setDefaults() {
	nx := DefaultNexusConfig()
	viper.SetDefault("nexus.bind_addr", nx.BindAddr)
	viper.SetDefault("nexus.sm_udp_port", nx.SmUDPPort)
	viper.SetDefault("nexus.advertise_host", nx.AdvertiseHost)

	rc := DefaultRpcConfig()
	viper.SetDefault("rpc.id", int(rc.ID))
	viper.SetDefault("rpc.transport", rc.Transport)
	viper.SetDefault("rpc.phy_port", int(rc.PhyPort))
	viper.SetDefault("rpc.data_bind_addr", rc.DataBindAddr)
	viper.SetDefault("rpc.max_sessions", rc.MaxSessions)
	viper.SetDefault("rpc.session_credits", rc.SessionCredits)
	viper.SetDefault("rpc.rx_ring_entries", rc.RxRingEntries)
	viper.SetDefault("rpc.alloc_capacity_mb", rc.AllocCapacityMB)
	viper.SetDefault("rpc.numa_node", rc.NumaNode)
	viper.SetDefault("rpc.sm_retx_interval", rc.SmRetxInterval)

	lc := DefaultLogConfig()
	viper.SetDefault("log.level", lc.Level)
}

// NewConfigFromViper builds a configuration tree from the current viper
// settings without touching the global Properties.
func NewConfigFromViper() *Config {
	return &Config{
		Nexus: &NexusConfig{
			BindAddr:      viper.GetString("nexus.bind_addr"),
			SmUDPPort:     viper.GetInt("nexus.sm_udp_port"),
			AdvertiseHost: viper.GetString("nexus.advertise_host"),
		},
		Rpc: &RpcConfig{
			ID:              uint8(viper.GetUint("rpc.id")),
			Transport:       viper.GetString("rpc.transport"),
			PhyPort:         uint16(viper.GetUint("rpc.phy_port")),
			DataBindAddr:    viper.GetString("rpc.data_bind_addr"),
			MaxSessions:     viper.GetInt("rpc.max_sessions"),
			SessionCredits:  viper.GetInt("rpc.session_credits"),
			RxRingEntries:   viper.GetInt("rpc.rx_ring_entries"),
			AllocCapacityMB: viper.GetInt("rpc.alloc_capacity_mb"),
			NumaNode:        viper.GetInt("rpc.numa_node"),
			SmRetxInterval:  viper.GetDuration("rpc.sm_retx_interval"),
		},
		Log: &LogConfig{
			Level: viper.GetString("log.level"),
		},
	}
}

// UpdateConfig refreshes the global Properties from viper and re-applies the
// log level, so a config-file reload can change verbosity on a live process.
func UpdateConfig() {
	fresh := NewConfigFromViper()
	Properties.Nexus = fresh.Nexus
	Properties.Rpc = fresh.Rpc
	Properties.Log = fresh.Log
	Properties.Log.Apply()
}

// WatchConfig re-reads Properties whenever the config file changes and then
// calls onChange with the fresh tree.
func WatchConfig(onChange func(*Config)) {
	viper.OnConfigChange(func(in fsnotify.Event) {
		log.WithFields(logger.Fields{
			"at":   "config.WatchConfig",
			"file": in.Name,
			"op":   in.Op.String(),
		}).Debug("config_file_changed")
		UpdateConfig()
		if onChange != nil {
			onChange(Properties)
		}
	})
	viper.WatchConfig()
}

// Dump renders the effective configuration as YAML, for startup logging and
// diagnostics.
func (c *Config) Dump() ([]byte, error) {
	return yaml.Marshal(c)
}

func createDefaultConfig(defaultConfigDir string) {
	defaultConfigFile := filepath.Join(defaultConfigDir, "fabrpc.yaml")
	// A file that exists but could not be matched by viper must not be
	// overwritten with defaults.
	if util.CheckFileExists(defaultConfigFile) {
		log.Debugf("Config file already present at: %s", defaultConfigFile)
		return
	}
	// Ensure directory exists
	if err := os.MkdirAll(defaultConfigDir, 0o755); err != nil {
		log.Fatalf("Could not create config directory: %s", err)
	}

	// Write current config file
	if err := viper.WriteConfigAs(defaultConfigFile); err != nil {
		log.Fatalf("Could not write default config file: %s", err)
	}

	log.Debugf("Created default configuration at: %s", defaultConfigFile)
}

func handleConfigFile() {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			if CfgFile != "" {
				log.Fatalf("Config file %s is not found: %s", CfgFile, err)
			} else {
				createDefaultConfig(BuildFabrpcDirPath())
			}
		} else {
			log.Fatalf("Error reading config file: %s", err)
		}
	} else {
		log.Debugf("Using config file: %s", viper.ConfigFileUsed())
	}
}

func BuildFabrpcDirPath() string {
	return filepath.Join(util.UserHome(), FABRPC_BASE_DIR)
}
