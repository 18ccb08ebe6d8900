package config

import (
	"testing"
	"time"

	"github.com/go-i2p/logger"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Nexus.SmUDPPort != DefaultSmUDPPort {
		t.Errorf("SmUDPPort = %d, want %d", cfg.Nexus.SmUDPPort, DefaultSmUDPPort)
	}
	if cfg.Rpc.Transport != "udp" {
		t.Errorf("Transport = %q, want udp", cfg.Rpc.Transport)
	}
	if cfg.Rpc.SessionCredits != 8 {
		t.Errorf("SessionCredits = %d, want 8", cfg.Rpc.SessionCredits)
	}
	if cfg.Rpc.SmRetxInterval != 100*time.Millisecond {
		t.Errorf("SmRetxInterval = %v, want 100ms", cfg.Rpc.SmRetxInterval)
	}
	assert.Greater(t, cfg.Rpc.MaxSessions, 0)
	assert.Greater(t, cfg.Rpc.RxRingEntries, cfg.Rpc.SessionCredits)
}

func TestDefaultConfigIsFresh(t *testing.T) {
	a := DefaultConfig()
	b := DefaultConfig()
	a.Rpc.MaxSessions = 1
	if b.Rpc.MaxSessions == 1 {
		t.Error("DefaultConfig() must return independent copies")
	}
}

func TestNexusConfigAddrs(t *testing.T) {
	c := &NexusConfig{BindAddr: "0.0.0.0", SmUDPPort: 31850, AdvertiseHost: "node3"}
	assert.Equal(t, "0.0.0.0:31850", c.ListenAddr())
	assert.Equal(t, "node3:31850", c.HostAddr())
}

func TestViperDefaultsFlow(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	setDefaults()

	cfg := NewConfigFromViper()
	want := DefaultConfig()
	assert.Equal(t, want.Nexus.SmUDPPort, cfg.Nexus.SmUDPPort)
	assert.Equal(t, want.Rpc.Transport, cfg.Rpc.Transport)
	assert.Equal(t, want.Rpc.SessionCredits, cfg.Rpc.SessionCredits)
	assert.Equal(t, want.Rpc.SmRetxInterval, cfg.Rpc.SmRetxInterval)

	// An override flows through to the next read.
	viper.Set("rpc.max_sessions", 42)
	assert.Equal(t, 42, NewConfigFromViper().Rpc.MaxSessions)
	viper.Set("log.level", "error")
	assert.Equal(t, "error", NewConfigFromViper().Log.Level)
}

func TestLogConfigApply(t *testing.T) {
	lg := logger.GetGoI2PLogger()
	origLevel := lg.GetLevel()
	origOut := lg.Out
	defer func() {
		lg.SetLevel(origLevel)
		lg.SetOutput(origOut)
	}()

	(&LogConfig{Level: "error"}).Apply()
	assert.Equal(t, logrus.ErrorLevel, lg.GetLevel())

	// Level names are case-insensitive, unknown names fall back to debug.
	(&LogConfig{Level: "WARN"}).Apply()
	assert.Equal(t, logrus.WarnLevel, lg.GetLevel())
	(&LogConfig{Level: "shout"}).Apply()
	assert.Equal(t, logrus.DebugLevel, lg.GetLevel())

	(&LogConfig{Level: "off"}).Apply()
	assert.Equal(t, logrus.PanicLevel, lg.GetLevel())

	// An empty level must not disturb the current setting.
	lg.SetLevel(logrus.WarnLevel)
	(&LogConfig{Level: ""}).Apply()
	assert.Equal(t, logrus.WarnLevel, lg.GetLevel())
}

func TestConfigDump(t *testing.T) {
	out, err := DefaultConfig().Dump()
	require.NoError(t, err)

	var back Config
	require.NoError(t, yaml.Unmarshal(out, &back))
	assert.Equal(t, DefaultSmUDPPort, back.Nexus.SmUDPPort)
	assert.Equal(t, "udp", back.Rpc.Transport)
}
