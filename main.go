package main

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-i2p/logger"
	"github.com/spf13/cobra"

	"github.com/go-fabrpc/go-fabrpc/lib/config"
	"github.com/go-fabrpc/go-fabrpc/lib/nexus"
	"github.com/go-fabrpc/go-fabrpc/lib/rpc"
	"github.com/go-fabrpc/go-fabrpc/lib/session"
	"github.com/go-fabrpc/go-fabrpc/lib/util"
	"github.com/go-fabrpc/go-fabrpc/lib/util/signals"
)

var log = logger.GetGoI2PLogger()

// Version is stamped by the release workflow; the default marks dev builds.
var Version = "0.1.0-dev"

var rootCmd = &cobra.Command{
	Use:   "go-fabrpc",
	Short: "fabrpc session management daemon",
	Long: `go-fabrpc runs the session management plane of a fabrpc endpoint:
a UDP listener for connect/disconnect handshakes and one Rpc instance
accepting sessions on the configured transport.`,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the session management daemon",
	Run: func(cmd *cobra.Command, args []string) {
		runDaemon()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version and exit",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(Version)
	},
}

func init() {
	cobra.OnInitialize(config.InitConfig)
	rootCmd.PersistentFlags().StringVar(&config.CfgFile, "config", "",
		"config file (default $HOME/.go-fabrpc/fabrpc.yaml)")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

func runDaemon() {
	if dump, err := config.Properties.Dump(); err == nil {
		log.Debugf("effective configuration:\n%s", dump)
	}

	log.Debug("starting up fabrpc session daemon")
	nx, err := nexus.New(config.Properties.Nexus)
	if err != nil {
		log.Errorf("failed to create nexus: %s", err)
		return
	}
	nx.Start()

	r, err := rpc.New(nx, config.Properties.Rpc.ID, onSessionEvent, nil, config.Properties.Rpc)
	if err != nil {
		log.Errorf("failed to create rpc: %s", err)
		nx.Close()
		return
	}

	// CloseAll runs in reverse order: the rpc detaches before the listener
	// goes away.
	util.RegisterCloser(nx)
	util.RegisterCloser(r)

	stop := make(chan struct{})
	var stopOnce sync.Once
	go signals.Handle()
	signals.RegisterReloadHandler(func() {
		config.UpdateConfig()
		if dump, err := config.Properties.Dump(); err == nil {
			log.Debugf("configuration reloaded:\n%s", dump)
		}
	})
	signals.RegisterPreShutdownHandler(func() {
		// One more drain so in-flight teardown acks get out before the
		// sockets close.
		r.RunEventLoopOnce()
	})
	signals.RegisterInterruptHandler(func() {
		stopOnce.Do(func() { close(stop) })
	})
	config.WatchConfig(nil)

	log.WithFields(logger.Fields{
		"at":        "main.runDaemon",
		"host_addr": nx.HostAddr(),
		"rpc_id":    config.Properties.Rpc.ID,
	}).Debug("daemon_running")
	for {
		select {
		case <-stop:
			util.CloseAll()
			signals.StopHandle()
			return
		default:
			r.RunEventLoopOnce()
			time.Sleep(time.Millisecond)
		}
	}
}

// onSessionEvent logs session lifecycle events. The daemon is a pure
// acceptor, so events only fire when an operator drives client sessions from
// this process.
func onSessionEvent(sessionNum int, event session.EventType, code session.ErrCode, _ interface{}) {
	log.WithFields(logger.Fields{
		"at":          "main.onSessionEvent",
		"session_num": sessionNum,
		"event":       event.String(),
		"err_code":    code.String(),
	}).Debug("session_event")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Errorf("command failed: %s", err)
		os.Exit(1)
	}
}
