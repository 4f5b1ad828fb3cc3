package serve

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ValentinKolb/mKV/cmd/util"
	"github.com/ValentinKolb/mKV/resp/common"
	"github.com/ValentinKolb/mKV/resp/server"
)

var (
	// ServeCmd starts the key-value server
	ServeCmd = &cobra.Command{
		Use:     "serve",
		Short:   "Start the in-memory key-value server",
		Long:    "Start the in-memory key-value server. It serves the RESP command subset over TCP until an interrupt or terminate signal arrives, then shuts down gracefully.",
		PreRunE: processConfig,
		RunE:    run,
	}

	serverConfig common.ServerConfig
)

func init() {
	cobra.OnInitialize(util.InitConfig)

	key := "max-connections"
	ServeCmd.Flags().Int(key, common.DefaultMaxConnections, util.WrapString("Maximum number of simultaneously served client connections"))

	key = "channel-capacity"
	ServeCmd.Flags().Int(key, common.DefaultChannelCapacity, util.WrapString("Messages buffered per pub/sub subscriber before the oldest are dropped"))

	key = "tcp-nodelay"
	ServeCmd.Flags().Bool(key, true, util.WrapString("Whether to enable TCP_NODELAY on accepted connections"))

	key = "tcp-keepalive"
	ServeCmd.Flags().Int(key, 0, util.WrapString("TCP keep-alive interval in seconds (0 = disabled)"))
}

// processConfig reads the server configuration from flags and
// environment variables and initializes logging
func processConfig(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	serverConfig = common.ServerConfig{
		Port:            uint16(viper.GetUint32("port")),
		MaxConnections:  viper.GetInt("max-connections"),
		ChannelCapacity: viper.GetInt("channel-capacity"),
		TCPNoDelay:      viper.GetBool("tcp-nodelay"),
		TCPKeepAliveSec: viper.GetInt("tcp-keepalive"),
		LogLevel:        viper.GetString("log-level"),
	}

	return common.InitLoggers(serverConfig.LogLevel)
}

// run starts the server and blocks until shutdown
func run(_ *cobra.Command, _ []string) error {
	fmt.Println(serverConfig.String())

	srv := server.New(serverConfig)
	if err := srv.Run(); err != nil {
		return err
	}

	stats := srv.DB().Stats()
	server.Logger.Infof("final keyspace: %d keys (%d expiring), %d channels",
		stats.Keys, stats.ExpiringKeys, stats.Channels)
	return nil
}
