package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ValentinKolb/mKV/cmd/kv"
	"github.com/ValentinKolb/mKV/cmd/serve"
	"github.com/ValentinKolb/mKV/cmd/util"
	"github.com/ValentinKolb/mKV/resp/common"
)

const (
	Version = "0.3.1"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "mkv",
		Short: "in-memory key-value server",
		Long: fmt.Sprintf(`mKV (v%s)

An in-memory key-value server and client speaking a RESP subset,
with per-key time-to-live and publish/subscribe fan-out.`, Version),
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of mKV",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("mKV v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(versionCmd)
	for _, cmd := range kv.Commands {
		RootCmd.AddCommand(cmd)
	}

	// Add Flags
	key := "host"
	RootCmd.PersistentFlags().String(key, common.DefaultHost, util.WrapString("Address of the server (client commands only)"))
	key = "port"
	RootCmd.PersistentFlags().Uint16(key, common.DefaultPort, util.WrapString("TCP port of the server"))
	key = "log-level"
	RootCmd.PersistentFlags().String(key, "info", util.WrapString("Log verbosity (debug, info, warn, error)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
