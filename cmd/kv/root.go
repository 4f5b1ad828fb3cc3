package kv

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ValentinKolb/mKV/cmd/util"
	"github.com/ValentinKolb/mKV/resp/client"
	"github.com/ValentinKolb/mKV/resp/common"
)

// Commands lists the client-side subcommands registered on the root
// command: one per protocol operation plus the perf tool.
var Commands = []*cobra.Command{
	pingCmd,
	getCmd,
	setCmd,
	publishCmd,
	subscribeCmd,
	perfCmd,
}

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)
}

// connect binds the command's flags, initializes logging and dials
// the configured server
func connect(cmd *cobra.Command) (*client.Client, error) {
	if err := util.BindCommandFlags(cmd); err != nil {
		return nil, err
	}
	if err := common.InitLoggers(viper.GetString("log-level")); err != nil {
		return nil, err
	}
	return client.Connect(*util.GetClientConfig())
}
