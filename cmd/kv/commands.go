package kv

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ValentinKolb/mKV/cmd/util"
)

var (
	pingCmd = &cobra.Command{
		Use:   "ping [msg]",
		Short: "Check that the server is reachable",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			var msg []byte
			if len(args) == 1 {
				msg = []byte(args[0])
			}

			reply, err := c.Ping(msg)
			if err != nil {
				return err
			}

			fmt.Println(string(reply))
			return nil
		},
	}

	getCmd = &cobra.Command{
		Use:   "get <key>",
		Short: "Get the value of a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			value, ok, err := c.Get(args[0])
			if err != nil {
				return err
			}

			if !ok {
				fmt.Println("(nil)")
				return nil
			}
			fmt.Println(string(value))
			return nil
		},
	}

	setCmd = &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a key to a value, optionally with an expiry",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			expires, err := cmd.Flags().GetUint64("expires")
			if err != nil {
				return err
			}

			if expires > 0 {
				err = c.SetExpires(args[0], []byte(args[1]), time.Duration(expires)*time.Second)
			} else {
				err = c.Set(args[0], []byte(args[1]))
			}
			if err != nil {
				return err
			}

			fmt.Println("OK")
			return nil
		},
	}
)

func init() {
	key := "expires"
	setCmd.Flags().Uint64(key, 0, util.WrapString("Expire the key after this many seconds (0 = never)"))
}
