package kv

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	publishCmd = &cobra.Command{
		Use:   "publish <channel> <msg>",
		Short: "Publish a message to a channel",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			n, err := c.Publish(args[0], []byte(args[1]))
			if err != nil {
				return err
			}

			fmt.Printf("message delivered to %d subscribers\n", n)
			return nil
		},
	}

	subscribeCmd = &cobra.Command{
		Use:   "subscribe <channel>...",
		Short: "Subscribe to channels and print received messages",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			sub, err := c.Subscribe(args...)
			if err != nil {
				return err
			}

			for {
				msg, err := sub.NextMessage()
				if err != nil {
					return err
				}
				fmt.Printf("from = %q; %s\n", msg.Channel, msg.Payload)
			}
		},
	}
)
