package server

import (
	"fmt"
	"reflect"

	"github.com/VictoriaMetrics/metrics"

	"github.com/ValentinKolb/mKV/lib/db"
	"github.com/ValentinKolb/mKV/lib/db/util"
	"github.com/ValentinKolb/mKV/resp"
	"github.com/ValentinKolb/mKV/resp/command"
)

// --------------------------------------------------------------------------
// Per-Connection Handler
// --------------------------------------------------------------------------

// connHandler drives a single client connection: it reads frames,
// dispatches commands against the keyspace and writes replies, in
// order, until the peer closes, an error occurs or shutdown fires.
type connHandler struct {
	db       *db.DB
	conn     *resp.Connection
	shutdown *Shutdown
}

// inboundFrame carries one read result from the reader goroutine to
// the handler loop.
type inboundFrame struct {
	frame *resp.Frame
	err   error
}

// run processes the connection until it ends. The returned error is
// nil for a clean exit (peer closed or shutdown).
func (h *connHandler) run() error {
	// The reader goroutine turns blocking socket reads into channel
	// receives so the handler can await frames and the shutdown
	// signal at once. It ends with the handler: closing the socket
	// unblocks its read, and the done channel unblocks its send.
	done := make(chan struct{})
	defer close(done)

	inbound := make(chan inboundFrame)
	go func() {
		for {
			frame, err := h.conn.ReadFrame()
			select {
			case inbound <- inboundFrame{frame: frame, err: err}:
			case <-done:
				return
			}
			if frame == nil || err != nil {
				return
			}
		}
	}()

	for {
		// Shutdown wins over frames already buffered: no draining.
		if h.shutdown.IsSignaled() {
			return nil
		}

		select {
		case <-h.shutdown.Done():
			return nil
		case in := <-inbound:
			if in.err != nil {
				return in.err
			}
			if in.frame == nil {
				return nil // peer closed cleanly
			}

			cmd, err := command.FromFrame(*in.frame)
			if err != nil {
				return err
			}
			countCommand(cmd)

			if sub, ok := cmd.(*command.Subscribe); ok {
				resumed, err := h.subscriberMode(sub.Channels, inbound)
				if err != nil {
					return err
				}
				if !resumed {
					return nil
				}
				continue
			}

			reply := h.apply(cmd)
			if err := h.conn.WriteFrame(&reply); err != nil {
				return fmt.Errorf("failed to write reply: %v", err)
			}
		}
	}
}

// apply dispatches a command in normal mode and returns its reply.
func (h *connHandler) apply(cmd command.Command) resp.Frame {
	switch c := cmd.(type) {
	case *command.Ping:
		return c.Apply()
	case *command.Get:
		return c.Apply(h.db)
	case *command.Set:
		return c.Apply(h.db)
	case *command.Publish:
		return c.Apply(h.db)
	case *command.Unsubscribe:
		// Only valid while in subscriber mode.
		return resp.NewError("ERR 'unsubscribe' is only allowed in subscribe mode")
	case *command.Unknown:
		return c.Apply()
	default:
		return resp.NewError(fmt.Sprintf("ERR unknown command '%s'", cmd.Name()))
	}
}

// countCommand bumps the per-command counter.
func countCommand(cmd command.Command) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`mkv_commands_total{command=%q}`, cmd.Name())).Inc()
}

// --------------------------------------------------------------------------
// Subscriber State Machine
// --------------------------------------------------------------------------

// subscription is one channel this connection listens on.
type subscription struct {
	channel  string
	receiver *util.Receiver
}

// subscriberMode runs the connection's subscribed-streams substate.
//
// It multiplexes the shutdown signal, inbound client frames and one
// receiver per subscribed channel over a dynamic select. In this mode
// only SUBSCRIBE, UNSUBSCRIBE and PING are served; other commands get
// an error reply naming them. The method returns when the connection
// ends (resumed=false) or when the subscription count drops to zero
// (resumed=true, back to normal command mode).
func (h *connHandler) subscriberMode(channels []string, inbound chan inboundFrame) (resumed bool, err error) {
	var subs []subscription
	defer func() {
		for _, sub := range subs {
			sub.receiver.Close()
		}
	}()

	// Channels requested but not yet subscribed; starts with the
	// channels of the SUBSCRIBE command that entered this mode.
	pending := channels

	for {
		// Apply pending subscriptions and confirm each one.
		for _, channel := range pending {
			if idx := findSubscription(subs, channel); idx >= 0 {
				// Re-subscribing an already subscribed channel swaps
				// in a fresh receiver; the count does not change.
				subs[idx].receiver.Close()
				subs[idx].receiver = h.db.Subscribe(channel)
			} else {
				subs = append(subs, subscription{
					channel:  channel,
					receiver: h.db.Subscribe(channel),
				})
			}

			confirm := resp.NewArray(
				resp.NewBulk([]byte("subscribe")),
				resp.NewBulk([]byte(channel)),
				resp.NewInteger(int64(len(subs))))
			if err := h.conn.WriteFrame(&confirm); err != nil {
				return false, fmt.Errorf("failed to write subscribe reply: %v", err)
			}
		}
		pending = nil

		// All subscriptions gone: return to normal command mode.
		if len(subs) == 0 {
			return true, nil
		}

		if h.shutdown.IsSignaled() {
			return false, nil
		}

		// Await whichever source fires first: shutdown, an inbound
		// frame, or a message on any subscribed channel.
		cases := make([]reflect.SelectCase, 0, len(subs)+2)
		cases = append(cases,
			reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(h.shutdown.Done())},
			reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(inbound)})
		for _, sub := range subs {
			cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(sub.receiver.Ch())})
		}

		chosen, value, _ := reflect.Select(cases)
		switch chosen {
		case 0:
			// Shutdown requested.
			return false, nil

		case 1:
			in := value.Interface().(inboundFrame)
			stop, newChannels, err := h.handleSubscriberFrame(in, &subs)
			if stop || err != nil {
				return false, err
			}
			pending = newChannels

		default:
			sub := subs[chosen-2]

			// A lagged receiver missed messages because its queue
			// overflowed; this is swallowed without ending the
			// session and without informing the client.
			if n := sub.receiver.Lagged(); n > 0 {
				Logger.Warningf("subscriber lagged on channel %q, skipped %d messages", sub.channel, n)
			}

			payload := value.Interface().([]byte)
			message := resp.NewArray(
				resp.NewBulk([]byte("message")),
				resp.NewBulk([]byte(sub.channel)),
				resp.NewBulk(payload))
			if err := h.conn.WriteFrame(&message); err != nil {
				return false, fmt.Errorf("failed to write message: %v", err)
			}
		}
	}
}

// handleSubscriberFrame processes one client frame received while in
// subscriber mode. It reports whether the connection should stop,
// and which channels to subscribe next.
func (h *connHandler) handleSubscriberFrame(in inboundFrame, subs *[]subscription) (stop bool, newChannels []string, err error) {
	if in.err != nil {
		return true, nil, in.err
	}
	if in.frame == nil {
		return true, nil, nil // peer closed cleanly
	}

	cmd, err := command.FromFrame(*in.frame)
	if err != nil {
		return true, nil, err
	}
	countCommand(cmd)

	switch c := cmd.(type) {
	case *command.Subscribe:
		return false, c.Channels, nil

	case *command.Unsubscribe:
		// Without arguments, unsubscribe from every channel.
		channels := c.Channels
		if len(channels) == 0 {
			channels = make([]string, len(*subs))
			for i, sub := range *subs {
				channels[i] = sub.channel
			}
		}

		for _, channel := range channels {
			if idx := findSubscription(*subs, channel); idx >= 0 {
				(*subs)[idx].receiver.Close()
				*subs = append((*subs)[:idx], (*subs)[idx+1:]...)
			}

			confirm := resp.NewArray(
				resp.NewBulk([]byte("unsubscribe")),
				resp.NewBulk([]byte(channel)),
				resp.NewInteger(int64(len(*subs))))
			if err := h.conn.WriteFrame(&confirm); err != nil {
				return true, nil, fmt.Errorf("failed to write unsubscribe reply: %v", err)
			}
		}
		return false, nil, nil

	case *command.Ping:
		reply := c.Apply()
		if err := h.conn.WriteFrame(&reply); err != nil {
			return true, nil, fmt.Errorf("failed to write reply: %v", err)
		}
		return false, nil, nil

	default:
		// The restricted command surface of subscriber mode.
		reply := resp.NewError(fmt.Sprintf("ERR '%s' is not allowed in subscribe mode", cmd.Name()))
		if err := h.conn.WriteFrame(&reply); err != nil {
			return true, nil, fmt.Errorf("failed to write reply: %v", err)
		}
		return false, nil, nil
	}
}

// findSubscription returns the index of channel in subs, or -1.
func findSubscription(subs []subscription, channel string) int {
	for i, sub := range subs {
		if sub.channel == channel {
			return i
		}
	}
	return -1
}
