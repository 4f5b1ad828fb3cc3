package client

import (
	"fmt"
	"net"
	"time"

	"github.com/lni/dragonboat/v4/logger"

	"github.com/ValentinKolb/mKV/resp"
	"github.com/ValentinKolb/mKV/resp/command"
	"github.com/ValentinKolb/mKV/resp/common"
)

var Logger = logger.GetLogger("client")

// Client is a thin wrapper over one connection offering the supported
// commands as request/response calls. It is not a pool: one client
// owns one connection, and calls must not be issued concurrently.
type Client struct {
	conn *resp.Connection
}

// Connect dials the configured server.
func Connect(cfg common.ClientConfig) (*Client, error) {
	conn, err := net.Dial("tcp", cfg.Endpoint())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %v", cfg.Endpoint(), err)
	}

	Logger.Debugf("connected to %s", cfg.Endpoint())
	return &Client{conn: resp.NewConnection(conn)}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// --------------------------------------------------------------------------
// Commands
// --------------------------------------------------------------------------

// Ping checks liveness. Without a message the server answers PONG;
// with one, the message is echoed back.
func (c *Client) Ping(msg []byte) ([]byte, error) {
	reply, err := c.request(command.PingFrame(msg))
	if err != nil {
		return nil, err
	}

	switch reply.Type {
	case resp.FrameSimple:
		return []byte(reply.Str), nil
	case resp.FrameBulk:
		return reply.Bulk, nil
	default:
		return nil, unexpectedReply(reply)
	}
}

// Get retrieves the value stored under key. The bool reports whether
// the key was present.
func (c *Client) Get(key string) ([]byte, bool, error) {
	reply, err := c.request(command.GetFrame(key))
	if err != nil {
		return nil, false, err
	}

	switch reply.Type {
	case resp.FrameBulk:
		return reply.Bulk, true, nil
	case resp.FrameNull:
		return nil, false, nil
	default:
		return nil, false, unexpectedReply(reply)
	}
}

// Set stores value under key without an expiry.
func (c *Client) Set(key string, value []byte) error {
	return c.set(key, value, 0)
}

// SetExpires stores value under key; the entry expires after the
// given duration.
func (c *Client) SetExpires(key string, value []byte, expire time.Duration) error {
	return c.set(key, value, expire)
}

func (c *Client) set(key string, value []byte, expire time.Duration) error {
	reply, err := c.request(command.SetFrame(key, value, expire))
	if err != nil {
		return err
	}
	if reply.Type != resp.FrameSimple || reply.Str != "OK" {
		return unexpectedReply(reply)
	}
	return nil
}

// Publish sends message to channel and returns the number of
// subscribers that received it.
func (c *Client) Publish(channel string, message []byte) (int64, error) {
	reply, err := c.request(command.PublishFrame(channel, message))
	if err != nil {
		return 0, err
	}
	if reply.Type != resp.FrameInteger {
		return 0, unexpectedReply(reply)
	}
	return reply.Int, nil
}

// Subscribe switches the connection into subscriber mode for the
// given channels. The returned Subscriber consumes this client's
// connection; only its methods may be used afterwards.
func (c *Client) Subscribe(channels ...string) (*Subscriber, error) {
	if len(channels) == 0 {
		return nil, fmt.Errorf("client: subscribe requires at least one channel")
	}

	frame := command.SubscribeFrame(channels)
	if err := c.conn.WriteFrame(&frame); err != nil {
		return nil, err
	}

	sub := &Subscriber{client: c}
	if err := sub.awaitConfirmations("subscribe", channels); err != nil {
		return nil, err
	}
	return sub, nil
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

// request performs one request/response round trip. Error frames from
// the server are surfaced verbatim as errors.
func (c *Client) request(frame resp.Frame) (*resp.Frame, error) {
	if err := c.conn.WriteFrame(&frame); err != nil {
		return nil, err
	}

	reply, err := c.conn.ReadFrame()
	if err != nil {
		return nil, err
	}
	if reply == nil {
		return nil, fmt.Errorf("client: connection closed by server")
	}
	if reply.Type == resp.FrameError {
		return nil, fmt.Errorf("%s", reply.Str)
	}
	return reply, nil
}

func unexpectedReply(reply *resp.Frame) error {
	return fmt.Errorf("client: unexpected reply frame of type %s", reply.Type)
}
