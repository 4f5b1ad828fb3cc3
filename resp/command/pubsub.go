package command

import (
	"github.com/ValentinKolb/mKV/lib/db"
	"github.com/ValentinKolb/mKV/resp"
)

// --------------------------------------------------------------------------
// PUBLISH
// --------------------------------------------------------------------------

// Publish sends a message to a channel. The reply is the number of
// subscribers the message was delivered to.
type Publish struct {
	Channel string
	Message []byte
}

func (c *Publish) Name() string { return "publish" }

// Apply fans the message out via the keyspace's broker. A channel
// nobody subscribed to counts zero receivers.
func (c *Publish) Apply(d *db.DB) resp.Frame {
	n := d.Publish(c.Channel, c.Message)
	return resp.NewInteger(int64(n))
}

func parsePublish(p *parser) (Command, error) {
	channel, err := p.nextString()
	if err != nil {
		return nil, err
	}
	message, err := p.nextBytes()
	if err != nil {
		return nil, err
	}
	if err := p.finish(); err != nil {
		return nil, err
	}
	return &Publish{Channel: channel, Message: message}, nil
}

// --------------------------------------------------------------------------
// SUBSCRIBE
// --------------------------------------------------------------------------

// Subscribe switches the connection into subscriber mode for one or
// more channels. The server's connection handler drives the actual
// subscription loop.
type Subscribe struct {
	Channels []string
}

func (c *Subscribe) Name() string { return "subscribe" }

func parseSubscribe(p *parser) (Command, error) {
	// At least one channel is required
	first, err := p.nextString()
	if err != nil {
		return nil, err
	}

	channels := []string{first}
	for {
		channel, err := p.nextString()
		if err == errEndOfFrame {
			break
		}
		if err != nil {
			return nil, err
		}
		channels = append(channels, channel)
	}

	return &Subscribe{Channels: channels}, nil
}

// --------------------------------------------------------------------------
// UNSUBSCRIBE
// --------------------------------------------------------------------------

// Unsubscribe removes subscriptions. Without arguments it removes all
// of them. It is only valid in subscriber mode.
type Unsubscribe struct {
	Channels []string
}

func (c *Unsubscribe) Name() string { return "unsubscribe" }

func parseUnsubscribe(p *parser) (Command, error) {
	var channels []string
	for {
		channel, err := p.nextString()
		if err == errEndOfFrame {
			break
		}
		if err != nil {
			return nil, err
		}
		channels = append(channels, channel)
	}
	return &Unsubscribe{Channels: channels}, nil
}
