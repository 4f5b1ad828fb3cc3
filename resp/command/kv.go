package command

import (
	"fmt"
	"strings"
	"time"

	"github.com/ValentinKolb/mKV/lib/db"
	"github.com/ValentinKolb/mKV/resp"
)

// --------------------------------------------------------------------------
// PING
// --------------------------------------------------------------------------

// Ping checks liveness. Without a message the reply is the simple
// string PONG; with one, the message is echoed back as a bulk.
type Ping struct {
	// Msg is the optional payload to echo; nil means none.
	Msg []byte
}

func (c *Ping) Name() string { return "ping" }

// Apply produces the reply frame.
func (c *Ping) Apply() resp.Frame {
	if c.Msg == nil {
		return resp.NewSimple("PONG")
	}
	return resp.NewBulk(c.Msg)
}

func parsePing(p *parser) (Command, error) {
	msg, err := p.nextBytes()
	if err == errEndOfFrame {
		return &Ping{}, nil
	}
	if err != nil {
		return nil, err
	}
	if err := p.finish(); err != nil {
		return nil, err
	}
	return &Ping{Msg: msg}, nil
}

// --------------------------------------------------------------------------
// GET
// --------------------------------------------------------------------------

// Get retrieves the value stored under a key.
type Get struct {
	Key string
}

func (c *Get) Name() string { return "get" }

// Apply looks the key up in the keyspace. A missing or expired key
// yields the null frame.
func (c *Get) Apply(d *db.DB) resp.Frame {
	value, ok := d.Get(c.Key)
	if !ok {
		return resp.NewNull()
	}
	return resp.NewBulk(value)
}

func parseGet(p *parser) (Command, error) {
	key, err := p.nextString()
	if err != nil {
		return nil, err
	}
	if err := p.finish(); err != nil {
		return nil, err
	}
	return &Get{Key: key}, nil
}

// --------------------------------------------------------------------------
// SET
// --------------------------------------------------------------------------

// Set stores a value under a key, replacing any existing entry. An
// optional expiration is given as EX <seconds> or PX <milliseconds>.
type Set struct {
	Key   string
	Value []byte

	// Expire is the time-to-live; zero means the entry never expires.
	Expire time.Duration
}

func (c *Set) Name() string { return "set" }

// Apply stores the entry and acknowledges with OK. Setting a key
// clears any expiry scheduled by a previous SET of the same key.
func (c *Set) Apply(d *db.DB) resp.Frame {
	d.Set(c.Key, c.Value, c.Expire)
	return resp.NewSimple("OK")
}

func parseSet(p *parser) (Command, error) {
	key, err := p.nextString()
	if err != nil {
		return nil, err
	}
	value, err := p.nextBytes()
	if err != nil {
		return nil, err
	}

	cmd := &Set{Key: key, Value: value}

	// Optional expiration option
	opt, err := p.nextString()
	if err == errEndOfFrame {
		return cmd, nil
	}
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(opt) {
	case "ex":
		secs, err := p.nextInt()
		if err != nil {
			return nil, err
		}
		cmd.Expire = time.Duration(secs) * time.Second
	case "px":
		ms, err := p.nextInt()
		if err != nil {
			return nil, err
		}
		cmd.Expire = time.Duration(ms) * time.Millisecond
	default:
		return nil, fmt.Errorf("command: unsupported SET option %q", opt)
	}

	if err := p.finish(); err != nil {
		return nil, err
	}
	return cmd, nil
}
