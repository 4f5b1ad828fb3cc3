package command

import (
	"fmt"
	"strings"

	"github.com/lni/dragonboat/v4/logger"

	"github.com/ValentinKolb/mKV/resp"
)

var Logger = logger.GetLogger("resp")

// --------------------------------------------------------------------------
// Command Interface
// --------------------------------------------------------------------------

// Command is the typed representation of one client request. Exactly
// one concrete type exists per supported command plus Unknown for
// everything else.
//
// Simple commands additionally implement Apply against the keyspace;
// Subscribe and Unsubscribe are driven by the server's connection
// handler because they change the connection's mode.
type Command interface {
	// Name returns the lowercase wire name of the command.
	Name() string
}

// --------------------------------------------------------------------------
// Frame Decoding
// --------------------------------------------------------------------------

// FromFrame decodes a command from its wire frame.
//
// Only a top-level Array whose first element is a Bulk naming the
// command is accepted; anything else is a protocol violation and
// returns an error (the caller closes the connection). Malformed or
// unknown arguments degrade to Unknown, which replies with an Error
// frame but keeps the connection open.
func FromFrame(f resp.Frame) (Command, error) {
	p, err := newParser(f)
	if err != nil {
		return nil, err
	}

	head, err := p.next()
	if err != nil {
		return nil, fmt.Errorf("command: empty command frame")
	}
	if head.Type != resp.FrameBulk {
		return nil, fmt.Errorf("command: expected bulk command name, got %s", head.Type)
	}

	// Command names are matched case-insensitively.
	name := strings.ToLower(string(head.Bulk))

	var (
		cmd      Command
		parseErr error
	)

	switch name {
	case "ping":
		cmd, parseErr = parsePing(p)
	case "get":
		cmd, parseErr = parseGet(p)
	case "set":
		cmd, parseErr = parseSet(p)
	case "publish":
		cmd, parseErr = parsePublish(p)
	case "subscribe":
		cmd, parseErr = parseSubscribe(p)
	case "unsubscribe":
		cmd, parseErr = parseUnsubscribe(p)
	default:
		return &Unknown{CommandName: name}, nil
	}

	// Strict argument parsing: malformed arguments degrade to Unknown
	// so the client gets an error reply instead of a dropped connection.
	if parseErr != nil {
		Logger.Debugf("malformed %q command: %v", name, parseErr)
		return &Unknown{CommandName: name}, nil
	}

	return cmd, nil
}
