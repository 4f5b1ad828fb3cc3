package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ValentinKolb/mKV/resp"
)

// errEndOfFrame signals that all array elements have been consumed.
// Parsers of optional or variadic arguments compare against it to
// detect the end of the argument list; for a required argument it is
// a malformed-argument error like any other.
var errEndOfFrame = errors.New("command: end of frame")

// parser walks the elements of a command array one argument at a time.
// All accessors are strict about the element type they accept.
type parser struct {
	parts []resp.Frame
	pos   int
}

// newParser validates that f is a top-level array and positions the
// cursor at its first element.
func newParser(f resp.Frame) (*parser, error) {
	if f.Type != resp.FrameArray {
		return nil, fmt.Errorf("command: expected array frame, got %s", f.Type)
	}
	return &parser{parts: f.Array}, nil
}

// next returns the next raw element.
func (p *parser) next() (resp.Frame, error) {
	if p.pos >= len(p.parts) {
		return resp.Frame{}, errEndOfFrame
	}
	part := p.parts[p.pos]
	p.pos++
	return part, nil
}

// nextString consumes the next element as a string. Simple and Bulk
// elements qualify; anything else is malformed.
func (p *parser) nextString() (string, error) {
	part, err := p.next()
	if err != nil {
		return "", err
	}
	switch part.Type {
	case resp.FrameSimple:
		return part.Str, nil
	case resp.FrameBulk:
		return string(part.Bulk), nil
	default:
		return "", fmt.Errorf("command: expected string argument, got %s", part.Type)
	}
}

// nextBytes consumes the next element as raw bytes.
func (p *parser) nextBytes() ([]byte, error) {
	part, err := p.next()
	if err != nil {
		return nil, err
	}
	switch part.Type {
	case resp.FrameSimple:
		return []byte(part.Str), nil
	case resp.FrameBulk:
		return part.Bulk, nil
	default:
		return nil, fmt.Errorf("command: expected bytes argument, got %s", part.Type)
	}
}

// nextInt consumes the next element as a non-negative integer. The
// wire encodes command arguments as bulk strings, so the digits are
// parsed out of the string form.
func (p *parser) nextInt() (uint64, error) {
	s, err := p.nextString()
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("command: invalid integer argument %q", s)
	}
	return v, nil
}

// finish asserts that every element has been consumed. Trailing
// arguments are malformed.
func (p *parser) finish() error {
	if p.pos != len(p.parts) {
		return fmt.Errorf("command: %d unexpected trailing arguments", len(p.parts)-p.pos)
	}
	return nil
}
