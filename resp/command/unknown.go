package command

import (
	"fmt"

	"github.com/ValentinKolb/mKV/resp"
)

// Unknown represents a command the server does not implement, or a
// supported command whose arguments could not be parsed. Applying it
// reports an error to the client while keeping the connection open.
type Unknown struct {
	CommandName string
}

func (c *Unknown) Name() string { return c.CommandName }

// Apply produces the error reply.
func (c *Unknown) Apply() resp.Frame {
	return resp.NewError(fmt.Sprintf("ERR unknown command '%s'", c.CommandName))
}
