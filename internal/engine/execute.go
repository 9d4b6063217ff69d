package engine

import (
	"github.com/atlaskv/atlaskv/internal/wire"
)

// Execute dispatches a decoded wire.Command against the engine and
// builds the matching wire.Response. It is the single entry point the
// server package uses per request, so the dispatch table lives next to
// the operations it calls instead of being duplicated in server code.
func (e *Engine) Execute(cmd wire.Command) wire.Response {
	switch cmd.Type {
	case wire.CmdGet:
		value, found, err := e.Get(cmd.Key)
		if err != nil {
			return wire.Err(err)
		}
		if !found {
			return wire.NotFound()
		}
		return wire.Ok(value)

	case wire.CmdPut:
		if err := e.Put(cmd.Key, cmd.Value); err != nil {
			return wire.Err(err)
		}
		return wire.Ok(nil)

	case wire.CmdDelete:
		if err := e.Delete(cmd.Key); err != nil {
			return wire.Err(err)
		}
		return wire.Ok(nil)

	case wire.CmdPing:
		return wire.Ok([]byte("PONG"))

	default:
		return wire.Err(wire.UnknownCommand(cmd.Type))
	}
}
