package exec

import (
	"context"
	"errors"

	"github.com/zhubert/spinrun/command"
)

// ErrPTYUnsupported is returned by PTYSpawner on platforms without ptys.
var ErrPTYUnsupported = errors.New("pseudo-terminals are not supported on this platform")

// PTYSpawner is unavailable on Windows.
type PTYSpawner struct{}

// Spawn implements Spawner.
func (PTYSpawner) Spawn(context.Context, command.Command) (Process, error) {
	return nil, ErrPTYUnsupported
}
