package rhi

import "fmt"

// Dispatcher executes commands.
type Dispatcher interface {
	Dispatch(cmd Command)
}

// OpTable maps every CommandType to the routine a backend uses to execute
// it. Adding a backend means filling one table; adding a command kind
// means adding one entry to every backend's table.
type OpTable [numCommandTypes]func(Command)

// On registers fn as the executor for command type C.
//
//	var ops rhi.OpTable
//	rhi.On(&ops, s.bufferUpload) // func (s *stream) bufferUpload(rhi.BufferUploadCommand)
func On[C Command](t *OpTable, fn func(C)) {
	var zero C
	t[zero.Type()] = func(cmd Command) {
		fn(cmd.(C))
	}
}

// Dispatch executes cmd with its registered routine.
// It panics if the table has no routine for the command type.
func (t *OpTable) Dispatch(cmd Command) {
	kind := cmd.Type()
	if int(kind) >= len(t) || t[kind] == nil {
		panic(fmt.Sprintf("rhi: no executor for command %s", kind))
	}
	t[kind](cmd)
}

// Missing returns the command types that have no executor.
func (t *OpTable) Missing() []CommandType {
	var missing []CommandType
	for i, fn := range t {
		if fn == nil {
			missing = append(missing, CommandType(i))
		}
	}
	return missing
}

// DispatchFunc adapts a function to the Dispatcher interface.
type DispatchFunc func(Command)

// Dispatch calls f(cmd).
func (f DispatchFunc) Dispatch(cmd Command) { f(cmd) }
