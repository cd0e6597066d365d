package rhi

// CommandList is an ordered, append-only batch of commands. Append order
// is execution order within one stream. The zero value is an empty list.
type CommandList struct {
	cmds []Command
}

// NewCommandList returns a list holding cmds.
func NewCommandList(cmds ...Command) *CommandList {
	l := &CommandList{}
	return l.Add(cmds...)
}

// Add appends commands and returns the list for chaining.
// Nil commands are skipped.
func (l *CommandList) Add(cmds ...Command) *CommandList {
	for _, c := range cmds {
		if c != nil {
			l.cmds = append(l.cmds, c)
		}
	}
	return l
}

// Append appends every command of other.
func (l *CommandList) Append(other *CommandList) *CommandList {
	if other != nil {
		l.cmds = append(l.cmds, other.cmds...)
	}
	return l
}

// Len returns the number of commands.
func (l *CommandList) Len() int {
	if l == nil {
		return 0
	}
	return len(l.cmds)
}

// Empty reports whether the list holds no commands.
func (l *CommandList) Empty() bool { return l.Len() == 0 }

// Commands returns the commands in order. The slice must not be modified.
func (l *CommandList) Commands() []Command {
	if l == nil {
		return nil
	}
	return l.cmds
}

// Reset empties the list, keeping its capacity.
func (l *CommandList) Reset() {
	clear(l.cmds)
	l.cmds = l.cmds[:0]
}

// LastBlocking returns the index of the last blocking command, or -1 when every
// command is async.
func (l *CommandList) LastBlocking() int {
	for i := l.Len() - 1; i >= 0; i-- {
		if !l.cmds[i].IsAsync() {
			return i
		}
	}
	return -1
}
