package common

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

type fdHolder interface {
	Fd() uintptr
}

func IsInteractiveTerminal(command *cobra.Command) bool {
	in, ok := command.InOrStdin().(fdHolder)
	if !ok || !term.IsTerminal(int(in.Fd())) {
		return false
	}
	out, ok := command.OutOrStdout().(fdHolder)
	return ok && term.IsTerminal(int(out.Fd()))
}

// IsTerminalWriter reports whether status output would reach a terminal.
func IsTerminalWriter(command *cobra.Command) bool {
	out, ok := command.ErrOrStderr().(fdHolder)
	return ok && term.IsTerminal(int(out.Fd()))
}

func HasPipedInput(command *cobra.Command) bool {
	file, ok := command.InOrStdin().(*os.File)
	if !ok {
		return false
	}
	info, err := file.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) == 0
}

func isStdinFile(command *cobra.Command) bool {
	_, ok := command.InOrStdin().(*os.File)
	return ok
}
