// Package install runs the package manager inside a freshly scaffolded
// project.
package install

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"

	"create-uix-app/internal/errs"
	"create-uix-app/internal/logging"
)

// DefaultCommand is what the starter templates are set up for.
var DefaultCommand = []string{"yarn", "install"}

// Command runs Argv in the project directory, relaying its output live.
type Command struct {
	Argv   []string
	Stdout io.Writer
	Stderr io.Writer
}

// New returns a Command relaying to stdout and stderr. An empty argv means
// DefaultCommand; nil writers mean the process's own.
func New(argv []string, stdout, stderr io.Writer) *Command {
	if len(argv) == 0 {
		argv = DefaultCommand
	}
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return &Command{Argv: argv, Stdout: stdout, Stderr: stderr}
}

func (c *Command) String() string {
	return strings.Join(c.Argv, " ")
}

// Install blocks until the command exits. Any failure, including a command
// that cannot be started, is a *errs.SubprocessError.
func (c *Command) Install(ctx context.Context, dir string) error {
	if len(c.Argv) == 0 {
		return &errs.SubprocessError{Dir: dir, ExitCode: -1, Err: errors.New("empty install command")}
	}

	cmd := exec.CommandContext(ctx, c.Argv[0], c.Argv[1:]...)
	cmd.Dir = dir
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr

	logging.FromContext(ctx).Debug("Running install command.", "command", c.String(), "dir", dir)
	if err := cmd.Run(); err != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		return &errs.SubprocessError{Command: c.String(), Dir: dir, ExitCode: code, Err: err}
	}
	return nil
}
