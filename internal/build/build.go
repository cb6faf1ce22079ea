// Package build runs the site build command before anything is published.
package build

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Error reports a failed build command.
type Error struct {
	Command string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("build %q: %v", e.Command, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Command is a build step backed by an external program.
type Command struct {
	args   []string
	dir    string
	stdout io.Writer
	stderr io.Writer
	logger *zap.Logger
}

// Option configures a Command.
type Option func(*Command)

// WithOutput redirects the build output.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(c *Command) {
		c.stdout = stdout
		c.stderr = stderr
	}
}

// New returns a build step for command, run in dir. The command is split on
// whitespace; an empty command makes Build a no-op.
func New(command, dir string, logger *zap.Logger, opts ...Option) *Command {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Command{
		args:   strings.Fields(command),
		dir:    dir,
		stdout: os.Stdout,
		stderr: os.Stderr,
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Build runs the command and waits for it to finish.
func (c *Command) Build(ctx context.Context) error {
	if len(c.args) == 0 {
		c.logger.Info("no build command configured, skipping build")
		return nil
	}

	command := strings.Join(c.args, " ")
	c.logger.Info("building site", zap.String("command", command))

	cmd := exec.CommandContext(ctx, c.args[0], c.args[1:]...)
	cmd.Dir = c.dir
	cmd.Stdout = c.stdout
	cmd.Stderr = c.stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		return &Error{Command: command, Err: err}
	}
	c.logger.Info("build finished", zap.Duration("duration", time.Since(start)))
	return nil
}
