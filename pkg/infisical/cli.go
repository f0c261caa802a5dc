package infisical

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/wrouesnel/infisical-launcher/pkg/envutil"
	"go.uber.org/zap"
)

// CLI implements Tool by executing the infisical binary.
type CLI struct {
	// Binary is the name or path of the infisical executable.
	Binary string
	// Domain is passed as --domain when set (self-hosted instances).
	Domain string
	// Env is the complete environment of spawned processes.
	Env map[string]string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

func (c *CLI) binary() string {
	return lo.Ternary(c.Binary == "", DefaultBinary, c.Binary)
}

func (c *CLI) command(ctx context.Context, args ...string) *exec.Cmd {
	//nolint:gosec
	cmd := exec.CommandContext(ctx, c.binary(), args...)
	cmd.Env = envutil.ToEnvironment(c.Env)
	return cmd
}

func (c *CLI) Version(ctx context.Context) error {
	cmd := c.command(ctx, "--version")
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	if err := cmd.Run(); err != nil {
		return errors.Wrapf(err, "%s --version", c.binary())
	}
	return nil
}

func (c *CLI) Login(ctx context.Context, clientID string, clientSecret string) (string, error) {
	logger := zap.L().With(zap.String("binary", c.binary()), zap.String("method", AuthMethod))

	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	cmd := c.command(ctx, LoginArgs(clientID, clientSecret, c.Domain)...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	logger.Debug("Logging in to Infisical")
	err := cmd.Run()
	token := strings.TrimSpace(stdout.String())

	var exitErr *exec.ExitError
	switch {
	case errors.As(err, &exitErr):
		return "", &AuthenticationError{ExitCode: exitErr.ExitCode(), Stderr: stderr.String(), msg: err.Error()}
	case err != nil:
		return "", &AuthenticationError{ExitCode: -1, Stderr: stderr.String(), msg: err.Error()}
	case token == "":
		return "", &AuthenticationError{ExitCode: 0, Stderr: stderr.String(), msg: "login returned an empty token"}
	}

	logger.Debug("Obtained Infisical token")
	return token, nil
}

// Run starts the wrapped command with inherited stdio and waits for it.
// The child shares the launcher's process group, so a terminal interrupt
// already reaches it and is only swallowed here. SIGTERM is usually sent to
// the launcher alone and is passed on.
func (c *CLI) Run(ctx context.Context, req RunRequest) (int, error) {
	cmd := c.command(ctx, RunArgs(req, c.Domain)...)
	cmd.Stdin = c.Stdin
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr

	if err := cmd.Start(); err != nil {
		return 1, errors.Wrapf(err, "could not start %s run", c.binary())
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	doneCh := make(chan struct{})
	forwarderDone := make(chan struct{})
	go func() {
		defer close(forwarderDone)
		for {
			select {
			case sig := <-sigCh:
				if sig == os.Interrupt {
					zap.L().Debug("Interrupt received, waiting for child", zap.String("signal", sig.String()))
					continue
				}
				zap.L().Debug("Forwarding signal to child", zap.String("signal", sig.String()))
				_ = cmd.Process.Signal(sig)
			case <-doneCh:
				return
			}
		}
	}()

	err := cmd.Wait()
	signal.Stop(sigCh)
	close(doneCh)
	<-forwarderDone

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return 1, errors.Wrapf(err, "waiting for %s run", c.binary())
	}

	return exitStatus(cmd.ProcessState), nil
}
