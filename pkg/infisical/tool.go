// Package infisical wraps the external infisical CLI. The launcher never talks
// to the Infisical API itself: logging in and injecting secrets are both
// delegated to the CLI, which keeps this package a thin process wrapper.
package infisical

import (
	"context"
	"fmt"
	"strings"
)

const (
	DefaultBinary = "infisical"
	// AuthMethod is the machine identity login method used by the launcher.
	AuthMethod = "universal-auth"
)

// RunRequest describes one `infisical run` invocation.
type RunRequest struct {
	ProjectID   string
	Token       string
	SecretsPath string
	Command     []string
}

// Tool is the narrow interface the launcher needs from the secrets CLI.
type Tool interface {
	// Version probes whether the tool is installed and runnable.
	Version(ctx context.Context) error
	// Login exchanges machine identity credentials for an access token.
	Login(ctx context.Context, clientID string, clientSecret string) (string, error)
	// Run executes the wrapped command with secrets injected and returns its exit status.
	Run(ctx context.Context, req RunRequest) (int, error)
}

type AuthenticationError struct {
	ExitCode int
	Stderr   string
	msg      string
}

func (a AuthenticationError) Error() string {
	detail := strings.TrimSpace(a.Stderr)
	if detail == "" {
		detail = a.msg
	}
	return fmt.Sprintf("Failed to get Infisical token: %s", detail)
}

// LoginArgs returns the argument list for a universal-auth login.
func LoginArgs(clientID string, clientSecret string, domain string) []string {
	args := []string{
		"login",
		"--method=" + AuthMethod,
		"--client-id", clientID,
		"--client-secret", clientSecret,
		"--plain",
		"--silent",
	}
	if domain != "" {
		args = append(args, "--domain", domain)
	}
	return args
}

// RunArgs returns the argument list for running req's command.
func RunArgs(req RunRequest, domain string) []string {
	args := []string{
		"run",
		"--projectId", req.ProjectID,
		"--token", req.Token,
		"--path", req.SecretsPath,
	}
	if domain != "" {
		args = append(args, "--domain", domain)
	}
	args = append(args, "--")
	return append(args, req.Command...)
}
