// Package launchargs implements the launcher's token grammar. Launcher options
// come first; the first bare token (or a --cmd= token) starts the wrapped
// command and everything after it is passed through untouched.
package launchargs

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/wrouesnel/infisical-launcher/version"
)

const (
	DefaultSecretsPath = "/"

	pathOption    = "--path="
	envDirOption  = "--envDir="
	cmdOption     = "--cmd="
	versionOption = "--version"
	optionPrefix  = "--"
)

// Usage is printed when no command was supplied.
const Usage = "Usage: " + version.Name +
	" [--path=/path] [--envDir=path/to/dir] [--cmd=<token>]... <command> [<command-args>...]"

// LaunchOptions is the result of parsing one invocation.
type LaunchOptions struct {
	// SecretsPath is the path within the Infisical project exposed to the command.
	SecretsPath string
	// EnvDir is the directory searched for the .env file.
	EnvDir string
	// Command is the program to run followed by its arguments.
	Command []string
	// ShowVersion is set by a lone --version. With a command present the
	// option is ignored like any other unknown option.
	ShowVersion bool
}

type UsageError struct {
	msg string
}

func (u UsageError) Error() string {
	return fmt.Sprintf("usage error: %s", u.msg)
}

// Parse scans tokens left to right. defaultEnvDir is used when no --envDir=
// option is present.
func Parse(tokens []string, defaultEnvDir string) (LaunchOptions, error) {
	options := LaunchOptions{
		SecretsPath: DefaultSecretsPath,
		EnvDir:      defaultEnvDir,
		Command:     []string{},
	}

	collecting := false
	for _, token := range tokens {
		switch {
		case collecting:
			options.Command = append(options.Command, token)
		case strings.HasPrefix(token, pathOption):
			options.SecretsPath = strings.TrimPrefix(token, pathOption)
		case strings.HasPrefix(token, envDirOption):
			options.EnvDir = strings.TrimPrefix(token, envDirOption)
		case strings.HasPrefix(token, cmdOption):
			options.Command = append(options.Command, strings.TrimPrefix(token, cmdOption))
			collecting = true
		case token == versionOption:
			options.ShowVersion = true
		case !strings.HasPrefix(token, optionPrefix):
			options.Command = append(options.Command, token)
			collecting = true
		default:
			// unknown launcher option
		}
	}

	options.Command = lo.Filter(options.Command, func(item string, _ int) bool {
		return strings.TrimSpace(item) != ""
	})

	if len(options.Command) > 0 {
		options.ShowVersion = false
	} else if !options.ShowVersion {
		return options, &UsageError{msg: "no command provided"}
	}

	return options, nil
}
