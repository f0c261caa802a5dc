// Package installer makes sure the infisical CLI is available before the
// launcher needs it, installing it with a pluggable strategy when it is not.
package installer

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

const (
	StrategyPackageManager = "package-manager"
	StrategyRelease        = "release"
)

// Prober checks whether the tool can be executed.
type Prober interface {
	Version(ctx context.Context) error
}

// Installer installs the tool. Install returns the path to the installed
// binary, or "" if the binary is expected on PATH under its usual name.
type Installer interface {
	Install(ctx context.Context) (string, error)
}

type InstallationError struct {
	msg   string
	cause error
}

func (i InstallationError) Error() string {
	if i.cause != nil {
		return fmt.Sprintf("InstallationError: %s: %s", i.msg, i.cause.Error())
	}
	return fmt.Sprintf("InstallationError: %s", i.msg)
}

func (i InstallationError) Unwrap() error {
	return i.cause
}

// EnsureAvailable probes for the tool and runs installer once if the probe
// fails. The returned path is the installer's binary path, if any.
func EnsureAvailable(ctx context.Context, probe Prober, installer Installer) (string, error) {
	logger := zap.L().With(zap.String("subsystem", "installer"))

	err := probe.Version(ctx)
	if err == nil {
		logger.Debug("infisical CLI is available")
		return "", nil
	}

	logger.Warn("infisical CLI not available. Attempting installation.", zap.Error(err))
	if installer == nil {
		return "", &InstallationError{msg: "no installer configured", cause: err}
	}

	binaryPath, err := installer.Install(ctx)
	if err != nil {
		logger.Error("Installation failed", zap.Error(err))
		return "", &InstallationError{msg: "installing infisical CLI failed", cause: err}
	}

	logger.Info("Installed infisical CLI", zap.String("binary", binaryPath))
	return binaryPath, nil
}
