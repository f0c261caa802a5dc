//go:build windows

package infisical

import "os"

func killSelf() {
	os.Exit(1)
}

func countSignals() int {
	return 2
}

func signalLauncher() int {
	return 2
}
