//go:build !windows

package infisical

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"
)

func killSelf() {
	_ = syscall.Kill(syscall.Getpid(), syscall.SIGKILL)
	time.Sleep(time.Minute)
}

// countSignals runs as the wrapped command. It marks itself ready through
// FAKE_READY_FILE and then reports what arrived within a second.
func countSignals() int {
	sigCh := make(chan os.Signal, 8)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	if err := os.WriteFile(os.Getenv("FAKE_READY_FILE"), nil, 0o600); err != nil {
		return 2
	}

	counts := map[os.Signal]int{}
	timeout := time.After(time.Second)
collect:
	for {
		select {
		case sig := <-sigCh:
			counts[sig]++
		case <-timeout:
			break collect
		}
	}

	fmt.Printf("SIGINT=%d SIGTERM=%d\n", counts[syscall.SIGINT], counts[syscall.SIGTERM])
	return 0
}

// signalLauncher runs CLI.Run as the leader of its own process group. Once the
// child is ready it either interrupts the whole group, as a terminal does, or
// terminates only itself, as a supervisor does.
func signalLauncher() int {
	readyFile := filepath.Join(os.Getenv("SIGNAL_TEST_DIR"), "ready")
	cli := &CLI{
		Binary: os.Args[0],
		Env: map[string]string{
			fakeModeEnv:          "1",
			"FAKE_COUNT_SIGNALS": "1",
			"FAKE_READY_FILE":    readyFile,
		},
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}

	go func() {
		for {
			if _, err := os.Stat(readyFile); err == nil {
				break
			}
			time.Sleep(10 * time.Millisecond)
		}
		switch os.Getenv("SIGNAL_TEST_TARGET") {
		case "group":
			_ = syscall.Kill(0, syscall.SIGINT)
		case "launcher":
			_ = syscall.Kill(os.Getpid(), syscall.SIGTERM)
		}
	}()

	code, err := cli.Run(context.Background(), RunRequest{
		ProjectID:   "pid",
		Token:       "tok",
		SecretsPath: "/",
		Command:     []string{"sleep"},
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 3
	}
	return code
}
