package entrypoint

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/wrouesnel/infisical-launcher/pkg/infisical"
	"github.com/wrouesnel/infisical-launcher/version"
)

type stubTool struct {
	versionErr error
	token      string
	loginErr   error
	exitCode   int
	runErr     error

	versionCalls int
	logins       [][2]string
	runs         []infisical.RunRequest
}

func (s *stubTool) Version(_ context.Context) error {
	s.versionCalls++
	return s.versionErr
}

func (s *stubTool) Login(_ context.Context, clientID string, clientSecret string) (string, error) {
	s.logins = append(s.logins, [2]string{clientID, clientSecret})
	return s.token, s.loginErr
}

func (s *stubTool) Run(_ context.Context, req infisical.RunRequest) (int, error) {
	s.runs = append(s.runs, req)
	return s.exitCode, s.runErr
}

type stubInstaller struct {
	path  string
	err   error
	calls int
}

func (s *stubInstaller) Install(_ context.Context) (string, error) {
	s.calls++
	return s.path, s.err
}

func credentialEnv() map[string]string {
	return map[string]string{
		"CLIENT_ID":     "id-1",
		"CLIENT_SECRET": "secret-1",
		"PROJECT_ID":    "pid-1",
	}
}

func launch(t *testing.T, tool infisical.Tool, env map[string]string, args ...string) (int, string, string) {
	t.Helper()
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	code := Entrypoint(LaunchArgs{
		StdIn:   new(bytes.Buffer),
		StdOut:  stdout,
		StdErr:  stderr,
		Env:     env,
		Args:    args,
		WorkDir: t.TempDir(),
		Tool:    tool,
	})
	return code, stdout.String(), stderr.String()
}

func TestEntrypointRunsCommandWithToken(t *testing.T) {
	tool := &stubTool{token: "abc", exitCode: 0}
	code, _, stderr := launch(t, tool, credentialEnv(), "--path=/prod", "npm", "start")

	require.Equal(t, 0, code, stderr)
	require.Equal(t, [][2]string{{"id-1", "secret-1"}}, tool.logins)
	require.Equal(t, []infisical.RunRequest{{
		ProjectID:   "pid-1",
		Token:       "abc",
		SecretsPath: "/prod",
		Command:     []string{"npm", "start"},
	}}, tool.runs)
	require.Equal(t,
		[]string{"run", "--projectId", "pid-1", "--token", "abc", "--path", "/prod", "--", "npm", "start"},
		infisical.RunArgs(tool.runs[0], ""))
	require.Contains(t, stderr, "Launching command")
	require.NotContains(t, stderr, "secret-1")
	require.Equal(t, 0, tool.versionCalls, "install check is off by default")
}

func TestEntrypointTokenIsUsedExactlyOnce(t *testing.T) {
	tool := &stubTool{token: "tok123"}
	code, _, _ := launch(t, tool, credentialEnv(), "make")

	require.Equal(t, 0, code)
	require.Len(t, tool.runs, 1)
	require.Equal(t, "tok123", tool.runs[0].Token)
	require.Equal(t, "/", tool.runs[0].SecretsPath)
}

func TestEntrypointPropagatesChildExitCode(t *testing.T) {
	tool := &stubTool{token: "abc", exitCode: 42}
	code, _, _ := launch(t, tool, credentialEnv(), "false")
	require.Equal(t, 42, code)
}

func TestEntrypointRunFailure(t *testing.T) {
	tool := &stubTool{token: "abc", runErr: errors.New("exec: not found")}
	code, _, stderr := launch(t, tool, credentialEnv(), "ls")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "exec: not found")
}

func TestEntrypointAuthenticationFailure(t *testing.T) {
	tool := &stubTool{loginErr: &infisical.AuthenticationError{ExitCode: 1, Stderr: "invalid credentials"}}
	code, _, stderr := launch(t, tool, credentialEnv(), "ls")

	require.Equal(t, 1, code)
	require.Empty(t, tool.runs, "run must never be invoked after a failed login")
	require.Contains(t, stderr, "Failed to get Infisical token: invalid credentials")
}

func TestEntrypointUsageError(t *testing.T) {
	for _, args := range [][]string{{}, {"--path=/foo"}} {
		tool := &stubTool{token: "abc"}
		code, _, stderr := launch(t, tool, credentialEnv(), args...)

		require.Equal(t, 1, code)
		require.Contains(t, stderr, "Usage: infisical-launcher")
		require.Empty(t, tool.logins)
	}
}

func TestEntrypointVersion(t *testing.T) {
	tool := &stubTool{}
	code, stdout, _ := launch(t, tool, map[string]string{}, "--version")

	require.Equal(t, 0, code)
	require.Equal(t, version.Version+"\n", stdout)
	require.Empty(t, tool.logins)
}

func TestEntrypointVersionBeforeCommandRunsCommand(t *testing.T) {
	tool := &stubTool{token: "abc", exitCode: 5}
	code, stdout, _ := launch(t, tool, credentialEnv(), "--version", "npm", "start")

	require.Equal(t, 5, code)
	require.NotContains(t, stdout, version.Version)
	require.Len(t, tool.runs, 1)
	require.Equal(t, []string{"npm", "start"}, tool.runs[0].Command)
}

func TestEntrypointMissingCredentials(t *testing.T) {
	tool := &stubTool{token: "abc"}
	stderr := new(bytes.Buffer)
	workDir := t.TempDir()
	code := Entrypoint(LaunchArgs{
		StdOut:  new(bytes.Buffer),
		StdErr:  stderr,
		Env:     map[string]string{"CLIENT_ID": "id-1"},
		Args:    []string{"ls"},
		WorkDir: workDir,
		Tool:    tool,
	})

	require.Equal(t, 1, code)
	require.Contains(t, stderr.String(), "Missing credentials")
	require.Contains(t, stderr.String(), filepath.Join(workDir, ".env"))
	require.Empty(t, tool.logins)
}

func TestEntrypointEnvDirOption(t *testing.T) {
	envDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(envDir, ".env"),
		[]byte("CLIENT_ID=file-id\nCLIENT_SECRET=file-secret\nPROJECT_ID=file-pid\n"), 0o600))

	tool := &stubTool{token: "abc"}
	code, _, stderr := launch(t, tool, map[string]string{}, "--envDir="+envDir, "ls")

	require.Equal(t, 0, code, stderr)
	require.Equal(t, [][2]string{{"file-id", "file-secret"}}, tool.logins)
	require.Equal(t, "file-pid", tool.runs[0].ProjectID)
}

func TestEntrypointInstallCheck(t *testing.T) {
	env := credentialEnv()
	env["INFISICAL_LAUNCHER_INSTALL_CHECK"] = "true"

	t.Run("available", func(t *testing.T) {
		tool := &stubTool{token: "abc"}
		inst := &stubInstaller{}
		code := Entrypoint(LaunchArgs{
			StdOut: new(bytes.Buffer), StdErr: new(bytes.Buffer),
			Env: env, Args: []string{"ls"}, WorkDir: t.TempDir(),
			Tool: tool, Installer: inst,
		})
		require.Equal(t, 0, code)
		require.Equal(t, 1, tool.versionCalls)
		require.Equal(t, 0, inst.calls)
	})

	t.Run("installation fails", func(t *testing.T) {
		tool := &stubTool{token: "abc", versionErr: errors.New("not found")}
		inst := &stubInstaller{err: errors.New("exit status 1")}
		stderr := new(bytes.Buffer)
		code := Entrypoint(LaunchArgs{
			StdOut: new(bytes.Buffer), StdErr: stderr,
			Env: env, Args: []string{"ls"}, WorkDir: t.TempDir(),
			Tool: tool, Installer: inst,
		})
		require.Equal(t, 1, code)
		require.Equal(t, 1, inst.calls)
		require.Empty(t, tool.logins)
		require.Contains(t, stderr.String(), "InstallationError")
	})

	t.Run("installed then launched", func(t *testing.T) {
		tool := &stubTool{token: "abc", versionErr: errors.New("not found")}
		inst := &stubInstaller{}
		code := Entrypoint(LaunchArgs{
			StdOut: new(bytes.Buffer), StdErr: new(bytes.Buffer),
			Env: env, Args: []string{"ls"}, WorkDir: t.TempDir(),
			Tool: tool, Installer: inst,
		})
		require.Equal(t, 0, code)
		require.Equal(t, 1, inst.calls)
		require.Len(t, tool.runs, 1)
	})
}

func TestEntrypointSettings(t *testing.T) {
	t.Run("invalid setting from the environment", func(t *testing.T) {
		env := credentialEnv()
		env["INFISICAL_LAUNCHER_LOGGING_FORMAT"] = "xml"
		tool := &stubTool{token: "abc"}
		code, _, stderr := launch(t, tool, env, "ls")

		require.Equal(t, 1, code)
		require.Contains(t, stderr, "Error: settings:")
		require.Empty(t, tool.logins)
	})

	t.Run("settings file", func(t *testing.T) {
		settingsFile := filepath.Join(t.TempDir(), "launcher.yaml")
		require.NoError(t, os.WriteFile(settingsFile, []byte("logging:\n  format: json\n"), 0o600))

		env := credentialEnv()
		env[ConfigFileEnv] = settingsFile
		code, _, stderr := launch(t, &stubTool{token: "abc"}, env, "ls")

		require.Equal(t, 0, code)
		require.Contains(t, stderr, `"msg":"Launching command"`)
	})

	t.Run("environment overrides the settings file", func(t *testing.T) {
		settingsFile := filepath.Join(t.TempDir(), "launcher.yaml")
		require.NoError(t, os.WriteFile(settingsFile, []byte("logging:\n  format: json\n"), 0o600))

		env := credentialEnv()
		env[ConfigFileEnv] = settingsFile
		env["INFISICAL_LAUNCHER_LOGGING_LEVEL"] = "error"
		code, _, stderr := launch(t, &stubTool{token: "abc"}, env, "ls")

		require.Equal(t, 0, code)
		require.Empty(t, stderr)
	})

	t.Run("missing settings file", func(t *testing.T) {
		env := credentialEnv()
		env[ConfigFileEnv] = filepath.Join(t.TempDir(), "absent.yaml")
		code, _, stderr := launch(t, &stubTool{token: "abc"}, env, "ls")

		require.Equal(t, 1, code)
		require.Contains(t, stderr, "reading settings file")
	})
}
