package credentials

import (
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/wrouesnel/infisical-launcher/pkg/envutil"
	"go.uber.org/zap"
)

const (
	EnvFileName = ".env"

	ClientIDKey     = "CLIENT_ID"
	ClientSecretKey = "CLIENT_SECRET"
	ProjectIDKey    = "PROJECT_ID"
)

// Credentials are the machine identity and project used to talk to Infisical.
type Credentials struct {
	ClientID     string
	ClientSecret string
	ProjectID    string
}

func (c Credentials) complete() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.ProjectID != ""
}

// Resolution is the output of a Resolver.
type Resolution struct {
	Credentials Credentials
	// Env is the environment to hand to external processes. It is the ambient
	// environment plus any entries loaded from the .env file.
	Env map[string]string
	// EnvFile is the absolute path of the .env file that was (or would be) read.
	EnvFile string
	// LoadedFile is true when EnvFile was actually read.
	LoadedFile bool
}

type MissingCredentialsError struct {
	EnvFile string
	Missing []string
}

func (m MissingCredentialsError) Error() string {
	return fmt.Sprintf("Missing credentials (%s, %s, or %s) in: %s (unset: %v)",
		ClientIDKey, ClientSecretKey, ProjectIDKey, m.EnvFile, m.Missing)
}

// Resolver resolves credentials from the ambient environment, falling back to
// a .env file only when something is missing. Ambient values always win.
type Resolver struct {
	// Env is the ambient environment of the launcher.
	Env map[string]string
	// WorkDir anchors relative env directories.
	WorkDir string
}

func fromEnv(env map[string]string) Credentials {
	return Credentials{
		ClientID:     env[ClientIDKey],
		ClientSecret: env[ClientSecretKey],
		ProjectID:    env[ProjectIDKey],
	}
}

// EnvFilePath returns the absolute .env path for envDir.
func (r *Resolver) EnvFilePath(envDir string) string {
	if !filepath.IsAbs(envDir) {
		envDir = filepath.Join(r.WorkDir, envDir)
	}
	return filepath.Join(envDir, EnvFileName)
}

// Resolve returns the credentials for an invocation using envDir/.env as the
// fallback source.
func (r *Resolver) Resolve(envDir string) (Resolution, error) {
	envFile := r.EnvFilePath(envDir)
	logger := zap.L().With(zap.String("env_file", envFile))

	resolution := Resolution{
		Credentials: fromEnv(r.Env),
		Env:         envutil.Merge(r.Env, nil),
		EnvFile:     envFile,
	}

	if resolution.Credentials.complete() {
		logger.Debug("Credentials present in environment, not reading env file")
		return resolution, nil
	}

	fileEnv, err := godotenv.Read(envFile)
	switch {
	case err == nil:
		resolution.LoadedFile = true
		resolution.Env = envutil.Merge(r.Env, fileEnv)
		resolution.Credentials = fromEnv(resolution.Env)
		logger.Debug("Loaded env file", zap.Int("entries", len(fileEnv)))
	case errors.Is(err, fs.ErrNotExist):
		logger.Debug("Env file does not exist")
	default:
		return resolution, errors.Wrapf(err, "could not read env file: %s", envFile)
	}

	if !resolution.Credentials.complete() {
		missing := lo.Filter([]string{ClientIDKey, ClientSecretKey, ProjectIDKey}, func(key string, _ int) bool {
			return resolution.Env[key] == ""
		})
		return resolution, &MissingCredentialsError{EnvFile: envFile, Missing: missing}
	}

	return resolution, nil
}
