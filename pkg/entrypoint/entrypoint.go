package entrypoint

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/wrouesnel/infisical-launcher/pkg/credentials"
	"github.com/wrouesnel/infisical-launcher/pkg/infisical"
	"github.com/wrouesnel/infisical-launcher/pkg/installer"
	"github.com/wrouesnel/infisical-launcher/pkg/launchargs"
	"github.com/wrouesnel/infisical-launcher/version"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options are the launcher's own settings. They are resolved from
// INFISICAL_LAUNCHER_* environment variables and the optional settings file,
// never from the command line, which belongs to the wrapped command.
type Options struct {
	Logging struct {
		Level  string `help:"logging level" default:"info"`
		Format string `help:"logging format (${enum})" enum:"console,json" default:"console"`
	} `embed:"" prefix:"logging."`

	Binary string `help:"infisical CLI executable" default:"${default_binary}"`
	Domain string `help:"Infisical instance URL for self-hosted deployments"`

	Install struct {
		Check       bool   `help:"probe for the infisical CLI and install it if missing" default:"false"`
		Strategy    string `help:"installation strategy (${enum})" enum:"package-manager,release" default:"package-manager"`
		Version     string `help:"release version installed by the release strategy" default:"${default_release_version}"`
		URLTemplate string `name:"url-template" help:"pongo2 template of the release download URL" default:"${default_url_template}"`
		Dir         string `help:"directory the release strategy installs into" default:"${default_install_dir}"`

		TLSCACerts  []string `name:"tls-ca-certs" help:"additional CA certificates for release downloads (file, PEM or base64 PEM)"`
		TLSNoVerify bool     `name:"tls-no-verify" help:"disable TLS verification for release downloads"`
	} `embed:"" prefix:"install."`
}

type LaunchArgs struct {
	StdIn  io.Reader
	StdOut io.Writer
	StdErr io.Writer
	Env    map[string]string
	Args   []string
	// WorkDir is the directory relative paths and the default .env are
	// resolved against. Defaults to the process working directory.
	WorkDir string

	// Tool replaces the infisical CLI. Used by tests.
	Tool infisical.Tool
	// Installer replaces the installer selected by the settings.
	Installer installer.Installer
}

func newLogger(options Options, output io.Writer) (*zap.Logger, []string) {
	deferredLogs := []string{}

	logConfig := zap.NewProductionConfig()
	if err := logConfig.Level.UnmarshalText([]byte(options.Logging.Level)); err != nil {
		deferredLogs = append(deferredLogs, err.Error())
	}
	logConfig.Encoding = options.Logging.Format

	var encoder zapcore.Encoder
	if logConfig.Encoding == "json" {
		encoder = zapcore.NewJSONEncoder(logConfig.EncoderConfig)
	} else {
		logConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewConsoleEncoder(logConfig.EncoderConfig)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(output), logConfig.Level)
	return zap.New(core), deferredLogs
}

func newInstaller(options Options, args LaunchArgs, env map[string]string) installer.Installer {
	if args.Installer != nil {
		return args.Installer
	}

	if options.Install.Strategy == installer.StrategyRelease {
		return &installer.ReleaseInstaller{
			Version:     options.Install.Version,
			URLTemplate: options.Install.URLTemplate,
			Dir:         options.Install.Dir,
			BinaryName:  infisical.DefaultBinary,
			TLSCACerts:  options.Install.TLSCACerts,
			TLSNoVerify: options.Install.TLSNoVerify,
		}
	}

	return &installer.PackageManagerInstaller{
		Env:    env,
		Stdout: args.StdErr,
		Stderr: args.StdErr,
	}
}

// Entrypoint implements the actual functionality of the program so it can be called inline from testing.
//nolint:funlen,gocognit,gocyclo,cyclop
func Entrypoint(args LaunchArgs) int {
	options := Options{}

	fileSettings, err := loadSettingsFile(args.Env[ConfigFileEnv])
	if err != nil {
		_, _ = fmt.Fprintf(args.StdErr, "Error: settings: %s\n", err.Error())
		return 1
	}

	parser := lo.Must(kong.New(&options,
		kong.Name(version.Name),
		kong.Description(version.Description),
		kong.Writers(args.StdOut, args.StdErr),
		kong.Vars{
			"default_binary":          infisical.DefaultBinary,
			"default_release_version": installer.DefaultReleaseVersion,
			"default_url_template":    installer.DefaultURLTemplate,
			"default_install_dir":     installer.DefaultInstallDir,
		},
		kong.Resolvers(settingsResolver(args.Env, fileSettings)),
	))
	if _, err = parser.Parse([]string{}); err != nil {
		_, _ = fmt.Fprintf(args.StdErr, "Error: settings: %s\n", err.Error())
		return 1
	}

	// Initialize logging as soon as possible
	logger, deferredLogs := newLogger(options, args.StdErr)
	defer zap.ReplaceGlobals(logger)()
	defer func() { _ = logger.Sync() }()
	for _, line := range deferredLogs {
		logger.Warn("Logging configuration", zap.String("error", line))
	}

	workDir := args.WorkDir
	if workDir == "" {
		if workDir, err = os.Getwd(); err != nil {
			_, _ = fmt.Fprintf(args.StdErr, "Error: could not determine working directory: %s\n", err.Error())
			return 1
		}
	}

	launchOptions, err := launchargs.Parse(args.Args, workDir)
	if launchOptions.ShowVersion {
		lo.Must(fmt.Fprintf(args.StdOut, "%s\n", version.Version))
		return 0
	}
	if err != nil {
		_, _ = fmt.Fprintf(args.StdErr, "Error: %s\n%s\n", err.Error(), launchargs.Usage)
		return 1
	}

	resolver := &credentials.Resolver{Env: args.Env, WorkDir: workDir}
	resolution, err := resolver.Resolve(launchOptions.EnvDir)
	if err != nil {
		_, _ = fmt.Fprintf(args.StdErr, "Error: %s\n", err.Error())
		return 1
	}

	tool := args.Tool
	if tool == nil {
		tool = &infisical.CLI{
			Binary: options.Binary,
			Domain: options.Domain,
			Env:    resolution.Env,
			Stdin:  args.StdIn,
			Stdout: args.StdOut,
			Stderr: args.StdErr,
		}
	}

	ctx := context.Background()

	if options.Install.Check {
		binary, err := installer.EnsureAvailable(ctx, tool, newInstaller(options, args, resolution.Env))
		if err != nil {
			_, _ = fmt.Fprintf(args.StdErr, "Error: %s\n", err.Error())
			return 1
		}
		if cli, ok := tool.(*infisical.CLI); ok && binary != "" {
			cli.Binary = binary
		}
	}

	creds := resolution.Credentials
	token, err := tool.Login(ctx, creds.ClientID, creds.ClientSecret)
	if err != nil {
		_, _ = fmt.Fprintf(args.StdErr, "Error: %s\n", err.Error())
		return 1
	}

	logger.Info("Launching command",
		zap.String("path", launchOptions.SecretsPath),
		zap.String("project", creds.ProjectID),
		zap.Strings("command", launchOptions.Command))

	exitCode, err := tool.Run(ctx, infisical.RunRequest{
		ProjectID:   creds.ProjectID,
		Token:       token,
		SecretsPath: launchOptions.SecretsPath,
		Command:     launchOptions.Command,
	})
	if err != nil {
		logger.Error("Command could not be run", zap.Error(errors.Cause(err)))
		_, _ = fmt.Fprintf(args.StdErr, "Error: %s\n", err.Error())
		return 1
	}

	logger.Debug("Command finished", zap.Int("exit_code", exitCode))
	return exitCode
}
