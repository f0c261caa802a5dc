package version

// Version is populated by the build system.
//nolint:gochecknoglobals
var Version = "development"

const Name = "infisical-launcher"
const EnvPrefix = "INFISICAL_LAUNCHER"
const Description = "Run a command with Infisical secrets injected into its environment"
