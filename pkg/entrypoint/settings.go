package entrypoint

import (
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/wrouesnel/infisical-launcher/version"
	"gopkg.in/yaml.v3"
)

// ConfigFileEnv names the optional YAML settings file.
const ConfigFileEnv = version.EnvPrefix + "_CONFIG"

// envVarName maps a kong flag name to its environment variable,
// e.g. install.url-template -> INFISICAL_LAUNCHER_INSTALL_URL_TEMPLATE.
func envVarName(flagName string) string {
	replacer := strings.NewReplacer(".", "_", "-", "_")
	return version.EnvPrefix + "_" + strings.ToUpper(replacer.Replace(flagName))
}

// loadSettingsFile reads a YAML settings file. An empty path yields no settings.
func loadSettingsFile(path string) (map[string]interface{}, error) {
	settings := map[string]interface{}{}
	if path == "" {
		return settings, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading settings file: %s", path)
	}
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, errors.Wrapf(err, "parsing settings file: %s", path)
	}
	return settings, nil
}

// lookupSetting finds a dotted flag name in a settings tree. Both nested
// (logging: {level: debug}) and flat ("logging.level": debug) keys work.
func lookupSetting(settings map[string]interface{}, name string) (interface{}, bool) {
	if value, found := settings[name]; found {
		return value, true
	}

	head, rest, nested := strings.Cut(name, ".")
	if !nested {
		return nil, false
	}
	child, ok := settings[head].(map[string]interface{})
	if !ok {
		return nil, false
	}
	return lookupSetting(child, rest)
}

// settingValue renders a YAML value the way kong expects it on the command
// line. Lists become kong's comma separated form.
func settingValue(value interface{}) string {
	if items, ok := value.([]interface{}); ok {
		return strings.Join(lo.Map(items, func(item interface{}, _ int) string {
			return fmt.Sprint(item)
		}), ",")
	}
	return fmt.Sprint(value)
}

// settingsResolver resolves flags from the environment first, then the
// settings file. The launcher's argv is never handed to kong.
func settingsResolver(env map[string]string, fileSettings map[string]interface{}) kong.ResolverFunc {
	return func(context *kong.Context, parent *kong.Path, flag *kong.Flag) (interface{}, error) {
		if flag.Name == "help" {
			return nil, nil
		}
		if value, found := env[envVarName(flag.Name)]; found {
			return value, nil
		}
		if value, found := lookupSetting(fileSettings, flag.Name); found {
			return settingValue(value), nil
		}
		return nil, nil
	}
}
