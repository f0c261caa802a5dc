// Package envutil converts between the KEY=VALUE slices used by the os and
// os/exec packages and plain maps.
package envutil

import (
	"sort"
	"strings"

	"github.com/samber/lo"
)

// FromEnvironment parses an environment slice as returned by os.Environ.
// Later duplicates win, which matches how getenv resolves them. Entries
// without '=' are unreachable through getenv and are dropped.
func FromEnvironment(environ []string) map[string]string {
	env := make(map[string]string, len(environ))
	for _, line := range environ {
		key, value, found := strings.Cut(line, "=")
		// Windows carries per-drive working directories as "=C:=C:\\".
		if !found || key == "" {
			continue
		}
		env[key] = value
	}
	return env
}

// ToEnvironment renders env as a KEY=VALUE slice sorted by key.
func ToEnvironment(env map[string]string) []string {
	keys := lo.Keys(env)
	sort.Strings(keys)
	return lo.Map(keys, func(key string, _ int) string {
		return key + "=" + env[key]
	})
}

// Merge returns a new map holding base overlaid with the entries of overlay
// that are missing or empty in base. Neither input is modified.
func Merge(base map[string]string, overlay map[string]string) map[string]string {
	result := make(map[string]string, len(base)+len(overlay))
	for k, v := range base {
		result[k] = v
	}
	for k, v := range overlay {
		if result[k] == "" {
			result[k] = v
		}
	}
	return result
}
