// Package profile handles device profiles and workspace configuration.
package profile

import (
	"fmt"
	"sort"

	"github.com/qscript-dev/qscript-runner/pkg/core"
)

const googlebotUA = "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"

// builtins are the device profiles available without configuration.
var builtins = map[string]core.DeviceProfile{
	"desktop": {
		Name:   "desktop",
		Width:  1440,
		Height: 900,
	},
	"mobile": {
		Name:   "mobile",
		Width:  390,
		Height: 844,
		Mobile: true,
	},
	"bot": {
		Name:      "bot",
		Width:     1440,
		Height:    900,
		UserAgent: googlebotUA,
	},
}

// Builtin returns a builtin profile by name.
func Builtin(name string) (core.DeviceProfile, bool) {
	p, ok := builtins[name]
	return p, ok
}

// BuiltinNames returns the builtin profile names, sorted.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve maps requested device names to profiles. Workspace-defined
// profiles shadow builtins of the same name.
func Resolve(names []string, cfg *Config) ([]core.DeviceProfile, error) {
	if len(names) == 0 {
		names = []string{"desktop"}
		if cfg != nil && len(cfg.Devices) > 0 {
			names = cfg.Devices
		}
	}

	profiles := make([]core.DeviceProfile, 0, len(names))
	for _, name := range names {
		if cfg != nil {
			if spec, ok := cfg.Profiles[name]; ok {
				p, err := spec.toProfile(name)
				if err != nil {
					return nil, err
				}
				profiles = append(profiles, p)
				continue
			}
		}
		if p, ok := builtins[name]; ok {
			profiles = append(profiles, p)
			continue
		}
		return nil, fmt.Errorf("unknown device profile %q", name)
	}
	return profiles, nil
}
