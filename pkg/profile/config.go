package profile

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/qscript-dev/qscript-runner/pkg/core"
)

// Config represents the workspace configuration (qscript.yaml).
type Config struct {
	// Default device selection when --devices is not given
	Devices []string `yaml:"devices"`

	// Custom device profiles, by name
	Profiles map[string]ProfileSpec `yaml:"profiles"`

	// Variables seeded into every run (script SetVar shadows these)
	Vars map[string]string `yaml:"vars"`

	// Default WaitFor/navigation deadline in milliseconds
	TimeoutMs int `yaml:"timeoutMs"`

	// Remote worker pool settings (CLI flags override these)
	Remote RemoteSpec `yaml:"remote"`
}

// RemoteSpec configures the Redis-backed browser worker pool.
type RemoteSpec struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Queue    string `yaml:"queue"`
}

// ProfileSpec is a custom device profile entry in qscript.yaml.
type ProfileSpec struct {
	Width     int    `yaml:"width"`
	Height    int    `yaml:"height"`
	Mobile    bool   `yaml:"mobile"`
	UserAgent string `yaml:"userAgent"`
}

func (s ProfileSpec) toProfile(name string) (p core.DeviceProfile, err error) {
	if s.Width <= 0 || s.Height <= 0 {
		return p, fmt.Errorf("profile %q: width and height must be positive", name)
	}
	return core.DeviceProfile{
		Name:      name,
		Width:     s.Width,
		Height:    s.Height,
		Mobile:    s.Mobile,
		UserAgent: s.UserAgent,
	}, nil
}

// Load loads configuration from a file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadFromDir looks for qscript.yaml or qscript.yml in the directory.
func LoadFromDir(dir string) (*Config, error) {
	configPath := filepath.Join(dir, "qscript.yaml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	configPath = filepath.Join(dir, "qscript.yml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	// No config file found, return empty config
	return &Config{}, nil
}

// LoadDotEnv loads a .env file from the directory into the process
// environment, if one exists. Existing variables are not overridden.
func LoadDotEnv(dir string) error {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	return godotenv.Load(path)
}
