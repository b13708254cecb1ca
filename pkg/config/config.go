package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/xyproto/env/v2"
	"gopkg.in/yaml.v3"
	"lab47.dev/fixoralib/pkg/registry"
)

const (
	DefaultConfigPath = "~/.config/fix-oralib/config.json"

	CodesignAuto   = "auto"
	CodesignAlways = "always"
	CodesignNever  = "never"

	ReaderOtool  = "otool"
	ReaderNative = "native"
)

type Config struct {
	path string

	// Instant client directory used when --ic_dir isn't given.
	ICDir string `json:"ic-dir" yaml:"ic-dir"`

	AbsolutePath bool `json:"absolute-path" yaml:"absolute-path"`

	// Legacy selects the exact 11.1 library list instead of the patterns.
	Legacy bool `json:"legacy" yaml:"legacy"`

	// Extra libraries to recognize. Entries in slashes are patterns.
	Libraries []string `json:"libraries" yaml:"libraries"`

	Codesign string `json:"codesign" yaml:"codesign"`
	Reader   string `json:"reader" yaml:"reader"`
}

// LoadConfig reads the file named by FIX_ORALIB_CONFIG, or the default
// config file if it exists, and applies environment overrides. A missing
// default file is not an error.
func LoadConfig() (*Config, error) {
	env.Load()

	if loc := env.Str("FIX_ORALIB_CONFIG"); loc != "" {
		return LoadFile(loc)
	}

	path, err := homedir.Expand(DefaultConfigPath)
	if err != nil {
		return nil, err
	}

	base := strings.TrimSuffix(path, filepath.Ext(path))

	for _, candidate := range []string{path, base + ".yaml", base + ".yml"} {
		if _, err := os.Stat(candidate); err == nil {
			return LoadFile(candidate)
		}
	}

	cfg := &Config{
		Codesign: CodesignAuto,
		Reader:   ReaderOtool,
	}

	return updateFromEnv(cfg)
}

// LoadFile reads a JSON or YAML (.yaml, .yml) config file.
func LoadFile(path string) (*Config, error) {
	env.Load()

	path, err := homedir.Expand(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config")
	}

	var cfg Config

	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}

	if err != nil {
		return nil, errors.Wrapf(err, "parsing config %s", path)
	}

	cfg.path = path

	if cfg.Codesign == "" {
		cfg.Codesign = CodesignAuto
	}

	if cfg.Reader == "" {
		cfg.Reader = ReaderOtool
	}

	return updateFromEnv(&cfg)
}

func updateFromEnv(cfg *Config) (*Config, error) {
	if dir := env.Str("FIX_ORALIB_IC_DIR"); dir != "" {
		cfg.ICDir = dir
	}

	if env.Has("FIX_ORALIB_ABSOLUTE_PATH") {
		cfg.AbsolutePath = env.Bool("FIX_ORALIB_ABSOLUTE_PATH")
	}

	if mode := env.Str("FIX_ORALIB_CODESIGN"); mode != "" {
		cfg.Codesign = mode
	}

	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	switch c.Codesign {
	case CodesignAuto, CodesignAlways, CodesignNever:
	default:
		return errors.Errorf("unknown codesign mode %q", c.Codesign)
	}

	switch c.Reader {
	case ReaderOtool, ReaderNative:
	default:
		return errors.Errorf("unknown reader %q", c.Reader)
	}

	_, err := c.Registry()

	return err
}

// Path returns the file the config was loaded from, if any.
func (c *Config) Path() string {
	return c.path
}

// Registry returns the library registry with the configured extras.
func (c *Config) Registry() (*registry.Registry, error) {
	reg := registry.Default()
	if c.Legacy {
		reg = registry.Legacy()
	}

	var extra []registry.Matcher

	for _, lib := range c.Libraries {
		m, err := registry.Parse(lib)
		if err != nil {
			return nil, errors.Wrapf(err, "library entry %q", lib)
		}

		extra = append(extra, m)
	}

	return reg.With(extra...), nil
}

// RequireCodeSign reports whether modified binaries must be re-signed.
// In auto mode that's any macOS past 10.x, where arm64 refuses to load
// binaries with a stale signature.
func (c *Config) RequireCodeSign() (bool, error) {
	switch c.Codesign {
	case CodesignAlways:
		return true, nil
	case CodesignNever:
		return false, nil
	}

	osName, osVersion, arch, err := Platform()
	if err != nil {
		return false, err
	}

	if osName != "darwin" {
		return false, nil
	}

	return arch == "arm64" || !strings.HasPrefix(osVersion, "10."), nil
}

func Platform() (string, string, string, error) {
	osName, _, osVersion, err := host.PlatformInformation()
	if err != nil {
		return "", "", "", err
	}

	arch, err := host.KernelArch()
	if err != nil {
		return "", "", "", err
	}

	return osName, osVersion, arch, nil
}
