package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/stratlang/stratc/compiler"
	"gopkg.in/yaml.v3"
)

// projectConfig is the optional stratc.yml sitting next to the source file.
// CLI flags override anything set here.
type projectConfig struct {
	Dialect       string `yaml:"dialect"`
	Optimize      string `yaml:"optimize"`
	RuntimeChecks bool   `yaml:"runtime_checks"`
	SourceMap     bool   `yaml:"source_map"`
	Cache         bool   `yaml:"cache"`
	CacheDir      string `yaml:"cache_dir"`
}

// loadProjectConfig reads stratc.yml from the directory containing source,
// if present. A missing file is not an error; a malformed one is.
func loadProjectConfig(source string) (*projectConfig, error) {
	path := filepath.Join(filepath.Dir(source), "stratc.yml")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var cfg projectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}

// options merges the project config (lowest precedence) with the flag values
// the user actually set.
func (c *projectConfig) options() (compiler.Options, error) {
	opts := compiler.Options{}
	if c == nil {
		return opts, nil
	}
	opts.Dialect = compiler.Dialect(c.Dialect)
	if c.Dialect != "" && opts.Dialect != compiler.DialectES2022 && opts.Dialect != compiler.DialectCommonJS {
		return opts, fmt.Errorf("stratc.yml: unknown dialect %q", c.Dialect)
	}
	lvl, err := compiler.ParseOptLevel(c.Optimize)
	if err != nil {
		return opts, fmt.Errorf("stratc.yml: %w", err)
	}
	opts.Optimize = lvl
	opts.RuntimeChecks = c.RuntimeChecks
	opts.SourceMap = c.SourceMap
	opts.Cache = c.Cache
	opts.CacheDir = c.CacheDir
	return opts, nil
}
