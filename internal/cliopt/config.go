package cliopt

import (
	"os"

	"gopkg.in/yaml.v3"
)

// ProjectConfig is the optional nasin.yaml project file read alongside CLI
// flags (spec §6 expansion): a place to pin entry/output/thread defaults
// for a project without repeating them on every invocation.
type ProjectConfig struct {
	Entry   string `yaml:"entry"`
	Out     string `yaml:"out"`
	Threads int    `yaml:"threads"`
}

// LoadProjectConfig reads and parses path. A missing file is not an error:
// it returns a zero ProjectConfig, since nasin.yaml is always optional.
func LoadProjectConfig(path string) (ProjectConfig, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return ProjectConfig{}, nil
	}
	if err != nil {
		return ProjectConfig{}, err
	}
	var cfg ProjectConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return ProjectConfig{}, err
	}
	return cfg, nil
}

// ApplyProjectConfig fills in any field of opt left at its flag default
// from cfg, so that explicit CLI flags always win over the project file.
func ApplyProjectConfig(opt Options, cfg ProjectConfig) Options {
	if opt.Src == "" {
		opt.Src = cfg.Entry
	}
	if opt.Out == "" || opt.Out == "a.out" {
		if cfg.Out != "" {
			opt.Out = cfg.Out
		}
	}
	if opt.Threads == defaultThreads && cfg.Threads > 0 {
		opt.Threads = cfg.Threads
	}
	return opt
}
