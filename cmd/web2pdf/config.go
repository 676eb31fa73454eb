package main

import (
	"errors"
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/alnah/go-web2pdf/internal/config"
	"github.com/alnah/go-web2pdf/internal/hints"
)

// resolveConfig builds the effective configuration.
// Precedence: CLI flags > env vars > config file > defaults.
// fs and f may be nil for commands without serve flags.
func resolveConfig(configFlag string, fs *flag.FlagSet, f *serveFlags, env *Environment) (*config.Config, error) {
	envCfg, err := loadEnvConfig(env.getenv)
	if err != nil {
		return nil, err
	}
	warnUnknownEnvVars(env.Stderr, env.environ())

	name := configFlag
	if name == "" {
		name = envCfg.ConfigPath
	}

	var cfg *config.Config
	switch {
	case name != "":
		cfg, err = config.Load(name)
		if err != nil {
			if errors.Is(err, config.ErrConfigNotFound) {
				return nil, fmt.Errorf("%w%s", err, hints.ForConfigNotFound(config.SearchPaths(name)))
			}
			return nil, err
		}
	default:
		if path := config.Discover(); path != "" {
			if cfg, err = config.Load(path); err != nil {
				return nil, err
			}
		} else {
			cfg = config.Default()
		}
	}

	applyEnvConfig(envCfg, cfg)
	if fs != nil && f != nil {
		applyFlags(fs, f, cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
