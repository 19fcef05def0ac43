package main

import (
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/odvcencio/gotdiff/pkg/repo"
)

const settingsEnvPrefix = "GOT_DIFFTOOL_"

// difftoolSettings is the effective difftool configuration after layering
// defaults, the repository config and GOT_DIFFTOOL_* variables.
type difftoolSettings struct {
	Tool   string            `koanf:"tool"`
	TmpDir string            `koanf:"tmpdir"`
	ExtCmd string            `koanf:"extcmd"`
	Tools  map[string]string `koanf:"tools"`
}

var defaultSettings = map[string]interface{}{
	"tool": "builtin",
}

// loadSettings merges, lowest precedence first: defaults, cfg, and the
// environment. Command-line flags are applied by the caller.
func loadSettings(cfg *repo.Config) (*difftoolSettings, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaultSettings, "."), nil); err != nil {
		return nil, fmt.Errorf("load default settings: %w", err)
	}

	fromRepo := map[string]interface{}{}
	if cfg != nil {
		if cfg.Difftool.Tool != "" {
			fromRepo["tool"] = cfg.Difftool.Tool
		}
		if cfg.Difftool.TmpDir != "" {
			fromRepo["tmpdir"] = cfg.Difftool.TmpDir
		}
		for name, t := range cfg.Difftool.Tools {
			fromRepo["tools."+name] = t.Cmd
		}
	}
	if err := k.Load(confmap.Provider(fromRepo, "."), nil); err != nil {
		return nil, fmt.Errorf("load repository settings: %w", err)
	}

	err := k.Load(env.Provider(settingsEnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, settingsEnvPrefix))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load environment settings: %w", err)
	}

	var s difftoolSettings
	conf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &s,
			WeaklyTypedInput: true,
		},
	}
	if err := k.UnmarshalWithConf("", &s, conf); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	if s.Tools == nil {
		s.Tools = make(map[string]string)
	}
	return &s, nil
}
