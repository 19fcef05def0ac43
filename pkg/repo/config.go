package repo

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config stores repository-local settings in .got/config.toml.
type Config struct {
	User     UserConfig     `toml:"user"`
	Difftool DifftoolConfig `toml:"difftool"`
}

// UserConfig identifies the committer.
type UserConfig struct {
	Name string `toml:"name,omitempty"`
}

// DifftoolConfig selects the external comparison tool.
type DifftoolConfig struct {
	Tool   string                `toml:"tool,omitempty"`
	TmpDir string                `toml:"tmpdir,omitempty"`
	Tools  map[string]ToolConfig `toml:"tools,omitempty"`
}

// ToolConfig is a user-defined tool. Cmd is run by the shell with $LOCAL
// and $REMOTE set to the two directories.
type ToolConfig struct {
	Cmd string `toml:"cmd"`
}

func (r *Repo) configPath() string {
	return filepath.Join(r.GotDir, "config.toml")
}

// ReadConfig reads .got/config.toml. Missing config returns an empty config.
func (r *Repo) ReadConfig() (*Config, error) {
	cfg := &Config{}
	if _, err := toml.DecodeFile(r.configPath(), cfg); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg.Difftool.Tools = make(map[string]ToolConfig)
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if cfg.Difftool.Tools == nil {
		cfg.Difftool.Tools = make(map[string]ToolConfig)
	}
	return cfg, nil
}

// WriteConfig atomically writes .got/config.toml.
func (r *Repo) WriteConfig(cfg *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("write config: encode: %w", err)
	}

	tmp, err := os.CreateTemp(r.GotDir, ".config-tmp-*")
	if err != nil {
		return fmt.Errorf("write config: tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write config: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write config: close: %w", err)
	}
	if err := os.Rename(tmpName, r.configPath()); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write config: rename: %w", err)
	}
	return nil
}

// ErrUnknownConfigKey is returned for keys outside the supported set.
var ErrUnknownConfigKey = errors.New("unknown config key")

// GetConfigValue returns the value of a dotted key such as "difftool.tool"
// or "difftool.tools.meld.cmd". Unset keys return "".
func (c *Config) GetConfigValue(key string) (string, error) {
	switch key {
	case "user.name":
		return c.User.Name, nil
	case "difftool.tool":
		return c.Difftool.Tool, nil
	case "difftool.tmpdir":
		return c.Difftool.TmpDir, nil
	}
	if name, ok := toolCmdKey(key); ok {
		return c.Difftool.Tools[name].Cmd, nil
	}
	return "", fmt.Errorf("%w %q", ErrUnknownConfigKey, key)
}

// SetConfigValue sets a dotted key. An empty value clears it.
func (c *Config) SetConfigValue(key, value string) error {
	switch key {
	case "user.name":
		c.User.Name = value
		return nil
	case "difftool.tool":
		c.Difftool.Tool = value
		return nil
	case "difftool.tmpdir":
		c.Difftool.TmpDir = value
		return nil
	}
	name, ok := toolCmdKey(key)
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownConfigKey, key)
	}
	if c.Difftool.Tools == nil {
		c.Difftool.Tools = make(map[string]ToolConfig)
	}
	if value == "" {
		delete(c.Difftool.Tools, name)
		return nil
	}
	c.Difftool.Tools[name] = ToolConfig{Cmd: value}
	return nil
}

// ConfigKeys lists every key currently set, sorted.
func (c *Config) ConfigKeys() []string {
	var keys []string
	for _, k := range []string{"user.name", "difftool.tool", "difftool.tmpdir"} {
		if v, _ := c.GetConfigValue(k); v != "" {
			keys = append(keys, k)
		}
	}
	for name := range c.Difftool.Tools {
		keys = append(keys, "difftool.tools."+name+".cmd")
	}
	sort.Strings(keys)
	return keys
}

func toolCmdKey(key string) (string, bool) {
	rest, ok := strings.CutPrefix(key, "difftool.tools.")
	if !ok {
		return "", false
	}
	name, ok := strings.CutSuffix(rest, ".cmd")
	if !ok || name == "" || strings.Contains(name, ".") {
		return "", false
	}
	return name, true
}
