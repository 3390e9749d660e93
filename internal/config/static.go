// Package config loads the daemon's optional static TOML layer
// (SPEC_FULL.md §3.1): deploy-time defaults that sit below CLI flags and
// environment variables but above the daemon's built-in defaults.
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// AgentConfig holds defaults for resolving and launching the agent binary.
type AgentConfig struct {
	DefaultBin    string   `toml:"default_bin"`
	ExtraPathDirs []string `toml:"extra_path_dirs"`
}

// NetworkConfig holds defaults for the client-facing TCP listener.
type NetworkConfig struct {
	Listen string `toml:"listen"`
}

// SandboxConfig holds the default sandbox policy for user turns.
type SandboxConfig struct {
	DefaultMode string `toml:"default_mode"`
}

// StaticConfig is the full decoded shape of agentd.toml.
type StaticConfig struct {
	Agent   AgentConfig   `toml:"agent"`
	Network NetworkConfig `toml:"network"`
	Sandbox SandboxConfig `toml:"sandbox"`
}

// Defaults returns the built-in configuration used when agentd.toml is
// absent or leaves a field unset.
func Defaults() StaticConfig {
	return StaticConfig{
		Agent: AgentConfig{
			DefaultBin: "codex",
		},
		Network: NetworkConfig{
			Listen: "127.0.0.1:4732",
		},
		Sandbox: SandboxConfig{
			DefaultMode: "workspace-write",
		},
	}
}

// Load decodes <dataDir>/agentd.toml over the built-in defaults. A missing
// file is not an error, matching the JSON store's missing-file semantics.
func Load(dataDir string) (StaticConfig, error) {
	cfg := Defaults()
	path := filepath.Join(dataDir, "agentd.toml")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return StaticConfig{}, err
	}

	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return StaticConfig{}, err
	}
	if cfg.Agent.DefaultBin == "" {
		cfg.Agent.DefaultBin = "codex"
	}
	if cfg.Network.Listen == "" {
		cfg.Network.Listen = "127.0.0.1:4732"
	}
	if cfg.Sandbox.DefaultMode == "" {
		cfg.Sandbox.DefaultMode = "workspace-write"
	}
	return cfg, nil
}
