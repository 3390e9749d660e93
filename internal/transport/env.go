package transport

import (
	"os"
	"path/filepath"
	"strings"
)

// commonInstallDirs are appended to PATH when spawning the agent child, so
// a binary installed outside a login shell's PATH (e.g. by a package
// manager under a GUI launch context) is still found. Grounded in the
// teacher's practice of widening PATH for agent/tool subprocesses.
var commonInstallDirs = []string{
	"/opt/homebrew/bin",
	"/usr/local/bin",
	filepath.Join(homeDir(), ".local", "bin"),
	filepath.Join(homeDir(), ".cargo", "bin"),
}

func homeDir() string {
	h, _ := os.UserHomeDir()
	return h
}

// ResolveBinary implements spec.md §4.C's lookup order: workspace override
// → default → built-in fallback ("codex" on PATH). Lookups against a bare
// (non-absolute) name search the widened PATH (daemon PATH plus common
// install locations plus extraPathDirs), not just the daemon's own PATH.
func ResolveBinary(workspaceOverride, configDefault string, extraPathDirs []string) (string, error) {
	candidates := []string{workspaceOverride, configDefault, "codex"}
	dirs := searchDirs(extraPathDirs)

	for _, c := range candidates {
		if c == "" {
			continue
		}
		if filepath.IsAbs(c) {
			if info, err := os.Stat(c); err == nil && !info.IsDir() {
				return c, nil
			}
			continue
		}
		if resolved, ok := lookInDirs(c, dirs); ok {
			return resolved, nil
		}
	}
	return "", ErrBinaryNotFound
}

// lookInDirs searches dirs in order for an executable file named name.
func lookInDirs(name string, dirs []string) (string, bool) {
	for _, dir := range dirs {
		candidate := filepath.Join(dir, name)
		info, err := os.Stat(candidate)
		if err != nil || info.IsDir() {
			continue
		}
		if info.Mode()&0111 != 0 {
			return candidate, true
		}
	}
	return "", false
}

// searchDirs returns the PATH directories, in order, widened with common
// install locations and extraPathDirs.
func searchDirs(extraPathDirs []string) []string {
	var dirs []string
	if p := os.Getenv("PATH"); p != "" {
		dirs = append(dirs, strings.Split(p, string(os.PathListSeparator))...)
	}
	dirs = append(dirs, commonInstallDirs...)
	dirs = append(dirs, extraPathDirs...)
	return dirs
}

func buildPath(extraDirs []string) string {
	parts := []string{os.Getenv("PATH")}
	parts = append(parts, commonInstallDirs...)
	parts = append(parts, extraDirs...)
	return strings.Join(nonEmpty(parts), string(os.PathListSeparator))
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ChildEnviron builds the environment for a spawned agent child: the
// daemon's own environment, plus a widened PATH, plus CODEX_HOME pinned to
// codexHome (resolved by the caller per spec.md §4.C).
func ChildEnviron(codexHome string, extraPathDirs []string) []string {
	env := os.Environ()
	out := make([]string, 0, len(env)+2)
	for _, kv := range env {
		if strings.HasPrefix(kv, "PATH=") || strings.HasPrefix(kv, "CODEX_HOME=") {
			continue
		}
		out = append(out, kv)
	}
	out = append(out, "PATH="+buildPath(extraPathDirs))
	out = append(out, "CODEX_HOME="+codexHome)
	return out
}
