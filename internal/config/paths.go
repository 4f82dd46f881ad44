package config

import (
	"os"
	"path/filepath"
	"strings"
)

// homeEnv names the base directory for relative runtime paths.
const homeEnv = "SOMA_HOME"

// homeDir is SOMA_HOME when set, else the directory holding the binary,
// else the working directory.
func homeDir() string {
	if v := strings.TrimSpace(os.Getenv(homeEnv)); v != "" {
		return expandUser(v)
	}
	if exe, err := os.Executable(); err == nil {
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		return filepath.Dir(exe)
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

// runtimeDir resolves a logs or uploads setting. Absolute and "~/" paths are
// kept; anything else lands under homeDir.
func runtimeDir(raw, fallback string) string {
	p := strings.TrimSpace(raw)
	if p == "" {
		p = fallback
	}
	p = expandUser(p)
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(homeDir(), p)
}

func expandUser(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
