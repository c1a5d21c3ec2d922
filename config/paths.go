package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const appDirName = "agentloop"

// windowsLocalAppData resolves %LOCALAPPDATA%, falling back to the
// conventional location under the user profile.
func windowsLocalAppData() string {
	if dir := os.Getenv("LOCALAPPDATA"); dir != "" {
		return dir
	}
	return filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Local")
}

// GetConfigDir returns ~/.config/agentloop on every platform. Windows has no
// dotfile convention of its own, so the same layout lives under the profile
// directory.
func GetConfigDir() string {
	home := os.Getenv("HOME")
	if runtime.GOOS == "windows" {
		home = os.Getenv("USERPROFILE")
	}
	return filepath.Join(home, ".config", appDirName)
}

// GetDefaultDataDir returns where sessions and credentials live when the
// user has not picked a data directory: ~/.local/share/agentloop, or
// %LOCALAPPDATA%\agentloop on Windows.
func GetDefaultDataDir() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(windowsLocalAppData(), appDirName)
	}
	return filepath.Join(os.Getenv("HOME"), ".local", "share", appDirName)
}

// GetCacheDir returns the scratch directory. Kept out of the data directory
// so cloud-synced setups never pick up temp files.
func GetCacheDir() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(windowsLocalAppData(), appDirName)
	}
	return filepath.Join(os.Getenv("HOME"), ".cache", appDirName)
}

// GetSettingsFilePath returns the path to settings.toml.
func GetSettingsFilePath() string {
	return filepath.Join(GetConfigDir(), "settings.toml")
}

// GetHomeDir returns the user's home directory, with Windows fallbacks for
// environments that set HOMEDRIVE/HOMEPATH instead of USERPROFILE.
func GetHomeDir() string {
	if runtime.GOOS == "windows" {
		if home := os.Getenv("USERPROFILE"); home != "" {
			return home
		}
		if home := os.Getenv("HOMEDRIVE") + os.Getenv("HOMEPATH"); home != "" {
			return home
		}
		return "C:\\"
	}
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	return "/"
}

// ExpandPath expands a leading ~ and any environment variables, then cleans
// the result.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		path = filepath.Join(GetHomeDir(), path[2:])
	}
	return filepath.Clean(os.ExpandEnv(path))
}

// EnsureDir creates a user-only directory if it doesn't exist.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0700)
}

// FileExists reports whether a path exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// EnsureDataDirPermissions creates the data directory or tightens its
// permissions to user-only if it already exists.
func EnsureDataDirPermissions(dataDir string) error {
	info, err := os.Stat(dataDir)
	if os.IsNotExist(err) {
		return os.MkdirAll(dataDir, 0700)
	}
	if err != nil {
		return err
	}
	if info.Mode().Perm() != 0700 {
		return os.Chmod(dataDir, 0700)
	}
	return nil
}

// GetTempDir returns the secure temp directory under the cache dir.
func GetTempDir() string {
	return filepath.Join(GetCacheDir(), "tmp")
}

// CreateTempDir creates the temp directory with user-only permissions.
func CreateTempDir() error {
	return os.MkdirAll(GetTempDir(), 0700)
}

// CleanupTempDir removes the temp directory and everything in it.
func CleanupTempDir() error {
	tmpDir := GetTempDir()
	if _, err := os.Stat(tmpDir); err != nil {
		return nil
	}
	return os.RemoveAll(tmpDir)
}
