// Package profile resolves the per-user state directory of the radio client.
package profile

import (
	"os"
	"path/filepath"
)

// BaseDir returns ~/.radio, or $RADIO_HOME when set.
func BaseDir() string {
	if dir := os.Getenv("RADIO_HOME"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".radio")
}

// Dir returns the profile directory for a username.
func Dir(username string) string {
	return filepath.Join(BaseDir(), "profiles", username)
}

// JournalPath returns the sqlite history journal path.
func JournalPath(username string) string {
	return filepath.Join(Dir(username), "journal.db")
}

// LogDir returns the log directory for a profile.
func LogDir(username string) string {
	return filepath.Join(Dir(username), "logs")
}

// LogPath returns the client log file path.
func LogPath(username string) string {
	return filepath.Join(LogDir(username), "radio.log")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// EnsureDir creates the profile directory tree.
func EnsureDir(username string) error {
	for _, d := range []string{Dir(username), LogDir(username)} {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
