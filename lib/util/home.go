package util

import (
	"os"
)

// UserHome returns the current user's home directory.
// Falls back to $HOME if os.UserHomeDir fails, then USERPROFILE on Windows.
// As a last resort it uses the current working directory rather than
// panicking, which keeps containerized runs working when $HOME is unset.
func UserHome() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		if home := os.Getenv("HOME"); home != "" {
			log.WithError(err).Warn("os.UserHomeDir failed, falling back to $HOME")
			return home
		}
		if home := os.Getenv("USERPROFILE"); home != "" {
			log.WithError(err).Warn("os.UserHomeDir failed, falling back to USERPROFILE")
			return home
		}
		if wd, wdErr := os.Getwd(); wdErr == nil {
			log.WithError(err).Warn("os.UserHomeDir and $HOME unavailable; falling back to working directory")
			return wd
		}
		panic("go-fabrpc: unable to determine home directory; set $HOME environment variable")
	}

	return homeDir
}
