// Package util provides shell quoting and small formatting helpers.
package util

import (
	"path"
	"strings"
)

// ShellQuote wraps a string in single quotes, escaping any existing single quotes.
// Nothing inside the result is expanded by a POSIX shell.
func ShellQuote(s string) string {
	// Replace ' with '\'' (end quote, escaped quote, start quote)
	escaped := strings.ReplaceAll(s, "'", "'\\''")
	return "'" + escaped + "'"
}

// ShellQuotePreserveTilde quotes a path while leaving a leading ~/ for the
// remote shell to expand to the login user's home directory.
func ShellQuotePreserveTilde(p string) string {
	if strings.HasPrefix(p, "~/") {
		return "~/" + ShellQuote(p[2:])
	}
	if p == "~" {
		return "~"
	}
	return ShellQuote(p)
}

// RemoteDir returns the directory part of a remote (slash separated) path.
func RemoteDir(p string) string {
	return path.Dir(p)
}
