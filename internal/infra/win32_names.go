package infra

import (
	"path/filepath"
	"strings"
)

// Executable names for browsers whose display name differs, so the browser
// allow-list matches on Windows the same way it does on macOS.
var windowsAppNames = map[string]string{
	"chrome":  "Google Chrome",
	"msedge":  "Microsoft Edge",
	"firefox": "Firefox",
	"brave":   "Brave Browser",
	"opera":   "Opera",
	"vivaldi": "Vivaldi",
}

// windowsAppName turns "C:\...\chrome.exe" or "chrome.exe" into a display name.
func windowsAppName(exe string) string {
	base := filepath.Base(strings.ReplaceAll(exe, `\`, "/"))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if name, ok := windowsAppNames[strings.ToLower(base)]; ok {
		return name
	}
	return base
}
