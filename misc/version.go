// Package misc keeps build time information.
package misc

import (
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
)

// set by linker with -X.
var (
	version = "dev"
	githash = ""
	appname = ""
)

// GetVersion returns program version.
func GetVersion() string {
	return version
}

// GetGitHash returns git hash of the sources program was built from. When not
// set during the build we attempt to get it from embedded build info.
func GetGitHash() string {
	if len(githash) > 0 {
		return githash
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" {
				return s.Value
			}
		}
	}
	return "unknown"
}

// GetAppName returns name of the running executable without extension.
func GetAppName() string {
	if len(appname) > 0 {
		return appname
	}
	name := filepath.Base(os.Args[0])
	return strings.TrimSuffix(name, filepath.Ext(name))
}
