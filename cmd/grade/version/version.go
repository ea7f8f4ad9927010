// Package version reports the build version of the binaries.
package version

import (
	"embed"
	"io"
	"runtime/debug"
	"strings"
)

//go:generate sh -c "git describe --tags --always --dirty > version.txt"

//go:embed version.*
var versions embed.FS

// Version is read from version.txt when generated, from build info otherwise
var Version = "unable to get version"

func init() {
	f, err := versions.Open("version.txt")
	if err != nil {
		// installed by go install: use the module version
		inf, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}
		Version = inf.Main.Version
		return
	}
	defer f.Close()
	s, err := io.ReadAll(f)
	if err != nil {
		return
	}
	Version = strings.TrimSpace(string(s))
}
