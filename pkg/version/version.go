// Package version carries build metadata stamped in with -ldflags.
package version

import (
	"fmt"
	"runtime"
)

// Set at build time:
//
//	-X github.com/dl-alexandre/drivemirror/pkg/version.Version=v1.2.0
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

const product = "drivemirror"

type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"gitCommit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

func Get() *Info {
	return &Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

func (i *Info) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s, %s %s)",
		product, i.Version, shortCommit(i.GitCommit), i.BuildTime, i.GoVersion, i.Platform)
}

// UserAgent identifies the mirror to Drive and GitHub.
func UserAgent() string {
	return fmt.Sprintf("%s/%s (+%s)", product, Version, shortCommit(GitCommit))
}

func shortCommit(c string) string {
	if len(c) > 12 {
		return c[:12]
	}
	return c
}
