package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"time"
)

var build Build

// Build holds details about this build of the netdiag binary.
type Build struct {
	Version   string    `json:"version,omitempty"`
	GitSHA    string    `json:"git,omitempty"`
	BuildTime time.Time `json:"buildTime,omitempty"`
	GoInfo    GoInfo    `json:"go,omitempty"`
}

type GoInfo struct {
	Version  string `json:"version,omitempty"`
	Compiler string `json:"compiler,omitempty"`
	OS       string `json:"os,omitempty"`
	Arch     string `json:"arch,omitempty"`
}

// initBuild fills in build info from ldflags when set, falling back to the
// module info recorded by the Go toolchain.
func initBuild() {
	const moduleName = "github.com/openshift-netlab/netdiag"

	if version == "" {
		if info, ok := debug.ReadBuildInfo(); ok {
			for _, dep := range info.Deps {
				if dep.Path == moduleName {
					version = dep.Version
				}
			}
			if version == "" && info.Main.Path == moduleName {
				version = info.Main.Version
			}
		}
	}
	build.Version = version
	build.GitSHA = gitSHA

	if buildTime != "" {
		if t, err := time.Parse(time.RFC3339, buildTime); err == nil {
			build.BuildTime = t
		}
	}

	build.GoInfo = GoInfo{
		Version:  runtime.Version(),
		Compiler: runtime.Compiler,
		OS:       runtime.GOOS,
		Arch:     runtime.GOARCH,
	}
}

// Version returns the version set at build time, or the module version when
// built without ldflags.
func Version() string {
	initBuild()
	if build.Version == "" {
		return "(devel)"
	}
	return build.Version
}

func GitSHA() string {
	initBuild()
	return build.GitSHA
}

func GetUserAgent() string {
	return fmt.Sprintf("netdiag/%s (%s %s)", Version(), runtime.GOOS, runtime.GOARCH)
}
