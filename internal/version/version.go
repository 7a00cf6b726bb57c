package version

import (
	"runtime/debug"
	"strings"
	"time"
)

const defaultModule = "pkt.systems/wayfare"

// buildVersion is set via -ldflags "-X pkt.systems/wayfare/internal/version.buildVersion=...".
var buildVersion = ""

// Info describes the running binary.
type Info struct {
	Module    string `json:"module"`
	Version   string `json:"version"`
	Revision  string `json:"revision,omitempty"`
	GoVersion string `json:"go_version,omitempty"`
	Dirty     bool   `json:"dirty,omitempty"`
}

// Current returns the best available version string (without dirty suffix).
func Current() string {
	return currentFromBuildInfo(false)
}

// CurrentWithDirty returns the best available version string (including dirty suffix when available).
func CurrentWithDirty() string {
	return currentFromBuildInfo(true)
}

// Module returns the module path from build info when available.
func Module() string {
	info, ok := debug.ReadBuildInfo()
	if ok {
		if path := strings.TrimSpace(info.Main.Path); path != "" {
			return path
		}
	}
	return defaultModule
}

// Get collects version details for display.
func Get() Info {
	out := Info{Module: Module(), Version: Current()}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return out
	}
	out.GoVersion = info.GoVersion
	settings := vcsSettings(info)
	out.Revision = settings.revision
	out.Dirty = settings.modified
	return out
}

// UserAgent returns the default API user agent for this build.
func UserAgent() string {
	return "wayfare/" + Current()
}

type vcs struct {
	revision string
	time     string
	modified bool
}

func vcsSettings(info *debug.BuildInfo) vcs {
	var out vcs
	if info == nil {
		return out
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			out.revision = setting.Value
		case "vcs.time":
			out.time = setting.Value
		case "vcs.modified":
			out.modified = setting.Value == "true"
		}
	}
	return out
}

func currentFromBuildInfo(includeDirty bool) string {
	if strings.TrimSpace(buildVersion) != "" {
		return normalizeVersion(buildVersion, includeDirty)
	}
	info, ok := debug.ReadBuildInfo()
	if ok {
		if v := strings.TrimSpace(info.Main.Version); v != "" && v != "(devel)" {
			return normalizeVersion(v, includeDirty)
		}
		if v := pseudoFromBuildInfo(info); v != "" {
			return normalizeVersion(v, includeDirty)
		}
	}
	return "v0.0.0-unknown"
}

func normalizeVersion(v string, includeDirty bool) string {
	value := strings.TrimSpace(v)
	if includeDirty {
		return value
	}
	return strings.TrimSuffix(value, "+dirty")
}

// pseudoFromBuildInfo derives a pseudo version from VCS stamps. The dirty
// suffix is always attached; callers strip it with normalizeVersion.
func pseudoFromBuildInfo(info *debug.BuildInfo) string {
	settings := vcsSettings(info)
	if settings.revision == "" || settings.time == "" {
		return ""
	}
	parsed, err := time.Parse(time.RFC3339, settings.time)
	if err != nil {
		return ""
	}
	rev := settings.revision
	if len(rev) > 12 {
		rev = rev[:12]
	}
	ver := "v0.0.0-" + parsed.UTC().Format("20060102150405") + "-" + rev
	if settings.modified {
		ver += "+dirty"
	}
	return ver
}
