package buildversion

import "runtime/debug"

// GetVersion returns the version of modulePath linked into the running
// binary, or "unknown" when no build info is available (tests, go run).
func GetVersion(modulePath string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}

	if info.Main.Path == modulePath {
		return versionOrUnknown(info.Main.Version)
	}

	for _, dep := range info.Deps {
		if dep.Path != modulePath {
			continue
		}
		if dep.Replace != nil {
			return versionOrUnknown(dep.Replace.Version)
		}
		return versionOrUnknown(dep.Version)
	}

	return "unknown"
}

func versionOrUnknown(v string) string {
	if v == "" || v == "(devel)" {
		return "unknown"
	}
	return v
}
