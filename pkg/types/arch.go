package types

import (
	"runtime"
)

// goarchMap translates Go's architecture names into the names used by
// apk and the binary repos.
var goarchMap = map[string]string{
	"386":     "x86",
	"amd64":   "x86_64",
	"arm":     "armv7",
	"arm64":   "aarch64",
	"riscv64": "riscv64",
}

// ArchNative returns the apk architecture string of the machine
// running the orchestrator.
func ArchNative() string {
	if a, ok := goarchMap[runtime.GOARCH]; ok {
		return a
	}
	return runtime.GOARCH
}

// CheckArches checks whether building for arch is allowed by an
// APKBUILD arch list.  The list may contain "all", "noarch", concrete
// arches, and negated entries such as "!armhf" which always win.
func CheckArches(arches []string, arch string) bool {
	for _, a := range arches {
		if a == "!"+arch {
			return false
		}
	}
	for _, a := range arches {
		switch a {
		case arch, "all", "noarch":
			return true
		}
	}
	return false
}
