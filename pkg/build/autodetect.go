package build

import (
	"path"
	"sort"
	"strings"
	"time"

	"github.com/the-maldridge/pbuild/pkg/types"
)

// autodetectArch finds a good default when the caller did not pin an
// architecture.  Preference order, depending on what the APKBUILD
// supports: native arch, then the device arch, then the first arch
// literally listed.  The order of the first two flips when the device
// arch is preferred, and device packages are pinned to the hardware
// they describe.
func (o *Orchestrator) autodetectArch(def *types.PackageDefinition) string {
	if da := o.src.DeviceArch(def.Pkgname); da != "" {
		o.l.Trace("Arch from deviceinfo", "package", def.Pkgname, "arch", da)
		return da
	}

	preferred, second := types.ArchNative(), o.deviceArch
	if o.preferDeviceArch && o.deviceArch != "" {
		preferred, second = o.deviceArch, types.ArchNative()
	}

	if types.CheckArches(def.Arch, preferred) {
		return preferred
	}
	if second != "" && types.CheckArches(def.Arch, second) {
		return second
	}
	for _, a := range def.Arch {
		if !strings.HasPrefix(a, "!") {
			return a
		}
	}
	return preferred
}

// chrootFor picks the build environment: native builds and packages
// opting into cross-native compilation run in the native chroot,
// everything else gets the buildroot of its arch.
func (o *Orchestrator) chrootFor(def *types.PackageDefinition, arch string) types.Chroot {
	if arch == types.ArchNative() {
		return types.NativeChroot()
	}
	if def.HasOption("pmb:cross-native") {
		return types.NativeChroot()
	}
	return types.BuildrootChroot(arch)
}

// crossMode picks how a foreign arch package gets compiled.
func (o *Orchestrator) crossMode(def *types.PackageDefinition, arch string, chroot types.Chroot) types.CrossMode {
	if arch == types.ArchNative() {
		return types.CrossNone
	}
	if chroot.Type == types.ChrootNative {
		return types.CrossNative
	}
	if def.HasOption("!pmb:crossdirect") {
		return types.CrossNone
	}
	return types.CrossDirect
}

// dependsFor computes the effective dependency list to satisfy before
// building def: makedepends, plus checkdepends unless checks are
// disabled, plus depends unless the invocation ignores them.  The
// result is deduplicated, sorted for determinism, and stripped of
// self references, conflicts and virtual markers.
func (o *Orchestrator) dependsFor(def *types.PackageDefinition, opts Opts) []string {
	set := make(map[string]struct{})
	for _, d := range def.MakeDepends {
		set[d] = struct{}{}
	}
	if !def.HasOption("!check") {
		for _, d := range def.CheckDepends {
			set[d] = struct{}{}
		}
	}
	if !opts.IgnoreDepends {
		for _, d := range def.Depends {
			set[d] = struct{}{}
		}
	}

	self := make(map[string]struct{})
	for _, name := range def.SelfNames() {
		self[name] = struct{}{}
	}

	out := make([]string, 0, len(set))
	for d := range set {
		if types.IsConflict(d) || types.IsMeta(d) {
			continue
		}
		if _, ok := self[types.RemoveOperators(d)]; ok {
			o.l.Trace("Ignoring dependency on itself", "package", def.Pkgname, "dependency", d)
			continue
		}
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// computedPkgver returns the version to build under.  Source override
// builds get a date suffix so they always sort newer than the pinned
// source; an existing suffix (e.g. _git20210203) gets replaced.
func computedPkgver(original string, originalSource bool, now time.Time) string {
	if originalSource {
		return original
	}
	noSuffix := strings.SplitN(original, "_", 2)[0]
	return noSuffix + "_p" + now.Format("20060102150405")
}

// outputPath is the artifact location relative to the channel's
// package directory.
func outputPath(arch, pkgname, pkgver, pkgrel string) string {
	return path.Join(arch, pkgname+"-"+pkgver+"-r"+pkgrel+".apk")
}
