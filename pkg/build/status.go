package build

import (
	"github.com/the-maldridge/pbuild/pkg/types"
	"github.com/the-maldridge/pbuild/pkg/version"
)

// BuildStatus is the necessity state of one package.
type BuildStatus int

// The necessity states.  Unnecessary means the published binary is
// current, Necessary means it exists but is older than the source,
// New means no binary exists at all.
const (
	StatusUnnecessary BuildStatus = iota
	StatusNecessary
	StatusNew
)

// Necessary reports whether this state requires a build.
func (b BuildStatus) Necessary() bool {
	return b == StatusNecessary || b == StatusNew
}

func (b BuildStatus) String() string {
	switch b {
	case StatusNew:
		return "new"
	case StatusNecessary:
		return "necessary"
	default:
		return "unnecessary"
	}
}

// Status decides whether the binary artifact for def on arch is
// missing or stale relative to the source definition.  A binary that
// is newer than the source is worth a warning: the checked out tree
// is behind what was already published.
func (o *Orchestrator) Status(arch string, def *types.PackageDefinition) BuildStatus {
	bin := o.idx.Package(def.Pkgname, arch)
	if bin == nil {
		return StatusNew
	}

	src := def.Version()
	switch version.Compare(src, bin.Version) {
	case version.Greater:
		return StatusNecessary
	case version.Less:
		o.l.Warn("Binary package is newer than the checked out source",
			"package", def.Pkgname, "arch", arch,
			"source", src, "binary", bin.Version)
	}
	return StatusUnnecessary
}

// status applies the force flag on top of Status.  The comparison
// still runs so its stale-source warning is not lost.
func (o *Orchestrator) status(arch string, def *types.PackageDefinition, force bool) BuildStatus {
	st := o.Status(arch, def)
	if force && !st.Necessary() {
		st = StatusNecessary
	}
	return st
}
