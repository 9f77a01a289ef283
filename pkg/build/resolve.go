package build

import (
	"github.com/the-maldridge/pbuild/pkg/types"
)

// resolutionKind discriminates the three ways a package name can
// resolve.
type resolutionKind int

const (
	// resolutionFound means an aport carries the name and can be
	// built locally.
	resolutionFound resolutionKind = iota

	// resolutionSatisfiedExternally means no aport exists but a
	// binary repo provides the name, so there is nothing to build.
	resolutionSatisfiedExternally

	// resolutionNotFound means the name is unknown everywhere.
	resolutionNotFound
)

// A resolution is the tagged result of a package name lookup.
type resolution struct {
	kind resolutionKind
	def  *types.PackageDefinition
	repo string
}

// resolve looks a package name up in the source tree first and falls
// back to the binary indexes of fallbackArch.
func (o *Orchestrator) resolve(pkgname, fallbackArch string) resolution {
	clean := types.RemoveOperators(pkgname)

	if def := o.src.Get(clean); def != nil {
		return resolution{
			kind: resolutionFound,
			def:  def,
			repo: o.src.Repo(clean),
		}
	}
	if len(o.idx.Providers(clean, fallbackArch)) > 0 {
		return resolution{kind: resolutionSatisfiedExternally}
	}
	return resolution{kind: resolutionNotFound}
}
