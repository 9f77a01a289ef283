package build

// ErrUnresolvedPackage is returned when a name can't be found as an
// aport or in any binary index.
type ErrUnresolvedPackage struct {
	Pkgname string
}

func (e ErrUnresolvedPackage) Error() string {
	return e.Pkgname + ": could not find aport, and could not find this package in any APKINDEX"
}

// ErrUnbuildableArch is returned when an aport can't target the
// requested architecture and no binary fallback exists.
type ErrUnbuildableArch struct {
	Pkgname string
	Arch    string
}

func (e ErrUnbuildableArch) Error() string {
	return "can't build '" + e.Pkgname + "' for architecture " + e.Arch
}

// ErrMissingDependencyBinary is returned in no-depends mode when a
// dependency has no binary package at all.
type ErrMissingDependencyBinary struct {
	Dependency string
	Parent     string
}

func (e ErrMissingDependencyBinary) Error() string {
	return "missing binary package for dependency '" + e.Dependency + "' of '" + e.Parent +
		"', and no dependencies will be built in no-depends mode"
}

// ErrOutdatedDependencyBinary is returned in no-depends mode when a
// dependency's binary package is older than its source definition.
type ErrOutdatedDependencyBinary struct {
	Dependency string
	Parent     string
}

func (e ErrOutdatedDependencyBinary) Error() string {
	return "binary package for dependency '" + e.Dependency + "' of '" + e.Parent +
		"' is outdated, and no dependencies will be built in no-depends mode"
}

// ErrMultiPackageSourceOverride is returned when a local source
// override is combined with more than one package to build.
type ErrMultiPackageSourceOverride struct{}

func (e ErrMultiPackageSourceOverride) Error() string {
	return "can't build multiple packages with a local source override"
}

// ErrStrictToolchain is returned in strict mode when one of the
// always-needed toolchain packages is itself out of date.
type ErrStrictToolchain struct {
	Pkgname string
}

func (e ErrStrictToolchain) Error() string {
	return "strict mode enabled and build package " + e.Pkgname +
		" needs building, build it manually first"
}

// ErrBuildFailed wraps an external builder failure with the artifact
// that was expected from it.
type ErrBuildFailed struct {
	Output string
	Err    error
}

func (e ErrBuildFailed) Error() string {
	return "couldn't build " + e.Output + ": " + e.Err.Error()
}

func (e ErrBuildFailed) Unwrap() error {
	return e.Err
}
