package types

// A Subpackage is a secondary installable package produced from the
// same build as its parent.  It carries its own depends and provides
// lists, which matter when the subpackage shows up as a dependency of
// something else.
type Subpackage struct {
	Name     string
	Depends  []string
	Provides []string
}

// A PackageDefinition is the parsed build metadata for one aport as
// read from its APKBUILD.  It is owned by the source tree and must be
// treated as read-only by everything downstream of the parser.
type PackageDefinition struct {
	Pkgname      string
	Pkgver       string
	Pkgrel       string
	Arch         []string
	Depends      []string
	MakeDepends  []string
	CheckDepends []string
	Options      []string
	Provides     []string
	Subpackages  map[string]*Subpackage
}

// Version returns the full source version in the form the binary
// repos publish it, e.g. "1.2.3-r4".
func (p *PackageDefinition) Version() string {
	return p.Pkgver + "-r" + p.Pkgrel
}

// HasOption checks for an options flag such as "!check" or
// "pmb:strict".
func (p *PackageDefinition) HasOption(opt string) bool {
	for _, o := range p.Options {
		if o == opt {
			return true
		}
	}
	return false
}

// SelfNames returns every name this aport can satisfy: the pkgname,
// its provides, and the names and provides of its subpackages.  A
// package listing any of these in its own depends must not recurse
// into itself.
func (p *PackageDefinition) SelfNames() []string {
	names := []string{p.Pkgname}
	for _, prov := range p.Provides {
		names = append(names, RemoveOperators(prov))
	}
	for name, sub := range p.Subpackages {
		names = append(names, name)
		for _, prov := range sub.Provides {
			names = append(names, RemoveOperators(prov))
		}
	}
	return names
}
