package build

import (
	"sort"
	"strings"
	"time"

	"github.com/the-maldridge/pbuild/pkg/types"
)

// a walk carries the state of one top level Packages invocation.
type walk struct {
	o         *Orchestrator
	opts      Opts
	queue     *Queue
	requested map[string]bool
	fallback  string

	// allDeps records every dependency seen during the walk, so the
	// executor can special-case toolchain helpers (e.g. sccache for
	// rust).
	allDeps []string
}

// Packages expands the requested package names into a build queue and
// drives the external builder through it.  It returns the subset of
// the requested names that actually got (re)built; an empty list
// means everything was already current.
func (o *Orchestrator) Packages(pkgnames []string, opts Opts) ([]string, error) {
	// Decisions must never leak into an unrelated later invocation.
	defer o.session.Reset()

	w, err := o.plan(pkgnames, opts)
	if err != nil {
		return nil, err
	}
	if w == nil || w.queue.Len() == 0 {
		return []string{}, nil
	}

	o.l.Info("Building packages", "count", w.queue.Len())
	for _, item := range w.queue.Items() {
		o.l.Info("Queued for build", "channel", item.Channel, "package", item.Name)
	}

	return o.executeQueue(w.queue, w.allDeps, opts)
}

// Plan computes the finalized build queue for the request without
// executing any of it.
func (o *Orchestrator) Plan(pkgnames []string, opts Opts) ([]*QueueItem, error) {
	defer o.session.Reset()

	w, err := o.plan(pkgnames, opts)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return []*QueueItem{}, nil
	}
	return w.queue.Items(), nil
}

func (o *Orchestrator) plan(pkgnames []string, opts Opts) (*walk, error) {
	if len(pkgnames) == 0 {
		return nil, nil
	}
	if opts.SrcOverride != "" && len(pkgnames) > 1 {
		return nil, ErrMultiPackageSourceOverride{}
	}

	w := walk{
		o:         o,
		opts:      opts,
		queue:     newQueue(),
		requested: make(map[string]bool, len(pkgnames)),
	}
	for _, name := range pkgnames {
		w.requested[name] = true
	}

	w.fallback = opts.Arch
	if w.fallback == "" {
		w.fallback = types.ArchNative()
		if def := o.src.Get(types.RemoveOperators(pkgnames[0])); def != nil {
			w.fallback = o.autodetectArch(def)
		}
	}
	if err := o.idx.Update(w.fallback); err != nil {
		o.l.Warn("Error updating indexes", "arch", w.fallback, "error", err)
	}

	o.l.Debug("Attempting to build", "packages", strings.Join(pkgnames, ", "))

	// The queue is pushed root-first and reversed once at the end, so
	// the requests are walked back to front to land in the final
	// queue in the order they were given.
	names := make([]string, len(pkgnames))
	copy(names, pkgnames)
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	for _, name := range names {
		if err := w.processPackage(name); err != nil {
			return nil, err
		}
	}

	if err := w.queueToolchain(); err != nil {
		return nil, err
	}

	w.queue.Finalize()

	if opts.SrcOverride != "" && w.queue.Len() > 1 {
		return nil, ErrMultiPackageSourceOverride{}
	}

	return &w, nil
}

// processPackage decides one requested package and everything
// reachable through its dependency graph.
func (w *walk) processPackage(pkgname string) error {
	o := w.o

	res := o.resolve(pkgname, w.fallback)
	switch res.kind {
	case resolutionNotFound:
		return ErrUnresolvedPackage{Pkgname: pkgname}
	case resolutionSatisfiedExternally:
		// Nothing to build, a binary repo carries it.
		return nil
	}
	def := res.def

	arch := w.opts.Arch
	if arch == "" {
		arch = o.autodetectArch(def)
	}

	if o.session.IsDecidedOrMark(arch, pkgname) && !w.opts.Force {
		o.l.Trace("Skipping, already decided this session", "arch", arch, "package", pkgname)
		return nil
	}

	o.l.Debug("Generating dependency tree", "arch", arch, "package", pkgname)
	baseDepends := o.dependsFor(def, w.opts)

	baseStatus := o.status(arch, def, w.opts.Force)
	if baseStatus.Necessary() {
		buildable, err := w.checkBuildForArch(def, arch)
		if err != nil {
			return err
		}
		if !buildable {
			// An upstream binary stands in for this arch.
			baseStatus = StatusUnnecessary
		}
	}

	if baseStatus.Necessary() {
		w.queueBuild(res, def, arch, baseDepends)
	}

	// Subpackage depends aren't needed to build the parent, but they
	// must still be satisfiable when the subpackage shows up as a
	// dependency somewhere else.
	work := newWorklist(baseDepends...)
	work.PushBack(subpackageDepends(def)...)

	parent := pkgname
	for {
		dep, ok := work.Pop()
		if !ok {
			break
		}
		clean := types.RemoveOperators(dep)
		if o.session.IsDecidedOrMark(arch, clean) {
			continue
		}

		depRes := o.resolve(clean, w.fallback)
		switch depRes.kind {
		case resolutionFound:
		case resolutionSatisfiedExternally, resolutionNotFound:
			// No aport for it; the binary repos have to carry it.
			continue
		}
		depDef := depRes.def
		w.allDeps = append(w.allDeps, clean)

		if w.opts.NoDepends {
			if err := w.checkDependencyBinary(depDef, clean, parent, arch); err != nil {
				return err
			}
		}

		st := o.Status(arch, depDef)
		if !st.Necessary() {
			continue
		}
		if w.opts.NoDepends {
			return ErrOutdatedDependencyBinary{Dependency: clean, Parent: parent}
		}

		deps := o.dependsFor(depDef, w.opts)
		// Second order dependencies aren't rebuilt just for being
		// stale, only when brand new or when the root builds anyway.
		if baseStatus.Necessary() || st == StatusNew {
			o.l.Debug("Queueing dependency for build",
				"arch", arch, "dependency", clean, "parent", parent, "reason", st.String())
			w.queueBuild(depRes, depDef, arch, deps)
		} else {
			o.l.Info("SKIP: not building dependency of a package that isn't marked for build",
				"arch", arch, "dependency", clean, "package", pkgname)
		}

		splice := append(subpackageDepends(depDef), deps...)
		o.l.Trace("Splicing dependencies", "arch", arch, "package", clean, "count", len(splice))
		work.PushFront(splice...)
		parent = clean
	}
	return nil
}

// queueToolchain makes sure the always-needed toolchain packages (the
// builder itself, compiler, cache tool, VCS client) are current
// before anything uses them.  They are pushed last so the final
// reversal puts them at the very front of the queue.  Skipped under a
// source override.
func (w *walk) queueToolchain() error {
	if w.opts.SrcOverride != "" {
		return nil
	}
	o := w.o
	for _, name := range o.buildPackages {
		if w.requested[name] {
			continue
		}
		res := o.resolve(name, w.fallback)
		if res.kind != resolutionFound {
			continue
		}
		arch := w.opts.Arch
		if arch == "" {
			arch = o.autodetectArch(res.def)
		}
		if !o.Status(arch, res.def).Necessary() {
			continue
		}
		if w.opts.Strict {
			return ErrStrictToolchain{Pkgname: name}
		}
		o.l.Debug("Toolchain package needs building", "package", name, "arch", arch)
		w.queueBuild(res, res.def, arch, o.dependsFor(res.def, w.opts))
	}
	return nil
}

// checkBuildForArch verifies def can be built for arch, or that an
// upstream binary can stand in.  The binary fallback case returns
// false without an error.
func (w *walk) checkBuildForArch(def *types.PackageDefinition, arch string) (bool, error) {
	o := w.o
	if o.src.SupportsArch(def.Pkgname, arch) {
		return true, nil
	}
	if bin := o.idx.Package(def.Pkgname, arch); bin != nil {
		o.l.Debug("Aport can't be built for arch, using binary package",
			"package", def.Pkgname, "arch", arch,
			"source", def.Version(), "binary", bin.Version)
		return false, nil
	}
	return false, ErrUnbuildableArch{Pkgname: def.Pkgname, Arch: arch}
}

// checkDependencyBinary enforces no-depends mode: the dependency must
// already exist as a binary for the arch it would be installed into.
func (w *walk) checkDependencyBinary(def *types.PackageDefinition, dep, parent, arch string) error {
	o := w.o
	depArch := arch
	if o.crossMode(def, arch, o.chrootFor(def, arch)) == types.CrossNative {
		depArch = types.ArchNative()
	}
	if err := o.idx.Update(depArch); err != nil {
		o.l.Warn("Error updating indexes", "arch", depArch, "error", err)
	}
	if o.idx.Package(dep, depArch) == nil {
		return ErrMissingDependencyBinary{Dependency: dep, Parent: parent}
	}
	return nil
}

// queueBuild creates the queue item for def unless one is already
// present under the same name.
func (w *walk) queueBuild(res resolution, def *types.PackageDefinition, arch string, depends []string) {
	o := w.o
	if w.queue.Contains(def.Pkgname) {
		return
	}

	pkgArch := arch
	if w.opts.Arch == "" {
		pkgArch = o.autodetectArch(def)
	}
	chroot := o.chrootFor(def, pkgArch)
	cross := o.crossMode(def, pkgArch, chroot)
	pkgver := computedPkgver(def.Pkgver, w.opts.SrcOverride == "", time.Now())

	item := QueueItem{
		Name:       def.Pkgname,
		Arch:       pkgArch,
		Aports:     res.repo,
		Definition: def,
		Pkgver:     pkgver,
		OutputPath: outputPath(pkgArch, def.Pkgname, pkgver, def.Pkgrel),
		Channel:    o.src.Channel(),
		Depends:    depends,
		Cross:      cross,
		Chroot:     chroot,
	}
	if w.requested[def.Pkgname] {
		item.Satisfies = []string{def.Pkgname}
	}
	w.queue.Push(&item)
}

// subpackageDepends flattens the subpackage dependency lists in a
// deterministic order.
func subpackageDepends(def *types.PackageDefinition) []string {
	if len(def.Subpackages) == 0 {
		return nil
	}
	names := make([]string, 0, len(def.Subpackages))
	for name := range def.Subpackages {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []string
	for _, name := range names {
		out = append(out, def.Subpackages[name].Depends...)
	}
	return out
}
