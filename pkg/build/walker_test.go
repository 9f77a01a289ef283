package build

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/the-maldridge/pbuild/pkg/index"
	"github.com/the-maldridge/pbuild/pkg/types"
)

type fakeSource struct {
	defs   map[string]*types.PackageDefinition
	device map[string]string
}

func (f *fakeSource) Get(pkgname string) *types.PackageDefinition { return f.defs[pkgname] }

func (f *fakeSource) Repo(pkgname string) string { return "main" }

func (f *fakeSource) SupportsArch(pkgname, arch string) bool {
	def := f.defs[pkgname]
	if def == nil {
		return false
	}
	return types.CheckArches(def.Arch, arch)
}

func (f *fakeSource) Channel() string { return "edge" }

func (f *fakeSource) DeviceArch(pkgname string) string { return f.device[pkgname] }

type fakeIndex struct {
	pkgs        map[string]map[string]*index.Package
	invalidated []string
}

func (f *fakeIndex) Update(arch string) error { return nil }

func (f *fakeIndex) Package(name, arch string) *index.Package {
	return f.pkgs[arch][name]
}

func (f *fakeIndex) Providers(name, arch string) []*index.Package {
	if p := f.pkgs[arch][name]; p != nil {
		return []*index.Package{p}
	}
	return nil
}

func (f *fakeIndex) Invalidate(arch string) {
	f.invalidated = append(f.invalidated, arch)
}

type fakeBackend struct {
	workDir string

	built     []string
	items     []*QueueItem
	installed [][]string
	initCount map[string]int
	undeps    int
	failOn    string
}

func (f *fakeBackend) InitBuildEnv(c types.Chroot) (bool, error) {
	f.initCount[c.String()]++
	return f.initCount[c.String()] == 1, nil
}

func (f *fakeBackend) InstallPackages(pkgs []string, c types.Chroot) error {
	f.installed = append(f.installed, pkgs)
	return nil
}

func (f *fakeBackend) UninstallBuildDeps(c types.Chroot) error {
	f.undeps++
	return nil
}

func (f *fakeBackend) InitCompiler(c types.Chroot, cross types.CrossMode, arch string, deps []string) error {
	return nil
}

func (f *fakeBackend) MountNativeIntoForeign(c types.Chroot) error { return nil }

func (f *fakeBackend) RunBuilder(item *QueueItem, opts Opts) error {
	if item.Name == f.failOn {
		return errors.New("builder exited 1")
	}
	f.built = append(f.built, item.Name)
	f.items = append(f.items, item)

	out := filepath.Join(f.workDir, "packages", item.Channel, item.OutputPath)
	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return err
	}
	return os.WriteFile(out, []byte("apk"), 0644)
}

func mkdef(name, pkgver string, makedepends ...string) *types.PackageDefinition {
	return &types.PackageDefinition{
		Pkgname:     name,
		Pkgver:      pkgver,
		Pkgrel:      "0",
		Arch:        []string{"all"},
		MakeDepends: makedepends,
	}
}

func mkbin(name, version, arch string) *index.Package {
	return &index.Package{Pkgname: name, Version: version, Arch: arch}
}

func newTestOrchestrator(t *testing.T, src *fakeSource, idx *fakeIndex) (*Orchestrator, *fakeBackend) {
	t.Helper()
	dir := t.TempDir()
	be := &fakeBackend{workDir: dir, initCount: make(map[string]int)}
	o := New(
		WithSourceProvider(src),
		WithBinaryIndex(idx),
		WithBackend(be),
		WithWorkDir(dir),
	)
	return o, be
}

func TestPackagesEmptyRequest(t *testing.T) {
	o, be := newTestOrchestrator(t, &fakeSource{}, &fakeIndex{})
	built, err := o.Packages(nil, Opts{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(built) != 0 || len(be.built) != 0 {
		t.Errorf("nothing should be built, got %v", be.built)
	}
}

func TestPackagesUnresolved(t *testing.T) {
	arch := types.ArchNative()
	o, _ := newTestOrchestrator(t, &fakeSource{}, &fakeIndex{})

	_, err := o.Packages([]string{"no-such-package"}, Opts{Arch: arch})
	var ure ErrUnresolvedPackage
	if !errors.As(err, &ure) {
		t.Fatalf("want ErrUnresolvedPackage, got %v", err)
	}
	if ure.Pkgname != "no-such-package" {
		t.Errorf("error names wrong package: %s", ure.Pkgname)
	}
}

func TestPackagesAllCurrent(t *testing.T) {
	arch := types.ArchNative()
	src := &fakeSource{defs: map[string]*types.PackageDefinition{
		"hello-world": mkdef("hello-world", "1.0"),
	}}
	idx := &fakeIndex{pkgs: map[string]map[string]*index.Package{
		arch: {"hello-world": mkbin("hello-world", "1.0-r0", arch)},
	}}
	o, be := newTestOrchestrator(t, src, idx)

	built, err := o.Packages([]string{"hello-world"}, Opts{Arch: arch})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(built) != 0 || len(be.built) != 0 {
		t.Errorf("current package must not rebuild, got %v", be.built)
	}
}

func TestPackagesForce(t *testing.T) {
	arch := types.ArchNative()
	src := &fakeSource{defs: map[string]*types.PackageDefinition{
		"hello-world": mkdef("hello-world", "1.0"),
	}}
	idx := &fakeIndex{pkgs: map[string]map[string]*index.Package{
		arch: {"hello-world": mkbin("hello-world", "1.0-r0", arch)},
	}}
	o, be := newTestOrchestrator(t, src, idx)

	built, err := o.Packages([]string{"hello-world"}, Opts{Arch: arch, Force: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(built) != 1 || built[0] != "hello-world" {
		t.Errorf("forced build not reported: %v", built)
	}
	if len(be.built) != 1 {
		t.Errorf("forced build did not run: %v", be.built)
	}
	if len(idx.invalidated) != 1 || idx.invalidated[0] != arch {
		t.Errorf("index not invalidated after build: %v", idx.invalidated)
	}
}

func TestPackagesNewDependencyOrder(t *testing.T) {
	arch := types.ArchNative()
	src := &fakeSource{defs: map[string]*types.PackageDefinition{
		"app-a": mkdef("app-a", "1.0", "lib-b"),
		"lib-b": mkdef("lib-b", "1.0"),
	}}
	o, be := newTestOrchestrator(t, src, &fakeIndex{})

	built, err := o.Packages([]string{"app-a"}, Opts{Arch: arch})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"lib-b", "app-a"}
	if len(be.built) != 2 || be.built[0] != want[0] || be.built[1] != want[1] {
		t.Errorf("build order wrong: got %v, want %v", be.built, want)
	}
	if len(built) != 1 || built[0] != "app-a" {
		t.Errorf("only the requested name is reported: %v", built)
	}
}

func TestPlanDoesNotBuild(t *testing.T) {
	arch := types.ArchNative()
	src := &fakeSource{defs: map[string]*types.PackageDefinition{
		"app-a": mkdef("app-a", "1.0", "lib-b"),
		"lib-b": mkdef("lib-b", "1.0"),
	}}
	o, be := newTestOrchestrator(t, src, &fakeIndex{})

	items, err := o.Plan([]string{"app-a"}, Opts{Arch: arch})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 || items[0].Name != "lib-b" || items[1].Name != "app-a" {
		t.Errorf("plan order wrong: %v", items)
	}
	if len(be.built) != 0 {
		t.Errorf("planning must not build anything, got %v", be.built)
	}
}

func TestPackagesSkipsStaleDependency(t *testing.T) {
	// A stale (but existing) dependency of a package that isn't
	// itself going to build stays as it is.
	arch := types.ArchNative()
	src := &fakeSource{defs: map[string]*types.PackageDefinition{
		"app-a": mkdef("app-a", "1.0", "lib-b"),
		"lib-b": mkdef("lib-b", "2.0"),
	}}
	idx := &fakeIndex{pkgs: map[string]map[string]*index.Package{
		arch: {
			"app-a": mkbin("app-a", "1.0-r0", arch),
			"lib-b": mkbin("lib-b", "1.0-r0", arch),
		},
	}}
	o, be := newTestOrchestrator(t, src, idx)

	built, err := o.Packages([]string{"app-a"}, Opts{Arch: arch})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(built) != 0 || len(be.built) != 0 {
		t.Errorf("stale dependency of a current package must be skipped, got %v", be.built)
	}
}

func TestPackagesBuildsNewDependencyOfCurrentRoot(t *testing.T) {
	// A brand new dependency builds even when the requester doesn't.
	arch := types.ArchNative()
	src := &fakeSource{defs: map[string]*types.PackageDefinition{
		"app-a": mkdef("app-a", "1.0", "lib-b"),
		"lib-b": mkdef("lib-b", "1.0"),
	}}
	idx := &fakeIndex{pkgs: map[string]map[string]*index.Package{
		arch: {"app-a": mkbin("app-a", "1.0-r0", arch)},
	}}
	o, be := newTestOrchestrator(t, src, idx)

	built, err := o.Packages([]string{"app-a"}, Opts{Arch: arch})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(be.built) != 1 || be.built[0] != "lib-b" {
		t.Errorf("new dependency must build: %v", be.built)
	}
	if len(built) != 0 {
		t.Errorf("app-a wasn't rebuilt and must not be reported: %v", built)
	}
}

func TestPackagesCycleSafety(t *testing.T) {
	arch := types.ArchNative()
	src := &fakeSource{defs: map[string]*types.PackageDefinition{
		"cycle-a": mkdef("cycle-a", "1.0", "cycle-b"),
		"cycle-b": mkdef("cycle-b", "1.0", "cycle-a"),
	}}
	o, be := newTestOrchestrator(t, src, &fakeIndex{})

	if _, err := o.Packages([]string{"cycle-a"}, Opts{Arch: arch}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(be.built) != 2 {
		t.Errorf("each package in the cycle builds exactly once: %v", be.built)
	}
	seen := make(map[string]int)
	for _, name := range be.built {
		seen[name]++
	}
	if seen["cycle-a"] != 1 || seen["cycle-b"] != 1 {
		t.Errorf("duplicate builds in cycle: %v", be.built)
	}
}

func TestPackagesSharedDependency(t *testing.T) {
	arch := types.ArchNative()
	src := &fakeSource{defs: map[string]*types.PackageDefinition{
		"app-a": mkdef("app-a", "1.0", "lib-c"),
		"app-b": mkdef("app-b", "1.0", "lib-c"),
		"lib-c": mkdef("lib-c", "1.0"),
	}}
	o, be := newTestOrchestrator(t, src, &fakeIndex{})

	built, err := o.Packages([]string{"app-a", "app-b"}, Opts{Arch: arch})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pos := make(map[string]int)
	for i, name := range be.built {
		if _, ok := pos[name]; ok {
			t.Fatalf("%s built more than once: %v", name, be.built)
		}
		pos[name] = i
	}
	if len(pos) != 3 {
		t.Fatalf("want 3 builds, got %v", be.built)
	}
	if pos["lib-c"] > pos["app-a"] || pos["lib-c"] > pos["app-b"] {
		t.Errorf("shared dependency must build before both dependents: %v", be.built)
	}
	if len(built) != 2 {
		t.Errorf("both requested names must be reported: %v", built)
	}
}

func TestPackagesSelfDependencyFiltered(t *testing.T) {
	arch := types.ArchNative()
	def := mkdef("ncurses", "1.0", "ncurses", "ncurses-dev>=1.0")
	def.Subpackages = map[string]*types.Subpackage{
		"ncurses-dev": {Name: "ncurses-dev"},
	}
	src := &fakeSource{defs: map[string]*types.PackageDefinition{"ncurses": def}}
	o, be := newTestOrchestrator(t, src, &fakeIndex{})

	if _, err := o.Packages([]string{"ncurses"}, Opts{Arch: arch}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(be.items) != 1 {
		t.Fatalf("want one build, got %v", be.built)
	}
	if len(be.items[0].Depends) != 0 {
		t.Errorf("self references must be filtered from depends: %v", be.items[0].Depends)
	}
}

func TestPackagesNoDependsMissingBinary(t *testing.T) {
	arch := types.ArchNative()
	src := &fakeSource{defs: map[string]*types.PackageDefinition{
		"app-a": mkdef("app-a", "2.0", "lib-b"),
		"lib-b": mkdef("lib-b", "1.0"),
	}}
	idx := &fakeIndex{pkgs: map[string]map[string]*index.Package{
		arch: {"app-a": mkbin("app-a", "1.0-r0", arch)},
	}}
	o, be := newTestOrchestrator(t, src, idx)

	_, err := o.Packages([]string{"app-a"}, Opts{Arch: arch, NoDepends: true})
	var mde ErrMissingDependencyBinary
	if !errors.As(err, &mde) {
		t.Fatalf("want ErrMissingDependencyBinary, got %v", err)
	}
	if mde.Dependency != "lib-b" || mde.Parent != "app-a" {
		t.Errorf("error context wrong: %+v", mde)
	}
	if len(be.built) != 0 {
		t.Errorf("no build may start before the walk fails: %v", be.built)
	}
}

func TestPackagesNoDependsOutdatedBinary(t *testing.T) {
	arch := types.ArchNative()
	src := &fakeSource{defs: map[string]*types.PackageDefinition{
		"app-a": mkdef("app-a", "2.0", "lib-b"),
		"lib-b": mkdef("lib-b", "2.0"),
	}}
	idx := &fakeIndex{pkgs: map[string]map[string]*index.Package{
		arch: {
			"app-a": mkbin("app-a", "1.0-r0", arch),
			"lib-b": mkbin("lib-b", "1.0-r0", arch),
		},
	}}
	o, _ := newTestOrchestrator(t, src, idx)

	_, err := o.Packages([]string{"app-a"}, Opts{Arch: arch, NoDepends: true})
	var ode ErrOutdatedDependencyBinary
	if !errors.As(err, &ode) {
		t.Fatalf("want ErrOutdatedDependencyBinary, got %v", err)
	}
}

func TestPackagesNoDependsSubpackageBinary(t *testing.T) {
	// A dependency on a subpackage resolves to the parent aport, but
	// the binary that must exist is the subpackage's own.
	arch := types.ArchNative()
	ncurses := mkdef("ncurses", "1.0")
	src := &fakeSource{defs: map[string]*types.PackageDefinition{
		"app-a":       mkdef("app-a", "2.0", "ncurses-dev"),
		"ncurses-dev": ncurses,
	}}
	idx := &fakeIndex{pkgs: map[string]map[string]*index.Package{
		arch: {"ncurses": mkbin("ncurses", "1.0-r0", arch)},
	}}
	o, _ := newTestOrchestrator(t, src, idx)

	_, err := o.Packages([]string{"app-a"}, Opts{Arch: arch, NoDepends: true})
	var mde ErrMissingDependencyBinary
	if !errors.As(err, &mde) {
		t.Fatalf("want ErrMissingDependencyBinary, got %v", err)
	}
	if mde.Dependency != "ncurses-dev" {
		t.Errorf("the subpackage's binary is the one missing: %v", mde)
	}
}

func TestPackagesMultiSrcOverride(t *testing.T) {
	o, _ := newTestOrchestrator(t, &fakeSource{}, &fakeIndex{})
	_, err := o.Packages([]string{"a", "b"}, Opts{SrcOverride: "/tmp/src"})
	var mse ErrMultiPackageSourceOverride
	if !errors.As(err, &mse) {
		t.Fatalf("want ErrMultiPackageSourceOverride, got %v", err)
	}
}

func TestPackagesSrcOverride(t *testing.T) {
	arch := types.ArchNative()
	src := &fakeSource{defs: map[string]*types.PackageDefinition{
		"app-a": mkdef("app-a", "1.0_git20250101", "lib-b"),
	}}
	idx := &fakeIndex{pkgs: map[string]map[string]*index.Package{
		arch: {"lib-b": mkbin("lib-b", "1.0-r0", arch)},
	}}
	o, be := newTestOrchestrator(t, src, idx)

	built, err := o.Packages([]string{"app-a"}, Opts{Arch: arch, SrcOverride: "/tmp/app-a-src"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(built) != 1 {
		t.Fatalf("want one build, got %v", built)
	}
	item := be.items[0]
	if !strings.HasPrefix(item.Pkgver, "1.0_p") {
		t.Errorf("source override version must get a date suffix: %s", item.Pkgver)
	}

	rsync := false
	for _, install := range be.installed {
		for _, pkg := range install {
			if pkg == "rsync" {
				rsync = true
			}
		}
	}
	if !rsync {
		t.Errorf("source override builds must get the sync tool installed: %v", be.installed)
	}
}

func TestPackagesUnbuildableArch(t *testing.T) {
	arch := types.ArchNative()
	def := mkdef("kernel-thing", "1.0")
	def.Arch = []string{"aarch64"}
	src := &fakeSource{defs: map[string]*types.PackageDefinition{"kernel-thing": def}}

	o, _ := newTestOrchestrator(t, src, &fakeIndex{})
	_, err := o.Packages([]string{"kernel-thing"}, Opts{Arch: "riscv64"})
	var uae ErrUnbuildableArch
	if !errors.As(err, &uae) {
		t.Fatalf("want ErrUnbuildableArch, got %v", err)
	}

	// With an upstream binary present the package is used as is.
	idx := &fakeIndex{pkgs: map[string]map[string]*index.Package{
		arch: {"kernel-thing": mkbin("kernel-thing", "0.9-r0", arch)},
	}}
	o2, be := newTestOrchestrator(t, src, idx)
	built, err := o2.Packages([]string{"kernel-thing"}, Opts{Arch: arch})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(built) != 0 || len(be.built) != 0 {
		t.Errorf("binary fallback must not build: %v", be.built)
	}
}

func TestPackagesToolchainFirst(t *testing.T) {
	arch := types.ArchNative()
	src := &fakeSource{defs: map[string]*types.PackageDefinition{
		"app-a":  mkdef("app-a", "1.0"),
		"abuild": mkdef("abuild", "3.0"),
	}}
	idx := &fakeIndex{pkgs: map[string]map[string]*index.Package{
		arch: {"abuild": mkbin("abuild", "2.0-r0", arch)},
	}}
	o, be := newTestOrchestrator(t, src, idx)
	WithBuildPackages([]string{"abuild"})(o)

	built, err := o.Packages([]string{"app-a"}, Opts{Arch: arch})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(be.built) != 2 || be.built[0] != "abuild" {
		t.Errorf("stale toolchain must build first: %v", be.built)
	}
	if len(built) != 1 || built[0] != "app-a" {
		t.Errorf("toolchain builds aren't reported unless requested: %v", built)
	}
}

func TestPackagesToolchainStrict(t *testing.T) {
	arch := types.ArchNative()
	src := &fakeSource{defs: map[string]*types.PackageDefinition{
		"app-a":  mkdef("app-a", "1.0"),
		"abuild": mkdef("abuild", "3.0"),
	}}
	idx := &fakeIndex{pkgs: map[string]map[string]*index.Package{
		arch: {"abuild": mkbin("abuild", "2.0-r0", arch)},
	}}
	o, _ := newTestOrchestrator(t, src, idx)
	WithBuildPackages([]string{"abuild"})(o)

	_, err := o.Packages([]string{"app-a"}, Opts{Arch: arch, Strict: true})
	var ste ErrStrictToolchain
	if !errors.As(err, &ste) {
		t.Fatalf("want ErrStrictToolchain, got %v", err)
	}
}

func TestPackagesToolchainReinstall(t *testing.T) {
	arch := types.ArchNative()
	src := &fakeSource{defs: map[string]*types.PackageDefinition{
		"abuild": mkdef("abuild", "3.0"),
	}}
	o, be := newTestOrchestrator(t, src, &fakeIndex{})
	WithBuildPackages([]string{"abuild"})(o)

	if _, err := o.Packages([]string{"abuild"}, Opts{Arch: arch}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	reinstalled := false
	for _, install := range be.installed {
		if len(install) == 1 && install[0] == "abuild" {
			reinstalled = true
		}
	}
	if !reinstalled {
		t.Errorf("a rebuilt build package goes back into the buildroot: %v", be.installed)
	}
	if be.undeps != 0 {
		t.Errorf("non-strict builds keep their deps installed: %d", be.undeps)
	}
}

func TestPackagesStrictSkipsInstall(t *testing.T) {
	arch := types.ArchNative()
	src := &fakeSource{defs: map[string]*types.PackageDefinition{
		"app-a": mkdef("app-a", "1.0", "lib-b"),
		"lib-b": mkdef("lib-b", "1.0"),
	}}
	o, be := newTestOrchestrator(t, src, &fakeIndex{})

	if _, err := o.Packages([]string{"app-a"}, Opts{Arch: arch, Strict: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(be.installed) != 0 {
		t.Errorf("strict mode must not pre-install dependencies: %v", be.installed)
	}
	if be.undeps != 2 {
		t.Errorf("strict mode must undo the builder's deps after each build: %d", be.undeps)
	}
}

func TestPackagesBuildFailure(t *testing.T) {
	arch := types.ArchNative()
	src := &fakeSource{defs: map[string]*types.PackageDefinition{
		"app-a": mkdef("app-a", "1.0", "lib-b"),
		"lib-b": mkdef("lib-b", "1.0"),
	}}
	o, be := newTestOrchestrator(t, src, &fakeIndex{})
	be.failOn = "lib-b"

	_, err := o.Packages([]string{"app-a"}, Opts{Arch: arch})
	var bfe ErrBuildFailed
	if !errors.As(err, &bfe) {
		t.Fatalf("want ErrBuildFailed, got %v", err)
	}
	if len(be.built) != 0 {
		t.Errorf("failure must abort the remaining queue: %v", be.built)
	}
}

func TestPackagesSccacheInstall(t *testing.T) {
	arch := types.ArchNative()
	src := &fakeSource{defs: map[string]*types.PackageDefinition{
		"rs-app": mkdef("rs-app", "1.0", "rust"),
		"rust":   mkdef("rust", "1.0"),
	}}
	o, be := newTestOrchestrator(t, src, &fakeIndex{})

	if _, err := o.Packages([]string{"rs-app"}, Opts{Arch: arch}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sccache := false
	for _, install := range be.installed {
		if len(install) == 1 && install[0] == "sccache" {
			sccache = true
		}
	}
	if !sccache {
		t.Errorf("rust builds get sccache in a fresh chroot: %v", be.installed)
	}
}

func TestSessionResetBetweenInvocations(t *testing.T) {
	arch := types.ArchNative()
	src := &fakeSource{defs: map[string]*types.PackageDefinition{
		"app-a": mkdef("app-a", "1.0"),
	}}
	o, be := newTestOrchestrator(t, src, &fakeIndex{})

	for i := 0; i < 2; i++ {
		if _, err := o.Packages([]string{"app-a"}, Opts{Arch: arch, Force: true}); err != nil {
			t.Fatalf("run %d: unexpected error: %v", i, err)
		}
	}
	if len(be.built) != 2 {
		t.Errorf("decisions must not leak across invocations: %v", be.built)
	}
}
