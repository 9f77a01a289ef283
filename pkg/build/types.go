// Package build contains the dependency resolving build queue engine.
// Given a set of requested package names it walks their makedepends,
// checkdepends and depends graphs, decides per package whether a
// rebuild is necessary, orders the result into a buildable queue, and
// drives an external builder through it.
package build

import (
	"github.com/hashicorp/go-hclog"

	"github.com/the-maldridge/pbuild/pkg/index"
	"github.com/the-maldridge/pbuild/pkg/types"
)

// SourceProvider resolves aports metadata.  Lookups that find nothing
// return nil rather than an error; the walker decides whether that is
// fatal.
type SourceProvider interface {
	Get(pkgname string) *types.PackageDefinition
	Repo(pkgname string) string
	SupportsArch(pkgname, arch string) bool
	Channel() string
	DeviceArch(pkgname string) string
}

// BinaryIndex looks up published binary packages, with an explicit
// invalidation hook for use after successful builds.
type BinaryIndex interface {
	Update(arch string) error
	Package(name, arch string) *index.Package
	Providers(name, arch string) []*index.Package
	Invalidate(arch string)
}

// Backend is the chroot and external builder collaborator.  All of
// its calls block until the underlying subprocess exits.
type Backend interface {
	// InitBuildEnv prepares the chroot and reports whether this was
	// its first use.
	InitBuildEnv(c types.Chroot) (bool, error)

	InstallPackages(pkgs []string, c types.Chroot) error
	UninstallBuildDeps(c types.Chroot) error

	// InitCompiler installs the cross toolchain for arch.
	InitCompiler(c types.Chroot, cross types.CrossMode, arch string, deps []string) error
	MountNativeIntoForeign(c types.Chroot) error

	RunBuilder(item *QueueItem, opts Opts) error
}

// Opts are the per-invocation flags of a top level Packages call.
type Opts struct {
	// Arch pins the target architecture; when empty it is detected
	// per package.
	Arch string

	// Force builds requested packages even when their binaries are
	// current.
	Force bool

	// Strict lets the external builder install and remove its own
	// dependencies transactionally instead of pre-installing them.
	Strict bool

	// IgnoreDepends drops run time depends from the computed
	// dependency lists.
	IgnoreDepends bool

	// NoDepends refuses to build any dependency: a missing or stale
	// dependency binary becomes a hard error.
	NoDepends bool

	// SrcOverride builds from a local source directory instead of
	// the aport's pinned source.
	SrcOverride string

	// Bootstrap is forwarded to the external builder.
	Bootstrap types.BootstrapStage
}

// Orchestrator owns one build pipeline: resolve, queue, execute.  It
// is not safe for concurrent Packages calls; execution is strictly
// sequential because each build's output may feed a later build in
// the same run.
type Orchestrator struct {
	l hclog.Logger

	src     SourceProvider
	idx     BinaryIndex
	backend Backend
	session *SessionCache

	workDir          string
	deviceArch       string
	preferDeviceArch bool
	buildPackages    []string
}

// New assembles an Orchestrator from the supplied options.
func New(opts ...Option) *Orchestrator {
	x := Orchestrator{
		l:       hclog.NewNullLogger(),
		session: NewSessionCache(),
	}
	for _, o := range opts {
		o(&x)
	}
	return &x
}

// Option configures the Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets up the logging instance for the orchestrator.
func WithLogger(l hclog.Logger) Option {
	return func(o *Orchestrator) {
		o.l = l.Named("build")
	}
}

// WithSourceProvider provides the aports metadata source.
func WithSourceProvider(s SourceProvider) Option {
	return func(o *Orchestrator) {
		o.src = s
	}
}

// WithBinaryIndex provides the binary package index.
func WithBinaryIndex(i BinaryIndex) Option {
	return func(o *Orchestrator) {
		o.idx = i
	}
}

// WithBackend provides the chroot and builder collaborator.
func WithBackend(b Backend) Option {
	return func(o *Orchestrator) {
		o.backend = b
	}
}

// WithWorkDir points the orchestrator at the directory that holds
// built packages.
func WithWorkDir(dir string) Option {
	return func(o *Orchestrator) {
		o.workDir = dir
	}
}

// WithDeviceArch sets the target device architecture and whether it
// is preferred over the native arch during autodetection.
func WithDeviceArch(arch string, prefer bool) Option {
	return func(o *Orchestrator) {
		o.deviceArch = arch
		o.preferDeviceArch = prefer
	}
}

// WithBuildPackages sets the always-needed toolchain packages that
// are queued ahead of everything else when stale.
func WithBuildPackages(pkgs []string) Option {
	return func(o *Orchestrator) {
		o.buildPackages = pkgs
	}
}
