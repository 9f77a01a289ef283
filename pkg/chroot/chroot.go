// Package chroot manages the on-disk build environments and runs apk
// and the external builder inside them.  It is the exec-backed
// implementation of the build orchestrator's Backend interface.
package chroot

import (
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/the-maldridge/pbuild/pkg/types"
)

// buildUser is the unprivileged account the external builder runs as
// inside each chroot.
const buildUser = "pbuild"

// Backend owns the chroot directories below the work dir, one per
// chroot identity.
type Backend struct {
	l hclog.Logger

	workDir string
	mirrors []string

	mu    *sync.Mutex
	ready map[string]bool
}

// New assembles a Backend from the supplied options.
func New(opts ...Option) *Backend {
	b := Backend{
		l:     hclog.NewNullLogger(),
		mu:    new(sync.Mutex),
		ready: make(map[string]bool),
	}
	for _, o := range opts {
		o(&b)
	}
	return &b
}

// Option configures the Backend.
type Option func(*Backend)

// WithLogger sets up the logging instance for the backend.
func WithLogger(l hclog.Logger) Option {
	return func(b *Backend) {
		b.l = l.Named("chroot")
	}
}

// WithWorkDir points the backend at the directory the chroots live
// under.
func WithWorkDir(dir string) Option {
	return func(b *Backend) {
		b.workDir = dir
	}
}

// WithMirrors sets the binary repositories apk installs from.
func WithMirrors(mirrors []string) Option {
	return func(b *Backend) {
		b.mirrors = mirrors
	}
}

func (b *Backend) path(c types.Chroot) string {
	return filepath.Join(b.workDir, c.String())
}

// InitBuildEnv prepares the chroot for c and reports whether this
// call created it.  An already populated chroot is reused as is.
func (b *Backend) InitBuildEnv(c types.Chroot) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	path := b.path(c)
	if b.ready[path] {
		return false, nil
	}
	if _, err := os.Stat(filepath.Join(path, "usr")); err == nil {
		b.l.Debug("Reusing existing chroot", "chroot", c.String())
		b.ready[path] = true
		return false, nil
	}

	b.l.Info("Creating chroot", "chroot", c.String(), "path", path)
	if err := os.MkdirAll(path, 0755); err != nil {
		return false, err
	}
	if err := b.apk(c, "add", "--initdb", "alpine-base"); err != nil {
		return false, err
	}
	b.ready[path] = true
	return true, nil
}

// InstallPackages adds pkgs to the chroot for c.
func (b *Backend) InstallPackages(pkgs []string, c types.Chroot) error {
	b.l.Debug("Installing packages", "chroot", c.String(), "packages", pkgs)
	return b.apk(c, append([]string{"add"}, pkgs...)...)
}

// UninstallBuildDeps removes the dependencies the builder installed
// transactionally during a strict build.
func (b *Backend) UninstallBuildDeps(c types.Chroot) error {
	return b.user(c, nil, "abuild", "undeps")
}

// InitCompiler installs the cross toolchain targeting arch into the
// chroot for c.
func (b *Backend) InitCompiler(c types.Chroot, cross types.CrossMode, arch string, deps []string) error {
	pkgs := []string{"gcc-" + arch, "g++-" + arch, "binutils-" + arch, "musl-dev"}
	if cross == types.CrossDirect {
		pkgs = append(pkgs, "crossdirect")
	}
	b.l.Info("Installing cross compiler", "chroot", c.String(), "target", arch)
	return b.InstallPackages(pkgs, c)
}

// MountNativeIntoForeign bind mounts the native chroot below /native
// of the foreign chroot so crossdirect can reach the native
// toolchain.
func (b *Backend) MountNativeIntoForeign(c types.Chroot) error {
	native := b.path(types.NativeChroot())
	target := filepath.Join(b.path(c), "native")
	if err := os.MkdirAll(target, 0755); err != nil {
		return err
	}

	out, err := exec.Command("mount", "-o", "bind", native, target).CombinedOutput()
	if err != nil {
		b.l.Error("Error bind mounting native chroot", "target", target, "output", string(out))
		return err
	}
	return nil
}

// apk runs apk against the chroot's root from the outside, pinned to
// the configured mirrors.
func (b *Backend) apk(c types.Chroot, args ...string) error {
	argv := []string{"--root", b.path(c), "--arch", c.Arch, "--no-interactive"}
	for _, m := range b.mirrors {
		argv = append(argv, "-X", m)
	}
	argv = append(argv, args...)

	cmd := exec.Command("apk", argv...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		b.l.Error("Error running apk", "chroot", c.String(), "args", args, "output", string(out))
		return err
	}
	return nil
}

// run executes a command inside the chroot as root.
func (b *Backend) run(c types.Chroot, env []string, argv ...string) error {
	cargs := append([]string{b.path(c)}, argv...)
	cmd := exec.Command("chroot", cargs...)
	cmd.Env = append(os.Environ(), env...)

	out, err := cmd.CombinedOutput()
	if err != nil {
		b.l.Error("Error running command in chroot",
			"chroot", c.String(), "command", argv, "output", string(out))
		return err
	}
	return nil
}
