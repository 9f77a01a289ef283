package build

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/the-maldridge/pbuild/pkg/types"
)

// executeQueue drives the external builder through the finalized
// queue strictly in order.  Each build may produce packages that a
// later item in the same queue installs, so the index for the item's
// arch is invalidated after every successful build.
func (o *Orchestrator) executeQueue(queue *Queue, allDeps []string, opts Opts) ([]string, error) {
	initialized := make(map[string]bool)
	crossReady := make(map[string]bool)

	built := []string{}
	for _, item := range queue.Items() {
		if err := o.prepareChroot(item, allDeps, initialized, crossReady); err != nil {
			return nil, err
		}

		deps := item.Depends
		if opts.SrcOverride != "" {
			deps = append(deps, "rsync")
		}
		strict := opts.Strict || item.Definition.HasOption("pmb:strict")
		if !strict && len(deps) > 0 {
			if err := o.backend.InstallPackages(deps, item.Chroot); err != nil {
				return nil, err
			}
		}

		o.l.Info("Building package", "package", item.Name, "arch", item.Arch,
			"version", item.Pkgver+"-r"+item.Definition.Pkgrel, "chroot", item.Chroot.String())
		if err := o.backend.RunBuilder(item, opts); err != nil {
			return nil, ErrBuildFailed{Output: item.OutputPath, Err: err}
		}

		if err := o.finish(item, opts); err != nil {
			return nil, err
		}
		built = append(built, item.Satisfies...)
	}
	return built, nil
}

// prepareChroot performs the one-time setup an item's chroot needs
// before the builder can run in it.
func (o *Orchestrator) prepareChroot(item *QueueItem, allDeps []string, initialized, crossReady map[string]bool) error {
	key := item.Chroot.String()
	if !initialized[key] {
		first, err := o.backend.InitBuildEnv(item.Chroot)
		if err != nil {
			return err
		}
		// Rust builds go through sccache when it's available, but
		// only a fresh chroot needs it installed.
		if first && hasRustDependency(allDeps) {
			if err := o.backend.InstallPackages([]string{"sccache"}, item.Chroot); err != nil {
				return err
			}
		}
		initialized[key] = true
	}

	if item.Cross != types.CrossNone && !crossReady[key] {
		if err := o.backend.InitCompiler(item.Chroot, item.Cross, item.Arch, item.Depends); err != nil {
			return err
		}
		if item.Cross == types.CrossDirect {
			if err := o.backend.MountNativeIntoForeign(item.Chroot); err != nil {
				return err
			}
		}
		crossReady[key] = true
	}
	return nil
}

// finish verifies the build actually produced its artifact, drops the
// now stale index, and restores the chroot for the next item.
func (o *Orchestrator) finish(item *QueueItem, opts Opts) error {
	out := filepath.Join(o.workDir, "packages", item.Channel, item.OutputPath)
	if _, err := os.Stat(out); err != nil {
		return ErrBuildFailed{Output: item.OutputPath, Err: fmt.Errorf("package not found after build: %w", err)}
	}
	o.idx.Invalidate(item.Arch)

	if opts.Strict || item.Definition.HasOption("pmb:strict") {
		o.l.Debug("Removing installed build dependencies", "package", item.Name, "chroot", item.Chroot.String())
		if err := o.backend.UninstallBuildDeps(item.Chroot); err != nil {
			return err
		}
	}

	// A package that other builds depend on goes straight into the
	// buildroot so later items in the queue use the new version.
	for _, name := range o.buildPackages {
		if name == item.Name {
			o.l.Debug("Updating buildroot with rebuilt package", "package", item.Name)
			return o.backend.InstallPackages([]string{item.Name}, item.Chroot)
		}
	}
	return nil
}

func hasRustDependency(deps []string) bool {
	for _, dep := range deps {
		clean := types.RemoveOperators(dep)
		if clean == "rust" || strings.HasPrefix(clean, "cargo") {
			return true
		}
	}
	return false
}
