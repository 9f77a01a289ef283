package chroot

import (
	"path"
	"strconv"
	"strings"

	"github.com/the-maldridge/pbuild/pkg/build"
	"github.com/the-maldridge/pbuild/pkg/types"
)

var hostSpecs = map[string]string{
	"x86_64":  "x86_64-alpine-linux-musl",
	"x86":     "i586-alpine-linux-musl",
	"aarch64": "aarch64-alpine-linux-musl",
	"armv7":   "armv7-alpine-linux-musleabihf",
	"armhf":   "armv6-alpine-linux-musleabihf",
	"riscv64": "riscv64-alpine-linux-musl",
}

// RunBuilder invokes the external builder for item inside its
// chroot.  The builder's own dependency handling is engaged in strict
// mode; otherwise the orchestrator installed the dependencies
// already.
func (b *Backend) RunBuilder(item *build.QueueItem, opts build.Opts) error {
	env := []string{
		"CARCH=" + item.Arch,
		"SUDO_APK=abuild-apk --no-progress",
	}
	switch item.Cross {
	case types.CrossNative:
		spec := hostSpecs[item.Arch]
		env = append(env,
			"CROSS_COMPILE="+spec+"-",
			"CC="+spec+"-gcc",
		)
	case types.CrossDirect:
		// The foreign chroot executes natively compiled tools out
		// of the bind mounted native chroot.
		env = append(env, "PATH=/native/usr/lib/crossdirect/"+item.Arch+
			":/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin")
	}
	if opts.Bootstrap != types.BootstrapNone {
		env = append(env, "BOOTSTRAP="+strconv.Itoa(int(opts.Bootstrap)))
	}
	if opts.SrcOverride != "" {
		env = append(env, "PBUILD_SRC="+opts.SrcOverride)
	}

	cmd := []string{"abuild"}
	if opts.Strict || item.Definition.HasOption("pmb:strict") {
		cmd = append(cmd, "-r")
	}
	if opts.Force {
		cmd = append(cmd, "-f")
	}

	workdir := path.Join("/home", buildUser, "aports", item.Aports, item.Name)
	b.l.Info("Running builder", "package", item.Name, "chroot", item.Chroot.String(), "cross", string(item.Cross))

	shell := "cd " + workdir + " && " + strings.Join(append(env, cmd...), " ")
	return b.run(item.Chroot, nil, "su", buildUser, "-c", shell)
}

// user executes a command inside the chroot as the unprivileged build
// user.  env entries become K=V assignments ahead of the command.
func (b *Backend) user(c types.Chroot, env []string, argv ...string) error {
	return b.run(c, nil, "su", buildUser, "-c", strings.Join(append(env, argv...), " "))
}
