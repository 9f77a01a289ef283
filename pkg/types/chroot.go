package types

// ChrootType discriminates the two kinds of build environments the
// orchestrator maintains.
type ChrootType string

// The chroot kinds.  Native builds run in the native chroot, foreign
// arches each get their own buildroot.
const (
	ChrootNative    ChrootType = "native"
	ChrootBuildroot ChrootType = "buildroot"
)

// A Chroot identifies one isolated build environment.
type Chroot struct {
	Type ChrootType
	Arch string
}

// NativeChroot returns the identity of the native build environment.
func NativeChroot() Chroot {
	return Chroot{Type: ChrootNative, Arch: ArchNative()}
}

// BuildrootChroot returns the identity of the foreign-arch build
// environment for arch.
func BuildrootChroot(arch string) Chroot {
	return Chroot{Type: ChrootBuildroot, Arch: arch}
}

func (c Chroot) String() string {
	if c.Type == ChrootNative {
		return "chroot_native"
	}
	return "chroot_" + string(c.Type) + "_" + c.Arch
}

// CrossMode selects how a foreign-arch package gets compiled.
type CrossMode string

// The cross compilation modes.  CrossNone means the build runs fully
// emulated or natively, CrossNative runs the cross compiler in the
// native chroot, CrossDirect mounts the native toolchain into the
// foreign chroot.
const (
	CrossNone   CrossMode = ""
	CrossNative CrossMode = "native"
	CrossDirect CrossMode = "crossdirect"
)

// BootstrapStage is passed through to the external builder so aports
// can cut dependencies during repo bootstrap.
type BootstrapStage int

// BootstrapNone is the normal, non-bootstrap build.
const BootstrapNone BootstrapStage = 0
