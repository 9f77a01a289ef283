package config

// Config represents the complete application configuration that
// pbuild supports.
type Config struct {
	// WorkDir holds chroots, built packages, and the aports
	// checkout.
	WorkDir string

	// AportsURL and AportsPath configure the source tree checkout.
	AportsURL  string
	AportsPath string

	// IndexURLs locate the APKINDEX files per arch and repo.
	IndexURLs map[string]map[string]string

	// Mirrors are the repository base URLs packages get installed
	// into chroots from.
	Mirrors []string

	// DeviceArch is the architecture of the target device, used by
	// arch autodetection.  PreferDeviceArch flips the preference
	// order between it and the native arch.
	DeviceArch       string
	PreferDeviceArch bool

	// BuildPackages are always checked before anything else is
	// built: the builder, compiler, cache tool and VCS client must
	// be current before they get used to build the rest.
	BuildPackages []string

	// Storage names the blobstore factory used to persist parsed
	// indexes.
	Storage string
}
