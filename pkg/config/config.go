package config

import (
	"encoding/json"
	"os"
)

// NewConfig returns a config object with default structures
// initialized.  The config can be loaded from other sources to
// override the defaults.
func NewConfig() *Config {
	return &Config{
		WorkDir:    "pbuild-work",
		AportsURL:  "https://gitlab.postmarketos.org/postmarketOS/pmaports.git",
		AportsPath: "aports",
		IndexURLs: map[string]map[string]string{
			"x86_64": {
				"alpine": "https://dl-cdn.alpinelinux.org/alpine/edge/main/x86_64/APKINDEX.tar.gz",
				"local":  "file://pbuild-work/packages/edge/x86_64/APKINDEX.tar.gz",
			},
		},
		Mirrors: []string{
			"https://dl-cdn.alpinelinux.org/alpine/edge/main",
			"https://mirror.postmarketos.org/postmarketos/edge",
		},
		BuildPackages: []string{"abuild", "build-base", "ccache", "git"},
		Storage:       "bitcask",
	}
}

// LoadFromFile does as the name suggests, and loads the config from a
// file
func (c *Config) LoadFromFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	return dec.Decode(c)
}
