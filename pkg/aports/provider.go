// Package aports resolves source package definitions out of a local
// aports tree.  The tree is laid out as <repo>/<pkgname>/APKBUILD and
// is usually maintained by the Checkout manager.
package aports

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/the-maldridge/pbuild/pkg/types"
)

// Provider finds and parses APKBUILDs.  Parse results are cached for
// the lifetime of the provider; Flush drops the cache after the
// checkout has moved.
type Provider struct {
	l  hclog.Logger
	mu *sync.Mutex

	basePath string
	defs     map[string]*types.PackageDefinition
	paths    map[string]string
	channel  string

	// bad returned parse errors, so we keep an eye on what the
	// error was and continue.
	bad map[string]string
}

// NewProvider returns a provider rooted at the aports tree basePath.
func NewProvider(l hclog.Logger, basePath string) *Provider {
	return &Provider{
		l:        l.Named("aports"),
		mu:       new(sync.Mutex),
		basePath: basePath,
		defs:     make(map[string]*types.PackageDefinition),
		paths:    make(map[string]string),
		bad:      make(map[string]string),
	}
}

// Get returns the parsed definition for pkgname, or nil when no aport
// carries that name.  Subpackage names resolve to their parent aport.
func (p *Provider) Get(pkgname string) *types.PackageDefinition {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.get(pkgname)
}

// AportDir returns the directory of the aport that builds pkgname,
// or the empty string when unknown.
func (p *Provider) AportDir(pkgname string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.get(pkgname) == nil {
		return ""
	}
	return p.paths[pkgname]
}

// Repo returns the repo directory name the aport lives in, e.g.
// "main" or "device".
func (p *Provider) Repo(pkgname string) string {
	dir := p.AportDir(pkgname)
	if dir == "" {
		return ""
	}
	return filepath.Base(filepath.Dir(dir))
}

// SupportsArch checks whether the aport for pkgname can be built for
// arch according to its arch list.
func (p *Provider) SupportsArch(pkgname, arch string) bool {
	def := p.Get(pkgname)
	if def == nil {
		return false
	}
	return types.CheckArches(def.Arch, arch)
}

// Channel returns the release channel the tree publishes to, read
// once from channel.conf at the tree root.  Trees without the file
// publish to "edge".
func (p *Provider) Channel() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != "" {
		return p.channel
	}
	p.channel = "edge"
	b, err := os.ReadFile(filepath.Join(p.basePath, "channel.conf"))
	if err == nil {
		if c := strings.TrimSpace(string(b)); c != "" {
			p.channel = c
		}
	}
	return p.channel
}

// DeviceArch returns the architecture pinned by a device package's
// deviceinfo file, or the empty string.  device-* aports are noarch
// on paper but only make sense built for the hardware they describe.
func (p *Provider) DeviceArch(pkgname string) string {
	if !strings.HasPrefix(pkgname, "device-") {
		return ""
	}
	dir := p.AportDir(pkgname)
	if dir == "" {
		return ""
	}
	f, err := os.Open(filepath.Join(dir, "deviceinfo"))
	if err != nil {
		return ""
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "deviceinfo_arch=") {
			continue
		}
		return strings.Trim(strings.TrimPrefix(line, "deviceinfo_arch="), `"'`)
	}
	return ""
}

// Flush drops the parse cache.  Call after the checkout moves to a
// different revision.
func (p *Provider) Flush() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.defs = make(map[string]*types.PackageDefinition)
	p.paths = make(map[string]string)
	p.bad = make(map[string]string)
	p.channel = ""
}

// get must be called with the lock held.
func (p *Provider) get(pkgname string) *types.PackageDefinition {
	if def, ok := p.defs[pkgname]; ok {
		return def
	}

	if dir := p.findDir(pkgname); dir != "" {
		if def := p.load(pkgname, dir); def != nil {
			return def
		}
	}

	// The name might be a subpackage; guess the main package by
	// stripping suffixes (e.g. busybox-extras -> busybox).
	guess := pkgname
	for {
		idx := strings.LastIndex(guess, "-")
		if idx <= 0 {
			break
		}
		guess = guess[:idx]
		dir := p.findDir(guess)
		if dir == "" {
			continue
		}
		def := p.load(guess, dir)
		if def == nil {
			continue
		}
		if _, ok := def.Subpackages[pkgname]; ok {
			p.defs[pkgname] = def
			p.paths[pkgname] = dir
			return def
		}
	}
	p.defs[pkgname] = nil
	return nil
}

// findDir globs the tree for an aport directory named pkgname.
func (p *Provider) findDir(pkgname string) string {
	matches, _ := filepath.Glob(filepath.Join(p.basePath, "*", pkgname, "APKBUILD"))
	if len(matches) == 0 {
		return ""
	}
	if len(matches) > 1 {
		p.l.Warn("Package exists in multiple repos, using first", "package", pkgname, "path", matches[0])
	}
	return filepath.Dir(matches[0])
}

func (p *Provider) load(pkgname, dir string) *types.PackageDefinition {
	f, err := os.Open(filepath.Join(dir, "APKBUILD"))
	if err != nil {
		p.bad[pkgname] = err.Error()
		return nil
	}
	defer f.Close()

	def, err := ParseAPKBUILD(f)
	if err != nil {
		p.l.Warn("Error parsing APKBUILD", "package", pkgname, "error", err)
		p.bad[pkgname] = err.Error()
		return nil
	}

	p.defs[def.Pkgname] = def
	p.paths[def.Pkgname] = dir
	return def
}
