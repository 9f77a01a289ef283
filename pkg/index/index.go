// Package index interrogates APKINDEX files from binary package
// repositories.  Indexes are fetched once per session and cached; a
// successful build must invalidate the cache for its architecture so
// the freshly indexed package is visible to later queue entries.
package index

import (
	"archive/tar"
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/klauspost/compress/gzip"

	"github.com/the-maldridge/pbuild/pkg/storage"
	"github.com/the-maldridge/pbuild/pkg/types"
	"github.com/the-maldridge/pbuild/pkg/version"
)

// A Package is one block parsed out of an APKINDEX.
type Package struct {
	Pkgname  string
	Version  string
	Arch     string
	Origin   string
	Depends  []string
	Provides []string
}

// atom is the parsed state for one architecture, across all of its
// configured repos.
type atom struct {
	Pkgs      map[string]*Package
	Providers map[string][]*Package
}

// Service loads and caches binary package indexes per architecture.
type Service struct {
	l  hclog.Logger
	mu *sync.Mutex

	// arch -> repo -> index URL
	urls  map[string]map[string]string
	atoms map[string]*atom

	storage storage.Storage
}

// NewService creates an index Service with no URLs configured.
func NewService(l hclog.Logger) *Service {
	return &Service{
		l:     l.Named("index"),
		mu:    new(sync.Mutex),
		urls:  make(map[string]map[string]string),
		atoms: make(map[string]*atom),
	}
}

// EnablePersistence lets the service keep parsed indexes in a durable
// store across runs.  Without it indexes are re-fetched every start.
func (s *Service) EnablePersistence(st storage.Storage) {
	s.storage = st
}

// SetURLs configures the index locations.  The outer key is the apk
// architecture, the inner key names the repo (e.g. "main", "local").
func (s *Service) SetURLs(urls map[string]map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.urls = urls
}

// Update makes sure the indexes for arch are loaded.  It is cheap to
// call repeatedly; indexes are only fetched when the session cache is
// cold.
func (s *Service) Update(arch string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.atoms[arch]; ok {
		return nil
	}
	if a := s.loadPersisted(arch); a != nil {
		s.atoms[arch] = a
		return nil
	}

	a := &atom{
		Pkgs:      make(map[string]*Package),
		Providers: make(map[string][]*Package),
	}
	for repo, url := range s.urls[arch] {
		pkgs, err := s.fetchIndex(url)
		if err != nil {
			// Local repos commonly don't exist yet on a fresh
			// workdir, that's fine.
			s.l.Debug("Skipping index", "arch", arch, "repo", repo, "url", url, "error", err)
			continue
		}
		s.l.Debug("Loaded index", "arch", arch, "repo", repo, "count", len(pkgs))
		for i := range pkgs {
			a.add(&pkgs[i])
		}
	}
	s.atoms[arch] = a
	s.persist(arch, a)
	return nil
}

// Package returns the published binary package for name on arch, or
// nil when no repo carries it.  Exact pkgname matches win over
// provides entries; among providers the highest version is returned.
func (s *Service) Package(name, arch string) *Package {
	if err := s.Update(arch); err != nil {
		s.l.Warn("Error updating indexes", "arch", arch, "error", err)
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.atoms[arch]
	if !ok {
		return nil
	}

	if p, ok := a.Pkgs[name]; ok {
		return p
	}
	providers := a.Providers[name]
	if len(providers) == 0 {
		return nil
	}
	best := providers[0]
	for _, p := range providers[1:] {
		if version.Compare(p.Version, best.Version) == version.Greater {
			best = p
		}
	}
	return best
}

// Providers returns every binary package that provides name on arch.
func (s *Service) Providers(name, arch string) []*Package {
	if err := s.Update(arch); err != nil {
		s.l.Warn("Error updating indexes", "arch", arch, "error", err)
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.atoms[arch]
	if !ok {
		return nil
	}
	return a.Providers[name]
}

// Invalidate drops the parsed state for arch so the next lookup
// re-reads the indexes.  Call after every successful build.
func (s *Service) Invalidate(arch string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.atoms, arch)
	if s.storage != nil {
		if err := s.storage.Del([]byte(path.Join("index", arch))); err != nil {
			s.l.Warn("Error dropping persisted index", "arch", arch, "error", err)
		}
	}
}

func (a *atom) add(p *Package) {
	if prev, ok := a.Pkgs[p.Pkgname]; ok {
		if version.Compare(p.Version, prev.Version) != version.Greater {
			return
		}
	}
	a.Pkgs[p.Pkgname] = p
	a.Providers[p.Pkgname] = append(a.Providers[p.Pkgname], p)
	for _, prov := range p.Provides {
		name := types.RemoveOperators(strings.SplitN(prov, "=", 2)[0])
		if name == p.Pkgname {
			continue
		}
		a.Providers[name] = append(a.Providers[name], p)
	}
}

func (s *Service) loadPersisted(arch string) *atom {
	if s.storage == nil {
		return nil
	}
	b, err := s.storage.Get([]byte(path.Join("index", arch)))
	if err != nil || b == nil {
		return nil
	}
	a := new(atom)
	if err := json.Unmarshal(b, a); err != nil {
		s.l.Warn("Error loading persisted index", "arch", arch, "error", err)
		return nil
	}
	s.l.Debug("Loaded persisted index", "arch", arch, "count", len(a.Pkgs))
	return a
}

func (s *Service) persist(arch string, a *atom) {
	if s.storage == nil {
		return
	}
	b, err := json.Marshal(a)
	if err != nil {
		s.l.Warn("Error serializing index", "arch", arch, "error", err)
		return
	}
	if err := s.storage.Put([]byte(path.Join("index", arch)), b); err != nil {
		s.l.Warn("Error persisting index", "arch", arch, "error", err)
	}
}

func (s *Service) fetchIndex(url string) ([]Package, error) {
	var raw []byte
	var err error

	switch {
	case strings.HasPrefix(url, "http"):
		raw, err = s.fetchHTTP(url)
	case strings.HasPrefix(url, "file"):
		raw, err = os.ReadFile(strings.TrimPrefix(url, "file://"))
	default:
		err = errors.New("unknown index scheme")
		s.l.Error("Index URLs must be either file or http(s)", "url", url)
	}
	if err != nil {
		return nil, err
	}
	return ParseIndex(bytes.NewReader(raw))
}

func (s *Service) fetchHTTP(url string) ([]byte, error) {
	resp, err := http.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.New("index fetch returned " + resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// ParseIndex reads an APKINDEX.tar.gz stream and returns the package
// blocks from the APKINDEX member inside it.
func ParseIndex(r io.Reader) ([]Package, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer gz.Close()

	tarchive := tar.NewReader(gz)
	for {
		header, err := tarchive.Next()
		switch err {
		case nil:
		case io.EOF:
			return nil, errors.New("no APKINDEX member in archive")
		default:
			return nil, err
		}

		if path.Base(header.Name) != "APKINDEX" {
			continue
		}
		return parseBlocks(tarchive)
	}
}

// parseBlocks walks the line-oriented APKINDEX format: blocks of
// single-letter keys separated by blank lines.
func parseBlocks(r io.Reader) ([]Package, error) {
	var out []Package
	var cur Package

	flush := func() {
		if cur.Pkgname != "" {
			out = append(out, cur)
		}
		cur = Package{}
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			flush()
			continue
		}
		if len(line) < 2 || line[1] != ':' {
			continue
		}
		value := line[2:]
		switch line[0] {
		case 'P':
			cur.Pkgname = value
		case 'V':
			cur.Version = value
		case 'A':
			cur.Arch = value
		case 'o':
			cur.Origin = value
		case 'D':
			cur.Depends = strings.Fields(value)
		case 'p':
			cur.Provides = strings.Fields(value)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	flush()
	return out, nil
}
