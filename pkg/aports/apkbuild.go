package aports

import (
	"bufio"
	"errors"
	"io"
	"strings"

	"github.com/the-maldridge/pbuild/pkg/types"
)

// ErrNoPkgname is returned for files that don't carry the minimum
// metadata to be treated as an APKBUILD.
var ErrNoPkgname = errors.New("APKBUILD has no pkgname")

// ParseAPKBUILD extracts build metadata from an APKBUILD without
// evaluating it as shell.  Only plain variable assignments are
// understood; values may span lines when double quoted, and
// $pkgname/$pkgver/$pkgrel references are substituted.  Subpackage depends
// and provides are read from the matching split function bodies.
func ParseAPKBUILD(r io.Reader) (*types.PackageDefinition, error) {
	vars := make(map[string]string)
	funcVars := make(map[string]map[string]string)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	fn := ""
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		if fn != "" && trimmed == "}" {
			fn = ""
			continue
		}

		if name, ok := funcName(trimmed); ok && fn == "" {
			fn = name
			funcVars[fn] = make(map[string]string)
			continue
		}

		key, value, ok := splitAssignment(trimmed)
		if !ok {
			continue
		}

		// Multi line quoted value: keep reading until the close
		// quote shows up.
		if strings.HasPrefix(value, `"`) && (len(value) == 1 || !strings.HasSuffix(value, `"`)) {
			parts := []string{strings.TrimPrefix(value, `"`)}
			for scanner.Scan() {
				cont := strings.TrimSpace(scanner.Text())
				if strings.HasSuffix(cont, `"`) {
					parts = append(parts, strings.TrimSuffix(cont, `"`))
					break
				}
				parts = append(parts, cont)
			}
			value = strings.Join(parts, " ")
		} else {
			value = strings.Trim(value, `"'`)
		}

		if fn == "" {
			vars[key] = value
		} else {
			funcVars[fn][key] = value
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if vars["pkgname"] == "" {
		return nil, ErrNoPkgname
	}

	expand := func(s string) string {
		for _, key := range []string{"pkgname", "pkgver", "pkgrel"} {
			s = strings.ReplaceAll(s, "${"+key+"}", vars[key])
			s = strings.ReplaceAll(s, "$"+key, vars[key])
		}
		return s
	}

	def := types.PackageDefinition{
		Pkgname:      vars["pkgname"],
		Pkgver:       vars["pkgver"],
		Pkgrel:       vars["pkgrel"],
		Arch:         strings.Fields(expand(vars["arch"])),
		Options:      strings.Fields(expand(vars["options"])),
		Depends:      strings.Fields(expand(vars["depends"])),
		MakeDepends:  strings.Fields(expand(vars["makedepends"])),
		CheckDepends: strings.Fields(expand(vars["checkdepends"])),
		Provides:     strings.Fields(expand(vars["provides"])),
		Subpackages:  make(map[string]*types.Subpackage),
	}

	for _, entry := range strings.Fields(expand(vars["subpackages"])) {
		// Entries have the form name[:splitfunc[:arch]].
		fields := strings.Split(entry, ":")
		name := fields[0]
		splitfn := strings.ReplaceAll(name, "-", "_")
		if len(fields) > 1 && fields[1] != "" {
			splitfn = fields[1]
		}

		sub := types.Subpackage{Name: name}
		if fv, ok := funcVars[splitfn]; ok {
			sub.Depends = strings.Fields(expand(fv["depends"]))
			sub.Provides = strings.Fields(expand(fv["provides"]))
		}
		def.Subpackages[name] = &sub
	}

	return &def, nil
}

// funcName matches shell function openers of the form "name() {".
func funcName(line string) (string, bool) {
	idx := strings.Index(line, "()")
	if idx < 1 || !strings.HasSuffix(strings.TrimSpace(line), "{") {
		return "", false
	}
	name := strings.TrimSpace(line[:idx])
	if !validWord(name) {
		return "", false
	}
	return name, true
}

// splitAssignment matches plain shell variable assignments.
func splitAssignment(line string) (string, string, bool) {
	idx := strings.Index(line, "=")
	if idx < 1 {
		return "", "", false
	}
	key := line[:idx]
	if !validWord(key) {
		return "", "", false
	}
	value := line[idx+1:]
	if !strings.HasPrefix(value, `"`) {
		// Unquoted values stop at the first comment or blank.
		if c := strings.Index(value, "#"); c != -1 {
			value = value[:c]
		}
		value = strings.TrimSpace(value)
	}
	return key, value, true
}

func validWord(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '_':
		default:
			return false
		}
	}
	return true
}
