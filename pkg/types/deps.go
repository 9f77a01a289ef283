package types

import (
	"strings"
)

// operators are the version constraint operators that may be embedded
// in raw dependency strings.  Order matters: two-character operators
// must be tried before their one-character prefixes.
var operators = []string{">=", "<=", ">", "=", "<", "~"}

// RemoveOperators strips a version constraint from a raw dependency
// string, e.g. "so-name>=1.2" becomes "so-name".
func RemoveOperators(dep string) string {
	for _, op := range operators {
		if idx := strings.Index(dep, op); idx != -1 {
			return dep[:idx]
		}
	}
	return dep
}

// IsConflict reports whether a raw dependency string is a conflict
// marker ("!pkgname") rather than a real dependency.
func IsConflict(dep string) bool {
	return strings.HasPrefix(dep, "!")
}

// IsMeta reports whether a raw dependency string is a virtual
// dependency such as "cmd:mkinitfs" or "so:libfoo.so.1".  These are
// satisfied by the package manager's provides index and are excluded
// from source dependency expansion.
func IsMeta(dep string) bool {
	return strings.Contains(RemoveOperators(dep), ":")
}
