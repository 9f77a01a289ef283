// Package version implements the apk version comparison algorithm.
// Versions are compared token by token: numeric components, single
// letters, pre/post release suffixes ("_alpha" sorts before release,
// "_p" after) and a trailing "-rN" package revision.
package version

import (
	"strings"
)

// Comparison results.
const (
	Less    = -1
	Equal   = 0
	Greater = 1
)

type token int

// Token kinds in the order apk sorts them.  End is largest so that a
// version which ends while the other continues compares as older,
// unless the continuation is a pre-release suffix.
const (
	tokenInvalid token = iota - 1
	tokenDigitOrZero
	tokenDigit
	tokenLetter
	tokenSuffix
	tokenSuffixNo
	tokenRevisionNo
	tokenEnd
)

// Pre-release suffixes carry negative values so a suffixed version
// sorts before the bare one; post-release suffixes are positive.
var preSuffixes = []string{"alpha", "beta", "pre", "rc"}
var postSuffixes = []string{"cvs", "svn", "git", "hg", "p"}

func isdigit(c byte) bool { return c >= '0' && c <= '9' }
func islower(c byte) bool { return c >= 'a' && c <= 'z' }

// nextToken decides the kind of the next token from the first byte of
// rest and consumes the separator, if any.
func nextToken(prev token, rest string) (token, string) {
	var n token
	switch {
	case len(rest) == 0:
		n = tokenEnd
	case (prev == tokenDigit || prev == tokenDigitOrZero) && islower(rest[0]):
		n = tokenLetter
	case prev == tokenLetter && isdigit(rest[0]):
		n = tokenDigit
	case prev == tokenSuffix && isdigit(rest[0]):
		n = tokenSuffixNo
	default:
		switch {
		case rest[0] == '.':
			n = tokenDigitOrZero
		case rest[0] == '_':
			n = tokenSuffix
		case strings.HasPrefix(rest, "-r"):
			n = tokenRevisionNo
			rest = rest[1:]
		case rest[0] == '-':
			n = tokenInvalid
		case isdigit(rest[0]):
			n = tokenDigit
		case islower(rest[0]):
			n = tokenLetter
		default:
			n = tokenInvalid
		}
		rest = rest[1:]
	}

	// A token kind may only decrease at a numeric segment boundary,
	// from a numbered suffix back to another suffix, or from a letter
	// back to a digit.
	if n < prev {
		if !((n == tokenDigitOrZero && prev == tokenDigit) ||
			(n == tokenSuffix && prev == tokenSuffixNo) ||
			(n == tokenDigit && prev == tokenLetter)) {
			n = tokenInvalid
		}
	}
	return n, rest
}

// getToken consumes one token of kind t from rest and returns its
// comparison value, the kind of the following token and the remainder.
func getToken(t token, rest string) (token, int, string) {
	if len(rest) == 0 {
		return tokenEnd, 0, rest
	}

	v := 0
	i := 0
	forced := tokenInvalid

	switch t {
	case tokenDigitOrZero, tokenDigit, tokenSuffixNo, tokenRevisionNo:
		if t == tokenDigitOrZero && rest[0] == '0' {
			// Leading zeroes sort as fractional digits: more
			// zeroes means an older version.
			for i < len(rest) && rest[i] == '0' {
				i++
			}
			v = -i
			forced = tokenDigit
			break
		}
		for i < len(rest) && isdigit(rest[i]) {
			v = v*10 + int(rest[i]-'0')
			i++
		}
	case tokenLetter:
		v = int(rest[0])
		i = 1
	case tokenSuffix:
		if s, n := matchSuffix(rest, preSuffixes); n > 0 {
			v = s - len(preSuffixes)
			i = n
			break
		}
		if s, n := matchSuffix(rest, postSuffixes); n > 0 {
			v = s
			i = n
			break
		}
		return tokenInvalid, 0, rest
	default:
		return tokenInvalid, 0, rest
	}

	rest = rest[i:]
	next := forced
	if next == tokenInvalid {
		if len(rest) == 0 {
			next = tokenEnd
		} else {
			next, rest = nextToken(t, rest)
		}
	}
	return next, v, rest
}

func matchSuffix(rest string, suffixes []string) (int, int) {
	for idx, s := range suffixes {
		if strings.HasPrefix(rest, s) {
			return idx, len(s)
		}
	}
	return 0, 0
}

// Compare compares two apk version strings and returns Less, Equal or
// Greater.  Comparison is antisymmetric and Compare(v, v) is Equal for
// every valid version string.
func Compare(a, b string) int {
	at, bt := tokenDigit, tokenDigit
	av, bv := 0, 0
	arest, brest := a, b

	for at == bt && at != tokenEnd && at != tokenInvalid && av == bv {
		at, av, arest = getToken(at, arest)
		bt, bv, brest = getToken(bt, brest)
	}

	if av < bv {
		return Less
	}
	if av > bv {
		return Greater
	}
	if at == bt {
		return Equal
	}

	// The non-terminating version is newer unless its next token is
	// a pre-release suffix.
	if at == tokenSuffix {
		if _, v, _ := getToken(at, arest); v < 0 {
			return Less
		}
	}
	if bt == tokenSuffix {
		if _, v, _ := getToken(bt, brest); v < 0 {
			return Greater
		}
	}

	if at > bt {
		return Less
	}
	if bt > at {
		return Greater
	}
	return Equal
}

// Validate reports whether v parses fully as an apk version string.
func Validate(v string) bool {
	t := tokenDigit
	rest := v
	if len(rest) == 0 || !isdigit(rest[0]) {
		return false
	}
	for t != tokenEnd {
		t, _, rest = getToken(t, rest)
		if t == tokenInvalid {
			return false
		}
	}
	return true
}

// CheckString tests a version against a constraint with a leading
// operator, e.g. CheckString("3.2.4", ">=3.0.0").
func CheckString(version, constraint string) bool {
	switch {
	case strings.HasPrefix(constraint, ">="):
		return Compare(version, constraint[2:]) >= Equal
	case strings.HasPrefix(constraint, "<="):
		return Compare(version, constraint[2:]) <= Equal
	case strings.HasPrefix(constraint, ">"):
		return Compare(version, constraint[1:]) == Greater
	case strings.HasPrefix(constraint, "<"):
		return Compare(version, constraint[1:]) == Less
	case strings.HasPrefix(constraint, "="):
		return Compare(version, constraint[1:]) == Equal
	default:
		return Compare(version, constraint) == Equal
	}
}
