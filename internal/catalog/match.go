package catalog

import (
	"regexp"
	"strings"
)

var versionSuffix = regexp.MustCompile(`\s+v\d+\s*$`)

// NormalizeServiceName lowercases name, trims it and drops a trailing
// version marker such as " v2".
func NormalizeServiceName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.TrimSpace(versionSuffix.ReplaceAllString(name, ""))
}

// FuzzyMatch reports whether query and candidate name the same service:
// after normalization either one contains the other.
func FuzzyMatch(query, candidate string) bool {
	q := NormalizeServiceName(query)
	c := NormalizeServiceName(candidate)
	if q == "" || c == "" {
		return false
	}
	return strings.Contains(c, q) || strings.Contains(q, c)
}

// Frameworks and lots searched when no explicit scope is given.
var (
	SearchVersions = []string{"14", "15"}
	SearchLots     = []string{"2", "3"}
)

// LotFolder returns the folder that holds every service of a lot.
func LotFolder(version, lot string) string {
	return Placement{FrameworkVersion: version, Lot: lot, ServiceName: "x"}.parentFolder()
}

func (p Placement) parentFolder() string {
	full := p.FolderPath()
	if i := strings.LastIndex(full, "/"); i >= 0 {
		return full[:i]
	}
	return ""
}
