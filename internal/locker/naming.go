package locker

import (
	"path"
	"strings"
)

const lockedSuffix = "_locked.pdf"

// OutputName derives the name of a locked document from the original display
// name: a trailing ".pdf" (any case) is stripped and "_locked.pdf" appended.
// An empty name is treated as "document".
func OutputName(displayName string) string {
	base := displayName
	if base == "" {
		base = "document"
	}
	if len(base) >= 4 && strings.EqualFold(base[len(base)-4:], ".pdf") {
		base = base[:len(base)-4]
	}
	return base + lockedSuffix
}

// OutputPath applies OutputName to the leaf of a slash separated path,
// keeping the folder structure.
func OutputPath(relativePath string) string {
	p := strings.ReplaceAll(relativePath, "\\", "/")
	dir, leaf := path.Split(p)
	return dir + OutputName(leaf)
}
