// Package permission maps user-facing restrictions to the PDF standard
// security handler permission flags (the /P entry).
package permission

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Restriction denies one or more actions on a locked document.
type Restriction string

const (
	Printing         Restriction = "printing"
	Copying          Restriction = "copying"
	Editing          Restriction = "editing"
	PageExtraction   Restriction = "pageExtraction"
	Commenting       Restriction = "commenting"
	FormFilling      Restriction = "formFilling"
	DocumentAssembly Restriction = "documentAssembly"
)

// ErrUnknownRestriction is returned when a restriction name is not recognised.
var ErrUnknownRestriction = errors.New("unknown restriction")

// Mask is the 32-bit signed permission value. A set bit allows the action.
type Mask int32

// AllAllowed has every bit set.
const AllAllowed Mask = -1

// bits lists the 1-indexed permission bits each restriction clears.
// PageExtraction and DocumentAssembly both map to bit 11 (assemble document).
var bits = map[Restriction][]int{
	Printing:         {3, 12},
	Copying:          {5, 10},
	Editing:          {4},
	PageExtraction:   {11},
	Commenting:       {6},
	FormFilling:      {9},
	DocumentAssembly: {11},
}

var ordered = []Restriction{
	Printing, Copying, Editing, PageExtraction, Commenting, FormFilling, DocumentAssembly,
}

// All returns every restriction in a stable order.
func All() []Restriction {
	out := make([]Restriction, len(ordered))
	copy(out, ordered)
	return out
}

// ComputeMask starts from AllAllowed and clears the bits of every restriction
// present. Duplicates and ordering have no effect.
func ComputeMask(restrictions ...Restriction) Mask {
	m := AllAllowed
	for _, r := range restrictions {
		for _, b := range bits[r] {
			m &^= 1 << (b - 1)
		}
	}
	return m
}

// Allows reports whether the 1-indexed bit is set.
func (m Mask) Allows(bit int) bool {
	if bit < 1 || bit > 32 {
		return false
	}
	return m&(1<<(bit-1)) != 0
}

// Cleared returns the 1-indexed bits that are not set, ascending.
func (m Mask) Cleared() []int {
	var out []int
	for b := 1; b <= 32; b++ {
		if !m.Allows(b) {
			out = append(out, b)
		}
	}
	return out
}

func (m Mask) String() string {
	return fmt.Sprintf("%d", int32(m))
}

// ParseRestriction accepts the camelCase wire names as well as kebab-case
// spellings ("page-extraction").
func ParseRestriction(s string) (Restriction, error) {
	key := strings.ToLower(strings.NewReplacer("-", "", "_", "", " ", "").Replace(strings.TrimSpace(s)))
	for _, r := range ordered {
		if strings.ToLower(string(r)) == key {
			return r, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRestriction, s)
}

// ParseRestrictions parses and de-duplicates a list of names. The result is
// sorted in the order returned by All.
func ParseRestrictions(names []string) ([]Restriction, error) {
	seen := make(map[Restriction]bool, len(names))
	for _, n := range names {
		r, err := ParseRestriction(n)
		if err != nil {
			return nil, err
		}
		seen[r] = true
	}
	out := make([]Restriction, 0, len(seen))
	for r := range seen {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return index(out[i]) < index(out[j]) })
	return out, nil
}

// Strings converts restrictions back to their wire names.
func Strings(rs []Restriction) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = string(r)
	}
	return out
}

func index(r Restriction) int {
	for i, o := range ordered {
		if o == r {
			return i
		}
	}
	return len(ordered)
}
