package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mtiwari1/gopherlock/internal/permission"
)

// input is one PDF found on the command line.
type input struct {
	Path         string
	Name         string
	RelativePath string
}

// collectInputs expands args into PDF inputs. Directories are walked and
// their files keep the directory name as the first path segment, so a
// folder selection round-trips into the zip layout.
func collectInputs(args []string) ([]input, error) {
	var out []input
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			name := filepath.Base(arg)
			out = append(out, input{Path: arg, Name: name, RelativePath: name})
			continue
		}

		root := filepath.Clean(arg)
		base := filepath.Base(root)
		err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.EqualFold(filepath.Ext(p), ".pdf") {
				return nil
			}
			rel, err := filepath.Rel(root, p)
			if err != nil {
				return err
			}
			out = append(out, input{
				Path:         p,
				Name:         d.Name(),
				RelativePath: filepath.ToSlash(filepath.Join(base, rel)),
			})
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", arg, err)
		}
	}
	return out, nil
}

// restrictionSet applies --restrict then removes every --allow entry. An
// empty --restrict means every restriction.
func restrictionSet(restrict, allow []string) ([]permission.Restriction, error) {
	base := permission.All()
	if len(restrict) > 0 {
		var err error
		if base, err = permission.ParseRestrictions(restrict); err != nil {
			return nil, err
		}
	}
	allowed, err := permission.ParseRestrictions(allow)
	if err != nil {
		return nil, err
	}
	drop := make(map[permission.Restriction]bool, len(allowed))
	for _, r := range allowed {
		drop[r] = true
	}
	out := make([]permission.Restriction, 0, len(base))
	for _, r := range base {
		if !drop[r] {
			out = append(out, r)
		}
	}
	return out, nil
}
