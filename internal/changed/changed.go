// Package changed selects which store files a validation run should look at.
//
// The default source is version control: files git reports as modified or
// untracked. The source is opaque to callers: it yields paths and nothing
// else, so the runner never learns where the list came from.
package changed

import (
	"fmt"
	"io/fs"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

// Suffix is the store file extension the sources filter for.
const Suffix = ".feather"

// execCommand is a test seam over exec.Command.
var execCommand = exec.Command

// FromGit returns the store files `git status --porcelain` reports as
// touched under root. An error means git itself was unavailable or failed;
// callers typically fall back to All.
func FromGit(root string) ([]string, error) {
	cmd := execCommand("git", "status", "--porcelain")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("changed: git status: %w", err)
	}

	var paths []string
	for _, line := range strings.Split(string(out), "\n") {
		// Porcelain format: two status columns, a space, then the path.
		if len(line) < 4 {
			continue
		}
		p := strings.TrimSpace(line[3:])
		// Renames render as "old -> new"; the new path is the live one.
		if i := strings.Index(p, " -> "); i >= 0 {
			p = p[i+len(" -> "):]
		}
		p = strings.Trim(p, `"`)
		if filepath.Ext(p) == Suffix {
			paths = append(paths, filepath.Join(root, p))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// All walks root and returns every store file under it.
func All(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == Suffix {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("changed: walk %q: %w", root, err)
	}
	sort.Strings(paths)
	return paths, nil
}
