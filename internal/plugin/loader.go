package plugin

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/hanpama/classgraph/internal/classinfo"
	"github.com/hanpama/classgraph/internal/errs"
)

// IgnoreFile lists gitignore-style patterns of plugin paths to skip.
const IgnoreFile = ".classgraphignore"

// Bundle is the content of a plugin directory.
type Bundle struct {
	Dir       string
	Manifests []*Manifest
	Classes   []*classinfo.Class
	Instances []*classinfo.Record
}

// ClassNames lists the names of the bundle's classes.
func (b *Bundle) ClassNames() []string {
	if b == nil {
		return nil
	}
	out := make([]string, len(b.Classes))
	for i, c := range b.Classes {
		out[i] = c.Name
	}
	return out
}

// Apply registers the bundle's classes in u and unregisters classes that prev
// contributed and b no longer declares. A class already in u that prev did not
// contribute belongs to the host and cannot be redeclared.
func (b *Bundle) Apply(u *classinfo.Universe, prev *Bundle) error {
	owned := make(map[string]bool)
	for _, name := range prev.ClassNames() {
		owned[name] = true
	}
	keep := make(map[string]bool, len(b.Classes))
	for _, c := range b.Classes {
		if _, exists := u.Lookup(c.Name); exists && !owned[c.Name] {
			return errs.Invalidf(errs.ErrInvalidSchema, "plugin "+b.Dir, "class %s is already registered by the host", c.Name)
		}
		keep[c.Name] = true
	}
	var gone []string
	for _, name := range prev.ClassNames() {
		if !keep[name] {
			gone = append(gone, name)
		}
	}
	if err := u.Register(b.Classes...); err != nil {
		return err
	}
	u.Unregister(gone...)
	return nil
}

// Load reads every *.yaml and *.yml manifest under dir, in lexical path
// order. Paths matched by the directory's ignore file and hidden entries are
// skipped. A class declared by two manifests is an error.
func Load(dir string) (*Bundle, error) {
	matcher, err := loadIgnoreMatcher(dir)
	if err != nil {
		return nil, err
	}
	b := &Bundle{Dir: dir}
	declared := map[string]string{}
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == dir {
			return nil
		}
		if ignored(dir, path, d.IsDir(), matcher) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !isManifest(path) {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(dir, path)
		m, err := Parse(data, rel)
		if err != nil {
			return err
		}
		classes, err := m.ToClasses()
		if err != nil {
			return err
		}
		for _, c := range classes {
			if prev, dup := declared[c.Name]; dup {
				return errs.Invalidf(errs.ErrInvalidSchema, "plugin "+rel, "class %s already declared in %s", c.Name, prev)
			}
			declared[c.Name] = rel
		}
		b.Manifests = append(b.Manifests, m)
		b.Classes = append(b.Classes, classes...)
		b.Instances = append(b.Instances, m.ToRecords()...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

func isManifest(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func ignored(dir, path string, isDir bool, matcher gitignore.Matcher) bool {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return true
	}
	if matcher == nil {
		return false
	}
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return matcher.Match(strings.Split(rel, string(filepath.Separator)), isDir)
}

// loadIgnoreMatcher reads dir's ignore file. A missing file yields a nil
// matcher.
func loadIgnoreMatcher(dir string) (gitignore.Matcher, error) {
	content, err := os.ReadFile(filepath.Join(dir, IgnoreFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var patterns []gitignore.Pattern
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}
	return gitignore.NewMatcher(patterns), nil
}
