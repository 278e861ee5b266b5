// Package mustgather provides read-only access to an unpacked must-gather
// directory tree. All lookups are relative to the resolved gather root, the
// directory that holds namespaces/ and cluster-scoped-resources/.
package mustgather

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
	"k8s.io/klog/v2"
)

const maxRootDepth = 3

type Bundle struct {
	root string
}

// NewBundle resolves path into a gather root. must-gather archives usually
// nest the payload under must-gather.local.<n>/<image-dir>/, so we search a
// few levels down for the first directory containing namespaces/ or
// cluster-scoped-resources/.
func NewBundle(path string) (*Bundle, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to stat must-gather path")
	}
	if !info.IsDir() {
		return nil, errors.Errorf("%s is not a directory", path)
	}

	root, ok := findGatherRoot(path, 0)
	if !ok {
		return nil, errors.Errorf("no must-gather content found under %s", path)
	}

	klog.V(1).Infof("resolved must-gather root to %s", root)
	return &Bundle{root: root}, nil
}

func findGatherRoot(dir string, depth int) (string, bool) {
	if isGatherRoot(dir) {
		return dir, true
	}
	if depth >= maxRootDepth {
		return "", false
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if root, ok := findGatherRoot(filepath.Join(dir, entry.Name()), depth+1); ok {
			return root, true
		}
	}
	return "", false
}

func isGatherRoot(dir string) bool {
	for _, marker := range []string{"namespaces", "cluster-scoped-resources"} {
		if info, err := os.Stat(filepath.Join(dir, marker)); err == nil && info.IsDir() {
			return true
		}
	}
	return false
}

func (b *Bundle) Root() string {
	return b.root
}

// Glob returns the relative paths of all regular files matching pattern.
// Patterns use '/' as the separator character, so "namespaces/*/pods/*.yaml"
// does not cross directory levels while "**/dump_frr" does.
func (b *Bundle) Glob(pattern string) ([]string, error) {
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, errors.Wrapf(err, "invalid glob pattern %q", pattern)
	}

	var matches []string
	err = filepath.WalkDir(b.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees degrade to "no data", never abort the scan.
			klog.V(2).Infof("skipping unreadable path %s: %v", path, err)
			return nil
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(b.root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if g.Match(rel) {
			matches = append(matches, rel)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to walk must-gather tree")
	}

	sort.Strings(matches)
	return matches, nil
}

func (b *Bundle) ReadFile(rel string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(b.root, filepath.FromSlash(rel)))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", rel)
	}
	return data, nil
}

func (b *Bundle) DecodeYAML(rel string, out interface{}) error {
	data, err := b.ReadFile(rel)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return errors.Wrapf(err, "failed to decode %s", rel)
	}
	return nil
}

// NamespacePath builds a path under namespaces/<ns>/.
func (b *Bundle) NamespacePath(ns string, elem ...string) string {
	parts := append([]string{"namespaces", ns}, elem...)
	return strings.Join(parts, "/")
}

// ClusterScopedPath builds a path under cluster-scoped-resources/.
func (b *Bundle) ClusterScopedPath(elem ...string) string {
	parts := append([]string{"cluster-scoped-resources"}, elem...)
	return strings.Join(parts, "/")
}

// EachYAML decodes every file matching pattern into a fresh value produced by
// newValue and hands it to fn. Files that fail to read or decode are logged
// and skipped; the returned count is the number successfully decoded.
func (b *Bundle) EachYAML(pattern string, newValue func() interface{}, fn func(rel string, value interface{})) (int, error) {
	paths, err := b.Glob(pattern)
	if err != nil {
		return 0, err
	}

	decoded := 0
	for _, rel := range paths {
		value := newValue()
		if err := b.DecodeYAML(rel, value); err != nil {
			klog.V(1).Infof("skipping %s: %v", rel, err)
			continue
		}
		fn(rel, value)
		decoded++
	}
	return decoded, nil
}
