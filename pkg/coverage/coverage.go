// Package coverage implements a static heuristic for test coverage gaps: it
// compares the exported functions of each package against the identifiers
// its _test.go files actually mention. It is a quick triage signal, not a
// substitute for a real coverage profile, and says so in its output.
package coverage

import (
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// FunctionGap is one exported function with no apparent test.
type FunctionGap struct {
	File     string `json:"file"`
	Function string `json:"function"`
}

// PackageReport summarizes one package directory.
type PackageReport struct {
	Dir       string        `json:"dir"`
	Package   string        `json:"package"`
	Exported  int           `json:"exported"`
	Exercised int           `json:"exercised"`
	Gaps      []FunctionGap `json:"gaps,omitempty"`
}

// GapPercent is the share of exported functions with no apparent test.
func (p PackageReport) GapPercent() float64 {
	if p.Exported == 0 {
		return 0
	}
	return float64(len(p.Gaps)) / float64(p.Exported) * 100
}

// Report covers a whole source tree.
type Report struct {
	Root     string          `json:"root"`
	Packages []PackageReport `json:"packages"`
}

// Scan walks a Go source tree and builds a gap report. Directories that fail
// to parse are skipped with a warning; vendor and hidden directories are not
// descended into.
func Scan(root string) (*Report, error) {
	report := &Report{Root: root}

	dirs := map[string]bool{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			name := d.Name()
			if name == "vendor" || name == "testdata" || (strings.HasPrefix(name, ".") && path != root) || strings.HasPrefix(name, "_") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(path, ".go") {
			dirs[filepath.Dir(path)] = true
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to walk source tree")
	}

	for dir := range dirs {
		pkg, ok := scanPackage(dir)
		if ok {
			report.Packages = append(report.Packages, pkg)
		}
	}

	sort.Slice(report.Packages, func(i, j int) bool {
		return report.Packages[i].Dir < report.Packages[j].Dir
	})
	return report, nil
}

func scanPackage(dir string) (PackageReport, bool) {
	fset := token.NewFileSet()
	pkgs, err := parser.ParseDir(fset, dir, nil, 0)
	if err != nil {
		klog.V(1).Infof("skipping %s: %v", dir, err)
		return PackageReport{}, false
	}

	report := PackageReport{Dir: dir}

	type exported struct {
		file string
		name string
	}
	var exportedFuncs []exported
	testIdents := map[string]bool{}

	for name, pkg := range pkgs {
		if !strings.HasSuffix(name, "_test") {
			report.Package = name
		}
		for filename, file := range pkg.Files {
			if strings.HasSuffix(filename, "_test.go") {
				collectIdents(file, testIdents)
				continue
			}
			for _, decl := range file.Decls {
				fn, ok := decl.(*ast.FuncDecl)
				if !ok || !fn.Name.IsExported() {
					continue
				}
				exportedFuncs = append(exportedFuncs, exported{
					file: filepath.Base(filename),
					name: fn.Name.Name,
				})
			}
		}
	}

	if report.Package == "" {
		return PackageReport{}, false
	}

	report.Exported = len(exportedFuncs)
	for _, fn := range exportedFuncs {
		if testIdents[fn.name] || testIdents["Test"+fn.name] {
			report.Exercised++
			continue
		}
		report.Gaps = append(report.Gaps, FunctionGap{File: fn.file, Function: fn.name})
	}
	sort.Slice(report.Gaps, func(i, j int) bool {
		if report.Gaps[i].File != report.Gaps[j].File {
			return report.Gaps[i].File < report.Gaps[j].File
		}
		return report.Gaps[i].Function < report.Gaps[j].Function
	})
	return report, true
}

// collectIdents records every identifier mentioned anywhere in a test file.
// A function counts as exercised if a test file mentions it at all; this
// over-approximates, which is the right direction for a gap heuristic.
func collectIdents(file *ast.File, idents map[string]bool) {
	ast.Inspect(file, func(n ast.Node) bool {
		if ident, ok := n.(*ast.Ident); ok {
			idents[ident.Name] = true
		}
		return true
	})
}
