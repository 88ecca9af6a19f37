package builder

import (
	"errors"
	"reflect"
	"testing"

	"golang.org/x/tools/go/packages"
)

func makePackages(imports map[string][]string) map[string]*packages.Package {
	pkgs := map[string]*packages.Package{}
	for id := range imports {
		pkgs[id] = &packages.Package{ID: id, PkgPath: id, Imports: map[string]*packages.Package{}}
	}
	for id, list := range imports {
		for _, dep := range list {
			pkgs[id].Imports[dep] = pkgs[dep]
		}
	}
	return pkgs
}

func buildGraph(pkgs map[string]*packages.Package) *Graph {
	g := NewGraph()
	for _, pkg := range pkgs {
		g.Add(pkg)
	}
	for _, pkg := range pkgs {
		for _, dep := range pkg.Imports {
			g.AddEdge(dep, pkg)
		}
	}
	return g
}

func ids(pkgs []*packages.Package) []string {
	var result []string
	for _, pkg := range pkgs {
		result = append(result, pkg.ID)
	}
	return result
}

func TestGraphBuckets(t *testing.T) {
	pkgs := makePackages(map[string][]string{
		"app":         {"app/drivers", "app/device"},
		"app/drivers": {"app/device"},
		"app/device":  nil,
		"app/util":    nil,
	})
	g := buildGraph(pkgs)

	sorted, err := g.Sorted()
	if err != nil {
		t.Fatal(err)
	}
	pos := map[string]int{}
	for i, id := range ids(sorted) {
		pos[id] = i
	}
	for _, pkg := range pkgs {
		for dep := range pkg.Imports {
			if pos[dep] > pos[pkg.ID] {
				t.Errorf("%s sorted after its importer %s", dep, pkg.ID)
			}
		}
	}

	buckets, err := g.Buckets()
	if err != nil {
		t.Fatal(err)
	}
	var got [][]string
	for _, bucket := range buckets {
		got = append(got, ids(bucket))
	}
	want := [][]string{{"app/device", "app/util"}, {"app/drivers"}, {"app"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("buckets = %v, want %v", got, want)
	}
}

func TestGraphCycle(t *testing.T) {
	g := buildGraph(makePackages(map[string][]string{
		"a": {"b"},
		"b": {"a"},
		"c": nil,
	}))
	if _, err := g.Buckets(); !errors.Is(err, ErrImportCycle) {
		t.Fatalf("error = %v, want %v", err, ErrImportCycle)
	}
}
