package builder

import (
	"errors"
	"fmt"
	"hash/fnv"

	"golang.org/x/exp/slices"
	"golang.org/x/tools/go/packages"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/multi"
	"gonum.org/v1/gonum/graph/topo"
)

type packageNode struct {
	pkg *packages.Package
	id  int64
}

func (p *packageNode) ID() int64 {
	return p.id
}

// Graph orders packages so that every package comes after the packages it
// imports.
type Graph struct {
	g     *multi.DirectedGraph
	nodes map[string]*packageNode
}

func NewGraph() *Graph {
	return &Graph{
		g:     multi.NewDirectedGraph(),
		nodes: map[string]*packageNode{},
	}
}

// Add adds pkg to the graph.
func (g *Graph) Add(pkg *packages.Package) {
	g.node(pkg)
}

func (g *Graph) node(pkg *packages.Package) *packageNode {
	// Look up an existing node for this package.
	if node, ok := g.nodes[pkg.ID]; ok {
		return node
	}

	// Make a new node for this package.
	hasher := fnv.New64()
	hasher.Write([]byte(pkg.ID))
	node := &packageNode{
		pkg: pkg,
		id:  int64(hasher.Sum64()),
	}
	g.nodes[pkg.ID] = node
	g.g.AddNode(node)
	return node
}

// AddEdge records that pkg imports dependency.
func (g *Graph) AddEdge(dependency, pkg *packages.Package) {
	g.g.SetLine(g.g.NewLine(g.node(dependency), g.node(pkg)))
}

// Sorted returns the packages in dependency order. Packages that do not
// depend on each other are ordered by path.
func (g *Graph) Sorted() ([]*packages.Package, error) {
	sorted, err := topo.SortStabilized(g.g, func(nodes []graph.Node) {
		slices.SortFunc(nodes, func(a, b graph.Node) bool {
			return a.(*packageNode).pkg.ID < b.(*packageNode).pkg.ID
		})
	})
	if err != nil {
		var cycles topo.Unorderable
		if errors.As(err, &cycles) {
			return nil, fmt.Errorf("%w: %v", ErrImportCycle, cyclePaths(cycles))
		}
		return nil, err
	}

	result := make([]*packages.Package, len(sorted))
	for i, node := range sorted {
		result[i] = node.(*packageNode).pkg
	}
	return result, nil
}

// Buckets groups the packages by depth. The packages of one bucket do not
// import each other and can be processed in parallel.
func (g *Graph) Buckets() ([][]*packages.Package, error) {
	sorted, err := g.Sorted()
	if err != nil {
		return nil, err
	}

	depth := map[int64]int{}
	var buckets [][]*packages.Package
	for _, pkg := range sorted {
		node := g.nodes[pkg.ID]
		d := 0
		to := g.g.To(node.ID())
		for to.Next() {
			if dd := depth[to.Node().ID()] + 1; dd > d {
				d = dd
			}
		}
		depth[node.ID()] = d
		if d == len(buckets) {
			buckets = append(buckets, nil)
		}
		buckets[d] = append(buckets[d], pkg)
	}
	for _, bucket := range buckets {
		slices.SortFunc(bucket, func(a, b *packages.Package) bool {
			return a.ID < b.ID
		})
	}
	return buckets, nil
}

func cyclePaths(cycles topo.Unorderable) [][]string {
	var result [][]string
	for _, component := range cycles {
		var paths []string
		for _, node := range component {
			paths = append(paths, node.(*packageNode).pkg.ID)
		}
		slices.Sort(paths)
		result = append(result, paths)
	}
	return result
}
