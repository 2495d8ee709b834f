// Package tree provides the in-memory taxonomy tree: a single-rooted
// hierarchy of named, ranked nodes keyed by stable identifiers.
//
// The tree stores rank values as node attributes; it does not validate
// that rank assignments are consistent across the hierarchy (a Species
// nested under a Genus and so on). Consistency is the business of the
// authorities that publish taxonomies, not of this container.
package tree

import (
	"sort"

	"github.com/audy/taxonomy/core/errors"
	"github.com/audy/taxonomy/core/rank"
)

// Node is a single taxon in a taxonomy tree.
type Node struct {
	// ID is the stable identifier, e.g. an NCBI tax ID such as "562".
	ID string `json:"id"`

	// Name is the scientific name, e.g. "Escherichia coli".
	Name string `json:"name"`

	// Rank is the taxonomic rank of this node.
	Rank rank.Rank `json:"rank"`

	// Parent is the ID of the parent node, empty for the root.
	Parent string `json:"parent,omitempty"`

	// Attributes holds additional per-node metadata as key-value pairs.
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Taxonomy is a single-rooted taxonomy tree. The zero value is not
// usable; construct with New or Build.
type Taxonomy struct {
	nodes    map[string]*Node
	children map[string][]string
	root     string
}

// New returns an empty taxonomy.
func New() *Taxonomy {
	return &Taxonomy{
		nodes:    make(map[string]*Node),
		children: make(map[string][]string),
	}
}

// Build constructs a taxonomy from an unordered node list, then
// validates it. Readers use this because dump files list children
// before parents as often as not.
func Build(nodes []*Node) (*Taxonomy, error) {
	t := New()
	for _, n := range nodes {
		if n.ID == "" {
			return nil, errors.NewValidation("id", "node ID must not be empty")
		}
		if _, dup := t.nodes[n.ID]; dup {
			return nil, errors.Wrapf(errors.ErrAlreadyExists, "duplicate node ID %q", n.ID)
		}
		t.nodes[n.ID] = n
		if n.Parent != "" {
			t.children[n.Parent] = append(t.children[n.Parent], n.ID)
		} else {
			if t.root != "" {
				return nil, errors.NewValidation("parent", "taxonomy has more than one root")
			}
			t.root = n.ID
		}
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Len returns the number of nodes.
func (t *Taxonomy) Len() int {
	return len(t.nodes)
}

// Root returns the root node, or nil for an empty taxonomy.
func (t *Taxonomy) Root() *Node {
	return t.nodes[t.root]
}

// Node returns the node with the given ID.
func (t *Taxonomy) Node(id string) (*Node, error) {
	n, ok := t.nodes[id]
	if !ok {
		return nil, errors.NewNotFound("node", id)
	}
	return n, nil
}

// Parent returns the parent of the given node. The root has no parent;
// for it Parent returns (nil, nil).
func (t *Taxonomy) Parent(id string) (*Node, error) {
	n, err := t.Node(id)
	if err != nil {
		return nil, err
	}
	if n.Parent == "" {
		return nil, nil
	}
	return t.Node(n.Parent)
}

// Children returns the direct children of the given node, ordered by ID.
func (t *Taxonomy) Children(id string) ([]*Node, error) {
	if _, err := t.Node(id); err != nil {
		return nil, err
	}
	ids := append([]string(nil), t.children[id]...)
	sort.Strings(ids)
	nodes := make([]*Node, 0, len(ids))
	for _, childID := range ids {
		nodes = append(nodes, t.nodes[childID])
	}
	return nodes, nil
}

// Lineage returns the path from the given node up to the root,
// inclusive at both ends.
func (t *Taxonomy) Lineage(id string) ([]*Node, error) {
	n, err := t.Node(id)
	if err != nil {
		return nil, err
	}
	lineage := []*Node{n}
	for n.Parent != "" {
		parent, err := t.Node(n.Parent)
		if err != nil {
			return nil, errors.Wrapf(err, "broken lineage at node %q", n.ID)
		}
		lineage = append(lineage, parent)
		n = parent
	}
	return lineage, nil
}

// LCA returns the lowest common ancestor of two nodes.
func (t *Taxonomy) LCA(a, b string) (*Node, error) {
	lineageA, err := t.Lineage(a)
	if err != nil {
		return nil, err
	}
	ancestors := make(map[string]bool, len(lineageA))
	for _, n := range lineageA {
		ancestors[n.ID] = true
	}

	n, err := t.Node(b)
	if err != nil {
		return nil, err
	}
	for {
		if ancestors[n.ID] {
			return n, nil
		}
		if n.Parent == "" {
			// Both lineages end at the root; reaching here means the
			// two nodes live in disconnected trees.
			return nil, errors.NewValidation("lca", "nodes share no common ancestor")
		}
		n, err = t.Node(n.Parent)
		if err != nil {
			return nil, err
		}
	}
}

// Subtree returns the IDs of the given node and all its descendants.
func (t *Taxonomy) Subtree(id string) ([]string, error) {
	if _, err := t.Node(id); err != nil {
		return nil, err
	}
	var ids []string
	stack := []string{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		ids = append(ids, cur)
		stack = append(stack, t.children[cur]...)
	}
	sort.Strings(ids)
	return ids, nil
}

// FindByName returns all nodes with the given scientific name, ordered
// by ID. Matching is exact.
func (t *Taxonomy) FindByName(name string) []*Node {
	var nodes []*Node
	for _, n := range t.nodes {
		if n.Name == name {
			nodes = append(nodes, n)
		}
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	return nodes
}

// FindByRank returns all nodes carrying the given rank, ordered by ID.
func (t *Taxonomy) FindByRank(r rank.Rank) []*Node {
	var nodes []*Node
	for _, n := range t.nodes {
		if n.Rank == r {
			nodes = append(nodes, n)
		}
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	return nodes
}

// Nodes returns all nodes ordered by ID.
func (t *Taxonomy) Nodes() []*Node {
	nodes := make([]*Node, 0, len(t.nodes))
	for _, n := range t.nodes {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	return nodes
}

// Validate checks structural integrity: exactly one root, every parent
// reference resolves, and every node reaches the root without cycles.
func (t *Taxonomy) Validate() error {
	if len(t.nodes) == 0 {
		return nil
	}
	if t.root == "" {
		return errors.NewValidation("root", "taxonomy has no root node")
	}
	for id, n := range t.nodes {
		if n.Parent == "" {
			continue
		}
		if _, ok := t.nodes[n.Parent]; !ok {
			return errors.NewValidation("parent", "node "+id+" references missing parent "+n.Parent)
		}
	}
	// Walk every node to the root. A walk longer than the node count
	// means a parent cycle.
	for id := range t.nodes {
		cur := t.nodes[id]
		for steps := 0; cur.Parent != ""; steps++ {
			if steps > len(t.nodes) {
				return errors.NewValidation("parent", "cycle detected at node "+id)
			}
			cur = t.nodes[cur.Parent]
		}
		if cur.ID != t.root {
			return errors.NewValidation("root", "node "+id+" is not connected to the root")
		}
	}
	return nil
}
