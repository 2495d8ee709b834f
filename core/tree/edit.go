package tree

import (
	"github.com/audy/taxonomy/core/errors"
)

// Add inserts a node. The first node added becomes the root; every
// later node must name an existing parent.
func (t *Taxonomy) Add(n *Node) error {
	if n.ID == "" {
		return errors.NewValidation("id", "node ID must not be empty")
	}
	if _, dup := t.nodes[n.ID]; dup {
		return errors.Wrapf(errors.ErrAlreadyExists, "duplicate node ID %q", n.ID)
	}
	if n.Parent == "" {
		if t.root != "" {
			return errors.NewValidation("parent", "taxonomy already has a root")
		}
		t.root = n.ID
	} else if _, ok := t.nodes[n.Parent]; !ok {
		return errors.NewNotFound("node", n.Parent)
	}
	t.nodes[n.ID] = n
	if n.Parent != "" {
		t.children[n.Parent] = append(t.children[n.Parent], n.ID)
	}
	return nil
}

// Remove deletes a node and reparents its children to the removed
// node's parent. The root cannot be removed while it has children.
func (t *Taxonomy) Remove(id string) error {
	n, err := t.Node(id)
	if err != nil {
		return err
	}
	orphans := t.children[id]
	if n.Parent == "" && len(orphans) > 0 {
		return errors.NewValidation("id", "cannot remove the root of a non-trivial taxonomy")
	}

	for _, childID := range orphans {
		child := t.nodes[childID]
		child.Parent = n.Parent
		t.children[n.Parent] = append(t.children[n.Parent], childID)
	}
	delete(t.children, id)
	t.detachFromParent(n)
	delete(t.nodes, id)
	if t.root == id {
		t.root = ""
	}
	return nil
}

// PruneKeep returns a new taxonomy containing only the given nodes,
// their descendants, and the lineages connecting them to the root.
func (t *Taxonomy) PruneKeep(ids []string) (*Taxonomy, error) {
	keep := make(map[string]bool)
	for _, id := range ids {
		subtree, err := t.Subtree(id)
		if err != nil {
			return nil, err
		}
		for _, sub := range subtree {
			keep[sub] = true
		}
		lineage, err := t.Lineage(id)
		if err != nil {
			return nil, err
		}
		for _, n := range lineage {
			keep[n.ID] = true
		}
	}
	var nodes []*Node
	for id := range keep {
		nodes = append(nodes, copyNode(t.nodes[id]))
	}
	return Build(nodes)
}

// PruneRemove returns a new taxonomy with the given nodes and all their
// descendants removed.
func (t *Taxonomy) PruneRemove(ids []string) (*Taxonomy, error) {
	drop := make(map[string]bool)
	for _, id := range ids {
		subtree, err := t.Subtree(id)
		if err != nil {
			return nil, err
		}
		for _, sub := range subtree {
			drop[sub] = true
		}
	}
	var nodes []*Node
	for id, n := range t.nodes {
		if !drop[id] {
			nodes = append(nodes, copyNode(n))
		}
	}
	return Build(nodes)
}

// copyNode returns a deep copy so pruned taxonomies never share node
// state with their source.
func copyNode(n *Node) *Node {
	dup := *n
	if n.Attributes != nil {
		dup.Attributes = make(map[string]string, len(n.Attributes))
		for k, v := range n.Attributes {
			dup.Attributes[k] = v
		}
	}
	return &dup
}

// detachFromParent removes a node's ID from its parent's child index.
func (t *Taxonomy) detachFromParent(n *Node) {
	if n.Parent == "" {
		return
	}
	siblings := t.children[n.Parent]
	for i, id := range siblings {
		if id == n.ID {
			t.children[n.Parent] = append(siblings[:i], siblings[i+1:]...)
			return
		}
	}
}
