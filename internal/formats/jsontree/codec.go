package jsontree

import (
	"encoding/json"
	"fmt"

	"github.com/audy/taxonomy/core/errors"
	"github.com/audy/taxonomy/core/rank"
	"github.com/audy/taxonomy/core/tree"
	"github.com/audy/taxonomy/internal/formats"
)

// nestedNode is the wire shape of the nested-tree flavor. Rank stays a
// raw string here so lenient reads can keep unparseable spellings.
type nestedNode struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Rank       string            `json:"rank"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Children   []*nestedNode     `json:"children,omitempty"`
}

// nodeLinkDoc is the wire shape of the node_link flavor. Each link runs
// child (source) to parent (target) as indexes into the node array.
type nodeLinkDoc struct {
	Nodes []nodeLinkNode `json:"nodes"`
	Links []nodeLink     `json:"links"`
}

type nodeLinkNode struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Rank       string            `json:"rank"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

type nodeLink struct {
	Source int `json:"source"`
	Target int `json:"target"`
}

// parseRankField applies the configured recovery policy for rank strings:
// strict reads surface the parse error, lenient reads fall back to
// Unspecified and stash the original spelling.
func parseRankField(raw string, attrs map[string]string, opts formats.ReadOptions) (rank.Rank, map[string]string, error) {
	r, err := rank.Parse(raw)
	if err == nil {
		return r, attrs, nil
	}
	if !opts.AllowUnknownRanks {
		return rank.Unspecified, nil, err
	}
	if attrs == nil {
		attrs = make(map[string]string, 1)
	}
	attrs["original_rank"] = raw
	return rank.Unspecified, attrs, nil
}

func parseNestedTree(data []byte, opts formats.ReadOptions) (*tree.Taxonomy, error) {
	var root nestedNode
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, errors.NewParse("JSON", "", err.Error())
	}

	var nodes []*tree.Node
	var flatten func(n *nestedNode, parent string) error
	flatten = func(n *nestedNode, parent string) error {
		r, attrs, err := parseRankField(n.Rank, n.Attributes, opts)
		if err != nil {
			return errors.Wrapf(err, "node %q", n.ID)
		}
		nodes = append(nodes, &tree.Node{
			ID:         n.ID,
			Name:       n.Name,
			Rank:       r,
			Parent:     parent,
			Attributes: attrs,
		})
		for _, child := range n.Children {
			if err := flatten(child, n.ID); err != nil {
				return err
			}
		}
		return nil
	}
	if err := flatten(&root, ""); err != nil {
		return nil, err
	}
	return tree.Build(nodes)
}

func parseNodeLink(data []byte, opts formats.ReadOptions) (*tree.Taxonomy, error) {
	var doc nodeLinkDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.NewParse("JSON", "", err.Error())
	}

	parents := make(map[int]int, len(doc.Links))
	for _, link := range doc.Links {
		if link.Source < 0 || link.Source >= len(doc.Nodes) ||
			link.Target < 0 || link.Target >= len(doc.Nodes) {
			return nil, errors.NewParse("JSON", "", fmt.Sprintf("link %d->%d is out of range", link.Source, link.Target))
		}
		if _, dup := parents[link.Source]; dup {
			return nil, errors.NewParse("JSON", "", fmt.Sprintf("node index %d has two parents", link.Source))
		}
		parents[link.Source] = link.Target
	}

	nodes := make([]*tree.Node, 0, len(doc.Nodes))
	for i, wire := range doc.Nodes {
		r, attrs, err := parseRankField(wire.Rank, wire.Attributes, opts)
		if err != nil {
			return nil, errors.Wrapf(err, "node %q", wire.ID)
		}
		n := &tree.Node{
			ID:         wire.ID,
			Name:       wire.Name,
			Rank:       r,
			Attributes: attrs,
		}
		if parentIdx, ok := parents[i]; ok {
			n.Parent = doc.Nodes[parentIdx].ID
		}
		nodes = append(nodes, n)
	}
	return tree.Build(nodes)
}

// RenderTree renders the taxonomy as an indented nested-tree document.
func RenderTree(t *tree.Taxonomy) ([]byte, error) {
	root := t.Root()
	if root == nil {
		return nil, errors.NewValidation("taxonomy", "cannot render an empty taxonomy")
	}
	wire, err := buildNested(t, root)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(wire, "", "  ")
}

func buildNested(t *tree.Taxonomy, n *tree.Node) (*nestedNode, error) {
	wire := &nestedNode{
		ID:         n.ID,
		Name:       n.Name,
		Rank:       n.Rank.String(),
		Attributes: n.Attributes,
	}
	children, err := t.Children(n.ID)
	if err != nil {
		return nil, err
	}
	for _, child := range children {
		childWire, err := buildNested(t, child)
		if err != nil {
			return nil, err
		}
		wire.Children = append(wire.Children, childWire)
	}
	return wire, nil
}

// RenderNodeLink renders the taxonomy as an indented node_link
// document, nodes ordered by ID.
func RenderNodeLink(t *tree.Taxonomy) ([]byte, error) {
	nodes := t.Nodes()
	index := make(map[string]int, len(nodes))
	doc := nodeLinkDoc{
		Nodes: make([]nodeLinkNode, 0, len(nodes)),
		Links: []nodeLink{},
	}
	for i, n := range nodes {
		index[n.ID] = i
		doc.Nodes = append(doc.Nodes, nodeLinkNode{
			ID:         n.ID,
			Name:       n.Name,
			Rank:       n.Rank.String(),
			Attributes: n.Attributes,
		})
	}
	for i, n := range nodes {
		if n.Parent != "" {
			doc.Links = append(doc.Links, nodeLink{Source: i, Target: index[n.Parent]})
		}
	}
	return json.MarshalIndent(doc, "", "  ")
}
