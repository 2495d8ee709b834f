// Package phyloxml reads PhyloXML phylogeny documents. PhyloXML is the
// richest of the supported conventions: clades may carry a taxonomy
// block with an identifier, a scientific name, and a rank, all of which
// map directly onto tree nodes. Emitting PhyloXML is not supported.
package phyloxml

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/audy/taxonomy/core/errors"
	"github.com/audy/taxonomy/core/rank"
	"github.com/audy/taxonomy/core/tree"
	"github.com/audy/taxonomy/internal/formats"
)

// Handler implements formats.Handler for PhyloXML documents.
type Handler struct{}

func init() {
	formats.Register(&Handler{})
}

// Name returns the registry key.
func (h *Handler) Name() string { return "phyloxml" }

// phylogenyQuery locates the first phylogeny in a document.
var phylogenyQuery = xpath.MustCompile("//phylogeny")

// Detect recognizes .xml files carrying a phyloxml root element.
func (h *Handler) Detect(path string) (*formats.DetectResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return &formats.DetectResult{
			Detected: false,
			Reason:   fmt.Sprintf("cannot stat: %v", err),
		}, nil
	}
	if info.IsDir() || strings.ToLower(filepath.Ext(path)) != ".xml" {
		return &formats.DetectResult{
			Detected: false,
			Reason:   "not an .xml file",
		}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return &formats.DetectResult{
			Detected: false,
			Reason:   fmt.Sprintf("cannot read: %v", err),
		}, nil
	}
	if strings.Contains(string(data), "<phyloxml") {
		return &formats.DetectResult{
			Detected: true,
			Format:   "phyloxml",
			Reason:   "phyloxml markers detected",
		}, nil
	}
	return &formats.DetectResult{
		Detected: false,
		Reason:   "not a PhyloXML file",
	}, nil
}

// Read parses the first phylogeny in the document at path.
func (h *Handler) Read(path string, opts formats.ReadOptions) (*tree.Taxonomy, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}
	defer file.Close()

	doc, err := xmlquery.Parse(file)
	if err != nil {
		return nil, errors.NewParse("PhyloXML", path, err.Error())
	}

	phylogeny := xmlquery.QuerySelector(doc, phylogenyQuery)
	if phylogeny == nil {
		return nil, errors.NewParse("PhyloXML", path, "document has no phylogeny element")
	}
	rootClade := childElement(phylogeny, "clade")
	if rootClade == nil {
		return nil, errors.NewParse("PhyloXML", path, "phylogeny has no root clade")
	}

	b := &builder{opts: opts, seen: make(map[string]bool)}
	if err := b.walk(rootClade, ""); err != nil {
		return nil, err
	}
	return tree.Build(b.nodes)
}

// Write is not supported; PhyloXML is a read-only source.
func (h *Handler) Write(_ *tree.Taxonomy, _ string) error {
	return errors.NewUnsupported("phyloxml export", "PhyloXML is read-only")
}

// builder flattens the clade hierarchy into tree nodes.
type builder struct {
	opts    formats.ReadOptions
	nodes   []*tree.Node
	seen    map[string]bool
	counter int
}

func (b *builder) walk(clade *xmlquery.Node, parent string) error {
	name := cladeName(clade)

	id := ""
	if taxonomy := childElement(clade, "taxonomy"); taxonomy != nil {
		id = childText(taxonomy, "id")
	}
	if id == "" {
		id = name
	}
	if id == "" || b.seen[id] {
		b.counter++
		id = fmt.Sprintf("clade-%d", b.counter)
	}
	b.seen[id] = true

	n := &tree.Node{ID: id, Name: name, Parent: parent}

	if taxonomy := childElement(clade, "taxonomy"); taxonomy != nil {
		if raw := childText(taxonomy, "rank"); raw != "" {
			parsed, err := rank.Parse(raw)
			if err != nil {
				if !b.opts.AllowUnknownRanks {
					return errors.Wrapf(err, "clade %q", id)
				}
				parsed = rank.Unspecified
				n.Attributes = map[string]string{"original_rank": raw}
			}
			n.Rank = parsed
		}
	}
	if length := childText(clade, "branch_length"); length != "" {
		if n.Attributes == nil {
			n.Attributes = make(map[string]string, 1)
		}
		n.Attributes["branch_length"] = length
	}
	b.nodes = append(b.nodes, n)

	for child := clade.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode && child.Data == "clade" {
			if err := b.walk(child, id); err != nil {
				return err
			}
		}
	}
	return nil
}

// cladeName prefers the taxonomy scientific name over the clade label.
func cladeName(clade *xmlquery.Node) string {
	if taxonomy := childElement(clade, "taxonomy"); taxonomy != nil {
		if name := childText(taxonomy, "scientific_name"); name != "" {
			return name
		}
	}
	return childText(clade, "name")
}

// childElement returns the first direct child element with the given
// local name, never descending into grandchildren.
func childElement(n *xmlquery.Node, name string) *xmlquery.Node {
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode && child.Data == name {
			return child
		}
	}
	return nil
}

// childText returns the trimmed text of the first direct child element
// with the given local name.
func childText(n *xmlquery.Node, name string) string {
	child := childElement(n, name)
	if child == nil {
		return ""
	}
	return strings.TrimSpace(child.InnerText())
}
