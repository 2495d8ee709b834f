package newick

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/audy/taxonomy/core/errors"
	"github.com/audy/taxonomy/core/tree"
)

// cladeGrammar is the participle grammar for a Newick clade.
// Examples: "A", "A:0.1", "(A,B)", "(A:0.1,B:0.2)C:0.3", "('quoted name',B)"
//
//nolint:govet // participle grammar tags are not standard struct tags
type cladeGrammar struct {
	Children []*cladeGrammar `parser:"( '(' @@ ( ',' @@ )* ')' )?"`
	Name     string          `parser:"( @Quoted | @Label )?"`
	Length   *string         `parser:"( ':' @Label )?"`
}

//nolint:govet // participle grammar tags are not standard struct tags
type treeGrammar struct {
	Root *cladeGrammar `parser:"@@ ';'"`
}

// newickLexer tokenizes Newick text. Labels are any run free of
// structural characters; quoted labels may contain them, with ''
// escaping a literal quote.
var newickLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Quoted", Pattern: `'(?:[^']|'')*'`},
	{Name: "Label", Pattern: `[^\s(),:;']+`},
	{Name: "Punct", Pattern: `[(),:;]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var newickParser = participle.MustBuild[treeGrammar](
	participle.Lexer(newickLexer),
	participle.Elide("Whitespace"),
)

// Parse parses Newick text into a taxonomy. Unlabeled clades get
// synthetic IDs ("node-1", "node-2", ...) in depth-first order.
func Parse(text string) (*tree.Taxonomy, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.NewParse("Newick", "", "empty tree")
	}

	parsed, err := newickParser.ParseString("", text)
	if err != nil {
		return nil, errors.NewParse("Newick", "", err.Error())
	}

	b := &builder{seen: make(map[string]bool)}
	if err := b.walk(parsed.Root, ""); err != nil {
		return nil, err
	}
	return tree.Build(b.nodes)
}

// builder assigns IDs and flattens the clade tree.
type builder struct {
	nodes   []*tree.Node
	seen    map[string]bool
	counter int
}

func (b *builder) walk(c *cladeGrammar, parent string) error {
	name := unquoteLabel(c.Name)

	id := name
	if id == "" || b.seen[id] {
		b.counter++
		id = fmt.Sprintf("node-%d", b.counter)
	}
	b.seen[id] = true

	n := &tree.Node{ID: id, Name: name, Parent: parent}
	if c.Length != nil {
		if _, err := strconv.ParseFloat(*c.Length, 64); err != nil {
			return errors.NewParse("Newick", "", "invalid branch length "+strconv.Quote(*c.Length))
		}
		n.Attributes = map[string]string{"branch_length": *c.Length}
	}
	b.nodes = append(b.nodes, n)

	for _, child := range c.Children {
		if err := b.walk(child, id); err != nil {
			return err
		}
	}
	return nil
}

// Render renders the taxonomy as a Newick string, terminated by ";".
func Render(t *tree.Taxonomy) (string, error) {
	root := t.Root()
	if root == nil {
		return "", errors.NewValidation("taxonomy", "cannot render an empty taxonomy")
	}
	var sb strings.Builder
	if err := renderClade(t, root, &sb); err != nil {
		return "", err
	}
	sb.WriteString(";")
	return sb.String(), nil
}

func renderClade(t *tree.Taxonomy, n *tree.Node, sb *strings.Builder) error {
	children, err := t.Children(n.ID)
	if err != nil {
		return err
	}
	if len(children) > 0 {
		sb.WriteString("(")
		for i, child := range children {
			if i > 0 {
				sb.WriteString(",")
			}
			if err := renderClade(t, child, sb); err != nil {
				return err
			}
		}
		sb.WriteString(")")
	}
	sb.WriteString(quoteLabel(n.Name))
	if length := n.Attributes["branch_length"]; length != "" {
		sb.WriteString(":")
		sb.WriteString(length)
	}
	return nil
}

// unquoteLabel strips surrounding single quotes and unescapes '' pairs.
func unquoteLabel(label string) string {
	if len(label) >= 2 && strings.HasPrefix(label, "'") && strings.HasSuffix(label, "'") {
		return strings.ReplaceAll(label[1:len(label)-1], "''", "'")
	}
	return label
}

// quoteLabel quotes a label when it contains structural characters or
// whitespace; bare labels pass through unchanged.
func quoteLabel(label string) string {
	if label == "" {
		return ""
	}
	if strings.ContainsAny(label, "(),:;' \t\n") {
		return "'" + strings.ReplaceAll(label, "'", "''") + "'"
	}
	return label
}
