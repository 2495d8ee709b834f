package newick

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/audy/taxonomy/core/rank"
	"github.com/audy/taxonomy/internal/formats"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		nodes int
		root  string
	}{
		{
			name:  "leaf only",
			input: "A;",
			nodes: 1,
			root:  "A",
		},
		{
			name:  "simple cherry",
			input: "(A,B)C;",
			nodes: 3,
			root:  "C",
		},
		{
			name:  "branch lengths",
			input: "(A:0.1,B:0.2)C:0.0;",
			nodes: 3,
			root:  "C",
		},
		{
			name:  "nested with unlabeled internals",
			input: "((A,B),(C,D));",
			nodes: 7,
			root:  "node-1",
		},
		{
			name:  "quoted label",
			input: "('Escherichia coli',B)root;",
			nodes: 3,
			root:  "root",
		},
		{
			name:  "whitespace tolerated",
			input: "( A , B ) C ;",
			nodes: 3,
			root:  "C",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tax, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse(%q) failed: %v", tt.input, err)
			}
			if tax.Len() != tt.nodes {
				t.Errorf("node count = %d, want %d", tax.Len(), tt.nodes)
			}
			if tax.Root().ID != tt.root {
				t.Errorf("root ID = %q, want %q", tax.Root().ID, tt.root)
			}
		})
	}
}

func TestParseDetails(t *testing.T) {
	tax, err := Parse("('E. coli':0.5,Shigella:0.3)Enterobacteriaceae;")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	coli := tax.FindByName("E. coli")
	if len(coli) != 1 {
		t.Fatalf("FindByName(E. coli) = %v, want one node", coli)
	}
	if coli[0].Attributes["branch_length"] != "0.5" {
		t.Errorf("branch_length = %q, want 0.5", coli[0].Attributes["branch_length"])
	}
	// Newick carries no rank information.
	if coli[0].Rank != rank.Unspecified {
		t.Errorf("rank = %v, want Unspecified", coli[0].Rank)
	}
}

func TestParseErrors(t *testing.T) {
	inputs := []string{
		"",
		"(A,B",
		"(A,B)C",     // missing terminator
		"A:abc;",     // non-numeric branch length
		"(A,B));",    // unbalanced
	}
	for _, input := range inputs {
		if _, err := Parse(input); err == nil {
			t.Errorf("Parse(%q) succeeded, want error", input)
		}
	}
}

func TestParseDuplicateLabels(t *testing.T) {
	// Duplicate labels are legal Newick; the second occurrence gets a
	// synthetic ID but keeps its name.
	tax, err := Parse("(A,A)B;")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if tax.Len() != 3 {
		t.Fatalf("node count = %d, want 3", tax.Len())
	}
	if got := len(tax.FindByName("A")); got != 2 {
		t.Errorf("FindByName(A) found %d nodes, want 2", got)
	}
}

func TestRenderRoundTrip(t *testing.T) {
	inputs := []string{
		"(A:0.1,B:0.2)C;",
		"((A,B)E,(C,D)F)G;",
		"('name with spaces',B)C;",
	}
	for _, input := range inputs {
		tax, err := Parse(input)
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", input, err)
		}
		rendered, err := Render(tax)
		if err != nil {
			t.Fatalf("Render failed: %v", err)
		}
		again, err := Parse(rendered)
		if err != nil {
			t.Fatalf("Parse(Render()) = %q failed: %v", rendered, err)
		}
		if again.Len() != tax.Len() {
			t.Errorf("round trip of %q changed node count: %d -> %d", input, tax.Len(), again.Len())
		}
	}
}

func TestQuoteLabel(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"A", "A"},
		{"E. coli", "'E. coli'"},
		{"a(b)", "'a(b)'"},
		{"it's", "'it''s'"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := quoteLabel(tt.in); got != tt.want {
			t.Errorf("quoteLabel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHandlerDetect(t *testing.T) {
	h := &Handler{}
	dir := t.TempDir()

	byExt := filepath.Join(dir, "tree.nwk")
	if err := os.WriteFile(byExt, []byte("(A,B);"), 0644); err != nil {
		t.Fatal(err)
	}
	result, err := h.Detect(byExt)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if !result.Detected {
		t.Errorf("Detect missed .nwk file: %s", result.Reason)
	}

	byContent := filepath.Join(dir, "tree.txt")
	if err := os.WriteFile(byContent, []byte("(A,(B,C))D;"), 0644); err != nil {
		t.Fatal(err)
	}
	result, err = h.Detect(byContent)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if !result.Detected {
		t.Errorf("Detect missed Newick content: %s", result.Reason)
	}

	other := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(other, []byte("just some text"), 0644); err != nil {
		t.Fatal(err)
	}
	result, err = h.Detect(other)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if result.Detected {
		t.Error("Detect claimed a plain text file")
	}
}

func TestHandlerReadWrite(t *testing.T) {
	h := &Handler{}
	dir := t.TempDir()

	in := filepath.Join(dir, "in.nwk")
	if err := os.WriteFile(in, []byte("(A:1.0,B:2.0)C;"), 0644); err != nil {
		t.Fatal(err)
	}
	tax, err := h.Read(in, formats.ReadOptions{})
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	out := filepath.Join(dir, "out.nwk")
	if err := h.Write(tax, out); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	again, err := h.Read(out, formats.ReadOptions{})
	if err != nil {
		t.Fatalf("re-Read failed: %v", err)
	}
	if again.Len() != 3 {
		t.Errorf("round trip node count = %d, want 3", again.Len())
	}
}
