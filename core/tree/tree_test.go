package tree

import (
	"testing"

	"github.com/audy/taxonomy/core/errors"
	"github.com/audy/taxonomy/core/rank"
)

// testNodes is a small bacterial taxonomy used across tests.
func testNodes() []*Node {
	return []*Node{
		{ID: "1", Name: "root", Rank: rank.Unspecified},
		{ID: "2", Name: "Bacteria", Rank: rank.Superkingdom, Parent: "1"},
		{ID: "1224", Name: "Pseudomonadota", Rank: rank.Phylum, Parent: "2"},
		{ID: "1236", Name: "Gammaproteobacteria", Rank: rank.Class, Parent: "1224"},
		{ID: "91347", Name: "Enterobacterales", Rank: rank.Order, Parent: "1236"},
		{ID: "543", Name: "Enterobacteriaceae", Rank: rank.Family, Parent: "91347"},
		{ID: "561", Name: "Escherichia", Rank: rank.Genus, Parent: "543"},
		{ID: "562", Name: "Escherichia coli", Rank: rank.Species, Parent: "561"},
		{ID: "620", Name: "Shigella", Rank: rank.Genus, Parent: "543"},
	}
}

func mustBuild(t *testing.T) *Taxonomy {
	t.Helper()
	tax, err := Build(testNodes())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return tax
}

func TestBuild(t *testing.T) {
	tax := mustBuild(t)
	if tax.Len() != 9 {
		t.Errorf("Len() = %d, want 9", tax.Len())
	}
	if tax.Root().ID != "1" {
		t.Errorf("Root().ID = %q, want %q", tax.Root().ID, "1")
	}
}

func TestBuildRejectsBrokenTrees(t *testing.T) {
	tests := []struct {
		name  string
		nodes []*Node
	}{
		{
			name: "duplicate ID",
			nodes: []*Node{
				{ID: "1", Name: "root"},
				{ID: "2", Name: "a", Parent: "1"},
				{ID: "2", Name: "b", Parent: "1"},
			},
		},
		{
			name: "two roots",
			nodes: []*Node{
				{ID: "1", Name: "root"},
				{ID: "2", Name: "another root"},
			},
		},
		{
			name: "missing parent",
			nodes: []*Node{
				{ID: "1", Name: "root"},
				{ID: "2", Name: "orphan", Parent: "99"},
			},
		},
		{
			name: "cycle",
			nodes: []*Node{
				{ID: "1", Name: "root"},
				{ID: "2", Name: "a", Parent: "3"},
				{ID: "3", Name: "b", Parent: "2"},
			},
		},
		{
			name: "empty ID",
			nodes: []*Node{
				{ID: "", Name: "root"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Build(tt.nodes); err == nil {
				t.Error("Build succeeded, want error")
			}
		})
	}
}

func TestNodeLookup(t *testing.T) {
	tax := mustBuild(t)

	n, err := tax.Node("562")
	if err != nil {
		t.Fatalf("Node(562) failed: %v", err)
	}
	if n.Name != "Escherichia coli" || n.Rank != rank.Species {
		t.Errorf("Node(562) = %q (%v), want Escherichia coli (species)", n.Name, n.Rank)
	}

	_, err = tax.Node("99999")
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("Node(99999) error = %v, want ErrNotFound", err)
	}
}

func TestParentAndChildren(t *testing.T) {
	tax := mustBuild(t)

	parent, err := tax.Parent("562")
	if err != nil {
		t.Fatalf("Parent(562) failed: %v", err)
	}
	if parent.ID != "561" {
		t.Errorf("Parent(562).ID = %q, want 561", parent.ID)
	}

	// The root has no parent.
	parent, err = tax.Parent("1")
	if err != nil {
		t.Fatalf("Parent(1) failed: %v", err)
	}
	if parent != nil {
		t.Errorf("Parent(1) = %v, want nil", parent)
	}

	children, err := tax.Children("543")
	if err != nil {
		t.Fatalf("Children(543) failed: %v", err)
	}
	if len(children) != 2 || children[0].ID != "561" || children[1].ID != "620" {
		t.Errorf("Children(543) = %v, want [561 620]", children)
	}
}

func TestLineage(t *testing.T) {
	tax := mustBuild(t)

	lineage, err := tax.Lineage("562")
	if err != nil {
		t.Fatalf("Lineage(562) failed: %v", err)
	}
	want := []string{"562", "561", "543", "91347", "1236", "1224", "2", "1"}
	if len(lineage) != len(want) {
		t.Fatalf("Lineage(562) has %d nodes, want %d", len(lineage), len(want))
	}
	for i, n := range lineage {
		if n.ID != want[i] {
			t.Errorf("lineage[%d].ID = %q, want %q", i, n.ID, want[i])
		}
	}
}

func TestLCA(t *testing.T) {
	tax := mustBuild(t)

	tests := []struct {
		a, b, want string
	}{
		{"562", "620", "543"},  // species vs sibling genus -> family
		{"562", "561", "561"},  // node vs own ancestor -> the ancestor
		{"561", "562", "561"},  // symmetric
		{"562", "562", "562"},  // self
		{"2", "562", "2"},      // deep vs shallow
	}
	for _, tt := range tests {
		lca, err := tax.LCA(tt.a, tt.b)
		if err != nil {
			t.Errorf("LCA(%s, %s) failed: %v", tt.a, tt.b, err)
			continue
		}
		if lca.ID != tt.want {
			t.Errorf("LCA(%s, %s) = %s, want %s", tt.a, tt.b, lca.ID, tt.want)
		}
	}
}

func TestSubtree(t *testing.T) {
	tax := mustBuild(t)

	ids, err := tax.Subtree("543")
	if err != nil {
		t.Fatalf("Subtree(543) failed: %v", err)
	}
	want := []string{"543", "561", "562", "620"}
	if len(ids) != len(want) {
		t.Fatalf("Subtree(543) = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("Subtree(543)[%d] = %q, want %q", i, ids[i], want[i])
		}
	}
}

func TestFindByNameAndRank(t *testing.T) {
	tax := mustBuild(t)

	byName := tax.FindByName("Shigella")
	if len(byName) != 1 || byName[0].ID != "620" {
		t.Errorf("FindByName(Shigella) = %v, want [620]", byName)
	}
	if got := tax.FindByName("Martians"); len(got) != 0 {
		t.Errorf("FindByName(Martians) = %v, want empty", got)
	}

	genera := tax.FindByRank(rank.Genus)
	if len(genera) != 2 || genera[0].ID != "561" || genera[1].ID != "620" {
		t.Errorf("FindByRank(Genus) = %v, want [561 620]", genera)
	}
}

func TestAdd(t *testing.T) {
	tax := mustBuild(t)

	err := tax.Add(&Node{ID: "623", Name: "Shigella flexneri", Rank: rank.Species, Parent: "620"})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	children, err := tax.Children("620")
	if err != nil {
		t.Fatalf("Children(620) failed: %v", err)
	}
	if len(children) != 1 || children[0].ID != "623" {
		t.Errorf("Children(620) = %v, want [623]", children)
	}

	if err := tax.Add(&Node{ID: "623", Name: "dup", Parent: "620"}); !errors.Is(err, errors.ErrAlreadyExists) {
		t.Errorf("duplicate Add error = %v, want ErrAlreadyExists", err)
	}
	if err := tax.Add(&Node{ID: "999", Name: "orphan", Parent: "nope"}); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("orphan Add error = %v, want ErrNotFound", err)
	}
	if err := tax.Add(&Node{ID: "998", Name: "second root"}); err == nil {
		t.Error("Add of a second root succeeded, want error")
	}
}

func TestRemoveReparentsChildren(t *testing.T) {
	tax := mustBuild(t)

	// Removing the genus Escherichia should hoist E. coli to the family.
	if err := tax.Remove("561"); err != nil {
		t.Fatalf("Remove(561) failed: %v", err)
	}
	parent, err := tax.Parent("562")
	if err != nil {
		t.Fatalf("Parent(562) failed: %v", err)
	}
	if parent.ID != "543" {
		t.Errorf("Parent(562).ID = %q after removal, want 543", parent.ID)
	}
	if err := tax.Validate(); err != nil {
		t.Errorf("Validate after Remove failed: %v", err)
	}

	if err := tax.Remove("1"); err == nil {
		t.Error("Remove(root) succeeded, want error")
	}
}

func TestPruneKeep(t *testing.T) {
	tax := mustBuild(t)

	pruned, err := tax.PruneKeep([]string{"562"})
	if err != nil {
		t.Fatalf("PruneKeep failed: %v", err)
	}
	// The full lineage survives, the Shigella branch does not.
	if pruned.Len() != 8 {
		t.Errorf("pruned.Len() = %d, want 8", pruned.Len())
	}
	if _, err := pruned.Node("620"); !errors.Is(err, errors.ErrNotFound) {
		t.Error("Shigella survived PruneKeep")
	}
	if err := pruned.Validate(); err != nil {
		t.Errorf("pruned taxonomy invalid: %v", err)
	}

	// Pruning never aliases node state with the source taxonomy.
	n, _ := pruned.Node("562")
	n.Name = "mutated"
	orig, _ := tax.Node("562")
	if orig.Name != "Escherichia coli" {
		t.Error("PruneKeep shares node state with the source")
	}
}

func TestPruneRemove(t *testing.T) {
	tax := mustBuild(t)

	pruned, err := tax.PruneRemove([]string{"561"})
	if err != nil {
		t.Fatalf("PruneRemove failed: %v", err)
	}
	if _, err := pruned.Node("562"); !errors.Is(err, errors.ErrNotFound) {
		t.Error("descendant of removed node survived PruneRemove")
	}
	if _, err := pruned.Node("620"); err != nil {
		t.Errorf("sibling branch lost by PruneRemove: %v", err)
	}
	if err := pruned.Validate(); err != nil {
		t.Errorf("pruned taxonomy invalid: %v", err)
	}
}
