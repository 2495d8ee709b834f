package ncbi

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/audy/taxonomy/core/errors"
	"github.com/audy/taxonomy/core/tree"
)

// writeDump renders the taxonomy as nodes.dmp and names.dmp in the
// directory at path. Only the first three nodes.dmp columns carry data;
// the remaining columns are emitted empty for layout compatibility.
func writeDump(t *tree.Taxonomy, path string) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		return errors.NewIO("create", path, err)
	}

	nodes := t.Nodes()

	nodesPath := filepath.Join(path, "nodes.dmp")
	nodesFile, err := os.Create(nodesPath)
	if err != nil {
		return errors.NewIO("create", nodesPath, err)
	}
	defer nodesFile.Close()

	w := bufio.NewWriter(nodesFile)
	for _, n := range nodes {
		parent := n.Parent
		if parent == "" {
			// NCBI convention: the root is its own parent.
			parent = n.ID
		}
		fmt.Fprintf(w, "%s\t|\t%s\t|\t%s\t|\t\t|\n", n.ID, parent, n.Rank.NCBIName())
	}
	if err := w.Flush(); err != nil {
		return errors.NewIO("write", nodesPath, err)
	}

	namesPath := filepath.Join(path, "names.dmp")
	namesFile, err := os.Create(namesPath)
	if err != nil {
		return errors.NewIO("create", namesPath, err)
	}
	defer namesFile.Close()

	w = bufio.NewWriter(namesFile)
	for _, n := range nodes {
		if n.Name == "" {
			continue
		}
		fmt.Fprintf(w, "%s\t|\t%s\t|\t\t|\tscientific name\t|\n", n.ID, n.Name)
	}
	if err := w.Flush(); err != nil {
		return errors.NewIO("write", namesPath, err)
	}
	return nil
}
