// Package newick reads and writes Newick phylogenetic trees.
//
// Newick carries topology, node labels, and branch lengths but no rank
// information, so every node read from it has rank.Unspecified. Branch
// lengths survive round trips through the node attribute
// "branch_length".
package newick

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/audy/taxonomy/core/tree"
	"github.com/audy/taxonomy/internal/formats"
)

// Handler implements formats.Handler for Newick trees.
type Handler struct{}

func init() {
	formats.Register(&Handler{})
}

// Name returns the registry key.
func (h *Handler) Name() string { return "newick" }

// Detect recognizes the usual Newick extensions, or any file whose
// content starts with "(" and ends with ";".
func (h *Handler) Detect(path string) (*formats.DetectResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return &formats.DetectResult{
			Detected: false,
			Reason:   fmt.Sprintf("cannot stat: %v", err),
		}, nil
	}
	if info.IsDir() {
		return &formats.DetectResult{
			Detected: false,
			Reason:   "path is a directory, not a file",
		}, nil
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".nwk", ".newick", ".nh", ".tree":
		return &formats.DetectResult{
			Detected: true,
			Format:   "newick",
			Reason:   "Newick file extension detected",
		}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return &formats.DetectResult{
			Detected: false,
			Reason:   fmt.Sprintf("cannot read: %v", err),
		}, nil
	}
	content := strings.TrimSpace(string(data))
	if strings.HasPrefix(content, "(") && strings.HasSuffix(content, ";") {
		return &formats.DetectResult{
			Detected: true,
			Format:   "newick",
			Reason:   "Newick tree structure detected",
		}, nil
	}
	return &formats.DetectResult{
		Detected: false,
		Reason:   "not a Newick file",
	}, nil
}

// Read parses the Newick file at path into a taxonomy.
func (h *Handler) Read(path string, _ formats.ReadOptions) (*tree.Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Parse(string(data))
}

// Write renders the taxonomy as a single Newick tree at path.
func (h *Handler) Write(t *tree.Taxonomy, path string) error {
	rendered, err := Render(t)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(rendered), 0644)
}
