// Package jsontree reads and writes the toolkit's two JSON taxonomy
// flavors: a nested "tree" document (each node carries its children)
// and a flat "node_link" document (a node array plus child-to-parent
// link pairs). Readers accept either; the writer emits the nested
// flavor unless asked otherwise.
package jsontree

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/audy/taxonomy/core/tree"
	"github.com/audy/taxonomy/internal/formats"
)

// Handler implements formats.Handler for JSON taxonomies.
type Handler struct{}

func init() {
	formats.Register(&Handler{})
}

// Name returns the registry key.
func (h *Handler) Name() string { return "json" }

// Detect recognizes .json files that look like either JSON flavor.
func (h *Handler) Detect(path string) (*formats.DetectResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return &formats.DetectResult{
			Detected: false,
			Reason:   fmt.Sprintf("cannot stat: %v", err),
		}, nil
	}
	if info.IsDir() || strings.ToLower(filepath.Ext(path)) != ".json" {
		return &formats.DetectResult{
			Detected: false,
			Reason:   "not a .json file",
		}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return &formats.DetectResult{
			Detected: false,
			Reason:   fmt.Sprintf("cannot read: %v", err),
		}, nil
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return &formats.DetectResult{
			Detected: false,
			Reason:   "not a JSON object",
		}, nil
	}
	if isNodeLink(probe) || isNestedTree(probe) {
		return &formats.DetectResult{
			Detected: true,
			Format:   "json",
			Reason:   "JSON taxonomy document detected",
		}, nil
	}
	return &formats.DetectResult{
		Detected: false,
		Reason:   "JSON object is not a taxonomy document",
	}, nil
}

// Read parses either JSON flavor from the file at path.
func (h *Handler) Read(path string, opts formats.ReadOptions) (*tree.Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Parse(data, opts)
}

// Write renders the taxonomy as a nested-tree JSON document at path.
func (h *Handler) Write(t *tree.Taxonomy, path string) error {
	data, err := RenderTree(t)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func isNodeLink(probe map[string]json.RawMessage) bool {
	_, hasNodes := probe["nodes"]
	_, hasLinks := probe["links"]
	return hasNodes && hasLinks
}

func isNestedTree(probe map[string]json.RawMessage) bool {
	_, hasID := probe["id"]
	_, hasName := probe["name"]
	return hasID && hasName
}

// Parse decodes either JSON flavor, sniffing by top-level keys.
func Parse(data []byte, opts formats.ReadOptions) (*tree.Taxonomy, error) {
	var probe map[string]json.RawMessage
	decoder := json.NewDecoder(bytes.NewReader(data))
	if err := decoder.Decode(&probe); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if isNodeLink(probe) {
		return parseNodeLink(data, opts)
	}
	return parseNestedTree(data, opts)
}
