// Package ncbi reads and writes NCBI taxdump dumps (nodes.dmp and
// names.dmp). Dumps may be an unpacked directory, a taxdump .tar.gz
// archive, or a directory whose member files are xz-compressed.
package ncbi

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/audy/taxonomy/core/tree"
	"github.com/audy/taxonomy/internal/formats"
)

// Handler implements formats.Handler for NCBI taxdump dumps.
type Handler struct{}

func init() {
	formats.Register(&Handler{})
}

// Name returns the registry key.
func (h *Handler) Name() string { return "ncbi" }

// Detect recognizes a directory holding nodes.dmp (optionally
// xz-compressed) or a .tar.gz archive containing one.
func (h *Handler) Detect(path string) (*formats.DetectResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return &formats.DetectResult{
			Detected: false,
			Reason:   fmt.Sprintf("cannot stat: %v", err),
		}, nil
	}

	if info.IsDir() {
		for _, name := range []string{"nodes.dmp", "nodes.dmp.xz"} {
			if _, err := os.Stat(filepath.Join(path, name)); err == nil {
				return &formats.DetectResult{
					Detected: true,
					Format:   "ncbi",
					Reason:   name + " found in directory",
				}, nil
			}
		}
		return &formats.DetectResult{
			Detected: false,
			Reason:   "directory has no nodes.dmp",
		}, nil
	}

	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".tar.gz") || strings.HasSuffix(lower, ".tgz") {
		ok, err := archiveHasNodes(path)
		if err != nil {
			return &formats.DetectResult{
				Detected: false,
				Reason:   fmt.Sprintf("cannot read archive: %v", err),
			}, nil
		}
		if ok {
			return &formats.DetectResult{
				Detected: true,
				Format:   "ncbi",
				Reason:   "taxdump archive contains nodes.dmp",
			}, nil
		}
	}
	return &formats.DetectResult{
		Detected: false,
		Reason:   "not an NCBI taxdump",
	}, nil
}

// Read parses a taxdump into a taxonomy.
func (h *Handler) Read(path string, opts formats.ReadOptions) (*tree.Taxonomy, error) {
	return readDump(path, opts)
}

// Write emits nodes.dmp and names.dmp into the directory at path,
// creating it if needed. Ranks are rendered as their NCBI names, so
// ranks NCBI does not model come out as "no rank".
func (h *Handler) Write(t *tree.Taxonomy, path string) error {
	return writeDump(t, path)
}
