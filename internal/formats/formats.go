// Package formats defines the handler interface and registry for the
// external taxonomy conventions the toolkit can read and write.
//
// Each format lives in its own subpackage and registers itself on
// import; the all subpackage exists solely to pull every handler in.
package formats

import (
	"sort"
	"sync"

	"github.com/audy/taxonomy/core/errors"
	"github.com/audy/taxonomy/core/tree"
)

// DetectResult reports whether a path looks like a handler's format.
type DetectResult struct {
	Detected bool
	Format   string
	Reason   string
}

// ReadOptions controls how readers treat imperfect input.
type ReadOptions struct {
	// AllowUnknownRanks makes readers map rank strings that fail to
	// parse to rank.Unspecified instead of aborting the read. The
	// original spelling is preserved in the node's Attributes under
	// "original_rank" so nothing is lost.
	AllowUnknownRanks bool
}

// Handler reads and writes one external taxonomy convention.
type Handler interface {
	// Name is the registry key, e.g. "ncbi" or "newick".
	Name() string

	// Detect reports whether the path looks like this format.
	Detect(path string) (*DetectResult, error)

	// Read parses the file (or directory) at path into a taxonomy.
	Read(path string, opts ReadOptions) (*tree.Taxonomy, error)

	// Write renders the taxonomy to path. Handlers that cannot emit
	// their format return an UnsupportedError.
	Write(t *tree.Taxonomy, path string) error
}

var (
	mu       sync.RWMutex
	handlers = make(map[string]Handler)
)

// Register adds a handler to the registry. Called from handler package
// init functions; a duplicate name panics because it is a programming
// error, not a runtime condition.
func Register(h Handler) {
	mu.Lock()
	defer mu.Unlock()
	if _, dup := handlers[h.Name()]; dup {
		panic("formats: duplicate handler " + h.Name())
	}
	handlers[h.Name()] = h
}

// Get returns the handler registered under name.
func Get(name string) (Handler, error) {
	mu.RLock()
	defer mu.RUnlock()
	h, ok := handlers[name]
	if !ok {
		return nil, errors.NewNotFound("format handler", name)
	}
	return h, nil
}

// Names returns the registered handler names, sorted.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(handlers))
	for name := range handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Detect runs every registered handler's detection against path and
// returns the first (in name order) that claims it.
func Detect(path string) (Handler, *DetectResult, error) {
	for _, name := range Names() {
		h, err := Get(name)
		if err != nil {
			return nil, nil, err
		}
		result, err := h.Detect(path)
		if err != nil {
			return nil, nil, err
		}
		if result.Detected {
			return h, result, nil
		}
	}
	return nil, nil, errors.NewUnsupported("format", "no handler recognizes "+path)
}
