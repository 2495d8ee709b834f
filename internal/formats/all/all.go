// Package all registers every built-in format handler. Import it for
// side effects wherever the full registry is wanted:
//
//	import _ "github.com/audy/taxonomy/internal/formats/all"
package all

import (
	_ "github.com/audy/taxonomy/internal/formats/jsontree"
	_ "github.com/audy/taxonomy/internal/formats/ncbi"
	_ "github.com/audy/taxonomy/internal/formats/newick"
	_ "github.com/audy/taxonomy/internal/formats/phyloxml"
)
