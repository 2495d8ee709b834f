// Package rank defines the closed vocabulary of taxonomic ranks used to
// classify nodes in a taxonomy tree.
//
// A Rank is used instead of a free-form string to allow stricter
// type-checking: every rank a node can carry is one of the named
// variants below (all current NCBI ranks plus a number of zoological and
// botanical ranks), so downstream consumers never have to compare rank
// values with inconsistent capitalization, synonyms, or typos. The
// messiness of real-world nomenclature (classical-Latin spellings,
// historical synonyms) is isolated in the Parse table.
//
// The vocabulary is open for extension: future revisions may add ranks,
// so switches over Rank must carry a default arm rather than assume the
// set is exhaustive.
package rank

import (
	"fmt"
	"strings"

	"github.com/audy/taxonomy/core/errors"
)

// Rank identifies a discrete level in a taxonomic classification
// hierarchy, such as Genus or Species.
//
// Rank values are immutable and copyable; they are produced either by
// selecting a named constant or by Parse. The zero value is Unspecified.
//
// No total ordering is defined over Rank. Unspecified has no position in
// a coarser-to-finer ordering (much like a NaN breaks numeric ordering),
// so any comparison a consumer needs must be a separate partial-order
// function that treats Unspecified as incomparable.
type Rank uint8

// The named ranks, domain-level to individual-level. The set covers the
// mainstream Linnaean ranks, the intermediate "super-"/"infra-" forms,
// and lineage-specific ranks used for fish, Lepidoptera, and botanical
// nomenclature.
const (
	// Unspecified means no rank was assigned to a node.
	Unspecified Rank = iota
	Domain
	Subdomain
	Realm
	Subrealm
	Hyperkingdom
	Superkingdom
	Kingdom
	Subkingdom
	Infrakingdom
	Parvkingdom
	Superphylum
	Phylum
	Subphylum
	Infraphylum
	Microphylum
	Superclass
	Class
	Subclass
	Infraclass
	Parvclass
	Superdivision
	Division
	Subdivision
	Infradivision
	Superlegion
	Legion
	Sublegion
	Infralegion
	Supercohort
	Cohort
	Subcohort
	Infracohort
	Superorder
	Gigaorder
	Magnorder
	Grandorder
	Mirorder
	SeriesFish
	Order
	Nanorder
	Hypoorder
	Suborder
	Infraorder
	Parvorder
	Section
	Subsection
	Gigafamily
	Megafamily
	Grandfamily
	Hyperfamily
	Superfamily
	Epifamily
	SeriesLepidoptera
	GroupLepidoptera
	Family
	Subfamily
	Infrafamily
	Supertribe
	Tribe
	Subtribe
	Infratribe
	Genus
	Subgenus
	SeriesBotany
	SubseriesBotany
	SpeciesGroup
	SpeciesSubgroup
	Species
	Subspecies
	Varietas
	Subvarietas
	Forma
	Subforma
	Cultivar
	Breed
	Strain
	Individual

	// numRanks marks the end of the vocabulary; keep it last.
	numRanks
)

// canonicalNames maps every rank to its canonical lowercase English
// name. Lineage-specific ranks that share a bare name ("series") carry a
// parenthetical qualifier so the mapping stays invertible.
var canonicalNames = map[Rank]string{
	Unspecified:       "no rank",
	Domain:            "domain",
	Subdomain:         "subdomain",
	Realm:             "realm",
	Subrealm:          "subrealm",
	Hyperkingdom:      "hyperkingdom",
	Superkingdom:      "superkingdom",
	Kingdom:           "kingdom",
	Subkingdom:        "subkingdom",
	Infrakingdom:      "infrakingdom",
	Parvkingdom:       "parvkingdom",
	Superphylum:       "superphylum",
	Phylum:            "phylum",
	Subphylum:         "subphylum",
	Infraphylum:       "infraphylum",
	Microphylum:       "microphylum",
	Superclass:        "superclass",
	Class:             "class",
	Subclass:          "subclass",
	Infraclass:        "infraclass",
	Parvclass:         "parvclass",
	Superdivision:     "superdivision",
	Division:          "division",
	Subdivision:       "subdivision",
	Infradivision:     "infradivision",
	Superlegion:       "superlegion",
	Legion:            "legion",
	Sublegion:         "sublegion",
	Infralegion:       "infralegion",
	Supercohort:       "supercohort",
	Cohort:            "cohort",
	Subcohort:         "subcohort",
	Infracohort:       "infracohort",
	Superorder:        "superorder",
	Gigaorder:         "gigaorder",
	Magnorder:         "magnorder",
	Grandorder:        "grandorder",
	Mirorder:          "mirorder",
	SeriesFish:        "series (fish)",
	Order:             "order",
	Nanorder:          "nanorder",
	Hypoorder:         "hypoorder",
	Suborder:          "suborder",
	Infraorder:        "infraorder",
	Parvorder:         "parvorder",
	Section:           "section",
	Subsection:        "subsection",
	Gigafamily:        "gigafamily",
	Megafamily:        "megafamily",
	Grandfamily:       "grandfamily",
	Hyperfamily:       "hyperfamily",
	Superfamily:       "superfamily",
	Epifamily:         "epifamily",
	SeriesLepidoptera: "series (lepidoptera)",
	GroupLepidoptera:  "group (lepidoptera)",
	Family:            "family",
	Subfamily:         "subfamily",
	Infrafamily:       "infrafamily",
	Supertribe:        "supertribe",
	Tribe:             "tribe",
	Subtribe:          "subtribe",
	Infratribe:        "infratribe",
	Genus:             "genus",
	Subgenus:          "subgenus",
	SeriesBotany:      "series (botany)",
	SubseriesBotany:   "subseries (botany)",
	SpeciesGroup:      "species group",
	SpeciesSubgroup:   "species subgroup",
	Species:           "species",
	Subspecies:        "subspecies",
	Varietas:          "varietas",
	Subvarietas:       "subvarietas",
	Forma:             "forma",
	Subforma:          "subforma",
	Cultivar:          "cultivar",
	Breed:             "breed",
	Strain:            "strain",
	Individual:        "individual",
}

// ncbiNames maps the ranks the NCBI Taxonomy database models to the
// exact strings it uses. Every rank absent from this map (the "infra-",
// "super-", lineage-specific, and cultivar/strain/individual-level
// ranks, and Unspecified) renders as "no rank".
var ncbiNames = map[Rank]string{
	Superkingdom:    "superkingdom",
	Kingdom:         "kingdom",
	Subkingdom:      "subkingdom",
	Superphylum:     "superphylum",
	Phylum:          "phylum",
	Subphylum:       "subphylum",
	Superclass:      "superclass",
	Class:           "class",
	Subclass:        "subclass",
	Infraclass:      "infraclass",
	Cohort:          "cohort",
	Superorder:      "superorder",
	Order:           "order",
	Suborder:        "suborder",
	Infraorder:      "infraorder",
	Parvorder:       "parvorder",
	Superfamily:     "superfamily",
	Family:          "family",
	Subfamily:       "subfamily",
	Tribe:           "tribe",
	Subtribe:        "subtribe",
	Genus:           "genus",
	Subgenus:        "subgenus",
	SpeciesGroup:    "species group",
	SpeciesSubgroup: "species subgroup",
	Species:         "species",
	Subspecies:      "subspecies",
	Varietas:        "varietas",
	Forma:           "forma",
}

// synonyms maps historical and classical-Latin spellings to their rank.
// Most entries were pulled from the same sources the rank list itself
// was (https://en.wikipedia.org/wiki/Taxonomic_rank).
var synonyms = map[string]Rank{
	"regio":      Domain,
	"regnum":     Kingdom,
	"subregnum":  Subkingdom,
	"superphyla": Superphylum,
	"phyla":      Phylum,
	"divisio":    Phylum,
	"subphyla":   Subphylum,
	"subdivisio": Subphylum,
	"classis":    Class,
	"subclassis": Subclass,
	"ordo":       Order,
	"subordo":    Suborder,
	"sectio":     Section,
	"familia":    Family,
	"tribus":     Tribe,
	"subtribus":  Subtribe,
	"genera":     Genus,
	"variety":    Varietas,
	"subvariety": Subvarietas,
	"form":       Forma,
	"subform":    Subforma,
}

// spellings is the complete parse table: every canonical name plus every
// synonym, keyed by normalized (lowercase) spelling. Built once at
// package load; queried by exact-match lookup only.
var spellings = func() map[string]Rank {
	m := make(map[string]Rank, len(canonicalNames)+len(synonyms))
	for r, name := range canonicalNames {
		m[name] = r
	}
	for s, r := range synonyms {
		m[s] = r
	}
	return m
}()

// UnrecognizedRankError is returned by Parse when the input matches no
// entry in the spelling table. Rank holds the offending input exactly as
// given (untrimmed, original case) for diagnostics.
type UnrecognizedRankError struct {
	Rank string
}

func (e *UnrecognizedRankError) Error() string {
	return fmt.Sprintf("unrecognized taxonomic rank: %q", e.Rank)
}

func (e *UnrecognizedRankError) Unwrap() error {
	return errors.ErrInvalidInput
}

// Parse converts an external rank string to a Rank. Surrounding
// whitespace is trimmed and matching is case-insensitive, but otherwise
// exact: no fuzzy or prefix matching. On failure it returns Unspecified
// and an *UnrecognizedRankError carrying the original input.
func Parse(s string) (Rank, error) {
	if r, ok := spellings[strings.ToLower(strings.TrimSpace(s))]; ok {
		return r, nil
	}
	return Unspecified, &UnrecognizedRankError{Rank: s}
}

// NCBIName returns the rank string the NCBI taxonomy database uses for
// this rank. Ranks NCBI does not model, and Unspecified, render as the
// literal "no rank". Total: never fails, never returns "".
func (r Rank) NCBIName() string {
	if name, ok := ncbiNames[r]; ok {
		return name
	}
	return "no rank"
}

// String returns the canonical lowercase name of the rank. Unlike
// NCBIName it is injective over the named ranks: distinct ranks render
// as distinct strings, and Parse(r.String()) == r. Unspecified renders
// as "no rank". Unlisted future values render as "unknown".
func (r Rank) String() string {
	if name, ok := canonicalNames[r]; ok {
		return name
	}
	return "unknown"
}

// MarshalText encodes the rank as its canonical name.
func (r Rank) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText decodes a rank from any spelling Parse accepts.
func (r *Rank) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// All returns every named rank, Unspecified included, in declaration
// order. The slice is freshly allocated; callers may modify it. The
// declaration order carries no specificity semantics.
func All() []Rank {
	ranks := make([]Rank, 0, numRanks)
	for r := Unspecified; r < numRanks; r++ {
		ranks = append(ranks, r)
	}
	return ranks
}
