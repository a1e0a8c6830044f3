// Package graph holds the shared vocabulary of the taxonet property graph:
// node labels, relationship types, the taxonomic rank table and the edge
// records exchanged between modules. Everything else talks to the store in
// terms of these names, so they are defined exactly once.
package graph

import (
	"context"

	"github.com/osmoslab/taxonet/pkg/stores/neo4j"
)

// Node labels.
const (
	LabelTaxon       = "Taxon"
	LabelAgglomTaxon = "AgglomTaxon"
	LabelSample      = "Sample"
	LabelExperiment  = "Experiment"
	LabelProperty    = "Property"
	LabelAssociation = "Association"
	LabelNetwork     = "Network"
	LabelSet         = "Set"
)

// Relationship types.
const (
	RelBelongsTo     = "BELONGS_TO"
	RelFoundIn       = "FOUND_IN"
	RelHasProperty   = "HAS_PROPERTY"
	RelInExperiment  = "IN_EXPERIMENT"
	RelWithTaxon     = "WITH_TAXON"
	RelInNetwork     = "IN_NETWORK"
	RelInSet         = "IN_SET"
	RelGeneratedFrom = "GENERATED_FROM"
	RelHypergeom     = "HYPERGEOM"
	RelSpearman      = "SPEARMAN"
)

// BinTaxon is the reserved catch-all for filtered-out low-prevalence taxa.
// It never receives a taxonomy chain.
const BinTaxon = "Bin"

// Ranks lists the taxonomic levels from most specific to the root.
var Ranks = []string{
	"Species", "Genus", "Family", "Order", "Class", "Phylum", "Kingdom",
}

// RankRelations maps a rank label to the relationship type that chains an
// agglomerated taxon to that rank node.
var RankRelations = map[string]string{
	"Species": "IS_SPECIES",
	"Genus":   "IS_GENUS",
	"Family":  "IS_FAMILY",
	"Order":   "IS_ORDER",
	"Class":   "IS_CLASS",
	"Phylum":  "IS_PHYLUM",
	"Kingdom": "IS_KINGDOM",
}

// RankIndex returns the position of a rank in Ranks, or -1 when the rank is
// unknown. Labels are only ever taken from this table, never from input, so
// queries can splice them without parameterization.
func RankIndex(rank string) int {
	for i, r := range Ranks {
		if r == rank {
			return i
		}
	}

	return -1
}

// Edge is one co-occurrence edge as consumed from an inferred network or
// produced by a set-algebra query. Assocs carries the ids of the Association
// nodes the edge was resolved from, so results can be persisted as a Set.
type Edge struct {
	Source   string    `json:"source"`
	Target   string    `json:"target"`
	Networks []string  `json:"networks,omitempty"`
	Weights  []float64 `json:"weights,omitempty"`
	Assocs   []string  `json:"-"`
}

// Taxonomy maps a rank label to the taxonomic name at that rank. Missing or
// placeholder levels are simply absent.
type Taxonomy map[string]string

// Store is the slice of the neo4j client the modules depend on. The concrete
// client lives in pkg/stores/neo4j; tests substitute scripted fakes.
type Store interface {
	ExecCypher(ctx context.Context, cypher string, params map[string]any) (*neo4j.Result, error)
	Commit(ctx context.Context, statements []neo4j.Statement) ([]*neo4j.Result, error)
}
