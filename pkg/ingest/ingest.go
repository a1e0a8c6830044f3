// Package ingest upserts taxa, samples, observations and inferred networks
// into the shared property graph. Every upsert is idempotent: identities are
// checked with MERGE so re-ingesting the same table leaves the store
// unchanged. A failed item is logged and skipped; prior writes in the same
// call are not rolled back.
package ingest

import (
	"context"
	"fmt"
	"strconv"
	"unicode"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/osmoslab/taxonet/pkg/graph"
	"github.com/osmoslab/taxonet/pkg/metrics"
	"github.com/osmoslab/taxonet/pkg/stores/neo4j"
)

type Ingestor struct {
	store graph.Store
}

func New(store graph.Store) *Ingestor {
	return &Ingestor{store: store}
}

// UpsertExperiment ensures an Experiment node exists.
func (ing *Ingestor) UpsertExperiment(ctx context.Context, name string) error {
	_, err := ing.store.ExecCypher(
		ctx,
		"MERGE (e:Experiment {name: $name})",
		map[string]any{"name": name},
	)

	if err != nil {
		return fmt.Errorf("failed to upsert experiment %s: %w", name, err)
	}

	metrics.UpsertedNodes.WithLabelValues(graph.LabelExperiment).Inc()
	return nil
}

// UpsertTaxon creates the Taxon node and walks its taxonomy chain from the
// most specific rank down, creating rank nodes only when absent and linking
// consecutive ranks (and the taxon itself) with BELONGS_TO. Rank levels with
// fewer than two alphabetic characters are placeholders and are skipped. The
// reserved "Bin" taxon never receives a chain.
func (ing *Ingestor) UpsertTaxon(
	ctx context.Context, name string, taxonomy graph.Taxonomy,
) error {
	statements := []neo4j.Statement{{
		Cypher: "MERGE (t:Taxon {name: $name})",
		Params: map[string]any{"name": name},
	}}

	type level struct {
		rank string
		name string
	}

	var chain []level

	if name != graph.BinTaxon {
		for _, rank := range graph.Ranks {
			value := taxonomy[rank]

			if countAlpha(value) < 2 {
				continue
			}

			chain = append(chain, level{rank: rank, name: value})
		}
	}

	for i, lvl := range chain {
		statements = append(statements, neo4j.Statement{
			Cypher: "MERGE (n:" + lvl.rank + " {name: $name})",
			Params: map[string]any{"name": lvl.name},
		})

		// Chain each rank to the next one toward the root.
		if i > 0 {
			prev := chain[i-1]
			statements = append(statements, neo4j.Statement{
				Cypher: "MATCH (a:" + prev.rank + " {name: $child}), (b:" + lvl.rank +
					" {name: $parent}) MERGE (a)-[:" + graph.RelBelongsTo + "]->(b)",
				Params: map[string]any{"child": prev.name, "parent": lvl.name},
			})
		}

		statements = append(statements, neo4j.Statement{
			Cypher: "MATCH (t:Taxon {name: $taxon}), (n:" + lvl.rank +
				" {name: $name}) MERGE (t)-[:" + graph.RelBelongsTo + "]->(n)",
			Params: map[string]any{"taxon": name, "name": lvl.name},
		})
	}

	if _, err := ing.store.Commit(ctx, statements); err != nil {
		return fmt.Errorf("failed to upsert taxon %s: %w", name, err)
	}

	metrics.UpsertedNodes.WithLabelValues(graph.LabelTaxon).Inc()
	return nil
}

// UpsertSample creates the Sample node, links it to its Experiment, and
// attaches one Property node per metadata key/value pair. Property identity
// is the (value, key) pair, so samples sharing a value reuse the same node.
func (ing *Ingestor) UpsertSample(
	ctx context.Context, name, experiment string, metadata map[string]string,
) error {
	statements := []neo4j.Statement{
		{
			Cypher: "MERGE (s:Sample {name: $name})",
			Params: map[string]any{"name": name},
		},
		{
			Cypher: "MERGE (e:Experiment {name: $name})",
			Params: map[string]any{"name": experiment},
		},
		{
			Cypher: "MATCH (s:Sample {name: $sample}), (e:Experiment {name: $experiment}) " +
				"MERGE (s)-[:" + graph.RelInExperiment + "]->(e)",
			Params: map[string]any{"sample": name, "experiment": experiment},
		},
	}

	for key, value := range metadata {
		statements = append(statements,
			neo4j.Statement{
				Cypher: "MERGE (p:Property {name: $name, type: $type})",
				Params: map[string]any{"name": value, "type": key},
			},
			neo4j.Statement{
				Cypher: "MATCH (s:Sample {name: $sample}), (p:Property {name: $name, type: $type}) " +
					"MERGE (s)-[:" + graph.RelHasProperty + "]->(p)",
				Params: map[string]any{"sample": name, "name": value, "type": key},
			},
		)
	}

	if _, err := ing.store.Commit(ctx, statements); err != nil {
		return fmt.Errorf("failed to upsert sample %s: %w", name, err)
	}

	metrics.UpsertedNodes.WithLabelValues(graph.LabelSample).Inc()
	return nil
}

// UpsertTaxonProperty attaches a Property node to a taxon, optionally with a
// weight on the HAS_PROPERTY relationship (abundance-derived annotations).
func (ing *Ingestor) UpsertTaxonProperty(
	ctx context.Context, taxon, name, propertyType string, weight *float64,
) error {
	statements := []neo4j.Statement{{
		Cypher: "MERGE (p:Property {name: $name, type: $type})",
		Params: map[string]any{"name": name, "type": propertyType},
	}}

	cypher := "MATCH (t:Taxon {name: $taxon}), (p:Property {name: $name, type: $type}) " +
		"MERGE (t)-[r:" + graph.RelHasProperty + "]->(p)"
	params := map[string]any{"taxon": taxon, "name": name, "type": propertyType}

	if weight != nil {
		cypher += " SET r.weight = $weight"
		params["weight"] = *weight
	}

	statements = append(statements, neo4j.Statement{Cypher: cypher, Params: params})

	if _, err := ing.store.Commit(ctx, statements); err != nil {
		return fmt.Errorf("failed to upsert property %s for taxon %s: %w", name, taxon, err)
	}

	metrics.UpsertedNodes.WithLabelValues(graph.LabelProperty).Inc()
	return nil
}

// UpsertObservation records a raw count as a FOUND_IN relationship between a
// taxon and a sample. Counts are stored as strings, matching the rest of the
// property surface.
func (ing *Ingestor) UpsertObservation(
	ctx context.Context, taxon, sample string, count float64,
) error {
	_, err := ing.store.ExecCypher(
		ctx,
		"MATCH (t:Taxon {name: $taxon}), (s:Sample {name: $sample}) "+
			"MERGE (t)-[r:"+graph.RelFoundIn+"]->(s) SET r.count = $count",
		map[string]any{
			"taxon":  taxon,
			"sample": sample,
			"count":  strconv.FormatFloat(count, 'g', -1, 64),
		},
	)

	if err != nil {
		return fmt.Errorf("failed to upsert observation %s in %s: %w", taxon, sample, err)
	}

	return nil
}

// UpsertNetwork ensures a Network node exists, carrying the provenance of
// one inference run and linked to the experiment it was derived from.
func (ing *Ingestor) UpsertNetwork(
	ctx context.Context, name, experiment, tool string,
) error {
	statements := []neo4j.Statement{
		{
			Cypher: "MERGE (n:Network {name: $name}) SET n.tool = $tool",
			Params: map[string]any{"name": name, "tool": tool},
		},
		{
			Cypher: "MERGE (e:Experiment {name: $name})",
			Params: map[string]any{"name": experiment},
		},
		{
			Cypher: "MATCH (n:Network {name: $network}), (e:Experiment {name: $experiment}) " +
				"MERGE (n)-[:" + graph.RelInExperiment + "]->(e)",
			Params: map[string]any{"network": name, "experiment": experiment},
		},
	}

	if _, err := ing.store.Commit(ctx, statements); err != nil {
		return fmt.Errorf("failed to upsert network %s: %w", name, err)
	}

	metrics.UpsertedNodes.WithLabelValues(graph.LabelNetwork).Inc()
	return nil
}

// UpsertAssociationSet ingests the edges of one inferred network. An edge
// whose taxon pair already has an Association (with the same weight, in
// weighted mode) only gains an IN_NETWORK edge; otherwise a new Association
// is created under a fresh id. Edges that fail to resolve are logged and
// skipped, sibling edges continue.
func (ing *Ingestor) UpsertAssociationSet(
	ctx context.Context, network string, edges []graph.Edge, weighted bool,
) error {
	_, err := ing.store.ExecCypher(
		ctx,
		"MERGE (n:Network {name: $name})",
		map[string]any{"name": network},
	)

	if err != nil {
		return fmt.Errorf("failed to upsert network %s: %w", network, err)
	}

	for _, edge := range edges {
		if err := ing.upsertAssociation(ctx, network, edge, weighted); err != nil {
			log.Warn("skipping association",
				"network", network,
				"source", edge.Source,
				"target", edge.Target,
				"error", err,
			)
		}
	}

	return nil
}

func (ing *Ingestor) upsertAssociation(
	ctx context.Context, network string, edge graph.Edge, weighted bool,
) error {
	// Endpoints must resolve before anything is written, otherwise the
	// association would be created with dangling WITH_TAXON edges.
	result, err := ing.store.ExecCypher(
		ctx,
		"MATCH (a {name: $source}), (b {name: $target}) "+
			"WHERE (a:Taxon OR a:AgglomTaxon) AND (b:Taxon OR b:AgglomTaxon) "+
			"RETURN count(*)",
		map[string]any{"source": edge.Source, "target": edge.Target},
	)

	if err != nil {
		return err
	}

	if n, _ := firstFloat(result); n == 0 {
		return fmt.Errorf("unresolvable taxon pair (%s, %s)", edge.Source, edge.Target)
	}

	match := "MATCH (a {name: $source})<-[:" + graph.RelWithTaxon + "]-(n:Association)-[:" +
		graph.RelWithTaxon + "]->(b {name: $target})"
	params := map[string]any{"source": edge.Source, "target": edge.Target}

	if weighted && len(edge.Weights) > 0 {
		match += " WHERE n.weight = $weight"
		params["weight"] = edge.Weights
	}

	result, err = ing.store.ExecCypher(ctx, match+" RETURN n.name LIMIT 1", params)

	if err != nil {
		return err
	}

	if len(result.Rows) > 0 {
		// Same pair (and weight): just record membership in this network.
		id, _ := result.Rows[0].String(0)
		_, err = ing.store.ExecCypher(
			ctx,
			"MATCH (n:Association {name: $id}), (net:Network {name: $network}) "+
				"MERGE (n)-[:"+graph.RelInNetwork+"]->(net)",
			map[string]any{"id": id, "network": network},
		)

		return err
	}

	id := uuid.NewString()
	create := "CREATE (n:Association {name: $id})"
	createParams := map[string]any{"id": id}

	if weighted && len(edge.Weights) > 0 {
		create += " SET n.weight = $weight"
		createParams["weight"] = edge.Weights
	}

	statements := []neo4j.Statement{
		{Cypher: create, Params: createParams},
		{
			Cypher: "MATCH (n:Association {name: $id}), (a {name: $taxon}) " +
				"WHERE a:Taxon OR a:AgglomTaxon CREATE (n)-[:" + graph.RelWithTaxon + "]->(a)",
			Params: map[string]any{"id": id, "taxon": edge.Source},
		},
		{
			Cypher: "MATCH (n:Association {name: $id}), (b {name: $taxon}) " +
				"WHERE b:Taxon OR b:AgglomTaxon CREATE (n)-[:" + graph.RelWithTaxon + "]->(b)",
			Params: map[string]any{"id": id, "taxon": edge.Target},
		},
		{
			Cypher: "MATCH (n:Association {name: $id}), (net:Network {name: $network}) " +
				"CREATE (n)-[:" + graph.RelInNetwork + "]->(net)",
			Params: map[string]any{"id": id, "network": network},
		},
	}

	if _, err := ing.store.Commit(ctx, statements); err != nil {
		return err
	}

	metrics.UpsertedNodes.WithLabelValues(graph.LabelAssociation).Inc()
	return nil
}

func firstFloat(result *neo4j.Result) (float64, bool) {
	if result == nil || len(result.Rows) == 0 {
		return 0, false
	}

	return result.Rows[0].Float(0)
}

func countAlpha(s string) int {
	count := 0

	for _, r := range s {
		if unicode.IsLetter(r) {
			count++
		}
	}

	return count
}
